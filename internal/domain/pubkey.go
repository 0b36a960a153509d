package domain

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
)

// PublicKeySize is the length in bytes of an ed25519 account address.
const PublicKeySize = 32

// PublicKey is a 32-byte account address rendered as base58.
type PublicKey [PublicKeySize]byte

// ParsePublicKey decodes a base58 address. Any malformed input yields an
// error wrapping ErrInvalidAddress.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	if len(raw) != PublicKeySize {
		return pk, fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidAddress, s, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

// MustPublicKey is ParsePublicKey for compile-time constants. It panics on
// malformed input.
func MustPublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PublicKeyFromBytes copies b into a PublicKey. It returns false when b is not
// exactly 32 bytes long.
func PublicKeyFromBytes(b []byte) (PublicKey, bool) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, false
	}
	copy(pk[:], b)
	return pk, true
}

// String returns the base58 encoding.
func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

// Bytes returns a copy of the raw key bytes.
func (pk PublicKey) Bytes() []byte {
	out := make([]byte, PublicKeySize)
	copy(out, pk[:])
	return out
}

// IsZero reports whether pk is the all-zero key.
func (pk PublicKey) IsZero() bool {
	return pk == PublicKey{}
}

// Equal reports whether two keys are byte-identical.
func (pk PublicKey) Equal(other PublicKey) bool {
	return bytes.Equal(pk[:], other[:])
}

// MarshalText implements encoding.TextMarshaler.
func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (pk *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}
