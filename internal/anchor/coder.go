package anchor

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/alanyoungcy/perpdex/internal/domain"
)

// Record is a decoded account. Values are domain.PublicKey, bool, uint64
// (u8..u64), int64 (i8..i64), *big.Int (u128/i128), Variant (enums), string,
// []byte (bytes), []any (vec and array), Record (nested structs) or nil
// (empty options).
type Record map[string]any

// Variant is the decoded form of a unit enum: a one-key tag set, e.g.
// {"short": {}}.
type Variant map[string]struct{}

// Decode decodes data as the account registered under name. Failures wrap
// domain.ErrDecodeFailure.
func (s *Schema) Decode(name string, data []byte) (Record, error) {
	acct, ok := s.accounts[name]
	if !ok {
		return nil, fmt.Errorf("anchor: %w: unknown account %q", domain.ErrDecodeFailure, name)
	}
	if len(data) < len(acct.Discriminator) {
		return nil, fmt.Errorf("anchor: %w: %s: %d bytes", domain.ErrDecodeFailure, name, len(data))
	}
	if !bytes.Equal(data[:8], acct.Discriminator[:]) {
		return nil, fmt.Errorf("anchor: %w: %s: discriminator mismatch", domain.ErrDecodeFailure, name)
	}

	r := &reader{buf: data[8:]}
	rec, err := r.readFields(acct.Fields)
	if err != nil {
		return nil, fmt.Errorf("anchor: %w: %s.%v", domain.ErrDecodeFailure, name, err)
	}
	return rec, nil
}

var errShort = errors.New("unexpected end of data")

type reader struct {
	buf []byte
	off int
}

func (r *reader) take(n int) ([]byte, error) {
	if r.off+n > len(r.buf) {
		return nil, errShort
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) readFields(fields []Field) (Record, error) {
	rec := make(Record, len(fields))
	for _, f := range fields {
		v, err := r.read(f.Type)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		rec[f.Name] = v
	}
	return rec, nil
}

// length reads a u32 Borsh length prefix. It is bounded by the bytes left so
// a corrupt prefix cannot force a large allocation.
func (r *reader) length() (int, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	n := int(binary.LittleEndian.Uint32(b))
	if n > len(r.buf)-r.off {
		return 0, errShort
	}
	return n, nil
}

func (r *reader) readSeq(elem *Type, n int) ([]any, error) {
	if elem == nil {
		return nil, errors.New("sequence without element type")
	}
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		v, err := r.read(*elem)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *reader) read(t Type) (any, error) {
	le := binary.LittleEndian
	switch t.Kind {
	case KindPublicKey:
		b, err := r.take(32)
		if err != nil {
			return nil, err
		}
		pk, _ := domain.PublicKeyFromBytes(b)
		return pk, nil
	case KindBool:
		b, err := r.take(1)
		if err != nil {
			return nil, err
		}
		if b[0] > 1 {
			return nil, fmt.Errorf("invalid bool byte %d", b[0])
		}
		return b[0] == 1, nil
	case KindU8:
		b, err := r.take(1)
		if err != nil {
			return nil, err
		}
		return uint64(b[0]), nil
	case KindU16:
		b, err := r.take(2)
		if err != nil {
			return nil, err
		}
		return uint64(le.Uint16(b)), nil
	case KindU32:
		b, err := r.take(4)
		if err != nil {
			return nil, err
		}
		return uint64(le.Uint32(b)), nil
	case KindU64:
		b, err := r.take(8)
		if err != nil {
			return nil, err
		}
		return le.Uint64(b), nil
	case KindI64:
		b, err := r.take(8)
		if err != nil {
			return nil, err
		}
		return int64(le.Uint64(b)), nil
	case KindU128, KindI128:
		b, err := r.take(16)
		if err != nil {
			return nil, err
		}
		return decode128(b, t.Kind == KindI128), nil
	case KindI8:
		b, err := r.take(1)
		if err != nil {
			return nil, err
		}
		return int64(int8(b[0])), nil
	case KindI16:
		b, err := r.take(2)
		if err != nil {
			return nil, err
		}
		return int64(int16(le.Uint16(b))), nil
	case KindI32:
		b, err := r.take(4)
		if err != nil {
			return nil, err
		}
		return int64(int32(le.Uint32(b))), nil
	case KindString, KindBytes:
		n, err := r.length()
		if err != nil {
			return nil, err
		}
		b, err := r.take(n)
		if err != nil {
			return nil, err
		}
		if t.Kind == KindString {
			return string(b), nil
		}
		return append([]byte(nil), b...), nil
	case KindVec:
		n, err := r.length()
		if err != nil {
			return nil, err
		}
		return r.readSeq(t.Elem, n)
	case KindArray:
		return r.readSeq(t.Elem, t.Len)
	case KindStruct:
		return r.readFields(t.Fields)
	case KindEnum:
		b, err := r.take(1)
		if err != nil {
			return nil, err
		}
		idx := int(b[0])
		if idx >= len(t.Variants) {
			return nil, fmt.Errorf("enum variant %d out of range (%d variants)", idx, len(t.Variants))
		}
		return Variant{variantKey(t.Variants[idx]): {}}, nil
	case KindOption:
		b, err := r.take(1)
		if err != nil {
			return nil, err
		}
		switch b[0] {
		case 0:
			return nil, nil
		case 1:
			if t.Elem == nil {
				return nil, errors.New("option without element type")
			}
			return r.read(*t.Elem)
		default:
			return nil, fmt.Errorf("invalid option tag %d", b[0])
		}
	default:
		return nil, fmt.Errorf("unsupported type %s", t.Kind)
	}
}

// decode128 reads a little-endian 128-bit integer, two's complement when signed.
func decode128(b []byte, signed bool) *big.Int {
	be := make([]byte, 16)
	for i := range b {
		be[15-i] = b[i]
	}
	n := new(big.Int).SetBytes(be)
	if signed && be[0]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	return n
}

// variantKey lower-cases the first rune, matching how Anchor clients name
// enum tags ("Short" -> "short").
func variantKey(name string) string {
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}
