// Package anchor decodes Anchor program accounts from a field schema. The
// schema is either built in code or loaded from the program's IDL JSON, and
// decoding is plain Borsh: little-endian integers laid out in field order
// behind an 8-byte account discriminator.
package anchor

import (
	"crypto/sha256"
	"fmt"
)

// Kind enumerates the Borsh types the coder understands.
type Kind int

const (
	KindPublicKey Kind = iota + 1
	KindBool
	KindU8
	KindU16
	KindU32
	KindU64
	KindI64
	KindU128
	KindI128
	KindEnum
	KindOption
	KindI8
	KindI16
	KindI32
	KindString
	KindBytes
	KindVec
	KindArray
	KindStruct
)

func (k Kind) String() string {
	switch k {
	case KindPublicKey:
		return "publicKey"
	case KindBool:
		return "bool"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindI64:
		return "i64"
	case KindU128:
		return "u128"
	case KindI128:
		return "i128"
	case KindEnum:
		return "enum"
	case KindOption:
		return "option"
	case KindI8:
		return "i8"
	case KindI16:
		return "i16"
	case KindI32:
		return "i32"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindVec:
		return "vec"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Type describes one field type. Variants is set for KindEnum (unit variants
// only). Elem is set for KindOption, KindVec and KindArray, Len for KindArray
// and Fields for KindStruct.
type Type struct {
	Kind     Kind
	Variants []string
	Elem     *Type
	Len      int
	Fields   []Field
}

// size returns the encoded width, or -1 when it depends on the data.
func (t Type) size() int {
	switch t.Kind {
	case KindPublicKey:
		return 32
	case KindBool, KindU8, KindI8, KindEnum:
		return 1
	case KindU16, KindI16:
		return 2
	case KindU32, KindI32:
		return 4
	case KindU64, KindI64:
		return 8
	case KindU128, KindI128:
		return 16
	case KindArray:
		if t.Elem == nil {
			return -1
		}
		if sz := t.Elem.size(); sz >= 0 {
			return sz * t.Len
		}
		return -1
	case KindStruct:
		total := 0
		for _, f := range t.Fields {
			sz := f.Type.size()
			if sz < 0 {
				return -1
			}
			total += sz
		}
		return total
	default:
		return -1
	}
}

// Field is a named struct member.
type Field struct {
	Name string
	Type Type
}

// Account is the layout of one account type.
type Account struct {
	Name          string
	Discriminator [8]byte
	Fields        []Field
}

// FieldOffset returns the byte offset of field name within the account data
// (discriminator included). It fails when the field is missing or follows a
// variable-width field.
func (a Account) FieldOffset(name string) (int, bool) {
	off := len(a.Discriminator)
	for _, f := range a.Fields {
		if f.Name == name {
			return off, true
		}
		sz := f.Type.size()
		if sz < 0 {
			return 0, false
		}
		off += sz
	}
	return 0, false
}

// HasField reports whether the account declares field name.
func (a Account) HasField(name string) bool {
	for _, f := range a.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Schema is a versioned set of account layouts for one program.
type Schema struct {
	Program  string
	Version  string
	accounts map[string]Account
}

// NewSchema builds a schema. Accounts with a zero discriminator get the
// standard Anchor one derived from their name.
func NewSchema(program, version string, accounts ...Account) *Schema {
	s := &Schema{Program: program, Version: version, accounts: make(map[string]Account, len(accounts))}
	for _, a := range accounts {
		if a.Discriminator == ([8]byte{}) {
			a.Discriminator = Discriminator(a.Name)
		}
		s.accounts[a.Name] = a
	}
	return s
}

// Account returns the layout registered under name.
func (s *Schema) Account(name string) (Account, bool) {
	a, ok := s.accounts[name]
	return a, ok
}

// Discriminator is sha256("account:<name>")[:8].
func Discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}
