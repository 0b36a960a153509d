package anchor

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/alanyoungcy/perpdex/internal/domain"
)

// Encode is the inverse of Decode. Missing fields encode as zero values; an
// enum field takes either a Variant or a variant name string. A value of the
// wrong Go type is an error.
func (s *Schema) Encode(name string, rec Record) ([]byte, error) {
	acct, ok := s.accounts[name]
	if !ok {
		return nil, fmt.Errorf("anchor: encode: unknown account %q", name)
	}
	out, err := appendFields(append([]byte(nil), acct.Discriminator[:]...), acct.Fields, rec)
	if err != nil {
		return nil, fmt.Errorf("anchor: encode %s.%w", name, err)
	}
	return out, nil
}

func appendFields(out []byte, fields []Field, rec Record) ([]byte, error) {
	for _, f := range fields {
		var err error
		out, err = appendValue(out, f.Type, rec[f.Name])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
	}
	return out, nil
}

func appendLength(out []byte, n int) []byte {
	return binary.LittleEndian.AppendUint32(out, uint32(n))
}

func appendSeq(out []byte, elem *Type, items []any) ([]byte, error) {
	if elem == nil {
		return nil, fmt.Errorf("sequence without element type")
	}
	for i, item := range items {
		var err error
		out, err = appendValue(out, *elem, item)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
	}
	return out, nil
}

func appendValue(out []byte, t Type, v any) ([]byte, error) {
	le := binary.LittleEndian
	switch t.Kind {
	case KindPublicKey:
		var pk domain.PublicKey
		if v != nil {
			var ok bool
			if pk, ok = v.(domain.PublicKey); !ok {
				return nil, fmt.Errorf("cannot encode %T as publicKey", v)
			}
		}
		return append(out, pk[:]...), nil
	case KindBool:
		var b bool
		if v != nil {
			var ok bool
			if b, ok = v.(bool); !ok {
				return nil, fmt.Errorf("cannot encode %T as bool", v)
			}
		}
		if b {
			return append(out, 1), nil
		}
		return append(out, 0), nil
	case KindU8, KindU16, KindU32, KindU64, KindI8, KindI16, KindI32, KindI64:
		n, err := asUint64(v)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, t.size())
		switch t.size() {
		case 1:
			buf[0] = byte(n)
		case 2:
			le.PutUint16(buf, uint16(n))
		case 4:
			le.PutUint32(buf, uint32(n))
		default:
			le.PutUint64(buf, n)
		}
		return append(out, buf...), nil
	case KindU128, KindI128:
		n := new(big.Int)
		switch x := v.(type) {
		case *big.Int:
			n.Set(x)
		case nil:
		default:
			u, err := asUint64(v)
			if err != nil {
				return nil, err
			}
			if i, ok := v.(int64); ok {
				n.SetInt64(i)
			} else {
				n.SetUint64(u)
			}
		}
		if n.Sign() < 0 {
			n.Add(n, new(big.Int).Lsh(big.NewInt(1), 128))
		}
		be := n.FillBytes(make([]byte, 16))
		for i := 15; i >= 0; i-- {
			out = append(out, be[i])
		}
		return out, nil
	case KindEnum:
		var tag string
		switch x := v.(type) {
		case string:
			tag = x
		case Variant:
			for k := range x {
				tag = k
			}
		case nil:
		default:
			return nil, fmt.Errorf("cannot encode %T as enum", v)
		}
		for i, name := range t.Variants {
			if variantKey(name) == variantKey(tag) {
				return append(out, byte(i)), nil
			}
		}
		if tag == "" {
			return append(out, 0), nil
		}
		return nil, fmt.Errorf("unknown variant %q", tag)
	case KindOption:
		if v == nil {
			return append(out, 0), nil
		}
		out = append(out, 1)
		return appendValue(out, *t.Elem, v)
	case KindString:
		var str string
		if v != nil {
			var ok bool
			if str, ok = v.(string); !ok {
				return nil, fmt.Errorf("cannot encode %T as string", v)
			}
		}
		return append(appendLength(out, len(str)), str...), nil
	case KindBytes:
		var b []byte
		if v != nil {
			var ok bool
			if b, ok = v.([]byte); !ok {
				return nil, fmt.Errorf("cannot encode %T as bytes", v)
			}
		}
		return append(appendLength(out, len(b)), b...), nil
	case KindVec, KindArray:
		var items []any
		if v != nil {
			var ok bool
			if items, ok = v.([]any); !ok {
				return nil, fmt.Errorf("cannot encode %T as %s", v, t.Kind)
			}
		}
		if t.Kind == KindVec {
			out = appendLength(out, len(items))
		} else if v == nil {
			items = make([]any, t.Len)
		} else if len(items) != t.Len {
			return nil, fmt.Errorf("array wants %d items, got %d", t.Len, len(items))
		}
		return appendSeq(out, t.Elem, items)
	case KindStruct:
		var rec Record
		switch x := v.(type) {
		case nil:
		case Record:
			rec = x
		case map[string]any:
			rec = x
		default:
			return nil, fmt.Errorf("cannot encode %T as struct", v)
		}
		return appendFields(out, t.Fields, rec)
	default:
		return nil, fmt.Errorf("unsupported type %s", t.Kind)
	}
}

func asUint64(v any) (uint64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int:
		return uint64(x), nil
	case int64:
		return uint64(x), nil
	case uint64:
		return x, nil
	case uint32:
		return uint64(x), nil
	default:
		return 0, fmt.Errorf("cannot encode %T as integer", v)
	}
}
