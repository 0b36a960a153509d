package anchor

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
)

// idl mirrors the parts of an Anchor IDL the coder needs. Both the legacy
// layout (struct inline under accounts[].type, "publicKey", "defined": "X")
// and the 0.30 layout (struct under types[], "pubkey", "defined": {"name": "X"},
// explicit discriminator) are accepted.
type idl struct {
	Version  string       `json:"version"`
	Name     string       `json:"name"`
	Metadata *idlMetadata `json:"metadata"`
	Accounts []idlAccount `json:"accounts"`
	Types    []idlTypeDef `json:"types"`
}

type idlMetadata struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type idlAccount struct {
	Name          string      `json:"name"`
	Discriminator []int       `json:"discriminator"`
	Type          *idlTypeDef `json:"type"`
}

type idlTypeDef struct {
	Name     string       `json:"name"`
	Kind     string       `json:"kind"`
	Fields   []idlField   `json:"fields"`
	Variants []idlVariant `json:"variants"`
	Type     *idlTypeDef  `json:"type"`
}

type idlField struct {
	Name string          `json:"name"`
	Type json.RawMessage `json:"type"`
}

type idlVariant struct {
	Name   string          `json:"name"`
	Fields json.RawMessage `json:"fields"`
}

// LoadIDL reads an Anchor IDL file from path.
func LoadIDL(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("anchor: read idl: %w", err)
	}
	return ParseIDL(data)
}

// ParseIDL builds a Schema from Anchor IDL JSON.
func ParseIDL(data []byte) (*Schema, error) {
	var doc idl
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("anchor: parse idl: %w", err)
	}

	name, version := doc.Name, doc.Version
	if doc.Metadata != nil {
		if doc.Metadata.Name != "" {
			name = doc.Metadata.Name
		}
		if doc.Metadata.Version != "" {
			version = doc.Metadata.Version
		}
	}

	defs := make(map[string]idlTypeDef, len(doc.Types))
	for _, t := range doc.Types {
		defs[t.Name] = t
	}

	accounts := make([]Account, 0, len(doc.Accounts))
	for _, a := range doc.Accounts {
		body := a.Type
		if body == nil {
			def, ok := defs[a.Name]
			if !ok {
				return nil, fmt.Errorf("anchor: idl: account %s has no type definition", a.Name)
			}
			body = &def
		}
		if body.Type != nil {
			body = body.Type
		}
		if body.Kind != "struct" {
			return nil, fmt.Errorf("anchor: idl: account %s is %q, want struct", a.Name, body.Kind)
		}

		acct := Account{Name: a.Name}
		if len(a.Discriminator) == 8 {
			for i, b := range a.Discriminator {
				acct.Discriminator[i] = byte(b)
			}
		}
		for _, f := range body.Fields {
			t, err := resolveType(f.Type, defs, nil)
			if err != nil {
				return nil, fmt.Errorf("anchor: idl: %s.%s: %w", a.Name, f.Name, err)
			}
			acct.Fields = append(acct.Fields, Field{Name: f.Name, Type: t})
		}
		accounts = append(accounts, acct)
	}

	return NewSchema(name, version, accounts...), nil
}

// maxTypeDepth bounds nesting of defined types and catches cycles.
const maxTypeDepth = 16

// resolveType maps an IDL type onto a Type. path holds the defined types
// currently being expanded.
func resolveType(raw json.RawMessage, defs map[string]idlTypeDef, path []string) (Type, error) {
	var prim string
	if err := json.Unmarshal(raw, &prim); err == nil {
		switch prim {
		case "publicKey", "pubkey":
			return Type{Kind: KindPublicKey}, nil
		case "bool":
			return Type{Kind: KindBool}, nil
		case "u8":
			return Type{Kind: KindU8}, nil
		case "u16":
			return Type{Kind: KindU16}, nil
		case "u32":
			return Type{Kind: KindU32}, nil
		case "u64":
			return Type{Kind: KindU64}, nil
		case "i8":
			return Type{Kind: KindI8}, nil
		case "i16":
			return Type{Kind: KindI16}, nil
		case "i32":
			return Type{Kind: KindI32}, nil
		case "i64":
			return Type{Kind: KindI64}, nil
		case "u128":
			return Type{Kind: KindU128}, nil
		case "i128":
			return Type{Kind: KindI128}, nil
		case "string":
			return Type{Kind: KindString}, nil
		case "bytes":
			return Type{Kind: KindBytes}, nil
		default:
			return Type{}, fmt.Errorf("unsupported primitive %q", prim)
		}
	}

	var composite struct {
		Defined json.RawMessage   `json:"defined"`
		Option  json.RawMessage   `json:"option"`
		Vec     json.RawMessage   `json:"vec"`
		Array   []json.RawMessage `json:"array"`
	}
	if err := json.Unmarshal(raw, &composite); err != nil {
		return Type{}, fmt.Errorf("unrecognised type %s", string(raw))
	}

	switch {
	case len(composite.Option) > 0:
		elem, err := resolveType(composite.Option, defs, path)
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: KindOption, Elem: &elem}, nil

	case len(composite.Vec) > 0:
		elem, err := resolveType(composite.Vec, defs, path)
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: KindVec, Elem: &elem}, nil

	case composite.Array != nil:
		if len(composite.Array) != 2 {
			return Type{}, fmt.Errorf("array wants [type, len], got %s", string(raw))
		}
		elem, err := resolveType(composite.Array[0], defs, path)
		if err != nil {
			return Type{}, err
		}
		var n int
		if err := json.Unmarshal(composite.Array[1], &n); err != nil || n < 0 {
			return Type{}, fmt.Errorf("array length %s is not a literal", string(composite.Array[1]))
		}
		return Type{Kind: KindArray, Elem: &elem, Len: n}, nil

	case len(composite.Defined) > 0:
		return resolveDefined(composite.Defined, defs, path)
	}

	return Type{}, fmt.Errorf("unrecognised type %s", string(raw))
}

func resolveDefined(ref json.RawMessage, defs map[string]idlTypeDef, path []string) (Type, error) {
	var defName string
	if err := json.Unmarshal(ref, &defName); err != nil {
		var named struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(ref, &named); err != nil {
			return Type{}, fmt.Errorf("bad defined reference %s", string(ref))
		}
		defName = named.Name
	}
	if slices.Contains(path, defName) {
		return Type{}, fmt.Errorf("defined type %q is recursive", defName)
	}
	if len(path) >= maxTypeDepth {
		return Type{}, fmt.Errorf("defined type %q nests deeper than %d", defName, maxTypeDepth)
	}
	def, ok := defs[defName]
	if !ok {
		return Type{}, fmt.Errorf("undefined type %q", defName)
	}
	if def.Type != nil {
		def = *def.Type
	}
	path = append(path, defName)

	switch def.Kind {
	case "enum":
		t := Type{Kind: KindEnum}
		for _, v := range def.Variants {
			if len(v.Fields) > 0 && string(v.Fields) != "null" && string(v.Fields) != "[]" {
				return Type{}, fmt.Errorf("enum %q variant %q carries fields", defName, v.Name)
			}
			t.Variants = append(t.Variants, v.Name)
		}
		return t, nil
	case "struct":
		t := Type{Kind: KindStruct}
		for _, f := range def.Fields {
			ft, err := resolveType(f.Type, defs, path)
			if err != nil {
				return Type{}, fmt.Errorf("%s.%s: %w", defName, f.Name, err)
			}
			t.Fields = append(t.Fields, Field{Name: f.Name, Type: ft})
		}
		return t, nil
	default:
		return Type{}, fmt.Errorf("defined type %q is %q", defName, def.Kind)
	}
}
