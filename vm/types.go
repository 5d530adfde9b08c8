package vm

import "fmt"

// ElementType tags how a register's elements are stored and copied.
type ElementType uint8

const (
	// ElementPlain elements are fixed-size byte blobs (bools, ints, floats).
	ElementPlain ElementType = iota

	// ElementName elements are interned strings; equality is identity.
	ElementName

	// ElementString elements are owned strings.
	ElementString

	// ElementStruct elements are records described by a StructType.
	ElementStruct
)

// String returns a human-readable name for ElementType.
func (t ElementType) String() string {
	switch t {
	case ElementPlain:
		return "plain"
	case ElementName:
		return "name"
	case ElementString:
		return "string"
	case ElementStruct:
		return "struct"
	default:
		return fmt.Sprintf("ElementType(%d)", t)
	}
}

// Growth describes whether a register can change its element count.
type Growth uint8

const (
	// Fixed registers keep their declared element count.
	Fixed Growth = iota

	// Dynamic registers are a single growable array.
	Dynamic

	// Nested registers hold one growable array per slice.
	Nested
)

// String returns a human-readable name for Growth.
func (g Growth) String() string {
	switch g {
	case Fixed:
		return "fixed"
	case Dynamic:
		return "dynamic"
	case Nested:
		return "nested"
	default:
		return fmt.Sprintf("Growth(%d)", g)
	}
}

// Built-in type names understood by registers and textual defaults.
const (
	TypeBool   = "bool"
	TypeUint8  = "uint8"
	TypeInt32  = "int32"
	TypeInt64  = "int64"
	TypeFloat  = "float"
	TypeDouble = "double"
	TypeName   = "name"
	TypeString = "string"
)

type typeSpec struct {
	elem ElementType
	size int
}

var builtinTypes = map[string]typeSpec{
	TypeBool:   {ElementPlain, 1},
	TypeUint8:  {ElementPlain, 1},
	TypeInt32:  {ElementPlain, 4},
	TypeInt64:  {ElementPlain, 8},
	TypeFloat:  {ElementPlain, 4},
	TypeDouble: {ElementPlain, 8},
	TypeName:   {ElementName, 0},
	TypeString: {ElementString, 0},
}

// LookupType resolves a built-in type name to its element type and the
// byte size of one element (zero for non-plain types).
func LookupType(name string) (ElementType, int, bool) {
	spec, ok := builtinTypes[name]
	return spec.elem, spec.size, ok
}

// resolveType resolves typeName, or st when it is a struct type.
func resolveType(typeName string, st *StructType) (ElementType, int, error) {
	if st != nil {
		if typeName != "" && typeName != st.Name {
			return 0, 0, fmt.Errorf("type %q does not match struct %q", typeName, st.Name)
		}
		return ElementStruct, 0, nil
	}
	elem, size, ok := LookupType(typeName)
	if !ok {
		return 0, 0, fmt.Errorf("unknown type %q", typeName)
	}
	return elem, size, nil
}
