package vm

import (
	"fmt"
	"strings"
)

// StructField describes one field of a record type.
type StructField struct {
	Name     string
	TypeName string      // built-in type name; ignored when Struct is set
	Struct   *StructType // nested record type
}

// StructType is the descriptor of a record-typed register. Records are
// copied and compared field by field, never as raw bytes.
type StructType struct {
	Name   string
	Fields []StructField
}

// NewStructType validates the field types and returns a descriptor.
func NewStructType(name string, fields ...StructField) (*StructType, error) {
	if name == "" {
		return nil, fmt.Errorf("struct type needs a name")
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("struct %s: field without a name", name)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("struct %s: duplicate field %q", name, f.Name)
		}
		seen[f.Name] = true
		if _, _, err := resolveType(f.TypeName, f.Struct); err != nil {
			return nil, fmt.Errorf("struct %s: field %s: %w", name, f.Name, err)
		}
	}
	return &StructType{Name: name, Fields: fields}, nil
}

// MustStructType is like NewStructType but panics on error.
func MustStructType(name string, fields ...StructField) *StructType {
	st, err := NewStructType(name, fields...)
	if err != nil {
		panic(err)
	}
	return st
}

// FieldIndex returns the index of the named field, or -1.
func (st *StructType) FieldIndex(name string) int {
	for i, f := range st.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// String returns the type name.
func (st *StructType) String() string {
	if st == nil {
		return "<nil struct>"
	}
	return st.Name
}

// Record is one value of a StructType. Each field is a single-element
// Array so records nest and copy with the same rules as registers.
type Record struct {
	st     *StructType
	fields []*Array
}

// NewRecord returns a zero-valued record of type st.
func NewRecord(st *StructType) Record {
	r := Record{st: st, fields: make([]*Array, len(st.Fields))}
	for i, f := range st.Fields {
		a, err := NewTypedArray(f.TypeName, f.Struct, 1)
		if err != nil {
			panic(fmt.Sprintf("vm: struct %s: %v", st.Name, err))
		}
		r.fields[i] = a
	}
	return r
}

// Type returns the record's descriptor.
func (r Record) Type() *StructType { return r.st }

// Field returns the storage of field i.
func (r Record) Field(i int) *Array { return r.fields[i] }

// FieldByName returns the storage of the named field.
func (r Record) FieldByName(name string) (*Array, bool) {
	if r.st == nil {
		return nil, false
	}
	i := r.st.FieldIndex(name)
	if i < 0 {
		return nil, false
	}
	return r.fields[i], true
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	c := Record{st: r.st, fields: make([]*Array, len(r.fields))}
	for i, f := range r.fields {
		c.fields[i] = f.Clone()
	}
	return c
}

// Equal compares field by field.
func (r Record) Equal(o Record) bool {
	if r.st != o.st || len(r.fields) != len(o.fields) {
		return false
	}
	for i := range r.fields {
		if !r.fields[i].Equal(o.fields[i]) {
			return false
		}
	}
	return true
}

// String formats the record as (Field=Value,...), the same syntax
// accepted by textual defaults.
func (r Record) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, f := range r.st.Fields {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(f.Name)
		sb.WriteByte('=')
		sb.WriteString(formatElement(r.fields[i], f.TypeName, 0))
	}
	sb.WriteByte(')')
	return sb.String()
}
