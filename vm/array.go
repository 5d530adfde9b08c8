package vm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"unique"
)

// ---------------------------------------------------------------------------
// Array: typed element storage backing a register
// ---------------------------------------------------------------------------

// Array stores the elements of one register (or one slice of a nested
// register). Exactly one backing slice is used, selected by the element type.
type Array struct {
	elem ElementType
	size int         // bytes per element, plain only
	st   *StructType // struct only

	bytes []byte
	names []unique.Handle[string]
	strs  []string
	recs  []Record
}

// NewArray creates an array of n zero-valued elements.
func NewArray(elem ElementType, size int, st *StructType, n int) *Array {
	if elem == ElementPlain && size <= 0 {
		panic(fmt.Sprintf("vm: plain array needs a positive element size, got %d", size))
	}
	if elem == ElementStruct && st == nil {
		panic("vm: struct array needs a struct type")
	}
	a := &Array{elem: elem, size: size, st: st}
	a.Resize(n)
	return a
}

// NewTypedArray creates an array for a built-in type name or struct type.
func NewTypedArray(typeName string, st *StructType, n int) (*Array, error) {
	elem, size, err := resolveType(typeName, st)
	if err != nil {
		return nil, err
	}
	return NewArray(elem, size, st, n), nil
}

// Type returns the element type.
func (a *Array) Type() ElementType { return a.elem }

// ElementSize returns the byte size of one plain element.
func (a *Array) ElementSize() int { return a.size }

// Struct returns the record descriptor of a struct array.
func (a *Array) Struct() *StructType { return a.st }

// Len returns the number of elements.
func (a *Array) Len() int {
	switch a.elem {
	case ElementPlain:
		return len(a.bytes) / a.size
	case ElementName:
		return len(a.names)
	case ElementString:
		return len(a.strs)
	default:
		return len(a.recs)
	}
}

// Resize grows the array with zero values or truncates it to n elements.
func (a *Array) Resize(n int) {
	old := a.Len()
	switch a.elem {
	case ElementPlain:
		a.bytes = resize(a.bytes, n*a.size)
	case ElementName:
		a.names = resize(a.names, n)
	case ElementString:
		a.strs = resize(a.strs, n)
	default:
		a.recs = resize(a.recs, n)
		for i := old; i < n; i++ {
			a.recs[i] = NewRecord(a.st)
		}
	}
}

func resize[T any](s []T, n int) []T {
	if n <= len(s) {
		var zero T
		for i := n; i < len(s); i++ {
			s[i] = zero
		}
		return s[:n]
	}
	return append(s, make([]T, n-len(s))...)
}

// Reset removes every element.
func (a *Array) Reset() { a.Resize(0) }

// Zero resets element i to its zero value.
func (a *Array) Zero(i int) {
	a.check(i)
	switch a.elem {
	case ElementPlain:
		clear(a.bytes[i*a.size : (i+1)*a.size])
	case ElementName:
		a.names[i] = unique.Handle[string]{}
	case ElementString:
		a.strs[i] = ""
	default:
		a.recs[i] = NewRecord(a.st)
	}
}

// Clone returns a deep copy.
func (a *Array) Clone() *Array {
	c := &Array{
		elem:  a.elem,
		size:  a.size,
		st:    a.st,
		bytes: slices.Clone(a.bytes),
		names: slices.Clone(a.names),
		strs:  slices.Clone(a.strs),
	}
	if a.recs != nil {
		c.recs = make([]Record, len(a.recs))
		for i, r := range a.recs {
			c.recs[i] = r.Clone()
		}
	}
	return c
}

// Compatible reports whether b holds elements of the same type and size.
func (a *Array) Compatible(b *Array) bool {
	return a.elem == b.elem && a.size == b.size && a.st == b.st
}

// Equal reports whether both arrays hold the same elements.
func (a *Array) Equal(b *Array) bool {
	if !a.Compatible(b) || a.Len() != b.Len() {
		return false
	}
	return a.equalRange(0, b, 0, a.Len())
}

func (a *Array) check(i int) {
	if i < 0 || i >= a.Len() {
		panic(fmt.Sprintf("vm: element index %d out of range [0,%d)", i, a.Len()))
	}
}

func (a *Array) checkPlain(i, size int) []byte {
	if a.elem != ElementPlain || a.size != size {
		panic(fmt.Sprintf("vm: %s array of size %d accessed as %d-byte plain", a.elem, a.size, size))
	}
	a.check(i)
	return a.bytes[i*size : (i+1)*size]
}

// ---------------------------------------------------------------------------
// Range operations used by Copy and comparisons
// ---------------------------------------------------------------------------

// copyRange overwrites n elements at dst with elements of src starting at from.
func (a *Array) copyRange(dst int, src *Array, from, n int) {
	if n <= 0 {
		return
	}
	if a.elem != src.elem {
		panic(fmt.Sprintf("vm: copy from %s into %s", src.elem, a.elem))
	}
	switch a.elem {
	case ElementPlain:
		if a.size == src.size {
			copy(a.bytes[dst*a.size:(dst+n)*a.size], src.bytes[from*src.size:(from+n)*src.size])
			return
		}
		// Mismatched widths copy the overlapping bytes of each element.
		w := min(a.size, src.size)
		for i := 0; i < n; i++ {
			d := a.bytes[(dst+i)*a.size : (dst+i+1)*a.size]
			clear(d)
			copy(d[:w], src.bytes[(from+i)*src.size:])
		}
	case ElementName:
		copy(a.names[dst:dst+n], src.names[from:from+n])
	case ElementString:
		copy(a.strs[dst:dst+n], src.strs[from:from+n])
	default:
		for i := 0; i < n; i++ {
			a.recs[dst+i] = src.recs[from+i].Clone()
		}
	}
}

// appendRange appends n elements of src starting at from.
func (a *Array) appendRange(src *Array, from, n int) {
	if n <= 0 {
		return
	}
	at := a.Len()
	a.Resize(at + n)
	a.copyRange(at, src, from, n)
}

// equalRange compares n elements of a at off with b at boff.
func (a *Array) equalRange(off int, b *Array, boff, n int) bool {
	if a.elem != b.elem {
		return false
	}
	switch a.elem {
	case ElementPlain:
		if a.size != b.size {
			return false
		}
		return bytes.Equal(a.bytes[off*a.size:(off+n)*a.size], b.bytes[boff*b.size:(boff+n)*b.size])
	case ElementName:
		return slices.Equal(a.names[off:off+n], b.names[boff:boff+n])
	case ElementString:
		return slices.Equal(a.strs[off:off+n], b.strs[boff:boff+n])
	default:
		for i := 0; i < n; i++ {
			if !a.recs[off+i].Equal(b.recs[boff+i]) {
				return false
			}
		}
		return true
	}
}

// ---------------------------------------------------------------------------
// Typed element accessors
// ---------------------------------------------------------------------------

// Bool returns element i of a 1-byte plain array.
func (a *Array) Bool(i int) bool { return a.checkPlain(i, 1)[0] != 0 }

// SetBool stores element i of a 1-byte plain array.
func (a *Array) SetBool(i int, v bool) {
	b := a.checkPlain(i, 1)
	if v {
		b[0] = 1
	} else {
		b[0] = 0
	}
}

// Uint8 returns element i of a 1-byte plain array.
func (a *Array) Uint8(i int) uint8 { return a.checkPlain(i, 1)[0] }

// SetUint8 stores element i of a 1-byte plain array.
func (a *Array) SetUint8(i int, v uint8) { a.checkPlain(i, 1)[0] = v }

// Int32 returns element i of a 4-byte plain array.
func (a *Array) Int32(i int) int32 {
	return int32(binary.LittleEndian.Uint32(a.checkPlain(i, 4)))
}

// SetInt32 stores element i of a 4-byte plain array.
func (a *Array) SetInt32(i int, v int32) {
	binary.LittleEndian.PutUint32(a.checkPlain(i, 4), uint32(v))
}

// Int64 returns element i of an 8-byte plain array.
func (a *Array) Int64(i int) int64 {
	return int64(binary.LittleEndian.Uint64(a.checkPlain(i, 8)))
}

// SetInt64 stores element i of an 8-byte plain array.
func (a *Array) SetInt64(i int, v int64) {
	binary.LittleEndian.PutUint64(a.checkPlain(i, 8), uint64(v))
}

// Float32 returns element i of a 4-byte plain array.
func (a *Array) Float32(i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(a.checkPlain(i, 4)))
}

// SetFloat32 stores element i of a 4-byte plain array.
func (a *Array) SetFloat32(i int, v float32) {
	binary.LittleEndian.PutUint32(a.checkPlain(i, 4), math.Float32bits(v))
}

// Float64 returns element i of an 8-byte plain array.
func (a *Array) Float64(i int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(a.checkPlain(i, 8)))
}

// SetFloat64 stores element i of an 8-byte plain array.
func (a *Array) SetFloat64(i int, v float64) {
	binary.LittleEndian.PutUint64(a.checkPlain(i, 8), math.Float64bits(v))
}

// Bytes returns the raw bytes of plain element i. The slice aliases storage.
func (a *Array) Bytes(i int) []byte { return a.checkPlain(i, a.size) }

// Name returns interned element i of a name array.
func (a *Array) Name(i int) string {
	if a.elem != ElementName {
		panic(fmt.Sprintf("vm: %s array accessed as name", a.elem))
	}
	a.check(i)
	var zero unique.Handle[string]
	if a.names[i] == zero {
		return ""
	}
	return a.names[i].Value()
}

// SetName interns v into element i of a name array.
func (a *Array) SetName(i int, v string) {
	if a.elem != ElementName {
		panic(fmt.Sprintf("vm: %s array accessed as name", a.elem))
	}
	a.check(i)
	if v == "" {
		a.names[i] = unique.Handle[string]{}
		return
	}
	a.names[i] = unique.Make(v)
}

// Text returns element i of a string array.
func (a *Array) Text(i int) string {
	if a.elem != ElementString {
		panic(fmt.Sprintf("vm: %s array accessed as string", a.elem))
	}
	a.check(i)
	return a.strs[i]
}

// SetText stores element i of a string array.
func (a *Array) SetText(i int, v string) {
	if a.elem != ElementString {
		panic(fmt.Sprintf("vm: %s array accessed as string", a.elem))
	}
	a.check(i)
	a.strs[i] = v
}

// Record returns element i of a struct array. The record aliases storage.
func (a *Array) Record(i int) Record {
	if a.elem != ElementStruct {
		panic(fmt.Sprintf("vm: %s array accessed as struct", a.elem))
	}
	a.check(i)
	return a.recs[i]
}

// SetRecord stores a copy of r into element i of a struct array.
func (a *Array) SetRecord(i int, r Record) {
	if a.elem != ElementStruct || r.Type() != a.st {
		panic(fmt.Sprintf("vm: cannot store %s record in %s array", r.Type(), a.elem))
	}
	a.check(i)
	a.recs[i] = r.Clone()
}

// Append adds one zero-valued element and returns its index.
func (a *Array) Append() int {
	n := a.Len()
	a.Resize(n + 1)
	return n
}
