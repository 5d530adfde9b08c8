package vm

import "fmt"

// RegisterSpec declares a register to be added to a container.
type RegisterSpec struct {
	Name     string
	TypeName string      // built-in type name, or the struct name
	Struct   *StructType // record descriptor for struct registers
	Count    int         // element count; Fixed registers keep it, growable ones start with it
	Growth   Growth
}

// Register is a typed storage cell inside a memory container.
type Register struct {
	Name        string
	TypeName    string
	Type        ElementType
	ElementSize int
	Count       int
	Growth      Growth
	Struct      *StructType

	data   *Array   // Fixed and Dynamic
	slices []*Array // Nested, one array per slice

	// external registers wrap host storage they never own
	external bool
}

func newRegister(spec RegisterSpec) (*Register, error) {
	elem, size, err := resolveType(spec.TypeName, spec.Struct)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", spec.Name, err)
	}
	if spec.Count < 0 {
		return nil, fmt.Errorf("register %s: negative count %d", spec.Name, spec.Count)
	}
	typeName := spec.TypeName
	if spec.Struct != nil {
		typeName = spec.Struct.Name
	}
	count := spec.Count
	if count == 0 && spec.Growth == Fixed {
		count = 1
	}
	r := &Register{
		Name:        spec.Name,
		TypeName:    typeName,
		Type:        elem,
		ElementSize: size,
		Count:       count,
		Growth:      spec.Growth,
		Struct:      spec.Struct,
	}
	if r.Growth == Nested {
		r.data = NewArray(elem, size, spec.Struct, 0)
	} else {
		r.data = NewArray(elem, size, spec.Struct, count)
	}
	return r, nil
}

// Data returns the storage of a Fixed or Dynamic register. For a Nested
// register it is an empty array of the element type.
func (r *Register) Data() *Array { return r.data }

// IsGrowable reports whether the element count may change at run time.
func (r *Register) IsGrowable() bool { return r.Growth != Fixed }

// IsFixedArray reports whether the register is a fixed array of more than
// one element.
func (r *Register) IsFixedArray() bool { return r.Growth == Fixed && r.Count > 1 }

// IsExternal reports whether the register bridges host storage.
func (r *Register) IsExternal() bool { return r.external }

// Len returns the element count (the number of slices for Nested registers).
func (r *Register) Len() int {
	if r.Growth == Nested {
		return len(r.slices)
	}
	return r.data.Len()
}

// NumSlices returns the number of per-slice arrays of a Nested register.
func (r *Register) NumSlices() int { return len(r.slices) }

// Slice returns the array of slice i, growing the register as needed.
func (r *Register) Slice(i int) *Array {
	if r.Growth != Nested {
		panic(fmt.Sprintf("vm: register %s is %s, not nested", r.Name, r.Growth))
	}
	for len(r.slices) <= i {
		r.slices = append(r.slices, NewArray(r.Type, r.ElementSize, r.Struct, 0))
	}
	return r.slices[i]
}

// SliceView returns the array of slice i without growing; out-of-range
// slices read as empty.
func (r *Register) SliceView(i int) *Array {
	if i >= 0 && i < len(r.slices) {
		return r.slices[i]
	}
	return NewArray(r.Type, r.ElementSize, r.Struct, 0)
}

// ResetSlices drops every per-slice array.
func (r *Register) ResetSlices() {
	clear(r.slices)
	r.slices = r.slices[:0]
}

// reset restores the register's initial shape with zero values.
func (r *Register) reset() {
	if r.external {
		return
	}
	switch r.Growth {
	case Fixed:
		r.data.Reset()
		r.data.Resize(r.Count)
	case Dynamic:
		r.data.Reset()
		r.data.Resize(r.Count)
	case Nested:
		r.ResetSlices()
	}
}

func (r *Register) clone() *Register {
	c := *r
	if r.external {
		return &c
	}
	c.data = r.data.Clone()
	if r.slices != nil {
		c.slices = make([]*Array, len(r.slices))
		for i, s := range r.slices {
			c.slices[i] = s.Clone()
		}
	}
	return &c
}

// Equal reports whether both registers have the same type and contents.
func (r *Register) Equal(o *Register) bool {
	if r.Type != o.Type || r.ElementSize != o.ElementSize || r.Struct != o.Struct || r.Growth != o.Growth {
		return false
	}
	if r.Growth != Nested {
		return r.data.Equal(o.data)
	}
	if len(r.slices) != len(o.slices) {
		return false
	}
	for i := range r.slices {
		if !r.slices[i].Equal(o.slices[i]) {
			return false
		}
	}
	return true
}
