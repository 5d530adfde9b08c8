package vm

import (
	"fmt"

	"github.com/chazu/regvm/pkg/bytecode"
)

// HandleKind tags the variant held by a Handle.
type HandleKind uint8

const (
	// HandleDirect addresses a fixed register.
	HandleDirect HandleKind = iota

	// HandleDynamic addresses a growable register.
	HandleDynamic

	// HandleNested addresses a register with one growable array per slice.
	HandleNested

	// HandleScalar carries metadata instead of addressing memory.
	HandleScalar
)

// String returns a human-readable name for HandleKind.
func (k HandleKind) String() string {
	switch k {
	case HandleDirect:
		return "direct"
	case HandleDynamic:
		return "dynamic"
	case HandleNested:
		return "nested"
	case HandleScalar:
		return "scalar"
	default:
		return fmt.Sprintf("HandleKind(%d)", k)
	}
}

// Handle is a resolved reference to register storage, or a scalar standing
// in for one. Data variants use Reg and Offset; the scalar variant uses
// Scalar, Tag and Struct.
type Handle struct {
	Kind   HandleKind
	Reg    *Register
	Offset int // element offset, bytecode.NoOffset for the whole register

	Scalar uint64
	Tag    ElementType
	Struct *StructType
}

func newDataHandle(r *Register, offset int) Handle {
	h := Handle{Reg: r, Offset: offset}
	switch r.Growth {
	case Dynamic:
		h.Kind = HandleDynamic
	case Nested:
		h.Kind = HandleNested
	default:
		h.Kind = HandleDirect
	}
	return h
}

func countHandle(n int) Handle {
	return Handle{Kind: HandleScalar, Offset: bytecode.NoOffset, Scalar: uint64(n)}
}

func typeHandle(t ElementType) Handle {
	return Handle{Kind: HandleScalar, Offset: bytecode.NoOffset, Tag: t}
}

func structHandle(st *StructType) Handle {
	return Handle{Kind: HandleScalar, Offset: bytecode.NoOffset, Tag: ElementStruct, Struct: st}
}

// IsGrowable reports whether the handle addresses growable memory.
func (h Handle) IsGrowable() bool {
	return h.Kind == HandleDynamic || h.Kind == HandleNested
}

// Array returns the storage visible at the given slice index without
// changing the register's shape.
func (h Handle) Array(slice int) *Array {
	switch h.Kind {
	case HandleDirect, HandleDynamic:
		return h.Reg.data
	case HandleNested:
		return h.Reg.SliceView(slice)
	default:
		panic("vm: scalar handle has no storage")
	}
}

// Element returns the element index the handle addresses.
func (h Handle) Element() int {
	if h.Offset >= 0 {
		return h.Offset
	}
	return 0
}

// sliceCount is the number of slices a growable handle asks for.
func (h Handle) sliceCount() int {
	switch h.Kind {
	case HandleDynamic:
		return h.Reg.data.Len()
	case HandleNested:
		return h.Reg.NumSlices()
	default:
		return 1
	}
}

// writable returns the storage to write element i into at the given
// slice, growing growable registers so that i exists.
func (h Handle) writable(slice, i int) *Array {
	var a *Array
	switch h.Kind {
	case HandleDirect, HandleDynamic:
		a = h.Reg.data
	case HandleNested:
		a = h.Reg.Slice(slice)
	default:
		panic("vm: scalar handle has no storage")
	}
	if i >= a.Len() && h.Kind != HandleDirect {
		a.Resize(i + 1)
	}
	return a
}

// copyHandles copies src into dst. count is the element count from the
// handle cache (zero = read the source length at run time). Growable
// targets reset at slice 0 and append otherwise.
func copyHandles(src, dst Handle, count, slice int) {
	from := src.Array(slice)
	off, n := 0, count
	if src.Offset >= 0 {
		off, n = src.Offset, 1
	} else if n == 0 || src.IsGrowable() {
		n = from.Len()
	}
	if off+n > from.Len() {
		n = max(0, from.Len()-off)
	}

	if dst.Offset >= 0 {
		to := dst.writable(slice, dst.Offset)
		to.copyRange(dst.Offset, from, off, min(n, 1))
		return
	}

	switch dst.Kind {
	case HandleDirect:
		to := dst.Reg.data
		to.copyRange(0, from, off, min(n, to.Len()))
	case HandleDynamic:
		to := dst.Reg.data
		if slice == 0 {
			to.Reset()
		}
		to.appendRange(from, off, n)
	case HandleNested:
		if slice == 0 {
			dst.Reg.ResetSlices()
		}
		to := dst.Reg.Slice(slice)
		to.Reset()
		to.appendRange(from, off, n)
	default:
		panic("vm: copy into scalar handle")
	}
}

// compareHandles implements Equals: mismatched type or size never compare
// equal; plain, name and string elements compare by value, records field
// by field.
func compareHandles(a, b Handle, slice int) bool {
	if a.Reg.Type != b.Reg.Type || a.Reg.ElementSize != b.Reg.ElementSize || a.Reg.Struct != b.Reg.Struct {
		return false
	}
	x, y := a.Array(slice), b.Array(slice)
	xo, xn := rangeOf(a, x)
	yo, yn := rangeOf(b, y)
	if xn != yn {
		return false
	}
	return x.equalRange(xo, y, yo, xn)
}

func rangeOf(h Handle, a *Array) (int, int) {
	if h.Offset >= 0 {
		if h.Offset >= a.Len() {
			return 0, 0
		}
		return h.Offset, 1
	}
	return 0, a.Len()
}

// ---------------------------------------------------------------------------
// Handle cache
// ---------------------------------------------------------------------------

// handleCache is the pre-resolved projection of the byte code onto memory.
// handles is flat; first[i] is the index of instruction i's first handle.
type handleCache struct {
	handles []Handle
	first   []int
	args    [][]int // Execute only: handle index of each operand

	byteCode   *bytecode.ByteCode
	containers [bytecode.ContainerCount]Memory
	builds     int
}

// valid reports whether the cache still matches bc and mem by identity.
func (c *handleCache) valid(bc *bytecode.ByteCode, mem [bytecode.ContainerCount]Memory) bool {
	return c.first != nil && len(c.first) == bc.Len() && c.byteCode == bc && c.containers == mem
}

func (c *handleCache) invalidate() {
	c.first = nil
	c.handles = nil
	c.args = nil
}

// build resolves every operand of bc in instruction order.
func (c *handleCache) build(bc *bytecode.ByteCode, mem [bytecode.ContainerCount]Memory) {
	n := bc.Len()
	c.handles = make([]Handle, 0, n*2)
	c.first = make([]int, n)
	c.args = make([][]int, n)
	c.byteCode = bc
	c.containers = mem
	c.builds++

	resolve := func(op bytecode.Operand) Handle {
		if op.Container >= bytecode.ContainerCount || mem[op.Container] == nil {
			panic(fmt.Sprintf("vm: operand %v names a missing container", op))
		}
		return mem[op.Container].Handle(op)
	}

	for i := range bc.Instructions {
		in := &bc.Instructions[i]
		c.first[i] = len(c.handles)

		switch {
		case in.Op == bytecode.OpExecute:
			args := make([]int, len(in.Operands))
			for k, op := range in.Operands {
				h := resolve(op)
				args[k] = len(c.handles)
				c.handles = append(c.handles, h)
				if h.Reg.IsFixedArray() && !op.HasOffset() {
					c.handles = append(c.handles, countHandle(h.Reg.Count))
				}
			}
			c.args[i] = args

		case in.Op == bytecode.OpCopy:
			src, dst := resolve(in.Operands[0]), resolve(in.Operands[1])
			if src.Reg.Type != dst.Reg.Type || src.Reg.Struct != dst.Reg.Struct {
				panic(fmt.Sprintf("vm: instruction %d copies %s into %s", i, src.Reg.TypeName, dst.Reg.TypeName))
			}
			count := 0
			switch {
			case src.Offset >= 0:
				count = 1
			case src.Kind == HandleDirect:
				count = src.Reg.Count
			}
			c.handles = append(c.handles, src, dst, countHandle(count), typeHandle(src.Reg.Type))
			if src.Reg.Type == ElementStruct {
				c.handles = append(c.handles, structHandle(src.Reg.Struct))
			}

		case in.Op.IsUnary(), in.Op.IsComparison(), in.Op.IsConditional(), in.Op == bytecode.OpBeginBlock:
			for _, op := range in.Operands {
				c.handles = append(c.handles, resolve(op))
			}
		}
	}
}

// forInstruction returns the handles of instruction i.
func (c *handleCache) forInstruction(i int) []Handle {
	end := len(c.handles)
	if i+1 < len(c.first) {
		end = c.first[i+1]
	}
	return c.handles[c.first[i]:end]
}
