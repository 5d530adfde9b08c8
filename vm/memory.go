package vm

import (
	"fmt"

	"github.com/chazu/regvm/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Memory: the container interface consumed by the interpreter
// ---------------------------------------------------------------------------

// Memory is a named group of registers addressed by operands.
type Memory interface {
	// Kind identifies which operands address this container.
	Kind() bytecode.ContainerKind

	// Len returns the number of registers.
	Len() int

	// Register returns register i, or nil if there is none.
	Register(i int) *Register

	// Handle resolves an operand to a ready-to-use handle. It panics if
	// the operand does not name a register of this container.
	Handle(op bytecode.Operand) Handle

	// Reset restores every owned register to its initial zero state.
	Reset()

	// Empty removes every register.
	Empty()
}

// Container is the standard Memory implementation.
type Container struct {
	kind      bytecode.ContainerKind
	registers []*Register
	byName    map[string]int
}

// NewContainer creates an empty container of the given kind.
func NewContainer(kind bytecode.ContainerKind) *Container {
	return &Container{kind: kind, byName: make(map[string]int)}
}

// Kind implements Memory.
func (c *Container) Kind() bytecode.ContainerKind { return c.kind }

// Len implements Memory.
func (c *Container) Len() int { return len(c.registers) }

// Register implements Memory.
func (c *Container) Register(i int) *Register {
	if i < 0 || i >= len(c.registers) {
		return nil
	}
	return c.registers[i]
}

// Registers returns the registers in index order.
func (c *Container) Registers() []*Register { return c.registers }

// Find returns the index of the named register.
func (c *Container) Find(name string) (int, bool) {
	i, ok := c.byName[name]
	return i, ok
}

// AddRegister declares a new register and returns its index.
func (c *Container) AddRegister(spec RegisterSpec) (int, error) {
	if spec.Name == "" {
		spec.Name = fmt.Sprintf("%s%d", c.kind, len(c.registers))
	}
	if _, exists := c.byName[spec.Name]; exists {
		return 0, fmt.Errorf("%s: register %q already exists", c.kind, spec.Name)
	}
	r, err := newRegister(spec)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", c.kind, err)
	}
	return c.add(r), nil
}

// MustAddRegister is like AddRegister but panics on error.
func (c *Container) MustAddRegister(spec RegisterSpec) int {
	i, err := c.AddRegister(spec)
	if err != nil {
		panic(err)
	}
	return i
}

func (c *Container) add(r *Register) int {
	c.registers = append(c.registers, r)
	c.byName[r.Name] = len(c.registers) - 1
	return len(c.registers) - 1
}

// Handle implements Memory.
func (c *Container) Handle(op bytecode.Operand) Handle {
	if op.Container != c.kind {
		panic(fmt.Sprintf("vm: operand %v resolved against %s memory", op, c.kind))
	}
	r := c.Register(op.Index)
	if r == nil {
		panic(fmt.Sprintf("vm: operand %v names no register (%s has %d)", op, c.kind, len(c.registers)))
	}
	if op.HasOffset() && r.Growth == Fixed && op.Offset >= r.Count {
		panic(fmt.Sprintf("vm: operand %v offset beyond %d elements", op, r.Count))
	}
	return newDataHandle(r, op.Offset)
}

// Operand returns a whole-register operand for the named register.
func (c *Container) Operand(name string) (bytecode.Operand, bool) {
	i, ok := c.byName[name]
	if !ok {
		return bytecode.Operand{}, false
	}
	return bytecode.NewOperand(c.kind, i), true
}

// Copy copies the register addressed by srcOp in src into the register
// addressed by dstOp in c, honouring element type semantics. Growable
// targets are replaced, fixed targets are overwritten up to their size.
func (c *Container) Copy(dstOp bytecode.Operand, src Memory, srcOp bytecode.Operand) error {
	dst := c.Register(dstOp.Index)
	from := src.Register(srcOp.Index)
	if dst == nil || from == nil {
		return fmt.Errorf("copy %v -> %v: unresolvable operand", srcOp, dstOp)
	}
	if dst.Type != from.Type || dst.Struct != from.Struct {
		return fmt.Errorf("copy %v -> %v: %s into %s", srcOp, dstOp, from.TypeName, dst.TypeName)
	}
	copyHandles(newDataHandle(from, srcOp.Offset), newDataHandle(dst, dstOp.Offset), 0, 0)
	return nil
}

// Reset implements Memory.
func (c *Container) Reset() {
	for _, r := range c.registers {
		r.reset()
	}
}

// Empty implements Memory.
func (c *Container) Empty() {
	c.registers = nil
	c.byName = make(map[string]int)
}

// Clone returns a deep copy. External registers keep pointing at the
// host's storage.
func (c *Container) Clone() *Container {
	n := NewContainer(c.kind)
	for _, r := range c.registers {
		n.add(r.clone())
	}
	return n
}

// Equal reports whether both containers hold equal registers.
func (c *Container) Equal(o *Container) bool {
	if c.kind != o.kind || len(c.registers) != len(o.registers) {
		return false
	}
	for i := range c.registers {
		if !c.registers[i].Equal(o.registers[i]) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// External variable bridge
// ---------------------------------------------------------------------------

// ExternalVariable exposes host-owned storage to the VM. The VM addresses
// it like any register but never owns, resizes on Reset, or frees it.
type ExternalVariable struct {
	Name     string
	TypeName string      // built-in type name or struct name
	Struct   *StructType // record descriptor for struct variables
	Size     int         // byte size of one element, zero to skip the check
	Growth   Growth      // Dynamic for host arrays the VM may append to
	Array    *Array      // host storage
	Owner    any         // host container the variable belongs to
}

// NewExternalContainer wraps host variables as an External container.
func NewExternalContainer(vars []ExternalVariable) (*Container, error) {
	c := NewContainer(bytecode.ContainerExternal)
	for _, v := range vars {
		if v.Array == nil {
			return nil, fmt.Errorf("external %s: no storage", v.Name)
		}
		elem, size, err := resolveType(v.TypeName, v.Struct)
		if err != nil {
			return nil, fmt.Errorf("external %s: %w", v.Name, err)
		}
		if v.Array.Type() != elem || v.Array.ElementSize() != size || v.Array.Struct() != v.Struct {
			return nil, fmt.Errorf("external %s: storage does not hold %s", v.Name, v.TypeName)
		}
		if v.Size != 0 && elem == ElementPlain && v.Size != size {
			return nil, fmt.Errorf("external %s: declared size %d, type %s has %d", v.Name, v.Size, v.TypeName, size)
		}
		if v.Growth == Nested {
			return nil, fmt.Errorf("external %s: nested externals are not supported", v.Name)
		}
		if _, exists := c.byName[v.Name]; exists {
			return nil, fmt.Errorf("external %s: duplicate name", v.Name)
		}
		typeName := v.TypeName
		if v.Struct != nil {
			typeName = v.Struct.Name
		}
		c.add(&Register{
			Name:        v.Name,
			TypeName:    typeName,
			Type:        elem,
			ElementSize: size,
			Count:       v.Array.Len(),
			Growth:      v.Growth,
			Struct:      v.Struct,
			data:        v.Array,
			external:    true,
		})
	}
	return c, nil
}
