package bytecode

import "fmt"

// ContainerKind names the memory container an operand addresses.
type ContainerKind uint8

const (
	// ContainerWork is the instance-owned scratch memory.
	ContainerWork ContainerKind = iota

	// ContainerLiteral holds constants; it may be shared between instances.
	ContainerLiteral

	// ContainerDebug holds watch values written for the editor.
	ContainerDebug

	// ContainerExternal bridges host-owned variables.
	ContainerExternal

	// ContainerCount is the number of container kinds.
	ContainerCount
)

// String returns a human-readable name for ContainerKind.
func (k ContainerKind) String() string {
	switch k {
	case ContainerWork:
		return "Work"
	case ContainerLiteral:
		return "Literal"
	case ContainerDebug:
		return "Debug"
	case ContainerExternal:
		return "External"
	default:
		return fmt.Sprintf("ContainerKind(%d)", k)
	}
}

// NoOffset marks an operand that addresses its whole register.
const NoOffset = -1

// Operand addresses a register inside a memory container, optionally
// narrowed to a single element.
type Operand struct {
	Container ContainerKind `cbor:"1,keyasint"`
	Index     int           `cbor:"2,keyasint"`
	Offset    int           `cbor:"3,keyasint"`
}

// NewOperand returns an operand addressing a whole register.
func NewOperand(kind ContainerKind, index int) Operand {
	return Operand{Container: kind, Index: index, Offset: NoOffset}
}

// Work returns an operand for a Work register.
func Work(index int) Operand { return NewOperand(ContainerWork, index) }

// Literal returns an operand for a Literal register.
func Literal(index int) Operand { return NewOperand(ContainerLiteral, index) }

// Debug returns an operand for a Debug register.
func Debug(index int) Operand { return NewOperand(ContainerDebug, index) }

// External returns an operand for an external variable.
func External(index int) Operand { return NewOperand(ContainerExternal, index) }

// At narrows the operand to a single element.
func (o Operand) At(offset int) Operand {
	o.Offset = offset
	return o
}

// HasOffset reports whether the operand addresses a single element.
func (o Operand) HasOffset() bool {
	return o.Offset >= 0
}

// String formats the operand as Container[index] or Container[index].offset.
func (o Operand) String() string {
	if o.HasOffset() {
		return fmt.Sprintf("%s[%d].%d", o.Container, o.Index, o.Offset)
	}
	return fmt.Sprintf("%s[%d]", o.Container, o.Index)
}
