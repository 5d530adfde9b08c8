package bytecode

import (
	"fmt"
	"slices"
)

// BytecodeVersion is the current bytecode format version.
// Increment when making incompatible changes to the format.
const BytecodeVersion uint16 = 1

// Instruction is a single decoded instruction. Which payload fields are
// meaningful depends on Op:
//
//	Execute              Function, Operands (one per argument)
//	Copy                 Operands[0] = source, Operands[1] = target
//	Zero..Decrement      Operands[0]
//	Equals, NotEquals    Operands[0] = A, Operands[1] = B, Operands[2] = result
//	Jump*                Arg = target (absolute) or distance (forward/backward)
//	JumpIf*              Arg, Operands[0] = condition, Expect
//	BeginBlock           Operands[0] = count, Operands[1] = index
type Instruction struct {
	Op       Opcode    `cbor:"1,keyasint"`
	Function int       `cbor:"2,keyasint,omitempty"`
	Operands []Operand `cbor:"3,keyasint,omitempty"`
	Arg      int       `cbor:"4,keyasint,omitempty"`
	Expect   bool      `cbor:"5,keyasint,omitempty"`
}

// String renders the instruction for listings and log lines.
func (in Instruction) String() string {
	switch {
	case in.Op == OpExecute:
		return fmt.Sprintf("%s fn=%d %v", in.Op, in.Function, in.Operands)
	case in.Op.IsConditional():
		return fmt.Sprintf("%s %d if %v == %t", in.Op, in.Arg, in.Operands[0], in.Expect)
	case in.Op.IsJump():
		return fmt.Sprintf("%s %d", in.Op, in.Arg)
	case len(in.Operands) > 0:
		return fmt.Sprintf("%s %v", in.Op, in.Operands)
	default:
		return in.Op.String()
	}
}

// Entry names the instruction a run starts from.
type Entry struct {
	Name  string `cbor:"1,keyasint"`
	Index int    `cbor:"2,keyasint"`
}

// ByteCode is an ordered, addressable instruction stream with named entry
// points and per-instruction provenance for the debugger.
type ByteCode struct {
	Version      uint16        `cbor:"1,keyasint"`
	Instructions []Instruction `cbor:"2,keyasint"`
	Entries      []Entry       `cbor:"3,keyasint,omitempty"`

	// Provenance[i] lists the node identities that produced instruction i,
	// outermost first. Optional; shorter than Instructions when absent.
	Provenance [][]string `cbor:"4,keyasint,omitempty"`
}

// NewByteCode creates an empty byte code with the current version.
func NewByteCode() *ByteCode {
	return &ByteCode{
		Version:      BytecodeVersion,
		Instructions: make([]Instruction, 0, 32),
	}
}

// Len returns the number of instructions.
func (b *ByteCode) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Instructions)
}

// At returns the instruction at index i.
// Panics if the index is out of bounds.
func (b *ByteCode) At(i int) *Instruction {
	return &b.Instructions[i]
}

// Add appends an instruction and returns its index.
func (b *ByteCode) Add(in Instruction) int {
	b.Instructions = append(b.Instructions, in)
	return len(b.Instructions) - 1
}

// AddExecute emits a native function call.
func (b *ByteCode) AddExecute(function int, operands ...Operand) int {
	return b.Add(Instruction{Op: OpExecute, Function: function, Operands: operands})
}

// AddCopy emits a register copy from src to dst.
func (b *ByteCode) AddCopy(src, dst Operand) int {
	return b.Add(Instruction{Op: OpCopy, Operands: []Operand{src, dst}})
}

// AddUnary emits one of Zero, BoolFalse, BoolTrue, Increment or Decrement.
func (b *ByteCode) AddUnary(op Opcode, target Operand) int {
	if !op.IsUnary() {
		panic(fmt.Sprintf("bytecode: %s is not a unary opcode", op))
	}
	return b.Add(Instruction{Op: op, Operands: []Operand{target}})
}

// AddZero emits Zero.
func (b *ByteCode) AddZero(target Operand) int { return b.AddUnary(OpZero, target) }

// AddIncrement emits Increment.
func (b *ByteCode) AddIncrement(target Operand) int { return b.AddUnary(OpIncrement, target) }

// AddDecrement emits Decrement.
func (b *ByteCode) AddDecrement(target Operand) int { return b.AddUnary(OpDecrement, target) }

// AddComparison emits Equals or NotEquals.
func (b *ByteCode) AddComparison(op Opcode, a, bOp, result Operand) int {
	if !op.IsComparison() {
		panic(fmt.Sprintf("bytecode: %s is not a comparison opcode", op))
	}
	return b.Add(Instruction{Op: op, Operands: []Operand{a, bOp, result}})
}

// AddJump emits an unconditional jump.
func (b *ByteCode) AddJump(op Opcode, arg int) int {
	if !op.IsJump() || op.IsConditional() {
		panic(fmt.Sprintf("bytecode: %s is not an unconditional jump", op))
	}
	return b.Add(Instruction{Op: op, Arg: arg})
}

// AddJumpIf emits a conditional jump taken when cond equals expect.
func (b *ByteCode) AddJumpIf(op Opcode, arg int, cond Operand, expect bool) int {
	if !op.IsConditional() {
		panic(fmt.Sprintf("bytecode: %s is not a conditional jump", op))
	}
	return b.Add(Instruction{Op: op, Arg: arg, Operands: []Operand{cond}, Expect: expect})
}

// PatchJump rewrites the argument of the jump at index at.
func (b *ByteCode) PatchJump(at, arg int) {
	if !b.Instructions[at].Op.IsJump() {
		panic(fmt.Sprintf("bytecode: instruction %d is not a jump", at))
	}
	b.Instructions[at].Arg = arg
}

// AddBeginBlock emits BeginBlock driven by the count and index registers.
func (b *ByteCode) AddBeginBlock(count, index Operand) int {
	return b.Add(Instruction{Op: OpBeginBlock, Operands: []Operand{count, index}})
}

// AddEndBlock emits EndBlock.
func (b *ByteCode) AddEndBlock() int {
	return b.Add(Instruction{Op: OpEndBlock})
}

// AddExit emits Exit.
func (b *ByteCode) AddExit() int {
	return b.Add(Instruction{Op: OpExit})
}

// AddEntry registers name as starting at the next emitted instruction.
// Re-adding an existing name moves it.
func (b *ByteCode) AddEntry(name string) {
	for i := range b.Entries {
		if b.Entries[i].Name == name {
			b.Entries[i].Index = len(b.Instructions)
			return
		}
	}
	b.Entries = append(b.Entries, Entry{Name: name, Index: len(b.Instructions)})
}

// FindEntry returns the start index of the named entry.
func (b *ByteCode) FindEntry(name string) (int, bool) {
	for _, e := range b.Entries {
		if e.Name == name {
			return e.Index, true
		}
	}
	return 0, false
}

// EntryNames returns the entry names in declaration order.
func (b *ByteCode) EntryNames() []string {
	names := make([]string, len(b.Entries))
	for i, e := range b.Entries {
		names[i] = e.Name
	}
	return names
}

// SetProvenance records the call stack of node identities for instruction i.
func (b *ByteCode) SetProvenance(i int, stack ...string) {
	for len(b.Provenance) <= i {
		b.Provenance = append(b.Provenance, nil)
	}
	b.Provenance[i] = stack
}

// CallStack returns the provenance of instruction i, or nil.
func (b *ByteCode) CallStack(i int) []string {
	if b == nil || i < 0 || i >= len(b.Provenance) {
		return nil
	}
	return b.Provenance[i]
}

// FirstInstructionFor returns the first instruction whose provenance
// contains node, and the depth at which it appears.
func (b *ByteCode) FirstInstructionFor(node string) (index, depth int, ok bool) {
	for i, stack := range b.Provenance {
		if d := slices.Index(stack, node); d >= 0 {
			return i, d, true
		}
	}
	return 0, 0, false
}

// Clone returns a deep copy of the byte code.
func (b *ByteCode) Clone() *ByteCode {
	if b == nil {
		return nil
	}
	c := &ByteCode{
		Version:      b.Version,
		Instructions: make([]Instruction, len(b.Instructions)),
		Entries:      slices.Clone(b.Entries),
	}
	for i, in := range b.Instructions {
		in.Operands = slices.Clone(in.Operands)
		c.Instructions[i] = in
	}
	if b.Provenance != nil {
		c.Provenance = make([][]string, len(b.Provenance))
		for i, s := range b.Provenance {
			c.Provenance[i] = slices.Clone(s)
		}
	}
	return c
}

// Validate checks the structural soundness of the stream: known opcodes,
// operand counts, entry ranges, and that every operand resolves. exists
// reports whether a register is present in a container.
func (b *ByteCode) Validate(exists func(op Operand) bool) error {
	for i, in := range b.Instructions {
		if !in.Op.IsValid() {
			return fmt.Errorf("instruction %d: invalid opcode 0x%02X", i, byte(in.Op))
		}
		if want := GetOpcodeInfo(in.Op).Operands; want >= 0 && len(in.Operands) != want {
			return fmt.Errorf("instruction %d: %s wants %d operands, has %d", i, in.Op, want, len(in.Operands))
		}
		if in.Function < 0 {
			return fmt.Errorf("instruction %d: negative function index %d", i, in.Function)
		}
		if exists == nil {
			continue
		}
		for _, op := range in.Operands {
			if op.Container >= ContainerCount || !exists(op) {
				return fmt.Errorf("instruction %d: unresolvable operand %v", i, op)
			}
		}
	}
	for _, e := range b.Entries {
		if e.Index < 0 || e.Index > len(b.Instructions) {
			return fmt.Errorf("entry %q: index %d out of range", e.Name, e.Index)
		}
	}
	return nil
}
