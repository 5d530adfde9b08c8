package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Calls (0x00-0x0F)
	// ========================================================================

	OpExecute Opcode = 0x00 // Call native function: Execute <fn> <operands...>

	// ========================================================================
	// Memory (0x10-0x1F)
	// ========================================================================

	OpCopy      Opcode = 0x10 // Copy source register to target: Copy <src> <dst>
	OpZero      Opcode = 0x11 // Reset register to zero value: Zero <op>
	OpBoolFalse Opcode = 0x12 // Store false: BoolFalse <op>
	OpBoolTrue  Opcode = 0x13 // Store true: BoolTrue <op>
	OpIncrement Opcode = 0x14 // int32 += 1: Increment <op>
	OpDecrement Opcode = 0x15 // int32 -= 1: Decrement <op>

	// ========================================================================
	// Comparison (0x20-0x2F)
	// ========================================================================

	OpEquals    Opcode = 0x20 // Result = A == B: Equals <a> <b> <result>
	OpNotEquals Opcode = 0x21 // Result = A != B: NotEquals <a> <b> <result>

	// ========================================================================
	// Control flow (0x30-0x3F)
	// ========================================================================

	OpJumpAbsolute   Opcode = 0x30 // pc = k
	OpJumpForward    Opcode = 0x31 // pc = pc + k
	OpJumpBackward   Opcode = 0x32 // pc = pc - k
	OpJumpAbsoluteIf Opcode = 0x33 // pc = k if cond == expected
	OpJumpForwardIf  Opcode = 0x34 // pc = pc + k if cond == expected
	OpJumpBackwardIf Opcode = 0x35 // pc = pc - k if cond == expected

	// ========================================================================
	// Slicing (0x40-0x4F)
	// ========================================================================

	OpBeginBlock Opcode = 0x40 // Push slice frame: BeginBlock <count> <index>
	OpEndBlock   Opcode = 0x41 // Pop slice frame

	// ========================================================================
	// Termination (0xF0-0xFF)
	// ========================================================================

	OpExit    Opcode = 0xF0 // End the run successfully
	OpInvalid Opcode = 0xFF // Never emitted by a valid compiler
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name     string // Human-readable name
	Operands int    // Fixed operand count (-1 = variable)
	Jump     bool   // Alters the program counter
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpExecute: {"EXECUTE", -1, false},

	OpCopy:      {"COPY", 2, false},
	OpZero:      {"ZERO", 1, false},
	OpBoolFalse: {"BOOL_FALSE", 1, false},
	OpBoolTrue:  {"BOOL_TRUE", 1, false},
	OpIncrement: {"INCREMENT", 1, false},
	OpDecrement: {"DECREMENT", 1, false},

	OpEquals:    {"EQUALS", 3, false},
	OpNotEquals: {"NOT_EQUALS", 3, false},

	OpJumpAbsolute:   {"JUMP_ABSOLUTE", 0, true},
	OpJumpForward:    {"JUMP_FORWARD", 0, true},
	OpJumpBackward:   {"JUMP_BACKWARD", 0, true},
	OpJumpAbsoluteIf: {"JUMP_ABSOLUTE_IF", 1, true},
	OpJumpForwardIf:  {"JUMP_FORWARD_IF", 1, true},
	OpJumpBackwardIf: {"JUMP_BACKWARD_IF", 1, true},

	OpBeginBlock: {"BEGIN_BLOCK", 2, false},
	OpEndBlock:   {"END_BLOCK", 0, false},

	OpExit: {"EXIT", 0, false},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a placeholder info for unknown opcodes.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op)), Operands: 0}
}

// String returns the human-readable name of the opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// IsValid reports whether op is a known opcode.
func (op Opcode) IsValid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// IsJump returns true if the opcode is a jump instruction.
func (op Opcode) IsJump() bool {
	return GetOpcodeInfo(op).Jump
}

// IsConditional returns true for the JumpIf family.
func (op Opcode) IsConditional() bool {
	return op == OpJumpAbsoluteIf || op == OpJumpForwardIf || op == OpJumpBackwardIf
}

// IsUnary returns true for single-operand mutations.
func (op Opcode) IsUnary() bool {
	return op >= OpZero && op <= OpDecrement
}

// IsComparison returns true for Equals and NotEquals.
func (op Opcode) IsComparison() bool {
	return op == OpEquals || op == OpNotEquals
}

// AllOpcodes returns all defined opcodes in ascending order.
func AllOpcodes() []Opcode {
	ops := make([]Opcode, 0, len(opcodeInfoTable))
	for op := 0; op < 256; op++ {
		if _, ok := opcodeInfoTable[Opcode(op)]; ok {
			ops = append(ops, Opcode(op))
		}
	}
	return ops
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
