package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the byte code.
func (b *ByteCode) Disassemble() string {
	return b.DisassembleWithNames("", nil)
}

// DisassembleWithNames returns a listing with a name header. functionName,
// when non-nil, resolves Execute function indices for display.
func (b *ByteCode) DisassembleWithNames(name string, functionName func(int) string) string {
	var sb strings.Builder

	// Header
	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; regvm bytecode v%d, %d instructions\n", b.Version, b.Len()))

	// Entries
	if len(b.Entries) > 0 {
		sb.WriteString("; Entries:\n")
		for _, e := range b.Entries {
			sb.WriteString(fmt.Sprintf(";   %-16s @%04d\n", e.Name, e.Index))
		}
	}
	sb.WriteString("\n")

	for i, in := range b.Instructions {
		line := b.disassembleInstruction(in, i, functionName)
		if stack := b.CallStack(i); len(stack) > 0 {
			sb.WriteString(fmt.Sprintf("%04d  %-40s ; %s\n", i, line, strings.Join(stack, " > ")))
		} else {
			sb.WriteString(fmt.Sprintf("%04d  %s\n", i, line))
		}
	}

	return sb.String()
}

// disassembleInstruction formats a single instruction at index i.
func (b *ByteCode) disassembleInstruction(in Instruction, i int, functionName func(int) string) string {
	switch in.Op {
	case OpExecute:
		fn := fmt.Sprintf("%d", in.Function)
		if functionName != nil {
			if n := functionName(in.Function); n != "" {
				fn = n
			}
		}
		return fmt.Sprintf("EXECUTE %s%s", fn, formatOperands(in.Operands))

	case OpJumpAbsolute:
		return fmt.Sprintf("JUMP_ABSOLUTE %d", in.Arg)
	case OpJumpForward:
		return fmt.Sprintf("JUMP_FORWARD %d ; -> %04d", in.Arg, i+in.Arg)
	case OpJumpBackward:
		return fmt.Sprintf("JUMP_BACKWARD %d ; -> %04d", in.Arg, i-in.Arg)

	case OpJumpAbsoluteIf:
		return fmt.Sprintf("JUMP_ABSOLUTE_IF %d %v==%t", in.Arg, in.Operands[0], in.Expect)
	case OpJumpForwardIf:
		return fmt.Sprintf("JUMP_FORWARD_IF %d %v==%t ; -> %04d", in.Arg, in.Operands[0], in.Expect, i+in.Arg)
	case OpJumpBackwardIf:
		return fmt.Sprintf("JUMP_BACKWARD_IF %d %v==%t ; -> %04d", in.Arg, in.Operands[0], in.Expect, i-in.Arg)

	default:
		return in.Op.String() + formatOperands(in.Operands)
	}
}

func formatOperands(ops []Operand) string {
	if len(ops) == 0 {
		return ""
	}
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = op.String()
	}
	return " " + strings.Join(parts, ", ")
}
