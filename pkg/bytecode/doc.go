// Package bytecode defines the instruction stream executed by the regvm
// interpreter.
//
// The format is designed for:
//   - Register addressing (every operand names a container, a register and
//     optionally one element of it)
//   - Pre-resolution (operands never change once loaded, so a VM resolves
//     them once into handles and reuses them across runs)
//   - Easy serialization (every type carries CBOR tags and is stored as part
//     of a VM image)
//
// # Architecture Overview
//
//   - Opcodes: one Execute opcode carrying its operand list, memory
//     mutations (Copy, Zero, BoolFalse, BoolTrue, Increment, Decrement),
//     comparisons (Equals, NotEquals), absolute/forward/backward jumps with
//     conditional forms, BeginBlock/EndBlock slice scopes, and Exit.
//
//   - Operand: a (container, register index, offset) triple. Offset NoOffset
//     addresses the whole register.
//
//   - ByteCode: the ordered instructions, named entry points, and optional
//     per-instruction provenance (the stack of node identities that emitted
//     each instruction) used by the debugger for stepping.
//
// # Jumps
//
// JumpAbsolute k continues at k, JumpForward k at pc+k and JumpBackward k at
// pc-k. The conditional forms read a bool operand and jump when it equals
// the instruction's Expect flag. A target outside the stream ends the run.
//
// # Slices
//
// BeginBlock pushes a slice frame read from its count and index operands;
// EndBlock pops it. The innermost frame's index decides whether a Copy into
// growable memory resets the target (index 0) or appends to it.
package bytecode
