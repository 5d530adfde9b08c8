package vm

import (
	"fmt"

	"github.com/chazu/regvm/pkg/bytecode"
)

// Result is the outcome of a run.
type Result uint8

const (
	// Succeeded: the run reached Exit, the end of the byte code, or a jump
	// out of range.
	Succeeded Result = iota

	// Failed: the run hit an invalid opcode or could not start.
	Failed

	// Halted: the debugger stopped the run at a breakpoint.
	Halted
)

// String returns a human-readable name for Result.
func (r Result) String() string {
	switch r {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Halted:
		return "halted"
	default:
		return fmt.Sprintf("Result(%d)", r)
	}
}

// ---------------------------------------------------------------------------
// Dispatch loops
// ---------------------------------------------------------------------------

// prepare rebuilds the handle cache when the byte code or any container
// changed identity.
func (v *VM) prepare() {
	mem := v.containers()
	if v.cache.valid(v.byteCode, mem) {
		return
	}
	v.cache.build(v.byteCode, mem)
	vmLog.Debugf("%s: handle cache rebuilt (%d instructions, %d handles)", v.name, v.byteCode.Len(), len(v.cache.handles))
}

// initialize is the priming pass: every instruction once, in order, with
// Jump*, BeginBlock, EndBlock and Exit ignored.
func (v *VM) initialize(ctx *Context) Result {
	v.prepare()
	for pc := 0; pc < v.byteCode.Len(); pc++ {
		ctx.PC = pc
		in := v.byteCode.At(pc)
		h := v.cache.forInstruction(pc)
		switch {
		case in.Op == bytecode.OpExecute:
			v.execute(ctx, pc, in)
		case in.Op == bytecode.OpCopy:
			copyHandles(h[0], h[1], int(h[2].Scalar), ctx.SliceIndex())
		case in.Op.IsUnary():
			unary(in.Op, h[0], ctx.SliceIndex())
		case in.Op.IsComparison():
			compare(in.Op, h, ctx.SliceIndex())
		case in.Op.IsJump(), in.Op == bytecode.OpBeginBlock, in.Op == bytecode.OpEndBlock, in.Op == bytecode.OpExit:
		default:
			vmLog.Errorf("%s: invalid opcode 0x%02X at %d", v.name, byte(in.Op), pc)
			return Failed
		}
	}
	return Succeeded
}

// run executes from ctx.PC until Exit, the end of the byte code, a jump
// out of range, or a breakpoint.
func (v *VM) run(ctx *Context) Result {
	v.prepare()
	bc := v.byteCode
	n := bc.Len()
	if v.opts.RecordVisits && len(v.visits) != n {
		v.visits = make([]int, n)
	}

	for ctx.PC >= 0 && ctx.PC < n {
		pc := ctx.PC
		if v.debugger != nil && v.debugger.check(v, ctx) {
			v.halted = ctx
			return Halted
		}
		if v.opts.RecordVisits {
			v.visits[pc]++
		}

		in := bc.At(pc)
		h := v.cache.forInstruction(pc)
		slice := ctx.SliceIndex()
		next := pc + 1

		switch in.Op {
		case bytecode.OpExecute:
			v.execute(ctx, pc, in)

		case bytecode.OpCopy:
			copyHandles(h[0], h[1], int(h[2].Scalar), slice)

		case bytecode.OpZero, bytecode.OpBoolFalse, bytecode.OpBoolTrue, bytecode.OpIncrement, bytecode.OpDecrement:
			unary(in.Op, h[0], slice)

		case bytecode.OpEquals, bytecode.OpNotEquals:
			compare(in.Op, h, slice)

		case bytecode.OpJumpAbsolute:
			next = in.Arg
		case bytecode.OpJumpForward:
			next = pc + in.Arg
		case bytecode.OpJumpBackward:
			next = pc - in.Arg

		case bytecode.OpJumpAbsoluteIf:
			if readBool(h[0], slice) == in.Expect {
				next = in.Arg
			}
		case bytecode.OpJumpForwardIf:
			if readBool(h[0], slice) == in.Expect {
				next = pc + in.Arg
			}
		case bytecode.OpJumpBackwardIf:
			if readBool(h[0], slice) == in.Expect {
				next = pc - in.Arg
			}

		case bytecode.OpBeginBlock:
			ctx.BeginSlice(int(readInt32(h[0], slice)), int(readInt32(h[1], slice)))
		case bytecode.OpEndBlock:
			ctx.EndSlice()

		case bytecode.OpExit:
			v.endRun(ctx)
			v.notifyExit(ctx)
			return Succeeded

		default:
			vmLog.Errorf("%s: invalid opcode 0x%02X at %d", v.name, byte(in.Op), pc)
			v.endRun(ctx)
			return Failed
		}

		ctx.PC = next
	}

	if ctx.PC != n {
		vmLog.Debugf("%s: jump to %d left the byte code, run ends", v.name, ctx.PC)
	}
	v.endRun(ctx)
	return Succeeded
}

// execute calls a native function, once per slice when any input operand
// is a growable whole register. Empty growable inputs mean no calls; the
// outputs are still reset.
func (v *VM) execute(ctx *Context, pc int, in *bytecode.Instruction) {
	if in.Function < 0 || in.Function >= len(v.functions) {
		panic(fmt.Sprintf("vm: instruction %d calls function %d of %d", pc, in.Function, len(v.functions)))
	}
	fn := v.functions[in.Function]
	args := v.cache.args[pc]
	handles := v.cache.handles

	count, growable := 0, false
	for k, at := range args {
		h := handles[at]
		if fn.direction(k) == Output || !h.IsGrowable() || h.Offset >= 0 {
			continue
		}
		growable = true
		count = max(count, h.sliceCount())
	}

	call := &Call{ctx: ctx, info: fn, handles: handles, args: args}
	if !growable {
		cur := ctx.CurrentSlice()
		call.slice, call.count = cur.Index, cur.Count
		if call.slice == 0 {
			resetOutputs(fn, handles, args)
		}
		fn.Fn(call)
		return
	}

	call.count = count
	ctx.BeginSlice(count, 0)
	resetOutputs(fn, handles, args)
	for i := 0; i < count; i++ {
		ctx.setSliceIndex(i)
		call.slice = i
		fn.Fn(call)
	}
	ctx.EndSlice()
}

// resetOutputs empties growable whole-register outputs before slice 0.
func resetOutputs(fn *FunctionInfo, handles []Handle, args []int) {
	for k, at := range args {
		h := handles[at]
		if fn.direction(k) != Output || h.Offset >= 0 {
			continue
		}
		switch h.Kind {
		case HandleDynamic:
			h.Reg.data.Reset()
		case HandleNested:
			h.Reg.ResetSlices()
		}
	}
}

// ---------------------------------------------------------------------------
// Single-handle mutations and comparisons
// ---------------------------------------------------------------------------

func unary(op bytecode.Opcode, h Handle, slice int) {
	e := h.Element()
	a := h.writable(slice, e)
	switch op {
	case bytecode.OpZero:
		a.Zero(e)
	case bytecode.OpBoolFalse:
		a.SetBool(e, false)
	case bytecode.OpBoolTrue:
		a.SetBool(e, true)
	case bytecode.OpIncrement:
		a.SetInt32(e, a.Int32(e)+1)
	case bytecode.OpDecrement:
		a.SetInt32(e, a.Int32(e)-1)
	}
}

func compare(op bytecode.Opcode, h []Handle, slice int) {
	eq := compareHandles(h[0], h[1], slice)
	if op == bytecode.OpNotEquals {
		eq = !eq
	}
	e := h[2].Element()
	h[2].writable(slice, e).SetBool(e, eq)
}

func readBool(h Handle, slice int) bool {
	a, e := h.Array(slice), h.Element()
	if e >= a.Len() {
		return false
	}
	return a.Bool(e)
}

func readInt32(h Handle, slice int) int32 {
	a, e := h.Array(slice), h.Element()
	if e >= a.Len() {
		return 0
	}
	return a.Int32(e)
}
