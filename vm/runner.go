package vm

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when another runner holds the VM.
	ErrBusy = errors.New("vm: already running")

	// ErrEntryNotFound is returned for an unknown entry name.
	ErrEntryNotFound = errors.New("vm: entry not found")
)

// ---------------------------------------------------------------------------
// Runner: the exclusive right to run a VM
// ---------------------------------------------------------------------------

// Runner is the token for running a VM. At most one exists per VM at a
// time; Initialize, Execute, Save and Load all go through it.
type Runner struct {
	vm *VM
}

// Acquire takes the run token.
func (v *VM) Acquire() (*Runner, error) {
	if !v.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	return &Runner{vm: v}, nil
}

// Release returns the token. Releasing twice is a no-op.
func (r *Runner) Release() {
	if r.vm == nil {
		return
	}
	r.vm.busy.Store(false)
	r.vm = nil
}

// VM returns the VM this runner holds.
func (r *Runner) VM() *VM {
	r.check()
	return r.vm
}

func (r *Runner) check() {
	if r.vm == nil {
		panic("vm: runner used after Release")
	}
}

// Initialize runs the priming pass. A queued state copy is applied first.
func (r *Runner) Initialize(args ...any) Result {
	r.check()
	v := r.vm
	v.clearHalt()
	v.applyPending()
	ctx := NewContext(StateInit, args...)
	ctx.externals = v.externVars
	return v.initialize(ctx)
}

// Execute runs the byte code from the named entry; an empty name starts
// at instruction 0. While the debugger holds the VM halted, Execute keeps
// returning Halted until the debugger resumes or steps, and a queued state
// copy waits for the halted run to end.
func (r *Runner) Execute(entry string, args ...any) (Result, error) {
	r.check()
	v := r.vm
	if v.halted != nil {
		return Halted, nil
	}
	v.applyPending()
	start := 0
	if entry != "" {
		i, ok := v.byteCode.FindEntry(entry)
		if !ok {
			return Failed, fmt.Errorf("%w: %q", ErrEntryNotFound, entry)
		}
		start = i
	}
	ctx := NewContext(StateUpdate, args...)
	ctx.PC = start
	ctx.externals = v.externVars
	v.visits = nil
	if v.debugger != nil {
		v.debugger.beginRun(ctx)
	}
	return v.run(ctx), nil
}

// Resume continues a halted run. StepNone runs until the next breakpoint;
// the step modes halt again where the call stack diverges.
func (r *Runner) Resume(mode StepMode) Result {
	r.check()
	v := r.vm
	if v.halted == nil || v.debugger == nil {
		vmLog.Warningf("%s: resume: not halted", v.name)
		return Failed
	}
	ctx := v.halted
	v.halted = nil
	v.debugger.resume(mode)
	return v.run(ctx)
}

// ---------------------------------------------------------------------------
// Convenience wrappers
// ---------------------------------------------------------------------------

// Initialize acquires the VM, runs the priming pass and releases it. It
// reports Failed when the VM is busy.
func (v *VM) Initialize(args ...any) Result {
	r, err := v.Acquire()
	if err != nil {
		vmLog.Warningf("%s: initialize: %s", v.name, err)
		return Failed
	}
	defer r.Release()
	return r.Initialize(args...)
}

// Execute acquires the VM, runs the named entry and releases it. It
// reports Failed when the VM is busy or the entry does not exist.
func (v *VM) Execute(entry string, args ...any) Result {
	r, err := v.Acquire()
	if err != nil {
		vmLog.Warningf("%s: execute: %s", v.name, err)
		return Failed
	}
	defer r.Release()
	res, err := r.Execute(entry, args...)
	if err != nil {
		vmLog.Warningf("%s: execute: %s", v.name, err)
	}
	return res
}

// Resume continues a halted run until the next breakpoint.
func (v *VM) Resume() Result { return v.resume(StepNone) }

// StepOver halts at the next instruction outside the halted node.
func (v *VM) StepOver() Result { return v.resume(StepOver) }

// StepInto halts at the next instruction of a different node.
func (v *VM) StepInto() Result { return v.resume(StepInto) }

// StepOut halts at the next instruction outside the halted node's parent.
func (v *VM) StepOut() Result { return v.resume(StepOut) }

func (v *VM) resume(mode StepMode) Result {
	r, err := v.Acquire()
	if err != nil {
		vmLog.Warningf("%s: resume: %s", v.name, err)
		return Failed
	}
	defer r.Release()
	return r.Resume(mode)
}
