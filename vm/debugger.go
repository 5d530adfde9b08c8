package vm

import (
	"fmt"
	"slices"
	"sync"

	"github.com/chazu/regvm/pkg/bytecode"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

var debugLog = commonlog.GetLogger("regvm.debug")

// ---------------------------------------------------------------------------
// Debugger: breakpoints and stepping over byte code provenance
// ---------------------------------------------------------------------------

// DebugState is the debugger's state machine.
type DebugState int

const (
	DebugRunning DebugState = iota
	DebugHalted
	DebugResuming
	DebugStepping
)

// String returns a human-readable name for DebugState.
func (s DebugState) String() string {
	switch s {
	case DebugRunning:
		return "running"
	case DebugHalted:
		return "halted"
	case DebugResuming:
		return "resuming"
	case DebugStepping:
		return "stepping"
	default:
		return fmt.Sprintf("DebugState(%d)", s)
	}
}

// StepMode indicates the current stepping mode.
type StepMode int

const (
	StepNone StepMode = iota
	StepOver
	StepInto
	StepOut
)

// String returns a human-readable name for StepMode.
func (m StepMode) String() string {
	switch m {
	case StepNone:
		return "none"
	case StepOver:
		return "over"
	case StepInto:
		return "into"
	case StepOut:
		return "out"
	default:
		return fmt.Sprintf("StepMode(%d)", m)
	}
}

// Breakpoint halts a run at an instruction.
type Breakpoint struct {
	ID            uuid.UUID
	Instruction   int
	Subject       string // node the breakpoint was set on, if any
	Depth         int    // depth of Subject in the instruction's call stack
	ActivateOnHit int    // halt once hit this many times in a run
	Active        bool

	hits      int
	temporary bool
}

// Hits returns how often the breakpoint was reached in the current run.
func (b Breakpoint) Hits() int { return b.hits }

// ---------------------------------------------------------------------------
// Debug events
// ---------------------------------------------------------------------------

// EventKind distinguishes debug events.
type EventKind int

const (
	EventHalted EventKind = iota
	EventResumed
	EventRunEnded
)

// String returns a human-readable name for EventKind.
func (k EventKind) String() string {
	switch k {
	case EventHalted:
		return "halted"
	case EventResumed:
		return "resumed"
	case EventRunEnded:
		return "runEnded"
	default:
		return fmt.Sprintf("EventKind(%d)", k)
	}
}

// DebugEvent reports a debugger state change.
type DebugEvent struct {
	Kind        EventKind
	Run         uuid.UUID // ID of the run's Context
	Instruction int
	Breakpoint  uuid.UUID // zero unless a user breakpoint fired
	Stack       []string  // provenance of Instruction
}

// Debugger is attached to a VM created with Options.Debug.
type Debugger struct {
	mu          sync.Mutex
	state       DebugState
	breakpoints []*Breakpoint
	events      chan DebugEvent

	// halt position and stepping
	haltedAt  int
	haltStack []string
	skipPC    int
	skipOnce  bool
	stepMode  StepMode
}

func newDebugger(buffer int) *Debugger {
	if buffer <= 0 {
		buffer = 16
	}
	return &Debugger{
		events:   make(chan DebugEvent, buffer),
		haltedAt: -1,
	}
}

// Events returns the event channel. Events are dropped when it is full.
func (d *Debugger) Events() <-chan DebugEvent { return d.events }

// State returns the current state.
func (d *Debugger) State() DebugState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// HaltedAt returns the instruction the run is halted at.
func (d *Debugger) HaltedAt() (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.haltedAt, d.state == DebugHalted
}

// HaltedStack returns the provenance of the halted instruction.
func (d *Debugger) HaltedStack() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.haltStack)
}

// ---------------------------------------------------------------------------
// Breakpoint management
// ---------------------------------------------------------------------------

// AddBreakpoint sets a breakpoint that fires on the first hit.
func (d *Debugger) AddBreakpoint(instruction int) uuid.UUID {
	return d.add(&Breakpoint{Instruction: instruction, ActivateOnHit: 1, Active: true})
}

// AddBreakpointForNode sets a breakpoint on the first instruction a node
// produced.
func (d *Debugger) AddBreakpointForNode(bc *bytecode.ByteCode, node string) (uuid.UUID, error) {
	i, depth, ok := bc.FirstInstructionFor(node)
	if !ok {
		return uuid.Nil, fmt.Errorf("debugger: no instruction for node %q", node)
	}
	return d.add(&Breakpoint{Instruction: i, Subject: node, Depth: depth, ActivateOnHit: 1, Active: true}), nil
}

func (d *Debugger) add(bp *Breakpoint) uuid.UUID {
	bp.ID = uuid.New()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.breakpoints = append(d.breakpoints, bp)
	return bp.ID
}

// RemoveBreakpoint deletes a breakpoint.
func (d *Debugger) RemoveBreakpoint(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.breakpoints)
	d.breakpoints = slices.DeleteFunc(d.breakpoints, func(bp *Breakpoint) bool { return bp.ID == id })
	return len(d.breakpoints) != n
}

// ClearBreakpoints deletes every breakpoint.
func (d *Debugger) ClearBreakpoints() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.breakpoints = nil
}

// SetActive enables or disables a breakpoint.
func (d *Debugger) SetActive(id uuid.UUID, active bool) bool {
	return d.update(id, func(bp *Breakpoint) { bp.Active = active })
}

// SetActivateOnHit makes a breakpoint fire only from its n-th hit in a run.
func (d *Debugger) SetActivateOnHit(id uuid.UUID, n int) bool {
	return d.update(id, func(bp *Breakpoint) { bp.ActivateOnHit = max(n, 1) })
}

func (d *Debugger) update(id uuid.UUID, fn func(*Breakpoint)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, bp := range d.breakpoints {
		if bp.ID == id {
			fn(bp)
			return true
		}
	}
	return false
}

// Breakpoints returns copies of the breakpoints.
func (d *Debugger) Breakpoints() []Breakpoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Breakpoint, len(d.breakpoints))
	for i, bp := range d.breakpoints {
		out[i] = *bp
	}
	return out
}

// ---------------------------------------------------------------------------
// Hooks called by the interpreter
// ---------------------------------------------------------------------------

// beginRun resets per-run hit counts.
func (d *Debugger) beginRun(ctx *Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, bp := range d.breakpoints {
		bp.hits = 0
	}
	d.state = DebugRunning
}

// check is consulted before each instruction and reports whether the run
// halts there.
func (d *Debugger) check(v *VM, ctx *Context) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	pc := ctx.PC
	if d.skipOnce && pc == d.skipPC {
		d.skipOnce = false
		return false
	}
	d.skipOnce = false
	stack := v.byteCode.CallStack(pc)

	if d.state == DebugStepping && d.diverged(stack) {
		// The diverging instruction acts as a one-shot breakpoint.
		return d.fire(&Breakpoint{Instruction: pc, ActivateOnHit: 1, Active: true, temporary: true}, ctx, stack)
	}

	for _, bp := range d.breakpoints {
		if !bp.Active || bp.Instruction != pc {
			continue
		}
		bp.hits++
		if bp.hits >= bp.ActivateOnHit {
			return d.fire(bp, ctx, stack)
		}
	}
	return false
}

// diverged compares a visited instruction's call stack with the one the
// run halted at.
func (d *Debugger) diverged(stack []string) bool {
	from := d.haltStack
	switch d.stepMode {
	case StepInto:
		return !slices.Equal(stack, from)
	case StepOver:
		return !hasPrefix(stack, from)
	case StepOut:
		if len(from) <= 1 {
			return false
		}
		return !hasPrefix(stack, from[:len(from)-1])
	}
	return false
}

func hasPrefix(stack, prefix []string) bool {
	return len(stack) >= len(prefix) && slices.Equal(stack[:len(prefix)], prefix)
}

func (d *Debugger) fire(bp *Breakpoint, ctx *Context, stack []string) bool {
	d.state = DebugHalted
	d.stepMode = StepNone
	d.haltedAt = ctx.PC
	d.haltStack = slices.Clone(stack)
	ev := DebugEvent{Kind: EventHalted, Run: ctx.ID, Instruction: ctx.PC, Stack: d.haltStack}
	if !bp.temporary {
		ev.Breakpoint = bp.ID
	}
	debugLog.Debugf("halted at %d %v", ctx.PC, stack)
	d.emit(ev)
	return true
}

// resume leaves the halted state. The halted instruction is skipped once
// so the run does not halt on it again.
func (d *Debugger) resume(mode StepMode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.skipPC = d.haltedAt
	d.skipOnce = true
	d.stepMode = mode
	if mode == StepNone {
		d.state = DebugResuming
	} else {
		d.state = DebugStepping
	}
	d.emit(DebugEvent{Kind: EventResumed, Instruction: d.haltedAt, Stack: slices.Clone(d.haltStack)})
}

// endRun clears halted and stepping state at the end of a run.
func (d *Debugger) endRun(ctx *Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clear()
	d.emit(DebugEvent{Kind: EventRunEnded, Run: ctx.ID, Instruction: ctx.PC})
}

// reset clears halted state without an event; breakpoints stay.
func (d *Debugger) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clear()
}

func (d *Debugger) clear() {
	d.state = DebugRunning
	d.stepMode = StepNone
	d.haltedAt = -1
	d.haltStack = nil
	d.skipOnce = false
}

func (d *Debugger) emit(ev DebugEvent) {
	select {
	case d.events <- ev:
	default:
		debugLog.Warningf("event channel full, dropped %s", ev.Kind)
	}
}
