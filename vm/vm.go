package vm

import (
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/chazu/regvm/pkg/bytecode"
	"github.com/tliron/commonlog"
)

var vmLog = commonlog.GetLogger("regvm.vm")

// ---------------------------------------------------------------------------
// VM: memory, byte code and functions of one program instance
// ---------------------------------------------------------------------------

// Options configures a VM.
type Options struct {
	Name         string
	RecordVisits bool // count instruction visits per run
	Debug        bool // attach a Debugger
	EventBuffer  int  // debugger event channel capacity
}

// VM runs byte code against typed, container-addressed memory. Work and
// Debug memory are always owned; Literal memory, byte code and functions
// may be shared with the instance the VM was created from.
type VM struct {
	name string
	opts Options

	work     *Container
	literal  *Container
	debug    *Container
	external *Container

	externVars []ExternalVariable

	byteCode  *bytecode.ByteCode
	functions []*FunctionInfo
	params    []Parameter

	cache  handleCache
	visits []int

	busy    atomic.Bool
	pending chan *VM

	exitListeners []func(*Context)

	debugger *Debugger
	halted   *Context
}

// New creates an empty VM.
func New(opts Options) *VM {
	if opts.Name == "" {
		opts.Name = "vm"
	}
	v := &VM{
		name:     opts.Name,
		opts:     opts,
		work:     NewContainer(bytecode.ContainerWork),
		literal:  NewContainer(bytecode.ContainerLiteral),
		debug:    NewContainer(bytecode.ContainerDebug),
		byteCode: bytecode.NewByteCode(),
		pending:  make(chan *VM, 1),
	}
	if opts.Debug {
		v.debugger = newDebugger(opts.EventBuffer)
	}
	return v
}

// Name returns the VM's name.
func (v *VM) Name() string { return v.name }

// Options returns the options the VM was created with.
func (v *VM) Options() Options { return v.opts }

// Work returns the instance-owned working memory.
func (v *VM) Work() *Container { return v.work }

// Literal returns the constant memory, possibly shared.
func (v *VM) Literal() *Container { return v.literal }

// Debug returns the instance-owned debug memory.
func (v *VM) Debug() *Container { return v.debug }

// External returns the bridged host variables, or nil.
func (v *VM) External() *Container { return v.external }

// ByteCode returns the program, possibly shared.
func (v *VM) ByteCode() *bytecode.ByteCode { return v.byteCode }

// SetByteCode installs a program.
func (v *VM) SetByteCode(bc *bytecode.ByteCode) {
	if bc == nil {
		bc = bytecode.NewByteCode()
	}
	v.byteCode = bc
	v.visits = nil
	v.clearHalt()
}

// Debugger returns the attached debugger, or nil.
func (v *VM) Debugger() *Debugger { return v.debugger }

// containers returns the memory visible to operands, indexed by kind.
func (v *VM) containers() [bytecode.ContainerCount]Memory {
	var mem [bytecode.ContainerCount]Memory
	mem[bytecode.ContainerWork] = v.work
	mem[bytecode.ContainerLiteral] = v.literal
	mem[bytecode.ContainerDebug] = v.debug
	if v.external != nil {
		mem[bytecode.ContainerExternal] = v.external
	}
	return mem
}

// container returns the concrete container an operand addresses.
func (v *VM) container(kind bytecode.ContainerKind) *Container {
	switch kind {
	case bytecode.ContainerWork:
		return v.work
	case bytecode.ContainerLiteral:
		return v.literal
	case bytecode.ContainerDebug:
		return v.debug
	case bytecode.ContainerExternal:
		return v.external
	}
	return nil
}

// operandExists reports whether op names an existing register.
func (v *VM) operandExists(op bytecode.Operand) bool {
	c := v.container(op.Container)
	if c == nil {
		return false
	}
	r := c.Register(op.Index)
	return r != nil && (!op.HasOffset() || r.Growth != Fixed || op.Offset < r.Count)
}

// Validate checks that the byte code is sound against the current memory
// and function table.
func (v *VM) Validate() error {
	if err := v.byteCode.Validate(v.operandExists); err != nil {
		return fmt.Errorf("%s: %w", v.name, err)
	}
	for i, in := range v.byteCode.Instructions {
		if in.Op == bytecode.OpExecute && in.Function >= len(v.functions) {
			return fmt.Errorf("%s: instruction %d calls unknown function %d", v.name, i, in.Function)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// AddFunction appends a native function to the table and returns the index
// Execute instructions use to call it. Adding the same function again
// returns its existing index.
func (v *VM) AddFunction(info *FunctionInfo) int {
	if i := v.FunctionIndex(info.Name); i >= 0 && v.functions[i] == info {
		return i
	}
	v.functions = append(v.functions, info)
	return len(v.functions) - 1
}

// FunctionIndex returns the index of the named function, or -1.
func (v *VM) FunctionIndex(name string) int {
	return slices.IndexFunc(v.functions, func(f *FunctionInfo) bool { return f.Name == name })
}

// Functions returns the function table.
func (v *VM) Functions() []*FunctionInfo { return v.functions }

// FunctionName returns the name of function i for listings.
func (v *VM) FunctionName(i int) string {
	if i < 0 || i >= len(v.functions) {
		return ""
	}
	return v.functions[i].Name
}

// Disassemble lists the byte code with function names.
func (v *VM) Disassemble() string {
	return v.byteCode.DisassembleWithNames(v.name, v.FunctionName)
}

// ---------------------------------------------------------------------------
// External variables, defaults, exit listeners
// ---------------------------------------------------------------------------

// SetExternalVariables installs host variables as the External container.
// The container is new each time, so the handle cache is rebuilt.
func (v *VM) SetExternalVariables(vars []ExternalVariable) error {
	c, err := NewExternalContainer(vars)
	if err != nil {
		return fmt.Errorf("%s: %w", v.name, err)
	}
	v.external = c
	v.externVars = slices.Clone(vars)
	return nil
}

// SetRegisterValueFromString populates a register from textual values.
func (v *VM) SetRegisterValueFromString(op bytecode.Operand, typeName string, st *StructType, values ...string) error {
	c := v.container(op.Container)
	if c == nil {
		return fmt.Errorf("%s: no %s memory", v.name, op.Container)
	}
	return c.SetDefault(op, typeName, st, values...)
}

// OnExit registers a listener called when a run reaches Exit.
func (v *VM) OnExit(fn func(*Context)) {
	v.exitListeners = append(v.exitListeners, fn)
}

func (v *VM) notifyExit(ctx *Context) {
	for _, fn := range v.exitListeners {
		fn(ctx)
	}
}

// InstructionVisits returns per-instruction visit counts of the last run,
// or nil when visit recording is off.
func (v *VM) InstructionVisits() []int { return slices.Clone(v.visits) }

// ---------------------------------------------------------------------------
// Instances, copies, reset
// ---------------------------------------------------------------------------

// NewInstance creates a VM running the same program. Literal memory, byte
// code and functions are shared; Work and Debug memory are cloned.
func (v *VM) NewInstance() *VM {
	n := New(v.opts)
	n.literal = v.literal
	n.byteCode = v.byteCode
	n.functions = slices.Clip(v.functions)
	n.params = v.params
	n.work = v.work.Clone()
	n.debug = v.debug.Clone()
	n.external = v.external
	n.externVars = v.externVars
	return n
}

// snapshot deep-copies the state a deferred copy transfers.
func (v *VM) snapshot() *VM {
	s := &VM{name: v.name, opts: v.opts}
	s.copyState(v)
	return s
}

// copyState replaces the receiver's program and memory with deep copies
// of src's. The debugger and listeners stay.
func (v *VM) copyState(src *VM) {
	v.work = src.work.Clone()
	v.literal = src.literal.Clone()
	v.debug = src.debug.Clone()
	v.external = nil
	if src.external != nil {
		v.external = src.external.Clone()
	}
	v.externVars = slices.Clone(src.externVars)
	v.byteCode = src.byteCode.Clone()
	v.functions = slices.Clone(src.functions)
	v.params = slices.Clone(src.params)
	v.visits = nil
	v.cache.invalidate()
	v.clearHalt()
}

// CopyFrom synchronously replaces this VM's state with a copy of src's.
func (v *VM) CopyFrom(src *VM) error {
	r, err := v.Acquire()
	if err != nil {
		return err
	}
	defer r.Release()
	v.copyState(src)
	return nil
}

// QueueCopy snapshots src now and hands the snapshot to the next run of v,
// which applies it before executing. A newer snapshot replaces one that
// was not yet applied.
func (v *VM) QueueCopy(src *VM) {
	s := src.snapshot()
	for {
		select {
		case v.pending <- s:
			vmLog.Debugf("%s: state copy from %s queued", v.name, src.name)
			return
		default:
		}
		select {
		case <-v.pending:
		default:
		}
	}
}

// HasPendingCopy reports whether a queued copy awaits the next run.
func (v *VM) HasPendingCopy() bool { return len(v.pending) > 0 }

// applyPending installs a queued snapshot, if any. The caller holds the
// run token.
func (v *VM) applyPending() {
	select {
	case s := <-v.pending:
		v.copyState(s)
		vmLog.Infof("%s: applied queued state copy", v.name)
	default:
	}
}

// Reset zeroes Work and Debug memory.
func (v *VM) Reset() {
	v.work.Reset()
	v.debug.Reset()
}

// Empty drops all registers, the program and parameters.
func (v *VM) Empty() {
	v.work = NewContainer(bytecode.ContainerWork)
	v.literal = NewContainer(bytecode.ContainerLiteral)
	v.debug = NewContainer(bytecode.ContainerDebug)
	v.external = nil
	v.externVars = nil
	v.byteCode = bytecode.NewByteCode()
	v.functions = nil
	v.params = nil
	v.visits = nil
	v.cache.invalidate()
	v.clearHalt()
}

// endRun is called when a run terminates without halting.
func (v *VM) endRun(ctx *Context) {
	v.halted = nil
	if v.debugger != nil {
		v.debugger.endRun(ctx)
	}
}

func (v *VM) clearHalt() {
	v.halted = nil
	if v.debugger != nil {
		v.debugger.reset()
	}
}
