package vm

import (
	"fmt"

	"github.com/google/uuid"
)

// RunState tells native functions which pass is running them.
type RunState uint8

const (
	// StateInit is the linear priming pass run by Initialize.
	StateInit RunState = iota

	// StateUpdate is a full Execute run.
	StateUpdate
)

// String returns a human-readable name for RunState.
func (s RunState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateUpdate:
		return "update"
	default:
		return fmt.Sprintf("RunState(%d)", s)
	}
}

// Slice is one frame of the slice stack: an iteration scope of Count
// passes, currently at Index.
type Slice struct {
	Count int
	Index int
}

// ---------------------------------------------------------------------------
// Context: per-run execution state
// ---------------------------------------------------------------------------

// Context is the execution state of one run: the program counter, the
// slice stack, and what the host passed in.
type Context struct {
	ID    uuid.UUID
	PC    int
	State RunState

	slices    []Slice
	args      []any
	externals []ExternalVariable
}

// NewContext creates a context for one run with the host's opaque args.
func NewContext(state RunState, args ...any) *Context {
	return &Context{ID: uuid.New(), State: state, args: args}
}

// BeginSlice pushes a slice frame.
func (c *Context) BeginSlice(count, index int) {
	c.slices = append(c.slices, Slice{Count: count, Index: index})
}

// EndSlice pops the innermost slice frame. Popping an empty stack panics.
func (c *Context) EndSlice() {
	if len(c.slices) == 0 {
		panic("vm: EndSlice without BeginSlice")
	}
	c.slices = c.slices[:len(c.slices)-1]
}

// setSliceIndex moves the innermost frame to index i.
func (c *Context) setSliceIndex(i int) {
	c.slices[len(c.slices)-1].Index = i
}

// CurrentSlice returns the innermost frame. Outside any scope it is a
// single pass at index 0.
func (c *Context) CurrentSlice() Slice {
	if len(c.slices) == 0 {
		return Slice{Count: 1}
	}
	return c.slices[len(c.slices)-1]
}

// SliceIndex returns the innermost frame's index.
func (c *Context) SliceIndex() int { return c.CurrentSlice().Index }

// SliceDepth returns the number of open slice frames.
func (c *Context) SliceDepth() int { return len(c.slices) }

// Arg returns opaque host argument i, or nil.
func (c *Context) Arg(i int) any {
	if i < 0 || i >= len(c.args) {
		return nil
	}
	return c.args[i]
}

// Args returns every opaque host argument.
func (c *Context) Args() []any { return c.args }

// ExternalVariables returns the bridged variables visible this run.
func (c *Context) ExternalVariables() []ExternalVariable { return c.externals }
