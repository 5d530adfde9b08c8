package vm

import (
	"fmt"
	"sort"
	"sync"
)

// Direction says how a native function uses one of its operands.
type Direction uint8

const (
	Input Direction = iota
	Output
	InOut
)

// String returns a human-readable name for Direction.
func (d Direction) String() string {
	switch d {
	case Input:
		return "in"
	case Output:
		return "out"
	case InOut:
		return "inout"
	default:
		return fmt.Sprintf("Direction(%d)", d)
	}
}

// Param describes one operand of a native function.
type Param struct {
	Name      string
	Direction Direction
}

// Function is a native function called by the Execute opcode. It is invoked
// once per slice when any input is growable.
type Function func(call *Call)

// FunctionInfo is a native function and its signature.
type FunctionInfo struct {
	Name   string
	Params []Param
	Fn     Function
}

// direction returns the direction of operand i. Operands past the declared
// params are inputs.
func (f *FunctionInfo) direction(i int) Direction {
	if i < len(f.Params) {
		return f.Params[i].Direction
	}
	return Input
}

// ---------------------------------------------------------------------------
// Registry: named functions and struct types
// ---------------------------------------------------------------------------

// Registry maps names to native functions and struct types. Images store
// names only and are re-linked against a registry on Load.
type Registry struct {
	mu        sync.RWMutex
	functions map[string]*FunctionInfo
	structs   map[string]*StructType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		functions: make(map[string]*FunctionInfo),
		structs:   make(map[string]*StructType),
	}
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// RegisterFunction adds a function. Names are unique.
func (r *Registry) RegisterFunction(info *FunctionInfo) error {
	if info == nil || info.Name == "" || info.Fn == nil {
		return fmt.Errorf("registry: function needs a name and a body")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.functions[info.Name]; exists {
		return fmt.Errorf("registry: function %q already registered", info.Name)
	}
	r.functions[info.Name] = info
	return nil
}

// MustRegisterFunction is like RegisterFunction but panics on error.
func (r *Registry) MustRegisterFunction(info *FunctionInfo) *FunctionInfo {
	if err := r.RegisterFunction(info); err != nil {
		panic(err)
	}
	return info
}

// Function looks up a function by name.
func (r *Registry) Function(name string) (*FunctionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.functions[name]
	return f, ok
}

// RegisterStruct adds a struct type. Re-registering the same descriptor is
// a no-op.
func (r *Registry) RegisterStruct(st *StructType) error {
	if st == nil || st.Name == "" {
		return fmt.Errorf("registry: struct type needs a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, exists := r.structs[st.Name]; exists && old != st {
		return fmt.Errorf("registry: struct %q already registered", st.Name)
	}
	r.structs[st.Name] = st
	return nil
}

// Struct looks up a struct type by name.
func (r *Registry) Struct(name string) (*StructType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.structs[name]
	return st, ok
}

// FunctionNames returns the registered function names, sorted.
func (r *Registry) FunctionNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ---------------------------------------------------------------------------
// Call: what a native function sees
// ---------------------------------------------------------------------------

// Call gives a native function access to its operands for one slice.
type Call struct {
	ctx     *Context
	info    *FunctionInfo
	handles []Handle
	args    []int
	slice   int
	count   int
}

// Context returns the run's execution context.
func (c *Call) Context() *Context { return c.ctx }

// Function returns the function being called.
func (c *Call) Function() *FunctionInfo { return c.info }

// NumArgs returns the number of operands.
func (c *Call) NumArgs() int { return len(c.args) }

// SliceIndex returns the slice being computed.
func (c *Call) SliceIndex() int { return c.slice }

// SliceCount returns the number of slices this invocation runs.
func (c *Call) SliceCount() int { return c.count }

// Handle returns the resolved handle of operand i.
func (c *Call) Handle(i int) Handle { return c.handles[c.args[i]] }

// Arg returns the storage of operand i as seen by the current slice.
func (c *Call) Arg(i int) *Array { return c.Handle(i).Array(c.slice) }

// Output returns the writable storage of operand i for the current slice.
// Nested registers get the slice's own array.
func (c *Call) Output(i int) *Array {
	h := c.Handle(i)
	if h.Kind == HandleNested {
		return h.Reg.Slice(c.slice)
	}
	return h.Reg.data
}

// FixedCount returns the element count of operand i. For fixed arrays it
// comes from the scalar handle stored after the operand.
func (c *Call) FixedCount(i int) int {
	at := c.args[i] + 1
	if at < len(c.handles) && c.handles[at].Kind == HandleScalar {
		return int(c.handles[at].Scalar)
	}
	h := c.Handle(i)
	if h.Offset >= 0 {
		return 1
	}
	return h.Array(c.slice).Len()
}

// Elem returns the element of operand i the current slice reads: the
// operand's offset, the slice index for a growable whole register, or 0.
func (c *Call) Elem(i int) int {
	h := c.Handle(i)
	switch {
	case h.Offset >= 0:
		return h.Offset
	case h.Kind == HandleDynamic:
		return c.slice
	default:
		return 0
	}
}

// out returns the storage and element index operand i writes this slice,
// growing growable storage as needed.
func (c *Call) out(i int) (*Array, int) {
	h := c.Handle(i)
	e := c.Elem(i)
	return h.writable(c.slice, e), e
}

// Int32 reads operand i as int32.
func (c *Call) Int32(i int) int32 {
	a := c.Arg(i)
	e := c.Elem(i)
	if e >= a.Len() {
		return 0
	}
	return a.Int32(e)
}

// SetInt32 writes operand i as int32.
func (c *Call) SetInt32(i int, v int32) {
	a, e := c.out(i)
	a.SetInt32(e, v)
}

// Float64 reads operand i as a double.
func (c *Call) Float64(i int) float64 {
	a := c.Arg(i)
	e := c.Elem(i)
	if e >= a.Len() {
		return 0
	}
	return a.Float64(e)
}

// SetFloat64 writes operand i as a double.
func (c *Call) SetFloat64(i int, v float64) {
	a, e := c.out(i)
	a.SetFloat64(e, v)
}

// Bool reads operand i as bool.
func (c *Call) Bool(i int) bool {
	a := c.Arg(i)
	e := c.Elem(i)
	if e >= a.Len() {
		return false
	}
	return a.Bool(e)
}

// SetBool writes operand i as bool.
func (c *Call) SetBool(i int, v bool) {
	a, e := c.out(i)
	a.SetBool(e, v)
}
