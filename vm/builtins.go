package vm

// ---------------------------------------------------------------------------
// Builtin native functions
// ---------------------------------------------------------------------------

// RegisterBuiltins adds the arithmetic and logic functions every host
// gets. Registering into a registry that already has them is an error.
func RegisterBuiltins(reg *Registry) error {
	for _, info := range builtins() {
		if err := reg.RegisterFunction(info); err != nil {
			return err
		}
	}
	return nil
}

func binaryFunction(name string, fn Function) *FunctionInfo {
	return &FunctionInfo{
		Name:   name,
		Params: []Param{{Name: "a", Direction: Input}, {Name: "b", Direction: Input}, {Name: "out", Direction: Output}},
		Fn:     fn,
	}
}

func builtins() []*FunctionInfo {
	return []*FunctionInfo{
		binaryFunction("AddInt32", func(c *Call) {
			c.SetInt32(2, c.Int32(0)+c.Int32(1))
		}),
		binaryFunction("SubInt32", func(c *Call) {
			c.SetInt32(2, c.Int32(0)-c.Int32(1))
		}),
		binaryFunction("LessInt32", func(c *Call) {
			c.SetBool(2, c.Int32(0) < c.Int32(1))
		}),
		binaryFunction("AddDouble", func(c *Call) {
			c.SetFloat64(2, c.Float64(0)+c.Float64(1))
		}),
		binaryFunction("MulDouble", func(c *Call) {
			c.SetFloat64(2, c.Float64(0)*c.Float64(1))
		}),
		binaryFunction("LessDouble", func(c *Call) {
			c.SetBool(2, c.Float64(0) < c.Float64(1))
		}),
		binaryFunction("And", func(c *Call) {
			c.SetBool(2, c.Bool(0) && c.Bool(1))
		}),
		binaryFunction("Or", func(c *Call) {
			c.SetBool(2, c.Bool(0) || c.Bool(1))
		}),
		{
			Name:   "Not",
			Params: []Param{{Name: "a", Direction: Input}, {Name: "out", Direction: Output}},
			Fn: func(c *Call) {
				c.SetBool(1, !c.Bool(0))
			},
		},
		{
			Name:   "SliceIndex",
			Params: []Param{{Name: "out", Direction: Output}},
			Fn: func(c *Call) {
				c.SetInt32(0, int32(c.SliceIndex()))
			},
		},
	}
}
