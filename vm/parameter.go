package vm

import (
	"fmt"
	"slices"

	"github.com/chazu/regvm/pkg/bytecode"
)

// Parameter names a Work register the host reads or writes from outside
// the VM.
type Parameter struct {
	Name      string    `cbor:"1,keyasint"`
	TypeName  string    `cbor:"2,keyasint"`
	Register  int       `cbor:"3,keyasint"`
	Direction Direction `cbor:"4,keyasint"`
	Struct    string    `cbor:"5,keyasint,omitempty"`
}

// AddParameter exposes a Work register under a name.
func (v *VM) AddParameter(p Parameter) error {
	if p.Name == "" {
		return fmt.Errorf("%s: parameter needs a name", v.name)
	}
	if _, ok := v.Parameter(p.Name); ok {
		return fmt.Errorf("%s: parameter %q already exists", v.name, p.Name)
	}
	r := v.work.Register(p.Register)
	if r == nil {
		return fmt.Errorf("%s: parameter %q: no work register %d", v.name, p.Name, p.Register)
	}
	if p.TypeName == "" {
		p.TypeName = r.TypeName
	}
	if p.TypeName != r.TypeName {
		return fmt.Errorf("%s: parameter %q is %s, register %s is %s", v.name, p.Name, p.TypeName, r.Name, r.TypeName)
	}
	if r.Struct != nil {
		p.Struct = r.Struct.Name
	}
	v.params = append(v.params, p)
	return nil
}

// Parameters returns the parameter list in declaration order.
func (v *VM) Parameters() []Parameter { return slices.Clone(v.params) }

// Parameter looks up a parameter by name.
func (v *VM) Parameter(name string) (Parameter, bool) {
	for _, p := range v.params {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// ParameterRegister returns the Work register behind a parameter.
func (v *VM) ParameterRegister(name string) (*Register, bool) {
	p, ok := v.Parameter(name)
	if !ok {
		return nil, false
	}
	r := v.work.Register(p.Register)
	return r, r != nil
}

// SetParameterValue assigns textual values to a parameter's register.
func (v *VM) SetParameterValue(name string, values ...string) error {
	p, ok := v.Parameter(name)
	if !ok {
		return fmt.Errorf("%s: no parameter %q", v.name, name)
	}
	r := v.work.Register(p.Register)
	if r == nil {
		return fmt.Errorf("%s: parameter %q: no work register %d", v.name, name, p.Register)
	}
	return v.work.SetDefault(bytecode.Work(p.Register), r.TypeName, r.Struct, values...)
}
