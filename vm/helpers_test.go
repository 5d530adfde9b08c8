package vm

import (
	"testing"

	"github.com/chazu/regvm/pkg/bytecode"
)

// addReg declares a register and returns a whole-register operand for it.
func addReg(t *testing.T, c *Container, spec RegisterSpec) bytecode.Operand {
	t.Helper()
	i, err := c.AddRegister(spec)
	if err != nil {
		t.Fatalf("AddRegister(%s): %v", spec.Name, err)
	}
	return bytecode.NewOperand(c.Kind(), i)
}

// addInt32 declares a fixed int32 register holding v.
func addInt32(t *testing.T, c *Container, name string, v int32) bytecode.Operand {
	t.Helper()
	op := addReg(t, c, RegisterSpec{Name: name, TypeName: TypeInt32})
	c.Register(op.Index).Data().SetInt32(0, v)
	return op
}

// addBool declares a fixed bool register.
func addBool(t *testing.T, c *Container, name string) bytecode.Operand {
	t.Helper()
	return addReg(t, c, RegisterSpec{Name: name, TypeName: TypeBool})
}

func int32At(v *VM, op bytecode.Operand) int32 {
	return v.container(op.Container).Register(op.Index).Data().Int32(0)
}

func boolAt(v *VM, op bytecode.Operand) bool {
	return v.container(op.Container).Register(op.Index).Data().Bool(0)
}

func mustExecute(t *testing.T, v *VM, entry string) {
	t.Helper()
	if res := v.Execute(entry); res != Succeeded {
		t.Fatalf("Execute(%q) = %s, want succeeded", entry, res)
	}
}

var vecType = MustStructType("Vec",
	StructField{Name: "X", TypeName: TypeDouble},
	StructField{Name: "Tag", TypeName: TypeName},
)

var boxType = MustStructType("Box",
	StructField{Name: "Min", Struct: vecType},
	StructField{Name: "Label", TypeName: TypeString},
	StructField{Name: "Count", TypeName: TypeInt32},
)
