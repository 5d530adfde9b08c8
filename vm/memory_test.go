package vm

import (
	"strings"
	"testing"

	"github.com/chazu/regvm/pkg/bytecode"
	"github.com/google/go-cmp/cmp"
)

func TestCopyPreservesEveryElementType(t *testing.T) {
	tests := []struct {
		typeName string
		st       *StructType
		values   string
	}{
		{TypeBool, nil, "(true,false,true)"},
		{TypeUint8, nil, "(1,2,255)"},
		{TypeInt32, nil, "(-1,0,7)"},
		{TypeInt64, nil, "(1,-2,9000000000)"},
		{TypeFloat, nil, "(1.5,2,3)"},
		{TypeDouble, nil, "(0.25,-1,1e9)"},
		{TypeName, nil, "(walk,run,walk)"},
		{TypeString, nil, `("x","y, z","")`},
		{"", vecType, "((X=1,Tag=a),(X=2,Tag=b),(X=3))"},
	}

	for _, tt := range tests {
		name := tt.typeName
		if tt.st != nil {
			name = tt.st.Name
		}
		t.Run(name, func(t *testing.T) {
			v := New(Options{})
			w := v.Work()
			src := addReg(t, w, RegisterSpec{Name: "src", TypeName: tt.typeName, Struct: tt.st, Count: 3})
			dst := addReg(t, w, RegisterSpec{Name: "dst", TypeName: tt.typeName, Struct: tt.st, Count: 3})
			dyn := addReg(t, w, RegisterSpec{Name: "dyn", TypeName: tt.typeName, Struct: tt.st, Growth: Dynamic})
			eqFixed := addBool(t, w, "eqFixed")
			eqDyn := addBool(t, w, "eqDyn")

			if err := v.SetRegisterValueFromString(src, tt.typeName, tt.st, tt.values); err != nil {
				t.Fatalf("SetRegisterValueFromString: %v", err)
			}

			bc := bytecode.NewByteCode()
			bc.AddCopy(src, dst)
			bc.AddCopy(src, dyn)
			bc.AddComparison(bytecode.OpEquals, src, dst, eqFixed)
			bc.AddComparison(bytecode.OpEquals, src, dyn, eqDyn)
			bc.AddExit()
			v.SetByteCode(bc)
			mustExecute(t, v, "")

			if !boolAt(v, eqFixed) || !boolAt(v, eqDyn) {
				t.Fatalf("copies compare unequal: fixed=%v dynamic=%v", boolAt(v, eqFixed), boolAt(v, eqDyn))
			}
			srcReg := w.Register(src.Index)
			dynReg := w.Register(dyn.Index)
			if dynReg.Len() != 3 {
				t.Fatalf("dynamic copy has %d elements, want 3", dynReg.Len())
			}
			if diff := cmp.Diff(srcReg.Values(), dynReg.Values()); diff != "" {
				t.Errorf("dynamic values mismatch (-src +dyn):\n%s", diff)
			}
			if !w.Register(dst.Index).Data().Equal(srcReg.Data()) {
				t.Errorf("fixed copy differs: %v vs %v", w.Register(dst.Index).Values(), srcReg.Values())
			}
		})
	}
}

func TestCopyRecordsDoNotAlias(t *testing.T) {
	c := NewContainer(bytecode.ContainerWork)
	src := addReg(t, c, RegisterSpec{Name: "a", Struct: boxType})
	dst := addReg(t, c, RegisterSpec{Name: "b", Struct: boxType})
	if err := c.SetDefault(src, "", boxType, `(Min=(X=2,Tag=lo),Label="crate",Count=4)`); err != nil {
		t.Fatalf("SetDefault: %v", err)
	}
	if err := c.Copy(dst, c, src); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	label, _ := c.Register(src.Index).Data().Record(0).FieldByName("Label")
	label.SetText(0, "changed")

	got := c.Register(dst.Index).Values()
	want := []string{`(Min=(X=2,Tag=lo),Label="crate",Count=4)`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("copied record changed with its source (-want +got):\n%s", diff)
	}
}

func TestCopyShapes(t *testing.T) {
	c := NewContainer(bytecode.ContainerWork)
	dyn := addReg(t, c, RegisterSpec{Name: "dyn", TypeName: TypeInt32, Growth: Dynamic})
	fixed := addReg(t, c, RegisterSpec{Name: "fixed", TypeName: TypeInt32, Count: 3})
	empty := addReg(t, c, RegisterSpec{Name: "empty", TypeName: TypeInt32, Growth: Dynamic})
	other := addReg(t, c, RegisterSpec{Name: "other", TypeName: TypeInt32, Growth: Dynamic})
	if err := c.SetDefault(dyn, TypeInt32, nil, "(1,2,3,4,5)"); err != nil {
		t.Fatal(err)
	}

	// A longer source fills a fixed target up to its size.
	if err := c.Copy(fixed, c, dyn); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"1", "2", "3"}, c.Register(fixed.Index).Values()); diff != "" {
		t.Errorf("fixed target (-want +got):\n%s", diff)
	}

	// Element to element.
	if err := c.Copy(fixed.At(2), c, dyn.At(4)); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"1", "2", "5"}, c.Register(fixed.Index).Values()); diff != "" {
		t.Errorf("element copy (-want +got):\n%s", diff)
	}

	// An empty source empties a growable target.
	if err := c.Copy(other, c, dyn); err != nil {
		t.Fatal(err)
	}
	if err := c.Copy(other, c, empty); err != nil {
		t.Fatal(err)
	}
	if n := c.Register(other.Index).Len(); n != 0 {
		t.Errorf("growable target kept %d elements", n)
	}
}

func TestCopyTypeMismatch(t *testing.T) {
	c := NewContainer(bytecode.ContainerWork)
	a := addInt32(t, c, "a", 1)
	b := addReg(t, c, RegisterSpec{Name: "b", TypeName: TypeString})
	if err := c.Copy(b, c, a); err == nil {
		t.Fatal("copy of int32 into string succeeded")
	}
}

func TestContainerResetAndEmpty(t *testing.T) {
	c := NewContainer(bytecode.ContainerWork)
	x := addInt32(t, c, "x", 9)
	d := addReg(t, c, RegisterSpec{Name: "d", TypeName: TypeInt32, Growth: Dynamic, Count: 2})
	dyn := c.Register(d.Index).Data()
	dyn.SetInt32(1, 4)
	dyn.Resize(5)
	n := addReg(t, c, RegisterSpec{Name: "n", TypeName: TypeInt32, Growth: Nested})
	c.Register(n.Index).Slice(3)

	c.Reset()
	if got := c.Register(x.Index).Data().Int32(0); got != 0 {
		t.Errorf("fixed register not zeroed: %d", got)
	}
	if diff := cmp.Diff([]string{"0", "0"}, c.Register(d.Index).Values()); diff != "" {
		t.Errorf("dynamic register after Reset (-want +got):\n%s", diff)
	}
	if got := c.Register(n.Index).NumSlices(); got != 0 {
		t.Errorf("nested register has %d slices after Reset", got)
	}

	if _, ok := c.Find("x"); !ok {
		t.Error("Find(x) failed")
	}
	c.Empty()
	if c.Len() != 0 {
		t.Errorf("Empty left %d registers", c.Len())
	}
	if _, ok := c.Find("x"); ok {
		t.Error("Find(x) succeeded after Empty")
	}
}

func TestAddRegisterErrors(t *testing.T) {
	c := NewContainer(bytecode.ContainerLiteral)
	addInt32(t, c, "x", 0)

	tests := []struct {
		name string
		spec RegisterSpec
		want string
	}{
		{"duplicate", RegisterSpec{Name: "x", TypeName: TypeInt32}, "already exists"},
		{"unknown type", RegisterSpec{Name: "y", TypeName: "quaternion"}, "unknown type"},
		{"negative count", RegisterSpec{Name: "z", TypeName: TypeBool, Count: -1}, "negative count"},
		{"struct mismatch", RegisterSpec{Name: "w", TypeName: "Other", Struct: vecType}, "does not match"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.AddRegister(tt.spec)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("AddRegister error = %v, want %q", err, tt.want)
			}
		})
	}

	i := c.MustAddRegister(RegisterSpec{TypeName: TypeDouble})
	if got := c.Register(i).Name; got != "Literal1" {
		t.Errorf("generated name = %q, want Literal1", got)
	}
}

func TestExternalContainer(t *testing.T) {
	speed, _ := NewTypedArray(TypeDouble, nil, 1)
	speed.SetFloat64(0, 2.5)
	names, _ := NewTypedArray(TypeName, nil, 0)
	host := struct{}{}

	c, err := NewExternalContainer([]ExternalVariable{
		{Name: "speed", TypeName: TypeDouble, Size: 8, Array: speed, Owner: host},
		{Name: "tags", TypeName: TypeName, Growth: Dynamic, Array: names},
	})
	if err != nil {
		t.Fatalf("NewExternalContainer: %v", err)
	}
	r := c.Register(0)
	if !r.IsExternal() || r.Data() != speed {
		t.Fatal("external register does not wrap host storage")
	}

	c.Reset()
	if speed.Float64(0) != 2.5 {
		t.Error("Reset touched host storage")
	}
	if c.Clone().Register(0).Data() != speed {
		t.Error("Clone copied host storage")
	}

	tests := []struct {
		name string
		v    ExternalVariable
		want string
	}{
		{"no storage", ExternalVariable{Name: "a", TypeName: TypeDouble}, "no storage"},
		{"wrong storage", ExternalVariable{Name: "a", TypeName: TypeInt32, Array: speed}, "does not hold"},
		{"wrong size", ExternalVariable{Name: "a", TypeName: TypeDouble, Size: 4, Array: speed}, "declared size"},
		{"nested", ExternalVariable{Name: "a", TypeName: TypeDouble, Growth: Nested, Array: speed}, "nested"},
		{"unknown type", ExternalVariable{Name: "a", TypeName: "blob", Array: speed}, "unknown type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExternalContainer([]ExternalVariable{tt.v})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want %q", err, tt.want)
			}
		})
	}

	_, err = NewExternalContainer([]ExternalVariable{
		{Name: "a", TypeName: TypeDouble, Array: speed},
		{Name: "a", TypeName: TypeDouble, Array: speed},
	})
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("duplicate external error = %v", err)
	}
}

func TestExternalVariablesAreAddressable(t *testing.T) {
	hostCount, _ := NewTypedArray(TypeInt32, nil, 1)
	hostCount.SetInt32(0, 10)

	v := New(Options{})
	if err := v.SetExternalVariables([]ExternalVariable{{Name: "count", TypeName: TypeInt32, Array: hostCount}}); err != nil {
		t.Fatal(err)
	}
	seen := -1
	fn := &FunctionInfo{Name: "Seen", Fn: func(c *Call) { seen = len(c.Context().ExternalVariables()) }}

	bc := bytecode.NewByteCode()
	bc.AddIncrement(bytecode.External(0))
	bc.AddExecute(v.AddFunction(fn))
	bc.AddExit()
	v.SetByteCode(bc)
	mustExecute(t, v, "")

	if got := hostCount.Int32(0); got != 11 {
		t.Errorf("host value = %d, want 11", got)
	}
	if seen != 1 {
		t.Errorf("context exposed %d external variables, want 1", seen)
	}
}
