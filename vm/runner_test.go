package vm

import (
	"errors"
	"testing"

	"github.com/chazu/regvm/pkg/bytecode"
)

// counterVM builds a VM whose Update entry increments r once.
func counterVM(t *testing.T, start int32) (*VM, bytecode.Operand) {
	t.Helper()
	v := New(Options{Name: "counter"})
	r := addInt32(t, v.Work(), "r", start)
	addInt32(t, v.Literal(), "step", 1)
	bc := bytecode.NewByteCode()
	bc.AddEntry("Update")
	bc.AddIncrement(r)
	bc.AddExit()
	v.SetByteCode(bc)
	return v, r
}

func TestRunnerIsExclusive(t *testing.T) {
	v, r := counterVM(t, 0)

	run, err := v.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := v.Acquire(); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Acquire error = %v, want ErrBusy", err)
	}
	if res := v.Execute("Update"); res != Failed {
		t.Errorf("Execute while held = %s, want failed", res)
	}
	if err := v.CopyFrom(New(Options{})); !errors.Is(err, ErrBusy) {
		t.Errorf("CopyFrom while held = %v, want ErrBusy", err)
	}

	if res, err := run.Execute("Update"); err != nil || res != Succeeded {
		t.Fatalf("runner Execute = %s, %v", res, err)
	}
	run.Release()
	run.Release()

	mustExecute(t, v, "Update")
	if got := int32At(v, r); got != 2 {
		t.Errorf("r = %d, want 2", got)
	}
}

func TestRunnerUseAfterReleasePanics(t *testing.T) {
	v, _ := counterVM(t, 0)
	run, err := v.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	run.Release()
	defer func() {
		if recover() == nil {
			t.Error("Execute after Release did not panic")
		}
	}()
	run.Execute("Update")
}

func TestExecuteUnknownEntry(t *testing.T) {
	v, r := counterVM(t, 3)
	run, err := v.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	defer run.Release()

	res, err := run.Execute("Missing")
	if res != Failed || !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("Execute(Missing) = %s, %v", res, err)
	}
	if got := int32At(v, r); got != 3 {
		t.Errorf("r = %d, want 3", got)
	}
}

func TestCopyFrom(t *testing.T) {
	src, r := counterVM(t, 10)
	dst := New(Options{Name: "dst"})

	if err := dst.CopyFrom(src); err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	if !dst.Work().Equal(src.Work()) || !dst.Literal().Equal(src.Literal()) {
		t.Fatal("memory differs after CopyFrom")
	}
	if dst.Literal() == src.Literal() || dst.ByteCode() == src.ByteCode() {
		t.Fatal("CopyFrom shares state with its source")
	}

	mustExecute(t, dst, "Update")
	if got := int32At(dst, r); got != 11 {
		t.Errorf("dst r = %d, want 11", got)
	}
	if got := int32At(src, r); got != 10 {
		t.Errorf("src r = %d, want 10", got)
	}
}

func TestQueuedCopyMatchesCopyFrom(t *testing.T) {
	src, r := counterVM(t, 10)
	viaQueue := New(Options{Name: "queued"})
	viaCopy := New(Options{Name: "copied"})

	viaQueue.QueueCopy(src)
	if err := viaCopy.CopyFrom(src); err != nil {
		t.Fatal(err)
	}
	if !viaQueue.HasPendingCopy() {
		t.Fatal("no pending copy after QueueCopy")
	}

	// The snapshot was taken when the copy was queued.
	src.Work().Register(r.Index).Data().SetInt32(0, 99)

	mustExecute(t, viaQueue, "Update")
	mustExecute(t, viaCopy, "Update")
	if viaQueue.HasPendingCopy() {
		t.Error("pending copy survived a run")
	}
	if !viaQueue.Work().Equal(viaCopy.Work()) {
		t.Errorf("queued copy r = %d, synchronous copy r = %d", int32At(viaQueue, r), int32At(viaCopy, r))
	}
	if got := int32At(viaQueue, r); got != 11 {
		t.Errorf("r = %d, want 11", got)
	}
}

func TestQueuedCopyReplacesOlderSnapshot(t *testing.T) {
	first, r := counterVM(t, 1)
	second, _ := counterVM(t, 50)
	dst := New(Options{})

	dst.QueueCopy(first)
	dst.QueueCopy(second)
	mustExecute(t, dst, "Update")
	if got := int32At(dst, r); got != 51 {
		t.Errorf("r = %d, want 51", got)
	}
}

func TestQueuedCopyWaitsForRunner(t *testing.T) {
	src, r := counterVM(t, 20)
	dst, _ := counterVM(t, 0)

	run, err := dst.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := run.Execute("Update"); err != nil {
		t.Fatal(err)
	}
	dst.QueueCopy(src)
	if got := int32At(dst, r); got != 1 || !dst.HasPendingCopy() {
		t.Fatalf("copy applied while the runner was held: r = %d", got)
	}
	run.Release()

	mustExecute(t, dst, "Update")
	if got := int32At(dst, r); got != 21 {
		t.Errorf("r = %d, want 21", got)
	}
}

func TestNewInstance(t *testing.T) {
	proto, r := counterVM(t, 5)
	inst := proto.NewInstance()

	if inst.Literal() != proto.Literal() || inst.ByteCode() != proto.ByteCode() {
		t.Error("instance does not share literal memory and byte code")
	}
	if inst.Work() == proto.Work() {
		t.Fatal("instance shares work memory")
	}

	mustExecute(t, inst, "Update")
	mustExecute(t, inst, "Update")
	if got := int32At(inst, r); got != 7 {
		t.Errorf("instance r = %d, want 7", got)
	}
	if got := int32At(proto, r); got != 5 {
		t.Errorf("prototype r = %d, want 5", got)
	}
}

func TestNewInstanceFunctionTablesDiverge(t *testing.T) {
	proto := New(Options{})
	for _, name := range []string{"a", "b", "c"} {
		proto.AddFunction(&FunctionInfo{Name: name, Fn: func(*Call) {}})
	}
	inst := proto.NewInstance()

	inst.AddFunction(&FunctionInfo{Name: "mine", Fn: func(*Call) {}})
	proto.AddFunction(&FunctionInfo{Name: "theirs", Fn: func(*Call) {}})
	if got := inst.FunctionName(3); got != "mine" {
		t.Errorf("instance function 3 = %q, want mine", got)
	}
	if got := proto.FunctionName(3); got != "theirs" {
		t.Errorf("prototype function 3 = %q, want theirs", got)
	}
}

func TestEmpty(t *testing.T) {
	v, _ := counterVM(t, 5)
	v.Empty()
	if v.Work().Len() != 0 || v.Literal().Len() != 0 || v.ByteCode().Len() != 0 || len(v.Functions()) != 0 {
		t.Fatal("Empty left state behind")
	}
	mustExecute(t, v, "")
}
