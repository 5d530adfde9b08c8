package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/chazu/regvm/pkg/bytecode"
	"github.com/chazu/regvm/vm"
	"github.com/google/go-cmp/cmp"
)

func openStore(t *testing.T) *ImageStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "images.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetDelete(t *testing.T) {
	s := openStore(t)

	if _, err := s.Get("rig"); !errors.Is(err, ErrImageNotFound) {
		t.Fatalf("Get on empty store = %v, want ErrImageNotFound", err)
	}
	if err := s.Put("rig", []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put("rig", []byte{4, 5}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get("rig")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{4, 5}, got); diff != "" {
		t.Errorf("image bytes mismatch (-want +got):\n%s", diff)
	}

	if err := s.Delete("rig"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("rig"); err != nil {
		t.Errorf("second Delete = %v", err)
	}
	if _, err := s.Get("rig"); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("Get after Delete = %v", err)
	}
}

func TestList(t *testing.T) {
	s := openStore(t)
	for _, name := range []string{"walk", "idle", "run"} {
		if err := s.Put(name, make([]byte, len(name))); err != nil {
			t.Fatal(err)
		}
	}

	infos, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	var sizes []int
	for _, info := range infos {
		names = append(names, info.Name)
		sizes = append(sizes, info.Size)
		if info.Updated.IsZero() {
			t.Errorf("%s has no update time", info.Name)
		}
	}
	if diff := cmp.Diff([]string{"idle", "run", "walk"}, names); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{4, 3, 4}, sizes); diff != "" {
		t.Errorf("sizes (-want +got):\n%s", diff)
	}
}

func TestSaveAndLoadVM(t *testing.T) {
	reg := vm.NewRegistry()
	src := vm.New(vm.Options{Name: "counter"})
	r := src.Work().MustAddRegister(vm.RegisterSpec{Name: "r", TypeName: vm.TypeInt32})
	src.Work().Register(r).Data().SetInt32(0, 41)
	bc := bytecode.NewByteCode()
	bc.AddEntry("Update")
	bc.AddIncrement(bytecode.Work(r))
	bc.AddExit()
	src.SetByteCode(bc)

	s := openStore(t)
	if err := s.SaveVM("counter", src); err != nil {
		t.Fatalf("SaveVM: %v", err)
	}

	dst := vm.New(vm.Options{})
	if err := s.LoadVM("counter", dst, reg); err != nil {
		t.Fatalf("LoadVM: %v", err)
	}
	if res := dst.Execute("Update"); res != vm.Succeeded {
		t.Fatalf("Execute = %s", res)
	}
	if got := dst.Work().Register(r).Data().Int32(0); got != 42 {
		t.Errorf("r = %d, want 42", got)
	}

	if err := s.LoadVM("missing", dst, reg); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("LoadVM(missing) = %v", err)
	}
}

func TestReopenKeepsImages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put("kept", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if s.Path() != path {
		t.Errorf("Path() = %q", s.Path())
	}
	if _, err := s.Get("kept"); err != nil {
		t.Errorf("Get after reopen: %v", err)
	}
}
