// regvm CLI - runs and manages compiled VM images
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/chazu/regvm/host"
	"github.com/chazu/regvm/manifest"
	"github.com/chazu/regvm/store"
	"github.com/chazu/regvm/vm"
)

func main() {
	dir := flag.String("C", ".", "Directory to search for regvm.toml")
	entry := flag.String("entry", "", "Entry to run (default: [vm] entry, else instruction 0)")
	count := flag.Int("n", 1, "Number of runs")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: regvm [options] <command> [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  list                 List stored images\n")
		fmt.Fprintf(os.Stderr, "  run <name>           Initialize and run an image\n")
		fmt.Fprintf(os.Stderr, "  disasm <name>        Disassemble an image\n")
		fmt.Fprintf(os.Stderr, "  import <name> <file> Store an image file\n")
		fmt.Fprintf(os.Stderr, "  export <name> <file> Write a stored image to a file\n")
		fmt.Fprintf(os.Stderr, "  rm <name>            Delete a stored image\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	m, err := manifest.FindAndLoad(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if m == nil {
		if m, err = manifest.Default(*dir); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *verbose && m.Log.Verbosity < 1 {
		m.Log.Verbosity = 1
	}
	m.ConfigureLogging()
	if *entry != "" {
		m.VM.Entry = *entry
	}

	s, err := store.Open(m.StorePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	if err := runCommand(m, s, args, *count, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		s.Close()
		os.Exit(1)
	}
}

func runCommand(m *manifest.Manifest, s *store.ImageStore, args []string, count int, verbose bool) error {
	cmd, rest := args[0], args[1:]
	need := func(n int) error {
		if len(rest) != n {
			return fmt.Errorf("%s: expected %d argument(s), got %d", cmd, n, len(rest))
		}
		return nil
	}

	switch cmd {
	case "list":
		infos, err := s.List()
		if err != nil {
			return err
		}
		for _, info := range infos {
			fmt.Printf("%-24s %8d  %s\n", info.Name, info.Size, info.Updated.Format("2006-01-02 15:04:05"))
		}
		return nil

	case "run":
		if err := need(1); err != nil {
			return err
		}
		return runImage(m, s, rest[0], count, verbose)

	case "disasm":
		if err := need(1); err != nil {
			return err
		}
		v, err := loadImage(m, s, rest[0])
		if err != nil {
			return err
		}
		fmt.Print(v.Disassemble())
		return nil

	case "import":
		if err := need(2); err != nil {
			return err
		}
		data, err := os.ReadFile(rest[1])
		if err != nil {
			return err
		}
		// Reject files that are not loadable images.
		if _, err := loadBytes(m, data); err != nil {
			return fmt.Errorf("import %s: %w", rest[1], err)
		}
		return s.Put(rest[0], data)

	case "export":
		if err := need(2); err != nil {
			return err
		}
		data, err := s.Get(rest[0])
		if err != nil {
			return err
		}
		return os.WriteFile(rest[1], data, 0644)

	case "rm":
		if err := need(1); err != nil {
			return err
		}
		return s.Delete(rest[0])
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func registry() (*vm.Registry, error) {
	reg := vm.NewRegistry()
	if err := vm.RegisterBuiltins(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func loadImage(m *manifest.Manifest, s *store.ImageStore, name string) (*vm.VM, error) {
	reg, err := registry()
	if err != nil {
		return nil, err
	}
	v := vm.New(m.Options())
	if err := s.LoadVM(name, v, reg); err != nil {
		return nil, err
	}
	return v, nil
}

func loadBytes(m *manifest.Manifest, data []byte) (*vm.VM, error) {
	reg, err := registry()
	if err != nil {
		return nil, err
	}
	v := vm.New(m.Options())
	if err := v.Load(bytes.NewReader(data), reg); err != nil {
		return nil, err
	}
	return v, nil
}

func runImage(m *manifest.Manifest, s *store.ImageStore, name string, count int, verbose bool) error {
	v, err := loadImage(m, s, name)
	if err != nil {
		return err
	}
	if err := m.ApplyParameters(v); err != nil {
		return err
	}

	w := host.NewWorker(v)
	defer w.Stop()

	res, err := w.Initialize()
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if res != vm.Succeeded {
		return fmt.Errorf("initialize: %s", res)
	}
	for i := 0; i < count; i++ {
		res, err := w.Execute(m.VM.Entry)
		if err != nil {
			return fmt.Errorf("run %d: %w", i, err)
		}
		if res != vm.Succeeded {
			return fmt.Errorf("run %d: %s", i, res)
		}
	}

	for _, p := range v.Parameters() {
		r, ok := v.ParameterRegister(p.Name)
		if !ok {
			continue
		}
		fmt.Printf("%s = %s\n", p.Name, strings.Join(r.Values(), ", "))
	}
	if verbose && m.VM.RecordVisits {
		for i, n := range v.InstructionVisits() {
			fmt.Printf("%04d  %d\n", i, n)
		}
	}
	return nil
}
