package vm

import (
	"errors"
	"fmt"
	"io"

	"github.com/chazu/regvm/pkg/bytecode"
	"github.com/fxamacker/cbor/v2"
)

// ErrInvalidImage is wrapped by Load for documents that are not regvm
// images or are internally inconsistent.
var ErrInvalidImage = errors.New("invalid image")

// Load replaces the VM's memory, functions, byte code and parameters with
// an image written by Save. Function and struct names are re-linked
// against reg (DefaultRegistry when nil). On any error the VM is left
// empty, never half loaded.
func (v *VM) Load(rd io.Reader, reg *Registry) error {
	r, err := v.Acquire()
	if err != nil {
		return err
	}
	defer r.Release()

	if err := v.load(rd, reg); err != nil {
		v.Empty()
		vmLog.Errorf("%s: load failed, memory discarded: %s", v.name, err)
		return fmt.Errorf("vm: load: %w", err)
	}
	return nil
}

func (v *VM) load(rd io.Reader, reg *Registry) error {
	if reg == nil {
		reg = DefaultRegistry()
	}
	var img image
	if err := cbor.NewDecoder(rd).Decode(&img); err != nil {
		return err
	}
	if img.Magic != ImageMagic {
		return fmt.Errorf("%w: bad magic %q", ErrInvalidImage, img.Magic)
	}
	if img.Version != ImageVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrInvalidImage, img.Version, ImageVersion)
	}

	work, err := decodeContainer(bytecode.ContainerWork, img.Work, reg)
	if err != nil {
		return err
	}
	literal, err := decodeContainer(bytecode.ContainerLiteral, img.Literal, reg)
	if err != nil {
		return err
	}
	functions := make([]*FunctionInfo, len(img.Functions))
	for i, name := range img.Functions {
		f, ok := reg.Function(name)
		if !ok {
			return fmt.Errorf("function %q is not registered", name)
		}
		functions[i] = f
	}
	bc := img.ByteCode
	if bc == nil {
		bc = bytecode.NewByteCode()
	}

	external, vars := v.external, v.externVars
	v.Empty()
	v.external, v.externVars = external, vars
	v.work = work
	v.literal = literal
	v.functions = functions
	v.byteCode = bc
	for _, p := range img.Parameters {
		if err := v.AddParameter(p); err != nil {
			return err
		}
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	vmLog.Debugf("%s: loaded image %q (%d instructions)", v.name, img.Name, bc.Len())
	return nil
}

func decodeContainer(kind bytecode.ContainerKind, regs []registerImage, reg *Registry) (*Container, error) {
	c := NewContainer(kind)
	for _, ri := range regs {
		var st *StructType
		if _, _, ok := LookupType(ri.TypeName); !ok {
			s, found := reg.Struct(ri.TypeName)
			if !found {
				return nil, fmt.Errorf("%s register %s: unknown type %q", kind, ri.Name, ri.TypeName)
			}
			st = s
		}
		if _, err := c.AddRegister(RegisterSpec{
			Name:     ri.Name,
			TypeName: ri.TypeName,
			Struct:   st,
			Count:    ri.Count,
			Growth:   ri.Growth,
		}); err != nil {
			return nil, err
		}
		r := c.registers[len(c.registers)-1]

		data, err := decodeArray(ri.Data, r.Type, r.ElementSize, st)
		if err != nil {
			return nil, fmt.Errorf("%s register %s: %w", kind, ri.Name, err)
		}
		if r.Growth == Fixed && data.Len() != r.Count {
			return nil, fmt.Errorf("%w: %s register %s holds %d of %d elements", ErrInvalidImage, kind, ri.Name, data.Len(), r.Count)
		}
		r.data = data
		if r.Growth != Nested && len(ri.Slices) > 0 {
			return nil, fmt.Errorf("%w: %s register %s is %s but has slices", ErrInvalidImage, kind, ri.Name, r.Growth)
		}
		for i, si := range ri.Slices {
			s, err := decodeArray(si, r.Type, r.ElementSize, st)
			if err != nil {
				return nil, fmt.Errorf("%s register %s slice %d: %w", kind, ri.Name, i, err)
			}
			r.slices = append(r.slices, s)
		}
	}
	return c, nil
}

func decodeArray(img arrayImage, elem ElementType, size int, st *StructType) (*Array, error) {
	a := NewArray(elem, size, st, 0)
	switch elem {
	case ElementPlain:
		if len(img.Bytes)%size != 0 {
			return nil, fmt.Errorf("%w: %d bytes is not a multiple of element size %d", ErrInvalidImage, len(img.Bytes), size)
		}
		a.bytes = append(a.bytes, img.Bytes...)
	case ElementName:
		a.Resize(len(img.Strings))
		for i, s := range img.Strings {
			if s != "" {
				a.SetName(i, s)
			}
		}
	case ElementString:
		a.strs = append(a.strs, img.Strings...)
	default:
		a.Resize(len(img.Records))
		for i, fields := range img.Records {
			if len(fields) != len(st.Fields) {
				return nil, fmt.Errorf("%w: %s record has %d fields, want %d", ErrInvalidImage, st.Name, len(fields), len(st.Fields))
			}
			rec := a.recs[i]
			for j, f := range st.Fields {
				ft, fsize, err := resolveType(f.TypeName, f.Struct)
				if err != nil {
					return nil, err
				}
				fa, err := decodeArray(fields[j], ft, fsize, f.Struct)
				if err != nil {
					return nil, fmt.Errorf("%s.%s: %w", st.Name, f.Name, err)
				}
				if fa.Len() != 1 {
					return nil, fmt.Errorf("%w: %s.%s holds %d elements", ErrInvalidImage, st.Name, f.Name, fa.Len())
				}
				rec.fields[j] = fa
			}
		}
	}
	return a, nil
}
