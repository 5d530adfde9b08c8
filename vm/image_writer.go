package vm

import (
	"fmt"
	"io"

	"github.com/chazu/regvm/pkg/bytecode"
	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Image format
// ---------------------------------------------------------------------------

// ImageMagic identifies a regvm image.
const ImageMagic = "RGVM"

// Image format version
// v1: initial format
const ImageVersion uint32 = 1

// image is the document written by Save. Field order is the load order:
// Work, Literal, functions, byte code, parameters.
type image struct {
	Magic      string             `cbor:"1,keyasint"`
	Version    uint32             `cbor:"2,keyasint"`
	Name       string             `cbor:"3,keyasint,omitempty"`
	Work       []registerImage    `cbor:"4,keyasint"`
	Literal    []registerImage    `cbor:"5,keyasint"`
	Functions  []string           `cbor:"6,keyasint"`
	ByteCode   *bytecode.ByteCode `cbor:"7,keyasint"`
	Parameters []Parameter        `cbor:"8,keyasint"`
}

type registerImage struct {
	Name     string       `cbor:"1,keyasint"`
	TypeName string       `cbor:"2,keyasint"`
	Count    int          `cbor:"3,keyasint"`
	Growth   Growth       `cbor:"4,keyasint"`
	Data     arrayImage   `cbor:"5,keyasint"`
	Slices   []arrayImage `cbor:"6,keyasint,omitempty"`
}

// arrayImage holds one array. Names and strings both use Strings; records
// store one arrayImage per field.
type arrayImage struct {
	Bytes   []byte         `cbor:"1,keyasint,omitempty"`
	Strings []string       `cbor:"2,keyasint,omitempty"`
	Records [][]arrayImage `cbor:"3,keyasint,omitempty"`
}

var imageEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	imageEncMode = em
}

// ---------------------------------------------------------------------------
// Save
// ---------------------------------------------------------------------------

// Save writes Work and Literal memory, the function-name table, the byte
// code and the parameters. Debug and External memory are not saved.
func (v *VM) Save(w io.Writer) error {
	r, err := v.Acquire()
	if err != nil {
		return err
	}
	defer r.Release()

	img := image{
		Magic:      ImageMagic,
		Version:    ImageVersion,
		Name:       v.name,
		Work:       encodeContainer(v.work),
		Literal:    encodeContainer(v.literal),
		Functions:  make([]string, len(v.functions)),
		ByteCode:   v.byteCode,
		Parameters: v.params,
	}
	for i, f := range v.functions {
		img.Functions[i] = f.Name
	}
	if err := imageEncMode.NewEncoder(w).Encode(&img); err != nil {
		return fmt.Errorf("vm: save: %w", err)
	}
	vmLog.Debugf("%s: saved image (%d work, %d literal registers, %d instructions)",
		v.name, len(img.Work), len(img.Literal), v.byteCode.Len())
	return nil
}

func encodeContainer(c *Container) []registerImage {
	out := make([]registerImage, 0, c.Len())
	for _, r := range c.registers {
		ri := registerImage{
			Name:     r.Name,
			TypeName: r.TypeName,
			Count:    r.Count,
			Growth:   r.Growth,
			Data:     encodeArray(r.data),
		}
		for _, s := range r.slices {
			ri.Slices = append(ri.Slices, encodeArray(s))
		}
		out = append(out, ri)
	}
	return out
}

func encodeArray(a *Array) arrayImage {
	switch a.elem {
	case ElementPlain:
		return arrayImage{Bytes: a.bytes}
	case ElementName:
		img := arrayImage{Strings: make([]string, len(a.names))}
		for i := range a.names {
			img.Strings[i] = a.Name(i)
		}
		return img
	case ElementString:
		return arrayImage{Strings: a.strs}
	default:
		img := arrayImage{Records: make([][]arrayImage, len(a.recs))}
		for i, rec := range a.recs {
			fields := make([]arrayImage, len(rec.fields))
			for j, f := range rec.fields {
				fields[j] = encodeArray(f)
			}
			img.Records[i] = fields
		}
		return img
	}
}
