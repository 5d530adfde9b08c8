package vm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/regvm/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Textual defaults: the one non-binary way values enter memory
// ---------------------------------------------------------------------------

// SetDefault populates the register addressed by op from textual values.
// typeName (or st for records) must match the register's declared type.
// Scalars use Go literal syntax, records use (Field=Value,...), and a
// single parenthesised list such as (1,2,3) expands into array elements.
func (c *Container) SetDefault(op bytecode.Operand, typeName string, st *StructType, values ...string) error {
	r := c.Register(op.Index)
	if r == nil {
		return fmt.Errorf("default %v: no such register", op)
	}
	if st != nil {
		typeName = st.Name
	}
	if typeName != r.TypeName || st != r.Struct {
		return fmt.Errorf("default %v: register is %s, value is %s", op, r.TypeName, typeName)
	}
	if len(values) == 1 && !op.HasOffset() {
		if items, ok := splitList(values[0], r.Type == ElementStruct); ok {
			values = items
		}
	}

	if op.Offset < bytecode.NoOffset || (op.HasOffset() && r.Growth == Fixed && op.Offset >= r.Count) {
		return fmt.Errorf("default %v: offset beyond %d elements", op, r.Count)
	}
	if op.HasOffset() {
		if len(values) != 1 {
			return fmt.Errorf("default %v: one value expected for an element, got %d", op, len(values))
		}
		a := newDataHandle(r, op.Offset).writable(0, op.Offset)
		return parseElement(a, op.Offset, r.TypeName, r.Struct, values[0])
	}

	var a *Array
	switch r.Growth {
	case Fixed:
		if len(values) > r.Count {
			return fmt.Errorf("default %v: %d values for %d elements", op, len(values), r.Count)
		}
		a = r.data
	case Dynamic:
		a = r.data
		a.Reset()
		a.Resize(len(values))
	case Nested:
		r.ResetSlices()
		a = r.Slice(0)
		a.Resize(len(values))
	}
	for i, v := range values {
		if err := parseElement(a, i, r.TypeName, r.Struct, v); err != nil {
			return fmt.Errorf("default %v[%d]: %w", op, i, err)
		}
	}
	for i := len(values); i < a.Len(); i++ {
		a.Zero(i)
	}
	return nil
}

// splitList expands "(a,b,c)" into its items. A record literal
// "(A=1,B=2)" is a single value unless every item is itself parenthesised.
func splitList(s string, records bool) ([]string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return nil, false
	}
	items, err := splitTopLevel(s[1 : len(s)-1])
	if err != nil {
		return nil, false
	}
	if records {
		for _, it := range items {
			if !strings.HasPrefix(it, "(") {
				return nil, false
			}
		}
	}
	return items, true
}

// splitTopLevel splits on commas outside parentheses and quotes.
func splitTopLevel(s string) ([]string, error) {
	var (
		items []string
		depth int
		quote bool
		start int
	)
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case quote:
			if ch == '\\' {
				i++
			} else if ch == '"' {
				quote = false
			}
		case ch == '"':
			quote = true
		case ch == '(':
			depth++
		case ch == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced ')' in %q", s)
			}
		case ch == ',' && depth == 0:
			items = append(items, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if depth != 0 || quote {
		return nil, fmt.Errorf("unterminated value %q", s)
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" || len(items) > 0 {
		items = append(items, rest)
	}
	return items, nil
}

// parseElement parses text into element i of a.
func parseElement(a *Array, i int, typeName string, st *StructType, text string) error {
	text = strings.TrimSpace(text)
	if a.Type() == ElementStruct {
		rec, err := parseRecord(a.Struct(), text)
		if err != nil {
			return err
		}
		a.SetRecord(i, rec)
		return nil
	}
	switch typeName {
	case TypeBool:
		v, err := strconv.ParseBool(text)
		if err != nil {
			return err
		}
		a.SetBool(i, v)
	case TypeUint8:
		v, err := strconv.ParseUint(text, 0, 8)
		if err != nil {
			return err
		}
		a.SetUint8(i, uint8(v))
	case TypeInt32:
		v, err := strconv.ParseInt(text, 0, 32)
		if err != nil {
			return err
		}
		a.SetInt32(i, int32(v))
	case TypeInt64:
		v, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return err
		}
		a.SetInt64(i, v)
	case TypeFloat:
		v, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return err
		}
		a.SetFloat32(i, float32(v))
	case TypeDouble:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return err
		}
		a.SetFloat64(i, v)
	case TypeName:
		a.SetName(i, unquote(text))
	case TypeString:
		a.SetText(i, unquote(text))
	default:
		return fmt.Errorf("no textual form for type %q", typeName)
	}
	return nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
	}
	return s
}

// parseRecord parses "(Field=Value,...)". Omitted fields stay zero.
func parseRecord(st *StructType, text string) (Record, error) {
	rec := NewRecord(st)
	if len(text) < 2 || text[0] != '(' || text[len(text)-1] != ')' {
		return rec, fmt.Errorf("%s value %q is not parenthesised", st.Name, text)
	}
	items, err := splitTopLevel(text[1 : len(text)-1])
	if err != nil {
		return rec, err
	}
	for _, it := range items {
		name, value, ok := strings.Cut(it, "=")
		if !ok {
			return rec, fmt.Errorf("%s: expected Field=Value, got %q", st.Name, it)
		}
		name = strings.TrimSpace(name)
		fi := st.FieldIndex(name)
		if fi < 0 {
			return rec, fmt.Errorf("%s has no field %q", st.Name, name)
		}
		f := st.Fields[fi]
		if err := parseElement(rec.fields[fi], 0, f.TypeName, f.Struct, value); err != nil {
			return rec, fmt.Errorf("%s.%s: %w", st.Name, name, err)
		}
	}
	return rec, nil
}

// formatElement renders element i of a in the syntax parseElement accepts.
func formatElement(a *Array, typeName string, i int) string {
	switch a.Type() {
	case ElementStruct:
		return a.Record(i).String()
	case ElementName:
		return a.Name(i)
	case ElementString:
		return strconv.Quote(a.Text(i))
	}
	switch typeName {
	case TypeBool:
		return strconv.FormatBool(a.Bool(i))
	case TypeUint8:
		return strconv.FormatUint(uint64(a.Uint8(i)), 10)
	case TypeInt32:
		return strconv.FormatInt(int64(a.Int32(i)), 10)
	case TypeInt64:
		return strconv.FormatInt(a.Int64(i), 10)
	case TypeFloat:
		return strconv.FormatFloat(float64(a.Float32(i)), 'g', -1, 32)
	case TypeDouble:
		return strconv.FormatFloat(a.Float64(i), 'g', -1, 64)
	default:
		return fmt.Sprintf("%x", a.Bytes(i))
	}
}

// Values formats every element of the register (slice 0 of a nested one).
func (r *Register) Values() []string {
	a := r.data
	if r.Growth == Nested {
		a = r.SliceView(0)
	}
	out := make([]string, a.Len())
	for i := range out {
		out[i] = formatElement(a, r.TypeName, i)
	}
	return out
}
