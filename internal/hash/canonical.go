package hash

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

var numberType = reflect.TypeOf(json.Number(""))

func encodeValue(buf *bytes.Buffer, path string, v any) error {
	return encode(buf, path, reflect.ValueOf(v))
}

func encode(buf *bytes.Buffer, path string, v reflect.Value) error {
	if !v.IsValid() {
		buf.WriteString("null")
		return nil
	}
	if v.Type() == numberType {
		s := v.String()
		if s == "" || !json.Valid([]byte(s)) {
			return &SerializationError{Path: path, Reason: fmt.Sprintf("invalid number literal %q", s)}
		}
		buf.WriteString(s)
		return nil
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			buf.WriteString("null")
			return nil
		}
		return encode(buf, path, v.Elem())
	case reflect.Bool:
		if v.Bool() {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf.WriteString(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		buf.WriteString(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		s, err := formatFloat(v.Float())
		if err != nil {
			return &SerializationError{Path: path, Reason: err.Error()}
		}
		buf.WriteString(s)
	case reflect.String:
		if !utf8.ValidString(v.String()) {
			return &SerializationError{Path: path, Reason: "invalid UTF-8"}
		}
		writeString(buf, v.String())
	case reflect.Slice, reflect.Array:
		buf.WriteByte('[')
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				buf.WriteString(", ")
			}
			if err := encode(buf, fmt.Sprintf("%s[%d]", path, i), v.Index(i)); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return &SerializationError{Path: path, Reason: "mapping keys must be strings, got " + v.Type().Key().String()}
		}
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		fields := make([]field, len(keys))
		for i, k := range keys {
			fields[i] = field{name: k.String(), value: v.MapIndex(k)}
		}
		return encodeObject(buf, path, fields)
	case reflect.Struct:
		return encodeObject(buf, path, structFields(v))
	default:
		return &SerializationError{Path: path, Reason: "unsupported type " + v.Type().String()}
	}
	return nil
}

type field struct {
	name  string
	value reflect.Value
}

func encodeObject(buf *bytes.Buffer, path string, fields []field) error {
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteString(", ")
		}
		if !utf8.ValidString(f.name) {
			return &SerializationError{Path: path, Reason: fmt.Sprintf("invalid UTF-8 in key %q", f.name)}
		}
		writeString(buf, f.name)
		buf.WriteString(": ")
		if err := encode(buf, path+"."+f.name, f.value); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// structFields lists exported fields under their json names, sorted.
// Untagged embedded structs are flattened like encoding/json does.
func structFields(v reflect.Value) []field {
	fields := collectFields(v, nil)
	sort.Slice(fields, func(i, j int) bool { return fields[i].name < fields[j].name })
	return fields
}

func collectFields(v reflect.Value, fields []field) []field {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		fv := v.Field(i)
		if sf.Anonymous && name == "" && sf.Type.Kind() == reflect.Struct {
			fields = collectFields(fv, fields)
			continue
		}
		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		if strings.Contains(opts, "omitempty") && isEmpty(fv) {
			continue
		}
		fields = append(fields, field{name: name, value: fv})
	}
	return fields
}

func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}

// formatFloat writes the shortest round-trip form. Integral values keep a
// trailing ".0"; very small or very large magnitudes use exponent form.
func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("non-finite float %v", f)
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64), nil
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s, nil
}

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			switch {
			case r < 0x20 || r > 0x7e && r <= 0xffff:
				fmt.Fprintf(buf, `\u%04x`, r)
			case r > 0xffff:
				r1, r2 := utf16.EncodeRune(r)
				fmt.Fprintf(buf, `\u%04x\u%04x`, r1, r2)
			default:
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}
