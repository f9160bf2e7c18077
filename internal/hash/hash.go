// Package hash computes content digests of configuration values.
//
// Values are reduced to a canonical text form before hashing: mapping keys
// are sorted, every list-like container (slice, array) is written the same
// way, `, ` and `: ` separate items, non-ASCII runes are \u-escaped and
// floats always carry a fraction or exponent. Two values with the same
// content therefore hash identically no matter how they were built.
package hash

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Digest is the lowercase hex SHA-256 of a canonical encoding.
type Digest string

func (d Digest) String() string { return string(d) }

// Short returns the first 8 characters, for display.
func (d Digest) Short() string {
	if len(d) > 8 {
		return string(d[:8])
	}
	return string(d)
}

// SerializationError reports a value that has no canonical form.
type SerializationError struct {
	Path   string
	Reason string
}

func (e *SerializationError) Error() string {
	if e.Path == "" {
		return "cannot serialize value: " + e.Reason
	}
	return fmt.Sprintf("cannot serialize value at %s: %s", e.Path, e.Reason)
}

// Canonical returns the canonical encoding of v.
func Canonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, "$", v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Value returns the digest of the canonical encoding of v.
func Value(v any) (Digest, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return Bytes(b), nil
}

// Bytes hashes raw bytes.
func Bytes(b []byte) Digest {
	sum := sha256.Sum256(b)
	return Digest(hex.EncodeToString(sum[:]))
}

// Sequence hashes an ordered list of digests. Order matters.
func Sequence(ids []Digest) Digest {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, id := range ids {
		if i > 0 {
			buf.WriteString(", ")
		}
		writeString(&buf, string(id))
	}
	buf.WriteByte(']')
	return Bytes(buf.Bytes())
}

// Decode parses a canonical (or any JSON) document, keeping numbers as
// json.Number so that re-encoding reproduces the original digits.
func Decode(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &SerializationError{Reason: err.Error()}
	}
	return v, nil
}

// Normalize returns v re-decoded from its canonical form: maps become
// map[string]any, every list becomes []any and numbers become json.Number.
func Normalize(v any) (any, error) {
	b, err := Canonical(v)
	if err != nil {
		return nil, err
	}
	return Decode(b)
}

// Native replaces json.Number values inside v with int64 or float64 so the
// result can be handed to encoders that do not know json.Number.
func Native(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Native(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Native(e)
		}
		return out
	}
	return v
}
