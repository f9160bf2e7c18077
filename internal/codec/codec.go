// Package codec reads and writes the rich sub-state of special nodes:
// curves, color ramps and colors. Every state passes through a typed
// shape so that what is stored, hashed and applied is always validated
// and canonical.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Morzio/Hair-Factory/internal/graph"
	"github.com/Morzio/Hair-Factory/internal/hash"
)

// StateError reports a node state that does not fit its kind.
type StateError struct {
	Kind   string
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("invalid %s state: %s", e.Kind, e.Reason)
}

// Codec converts between a node's raw state and its canonical form.
type Codec struct {
	Kind      string
	Abbrev    string
	normalize func(raw map[string]any) (map[string]any, error)
}

type shape[T any] interface {
	*T
	validate() error
}

func newCodec[T any, PT shape[T]](kind, abbrev string, defaults map[string]any) *Codec {
	return &Codec{
		Kind:   kind,
		Abbrev: abbrev,
		normalize: func(raw map[string]any) (map[string]any, error) {
			merged := make(map[string]any, len(defaults)+len(raw))
			for k, v := range defaults {
				merged[k] = v
			}
			for k, v := range raw {
				merged[k] = v
			}
			b, err := json.Marshal(merged)
			if err != nil {
				return nil, &StateError{Kind: kind, Reason: err.Error()}
			}
			dec := json.NewDecoder(bytes.NewReader(b))
			dec.DisallowUnknownFields()
			var v T
			if err := dec.Decode(PT(&v)); err != nil {
				return nil, &StateError{Kind: kind, Reason: err.Error()}
			}
			if err := PT(&v).validate(); err != nil {
				return nil, &StateError{Kind: kind, Reason: err.Error()}
			}
			norm, err := hash.Normalize(PT(&v))
			if err != nil {
				return nil, err
			}
			return hash.Native(norm).(map[string]any), nil
		},
	}
}

var mappingDefaults = map[string]any{
	"use_clip":    true,
	"clip_min_x":  0.0,
	"clip_min_y":  0.0,
	"clip_max_x":  1.0,
	"clip_max_y":  1.0,
	"black_level": []float64{0, 0, 0},
	"white_level": []float64{1, 1, 1},
	"tone":        "STANDARD",
	"extend":      "EXTRAPOLATED",
}

func withMapping(extra map[string]any) map[string]any {
	out := make(map[string]any, len(mappingDefaults)+len(extra))
	for k, v := range mappingDefaults {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

var registry = map[string]*Codec{
	"VALTORGB": newCodec[ColorRamp]("VALTORGB", "CR", map[string]any{
		"color_mode": "RGB", "interpolation": "LINEAR", "factor": 0.5,
	}),
	"CURVE_FLOAT": newCodec[FloatCurve]("CURVE_FLOAT", "FC", withMapping(map[string]any{
		"factor": 1.0, "value": 1.0,
	})),
	"CURVE_RGB": newCodec[RGBCurves]("CURVE_RGB", "RC", withMapping(map[string]any{
		"factor": 1.0, "color": []float64{1, 1, 1, 1},
	})),
	"CURVE_VEC": newCodec[VectorCurves]("CURVE_VEC", "VC", withMapping(map[string]any{
		"factor": 1.0, "vector": []float64{0, 0, 0},
	})),
	"RGB": newCodec[RGBColor]("RGB", "RB", map[string]any{
		"color": []float64{0.5, 0.5, 0.5, 1},
	}),
	"INPUT_COLOR": newCodec[InputColor]("INPUT_COLOR", "IC", map[string]any{
		"value": []float64{0.5, 0.5, 0.5, 1},
	}),
}

// Lookup returns the codec for kind.
func Lookup(kind string) (*Codec, error) {
	c, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("no codec for node kind %q", kind)
	}
	return c, nil
}

// Kinds lists every kind with a codec, sorted.
func Kinds() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Abbrev returns the short tag used in suggested node preset names, or
// the kind itself when it has no codec.
func Abbrev(kind string) string {
	if c, ok := registry[kind]; ok {
		return c.Abbrev
	}
	return kind
}

// Get returns the canonical state of n.
func (c *Codec) Get(n *graph.Node) (map[string]any, error) {
	if n.Kind != c.Kind {
		return nil, fmt.Errorf("%s codec cannot read a %s node", c.Kind, n.Kind)
	}
	return c.normalize(n.State)
}

// Set validates state and writes its canonical form onto n.
func (c *Codec) Set(n *graph.Node, state any) error {
	if n.Kind != c.Kind {
		return fmt.Errorf("%s codec cannot write a %s node", c.Kind, n.Kind)
	}
	raw, ok := hash.Native(state).(map[string]any)
	if !ok {
		return &StateError{Kind: c.Kind, Reason: fmt.Sprintf("expected mapping, got %T", state)}
	}
	norm, err := c.normalize(raw)
	if err != nil {
		return err
	}
	n.State = norm
	return nil
}

// Get reads the state of n with the codec for its kind.
func Get(n *graph.Node) (map[string]any, error) {
	c, err := Lookup(n.Kind)
	if err != nil {
		return nil, err
	}
	return c.Get(n)
}

// Set writes state onto n with the codec for its kind.
func Set(n *graph.Node, state any) error {
	c, err := Lookup(n.Kind)
	if err != nil {
		return err
	}
	return c.Set(n, state)
}
