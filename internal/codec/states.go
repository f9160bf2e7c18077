package codec

import (
	"fmt"
	"math"
)

var (
	colorModes     = set("RGB", "HSV", "HSL")
	interpolations = set("EASE", "CARDINAL", "LINEAR", "B_SPLINE", "CONSTANT", "NEAR", "FAR", "CW", "CCW")
	handleTypes    = set("AUTO", "AUTO_CLAMPED", "VECTOR")
	tones          = set("STANDARD", "FILMLIKE")
	extends        = set("HORIZONTAL", "EXTRAPOLATED")
)

func set(vals ...string) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}

// ColorRamp is the state of a VALTORGB node.
type ColorRamp struct {
	Color         [][4]float64 `json:"color"`
	Position      []float64    `json:"position"`
	ColorMode     string       `json:"color_mode"`
	Interpolation string       `json:"interpolation"`
	Factor        float64      `json:"factor"`
}

func (r *ColorRamp) validate() error {
	if len(r.Position) == 0 {
		return fmt.Errorf("color ramp needs at least one stop")
	}
	if len(r.Color) != len(r.Position) {
		return fmt.Errorf("%d colors for %d positions", len(r.Color), len(r.Position))
	}
	for i, p := range r.Position {
		if p < 0 || p > 1 {
			return fmt.Errorf("position[%d] = %v outside [0, 1]", i, p)
		}
	}
	if !colorModes[r.ColorMode] {
		return fmt.Errorf("unknown color_mode %q", r.ColorMode)
	}
	if !interpolations[r.Interpolation] {
		return fmt.Errorf("unknown interpolation %q", r.Interpolation)
	}
	return nil
}

// Mapping holds the curve mapping fields shared by every curve node.
type Mapping struct {
	UseClip    bool       `json:"use_clip"`
	ClipMinX   float64    `json:"clip_min_x"`
	ClipMinY   float64    `json:"clip_min_y"`
	ClipMaxX   float64    `json:"clip_max_x"`
	ClipMaxY   float64    `json:"clip_max_y"`
	BlackLevel [3]float64 `json:"black_level"`
	WhiteLevel [3]float64 `json:"white_level"`
	Tone       string     `json:"tone"`
	Extend     string     `json:"extend"`
}

func (m *Mapping) validate() error {
	if m.ClipMinX > m.ClipMaxX || m.ClipMinY > m.ClipMaxY {
		return fmt.Errorf("clip minimum exceeds maximum")
	}
	if !tones[m.Tone] {
		return fmt.Errorf("unknown tone %q", m.Tone)
	}
	if !extends[m.Extend] {
		return fmt.Errorf("unknown extend %q", m.Extend)
	}
	return nil
}

func validateCurve(loc [][2]float64, ht []string) error {
	if len(loc) < 2 {
		return fmt.Errorf("curve needs at least two points, got %d", len(loc))
	}
	if len(loc) != len(ht) {
		return fmt.Errorf("%d points for %d handle types", len(loc), len(ht))
	}
	for i, h := range ht {
		if !handleTypes[h] {
			return fmt.Errorf("point %d: unknown handle type %q", i, h)
		}
	}
	return nil
}

// FloatCurve is the state of a CURVE_FLOAT node.
type FloatCurve struct {
	Mapping
	Location   [][2]float64 `json:"location"`
	HandleType []string     `json:"handle_type"`
	Factor     float64      `json:"factor"`
	Value      float64      `json:"value"`
}

func (c *FloatCurve) validate() error {
	if err := c.Mapping.validate(); err != nil {
		return err
	}
	return validateCurve(c.Location, c.HandleType)
}

func validateCurves(n int, loc [][][2]float64, ht [][]string) error {
	if len(loc) != n || len(ht) != n {
		return fmt.Errorf("expected %d curves, got %d locations and %d handle lists", n, len(loc), len(ht))
	}
	for i := range loc {
		if err := validateCurve(loc[i], ht[i]); err != nil {
			return fmt.Errorf("curve %d: %w", i, err)
		}
	}
	return nil
}

// RGBCurves is the state of a CURVE_RGB node: combined, red, green and
// blue curves.
type RGBCurves struct {
	Mapping
	Location   [][][2]float64 `json:"location"`
	HandleType [][]string     `json:"handle_type"`
	Factor     float64        `json:"factor"`
	Color      [4]float64     `json:"color"`
}

func (c *RGBCurves) validate() error {
	if err := c.Mapping.validate(); err != nil {
		return err
	}
	return validateCurves(4, c.Location, c.HandleType)
}

// VectorCurves is the state of a CURVE_VEC node: x, y and z curves.
type VectorCurves struct {
	Mapping
	Location   [][][2]float64 `json:"location"`
	HandleType [][]string     `json:"handle_type"`
	Factor     float64        `json:"factor"`
	Vector     [3]float64     `json:"vector"`
}

func (c *VectorCurves) validate() error {
	if err := c.Mapping.validate(); err != nil {
		return err
	}
	return validateCurves(3, c.Location, c.HandleType)
}

// RGBColor is the state of a material RGB node.
type RGBColor struct {
	Color [4]float64 `json:"color"`
}

func (c *RGBColor) validate() error { return validateColor(c.Color) }

// InputColor is the state of a geometry node INPUT_COLOR node.
type InputColor struct {
	Value [4]float64 `json:"value"`
}

func (c *InputColor) validate() error { return validateColor(c.Value) }

func validateColor(c [4]float64) error {
	for i, v := range c {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("color channel %d is not finite", i)
		}
	}
	if c[3] < 0 || c[3] > 1 {
		return fmt.Errorf("alpha %v outside [0, 1]", c[3])
	}
	return nil
}
