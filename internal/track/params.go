// Package track defines the pluggable tracking algorithms applied to
// camera frames, the registry they are resolved from, and the parameter
// mapping they consume.
package track

// Params is the named processing-parameter mapping consumed by tracking
// algorithms. Producers replace the whole map atomically over the
// parameter-update channel; it is never partially mutated in place, so a
// snapshot handed to an algorithm stays stable for the frame.
type Params map[string]interface{}

// DefaultParams returns the standard configuration applied before any
// update arrives.
func DefaultParams() Params {
	return Params{
		"algorithm":     "centroid",
		"rescale":       1.0,
		"filter_size":   0,
		"threshold":     100,
		"color_invert":  false,
		"n_segments":    10,
		"window_size":   10,
		"start_x":       0.0,
		"start_y":       0.0,
		"tail_length_x": 1.0,
		"tail_length_y": 1.0,
	}
}

// Clone returns a shallow copy. Values are scalars, so a shallow copy is
// a full snapshot.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Float reads a numeric parameter, accepting the numeric types a JSON or
// GUI producer may supply. Missing or non-numeric values yield def.
func (p Params) Float(name string, def float64) float64 {
	v, ok := p[name]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return def
	}
}

// Int reads an integer parameter with truncation for float-typed values.
func (p Params) Int(name string, def int) int {
	v, ok := p[name]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	default:
		return def
	}
}

// Bool reads a boolean parameter.
func (p Params) Bool(name string, def bool) bool {
	if v, ok := p[name].(bool); ok {
		return v
	}
	return def
}

// String reads a string parameter.
func (p Params) String(name, def string) string {
	if v, ok := p[name].(string); ok {
		return v
	}
	return def
}
