// Package units defines the conversion between camera pixels and stage
// motor steps. Tracked positions arrive in frame pixels; the stage jogs
// in encoder steps, so every closed-loop command crosses this boundary
// exactly once.
package units

import (
	"fmt"
	"math"
)

// DefaultStepsPerPixel matches the reference rig's jog step size for a
// 1:1 camera scale.
const DefaultStepsPerPixel = 20000

// Converter converts pixel offsets to integer stage steps.
type Converter struct {
	// StepsPerPixel is the encoder steps corresponding to one camera
	// pixel of subject offset.
	StepsPerPixel float64
}

// NewConverter validates and returns a converter.
func NewConverter(stepsPerPixel float64) (Converter, error) {
	if stepsPerPixel <= 0 || math.IsNaN(stepsPerPixel) || math.IsInf(stepsPerPixel, 0) {
		return Converter{}, fmt.Errorf("steps-per-pixel %v out of range", stepsPerPixel)
	}
	return Converter{StepsPerPixel: stepsPerPixel}, nil
}

// Steps converts a pixel offset to whole stage steps, truncating toward
// zero. Non-finite input is a conversion failure.
func (c Converter) Steps(pixels float64) (int, error) {
	if math.IsNaN(pixels) || math.IsInf(pixels, 0) {
		return 0, fmt.Errorf("non-finite pixel offset %v", pixels)
	}
	steps := pixels * c.StepsPerPixel
	if steps > math.MaxInt32 || steps < math.MinInt32 {
		return 0, fmt.Errorf("offset %v pixels exceeds step range", pixels)
	}
	return int(steps), nil
}
