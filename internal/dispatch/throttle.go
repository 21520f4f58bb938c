package dispatch

import (
	"time"

	"github.com/aquarig/fintrack/internal/telemetry"
)

// Throttle decides which frames reach the display consumer. It estimates
// the measured acquisition rate from recent frame timestamps and forwards
// every stride-th frame, stride = max(1, floor(measuredFPS/targetFPS)).
// The display channel is lossy by design: a slow display consumer must
// never back-pressure acquisition.
type Throttle struct {
	acc    *telemetry.Accumulator
	target float64
	stride int
	i      int
}

// NewThrottle creates a throttle targeting the given display rate.
// fpsRange is the timestamp window used for rate estimation.
func NewThrottle(targetFPS float64, fpsRange int) *Throttle {
	if targetFPS <= 0 {
		targetFPS = 30
	}
	return &Throttle{
		// Retain only enough history for the estimation window.
		acc:    telemetry.New(fpsRange, 4*fpsRange),
		target: targetFPS,
		stride: 1,
	}
}

// Admit records the frame timestamp, refreshes the stride from the
// measured rate, and reports whether this frame should be forwarded to
// the display.
func (t *Throttle) Admit(ts time.Time) bool {
	t.acc.Append(telemetry.Row{T: float64(ts.UnixNano()) / float64(time.Second)})
	if fps := t.acc.EstimateRate(); fps > 0 {
		stride := int(fps / t.target)
		if stride < 1 {
			stride = 1
		}
		t.stride = stride
	}
	admit := t.i == 0
	t.i = (t.i + 1) % t.stride
	return admit
}

// MeasuredFPS returns the current acquisition-rate estimate, 0 until
// enough timestamps have been observed.
func (t *Throttle) MeasuredFPS() float64 {
	return t.acc.EstimateRate()
}
