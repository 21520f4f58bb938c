// Package dispatch implements the frame-processing stage between the
// camera and the rest of the pipeline: it applies the configured tracking
// algorithm to every frame, forwards timestamped results downstream, and
// throttles what reaches the display consumer.
package dispatch

import (
	"context"
	"time"

	"github.com/aquarig/fintrack/internal/monitoring"
	"github.com/aquarig/fintrack/internal/pipe"
	"github.com/aquarig/fintrack/internal/telemetry"
	"github.com/aquarig/fintrack/internal/track"
	"github.com/aquarig/fintrack/internal/video"
)

// TimedResult pairs a tracking result with its source frame timestamp.
type TimedResult struct {
	TS     time.Time
	Values track.Result
}

// Config holds the dispatcher's queue endpoints and tuning.
type Config struct {
	// Camera delivers raw frames; the mandatory blocking read.
	Camera *pipe.Queue[video.Frame]

	// ParamUpdates carries whole-map parameter replacements;
	// last-writer-wins, polled without blocking.
	ParamUpdates *pipe.Queue[track.Params]

	// Results receives (timestamp, result) tuples. Latest-value-wins:
	// the stage controller only ever acts on the freshest position.
	Results *pipe.Queue[TimedResult]

	// Display receives the throttled frame subset, best-effort.
	Display *pipe.Queue[video.Frame]

	// InitialParams primes the parameter snapshot before any update
	// arrives. A nil map (or an empty algorithm name) runs the loop
	// with no tracking function: frames are still display-eligible.
	InitialParams track.Params

	// TargetDisplayFPS caps the display forwarding rate. Default 30.
	TargetDisplayFPS float64

	// FPSRange is the rate-estimation window. Default
	// telemetry.DefaultFPSRange.
	FPSRange int
}

// Dispatcher consumes camera frames until its context is cancelled.
type Dispatcher struct {
	cfg      Config
	params   track.Params
	algo     track.Algorithm
	throttle *Throttle

	processed      uint64
	displayDropped uint64
}

// New creates a dispatcher. The initial algorithm is resolved from
// InitialParams; an unknown name logs and leaves tracking unconfigured.
func New(cfg Config) *Dispatcher {
	if cfg.TargetDisplayFPS <= 0 {
		cfg.TargetDisplayFPS = 30
	}
	if cfg.FPSRange < 1 {
		cfg.FPSRange = telemetry.DefaultFPSRange
	}
	d := &Dispatcher{
		cfg:      cfg,
		throttle: NewThrottle(cfg.TargetDisplayFPS, cfg.FPSRange),
	}
	if cfg.InitialParams != nil {
		d.applyParams(cfg.InitialParams)
	}
	return d
}

// MeasuredFPS exposes the current acquisition-rate estimate.
func (d *Dispatcher) MeasuredFPS() float64 { return d.throttle.MeasuredFPS() }

// Run loops until ctx is cancelled. Cancellation during the camera wait
// is the clean shutdown path, not an error; transient emptiness of any
// auxiliary queue never ends the loop.
func (d *Dispatcher) Run(ctx context.Context) error {
	monitoring.Opsf("dispatcher: started (display target %.0f fps)", d.cfg.TargetDisplayFPS)
	defer monitoring.Opsf("dispatcher: stopped after %d frames (%d display drops)",
		d.processed, d.displayDropped)

	for {
		frame, err := d.cfg.Camera.Recv(ctx)
		if err != nil {
			return nil
		}
		d.step(frame)
	}
}

func (d *Dispatcher) step(frame video.Frame) {
	d.processed++

	// Pick up a new configuration if one arrived; otherwise keep the
	// current one. Reads never block on absence of an update.
	if p, ok := d.cfg.ParamUpdates.Drain(); ok {
		d.applyParams(p)
	}

	if d.algo != nil {
		res, err := d.algo.Process(frame, d.params)
		if err != nil {
			// Per-frame tracking failures are recoverable: skip the
			// result, keep the frame display-eligible.
			monitoring.Diagf("dispatcher: tracking failed: %v", err)
		} else {
			d.cfg.Results.SendLatest(TimedResult{TS: frame.TS, Values: res})
		}
	}

	if d.throttle.Admit(frame.TS) {
		if !d.cfg.Display.TrySend(frame) {
			d.displayDropped++
			monitoring.Tracef("dispatcher: display queue full, frame dropped")
		}
	}
}

func (d *Dispatcher) applyParams(p track.Params) {
	d.params = p.Clone()
	name := d.params.String("algorithm", "")
	if name == "" {
		d.algo = nil
		monitoring.Diagf("dispatcher: no tracking algorithm configured")
		return
	}
	if d.algo != nil && d.algo.Name() == name {
		return
	}
	algo, err := track.Resolve(name)
	if err != nil {
		// Keep the previously resolved algorithm; a bad update must not
		// stop tracking.
		monitoring.Opsf("dispatcher: %v", err)
		return
	}
	d.algo = algo
	monitoring.Diagf("dispatcher: tracking algorithm set to %q", name)
}
