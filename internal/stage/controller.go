package stage

import (
	"context"
	"time"

	"github.com/aquarig/fintrack/internal/control"
	"github.com/aquarig/fintrack/internal/dispatch"
	"github.com/aquarig/fintrack/internal/monitoring"
	"github.com/aquarig/fintrack/internal/pipe"
	"github.com/aquarig/fintrack/internal/telemetry"
	"github.com/aquarig/fintrack/internal/timeutil"
	"github.com/aquarig/fintrack/internal/units"
)

// Mode is the controller's operating mode, evaluated fresh every
// iteration from the pending requests and queue reads.
type Mode int

const (
	ModeWaiting Mode = iota
	ModeHoming
	ModeCalibrating
	ModeTracking
)

func (m Mode) String() string {
	switch m {
	case ModeHoming:
		return "homing"
	case ModeCalibrating:
		return "calibrating"
	case ModeTracking:
		return "tracking"
	default:
		return "waiting"
	}
}

// Flags is the mutually exclusive mode triple carried in a Status and
// accepted from upstream consumers for propagation.
type Flags struct {
	Tracking bool
	Homing   bool
	Waiting  bool
}

func flagsFor(m Mode) Flags {
	switch m {
	case ModeHoming:
		return Flags{Homing: true}
	case ModeTracking:
		return Flags{Tracking: true}
	default:
		return Flags{Waiting: true}
	}
}

// Status is the consolidated stage report published once per iteration
// in which a tracked position was known.
type Status struct {
	TS time.Time

	// X, Y are the absolute encoder positions in steps.
	X, Y float64

	// OffsetX, OffsetY are the relative jog offsets commanded this
	// iteration, zero when movement was clamped or fell back.
	OffsetX, OffsetY int

	Flags Flags
}

const (
	// DefaultHomeOffsetSteps is the encoder reading at the arena
	// center after homing.
	DefaultHomeOffsetSteps = 2200000

	// DefaultArenaRadiusSteps bounds stage travel around the home
	// offset; jogs that would leave the circle are rejected.
	DefaultArenaRadiusSteps = 1500000

	// DefaultPollTimeout is the bounded wait on the auxiliary reads.
	DefaultPollTimeout = time.Millisecond
)

// Config wires a Controller to its axes, queues and request flags.
type Config struct {
	// X, Y are the stage axes. Both are opened when Run starts and
	// closed when it returns.
	X, Y Axis

	// Positions carries tracked offsets from the dispatcher; read with
	// a short timeout, previous value retained on silence.
	Positions *pipe.Queue[dispatch.TimedResult]

	// Upstream carries mode flags pushed by the operator surface.
	// Optional; a fresh read overrides the derived flags for that
	// iteration's Status.
	Upstream *pipe.Queue[Flags]

	// Status receives consolidated reports, latest-wins.
	Status *pipe.Queue[Status]

	// Home and Calibrate are one-shot routine requests.
	Home, Calibrate *control.Request

	// Converter maps tracked pixel offsets to axis steps.
	Converter units.Converter

	// HomeOffsetSteps and ArenaRadiusSteps define the travel circle.
	// Defaults apply when zero.
	HomeOffsetSteps  int64
	ArenaRadiusSteps int64

	PollTimeout time.Duration
	Clock       timeutil.Clock
	FPSRange    int
}

// Controller is the closed-loop stage process: it consumes tracked
// positions and requests, commands the axes and publishes Status.
type Controller struct {
	cfg Config
	acc *telemetry.Accumulator

	lastPos      *dispatch.TimedResult
	lastX, lastY int64
}

// New creates a controller. Missing tuning falls back to defaults.
func New(cfg Config) *Controller {
	if cfg.HomeOffsetSteps == 0 {
		cfg.HomeOffsetSteps = DefaultHomeOffsetSteps
	}
	if cfg.ArenaRadiusSteps == 0 {
		cfg.ArenaRadiusSteps = DefaultArenaRadiusSteps
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.FPSRange < 1 {
		cfg.FPSRange = telemetry.DefaultFPSRange
	}
	c := &Controller{
		cfg: cfg,
		acc: telemetry.New(cfg.FPSRange, 4096),
	}
	c.acc.Reset([]string{"x", "y", "dist_x", "dist_y", "tracking", "homing", "waiting"})
	return c
}

// History returns the controller's status accumulator. Single writer:
// read it only from the loop goroutine or after Run has returned.
func (c *Controller) History() *telemetry.Accumulator { return c.acc }

// Run opens both axes and iterates until ctx is cancelled, then
// releases the axes.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.cfg.Y.Open(); err != nil {
		return err
	}
	if err := c.cfg.X.Open(); err != nil {
		c.cfg.Y.Close()
		return err
	}
	defer func() {
		c.cfg.X.Close()
		c.cfg.Y.Close()
		monitoring.Opsf("stage: axes released")
	}()
	monitoring.Opsf("stage: controller started (arena radius %d steps)", c.cfg.ArenaRadiusSteps)

	for ctx.Err() == nil {
		c.step()
	}
	return nil
}

func (c *Controller) step() {
	mode := ModeWaiting
	var fresh *Flags

	switch {
	case c.cfg.Home.Take():
		c.home()
		mode = ModeHoming

	case c.cfg.Calibrate.Take():
		c.calibrate()
		mode = ModeCalibrating

	default:
		if p, ok := c.cfg.Positions.RecvTimeout(c.cfg.PollTimeout); ok {
			c.lastPos = &p
			mode = ModeTracking
		}
		if c.cfg.Upstream != nil {
			if f, ok := c.cfg.Upstream.RecvTimeout(c.cfg.PollTimeout); ok {
				fresh = &f
			}
		}
	}

	if c.lastPos == nil {
		return
	}

	offX, offY := c.follow(mode)

	flags := flagsFor(mode)
	if mode == ModeCalibrating {
		flags = Flags{Waiting: true}
	}
	if fresh != nil {
		flags = *fresh
	}
	st := Status{
		TS:      c.cfg.Clock.Now(),
		X:       float64(c.lastX),
		Y:       float64(c.lastY),
		OffsetX: offX,
		OffsetY: offY,
		Flags:   flags,
	}
	c.cfg.Status.SendLatest(st)
	c.acc.Append(telemetry.Row{
		T: float64(st.TS.UnixNano()) / float64(time.Second),
		Values: []float64{
			st.X, st.Y, float64(offX), float64(offY),
			b2f(flags.Tracking), b2f(flags.Homing), b2f(flags.Waiting),
		},
	})
}

// follow refreshes the encoder readings and, when the mode permits,
// jogs both axes toward the tracked offset. It returns the commanded
// offsets, zero on any fallback.
func (c *Controller) follow(mode Mode) (offX, offY int) {
	px, errX := c.cfg.X.Position()
	py, errY := c.cfg.Y.Position()
	if errX != nil || errY != nil {
		// Keep reporting the last readings; no jog without a trusted
		// starting point for the arena check.
		monitoring.Opsf("stage: encoder read failed (x: %v, y: %v)", errX, errY)
		return 0, 0
	}
	c.lastX, c.lastY = px, py

	if mode == ModeHoming || mode == ModeCalibrating {
		return 0, 0
	}

	vals := c.lastPos.Values
	if len(vals) < 2 {
		monitoring.Diagf("stage: tracked position arity %d, need 2", len(vals))
		return 0, 0
	}
	stepsX, errX2 := c.cfg.Converter.Steps(vals[0])
	stepsY, errY2 := c.cfg.Converter.Steps(vals[1])
	if errX2 != nil || errY2 != nil {
		monitoring.Diagf("stage: offset conversion fell back to zero (x: %v, y: %v)", errX2, errY2)
		return 0, 0
	}

	if !c.withinArena(px+int64(stepsX), py+int64(stepsY)) {
		monitoring.Tracef("stage: jog (%d,%d) rejected by arena bound", stepsX, stepsY)
		return 0, 0
	}

	if err := c.cfg.X.Jog(stepsX); err != nil {
		monitoring.Opsf("stage: x jog failed: %v", err)
		return 0, 0
	}
	if err := c.cfg.Y.Jog(stepsY); err != nil {
		monitoring.Opsf("stage: y jog failed: %v", err)
		return stepsX, 0
	}
	return stepsX, stepsY
}

// withinArena checks a target encoder position against the travel
// circle around the home offset.
func (c *Controller) withinArena(x, y int64) bool {
	dx := x - c.cfg.HomeOffsetSteps
	dy := y - c.cfg.HomeOffsetSteps
	r := c.cfg.ArenaRadiusSteps
	return dx*dx+dy*dy <= r*r
}

// home runs the homing routine: minimal-movement homing on Y first,
// then X with its seek direction reversed. The axis order matters.
func (c *Controller) home() {
	if err := c.cfg.Y.Home(); err != nil {
		monitoring.Opsf("stage: y homing failed: %v", err)
		return
	}
	if err := c.cfg.X.SetHomingReverse(true); err != nil {
		monitoring.Opsf("stage: x homing reverse failed: %v", err)
		return
	}
	if err := c.cfg.X.Home(); err != nil {
		monitoring.Opsf("stage: x homing failed: %v", err)
		return
	}
	monitoring.Diagf("stage: homed")
}

func (c *Controller) calibrate() {
	if err := c.cfg.X.Calibrate(); err != nil {
		monitoring.Opsf("stage: x calibration failed: %v", err)
		return
	}
	if err := c.cfg.Y.Calibrate(); err != nil {
		monitoring.Opsf("stage: y calibration failed: %v", err)
		return
	}
	monitoring.Diagf("stage: calibrated")
}

func b2f(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
