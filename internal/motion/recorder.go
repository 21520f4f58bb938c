package motion

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aquarig/fintrack/internal/control"
	"github.com/aquarig/fintrack/internal/dispatch"
	"github.com/aquarig/fintrack/internal/monitoring"
	"github.com/aquarig/fintrack/internal/pipe"
	"github.com/aquarig/fintrack/internal/sysmon"
	"github.com/aquarig/fintrack/internal/telemetry"
	"github.com/aquarig/fintrack/internal/video"
)

// RecorderParams is the recorder's full tuning, replaced as a whole over
// the parameter-update channel.
type RecorderParams struct {
	Detector DetectorParams

	// NPreviousSave is the pre-event buffer capacity: frames of context
	// kept so a triggered recording includes what led up to it.
	NPreviousSave int

	// NNextSave is the post-trigger countdown: frames recorded after
	// each motion event. A fresh event restarts (not extends) it.
	NNextSave int
}

// EpisodeEventKind tags episode lifecycle events.
type EpisodeEventKind int

const (
	// EpisodeStarted marks the rising edge into recording.
	EpisodeStarted EpisodeEventKind = iota
	// EpisodeEnded marks the countdown reaching zero.
	EpisodeEnded
)

func (k EpisodeEventKind) String() string {
	switch k {
	case EpisodeStarted:
		return "started"
	case EpisodeEnded:
		return "ended"
	}
	return "unknown"
}

// EpisodeEvent describes a recording-episode boundary for downstream
// bookkeeping (the episode index).
type EpisodeEvent struct {
	ID      uuid.UUID
	Kind    EpisodeEventKind
	TS      time.Time
	Flushed int // pre-event frames flushed at the start
	Emitted int // total frames emitted, flush included (end events)
}

// DefaultMemoryLimit is the utilization fraction above which output
// writes are suppressed.
const DefaultMemoryLimit = 0.9

// Config holds the recorder's queue endpoints, gates and tuning.
type Config struct {
	// Camera delivers raw frames; the mandatory blocking read. The
	// recorder is fed independently of the dispatcher.
	Camera *pipe.Queue[video.Frame]

	// ParamUpdates carries whole-struct parameter replacements,
	// last-writer-wins.
	ParamUpdates *pipe.Queue[RecorderParams]

	// Output receives recorded frames for the persistent writer.
	Output *pipe.Queue[video.Frame]

	// FrameStarts receives the timestamp of every recorded frame, in
	// emission order, on a parallel channel.
	FrameStarts *pipe.Queue[time.Time]

	// Episodes receives episode boundary events. Optional.
	Episodes *pipe.Queue[EpisodeEvent]

	// Display receives the throttled frame subset, best-effort.
	Display *pipe.Queue[video.Frame]

	// RecordingEnabled gates all output emission.
	RecordingEnabled *control.Gate

	// Memory samples system memory utilization for the pressure gate.
	Memory sysmon.Sampler

	// MemoryLimit overrides DefaultMemoryLimit when > 0.
	MemoryLimit float64

	// InitialParams primes the tuning before any update arrives.
	InitialParams RecorderParams

	// TargetDisplayFPS caps display forwarding. Default 30.
	TargetDisplayFPS float64

	// FPSRange is the rate-estimation window.
	FPSRange int
}

// Recorder watches camera frames for motion and records buffered
// episodes around each event.
type Recorder struct {
	cfg      Config
	params   RecorderParams
	detector *Detector
	throttle *dispatch.Throttle

	recording bool
	counter   int
	preBuffer []video.Frame

	episodeID      uuid.UUID
	episodeFlushed int
	episodeEmitted int

	memUse        float64
	outputDropped uint64
}

// New creates a recorder primed with cfg.InitialParams.
func New(cfg Config) *Recorder {
	if cfg.TargetDisplayFPS <= 0 {
		cfg.TargetDisplayFPS = 30
	}
	if cfg.FPSRange < 1 {
		cfg.FPSRange = telemetry.DefaultFPSRange
	}
	if cfg.MemoryLimit <= 0 {
		cfg.MemoryLimit = DefaultMemoryLimit
	}
	if cfg.Memory == nil {
		cfg.Memory = sysmon.MemoryUtilization
	}
	r := &Recorder{
		cfg:      cfg,
		params:   cfg.InitialParams,
		detector: NewDetector(cfg.InitialParams.Detector),
		throttle: dispatch.NewThrottle(cfg.TargetDisplayFPS, cfg.FPSRange),
		memUse:   cfg.Memory(),
	}
	return r
}

// Recording reports whether the current frame span is being recorded.
func (r *Recorder) Recording() bool { return r.recording }

// Countdown returns the remaining post-trigger frame count.
func (r *Recorder) Countdown() int { return r.counter }

// Run loops until ctx is cancelled; cancellation during the camera wait
// is the clean shutdown path.
func (r *Recorder) Run(ctx context.Context) error {
	monitoring.Opsf("recorder: started (pre=%d post=%d)",
		r.params.NPreviousSave, r.params.NNextSave)
	defer monitoring.Opsf("recorder: stopped (%d output drops)", r.outputDropped)

	for {
		frame, err := r.cfg.Camera.Recv(ctx)
		if err != nil {
			return nil
		}
		r.step(frame)
	}
}

func (r *Recorder) step(frame video.Frame) {
	if p, ok := r.cfg.ParamUpdates.Drain(); ok {
		r.params = p
		r.detector.SetParams(p.Detector)
		monitoring.Diagf("recorder: parameters updated (pre=%d post=%d motion=%d)",
			p.NPreviousSave, p.NNextSave, p.Detector.MotionThreshold)
	}

	triggered, _, err := r.detector.Ingest(frame.Gray)
	if err != nil {
		// Frame-geometry hiccups are recoverable: skip the motion test,
		// keep buffering and displaying.
		monitoring.Opsf("recorder: motion test failed: %v", err)
		triggered = false
	}
	if triggered {
		// Restart, never extend: a second event during an active
		// countdown rearms the full post-window.
		r.counter = r.params.NNextSave
		monitoring.Tracef("recorder: motion event at %v", frame.TS)
	}

	if r.counter > 0 {
		r.recordFrame(frame)
		r.counter--
	} else {
		if r.recording {
			r.recording = false
			r.emitEpisodeEvent(EpisodeEvent{
				ID:      r.episodeID,
				Kind:    EpisodeEnded,
				TS:      frame.TS,
				Flushed: r.episodeFlushed,
				Emitted: r.episodeEmitted,
			})
			monitoring.Diagf("recorder: episode %s ended (%d frames)",
				r.episodeID, r.episodeEmitted)
		}
		r.preBuffer = append(r.preBuffer, frame)
		if n := len(r.preBuffer); n > r.params.NPreviousSave {
			copy(r.preBuffer, r.preBuffer[n-r.params.NPreviousSave:])
			r.preBuffer = r.preBuffer[:r.params.NPreviousSave]
		}
	}

	if r.throttle.Admit(frame.TS) {
		// Memory is sampled at display cadence, not per frame.
		r.memUse = r.cfg.Memory()
		if !r.cfg.Display.TrySend(frame) {
			monitoring.Tracef("recorder: display queue full, frame dropped")
		}
	}
}

// recordFrame handles one frame inside an active countdown: on the
// rising edge it flushes the pre-event buffer (oldest first) ahead of
// the live frame, exactly once per episode.
func (r *Recorder) recordFrame(frame video.Frame) {
	emit := r.cfg.RecordingEnabled.IsSet() && r.memUse < r.cfg.MemoryLimit

	if !r.recording {
		r.recording = true
		r.episodeID = uuid.New()
		r.episodeFlushed = 0
		r.episodeEmitted = 0

		if emit {
			for _, buffered := range r.preBuffer {
				r.emit(buffered)
				r.episodeFlushed++
			}
			r.preBuffer = r.preBuffer[:0]
		}
		r.emitEpisodeEvent(EpisodeEvent{
			ID:      r.episodeID,
			Kind:    EpisodeStarted,
			TS:      frame.TS,
			Flushed: r.episodeFlushed,
		})
		monitoring.Diagf("recorder: episode %s started (flushed %d context frames)",
			r.episodeID, r.episodeFlushed)
	}

	if emit {
		r.emit(frame)
	}
}

func (r *Recorder) emit(frame video.Frame) {
	// The memory gate is the designed protection for the persistence
	// path; if the writer still falls behind, frames are dropped rather
	// than letting the queue back-pressure acquisition. The recorder is
	// the sole producer for both queues, so checking capacity up front
	// guarantees the frame and its timestamp land together: either both
	// are sent or both are dropped.
	if r.cfg.Output.Len() >= r.cfg.Output.Cap() ||
		r.cfg.FrameStarts.Len() >= r.cfg.FrameStarts.Cap() {
		r.outputDropped++
		if r.outputDropped%100 == 1 {
			monitoring.Opsf("recorder: output queue full, %d frames dropped", r.outputDropped)
		}
		return
	}
	r.cfg.Output.TrySend(frame)
	r.cfg.FrameStarts.TrySend(frame.TS)
	r.episodeEmitted++
}

func (r *Recorder) emitEpisodeEvent(ev EpisodeEvent) {
	if r.cfg.Episodes == nil {
		return
	}
	// Never displace queued boundary events: evicting a start would
	// orphan its end in the episode index. A full queue drops the new
	// event instead.
	if !r.cfg.Episodes.TrySend(ev) {
		monitoring.Opsf("recorder: episode event queue full, %s event for %s dropped",
			ev.Kind, ev.ID)
	}
}
