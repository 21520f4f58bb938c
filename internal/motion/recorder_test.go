package motion

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aquarig/fintrack/internal/control"
	"github.com/aquarig/fintrack/internal/pipe"
	"github.com/aquarig/fintrack/internal/sysmon"
	"github.com/aquarig/fintrack/internal/video"
)

type recorderRig struct {
	camera   *pipe.Queue[video.Frame]
	params   *pipe.Queue[RecorderParams]
	output   *pipe.Queue[video.Frame]
	starts   *pipe.Queue[time.Time]
	episodes *pipe.Queue[EpisodeEvent]
	display  *pipe.Queue[video.Frame]
	gate     *control.Gate
}

func scenarioParams() RecorderParams {
	return RecorderParams{
		Detector:      DetectorParams{FishThreshold: 100, MotionThreshold: 500, FrameMargin: 2},
		NPreviousSave: 5,
		NNextSave:     3,
	}
}

func newRecorderRig(mem sysmon.Sampler) (*Recorder, recorderRig) {
	rig := recorderRig{
		camera:   pipe.New[video.Frame](64),
		params:   pipe.New[RecorderParams](4),
		output:   pipe.New[video.Frame](256),
		starts:   pipe.New[time.Time](256),
		episodes: pipe.New[EpisodeEvent](16),
		display:  pipe.New[video.Frame](256),
		gate:     &control.Gate{},
	}
	rig.gate.Set()
	r := New(Config{
		Camera:           rig.camera,
		ParamUpdates:     rig.params,
		Output:           rig.output,
		FrameStarts:      rig.starts,
		Episodes:         rig.episodes,
		Display:          rig.display,
		RecordingEnabled: rig.gate,
		Memory:           mem,
		InitialParams:    scenarioParams(),
		FPSRange:         5,
	})
	return r, rig
}

// frameAt wraps a still/moving scene image with a timestamp.
func frameAt(sec int, left, right bool) video.Frame {
	return video.Frame{TS: time.Unix(int64(sec), 0), Gray: square(left, right)}
}

func drainStarts(q *pipe.Queue[time.Time]) []time.Time {
	var out []time.Time
	for {
		ts, ok := q.TryRecv()
		if !ok {
			return out
		}
		out = append(out, ts)
	}
}

func TestEpisodeScenario(t *testing.T) {
	r, rig := newRecorderRig(sysmon.Fixed(0.5))

	// 10 identical frames: no trigger, pre-buffer caps at 5 with the
	// oldest evicted.
	for i := 0; i < 10; i++ {
		r.step(frameAt(i, true, false))
	}
	if r.Recording() || r.Countdown() != 0 {
		t.Fatalf("recording=%v countdown=%d after static frames", r.Recording(), r.Countdown())
	}
	if got := drainStarts(rig.starts); len(got) != 0 {
		t.Fatalf("%d emissions before any trigger", len(got))
	}

	// One high-motion frame: trigger. The 5 buffered frames flush
	// oldest-first, then the triggering frame itself: 6 emissions.
	r.step(frameAt(10, true, true))
	starts := drainStarts(rig.starts)
	if len(starts) != 6 {
		t.Fatalf("emissions after trigger = %d, want 6", len(starts))
	}
	for i, ts := range starts {
		want := time.Unix(int64(5+i), 0)
		if !ts.Equal(want) {
			t.Errorf("emission %d at %v, want %v (pre-buffer before live frame, in order)", i, ts, want)
		}
	}
	if r.Countdown() != 2 {
		t.Errorf("countdown after trigger frame = %d, want 2", r.Countdown())
	}

	ev, ok := rig.episodes.TryRecv()
	if !ok || ev.Kind != EpisodeStarted {
		t.Fatalf("expected EpisodeStarted event, got %+v ok=%v", ev, ok)
	}
	if ev.Flushed != 5 {
		t.Errorf("Started.Flushed = %d, want 5", ev.Flushed)
	}

	// Two more quiet frames ride out the countdown (2 -> 1 -> 0).
	r.step(frameAt(11, true, true))
	if r.Countdown() != 1 {
		t.Errorf("countdown = %d, want 1", r.Countdown())
	}
	r.step(frameAt(12, true, true))
	if r.Countdown() != 0 {
		t.Errorf("countdown = %d, want 0", r.Countdown())
	}
	if got := drainStarts(rig.starts); len(got) != 2 {
		t.Fatalf("emissions during countdown = %d, want 2", len(got))
	}

	// Third frame after the trigger: recording stops, episode closes.
	r.step(frameAt(13, true, true))
	if r.Recording() {
		t.Error("recording should stop once the countdown is exhausted")
	}
	if r.Countdown() != 0 {
		t.Errorf("countdown went negative: %d", r.Countdown())
	}
	ev, ok = rig.episodes.TryRecv()
	if !ok || ev.Kind != EpisodeEnded {
		t.Fatalf("expected EpisodeEnded event, got %+v ok=%v", ev, ok)
	}
	if ev.Emitted != 8 {
		t.Errorf("Ended.Emitted = %d, want 8 (5 flushed + trigger + 2 countdown)", ev.Emitted)
	}
}

func TestTriggerRestartsCountdown(t *testing.T) {
	r, rig := newRecorderRig(sysmon.Fixed(0.5))

	for i := 0; i < 6; i++ {
		r.step(frameAt(i, true, false))
	}
	r.step(frameAt(6, true, true)) // trigger
	if r.Countdown() != 2 {
		t.Fatalf("countdown = %d, want 2", r.Countdown())
	}

	// A second motion event mid-countdown rearms the full window
	// rather than adding to it.
	r.step(frameAt(7, false, true))
	if r.Countdown() != 2 {
		t.Errorf("countdown after restart = %d, want 2 (3 rearmed, minus this frame)", r.Countdown())
	}

	// Only one episode runs across both triggers.
	events := 0
	for {
		if _, ok := rig.episodes.TryRecv(); !ok {
			break
		}
		events++
	}
	if events != 1 {
		t.Errorf("episode events = %d, want 1 (single Started)", events)
	}
}

func TestMemoryPressureSuppressesOutput(t *testing.T) {
	r, rig := newRecorderRig(sysmon.Fixed(0.95))

	for i := 0; i < 6; i++ {
		r.step(frameAt(i, true, false))
	}
	r.step(frameAt(6, true, true)) // trigger under memory pressure

	if got := drainStarts(rig.starts); len(got) != 0 {
		t.Fatalf("%d emissions under memory pressure, want 0", len(got))
	}
	if _, ok := rig.output.TryRecv(); ok {
		t.Fatal("output frame leaked past the memory gate")
	}
	// The countdown still runs normally while emission is suppressed.
	if r.Countdown() != 2 {
		t.Errorf("countdown = %d, want 2", r.Countdown())
	}
	r.step(frameAt(7, true, true))
	if r.Countdown() != 1 {
		t.Errorf("countdown = %d, want 1", r.Countdown())
	}
}

func TestDisabledGateSuppressesOutput(t *testing.T) {
	r, rig := newRecorderRig(sysmon.Fixed(0.1))
	rig.gate.Clear()

	for i := 0; i < 6; i++ {
		r.step(frameAt(i, true, false))
	}
	r.step(frameAt(6, true, true))

	if got := drainStarts(rig.starts); len(got) != 0 {
		t.Fatalf("%d emissions with recording disabled, want 0", len(got))
	}
}

func TestFullOutputDropsFrameAndTimestampTogether(t *testing.T) {
	rig := recorderRig{
		camera:   pipe.New[video.Frame](64),
		params:   pipe.New[RecorderParams](4),
		output:   pipe.New[video.Frame](2),
		starts:   pipe.New[time.Time](256),
		episodes: pipe.New[EpisodeEvent](16),
		display:  pipe.New[video.Frame](256),
		gate:     &control.Gate{},
	}
	rig.gate.Set()
	r := New(Config{
		Camera:           rig.camera,
		ParamUpdates:     rig.params,
		Output:           rig.output,
		FrameStarts:      rig.starts,
		Episodes:         rig.episodes,
		Display:          rig.display,
		RecordingEnabled: rig.gate,
		Memory:           sysmon.Fixed(0.5),
		InitialParams:    scenarioParams(),
		FPSRange:         5,
	})

	// The flush wants 6 emissions but the output queue holds 2: the
	// surplus frames and their timestamps must be dropped as pairs, never
	// a timestamp without its frame.
	for i := 0; i < 6; i++ {
		r.step(frameAt(i, true, false))
	}
	r.step(frameAt(6, true, true))

	starts := drainStarts(rig.starts)
	if len(starts) != 2 {
		t.Fatalf("timestamps emitted = %d, want 2 (one per persisted frame)", len(starts))
	}
	for i, ts := range starts {
		f, ok := rig.output.TryRecv()
		if !ok {
			t.Fatalf("output holds fewer frames than timestamps at %d", i)
		}
		if !f.TS.Equal(ts) {
			t.Errorf("frame %d at %v but timestamp %v", i, f.TS, ts)
		}
	}
	if _, ok := rig.output.TryRecv(); ok {
		t.Error("output holds more frames than timestamps")
	}
	if r.outputDropped != 4 {
		t.Errorf("dropped = %d, want 4", r.outputDropped)
	}
}

func TestFullEpisodeQueueNeverEvictsQueuedStart(t *testing.T) {
	rig := recorderRig{
		camera:   pipe.New[video.Frame](64),
		params:   pipe.New[RecorderParams](4),
		output:   pipe.New[video.Frame](256),
		starts:   pipe.New[time.Time](256),
		episodes: pipe.New[EpisodeEvent](1),
		display:  pipe.New[video.Frame](256),
		gate:     &control.Gate{},
	}
	rig.gate.Set()
	r := New(Config{
		Camera:           rig.camera,
		ParamUpdates:     rig.params,
		Output:           rig.output,
		FrameStarts:      rig.starts,
		Episodes:         rig.episodes,
		Display:          rig.display,
		RecordingEnabled: rig.gate,
		Memory:           sysmon.Fixed(0.5),
		InitialParams:    scenarioParams(),
		FPSRange:         5,
	})

	// A stalled sink has left one unconsumed start in the queue. The
	// next episode's events must be dropped, not displace it: losing a
	// start orphans its matching end in the index.
	queued := EpisodeEvent{ID: uuid.New(), Kind: EpisodeStarted, TS: time.Unix(0, 0)}
	if !rig.episodes.TrySend(queued) {
		t.Fatal("could not seed the episode queue")
	}

	for i := 0; i < 6; i++ {
		r.step(frameAt(i, true, false))
	}
	r.step(frameAt(6, true, true)) // trigger
	for i := 7; i < 11; i++ {      // ride out the countdown and close
		r.step(frameAt(i, true, true))
	}
	if r.Recording() {
		t.Fatal("episode should have closed")
	}

	ev, ok := rig.episodes.TryRecv()
	if !ok || ev.ID != queued.ID || ev.Kind != EpisodeStarted {
		t.Fatalf("queued start displaced: got %+v ok=%v", ev, ok)
	}
	if _, ok := rig.episodes.TryRecv(); ok {
		t.Error("dropped events still reached the full queue")
	}
}

func TestRunExitsOnCancel(t *testing.T) {
	r, _ := newRecorderRig(sysmon.Fixed(0.5))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v on shutdown, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after cancellation")
	}
}

func TestParamUpdateAppliesNextFrame(t *testing.T) {
	r, rig := newRecorderRig(sysmon.Fixed(0.5))

	p := scenarioParams()
	p.NNextSave = 7
	rig.params.TrySend(p)

	for i := 0; i < 6; i++ {
		r.step(frameAt(i, true, false))
	}
	r.step(frameAt(6, true, true))
	if r.Countdown() != 6 {
		t.Errorf("countdown = %d, want 6 (updated NNextSave minus trigger frame)", r.Countdown())
	}
}
