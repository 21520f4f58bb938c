package datalog

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/aquarig/fintrack/internal/monitoring"
	"github.com/aquarig/fintrack/internal/pipe"
	"github.com/aquarig/fintrack/internal/video"
)

// FrameArchive writes recorded frames to disk as timestamped PNGs.
// It is the slow consumer behind the recorder's output queue; the
// recorder drops rather than blocks when this falls behind.
type FrameArchive struct {
	dir     string
	written uint64
}

// NewFrameArchive ensures dir exists and returns an archive writing
// into it.
func NewFrameArchive(dir string) (*FrameArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "frame archive directory")
	}
	return &FrameArchive{dir: dir}, nil
}

// Written returns the number of frames persisted so far.
func (a *FrameArchive) Written() uint64 { return a.written }

// WriteFrame persists one frame, named by its capture timestamp.
func (a *FrameArchive) WriteFrame(f video.Frame) error {
	name := fmt.Sprintf("%d.png", f.TS.UnixNano())
	file, err := os.Create(filepath.Join(a.dir, name))
	if err != nil {
		return errors.Wrap(err, "create frame file")
	}
	if err := png.Encode(file, f.Gray); err != nil {
		file.Close()
		return errors.Wrap(err, "encode frame")
	}
	if err := file.Close(); err != nil {
		return errors.Wrap(err, "close frame file")
	}
	a.written++
	return nil
}

// Sink consumes recorded frames until ctx is cancelled. Write failures
// are logged and skipped so one bad frame cannot stall the archive.
func (a *FrameArchive) Sink(ctx context.Context, frames *pipe.Queue[video.Frame]) error {
	defer monitoring.Opsf("datalog: frame archive closed (%d frames)", a.written)
	for {
		f, err := frames.Recv(ctx)
		if err != nil {
			return nil
		}
		if err := a.WriteFrame(f); err != nil {
			monitoring.Opsf("datalog: %v", err)
		}
	}
}

// SinkStarts appends recorded-frame capture timestamps, in emission
// order, to frame_starts.log in the archive directory.
func (a *FrameArchive) SinkStarts(ctx context.Context, starts *pipe.Queue[time.Time]) error {
	file, err := os.OpenFile(
		filepath.Join(a.dir, "frame_starts.log"),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644,
	)
	if err != nil {
		return errors.Wrap(err, "open frame start log")
	}
	defer file.Close()

	for {
		ts, err := starts.Recv(ctx)
		if err != nil {
			return nil
		}
		if _, err := fmt.Fprintln(file, ts.Format(time.RFC3339Nano)); err != nil {
			monitoring.Opsf("datalog: frame start log: %v", err)
		}
	}
}
