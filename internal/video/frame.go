// Package video defines the camera frame type and the grayscale image
// operations used by the tracking and motion-detection paths.
package video

import (
	"image"
	"time"
)

// Frame is one timestamped 8-bit grayscale sample from the camera.
//
// Frames are immutable once produced: ownership passes from producer to
// exactly one consumer per queue hop, and processing stages that need a
// modified image allocate a new one.
type Frame struct {
	TS   time.Time
	Gray *image.Gray
}

// NewFrame allocates a frame of the given size stamped with ts.
func NewFrame(ts time.Time, w, h int) Frame {
	return Frame{TS: ts, Gray: image.NewGray(image.Rect(0, 0, w, h))}
}

// Size returns the frame's pixel dimensions.
func (f Frame) Size() (w, h int) {
	if f.Gray == nil {
		return 0, 0
	}
	b := f.Gray.Bounds()
	return b.Dx(), b.Dy()
}
