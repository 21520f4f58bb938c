// Package motion implements background-difference motion detection and
// the buffered episodic recorder built on it.
package motion

import (
	"image"

	"github.com/aquarig/fintrack/internal/video"
)

// nPreviousCompare is the size of the comparison window: the current
// mask is compared against this many historical masks, and a motion
// event requires every comparison to exceed the threshold.
const nPreviousCompare = 3

// DetectorParams tune the per-frame motion test.
type DetectorParams struct {
	// FishThreshold is the intensity cut separating subject silhouette
	// from background in the box-filtered frame.
	FishThreshold uint8

	// MotionThreshold is the pixel-difference sum a mask comparison must
	// exceed to count as movement.
	MotionThreshold int64

	// FrameMargin crops this many pixels from every side before
	// differencing, discarding border noise.
	FrameMargin int
}

// maskRing is a fixed-size circular buffer of thresholded masks.
type maskRing struct {
	masks [nPreviousCompare]*image.Gray
	head  int
	size  int
}

func (r *maskRing) add(m *image.Gray) {
	r.masks[r.head] = m
	r.head = (r.head + 1) % nPreviousCompare
	if r.size < nPreviousCompare {
		r.size++
	}
}

// all returns the stored masks, order unspecified; every comparison must
// pass regardless of age, so order does not matter.
func (r *maskRing) all() []*image.Gray {
	return append([]*image.Gray(nil), r.masks[:r.size]...)
}

// Detector runs the thresholded-difference motion test over a sliding
// window of recent masks.
type Detector struct {
	params DetectorParams
	ring   maskRing
}

// NewDetector creates a detector with the given tuning.
func NewDetector(params DetectorParams) *Detector {
	return &Detector{params: params}
}

// SetParams replaces the detector tuning; history is retained.
func (d *Detector) SetParams(params DetectorParams) { d.params = params }

// Ingest thresholds the box-filtered frame, compares it against the
// historical window, and stores the new mask. It reports whether a
// motion event triggered and how many comparisons exceeded the
// threshold. No trigger can occur until the window is full.
func (d *Detector) Ingest(frame *image.Gray) (triggered bool, exceeded int, err error) {
	mask := video.Threshold(video.BoxFilter3(frame), d.params.FishThreshold)

	if d.ring.size == nPreviousCompare {
		for _, prev := range d.ring.all() {
			sum, derr := video.AbsDiffSum(prev, mask, d.params.FrameMargin)
			if derr != nil {
				return false, 0, derr
			}
			if sum > d.params.MotionThreshold {
				exceeded++
			}
		}
		// AND across the whole window: one quiet comparison suppresses
		// the trigger.
		triggered = exceeded == nPreviousCompare
	}

	d.ring.add(mask)
	return triggered, exceeded, nil
}
