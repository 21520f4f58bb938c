package track

import (
	kalman "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"

	"github.com/aquarig/fintrack/internal/video"
)

func init() {
	if err := Register(NewKalmanCentroid()); err != nil {
		panic(err)
	}
}

// Kalman filter tuning for the position tracker. The camera delivers
// frames at a roughly constant rate, so a unit timestep with moderate
// acceleration noise tracks darting motion without oscillating on
// stationary subjects.
const (
	kalmanDT       = 1.0
	kalmanUX       = 1.0
	kalmanUY       = 1.0
	kalmanStdDevA  = 2.0
	kalmanStdDevMx = 0.1
	kalmanStdDevMy = 0.1
)

// KalmanCentroid tracks the subject's whole-body brightness centroid and
// smooths it with a 2D Kalman filter. The result is the smoothed
// (x, y) position in frame pixels.
//
// The filter state persists across frames; a run of frames with no
// detectable subject resets it so the filter re-acquires instead of
// coasting on stale dynamics.
type KalmanCentroid struct {
	filter *kalman.Kalman2D
	misses int
}

// maxCoastFrames is how many subject-free frames the filter may coast
// before its state is discarded.
const maxCoastFrames = 30

// NewKalmanCentroid returns an unprimed tracker; the filter initializes
// on the first frame containing a detectable subject.
func NewKalmanCentroid() *KalmanCentroid {
	return &KalmanCentroid{}
}

// Name implements Algorithm.
func (*KalmanCentroid) Name() string { return "kalman" }

// Process implements Algorithm.
func (k *KalmanCentroid) Process(f video.Frame, p Params) (Result, error) {
	if f.Gray == nil {
		return nil, errors.New("nil frame")
	}

	rescale := p.Float("rescale", 1.0)
	img := video.Rescale(f.Gray, rescale)
	thresh := p.Int("threshold", 100)
	if thresh < 0 || thresh > 255 {
		return nil, errors.Errorf("threshold %d out of range", thresh)
	}
	invert := p.Bool("color_invert", false)

	cx, cy, found := brightnessCentroid(img, uint8(thresh), invert)
	if !found {
		k.misses++
		if k.misses > maxCoastFrames {
			k.filter = nil
		}
		if k.filter == nil {
			return nil, errors.New("no subject above threshold")
		}
		// Coast: predict without a measurement update.
		k.filter.Predict()
		x, y := k.filter.GetState()
		return Result{x / rescale, y / rescale}, nil
	}
	k.misses = 0

	if k.filter == nil {
		k.filter = kalman.NewKalman2D(
			kalmanDT, kalmanUX, kalmanUY,
			kalmanStdDevA, kalmanStdDevMx, kalmanStdDevMy,
			kalman.WithState2D(cx, cy),
		)
		return Result{cx / rescale, cy / rescale}, nil
	}

	k.filter.Predict()
	if err := k.filter.Update(cx, cy); err != nil {
		return nil, errors.Wrap(err, "kalman update")
	}
	x, y := k.filter.GetState()
	return Result{x / rescale, y / rescale}, nil
}
