package track

import (
	"image"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/aquarig/fintrack/internal/video"
)

func init() {
	if err := Register(&TailCentroid{}); err != nil {
		panic(err)
	}
}

// TailCentroid traces the subject's tail as a chain of n_segments
// brightness centroids, starting from (start_x, start_y) and following
// the direction given by (tail_length_x, tail_length_y). The result is
// the segment angle sequence in radians.
type TailCentroid struct{}

// Name implements Algorithm.
func (*TailCentroid) Name() string { return "centroid" }

// Process implements Algorithm.
func (*TailCentroid) Process(f video.Frame, p Params) (Result, error) {
	if f.Gray == nil {
		return nil, errors.New("nil frame")
	}

	rescale := p.Float("rescale", 1.0)
	img := video.Rescale(f.Gray, rescale)
	if p.Int("filter_size", 0) > 0 {
		img = video.BoxFilter3(img)
	}
	invert := p.Bool("color_invert", false)

	nSegments := p.Int("n_segments", 10)
	if nSegments < 1 {
		return nil, errors.Errorf("n_segments %d out of range", nSegments)
	}
	window := p.Int("window_size", 10)
	if window < 2 {
		window = 2
	}

	x := p.Float("start_x", 0) * rescale
	y := p.Float("start_y", 0) * rescale
	lx := p.Float("tail_length_x", 1) * rescale
	ly := p.Float("tail_length_y", 1) * rescale
	segLen := math.Hypot(lx, ly) / float64(nSegments)
	if segLen <= 0 {
		return nil, errors.New("tail length is zero")
	}
	dir := math.Atan2(ly, lx)

	angles := make(Result, nSegments)
	for i := 0; i < nSegments; i++ {
		nx := x + math.Cos(dir)*segLen
		ny := y + math.Sin(dir)*segLen

		cx, cy, ok := windowCentroid(img, nx, ny, window/2, invert)
		if !ok {
			// Empty window: continue along the current direction.
			cx, cy = nx, ny
		}
		dir = math.Atan2(cy-y, cx-x)
		x, y = cx, cy
		angles[i] = dir
	}
	return angles, nil
}

// windowCentroid computes the brightness-weighted centroid of the
// half*2+1 square window centred on (cx, cy). Reports ok=false when the
// window carries no brightness.
func windowCentroid(img *image.Gray, cx, cy float64, half int, invert bool) (float64, float64, bool) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	x0, y0 := int(cx)-half, int(cy)-half
	x1, y1 := int(cx)+half, int(cy)+half

	var xs, ys, weights []float64
	for py := y0; py <= y1; py++ {
		if py < 0 || py >= h {
			continue
		}
		for px := x0; px <= x1; px++ {
			if px < 0 || px >= w {
				continue
			}
			v := float64(img.Pix[py*img.Stride+px])
			if invert {
				v = 255 - v
			}
			if v == 0 {
				continue
			}
			xs = append(xs, float64(px))
			ys = append(ys, float64(py))
			weights = append(weights, v)
		}
	}
	if len(weights) == 0 {
		return 0, 0, false
	}
	return stat.Mean(xs, weights), stat.Mean(ys, weights), true
}

// brightnessCentroid computes the whole-frame weighted centroid of
// pixels strictly above thresh. Used by position trackers.
func brightnessCentroid(img *image.Gray, thresh uint8, invert bool) (float64, float64, bool) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var sx, sy, sw float64
	for py := 0; py < h; py++ {
		row := img.Pix[py*img.Stride : py*img.Stride+w]
		for px, raw := range row {
			v := raw
			if invert {
				v = 255 - raw
			}
			if v <= thresh {
				continue
			}
			fv := float64(v)
			sx += float64(px) * fv
			sy += float64(py) * fv
			sw += fv
		}
	}
	if sw == 0 {
		return 0, 0, false
	}
	return sx / sw, sy / sw, true
}
