package video

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// BoxFilter3 returns a new image where each pixel is the mean of its 3x3
// neighbourhood. Border pixels average only the in-bounds neighbours, so
// the output keeps the input dimensions.
func BoxFilter3(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(b)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum, n int
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					sum += int(src.Pix[ny*src.Stride+nx])
					n++
				}
			}
			dst.Pix[y*dst.Stride+x] = uint8(sum / n)
		}
	}
	return dst
}

// Threshold returns the binary mask of src: pixels strictly above thresh
// become 255, the rest 0.
func Threshold(src *image.Gray, thresh uint8) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(b)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		out := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		for x, v := range row {
			if v > thresh {
				out[x] = 255
			}
		}
	}
	return dst
}

// AbsDiffSum computes the sum of absolute pixel differences between a and
// b after cropping margin pixels from every side of both images. The
// images must share dimensions and the margin must leave at least one
// pixel in each direction.
func AbsDiffSum(a, b *image.Gray, margin int) (int64, error) {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return 0, fmt.Errorf("mismatched frame sizes %dx%d vs %dx%d",
			ab.Dx(), ab.Dy(), bb.Dx(), bb.Dy())
	}
	w, h := ab.Dx(), ab.Dy()
	if margin < 0 || 2*margin >= w || 2*margin >= h {
		return 0, fmt.Errorf("margin %d leaves no pixels in %dx%d frame", margin, w, h)
	}
	var sum int64
	for y := margin; y < h-margin; y++ {
		ra := a.Pix[y*a.Stride : y*a.Stride+w]
		rb := b.Pix[y*b.Stride : y*b.Stride+w]
		for x := margin; x < w-margin; x++ {
			d := int(ra[x]) - int(rb[x])
			if d < 0 {
				d = -d
			}
			sum += int64(d)
		}
	}
	return sum, nil
}

// Rescale resizes src by the given factor using bilinear interpolation.
// A factor of 1 (or anything non-positive) returns src unchanged.
func Rescale(src *image.Gray, factor float64) *image.Gray {
	if factor <= 0 || factor == 1 {
		return src
	}
	b := src.Bounds()
	w := int(float64(b.Dx()) * factor)
	h := int(float64(b.Dy()) * factor)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
