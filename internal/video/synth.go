package video

import (
	"context"
	"image"
	"math"
	"time"

	"github.com/aquarig/fintrack/internal/pipe"
	"github.com/aquarig/fintrack/internal/timeutil"
)

// SyntheticCamera generates frames with a bright blob orbiting the
// image center. It stands in for real acquisition hardware in dev mode
// and in tests.
type SyntheticCamera struct {
	Width, Height int
	FPS           float64

	// OrbitPeriod is the time for one revolution of the blob.
	OrbitPeriod time.Duration

	Clock timeutil.Clock
}

// Run produces frames at the configured rate until ctx is cancelled,
// pushing each frame to every queue in outs. Queues are fed
// latest-wins so a stalled consumer never blocks acquisition.
func (c *SyntheticCamera) Run(ctx context.Context, outs ...*pipe.Queue[Frame]) error {
	if c.Width <= 0 {
		c.Width = 640
	}
	if c.Height <= 0 {
		c.Height = 480
	}
	if c.FPS <= 0 {
		c.FPS = 60
	}
	if c.OrbitPeriod <= 0 {
		c.OrbitPeriod = 4 * time.Second
	}
	if c.Clock == nil {
		c.Clock = timeutil.RealClock{}
	}

	period := time.Duration(float64(time.Second) / c.FPS)
	start := c.Clock.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.Clock.After(period):
		}
		now := c.Clock.Now()
		frame := Frame{TS: now, Gray: c.render(now.Sub(start))}
		for _, out := range outs {
			out.SendLatest(frame)
		}
	}
}

// render draws the blob at its orbital position for elapsed time t.
func (c *SyntheticCamera) render(t time.Duration) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, c.Width, c.Height))

	angle := 2 * math.Pi * float64(t) / float64(c.OrbitPeriod)
	orbit := 0.25 * float64(min(c.Width, c.Height))
	cx := float64(c.Width)/2 + orbit*math.Cos(angle)
	cy := float64(c.Height)/2 + orbit*math.Sin(angle)

	const radius = 4.0
	for y := int(cy - radius); y <= int(cy+radius); y++ {
		for x := int(cx - radius); x <= int(cx+radius); x++ {
			if x < 0 || y < 0 || x >= c.Width || y >= c.Height {
				continue
			}
			dx, dy := float64(x)-cx, float64(y)-cy
			if dx*dx+dy*dy <= radius*radius {
				img.Pix[y*img.Stride+x] = 255
			}
		}
	}
	return img
}
