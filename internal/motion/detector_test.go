package motion

import (
	"image"
	"testing"
)

// square returns a 20x20 frame with the given 10x10 regions lit.
// Region "left" covers x 0-9, "right" covers x 10-19, rows 5-14.
func square(left, right bool) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 20, 20))
	for y := 5; y < 15; y++ {
		for x := 0; x < 20; x++ {
			if (left && x < 10) || (right && x >= 10) {
				img.Pix[y*img.Stride+x] = 255
			}
		}
	}
	return img
}

func testParams() DetectorParams {
	return DetectorParams{FishThreshold: 100, MotionThreshold: 500, FrameMargin: 2}
}

func TestNoTriggerUntilWindowFull(t *testing.T) {
	d := NewDetector(testParams())
	for i := 0; i < nPreviousCompare; i++ {
		triggered, _, err := d.Ingest(square(true, false))
		if err != nil {
			t.Fatalf("Ingest %d: %v", i, err)
		}
		if triggered {
			t.Fatalf("triggered at frame %d before history window filled", i)
		}
	}
}

func TestIdenticalFramesNeverTrigger(t *testing.T) {
	d := NewDetector(testParams())
	for i := 0; i < 10; i++ {
		triggered, exceeded, err := d.Ingest(square(true, false))
		if err != nil {
			t.Fatalf("Ingest: %v", err)
		}
		if triggered || exceeded != 0 {
			t.Fatalf("frame %d: triggered=%v exceeded=%d on static scene", i, triggered, exceeded)
		}
	}
}

func TestTriggerRequiresAllComparisons(t *testing.T) {
	d := NewDetector(testParams())

	// History [left, left, right]; the current right frame matches one
	// historical mask, so only 2 of 3 comparisons exceed: no trigger.
	for _, f := range []*image.Gray{square(true, false), square(true, false), square(false, true)} {
		if _, _, err := d.Ingest(f); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}
	triggered, exceeded, err := d.Ingest(square(false, true))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if exceeded != 2 {
		t.Fatalf("exceeded = %d, want 2", exceeded)
	}
	if triggered {
		t.Fatal("2 of 3 comparisons must not trigger")
	}

	// History is now [left, right, right]; a both-squares frame differs
	// from every mask: 3 of 3 comparisons exceed and trigger.
	triggered, exceeded, err = d.Ingest(square(true, true))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if exceeded != nPreviousCompare {
		t.Fatalf("exceeded = %d, want %d", exceeded, nPreviousCompare)
	}
	if !triggered {
		t.Fatal("3 of 3 comparisons must trigger")
	}
}

func TestIngestRejectsGeometryChange(t *testing.T) {
	d := NewDetector(testParams())
	for i := 0; i < nPreviousCompare; i++ {
		if _, _, err := d.Ingest(square(true, false)); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}
	if _, _, err := d.Ingest(image.NewGray(image.Rect(0, 0, 8, 8))); err == nil {
		t.Fatal("frame size change should surface an error")
	}
}
