package units

import (
	"math"
	"testing"
)

func TestNewConverterValidation(t *testing.T) {
	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := NewConverter(bad); err == nil {
			t.Errorf("NewConverter(%v) should fail", bad)
		}
	}
	if _, err := NewConverter(100); err != nil {
		t.Fatalf("NewConverter(100): %v", err)
	}
}

func TestStepsTruncatesTowardZero(t *testing.T) {
	c, _ := NewConverter(10)
	tests := []struct {
		pixels float64
		want   int
	}{
		{0, 0},
		{1.0, 10},
		{1.29, 12},
		{-1.29, -12},
		{0.05, 0},
	}
	for _, tc := range tests {
		got, err := c.Steps(tc.pixels)
		if err != nil {
			t.Fatalf("Steps(%v): %v", tc.pixels, err)
		}
		if got != tc.want {
			t.Errorf("Steps(%v) = %d, want %d", tc.pixels, got, tc.want)
		}
	}
}

func TestStepsRejectsNonFinite(t *testing.T) {
	c, _ := NewConverter(10)
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := c.Steps(bad); err == nil {
			t.Errorf("Steps(%v) should fail", bad)
		}
	}
	if _, err := c.Steps(1e12); err == nil {
		t.Error("offset beyond step range should fail")
	}
}
