package timeutil

import (
	"testing"
	"time"
)

func TestMockClockAdvance(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	if got := c.Now(); !got.Equal(start) {
		t.Fatalf("Now() = %v, want %v", got, start)
	}

	c.Advance(250 * time.Millisecond)
	if got := c.Since(start); got != 250*time.Millisecond {
		t.Errorf("Since(start) = %v, want 250ms", got)
	}
}

func TestMockClockAfterFiresOnAdvance(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	ch := c.After(time.Second)

	select {
	case <-ch:
		t.Fatal("After fired before clock advanced")
	default:
	}

	c.Advance(time.Second)
	select {
	case got := <-ch:
		if !got.Equal(time.Unix(1, 0)) {
			t.Errorf("After delivered %v, want %v", got, time.Unix(1, 0))
		}
	default:
		t.Fatal("After did not fire after advance")
	}
}

func TestMockClockAfterZeroFiresImmediately(t *testing.T) {
	c := NewMockClock(time.Unix(5, 0))
	select {
	case <-c.After(0):
	default:
		t.Fatal("After(0) should deliver immediately")
	}
}

func TestMockClockSleepAdvances(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	c.Sleep(3 * time.Second)
	if got := c.Now(); !got.Equal(time.Unix(3, 0)) {
		t.Errorf("after Sleep, Now() = %v, want %v", got, time.Unix(3, 0))
	}
}

func TestRealClockBasics(t *testing.T) {
	var c Clock = RealClock{}
	before := c.Now()
	if c.Since(before) < 0 {
		t.Error("Since returned negative duration")
	}
}
