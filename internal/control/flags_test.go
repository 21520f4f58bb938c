package control

import (
	"sync"
	"testing"
)

func TestGateSetClear(t *testing.T) {
	var g Gate
	if g.IsSet() {
		t.Fatal("new gate should be closed")
	}
	g.Set()
	if !g.IsSet() {
		t.Error("gate should be open after Set")
	}
	g.Clear()
	if g.IsSet() {
		t.Error("gate should be closed after Clear")
	}
}

func TestRequestTakeConsumesOnce(t *testing.T) {
	var r Request
	if r.Take() {
		t.Fatal("Take on idle request should return false")
	}
	r.Raise()
	if !r.Pending() {
		t.Fatal("request should be pending after Raise")
	}
	if !r.Take() {
		t.Fatal("first Take should consume the request")
	}
	if r.Take() {
		t.Error("second Take should find nothing")
	}
}

func TestRequestCoalesces(t *testing.T) {
	var r Request
	r.Raise()
	r.Raise()
	if !r.Take() {
		t.Fatal("expected pending request")
	}
	if r.Take() {
		t.Error("double Raise before Take must collapse to one execution")
	}
}

func TestRequestConcurrentTake(t *testing.T) {
	var r Request
	r.Raise()

	var wg sync.WaitGroup
	taken := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Take() {
				taken <- true
			}
		}()
	}
	wg.Wait()
	close(taken)

	count := 0
	for range taken {
		count++
	}
	if count != 1 {
		t.Errorf("request taken %d times, want exactly 1", count)
	}
}
