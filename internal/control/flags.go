// Package control holds the coarse boolean flags shared between the
// pipeline loops and their supervisor: the recording gate and the one-shot
// operator requests (home, calibrate). Loop shutdown itself uses
// context.Context; these flags cover the signals that must outlive a
// single observation.
package control

import "sync/atomic"

// Gate is a settable/clearable boolean read by a hot loop each iteration.
// Used for the recording-enabled signal.
type Gate struct {
	v atomic.Bool
}

// Set opens the gate.
func (g *Gate) Set() { g.v.Store(true) }

// Clear closes the gate.
func (g *Gate) Clear() { g.v.Store(false) }

// IsSet reports whether the gate is open.
func (g *Gate) IsSet() bool { return g.v.Load() }

// Request is a one-shot operator request flag (home, calibrate).
//
// Take clears the flag exactly once per honored request. Requests are not
// versioned: a request raised twice before being observed collapses into
// a single execution. That coalescing is intended behaviour for operator
// pushbutton semantics.
type Request struct {
	v atomic.Bool
}

// Raise sets the request. Raising an already-pending request is a no-op.
func (r *Request) Raise() { r.v.Store(true) }

// Pending reports whether a request is waiting without consuming it.
func (r *Request) Pending() bool { return r.v.Load() }

// Take consumes a pending request. It returns true at most once per
// raised request.
func (r *Request) Take() bool { return r.v.CompareAndSwap(true, false) }
