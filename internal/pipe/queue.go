// Package pipe implements the bounded queues that connect the pipeline
// stages. Each queue is a single-producer channel with explicit receive
// disciplines matching the pipeline's failure taxonomy:
//
//   - Recv: blocking, interrupted only by context cancellation (the
//     mandatory camera/position reads).
//   - TryRecv: non-blocking; absence is the recoverable transient-empty
//     condition and callers retain their previous value.
//   - RecvTimeout: bounded wait for auxiliary inputs (parameter updates,
//     status snapshots).
//
// Send disciplines mirror the consumer contracts: TrySend for lossy
// best-effort channels (display), SendLatest for latest-value-wins
// channels where a stale entry may be evicted (tracked positions,
// status), and Send for reliable in-order delivery.
package pipe

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by Recv when the queue's context is cancelled
// while waiting. It marks a clean shutdown, not a failure.
var ErrClosed = errors.New("pipe: queue closed by shutdown")

// Queue is a bounded FIFO message channel between two pipeline stages.
type Queue[T any] struct {
	ch chan T
}

// New creates a queue with the given capacity. Capacity must be at
// least 1 so SendLatest can always make room.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// Recv blocks until a message arrives or ctx is cancelled. Cancellation
// returns ErrClosed.
func (q *Queue[T]) Recv(ctx context.Context) (T, error) {
	select {
	case v := <-q.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ErrClosed
	}
}

// TryRecv performs a non-blocking receive. The second return is false
// when the queue is momentarily empty.
func (q *Queue[T]) TryRecv() (T, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// RecvTimeout waits up to d for a message. Expiry returns false; callers
// keep their previous value.
func (q *Queue[T]) RecvTimeout(d time.Duration) (T, bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case v := <-q.ch:
		return v, true
	case <-timer.C:
		var zero T
		return zero, false
	}
}

// Drain receives until the queue is empty and returns the newest message,
// if any. Used by last-writer-wins consumers such as the parameter
// update channel.
func (q *Queue[T]) Drain() (T, bool) {
	var last T
	got := false
	for {
		select {
		case v := <-q.ch:
			last = v
			got = true
		default:
			return last, got
		}
	}
}

// Send blocks until the message is enqueued or ctx is cancelled.
func (q *Queue[T]) Send(ctx context.Context, v T) error {
	select {
	case q.ch <- v:
		return nil
	case <-ctx.Done():
		return ErrClosed
	}
}

// TrySend enqueues without blocking. It returns false when the queue is
// full; the message is dropped and never retried.
func (q *Queue[T]) TrySend(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		return false
	}
}

// SendLatest enqueues v, evicting the oldest queued message if the queue
// is full. With a single producer this keeps the newest messages without
// ever blocking the producer.
func (q *Queue[T]) SendLatest(v T) {
	for {
		select {
		case q.ch <- v:
			return
		default:
		}
		select {
		case <-q.ch:
		default:
		}
	}
}

// Len returns the number of queued messages.
func (q *Queue[T]) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int { return cap(q.ch) }
