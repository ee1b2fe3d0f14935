// Package scheduler provides the single logical thread that a session
// controller runs on. Every callback (posted work, periodic ticks, timers,
// continuations of background I/O) runs to completion before the next one
// starts, so state owned by the loop needs no locking.
package scheduler

import (
	"context"
	"time"
)

// Task is a handle to scheduled work. Cancel is idempotent and guarantees the
// callback will not start afterwards.
type Task interface {
	Cancel()
}

// Scheduler serialises callbacks onto one logical thread.
type Scheduler interface {
	// Post enqueues fn without waiting.
	Post(fn func())
	// Do enqueues fn and waits until it has run. It must not be called from
	// inside a callback.
	Do(fn func())
	// Every runs fn on the loop every d until cancelled.
	Every(d time.Duration, fn func()) Task
	// After runs fn on the loop once, after d.
	After(d time.Duration, fn func()) Task
	// Background runs job off the loop. The returned continuation, if any,
	// is posted back onto the loop.
	Background(job func(ctx context.Context) func())
	// Now is the scheduler's clock.
	Now() time.Time
	// Close cancels everything and stops the loop. Safe to call twice.
	Close()
}
