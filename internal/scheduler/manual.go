package scheduler

import (
	"context"
	"time"
)

// Manual is a deterministic Scheduler driven by a virtual clock. Background
// jobs run synchronously and their continuations are queued like any other
// callback. Manual is not safe for concurrent use.
type Manual struct {
	now     time.Time
	tasks   []*manualTask
	queue   []func()
	running bool
	closed  bool
}

// NewManual returns a manual scheduler whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

type manualTask struct {
	due       time.Time
	period    time.Duration
	fn        func()
	cancelled bool
	fired     bool
}

func (t *manualTask) Cancel() {
	t.cancelled = true
}

// Post implements Scheduler. Callbacks posted from inside a callback run
// after the current one completes.
func (m *Manual) Post(fn func()) {
	if m.closed {
		return
	}
	m.queue = append(m.queue, fn)
	if !m.running {
		m.drain()
	}
}

func (m *Manual) drain() {
	m.running = true
	defer func() { m.running = false }()
	for len(m.queue) > 0 {
		fn := m.queue[0]
		m.queue = m.queue[1:]
		fn()
	}
}

// Do implements Scheduler.
func (m *Manual) Do(fn func()) {
	m.Post(fn)
}

// Every implements Scheduler.
func (m *Manual) Every(d time.Duration, fn func()) Task {
	t := &manualTask{due: m.now.Add(d), period: d, fn: fn}
	m.tasks = append(m.tasks, t)
	return t
}

// After implements Scheduler.
func (m *Manual) After(d time.Duration, fn func()) Task {
	t := &manualTask{due: m.now.Add(d), fn: fn}
	m.tasks = append(m.tasks, t)
	return t
}

// Background implements Scheduler.
func (m *Manual) Background(job func(ctx context.Context) func()) {
	if m.closed {
		return
	}
	if cont := job(context.Background()); cont != nil {
		m.Post(cont)
	}
}

// Now implements Scheduler.
func (m *Manual) Now() time.Time {
	return m.now
}

// Close implements Scheduler.
func (m *Manual) Close() {
	m.closed = true
	for _, t := range m.tasks {
		t.cancelled = true
	}
	m.tasks = nil
	m.queue = nil
}

// Advance moves the clock forward by d, firing due tasks in time order.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	for !m.closed {
		t := m.next(target)
		if t == nil {
			break
		}
		m.now = t.due
		if t.period > 0 {
			t.due = t.due.Add(t.period)
		} else {
			t.fired = true
		}
		task := t
		m.Post(func() {
			if !task.cancelled {
				task.fn()
			}
		})
		m.compact()
	}
	if target.After(m.now) {
		m.now = target
	}
}

func (m *Manual) next(limit time.Time) *manualTask {
	var best *manualTask
	for _, t := range m.tasks {
		if t.cancelled || t.fired || t.due.After(limit) {
			continue
		}
		if best == nil || t.due.Before(best.due) {
			best = t
		}
	}
	return best
}

func (m *Manual) compact() {
	live := m.tasks[:0]
	for _, t := range m.tasks {
		if !t.cancelled && !t.fired {
			live = append(live, t)
		}
	}
	m.tasks = live
}

// Pending reports how many tasks are still scheduled.
func (m *Manual) Pending() int {
	n := 0
	for _, t := range m.tasks {
		if !t.cancelled && !t.fired {
			n++
		}
	}
	return n
}
