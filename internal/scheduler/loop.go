package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Loop is the real-time Scheduler backed by one goroutine.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake   chan struct{}
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	log    zerolog.Logger
}

// NewLoop starts a loop goroutine.
func NewLoop(log zerolog.Logger) *Loop {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
		log:    log.With().Str("component", "scheduler").Logger(),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			return
		case <-l.wake:
		}
		for {
			fn := l.pop()
			if fn == nil {
				break
			}
			l.exec(fn)
			if l.ctx.Err() != nil {
				return
			}
		}
	}
}

func (l *Loop) pop() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Msg("Callback panicked")
		}
	}()
	fn()
}

func (l *Loop) post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Post implements Scheduler.
func (l *Loop) Post(fn func()) {
	l.post(fn)
}

// Do implements Scheduler.
func (l *Loop) Do(fn func()) {
	finished := make(chan struct{})
	if !l.post(func() {
		defer close(finished)
		fn()
	}) {
		return
	}
	select {
	case <-finished:
	case <-l.done:
	}
}

type loopTask struct {
	cancelled atomic.Bool
	stop      chan struct{}
	once      sync.Once
	timer     *time.Timer
}

func (t *loopTask) Cancel() {
	t.once.Do(func() {
		t.cancelled.Store(true)
		if t.timer != nil {
			t.timer.Stop()
		}
		if t.stop != nil {
			close(t.stop)
		}
	})
}

// Every implements Scheduler.
func (l *Loop) Every(d time.Duration, fn func()) Task {
	t := &loopTask{stop: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-l.ctx.Done():
				return
			case <-t.stop:
				return
			case <-ticker.C:
				l.post(func() {
					if !t.cancelled.Load() {
						fn()
					}
				})
			}
		}
	}()
	return t
}

// After implements Scheduler.
func (l *Loop) After(d time.Duration, fn func()) Task {
	t := &loopTask{}
	t.timer = time.AfterFunc(d, func() {
		l.post(func() {
			if !t.cancelled.Load() {
				fn()
			}
		})
	})
	return t
}

// Background implements Scheduler.
func (l *Loop) Background(job func(ctx context.Context) func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				l.log.Error().Interface("panic", r).Msg("Background job panicked")
			}
		}()
		if cont := job(l.ctx); cont != nil {
			l.post(cont)
		}
	}()
}

// Now implements Scheduler.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// Close implements Scheduler.
func (l *Loop) Close() {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.queue = nil
		l.mu.Unlock()
		l.cancel()
		<-l.done
	})
}
