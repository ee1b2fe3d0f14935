package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/proctor"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionForbidden = errors.New("session belongs to another user")
)

// Entry is a live session and the relay feeding its sensor. Relay is nil for
// sessions driven by a local device.
type Entry struct {
	Controller *Controller
	Relay      *proctor.Relay
}

// Registry owns the live sessions. A user holds at most one session; adding
// a new one closes the previous.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	byUser  map[string]string

	idle time.Duration
	cron *cron.Cron
	log  zerolog.Logger
}

// NewRegistry creates a registry that reaps sessions idle for longer than
// idle. A non-positive idle disables reaping.
func NewRegistry(idle time.Duration, log zerolog.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		byUser:  make(map[string]string),
		idle:    idle,
		log:     log.With().Str("component", "session_registry").Logger(),
	}
}

// Add registers e and closes any previous session of the same user.
func (r *Registry) Add(e *Entry) {
	id, userID := e.Controller.ID(), e.Controller.UserID()

	r.mu.Lock()
	var previous *Entry
	if oldID, ok := r.byUser[userID]; ok && oldID != id {
		previous = r.entries[oldID]
		delete(r.entries, oldID)
	}
	r.entries[id] = e
	r.byUser[userID] = id
	r.mu.Unlock()

	if previous != nil {
		r.log.Info().Str("session_id", previous.Controller.ID()).Str("user_id", userID).Msg("Replacing previous session")
		previous.Controller.Close()
	}
}

// Get returns session id if userID owns it.
func (r *Registry) Get(id, userID string) (*Entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if e.Controller.UserID() != userID {
		return nil, ErrSessionForbidden
	}
	return e, nil
}

// Remove closes and forgets a session.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
		if r.byUser[e.Controller.UserID()] == id {
			delete(r.byUser, e.Controller.UserID())
		}
	}
	r.mu.Unlock()

	if ok {
		e.Controller.Close()
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Reap submits and closes sessions whose last activity is older than the
// idle limit. It returns how many sessions were removed.
func (r *Registry) Reap(now time.Time) int {
	if r.idle <= 0 {
		return 0
	}
	cutoff := now.Add(-r.idle)

	r.mu.Lock()
	var stale []*Entry
	for id, e := range r.entries {
		if e.Controller.LastActivity().Before(cutoff) {
			stale = append(stale, e)
			delete(r.entries, id)
			if r.byUser[e.Controller.UserID()] == id {
				delete(r.byUser, e.Controller.UserID())
			}
		}
	}
	r.mu.Unlock()

	for _, e := range stale {
		submitted := e.Controller.Reap()
		e.Controller.Close()
		r.log.Info().
			Str("session_id", e.Controller.ID()).
			Bool("submitted", submitted).
			Msg("Reaped idle session")
	}
	return len(stale)
}

// StartReaper runs Reap on a cron schedule such as "@every 10m".
func (r *Registry) StartReaper(schedule string) error {
	cl := cron.PrintfLogger(&r.log)
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(schedule, func() {
		if n := r.Reap(time.Now()); n > 0 {
			r.log.Info().Int("count", n).Msg("Reaper pass complete")
		}
	}); err != nil {
		return err
	}
	r.cron = c
	c.Start()
	r.log.Info().Str("schedule", schedule).Dur("idle", r.idle).Msg("Session reaper started")
	return nil
}

// Shutdown stops the reaper and closes every session. Running exams are left
// as drafts so candidates can resume after a restart.
func (r *Registry) Shutdown(ctx context.Context) {
	if r.cron != nil {
		select {
		case <-r.cron.Stop().Done():
		case <-ctx.Done():
		}
	}

	r.mu.Lock()
	entries := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.entries = make(map[string]*Entry)
	r.byUser = make(map[string]string)
	r.mu.Unlock()

	for _, e := range entries {
		e.Controller.Close()
	}
	r.log.Info().Int("count", len(entries)).Msg("Sessions closed")
}
