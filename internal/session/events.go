package session

import (
	"sync"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// EventType names a server-pushed session event.
type EventType string

const (
	EventTick       EventType = "tick"
	EventViolation  EventType = "violation"
	EventTerminated EventType = "terminated"
	EventCompleted  EventType = "completed"
	// EventFullscreen asks the browser to enter or leave fullscreen.
	EventFullscreen EventType = "fullscreen"
)

// Event is pushed to subscribers from the scheduler loop.
type Event struct {
	Type       EventType        `json:"type"`
	Remaining  int              `json:"remaining_seconds"`
	Warnings   int              `json:"warning_count"`
	Violation  *model.Violation `json:"violation,omitempty"`
	Warned     bool             `json:"warned,omitempty"`
	Message    string           `json:"message,omitempty"`
	Fullscreen *bool            `json:"fullscreen,omitempty"`
	Result     *model.Result    `json:"result,omitempty"`
}

// eventBufferSize bounds how far a slow subscriber may lag before events
// are dropped for it.
const eventBufferSize = 64

type hub struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Event)}
}

func (h *hub) subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan Event, eventBufferSize)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
			h.mu.Unlock()
		})
	}
}

// publish never blocks; it reports how many subscribers missed the event.
func (h *hub) publish(e Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	dropped := 0
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
			dropped++
		}
	}
	return dropped
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
