package service

import (
	"sort"
	"sync"
	"time"

	"github.com/Wjlljw/pdf-translator/internal/pipeline"
)

type EventType string

const (
	EventRunStarted  EventType = "run_started"
	EventChunk       EventType = "chunk"
	EventDocument    EventType = "document"
	EventRunFinished EventType = "run_finished"
)

// Event is one progress notification fanned out by a Hub.
type Event struct {
	Type     EventType          `json:"type"`
	RunID    string             `json:"run_id"`
	Time     time.Time          `json:"time"`
	Total    int                `json:"total,omitempty"`
	Progress *pipeline.Progress `json:"progress,omitempty"`
	Outcome  *DocumentOutcome   `json:"outcome,omitempty"`
	Totals   *Totals            `json:"totals,omitempty"`
}

// RunStatus is a snapshot of the current or most recent run.
type RunStatus struct {
	RunID     string              `json:"run_id,omitempty"`
	Running   bool                `json:"running"`
	StartedAt time.Time           `json:"started_at,omitempty"`
	Total     int                 `json:"total"`
	Done      int                 `json:"done"`
	Failed    int                 `json:"failed"`
	Active    []pipeline.Progress `json:"active"`
}

// Hub fans progress events out to subscribers. Slow subscribers lose events
// instead of blocking the run.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	status RunStatus
	active map[int]pipeline.Progress
}

func NewHub() *Hub {
	return &Hub{
		subs:   make(map[int]chan Event),
		active: make(map[int]pipeline.Progress),
	}
}

// Subscribe returns a channel of events and a function that closes it.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			close(ch)
			h.mu.Unlock()
		})
	}
}

func (h *Hub) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.apply(ev)
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *Hub) apply(ev Event) {
	switch ev.Type {
	case EventRunStarted:
		h.status = RunStatus{RunID: ev.RunID, Running: true, StartedAt: ev.Time, Total: ev.Total}
		h.active = make(map[int]pipeline.Progress)
	case EventChunk:
		if ev.Progress != nil {
			h.active[ev.Progress.DocumentIndex] = *ev.Progress
		}
	case EventDocument:
		if ev.Outcome != nil {
			delete(h.active, ev.Outcome.Index)
			h.status.Done++
			if ev.Outcome.Status == StatusFailed {
				h.status.Failed++
			}
		}
	case EventRunFinished:
		h.status.Running = false
		h.active = make(map[int]pipeline.Progress)
	}
}

func (h *Hub) Status() RunStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.status
	st.Active = make([]pipeline.Progress, 0, len(h.active))
	for _, p := range h.active {
		st.Active = append(st.Active, p)
	}
	sort.Slice(st.Active, func(i, j int) bool { return st.Active[i].DocumentIndex < st.Active[j].DocumentIndex })
	return st
}
