package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/LucasHenklain/cobol-to-java-integrated/internal/orchestrator"
)

// SSEWriter helps write Server-Sent Events
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSE writer
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends an SSE event
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteError sends an error event
func (s *SSEWriter) WriteError(message string) {
	s.WriteEvent("error", map[string]string{"error": message}) //nolint:errcheck
}

// eventBroker fans orchestrator progress events out to per-job subscribers.
// Publishing never blocks: a subscriber that cannot keep up drops events.
type eventBroker struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]map[chan orchestrator.Event]struct{}
	closed bool
}

func newEventBroker() *eventBroker {
	return &eventBroker{subs: make(map[uuid.UUID]map[chan orchestrator.Event]struct{})}
}

func (b *eventBroker) publish(ev orchestrator.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[ev.JobID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// subscribe registers a listener for one job's events. The returned cancel
// func must be called to release the subscription.
func (b *eventBroker) subscribe(jobID uuid.UUID) (<-chan orchestrator.Event, func()) {
	ch := make(chan orchestrator.Event, 64)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	if b.subs[jobID] == nil {
		b.subs[jobID] = make(map[chan orchestrator.Event]struct{})
	}
	b.subs[jobID][ch] = struct{}{}

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subs[jobID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(b.subs, jobID)
			}
		}
	}
}

func (b *eventBroker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, set := range b.subs {
		for ch := range set {
			close(ch)
		}
	}
	b.subs = make(map[uuid.UUID]map[chan orchestrator.Event]struct{})
}
