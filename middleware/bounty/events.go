package bounty

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"bounty-backend/core/bounty"
	"bounty-backend/middleware"
)

// Broadcaster fans committed events out to live stream listeners. Slow
// listeners miss events rather than stall the ledger.
type Broadcaster struct {
	mu        sync.Mutex
	listeners map[chan bounty.Event]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: make(map[chan bounty.Event]struct{})}
}

func (b *Broadcaster) Publish(_ context.Context, ev bounty.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribe registers a listener; call the returned func to detach it.
func (b *Broadcaster) Subscribe(buffer int) (<-chan bounty.Event, func()) {
	ch := make(chan bounty.Event, buffer)
	b.mu.Lock()
	b.listeners[ch] = struct{}{}
	b.mu.Unlock()
	return ch, func() {
		b.mu.Lock()
		delete(b.listeners, ch)
		b.mu.Unlock()
	}
}

func eventMatches(ev bounty.Event, op, task string) bool {
	if op != "" && string(ev.Op) != op {
		return false
	}
	if task != "" && (ev.Task == nil || ev.Task.String() != task) {
		return false
	}
	return true
}

// handleEvents handles GET /v1/events, as JSON or as a server-sent stream.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	filterOp := strings.TrimSpace(r.URL.Query().Get("op"))
	filterTask := strings.TrimSpace(r.URL.Query().Get("task"))

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") && s.cfg.Broadcaster != nil {
		s.streamEvents(w, r, filterOp, filterTask)
		return
	}

	recent := s.cfg.Events.Recent(0)
	limit := intFromQuery(r, "limit", 50)
	filtered := make([]bounty.Event, 0, len(recent))
	for _, ev := range recent {
		if eventMatches(ev, filterOp, filterTask) {
			filtered = append(filtered, ev)
		}
	}
	if limit > 0 && limit < len(filtered) {
		filtered = filtered[:limit]
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"events": filtered,
		"total":  len(filtered),
	})
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, filterOp, filterTask string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.WriteError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming unsupported")
		return
	}
	ch, detach := s.cfg.Broadcaster.Subscribe(16)
	defer detach()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Send recent buffer first, oldest first.
	recent := s.cfg.Events.Recent(0)
	for i := len(recent) - 1; i >= 0; i-- {
		if eventMatches(recent[i], filterOp, filterTask) {
			writeSSE(w, recent[i])
		}
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			if !eventMatches(ev, filterOp, filterTask) {
				continue
			}
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev bounty.Event) {
	b, _ := json.Marshal(ev)
	_, _ = w.Write([]byte("id: " + ev.ID + "\nevent: " + string(ev.Op) + "\ndata: " + string(b) + "\n\n"))
}
