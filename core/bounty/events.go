package bounty

import (
	"context"
	"sync"

	"bounty-backend/core/pda"
)

// Event records one committed operation.
type Event struct {
	ID      string       `json:"id"`
	Op      Op           `json:"op"`
	Signer  pda.Address  `json:"signer"`
	Task    *pda.Address `json:"task,omitempty"`
	Escrow  *pda.Address `json:"escrow,omitempty"`
	Account *pda.Address `json:"account,omitempty"`
	Amount  uint64       `json:"amount,omitempty"`
	Phase   Phase        `json:"phase,omitempty"`
	At      int64        `json:"at"`
}

// EventSink receives events after their transaction commits. A failing sink
// never undoes the operation.
type EventSink interface {
	Publish(ctx context.Context, ev Event) error
}

// EventLog keeps the most recent events in memory.
type EventLog struct {
	mu   sync.RWMutex
	buf  []Event
	next int
	full bool
}

func NewEventLog(size int) *EventLog {
	if size <= 0 {
		size = 256
	}
	return &EventLog{buf: make([]Event, size)}
}

func (l *EventLog) Publish(_ context.Context, ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf[l.next] = ev
	l.next = (l.next + 1) % len(l.buf)
	if l.next == 0 {
		l.full = true
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (l *EventLog) Recent(limit int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := l.next
	if l.full {
		n = len(l.buf)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Event, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (l.next - 1 - i + len(l.buf)) % len(l.buf)
		out = append(out, l.buf[idx])
	}
	return out
}
