// Package logging keeps a bounded in-memory buffer of recent log
// events and provides the slog handler that feeds it, so the API and
// CLI can show recent activity without scraping the process output.
package logging

import (
	"strings"
	"sync"
	"time"
)

// EventRecord is one formatted log event stored in the event buffer.
type EventRecord struct {
	Time  time.Time `json:"time"`
	Level string    `json:"level"`
	Msg   string    `json:"msg"`
	Attrs string    `json:"attrs,omitempty"`
}

// EventBuffer is a thread-safe circular buffer of recent events.
type EventBuffer struct {
	mu    sync.RWMutex
	buf   []EventRecord
	size  int
	head  int // next write position
	count int

	subMu sync.RWMutex
	subs  map[*Subscription]struct{}
}

// Subscription receives new events from an EventBuffer.
type Subscription struct {
	C  chan EventRecord
	eb *EventBuffer
}

// Close unsubscribes and stops delivery.
func (s *Subscription) Close() {
	s.eb.unsubscribe(s)
}

// NewEventBuffer creates an event buffer with the given capacity.
func NewEventBuffer(size int) *EventBuffer {
	return &EventBuffer{
		buf:  make([]EventRecord, size),
		size: size,
		subs: make(map[*Subscription]struct{}),
	}
}

// Add appends an event, overwriting the oldest when full. Subscribers
// are notified non-blocking; a slow subscriber drops events.
func (eb *EventBuffer) Add(rec EventRecord) {
	eb.mu.Lock()
	eb.buf[eb.head] = rec
	eb.head = (eb.head + 1) % eb.size
	if eb.count < eb.size {
		eb.count++
	}
	eb.mu.Unlock()

	eb.subMu.RLock()
	for sub := range eb.subs {
		select {
		case sub.C <- rec:
		default:
		}
	}
	eb.subMu.RUnlock()
}

// Subscribe returns a Subscription delivering new events. Call Close
// on the subscription when done.
func (eb *EventBuffer) Subscribe(bufSize int) *Subscription {
	if bufSize < 1 {
		bufSize = 64
	}
	sub := &Subscription{
		C:  make(chan EventRecord, bufSize),
		eb: eb,
	}
	eb.subMu.Lock()
	eb.subs[sub] = struct{}{}
	eb.subMu.Unlock()
	return sub
}

func (eb *EventBuffer) unsubscribe(sub *Subscription) {
	eb.subMu.Lock()
	delete(eb.subs, sub)
	eb.subMu.Unlock()
}

// Latest returns the most recent n events, newest first.
func (eb *EventBuffer) Latest(n int) []EventRecord {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if n > eb.count {
		n = eb.count
	}
	if n <= 0 {
		return nil
	}
	result := make([]EventRecord, n)
	for i := 0; i < n; i++ {
		idx := (eb.head - 1 - i + eb.size) % eb.size
		result[i] = eb.buf[idx]
	}
	return result
}

// LatestMatching returns the most recent n events whose message or
// attributes contain substr (case-insensitive), newest first.
func (eb *EventBuffer) LatestMatching(n int, substr string) []EventRecord {
	if substr == "" {
		return eb.Latest(n)
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	needle := strings.ToLower(substr)
	var result []EventRecord
	for i := 0; i < eb.count && len(result) < n; i++ {
		idx := (eb.head - 1 - i + eb.size) % eb.size
		rec := eb.buf[idx]
		if strings.Contains(strings.ToLower(rec.Msg), needle) ||
			strings.Contains(strings.ToLower(rec.Attrs), needle) {
			result = append(result, rec)
		}
	}
	return result
}
