package configstore

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openlio/liocfg/pkg/config"
)

// HistoryEntry records one committed configuration snapshot. Tree is
// the published snapshot itself; snapshots are never mutated after
// publication, so the pointer can be shared with the stack.
type HistoryEntry struct {
	ID   string
	Time time.Time
	Op   string
	Tree *config.Node
}

// History is a bounded ring of committed snapshots, newest last. It is
// observability for operators (show history); undo semantics live on
// the engine's snapshot stack.
type History struct {
	mu      sync.Mutex
	entries []*HistoryEntry
	maxSize int
}

// NewHistory creates a History keeping at most maxSize entries.
func NewHistory(maxSize int) *History {
	return &History{maxSize: maxSize}
}

// Push records a committed snapshot.
func (h *History) Push(op string, tree *config.Node) *HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry := &HistoryEntry{
		ID:   uuid.NewString(),
		Time: time.Now(),
		Op:   op,
		Tree: tree,
	}
	h.entries = append(h.entries, entry)
	if len(h.entries) > h.maxSize {
		h.entries = h.entries[1:]
	}
	return entry
}

// Len returns the number of recorded entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// List returns all entries, most recent first.
func (h *History) List() []*HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*HistoryEntry, len(h.entries))
	for i, e := range h.entries {
		out[len(h.entries)-1-i] = e
	}
	return out
}
