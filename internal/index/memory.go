package index

import (
	"sort"
	"sync"
	"time"

	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
)

// Entry is the last known refresh state of one linked service.
type Entry struct {
	OwnerID   string    `json:"owner_id"`
	Service   string    `json:"service"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Failed reports whether the last refresh of the entry failed.
func (e Entry) Failed() bool { return e.Error != "" }

// MemoryIndex keeps the outcome of the latest refresh of every service in memory.
// It backs the operational endpoints and is rebuilt by each scheduler run.
type MemoryIndex struct {
	mu         sync.RWMutex
	entries    map[domain.ServiceKey]Entry
	lastReload time.Time // Timestamp of last full refresh run
}

// NewMemoryIndex creates a new memory index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		entries: make(map[domain.ServiceKey]Entry),
	}
}

// Record stores the outcome of one refresh. A nil err clears a previous failure.
func (idx *MemoryIndex) Record(key domain.ServiceKey, outcome string, err error, at time.Time) {
	e := Entry{
		OwnerID:   key.OwnerID,
		Service:   key.Name,
		Outcome:   outcome,
		UpdatedAt: at,
	}
	if err != nil {
		e.Error = err.Error()
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[key] = e
}

// Get retrieves the entry of a service
func (idx *MemoryIndex) Get(key domain.ServiceKey) (Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	e, ok := idx.entries[key]
	return e, ok
}

// All returns every entry ordered by owner then service
func (idx *MemoryIndex) All() []Entry {
	idx.mu.RLock()
	entries := make([]Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		entries = append(entries, e)
	}
	idx.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].OwnerID != entries[j].OwnerID {
			return entries[i].OwnerID < entries[j].OwnerID
		}
		return entries[i].Service < entries[j].Service
	})
	return entries
}

// Delete removes a service from the index
func (idx *MemoryIndex) Delete(key domain.ServiceKey) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	delete(idx.entries, key)
}

// Count returns the number of services in the index
func (idx *MemoryIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.entries)
}

// FailedCount returns the number of services whose last refresh failed
func (idx *MemoryIndex) FailedCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := 0
	for _, e := range idx.entries {
		if e.Failed() {
			n++
		}
	}
	return n
}

// MarkReload sets the timestamp of the last full refresh run
func (idx *MemoryIndex) MarkReload(at time.Time) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.lastReload = at
}

// GetLastReload returns the timestamp of the last full refresh run
func (idx *MemoryIndex) GetLastReload() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastReload
}
