package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultMemorySize is the number of entries kept by a MemoryTier when no size is given.
	DefaultMemorySize = 4096
	// DefaultMemoryTTL bounds the lifetime of any MemoryTier entry.
	DefaultMemoryTTL = 24 * time.Hour
)

type memoryEntry struct {
	data      []byte
	negative  bool
	expiresAt time.Time
}

// MemoryTier is an in-process Tier backed by an expirable LRU.
// Entries carry their own deadline so values and negative markers can use different TTLs.
type MemoryTier struct {
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time
}

// NewMemoryTier creates an in-process tier holding at most size entries, none living longer than maxTTL.
func NewMemoryTier(size int, maxTTL time.Duration) *MemoryTier {
	if size <= 0 {
		size = DefaultMemorySize
	}
	if maxTTL <= 0 {
		maxTTL = DefaultMemoryTTL
	}
	return &MemoryTier{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (m *MemoryTier) Get(_ context.Context, key string) ([]byte, State, error) {
	entry, ok := m.lru.Get(key)
	if !ok {
		return nil, Miss, nil
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		m.lru.Remove(key)
		return nil, Miss, nil
	}
	if entry.negative {
		return nil, Negative, nil
	}
	return entry.data, Hit, nil
}

func (m *MemoryTier) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.lru.Add(key, memoryEntry{data: value, expiresAt: m.deadline(ttl)})
	return nil
}

func (m *MemoryTier) SetNegative(_ context.Context, key string, ttl time.Duration) error {
	m.lru.Add(key, memoryEntry{negative: true, expiresAt: m.deadline(ttl)})
	return nil
}

func (m *MemoryTier) Delete(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

// Len returns the number of live entries.
func (m *MemoryTier) Len() int {
	return m.lru.Len()
}

func (m *MemoryTier) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}
