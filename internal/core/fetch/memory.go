package fetch

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/Mearman/mcp-wayback-machine/internal/core"
)

// MemoryCache is an in-process LRU response cache bounded by total body bytes.
type MemoryCache struct {
	MaxSize int64
	Clock   func() time.Time

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
	size    int64
}

type memoryEntry struct {
	key       string
	resp      *core.CachedResponse
	expiresAt time.Time
}

// NewMemoryCache returns an empty cache. maxSize <= 0 disables the byte bound.
func NewMemoryCache(maxSize int64) *MemoryCache {
	return &MemoryCache{
		MaxSize: maxSize,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get returns a live entry and marks it recently used.
func (m *MemoryCache) Get(ctx context.Context, key string) (*core.CachedResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	entry := elem.Value.(*memoryEntry)
	if !m.now().Before(entry.expiresAt) {
		m.remove(elem)
		return nil, nil
	}
	m.order.MoveToFront(elem)
	return entry.resp, nil
}

// Set stores resp for ttl, evicting least recently used entries past MaxSize.
// Entries larger than MaxSize are not stored.
func (m *MemoryCache) Set(ctx context.Context, key string, resp *core.CachedResponse, ttl time.Duration) error {
	if resp == nil || ttl <= 0 {
		return nil
	}
	if m.MaxSize > 0 && resp.Size() > m.MaxSize {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lazyInit()
	if elem, ok := m.entries[key]; ok {
		m.remove(elem)
	}

	elem := m.order.PushFront(&memoryEntry{key: key, resp: resp, expiresAt: m.now().Add(ttl)})
	m.entries[key] = elem
	m.size += resp.Size()

	for m.MaxSize > 0 && m.size > m.MaxSize {
		oldest := m.order.Back()
		if oldest == nil {
			break
		}
		m.remove(oldest)
	}
	return nil
}

// Clear drops every entry.
func (m *MemoryCache) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*list.Element)
	m.order = list.New()
	m.size = 0
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryCache) remove(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	m.order.Remove(elem)
	delete(m.entries, entry.key)
	m.size -= entry.resp.Size()
}

func (m *MemoryCache) lazyInit() {
	if m.entries == nil {
		m.entries = make(map[string]*list.Element)
	}
	if m.order == nil {
		m.order = list.New()
	}
}

func (m *MemoryCache) now() time.Time {
	if m.Clock != nil {
		return m.Clock()
	}
	return time.Now().UTC()
}
