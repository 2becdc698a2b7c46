package ephemeral

import (
	"context"
	"sync"
	"time"

	"github.com/schedcore/schedcore/internal/entity"
)

type memEntry struct {
	value   []byte
	expires time.Time
}

// MemoryStore is an in-process Store, used in tests and as a fallback when
// no Redis address is configured. It takes an entity.Clock so expiry is
// deterministic under a FakeClock.
type MemoryStore struct {
	mu    sync.Mutex
	clock entity.Clock
	data  map[string]memEntry
}

func NewMemoryStore(clock entity.Clock) *MemoryStore {
	return &MemoryStore{clock: clock, data: make(map[string]memEntry)}
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = memEntry{value: value, expires: m.clock.Now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	if m.clock.Now().After(entry.expires) {
		delete(m.data, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
