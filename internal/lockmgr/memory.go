package lockmgr

import (
	"context"
	"sort"
	"sync"
)

// MemoryLocker is a per-key mutex registry, generalized from the pattern the
// in-memory repositories use to guard their maps: instead of one mutex per
// map, one mutex per key lets unrelated swaps proceed concurrently.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *MemoryLocker) lockFor(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}

// Acquire locks every key in sorted order, so two callers requesting the
// same key set never deadlock by acquiring them in opposite orders.
func (l *MemoryLocker) Acquire(ctx context.Context, keys ...string) (Release, error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	// Dedup: the same key may appear twice (e.g. a chain swap touching the
	// same person in two legs) and locking it twice would self-deadlock.
	deduped := sorted[:0]
	for i, k := range sorted {
		if i == 0 || k != sorted[i-1] {
			deduped = append(deduped, k)
		}
	}

	var acquired []*sync.Mutex
	for _, key := range deduped {
		select {
		case <-ctx.Done():
			for i := len(acquired) - 1; i >= 0; i-- {
				acquired[i].Unlock()
			}
			return nil, ctx.Err()
		default:
		}
		m := l.lockFor(key)
		m.Lock()
		acquired = append(acquired, m)
	}

	return func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].Unlock()
		}
	}, nil
}
