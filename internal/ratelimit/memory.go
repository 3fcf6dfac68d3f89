package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepEvery — как часто MemoryStore удаляет истёкшие счётчики.
const sweepEvery = time.Minute

type counter struct {
	n       int64
	expires time.Time
}

// MemoryStore — счётчики в памяти процесса (один инстанс, local).
type MemoryStore struct {
	mu        sync.Mutex
	counters  map[string]counter
	now       func() time.Time
	nextSweep time.Time
}

// NewMemoryStore создаёт MemoryStore; now == nil означает time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}

	return &MemoryStore{
		counters: make(map[string]counter),
		now:      now,
	}
}

func (s *MemoryStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.After(s.nextSweep) {
		s.sweepLocked(now)
		s.nextSweep = now.Add(sweepEvery)
	}

	c, ok := s.counters[key]
	if !ok || !now.Before(c.expires) {
		c = counter{expires: now.Add(window)}
	}
	c.n++
	s.counters[key] = c

	return c.n, nil
}

// Sweep удаляет истёкшие счётчики и возвращает их количество.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sweepLocked(s.now())
}

// Len — число живых и ещё не удалённых счётчиков.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.counters)
}

func (s *MemoryStore) sweepLocked(now time.Time) int {
	n := 0
	for k, c := range s.counters {
		if !now.Before(c.expires) {
			delete(s.counters, k)
			n++
		}
	}

	return n
}
