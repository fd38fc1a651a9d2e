package preview

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	img "imgconv/converter/image"
	"imgconv/shared/log"
)

const DefaultCapacity = 1000

type Entry struct {
	Name     string
	MimeType string
	Data     []byte

	// Expires is zero when the entry never expires.
	Expires time.Time
}

func (e Entry) expired(now time.Time) bool {
	return !e.Expires.IsZero() && !now.Before(e.Expires)
}

// Store hands out revocable handles to in-memory image bytes. Every handle
// must be released by its owner or expires after ttl; the store refuses new
// handles once capacity live handles exist.
type Store struct {
	mu       sync.RWMutex
	capacity int
	ttl      time.Duration
	entries  map[img.Handle]Entry

	now func() time.Time
}

// NewStore creates a store. A ttl of zero keeps entries until released.
func NewStore(capacity int, ttl time.Duration) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity, ttl: ttl, entries: make(map[img.Handle]Entry), now: time.Now}
}

func (s *Store) Acquire(name, mimeType string, data []byte) (img.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if len(s.entries) >= s.capacity {
		s.evictLocked(now)
	}
	if len(s.entries) >= s.capacity {
		return "", fmt.Errorf("%w: preview capacity of %d handles exhausted", img.ErrResource, s.capacity)
	}

	e := Entry{Name: name, MimeType: mimeType, Data: data}
	if s.ttl > 0 {
		e.Expires = now.Add(s.ttl)
	}

	h := img.Handle(uuid.NewString())
	s.entries[h] = e

	return h, nil
}

func (s *Store) Get(h img.Handle) (Entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[h]
	s.mu.RUnlock()

	if !ok {
		return Entry{}, false
	}
	if e.expired(s.now()) {
		s.mu.Lock()
		if cur, ok := s.entries[h]; ok && cur.expired(s.now()) {
			delete(s.entries, h)
		}
		s.mu.Unlock()
		return Entry{}, false
	}
	return e, true
}

// Release is a no-op for unknown handles.
func (s *Store) Release(h img.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[h]
	delete(s.entries, h)
	return ok
}

func (s *Store) ReleaseAll(handles ...img.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, h := range handles {
		delete(s.entries, h)
	}
}

// Evict drops every expired entry and returns how many were dropped.
func (s *Store) Evict() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.evictLocked(s.now())
}

func (s *Store) evictLocked(now time.Time) int {
	n := 0
	for h, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, h)
			n++
		}
	}
	return n
}

// Sweep evicts expired entries every interval until ctx is done.
func (s *Store) Sweep(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	logger = log.LoggerWithTrace(ctx, logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Evict(); n > 0 {
				logger.Debug("Evicted expired previews", zap.Int("count", n))
			}
		}
	}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}
