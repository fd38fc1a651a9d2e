package preview

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	img "imgconv/converter/image"
)

func TestStoreLifecycle(t *testing.T) {
	s := NewStore(10, 0)

	h, err := s.Acquire("a.png", "image/png", []byte("abc"))
	require.NoError(t, err)
	require.NotEmpty(t, h)
	assert.Equal(t, 1, s.Len())

	e, ok := s.Get(h)
	require.True(t, ok)
	assert.Equal(t, "a.png", e.Name)
	assert.Equal(t, "image/png", e.MimeType)
	assert.Equal(t, []byte("abc"), e.Data)

	assert.True(t, s.Release(h))
	assert.False(t, s.Release(h))
	assert.Equal(t, 0, s.Len())

	_, ok = s.Get(h)
	assert.False(t, ok)
}

func TestStoreCapacity(t *testing.T) {
	s := NewStore(2, 0)

	a, err := s.Acquire("a.png", "image/png", []byte("a"))
	require.NoError(t, err)
	_, err = s.Acquire("b.png", "image/png", []byte("b"))
	require.NoError(t, err)

	_, err = s.Acquire("c.png", "image/png", []byte("c"))
	assert.ErrorIs(t, err, img.ErrResource)

	s.Release(a)
	_, err = s.Acquire("c.png", "image/png", []byte("c"))
	assert.NoError(t, err)
}

func TestStoreReleaseAll(t *testing.T) {
	s := NewStore(0, 0)

	var handles []img.Handle
	for i := 0; i < 5; i++ {
		h, err := s.Acquire("x.gif", "image/gif", []byte{byte(i)})
		require.NoError(t, err)
		handles = append(handles, h)
	}

	s.ReleaseAll(handles[:3]...)
	assert.Equal(t, 2, s.Len())

	s.ReleaseAll(handles...)
	assert.Equal(t, 0, s.Len())
}

func TestStoreConcurrentAcquire(t *testing.T) {
	s := NewStore(100, 0)

	var wg sync.WaitGroup
	seen := sync.Map{}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := s.Acquire("x.png", "image/png", []byte("x"))
			assert.NoError(t, err)
			_, dup := seen.LoadOrStore(h, struct{}{})
			assert.False(t, dup)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClockedStore(capacity int, ttl time.Duration) (*Store, *clock) {
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewStore(capacity, ttl)
	s.now = c.Now
	return s, c
}

func TestStoreExpiredHandlesFreeCapacity(t *testing.T) {
	s, c := newClockedStore(3, time.Minute)

	var handles []img.Handle
	for i := 0; i < 3; i++ {
		h, err := s.Acquire("x.png", "image/png", []byte("x"))
		require.NoError(t, err)
		handles = append(handles, h)
	}
	_, err := s.Acquire("y.png", "image/png", []byte("y"))
	assert.ErrorIs(t, err, img.ErrResource)

	c.Advance(time.Minute)

	h, err := s.Acquire("y.png", "image/png", []byte("y"))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	for _, old := range handles {
		_, ok := s.Get(old)
		assert.False(t, ok)
	}
	e, ok := s.Get(h)
	require.True(t, ok)
	assert.Equal(t, c.Now().Add(time.Minute), e.Expires)
}

func TestStoreGetDropsExpired(t *testing.T) {
	s, c := newClockedStore(10, time.Minute)

	h, err := s.Acquire("a.png", "image/png", []byte("a"))
	require.NoError(t, err)

	c.Advance(59 * time.Second)
	_, ok := s.Get(h)
	assert.True(t, ok)

	c.Advance(time.Second)
	_, ok = s.Get(h)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestStoreWithoutTTLNeverExpires(t *testing.T) {
	s, c := newClockedStore(10, 0)

	h, err := s.Acquire("a.png", "image/png", []byte("a"))
	require.NoError(t, err)

	c.Advance(24 * time.Hour)
	assert.Equal(t, 0, s.Evict())
	_, ok := s.Get(h)
	assert.True(t, ok)
}

func TestStoreSweep(t *testing.T) {
	s, c := newClockedStore(10, time.Minute)

	for i := 0; i < 4; i++ {
		_, err := s.Acquire("a.png", "image/png", []byte("a"))
		require.NoError(t, err)
	}
	c.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Sweep(ctx, time.Millisecond, zap.NewNop())
		close(done)
	}()

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep did not stop after cancel")
	}
}
