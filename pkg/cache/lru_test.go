package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func TestLRUEvictsLeastRecentlyTouched(t *testing.T) {
	c := NewLRU[string, int](2, 0)
	c.Insert("a", 1)
	c.Insert("b", 2)
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Insert("c", 3)

	_, ok = c.Peek("b")
	assert.False(t, ok, "b should have been evicted")
	v, ok := c.Peek("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = c.Peek("c")
	assert.True(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestLRUEvictsOldestWithoutAccess(t *testing.T) {
	c := NewLRU[string, int](3, 0)
	for i, k := range []string{"a", "b", "c", "d"} {
		c.Insert(k, i)
	}
	assert.Equal(t, []string{"d", "c", "b"}, c.Keys())
}

func TestLRUTiesFollowInsertionOrder(t *testing.T) {
	clock := newFakeClock()
	c := NewLRU[string, int](3, time.Hour, WithClock(clock.Now))
	c.Insert("a", 1)
	c.Insert("b", 2)
	c.Insert("c", 3)
	c.Insert("d", 4)
	_, ok := c.Peek("a")
	assert.False(t, ok, "first observed entry is evicted first on equal timestamps")
	assert.Equal(t, 3, c.Len())
}

func TestLRUInsertReplacesWithoutEviction(t *testing.T) {
	c := NewLRU[string, int](2, 0)
	c.Insert("a", 1)
	c.Insert("b", 2)
	c.Insert("a", 10)

	assert.Equal(t, 2, c.Len())
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)
	_, ok = c.Peek("b")
	assert.True(t, ok)
	assert.Equal(t, uint64(0), c.Stats().Evictions)
}

func TestLRUExpiredEntryIsRemovedOnGet(t *testing.T) {
	clock := newFakeClock()
	c := NewLRU[string, string](4, time.Minute, WithClock(clock.Now))
	c.Insert("k", "v")

	clock.Advance(59 * time.Second)
	_, ok := c.Get("k")
	require.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry must be removed by the lookup")
}

func TestLRUCleanupExpired(t *testing.T) {
	clock := newFakeClock()
	c := NewLRU[string, int](4, time.Minute, WithClock(clock.Now))
	c.Insert("old", 1)
	clock.Advance(30 * time.Second)
	c.Insert("new", 2)
	clock.Advance(40 * time.Second)

	assert.Equal(t, 1, c.CleanupExpired())
	assert.Equal(t, []string{"new"}, c.Keys())
}

func TestLRUInsertAtCapacityDropsExpiredFirst(t *testing.T) {
	clock := newFakeClock()
	c := NewLRU[string, int](2, time.Minute, WithClock(clock.Now))
	c.Insert("stale", 1)
	clock.Advance(2 * time.Minute)
	c.Insert("b", 2)
	c.Insert("c", 3)

	assert.ElementsMatch(t, []string{"b", "c"}, c.Keys())
	assert.Equal(t, uint64(0), c.Stats().Evictions)
}

func TestLRUEntryBookkeeping(t *testing.T) {
	clock := newFakeClock()
	c := NewLRU[string, int](2, 0, WithClock(clock.Now))
	c.Insert("a", 1)
	clock.Advance(time.Second)
	c.Get("a")
	c.Get("a")

	e, ok := c.Entry("a")
	require.True(t, ok)
	assert.Equal(t, uint64(2), e.AccessCount)
	assert.Equal(t, clock.Now(), e.LastAccessed)
	assert.Equal(t, clock.Now().Add(-time.Second), e.InsertedAt)
}

func TestLRURemoveAndClear(t *testing.T) {
	c := NewLRU[int, string](4, 0)
	c.Insert(1, "one")
	c.Insert(2, "two")

	v, ok := c.Remove(1)
	require.True(t, ok)
	assert.Equal(t, "one", v)
	_, ok = c.Remove(1)
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Keys())
	c.Insert(3, "three")
	assert.Equal(t, []int{3}, c.Keys())
}

func TestLRUConcurrentAccess(t *testing.T) {
	c := NewLRU[string, int](64, time.Minute)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				k := fmt.Sprintf("k%d", (g*200+i)%100)
				c.Insert(k, i)
				c.Get(k)
				if i%10 == 0 {
					c.Remove(k)
				}
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 64)
}
