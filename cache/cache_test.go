package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/fusego/model"
	"github.com/hupe1980/fusego/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func results(ids ...string) []model.SearchResult {
	out := make([]model.SearchResult, len(ids))
	for i, id := range ids {
		out[i] = model.SearchResult{ID: id, Score: 1}
	}
	return out
}

func TestGetSet(t *testing.T) {
	c := New()

	key := NewKey("search", "hello world", 10)
	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Set(key, results("d1", "d2"))

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, results("d1", "d2"), got)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestKeyNormalization(t *testing.T) {
	// Same signature for trivially different spellings.
	assert.Equal(t, NewKey("search", "Hello   World", 10), NewKey("search", "hello world", 10))

	// Different parameters, different keys.
	assert.NotEqual(t, NewKey("search", "hello", 10), NewKey("search", "hello", 20))

	// Different categories, different keys.
	assert.NotEqual(t, NewKey("search", "hello", 10), NewKey("knn", "hello", 10))
}

func TestLRUEviction(t *testing.T) {
	c := New(func(o *Options) {
		o.MaxSize = 3
	})

	keys := make([]string, 4)
	for i := range keys {
		keys[i] = NewKey("search", fmt.Sprintf("query-%d", i))
	}

	c.Set(keys[0], results("a"))
	c.Set(keys[1], results("b"))
	c.Set(keys[2], results("c"))

	// Touch keys[0] so keys[1] becomes least-recently-used.
	_, ok := c.Get(keys[0])
	require.True(t, ok)

	// Inserting maxSize+1st distinct key evicts exactly the LRU entry.
	c.Set(keys[3], results("d"))

	assert.Equal(t, 3, c.Len())
	_, ok = c.Get(keys[1])
	assert.False(t, ok, "least-recently-used entry must be gone")
	_, ok = c.Get(keys[0])
	assert.True(t, ok)
	_, ok = c.Get(keys[2])
	assert.True(t, ok)
	_, ok = c.Get(keys[3])
	assert.True(t, ok)

	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestTTLExpiry(t *testing.T) {
	now := time.Now()
	c := New(func(o *Options) {
		o.DefaultTTL = time.Second
		o.now = func() time.Time { return now }
	})

	key := NewKey("search", "ephemeral")
	c.Set(key, results("a"))

	_, ok := c.Get(key)
	require.True(t, ok)

	// Advance past the TTL: the get behaves as a miss.
	now = now.Add(2 * time.Second)
	_, ok = c.Get(key)
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestPerEntryTTL(t *testing.T) {
	now := time.Now()
	c := New(func(o *Options) {
		o.DefaultTTL = time.Hour
		o.now = func() time.Time { return now }
	})

	short := NewKey("search", "short")
	long := NewKey("search", "long")
	c.SetWithTTL(short, results("a"), time.Second)
	c.Set(long, results("b"))

	now = now.Add(time.Minute)

	_, ok := c.Get(short)
	assert.False(t, ok)
	_, ok = c.Get(long)
	assert.True(t, ok)
}

func TestOversizedValueRejectedSilently(t *testing.T) {
	c := New(func(o *Options) {
		o.MaxResultSize = 100
	})

	big := make([]model.SearchResult, 100)
	for i := range big {
		big[i] = model.SearchResult{ID: fmt.Sprintf("document-%06d", i)}
	}

	key := NewKey("search", "big")
	c.Set(key, big)

	_, ok := c.Get(key)
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestInvalidateCategory(t *testing.T) {
	c := New()

	c.Set(NewKey("search", "q1"), results("a"))
	c.Set(NewKey("search", "q2"), results("b"))
	c.Set(NewKey("knn", "q3"), results("c"))

	removed := c.InvalidateCategory("search")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get(NewKey("knn", "q3"))
	assert.True(t, ok)
}

func TestDisabledCache(t *testing.T) {
	c := New(func(o *Options) {
		o.Enabled = false
	})

	key := NewKey("search", "q")
	c.Set(key, results("a"))

	_, ok := c.Get(key)
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestStatsByCategory(t *testing.T) {
	c := New()

	c.Set(NewKey("search", "q1"), results("a"))
	c.Set(NewKey("search", "q2"), results("b"))
	c.Set(NewKey("knn", "q3"), results("c"))

	stats := c.Stats()
	assert.Equal(t, 3, stats.Entries)
	assert.Equal(t, 2, stats.EntriesByCategory["search"])
	assert.Equal(t, 1, stats.EntriesByCategory["knn"])
}

func TestMemoryAccounting(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 200})
	c := New(func(o *Options) {
		o.Controller = rc
	})

	c.Set(NewKey("search", "q1"), results("a"))
	assert.Greater(t, rc.MemoryUsage(), int64(0))

	// Admission denied once the shared budget is exhausted.
	c.Set(NewKey("search", "q2"), results("b"))
	c.Set(NewKey("search", "q3"), results("c"))
	assert.LessOrEqual(t, rc.MemoryUsage(), int64(200))

	// Invalidation returns the budget.
	c.InvalidateCategory("search")
	assert.Zero(t, rc.MemoryUsage())
}

func TestConcurrentAccess(t *testing.T) {
	c := New()

	keys := make([]string, 16)
	for i := range keys {
		keys[i] = NewKey("search", fmt.Sprintf("query %d", i), 10)
	}

	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()

			for i := 0; i < 200; i++ {
				key := keys[(g+i)%len(keys)]

				switch i % 4 {
				case 0:
					c.Set(key, results("d1", "d2"))
				case 1:
					c.Get(key)
				case 2:
					c.Stats()
				default:
					c.InvalidateCategory("search")
				}
			}
		}(g)
	}

	wg.Wait()

	// The cache must still be coherent after concurrent churn.
	c.Set(keys[0], results("d1"))
	got, ok := c.Get(keys[0])
	require.True(t, ok)
	assert.Equal(t, results("d1"), got)
}
