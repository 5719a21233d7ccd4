// Package cache provides an LRU result cache with per-entry expiry, keyed
// by a normalized query signature. It avoids recomputation for repeated
// queries and is invalidated by category when the underlying index mutates.
package cache

import (
	"container/list"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/fusego/model"
	"github.com/hupe1980/fusego/resource"
)

const (
	// DefaultMaxSize is the default entry-count capacity.
	DefaultMaxSize = 1000

	// DefaultTTL is the default entry lifetime.
	DefaultTTL = 5 * time.Minute

	// DefaultMaxResultSize rejects values above this byte estimate.
	DefaultMaxResultSize = 1 << 20
)

// Options represents the options for configuring the cache.
type Options struct {
	// MaxSize is the maximum number of entries. The least-recently-used
	// entry is evicted first when over capacity.
	MaxSize int

	// DefaultTTL is the lifetime applied by Set.
	DefaultTTL time.Duration

	// Enabled turns the cache off entirely when false: every Get misses
	// and Set is a no-op.
	Enabled bool

	// MaxResultSize silently rejects values whose byte estimate exceeds it.
	MaxResultSize int64

	// Controller optionally accounts cached bytes against a shared memory
	// budget. Denied admission is a silent non-cache, like oversize.
	Controller *resource.Controller

	// now overrides the clock in tests.
	now func() time.Time
}

// DefaultOptions holds the default cache options.
var DefaultOptions = Options{
	MaxSize:       DefaultMaxSize,
	DefaultTTL:    DefaultTTL,
	Enabled:       true,
	MaxResultSize: DefaultMaxResultSize,
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits              int64
	Misses            int64
	Evictions         int64
	Entries           int
	EntriesByCategory map[string]int
}

type entry struct {
	key       string
	value     []model.SearchResult
	timestamp time.Time
	ttl       time.Duration
	size      int64
	hitCount  int64
}

// ResultCache is an LRU cache over ranked result lists. It is safe for
// concurrent use: even read-side lookups reorder the recency list, so
// every entry point takes the mutex.
type ResultCache struct {
	mu        sync.Mutex
	opts      Options
	items     map[string]*list.Element
	evictList *list.List

	hits      int64
	misses    int64
	evictions int64
}

// New creates a new ResultCache.
func New(optFns ...func(o *Options)) *ResultCache {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.MaxResultSize <= 0 {
		opts.MaxResultSize = DefaultMaxResultSize
	}
	if opts.now == nil {
		opts.now = time.Now
	}

	return &ResultCache{
		opts:      opts,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
	}
}

// NewKey builds a cache key from a category, a query signature and
// call parameters. The query is normalized (lowercased, whitespace
// collapsed) before hashing so trivially different spellings share an
// entry. The category survives as a readable prefix for invalidation.
func NewKey(category, query string, params ...any) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.Join(strings.Fields(strings.ToLower(query)), " ")))
	for _, p := range params {
		fmt.Fprintf(h, "|%v", p)
	}
	return fmt.Sprintf("%s:%016x", category, h.Sum64())
}

func categoryOf(key string) string {
	if i := strings.LastIndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}

// estimateSize roughly estimates the retained bytes of a result list.
func estimateSize(results []model.SearchResult) int64 {
	size := int64(64) // entry bookkeeping
	for _, r := range results {
		size += int64(len(r.ID)) + 24 // scores + source
		for k, v := range r.Metadata {
			size += int64(len(k)) + 16
			if s, ok := v.(string); ok {
				size += int64(len(s))
			}
		}
	}
	return size
}

// Get returns the cached results for key. An expired entry is evicted on
// access and counted as a miss; a live entry is moved to the
// most-recently-used position.
func (c *ResultCache) Get(key string) ([]model.SearchResult, bool) {
	if !c.opts.Enabled {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}

	ent := elem.Value.(*entry)
	if c.opts.now().Sub(ent.timestamp) > ent.ttl {
		c.removeElement(elem)
		c.evictions++
		c.misses++
		return nil, false
	}

	c.hits++
	ent.hitCount++
	c.evictList.MoveToFront(elem)
	return ent.value, true
}

// Set caches a result list under key with the default TTL.
func (c *ResultCache) Set(key string, value []model.SearchResult) {
	c.SetWithTTL(key, value, c.opts.DefaultTTL)
}

// SetWithTTL caches a result list with an explicit TTL. Values above the
// configured size estimate are rejected silently, as is admission denied
// by the resource controller. At capacity the least-recently-used entry
// is evicted first.
func (c *ResultCache) SetWithTTL(key string, value []model.SearchResult, ttl time.Duration) {
	if !c.opts.Enabled {
		return
	}
	if ttl <= 0 {
		ttl = c.opts.DefaultTTL
	}

	size := estimateSize(value)
	if size > c.opts.MaxResultSize {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}

	for len(c.items) >= c.opts.MaxSize {
		if !c.evictOldest() {
			break
		}
		c.evictions++
	}

	if !c.opts.Controller.TryAcquireMemory(size) {
		return
	}

	ent := &entry{
		key:       key,
		value:     value,
		timestamp: c.opts.now(),
		ttl:       ttl,
		size:      size,
	}
	c.items[key] = c.evictList.PushFront(ent)
}

// InvalidateCategory removes all entries whose key starts with the given
// category prefix and returns how many were removed. Call it whenever the
// underlying index mutates.
func (c *ResultCache) InvalidateCategory(category string) int {
	prefix := category + ":"

	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for key, elem := range c.items {
		if strings.HasPrefix(key, prefix) {
			toRemove = append(toRemove, elem)
		}
	}

	for _, elem := range toRemove {
		c.removeElement(elem)
	}
	return len(toRemove)
}

// Len returns the number of live entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.items)
}

// Stats returns a snapshot of the cache counters, including per-category
// entry counts.
func (c *ResultCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	byCategory := make(map[string]int)
	for key := range c.items {
		byCategory[categoryOf(key)]++
	}

	return Stats{
		Hits:              c.hits,
		Misses:            c.misses,
		Evictions:         c.evictions,
		Entries:           len(c.items),
		EntriesByCategory: byCategory,
	}
}

func (c *ResultCache) evictOldest() bool {
	elem := c.evictList.Back()
	if elem == nil {
		return false
	}
	c.removeElement(elem)
	return true
}

func (c *ResultCache) removeElement(elem *list.Element) {
	ent := elem.Value.(*entry)
	c.evictList.Remove(elem)
	delete(c.items, ent.key)
	c.opts.Controller.ReleaseMemory(ent.size)
}
