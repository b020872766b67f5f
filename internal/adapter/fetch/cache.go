package fetch

import (
	"context"
	"sync"

	"github.com/powderlab/avalanche-obs-ingest/internal/domain"
)

// Fetcher is the page-retrieval contract the cache decorates.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (domain.RawPage, error)
}

// CachedFetcher wraps a Fetcher with an in-memory LRU page cache.
// Record URLs recur across overlapping listing pages within a run;
// caching keeps each page to one request.
type CachedFetcher struct {
	inner Fetcher
	cache *lruCache
}

// NewCachedFetcher creates a cache decorator around a fetcher.
func NewCachedFetcher(inner Fetcher, maxEntries int) *CachedFetcher {
	return &CachedFetcher{
		inner: inner,
		cache: newLRUCache(maxEntries),
	}
}

func (c *CachedFetcher) Fetch(ctx context.Context, url string) (domain.RawPage, error) {
	if page, ok := c.cache.get(url); ok {
		return page, nil
	}
	page, err := c.inner.Fetch(ctx, url)
	if err != nil {
		return page, err
	}
	// Only successful fetches are cached so transient failures can be retried.
	c.cache.put(url, page)
	return page, nil
}

// lruCache is a simple thread-safe LRU cache for fetched pages.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.RawPage
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.RawPage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.RawPage{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.RawPage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.pushFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if c.head == e {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *lruCache) pushFront(e *entry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if c.head == e {
		c.head = e.next
	}
	if c.tail == e {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	evicted := c.tail
	c.unlink(evicted)
	delete(c.entries, evicted.key)
}
