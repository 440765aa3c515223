package storage

import (
	"container/list"
	"sync"
)

// DefaultCachePages is the number of pages a PageManager keeps in memory
// by default.
const DefaultCachePages = 64

// pageCache is a least recently used cache of serialized pages. A nil
// cache stores nothing.
type pageCache struct {
	mu       sync.Mutex
	capacity int
	list     *list.List               // front is the most recently used
	entries  map[PageID]*list.Element // for O(1) lookup
	hits     uint64
	misses   uint64
}

type cacheEntry struct {
	pageID PageID
	data   []byte
}

// newPageCache returns a cache of capacity pages, or nil when capacity is
// not positive.
func newPageCache(capacity int) *pageCache {
	if capacity <= 0 {
		return nil
	}
	return &pageCache{
		capacity: capacity,
		list:     list.New(),
		entries:  make(map[PageID]*list.Element),
	}
}

// get returns the cached bytes of a page and marks it recently used. The
// returned slice must not be modified.
func (c *pageCache) get(pageID PageID) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.entries[pageID]
	if !exists {
		c.misses++
		return nil, false
	}
	c.hits++
	c.list.MoveToFront(elem)
	return elem.Value.(*cacheEntry).data, true
}

// put stores data for a page, evicting the least recently used page when
// the cache is full. The cache takes ownership of data.
func (c *pageCache) put(pageID PageID, data []byte) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.entries[pageID]; exists {
		elem.Value.(*cacheEntry).data = data
		c.list.MoveToFront(elem)
		return
	}

	c.entries[pageID] = c.list.PushFront(&cacheEntry{pageID: pageID, data: data})
	for c.list.Len() > c.capacity {
		back := c.list.Back()
		c.list.Remove(back)
		delete(c.entries, back.Value.(*cacheEntry).pageID)
	}
}

// remove drops a page from the cache.
func (c *pageCache) remove(pageID PageID) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.entries[pageID]; exists {
		c.list.Remove(elem)
		delete(c.entries, pageID)
	}
}

// clear removes every page.
func (c *pageCache) clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.list.Init()
	c.entries = make(map[PageID]*list.Element)
}

// stats returns the number of cached pages, hits and misses.
func (c *pageCache) stats() (pages int, hits, misses uint64) {
	if c == nil {
		return 0, 0, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.Len(), c.hits, c.misses
}

// order returns the cached page IDs from most to least recently used.
func (c *pageCache) order() []PageID {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]PageID, 0, c.list.Len())
	for elem := c.list.Front(); elem != nil; elem = elem.Next() {
		result = append(result, elem.Value.(*cacheEntry).pageID)
	}
	return result
}
