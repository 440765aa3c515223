package storage

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestPageCacheEviction(t *testing.T) {
	c := newPageCache(3)

	for id := PageID(1); id <= 3; id++ {
		c.put(id, []byte{byte(id)})
	}
	if got, want := c.order(), []PageID{3, 2, 1}; !reflect.DeepEqual(got, want) {
		t.Errorf("order() = %v, want %v", got, want)
	}

	// Touching 1 makes 2 the eviction candidate.
	if data, ok := c.get(1); !ok || data[0] != 1 {
		t.Fatalf("get(1) = %v, %v", data, ok)
	}
	c.put(4, []byte{4})

	if _, ok := c.get(2); ok {
		t.Error("page 2 should have been evicted")
	}
	if got, want := c.order(), []PageID{4, 1, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("order() = %v, want %v", got, want)
	}

	c.put(3, []byte{33})
	if data, _ := c.get(3); data[0] != 33 {
		t.Errorf("get(3) = %v, want replaced data", data)
	}

	c.remove(4)
	pages, hits, misses := c.stats()
	if pages != 2 || hits != 2 || misses != 1 {
		t.Errorf("stats() = %d, %d, %d, want 2, 2, 1", pages, hits, misses)
	}

	c.clear()
	if got := c.order(); len(got) != 0 {
		t.Errorf("order() after clear = %v", got)
	}
}

func TestPageCacheDisabled(t *testing.T) {
	c := newPageCache(0)
	if c != nil {
		t.Fatal("newPageCache(0) should return nil")
	}

	c.put(1, []byte{1})
	if _, ok := c.get(1); ok {
		t.Error("nil cache should not return pages")
	}
	c.remove(1)
	c.clear()
	if pages, _, _ := c.stats(); pages != 0 {
		t.Errorf("stats() pages = %d, want 0", pages)
	}
}

func TestPageManagerCache(t *testing.T) {
	pm := openTestManager(t, filepath.Join(t.TempDir(), "cache.xdbm"))
	defer pm.Close()

	id, err := pm.AllocatePage(PageTypeForward)
	if err != nil {
		t.Fatalf("AllocatePage() error = %v", err)
	}
	page := NewPage(id, PageTypeForward)
	copy(page.Data, "cached")
	if err := pm.WritePage(page); err != nil {
		t.Fatalf("WritePage() error = %v", err)
	}

	got, err := pm.ReadPage(id)
	if err != nil {
		t.Fatalf("ReadPage() error = %v", err)
	}
	copy(got.Data, "mutated")

	again, err := pm.ReadPage(id)
	if err != nil {
		t.Fatalf("ReadPage() error = %v", err)
	}
	if string(again.Data[:6]) != "cached" {
		t.Errorf("ReadPage() data = %q, callers must not share cached bytes", again.Data[:6])
	}

	stats := pm.Stats()
	if stats.CacheHits < 2 {
		t.Errorf("CacheHits = %d, want at least 2", stats.CacheHits)
	}
	if stats.CachedPages == 0 {
		t.Error("CachedPages = 0 after a write")
	}
}

func TestPageManagerWithoutCache(t *testing.T) {
	opts := DefaultOptions()
	opts.CachePages = 0
	pm, err := OpenPageManager(filepath.Join(t.TempDir(), "nocache.xdbm"), opts)
	if err != nil {
		t.Fatalf("OpenPageManager() error = %v", err)
	}
	defer pm.Close()

	id, err := pm.AllocatePage(PageTypeReverse)
	if err != nil {
		t.Fatalf("AllocatePage() error = %v", err)
	}
	if err := pm.WritePage(NewPage(id, PageTypeReverse)); err != nil {
		t.Fatalf("WritePage() error = %v", err)
	}
	if _, err := pm.ReadPage(id); err != nil {
		t.Fatalf("ReadPage() error = %v", err)
	}

	if stats := pm.Stats(); stats.CachedPages != 0 || stats.CacheHits != 0 {
		t.Errorf("Stats() = %+v, want no cache activity", stats)
	}
}
