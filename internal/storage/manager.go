package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

const (
	DefaultPageSize     = PageSize
	DefaultInitialPages = 16
	// MinGrowthPages is the number of pages added when the file runs out
	// of free pages.
	MinGrowthPages = 8
)

// PageManager errors.
var (
	ErrInvalidPageID    = errors.New("invalid page ID")
	ErrPageOutOfRange   = errors.New("page ID out of range")
	ErrPageAlreadyFree  = errors.New("page is already free")
	ErrCannotFreeHeader = errors.New("cannot free header page")
	ErrFileClosed       = errors.New("page manager is closed")
	ErrFileCorrupted    = errors.New("file is corrupted")
	ErrFileLocked       = errors.New("file is locked by another process")
	ErrReadOnly         = errors.New("page manager is read-only")
)

// Options configures OpenPageManager.
type Options struct {
	// PageSize must be 0 or PageSize.
	PageSize int
	// InitialPages sizes a new file, header page included.
	InitialPages int
	CreateIfNew  bool
	// ReadOnly opens an existing file under a shared lock and rejects
	// every modification.
	ReadOnly    bool
	SyncOnWrite bool
	// Attribute is recorded in the header of a new file.
	Attribute string
	// CachePages is the number of encoded pages kept in memory. Zero or
	// less disables the cache.
	CachePages int
}

// DefaultOptions returns options that create the file when missing.
func DefaultOptions() Options {
	return Options{
		PageSize:     DefaultPageSize,
		InitialPages: DefaultInitialPages,
		CreateIfNew:  true,
		CachePages:   DefaultCachePages,
	}
}

// PageManager allocates, frees, reads and writes the pages of one locked
// index file. It is safe for concurrent use.
type PageManager struct {
	mu sync.RWMutex

	file   *os.File
	path   string
	header *FileHeader
	// totalPages is the file length in pages. header.TotalPages catches
	// up on the next header write.
	totalPages uint64
	freeList   *FreeList
	cache      *pageCache

	readOnly    bool
	syncOnWrite bool
	closed      bool
}

// OpenPageManager opens the page file at path, creating it when allowed,
// and locks it: exclusively for writers, shared for readers.
func OpenPageManager(path string, opts Options) (*PageManager, error) {
	if opts.PageSize != 0 && opts.PageSize != PageSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPageSize, opts.PageSize)
	}
	if opts.InitialPages <= 0 {
		opts.InitialPages = DefaultInitialPages
	}

	_, statErr := os.Stat(path)
	create := errors.Is(statErr, os.ErrNotExist)
	if create && (!opts.CreateIfNew || opts.ReadOnly) {
		return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	}

	flags := os.O_RDWR
	switch {
	case opts.ReadOnly:
		flags = os.O_RDONLY
	case create:
		flags |= os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	if err := lockFile(f, opts.ReadOnly); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	pm := &PageManager{
		file:        f,
		path:        path,
		freeList:    NewFreeList(),
		cache:       newPageCache(opts.CachePages),
		readOnly:    opts.ReadOnly,
		syncOnWrite: opts.SyncOnWrite,
	}
	if create {
		err = pm.format(opts.InitialPages, opts.Attribute)
	} else {
		err = pm.load()
	}
	if err != nil {
		_ = unlockFile(f)
		f.Close()
		if create {
			os.Remove(path)
		}
		return nil, err
	}
	return pm, nil
}

// load reads the header and the free list of an existing file.
func (pm *PageManager) load() error {
	buf := make([]byte, FileHeaderSize)
	if _, err := pm.file.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	h := &FileHeader{}
	if err := h.Deserialize(buf); err != nil {
		return fmt.Errorf("invalid header: %w", err)
	}
	if h.PageSize != PageSize {
		return fmt.Errorf("invalid header: %w: %d", ErrInvalidPageSize, h.PageSize)
	}
	pm.header = h
	pm.totalPages = h.TotalPages

	if err := pm.freeList.load(h.FreeListHead, pm.readPageLocked); err != nil {
		return fmt.Errorf("load free list: %w", err)
	}
	return nil
}

// format lays out a new file of n pages. Every page but the header starts
// out free.
func (pm *PageManager) format(n int, attribute string) error {
	pm.header = NewFileHeader()
	pm.header.Attribute = attribute
	pm.totalPages = uint64(n)

	if err := pm.file.Truncate(int64(n) * PageSize); err != nil {
		return fmt.Errorf("size index file: %w", err)
	}
	if err := pm.writeHeaderLocked(); err != nil {
		return err
	}
	for id := 1; id < n; id++ {
		pm.freeList.Push(PageID(id))
	}
	if err := datasync(pm.file); err != nil {
		return fmt.Errorf("sync index file: %w", err)
	}
	return nil
}

// Close persists the free list and header of a writable file, then
// releases the lock. A second Close returns ErrFileClosed.
func (pm *PageManager) Close() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.closed {
		return ErrFileClosed
	}
	pm.closed = true

	var err error
	if !pm.readOnly {
		err = pm.syncLocked()
	}
	pm.cache.clear()
	_ = unlockFile(pm.file)
	return errors.Join(err, pm.file.Close())
}

// checkWritable reports why pages cannot be modified. Callers hold pm.mu.
func (pm *PageManager) checkWritable() error {
	switch {
	case pm.closed:
		return ErrFileClosed
	case pm.readOnly:
		return ErrReadOnly
	}
	return nil
}

// checkRange validates the id of a page to read or write.
func (pm *PageManager) checkRange(id PageID) error {
	switch {
	case id == 0:
		return ErrInvalidPageID
	case uint64(id) >= pm.totalPages:
		return ErrPageOutOfRange
	}
	return nil
}

func (pm *PageManager) syncLocked() error {
	head, err := pm.freeList.persist(pm.writePageLocked)
	if err != nil {
		return fmt.Errorf("save free list: %w", err)
	}
	pm.header.FreeListHead = head

	if err := pm.writeHeaderLocked(); err != nil {
		return err
	}
	if err := datasync(pm.file); err != nil {
		return fmt.Errorf("sync index file: %w", err)
	}
	return nil
}

func (pm *PageManager) writeHeaderLocked() error {
	pm.header.TotalPages = pm.totalPages
	buf, err := pm.header.Serialize()
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if _, err := pm.file.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// AllocatePage returns an empty page of pageType, reusing a free page
// before growing the file.
func (pm *PageManager) AllocatePage(pageType PageType) (PageID, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if err := pm.checkWritable(); err != nil {
		return 0, err
	}

	id, reused := pm.freeList.Pop()
	if !reused {
		id = PageID(pm.totalPages)
		if err := pm.growLocked(); err != nil {
			return 0, err
		}
	}
	if err := pm.writePageLocked(NewPage(id, pageType)); err != nil {
		pm.freeList.Push(id)
		return 0, err
	}
	return id, nil
}

// growLocked extends the file by MinGrowthPages. The first new page is
// left to the caller and the others join the free list.
func (pm *PageManager) growLocked() error {
	first := pm.totalPages
	total := first + MinGrowthPages
	if err := pm.file.Truncate(int64(total) * PageSize); err != nil {
		return fmt.Errorf("grow index file: %w", err)
	}
	pm.totalPages = total
	for id := first + 1; id < total; id++ {
		pm.freeList.Push(PageID(id))
	}
	return nil
}

// FreePage releases a page for reuse.
func (pm *PageManager) FreePage(id PageID) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if err := pm.checkWritable(); err != nil {
		return err
	}
	if id == 0 {
		return ErrCannotFreeHeader
	}
	if err := pm.checkRange(id); err != nil {
		return err
	}
	if pm.freeList.Contains(id) {
		return ErrPageAlreadyFree
	}

	if err := pm.writePageLocked(NewPage(id, PageTypeFree)); err != nil {
		return err
	}
	pm.freeList.Push(id)
	return nil
}

// ReadPage returns a verified copy of page id.
func (pm *PageManager) ReadPage(id PageID) (*Page, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	if pm.closed {
		return nil, ErrFileClosed
	}
	return pm.readPageLocked(id)
}

func (pm *PageManager) readPageLocked(id PageID) (*Page, error) {
	if err := pm.checkRange(id); err != nil {
		return nil, err
	}

	buf, cached := pm.cache.get(id)
	if !cached {
		buf = make([]byte, PageSize)
		n, err := pm.file.ReadAt(buf, int64(id)*PageSize)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read page %d: %w", id, err)
		}
		if n < PageSize {
			return nil, fmt.Errorf("page %d: short read of %d bytes: %w", id, n, ErrFileCorrupted)
		}
	}

	page := &Page{}
	if err := page.UnmarshalBinary(buf); err != nil {
		return nil, fmt.Errorf("page %d: %w", id, err)
	}
	if page.Header.PageID != id {
		return nil, fmt.Errorf("page %d holds page %d: %w", id, page.Header.PageID, ErrFileCorrupted)
	}

	if !cached {
		pm.cache.put(id, buf)
	}
	return page, nil
}

// WritePage stores page at the offset named by its header.
func (pm *PageManager) WritePage(page *Page) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if err := pm.checkWritable(); err != nil {
		return err
	}
	return pm.writePageLocked(page)
}

func (pm *PageManager) writePageLocked(page *Page) error {
	id := page.Header.PageID
	if err := pm.checkRange(id); err != nil {
		return err
	}

	buf, err := page.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode page %d: %w", id, err)
	}
	if _, err := pm.file.WriteAt(buf, int64(id)*PageSize); err != nil {
		pm.cache.remove(id)
		return fmt.Errorf("write page %d: %w", id, err)
	}
	pm.cache.put(id, buf)

	if pm.syncOnWrite {
		if err := datasync(pm.file); err != nil {
			return fmt.Errorf("sync page %d: %w", id, err)
		}
	}
	return nil
}

// Sync persists the free list and header and flushes the file. It does
// nothing for read-only managers.
func (pm *PageManager) Sync() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.closed {
		return ErrFileClosed
	}
	if pm.readOnly {
		return nil
	}
	return pm.syncLocked()
}

func (pm *PageManager) TotalPages() uint64 {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.totalPages
}

func (pm *PageManager) FreePageCount() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.freeList.Count()
}

func (pm *PageManager) PageSize() int { return PageSize }

func (pm *PageManager) Path() string { return pm.path }

func (pm *PageManager) IsReadOnly() bool { return pm.readOnly }

// Header returns a copy of the in-memory file header.
func (pm *PageManager) Header() FileHeader {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return *pm.header
}

// SetRoots records the tree roots and tuple counts in the in-memory
// header. They reach the disk on the next Sync or Close.
func (pm *PageManager) SetRoots(roots Roots, counts Counts) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if err := pm.checkWritable(); err != nil {
		return err
	}
	pm.header.Roots = roots
	pm.header.Counts = counts
	return nil
}

// Stats describes page usage of a file.
type Stats struct {
	TotalPages uint64
	FreePages  uint64
	// UsedPages excludes the header, free pages and free list pages.
	UsedPages     uint64
	PageSize      int
	FileSizeBytes int64
	CachedPages   int
	CacheHits     uint64
	CacheMisses   uint64
}

func (pm *PageManager) Stats() Stats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	free := uint64(pm.freeList.Count())
	chain := uint64(len(pm.freeList.Chain()))
	cached, hits, misses := pm.cache.stats()
	return Stats{
		TotalPages:    pm.totalPages,
		FreePages:     free,
		UsedPages:     pm.totalPages - free - chain - 1,
		PageSize:      PageSize,
		FileSizeBytes: int64(pm.totalPages) * PageSize,
		CachedPages:   cached,
		CacheHits:     hits,
		CacheMisses:   misses,
	}
}
