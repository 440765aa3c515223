package storage

import (
	"encoding/binary"
	"slices"
)

// FreeListEntrySize is the size of each entry in the free list (8 bytes for PageID).
const FreeListEntrySize = 8

// MaxFreeListEntriesPerPage is the maximum number of free page entries per page.
// The first 8 payload bytes hold the next page of the chain.
const MaxFreeListEntriesPerPage = (PageDataSize - 8) / FreeListEntrySize

// FreeList tracks pages available for reuse. It is guarded by the lock of
// the owning PageManager.
//
// On disk the list is a chain of PageTypeFreeList pages:
//   - Bytes 0-15:    PageHeader (ItemCount = number of entries)
//   - Bytes 16-23:   NextPage (PageID of next free list page, 0 if none)
//   - Bytes 24-...:  Array of free PageIDs
//
// The chain pages themselves are not free while they hold the list.
type FreeList struct {
	pages []PageID
	set   map[PageID]struct{}
	chain []PageID
}

// NewFreeList creates a new empty FreeList.
func NewFreeList() *FreeList {
	return &FreeList{set: make(map[PageID]struct{})}
}

// Count returns the number of free pages.
func (fl *FreeList) Count() int {
	return len(fl.pages)
}

// Push adds a page ID to the free list. Pages already present are ignored.
func (fl *FreeList) Push(pageID PageID) bool {
	if _, ok := fl.set[pageID]; ok {
		return false
	}
	fl.set[pageID] = struct{}{}
	fl.pages = append(fl.pages, pageID)
	return true
}

// Pop removes and returns the most recently freed page.
func (fl *FreeList) Pop() (PageID, bool) {
	if len(fl.pages) == 0 {
		return 0, false
	}

	idx := len(fl.pages) - 1
	pageID := fl.pages[idx]
	fl.pages = fl.pages[:idx]
	delete(fl.set, pageID)

	return pageID, true
}

// Contains checks if a page ID is in the free list.
func (fl *FreeList) Contains(pageID PageID) bool {
	_, ok := fl.set[pageID]
	return ok
}

// Chain returns the pages currently holding the persisted list.
func (fl *FreeList) Chain() []PageID {
	return slices.Clone(fl.chain)
}

// load reads the chain starting at head through read.
func (fl *FreeList) load(head PageID, read func(PageID) (*Page, error)) error {
	for id := head; id != 0; {
		page, err := read(id)
		if err != nil {
			return err
		}
		if page.Header.PageType != PageTypeFreeList {
			return ErrFileCorrupted
		}

		n := min(int(page.Header.ItemCount), MaxFreeListEntriesPerPage)
		for i := 0; i < n; i++ {
			offset := 8 + i*FreeListEntrySize
			fl.Push(PageID(binary.LittleEndian.Uint64(page.Data[offset : offset+FreeListEntrySize])))
		}

		fl.chain = append(fl.chain, id)
		id = PageID(binary.LittleEndian.Uint64(page.Data[0:8]))
	}
	return nil
}

// persist writes the list through write and returns the new chain head.
// The previous chain pages are released first; the new chain is taken
// from the free pages themselves.
func (fl *FreeList) persist(write func(*Page) error) (PageID, error) {
	for _, id := range fl.chain {
		fl.Push(id)
	}
	fl.chain = fl.chain[:0]

	if len(fl.pages) == 0 {
		return 0, nil
	}

	need := 1
	for need*MaxFreeListEntriesPerPage < len(fl.pages)-need {
		need++
	}
	for i := 0; i < need; i++ {
		id, _ := fl.Pop()
		fl.chain = append(fl.chain, id)
	}

	entries := fl.pages
	var next PageID
	for i := len(fl.chain) - 1; i >= 0; i-- {
		page := NewPage(fl.chain[i], PageTypeFreeList)

		start := i * MaxFreeListEntriesPerPage
		end := min(start+MaxFreeListEntriesPerPage, len(entries))
		count := 0
		for j := start; j < end; j++ {
			offset := 8 + count*FreeListEntrySize
			binary.LittleEndian.PutUint64(page.Data[offset:offset+FreeListEntrySize], uint64(entries[j]))
			count++
		}
		page.Header.ItemCount = uint16(count)
		binary.LittleEndian.PutUint64(page.Data[0:8], uint64(next))

		if err := write(page); err != nil {
			return 0, err
		}
		next = fl.chain[i]
	}

	return next, nil
}
