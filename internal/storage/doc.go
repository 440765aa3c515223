// Package storage provides the page file behind disk attribute indexes.
//
// # Overview
//
// An index file is a sequence of fixed 4 KiB pages. Page 0 holds the file
// header; every other page is a B+ tree node or a free list page:
//
//   - FileHeader: magic, version, page count, free list head, the roots
//     and pair counts of the forward and reverse trees, and the indexed
//     attribute
//   - Page: a 16-byte PageHeader (id, type, flags, item count, checksum)
//     followed by the page payload
//   - FreeList: released pages, persisted as a chain of free list pages
//
// # Page Manager
//
// PageManager allocates, reads, writes and frees pages of one file:
//
//	pm, err := storage.OpenPageManager(path, storage.Options{
//	    CreateIfNew: true,
//	    Attribute:   "cn",
//	})
//	if err != nil {
//	    return err
//	}
//	defer pm.Close()
//
//	id, err := pm.AllocatePage(storage.PageTypeForward)
//
// The file is locked while open: exclusively for writers, shared for
// read-only managers. Writes stay in the OS page cache until Sync unless
// Options.SyncOnWrite is set. SetRoots records the tree roots and counts
// in the header and is persisted by the next Sync or Close.
//
// Read-only managers reject every write with ErrReadOnly.
package storage
