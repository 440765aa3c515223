// Package index implements the attribute indexes of the directory: a
// bidirectional mapping between attribute values (keys) and entry
// identifiers.
//
// # Orderings
//
// Every Index keeps two orderings of the same set of pairs. The forward
// ordering holds (key, id) sorted by key, then id, and answers equality
// and range lookups. The reverse ordering holds (id, key) sorted by id,
// then key, and answers "which values does this entry have", which is
// what filter evaluation needs to verify a candidate and what DropID uses
// to unindex an entry.
//
// # Backends
//
//   - MemoryIndex keeps both orderings in AVL trees with exact counts.
//   - DiskIndex keeps them as two B+ trees in one page file. Range counts
//     above the scan limit are upper bounds, see IsCountExact.
//
// # Cursors
//
// Cursors return IndexEntry values that are reused on every step. An
// IndexEntry resolves its directory entry lazily through an
// EntryResolver:
//
//	c, err := idx.ForwardKeyCursor(key)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	for ok, err := c.Next(); ok; ok, err = c.Next() {
//	    e, _ := c.Get()
//	    entry, err := e.Entry()
//	    ...
//	}
//
// # Manager
//
// Manager owns the indexes configured for a directory, normalizes values
// with each attribute's matching rule and maintains the presence index.
package index
