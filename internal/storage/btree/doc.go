// Package btree implements the on-disk B+ tree behind the persistent
// attribute index.
//
// # Overview
//
// A Tree stores (key, value) byte pairs ordered by key, then by value. A
// key may carry any number of values and the same pair may be stored more
// than once. Trees provide:
//
//   - O(log n) lookup, insertion, and deletion
//   - Bidirectional range scans via leaf node linking
//   - Page-aligned nodes for disk storage
//
// # Node Structure
//
// B+ tree nodes are stored in 4KB pages of a storage.PageManager:
//
//   - Internal nodes: separator entries and child page pointers
//   - Leaf nodes: entries and sibling pointers
//
// Nodes split and merge by serialized size rather than by entry count, so
// pages stay full regardless of key length. Every node of a tree carries
// the tree's page type, which lets a forward and a reverse tree share one
// file.
//
// # Usage
//
//	tree, err := btree.New(pageManager, storage.PageTypeForward)
//
//	// Insert a pair
//	err = tree.Insert([]byte("alice"), id)
//
//	// Scan all values of a key
//	c := tree.Cursor()
//	defer c.Close()
//	c.BeforeKey([]byte("alice"))
//	for ok, _ := c.Next(); ok; ok, _ = c.Next() {
//	    t, _ := c.Get()
//	    ...
//	}
//
// # Cursors
//
// Cursors do not hold the tree lock between calls. A cursor remembers its
// last position and re-seeks when the tree has changed since its previous
// step, so open cursors survive concurrent inserts and deletes.
package btree
