package btree

import (
	"bytes"
	"sort"

	"github.com/oba-ldap/xdbm/internal/storage"
)

// B+ Tree constants.
const (
	// MaxEntrySize is the maximum combined size of an entry's key and value.
	// It keeps at least three entries in every page so splits always succeed.
	MaxEntrySize = 1024

	// InvalidPageID represents an invalid or null page reference.
	InvalidPageID storage.PageID = 0

	// nodeCapacity is the number of bytes available to a serialized node.
	nodeCapacity = storage.PageSize - storage.PageHeaderSize

	// minFill is the serialized size below which a non-root node is
	// merged with a sibling when possible.
	minFill = nodeCapacity / 4
)

// Entry is one (key, value) pair stored in a leaf. Internal nodes use
// entries as separators.
type Entry struct {
	Key   []byte
	Value []byte
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	return Entry{Key: bytes.Clone(e.Key), Value: bytes.Clone(e.Value)}
}

// CompareEntries orders entries by key, then by value.
func CompareEntries(a, b Entry) int {
	if c := bytes.Compare(a.Key, b.Key); c != 0 {
		return c
	}
	return bytes.Compare(a.Value, b.Value)
}

// BPlusNode represents a node in the B+ Tree.
// Leaf nodes hold sorted entries and are linked to their siblings.
// Internal nodes hold separators and child pointers: every entry below
// Children[i] lies between Entries[i-1] and Entries[i], both inclusive.
type BPlusNode struct {
	IsLeaf bool

	// Entries holds the stored pairs (leaf) or the separators (internal).
	Entries []Entry

	// Children contains child page IDs (only used in internal nodes).
	// len(Children) = len(Entries) + 1 for internal nodes.
	Children []storage.PageID

	// Next and Prev link the leaves in entry order.
	Next storage.PageID
	Prev storage.PageID

	PageID storage.PageID
}

// NewInternalNode creates a new internal (non-leaf) B+ Tree node.
func NewInternalNode(pageID storage.PageID) *BPlusNode {
	return &BPlusNode{
		PageID: pageID,
	}
}

// NewLeafNode creates a new leaf B+ Tree node.
func NewLeafNode(pageID storage.PageID) *BPlusNode {
	return &BPlusNode{
		IsLeaf: true,
		PageID: pageID,
	}
}

// EntryCount returns the number of entries in the node.
func (n *BPlusNode) EntryCount() int {
	return len(n.Entries)
}

// IsUnderflow reports whether the node is filled below minFill.
// Root nodes are exempt from underflow checks.
func (n *BPlusNode) IsUnderflow() bool {
	return n.SerializedSize() < minFill
}

// InsertEntryAt inserts a copy of e at index. For internal nodes child is
// placed to the right of the new separator.
func (n *BPlusNode) InsertEntryAt(index int, e Entry, child storage.PageID) {
	n.Entries = append(n.Entries, Entry{})
	copy(n.Entries[index+1:], n.Entries[index:])
	n.Entries[index] = e.Clone()

	if !n.IsLeaf {
		n.Children = append(n.Children, InvalidPageID)
		copy(n.Children[index+2:], n.Children[index+1:])
		n.Children[index+1] = child
	}
}

// RemoveEntryAt removes the entry at index. For internal nodes the child to
// the right of the separator is removed as well.
func (n *BPlusNode) RemoveEntryAt(index int) (Entry, storage.PageID) {
	if index < 0 || index >= len(n.Entries) {
		return Entry{}, InvalidPageID
	}

	e := n.Entries[index]
	n.Entries = append(n.Entries[:index], n.Entries[index+1:]...)

	child := InvalidPageID
	if !n.IsLeaf && index+1 < len(n.Children) {
		child = n.Children[index+1]
		n.Children = append(n.Children[:index+1], n.Children[index+2:]...)
	}

	return e, child
}

// FirstEntry returns the first entry and whether the node has any.
func (n *BPlusNode) FirstEntry() (Entry, bool) {
	if len(n.Entries) == 0 {
		return Entry{}, false
	}
	return n.Entries[0], true
}

// seekTarget describes a position between entries: immediately before
// the first entry not less than Entry (lower) or immediately after the
// last entry not greater than Entry (upper). With KeyOnly the value is
// ignored, so the position brackets the whole key.
type seekTarget struct {
	Entry   Entry
	KeyOnly bool
	Upper   bool
}

func (s seekTarget) compare(e Entry) int {
	if s.KeyOnly {
		return bytes.Compare(e.Key, s.Entry.Key)
	}
	return CompareEntries(e, s.Entry)
}

// search returns the number of entries before the target position. In an
// internal node it is the index of the child to descend into; in a leaf
// it is the index of the entry right after the position.
func (n *BPlusNode) search(s seekTarget) int {
	return sort.Search(len(n.Entries), func(i int) bool {
		c := s.compare(n.Entries[i])
		if s.Upper {
			return c > 0
		}
		return c >= 0
	})
}

// findChildIndex finds the index of a child in the node's children.
func (n *BPlusNode) findChildIndex(childID storage.PageID) int {
	for i, id := range n.Children {
		if id == childID {
			return i
		}
	}
	return -1
}
