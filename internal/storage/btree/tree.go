package btree

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/oba-ldap/xdbm/internal/storage"
)

// Tree errors.
var (
	ErrTreeNotInitialized = errors.New("b+ tree not initialized")
	ErrKeyNotFound        = errors.New("key not found")
	ErrInvalidPageManager = errors.New("invalid page manager")
	ErrInvalidPageType    = errors.New("invalid page type for b+ tree")
	ErrNodeNotFound       = errors.New("node not found")
	ErrInvalidNode        = errors.New("invalid node")
	ErrTreeCorrupted      = errors.New("b+ tree structure is corrupted")
)

// Tree is a B+ tree of (key, value) byte pairs ordered by key, then by
// value. Several values may share a key and the same pair may be stored
// more than once. All nodes of a tree carry the same page type, which lets
// two trees share one page file.
type Tree struct {
	root     storage.PageID
	pm       *storage.PageManager
	pageType storage.PageType
	count    uint64
	// version changes on every structural modification so open cursors
	// know to re-seek.
	version uint64
	mu      sync.RWMutex
}

func checkPageType(pt storage.PageType) error {
	if pt != storage.PageTypeForward && pt != storage.PageTypeReverse {
		return ErrInvalidPageType
	}
	return nil
}

// New creates an empty tree whose root leaf is allocated from pm.
func New(pm *storage.PageManager, pageType storage.PageType) (*Tree, error) {
	if pm == nil {
		return nil, ErrInvalidPageManager
	}
	if err := checkPageType(pageType); err != nil {
		return nil, err
	}

	t := &Tree{pm: pm, pageType: pageType}

	// Allocate a root page (initially a leaf node)
	root, err := t.allocateNode(true)
	if err != nil {
		return nil, err
	}
	if err := t.writeNode(root); err != nil {
		return nil, err
	}
	t.root = root.PageID

	return t, nil
}

// Open loads a tree rooted at root that holds count entries.
func Open(pm *storage.PageManager, pageType storage.PageType, root storage.PageID, count uint64) (*Tree, error) {
	if pm == nil {
		return nil, ErrInvalidPageManager
	}
	if err := checkPageType(pageType); err != nil {
		return nil, err
	}
	if root == InvalidPageID {
		return nil, ErrTreeNotInitialized
	}

	t := &Tree{root: root, pm: pm, pageType: pageType, count: count}

	// Verify the root page exists and is valid
	if _, err := t.readNode(root); err != nil {
		return nil, fmt.Errorf("open b+ tree at page %d: %w", root, err)
	}

	return t, nil
}

// Root returns the root page ID of the tree.
func (t *Tree) Root() storage.PageID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// Len returns the number of entries in the tree.
func (t *Tree) Len() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// IsEmpty returns true if the tree has no entries.
func (t *Tree) IsEmpty() bool {
	return t.Len() == 0
}

// Get returns the first value stored under key.
func (t *Tree) Get(key []byte) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	leaf, pos, err := t.seek(seekTarget{Entry: Entry{Key: key}, KeyOnly: true})
	if err != nil {
		return nil, err
	}
	e, ok, err := t.entryAtOrAfter(leaf, pos)
	if err != nil {
		return nil, err
	}
	if !ok || !bytes.Equal(e.Key, key) {
		return nil, ErrKeyNotFound
	}
	return bytes.Clone(e.Value), nil
}

// Values returns every value stored under key in order.
func (t *Tree) Values(key []byte) ([][]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.valuesLocked(key)
}

func (t *Tree) valuesLocked(key []byte) ([][]byte, error) {
	leaf, pos, err := t.seek(seekTarget{Entry: Entry{Key: key}, KeyOnly: true})
	if err != nil {
		return nil, err
	}

	var values [][]byte
	for leaf != nil {
		for ; pos < len(leaf.Entries); pos++ {
			e := leaf.Entries[pos]
			if !bytes.Equal(e.Key, key) {
				return values, nil
			}
			values = append(values, e.Value)
		}
		if leaf.Next == InvalidPageID {
			break
		}
		if leaf, err = t.readNode(leaf.Next); err != nil {
			return nil, err
		}
		pos = 0
	}
	return values, nil
}

// Contains reports whether the pair (key, value) is stored in the tree.
func (t *Tree) Contains(key, value []byte) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	target := Entry{Key: key, Value: value}
	leaf, pos, err := t.seek(seekTarget{Entry: target})
	if err != nil {
		return false, err
	}
	e, ok, err := t.entryAtOrAfter(leaf, pos)
	if err != nil || !ok {
		return false, err
	}
	return CompareEntries(e, target) == 0, nil
}

// HasKey reports whether any value is stored under key.
func (t *Tree) HasKey(key []byte) (bool, error) {
	_, err := t.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// readNode reads a node from disk.
func (t *Tree) readNode(pageID storage.PageID) (*BPlusNode, error) {
	if pageID == InvalidPageID {
		return nil, ErrNodeNotFound
	}

	page, err := t.pm.ReadPage(pageID)
	if err != nil {
		return nil, err
	}

	return NewNodeFromPage(page, t.pageType)
}

// writeNode writes a node to disk.
func (t *Tree) writeNode(node *BPlusNode) error {
	if node == nil {
		return ErrInvalidNode
	}

	page := storage.NewPage(node.PageID, t.pageType)
	if err := node.SerializeToPage(page, t.pageType); err != nil {
		return err
	}

	return t.pm.WritePage(page)
}

// allocateNode allocates a new page and creates a node.
func (t *Tree) allocateNode(isLeaf bool) (*BPlusNode, error) {
	pageID, err := t.pm.AllocatePage(t.pageType)
	if err != nil {
		return nil, err
	}

	if isLeaf {
		return NewLeafNode(pageID), nil
	}
	return NewInternalNode(pageID), nil
}

// freeNode frees a node's page.
func (t *Tree) freeNode(pageID storage.PageID) error {
	return t.pm.FreePage(pageID)
}

// pathElem is one step of a root-to-leaf path: the node and the index of
// the child taken from it (unused for the leaf).
type pathElem struct {
	node  *BPlusNode
	index int
}

// findPath descends to the leaf holding the position described by s.
func (t *Tree) findPath(s seekTarget) ([]pathElem, error) {
	if t.root == InvalidPageID {
		return nil, ErrTreeNotInitialized
	}

	node, err := t.readNode(t.root)
	if err != nil {
		return nil, err
	}

	var path []pathElem
	for !node.IsLeaf {
		idx := node.search(s)
		path = append(path, pathElem{node: node, index: idx})

		if node, err = t.readNode(node.Children[idx]); err != nil {
			return nil, err
		}
	}

	return append(path, pathElem{node: node, index: node.search(s)}), nil
}

// seek returns the leaf and the in-leaf index of the position described by
// s. The index may equal the number of entries in the leaf.
func (t *Tree) seek(s seekTarget) (*BPlusNode, int, error) {
	path, err := t.findPath(s)
	if err != nil {
		return nil, 0, err
	}
	last := path[len(path)-1]
	return last.node, last.index, nil
}

// entryAtOrAfter returns the first entry at or after pos, following the
// leaf chain.
func (t *Tree) entryAtOrAfter(leaf *BPlusNode, pos int) (Entry, bool, error) {
	for pos >= len(leaf.Entries) {
		if leaf.Next == InvalidPageID {
			return Entry{}, false, nil
		}
		var err error
		if leaf, err = t.readNode(leaf.Next); err != nil {
			return Entry{}, false, err
		}
		pos = 0
	}
	return leaf.Entries[pos], true, nil
}

// Verify checks ordering, separator bounds, leaf links and the entry count.
func (t *Tree) Verify() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var (
		count    uint64
		prevLeaf = InvalidPageID
		last     *Entry
	)

	var walk func(id storage.PageID, lo, hi *Entry) error
	walk = func(id storage.PageID, lo, hi *Entry) error {
		node, err := t.readNode(id)
		if err != nil {
			return err
		}
		for i := range node.Entries {
			e := &node.Entries[i]
			if lo != nil && CompareEntries(*e, *lo) < 0 {
				return fmt.Errorf("%w: page %d entry %d below lower bound", ErrTreeCorrupted, id, i)
			}
			if hi != nil && CompareEntries(*e, *hi) > 0 {
				return fmt.Errorf("%w: page %d entry %d above upper bound", ErrTreeCorrupted, id, i)
			}
			if i > 0 && CompareEntries(node.Entries[i-1], *e) > 0 {
				return fmt.Errorf("%w: page %d entries out of order", ErrTreeCorrupted, id)
			}
		}

		if node.IsLeaf {
			if node.Prev != prevLeaf {
				return fmt.Errorf("%w: leaf %d prev link %d, want %d", ErrTreeCorrupted, id, node.Prev, prevLeaf)
			}
			if len(node.Entries) > 0 {
				if last != nil && CompareEntries(*last, node.Entries[0]) > 0 {
					return fmt.Errorf("%w: leaf %d out of order with previous leaf", ErrTreeCorrupted, id)
				}
				last = &node.Entries[len(node.Entries)-1]
			}
			prevLeaf = id
			count += uint64(len(node.Entries))
			return nil
		}

		if len(node.Children) != len(node.Entries)+1 {
			return fmt.Errorf("%w: page %d has %d children for %d separators", ErrTreeCorrupted, id, len(node.Children), len(node.Entries))
		}
		for i, child := range node.Children {
			clo, chi := lo, hi
			if i > 0 {
				clo = &node.Entries[i-1]
			}
			if i < len(node.Entries) {
				chi = &node.Entries[i]
			}
			if err := walk(child, clo, chi); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(t.root, nil, nil); err != nil {
		return err
	}
	if count != t.count {
		return fmt.Errorf("%w: counted %d entries, header says %d", ErrTreeCorrupted, count, t.count)
	}
	return nil
}
