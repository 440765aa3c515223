package btree

import (
	"github.com/oba-ldap/xdbm/internal/storage"
)

// Insert adds the pair (key, value) to the tree. Pairs that are already
// present are stored again.
//
// Algorithm:
// 1. Find the leaf after the last entry not greater than the pair
// 2. Insert the pair there
// 3. If the leaf no longer fits in a page, split it into two leaves
// 4. Propagate the split up to the parent
// 5. If the root splits, create a new root
func (t *Tree) Insert(key, value []byte) error {
	if len(key)+len(value) > MaxEntrySize {
		return ErrEntryTooLarge
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e := Entry{Key: key, Value: value}
	path, err := t.findPath(seekTarget{Entry: e, Upper: true})
	if err != nil {
		return err
	}

	last := path[len(path)-1]
	leaf := last.node
	leaf.InsertEntryAt(last.index, e, InvalidPageID)

	if !leaf.FitsInPage() {
		err = t.splitLeafAndPropagate(path)
	} else {
		err = t.writeNode(leaf)
	}
	if err != nil {
		return err
	}

	t.count++
	t.version++
	return nil
}

// splitPoint returns the index at which entries are divided so that both
// halves hold about the same number of bytes. The result is within
// [lo, len(entries)-hi].
func splitPoint(entries []Entry, lo, hi int) int {
	total := 0
	for _, e := range entries {
		total += entrySize(e)
	}

	acc, i := 0, 0
	for ; i < len(entries); i++ {
		if acc >= total/2 {
			break
		}
		acc += entrySize(entries[i])
	}

	return max(lo, min(i, len(entries)-hi))
}

// splitLeafAndPropagate splits an overflowing leaf and propagates the split
// up the tree.
func (t *Tree) splitLeafAndPropagate(path []pathElem) error {
	leaf := path[len(path)-1].node

	newLeaf, separator, err := t.splitLeaf(leaf)
	if err != nil {
		return err
	}

	// Write both leaves
	if err := t.writeNode(leaf); err != nil {
		return err
	}
	if err := t.writeNode(newLeaf); err != nil {
		return err
	}

	return t.insertIntoParent(path[:len(path)-1], leaf.PageID, separator, newLeaf.PageID)
}

// splitLeaf moves the upper half of leaf into a new right sibling.
// Returns the new leaf and the separator to insert into the parent.
func (t *Tree) splitLeaf(leaf *BPlusNode) (*BPlusNode, Entry, error) {
	newLeaf, err := t.allocateNode(true)
	if err != nil {
		return nil, Entry{}, err
	}

	sp := splitPoint(leaf.Entries, 1, 1)

	newLeaf.Entries = append([]Entry(nil), leaf.Entries[sp:]...)
	leaf.Entries = leaf.Entries[:sp:sp]

	// Update leaf links
	newLeaf.Next = leaf.Next
	newLeaf.Prev = leaf.PageID
	leaf.Next = newLeaf.PageID

	if newLeaf.Next != InvalidPageID {
		nextLeaf, err := t.readNode(newLeaf.Next)
		if err != nil {
			return nil, Entry{}, err
		}
		nextLeaf.Prev = newLeaf.PageID
		if err := t.writeNode(nextLeaf); err != nil {
			return nil, Entry{}, err
		}
	}

	// The separator is the first entry of the new leaf
	return newLeaf, newLeaf.Entries[0].Clone(), nil
}

// insertIntoParent inserts a separator and right child pointer into the
// parent node. If the parent overflows, it splits and propagates up.
func (t *Tree) insertIntoParent(path []pathElem, leftChild storage.PageID, separator Entry, rightChild storage.PageID) error {
	if len(path) == 0 {
		return t.createNewRoot(leftChild, separator, rightChild)
	}

	last := path[len(path)-1]
	parent := last.node

	// The left child was reached through Children[index]
	parent.InsertEntryAt(last.index, separator, rightChild)

	if !parent.FitsInPage() {
		return t.splitInternalAndPropagate(path)
	}

	return t.writeNode(parent)
}

// createNewRoot creates a new root node with two children.
func (t *Tree) createNewRoot(leftChild storage.PageID, separator Entry, rightChild storage.PageID) error {
	newRoot, err := t.allocateNode(false)
	if err != nil {
		return err
	}

	newRoot.Entries = []Entry{separator}
	newRoot.Children = []storage.PageID{leftChild, rightChild}

	if err := t.writeNode(newRoot); err != nil {
		return err
	}

	t.root = newRoot.PageID

	return nil
}

// splitInternalAndPropagate splits an overflowing internal node and
// propagates the split up the tree.
func (t *Tree) splitInternalAndPropagate(path []pathElem) error {
	internal := path[len(path)-1].node

	newInternal, promoted, err := t.splitInternal(internal)
	if err != nil {
		return err
	}

	if err := t.writeNode(internal); err != nil {
		return err
	}
	if err := t.writeNode(newInternal); err != nil {
		return err
	}

	return t.insertIntoParent(path[:len(path)-1], internal.PageID, promoted, newInternal.PageID)
}

// splitInternal splits an internal node around its middle separator, which
// is promoted to the parent.
func (t *Tree) splitInternal(internal *BPlusNode) (*BPlusNode, Entry, error) {
	newInternal, err := t.allocateNode(false)
	if err != nil {
		return nil, Entry{}, err
	}

	sp := splitPoint(internal.Entries, 1, 2)
	promoted := internal.Entries[sp]

	newInternal.Entries = append([]Entry(nil), internal.Entries[sp+1:]...)
	newInternal.Children = append([]storage.PageID(nil), internal.Children[sp+1:]...)

	internal.Entries = internal.Entries[:sp:sp]
	internal.Children = internal.Children[: sp+1 : sp+1]

	return newInternal, promoted, nil
}
