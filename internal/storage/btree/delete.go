package btree

import (
	"github.com/oba-ldap/xdbm/internal/storage"
)

// Delete removes one occurrence of the pair (key, value) from the tree.
// Other values of the key are untouched.
// If the pair is not found, returns ErrKeyNotFound.
//
// Algorithm:
// 1. Find the leaf holding the pair
// 2. Remove the pair
// 3. If the leaf underflows:
//    a. Merge it with a sibling when the result fits in a page
//    b. Otherwise borrow an entry from a sibling
// 4. Propagate changes up to the parent
func (t *Tree) Delete(key, value []byte) error {

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.deleteLocked(Entry{Key: key, Value: value})
}

// DeleteKey removes every value stored under key and returns them in order.
// Returns ErrKeyNotFound if the key doesn't exist.
func (t *Tree) DeleteKey(key []byte) ([][]byte, error) {

	t.mu.Lock()
	defer t.mu.Unlock()

	values, err := t.valuesLocked(key)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, ErrKeyNotFound
	}

	for _, v := range values {
		if err := t.deleteLocked(Entry{Key: key, Value: v}); err != nil {
			return nil, err
		}
	}

	return values, nil
}

func (t *Tree) deleteLocked(target Entry) error {
	if t.root == InvalidPageID {
		return ErrTreeNotInitialized
	}

	path, found, err := t.findEntry(t.root, target, nil)
	if err != nil {
		return err
	}
	if !found {
		return ErrKeyNotFound
	}

	last := path[len(path)-1]
	leaf := last.node
	leaf.RemoveEntryAt(last.index)

	if len(path) == 1 || !leaf.IsUnderflow() {
		err = t.writeNode(leaf)
	} else {
		err = t.handleLeafUnderflow(path)
	}
	if err != nil {
		return err
	}

	t.count--
	t.version++
	return nil
}

// findEntry returns the path to an occurrence of target. Equal entries may
// sit on either side of an equal separator, so every child whose range
// can hold target is tried in order.
func (t *Tree) findEntry(id storage.PageID, target Entry, path []pathElem) ([]pathElem, bool, error) {
	node, err := t.readNode(id)
	if err != nil {
		return nil, false, err
	}

	lower := seekTarget{Entry: target}
	if node.IsLeaf {
		pos := node.search(lower)
		if pos < len(node.Entries) && CompareEntries(node.Entries[pos], target) == 0 {
			return append(path, pathElem{node: node, index: pos}), true, nil
		}
		return nil, false, nil
	}

	upper := seekTarget{Entry: target, Upper: true}
	for i := node.search(lower); i <= node.search(upper); i++ {
		p := append(path[:len(path):len(path)], pathElem{node: node, index: i})
		found, ok, err := t.findEntry(node.Children[i], target, p)
		if err != nil || ok {
			return found, ok, err
		}
	}

	return nil, false, nil
}

// mergedSize returns the serialized size of left and right joined into one
// node, with separator pulled down for internal nodes.
func mergedSize(left, right *BPlusNode, separator Entry) int {
	size := left.SerializedSize() + right.SerializedSize() - BPlusNodeHeaderSize
	if !left.IsLeaf {
		size += entrySize(separator)
	}
	return size
}

// replacedSize returns the size of parent after the separator at index is
// replaced by e.
func replacedSize(parent *BPlusNode, index int, e Entry) int {
	return parent.SerializedSize() - entrySize(parent.Entries[index]) + entrySize(e)
}

// siblings reads the left and right siblings of the node reached through
// parent.Children[index]. Missing siblings are nil.
func (t *Tree) siblings(parent *BPlusNode, index int) (left, right *BPlusNode, err error) {
	if index > 0 {
		if left, err = t.readNode(parent.Children[index-1]); err != nil {
			return nil, nil, err
		}
	}
	if index < len(parent.Children)-1 {
		if right, err = t.readNode(parent.Children[index+1]); err != nil {
			return nil, nil, err
		}
	}
	return left, right, nil
}

// handleLeafUnderflow handles underflow in a non-root leaf node.
func (t *Tree) handleLeafUnderflow(path []pathElem) error {
	leaf := path[len(path)-1].node
	parentElem := path[len(path)-2]
	parent, idx := parentElem.node, parentElem.index

	left, right, err := t.siblings(parent, idx)
	if err != nil {
		return err
	}

	// Try to merge with a sibling first
	if left != nil && mergedSize(left, leaf, Entry{}) <= nodeCapacity {
		return t.mergeLeaves(path[:len(path)-1], left, leaf, idx-1)
	}
	if right != nil && mergedSize(leaf, right, Entry{}) <= nodeCapacity {
		return t.mergeLeaves(path[:len(path)-1], leaf, right, idx)
	}

	// Merging would overflow, so the siblings are well filled
	if left != nil && len(left.Entries) > 1 {
		return t.borrowFromLeftLeaf(parent, left, leaf, idx)
	}
	if right != nil && len(right.Entries) > 1 {
		return t.borrowFromRightLeaf(parent, leaf, right, idx)
	}

	return t.writeNode(leaf)
}

// borrowFromLeftLeaf moves the last entry of the left sibling to the front
// of leaf and makes it the new separator.
func (t *Tree) borrowFromLeftLeaf(parent, left, leaf *BPlusNode, leafIdx int) error {
	moved := left.Entries[len(left.Entries)-1]
	if replacedSize(parent, leafIdx-1, moved) > nodeCapacity {
		return t.writeNode(leaf)
	}

	left.RemoveEntryAt(len(left.Entries) - 1)
	leaf.InsertEntryAt(0, moved, InvalidPageID)
	parent.Entries[leafIdx-1] = moved.Clone()

	if err := t.writeNode(left); err != nil {
		return err
	}
	if err := t.writeNode(leaf); err != nil {
		return err
	}
	return t.writeNode(parent)
}

// borrowFromRightLeaf moves the first entry of the right sibling to the end
// of leaf. The right sibling's new first entry becomes the separator.
func (t *Tree) borrowFromRightLeaf(parent, leaf, right *BPlusNode, leafIdx int) error {
	separator := right.Entries[1]
	if replacedSize(parent, leafIdx, separator) > nodeCapacity {
		return t.writeNode(leaf)
	}

	moved, _ := right.RemoveEntryAt(0)
	leaf.InsertEntryAt(len(leaf.Entries), moved, InvalidPageID)
	parent.Entries[leafIdx] = separator.Clone()

	if err := t.writeNode(right); err != nil {
		return err
	}
	if err := t.writeNode(leaf); err != nil {
		return err
	}
	return t.writeNode(parent)
}

// mergeLeaves appends right to left, frees right and removes the separator
// at sepIdx from the parent.
func (t *Tree) mergeLeaves(path []pathElem, left, right *BPlusNode, sepIdx int) error {
	left.Entries = append(left.Entries, right.Entries...)
	left.Next = right.Next

	if right.Next != InvalidPageID {
		nextLeaf, err := t.readNode(right.Next)
		if err != nil {
			return err
		}
		nextLeaf.Prev = left.PageID
		if err := t.writeNode(nextLeaf); err != nil {
			return err
		}
	}

	if err := t.writeNode(left); err != nil {
		return err
	}
	if err := t.freeNode(right.PageID); err != nil {
		return err
	}

	return t.deleteFromParent(path, sepIdx)
}

// deleteFromParent removes a separator and its right child from the last
// node of path, collapsing the root when it is left with a single child.
func (t *Tree) deleteFromParent(path []pathElem, sepIdx int) error {
	parent := path[len(path)-1].node
	parent.RemoveEntryAt(sepIdx)

	if len(path) == 1 {
		if len(parent.Entries) == 0 {
			t.root = parent.Children[0]
			return t.freeNode(parent.PageID)
		}
		return t.writeNode(parent)
	}

	if parent.IsUnderflow() {
		return t.handleInternalUnderflow(path)
	}

	return t.writeNode(parent)
}

// handleInternalUnderflow handles underflow in a non-root internal node.
func (t *Tree) handleInternalUnderflow(path []pathElem) error {
	node := path[len(path)-1].node
	parentElem := path[len(path)-2]
	parent, idx := parentElem.node, parentElem.index

	left, right, err := t.siblings(parent, idx)
	if err != nil {
		return err
	}

	if left != nil && mergedSize(left, node, parent.Entries[idx-1]) <= nodeCapacity {
		return t.mergeInternals(path[:len(path)-1], left, node, idx-1)
	}
	if right != nil && mergedSize(node, right, parent.Entries[idx]) <= nodeCapacity {
		return t.mergeInternals(path[:len(path)-1], node, right, idx)
	}

	if left != nil && len(left.Entries) > 1 {
		return t.borrowFromLeftInternal(parent, left, node, idx)
	}
	if right != nil && len(right.Entries) > 1 {
		return t.borrowFromRightInternal(parent, node, right, idx)
	}

	return t.writeNode(node)
}

// borrowFromLeftInternal rotates the last child of the left sibling into
// node through the parent separator.
func (t *Tree) borrowFromLeftInternal(parent, left, node *BPlusNode, nodeIdx int) error {
	last := len(left.Entries) - 1
	up := left.Entries[last]
	if replacedSize(parent, nodeIdx-1, up) > nodeCapacity {
		return t.writeNode(node)
	}

	child := left.Children[last+1]
	left.Entries = left.Entries[:last]
	left.Children = left.Children[:last+1]

	node.Entries = append([]Entry{parent.Entries[nodeIdx-1]}, node.Entries...)
	node.Children = append([]storage.PageID{child}, node.Children...)
	parent.Entries[nodeIdx-1] = up

	if err := t.writeNode(left); err != nil {
		return err
	}
	if err := t.writeNode(node); err != nil {
		return err
	}
	return t.writeNode(parent)
}

// borrowFromRightInternal rotates the first child of the right sibling into
// node through the parent separator.
func (t *Tree) borrowFromRightInternal(parent, node, right *BPlusNode, nodeIdx int) error {
	up := right.Entries[0]
	if replacedSize(parent, nodeIdx, up) > nodeCapacity {
		return t.writeNode(node)
	}

	child := right.Children[0]
	right.Entries = right.Entries[1:]
	right.Children = right.Children[1:]

	node.Entries = append(node.Entries, parent.Entries[nodeIdx])
	node.Children = append(node.Children, child)
	parent.Entries[nodeIdx] = up

	if err := t.writeNode(right); err != nil {
		return err
	}
	if err := t.writeNode(node); err != nil {
		return err
	}
	return t.writeNode(parent)
}

// mergeInternals pulls the separator at sepIdx down and appends right to
// left.
func (t *Tree) mergeInternals(path []pathElem, left, right *BPlusNode, sepIdx int) error {
	parent := path[len(path)-1].node

	left.Entries = append(left.Entries, parent.Entries[sepIdx])
	left.Entries = append(left.Entries, right.Entries...)
	left.Children = append(left.Children, right.Children...)

	if err := t.writeNode(left); err != nil {
		return err
	}
	if err := t.freeNode(right.PageID); err != nil {
		return err
	}

	return t.deleteFromParent(path, sepIdx)
}
