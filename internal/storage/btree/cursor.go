package btree

import (
	"github.com/oba-ldap/xdbm/internal/cursor"
)

// cursorState is the state of a Cursor.
type cursorState int

const (
	stateBeforeFirst cursorState = iota
	stateAfterLast
	// stateGap sits at the position described by the cursor's anchor.
	stateGap
	stateOn
	stateClosed
)

// Cursor is a bidirectional cursor over the (key, value) pairs of a Tree.
// It holds no lock between calls: when the tree changes, the cursor
// re-seeks from its last position on the next step.
type Cursor struct {
	tree    *Tree
	state   cursorState
	anchor  seekTarget
	leaf    *BPlusNode
	pos     int
	version uint64
	current Entry
	// dup is the ordinal of current within its run of equal pairs,
	// counted from the first pair of the run, or from the last one when
	// fromEnd is set. It lets a re-seek land between two copies.
	dup     int
	fromEnd bool
	tuple   cursor.Tuple[[]byte, []byte]
}

var _ cursor.TupleCursor[[]byte, []byte] = (*Cursor)(nil)

// Cursor returns a new cursor positioned before the first entry.
func (t *Tree) Cursor() *Cursor {
	return &Cursor{tree: t, state: stateBeforeFirst}
}

// BeforeFirst positions the cursor before the first entry.
func (c *Cursor) BeforeFirst() error {
	return c.reset(stateBeforeFirst)
}

// AfterLast positions the cursor after the last entry.
func (c *Cursor) AfterLast() error {
	return c.reset(stateAfterLast)
}

func (c *Cursor) reset(state cursorState) error {
	if c.state == stateClosed {
		return cursor.ErrClosed
	}
	c.state = state
	c.leaf = nil
	return nil
}

// BeforeKey positions the cursor before the first entry whose key is not
// less than key.
func (c *Cursor) BeforeKey(key []byte) error {
	return c.seekGap(seekTarget{Entry: Entry{Key: key}, KeyOnly: true})
}

// AfterKey positions the cursor after the last entry whose key is not
// greater than key.
func (c *Cursor) AfterKey(key []byte) error {
	return c.seekGap(seekTarget{Entry: Entry{Key: key}, KeyOnly: true, Upper: true})
}

// BeforeValue positions the cursor before the first entry not less than
// (key, value).
func (c *Cursor) BeforeValue(key, value []byte) error {
	return c.seekGap(seekTarget{Entry: Entry{Key: key, Value: value}})
}

// AfterValue positions the cursor after the last entry not greater than
// (key, value).
func (c *Cursor) AfterValue(key, value []byte) error {
	return c.seekGap(seekTarget{Entry: Entry{Key: key, Value: value}, Upper: true})
}

// Before positions the cursor before element.
func (c *Cursor) Before(element *cursor.Tuple[[]byte, []byte]) error {
	return c.BeforeValue(element.Key, element.Value)
}

// After positions the cursor after element.
func (c *Cursor) After(element *cursor.Tuple[[]byte, []byte]) error {
	return c.AfterValue(element.Key, element.Value)
}

func (c *Cursor) seekGap(s seekTarget) error {
	if c.state == stateClosed {
		return cursor.ErrClosed
	}

	c.tree.mu.RLock()
	defer c.tree.mu.RUnlock()

	c.anchor = seekTarget{
		Entry:   s.Entry.Clone(),
		KeyOnly: s.KeyOnly,
		Upper:   s.Upper,
	}
	c.state = stateGap
	return c.seekAnchor()
}

// seekAnchor caches the leaf and index of the anchor position.
func (c *Cursor) seekAnchor() error {
	leaf, pos, err := c.tree.seek(c.anchor)
	if err != nil {
		c.leaf = nil
		return err
	}
	c.leaf, c.pos, c.version = leaf, pos, c.tree.version
	return nil
}

// First moves to the first entry.
func (c *Cursor) First() (bool, error) {
	if err := c.BeforeFirst(); err != nil {
		return false, err
	}
	return c.Next()
}

// Last moves to the last entry.
func (c *Cursor) Last() (bool, error) {
	if err := c.AfterLast(); err != nil {
		return false, err
	}
	return c.Previous()
}

// Next advances to the following entry.
func (c *Cursor) Next() (bool, error) {
	if c.state == stateClosed {
		return false, cursor.ErrClosed
	}

	c.tree.mu.RLock()
	defer c.tree.mu.RUnlock()

	var (
		leaf *BPlusNode
		pos  int
		err  error
	)

	switch c.state {
	case stateAfterLast:
		return false, nil
	case stateBeforeFirst:
		leaf, err = c.tree.edgeLeaf(false)
	case stateGap:
		if c.leaf == nil || c.version != c.tree.version {
			err = c.seekAnchor()
		}
		leaf, pos = c.leaf, c.pos
	case stateOn:
		leaf, pos = c.leaf, c.pos+1
		if c.version != c.tree.version {
			leaf, pos, err = c.reseek(true)
		}
	}
	if err != nil {
		return false, err
	}

	for pos >= len(leaf.Entries) {
		if leaf.Next == InvalidPageID {
			c.state, c.leaf = stateAfterLast, nil
			return false, nil
		}
		if leaf, err = c.tree.readNode(leaf.Next); err != nil {
			return false, err
		}
		pos = 0
	}

	c.settle(leaf, pos, true)
	return true, nil
}

// Previous moves back to the preceding entry.
func (c *Cursor) Previous() (bool, error) {
	if c.state == stateClosed {
		return false, cursor.ErrClosed
	}

	c.tree.mu.RLock()
	defer c.tree.mu.RUnlock()

	var (
		leaf *BPlusNode
		pos  int
		err  error
	)

	switch c.state {
	case stateBeforeFirst:
		return false, nil
	case stateAfterLast:
		if leaf, err = c.tree.edgeLeaf(true); err == nil {
			pos = len(leaf.Entries) - 1
		}
	case stateGap:
		if c.leaf == nil || c.version != c.tree.version {
			err = c.seekAnchor()
		}
		leaf, pos = c.leaf, c.pos-1
	case stateOn:
		leaf, pos = c.leaf, c.pos-1
		if c.version != c.tree.version {
			leaf, pos, err = c.reseek(false)
			pos--
		}
	}
	if err != nil {
		return false, err
	}

	for pos < 0 {
		if leaf.Prev == InvalidPageID {
			c.state, c.leaf = stateBeforeFirst, nil
			return false, nil
		}
		if leaf, err = c.tree.readNode(leaf.Prev); err != nil {
			return false, err
		}
		pos = len(leaf.Entries) - 1
	}

	c.settle(leaf, pos, false)
	return true, nil
}

// reseek finds the position of the current pair in a modified tree. Going
// forward it returns the position right after the pair, going backward the
// position of the pair itself. Copies of the pair that the cursor has not
// passed yet stay ahead of it.
func (c *Cursor) reseek(forward bool) (*BPlusNode, int, error) {
	if !c.fromEnd {
		leaf, pos, err := c.tree.seek(seekTarget{Entry: c.current})
		if err != nil {
			return nil, 0, err
		}
		n := c.dup
		if forward {
			n++
		}
		return c.tree.skipEqual(leaf, pos, c.current, n)
	}

	leaf, pos, err := c.tree.seek(seekTarget{Entry: c.current, Upper: true})
	if err != nil {
		return nil, 0, err
	}
	n := c.dup
	if !forward {
		n++
	}
	return c.tree.rewindEqual(leaf, pos, c.current, n)
}

func (c *Cursor) settle(leaf *BPlusNode, pos int, forward bool) {
	e := leaf.Entries[pos]
	switch {
	case c.state != stateOn || CompareEntries(e, c.current) != 0:
		c.dup, c.fromEnd = 0, !forward
	case forward == c.fromEnd:
		c.dup = max(c.dup-1, 0)
	default:
		c.dup++
	}

	c.leaf, c.pos, c.version = leaf, pos, c.tree.version
	c.current = e
	c.tuple.Set(c.current.Key, c.current.Value)
	c.state = stateOn
}

// Available reports whether the cursor is positioned on an entry.
func (c *Cursor) Available() bool {
	return c.state == stateOn
}

// Get returns the current entry as a reused tuple.
func (c *Cursor) Get() (*cursor.Tuple[[]byte, []byte], error) {
	switch c.state {
	case stateClosed:
		return nil, cursor.ErrClosed
	case stateOn:
		return &c.tuple, nil
	default:
		return nil, cursor.ErrInvalidPosition
	}
}

// IsElementReused always returns true.
func (c *Cursor) IsElementReused() bool {
	return true
}

// IsClosed reports whether the cursor has been closed.
func (c *Cursor) IsClosed() bool {
	return c.state == stateClosed
}

// Close releases the cursor.
func (c *Cursor) Close() error {
	c.state = stateClosed
	c.leaf = nil
	c.current = Entry{}
	c.tuple = cursor.Tuple[[]byte, []byte]{}
	return nil
}

// skipEqual moves the position (leaf, pos) forward over at most n entries
// equal to e.
func (t *Tree) skipEqual(leaf *BPlusNode, pos int, e Entry, n int) (*BPlusNode, int, error) {
	var err error
	for ; n > 0; n-- {
		for pos >= len(leaf.Entries) {
			if leaf.Next == InvalidPageID {
				return leaf, pos, nil
			}
			if leaf, err = t.readNode(leaf.Next); err != nil {
				return nil, 0, err
			}
			pos = 0
		}
		if CompareEntries(leaf.Entries[pos], e) != 0 {
			break
		}
		pos++
	}
	return leaf, pos, nil
}

// rewindEqual moves the position (leaf, pos) back over at most n entries
// equal to e.
func (t *Tree) rewindEqual(leaf *BPlusNode, pos int, e Entry, n int) (*BPlusNode, int, error) {
	var err error
	for ; n > 0; n-- {
		for pos == 0 {
			if leaf.Prev == InvalidPageID {
				return leaf, pos, nil
			}
			if leaf, err = t.readNode(leaf.Prev); err != nil {
				return nil, 0, err
			}
			pos = len(leaf.Entries)
		}
		if CompareEntries(leaf.Entries[pos-1], e) != 0 {
			break
		}
		pos--
	}
	return leaf, pos, nil
}

// edgeLeaf returns the leftmost or, with last set, the rightmost leaf.
func (t *Tree) edgeLeaf(last bool) (*BPlusNode, error) {
	if t.root == InvalidPageID {
		return nil, ErrTreeNotInitialized
	}

	node, err := t.readNode(t.root)
	if err != nil {
		return nil, err
	}

	for !node.IsLeaf {
		child := node.Children[0]
		if last {
			child = node.Children[len(node.Children)-1]
		}
		if node, err = t.readNode(child); err != nil {
			return nil, err
		}
	}

	return node, nil
}
