package avl

import "github.com/oba-ldap/xdbm/internal/cursor"

// position is the state of a Cursor.
type position int

const (
	posBeforeFirst position = iota
	posAfterLast
	// posGapBefore sits immediately before the element (node, dup).
	posGapBefore
	// posGapAfter sits immediately after the element (node, dup).
	posGapAfter
	posOn
	posClosed
)

// Cursor is a bidirectional cursor over the (key, value) tuples of a Tree
// snapshot, in key then value order. Mutations of the tree made after the
// cursor was opened are not visible to it.
type Cursor[K, V any] struct {
	tree  *Tree[K, V]
	snap  *snapshot[K, V]
	stack []int32
	dup   int
	state position
	tuple cursor.Tuple[K, V]
}

var _ cursor.TupleCursor[int, int] = (*Cursor[int, int])(nil)

func newCursor[K, V any](t *Tree[K, V], s *snapshot[K, V]) *Cursor[K, V] {
	return &Cursor[K, V]{
		tree:  t,
		snap:  s,
		stack: make([]int32, 0, 32),
		state: posBeforeFirst,
	}
}

// BeforeFirst positions the cursor before the first tuple.
func (c *Cursor[K, V]) BeforeFirst() error {
	if c.state == posClosed {
		return cursor.ErrClosed
	}
	c.stack = c.stack[:0]
	c.state = posBeforeFirst
	return nil
}

// AfterLast positions the cursor after the last tuple.
func (c *Cursor[K, V]) AfterLast() error {
	if c.state == posClosed {
		return cursor.ErrClosed
	}
	c.stack = c.stack[:0]
	c.state = posAfterLast
	return nil
}

// BeforeKey positions the cursor before the first tuple whose key is not
// less than key.
func (c *Cursor[K, V]) BeforeKey(key K) error {
	if c.state == posClosed {
		return cursor.ErrClosed
	}
	if !c.seekCeiling(key) {
		return c.AfterLast()
	}
	c.dup = 0
	c.state = posGapBefore
	return nil
}

// AfterKey positions the cursor after the last tuple whose key is not
// greater than key.
func (c *Cursor[K, V]) AfterKey(key K) error {
	if c.state == posClosed {
		return cursor.ErrClosed
	}
	if !c.seekFloor(key) {
		return c.BeforeFirst()
	}
	c.dup = len(c.chain()) - 1
	c.state = posGapAfter
	return nil
}

// BeforeValue positions the cursor before the first tuple not less than
// (key, value).
func (c *Cursor[K, V]) BeforeValue(key K, value V) error {
	if c.state == posClosed {
		return cursor.ErrClosed
	}
	if !c.seekCeiling(key) {
		return c.AfterLast()
	}

	c.dup = 0
	c.state = posGapBefore
	if c.tree.keyCmp(c.current().key, key) == 0 {
		chain := c.chain()
		i := lowerBound(chain, value, c.tree.valCmp)
		if i == len(chain) {
			c.dup = i - 1
			c.state = posGapAfter
		} else {
			c.dup = i
		}
	}
	return nil
}

// AfterValue positions the cursor after the last tuple not greater than
// (key, value).
func (c *Cursor[K, V]) AfterValue(key K, value V) error {
	if c.state == posClosed {
		return cursor.ErrClosed
	}
	if !c.seekFloor(key) {
		return c.BeforeFirst()
	}

	chain := c.chain()
	c.dup = len(chain) - 1
	c.state = posGapAfter
	if c.tree.keyCmp(c.current().key, key) == 0 {
		i := upperBound(chain, value, c.tree.valCmp)
		if i == 0 {
			c.dup = 0
			c.state = posGapBefore
		} else {
			c.dup = i - 1
		}
	}
	return nil
}

// Before positions the cursor before the given tuple.
func (c *Cursor[K, V]) Before(element *cursor.Tuple[K, V]) error {
	return c.BeforeValue(element.Key, element.Value)
}

// After positions the cursor after the given tuple.
func (c *Cursor[K, V]) After(element *cursor.Tuple[K, V]) error {
	return c.AfterValue(element.Key, element.Value)
}

// First moves to the first tuple.
func (c *Cursor[K, V]) First() (bool, error) {
	if err := c.BeforeFirst(); err != nil {
		return false, err
	}
	return c.Next()
}

// Last moves to the last tuple.
func (c *Cursor[K, V]) Last() (bool, error) {
	if err := c.AfterLast(); err != nil {
		return false, err
	}
	return c.Previous()
}

// Next advances to the next tuple. At the end it returns false and leaves
// the cursor after the last tuple.
func (c *Cursor[K, V]) Next() (bool, error) {
	switch c.state {
	case posClosed:
		return false, cursor.ErrClosed
	case posAfterLast:
		return false, nil
	case posBeforeFirst:
		if c.snap.root == nilNode {
			c.state = posAfterLast
			return false, nil
		}
		c.stack = c.stack[:0]
		c.pushLeft(c.snap.root)
		c.dup = 0
	case posGapBefore:
	default:
		if c.dup+1 < len(c.chain()) {
			c.dup++
		} else if c.successor() {
			c.dup = 0
		} else {
			c.stack = c.stack[:0]
			c.state = posAfterLast
			return false, nil
		}
	}

	c.settle()
	return true, nil
}

// Previous moves back to the previous tuple. At the start it returns false
// and leaves the cursor before the first tuple.
func (c *Cursor[K, V]) Previous() (bool, error) {
	switch c.state {
	case posClosed:
		return false, cursor.ErrClosed
	case posBeforeFirst:
		return false, nil
	case posAfterLast:
		if c.snap.root == nilNode {
			c.state = posBeforeFirst
			return false, nil
		}
		c.stack = c.stack[:0]
		c.pushRight(c.snap.root)
		c.dup = len(c.chain()) - 1
	case posGapAfter:
	default:
		if c.dup > 0 {
			c.dup--
		} else if c.predecessor() {
			c.dup = len(c.chain()) - 1
		} else {
			c.stack = c.stack[:0]
			c.state = posBeforeFirst
			return false, nil
		}
	}

	c.settle()
	return true, nil
}

// Available reports whether the cursor is on a tuple.
func (c *Cursor[K, V]) Available() bool {
	return c.state == posOn
}

// Get returns the current tuple. The tuple is overwritten by the next step.
func (c *Cursor[K, V]) Get() (*cursor.Tuple[K, V], error) {
	switch c.state {
	case posClosed:
		return nil, cursor.ErrClosed
	case posOn:
		return &c.tuple, nil
	}
	return nil, cursor.ErrInvalidPosition
}

// IsElementReused always returns true.
func (c *Cursor[K, V]) IsElementReused() bool {
	return true
}

// IsClosed reports whether the cursor was closed.
func (c *Cursor[K, V]) IsClosed() bool {
	return c.state == posClosed
}

// Close releases the snapshot held by the cursor.
func (c *Cursor[K, V]) Close() error {
	if c.state == posClosed {
		return nil
	}
	c.snap.readers.Add(-1)
	c.snap = nil
	c.stack = nil
	c.state = posClosed
	var zero cursor.Tuple[K, V]
	c.tuple = zero
	return nil
}

func (c *Cursor[K, V]) current() *node[K, V] {
	return &c.snap.nodes[c.stack[len(c.stack)-1]]
}

func (c *Cursor[K, V]) chain() []V {
	return c.current().values
}

func (c *Cursor[K, V]) settle() {
	nd := c.current()
	c.tuple.Set(nd.key, nd.values[c.dup])
	c.state = posOn
}

func (c *Cursor[K, V]) pushLeft(n int32) {
	for n != nilNode {
		c.stack = append(c.stack, n)
		n = c.snap.nodes[n].left
	}
}

func (c *Cursor[K, V]) pushRight(n int32) {
	for n != nilNode {
		c.stack = append(c.stack, n)
		n = c.snap.nodes[n].right
	}
}

// successor moves the stack to the next node in key order.
func (c *Cursor[K, V]) successor() bool {
	top := c.stack[len(c.stack)-1]
	if r := c.snap.nodes[top].right; r != nilNode {
		c.pushLeft(r)
		return true
	}
	for len(c.stack) > 1 {
		child := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]
		if c.snap.nodes[c.stack[len(c.stack)-1]].left == child {
			return true
		}
	}
	return false
}

// predecessor moves the stack to the previous node in key order.
func (c *Cursor[K, V]) predecessor() bool {
	top := c.stack[len(c.stack)-1]
	if l := c.snap.nodes[top].left; l != nilNode {
		c.pushRight(l)
		return true
	}
	for len(c.stack) > 1 {
		child := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]
		if c.snap.nodes[c.stack[len(c.stack)-1]].right == child {
			return true
		}
	}
	return false
}

// seekCeiling leaves the stack on the smallest node whose key is not less
// than key.
func (c *Cursor[K, V]) seekCeiling(key K) bool {
	c.stack = c.stack[:0]
	depth := 0
	n := c.snap.root
	for n != nilNode {
		c.stack = append(c.stack, n)
		cmp := c.tree.keyCmp(key, c.snap.nodes[n].key)
		if cmp <= 0 {
			depth = len(c.stack)
			if cmp == 0 {
				break
			}
			n = c.snap.nodes[n].left
		} else {
			n = c.snap.nodes[n].right
		}
	}
	c.stack = c.stack[:depth]
	return depth > 0
}

// seekFloor leaves the stack on the largest node whose key is not greater
// than key.
func (c *Cursor[K, V]) seekFloor(key K) bool {
	c.stack = c.stack[:0]
	depth := 0
	n := c.snap.root
	for n != nilNode {
		c.stack = append(c.stack, n)
		cmp := c.tree.keyCmp(key, c.snap.nodes[n].key)
		if cmp >= 0 {
			depth = len(c.stack)
			if cmp == 0 {
				break
			}
			n = c.snap.nodes[n].right
		} else {
			n = c.snap.nodes[n].left
		}
	}
	c.stack = c.stack[:depth]
	return depth > 0
}
