package index

import (
	"github.com/oba-ldap/xdbm/internal/cursor"
)

// mover is the element-independent part of a cursor.
type mover interface {
	BeforeFirst() error
	AfterLast() error
	First() (bool, error)
	Last() (bool, error)
	Next() (bool, error)
	Previous() (bool, error)
	Available() bool
	IsClosed() bool
	Close() error
}

// EntryCursor adapts a tuple cursor over one ordering of an index into a
// cursor of IndexEntry values. The direction is fixed at construction and
// exactly one of the wrapped cursors is set.
type EntryCursor[K, ID any] struct {
	dir   Direction
	fwd   cursor.Cursor[*cursor.Tuple[K, ID]]
	rev   cursor.Cursor[*cursor.Tuple[ID, K]]
	m     mover
	entry IndexEntry[K, ID]
}

var _ IndexCursor[int, int] = (*EntryCursor[int, int])(nil)

// NewForwardCursor wraps a cursor over (key, id) tuples.
func NewForwardCursor[K, ID any](c cursor.Cursor[*cursor.Tuple[K, ID]], resolver EntryResolver[ID]) *EntryCursor[K, ID] {
	return &EntryCursor[K, ID]{
		dir:   Forward,
		fwd:   c,
		m:     c,
		entry: IndexEntry[K, ID]{dir: Forward, resolver: resolver},
	}
}

// NewReverseCursor wraps a cursor over (id, key) tuples.
func NewReverseCursor[K, ID any](c cursor.Cursor[*cursor.Tuple[ID, K]], resolver EntryResolver[ID]) *EntryCursor[K, ID] {
	return &EntryCursor[K, ID]{
		dir:   Reverse,
		rev:   c,
		m:     c,
		entry: IndexEntry[K, ID]{dir: Reverse, resolver: resolver},
	}
}

// Direction returns the ordering walked by the cursor.
func (c *EntryCursor[K, ID]) Direction() Direction {
	return c.dir
}

// BeforeFirst positions the cursor before the first entry.
func (c *EntryCursor[K, ID]) BeforeFirst() error {
	c.entry.invalidate()
	return c.m.BeforeFirst()
}

// AfterLast positions the cursor after the last entry.
func (c *EntryCursor[K, ID]) AfterLast() error {
	c.entry.invalidate()
	return c.m.AfterLast()
}

// Before positions the cursor before the pair of element.
func (c *EntryCursor[K, ID]) Before(element *IndexEntry[K, ID]) error {
	c.entry.invalidate()
	if c.dir == Forward {
		return c.fwd.Before(cursor.NewTuple(element.Key(), element.ID()))
	}
	return c.rev.Before(cursor.NewTuple(element.ID(), element.Key()))
}

// After positions the cursor after the pair of element.
func (c *EntryCursor[K, ID]) After(element *IndexEntry[K, ID]) error {
	c.entry.invalidate()
	if c.dir == Forward {
		return c.fwd.After(cursor.NewTuple(element.Key(), element.ID()))
	}
	return c.rev.After(cursor.NewTuple(element.ID(), element.Key()))
}

// BeforeValue positions the cursor before (key, id) when the wrapped
// cursor supports value positioning.
func (c *EntryCursor[K, ID]) BeforeValue(key K, id ID) error {
	c.entry.invalidate()
	if c.dir == Forward {
		if vp, ok := c.fwd.(cursor.ValuePositioner[K, ID]); ok {
			return vp.BeforeValue(key, id)
		}
		return nil
	}
	if vp, ok := c.rev.(cursor.ValuePositioner[ID, K]); ok {
		return vp.BeforeValue(id, key)
	}
	return nil
}

// AfterValue positions the cursor after (key, id) when the wrapped cursor
// supports value positioning.
func (c *EntryCursor[K, ID]) AfterValue(key K, id ID) error {
	c.entry.invalidate()
	if c.dir == Forward {
		if vp, ok := c.fwd.(cursor.ValuePositioner[K, ID]); ok {
			return vp.AfterValue(key, id)
		}
		return nil
	}
	if vp, ok := c.rev.(cursor.ValuePositioner[ID, K]); ok {
		return vp.AfterValue(id, key)
	}
	return nil
}

// BeforeKey positions a forward cursor before all pairs of key.
func (c *EntryCursor[K, ID]) BeforeKey(key K) error {
	kp, err := c.keyPositioner()
	if err != nil {
		return err
	}
	return kp.BeforeKey(key)
}

// AfterKey positions a forward cursor after all pairs of key.
func (c *EntryCursor[K, ID]) AfterKey(key K) error {
	kp, err := c.keyPositioner()
	if err != nil {
		return err
	}
	return kp.AfterKey(key)
}

func (c *EntryCursor[K, ID]) keyPositioner() (cursor.KeyPositioner[K], error) {
	c.entry.invalidate()
	if c.dir != Forward {
		return nil, cursor.ErrUnsupported
	}
	kp, ok := c.fwd.(cursor.KeyPositioner[K])
	if !ok {
		return nil, cursor.ErrUnsupported
	}
	return kp, nil
}

// BeforeID positions a reverse cursor before all pairs of id.
func (c *EntryCursor[K, ID]) BeforeID(id ID) error {
	kp, err := c.idPositioner()
	if err != nil {
		return err
	}
	return kp.BeforeKey(id)
}

// AfterID positions a reverse cursor after all pairs of id.
func (c *EntryCursor[K, ID]) AfterID(id ID) error {
	kp, err := c.idPositioner()
	if err != nil {
		return err
	}
	return kp.AfterKey(id)
}

func (c *EntryCursor[K, ID]) idPositioner() (cursor.KeyPositioner[ID], error) {
	c.entry.invalidate()
	if c.dir != Reverse {
		return nil, cursor.ErrUnsupported
	}
	kp, ok := c.rev.(cursor.KeyPositioner[ID])
	if !ok {
		return nil, cursor.ErrUnsupported
	}
	return kp, nil
}

// First moves to the first entry.
func (c *EntryCursor[K, ID]) First() (bool, error) {
	c.entry.invalidate()
	return c.m.First()
}

// Last moves to the last entry.
func (c *EntryCursor[K, ID]) Last() (bool, error) {
	c.entry.invalidate()
	return c.m.Last()
}

// Next advances to the following entry.
func (c *EntryCursor[K, ID]) Next() (bool, error) {
	c.entry.invalidate()
	return c.m.Next()
}

// Previous moves back to the preceding entry.
func (c *EntryCursor[K, ID]) Previous() (bool, error) {
	c.entry.invalidate()
	return c.m.Previous()
}

// Available reports whether the cursor is positioned on an entry.
func (c *EntryCursor[K, ID]) Available() bool {
	return c.m.Available()
}

// Get returns the current entry. The same IndexEntry is returned on every
// step.
func (c *EntryCursor[K, ID]) Get() (*IndexEntry[K, ID], error) {
	if c.dir == Forward {
		t, err := c.fwd.Get()
		if err != nil {
			return nil, err
		}
		c.entry.fwd = t
	} else {
		t, err := c.rev.Get()
		if err != nil {
			return nil, err
		}
		c.entry.rev = t
	}
	return &c.entry, nil
}

// IsElementReused always returns true.
func (c *EntryCursor[K, ID]) IsElementReused() bool {
	return true
}

// IsClosed reports whether the cursor has been closed.
func (c *EntryCursor[K, ID]) IsClosed() bool {
	return c.m.IsClosed()
}

// Close closes the wrapped cursor.
func (c *EntryCursor[K, ID]) Close() error {
	c.entry.invalidate()
	return c.m.Close()
}
