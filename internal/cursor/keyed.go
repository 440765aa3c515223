package cursor

// keyedState is the position of a KeyedCursor relative to its key.
type keyedState int

const (
	keyedBefore keyedState = iota
	keyedAfter
	keyedBetween
	keyedOn
)

// KeyedCursor exposes only the tuples of one bound key of an underlying
// TupleCursor. It cannot be repositioned to another key.
type KeyedCursor[K, V any] struct {
	inner  TupleCursor[K, V]
	key    K
	cmp    func(K, K) int
	tuple  Tuple[K, V]
	state  keyedState
	closed bool
}

// NewKeyedCursor wraps inner so that it only yields tuples whose key
// compares equal to key under cmp. The KeyedCursor owns inner and closes
// it when closed.
func NewKeyedCursor[K, V any](inner TupleCursor[K, V], key K, cmp func(K, K) int) *KeyedCursor[K, V] {
	return &KeyedCursor[K, V]{
		inner: inner,
		key:   key,
		cmp:   cmp,
		state: keyedBefore,
	}
}

// Key returns the key the cursor is bound to.
func (c *KeyedCursor[K, V]) Key() K {
	return c.key
}

// BeforeFirst positions the cursor before the first tuple of the key.
func (c *KeyedCursor[K, V]) BeforeFirst() error {
	if c.closed {
		return ErrClosed
	}
	c.state = keyedBefore
	return nil
}

// AfterLast positions the cursor after the last tuple of the key.
func (c *KeyedCursor[K, V]) AfterLast() error {
	if c.closed {
		return ErrClosed
	}
	c.state = keyedAfter
	return nil
}

// BeforeKey is only valid for the bound key, where it equals BeforeFirst.
func (c *KeyedCursor[K, V]) BeforeKey(key K) error {
	if c.closed {
		return ErrClosed
	}
	if c.cmp(key, c.key) != 0 {
		return ErrUnsupported
	}
	return c.BeforeFirst()
}

// AfterKey is only valid for the bound key, where it equals AfterLast.
func (c *KeyedCursor[K, V]) AfterKey(key K) error {
	if c.closed {
		return ErrClosed
	}
	if c.cmp(key, c.key) != 0 {
		return ErrUnsupported
	}
	return c.AfterLast()
}

// BeforeValue positions the cursor before value within the bound key.
// A different key fails with ErrUnsupported.
func (c *KeyedCursor[K, V]) BeforeValue(key K, value V) error {
	if c.closed {
		return ErrClosed
	}
	if c.cmp(key, c.key) != 0 {
		return ErrUnsupported
	}
	if err := c.inner.BeforeValue(c.key, value); err != nil {
		return err
	}
	c.state = keyedBetween
	return nil
}

// AfterValue positions the cursor after value within the bound key.
// A different key fails with ErrUnsupported.
func (c *KeyedCursor[K, V]) AfterValue(key K, value V) error {
	if c.closed {
		return ErrClosed
	}
	if c.cmp(key, c.key) != 0 {
		return ErrUnsupported
	}
	if err := c.inner.AfterValue(c.key, value); err != nil {
		return err
	}
	c.state = keyedBetween
	return nil
}

// Before positions the cursor before the tuple's value.
func (c *KeyedCursor[K, V]) Before(element *Tuple[K, V]) error {
	return c.BeforeValue(element.Key, element.Value)
}

// After positions the cursor after the tuple's value.
func (c *KeyedCursor[K, V]) After(element *Tuple[K, V]) error {
	return c.AfterValue(element.Key, element.Value)
}

// First moves to the first tuple of the key.
func (c *KeyedCursor[K, V]) First() (bool, error) {
	if err := c.BeforeFirst(); err != nil {
		return false, err
	}
	return c.Next()
}

// Last moves to the last tuple of the key.
func (c *KeyedCursor[K, V]) Last() (bool, error) {
	if err := c.AfterLast(); err != nil {
		return false, err
	}
	return c.Previous()
}

// Next advances to the next tuple of the key.
func (c *KeyedCursor[K, V]) Next() (bool, error) {
	if c.closed {
		return false, ErrClosed
	}

	switch c.state {
	case keyedAfter:
		return false, nil
	case keyedBefore:
		if err := c.inner.BeforeKey(c.key); err != nil {
			return false, err
		}
	}

	ok, err := c.inner.Next()
	if err != nil {
		return false, err
	}
	if ok {
		if ok, err = c.match(); err != nil {
			return false, err
		}
	}
	if !ok {
		c.state = keyedAfter
		return false, nil
	}
	return true, nil
}

// Previous moves back to the previous tuple of the key.
func (c *KeyedCursor[K, V]) Previous() (bool, error) {
	if c.closed {
		return false, ErrClosed
	}

	switch c.state {
	case keyedBefore:
		return false, nil
	case keyedAfter:
		if err := c.inner.AfterKey(c.key); err != nil {
			return false, err
		}
	}

	ok, err := c.inner.Previous()
	if err != nil {
		return false, err
	}
	if ok {
		if ok, err = c.match(); err != nil {
			return false, err
		}
	}
	if !ok {
		c.state = keyedBefore
		return false, nil
	}
	return true, nil
}

// match copies the inner element into the cursor's tuple when it belongs
// to the bound key.
func (c *KeyedCursor[K, V]) match() (bool, error) {
	t, err := c.inner.Get()
	if err != nil {
		return false, err
	}
	if c.cmp(t.Key, c.key) != 0 {
		return false, nil
	}
	c.tuple.Set(c.key, t.Value)
	c.state = keyedOn
	return true, nil
}

// Available reports whether the cursor is on a tuple.
func (c *KeyedCursor[K, V]) Available() bool {
	return !c.closed && c.state == keyedOn
}

// Get returns the current tuple.
func (c *KeyedCursor[K, V]) Get() (*Tuple[K, V], error) {
	if c.closed {
		return nil, ErrClosed
	}
	if c.state != keyedOn {
		return nil, ErrInvalidPosition
	}
	return &c.tuple, nil
}

// IsElementReused always returns true.
func (c *KeyedCursor[K, V]) IsElementReused() bool {
	return true
}

// IsClosed reports whether the cursor was closed.
func (c *KeyedCursor[K, V]) IsClosed() bool {
	return c.closed
}

// Close closes the cursor and the wrapped cursor.
func (c *KeyedCursor[K, V]) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.inner.Close()
}
