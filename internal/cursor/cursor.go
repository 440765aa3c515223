package cursor

import "errors"

// Cursor errors.
var (
	ErrClosed          = errors.New("cursor is closed")
	ErrInvalidPosition = errors.New("cursor is not positioned on an element")
	ErrUnsupported     = errors.New("operation not supported by this cursor")
)

// Cursor is a bidirectional iterator over an ordered sequence of elements.
// A Cursor is not safe for concurrent use. It must be closed on every exit
// path once the scan is finished.
type Cursor[E any] interface {
	// BeforeFirst moves to the sentinel position before the first element.
	BeforeFirst() error
	// AfterLast moves to the sentinel position after the last element.
	AfterLast() error
	// Before positions the cursor immediately before element, so that the
	// next call to Next returns the first element not less than it.
	Before(element E) error
	// After positions the cursor immediately after element, so that the
	// next call to Previous returns the last element not greater than it.
	After(element E) error
	// First moves to the first element and reports whether one exists.
	First() (bool, error)
	// Last moves to the last element and reports whether one exists.
	Last() (bool, error)
	// Next advances one element. At the end it returns false and the
	// cursor is left after the last element.
	Next() (bool, error)
	// Previous moves back one element. At the start it returns false and
	// the cursor is left before the first element.
	Previous() (bool, error)
	// Available reports whether Get would succeed.
	Available() bool
	// Get returns the current element or ErrInvalidPosition.
	Get() (E, error)
	// IsElementReused reports whether Get returns the same object on
	// every step.
	IsElementReused() bool
	// IsClosed reports whether Close has been called.
	IsClosed() bool
	// Close releases the cursor. It is safe to call more than once.
	Close() error
}

// TupleCursor is a Cursor over (key, value) tuples that can also be
// positioned by key, or by key and value within a key's duplicates.
type TupleCursor[K, V any] interface {
	Cursor[*Tuple[K, V]]
	KeyPositioner[K]
	ValuePositioner[K, V]
}

// KeyPositioner positions a cursor around all tuples of a key.
type KeyPositioner[K any] interface {
	// BeforeKey positions the cursor before the first tuple whose key is
	// not less than key.
	BeforeKey(key K) error
	// AfterKey positions the cursor after the last tuple whose key is not
	// greater than key.
	AfterKey(key K) error
}

// ValuePositioner positions a cursor inside the duplicates of a key.
type ValuePositioner[K, V any] interface {
	// BeforeValue positions the cursor before the first tuple not less
	// than (key, value).
	BeforeValue(key K, value V) error
	// AfterValue positions the cursor after the last tuple not greater
	// than (key, value).
	AfterValue(key K, value V) error
}

// Collect steps c forward from its current position and calls fn with a
// copy of every element until the end is reached or fn returns false.
// The cursor is not closed.
func Collect[E any](c Cursor[E], fn func(E) bool) error {
	for {
		ok, err := c.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		e, err := c.Get()
		if err != nil {
			return err
		}
		if !fn(e) {
			return nil
		}
	}
}
