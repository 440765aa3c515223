package index

import (
	"errors"
	"sync"

	"github.com/oba-ldap/xdbm/internal/avl"
	"github.com/oba-ldap/xdbm/internal/cursor"
	"github.com/oba-ldap/xdbm/internal/logging"
)

// MemoryIndex is an Index held in two AVL trees. Counts are exact.
type MemoryIndex[K, ID any] struct {
	attr     string
	fwd      *avl.Tree[K, ID]
	rev      *avl.Tree[ID, K]
	resolver EntryResolver[ID]
	logger   logging.Logger
	mu       sync.RWMutex
	closed   bool
}

var _ Index[string, uint64] = (*MemoryIndex[string, uint64])(nil)

// NewMemoryIndex creates an empty in-memory index for attr.
func NewMemoryIndex[K, ID any](attr string, keyCmp func(K, K) int, idCmp func(ID, ID) int, opts ...Option) *MemoryIndex[K, ID] {
	o := buildOptions(opts)
	return &MemoryIndex[K, ID]{
		attr:   attr,
		fwd:    avl.New(keyCmp, idCmp),
		rev:    avl.New(idCmp, keyCmp),
		logger: o.Logger,
	}
}

// Attribute returns the indexed attribute.
func (m *MemoryIndex[K, ID]) Attribute() string {
	return m.attr
}

// SetResolver sets the resolver used by entries returned from cursors.
func (m *MemoryIndex[K, ID]) SetResolver(r EntryResolver[ID]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolver = r
}

// read runs fn under the read lock of an open index.
func (m *MemoryIndex[K, ID]) read(fn func()) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	fn()
	return nil
}

// ForwardLookup returns the smallest id stored under key.
func (m *MemoryIndex[K, ID]) ForwardLookup(key K) (id ID, ok bool, err error) {
	err = m.read(func() { id, ok = m.fwd.FirstValue(key) })
	return id, ok, err
}

// ReverseLookup returns the smallest key stored for id.
func (m *MemoryIndex[K, ID]) ReverseLookup(id ID) (key K, ok bool, err error) {
	err = m.read(func() { key, ok = m.rev.FirstValue(id) })
	return key, ok, err
}

// Count returns the number of pairs.
func (m *MemoryIndex[K, ID]) Count() (n int, err error) {
	err = m.read(func() { n = m.fwd.Len() })
	return n, err
}

// CountKey returns the number of ids stored under key.
func (m *MemoryIndex[K, ID]) CountKey(key K) (n int, err error) {
	err = m.read(func() { n = m.fwd.CountKey(key) })
	return n, err
}

// GreaterThanCount returns the number of pairs whose key is >= key.
func (m *MemoryIndex[K, ID]) GreaterThanCount(key K) (n int, err error) {
	err = m.read(func() { n = m.fwd.CountGreaterOrEqual(key) })
	return n, err
}

// LessThanCount returns the number of pairs whose key is <= key.
func (m *MemoryIndex[K, ID]) LessThanCount(key K) (n int, err error) {
	err = m.read(func() { n = m.fwd.CountLessOrEqual(key) })
	return n, err
}

// IsCountExact returns true.
func (m *MemoryIndex[K, ID]) IsCountExact() bool {
	return true
}

// Add stores (key, id) in both orderings.
func (m *MemoryIndex[K, ID]) Add(key K, id ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	m.fwd.Insert(key, id)
	m.rev.Insert(id, key)
	return nil
}

// Drop removes one occurrence of (key, id).
func (m *MemoryIndex[K, ID]) Drop(key K, id ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	if err := m.fwd.Remove(key, id); err != nil {
		if errors.Is(err, avl.ErrNotFound) {
			return nil
		}
		return err
	}
	return m.rev.Remove(id, key)
}

// DropID removes every pair of id.
func (m *MemoryIndex[K, ID]) DropID(id ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	keys, err := m.rev.RemoveKey(id)
	if err != nil {
		if errors.Is(err, avl.ErrNotFound) {
			return nil
		}
		return err
	}
	for _, key := range keys {
		if err := m.fwd.Remove(key, id); err != nil {
			return err
		}
	}

	m.logger.Debug("dropped id", "pairs", len(keys))
	return nil
}

// ForwardCursor returns a cursor over all (key, id) pairs.
func (m *MemoryIndex[K, ID]) ForwardCursor() (c IndexCursor[K, ID], err error) {
	err = m.read(func() {
		c = NewForwardCursor[K, ID](m.fwd.Cursor(), m.resolver)
	})
	return c, err
}

// ForwardKeyCursor returns a cursor over the pairs of key.
func (m *MemoryIndex[K, ID]) ForwardKeyCursor(key K) (c IndexCursor[K, ID], err error) {
	err = m.read(func() {
		keyed := cursor.NewKeyedCursor[K, ID](m.fwd.Cursor(), key, m.fwd.KeyCompare())
		c = NewForwardCursor[K, ID](keyed, m.resolver)
	})
	return c, err
}

// ReverseCursor returns a cursor over all (id, key) pairs.
func (m *MemoryIndex[K, ID]) ReverseCursor() (c IndexCursor[K, ID], err error) {
	err = m.read(func() {
		c = NewReverseCursor[K, ID](m.rev.Cursor(), m.resolver)
	})
	return c, err
}

// ReverseIDCursor returns a cursor over the pairs of id.
func (m *MemoryIndex[K, ID]) ReverseIDCursor(id ID) (c IndexCursor[K, ID], err error) {
	err = m.read(func() {
		keyed := cursor.NewKeyedCursor[ID, K](m.rev.Cursor(), id, m.rev.KeyCompare())
		c = NewReverseCursor[K, ID](keyed, m.resolver)
	})
	return c, err
}

// HasKey reports whether key has any id.
func (m *MemoryIndex[K, ID]) HasKey(key K) (ok bool, err error) {
	err = m.read(func() { ok = m.fwd.Contains(key) })
	return ok, err
}

// Has reports whether (key, id) is stored.
func (m *MemoryIndex[K, ID]) Has(key K, id ID) (ok bool, err error) {
	err = m.read(func() { ok = m.fwd.ContainsValue(key, id) })
	return ok, err
}

// HasID reports whether id has any key.
func (m *MemoryIndex[K, ID]) HasID(id ID) (ok bool, err error) {
	err = m.read(func() { ok = m.rev.Contains(id) })
	return ok, err
}

// HasReverse reports whether (id, key) is stored.
func (m *MemoryIndex[K, ID]) HasReverse(id ID, key K) (ok bool, err error) {
	err = m.read(func() { ok = m.rev.ContainsValue(id, key) })
	return ok, err
}

// ForwardGreaterOrEq reports whether some key is >= key.
func (m *MemoryIndex[K, ID]) ForwardGreaterOrEq(key K) (ok bool, err error) {
	err = m.read(func() { ok = m.fwd.HasGreaterOrEqual(key) })
	return ok, err
}

// ForwardGreaterOrEqID reports whether key maps to some id' >= id.
func (m *MemoryIndex[K, ID]) ForwardGreaterOrEqID(key K, id ID) (ok bool, err error) {
	err = m.read(func() { ok = m.fwd.HasValueGreaterOrEqual(key, id) })
	return ok, err
}

// ForwardLessOrEq reports whether some key is <= key.
func (m *MemoryIndex[K, ID]) ForwardLessOrEq(key K) (ok bool, err error) {
	err = m.read(func() { ok = m.fwd.HasLessOrEqual(key) })
	return ok, err
}

// ForwardLessOrEqID reports whether key maps to some id' <= id.
func (m *MemoryIndex[K, ID]) ForwardLessOrEqID(key K, id ID) (ok bool, err error) {
	err = m.read(func() { ok = m.fwd.HasValueLessOrEqual(key, id) })
	return ok, err
}

// ReverseGreaterOrEq reports whether some id is >= id.
func (m *MemoryIndex[K, ID]) ReverseGreaterOrEq(id ID) (ok bool, err error) {
	err = m.read(func() { ok = m.rev.HasGreaterOrEqual(id) })
	return ok, err
}

// ReverseGreaterOrEqKey reports whether id has some key' >= key.
func (m *MemoryIndex[K, ID]) ReverseGreaterOrEqKey(id ID, key K) (ok bool, err error) {
	err = m.read(func() { ok = m.rev.HasValueGreaterOrEqual(id, key) })
	return ok, err
}

// ReverseLessOrEq reports whether some id is <= id.
func (m *MemoryIndex[K, ID]) ReverseLessOrEq(id ID) (ok bool, err error) {
	err = m.read(func() { ok = m.rev.HasLessOrEqual(id) })
	return ok, err
}

// ReverseLessOrEqKey reports whether id has some key' <= key.
func (m *MemoryIndex[K, ID]) ReverseLessOrEqKey(id ID, key K) (ok bool, err error) {
	err = m.read(func() { ok = m.rev.HasValueLessOrEqual(id, key) })
	return ok, err
}

// Verify checks both trees and that they hold the same pairs.
func (m *MemoryIndex[K, ID]) Verify() error {
	if err := m.read(func() {}); err != nil {
		return err
	}
	if err := m.fwd.Verify(); err != nil {
		return err
	}
	if err := m.rev.Verify(); err != nil {
		return err
	}
	return CheckConsistency[K, ID](m)
}

// Sync does nothing.
func (m *MemoryIndex[K, ID]) Sync() error {
	return m.read(func() {})
}

// Close releases the index.
func (m *MemoryIndex[K, ID]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
