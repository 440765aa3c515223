package avl

import (
	"errors"
	"sync"
)

// Tree errors.
var (
	ErrNotFound = errors.New("key or value not found")
)

// Tree is an AVL tree of keys with ordered duplicate chains.
// It is safe for concurrent use.
type Tree[K, V any] struct {
	keyCmp func(K, K) int
	valCmp func(V, V) int
	snap   *snapshot[K, V]
	mu     sync.RWMutex
}

// New creates an empty Tree ordered by keyCmp, with duplicate chains
// ordered by valCmp.
func New[K, V any](keyCmp func(K, K) int, valCmp func(V, V) int) *Tree[K, V] {
	return &Tree[K, V]{
		keyCmp: keyCmp,
		valCmp: valCmp,
		snap:   newSnapshot[K, V](),
	}
}

// KeyCompare returns the key comparator of the tree.
func (t *Tree[K, V]) KeyCompare() func(K, K) int {
	return t.keyCmp
}

// ValueCompare returns the value comparator of the tree.
func (t *Tree[K, V]) ValueCompare() func(V, V) int {
	return t.valCmp
}

// writable returns the snapshot writers may mutate, cloning it first when
// a cursor still reads it. Must be called with mu held for writing.
func (t *Tree[K, V]) writable() *snapshot[K, V] {
	if t.snap.readers.Load() > 0 {
		t.snap = t.snap.clone()
	}
	return t.snap
}

// Insert adds value to the chain of key. Insertion never fails and never
// deduplicates.
func (t *Tree[K, V]) Insert(key K, value V) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.writable()
	s.root = t.insert(s, s.root, key, value)
}

func (t *Tree[K, V]) insert(s *snapshot[K, V], n int32, key K, value V) int32 {
	if n == nilNode {
		s.keys++
		return s.alloc(key, []V{value})
	}

	c := t.keyCmp(key, s.nodes[n].key)
	switch {
	case c < 0:
		l := t.insert(s, s.nodes[n].left, key, value)
		s.nodes[n].left = l
	case c > 0:
		r := t.insert(s, s.nodes[n].right, key, value)
		s.nodes[n].right = r
	default:
		s.nodes[n].values = withValue(s.nodes[n].values, value, t.valCmp)
	}
	return s.rebalance(n)
}

// Remove deletes one occurrence of value from the chain of key. Other
// duplicates are left in place. Returns ErrNotFound if the pair is absent.
func (t *Tree[K, V]) Remove(key K, value V) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.snap.find(key, t.keyCmp)
	if n == nilNode {
		return ErrNotFound
	}
	chain := t.snap.nodes[n].values
	i := lowerBound(chain, value, t.valCmp)
	if i == len(chain) || t.valCmp(chain[i], value) != 0 {
		return ErrNotFound
	}

	s := t.writable()
	s.root = t.remove(s, s.root, key, i)
	return nil
}

// RemoveKey deletes the whole chain of key and returns its values.
func (t *Tree[K, V]) RemoveKey(key K) ([]V, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.snap.find(key, t.keyCmp)
	if n == nilNode {
		return nil, ErrNotFound
	}
	values := t.snap.nodes[n].values

	s := t.writable()
	s.root = t.remove(s, s.root, key, -1)
	return append([]V(nil), values...), nil
}

// remove drops the chain element at dup, or the whole node when dup is -1
// or the chain would become empty. The key must exist.
func (t *Tree[K, V]) remove(s *snapshot[K, V], n int32, key K, dup int) int32 {
	c := t.keyCmp(key, s.nodes[n].key)
	switch {
	case c < 0:
		l := t.remove(s, s.nodes[n].left, key, dup)
		s.nodes[n].left = l
		return s.rebalance(n)
	case c > 0:
		r := t.remove(s, s.nodes[n].right, key, dup)
		s.nodes[n].right = r
		return s.rebalance(n)
	}

	if dup >= 0 && len(s.nodes[n].values) > 1 {
		s.nodes[n].values = withoutIndex(s.nodes[n].values, dup)
		return s.rebalance(n)
	}

	s.keys--
	left, right := s.nodes[n].left, s.nodes[n].right
	switch {
	case left == nilNode:
		s.release(n)
		return right
	case right == nilNode:
		s.release(n)
		return left
	}

	r, k, vs := t.deleteMin(s, right)
	s.nodes[n].right = r
	s.nodes[n].key = k
	s.nodes[n].values = vs
	return s.rebalance(n)
}

// deleteMin unlinks the smallest node below n and returns its contents.
func (t *Tree[K, V]) deleteMin(s *snapshot[K, V], n int32) (int32, K, []V) {
	if s.nodes[n].left == nilNode {
		right := s.nodes[n].right
		k, vs := s.nodes[n].key, s.nodes[n].values
		s.release(n)
		return right, k, vs
	}

	l, k, vs := t.deleteMin(s, s.nodes[n].left)
	s.nodes[n].left = l
	return s.rebalance(n), k, vs
}

// Contains reports whether key has at least one value.
func (t *Tree[K, V]) Contains(key K) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.snap.find(key, t.keyCmp) != nilNode
}

// ContainsValue reports whether the pair (key, value) is stored.
func (t *Tree[K, V]) ContainsValue(key K, value V) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := t.snap.find(key, t.keyCmp)
	if n == nilNode {
		return false
	}
	chain := t.snap.nodes[n].values
	i := lowerBound(chain, value, t.valCmp)
	return i < len(chain) && t.valCmp(chain[i], value) == 0
}

// Values returns a copy of the chain of key.
func (t *Tree[K, V]) Values(key K) []V {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := t.snap.find(key, t.keyCmp)
	if n == nilNode {
		return nil
	}
	return append([]V(nil), t.snap.nodes[n].values...)
}

// FirstValue returns the first value of the chain of key.
func (t *Tree[K, V]) FirstValue(key K) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var zero V
	n := t.snap.find(key, t.keyCmp)
	if n == nilNode {
		return zero, false
	}
	return t.snap.nodes[n].values[0], true
}

// First returns the smallest key and the first value of its chain.
func (t *Tree[K, V]) First() (K, V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var (
		zeroK K
		zeroV V
	)
	n := t.snap.leftmost(t.snap.root)
	if n == nilNode {
		return zeroK, zeroV, false
	}
	return t.snap.nodes[n].key, t.snap.nodes[n].values[0], true
}

// Last returns the largest key and the last value of its chain.
func (t *Tree[K, V]) Last() (K, V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var (
		zeroK K
		zeroV V
	)
	n := t.snap.rightmost(t.snap.root)
	if n == nilNode {
		return zeroK, zeroV, false
	}
	chain := t.snap.nodes[n].values
	return t.snap.nodes[n].key, chain[len(chain)-1], true
}

// Len returns the number of stored values, duplicates included.
func (t *Tree[K, V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.size()
}

// KeyLen returns the number of distinct keys.
func (t *Tree[K, V]) KeyLen() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.keys
}

// CountKey returns the length of the chain of key.
func (t *Tree[K, V]) CountKey(key K) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := t.snap.find(key, t.keyCmp)
	if n == nilNode {
		return 0
	}
	return len(t.snap.nodes[n].values)
}

// CountLess returns the number of values stored under keys less than key.
func (t *Tree[K, V]) CountLess(key K) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rank(key, false)
}

// CountLessOrEqual returns the number of values stored under keys not
// greater than key.
func (t *Tree[K, V]) CountLessOrEqual(key K) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rank(key, true)
}

// CountGreater returns the number of values stored under keys greater
// than key.
func (t *Tree[K, V]) CountGreater(key K) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.size() - t.rank(key, true)
}

// CountGreaterOrEqual returns the number of values stored under keys not
// less than key.
func (t *Tree[K, V]) CountGreaterOrEqual(key K) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.size() - t.rank(key, false)
}

// rank counts the values below key, including the chain of key when
// inclusive is set.
func (t *Tree[K, V]) rank(key K, inclusive bool) int {
	s := t.snap
	count := 0
	n := s.root
	for n != nilNode {
		nd := &s.nodes[n]
		c := t.keyCmp(key, nd.key)
		if c < 0 || (c == 0 && !inclusive) {
			n = nd.left
			continue
		}
		count += s.weight(nd.left) + len(nd.values)
		if c == 0 {
			break
		}
		n = nd.right
	}
	return count
}

// HasGreaterOrEqual reports whether some key is not less than key.
func (t *Tree[K, V]) HasGreaterOrEqual(key K) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := t.snap.rightmost(t.snap.root)
	return n != nilNode && t.keyCmp(t.snap.nodes[n].key, key) >= 0
}

// HasLessOrEqual reports whether some key is not greater than key.
func (t *Tree[K, V]) HasLessOrEqual(key K) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := t.snap.leftmost(t.snap.root)
	return n != nilNode && t.keyCmp(t.snap.nodes[n].key, key) <= 0
}

// HasValueGreaterOrEqual reports whether the chain of key holds a value
// not less than value.
func (t *Tree[K, V]) HasValueGreaterOrEqual(key K, value V) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := t.snap.find(key, t.keyCmp)
	if n == nilNode {
		return false
	}
	chain := t.snap.nodes[n].values
	return t.valCmp(chain[len(chain)-1], value) >= 0
}

// HasValueLessOrEqual reports whether the chain of key holds a value not
// greater than value.
func (t *Tree[K, V]) HasValueLessOrEqual(key K, value V) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := t.snap.find(key, t.keyCmp)
	if n == nilNode {
		return false
	}
	return t.valCmp(t.snap.nodes[n].values[0], value) <= 0
}

// Cursor returns a cursor over a snapshot of the tree. The cursor must be
// closed to release the snapshot.
func (t *Tree[K, V]) Cursor() *Cursor[K, V] {
	t.mu.RLock()
	s := t.snap
	s.readers.Add(1)
	t.mu.RUnlock()

	return newCursor(t, s)
}

// Verify checks ordering, balance and subtree weights. It is meant for
// tests and diagnostics.
func (t *Tree[K, V]) Verify() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, _, err := t.verify(t.snap, t.snap.root, nil, nil)
	return err
}

func (t *Tree[K, V]) verify(s *snapshot[K, V], n int32, lo, hi *K) (int8, int, error) {
	if n == nilNode {
		return 0, 0, nil
	}
	nd := &s.nodes[n]
	if len(nd.values) == 0 {
		return 0, 0, errors.New("avl: empty duplicate chain")
	}
	if (lo != nil && t.keyCmp(nd.key, *lo) <= 0) || (hi != nil && t.keyCmp(nd.key, *hi) >= 0) {
		return 0, 0, errors.New("avl: key out of order")
	}
	for i := 1; i < len(nd.values); i++ {
		if t.valCmp(nd.values[i-1], nd.values[i]) > 0 {
			return 0, 0, errors.New("avl: duplicate chain out of order")
		}
	}

	lh, lw, err := t.verify(s, nd.left, lo, &nd.key)
	if err != nil {
		return 0, 0, err
	}
	rh, rw, err := t.verify(s, nd.right, &nd.key, hi)
	if err != nil {
		return 0, 0, err
	}
	if d := int(lh) - int(rh); d < -1 || d > 1 {
		return 0, 0, errors.New("avl: unbalanced node")
	}
	h := 1 + max(lh, rh)
	w := lw + rw + len(nd.values)
	if h != nd.height || w != nd.weight {
		return 0, 0, errors.New("avl: stale height or weight")
	}
	return h, w, nil
}
