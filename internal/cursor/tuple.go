package cursor

import "fmt"

// Tuple is an ordered (key, value) pair. Cursors reuse a single Tuple and
// overwrite it on every step.
type Tuple[K, V any] struct {
	Key   K
	Value V
}

// NewTuple creates a Tuple holding key and value.
func NewTuple[K, V any](key K, value V) *Tuple[K, V] {
	return &Tuple[K, V]{Key: key, Value: value}
}

// Set overwrites both members of the tuple.
func (t *Tuple[K, V]) Set(key K, value V) {
	t.Key = key
	t.Value = value
}

// Clone returns a copy of the tuple that is safe to keep across steps.
func (t *Tuple[K, V]) Clone() *Tuple[K, V] {
	return &Tuple[K, V]{Key: t.Key, Value: t.Value}
}

// String returns the string representation of the tuple.
func (t *Tuple[K, V]) String() string {
	return fmt.Sprintf("(%v, %v)", t.Key, t.Value)
}

// CompareTuples orders tuples by key, then by value.
func CompareTuples[K, V any](a, b *Tuple[K, V], keyCmp func(K, K) int, valCmp func(V, V) int) int {
	if c := keyCmp(a.Key, b.Key); c != 0 {
		return c
	}
	return valCmp(a.Value, b.Value)
}
