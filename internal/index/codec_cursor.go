package index

import (
	"github.com/oba-ldap/xdbm/internal/cursor"
	"github.com/oba-ldap/xdbm/internal/matching"
	"github.com/oba-ldap/xdbm/internal/storage/btree"
)

// codecCursor decodes the byte pairs of a B+ tree cursor into typed
// tuples.
type codecCursor[K, V any] struct {
	*btree.Cursor
	keys   matching.Codec[K]
	values matching.Codec[V]
	tuple  cursor.Tuple[K, V]
}

var _ cursor.TupleCursor[string, uint64] = (*codecCursor[string, uint64])(nil)

func newCodecCursor[K, V any](c *btree.Cursor, keys matching.Codec[K], values matching.Codec[V]) *codecCursor[K, V] {
	return &codecCursor[K, V]{Cursor: c, keys: keys, values: values}
}

func (c *codecCursor[K, V]) BeforeKey(key K) error {
	return c.Cursor.BeforeKey(matching.Encode(c.keys, key))
}

func (c *codecCursor[K, V]) AfterKey(key K) error {
	return c.Cursor.AfterKey(matching.Encode(c.keys, key))
}

func (c *codecCursor[K, V]) BeforeValue(key K, value V) error {
	return c.Cursor.BeforeValue(matching.Encode(c.keys, key), matching.Encode(c.values, value))
}

func (c *codecCursor[K, V]) AfterValue(key K, value V) error {
	return c.Cursor.AfterValue(matching.Encode(c.keys, key), matching.Encode(c.values, value))
}

func (c *codecCursor[K, V]) Before(element *cursor.Tuple[K, V]) error {
	return c.BeforeValue(element.Key, element.Value)
}

func (c *codecCursor[K, V]) After(element *cursor.Tuple[K, V]) error {
	return c.AfterValue(element.Key, element.Value)
}

// Get decodes the current pair into a tuple reused on every step.
func (c *codecCursor[K, V]) Get() (*cursor.Tuple[K, V], error) {
	raw, err := c.Cursor.Get()
	if err != nil {
		return nil, err
	}
	key, err := c.keys.Decode(raw.Key)
	if err != nil {
		return nil, err
	}
	value, err := c.values.Decode(raw.Value)
	if err != nil {
		return nil, err
	}
	c.tuple.Set(key, value)
	return &c.tuple, nil
}
