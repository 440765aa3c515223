package index

import (
	"errors"

	"github.com/oba-ldap/xdbm/internal/cursor"
)

// Index errors.
var (
	ErrClosed            = errors.New("index is closed")
	ErrIndexExists       = errors.New("index already exists")
	ErrIndexNotFound     = errors.New("index not found")
	ErrInvalidAttribute  = errors.New("invalid attribute name")
	ErrManagerClosed     = errors.New("index manager is closed")
	ErrAttributeMismatch = errors.New("index file belongs to another attribute")
	ErrUnknownBackend    = errors.New("unknown index backend")
	ErrNoResolver        = errors.New("no entry resolver configured")
)

// Direction tells which ordering of an index a cursor walks.
type Direction int

const (
	// Forward walks (key, id) pairs in key order.
	Forward Direction = iota
	// Reverse walks (id, key) pairs in id order.
	Reverse
)

// String returns the string representation of a Direction.
func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	default:
		return "unknown"
	}
}

// IndexCursor is a cursor over the entries of an index in one direction.
type IndexCursor[K, ID any] interface {
	cursor.Cursor[*IndexEntry[K, ID]]

	// Direction returns the ordering walked by the cursor.
	Direction() Direction

	// BeforeValue and AfterValue position around the pair (key, id). They
	// do nothing when the underlying cursor cannot position by value.
	BeforeValue(key K, id ID) error
	AfterValue(key K, id ID) error

	// BeforeKey and AfterKey position around all pairs of key. Only
	// forward cursors support them.
	BeforeKey(key K) error
	AfterKey(key K) error

	// BeforeID and AfterID position around all pairs of id. Only reverse
	// cursors support them.
	BeforeID(id ID) error
	AfterID(id ID) error
}

// Index maps attribute values (keys) to entry identifiers and back. The
// forward ordering holds (key, id) pairs, the reverse ordering the same
// pairs as (id, key), and both always hold the same set.
type Index[K, ID any] interface {
	// Attribute returns the indexed attribute.
	Attribute() string

	// ForwardLookup returns the smallest id stored under key.
	ForwardLookup(key K) (ID, bool, error)
	// ReverseLookup returns the smallest key stored for id.
	ReverseLookup(id ID) (K, bool, error)

	// Count returns the number of pairs.
	Count() (int, error)
	// CountKey returns the number of ids stored under key.
	CountKey(key K) (int, error)
	// GreaterThanCount returns the number of pairs whose key is >= key.
	GreaterThanCount(key K) (int, error)
	// LessThanCount returns the number of pairs whose key is <= key.
	LessThanCount(key K) (int, error)
	// IsCountExact reports whether the range counts are exact. When false
	// they are upper bounds.
	IsCountExact() bool

	// Add stores the pair (key, id) in both orderings.
	Add(key K, id ID) error
	// Drop removes one occurrence of (key, id). Dropping an absent pair
	// is not an error.
	Drop(key K, id ID) error
	// DropID removes every pair of id.
	DropID(id ID) error

	ForwardCursor() (IndexCursor[K, ID], error)
	// ForwardKeyCursor walks only the pairs of key.
	ForwardKeyCursor(key K) (IndexCursor[K, ID], error)
	ReverseCursor() (IndexCursor[K, ID], error)
	// ReverseIDCursor walks only the pairs of id.
	ReverseIDCursor(id ID) (IndexCursor[K, ID], error)

	HasKey(key K) (bool, error)
	Has(key K, id ID) (bool, error)
	HasID(id ID) (bool, error)
	HasReverse(id ID, key K) (bool, error)

	// ForwardGreaterOrEq reports whether some key is >= key.
	ForwardGreaterOrEq(key K) (bool, error)
	// ForwardGreaterOrEqID reports whether key maps to some id' >= id.
	ForwardGreaterOrEqID(key K, id ID) (bool, error)
	// ForwardLessOrEq reports whether some key is <= key.
	ForwardLessOrEq(key K) (bool, error)
	// ForwardLessOrEqID reports whether key maps to some id' <= id.
	ForwardLessOrEqID(key K, id ID) (bool, error)
	// ReverseGreaterOrEq reports whether some id is >= id.
	ReverseGreaterOrEq(id ID) (bool, error)
	// ReverseGreaterOrEqKey reports whether id has some key' >= key.
	ReverseGreaterOrEqKey(id ID, key K) (bool, error)
	// ReverseLessOrEq reports whether some id is <= id.
	ReverseLessOrEq(id ID) (bool, error)
	// ReverseLessOrEqKey reports whether id has some key' <= key.
	ReverseLessOrEqKey(id ID, key K) (bool, error)

	// Sync persists the index. It is a no-op for memory indexes.
	Sync() error
	// Close releases the index. It is safe to call more than once.
	Close() error
}

// resolverSetter is implemented by indexes whose cursors resolve entries.
type resolverSetter[ID any] interface {
	SetResolver(r EntryResolver[ID])
}
