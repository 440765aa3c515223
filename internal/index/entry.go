package index

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oba-ldap/xdbm/internal/cursor"
)

// Entry is a directory entry as seen by index maintenance.
type Entry struct {
	// ID is the identifier of the entry in the master table.
	ID uint64

	// DN is the distinguished name of the entry.
	DN string

	// Attributes contains the entry's attribute values keyed by attribute
	// name as given by the caller.
	Attributes map[string][][]byte
}

// NewEntry creates a new Entry with the given id and DN.
func NewEntry(id uint64, dn string) *Entry {
	return &Entry{
		ID:         id,
		DN:         dn,
		Attributes: make(map[string][][]byte),
	}
}

// GetAttribute returns the values for the given attribute name (case-insensitive).
// Returns nil if the attribute doesn't exist.
func (e *Entry) GetAttribute(name string) [][]byte {
	if v, ok := e.Attributes[name]; ok {
		return v
	}
	for k, v := range e.Attributes {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

// HasAttribute returns true if the entry has the given attribute (case-insensitive).
func (e *Entry) HasAttribute(name string) bool {
	return len(e.GetAttribute(name)) > 0
}

// SetAttribute sets the values for the given attribute name.
func (e *Entry) SetAttribute(name string, values [][]byte) {
	if e.Attributes == nil {
		e.Attributes = make(map[string][][]byte)
	}
	e.Attributes[name] = values
}

// AddAttributeValue adds a value to the given attribute.
func (e *Entry) AddAttributeValue(name string, value []byte) {
	if e.Attributes == nil {
		e.Attributes = make(map[string][][]byte)
	}
	e.Attributes[name] = append(e.Attributes[name], value)
}

// AttributeNames returns the entry's attribute names in sorted order.
func (e *Entry) AttributeNames() []string {
	names := make([]string, 0, len(e.Attributes))
	for k := range e.Attributes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// EntryResolver loads directory entries from the master table.
type EntryResolver[ID any] interface {
	Resolve(id ID) (*Entry, error)
}

// ResolverFunc adapts a function to EntryResolver.
type ResolverFunc[ID any] func(id ID) (*Entry, error)

// Resolve calls f(id).
func (f ResolverFunc[ID]) Resolve(id ID) (*Entry, error) {
	return f(id)
}

// IndexEntry is a view over one (key, id) pair of an index. Entries
// returned by cursors are reused on every step; use Clone to keep one.
type IndexEntry[K, ID any] struct {
	dir      Direction
	fwd      *cursor.Tuple[K, ID]
	rev      *cursor.Tuple[ID, K]
	resolver EntryResolver[ID]
	entry    *Entry
	resolved bool
}

// NewIndexEntry creates a forward entry for (key, id), typically to
// position a cursor.
func NewIndexEntry[K, ID any](key K, id ID) *IndexEntry[K, ID] {
	return &IndexEntry[K, ID]{dir: Forward, fwd: cursor.NewTuple(key, id)}
}

// Direction returns the ordering the entry came from.
func (e *IndexEntry[K, ID]) Direction() Direction {
	return e.dir
}

// Key returns the attribute value of the pair.
func (e *IndexEntry[K, ID]) Key() K {
	if e.dir == Reverse {
		if e.rev == nil {
			var zero K
			return zero
		}
		return e.rev.Value
	}
	if e.fwd == nil {
		var zero K
		return zero
	}
	return e.fwd.Key
}

// ID returns the entry identifier of the pair.
func (e *IndexEntry[K, ID]) ID() ID {
	if e.dir == Reverse {
		if e.rev == nil {
			var zero ID
			return zero
		}
		return e.rev.Key
	}
	if e.fwd == nil {
		var zero ID
		return zero
	}
	return e.fwd.Value
}

// Entry resolves and caches the directory entry of the pair's id.
func (e *IndexEntry[K, ID]) Entry() (*Entry, error) {
	if e.resolved {
		return e.entry, nil
	}
	if e.resolver == nil {
		return nil, ErrNoResolver
	}

	entry, err := e.resolver.Resolve(e.ID())
	if err != nil {
		return nil, err
	}
	e.entry, e.resolved = entry, true
	return entry, nil
}

// SetEntry caches a directory entry already loaded by the caller.
func (e *IndexEntry[K, ID]) SetEntry(entry *Entry) {
	e.entry, e.resolved = entry, true
}

// Clone returns a forward copy of the pair that is safe to keep.
func (e *IndexEntry[K, ID]) Clone() *IndexEntry[K, ID] {
	return &IndexEntry[K, ID]{
		dir:      Forward,
		fwd:      cursor.NewTuple(e.Key(), e.ID()),
		resolver: e.resolver,
		entry:    e.entry,
		resolved: e.resolved,
	}
}

// String returns the string representation of the pair.
func (e *IndexEntry[K, ID]) String() string {
	return fmt.Sprintf("%s(%v, %v)", e.dir, e.Key(), e.ID())
}

// invalidate drops the cached entry after the cursor moved.
func (e *IndexEntry[K, ID]) invalidate() {
	e.entry, e.resolved = nil, false
}
