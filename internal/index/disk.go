package index

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/oba-ldap/xdbm/internal/cursor"
	"github.com/oba-ldap/xdbm/internal/logging"
	"github.com/oba-ldap/xdbm/internal/matching"
	"github.com/oba-ldap/xdbm/internal/storage"
	"github.com/oba-ldap/xdbm/internal/storage/btree"
)

// DiskIndex is an Index stored in a page file holding two B+ trees: the
// forward tree of (key, id) pairs and the reverse tree of (id, key) pairs.
// Roots and counts are written to the file header by Sync and Close.
type DiskIndex[K, ID any] struct {
	attr      string
	pm        *storage.PageManager
	fwd       *btree.Tree
	rev       *btree.Tree
	keys      matching.Codec[K]
	ids       matching.Codec[ID]
	resolver  EntryResolver[ID]
	logger    logging.Logger
	scanLimit int
	readOnly  bool
	mu        sync.RWMutex
	closed    bool
}

var _ Index[string, uint64] = (*DiskIndex[string, uint64])(nil)

// DiskStats describes an open disk index.
type DiskStats struct {
	Path      string
	Attribute string
	Forward   uint64
	Reverse   uint64
	Pages     storage.Stats
}

// OpenDiskIndex opens the index file at path, creating it unless the
// index is read-only. An existing file must belong to attr. An empty attr
// takes the attribute recorded in the file.
func OpenDiskIndex[K, ID any](path, attr string, keys matching.Codec[K], ids matching.Codec[ID], opts ...Option) (*DiskIndex[K, ID], error) {
	o := buildOptions(opts)

	pmOpts := storage.DefaultOptions()
	pmOpts.CreateIfNew = !o.ReadOnly
	pmOpts.ReadOnly = o.ReadOnly
	pmOpts.SyncOnWrite = o.SyncOnWrite
	pmOpts.Attribute = attr
	pmOpts.CachePages = max(o.CachePages, 0)

	pm, err := storage.OpenPageManager(path, pmOpts)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}

	idx := &DiskIndex[K, ID]{
		attr:      attr,
		pm:        pm,
		keys:      keys,
		ids:       ids,
		logger:    o.Logger,
		scanLimit: o.CountScanLimit,
		readOnly:  o.ReadOnly,
	}
	if err := idx.load(); err != nil {
		pm.Close()
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}

	idx.logger.Debug("opened index file",
		"path", path,
		"pairs", idx.fwd.Len(),
		"read_only", o.ReadOnly,
	)
	return idx, nil
}

// load opens both trees, creating them in a new file.
func (d *DiskIndex[K, ID]) load() error {
	h := d.pm.Header()
	if d.attr == "" {
		d.attr = h.Attribute
	}
	if h.Attribute != "" && !strings.EqualFold(h.Attribute, d.attr) {
		return fmt.Errorf("%w: file has %q", ErrAttributeMismatch, h.Attribute)
	}

	var err error
	if h.Roots.Forward == btree.InvalidPageID || h.Roots.Reverse == btree.InvalidPageID {
		if d.readOnly {
			return btree.ErrTreeNotInitialized
		}
		if d.fwd, err = btree.New(d.pm, storage.PageTypeForward); err != nil {
			return err
		}
		if d.rev, err = btree.New(d.pm, storage.PageTypeReverse); err != nil {
			return err
		}
		return d.syncLocked()
	}

	if d.fwd, err = btree.Open(d.pm, storage.PageTypeForward, h.Roots.Forward, h.Counts.Forward); err != nil {
		return err
	}
	d.rev, err = btree.Open(d.pm, storage.PageTypeReverse, h.Roots.Reverse, h.Counts.Reverse)
	return err
}

// Attribute returns the indexed attribute.
func (d *DiskIndex[K, ID]) Attribute() string {
	return d.attr
}

// Path returns the path of the index file.
func (d *DiskIndex[K, ID]) Path() string {
	return d.pm.Path()
}

// SetResolver sets the resolver used by entries returned from cursors.
func (d *DiskIndex[K, ID]) SetResolver(r EntryResolver[ID]) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resolver = r
}

func (d *DiskIndex[K, ID]) rlock() error {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return ErrClosed
	}
	return nil
}

func (d *DiskIndex[K, ID]) lock() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if d.readOnly {
		d.mu.Unlock()
		return storage.ErrReadOnly
	}
	return nil
}

// ForwardLookup returns the smallest id stored under key.
func (d *DiskIndex[K, ID]) ForwardLookup(key K) (ID, bool, error) {
	var zero ID
	if err := d.rlock(); err != nil {
		return zero, false, err
	}
	defer d.mu.RUnlock()

	raw, err := d.fwd.Get(matching.Encode(d.keys, key))
	if errors.Is(err, btree.ErrKeyNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	id, err := d.ids.Decode(raw)
	if err != nil {
		return zero, false, err
	}
	return id, true, nil
}

// ReverseLookup returns the smallest key stored for id.
func (d *DiskIndex[K, ID]) ReverseLookup(id ID) (K, bool, error) {
	var zero K
	if err := d.rlock(); err != nil {
		return zero, false, err
	}
	defer d.mu.RUnlock()

	raw, err := d.rev.Get(matching.Encode(d.ids, id))
	if errors.Is(err, btree.ErrKeyNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	key, err := d.keys.Decode(raw)
	if err != nil {
		return zero, false, err
	}
	return key, true, nil
}

// Count returns the number of pairs.
func (d *DiskIndex[K, ID]) Count() (int, error) {
	if err := d.rlock(); err != nil {
		return 0, err
	}
	defer d.mu.RUnlock()
	return int(d.fwd.Len()), nil
}

// CountKey returns the number of ids stored under key.
func (d *DiskIndex[K, ID]) CountKey(key K) (int, error) {
	if err := d.rlock(); err != nil {
		return 0, err
	}
	defer d.mu.RUnlock()

	values, err := d.fwd.Values(matching.Encode(d.keys, key))
	if err != nil {
		return 0, err
	}
	return len(values), nil
}

// GreaterThanCount counts the pairs whose key is >= key. When more than
// the scan limit match, the total count is returned instead.
func (d *DiskIndex[K, ID]) GreaterThanCount(key K) (int, error) {
	if err := d.rlock(); err != nil {
		return 0, err
	}
	defer d.mu.RUnlock()

	c := d.fwd.Cursor()
	defer c.Close()

	if err := c.BeforeKey(matching.Encode(d.keys, key)); err != nil {
		return 0, err
	}
	return d.scanCount(c, nil)
}

// LessThanCount counts the pairs whose key is <= key. When more than the
// scan limit match, the total count is returned instead.
func (d *DiskIndex[K, ID]) LessThanCount(key K) (int, error) {
	if err := d.rlock(); err != nil {
		return 0, err
	}
	defer d.mu.RUnlock()

	c := d.fwd.Cursor()
	defer c.Close()

	limit := matching.Encode(d.keys, key)
	return d.scanCount(c, func(k []byte) bool {
		return bytes.Compare(k, limit) <= 0
	})
}

// scanCount steps c forward while match holds, up to the scan limit.
func (d *DiskIndex[K, ID]) scanCount(c *btree.Cursor, match func(key []byte) bool) (int, error) {
	n := 0
	for {
		ok, err := c.Next()
		if err != nil {
			return 0, err
		}
		if !ok {
			return n, nil
		}
		if match != nil {
			t, err := c.Get()
			if err != nil {
				return 0, err
			}
			if !match(t.Key) {
				return n, nil
			}
		}
		n++
		if n > d.scanLimit {
			return int(d.fwd.Len()), nil
		}
	}
}

// IsCountExact returns false: range counts above the scan limit are
// upper bounds.
func (d *DiskIndex[K, ID]) IsCountExact() bool {
	return false
}

// Add stores (key, id) in both trees.
func (d *DiskIndex[K, ID]) Add(key K, id ID) error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()

	k, v := matching.Encode(d.keys, key), matching.Encode(d.ids, id)
	if err := d.fwd.Insert(k, v); err != nil {
		return fmt.Errorf("add to forward tree: %w", err)
	}
	if err := d.rev.Insert(v, k); err != nil {
		if rbErr := d.fwd.Delete(k, v); rbErr != nil {
			d.logger.Error("rollback of forward insert failed", "error", rbErr)
		}
		return fmt.Errorf("add to reverse tree: %w", err)
	}
	return nil
}

// Drop removes one occurrence of (key, id) from both trees.
func (d *DiskIndex[K, ID]) Drop(key K, id ID) error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()

	k, v := matching.Encode(d.keys, key), matching.Encode(d.ids, id)
	if err := d.fwd.Delete(k, v); err != nil {
		if errors.Is(err, btree.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("drop from forward tree: %w", err)
	}
	if err := d.rev.Delete(v, k); err != nil {
		if rbErr := d.fwd.Insert(k, v); rbErr != nil {
			d.logger.Error("rollback of forward delete failed", "error", rbErr)
		}
		return fmt.Errorf("drop from reverse tree: %w", err)
	}
	return nil
}

// DropID removes every pair of id.
func (d *DiskIndex[K, ID]) DropID(id ID) error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()

	v := matching.Encode(d.ids, id)
	keys, err := d.rev.DeleteKey(v)
	if err != nil {
		if errors.Is(err, btree.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("drop id from reverse tree: %w", err)
	}
	for _, k := range keys {
		if err := d.fwd.Delete(k, v); err != nil {
			return fmt.Errorf("drop id from forward tree: %w", err)
		}
	}

	d.logger.Debug("dropped id", "pairs", len(keys))
	return nil
}

func (d *DiskIndex[K, ID]) forwardTuples() *codecCursor[K, ID] {
	return newCodecCursor(d.fwd.Cursor(), d.keys, d.ids)
}

func (d *DiskIndex[K, ID]) reverseTuples() *codecCursor[ID, K] {
	return newCodecCursor(d.rev.Cursor(), d.ids, d.keys)
}

// ForwardCursor returns a cursor over all (key, id) pairs.
func (d *DiskIndex[K, ID]) ForwardCursor() (IndexCursor[K, ID], error) {
	if err := d.rlock(); err != nil {
		return nil, err
	}
	defer d.mu.RUnlock()
	return NewForwardCursor[K, ID](d.forwardTuples(), d.resolver), nil
}

// ForwardKeyCursor returns a cursor over the pairs of key.
func (d *DiskIndex[K, ID]) ForwardKeyCursor(key K) (IndexCursor[K, ID], error) {
	if err := d.rlock(); err != nil {
		return nil, err
	}
	defer d.mu.RUnlock()

	keyed := cursor.NewKeyedCursor[K, ID](d.forwardTuples(), key, d.keys.Compare)
	return NewForwardCursor[K, ID](keyed, d.resolver), nil
}

// ReverseCursor returns a cursor over all (id, key) pairs.
func (d *DiskIndex[K, ID]) ReverseCursor() (IndexCursor[K, ID], error) {
	if err := d.rlock(); err != nil {
		return nil, err
	}
	defer d.mu.RUnlock()
	return NewReverseCursor[K, ID](d.reverseTuples(), d.resolver), nil
}

// ReverseIDCursor returns a cursor over the pairs of id.
func (d *DiskIndex[K, ID]) ReverseIDCursor(id ID) (IndexCursor[K, ID], error) {
	if err := d.rlock(); err != nil {
		return nil, err
	}
	defer d.mu.RUnlock()

	keyed := cursor.NewKeyedCursor[ID, K](d.reverseTuples(), id, d.ids.Compare)
	return NewReverseCursor[K, ID](keyed, d.resolver), nil
}

// HasKey reports whether key has any id.
func (d *DiskIndex[K, ID]) HasKey(key K) (bool, error) {
	if err := d.rlock(); err != nil {
		return false, err
	}
	defer d.mu.RUnlock()
	return d.fwd.HasKey(matching.Encode(d.keys, key))
}

// Has reports whether (key, id) is stored.
func (d *DiskIndex[K, ID]) Has(key K, id ID) (bool, error) {
	if err := d.rlock(); err != nil {
		return false, err
	}
	defer d.mu.RUnlock()
	return d.fwd.Contains(matching.Encode(d.keys, key), matching.Encode(d.ids, id))
}

// HasID reports whether id has any key.
func (d *DiskIndex[K, ID]) HasID(id ID) (bool, error) {
	if err := d.rlock(); err != nil {
		return false, err
	}
	defer d.mu.RUnlock()
	return d.rev.HasKey(matching.Encode(d.ids, id))
}

// HasReverse reports whether (id, key) is stored.
func (d *DiskIndex[K, ID]) HasReverse(id ID, key K) (bool, error) {
	if err := d.rlock(); err != nil {
		return false, err
	}
	defer d.mu.RUnlock()
	return d.rev.Contains(matching.Encode(d.ids, id), matching.Encode(d.keys, key))
}

// probe positions a cursor on t with seek and steps once, forward when
// next is set. When key is not nil the pair found must belong to it.
func (d *DiskIndex[K, ID]) probe(t *btree.Tree, seek func(*btree.Cursor) error, next bool, key []byte) (bool, error) {
	if err := d.rlock(); err != nil {
		return false, err
	}
	defer d.mu.RUnlock()

	c := t.Cursor()
	defer c.Close()

	if err := seek(c); err != nil {
		return false, err
	}
	step := c.Previous
	if next {
		step = c.Next
	}
	ok, err := step()
	if err != nil || !ok {
		return false, err
	}
	if key == nil {
		return true, nil
	}
	tuple, err := c.Get()
	if err != nil {
		return false, err
	}
	return bytes.Equal(tuple.Key, key), nil
}

// ForwardGreaterOrEq reports whether some key is >= key.
func (d *DiskIndex[K, ID]) ForwardGreaterOrEq(key K) (bool, error) {
	k := matching.Encode(d.keys, key)
	return d.probe(d.fwd, func(c *btree.Cursor) error { return c.BeforeKey(k) }, true, nil)
}

// ForwardGreaterOrEqID reports whether key maps to some id' >= id.
func (d *DiskIndex[K, ID]) ForwardGreaterOrEqID(key K, id ID) (bool, error) {
	k, v := matching.Encode(d.keys, key), matching.Encode(d.ids, id)
	return d.probe(d.fwd, func(c *btree.Cursor) error { return c.BeforeValue(k, v) }, true, k)
}

// ForwardLessOrEq reports whether some key is <= key.
func (d *DiskIndex[K, ID]) ForwardLessOrEq(key K) (bool, error) {
	k := matching.Encode(d.keys, key)
	return d.probe(d.fwd, func(c *btree.Cursor) error { return c.AfterKey(k) }, false, nil)
}

// ForwardLessOrEqID reports whether key maps to some id' <= id.
func (d *DiskIndex[K, ID]) ForwardLessOrEqID(key K, id ID) (bool, error) {
	k, v := matching.Encode(d.keys, key), matching.Encode(d.ids, id)
	return d.probe(d.fwd, func(c *btree.Cursor) error { return c.AfterValue(k, v) }, false, k)
}

// ReverseGreaterOrEq reports whether some id is >= id.
func (d *DiskIndex[K, ID]) ReverseGreaterOrEq(id ID) (bool, error) {
	v := matching.Encode(d.ids, id)
	return d.probe(d.rev, func(c *btree.Cursor) error { return c.BeforeKey(v) }, true, nil)
}

// ReverseGreaterOrEqKey reports whether id has some key' >= key.
func (d *DiskIndex[K, ID]) ReverseGreaterOrEqKey(id ID, key K) (bool, error) {
	v, k := matching.Encode(d.ids, id), matching.Encode(d.keys, key)
	return d.probe(d.rev, func(c *btree.Cursor) error { return c.BeforeValue(v, k) }, true, v)
}

// ReverseLessOrEq reports whether some id is <= id.
func (d *DiskIndex[K, ID]) ReverseLessOrEq(id ID) (bool, error) {
	v := matching.Encode(d.ids, id)
	return d.probe(d.rev, func(c *btree.Cursor) error { return c.AfterKey(v) }, false, nil)
}

// ReverseLessOrEqKey reports whether id has some key' <= key.
func (d *DiskIndex[K, ID]) ReverseLessOrEqKey(id ID, key K) (bool, error) {
	v, k := matching.Encode(d.ids, id), matching.Encode(d.keys, key)
	return d.probe(d.rev, func(c *btree.Cursor) error { return c.AfterValue(v, k) }, false, v)
}

// Stats returns the pair counts and page usage of the index.
func (d *DiskIndex[K, ID]) Stats() (DiskStats, error) {
	if err := d.rlock(); err != nil {
		return DiskStats{}, err
	}
	defer d.mu.RUnlock()

	return DiskStats{
		Path:      d.pm.Path(),
		Attribute: d.pm.Header().Attribute,
		Forward:   d.fwd.Len(),
		Reverse:   d.rev.Len(),
		Pages:     d.pm.Stats(),
	}, nil
}

// Verify checks the structure of both trees and that they hold the same
// pairs.
func (d *DiskIndex[K, ID]) Verify() error {
	if err := d.rlock(); err != nil {
		return err
	}
	err := d.fwd.Verify()
	if err == nil {
		err = d.rev.Verify()
	}
	d.mu.RUnlock()
	if err != nil {
		return err
	}
	return CheckConsistency[K, ID](d)
}

// Sync writes the tree roots and counts to the header and flushes the
// file.
func (d *DiskIndex[K, ID]) Sync() error {
	if err := d.rlock(); err != nil {
		return err
	}
	defer d.mu.RUnlock()
	if d.readOnly {
		return nil
	}
	return d.syncLocked()
}

func (d *DiskIndex[K, ID]) syncLocked() error {
	roots := storage.Roots{Forward: d.fwd.Root(), Reverse: d.rev.Root()}
	counts := storage.Counts{Forward: d.fwd.Len(), Reverse: d.rev.Len()}
	if err := d.pm.SetRoots(roots, counts); err != nil {
		return fmt.Errorf("save roots: %w", err)
	}
	if err := d.pm.Sync(); err != nil {
		return fmt.Errorf("sync index file: %w", err)
	}
	return nil
}

// Close syncs and closes the index file.
func (d *DiskIndex[K, ID]) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	var syncErr error
	if !d.readOnly {
		syncErr = d.syncLocked()
	}
	if err := d.pm.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}
	return syncErr
}
