package index

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/oba-ldap/xdbm/internal/config"
	"github.com/oba-ldap/xdbm/internal/cursor"
	"github.com/oba-ldap/xdbm/internal/logging"
	"github.com/oba-ldap/xdbm/internal/matching"
	"github.com/oba-ldap/xdbm/internal/storage"
)

const (
	// PresenceAttribute names the system index mapping each indexed
	// attribute to the entries that hold it.
	PresenceAttribute = "_presence"

	// FileExt is the extension of index files under the data directory.
	FileExt = ".xdbm"
)

// IndexPath returns the file of the disk index for attr under dataDir.
func IndexPath(dataDir, attr string) string {
	return filepath.Join(dataDir, normalizeAttribute(attr)+FileExt)
}

func normalizeAttribute(attr string) string {
	return strings.ToLower(strings.TrimSpace(attr))
}

// PresenceKey returns the key under which the presence index records
// entries holding attr.
func PresenceKey(attr string) []byte {
	return []byte(normalizeAttribute(attr))
}

// managedIndex is an attribute index together with its definition.
type managedIndex struct {
	def  config.IndexConfig
	rule matching.Rule
	idx  Index[[]byte, uint64]
	path string
}

// Manager coordinates the attribute indexes of a directory. Keys are
// attribute values normalized by the attribute's matching rule and ids
// are entry identifiers. A presence index records which entries hold
// each indexed attribute.
type Manager struct {
	cfg      config.StorageConfig
	indexes  map[string]*managedIndex
	presence *managedIndex
	resolver EntryResolver[uint64]
	logger   logging.Logger
	mu       sync.RWMutex
	closed   bool
}

// NewManager opens an index for every definition in defs.
func NewManager(cfg config.StorageConfig, defs []config.IndexConfig, logger logging.Logger) (*Manager, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	m := &Manager{
		cfg:     cfg,
		indexes: make(map[string]*managedIndex),
		logger:  logger,
	}

	presenceBackend := config.BackendMemory
	for _, def := range defs {
		if backendOf(def) == config.BackendDisk {
			presenceBackend = config.BackendDisk
			break
		}
	}

	presence, err := m.open(config.IndexConfig{
		Attribute: PresenceAttribute,
		Backend:   presenceBackend,
		Matching:  matching.OctetStringMatch,
	})
	if err != nil {
		return nil, fmt.Errorf("open presence index: %w", err)
	}
	m.presence = presence

	for _, def := range defs {
		if err := m.createLocked(def); err != nil {
			m.closeAll()
			return nil, fmt.Errorf("create index %q: %w", def.Attribute, err)
		}
	}

	m.logger.Info("index manager started",
		"indexes", len(m.indexes),
		"data_dir", cfg.DataDir,
	)
	return m, nil
}

func backendOf(def config.IndexConfig) string {
	if def.Backend == "" {
		return config.BackendDisk
	}
	return strings.ToLower(def.Backend)
}

// open creates the index described by def without registering it.
func (m *Manager) open(def config.IndexConfig) (*managedIndex, error) {
	attr := normalizeAttribute(def.Attribute)
	rule, err := matching.Lookup(def.Matching)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithLogger(m.logger.WithIndex(attr)),
		WithCountScanLimit(m.cfg.CountScanLimit),
		WithSyncOnWrite(m.cfg.SyncOnWrite),
		WithReadOnly(m.cfg.ReadOnly),
		WithCachePages(m.cfg.CachePages),
	}

	mi := &managedIndex{def: def, rule: rule}
	switch backendOf(def) {
	case config.BackendMemory:
		mi.idx = NewMemoryIndex(attr, matching.CompareBytes, matching.CompareUint64, opts...)
	case config.BackendDisk:
		if !m.cfg.ReadOnly {
			if err := os.MkdirAll(m.cfg.DataDir, 0o755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
		mi.path = IndexPath(m.cfg.DataDir, attr)
		disk, err := OpenDiskIndex[[]byte, uint64](mi.path, attr, matching.BytesCodec{}, matching.Uint64Codec{}, opts...)
		if err != nil {
			return nil, err
		}
		mi.idx = disk
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, def.Backend)
	}

	if m.resolver != nil {
		if rs, ok := mi.idx.(resolverSetter[uint64]); ok {
			rs.SetResolver(m.resolver)
		}
	}
	return mi, nil
}

// CreateIndex opens a new index for def.Attribute.
// Returns ErrIndexExists if the attribute is already indexed.
func (m *Manager) CreateIndex(def config.IndexConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	return m.createLocked(def)
}

func (m *Manager) createLocked(def config.IndexConfig) error {
	attr := normalizeAttribute(def.Attribute)
	if attr == "" || attr == PresenceAttribute || len(attr) > storage.MaxAttributeLength {
		return ErrInvalidAttribute
	}
	if _, exists := m.indexes[attr]; exists {
		return ErrIndexExists
	}

	mi, err := m.open(def)
	if err != nil {
		return err
	}
	m.indexes[attr] = mi

	m.logger.Info("index created",
		"attribute", attr,
		"backend", backendOf(def),
		"matching", mi.rule.Name(),
	)
	return nil
}

// DropIndex closes the index of attr, deletes its file and removes the
// attribute from the presence index.
func (m *Manager) DropIndex(attr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writable(); err != nil {
		return err
	}

	attr = normalizeAttribute(attr)
	mi, exists := m.indexes[attr]
	if !exists {
		return ErrIndexNotFound
	}

	if err := mi.idx.Close(); err != nil {
		return fmt.Errorf("close index %q: %w", attr, err)
	}
	delete(m.indexes, attr)

	if mi.path != "" {
		if err := os.Remove(mi.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove index file: %w", err)
		}
	}

	if err := m.dropPresence(attr); err != nil {
		return err
	}

	m.logger.Info("index dropped", "attribute", attr)
	return nil
}

// dropPresence removes every presence pair of attr.
func (m *Manager) dropPresence(attr string) error {
	key := PresenceKey(attr)
	c, err := m.presence.idx.ForwardKeyCursor(key)
	if err != nil {
		return err
	}

	var ids []uint64
	err = cursor.Collect[*IndexEntry[[]byte, uint64]](c, func(e *IndexEntry[[]byte, uint64]) bool {
		ids = append(ids, e.ID())
		return true
	})
	c.Close()
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := m.presence.idx.Drop(key, id); err != nil {
			return err
		}
	}
	return nil
}

// GetIndex returns the index of attr.
func (m *Manager) GetIndex(attr string) (Index[[]byte, uint64], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, false
	}

	mi, exists := m.indexes[normalizeAttribute(attr)]
	if !exists {
		return nil, false
	}
	return mi.idx, true
}

// PresenceIndex returns the index mapping attribute names to the entries
// that hold them.
func (m *Manager) PresenceIndex() Index[[]byte, uint64] {
	return m.presence.idx
}

// Normalize turns value into an index key of attr using the attribute's
// matching rule.
func (m *Manager) Normalize(attr string, value []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrManagerClosed
	}

	mi, exists := m.indexes[normalizeAttribute(attr)]
	if !exists {
		return nil, ErrIndexNotFound
	}
	return mi.rule.Normalize(value)
}

// ListIndexes returns the indexed attributes in sorted order.
func (m *Manager) ListIndexes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	attrs := make([]string, 0, len(m.indexes))
	for attr := range m.indexes {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)
	return attrs
}

// IndexCount returns the number of attribute indexes.
func (m *Manager) IndexCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.indexes)
}

// SetResolver sets the resolver used by the entries of every index
// cursor.
func (m *Manager) SetResolver(r EntryResolver[uint64]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resolver = r
	for _, mi := range m.all() {
		if rs, ok := mi.idx.(resolverSetter[uint64]); ok {
			rs.SetResolver(r)
		}
	}
}

// writable reports why the indexes cannot be modified. Read-only managers
// refuse writes before touching any index, memory ones included.
func (m *Manager) writable() error {
	switch {
	case m.closed:
		return ErrManagerClosed
	case m.cfg.ReadOnly:
		return storage.ErrReadOnly
	}
	return nil
}

// IndexEntry adds the values of entry to every index of an attribute it
// holds.
func (m *Manager) IndexEntry(entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writable(); err != nil {
		return err
	}
	return m.addLocked(entry)
}

// UnindexEntry removes entry from every index.
func (m *Manager) UnindexEntry(entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writable(); err != nil {
		return err
	}
	return m.removeLocked(entry)
}

// UpdateIndexes replaces the indexed values of oldEntry with those of
// newEntry. Either may be nil.
func (m *Manager) UpdateIndexes(oldEntry, newEntry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writable(); err != nil {
		return err
	}

	if err := m.removeLocked(oldEntry); err != nil {
		return err
	}
	return m.addLocked(newEntry)
}

func (m *Manager) addLocked(entry *Entry) error {
	if entry == nil {
		return nil
	}

	for attr, mi := range m.indexes {
		values := entry.GetAttribute(attr)
		if len(values) == 0 {
			continue
		}

		seen := make(map[string]struct{}, len(values))
		for _, value := range values {
			key, err := mi.rule.Normalize(value)
			if err != nil {
				return fmt.Errorf("normalize %s value: %w", attr, err)
			}
			if len(key) == 0 {
				continue
			}
			if _, dup := seen[string(key)]; dup {
				continue
			}
			seen[string(key)] = struct{}{}

			if err := mi.idx.Add(key, entry.ID); err != nil {
				return fmt.Errorf("index %s: %w", attr, err)
			}
		}

		if len(seen) > 0 {
			if err := m.presence.idx.Add(PresenceKey(attr), entry.ID); err != nil {
				return fmt.Errorf("index presence of %s: %w", attr, err)
			}
		}
	}

	m.logger.Debug("entry indexed", "id", entry.ID, "dn", entry.DN)
	return nil
}

func (m *Manager) removeLocked(entry *Entry) error {
	if entry == nil {
		return nil
	}

	for attr, mi := range m.indexes {
		if err := mi.idx.DropID(entry.ID); err != nil {
			return fmt.Errorf("unindex %s: %w", attr, err)
		}
	}
	if err := m.presence.idx.DropID(entry.ID); err != nil {
		return fmt.Errorf("unindex presence: %w", err)
	}

	m.logger.Debug("entry unindexed", "id", entry.ID, "dn", entry.DN)
	return nil
}

// all returns the attribute indexes followed by the presence index.
func (m *Manager) all() []*managedIndex {
	all := make([]*managedIndex, 0, len(m.indexes)+1)
	for _, mi := range m.indexes {
		all = append(all, mi)
	}
	if m.presence != nil {
		all = append(all, m.presence)
	}
	return all
}

// Sync persists every index.
func (m *Manager) Sync() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrManagerClosed
	}

	var errs []error
	for _, mi := range m.all() {
		if err := mi.idx.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync %s: %w", mi.idx.Attribute(), err))
		}
	}
	return errors.Join(errs...)
}

// Close syncs and closes every index.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	m.closed = true

	err := m.closeAll()
	m.logger.Info("index manager closed")
	return err
}

func (m *Manager) closeAll() error {
	var errs []error
	for _, mi := range m.all() {
		if err := mi.idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", mi.idx.Attribute(), err))
		}
	}
	return errors.Join(errs...)
}
