package index

import (
	"github.com/oba-ldap/xdbm/internal/logging"
	"github.com/oba-ldap/xdbm/internal/storage"
)

// DefaultCountScanLimit is the number of entries a disk index scans to
// answer a range count.
const DefaultCountScanLimit = 1000

// Options configures an index.
type Options struct {
	Logger         logging.Logger
	CountScanLimit int
	SyncOnWrite    bool
	ReadOnly       bool
	CachePages     int
}

// Option sets a field of Options.
type Option func(*Options)

// WithLogger sets the index logger.
func WithLogger(l logging.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithCountScanLimit bounds range count scans of disk indexes.
func WithCountScanLimit(n int) Option {
	return func(o *Options) { o.CountScanLimit = n }
}

// WithSyncOnWrite flushes every page write of a disk index.
func WithSyncOnWrite(sync bool) Option {
	return func(o *Options) { o.SyncOnWrite = sync }
}

// WithReadOnly opens a disk index without write access.
func WithReadOnly(ro bool) Option {
	return func(o *Options) { o.ReadOnly = ro }
}

// WithCachePages sets the pages a disk index keeps in memory. A negative
// n disables the page cache; zero keeps the default.
func WithCachePages(n int) Option {
	return func(o *Options) {
		if n != 0 {
			o.CachePages = n
		}
	}
}

func buildOptions(opts []Option) Options {
	o := Options{
		Logger:         logging.NewNop(),
		CountScanLimit: DefaultCountScanLimit,
		CachePages:     storage.DefaultCachePages,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	if o.CountScanLimit <= 0 {
		o.CountScanLimit = DefaultCountScanLimit
	}
	return o
}
