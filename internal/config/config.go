package config

// Index backends.
const (
	// BackendMemory keeps the index in memory only.
	BackendMemory = "memory"
	// BackendDisk keeps the index in a page file under the data directory.
	BackendDisk = "disk"
)

// Config holds the complete index layer configuration.
type Config struct {
	Logging LogConfig     `yaml:"logging"`
	Storage StorageConfig `yaml:"storage"`
	Indexes []IndexConfig `yaml:"indexes"`
}

// StorageConfig holds index storage configuration.
type StorageConfig struct {
	DataDir     string `yaml:"dataDir"`
	PageSize    int    `yaml:"pageSize"`
	SyncOnWrite bool   `yaml:"syncOnWrite"`
	// CountScanLimit bounds the entries a disk index scans to answer a
	// range count before it falls back to the total.
	CountScanLimit int `yaml:"countScanLimit"`
	// CachePages is the number of pages each index file keeps in memory.
	// Zero uses the default and a negative value disables the cache.
	CachePages int `yaml:"cachePages"`
	// ReadOnly opens disk indexes without write access. Index files must
	// already exist.
	ReadOnly bool `yaml:"readOnly"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// IndexConfig defines one attribute index.
type IndexConfig struct {
	Attribute string `yaml:"attribute"`
	Backend   string `yaml:"backend"`
	Matching  string `yaml:"matching"`
}
