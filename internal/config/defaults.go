package config

import "github.com/oba-ldap/xdbm/internal/matching"

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Logging: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Storage: StorageConfig{
			DataDir:        "/var/lib/oba/index",
			PageSize:       4096,
			SyncOnWrite:    false,
			CountScanLimit: 1000,
			CachePages:     64,
		},
		Indexes: DefaultIndexes(),
	}
}

// DefaultIndexes returns the indexes created when none are configured.
// These are the most commonly searched attributes in LDAP.
func DefaultIndexes() []IndexConfig {
	return []IndexConfig{
		{Attribute: "objectClass", Backend: BackendDisk, Matching: matching.CaseIgnoreMatch},
		{Attribute: "uid", Backend: BackendDisk, Matching: matching.CaseIgnoreMatch},
		{Attribute: "cn", Backend: BackendDisk, Matching: matching.CaseIgnoreMatch},
		{Attribute: "mail", Backend: BackendDisk, Matching: matching.CaseIgnoreMatch},
		{Attribute: "member", Backend: BackendDisk, Matching: matching.CaseIgnoreMatch},
	}
}
