package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/oba-ldap/xdbm/internal/logging"
	"github.com/oba-ldap/xdbm/internal/matching"
)

// ValidationError names the configuration field that failed a check.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// attributePattern matches an attribute description such as "cn" or
// "userCertificate;binary".
var attributePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*(;[A-Za-z0-9-]+)*$`)

// validator collects every problem found instead of stopping at the first.
type validator struct {
	errs []error
}

func (v *validator) add(field, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidateConfig checks a configuration and returns one error per invalid
// field. A nil result means the configuration can be used.
func ValidateConfig(config *Config) []error {
	v := &validator{}
	v.storage(&config.Storage)
	v.logging(&config.Logging)
	v.indexes(config.Indexes)
	return v.errs
}

func (v *validator) storage(s *StorageConfig) {
	switch {
	case s.DataDir == "":
		v.add("storage.dataDir", "data directory is required")
	case !filepath.IsAbs(s.DataDir):
		v.add("storage.dataDir", "must be an absolute path")
	}

	// Index files use fixed 4 KiB pages.
	if s.PageSize != 0 && s.PageSize != 4096 {
		v.add("storage.pageSize", "must be 4096")
	}
	if s.CountScanLimit < 0 {
		v.add("storage.countScanLimit", "must be non-negative")
	}
}

func (v *validator) logging(l *LogConfig) {
	if _, err := logging.ParseLevel(l.Level); err != nil {
		v.add("logging.level", "must be debug, info, warn or error")
	}
	if _, err := logging.ParseFormat(l.Format); err != nil {
		v.add("logging.format", "must be text or json")
	}

	switch out := l.Output; {
	case out == "", out == "stdout", out == "stderr":
	case !filepath.IsAbs(out):
		v.add("logging.output", "must be stdout, stderr or an absolute file path")
	default:
		dir := filepath.Dir(out)
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			v.add("logging.output", "directory %s does not exist", dir)
		}
	}
}

func (v *validator) indexes(defs []IndexConfig) {
	seen := make(map[string]bool, len(defs))

	for i, def := range defs {
		prefix := fmt.Sprintf("indexes[%d].", i)

		name := strings.ToLower(def.Attribute)
		switch {
		case !attributePattern.MatchString(def.Attribute):
			v.add(prefix+"attribute", "invalid attribute name %q", def.Attribute)
		case seen[name]:
			v.add(prefix+"attribute", "duplicate index for %s", def.Attribute)
		default:
			seen[name] = true
		}

		if def.Backend != "" && def.Backend != BackendMemory && def.Backend != BackendDisk {
			v.add(prefix+"backend", "must be memory or disk")
		}
		if _, err := matching.Lookup(def.Matching); err != nil {
			v.add(prefix+"matching", "%v", err)
		}
	}
}
