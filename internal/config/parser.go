package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parser errors.
var (
	ErrInvalidYAML  = errors.New("invalid YAML format")
	ErrFileNotFound = errors.New("configuration file not found")
)

// envVarPattern matches ${NAME} and ${NAME:-fallback}.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// LoadConfig reads and parses the YAML file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over DefaultConfig after expanding environment
// references. Unknown keys are rejected. A configured indexes list
// replaces the defaults, and its entries default to the disk backend.
func ParseConfig(data []byte) (*Config, error) {
	config := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(substituteEnvVars(data)))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	for i := range config.Indexes {
		if config.Indexes[i].Backend == "" {
			config.Indexes[i].Backend = BackendDisk
		}
	}
	return config, nil
}

// substituteEnvVars expands ${NAME} to the variable's value. With
// ${NAME:-fallback} an unset or empty variable yields fallback.
func substituteEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(ref []byte) []byte {
		name := string(ref[2 : len(ref)-1])
		name, fallback, hasFallback := strings.Cut(name, ":-")

		value := os.Getenv(name)
		if value == "" && hasFallback {
			value = fallback
		}
		return []byte(value)
	})
}

// Marshal renders the configuration as YAML.
func Marshal(config *Config) ([]byte, error) {
	return yaml.Marshal(config)
}
