package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oba-ldap/xdbm/internal/config"
	"github.com/oba-ldap/xdbm/internal/index"
)

const testConfig = `logging:
  level: error
  format: text
  output: stderr
storage:
  dataDir: %s
indexes:
  - attribute: cn
    matching: caseIgnoreMatch
  - attribute: uidNumber
    matching: integerMatch
  - attribute: mail
`

// testDirectory writes a configuration and indexes four entries into its
// data directory. It returns the configuration path and the data
// directory.
func testDirectory(t *testing.T) (string, string) {
	t.Helper()

	root := t.TempDir()
	dataDir := filepath.Join(root, "index")
	cfgPath := filepath.Join(root, "xdbm.yaml")
	if err := os.WriteFile(cfgPath, []byte(fmt.Sprintf(testConfig, dataDir)), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	m, err := index.NewManager(cfg.Storage, cfg.Indexes, nil)
	if err != nil {
		t.Fatalf("failed to open indexes: %v", err)
	}

	add := func(id uint64, cn, uidNumber, mail string) {
		e := index.NewEntry(id, "uid="+cn+",dc=example,dc=com")
		e.SetAttribute("cn", [][]byte{[]byte(cn)})
		e.SetAttribute("uidNumber", [][]byte{[]byte(uidNumber)})
		if mail != "" {
			e.SetAttribute("mail", [][]byte{[]byte(mail)})
		}
		if err := m.IndexEntry(e); err != nil {
			t.Fatalf("failed to index entry %d: %v", id, err)
		}
	}
	add(1, "Alice Smith", "1001", "alice@example.com")
	add(2, "Bob Jones", "1002", "")
	add(3, "Carol Smith", "1003", "carol@example.com")
	add(4, "Alicia Keys", "999", "")

	if err := m.Close(); err != nil {
		t.Fatalf("failed to close indexes: %v", err)
	}
	return cfgPath, dataDir
}

// resetFlags restores every command flag to its default.
func resetFlags() {
	verbose, quiet, jsonOut = false, false, false
	dumpReverse, dumpLimit, dumpKey = false, 0, ""
	lookupMatching, lookupID = "", false
	searchConfig, searchDataDir, searchPlan = "", "", false
	configFile = ""
	benchStrict = false
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	return buf.String(), fnErr
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("output missing expected string %q\nGot: %s", want, output)
		}
	}
}

// decodeJSON unmarshals output into v
func decodeJSON(t *testing.T, output string, v interface{}) {
	t.Helper()
	if err := json.Unmarshal([]byte(output), v); err != nil {
		t.Fatalf("invalid JSON output: %v\nOutput: %s", err, output)
	}
}
