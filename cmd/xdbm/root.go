package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/oba-ldap/xdbm/internal/index"
	"github.com/oba-ldap/xdbm/internal/logging"
	"github.com/oba-ldap/xdbm/internal/matching"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "xdbm",
	Short: "Inspect attribute index files",
	Long: `xdbm inspects the page files of disk attribute indexes. It prints
statistics, dumps the forward and reverse orderings, looks up keys and
entry ids, verifies that both orderings agree, and evaluates search
filters against a configured data directory.

Index files are always opened read-only.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// newLogger returns a stderr logger honoring the global flags.
func newLogger() logging.Logger {
	switch {
	case quiet:
		return logging.NewNop()
	case verbose:
		return logging.NewWithWriter(logging.Config{Level: "debug", Format: "text"}, os.Stderr)
	default:
		return logging.NewWithWriter(logging.Config{Level: "warn", Format: "text"}, os.Stderr)
	}
}

type diskIndex = index.DiskIndex[[]byte, uint64]

// openIndex opens an index file read-only.
func openIndex(path string) (*diskIndex, error) {
	printVerbose("Opening index: %s\n", path)

	idx, err := index.OpenDiskIndex[[]byte, uint64](path, "",
		matching.BytesCodec{}, matching.Uint64Codec{},
		index.WithReadOnly(true),
		index.WithLogger(newLogger()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	return idx, nil
}

// formatKey renders an index key as text when it is printable and as hex
// otherwise.
func formatKey(key []byte) string {
	if utf8.Valid(key) {
		printable := true
		for _, r := range string(key) {
			if !unicode.IsPrint(r) {
				printable = false
				break
			}
		}
		if printable {
			return string(key)
		}
	}
	return "0x" + hex.EncodeToString(key)
}
