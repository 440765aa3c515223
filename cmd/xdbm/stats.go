package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newStatsCmd())
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file>",
		Short: "Show index file statistics",
		Long: `The stats command shows the attribute, pair counts, distinct keys and
page usage of an index file.

Example:
  xdbm stats /var/lib/oba/index/cn.xdbm
  xdbm stats /var/lib/oba/index/cn.xdbm --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(args)
		},
	}
}

// IndexStats is the output of the stats command.
type IndexStats struct {
	Path          string
	Attribute     string
	ForwardPairs  uint64
	ReversePairs  uint64
	DistinctKeys  int
	DistinctIDs   int
	TotalPages    uint64
	FreePages     uint64
	PageSize      int
	FileSizeBytes int64
}

func runStats(args []string) error {
	idx, err := openIndex(args[0])
	if err != nil {
		return err
	}
	defer idx.Close()

	ds, err := idx.Stats()
	if err != nil {
		return err
	}
	stats := IndexStats{
		Path:          ds.Path,
		Attribute:     ds.Attribute,
		ForwardPairs:  ds.Forward,
		ReversePairs:  ds.Reverse,
		TotalPages:    ds.Pages.TotalPages,
		FreePages:     ds.Pages.FreePages,
		PageSize:      ds.Pages.PageSize,
		FileSizeBytes: ds.Pages.FileSizeBytes,
	}

	if stats.DistinctKeys, stats.DistinctIDs, err = distinct(idx); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(stats)
	}

	printInfo("\nIndex Statistics: %s\n", stats.Path)
	printInfo("%s\n\n", strings.Repeat("=", 40))

	printInfo("Index:\n")
	printInfo("  Attribute: %s\n", stats.Attribute)
	printInfo("  Forward pairs: %s\n", formatNumber(int64(stats.ForwardPairs)))
	printInfo("  Reverse pairs: %s\n", formatNumber(int64(stats.ReversePairs)))
	printInfo("  Distinct keys: %s\n", formatNumber(int64(stats.DistinctKeys)))
	printInfo("  Distinct ids: %s\n\n", formatNumber(int64(stats.DistinctIDs)))

	printInfo("File:\n")
	printInfo("  Size: %s (%s bytes)\n", formatBytes(stats.FileSizeBytes), formatNumber(stats.FileSizeBytes))
	printInfo("  Pages: %s total, %s free\n", formatNumber(int64(stats.TotalPages)), formatNumber(int64(stats.FreePages)))
	printInfo("  Page size: %d\n", stats.PageSize)
	return nil
}

// distinct counts the distinct keys of the forward ordering and the
// distinct ids of the reverse ordering.
func distinct(idx *diskIndex) (keys, ids int, err error) {
	fwd, err := idx.ForwardCursor()
	if err != nil {
		return 0, 0, err
	}
	defer fwd.Close()

	var prev []byte
	for {
		ok, err := fwd.Next()
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			break
		}
		e, err := fwd.Get()
		if err != nil {
			return 0, 0, err
		}
		if keys == 0 || !bytes.Equal(prev, e.Key()) {
			keys++
			prev = bytes.Clone(e.Key())
		}
	}

	rev, err := idx.ReverseCursor()
	if err != nil {
		return 0, 0, err
	}
	defer rev.Close()

	var last uint64
	for {
		ok, err := rev.Next()
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			break
		}
		e, err := rev.Get()
		if err != nil {
			return 0, 0, err
		}
		if ids == 0 || e.ID() != last {
			ids++
			last = e.ID()
		}
	}
	return keys, ids, nil
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func formatNumber(n int64) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(c)
	}
	return result.String()
}
