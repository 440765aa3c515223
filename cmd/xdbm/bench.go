package main

import (
	"errors"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/oba-ldap/xdbm/benchmarks"
)

var errTargetsMissed = errors.New("benchmark targets not met")

var benchStrict bool

func init() {
	cmd := newBenchReportCmd()
	cmd.Flags().BoolVar(&benchStrict, "strict", false, "Exit with an error when a target is not met")
	rootCmd.AddCommand(cmd)
}

func newBenchReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bench-report [file]",
		Short: "Summarize index benchmark output",
		Long: `The bench-report command reads the output of go test -bench from a
file, or from standard input when the file is omitted or "-", and prints
the results with the index performance targets.

Example:
  go test -bench=. -benchmem ./internal/... | xdbm bench-report
  xdbm bench-report bench.txt --json --strict`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return runBenchReport(path)
		},
	}
}

func runBenchReport(path string) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	results, err := benchmarks.ParseBenchmarkOutput(r)
	if err != nil {
		return err
	}
	printVerbose("Parsed %d benchmark results\n", len(results))

	report := benchmarks.NewReport()
	report.SetSystemInfo(runtime.Version(), runtime.GOOS, runtime.GOARCH)
	report.AddResults(results)

	if jsonOut {
		err = report.WriteJSON(os.Stdout)
	} else if !quiet {
		err = report.WriteText(os.Stdout)
	}
	if err != nil {
		return err
	}

	if benchStrict && !report.Passed() {
		return errTargetsMissed
	}
	return nil
}
