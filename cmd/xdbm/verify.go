package main

import (
	"errors"

	"github.com/spf13/cobra"
)

// errVerifyFailed is returned when at least one file fails verification.
var errVerifyFailed = errors.New("verification failed")

func init() {
	rootCmd.AddCommand(newVerifyCmd())
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>...",
		Short: "Check the structure of index files",
		Long: `The verify command checks both trees of each index file and that
every forward pair has its reverse pair and vice versa.

Example:
  xdbm verify cn.xdbm
  xdbm verify /var/lib/oba/index/*.xdbm --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(args)
		},
	}
}

// VerifyResult is the verification outcome of one file.
type VerifyResult struct {
	Path  string `json:"path"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func runVerify(args []string) error {
	results := make([]VerifyResult, 0, len(args))
	failed := false
	for _, path := range args {
		r := VerifyResult{Path: path, Valid: true}
		if err := verifyFile(path); err != nil {
			r.Valid = false
			r.Error = err.Error()
			failed = true
		}
		results = append(results, r)
	}

	if jsonOut {
		if err := printJSON(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Valid {
				printInfo("%s: OK\n", r.Path)
			} else {
				printInfo("%s: FAILED: %s\n", r.Path, r.Error)
			}
		}
	}

	if failed {
		return errVerifyFailed
	}
	return nil
}

func verifyFile(path string) error {
	idx, err := openIndex(path)
	if err != nil {
		return err
	}
	defer idx.Close()
	return idx.Verify()
}
