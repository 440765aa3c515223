package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oba-ldap/xdbm/internal/config"
	"github.com/oba-ldap/xdbm/internal/filter"
	"github.com/oba-ldap/xdbm/internal/index"
	"github.com/oba-ldap/xdbm/internal/logging"
)

var (
	searchConfig  string
	searchDataDir string
	searchPlan    bool
)

func init() {
	cmd := newSearchCmd()
	cmd.Flags().StringVarP(&searchConfig, "config", "c", "", "Path to configuration file (required)")
	cmd.Flags().StringVar(&searchDataDir, "data-dir", "", "Override storage.dataDir of the configuration")
	cmd.Flags().BoolVar(&searchPlan, "plan", false, "Print the estimate without evaluating the filter")
	_ = cmd.MarkFlagRequired("config")
	rootCmd.AddCommand(cmd)
}

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <filter>",
		Short: "Evaluate a search filter against the indexes of a data directory",
		Long: `The search command opens every disk index of a configuration
read-only and prints the ids of the entries that may match an LDAP
filter. Memory indexes start empty, so filters on their attributes find
nothing.

Example:
  xdbm search -c oba.yaml "(&(cn=alice*)(mail=*))"
  xdbm search -c oba.yaml "(uidNumber>=1000)" --plan`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), args)
		},
	}
}

// SearchResult is the output of the search command.
type SearchResult struct {
	Filter   string   `json:"filter"`
	Estimate string   `json:"estimate"`
	IDs      []uint64 `json:"ids"`
}

func runSearch(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	f, err := filter.Parse(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(searchConfig)
	if err != nil {
		return err
	}
	if searchDataDir != "" {
		cfg.Storage.DataDir = searchDataDir
	}
	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	cfg.Storage.ReadOnly = true

	logger := newLogger()
	if verbose {
		logger = logging.NewWithWriter(logging.Config{Level: "debug", Format: cfg.Logging.Format}, os.Stderr)
	}

	m, err := index.NewManager(cfg.Storage, cfg.Indexes, logger)
	if err != nil {
		return err
	}
	defer m.Close()

	est, err := filter.NewPlanner(m).Estimate(f)
	if err != nil {
		return err
	}
	result := SearchResult{Filter: f.String(), Estimate: est.String(), IDs: []uint64{}}

	if !searchPlan {
		ids, err := filter.NewEvaluator(m, logger).Candidates(ctx, f)
		if err != nil {
			return err
		}
		if ids != nil {
			result.IDs = ids
		}
	}

	if jsonOut {
		return printJSON(result)
	}

	printVerbose("Filter: %s\n", result.Filter)
	printVerbose("Estimate: %s\n", result.Estimate)
	if searchPlan {
		printInfo("%s\n", result.Estimate)
		return nil
	}
	for _, id := range result.IDs {
		printInfo("%d\n", id)
	}
	return nil
}
