package main

import (
	"github.com/spf13/cobra"

	"github.com/oba-ldap/xdbm/internal/index"
)

var (
	dumpReverse bool
	dumpLimit   int
	dumpKey     string
)

func init() {
	cmd := newDumpCmd()
	cmd.Flags().BoolVar(&dumpReverse, "reverse", false, "Dump the reverse ordering (id, key)")
	cmd.Flags().IntVar(&dumpLimit, "limit", 0, "Maximum pairs to print (0 = unlimited)")
	cmd.Flags().StringVar(&dumpKey, "from", "", "Start at the first pair with a key >= this raw key")
	rootCmd.AddCommand(cmd)
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <file>",
		Short: "Print the pairs of an index file in order",
		Long: `The dump command prints every (key, id) pair of an index file in
forward order, or every (id, key) pair in reverse order.

Example:
  xdbm dump cn.xdbm
  xdbm dump cn.xdbm --reverse --limit 20
  xdbm dump cn.xdbm --from smith --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args)
		},
	}
}

// Pair is one printed index pair.
type Pair struct {
	Key string `json:"key"`
	ID  uint64 `json:"id"`
}

func runDump(args []string) error {
	idx, err := openIndex(args[0])
	if err != nil {
		return err
	}
	defer idx.Close()

	var c index.IndexCursor[[]byte, uint64]
	if dumpReverse {
		c, err = idx.ReverseCursor()
	} else {
		c, err = idx.ForwardCursor()
	}
	if err != nil {
		return err
	}
	defer c.Close()

	if dumpKey != "" && !dumpReverse {
		if err := c.BeforeKey([]byte(dumpKey)); err != nil {
			return err
		}
	}

	var pairs []Pair
	for dumpLimit <= 0 || len(pairs) < dumpLimit {
		ok, err := c.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		e, err := c.Get()
		if err != nil {
			return err
		}
		pairs = append(pairs, Pair{Key: formatKey(e.Key()), ID: e.ID()})
	}

	if jsonOut {
		if pairs == nil {
			pairs = []Pair{}
		}
		return printJSON(pairs)
	}

	for _, p := range pairs {
		if dumpReverse {
			printInfo("%d\t%s\n", p.ID, p.Key)
		} else {
			printInfo("%s\t%d\n", p.Key, p.ID)
		}
	}
	printVerbose("%d pairs\n", len(pairs))
	return nil
}
