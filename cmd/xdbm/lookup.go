package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/oba-ldap/xdbm/internal/index"
	"github.com/oba-ldap/xdbm/internal/matching"
)

var (
	lookupMatching string
	lookupID       bool
)

func init() {
	cmd := newLookupCmd()
	cmd.Flags().StringVar(&lookupMatching, "matching", "", "Matching rule used to normalize the value (default caseIgnoreMatch)")
	cmd.Flags().BoolVar(&lookupID, "id", false, "Treat the argument as an entry id and print its keys")
	rootCmd.AddCommand(cmd)
}

func newLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <file> <value>",
		Short: "Find the entries indexed under a value",
		Long: `The lookup command normalizes a value with a matching rule and prints
the ids of every entry indexed under it. With --id it prints the keys of
one entry instead.

Example:
  xdbm lookup cn.xdbm "Alice Smith"
  xdbm lookup uidnumber.xdbm 1001 --matching integerMatch
  xdbm lookup cn.xdbm 42 --id`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(args)
		},
	}
}

// LookupResult is the output of the lookup command.
type LookupResult struct {
	Attribute string   `json:"attribute"`
	Key       string   `json:"key,omitempty"`
	ID        uint64   `json:"id,omitempty"`
	IDs       []uint64 `json:"ids,omitempty"`
	Keys      []string `json:"keys,omitempty"`
}

func runLookup(args []string) error {
	idx, err := openIndex(args[0])
	if err != nil {
		return err
	}
	defer idx.Close()

	result := LookupResult{Attribute: idx.Attribute()}

	var c index.IndexCursor[[]byte, uint64]
	if lookupID {
		id, perr := strconv.ParseUint(args[1], 10, 64)
		if perr != nil {
			return fmt.Errorf("invalid entry id %q", args[1])
		}
		result.ID = id
		c, err = idx.ReverseIDCursor(id)
	} else {
		var key []byte
		if key, err = normalize(args[1]); err != nil {
			return err
		}
		result.Key = formatKey(key)
		c, err = idx.ForwardKeyCursor(key)
	}
	if err != nil {
		return err
	}
	defer c.Close()

	for {
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
		if lookupID {
			result.Keys = append(result.Keys, formatKey(e.Key()))
		} else {
			result.IDs = append(result.IDs, e.ID())
		}
	}

	if jsonOut {
		return printJSON(result)
	}

	if lookupID {
		for _, k := range result.Keys {
			printInfo("%s\n", k)
		}
	} else {
		for _, id := range result.IDs {
			printInfo("%d\n", id)
		}
	}
	printVerbose("%d matches\n", len(result.IDs)+len(result.Keys))
	return nil
}

// normalize applies the --matching rule to value.
func normalize(value string) ([]byte, error) {
	rule, err := matching.Lookup(lookupMatching)
	if err != nil {
		return nil, err
	}
	key, err := rule.Normalize([]byte(value))
	if err != nil {
		return nil, err
	}
	printVerbose("Normalized key (%s): %s\n", rule.Name(), formatKey(key))
	return key, nil
}
