package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperengineering/grmsync/internal/scope"
	"github.com/hyperengineering/grmsync/internal/store"
	"github.com/spf13/cobra"
)

// regionParentField holds the parent region id on administrative_region rows.
const regionParentField = "parent"

var regionMaxDepth int

var regionCmd = &cobra.Command{
	Use:   "region",
	Short: "Inspect administrative regions",
}

var regionAncestorsCmd = &cobra.Command{
	Use:   "ancestors <region-id>",
	Short: "Print the parent chain of a region, nearest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegionAncestors,
}

var regionWithinCmd = &cobra.Command{
	Use:   "within <region-id> <allowed-region-id>...",
	Short: "Check whether a region is one of, or below, the given regions",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runRegionWithin,
}

func init() {
	regionAncestorsCmd.Flags().IntVar(&regionMaxDepth, "max-depth", scope.DefaultMaxRegionDepth,
		"Stop after this many levels")
	regionCmd.AddCommand(regionAncestorsCmd)
	regionCmd.AddCommand(regionWithinCmd)
}

// regionParents reads parent links from the administrative_region table.
func regionParents(st store.EntityStore) scope.ParentFunc {
	return func(ctx context.Context, id string) (string, error) {
		rec, err := st.Get(ctx, "administrative_region", id)
		if err != nil {
			return "", err
		}
		parent, _ := rec[regionParentField].(string)
		return parent, nil
	}
}

func runRegionAncestors(cmd *cobra.Command, args []string) error {
	id := args[0]
	ctx := context.Background()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	ancestors, err := scope.RegionAncestors(ctx, regionParents(st), id, regionMaxDepth)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("region %q or one of its parents not found", id)
		}
		return err
	}
	if ancestors == nil {
		ancestors = []string{}
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"region": id, "ancestors": ancestors})
	}
	if len(ancestors) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is a root region.\n", id)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", id, strings.Join(ancestors, " -> "))
	return nil
}

func runRegionWithin(cmd *cobra.Command, args []string) error {
	id, allowed := args[0], args[1:]
	ctx := context.Background()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	ok, err := scope.WithinRegion(ctx, regionParents(st), id, allowed)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("region %q or one of its parents not found", id)
		}
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"region": id, "allowed": allowed, "within": ok})
	}
	if ok {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is within %s\n", id, strings.Join(allowed, ", "))
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is outside %s\n", id, strings.Join(allowed, ", "))
	}
	return nil
}
