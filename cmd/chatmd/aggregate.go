// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/pdiddy/chatmd/internal/aggregate"
	"github.com/pdiddy/chatmd/pkg/types"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate [dir]",
	Short: "Merge a tree of Markdown documents into one file",
	Long: `Aggregate collects every Markdown file under a directory into a single
document: a linked index up front, then each source under its own
heading. Sources are ordered by name (the default) or by modification
time, and can be filtered with --include and --exclude patterns.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAggregate,
}

func runAggregate(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	output := flagOrConfigString(cmd, "output", "aggregate.output", "AGGREGATED.md")
	if !filepath.IsAbs(output) {
		output = filepath.Join(dir, output)
	}

	opts, err := aggregateOptions(cmd)
	if err != nil {
		return err
	}

	result, err := aggregate.Aggregate(dir, output, opts, os.Stdout)
	if err != nil {
		return err
	}
	runLog.Info("aggregated",
		"root", dir,
		"output", result.Output,
		"merged", len(result.Sources),
		"skipped", len(result.Skipped))
	return nil
}

func aggregateOptions(cmd *cobra.Command) (aggregate.Options, error) {
	opts := aggregate.Options{
		Sort: types.SortKey(flagOrConfigString(cmd, "sort", "aggregate.sort", string(types.SortByName))),
	}

	if pat := flagOrConfigString(cmd, "include", "aggregate.include", ""); pat != "" {
		re, err := regexp.Compile(pat)
		if err != nil {
			return opts, fmt.Errorf("invalid --include pattern: %w", err)
		}
		opts.Include = re
	}
	if pat := flagOrConfigString(cmd, "exclude", "aggregate.exclude", ""); pat != "" {
		re, err := regexp.Compile(pat)
		if err != nil {
			return opts, fmt.Errorf("invalid --exclude pattern: %w", err)
		}
		opts.Exclude = re
	}
	return opts, nil
}

func init() {
	aggregateCmd.Flags().StringP("output", "o", "AGGREGATED.md", "combined document path (relative paths resolve under dir)")
	aggregateCmd.Flags().String("sort", "name", "source ordering: name or mtime")
	aggregateCmd.Flags().String("include", "", "only merge sources whose relative path matches this regexp")
	aggregateCmd.Flags().String("exclude", "", "drop sources whose relative path matches this regexp")

	rootCmd.AddCommand(aggregateCmd)
}
