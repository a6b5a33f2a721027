// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/chatmd/internal/aggregate"
	"github.com/pdiddy/chatmd/internal/convert"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline [dir]",
	Short: "Convert a tree of exports, then aggregate the results",
	Long: `Pipeline runs both stages over a directory: every chat export is
converted to Markdown, then the converted documents are merged into a
single combined file. With --output-dir the Markdown (and the combined
document) land under that directory instead of next to the sources.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPipeline,
}

func runPipeline(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("stat %s: %w", dir, err)
	}

	opts, err := convertOptions(cmd)
	if err != nil {
		return err
	}

	started := time.Now()
	batch, results, err := convert.ConvertTree(dir, opts, os.Stdout)
	if err != nil {
		return err
	}
	recordBatch(cmd, dir, started, batch, results)

	// The aggregation stage reads wherever the converted Markdown went.
	mdRoot := dir
	if opts.OutputDir != "" {
		mdRoot = opts.OutputDir
	}

	output := flagOrConfigString(cmd, "output", "aggregate.output", "AGGREGATED.md")
	if !filepath.IsAbs(output) {
		output = filepath.Join(mdRoot, output)
	}
	aggOpts, err := aggregateOptions(cmd)
	if err != nil {
		return err
	}

	fmt.Println()
	result, err := aggregate.Aggregate(mdRoot, output, aggOpts, os.Stdout)
	if err != nil {
		return err
	}

	runLog.Info("pipeline complete",
		"root", dir,
		"converted", batch.Converted,
		"skipped", batch.Skipped,
		"failed", batch.Failed,
		"merged", len(result.Sources),
		"output", result.Output,
		"duration", time.Since(started).String())
	return nil
}

func init() {
	pipelineCmd.Flags().String("output-dir", "", "mirror converted Markdown under this directory")
	pipelineCmd.Flags().Int("workers", 4, "concurrent conversions")
	pipelineCmd.Flags().String("since", "", "only convert files modified at or after this date (YYYY-MM-DD or RFC 3339)")
	pipelineCmd.Flags().String("until", "", "only convert files modified at or before this date (YYYY-MM-DD or RFC 3339)")
	pipelineCmd.Flags().Bool("embed-files", false, "inline files referenced by turns into the output")
	pipelineCmd.Flags().String("file-root", "", "directory searched for referenced files")
	pipelineCmd.Flags().Int("image-max-bytes", 0, "largest image inlined as a data URI (0 = default)")
	pipelineCmd.Flags().Int("text-max-bytes", 0, "largest text file inlined as a fence (0 = default)")
	pipelineCmd.Flags().String("catalog-dir", "", "record converted sessions in the catalog under this directory")
	pipelineCmd.Flags().StringP("output", "o", "AGGREGATED.md", "combined document path (relative paths resolve under the Markdown root)")
	pipelineCmd.Flags().String("sort", "name", "source ordering: name or mtime")
	pipelineCmd.Flags().String("include", "", "only merge sources whose relative path matches this regexp")
	pipelineCmd.Flags().String("exclude", "", "drop sources whose relative path matches this regexp")

	rootCmd.AddCommand(pipelineCmd)
}
