// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/chatmd/internal/catalog"
	"github.com/pdiddy/chatmd/internal/convert"
	"github.com/pdiddy/chatmd/internal/embed"
	"github.com/pdiddy/chatmd/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert [path]",
	Short: "Convert chat export JSON into Markdown",
	Long: `Convert transforms exported chat session JSON into Markdown with a
metadata header and one section per turn. Given a directory, every .json
file underneath it is processed; files that are not chat exports are
skipped and per-file failures do not stop the batch.

With --embed-files, files referenced by turns are inlined into the
output: images as data URIs, text and code as fenced blocks, and
anything else copied next to the document and linked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	opts, err := convertOptions(cmd)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return convertSingle(cmd, path, opts)
	}

	started := time.Now()
	batch, results, err := convert.ConvertTree(path, opts, os.Stdout)
	if err != nil {
		return err
	}
	runLog.Info("batch complete",
		"root", path,
		"converted", batch.Converted,
		"skipped", batch.Skipped,
		"failed", batch.Failed,
		"duration", time.Since(started).String())

	recordBatch(cmd, path, started, batch, results)
	return nil
}

func convertSingle(cmd *cobra.Command, src string, opts *convert.Options) error {
	dst, _ := cmd.Flags().GetString("output")
	if dst == "" {
		dst = convert.DefaultOutput(src)
	}
	summary, err := convert.ConvertFile(src, dst, opts)
	if err != nil {
		return err
	}
	fmt.Printf("converted: %s -> %s\n", src, dst)
	runLog.Info("converted", "source", src, "output", dst, "turns", summary.Turns)

	store, err := openCatalog(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "catalog: %v\n", err)
		return nil
	}
	if store == nil {
		return nil
	}
	defer store.Close()
	if err := recordSession(context.Background(), store, *summary); err != nil {
		fmt.Fprintf(os.Stderr, "catalog: %v\n", err)
	}
	return nil
}

// convertOptions assembles conversion settings from flags and config.
func convertOptions(cmd *cobra.Command) (*convert.Options, error) {
	opts := &convert.Options{
		OutputDir: flagOrConfigString(cmd, "output-dir", "convert.output_dir", ""),
		Workers:   flagOrConfigInt(cmd, "workers", "convert.workers", 4),
	}

	since, _ := cmd.Flags().GetString("since")
	t, err := parseTimeFlag(since)
	if err != nil {
		return nil, fmt.Errorf("invalid --since: %w", err)
	}
	opts.ModifiedSince = t

	until, _ := cmd.Flags().GetString("until")
	t, err = parseTimeFlag(until)
	if err != nil {
		return nil, fmt.Errorf("invalid --until: %w", err)
	}
	opts.ModifiedUntil = t

	if flagOrConfigBool(cmd, "embed-files", "embed.enable") {
		cfg := types.EmbedConfig{
			Enable:        true,
			FileRoot:      flagOrConfigString(cmd, "file-root", "embed.file_root", ""),
			ImageMaxBytes: int64(flagOrConfigInt(cmd, "image-max-bytes", "embed.image_max_bytes", 0)),
			TextMaxBytes:  int64(flagOrConfigInt(cmd, "text-max-bytes", "embed.text_max_bytes", 0)),
			AssetsDirName: viper.GetString("embed.assets_dir_name"),
		}
		embedder := embed.New(cfg)
		opts.Attachments = embedder.For
	}
	return opts, nil
}

// parseTimeFlag accepts a date or an RFC 3339 timestamp.
func parseTimeFlag(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

// openCatalog opens the session catalog when one is configured, or
// returns nil when cataloging is disabled.
func openCatalog(cmd *cobra.Command) (*catalog.Store, error) {
	dir := flagOrConfigString(cmd, "catalog-dir", "catalog.catalog_dir", "")
	if dir == "" {
		return nil, nil
	}
	return catalog.NewStore(types.CatalogConfig{
		CatalogDir: dir,
		MaxResults: viper.GetInt("catalog.max_results"),
	})
}

// recordBatch writes converted sessions and the run outcome into the
// catalog. The catalog is a side index: trouble there is reported to
// stderr but never fails the batch.
func recordBatch(cmd *cobra.Command, root string, started time.Time, batch convert.BatchResult, results []convert.FileResult) {
	store, err := openCatalog(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "catalog: %v\n", err)
		return
	}
	if store == nil {
		return
	}
	defer store.Close()

	ctx := context.Background()
	for _, res := range results {
		if res.Summary == nil {
			continue
		}
		if err := recordSession(ctx, store, *res.Summary); err != nil {
			fmt.Fprintf(os.Stderr, "catalog: %v\n", err)
		}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	if _, err := store.RecordRun(ctx, catalog.Run{
		StartedAt:  started,
		FinishedAt: time.Now(),
		Root:       absRoot,
		Converted:  batch.Converted,
		Skipped:    batch.Skipped,
		Failed:     batch.Failed,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "catalog: %v\n", err)
	}
}

// recordSession indexes one converted session, reading back the written
// Markdown so the catalog's full-text search covers the document.
func recordSession(ctx context.Context, store *catalog.Store, sum types.SessionSummary) error {
	content, err := os.ReadFile(sum.MarkdownPath)
	if err != nil {
		return fmt.Errorf("reading %s for indexing: %w", sum.MarkdownPath, err)
	}
	return store.RecordSession(ctx, sum, string(content))
}

func init() {
	convertCmd.Flags().StringP("output", "o", "", "output file for single-file conversion (default: source with .md extension)")
	convertCmd.Flags().String("output-dir", "", "mirror converted Markdown under this directory")
	convertCmd.Flags().Int("workers", 4, "concurrent conversions in batch mode")
	convertCmd.Flags().String("since", "", "only convert files modified at or after this date (YYYY-MM-DD or RFC 3339)")
	convertCmd.Flags().String("until", "", "only convert files modified at or before this date (YYYY-MM-DD or RFC 3339)")
	convertCmd.Flags().Bool("embed-files", false, "inline files referenced by turns into the output")
	convertCmd.Flags().String("file-root", "", "directory searched for referenced files")
	convertCmd.Flags().Int("image-max-bytes", 0, "largest image inlined as a data URI (0 = default)")
	convertCmd.Flags().Int("text-max-bytes", 0, "largest text file inlined as a fence (0 = default)")
	convertCmd.Flags().String("catalog-dir", "", "record converted sessions in the catalog under this directory")

	rootCmd.AddCommand(convertCmd)
}
