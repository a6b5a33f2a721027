// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/chatmd/internal/catalog"
	"github.com/pdiddy/chatmd/pkg/types"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the session catalog (list, search, export)",
	Long: `Catalog manages a local SQLite index of converted sessions. Use
subcommands to list indexed sessions, search their full text, or export
the index to YAML or JSON.`,
}

// --- list subcommand ---

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cataloged sessions, most recent first",
	RunE:  runCatalogList,
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	store, err := mustOpenCatalog(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.List(context.Background())
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatSessions(sessions, jsonOutput)
}

// --- search subcommand ---

var catalogSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over converted session content",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCatalogSearch,
}

func runCatalogSearch(cmd *cobra.Command, args []string) error {
	store, err := mustOpenCatalog(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.Search(context.Background(), strings.Join(args, " "))
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatSessions(sessions, jsonOutput)
}

// --- export subcommand ---

var catalogExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the session catalog to YAML or JSON",
	RunE:  runCatalogExport,
}

func runCatalogExport(cmd *cobra.Command, args []string) error {
	store, err := mustOpenCatalog(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	dir := catalogDir(cmd)
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "yaml", "":
		if err := store.ExportYAML(context.Background()); err != nil {
			return err
		}
		fmt.Println("Exported to", filepath.Join(dir, "index", "export.yaml"))
	case "json":
		if err := store.ExportJSON(context.Background()); err != nil {
			return err
		}
		fmt.Println("Exported to", filepath.Join(dir, "index", "export.json"))
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	return nil
}

// --- shared helpers ---

func catalogDir(cmd *cobra.Command) string {
	return flagOrConfigString(cmd, "catalog-dir", "catalog.catalog_dir", "catalog")
}

func mustOpenCatalog(cmd *cobra.Command) (*catalog.Store, error) {
	return catalog.NewStore(types.CatalogConfig{
		CatalogDir: catalogDir(cmd),
		MaxResults: flagOrConfigInt(cmd, "max-results", "catalog.max_results", 20),
	})
}

func formatSessions(sessions []types.SessionSummary, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sessions)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-12s  %5s  %6s  %-19s  %s\n",
		"ID", "Requester", "Turns", "Blocks", "Converted", "Markdown")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))

	for _, s := range sessions {
		id := s.ID
		if len(id) > 36 {
			id = id[:33] + "..."
		}
		requester := s.Requester
		if len(requester) > 12 {
			requester = requester[:9] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-12s  %5d  %6d  %-19s  %s\n",
			id, requester, s.Turns, s.CodeBlocks,
			s.ConvertedAt.Local().Format("2006-01-02 15:04:05"), s.MarkdownPath)
	}

	fmt.Fprintf(os.Stdout, "\n%d sessions\n", len(sessions))
	return nil
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	catalogCmd.PersistentFlags().String("catalog-dir", "catalog", "base directory for the catalog (contains index/)")
	catalogCmd.PersistentFlags().Int("max-results", 20, "maximum number of search results")

	catalogListCmd.Flags().Bool("json", false, "output sessions as JSON")
	catalogSearchCmd.Flags().Bool("json", false, "output results as JSON")
	catalogExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogSearchCmd)
	catalogCmd.AddCommand(catalogExportCmd)

	rootCmd.AddCommand(catalogCmd)
}
