package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/chatmd/internal/preview"
)

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Render a Markdown document in the terminal",
	Long: `Preview renders a converted Markdown document with terminal styling.
When stdout is not a terminal the raw file is written instead, so the
command composes with pipes and pagers.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return preview.Render(args[0], os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
}
