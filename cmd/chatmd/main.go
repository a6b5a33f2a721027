// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the chatmd CLI.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/chatmd/internal/runlog"
	"github.com/pdiddy/chatmd/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// runLog receives structured records for batch runs. It is opened before
// any subcommand runs and discards everything unless a log file is
// configured.
var (
	runLog       *slog.Logger
	runLogCloser io.Closer
)

// rootCmd is the base command for the chatmd CLI.
var rootCmd = &cobra.Command{
	Use:   "chatmd",
	Short: "Convert chat session exports to Markdown",
	Long: `chatmd converts exported chat session JSON files into readable Markdown
documents and aggregates converted documents into a single navigable file.

Each stage is a subcommand: convert turns exports into Markdown, aggregate
merges a tree of Markdown into one document, pipeline runs both, catalog
indexes converted sessions for search, and preview renders a document in
the terminal.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, closer, err := runlog.Open(logConfig(cmd))
		if err != nil {
			return err
		}
		runLog = logger
		runLogCloser = closer
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if runLogCloser != nil {
			runLogCloser.Close()
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./chatmd.yaml or ~/.config/chatmd/config.yaml)")
	rootCmd.PersistentFlags().String("log-file", "", "write a JSON run log to this file (rotated)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("chatmd")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "chatmd"))
		}
	}

	viper.SetEnvPrefix("CHATMD")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// logConfig resolves the run log settings: the flag wins, then the
// config file.
func logConfig(cmd *cobra.Command) types.LogConfig {
	return types.LogConfig{
		File:       flagOrConfigString(cmd, "log-file", "log.file", ""),
		MaxSizeMB:  viper.GetInt("log.max_size_mb"),
		MaxBackups: viper.GetInt("log.max_backups"),
		MaxAgeDays: viper.GetInt("log.max_age_days"),
	}
}

// flagOrConfigString resolves a setting: an explicitly set flag wins,
// then the config file, then the flag's default.
func flagOrConfigString(cmd *cobra.Command, flag, key, fallback string) string {
	if f := cmd.Flags().Lookup(flag); f != nil {
		if f.Changed {
			return f.Value.String()
		}
		fallback = f.DefValue
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return fallback
}

func flagOrConfigInt(cmd *cobra.Command, flag, key string, fallback int) int {
	if cmd.Flags().Changed(flag) {
		v, _ := cmd.Flags().GetInt(flag)
		return v
	}
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	if v, err := cmd.Flags().GetInt(flag); err == nil {
		return v
	}
	return fallback
}

func flagOrConfigBool(cmd *cobra.Command, flag, key string) bool {
	if cmd.Flags().Changed(flag) {
		v, _ := cmd.Flags().GetBool(flag)
		return v
	}
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	v, _ := cmd.Flags().GetBool(flag)
	return v
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
