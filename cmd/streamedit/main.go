// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Command streamedit parses file edits out of model output transcripts or
// live streams and applies them to a working directory.
// Implements: prd011-cli R1-R6.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	gitpkg "github.com/petar-djukic/streamedit/internal/git"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "streamedit",
		Short: "Streaming LLM output parser and diff applier",
		Long:  "streamedit recognizes file blocks in streamed model output, applies search/replace and unified diffs with tolerant matching, and writes the results to your working tree.",
	}

	// Global flags.
	rootCmd.PersistentFlags().String("workdir", ".", "Working directory files are read from and written to")
	rootCmd.PersistentFlags().String("format", "shell", "Stream format: shell or xml")
	rootCmd.PersistentFlags().Bool("lenient", false, "Keep applying remaining blocks after one fails")
	rootCmd.PersistentFlags().Float64("fuzzy-threshold", 0, "Minimum fuzzy match similarity (0 = default)")
	rootCmd.PersistentFlags().Bool("git", false, "Auto-commit written files to the enclosing repository")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn, error")

	// Bind flags to viper.
	viper.BindPFlag("workdir", rootCmd.PersistentFlags().Lookup("workdir"))
	viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	viper.BindPFlag("lenient", rootCmd.PersistentFlags().Lookup("lenient"))
	viper.BindPFlag("fuzzy-threshold", rootCmd.PersistentFlags().Lookup("fuzzy-threshold"))
	viper.BindPFlag("git", rootCmd.PersistentFlags().Lookup("git"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))

	// Env vars: STREAMEDIT_FORMAT, STREAMEDIT_WORKDIR, etc.
	viper.SetEnvPrefix("STREAMEDIT")
	viper.AutomaticEnv()

	// Config file.
	viper.SetConfigName(".streamedit")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.ReadInConfig() // Ignore error; config file is optional.

	// Add commands.
	rootCmd.AddCommand(newApplyCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(newStreamCmd())
	rootCmd.AddCommand(newUndoCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the stderr logger the parsers report warnings through.
func newLogger() *slog.Logger {
	var level slog.Level
	switch viper.GetString("log-level") {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newVersionCmd creates the "version" command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print streamedit version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("streamedit %s\n", version)
		},
	}
}

// newUndoCmd creates the "undo" command.
func newUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Revert the last streamedit commit",
		Long:  "Undo performs a soft reset of the last commit if streamedit made it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := gitpkg.Open(gitpkg.Config{WorkDir: viper.GetString("workdir")})
			if err != nil {
				return fmt.Errorf("opening repository: %w", err)
			}

			if err := repo.Undo(); err != nil {
				return fmt.Errorf("undo failed: %w", err)
			}

			fmt.Println("Successfully reverted last streamedit commit.")
			return nil
		},
	}
}
