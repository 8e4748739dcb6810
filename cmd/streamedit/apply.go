// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Implements: prd011-cli R2 (apply), R3 (validate).
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petar-djukic/streamedit/internal/workspace"
	"github.com/petar-djukic/streamedit/pkg/streamedit"
	"github.com/petar-djukic/streamedit/pkg/types"
)

// newApplyCmd creates the "apply" command.
func newApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a diff file to a target file",
		Long:  "Apply reads a search/replace or unified diff and applies it to the target file in the working directory.",
		RunE:  runApply,
	}

	cmd.Flags().StringP("diff", "d", "", "Path to the diff file (required)")
	cmd.Flags().StringP("target", "t", "", "Target file path, relative to workdir (required)")
	cmd.Flags().String("diff-format", "search_replace", "Diff format: search_replace or unified_diff")
	cmd.Flags().Bool("dry-run", false, "Print the result instead of writing it")
	cmd.MarkFlagRequired("diff")
	cmd.MarkFlagRequired("target")

	return cmd
}

func runApply(cmd *cobra.Command, args []string) error {
	diffPath, _ := cmd.Flags().GetString("diff")
	target, _ := cmd.Flags().GetString("target")
	formatName, _ := cmd.Flags().GetString("diff-format")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	diffText, err := os.ReadFile(diffPath)
	if err != nil {
		return fmt.Errorf("reading diff: %w", err)
	}

	store := workspace.New(viper.GetString("workdir"))
	original, err := store.Lookup(target)
	if err != nil {
		return fmt.Errorf("reading target: %w", err)
	}

	format, err := newDiffFormat(formatName)
	if err != nil {
		return err
	}

	result, applyErr := format.Apply(original, string(diffText), applyOptions())
	printJSON(applySummary{
		Target:        target,
		Format:        formatName,
		BlocksTotal:   result.BlocksTotal,
		BlocksApplied: result.BlocksApplied,
		BlocksFailed:  result.BlocksFailed,
		Warnings:      result.Warnings,
		Errors:        result.Errors,
	})
	if applyErr != nil {
		return fmt.Errorf("apply failed: %w", applyErr)
	}

	if dryRun {
		fmt.Print(result.Content)
		return nil
	}
	repo, err := gitPrepare()
	if err != nil {
		return err
	}
	if err := store.Write(target, result.Content); err != nil {
		return err
	}
	return gitCommit(repo, []string{target}, diffPath)
}

// newValidateCmd creates the "validate" command.
func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Dry-run a diff against a target file",
		Long:  "Validate checks that every block of the diff matches the target exactly, without writing anything.",
		RunE:  runValidate,
	}

	cmd.Flags().StringP("diff", "d", "", "Path to the diff file (required)")
	cmd.Flags().StringP("target", "t", "", "Target file path, relative to workdir (required)")
	cmd.Flags().String("diff-format", "search_replace", "Diff format: search_replace or unified_diff")
	cmd.MarkFlagRequired("diff")
	cmd.MarkFlagRequired("target")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	diffPath, _ := cmd.Flags().GetString("diff")
	target, _ := cmd.Flags().GetString("target")
	formatName, _ := cmd.Flags().GetString("diff-format")

	diffText, err := os.ReadFile(diffPath)
	if err != nil {
		return fmt.Errorf("reading diff: %w", err)
	}

	store := workspace.New(viper.GetString("workdir"))
	original, err := store.Lookup(target)
	if err != nil {
		return fmt.Errorf("reading target: %w", err)
	}

	format, err := newDiffFormat(formatName)
	if err != nil {
		return err
	}

	issues, err := format.Validate(original, string(diffText))
	if err != nil {
		return fmt.Errorf("validate failed: %w", err)
	}
	printJSON(issues)
	if len(issues) > 0 {
		return fmt.Errorf("%d validation issue(s)", len(issues))
	}
	return nil
}

type applySummary struct {
	Target        string   `json:"target"`
	Format        string   `json:"format"`
	BlocksTotal   int      `json:"blocks_total"`
	BlocksApplied int      `json:"blocks_applied"`
	BlocksFailed  int      `json:"blocks_failed"`
	Warnings      []string `json:"warnings,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

func newDiffFormat(name string) (types.DiffFormat, error) {
	return streamedit.NewDiffFormat(name, streamedit.FormatDeps{
		Logger:  newLogger(),
		Options: applyOptions(),
	})
}

func applyOptions() types.ApplyOptions {
	return types.ApplyOptions{
		Lenient:        viper.GetBool("lenient"),
		FuzzyThreshold: viper.GetFloat64("fuzzy-threshold"),
	}
}

// printJSON outputs a value as indented JSON to stdout.
func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling output: %v\n", err)
		return
	}
	fmt.Println(string(out))
}
