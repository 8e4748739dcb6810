// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Implements: prd011-cli R4 (extract).
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	gitpkg "github.com/petar-djukic/streamedit/internal/git"
	"github.com/petar-djukic/streamedit/internal/workspace"
	"github.com/petar-djukic/streamedit/pkg/streamedit"
	"github.com/petar-djukic/streamedit/pkg/types"
)

// newExtractCmd creates the "extract" command.
func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract [transcript]",
		Short: "Extract and write files from a saved transcript",
		Long:  "Extract parses a complete model output transcript (a file, or stdin when omitted) and writes every completed file into the working directory.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExtract,
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	var (
		text   []byte
		source = "stdin"
		err    error
	)
	if len(args) == 1 {
		source = args[0]
		text, err = os.ReadFile(args[0])
	} else {
		text, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("reading transcript: %w", err)
	}

	proc, err := newProcessor(types.FileEvents{})
	if err != nil {
		return err
	}
	if err := proc.ProcessChunk(string(text)); err != nil {
		return err
	}
	if err := proc.Finish(); err != nil {
		return err
	}

	repo, err := gitPrepare()
	if err != nil {
		return err
	}

	written, err := writeFiles(proc.Files())
	if err != nil {
		return err
	}

	printJSON(extractSummary{
		Files:         written,
		Commands:      proc.Commands(),
		ParsingErrors: proc.HasParsingErrors(),
	})
	return gitCommit(repo, written, source)
}

type extractSummary struct {
	Files         []string `json:"files"`
	Commands      []string `json:"commands,omitempty"`
	ParsingErrors bool     `json:"parsing_errors"`
}

// newProcessor builds a Processor from the global flags.
func newProcessor(events types.FileEvents) (*streamedit.Processor, error) {
	return streamedit.New(streamedit.Config{
		Format:         viper.GetString("format"),
		WorkDir:        viper.GetString("workdir"),
		Lenient:        viper.GetBool("lenient"),
		FuzzyThreshold: viper.GetFloat64("fuzzy-threshold"),
		Events:         events,
		Logger:         newLogger(),
	})
}

// writeFiles persists completed files into the working directory.
func writeFiles(files []types.ParsedFile) ([]string, error) {
	store := workspace.New(viper.GetString("workdir"))
	var written []string
	for _, f := range files {
		if err := store.Write(f.Path, f.Content); err != nil {
			return written, err
		}
		written = append(written, f.Path)
	}
	return written, nil
}

// gitPrepare opens the repository and commits pre-existing dirty files when
// --git is set. It must run before any generated file touches disk so user
// work and streamed edits land in separate commits.
func gitPrepare() (*gitpkg.Repo, error) {
	if !viper.GetBool("git") {
		return nil, nil
	}
	repo, err := gitpkg.Open(gitpkg.Config{
		WorkDir:     viper.GetString("workdir"),
		AutoCommit:  true,
		DirtyCommit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}
	if err := repo.HandleDirty(); err != nil {
		return nil, err
	}
	return repo, nil
}

// gitCommit auto-commits the written files on a repository prepared by
// gitPrepare; a nil repo is a no-op.
func gitCommit(repo *gitpkg.Repo, written []string, source string) error {
	if repo == nil || len(written) == 0 {
		return nil
	}
	return repo.AutoCommit(written, source)
}
