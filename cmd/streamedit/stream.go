// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Implements: prd011-cli R5 (stream).
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petar-djukic/streamedit/internal/llm"
	"github.com/petar-djukic/streamedit/pkg/types"
)

// newStreamCmd creates the "stream" command.
func newStreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Parse a live model stream and write files as they complete",
		Long:  "Stream sends a prompt to Bedrock (or reads chunks from stdin with --stdin) and feeds the response through the stream parser, writing each file as its block closes.",
		RunE:  runStream,
	}

	cmd.Flags().StringP("prompt", "p", "", "Prompt to send to the model")
	cmd.Flags().String("model", "", "Bedrock model ID")
	cmd.Flags().String("region", "", "AWS region for Bedrock")
	cmd.Flags().String("profile", "", "AWS credential profile")
	cmd.Flags().Int("max-tokens", 4096, "Maximum tokens for the model response")
	cmd.Flags().Bool("stdin", false, "Read chunks from stdin instead of calling Bedrock")

	viper.BindPFlag("model", cmd.Flags().Lookup("model"))
	viper.BindPFlag("region", cmd.Flags().Lookup("region"))
	viper.BindPFlag("profile", cmd.Flags().Lookup("profile"))
	viper.BindPFlag("max-tokens", cmd.Flags().Lookup("max-tokens"))

	return cmd
}

func runStream(cmd *cobra.Command, args []string) error {
	fromStdin, _ := cmd.Flags().GetBool("stdin")
	prompt, _ := cmd.Flags().GetString("prompt")

	log := newLogger()
	proc, err := newProcessor(types.FileEvents{
		OnFileOpen: func(path string, format types.FileFormat) {
			log.Info("file opened", "path", path, "format", format)
		},
		OnFileClose: func(path string, format types.FileFormat) {
			log.Info("file closed", "path", path, "format", format)
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if fromStdin {
		err = feedReader(proc.ProcessChunk, os.Stdin)
	} else {
		if prompt == "" {
			return fmt.Errorf("--prompt is required unless --stdin is set")
		}
		err = feedBedrock(ctx, proc.ProcessChunk, proc.Instructions(), prompt, log)
	}
	if err != nil {
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
	return gitCommit(repo, written, "model stream")
}

// feedReader pushes reader chunks through fn at whatever granularity Read
// returns; the parser resolves boundaries itself.
func feedReader(fn func(string) error, r io.Reader) error {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if perr := fn(string(buf[:n])); perr != nil {
				return perr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading stream: %w", err)
		}
	}
}

// feedBedrock streams one model call, forwarding every text delta into fn.
// The format's own wire-syntax instructions go out as the system prompt.
func feedBedrock(ctx context.Context, fn func(string) error, instructions, prompt string, log *slog.Logger) error {
	client, err := llm.NewClient(ctx, llm.ClientConfig{
		ModelID:   viper.GetString("model"),
		Region:    viper.GetString("region"),
		Profile:   viper.GetString("profile"),
		MaxTokens: viper.GetInt("max-tokens"),
	})
	if err != nil {
		return err
	}

	tokens, results, errs := client.Stream(ctx, instructions, prompt)
	for tok := range tokens {
		if perr := fn(tok); perr != nil {
			return perr
		}
	}
	if err := <-errs; err != nil {
		return err
	}
	if resp := <-results; resp != nil {
		log.Info("model stream complete",
			"input_tokens", resp.Usage.InputTokens,
			"output_tokens", resp.Usage.OutputTokens,
			"retries", resp.Retries)
	}
	return nil
}
