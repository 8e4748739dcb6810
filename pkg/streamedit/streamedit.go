// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package streamedit defines the public interface for streamedit, a library
// that parses file edits out of streaming model output and applies diffs
// with progressively more tolerant matching.
// Implements: prd008-processor R1, R2, R3;
//
//	docs/ARCHITECTURE § Processor.
package streamedit

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/petar-djukic/streamedit/internal/commands"
	"github.com/petar-djukic/streamedit/internal/workspace"
	"github.com/petar-djukic/streamedit/pkg/types"
)

// Error types for the streamedit API.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrUnknownFormat = errors.New("unknown format")
)

// Config configures a Processor.
type Config struct {
	// Format selects the stream wire syntax: "shell" or "xml" (required).
	Format string

	// WorkDir roots prior-content lookups for diff application. Empty
	// means diffs apply against in-stream content only.
	WorkDir string

	// Lenient keeps applying remaining diff blocks after one fails.
	Lenient bool

	// Strategies overrides the default match strategy chain.
	Strategies []types.MatchStrategy

	// FuzzyThreshold overrides the minimum fuzzy similarity (default 0.8).
	FuzzyThreshold float64

	// Store overrides the WorkDir-backed content store.
	Store types.ContentStore

	// Extractor overrides the default auxiliary-command extractor.
	Extractor types.CommandExtractor

	// Events receive file open/chunk/close callbacks as parsing proceeds.
	Events types.FileEvents

	// Logger receives parse warnings; nil falls back to slog.Default().
	Logger *slog.Logger
}

// Processor feeds one logical stream through a StreamFormat.
type Processor struct {
	format types.StreamFormat
	state  types.StreamState
	events types.FileEvents
}

// New validates the config and returns a Processor ready to receive chunks.
func New(cfg Config) (*Processor, error) {
	if cfg.Format == "" {
		return nil, fmt.Errorf("%w: Format is required", ErrInvalidConfig)
	}

	store := cfg.Store
	if store == nil && cfg.WorkDir != "" {
		store = workspace.New(cfg.WorkDir)
	}
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = commands.New()
	}

	format, err := NewStreamFormat(cfg.Format, FormatDeps{
		Store:     store,
		Extractor: extractor,
		Logger:    cfg.Logger,
		Options: types.ApplyOptions{
			Lenient:        cfg.Lenient,
			Strategies:     cfg.Strategies,
			FuzzyThreshold: cfg.FuzzyThreshold,
		},
	})
	if err != nil {
		return nil, err
	}

	return &Processor{
		format: format,
		state:  format.NewState(),
		events: cfg.Events,
	}, nil
}

// ProcessChunk consumes the next chunk of the stream. Chunk boundaries are
// arbitrary; the same stream produces the same result at any granularity.
func (p *Processor) ProcessChunk(chunk string) error {
	return p.format.ParseChunk(p.state, chunk, p.events)
}

// Finish signals end of stream and resolves everything still pending.
func (p *Processor) Finish() error {
	return p.format.Finish(p.state, p.events)
}

// Files returns the files completed so far, in completion order.
func (p *Processor) Files() []types.ParsedFile {
	return p.format.Files(p.state)
}

// Commands returns auxiliary setup commands found between file blocks, for
// formats that collect them.
func (p *Processor) Commands() []string {
	if s, ok := p.state.(interface{ Commands() []string }); ok {
		return s.Commands()
	}
	return nil
}

// HasParsingErrors reports whether the stream needed any parse recovery.
func (p *Processor) HasParsingErrors() bool {
	return p.state.HasParsingErrors()
}

// Instructions returns the prompt text describing the configured wire
// syntax.
func (p *Processor) Instructions() string {
	return p.format.Instructions()
}
