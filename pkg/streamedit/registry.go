// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Implements: prd001-format-contract R3 (registry), prd008-processor R2.
package streamedit

import (
	"fmt"
	"log/slog"

	"github.com/petar-djukic/streamedit/internal/matching"
	"github.com/petar-djukic/streamedit/internal/searchreplace"
	"github.com/petar-djukic/streamedit/internal/shellstream"
	"github.com/petar-djukic/streamedit/internal/unidiff"
	"github.com/petar-djukic/streamedit/internal/xmlstream"
	"github.com/petar-djukic/streamedit/pkg/types"
)

// FormatDeps carries the collaborators a stream format is wired with.
type FormatDeps struct {
	Store     types.ContentStore
	Extractor types.CommandExtractor
	Logger    *slog.Logger
	Options   types.ApplyOptions
}

// StreamFormatNames lists the registered stream formats.
func StreamFormatNames() []string { return []string{"shell", "xml"} }

// DiffFormatNames lists the registered diff formats.
func DiffFormatNames() []string { return []string{"search_replace", "unified_diff"} }

// NewStreamFormat constructs a stream format by name. Patch bodies inside
// either format are applied with the unified-diff applier.
func NewStreamFormat(name string, deps FormatDeps) (types.StreamFormat, error) {
	diff := &unidiff.Applier{Matching: matchingConfig(deps.Options), Log: deps.Logger}
	switch name {
	case "shell":
		p := shellstream.New(diff, deps.Store, deps.Extractor, deps.Logger)
		p.Options = deps.Options
		return p, nil
	case "xml":
		f := xmlstream.NewFormat(diff, deps.Store, deps.Logger)
		f.Options = deps.Options
		return f, nil
	default:
		return nil, fmt.Errorf("%w: stream format %q", ErrUnknownFormat, name)
	}
}

// NewDiffFormat constructs a diff format by name.
func NewDiffFormat(name string, deps FormatDeps) (types.DiffFormat, error) {
	switch name {
	case "search_replace":
		return &searchreplace.Applier{Matching: matchingConfig(deps.Options), Log: deps.Logger}, nil
	case "unified_diff":
		return &unidiff.Applier{Matching: matchingConfig(deps.Options), Log: deps.Logger}, nil
	default:
		return nil, fmt.Errorf("%w: diff format %q", ErrUnknownFormat, name)
	}
}

func matchingConfig(opts types.ApplyOptions) matching.Config {
	return matching.Config{FuzzyThreshold: opts.FuzzyThreshold}
}
