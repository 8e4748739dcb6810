// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Implements: prd003-search-replace R3 (apply), R4 (validate);
//
//	docs/ARCHITECTURE § Search/Replace Format.
package searchreplace

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/petar-djukic/streamedit/internal/matching"
	"github.com/petar-djukic/streamedit/pkg/types"
)

// Applier applies search/replace diffs through the shared matching chain.
// It implements types.DiffFormat.
type Applier struct {
	// Matching tunes fuzzy scoring. Zero value uses the engine defaults.
	Matching matching.Config

	// Log receives block-level warnings. Nil falls back to slog.Default().
	Log *slog.Logger
}

var _ types.DiffFormat = (*Applier)(nil)

// Name returns the registry name of the format.
func (a *Applier) Name() string { return "search_replace" }

// Apply parses diffText into blocks and applies them in order against a
// working copy of original. Each block either fully succeeds or leaves the
// document exactly as it was for that block. In strict mode (the default)
// the first failed block, any parse error, or zero parsed blocks from
// non-empty input returns an error and the original content; in lenient
// mode every applicable block is applied and failures are accumulated.
//
// Implements: prd003-search-replace R3.1-R3.8.
func (a *Applier) Apply(original, diffText string, opts types.ApplyOptions) (*types.DiffApplyResult, error) {
	blocks, parseErrs := parseBlocks(diffText)

	result := &types.DiffApplyResult{
		Content:     original,
		BlocksTotal: len(blocks),
	}
	for _, pe := range parseErrs {
		result.Errors = append(result.Errors, pe.Error())
	}

	if !opts.Lenient && len(parseErrs) > 0 {
		return result, fmt.Errorf("diff did not parse cleanly: %w", parseErrs[0])
	}
	if len(blocks) == 0 {
		if !opts.Lenient && strings.TrimSpace(diffText) != "" {
			return result, &types.ValidationError{Message: "no search/replace blocks found in non-empty diff"}
		}
		return result, nil
	}

	cfg := a.Matching
	if opts.FuzzyThreshold > 0 {
		cfg.FuzzyThreshold = opts.FuzzyThreshold
	}
	strategies := opts.Strategies
	if len(strategies) == 0 {
		strategies = types.DefaultStrategies()
	}

	content := original
	for _, block := range blocks {
		next, err := a.applyBlock(content, block, strategies, cfg)
		if err != nil {
			result.BlocksFailed++
			result.Errors = append(result.Errors, err.Error())
			result.FailedBlocks = append(result.FailedBlocks, types.FailedBlock{
				Search:  block.Search,
				Replace: block.Replace,
				Error:   err.Error(),
				Line:    block.SourceLine,
			})
			if !opts.Lenient {
				// Strict failure never exposes a partially edited document.
				result.Content = original
				return result, fmt.Errorf("applied %d of %d blocks; block at line %d failed: %w",
					result.BlocksApplied, result.BlocksTotal, block.SourceLine, err)
			}
			a.log().Warn("search/replace block failed",
				"line", block.SourceLine, "error", err.Error())
			continue
		}
		content = next
		result.BlocksApplied++
	}

	result.Content = content
	return result, nil
}

// applyBlock applies a single block to content, returning the new content.
func (a *Applier) applyBlock(content string, block Block, strategies []types.MatchStrategy, cfg matching.Config) (string, error) {
	if !block.SearchPresent {
		return "", &types.ValidationError{Message: "empty search section (a pure append needs one whitespace line)"}
	}

	// All-whitespace search is the pure-append marker.
	if strings.TrimSpace(block.Search) == "" {
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		return content + block.Replace, nil
	}

	m, err := matching.Find(content, block.Search, strategies, cfg)
	if err != nil {
		return "", err
	}
	if m == nil {
		closest, sim, start, end := matching.FindClosest(content, block.Search)
		return "", &types.MatchNotFoundError{
			Search:     block.Search,
			Closest:    closest,
			Similarity: sim,
			LineStart:  start,
			LineEnd:    end,
			Attempted:  strategies,
		}
	}

	replacement := block.Replace
	if m.Strategy == types.StrategyIndentationPreserving {
		replacement = matching.ReindentReplacement(m.Window(content), replacement)
	}

	return content[:m.Start] + replacement + content[m.End:], nil
}

// Validate dry-runs diffText against original under exact matching only,
// reporting per block whether the search text is absent or ambiguous. The
// document is never touched.
//
// Implements: prd003-search-replace R4.1-R4.3.
func (a *Applier) Validate(original, diffText string) ([]types.ValidationIssue, error) {
	blocks, parseErrs := parseBlocks(diffText)

	var issues []types.ValidationIssue
	for _, pe := range parseErrs {
		issues = append(issues, types.ValidationIssue{Line: pe.Line, Message: pe.Message})
	}

	for i, block := range blocks {
		if !block.SearchPresent || strings.TrimSpace(block.Search) == "" {
			continue // Appends have nothing to locate.
		}
		switch n := strings.Count(original, block.Search); {
		case n == 0:
			issues = append(issues, types.ValidationIssue{
				Unit: i, Line: block.SourceLine,
				Message: "search text not found in content",
			})
		case n > 1:
			issues = append(issues, types.ValidationIssue{
				Unit: i, Line: block.SourceLine,
				Message: fmt.Sprintf("search text is ambiguous: %d exact occurrences", n),
			})
		}
	}

	return issues, nil
}

func (a *Applier) log() *slog.Logger {
	if a.Log != nil {
		return a.Log
	}
	return slog.Default()
}
