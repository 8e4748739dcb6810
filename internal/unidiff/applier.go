// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Implements: prd004-unified-diff R2 (apply cascade), R3 (safety limits),
//
//	R4 (diagnostics); docs/ARCHITECTURE § Unified Diff Format.
package unidiff

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/petar-djukic/streamedit/internal/matching"
	"github.com/petar-djukic/streamedit/pkg/types"
)

// Limits bound every Apply call so pathological input cannot hang or
// exhaust the process. Zero values take the defaults.
type Limits struct {
	MaxDocBytes   int           // Default 8 MiB
	MaxDiffBytes  int           // Default 1 MiB
	MaxHunks      int           // Default 200
	MaxHunkLines  int           // Default 2000
	MaxDuration   time.Duration // Default 5s
	MaxIterations int64         // Default 2,000,000 window comparisons
}

func (l Limits) withDefaults() Limits {
	if l.MaxDocBytes <= 0 {
		l.MaxDocBytes = 8 << 20
	}
	if l.MaxDiffBytes <= 0 {
		l.MaxDiffBytes = 1 << 20
	}
	if l.MaxHunks <= 0 {
		l.MaxHunks = 200
	}
	if l.MaxHunkLines <= 0 {
		l.MaxHunkLines = 2000
	}
	if l.MaxDuration <= 0 {
		l.MaxDuration = 5 * time.Second
	}
	if l.MaxIterations <= 0 {
		l.MaxIterations = 2_000_000
	}
	return l
}

// budget meters loop iterations and wall-clock time across one Apply call.
type budget struct {
	deadline    time.Time
	maxDuration time.Duration
	left        int64
	max         int64
}

func (b *budget) spend(n int64) error {
	b.left -= n
	if b.left < 0 {
		return &types.SafetyLimitError{Limit: "iterations", Max: b.max}
	}
	if time.Now().After(b.deadline) {
		return &types.SafetyLimitError{Limit: "deadline", Max: int64(b.maxDuration / time.Millisecond)}
	}
	return nil
}

// subHunkContext is how many surrounding context lines each decomposed
// sub-hunk keeps.
const subHunkContext = 3

// Applier applies unified diffs through a fallback cascade: direct match,
// whitespace-normalized, indentation-aware, sub-hunk decomposition, and
// context reduction. Heuristic marker repair and raw-content fallback are
// deliberately absent: against LLM-authored diffs they corrupt more than
// they save.
//
// Applier implements types.DiffFormat.
type Applier struct {
	Limits   Limits
	Matching matching.Config

	// Log receives hunk-level warnings. Nil falls back to slog.Default().
	Log *slog.Logger
}

var _ types.DiffFormat = (*Applier)(nil)

// Name returns the registry name of the format.
func (a *Applier) Name() string { return "unified_diff" }

// Apply turns original plus diffText into a new document. Hunks apply in
// order against a working copy; a hunk either fully succeeds or leaves the
// document untouched for that hunk. Safety-limit breaches always abort the
// whole call with the original content. A hunk that would reduce a
// non-empty document to zero length is rejected outright.
//
// Implements: prd004-unified-diff R2.1-R2.7, R3.1-R3.6.
func (a *Applier) Apply(original, diffText string, opts types.ApplyOptions) (*types.DiffApplyResult, error) {
	lim := a.Limits.withDefaults()
	result := &types.DiffApplyResult{Content: original}

	if len(original) > lim.MaxDocBytes {
		return result, &types.SafetyLimitError{Limit: "max_document_bytes", Max: int64(lim.MaxDocBytes), Actual: int64(len(original))}
	}
	if len(diffText) > lim.MaxDiffBytes {
		return result, &types.SafetyLimitError{Limit: "max_diff_bytes", Max: int64(lim.MaxDiffBytes), Actual: int64(len(diffText))}
	}

	// Work in \n internally; restore the document's convention at the end.
	crlf := strings.Contains(original, "\r\n")
	work := original
	if crlf {
		work = strings.ReplaceAll(work, "\r\n", "\n")
	}
	diffText = strings.ReplaceAll(diffText, "\r\n", "\n")

	hunks := parseHunks(diffText)
	result.BlocksTotal = len(hunks)
	if len(hunks) > lim.MaxHunks {
		return result, &types.SafetyLimitError{Limit: "max_hunks", Max: int64(lim.MaxHunks), Actual: int64(len(hunks))}
	}
	for i := range hunks {
		if len(hunks[i].Lines) > lim.MaxHunkLines {
			return result, &types.SafetyLimitError{Limit: "max_hunk_lines", Max: int64(lim.MaxHunkLines), Actual: int64(len(hunks[i].Lines))}
		}
	}
	if len(hunks) == 0 {
		return result, nil
	}

	cfg := a.Matching
	if opts.FuzzyThreshold > 0 {
		cfg.FuzzyThreshold = opts.FuzzyThreshold
	}

	b := &budget{
		deadline:    time.Now().Add(lim.MaxDuration),
		maxDuration: lim.MaxDuration,
		left:        lim.MaxIterations,
		max:         lim.MaxIterations,
	}

	content := work
	for i, h := range hunks {
		if !h.changed() {
			result.BlocksApplied++ // Pure context hunk is a no-op.
			continue
		}

		next, attempted, err := a.applyHunk(content, h, b, true, cfg)
		if err != nil {
			var limitErr *types.SafetyLimitError
			if errors.As(err, &limitErr) {
				result.Content = original
				return result, err
			}

			hunkErr := hunkFailure(i, &h, attempted, err)
			result.BlocksFailed++
			result.Errors = append(result.Errors, hunkErr.Error())
			result.FailedBlocks = append(result.FailedBlocks, types.FailedBlock{
				Search:  strings.Join(h.Before(), "\n"),
				Replace: strings.Join(h.After(), "\n"),
				Error:   hunkErr.Error(),
				Line:    0,
			})
			if !opts.Lenient {
				result.Content = original
				return result, hunkErr
			}
			a.log().Warn("hunk failed", "hunk", i+1, "error", err.Error())
			continue
		}

		if content != "" && next == "" {
			result.Content = original
			return result, fmt.Errorf("refusing hunk %d: it would reduce a non-empty document to zero length", i+1)
		}

		content = next
		result.BlocksApplied++
	}

	if crlf {
		content = strings.ReplaceAll(content, "\n", "\r\n")
	}
	result.Content = content
	return result, nil
}

// applyHunk runs the cascade for one hunk, first success wins. When
// decompose is false (inside sub-hunk decomposition) the decomposition
// stage is skipped, which bounds the depth by construction.
func (a *Applier) applyHunk(content string, h Hunk, b *budget, decompose bool, cfg matching.Config) (string, []string, error) {
	var attempted []string
	before := h.Before()
	after := h.After()
	joinedBefore := strings.Join(before, "\n")
	joinedAfter := strings.Join(after, "\n")
	scanCost := int64(strings.Count(content, "\n") + 1)

	// A hunk with nothing to anchor on is a pure addition.
	pureAdd := len(before) == 0
	if !pureAdd && strings.TrimSpace(joinedBefore) == "" && !containsDelete(h) {
		pureAdd = true // Blank context lines anchor nowhere useful.
	}
	if pureAdd {
		return appendLines(content, joinedAfter), []string{"append"}, nil
	}

	// 1. Direct: exact substring, accepted only at one occurrence.
	attempted = append(attempted, "direct")
	if err := b.spend(scanCost); err != nil {
		return "", attempted, err
	}
	switch n := strings.Count(content, joinedBefore); {
	case n == 1:
		idx := strings.Index(content, joinedBefore)
		return splice(content, idx, idx+len(joinedBefore), joinedAfter), attempted, nil
	case n > 1:
		return "", attempted, &types.AmbiguousMatchError{
			Strategy:  types.StrategyExact,
			Locations: occurrenceLines(content, joinedBefore),
		}
	}

	// 2. Whitespace-normalized, with replacement re-indented to the
	// window and the document's line-ending convention already handled
	// by Apply.
	attempted = append(attempted, "whitespace")
	if err := b.spend(scanCost); err != nil {
		return "", attempted, err
	}
	m, err := matching.Find(content, joinedBefore,
		[]types.MatchStrategy{types.StrategyWhitespaceInsensitive}, cfg)
	if err != nil {
		return "", attempted, err
	}
	if m != nil {
		repl := matching.ReindentReplacement(m.Window(content), joinedAfter)
		return splice(content, m.Start, m.End, repl), attempted, nil
	}

	// 3. Indentation-aware.
	attempted = append(attempted, "indentation")
	if err := b.spend(scanCost); err != nil {
		return "", attempted, err
	}
	m, err = matching.Find(content, joinedBefore,
		[]types.MatchStrategy{types.StrategyIndentationPreserving}, cfg)
	if err != nil {
		return "", attempted, err
	}
	if m != nil {
		repl := matching.ReindentReplacement(m.Window(content), joinedAfter)
		return splice(content, m.Start, m.End, repl), attempted, nil
	}

	// 4. Sub-hunk decomposition: every sub-hunk must succeed through the
	// non-decomposing cascade, or the whole stage has zero effect.
	if decompose {
		attempted = append(attempted, "sub_hunk_decomposition")
		if next, ok, err := a.applyDecomposed(content, h, b, cfg); err != nil {
			return "", attempted, err
		} else if ok {
			return next, attempted, nil
		}
	}

	// 5. Context reduction: shrink leading/trailing context independently
	// until the search text matches uniquely.
	attempted = append(attempted, "context_reduction")
	if next, ok, err := a.applyReduced(content, h, b); err != nil {
		return "", attempted, err
	} else if ok {
		return next, attempted, nil
	}

	closest, sim, lineStart, lineEnd := matching.FindClosest(content, joinedBefore)
	return "", attempted, &types.MatchNotFoundError{
		Search:     joinedBefore,
		Closest:    closest,
		Similarity: sim,
		LineStart:  lineStart,
		LineEnd:    lineEnd,
	}
}

// applyDecomposed splits h into one sub-hunk per contiguous run of changed
// lines (plus up to subHunkContext lines of context each) and applies them
// in order to a working copy. Any failure discards the copy.
func (a *Applier) applyDecomposed(content string, h Hunk, b *budget, cfg matching.Config) (string, bool, error) {
	subs := decompose(h)
	if len(subs) < 2 {
		return "", false, nil // Nothing to gain over the plain cascade.
	}

	work := content
	for _, sub := range subs {
		next, _, err := a.applyHunk(work, sub, b, false, cfg)
		if err != nil {
			var limitErr *types.SafetyLimitError
			if errors.As(err, &limitErr) {
				return "", false, err
			}
			return "", false, nil // Zero partial effect.
		}
		work = next
	}
	return work, true, nil
}

func containsDelete(h Hunk) bool {
	for _, l := range h.Lines {
		if l.kind == lineDelete {
			return true
		}
	}
	return false
}

// decompose returns one sub-hunk per contiguous run of changed lines.
func decompose(h Hunk) []Hunk {
	var subs []Hunk
	i := 0
	for i < len(h.Lines) {
		if h.Lines[i].kind == lineContext {
			i++
			continue
		}
		// Extend the run across adjacent changed lines.
		end := i
		for end < len(h.Lines) && h.Lines[end].kind != lineContext {
			end++
		}
		start := i - subHunkContext
		if start < 0 {
			start = 0
		}
		stop := end + subHunkContext
		if stop > len(h.Lines) {
			stop = len(h.Lines)
		}
		subs = append(subs, Hunk{Lines: h.Lines[start:stop]})
		i = end
	}
	return subs
}

// applyReduced trims leading and trailing context independently, in both
// directions, applying at the first uniquely matching reduction.
func (a *Applier) applyReduced(content string, h Hunk, b *budget) (string, bool, error) {
	leading := 0
	for leading < len(h.Lines) && h.Lines[leading].kind == lineContext {
		leading++
	}
	trailing := 0
	for trailing < len(h.Lines)-leading && h.Lines[len(h.Lines)-1-trailing].kind == lineContext {
		trailing++
	}

	for lead := 0; lead <= leading; lead++ {
		for trail := 0; trail <= trailing; trail++ {
			if lead == 0 && trail == 0 {
				continue // Already tried as the direct stage.
			}
			if err := b.spend(int64(strings.Count(content, "\n") + 1)); err != nil {
				return "", false, err
			}

			sub := Hunk{Lines: h.Lines[lead : len(h.Lines)-trail]}
			joinedBefore := strings.Join(sub.Before(), "\n")
			if strings.TrimSpace(joinedBefore) == "" {
				continue
			}
			if strings.Count(content, joinedBefore) != 1 {
				continue
			}
			idx := strings.Index(content, joinedBefore)
			joinedAfter := strings.Join(sub.After(), "\n")
			return splice(content, idx, idx+len(joinedBefore), joinedAfter), true, nil
		}
	}
	return "", false, nil
}

// Validate dry-runs the hunks against original under exact matching only.
//
// Implements: prd004-unified-diff R4.4.
func (a *Applier) Validate(original, diffText string) ([]types.ValidationIssue, error) {
	hunks := parseHunks(strings.ReplaceAll(diffText, "\r\n", "\n"))
	original = strings.ReplaceAll(original, "\r\n", "\n")

	var issues []types.ValidationIssue
	for i, h := range hunks {
		if !h.changed() {
			continue
		}
		joined := strings.Join(h.Before(), "\n")
		if len(h.Before()) == 0 {
			continue // Pure addition has nothing to locate.
		}
		switch n := strings.Count(original, joined); {
		case n == 0:
			issues = append(issues, types.ValidationIssue{
				Unit: i, Message: "hunk context not found in content",
			})
		case n > 1:
			issues = append(issues, types.ValidationIssue{
				Unit: i, Message: fmt.Sprintf("hunk context is ambiguous: %d exact occurrences", n),
			})
		}
	}
	return issues, nil
}

// hunkFailure builds the diagnostic for a hunk no strategy could place.
func hunkFailure(index int, h *Hunk, attempted []string, cause error) error {
	before := h.Before()
	after := h.After()
	preview := strings.Join(before, "\n")
	if len(preview) > 120 {
		preview = preview[:120] + "..."
	}
	return fmt.Errorf("hunk %d failed (%d before lines, %d after lines; tried %s): %w; content preview: %q",
		index+1, len(before), len(after), strings.Join(attempted, ", "), cause, preview)
}

// splice replaces content[start:end] with replacement. An empty replacement
// also consumes one adjacent newline so a deleted line does not leave a
// blank one behind.
func splice(content string, start, end int, replacement string) string {
	if replacement == "" {
		if end < len(content) && content[end] == '\n' {
			end++
		} else if start > 0 && content[start-1] == '\n' {
			start--
		}
	}
	return content[:start] + replacement + content[end:]
}

// appendLines appends text as new lines at the end of content.
func appendLines(content, text string) string {
	if content == "" {
		return text
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + text
}

// occurrenceLines returns the 1-based line numbers of every occurrence of
// needle, for ambiguity reporting.
func occurrenceLines(content, needle string) []int {
	var lines []int
	from := 0
	for {
		idx := strings.Index(content[from:], needle)
		if idx < 0 {
			break
		}
		abs := from + idx
		lines = append(lines, strings.Count(content[:abs], "\n")+1)
		from = abs + 1
	}
	return lines
}

func (a *Applier) log() *slog.Logger {
	if a.Log != nil {
		return a.Log
	}
	return slog.Default()
}
