// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package matching implements the text-locating strategies shared by both
// diff appliers: exact, whitespace-insensitive, indentation-preserving, and
// fuzzy (edit-distance) matching, each with uniqueness verification.
// Implements: prd002-match-engine R1, R2, R3;
//
//	docs/ARCHITECTURE § Match Engine.
package matching

import (
	"strings"

	"github.com/petar-djukic/streamedit/pkg/types"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Defaults for Config. The scoring constants are empirically tuned, not
// derived; callers may override any of them.
const (
	DefaultFuzzyThreshold   = 0.8
	DefaultSimilarityWeight = 0.7
	DefaultContextWeight    = 0.3
	DefaultIndentSpread     = 8
	DefaultKeywordRepeats   = 3
	DefaultCollisionRepeats = 2
)

// Config tunes the fuzzy scoring and quality analysis.
//
// Implements: prd002-match-engine R3.5 (configurable constants).
type Config struct {
	FuzzyThreshold   float64 // Minimum similarity for a fuzzy candidate (default 0.8)
	SimilarityWeight float64 // Weight of similarity in the combined score (default 0.7)
	ContextWeight    float64 // Weight of the context score (default 0.3)
	IndentSpread     int     // Indentation spread (columns) above which a window is penalized (default 8)
	KeywordRepeats   int     // Target occurrences of a generic keyword before the threshold rises (default 3)
	CollisionRepeats int     // Target occurrences of a collision-prone token before the threshold rises (default 2)
}

func (c Config) withDefaults() Config {
	if c.FuzzyThreshold <= 0 {
		c.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if c.SimilarityWeight <= 0 {
		c.SimilarityWeight = DefaultSimilarityWeight
	}
	if c.ContextWeight <= 0 {
		c.ContextWeight = DefaultContextWeight
	}
	if c.IndentSpread <= 0 {
		c.IndentSpread = DefaultIndentSpread
	}
	if c.KeywordRepeats <= 0 {
		c.KeywordRepeats = DefaultKeywordRepeats
	}
	if c.CollisionRepeats <= 0 {
		c.CollisionRepeats = DefaultCollisionRepeats
	}
	return c
}

// Match holds the outcome of a successful location attempt.
type Match struct {
	Start      int                 // Byte offset of the match start in the content
	End        int                 // Byte offset of the match end (exclusive)
	Strategy   types.MatchStrategy // Strategy that located the match
	Similarity float64             // 1.0 for non-fuzzy strategies
}

// Window returns the matched region of content.
func (m *Match) Window(content string) string {
	return content[m.Start:m.End]
}

// Find runs the strategies in order against content and returns the first
// unique match. A strategy that locates two or more equally valid regions
// fails the whole call with an AmbiguousMatchError rather than picking one.
// Returns (nil, nil) when no strategy matches at all.
//
// Implements: prd002-match-engine R1.2-R1.4, R2.1-R2.4.
func Find(content, search string, strategies []types.MatchStrategy, cfg Config) (*Match, error) {
	cfg = cfg.withDefaults()
	if len(strategies) == 0 {
		strategies = types.DefaultStrategies()
	}
	contentLines := strings.Split(content, "\n")

	for _, strategy := range strategies {
		var spans []span
		switch strategy {
		case types.StrategyExact:
			spans = exactSpans(content, search)
		case types.StrategyWhitespaceInsensitive:
			spans = whitespaceSpans(content, contentLines, search)
		case types.StrategyIndentationPreserving:
			spans = indentSpans(content, contentLines, search)
		case types.StrategyFuzzy:
			m, ambiguous := fuzzyFind(content, contentLines, search, cfg)
			if ambiguous != nil {
				return nil, ambiguous
			}
			if m != nil {
				return m, nil
			}
			continue
		default:
			continue
		}

		if len(spans) == 0 {
			continue
		}
		if len(spans) > 1 {
			return nil, &types.AmbiguousMatchError{
				Strategy:  strategy,
				Locations: spanLines(content, spans),
			}
		}
		return &Match{
			Start:      spans[0].start,
			End:        spans[0].end,
			Strategy:   strategy,
			Similarity: 1.0,
		}, nil
	}

	return nil, nil
}

// span is a byte range within the content.
type span struct {
	start, end int
}

// exactSpans returns every byte-for-byte occurrence of search in content.
//
// Implements: prd002-match-engine R2.1.
func exactSpans(content, search string) []span {
	if search == "" {
		return nil
	}
	var spans []span
	from := 0
	for {
		idx := strings.Index(content[from:], search)
		if idx < 0 {
			break
		}
		start := from + idx
		spans = append(spans, span{start, start + len(search)})
		from = start + 1
		if len(spans) > 1 {
			break // Two is enough to prove ambiguity.
		}
	}
	return spans
}

// spanLines converts byte spans to 1-based line numbers for error reporting.
func spanLines(content string, spans []span) []int {
	lines := make([]int, len(spans))
	for i, s := range spans {
		lines[i] = strings.Count(content[:s.start], "\n") + 1
	}
	return lines
}

// FindClosest locates the region of content most similar to search, for
// diagnostics when every strategy fails. Returns the closest text, its
// similarity, and the 1-based line range.
func FindClosest(content, search string) (closest string, sim float64, lineStart, lineEnd int) {
	if search == "" || content == "" {
		return "", 0, 0, 0
	}

	contentLines := strings.Split(content, "\n")
	searchLen := len(strings.Split(search, "\n"))
	if searchLen > len(contentLines) {
		searchLen = len(contentLines)
	}

	var bestSim float64
	bestStart := -1
	for i := 0; i <= len(contentLines)-searchLen; i++ {
		candidate := strings.Join(contentLines[i:i+searchLen], "\n")
		s := Similarity(candidate, search)
		if s > bestSim {
			bestSim = s
			bestStart = i
		}
	}

	if bestStart < 0 {
		return "", 0, 0, 0
	}
	closest = strings.Join(contentLines[bestStart:bestStart+searchLen], "\n")
	return closest, bestSim, bestStart + 1, bestStart + searchLen
}

// Similarity computes the Levenshtein-based similarity ratio between two
// strings using the go-diff library. Returns a value between 0.0 and 1.0.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a, b, false)
	distance := dmp.DiffLevenshtein(diffs)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

// byteOffsetOfLine returns the byte offset of the start of line idx in the
// content reconstructed from lines.
func byteOffsetOfLine(lines []string, idx int) int {
	offset := 0
	for i := 0; i < idx; i++ {
		offset += len(lines[i]) + 1 // +1 for newline
	}
	return offset
}

// lineWindowSpan returns the byte span covering n lines starting at
// startLine, excluding the trailing newline of the last line.
func lineWindowSpan(lines []string, startLine, n int) span {
	start := byteOffsetOfLine(lines, startLine)
	end := start
	for i := startLine; i < startLine+n; i++ {
		end += len(lines[i]) + 1
	}
	return span{start, end - 1} // Drop the final newline (or the virtual one).
}
