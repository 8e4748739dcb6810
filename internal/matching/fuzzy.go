// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Implements: prd002-match-engine R3 (fuzzy matching, quality analysis).
package matching

import (
	"regexp"
	"strings"

	"github.com/petar-djukic/streamedit/pkg/types"
)

// scoreEpsilon: two windows whose combined scores differ by less than this
// are considered equally valid, which fails the match as ambiguous.
const scoreEpsilon = 1e-9

// genericKeywords are syntax tokens so common that a search text built from
// them matches half the file at fuzzy tolerances.
var genericKeywords = []string{
	"return", "if ", "else", "for ", "while ", "break", "continue",
	"func ", "function ", "def ", "end", "try", "catch", "import ",
	"});", "})", "};",
}

// collisionTokens recur in near-identical stanzas (error handling, switch
// arms) and are the usual cause of fuzzy misplacement.
var collisionTokens = []string{
	"err != nil", "return nil", "return err", "default:", "console.log",
}

var caseLabelRe = regexp.MustCompile(`(?m)^\s*case\s+.+:\s*$`)

// fuzzyFind scans every same-line-count window of content, keeping windows
// whose normalized Levenshtein similarity clears the effective threshold,
// and picks the winner by combined score. Two windows with equal scores are
// ambiguous.
//
// Implements: prd002-match-engine R3.1-R3.4.
func fuzzyFind(content string, contentLines []string, search string, cfg Config) (*Match, *types.AmbiguousMatchError) {
	if search == "" || content == "" {
		return nil, nil
	}

	threshold := effectiveThreshold(content, search, cfg)
	searchLines := strings.Split(search, "\n")
	searchLen := len(searchLines)

	if searchLen > len(contentLines) {
		// Only the whole content can be a candidate.
		if sim := Similarity(content, search); sim >= threshold {
			return &Match{Start: 0, End: len(content), Strategy: types.StrategyFuzzy, Similarity: sim}, nil
		}
		return nil, nil
	}

	type candidate struct {
		startLine  int
		similarity float64
		score      float64
	}
	var best, second *candidate

	for i := 0; i+searchLen <= len(contentLines); i++ {
		window := contentLines[i : i+searchLen]
		sim := Similarity(strings.Join(window, "\n"), search)
		if sim < threshold {
			continue
		}
		score := cfg.SimilarityWeight*sim + cfg.ContextWeight*contextScore(window, cfg)
		c := &candidate{startLine: i, similarity: sim, score: score}
		switch {
		case best == nil || c.score > best.score+scoreEpsilon:
			best, second = c, best
		case second == nil || c.score > second.score:
			second = c
		}
	}

	if best == nil {
		return nil, nil
	}
	if second != nil && best.score-second.score < scoreEpsilon {
		return nil, &types.AmbiguousMatchError{
			Strategy:  types.StrategyFuzzy,
			Locations: []int{best.startLine + 1, second.startLine + 1},
		}
	}

	s := lineWindowSpan(contentLines, best.startLine, searchLen)
	return &Match{
		Start:      s.start,
		End:        s.end,
		Strategy:   types.StrategyFuzzy,
		Similarity: best.similarity,
	}, nil
}

// effectiveThreshold raises the caller's fuzzy threshold when the search
// text is syntactically generic against this target, scaling up to 0.95 for
// the most ambiguous inputs.
func effectiveThreshold(content, search string, cfg Config) float64 {
	threshold := cfg.FuzzyThreshold

	for _, kw := range genericKeywords {
		if strings.Contains(search, kw) && strings.Count(content, kw) > cfg.KeywordRepeats {
			threshold = raiseTo(threshold, 0.88)
			break
		}
	}
	for _, tok := range collisionTokens {
		if strings.Contains(search, tok) && strings.Count(content, tok) > cfg.CollisionRepeats {
			threshold = raiseTo(threshold, 0.92)
			break
		}
	}
	if caseLabelRe.MatchString(search) && len(caseLabelRe.FindAllString(content, 3)) > 2 {
		threshold = raiseTo(threshold, 0.95)
	}

	return threshold
}

func raiseTo(current, floor float64) float64 {
	if current < floor {
		return floor
	}
	return current
}

// contextScore rates how safe a window is as a replacement target: windows
// whose boundary lines are statement or structural boundaries, and windows
// whose internal indentation spread exceeds the limit, score lower.
func contextScore(window []string, cfg Config) float64 {
	score := 1.0

	if len(window) > 0 && looksStructural(window[0]) {
		score -= 0.25
	}
	if len(window) > 1 && looksStructural(window[len(window)-1]) {
		score -= 0.25
	}
	if indentSpread(window) > cfg.IndentSpread {
		score -= 0.2
	}

	if score < 0 {
		return 0
	}
	return score
}

var funcSigRe = regexp.MustCompile(`^\s*(func|def|function)\b`)

// looksStructural reports whether a line is the kind of boundary (case
// label, signature, lone brace) that fuzzy matching tends to slide across.
func looksStructural(line string) bool {
	trimmed := strings.TrimSpace(line)
	switch trimmed {
	case "{", "}", "};", ")", "});":
		return true
	}
	if strings.HasPrefix(trimmed, "case ") && strings.HasSuffix(trimmed, ":") {
		return true
	}
	return funcSigRe.MatchString(line)
}

// indentSpread returns the difference in leading-whitespace width between
// the shallowest and deepest non-blank lines, counting a tab as 4 columns.
func indentSpread(window []string) int {
	minW, maxW := -1, 0
	for _, line := range window {
		if strings.TrimSpace(line) == "" {
			continue
		}
		w := 0
		for _, r := range line {
			if r == ' ' {
				w++
			} else if r == '\t' {
				w += 4
			} else {
				break
			}
		}
		if minW < 0 || w < minW {
			minW = w
		}
		if w > maxW {
			maxW = w
		}
	}
	if minW < 0 {
		return 0
	}
	return maxW - minW
}
