// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package searchreplace parses and applies the marker-delimited
// search/replace diff format.
// Implements: prd003-search-replace R1, R2;
//
//	docs/ARCHITECTURE § Search/Replace Format.
package searchreplace

import (
	"strings"

	"github.com/petar-djukic/streamedit/pkg/types"
)

const (
	markerSearch  = "<<<<<<< SEARCH"
	markerDivider = "======="
	markerReplace = ">>>>>>> REPLACE"
)

// Block is one parsed search/replace unit. SearchPresent distinguishes a
// block with at least one (possibly blank) search line, which is a valid
// pure-append marker when all-whitespace, from a literally empty search
// section, which is rejected at apply time.
type Block struct {
	Search        string // Search lines joined with \n (no trailing newline)
	Replace       string // Replacement lines joined with \n
	SourceLine    int    // 1-based line of the SEARCH marker in the diff text
	SearchPresent bool   // At least one line appeared between the markers
}

// parser states. The machine recovers from the common malformations an LLM
// produces: repeated SEARCH markers, doubled separators, and truncation.
type parseState int

const (
	stateOutside parseState = iota
	stateInSearch
	stateInReplace
	stateMalformed
)

// parseBlocks scans diffText with a four-state machine and returns every
// well-formed block plus a ParseError for each recovered malformation.
// Parsing never fails outright; errors are recorded and scanning resumes.
//
// Implements: prd003-search-replace R1.1-R1.6.
func parseBlocks(diffText string) ([]Block, []*types.ParseError) {
	var (
		blocks  []Block
		errs    []*types.ParseError
		state   = stateOutside
		current Block
		search  []string
		replace []string
	)

	reset := func() {
		current = Block{}
		search = nil
		replace = nil
		state = stateOutside
	}

	startBlock := func(lineNo int) {
		current = Block{SourceLine: lineNo}
		search = nil
		replace = nil
		state = stateInSearch
	}

	lines := strings.Split(diffText, "\n")
	for i, line := range lines {
		lineNo := i + 1
		switch state {
		case stateOutside, stateMalformed:
			if isMarker(line, markerSearch) {
				startBlock(lineNo)
			}
			// Anything else outside a block is prose; ignore it.

		case stateInSearch:
			switch {
			case isMarker(line, markerSearch):
				// A second SEARCH orphans the one in progress.
				errs = append(errs, &types.ParseError{
					Line:    current.SourceLine,
					RawText: strings.Join(search, "\n"),
					Message: "orphaned block: new SEARCH marker before separator",
				})
				startBlock(lineNo)
			case isMarker(line, markerDivider) || isFence(line):
				state = stateInReplace
			default:
				search = append(search, line)
			}

		case stateInReplace:
			switch {
			case isMarker(line, markerReplace) || isFence(line):
				current.Search = strings.Join(search, "\n")
				current.Replace = strings.Join(replace, "\n")
				current.SearchPresent = len(search) > 0
				blocks = append(blocks, current)
				reset()
			case isMarker(line, markerDivider):
				// A second separator poisons the block; discard and resume.
				errs = append(errs, &types.ParseError{
					Line:    current.SourceLine,
					RawText: strings.Join(search, "\n"),
					Message: "malformed block: second separator before REPLACE marker",
				})
				state = stateMalformed
			case isMarker(line, markerSearch):
				errs = append(errs, &types.ParseError{
					Line:    current.SourceLine,
					RawText: strings.Join(search, "\n"),
					Message: "unterminated block: new SEARCH marker before REPLACE marker",
				})
				startBlock(lineNo)
			default:
				replace = append(replace, line)
			}
		}
	}

	if state == stateInSearch || state == stateInReplace {
		errs = append(errs, &types.ParseError{
			Line:    current.SourceLine,
			RawText: strings.Join(append(search, replace...), "\n"),
			Message: "truncated diff: block not terminated at end of input",
		})
	}

	return blocks, errs
}

// isMarker checks a marker match, tolerating surrounding whitespace.
func isMarker(line, marker string) bool {
	return strings.TrimSpace(line) == marker
}

// isFence reports a three-backtick line (with optional language tag), which
// the fenced variant of the format substitutes for the separator or the
// terminator.
func isFence(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "```")
}
