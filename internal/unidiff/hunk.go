// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package unidiff parses and applies git-style unified diffs with a
// fallback matching cascade and safety limits.
// Implements: prd004-unified-diff R1 (hunk model);
//
//	docs/ARCHITECTURE § Unified Diff Format.
package unidiff

import "strings"

type lineKind int

const (
	lineContext lineKind = iota
	lineDelete
	lineAdd
)

// hunkLine is one tagged line of a hunk body.
type hunkLine struct {
	kind lineKind
	text string
}

// Hunk is a contiguous change region. Lines preserves the interleaved
// order of context and change lines from the diff text.
type Hunk struct {
	Header string // The @@ line, empty for an implicit hunk
	Lines  []hunkLine
}

// Before returns the lines the hunk expects in the original document
// (context plus deletions, in order).
func (h *Hunk) Before() []string {
	var out []string
	for _, l := range h.Lines {
		if l.kind != lineAdd {
			out = append(out, l.text)
		}
	}
	return out
}

// After returns the lines the hunk produces (context plus additions).
func (h *Hunk) After() []string {
	var out []string
	for _, l := range h.Lines {
		if l.kind != lineDelete {
			out = append(out, l.text)
		}
	}
	return out
}

// changed reports whether the hunk contains any add or delete line.
func (h *Hunk) changed() bool {
	for _, l := range h.Lines {
		if l.kind != lineContext {
			return true
		}
	}
	return false
}

// parseHunks segments diffText on @@ markers. File headers (---, +++,
// diff --git, index) are skipped; a diff with no @@ marker at all becomes
// one implicit hunk. Lines with no diff prefix are kept as context because
// LLM-authored diffs routinely drop the leading space.
//
// Implements: prd004-unified-diff R1.1-R1.4.
func parseHunks(diffText string) []Hunk {
	lines := strings.Split(diffText, "\n")

	var hunks []Hunk
	var current *Hunk

	flush := func() {
		if current != nil && len(current.Lines) > 0 {
			// Drop a trailing empty context line left by a terminal newline.
			last := current.Lines[len(current.Lines)-1]
			if last.kind == lineContext && last.text == "" {
				current.Lines = current.Lines[:len(current.Lines)-1]
			}
			if len(current.Lines) > 0 {
				hunks = append(hunks, *current)
			}
		}
		current = nil
	}

	for _, raw := range lines {
		switch {
		case strings.HasPrefix(raw, "@@"):
			flush()
			current = &Hunk{Header: raw}
			continue
		case strings.HasPrefix(raw, "--- ") || strings.HasPrefix(raw, "+++ ") ||
			strings.HasPrefix(raw, "diff --git") || strings.HasPrefix(raw, "index "):
			continue
		case strings.HasPrefix(raw, `\ No newline`):
			continue
		}

		if current == nil {
			current = &Hunk{} // Implicit hunk with no @@ header.
		}

		switch {
		case strings.HasPrefix(raw, "+"):
			current.Lines = append(current.Lines, hunkLine{lineAdd, raw[1:]})
		case strings.HasPrefix(raw, "-"):
			current.Lines = append(current.Lines, hunkLine{lineDelete, raw[1:]})
		case strings.HasPrefix(raw, " "):
			current.Lines = append(current.Lines, hunkLine{lineContext, raw[1:]})
		default:
			current.Lines = append(current.Lines, hunkLine{lineContext, raw})
		}
	}
	flush()

	return hunks
}
