// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Implements: prd003-search-replace R5 (reverse generator).
package searchreplace

import "strings"

const (
	// DefaultContextLines pads the differing range on both sides.
	DefaultContextLines = 3
	// DefaultMaxSearchSize caps the emitted search text, in bytes.
	DefaultMaxSearchSize = 4096
)

// CreateDiffOptions tunes CreateDiff. Zero values take the defaults above.
type CreateDiffOptions struct {
	ContextLines  int
	MaxSearchSize int
}

// CreateDiff builds a search/replace diff turning before into after, for
// inputs differing by one contiguous line range. It locates the first and
// last differing lines, pads both sides with context, and retries with
// shrinking context while the search text exceeds MaxSearchSize. Equal
// inputs produce an empty diff.
//
// Implements: prd003-search-replace R5.1-R5.4.
func CreateDiff(before, after string, opts CreateDiffOptions) string {
	if before == after {
		return ""
	}
	if opts.ContextLines <= 0 {
		opts.ContextLines = DefaultContextLines
	}
	if opts.MaxSearchSize <= 0 {
		opts.MaxSearchSize = DefaultMaxSearchSize
	}

	// An empty document has nothing to anchor on: emit a pure-append block
	// (single blank search line).
	if before == "" {
		return renderBlock(" ", after)
	}

	beforeLines := strings.Split(before, "\n")
	afterLines := strings.Split(after, "\n")

	// First differing line from the top.
	first := 0
	for first < len(beforeLines) && first < len(afterLines) && beforeLines[first] == afterLines[first] {
		first++
	}

	// Last differing line from the bottom, never crossing first.
	lastB, lastA := len(beforeLines)-1, len(afterLines)-1
	for lastB >= first && lastA >= first && beforeLines[lastB] == afterLines[lastA] {
		lastB--
		lastA--
	}

	for ctx := opts.ContextLines; ; ctx-- {
		lo := first - ctx
		if lo < 0 {
			lo = 0
		}
		hiB := lastB + ctx
		if hiB >= len(beforeLines) {
			hiB = len(beforeLines) - 1
		}
		// Context lines above first and below lastB are identical on both
		// sides, so the after window shares lo and extends by the same
		// trailing amount.
		hiA := lastA + (hiB - lastB)

		search := strings.Join(beforeLines[lo:hiB+1], "\n")
		replace := strings.Join(afterLines[lo:hiA+1], "\n")

		if len(search) <= opts.MaxSearchSize || ctx == 0 {
			return renderBlock(search, replace)
		}
	}
}

func renderBlock(search, replace string) string {
	var b strings.Builder
	b.WriteString(markerSearch)
	b.WriteByte('\n')
	b.WriteString(search)
	b.WriteByte('\n')
	b.WriteString(markerDivider)
	b.WriteByte('\n')
	b.WriteString(replace)
	b.WriteByte('\n')
	b.WriteString(markerReplace)
	return b.String()
}
