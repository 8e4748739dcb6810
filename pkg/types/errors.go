// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Implements: prd001-format-contract R5 (error taxonomy).
package types

import "fmt"

// ParseError describes a malformed block, tag, or command in stream or diff
// text. It is non-fatal: the producer records it and keeps scanning.
type ParseError struct {
	Line    int    // Source line where the problem starts (1-based, 0 if unknown)
	RawText string // The offending text, possibly truncated
	Message string // What went wrong
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

// MatchNotFoundError reports that a search text or hunk context is absent
// from the target under every attempted strategy. The unit fails; the
// engine never guesses.
type MatchNotFoundError struct {
	Search     string          // What was searched for
	Closest    string          // Best partial match found (empty if none)
	Similarity float64         // Similarity of the closest match
	LineStart  int             // Start line of the closest match (1-based)
	LineEnd    int             // End line of the closest match
	Attempted  []MatchStrategy // Strategies that were tried
}

func (e *MatchNotFoundError) Error() string {
	if e.Closest == "" {
		return "no match found for search text"
	}
	return fmt.Sprintf("no match found (closest at lines %d-%d, similarity %.2f)",
		e.LineStart, e.LineEnd, e.Similarity)
}

// AmbiguousMatchError reports two or more equally valid locations under the
// active strategy. The unit fails; the engine never auto-resolves.
type AmbiguousMatchError struct {
	Strategy  MatchStrategy
	Locations []int // 1-based line numbers of the qualifying locations
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("ambiguous match: %d locations qualify under %s matching at lines %v",
		len(e.Locations), e.Strategy, e.Locations)
}

// SafetyLimitError reports a breached size, count, time, or iteration cap.
// It is always fatal: the whole call aborts.
type SafetyLimitError struct {
	Limit  string // Which limit (e.g. "max_hunks", "deadline")
	Max    int64  // Configured cap
	Actual int64  // Observed value (0 when not meaningful)
}

func (e *SafetyLimitError) Error() string {
	if e.Actual > 0 {
		return fmt.Sprintf("safety limit %s exceeded: %d > %d", e.Limit, e.Actual, e.Max)
	}
	return fmt.Sprintf("safety limit %s exceeded (max %d)", e.Limit, e.Max)
}

// ValidationError reports malformed input to an API call (wrong state type,
// empty required argument).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Message
}
