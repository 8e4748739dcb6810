// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Implements: prd001-format-contract R4 (apply results).
package types

// FailedBlock captures one failed search/replace block or hunk with enough
// detail for upstream retry or regeneration.
type FailedBlock struct {
	Search  string // Search text (or joined hunk before-lines)
	Replace string // Replacement text (or joined hunk after-lines)
	Error   string // Why the unit failed
	Line    int    // Source line of the unit in the diff text (1-based)
}

// DiffApplyResult is the one-shot outcome of a single Apply call.
type DiffApplyResult struct {
	Content       string        // Resulting document (original on full failure)
	BlocksTotal   int           // Units parsed from the diff text
	BlocksApplied int           // Units applied successfully
	BlocksFailed  int           // Units that failed
	Errors        []string      // Per-unit and parse errors, in order
	Warnings      []string      // Non-fatal observations (recovered malformations)
	FailedBlocks  []FailedBlock // Detail for every failed unit
}

// Succeeded reports whether every parsed unit applied.
func (r *DiffApplyResult) Succeeded() bool {
	return r.BlocksFailed == 0 && len(r.Errors) == 0
}
