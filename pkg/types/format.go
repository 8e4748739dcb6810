// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package types defines the shared contracts for streamedit: the streaming
// format and diff format interfaces, the matching strategy chain, and the
// result/error types both engines report through.
// Implements: prd001-format-contract R1, R2, R3;
//
//	docs/ARCHITECTURE § Format Contract.
package types

// FileFormat tags how a file's body arrives in the stream: as complete
// content or as a unified diff against prior content.
type FileFormat int

const (
	FormatFullContent FileFormat = iota
	FormatUnifiedDiff
)

func (f FileFormat) String() string {
	switch f {
	case FormatFullContent:
		return "full_content"
	case FormatUnifiedDiff:
		return "unified_diff"
	default:
		return "unknown"
	}
}

// MatchStrategy identifies one text-locating strategy. The zero-based order
// of the constants is the default preference chain.
//
// Implements: prd002-match-engine R1.1.
type MatchStrategy int

const (
	StrategyExact MatchStrategy = iota
	StrategyWhitespaceInsensitive
	StrategyIndentationPreserving
	StrategyFuzzy
)

func (s MatchStrategy) String() string {
	switch s {
	case StrategyExact:
		return "exact"
	case StrategyWhitespaceInsensitive:
		return "whitespace_insensitive"
	case StrategyIndentationPreserving:
		return "indentation_preserving"
	case StrategyFuzzy:
		return "fuzzy"
	default:
		return "unknown"
	}
}

// DefaultStrategies returns the fixed preference chain applied when a caller
// does not override it.
func DefaultStrategies() []MatchStrategy {
	return []MatchStrategy{
		StrategyExact,
		StrategyWhitespaceInsensitive,
		StrategyIndentationPreserving,
		StrategyFuzzy,
	}
}

// ParsedFile is one completed file reconstructed from a stream.
type ParsedFile struct {
	Path    string     // Path as it appeared in the stream
	Content string     // Final content (diffs already applied)
	Format  FileFormat // How the body arrived
}

// FileEvents carries the per-file callbacks a streaming parser emits.
// Any callback may be nil.
type FileEvents struct {
	OnFileOpen  func(path string, format FileFormat)
	OnFileChunk func(path, text string, format FileFormat)
	OnFileClose func(path string, format FileFormat)
}

// StreamState is the caller-owned, per-stream parsing state threaded through
// every ParseChunk call. Each StreamFormat returns its own concrete type from
// NewState; states are never shared between streams.
type StreamState interface {
	// HasParsingErrors reports whether any non-fatal parse error was
	// recorded on this stream so far.
	HasParsingErrors() bool
}

// StreamFormat is the common contract over the streaming output formats.
// Implementations never raise for malformed input: they log, record the
// error on the state, and keep scanning.
//
// Implements: prd001-format-contract R1.1-R1.5.
type StreamFormat interface {
	// Name returns the registry name of the format.
	Name() string

	// NewState returns a fresh state for one logical stream.
	NewState() StreamState

	// ParseChunk consumes the next chunk of the stream, firing file events
	// as blocks open, grow, and close. Chunks must arrive in order. The
	// only error returned is a ValidationError for a state of the wrong
	// concrete type.
	ParseChunk(state StreamState, chunk string, events FileEvents) error

	// Finish flushes any withheld partial line and runs end-of-stream
	// recovery. Files returns the completed set afterwards.
	Finish(state StreamState, events FileEvents) error

	// Files returns the files completed on the given state so far.
	Files(state StreamState) []ParsedFile

	// Serialize renders files back into the wire syntax, the exact inverse
	// of parsing.
	Serialize(files []ParsedFile) string

	// Deserialize runs the full pipeline synchronously over text and
	// returns the completed-file list.
	Deserialize(text string) ([]ParsedFile, error)

	// Instructions returns static descriptive text for prompting an LLM
	// to emit this format.
	Instructions() string
}

// ApplyOptions tunes a single DiffFormat.Apply call.
//
// Implements: prd001-format-contract R2.2.
type ApplyOptions struct {
	// Lenient disables fail-fast: every unit that can apply is applied and
	// failures are accumulated in the result. The zero value is strict
	// mode, which returns an error on the first failed unit, any parse
	// error, or zero parsed units from non-empty input.
	Lenient bool

	// Strategies overrides the matching preference chain. Nil means
	// DefaultStrategies().
	Strategies []MatchStrategy

	// FuzzyThreshold overrides the minimum fuzzy similarity. Zero means
	// the engine default (0.8).
	FuzzyThreshold float64
}

// ValidationIssue reports one problem found by a non-mutating dry run.
type ValidationIssue struct {
	Unit    int    // Block or hunk index (0-based)
	Line    int    // Source line in the diff text (1-based, 0 if unknown)
	Message string // What is wrong (absent, ambiguous, malformed)
}

// DiffFormat is the common apply/validate contract over the diff formats.
//
// Implements: prd001-format-contract R2.1-R2.4.
type DiffFormat interface {
	// Name returns the registry name of the format.
	Name() string

	// Apply produces a new document from original and diffText. The
	// result is always non-nil when the diff parsed at all; in lenient
	// mode err is nil unless a safety limit was breached.
	Apply(original, diffText string, opts ApplyOptions) (*DiffApplyResult, error)

	// Validate dry-runs diffText against original under exact matching
	// only, reporting absent or ambiguous units without mutating anything.
	Validate(original, diffText string) ([]ValidationIssue, error)
}

// ContentStore is the content-lookup collaborator: it returns the current
// content for a path, or the empty string when none exists.
type ContentStore interface {
	Lookup(path string) (string, error)
}

// CommandExtractor is the command-extraction collaborator: it scans
// inter-file text for auxiliary directives. The extracted strings are
// opaque to the core.
type CommandExtractor interface {
	Extract(text string) []string
}
