// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package shellstream implements the shell-command-style streaming format:
// here-document file creation blocks and piped patch blocks, parsed from an
// open-ended chunk stream.
// Implements: prd005-shell-stream R1 (parsing state);
//
//	docs/ARCHITECTURE § Shell Stream Format.
package shellstream

import "github.com/petar-djukic/streamedit/pkg/types"

// Mode is the coarse position of the parser within the stream.
type Mode int

const (
	ModeIdle Mode = iota
	ModeFileCreation
	ModeDiffPatch
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeFileCreation:
		return "file_creation"
	case ModeDiffPatch:
		return "diff_patch"
	default:
		return "unknown"
	}
}

// State is the caller-owned parsing state for one logical stream. It is
// mutated in place per chunk and discarded at stream end; nothing in it is
// shared between streams.
type State struct {
	Mode          Mode
	CurrentFile   string           // Path of the open block, if any
	CurrentFormat types.FileFormat // How the open block's body is tagged
	EOFMarker     string           // Registered here-document terminator

	// PartialLine holds the final, possibly-incomplete line of the last
	// chunk until a newline (or end of stream) confirms it complete, so a
	// marker split across chunks is still detected.
	PartialLine string

	// CommandBuffer assembles a backslash-continued command line.
	CommandBuffer    string
	ContinuedCommand bool

	contentLines []string // Verbatim lines of the open block
	betweenFiles []string // Idle text awaiting command extraction

	Opened map[string]bool // Paths that received an open signal
	Closed map[string]bool // Paths that received a close signal

	completed []types.ParsedFile
	byPath    map[string]int    // Path -> index into completed
	known     map[string]string // Best-known content per path within this stream
	commands  []string          // Auxiliary directives harvested between files

	parseErrors int
}

// NewState returns a fresh state for one stream.
func NewState() *State {
	return &State{
		Opened: make(map[string]bool),
		Closed: make(map[string]bool),
		byPath: make(map[string]int),
		known:  make(map[string]string),
	}
}

// HasParsingErrors reports whether any non-fatal parse error was recorded.
func (s *State) HasParsingErrors() bool { return s.parseErrors > 0 }

// Files returns the files completed so far, in completion order.
func (s *State) Files() []types.ParsedFile {
	out := make([]types.ParsedFile, len(s.completed))
	copy(out, s.completed)
	return out
}

// Commands returns the auxiliary command strings extracted so far.
func (s *State) Commands() []string {
	out := make([]string, len(s.commands))
	copy(out, s.commands)
	return out
}

// recordFile stores or updates a completed file.
func (s *State) recordFile(f types.ParsedFile) {
	if idx, ok := s.byPath[f.Path]; ok {
		s.completed[idx] = f
		return
	}
	s.byPath[f.Path] = len(s.completed)
	s.completed = append(s.completed, f)
}
