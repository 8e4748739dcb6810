// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package shellstream

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/petar-djukic/streamedit/pkg/types"
)

// Parser recognizes two block templates in a chunked text stream:
//
//	cat > <path> << '<MARKER>'      full replacement content
//	cat << '<MARKER>' | patch <path>  unified diff against prior content
//
// Every line between a recognized command and its terminator is block body,
// verbatim. Terminators match the registered marker exactly after trimming
// surrounding whitespace.
// Implements: prd005-shell-stream R2 (recognition), R3 (chunk safety),
// R4 (diff application on close).
type Parser struct {
	Log       *slog.Logger
	Diff      types.DiffFormat       // Applier for diff_patch bodies
	Store     types.ContentStore     // Prior content source; may be nil
	Extractor types.CommandExtractor // Harvests directives between blocks; may be nil
	Options   types.ApplyOptions     // Passed through to Diff on block close
}

var _ types.StreamFormat = (*Parser)(nil)

// New returns a shell-format parser wired to the given collaborators. Any of
// them may be nil; a nil Diff makes patch blocks close with prior content.
func New(diff types.DiffFormat, store types.ContentStore, extractor types.CommandExtractor, log *slog.Logger) *Parser {
	return &Parser{Log: log, Diff: diff, Store: store, Extractor: extractor}
}

// Name identifies the format in the registry.
func (p *Parser) Name() string { return "shell" }

// NewState returns a fresh per-stream state.
func (p *Parser) NewState() types.StreamState { return NewState() }

// ParseChunk consumes one chunk. Only lines confirmed complete by a newline
// are processed; the trailing remainder is carried to the next chunk so a
// chunk boundary falling inside a command or marker changes nothing.
func (p *Parser) ParseChunk(state types.StreamState, chunk string, events types.FileEvents) error {
	st, ok := state.(*State)
	if !ok {
		return &types.ValidationError{Message: fmt.Sprintf("shell parser given foreign state %T", state)}
	}
	lines := strings.Split(st.PartialLine+chunk, "\n")
	st.PartialLine = lines[len(lines)-1]
	for _, line := range lines[:len(lines)-1] {
		p.processLine(st, line, events)
	}
	return nil
}

// Finish flushes the carry buffer (end of stream confirms it complete) and
// the idle-text buffer. An unterminated block is left open and logged; its
// partial body is not emitted as a completed file.
func (p *Parser) Finish(state types.StreamState, events types.FileEvents) error {
	st, ok := state.(*State)
	if !ok {
		return &types.ValidationError{Message: fmt.Sprintf("shell parser given foreign state %T", state)}
	}
	if st.PartialLine != "" {
		line := st.PartialLine
		st.PartialLine = ""
		p.processLine(st, line, events)
	}
	if st.ContinuedCommand {
		p.log().Warn("stream ended inside a continued command", "buffer", st.CommandBuffer)
		st.ContinuedCommand = false
		st.CommandBuffer = ""
	}
	p.harvestCommands(st)
	if st.Mode != ModeIdle {
		p.log().Warn("stream ended inside an unterminated block",
			"path", st.CurrentFile, "mode", st.Mode.String(), "marker", st.EOFMarker)
		st.parseErrors++
	}
	return nil
}

// Files returns the files completed in the given state.
func (p *Parser) Files(state types.StreamState) []types.ParsedFile {
	if st, ok := state.(*State); ok {
		return st.Files()
	}
	return nil
}

func (p *Parser) processLine(st *State, line string, events types.FileEvents) {
	if st.Mode != ModeIdle {
		if strings.TrimSpace(line) == st.EOFMarker {
			p.closeBlock(st, events)
			return
		}
		if cmd, _ := recognize(normalizeCommand(line)); cmd != nil {
			p.log().Warn("command-looking line inside open block treated as content",
				"path", st.CurrentFile, "line", line)
		}
		st.contentLines = append(st.contentLines, line)
		if events.OnFileChunk != nil {
			events.OnFileChunk(st.CurrentFile, line+"\n", st.CurrentFormat)
		}
		return
	}

	// Idle: assemble continuations, then try to recognize a block opener.
	if st.ContinuedCommand {
		line = st.CommandBuffer + " " + strings.TrimSpace(line)
		st.ContinuedCommand = false
		st.CommandBuffer = ""
	}
	if trimmed := strings.TrimSpace(line); strings.HasSuffix(trimmed, "\\") {
		st.CommandBuffer = strings.TrimSpace(strings.TrimSuffix(trimmed, "\\"))
		st.ContinuedCommand = true
		return
	}

	cmd, warnings := recognize(normalizeCommand(line))
	if cmd == nil {
		if strings.TrimSpace(line) != "" {
			st.betweenFiles = append(st.betweenFiles, line)
		}
		return
	}
	for _, w := range warnings {
		p.log().Warn(w, "line", line)
	}
	p.harvestCommands(st)
	p.openBlock(st, cmd, events)
}

func (p *Parser) openBlock(st *State, cmd *blockCommand, events types.FileEvents) {
	if st.Opened[cmd.path] {
		p.log().Error("file opened more than once in a single stream",
			"path", cmd.path, "severity", "critical")
	} else {
		st.Opened[cmd.path] = true
		if events.OnFileOpen != nil {
			events.OnFileOpen(cmd.path, cmd.format)
		}
	}
	st.Mode = cmd.mode
	st.CurrentFile = cmd.path
	st.CurrentFormat = cmd.format
	st.EOFMarker = cmd.marker
	st.contentLines = nil
}

func (p *Parser) closeBlock(st *State, events types.FileEvents) {
	path := st.CurrentFile
	body := strings.Join(st.contentLines, "\n")

	var final string
	switch st.Mode {
	case ModeFileCreation:
		final = body
	case ModeDiffPatch:
		final = p.applyPatch(st, path, body)
	}
	st.known[path] = final
	st.recordFile(types.ParsedFile{Path: path, Content: final, Format: st.CurrentFormat})

	if st.Closed[path] {
		p.log().Error("file closed more than once in a single stream",
			"path", path, "severity", "critical")
	} else {
		st.Closed[path] = true
		if events.OnFileClose != nil {
			events.OnFileClose(path, st.CurrentFormat)
		}
	}

	st.Mode = ModeIdle
	st.CurrentFile = ""
	st.CurrentFormat = types.FormatFullContent
	st.EOFMarker = ""
	st.contentLines = nil
}

// applyPatch resolves the prior content for path and applies the diff body.
// Application failure keeps the prior content and logs; it never aborts the
// stream.
func (p *Parser) applyPatch(st *State, path, diff string) string {
	prior, ok := st.known[path]
	if !ok && p.Store != nil {
		if looked, err := p.Store.Lookup(path); err == nil {
			prior = looked
		} else {
			p.log().Warn("prior content lookup failed, patching against empty content",
				"path", path, "error", err)
		}
	}
	if p.Diff == nil {
		p.log().Warn("no diff applier configured, keeping prior content", "path", path)
		return prior
	}
	res, err := p.Diff.Apply(prior, diff, p.Options)
	if err != nil {
		p.log().Warn("patch application failed, keeping prior content",
			"path", path, "error", err)
		return prior
	}
	return res.Content
}

// harvestCommands hands accumulated idle text to the command extractor.
func (p *Parser) harvestCommands(st *State) {
	if len(st.betweenFiles) == 0 {
		return
	}
	text := strings.Join(st.betweenFiles, "\n")
	st.betweenFiles = nil
	if p.Extractor == nil || strings.TrimSpace(text) == "" {
		return
	}
	st.commands = append(st.commands, p.Extractor.Extract(text)...)
}

func (p *Parser) log() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}

// blockCommand is one recognized block opener.
type blockCommand struct {
	mode   Mode
	format types.FileFormat
	path   string
	marker string
}

var (
	// cat << 'MARKER' | patch PATH
	rePatch = regexp.MustCompile(`^cat << (['"]?)([^'"|\s]+)(['"]?) \| patch (.+)$`)
	// cat > PATH << 'MARKER' (path is lazy so spaced filenames survive)
	reCreate = regexp.MustCompile(`^cat > (.+?) << (['"]?)([^'"]+?)(['"]?)$`)
)

// recognize matches a normalized line against the block templates. The
// returned warnings describe recoveries (mismatched or unbalanced marker
// quotes) that still yield a usable command.
func recognize(line string) (*blockCommand, []string) {
	if m := rePatch.FindStringSubmatch(line); m != nil {
		warnings := quoteWarnings(m[1], m[3], m[2])
		path, pathWarnings := unquotePath(strings.TrimSpace(m[4]))
		return &blockCommand{
			mode:   ModeDiffPatch,
			format: types.FormatUnifiedDiff,
			path:   path,
			marker: m[2],
		}, append(warnings, pathWarnings...)
	}
	if m := reCreate.FindStringSubmatch(line); m != nil {
		warnings := quoteWarnings(m[2], m[4], m[3])
		path, pathWarnings := unquotePath(strings.TrimSpace(m[1]))
		return &blockCommand{
			mode:   ModeFileCreation,
			format: types.FormatFullContent,
			path:   path,
			marker: m[3],
		}, append(warnings, pathWarnings...)
	}
	return nil, nil
}

// unquotePath strips the quotes around a captured filename. Balanced quotes
// drop silently; a lone or mismatched quote still drops, with a recovery
// warning like the marker's.
func unquotePath(path string) (string, []string) {
	var open, close string
	if len(path) > 0 && (path[0] == '\'' || path[0] == '"') {
		open, path = path[:1], path[1:]
	}
	if len(path) > 0 && (path[len(path)-1] == '\'' || path[len(path)-1] == '"') {
		close, path = path[len(path)-1:], path[:len(path)-1]
	}
	if open == close {
		return path, nil
	}
	return path, []string{fmt.Sprintf("recovered path %q from unbalanced quotes", path)}
}

func quoteWarnings(open, close, marker string) []string {
	if open == close {
		return nil
	}
	return []string{fmt.Sprintf("recovered marker %q from unbalanced quotes", marker)}
}

// normalizeCommand canonicalizes a candidate command line: surrounding
// whitespace trimmed, operators spaced out, runs of whitespace collapsed,
// and the leading command words case-folded. Content lines pass through
// unrecognized because normalization never makes a non-command match.
func normalizeCommand(line string) string {
	s := strings.TrimSpace(line)
	s = strings.ReplaceAll(s, "<<", " << ")
	s = respace(s, '|')
	s = respaceRedirect(s)
	s = strings.Join(strings.Fields(s), " ")
	return foldCommandWords(s)
}

// respace puts single spaces around every occurrence of op.
func respace(s string, op byte) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == op {
			b.WriteString(" ")
			b.WriteByte(op)
			b.WriteString(" ")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// respaceRedirect spaces out '>' characters that are not part of a spaced
// '<<' sequence.
func respaceRedirect(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '>' {
			b.WriteString(" > ")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// foldCommandWords lowercases the tokens in command position: the first
// token and the token right after a pipe.
func foldCommandWords(s string) string {
	fields := strings.Fields(s)
	commandPos := true
	for i, f := range fields {
		if commandPos {
			fields[i] = strings.ToLower(f)
			commandPos = false
		}
		if f == "|" {
			commandPos = true
		}
	}
	return strings.Join(fields, " ")
}
