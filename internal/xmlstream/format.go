// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package xmlstream

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/petar-djukic/streamedit/pkg/types"
)

// fileTag is the element the format adapter listens for.
const fileTag = "file"

// Format adapts the tag extractor into the file-oriented streaming
// interface: each <file path="..." format="..."> element becomes one file,
// with unified-diff bodies applied against prior content on close.
// Implements: prd006-xml-stream R6.
type Format struct {
	Log     *slog.Logger
	Diff    types.DiffFormat   // Applier for format="unified_diff" bodies
	Store   types.ContentStore // Prior content source; may be nil
	Options types.ApplyOptions // Passed through to Diff on element close
}

var _ types.StreamFormat = (*Format)(nil)

// NewFormat returns the XML file format wired to its collaborators.
func NewFormat(diff types.DiffFormat, store types.ContentStore, log *slog.Logger) *Format {
	return &Format{Log: log, Diff: diff, Store: store}
}

type fileState struct {
	inner     *State
	extractor Extractor

	opened    map[string]bool
	closed    map[string]bool
	forwarded map[string]int // Content bytes already sent via OnFileChunk
	known     map[string]string
	completed []types.ParsedFile
	byPath    map[string]int
}

func (s *fileState) HasParsingErrors() bool { return s.inner.HasParsingErrors() }

// Name identifies the format in the registry.
func (f *Format) Name() string { return "xml" }

// NewState returns a fresh per-stream state.
func (f *Format) NewState() types.StreamState {
	return &fileState{
		inner:     NewState(),
		extractor: Extractor{Log: f.Log, Targets: []string{fileTag}},
		opened:    make(map[string]bool),
		closed:    make(map[string]bool),
		forwarded: make(map[string]int),
		known:     make(map[string]string),
		byPath:    make(map[string]int),
	}
}

// ParseChunk consumes one chunk, forwarding confirmed content growth of the
// open file element and finalizing elements as they close.
func (f *Format) ParseChunk(state types.StreamState, chunk string, events types.FileEvents) error {
	st, ok := state.(*fileState)
	if !ok {
		return &types.ValidationError{Message: fmt.Sprintf("xml format given foreign state %T", state)}
	}
	st.extractor.ParseChunk(st.inner, chunk, f.callbacks(st, events))
	return nil
}

// Finish flushes the extractor; files still open at stream end are
// finalized from whatever content arrived.
func (f *Format) Finish(state types.StreamState, events types.FileEvents) error {
	st, ok := state.(*fileState)
	if !ok {
		return &types.ValidationError{Message: fmt.Sprintf("xml format given foreign state %T", state)}
	}
	st.extractor.Finish(st.inner, f.callbacks(st, events))
	return nil
}

// Files returns the files completed in the given state.
func (f *Format) Files(state types.StreamState) []types.ParsedFile {
	st, ok := state.(*fileState)
	if !ok {
		return nil
	}
	out := make([]types.ParsedFile, len(st.completed))
	copy(out, st.completed)
	return out
}

func (f *Format) callbacks(st *fileState, events types.FileEvents) Callbacks {
	return Callbacks{
		OnElement: func(el *Element) {
			f.onFile(st, el, events)
		},
	}
}

func (f *Format) onFile(st *fileState, el *Element, events types.FileEvents) {
	path := el.Attributes["path"]
	if path == "" {
		f.log().Warn("file element without a path attribute skipped")
		return
	}
	format := fileFormat(el.Attributes["format"])

	if !st.opened[path] {
		st.opened[path] = true
		if events.OnFileOpen != nil {
			events.OnFileOpen(path, format)
		}
	}

	// Content arrives as whole-element snapshots; forward only the growth.
	body := trimBody(el.Content)
	if n := st.forwarded[path]; len(body) > n {
		if events.OnFileChunk != nil {
			events.OnFileChunk(path, body[n:], format)
		}
		st.forwarded[path] = len(body)
	}

	if !el.IsComplete {
		return
	}
	// A later element for the same path starts its own growth count.
	st.forwarded[path] = 0

	final := body
	if format == types.FormatUnifiedDiff {
		final = f.applyPatch(st, path, body)
	}
	st.known[path] = final
	if idx, ok := st.byPath[path]; ok {
		st.completed[idx] = types.ParsedFile{Path: path, Content: final, Format: format}
	} else {
		st.byPath[path] = len(st.completed)
		st.completed = append(st.completed, types.ParsedFile{Path: path, Content: final, Format: format})
	}

	if st.closed[path] {
		f.log().Error("file closed more than once in a single stream",
			"path", path, "severity", "critical")
		return
	}
	st.closed[path] = true
	if events.OnFileClose != nil {
		events.OnFileClose(path, format)
	}
}

func (f *Format) applyPatch(st *fileState, path, diff string) string {
	prior, ok := st.known[path]
	if !ok && f.Store != nil {
		if looked, err := f.Store.Lookup(path); err == nil {
			prior = looked
		} else {
			f.log().Warn("prior content lookup failed, patching against empty content",
				"path", path, "error", err)
		}
	}
	if f.Diff == nil {
		f.log().Warn("no diff applier configured, keeping prior content", "path", path)
		return prior
	}
	res, err := f.Diff.Apply(prior, diff, f.Options)
	if err != nil {
		f.log().Warn("patch application failed, keeping prior content",
			"path", path, "error", err)
		return prior
	}
	return res.Content
}

// Serialize renders files back into the tagged wire syntax.
func (f *Format) Serialize(files []types.ParsedFile) string {
	var b strings.Builder
	for i, fl := range files {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "<file path=%q format=%q>\n", fl.Path, fl.Format)
		if fl.Content != "" {
			b.WriteString(fl.Content)
			if !strings.HasSuffix(fl.Content, "\n") {
				b.WriteString("\n")
			}
		}
		b.WriteString("</file>\n")
	}
	return b.String()
}

// Deserialize parses a complete serialized payload in one pass.
func (f *Format) Deserialize(text string) ([]types.ParsedFile, error) {
	st := f.NewState()
	if err := f.ParseChunk(st, text, types.FileEvents{}); err != nil {
		return nil, err
	}
	if err := f.Finish(st, types.FileEvents{}); err != nil {
		return nil, err
	}
	return f.Files(st), nil
}

// Instructions describes the wire syntax for a model prompt.
func (f *Format) Instructions() string {
	return strings.TrimSpace(`
Emit every file as one tagged block.

To create or fully replace a file:

<file path="path/to/file" format="full_content">
<complete file content>
</file>

To modify an existing file, emit a unified diff body:

<file path="path/to/file" format="unified_diff">
@@ ... @@
 context line
-removed line
+added line
</file>

Rules:
- One element per file; open and close each file exactly once.
- The path and format attributes are required.
- Write file content verbatim; do not entity-encode it.
`) + "\n"
}

func fileFormat(attr string) types.FileFormat {
	if strings.EqualFold(attr, types.FormatUnifiedDiff.String()) {
		return types.FormatUnifiedDiff
	}
	return types.FormatFullContent
}

// trimBody strips the single newline that conventionally follows the open
// tag and precedes the close tag so they do not become file content.
func trimBody(content string) string {
	content = strings.TrimPrefix(content, "\n")
	content = strings.TrimSuffix(content, "\n")
	return content
}

func (f *Format) log() *slog.Logger {
	if f.Log != nil {
		return f.Log
	}
	return slog.Default()
}
