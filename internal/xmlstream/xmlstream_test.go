// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package xmlstream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/streamedit/pkg/types"
)

func run(t *testing.T, x *Extractor, stream string, chunkSize int, cb Callbacks) *State {
	t.Helper()
	st := NewState()
	for start := 0; start < len(stream); start += chunkSize {
		end := start + chunkSize
		if end > len(stream) {
			end = len(stream)
		}
		x.ParseChunk(st, stream[start:end], cb)
	}
	x.Finish(st, cb)
	return st
}

func TestExtractor_SimpleElement(t *testing.T) {
	x := &Extractor{Targets: []string{"answer"}}
	st := run(t, x, `prose <answer lang="en">forty-two</answer> more prose`, 1<<20, Callbacks{})

	els := st.Elements()
	require.Len(t, els, 1)
	assert.Equal(t, "answer", els[0].TagName)
	assert.Equal(t, "forty-two", els[0].Content)
	assert.Equal(t, "en", els[0].Attributes["lang"])
	assert.True(t, els[0].IsComplete)
	assert.False(t, st.HasParsingErrors())
}

func TestExtractor_NestedElements(t *testing.T) {
	x := &Extractor{}
	st := run(t, x, `<r>a<c>b</c></r>`, 1<<20, Callbacks{})

	els := st.Elements()
	require.Len(t, els, 2, "inner delivered before outer")
	assert.Equal(t, "c", els[0].TagName)
	assert.Equal(t, "b", els[0].Content)
	assert.Equal(t, "r", els[1].TagName)
	assert.Equal(t, "a", els[1].Content, "nested tag's text stays on the child")
	require.Len(t, els[1].Children, 1)
	assert.Same(t, els[0], els[1].Children[0])
}

func TestExtractor_ChunkBoundaryInvariance(t *testing.T) {
	stream := `intro <file path="a.go">package a` + "\n" + `var X = 1</file> outro`
	for _, size := range []int{1, 2, 5, len(stream)} {
		x := &Extractor{Targets: []string{"file"}}
		st := run(t, x, stream, size, Callbacks{})

		els := st.Elements()
		require.Len(t, els, 1, "chunk size %d", size)
		assert.Equal(t, "package a\nvar X = 1", els[0].Content, "chunk size %d", size)
		assert.Equal(t, "a.go", els[0].Attributes["path"], "chunk size %d", size)
	}
}

func TestExtractor_PartialSnapshotsThenComplete(t *testing.T) {
	x := &Extractor{Targets: []string{"file"}}
	var snapshots []string
	var completes int
	cb := Callbacks{OnElement: func(el *Element) {
		if el.IsComplete {
			completes++
			return
		}
		snapshots = append(snapshots, el.Content)
	}}

	st := NewState()
	x.ParseChunk(st, `<file path="a">hel`, cb)
	x.ParseChunk(st, `lo`, cb)
	x.ParseChunk(st, ` world</file>`, cb)
	x.Finish(st, cb)

	assert.Equal(t, []string{"hel", "hello"}, snapshots,
		"each snapshot carries only confirmed content")
	assert.Equal(t, 1, completes)
}

func TestExtractor_CaseInsensitiveClose(t *testing.T) {
	x := &Extractor{Targets: []string{"File"}}
	st := run(t, x, `<FILE path="a">body</file>`, 1<<20, Callbacks{})

	els := st.Elements()
	require.Len(t, els, 1)
	assert.Equal(t, "body", els[0].Content)
	assert.True(t, els[0].IsComplete)
}

func TestExtractor_UnmatchedCloseReported(t *testing.T) {
	x := &Extractor{Targets: []string{"a"}}
	var errs []string
	cb := Callbacks{OnError: func(e *types.ParseError) { errs = append(errs, e.Message) }}
	st := run(t, x, `<a>body</b></a>`, 1<<20, cb)

	els := st.Elements()
	require.Len(t, els, 1)
	assert.Equal(t, "body", els[0].Content, "stray close tag does not truncate the element")
	assert.True(t, st.HasParsingErrors())
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "</b>")
}

func TestExtractor_OuterCloseFinalizesInnerIncomplete(t *testing.T) {
	x := &Extractor{}
	st := run(t, x, `<outer><inner>text</outer>`, 1<<20, Callbacks{})

	els := st.Elements()
	require.Len(t, els, 2)
	assert.Equal(t, "inner", els[0].TagName)
	assert.False(t, els[0].IsComplete)
	assert.Equal(t, "outer", els[1].TagName)
	assert.True(t, els[1].IsComplete)
	assert.True(t, st.HasParsingErrors())
}

func TestExtractor_UnclosedAtFinish(t *testing.T) {
	x := &Extractor{Targets: []string{"file"}}
	st := run(t, x, `<file path="a">partial content`, 1<<20, Callbacks{})

	els := st.Elements()
	require.Len(t, els, 1)
	assert.Equal(t, "partial content", els[0].Content)
	assert.False(t, els[0].IsComplete)
	assert.True(t, st.HasParsingErrors())
}

func TestExtractor_SelfClosingTag(t *testing.T) {
	x := &Extractor{}
	st := run(t, x, `<wrapper>a<hr/>b</wrapper>`, 1<<20, Callbacks{})

	els := st.Elements()
	require.Len(t, els, 2)
	assert.Equal(t, "hr", els[0].TagName)
	assert.Empty(t, els[0].Content)
	assert.True(t, els[0].IsComplete)
	assert.Equal(t, "ab", els[1].Content)
	require.Len(t, els[1].Children, 1)
	assert.Same(t, els[0], els[1].Children[0])
}

func TestExtractor_TargetFiltering(t *testing.T) {
	x := &Extractor{Targets: []string{"keep"}}
	st := run(t, x, `<skip>no</skip><keep>yes</keep>`, 1<<20, Callbacks{})

	els := st.Elements()
	require.Len(t, els, 1)
	assert.Equal(t, "keep", els[0].TagName)
}

func TestExtractor_AttributeVariants(t *testing.T) {
	x := &Extractor{Targets: []string{"t"}}
	st := run(t, x, `<t a="double" b='single' c=bare d>x</t>`, 1<<20, Callbacks{})

	els := st.Elements()
	require.Len(t, els, 1)
	attrs := els[0].Attributes
	assert.Equal(t, "double", attrs["a"])
	assert.Equal(t, "single", attrs["b"])
	assert.Equal(t, "bare", attrs["c"])
	assert.Equal(t, "", attrs["d"])
}

func TestExtractor_FallbackScanWithinWindow(t *testing.T) {
	// The attribute value contains '<', which the strict scanner rejects,
	// so only the end-of-stream window scan can recover the element.
	filler := strings.Repeat("x", 500)
	stream := filler + `<answer note="a<b">late content`
	x := &Extractor{Targets: []string{"answer"}, MaxPending: 1000}
	st := run(t, x, stream, 64, Callbacks{})

	els := st.Elements()
	require.Len(t, els, 1)
	assert.Equal(t, "late content", els[0].Content)
	assert.False(t, els[0].IsComplete)
	assert.True(t, st.HasParsingErrors())
}

func TestExtractor_WindowIsBounded(t *testing.T) {
	// 20k of filler pushes an early unparseable mention of the target out
	// of the 10k window, so nothing is recovered.
	stream := `<answer mangled ` + strings.Repeat("y", 20000)
	x := &Extractor{Targets: []string{"answer"}}
	st := run(t, x, stream, 4096, Callbacks{})

	assert.Empty(t, st.Elements())
}

func TestFormat_FullContentFile(t *testing.T) {
	f := NewFormat(nil, nil, nil)
	st := f.NewState()

	var opens, closes int
	var chunks []string
	events := types.FileEvents{
		OnFileOpen:  func(path string, _ types.FileFormat) { opens++ },
		OnFileChunk: func(_, data string, _ types.FileFormat) { chunks = append(chunks, data) },
		OnFileClose: func(path string, _ types.FileFormat) { closes++ },
	}

	require.NoError(t, f.ParseChunk(st, "<file path=\"a.txt\" format=\"full_content\">\nhel", events))
	require.NoError(t, f.ParseChunk(st, "lo\n</file>\n", events))
	require.NoError(t, f.Finish(st, events))

	files := f.Files(st)
	require.Len(t, files, 1)
	assert.Equal(t, "a.txt", files[0].Path)
	assert.Equal(t, "hello", files[0].Content)
	assert.Equal(t, types.FormatFullContent, files[0].Format)
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes)
	assert.Equal(t, "hello", strings.Join(chunks, ""))
}

func TestFormat_DiffFileAppliesAgainstStore(t *testing.T) {
	f := NewFormat(fakeDiff{}, mapStore{"a.txt": "old\n"}, nil)
	st := f.NewState()
	payload := "<file path=\"a.txt\" format=\"unified_diff\">\n@@ -1 +1 @@\n-old\n+new\n</file>\n"
	require.NoError(t, f.ParseChunk(st, payload, types.FileEvents{}))
	require.NoError(t, f.Finish(st, types.FileEvents{}))

	files := f.Files(st)
	require.Len(t, files, 1)
	assert.Equal(t, types.FormatUnifiedDiff, files[0].Format)
	assert.Equal(t, "applied:old\n", files[0].Content)
}

func TestFormat_DiffFailureKeepsPrior(t *testing.T) {
	f := NewFormat(fakeDiff{fail: true}, mapStore{"a.txt": "old\n"}, nil)
	st := f.NewState()
	payload := "<file path=\"a.txt\" format=\"unified_diff\">\ngarbage\n</file>\n"
	require.NoError(t, f.ParseChunk(st, payload, types.FileEvents{}))
	require.NoError(t, f.Finish(st, types.FileEvents{}))

	files := f.Files(st)
	require.Len(t, files, 1)
	assert.Equal(t, "old\n", files[0].Content)
}

func TestFormat_SerializeRoundTrip(t *testing.T) {
	f := NewFormat(nil, nil, nil)
	files := []types.ParsedFile{
		{Path: "a.txt", Content: "hello\nworld", Format: types.FormatFullContent},
		{Path: "b.txt", Content: "solo", Format: types.FormatFullContent},
	}
	got, err := f.Deserialize(f.Serialize(files))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, files[0], got[0])
	assert.Equal(t, files[1], got[1])
}

func TestFormat_RepeatedPathLaterContentWins(t *testing.T) {
	f := NewFormat(nil, nil, nil)
	st := f.NewState()

	var closes int
	var chunks []string
	events := types.FileEvents{
		OnFileChunk: func(_, data string, _ types.FileFormat) { chunks = append(chunks, data) },
		OnFileClose: func(string, types.FileFormat) { closes++ },
	}

	stream := "<file path=\"a.txt\">\nfirst\n</file>\n<file path=\"a.txt\">\nsecond\n</file>\n"
	require.NoError(t, f.ParseChunk(st, stream, events))
	require.NoError(t, f.Finish(st, events))

	files := f.Files(st)
	require.Len(t, files, 1)
	assert.Equal(t, "second", files[0].Content)
	assert.Equal(t, 1, closes, "the duplicate close is logged, not re-emitted")
	assert.Equal(t, "firstsecond", strings.Join(chunks, ""), "the replacing element forwards from scratch")
}

func TestFormat_MissingPathSkipped(t *testing.T) {
	f := NewFormat(nil, nil, nil)
	st := f.NewState()
	require.NoError(t, f.ParseChunk(st, "<file format=\"full_content\">\nx\n</file>", types.FileEvents{}))
	require.NoError(t, f.Finish(st, types.FileEvents{}))
	assert.Empty(t, f.Files(st))
}

type mapStore map[string]string

func (m mapStore) Lookup(path string) (string, error) { return m[path], nil }

type fakeDiff struct{ fail bool }

func (d fakeDiff) Name() string { return "fake" }

func (d fakeDiff) Apply(original, _ string, _ types.ApplyOptions) (*types.DiffApplyResult, error) {
	if d.fail {
		return &types.DiffApplyResult{Content: original}, &types.ValidationError{Message: "nope"}
	}
	return &types.DiffApplyResult{Content: "applied:" + original}, nil
}

func (d fakeDiff) Validate(original, _ string) ([]types.ValidationIssue, error) {
	return nil, nil
}
