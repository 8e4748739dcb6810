// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package searchreplace

import (
	"strings"
	"testing"

	"github.com/petar-djukic/streamedit/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func block(search, replace string) string {
	return "<<<<<<< SEARCH\n" + search + "\n=======\n" + replace + "\n>>>>>>> REPLACE"
}

func TestApply_SingleBlock(t *testing.T) {
	a := &Applier{}
	original := "alpha\nbeta\ngamma\n"

	result, err := a.Apply(original, block("beta", "BETA"), types.ApplyOptions{})
	require.NoError(t, err)
	assert.Equal(t, "alpha\nBETA\ngamma\n", result.Content)
	assert.Equal(t, 1, result.BlocksTotal)
	assert.Equal(t, 1, result.BlocksApplied)
	assert.Equal(t, 0, result.BlocksFailed)
	assert.True(t, result.Succeeded())
}

func TestApply_SequentialBlocks(t *testing.T) {
	a := &Applier{}
	diff := block("one", "1") + "\n" + block("two", "2")

	result, err := a.Apply("one\ntwo\n", diff, types.ApplyOptions{})
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n", result.Content)
	assert.Equal(t, 2, result.BlocksApplied)
}

func TestApply_AmbiguousFailsAndLeavesContent(t *testing.T) {
	a := &Applier{}
	original := "foo\nbar\nfoo\nx\ny\nz\nq\nr\ns\nt\n"

	result, err := a.Apply(original, block("foo", "FOO"), types.ApplyOptions{})
	require.Error(t, err)
	assert.Equal(t, original, result.Content)
	assert.Equal(t, 1, result.BlocksFailed)
	require.Len(t, result.FailedBlocks, 1)
	assert.Contains(t, result.FailedBlocks[0].Error, "ambiguous")
}

func TestApply_NotFoundStrict(t *testing.T) {
	a := &Applier{}
	result, err := a.Apply("abc\ndef\n", block("totally absent text here", "x"), types.ApplyOptions{})
	require.Error(t, err)
	assert.Equal(t, "abc\ndef\n", result.Content)
	require.Len(t, result.FailedBlocks, 1)
	assert.Equal(t, "totally absent text here", result.FailedBlocks[0].Search)
}

func TestApply_LenientContinuesPastFailure(t *testing.T) {
	a := &Applier{}
	diff := block("absent absent absent", "x") + "\n" + block("def", "DEF")

	result, err := a.Apply("abc\ndef\n", diff, types.ApplyOptions{Lenient: true})
	require.NoError(t, err)
	assert.Equal(t, "abc\nDEF\n", result.Content)
	assert.Equal(t, 1, result.BlocksApplied)
	assert.Equal(t, 1, result.BlocksFailed)
}

func TestApply_WhitespaceSearchAppends(t *testing.T) {
	a := &Applier{}

	// Document without a trailing newline gains one before the append.
	result, err := a.Apply("line1", block(" ", "line2"), types.ApplyOptions{})
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2", result.Content)

	// Document already ending in a newline does not.
	result, err = a.Apply("line1\n", block(" ", "line2"), types.ApplyOptions{})
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2", result.Content)
}

func TestApply_EmptySearchSectionRejected(t *testing.T) {
	a := &Applier{}
	diff := "<<<<<<< SEARCH\n=======\nnew text\n>>>>>>> REPLACE"

	result, err := a.Apply("content\n", diff, types.ApplyOptions{Lenient: true})
	require.NoError(t, err)
	assert.Equal(t, "content\n", result.Content)
	assert.Equal(t, 1, result.BlocksFailed)
	assert.Contains(t, result.Errors[0], "empty search section")
}

func TestApply_EmptyDiffIsIdempotent(t *testing.T) {
	a := &Applier{}
	result, err := a.Apply("unchanged\n", "", types.ApplyOptions{})
	require.NoError(t, err)
	assert.Equal(t, "unchanged\n", result.Content)
	assert.Equal(t, 0, result.BlocksTotal)
}

func TestApply_NonEmptyInputZeroBlocksStrict(t *testing.T) {
	a := &Applier{}
	_, err := a.Apply("doc\n", "just prose, no blocks", types.ApplyOptions{})
	require.Error(t, err)
	var verr *types.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestApply_IndentationPreserved(t *testing.T) {
	a := &Applier{}
	original := "func f() {\n\t\told()\n}\n"
	diff := block("old()", "new()\nextra()")

	// Force the indentation strategy so the replacement is re-indented to
	// the matched window's style.
	opts := types.ApplyOptions{
		Strategies: []types.MatchStrategy{types.StrategyIndentationPreserving},
	}
	result, err := a.Apply(original, diff, opts)
	require.NoError(t, err)
	assert.Equal(t, "func f() {\n\t\tnew()\n\t\textra()\n}\n", result.Content)
}

func TestApply_FencedVariant(t *testing.T) {
	a := &Applier{}
	diff := "<<<<<<< SEARCH\nbeta\n```\nBETA\n```"

	result, err := a.Apply("alpha\nbeta\n", diff, types.ApplyOptions{})
	require.NoError(t, err)
	assert.Equal(t, "alpha\nBETA\n", result.Content)
}

func TestParse_OrphanedSearchRecovers(t *testing.T) {
	diff := "<<<<<<< SEARCH\nlost\n<<<<<<< SEARCH\nbeta\n=======\nBETA\n>>>>>>> REPLACE"

	blocks, errs := parseBlocks(diff)
	require.Len(t, blocks, 1)
	assert.Equal(t, "beta", blocks[0].Search)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "orphaned")
}

func TestParse_DoubleSeparatorDiscards(t *testing.T) {
	diff := "<<<<<<< SEARCH\na\n=======\nb\n=======\nc\n>>>>>>> REPLACE"

	blocks, errs := parseBlocks(diff)
	assert.Empty(t, blocks)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "second separator")
}

func TestParse_TruncatedBlock(t *testing.T) {
	diff := "<<<<<<< SEARCH\na\n=======\nb"

	blocks, errs := parseBlocks(diff)
	assert.Empty(t, blocks)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "truncated")
}

func TestValidate_ReportsAbsentAndAmbiguous(t *testing.T) {
	a := &Applier{}
	original := "dup\nx\ndup\n"
	diff := block("dup", "d") + "\n" + block("missing", "m")

	issues, err := a.Validate(original, diff)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Contains(t, issues[0].Message, "ambiguous")
	assert.Contains(t, issues[1].Message, "not found")
	// Validate never mutates: nothing to assert beyond the inputs by value.
}

func TestCreateDiff_RoundTrip(t *testing.T) {
	a := &Applier{}

	tests := []struct {
		name   string
		before string
		after  string
	}{
		{"middle change", "a\nb\nc\nd\ne", "a\nb\nC\nd\ne"},
		{"insertion", "a\nb\nc", "a\nb\nx\ny\nc"},
		{"deletion", "a\nb\nc\nd", "a\nd"},
		{"change at top", "a\nb\nc", "A\nb\nc"},
		{"change at bottom", "a\nb\nc", "a\nb\nC"},
		{"from empty", "", "fresh\ncontent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff := CreateDiff(tt.before, tt.after, CreateDiffOptions{})
			require.NotEmpty(t, diff)
			result, err := a.Apply(tt.before, diff, types.ApplyOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.after, result.Content)
		})
	}
}

func TestCreateDiff_EqualInputsEmpty(t *testing.T) {
	assert.Empty(t, CreateDiff("same\n", "same\n", CreateDiffOptions{}))
}

func TestCreateDiff_ShrinksContextUnderSizeCap(t *testing.T) {
	long := strings.Repeat("padding line\n", 10)
	before := long + "target\n" + long
	after := long + "TARGET\n" + long

	diff := CreateDiff(before, after, CreateDiffOptions{ContextLines: 8, MaxSearchSize: 60})
	// The emitted search text must respect the cap (or be minimal).
	blocks, errs := parseBlocks(diff)
	require.Empty(t, errs)
	require.Len(t, blocks, 1)
	assert.LessOrEqual(t, len(blocks[0].Search), 60)

	a := &Applier{}
	result, err := a.Apply(before, diff, types.ApplyOptions{})
	require.NoError(t, err)
	assert.Equal(t, after, result.Content)
}
