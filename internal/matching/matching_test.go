// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package matching

import (
	"testing"

	"github.com/petar-djukic/streamedit/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFind_Exact(t *testing.T) {
	content := "alpha\nbeta\ngamma\n"
	m, err := Find(content, "beta", types.DefaultStrategies(), Config{})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, types.StrategyExact, m.Strategy)
	assert.Equal(t, "beta", m.Window(content))
	assert.Equal(t, 1.0, m.Similarity)
}

func TestFind_ExactAmbiguous(t *testing.T) {
	content := "foo\nbar\nfoo\nbaz\n"
	m, err := Find(content, "foo", types.DefaultStrategies(), Config{})
	assert.Nil(t, m)
	require.Error(t, err)
	var ambiguous *types.AmbiguousMatchError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, types.StrategyExact, ambiguous.Strategy)
	assert.Equal(t, []int{1, 3}, ambiguous.Locations)
}

func TestFind_WhitespaceInsensitive(t *testing.T) {
	content := "if x {\n\treturn   y\n}\n"
	search := "if x {\n    return y\n}"
	m, err := Find(content, search, types.DefaultStrategies(), Config{})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, types.StrategyWhitespaceInsensitive, m.Strategy)
	assert.Equal(t, "if x {\n\treturn   y\n}", m.Window(content))
}

func TestFind_IndentationPreserving(t *testing.T) {
	content := "func main() {\n\t\tdoWork()\n\t\tdone()\n}\n"
	// Same lines, written with no indentation at all.
	search := "doWork()\ndone()"
	m, err := Find(content, search,
		[]types.MatchStrategy{types.StrategyIndentationPreserving}, Config{})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, types.StrategyIndentationPreserving, m.Strategy)
	assert.Equal(t, "\t\tdoWork()\n\t\tdone()", m.Window(content))
}

func TestFind_FuzzyTolerantOfDrift(t *testing.T) {
	content := "one\ntwo hundred and six\nthree\n"
	search := "two hundred and sixx"
	m, err := Find(content, search, []types.MatchStrategy{types.StrategyFuzzy}, Config{})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, types.StrategyFuzzy, m.Strategy)
	assert.Equal(t, "two hundred and six", m.Window(content))
	assert.Greater(t, m.Similarity, 0.9)
}

func TestFind_FuzzyBelowThreshold(t *testing.T) {
	content := "completely unrelated text\nnothing alike here\n"
	m, err := Find(content, "func process(data []byte) error",
		[]types.MatchStrategy{types.StrategyFuzzy}, Config{})
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestFind_FuzzyIdenticalWindowsAmbiguous(t *testing.T) {
	content := "start\nhandler body A\nmiddle\nhandler body A\nend\n"
	m, err := Find(content, "handler body AA",
		[]types.MatchStrategy{types.StrategyFuzzy}, Config{})
	assert.Nil(t, m)
	var ambiguous *types.AmbiguousMatchError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, types.StrategyFuzzy, ambiguous.Strategy)
}

func TestFind_NoMatch(t *testing.T) {
	m, err := Find("abc\ndef\n", "zzz not present zzz", types.DefaultStrategies(), Config{})
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestEffectiveThreshold_Raises(t *testing.T) {
	cfg := Config{}.withDefaults()

	tests := []struct {
		name    string
		content string
		search  string
		want    float64
	}{
		{
			name:    "plain text keeps default",
			content: "hello world\n",
			search:  "hello",
			want:    DefaultFuzzyThreshold,
		},
		{
			name:    "recurring keyword raises",
			content: "return a\nreturn b\nreturn c\nreturn d\nreturn e\n",
			search:  "return b",
			want:    0.88,
		},
		{
			name:    "collision token raises higher",
			content: "if err != nil {\n}\nif err != nil {\n}\nif err != nil {\n}\n",
			search:  "if err != nil {",
			want:    0.92,
		},
		{
			name:    "case label in switch-heavy target",
			content: "case \"a\":\ncase \"b\":\ncase \"c\":\n",
			search:  "case \"b\":",
			want:    0.95,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := effectiveThreshold(tt.content, tt.search, cfg)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestContextScore_PenalizesBoundaries(t *testing.T) {
	cfg := Config{}.withDefaults()

	clean := contextScore([]string{"a := 1", "b := 2"}, cfg)
	boundary := contextScore([]string{"case \"x\":", "b := 2", "}"}, cfg)
	assert.Greater(t, clean, boundary)

	spread := contextScore([]string{"x", "            deep()"}, cfg)
	assert.Less(t, spread, clean)
}

func TestReindentReplacement(t *testing.T) {
	window := "\t\tfoo()\n\t\tbar()"
	replacement := "foo()\nbaz()\nbar()"
	got := ReindentReplacement(window, replacement)
	assert.Equal(t, "\t\tfoo()\n\t\tbaz()\n\t\tbar()", got)
}

func TestReindentReplacement_MixedTabsAndSpaces(t *testing.T) {
	window := " \tfoo()\n \tbar()"
	got := ReindentReplacement(window, "  foo()\n  bar()")
	assert.Equal(t, " \tfoo()\n \tbar()", got)
}

func TestFindClosest(t *testing.T) {
	content := "alpha\nbeta gamma\ndelta\n"
	closest, sim, start, end := FindClosest(content, "beta gamm")
	assert.Equal(t, "beta gamma", closest)
	assert.Greater(t, sim, 0.8)
	assert.Equal(t, 2, start)
	assert.Equal(t, 2, end)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("same", "same"))
	assert.Equal(t, 0.0, Similarity("", "x"))
	assert.InDelta(t, 0.75, Similarity("abcd", "abcx"), 0.01)
}
