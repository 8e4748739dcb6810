// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Implements: prd002-match-engine R2.2 (whitespace), R2.3 (indentation).
package matching

import "strings"

// whitespaceSpans finds every line window whose whitespace-collapsed form
// equals the collapsed search text. Intra-line whitespace runs collapse to
// one space and line ends are trimmed before comparing; matches map back to
// original byte offsets.
func whitespaceSpans(content string, contentLines []string, search string) []span {
	searchLines := trimTrailingEmpty(strings.Split(search, "\n"))
	if len(searchLines) == 0 {
		return nil
	}
	normSearch := make([]string, len(searchLines))
	for i, line := range searchLines {
		normSearch[i] = collapseSpaces(strings.TrimSpace(line))
	}

	normContent := make([]string, len(contentLines))
	for i, line := range contentLines {
		normContent[i] = collapseSpaces(strings.TrimSpace(line))
	}

	var spans []span
	for i := 0; i+len(normSearch) <= len(normContent); i++ {
		if linesEqual(normContent[i:i+len(normSearch)], normSearch) {
			spans = append(spans, lineWindowSpan(contentLines, i, len(normSearch)))
			if len(spans) > 1 {
				break
			}
		}
	}
	return spans
}

// indentSpans finds every line window that equals the search text after the
// longest common leading whitespace is stripped from both sides. This lets a
// search block written at the wrong nesting depth still locate its target.
func indentSpans(content string, contentLines []string, search string) []span {
	searchLines := trimTrailingEmpty(strings.Split(search, "\n"))
	if len(searchLines) == 0 {
		return nil
	}
	strippedSearch := stripCommonIndent(searchLines)

	var spans []span
	for i := 0; i+len(searchLines) <= len(contentLines); i++ {
		window := contentLines[i : i+len(searchLines)]
		if linesEqual(stripCommonIndent(window), strippedSearch) {
			spans = append(spans, lineWindowSpan(contentLines, i, len(searchLines)))
			if len(spans) > 1 {
				break
			}
		}
	}
	return spans
}

// ReindentReplacement rewrites replacement so it sits at the indentation of
// the matched window: the window's common leading whitespace (verbatim, so
// tab/space mixing survives) replaces the replacement's own common indent on
// every line.
//
// Implements: prd002-match-engine R2.3.
func ReindentReplacement(window, replacement string) string {
	if replacement == "" {
		return replacement
	}
	windowLines := strings.Split(window, "\n")
	windowIndent := commonIndent(windowLines)

	replLines := strings.Split(replacement, "\n")
	replIndent := commonIndent(replLines)

	out := make([]string, len(replLines))
	for i, line := range replLines {
		if strings.TrimSpace(line) == "" {
			out[i] = line
			continue
		}
		out[i] = windowIndent + strings.TrimPrefix(line, replIndent)
	}
	return strings.Join(out, "\n")
}

// commonIndent returns the longest leading whitespace prefix shared by every
// non-blank line.
func commonIndent(lines []string) string {
	indent := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lead := leadingWhitespace(line)
		if first {
			indent = lead
			first = false
			continue
		}
		indent = commonPrefix(indent, lead)
		if indent == "" {
			break
		}
	}
	return indent
}

// stripCommonIndent removes the longest common leading whitespace from every
// line, leaving blank lines untouched.
func stripCommonIndent(lines []string) []string {
	indent := commonIndent(lines)
	out := make([]string, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			out[i] = ""
			continue
		}
		out[i] = strings.TrimPrefix(line, indent)
	}
	return out
}

func leadingWhitespace(s string) string {
	for i, r := range s {
		if r != ' ' && r != '\t' {
			return s[:i]
		}
	}
	return s
}

func commonPrefix(a, b string) string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:n]
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// trimTrailingEmpty drops a trailing empty line left by a terminal newline.
func trimTrailingEmpty(lines []string) []string {
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		return lines[:len(lines)-1]
	}
	return lines
}

// collapseSpaces replaces runs of spaces and tabs with a single space.
func collapseSpaces(s string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' {
			if !inSpace {
				b.WriteByte(' ')
				inSpace = true
			}
		} else {
			b.WriteRune(r)
			inSpace = false
		}
	}
	return b.String()
}
