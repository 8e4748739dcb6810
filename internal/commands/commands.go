// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package commands harvests auxiliary setup commands (dependency installs
// and similar) from the prose a stream emits between file blocks. Extracted
// strings are surfaced verbatim; nothing here ever executes them.
// Implements: prd008-processor R4 (command extraction).
package commands

import (
	"regexp"
	"strings"
)

// installRe matches the common package-manager invocations models emit
// around generated code.
var installRe = regexp.MustCompile(`^(?:\$\s+|>\s+)?(` +
	`npm (?:install|i|add)\b.*` +
	`|yarn add\b.*` +
	`|pnpm (?:install|add)\b.*` +
	`|pip3? install\b.*` +
	`|go (?:get|install)\b.*` +
	`|cargo add\b.*` +
	`|apt-get install\b.*` +
	`|brew install\b.*` +
	`)$`)

// Extractor is the default command-extraction collaborator.
type Extractor struct{}

// New returns the default extractor.
func New() *Extractor { return &Extractor{} }

// Extract returns the install-style command lines found in text, trimmed,
// with shell prompt prefixes removed. Duplicate lines are collapsed to the
// first occurrence.
func (e *Extractor) Extract(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		line = strings.Trim(line, " \t`")
		m := installRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		cmd := strings.TrimSpace(m[1])
		if seen[cmd] {
			continue
		}
		seen[cmd] = true
		out = append(out, cmd)
	}
	return out
}
