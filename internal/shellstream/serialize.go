// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package shellstream

import (
	"fmt"
	"strings"

	"github.com/petar-djukic/streamedit/pkg/types"
)

// Serialize renders files back into the wire syntax this parser reads. Each
// file body is emitted verbatim under a terminator chosen to not collide
// with any body line, so Deserialize(Serialize(files)) round-trips.
// Implements: prd005-shell-stream R5.
func (p *Parser) Serialize(files []types.ParsedFile) string {
	var b strings.Builder
	for i, f := range files {
		if i > 0 {
			b.WriteString("\n")
		}
		marker := chooseMarker(f.Content)
		if f.Format == types.FormatUnifiedDiff {
			fmt.Fprintf(&b, "cat << '%s' | patch %s\n", marker, f.Path)
		} else {
			fmt.Fprintf(&b, "cat > %s << '%s'\n", f.Path, marker)
		}
		if f.Content != "" {
			b.WriteString(f.Content)
			if !strings.HasSuffix(f.Content, "\n") {
				b.WriteString("\n")
			}
		}
		b.WriteString(marker)
		b.WriteString("\n")
	}
	return b.String()
}

// Deserialize parses a complete serialized payload in one pass.
func (p *Parser) Deserialize(text string) ([]types.ParsedFile, error) {
	st := NewState()
	if err := p.ParseChunk(st, text, types.FileEvents{}); err != nil {
		return nil, err
	}
	if err := p.Finish(st, types.FileEvents{}); err != nil {
		return nil, err
	}
	return st.Files(), nil
}

// chooseMarker picks a terminator that no body line equals after trimming.
func chooseMarker(content string) string {
	candidates := []string{"EOF", "END_OF_FILE", "STREAMEDIT_EOF"}
	for _, c := range candidates {
		if !lineEquals(content, c) {
			return c
		}
	}
	for i := 1; ; i++ {
		c := fmt.Sprintf("EOF_%d", i)
		if !lineEquals(content, c) {
			return c
		}
	}
}

func lineEquals(content, marker string) bool {
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == marker {
			return true
		}
	}
	return false
}

// Instructions describes the wire syntax for a model prompt.
func (p *Parser) Instructions() string {
	return strings.TrimSpace(`
Emit every file as a shell here-document block.

To create or fully replace a file:

cat > path/to/file << 'EOF'
<complete file content>
EOF

To modify an existing file, emit a unified diff and pipe it to patch:

cat << 'EOF' | patch path/to/file
@@ ... @@
 context line
-removed line
+added line
EOF

Rules:
- One block per file; open and close each file exactly once.
- The terminator line must contain only the marker.
- Choose a marker that never appears alone on a line of the content.
- Text between blocks may include setup commands (e.g. npm install) and
  will be collected separately; it is never written into files.
`) + "\n"
}
