// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_MissingFileIsEmpty(t *testing.T) {
	s := New(t.TempDir())
	content, err := s.Lookup("not/there.txt")
	require.NoError(t, err)
	assert.Equal(t, "", content)
}

func TestWrite_ThenLookup(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Write("nested/dir/a.txt", "hello\n"))

	content, err := s.Lookup("nested/dir/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", content)
}

func TestWrite_PreservesPermissions(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	full := filepath.Join(dir, "script.sh")
	require.NoError(t, os.WriteFile(full, []byte("#!/bin/sh\n"), 0o755))

	require.NoError(t, s.Write("script.sh", "#!/bin/sh\necho hi\n"))

	info, err := os.Stat(full)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestWrite_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, s.Write("a.txt", "x"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.txt", entries[0].Name())
}

func TestResolve_RejectsEscapes(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.Lookup("../outside.txt")
	assert.Error(t, err)

	err = s.Write("/etc/passwd", "nope")
	assert.Error(t, err)
}
