// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package workspace roots parsed-file paths in a working directory: it is
// the prior-content store for diff application and the sink that writes
// completed files to disk.
// Implements: prd007-workspace R1-R3.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store reads and writes files relative to Root. It satisfies the content
// lookup needed by the diff appliers.
type Store struct {
	Root string
}

// New returns a store rooted at dir; an empty dir means the current
// directory.
func New(dir string) *Store {
	if dir == "" {
		dir = "."
	}
	return &Store{Root: dir}
}

// Lookup returns the current content of path, or empty content when the
// file does not exist yet. A missing file is a normal case: streams patch
// files they are about to create.
func (s *Store) Lookup(path string) (string, error) {
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// Write stores content at path, creating parent directories as needed. The
// write is atomic so a crash mid-write never leaves a truncated file.
func (s *Store) Write(path, content string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := atomicWrite(full, []byte(content)); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// resolve joins path onto the root and rejects paths that escape it.
func (s *Store) resolve(path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("absolute path not allowed: %s", path)
	}
	full := filepath.Join(s.Root, filepath.FromSlash(path))
	rel, err := filepath.Rel(s.Root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the workspace: %s", path)
	}
	return full, nil
}

// atomicWrite writes data to path via a temp file and rename, preserving
// existing permissions.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)

	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	f, err := os.CreateTemp(dir, ".streamedit-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
