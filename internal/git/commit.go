// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Implements: prd009-git-integration R1, R2, R4.
package git

import (
	"fmt"
	"sort"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	authorName  = "streamedit"
	authorEmail = "noreply@streamedit"
)

// HandleDirty checks for uncommitted changes and either commits them
// separately or returns an error, depending on Config.DirtyCommit. A
// pre-apply commit keeps the user's own work separable from streamed edits.
func (r *Repo) HandleDirty() error {
	dirty, err := r.IsDirty()
	if err != nil {
		return err
	}

	if !dirty {
		return nil
	}

	if !r.cfg.DirtyCommit {
		return ErrDirtyWorkTree
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}

	if _, err := wt.Add("."); err != nil {
		return fmt.Errorf("staging dirty files: %w", err)
	}

	_, err = wt.Commit(dirtyCommitMsg, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  authorName,
			Email: authorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("committing dirty files: %w", err)
	}

	return nil
}

// AutoCommit stages the written files and creates a commit describing the
// applied stream. Only the files streamedit itself wrote are staged.
func (r *Repo) AutoCommit(writtenFiles []string, source string) error {
	if !r.cfg.AutoCommit || len(writtenFiles) == 0 {
		return nil
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}

	for _, f := range writtenFiles {
		if _, err := wt.Add(f); err != nil {
			return fmt.Errorf("staging %s: %w", f, err)
		}
	}

	_, err = wt.Commit(commitMessage(writtenFiles, source), &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  authorName,
			Email: authorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	return nil
}

// commitMessage builds a subject from the written file set, a body listing
// each file, and the trailer that marks the commit undoable.
func commitMessage(files []string, source string) string {
	sorted := make([]string, len(files))
	copy(sorted, files)
	sort.Strings(sorted)

	subject := fmt.Sprintf("streamedit: apply %s", sorted[0])
	if len(sorted) > 1 {
		subject = fmt.Sprintf("streamedit: apply %d files", len(sorted))
	}

	var b strings.Builder
	b.WriteString(subject)
	b.WriteString("\n\n")
	if source != "" {
		fmt.Fprintf(&b, "Source: %s\n", source)
	}
	for _, f := range sorted {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	b.WriteString("\n")
	b.WriteString(commitTrailer)
	b.WriteString("\n")
	return b.String()
}

// Undo reverts the last commit if streamedit made it (identified by the
// Applied-By trailer). Soft reset preserves the changes in the working
// tree so nothing is lost.
func (r *Repo) Undo() error {
	ours, err := r.IsStreameditCommit()
	if err != nil {
		return err
	}
	if !ours {
		return ErrNotStreameditCommit
	}

	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("getting HEAD: %w", err)
	}

	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return fmt.Errorf("getting commit: %w", err)
	}

	if commit.NumParents() == 0 {
		return fmt.Errorf("cannot undo: HEAD is the initial commit")
	}

	parent, err := commit.Parent(0)
	if err != nil {
		return fmt.Errorf("getting parent commit: %w", err)
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}

	err = wt.Reset(&gogit.ResetOptions{
		Commit: parent.Hash,
		Mode:   gogit.SoftReset,
	})
	if err != nil {
		return fmt.Errorf("resetting to parent: %w", err)
	}

	return nil
}
