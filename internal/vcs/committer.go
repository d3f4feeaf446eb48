// internal/vcs/committer.go

// Package vcs records committed mutations as local git commits so the audit
// trail in the evolution log has a matching, diffable history. Failures here
// are logged and swallowed; the git trail is a convenience, never a gate.
package vcs

import (
	"fmt"
	"path/filepath"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/config"
)

// Committer wraps a local repository.
type Committer struct {
	logger *zap.Logger
	cfg    config.VCSConfig
}

// NewCommitter creates a Committer. The repository is opened per call so a
// repack or re-clone under the process does not hold a stale handle.
func NewCommitter(logger *zap.Logger, cfg config.VCSConfig) *Committer {
	return &Committer{
		logger: logger.Named("vcs"),
		cfg:    cfg,
	}
}

// RecordMutation stages the mutated file and commits it with a derived
// message. Returns the commit hash.
func (c *Committer) RecordMutation(file, description string) (string, error) {
	repo, err := git.PlainOpen(c.cfg.RepoPath)
	if err != nil {
		return "", fmt.Errorf("failed to open repository at %s: %w", c.cfg.RepoPath, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}

	rel, err := filepath.Rel(c.cfg.RepoPath, file)
	if err != nil || filepath.IsAbs(rel) {
		rel = file
	}
	if _, err := wt.Add(rel); err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", rel, err)
	}

	msg := fmt.Sprintf("evolve: %s\n\nTarget: %s\n", description, rel)
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{
			Name:  c.cfg.AuthorName,
			Email: c.cfg.AuthorEmail,
			When:  time.Now().UTC(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to commit %s: %w", rel, err)
	}

	c.logger.Info("Mutation recorded in git.", zap.String("file", rel), zap.String("hash", hash.String()))
	return hash.String(), nil
}
