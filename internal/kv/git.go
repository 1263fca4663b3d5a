// Records every write of a Dir storage as a git commit.

package kv

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitHistory is a Dir whose root is also a git repository. Each Set or Remove
// that changes a key's file is committed, giving an audit trail of the
// document.
type GitHistory struct {
	*Dir
	name  string
	email string

	mu   sync.Mutex
	repo *gogit.Repository
}

// Change is one commit of a GitHistory.
type Change struct {
	Hash    string
	Message string
	When    time.Time
}

// NewGitHistory opens the git repository at d.Root(), initializing it when
// absent. name and email sign the commits.
func NewGitHistory(d *Dir, name, email string) (*GitHistory, error) {
	repo, err := gogit.PlainOpen(d.Root())
	if err != nil {
		repo, err = gogit.PlainInit(d.Root(), false)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize git repo: %w", err)
		}
		cfg, err := repo.Config()
		if err != nil {
			return nil, fmt.Errorf("failed to read git config: %w", err)
		}
		cfg.User.Name = name
		cfg.User.Email = email
		if err := repo.SetConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to write git config: %w", err)
		}
	}
	return &GitHistory{Dir: d, name: name, email: email, repo: repo}, nil
}

// Set implements Storage.
func (g *GitHistory) Set(key, value string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.Dir.Set(key, value); err != nil {
		return err
	}
	return g.commit(key, "set "+key, false)
}

// Remove implements Storage.
func (g *GitHistory) Remove(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.Dir.Remove(key); err != nil {
		return err
	}
	return g.commit(key, "remove "+key, true)
}

func (g *GitHistory) commit(key, msg string, removed bool) error {
	name, err := g.FileName(key)
	if err != nil {
		return err
	}
	w, err := g.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if removed {
		if _, err := w.Remove(name); err != nil {
			if errors.Is(err, index.ErrEntryNotFound) || errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("failed to stage removal: %w", err)
		}
	} else if _, err := w.Add(name); err != nil {
		return fmt.Errorf("failed to stage %s: %w", name, err)
	}
	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to get worktree status: %w", err)
	}
	if fs, ok := status[name]; !ok || fs.Staging == gogit.Unmodified {
		return nil
	}
	sig := &object.Signature{Name: g.name, Email: g.email, When: time.Now()}
	if _, err := w.Commit(msg, &gogit.CommitOptions{Author: sig, Committer: sig}); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// History returns up to n commits, newest first.
func (g *GitHistory) History(n int) ([]Change, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	iter, err := g.repo.Log(&gogit.LogOptions{})
	if err != nil {
		// No commits yet.
		return nil, nil
	}
	defer iter.Close()
	var out []Change
	for n <= 0 || len(out) < n {
		c, err := iter.Next()
		if err != nil {
			break
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		out = append(out, Change{Hash: c.Hash.String(), Message: subject, When: c.Committer.When})
	}
	return out, nil
}
