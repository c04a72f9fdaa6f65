// Package git prepares build workspaces: clone or fetch, hard reset to a
// commit, and clean untracked files.
package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/paulcbetts/peasant/internal/logfields"
)

// Provisioner prepares a directory to hold the tree at a given commit of a
// repository.
type Provisioner interface {
	Prepare(ctx context.Context, dir, repoURL, commit string, auth transport.AuthMethod) error
}

// Client implements Provisioner with go-git.
type Client struct{}

// NewClient creates a new Git client.
func NewClient() *Client {
	return &Client{}
}

// Prepare makes dir hold the clean tree at commit of repoURL. An existing
// checkout is fetched and reused; otherwise the repository is cloned
// afresh. The working tree is hard-reset to the commit and untracked files
// are removed, preserving the exact byte contents of .gitignore.
func (c *Client) Prepare(ctx context.Context, dir, repoURL, commit string, auth transport.AuthMethod) error {
	repository, err := c.openOrClone(ctx, dir, repoURL, auth)
	if err != nil {
		return err
	}

	if err := c.fetchOrigin(ctx, repository, repoURL, auth); err != nil {
		return err
	}

	hash := plumbing.NewHash(commit)
	if _, err := repository.CommitObject(hash); err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return &CommitNotFoundError{URL: repoURL, Commit: commit}
		}
		return fmt.Errorf("resolve commit %s: %w", commit, err)
	}

	wt, err := repository.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	// Hard reset deletes untracked files; an untracked .gitignore is kept.
	ignorePath := filepath.Join(dir, ".gitignore")
	ignoreBytes, ignoreErr := os.ReadFile(ignorePath)
	untrackedIgnore := false
	if ignoreErr == nil {
		if idx, err := repository.Storer.Index(); err == nil {
			_, err = idx.Entry(".gitignore")
			untrackedIgnore = err != nil
		}
	}
	if err := wt.Reset(&gogit.ResetOptions{Commit: hash, Mode: gogit.HardReset}); err != nil {
		return fmt.Errorf("hard reset to %s: %w", commit, err)
	}
	if untrackedIgnore {
		if err := os.WriteFile(ignorePath, ignoreBytes, 0o644); err != nil {
			return fmt.Errorf("restore .gitignore: %w", err)
		}
	}

	if err := cleanPreservingGitignore(dir, wt); err != nil {
		return err
	}

	slog.Debug("Workspace prepared", logfields.Repo(repoURL), logfields.Commit(commit), logfields.Path(dir))
	return nil
}

// openOrClone opens an existing checkout in dir, or clones repoURL into it.
func (c *Client) openOrClone(ctx context.Context, dir, repoURL string, auth transport.AuthMethod) (*gogit.Repository, error) {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		repository, err := gogit.PlainOpen(dir)
		if err != nil {
			return nil, fmt.Errorf("open repo: %w", err)
		}
		return repository, nil
	}

	slog.Info("Cloning repository", logfields.Repo(repoURL), logfields.Path(dir))
	repository, err := gogit.PlainCloneContext(ctx, dir, false, &gogit.CloneOptions{
		URL:  repoURL,
		Auth: auth,
	})
	if err != nil {
		return nil, classifyCloneError(repoURL, err)
	}
	return repository, nil
}

// fetchOrigin fetches all branch heads from origin. A checkout without an
// origin remote (seeded by hand) is served as-is.
func (c *Client) fetchOrigin(ctx context.Context, repository *gogit.Repository, repoURL string, auth transport.AuthMethod) error {
	fetchOpts := &gogit.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []ggitcfg.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
		Auth:       auth,
	}
	err := repository.FetchContext(ctx, fetchOpts)
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) && !errors.Is(err, gogit.ErrRemoteNotFound) {
		return classifyFetchError(repoURL, err)
	}
	return nil
}

// cleanPreservingGitignore removes untracked files and directories. The
// underlying clean honors .gitignore, which would otherwise keep stale
// generated files across builds, so .gitignore is read and deleted before
// cleaning and its exact bytes restored afterwards.
func cleanPreservingGitignore(dir string, wt *gogit.Worktree) error {
	ignorePath := filepath.Join(dir, ".gitignore")
	ignoreBytes, readErr := os.ReadFile(ignorePath)
	hadIgnore := readErr == nil
	if readErr != nil && !os.IsNotExist(readErr) {
		return fmt.Errorf("read .gitignore: %w", readErr)
	}

	if hadIgnore {
		if err := os.Remove(ignorePath); err != nil {
			return fmt.Errorf("remove .gitignore: %w", err)
		}
	}

	cleanErr := wt.Clean(&gogit.CleanOptions{Dir: true})

	if hadIgnore {
		if err := os.WriteFile(ignorePath, ignoreBytes, 0o644); err != nil {
			return fmt.Errorf("restore .gitignore: %w", err)
		}
	}
	if cleanErr != nil {
		return fmt.Errorf("clean untracked files: %w", cleanErr)
	}
	return nil
}
