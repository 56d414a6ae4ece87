// Package gitrepo clones and fast-forwards dependency checkouts.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

var (
	// ErrNotFastForward is returned by Update when local and remote history
	// have diverged.
	ErrNotFastForward = errors.New("not a fast-forward")

	// ErrDetachedHead is returned by Update for checkouts pinned to a tag.
	ErrDetachedHead = errors.New("HEAD is detached")
)

// Client performs clone and update operations.
type Client struct {
	Verbose bool
	// Progress receives remote progress output; nil discards it.
	Progress io.Writer
	Stderr   io.Writer
}

// Clone clones url into dir. A non-empty ref pins the checkout; it is
// tried as a branch first, then as a tag.
func (c *Client) Clone(ctx context.Context, dir, url, ref string) error {
	if c.Verbose && c.Stderr != nil {
		if ref != "" {
			fmt.Fprintf(c.Stderr, "git: clone -b %s %s %s\n", ref, url, dir)
		} else {
			fmt.Fprintf(c.Stderr, "git: clone %s %s\n", url, dir)
		}
	}

	_, statErr := os.Stat(dir)
	existed := statErr == nil

	if ref == "" {
		_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
			URL:      url,
			Progress: c.Progress,
		})
		if err != nil {
			c.cleanup(dir, existed)
			return fmt.Errorf("git clone %s: %w", url, err)
		}
		return nil
	}

	candidates := []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(ref),
		plumbing.NewTagReferenceName(ref),
	}

	var lastErr error
	for _, name := range candidates {
		_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
			URL:           url,
			ReferenceName: name,
			SingleBranch:  true,
			Progress:      c.Progress,
		})
		if err == nil {
			return nil
		}
		c.cleanup(dir, existed)
		if !isMissingRef(err) {
			return fmt.Errorf("git clone -b %s %s: %w", ref, url, err)
		}
		lastErr = err
	}
	return fmt.Errorf("git clone -b %s %s: no branch or tag named %q: %w", ref, url, ref, lastErr)
}

// Update fast-forwards the checked-out branch in dir from origin.
// Diverged history fails with ErrNotFastForward; nothing is merged or
// rewritten.
func (c *Client) Update(ctx context.Context, dir string) error {
	if c.Verbose && c.Stderr != nil {
		fmt.Fprintf(c.Stderr, "git: pull --ff-only (%s)\n", dir)
	}

	repo, err := git.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("opening %s: %w", dir, err)
	}

	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("%s: reading HEAD: %w", dir, err)
	}
	if !head.Name().IsBranch() {
		return fmt.Errorf("%s: %w at %s", dir, ErrDetachedHead, head.Hash())
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("%s: %w", dir, err)
	}

	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName:    git.DefaultRemoteName,
		ReferenceName: head.Name(),
		SingleBranch:  true,
		Progress:      c.Progress,
	})
	switch {
	case err == nil, errors.Is(err, git.NoErrAlreadyUpToDate):
		return nil
	case errors.Is(err, git.ErrNonFastForwardUpdate):
		return fmt.Errorf("%s: %w", dir, ErrNotFastForward)
	default:
		return fmt.Errorf("git pull %s: %w", dir, err)
	}
}

// cleanup removes what a failed clone left behind, but never a directory
// that existed before the clone started.
func (c *Client) cleanup(dir string, existed bool) {
	if existed {
		return
	}
	os.RemoveAll(dir)
}

func isMissingRef(err error) bool {
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return true
	}
	var noMatch git.NoMatchingRefSpecError
	return errors.As(err, &noMatch)
}
