package gitrepo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitFile(t *testing.T, repo *git.Repository, name, content string) plumbing.Hash {
	t.Helper()

	wt, err := repo.Worktree()
	require.NoError(t, err)

	path := filepath.Join(wt.Filesystem.Root(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err = wt.Add(name)
	require.NoError(t, err)

	hash, err := wt.Commit("update "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash
}

// newOrigin creates a repository with one commit on master, a "snapshot"
// branch and a "v1" tag pointing at it.
func newOrigin(t *testing.T) (string, *git.Repository) {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	hash := commitFile(t, repo, "Makefile", "all:\n")

	require.NoError(t, repo.Storer.SetReference(
		plumbing.NewHashReference(plumbing.NewBranchReferenceName("snapshot"), hash)))
	_, err = repo.CreateTag("v1", hash, nil)
	require.NoError(t, err)

	return dir, repo
}

func head(t *testing.T, dir string) *plumbing.Reference {
	t.Helper()
	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	ref, err := repo.Head()
	require.NoError(t, err)
	return ref
}

func TestClone(t *testing.T) {
	origin, _ := newOrigin(t)
	dest := filepath.Join(t.TempDir(), "gasnet")

	c := &Client{}
	require.NoError(t, c.Clone(context.Background(), dest, origin, ""))
	assert.FileExists(t, filepath.Join(dest, "Makefile"))
}

func TestCloneRef(t *testing.T) {
	origin, _ := newOrigin(t)
	c := &Client{}

	branchDir := filepath.Join(t.TempDir(), "terra.build")
	require.NoError(t, c.Clone(context.Background(), branchDir, origin, "snapshot"))
	assert.Equal(t, plumbing.NewBranchReferenceName("snapshot"), head(t, branchDir).Name())

	tagDir := filepath.Join(t.TempDir(), "terra.build")
	require.NoError(t, c.Clone(context.Background(), tagDir, origin, "v1"))
	assert.FileExists(t, filepath.Join(tagDir, "Makefile"))
}

func TestCloneMissingRef(t *testing.T) {
	origin, _ := newOrigin(t)
	dest := filepath.Join(t.TempDir(), "terra.build")

	err := (&Client{}).Clone(context.Background(), dest, origin, "no-such-ref")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-ref")
	assert.NoDirExists(t, dest, "failed clone must not leave a directory behind")
}

func TestUpdateFastForward(t *testing.T) {
	origin, originRepo := newOrigin(t)
	dest := filepath.Join(t.TempDir(), "gasnet")
	c := &Client{}
	require.NoError(t, c.Clone(context.Background(), dest, origin, ""))

	require.NoError(t, c.Update(context.Background(), dest), "up to date is success")

	next := commitFile(t, originRepo, "README", "gasnet\n")
	require.NoError(t, c.Update(context.Background(), dest))
	assert.Equal(t, next, head(t, dest).Hash())
}

func TestUpdateRefusesDivergedHistory(t *testing.T) {
	origin, originRepo := newOrigin(t)
	dest := filepath.Join(t.TempDir(), "gasnet")
	c := &Client{}
	require.NoError(t, c.Clone(context.Background(), dest, origin, ""))

	local, err := git.PlainOpen(dest)
	require.NoError(t, err)
	localHash := commitFile(t, local, "local.txt", "mine\n")
	commitFile(t, originRepo, "remote.txt", "theirs\n")

	err = c.Update(context.Background(), dest)
	require.ErrorIs(t, err, ErrNotFastForward)
	assert.Equal(t, localHash, head(t, dest).Hash(), "local history untouched")
}

func TestUpdateDetachedHead(t *testing.T) {
	origin, _ := newOrigin(t)
	dest := filepath.Join(t.TempDir(), "terra.build")
	c := &Client{}
	require.NoError(t, c.Clone(context.Background(), dest, origin, "v1"))

	err := c.Update(context.Background(), dest)
	assert.ErrorIs(t, err, ErrDetachedHead)
}
