package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initRepo creates a repository in dir with one commit per content string,
// each writing that content to the tracked hello.txt, returning the commit
// hashes in order.
func initRepo(t *testing.T, dir string, contents ...string) []string {
	t.Helper()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	var hashes []string
	for i, content := range contents {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte(content), 0o644))
		_, err = wt.Add("hello.txt")
		require.NoError(t, err)
		hash, err := wt.Commit("commit", &gogit.CommitOptions{
			Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now().Add(time.Duration(i) * time.Second)},
		})
		require.NoError(t, err)
		hashes = append(hashes, hash.String())
	}
	return hashes
}

func TestPrepareResetsExistingCheckoutToCommit(t *testing.T) {
	dir := t.TempDir()
	hashes := initRepo(t, dir, "version one\n", "version two\n")

	client := NewClient()
	require.NoError(t, client.Prepare(context.Background(), dir, "https://example.com/me/widget", hashes[0], nil))

	data, err := os.ReadFile(filepath.Join(dir, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "version one\n", string(data))
}

func TestPrepareCleansUntrackedPreservingGitignore(t *testing.T) {
	dir := t.TempDir()
	hashes := initRepo(t, dir, "content\n")

	ignoreBytes := []byte("*.log\n# generated artifacts\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), ignoreBytes, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "untracked.txt"), []byte("scratch"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "generated.log"), []byte("stale"), 0o644))

	client := NewClient()
	require.NoError(t, client.Prepare(context.Background(), dir, "https://example.com/me/widget", hashes[0], nil))

	_, err := os.Stat(filepath.Join(dir, "untracked.txt"))
	assert.True(t, os.IsNotExist(err), "untracked file should be cleaned")

	// The clean honors .gitignore, so it only goes away because the file
	// is lifted out of the way first.
	_, err = os.Stat(filepath.Join(dir, "generated.log"))
	assert.True(t, os.IsNotExist(err), "ignored generated file should be cleaned")

	restored, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, ignoreBytes, restored, ".gitignore must be restored byte-exact")
}

func TestPrepareUnknownCommit(t *testing.T) {
	dir := t.TempDir()
	initRepo(t, dir, "content\n")

	client := NewClient()
	err := client.Prepare(context.Background(), dir, "https://example.com/me/widget",
		"deadbeefdeadbeefdeadbeefdeadbeefdeadbeef", nil)

	var notFound *CommitNotFoundError
	require.True(t, errors.As(err, &notFound), "expected CommitNotFoundError, got %v", err)
	assert.Equal(t, "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef", notFound.Commit)
}
