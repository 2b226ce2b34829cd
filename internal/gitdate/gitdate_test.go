package gitdate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

func commitFile(t *testing.T, repo *git.Repository, root, name, content string, when time.Time) {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	full := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o750))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o600))
	_, err = wt.Add(name)
	require.NoError(t, err)
	sig := &object.Signature{Name: "tester", Email: "t@example.com", When: when}
	_, err = wt.Commit("update "+name, &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)
}

func TestLastModified(t *testing.T) {
	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)

	first := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	second := time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC)
	commitFile(t, repo, root, "src/a.md", "one", first)
	commitFile(t, repo, root, "src/b.md", "two", first.Add(time.Hour))
	commitFile(t, repo, root, "src/a.md", "three", second)

	r := NewResolver()
	got, err := r.LastModified(filepath.Join(root, "src", "a.md"))
	require.NoError(t, err)
	require.True(t, got.Equal(second), "got %s", got)

	got, err = r.LastModified(filepath.Join(root, "src", "b.md"))
	require.NoError(t, err)
	require.True(t, got.Equal(first.Add(time.Hour)), "got %s", got)
}

func TestLastModifiedUntracked(t *testing.T) {
	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)
	commitFile(t, repo, root, "tracked.md", "x", time.Now())

	untracked := filepath.Join(root, "new.md")
	require.NoError(t, os.WriteFile(untracked, []byte("y"), 0o600))

	_, err = NewResolver().LastModified(untracked)
	require.ErrorIs(t, err, ErrUntracked)
}

func TestLastModifiedOutsideRepository(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.md")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	_, err := NewResolver().LastModified(path)
	require.ErrorIs(t, err, ErrNoRepository)
}
