// Package gitdate resolves the date of the last commit that touched a file.
package gitdate

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
)

var (
	// ErrNoRepository is returned when the file is not inside a git worktree.
	ErrNoRepository = errors.New("not inside a git repository")
	// ErrUntracked is returned when no commit touches the file.
	ErrUntracked = errors.New("file has no commits")
)

type openRepo struct {
	repo *git.Repository
	root string
}

// Resolver looks up last-commit dates. Opened repositories are cached per
// directory so a build opens each worktree once.
type Resolver struct {
	mu    sync.Mutex
	repos map[string]*openRepo
}

func NewResolver() *Resolver {
	return &Resolver{repos: make(map[string]*openRepo)}
}

func (r *Resolver) open(dir string) (*openRepo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.repos[dir]; ok {
		return cached, nil
	}
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNoRepository
		}
		return nil, fmt.Errorf("open repository at %s: %w", dir, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("worktree: %w", err)
	}
	entry := &openRepo{repo: repo, root: wt.Filesystem.Root()}
	r.repos[dir] = entry
	return entry, nil
}

// LastModified returns the committer time of the newest commit touching path.
func (r *Resolver) LastModified(path string) (time.Time, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return time.Time{}, err
	}
	entry, err := r.open(filepath.Dir(abs))
	if err != nil {
		return time.Time{}, err
	}
	rel, err := filepath.Rel(entry.root, abs)
	if err != nil {
		return time.Time{}, err
	}
	rel = filepath.ToSlash(rel)

	iter, err := entry.repo.Log(&git.LogOptions{FileName: &rel})
	if err != nil {
		return time.Time{}, fmt.Errorf("log %s: %w", rel, err)
	}
	defer iter.Close()

	c, err := iter.Next()
	if errors.Is(err, io.EOF) {
		return time.Time{}, ErrUntracked
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("log %s: %w", rel, err)
	}
	return c.Committer.When, nil
}
