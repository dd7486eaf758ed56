// Package history commits every saved registry document to a local git
// repository, giving an auditable, diffable change log.
package history

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	documentFile = "registry.json"
	branchName   = "main"
)

// Commit describes one recorded document version.
type Commit struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	When    time.Time `json:"when"`
}

// Recorder writes document versions into a git repository.
type Recorder struct {
	mu   sync.Mutex
	repo *git.Repository
	root string
	now  func() time.Time
}

// Open opens the repository at dir, initializing it on first use.
func Open(dir string) (*Recorder, error) {
	repo, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = initRepo(dir)
	}
	if err != nil {
		return nil, fmt.Errorf("history: open repo %s: %w", dir, err)
	}
	return &Recorder{repo: repo, root: dir, now: time.Now}, nil
}

func initRepo(dir string) (*git.Repository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branchName))
	if err := repo.Storer.SetReference(head); err != nil {
		return nil, fmt.Errorf("set HEAD to %s: %w", branchName, err)
	}
	return repo, nil
}

// Record commits data as the current document version. It returns the new
// commit hash, or "" when data matches the last recorded version.
func (r *Recorder) Record(data []byte, author, message string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	worktree, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("history: open worktree: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.root, documentFile), data, 0o644); err != nil {
		return "", fmt.Errorf("history: write %s: %w", documentFile, err)
	}
	if _, err := worktree.Add(documentFile); err != nil {
		return "", fmt.Errorf("history: git add: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return "", fmt.Errorf("history: status: %w", err)
	}
	if status.IsClean() {
		return "", nil
	}

	if author == "" {
		author = "system"
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@memreg.local", sanitizeEmail(author)),
			When:  r.now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("history: commit: %w", err)
	}
	return hash.String(), nil
}

// Log lists recorded versions, newest first. A limit of 0 lists all.
func (r *Recorder) Log(limit int) ([]Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref, err := r.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []Commit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: resolve HEAD: %w", err)
	}

	iter, err := r.repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("history: read log: %w", err)
	}
	defer iter.Close()

	out := make([]Commit, 0)
	err = iter.ForEach(func(c *object.Commit) error {
		out = append(out, Commit{
			Hash:    c.Hash.String(),
			Message: strings.TrimSpace(c.Message),
			Author:  c.Author.Name,
			When:    c.Author.When,
		})
		if limit > 0 && len(out) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("history: iterate log: %w", err)
	}
	return out, nil
}

// Content returns the document bytes recorded by the given commit.
func (r *Recorder) Content(hash string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return nil, fmt.Errorf("history: read commit %s: %w", hash, err)
	}
	file, err := c.File(documentFile)
	if err != nil {
		return nil, fmt.Errorf("history: load %s from %s: %w", documentFile, hash, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("history: open content reader: %w", err)
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

func sanitizeEmail(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}
