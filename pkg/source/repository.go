package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrNoCheckout is returned in offline mode when a repository was never
// cloned.
var ErrNoCheckout = errors.New("no local checkout")

// CommitInfo describes the checked out commit.
type CommitInfo struct {
	SHA        string    `json:"sha"`
	Author     string    `json:"author"`
	Timestamp  time.Time `json:"timestamp"`
	Message    string    `json:"message"`
	Branch     string    `json:"branch"`
	Repository string    `json:"repository"`
}

// Short returns the abbreviated commit SHA.
func (c *CommitInfo) Short() string {
	if len(c.SHA) > 12 {
		return c.SHA[:12]
	}
	return c.SHA
}

// Repository is a local checkout of one branch of a remote repository.
type Repository struct {
	url       string
	branch    string
	localPath string
	depth     int
	timeout   time.Duration
	auth      AuthProvider

	mu   sync.Mutex
	repo *gogit.Repository
}

// NewRepository creates a checkout of url at branch in localPath. A nil
// auth means anonymous access.
func NewRepository(url, branch, localPath string, depth int, timeout time.Duration, auth AuthProvider) (*Repository, error) {
	if url == "" {
		return nil, fmt.Errorf("repository URL cannot be empty")
	}
	if branch == "" {
		return nil, fmt.Errorf("branch cannot be empty")
	}
	if localPath == "" {
		return nil, fmt.Errorf("local path cannot be empty")
	}
	if auth == nil {
		auth = NoAuth{}
	}
	return &Repository{
		url:       url,
		branch:    branch,
		localPath: localPath,
		depth:     depth,
		timeout:   timeout,
		auth:      auth,
	}, nil
}

// LocalPath returns the checkout directory.
func (r *Repository) LocalPath() string { return r.localPath }

// Sync brings the checkout up to date: it clones when no checkout exists
// and pulls otherwise. With offline an existing checkout is opened without
// contacting the remote.
func (r *Repository) Sync(ctx context.Context, offline bool) (*CommitInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(filepath.Join(r.localPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(r.localPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open existing checkout: %w", err)
		}
		r.repo = repo
		if !offline {
			if err := r.pull(ctx); err != nil {
				return nil, err
			}
		}
		return r.head()
	}

	if offline {
		return nil, fmt.Errorf("%w of %s at %s", ErrNoCheckout, r.url, r.localPath)
	}
	if err := r.clone(ctx); err != nil {
		return nil, err
	}
	return r.head()
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout > 0 {
		return context.WithTimeout(ctx, r.timeout)
	}
	return context.WithCancel(ctx)
}

func (r *Repository) clone(ctx context.Context) error {
	if err := os.MkdirAll(r.localPath, 0o750); err != nil {
		return fmt.Errorf("failed to create checkout directory: %w", err)
	}
	auth, err := r.auth.Auth()
	if err != nil {
		return fmt.Errorf("failed to get auth: %w", err)
	}

	cloneCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	repo, err := gogit.PlainCloneContext(cloneCtx, r.localPath, false, &gogit.CloneOptions{
		URL:           r.url,
		Auth:          auth,
		ReferenceName: plumbing.NewBranchReferenceName(r.branch),
		SingleBranch:  true,
		Depth:         r.depth,
	})
	if err != nil {
		// A failed clone leaves a partial .git that would be opened next time.
		_ = os.RemoveAll(r.localPath)
		return fmt.Errorf("failed to clone %s: %w", r.url, err)
	}
	r.repo = repo
	return nil
}

func (r *Repository) pull(ctx context.Context) error {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	auth, err := r.auth.Auth()
	if err != nil {
		return fmt.Errorf("failed to get auth: %w", err)
	}

	pullCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	err = worktree.PullContext(pullCtx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(r.branch),
		SingleBranch:  true,
		Depth:         r.depth,
		Auth:          auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to pull %s: %w", r.url, err)
	}
	return nil
}

func (r *Repository) head() (*CommitInfo, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}
	return &CommitInfo{
		SHA:        commit.Hash.String(),
		Author:     commit.Author.Name,
		Timestamp:  commit.Author.When,
		Message:    commit.Message,
		Branch:     r.branch,
		Repository: r.url,
	}, nil
}

// File returns the local path of a slash-separated path inside the
// checkout. Symlinks cannot resolve outside the checkout.
func (r *Repository) File(name string) (string, error) {
	p, err := securejoin.SecureJoin(r.localPath, filepath.FromSlash(name))
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", name, err)
	}
	info, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("%s not found in %s: %w", name, r.url, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s in %s is a directory", name, r.url)
	}
	return p, nil
}
