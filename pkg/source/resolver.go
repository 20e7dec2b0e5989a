package source

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"mercator-hq/readbreak/pkg/config"
)

// Resolved is a pipeline reference resolved to a local file.
type Resolved struct {
	// Ref is the original reference.
	Ref string `json:"ref"`

	// Path is the local file to load.
	Path string `json:"path"`

	// Commit is the checked out commit for git:: references.
	Commit *CommitInfo `json:"commit,omitempty"`
}

// Resolver resolves plain paths and git:: references.
type Resolver struct {
	cfg    *config.GitSourceConfig
	logger *slog.Logger

	mu    sync.Mutex
	repos map[string]*Repository
}

// NewResolver creates a resolver. A nil cfg uses the defaults.
func NewResolver(cfg *config.GitSourceConfig, logger *slog.Logger) *Resolver {
	if cfg == nil {
		cfg = &config.Defaults().Sources.Git
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		cfg:    cfg,
		logger: logger.With("component", "source"),
		repos:  make(map[string]*Repository),
	}
}

// Resolve returns the local file for ref. Plain paths are returned
// unchanged. git:: references are cloned or pulled first.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Resolved, error) {
	if !IsGit(ref) {
		return &Resolved{Ref: ref, Path: ref}, nil
	}
	parsed, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	branch := parsed.Branch
	if branch == "" {
		branch = r.cfg.Branch
	}

	repo, err := r.repository(parsed.Repository, branch)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	commit, err := repo.Sync(ctx, r.cfg.Offline)
	if err != nil {
		return nil, err
	}
	file, err := repo.File(parsed.Path)
	if err != nil {
		return nil, err
	}

	r.logger.Info("resolved pipeline source",
		"repository", parsed.Repository,
		"branch", branch,
		"path", parsed.Path,
		"commit", commit.Short(),
		"offline", r.cfg.Offline,
		"duration", time.Since(start),
	)
	return &Resolved{Ref: ref, Path: file, Commit: commit}, nil
}

func (r *Resolver) repository(url, branch string) (*Repository, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir := CheckoutDir(r.cfg.CacheDir, url, branch)
	if repo, ok := r.repos[dir]; ok {
		return repo, nil
	}
	auth, err := NewAuthProvider(&r.cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth provider: %w", err)
	}
	repo, err := NewRepository(url, branch, dir, r.cfg.Depth, r.cfg.Timeout, auth)
	if err != nil {
		return nil, err
	}
	r.repos[dir] = repo
	return repo, nil
}

// CheckoutDir returns the cache directory for a repository and branch.
// The name keeps the repository base name readable and appends a hash of
// the full URL and branch.
func CheckoutDir(cacheDir, url, branch string) string {
	base := strings.TrimSuffix(path.Base(strings.TrimRight(filepath.ToSlash(url), "/")), ".git")
	base = strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
			return c
		}
		return '_'
	}, base)
	if base == "" || base == "." || base == ".." {
		base = "repo"
	}
	sum := xxhash.Sum64String(url + "\x00" + branch)
	return filepath.Join(cacheDir, base+"-"+strconv.FormatUint(sum, 16))
}
