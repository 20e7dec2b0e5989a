package source

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Prefix marks a pipeline reference as a Git reference.
const Prefix = "git::"

// Ref is a parsed git:: reference.
type Ref struct {
	// Repository is the clone URL or local repository path.
	Repository string

	// Path is the slash-separated file path inside the repository.
	Path string

	// Branch is the branch to check out. Empty means the configured
	// default.
	Branch string
}

// String returns the reference in git:: form.
func (r *Ref) String() string {
	s := Prefix + r.Repository + "//" + r.Path
	if r.Branch != "" {
		s += "?ref=" + url.QueryEscape(r.Branch)
	}
	return s
}

// IsGit reports whether s is a git:: reference.
func IsGit(s string) bool {
	return strings.HasPrefix(s, Prefix)
}

// ParseRef parses a git:: reference.
func ParseRef(s string) (*Ref, error) {
	if !IsGit(s) {
		return nil, fmt.Errorf("not a git reference: %q", s)
	}
	rest := strings.TrimPrefix(s, Prefix)

	ref := &Ref{}
	if i := strings.LastIndex(rest, "?"); i >= 0 {
		q, err := url.ParseQuery(rest[i+1:])
		if err != nil {
			return nil, fmt.Errorf("invalid query in %q: %w", s, err)
		}
		for key := range q {
			if key != "ref" {
				return nil, fmt.Errorf("unknown parameter %q in %q", key, s)
			}
		}
		ref.Branch = q.Get("ref")
		rest = rest[:i]
	}

	sep := subpathIndex(rest)
	if sep < 0 {
		return nil, fmt.Errorf("missing //path in %q", s)
	}
	ref.Repository = rest[:sep]
	ref.Path = strings.Trim(rest[sep+2:], "/")
	if ref.Repository == "" {
		return nil, fmt.Errorf("missing repository in %q", s)
	}
	if ref.Path == "" {
		return nil, fmt.Errorf("missing file path in %q", s)
	}
	clean := path.Clean(ref.Path)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return nil, fmt.Errorf("file path %q leaves the repository", ref.Path)
	}
	ref.Path = clean
	return ref, nil
}

// subpathIndex returns the index of the first "//" that is not part of a
// URL scheme separator, or -1.
func subpathIndex(s string) int {
	from := 0
	for {
		i := strings.Index(s[from:], "//")
		if i < 0 {
			return -1
		}
		i += from
		if i > 0 && s[i-1] == ':' {
			from = i + 2
			continue
		}
		return i
	}
}
