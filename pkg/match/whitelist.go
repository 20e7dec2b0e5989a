package match

import (
	"bufio"
	"io"
	"strings"
)

// Whitelist is a set of permitted sequences.
type Whitelist map[string]struct{}

// NewWhitelist builds a whitelist from the given sequences.
func NewWhitelist(seqs ...string) Whitelist {
	wl := make(Whitelist, len(seqs))
	for _, s := range seqs {
		wl[s] = struct{}{}
	}
	return wl
}

// LoadWhitelist reads one sequence per line. Surrounding whitespace is
// trimmed and blank lines are skipped.
func LoadWhitelist(r io.Reader) (Whitelist, error) {
	wl := make(Whitelist)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		wl[line] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return wl, nil
}

// Contains reports whether seq is in the whitelist.
func (w Whitelist) Contains(seq string) bool {
	_, ok := w[seq]
	return ok
}

// Len returns the number of sequences in the whitelist.
func (w Whitelist) Len() int {
	return len(w)
}
