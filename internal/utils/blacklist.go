package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// Blacklist holds terms that exclude a release by title
type Blacklist struct {
	terms []string
}

// NewBlacklist builds a blacklist from in-memory terms
func NewBlacklist(terms ...string) *Blacklist {
	b := &Blacklist{}
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			b.terms = append(b.terms, t)
		}
	}
	return b
}

// LoadBlacklist loads blacklist terms from a file, one per line.
// A missing file yields an empty blacklist.
func LoadBlacklist(path string) (*Blacklist, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewBlacklist(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open blacklist: %w", err)
	}
	defer file.Close()

	var terms []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		term := strings.TrimSpace(scanner.Text())
		if term != "" && !strings.HasPrefix(term, "#") {
			terms = append(terms, term)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read blacklist %s: %w", path, err)
	}

	return NewBlacklist(terms...), nil
}

// Len returns the number of terms
func (b *Blacklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.terms)
}

// IsBlacklisted reports whether a release title contains a term, and which one
func (b *Blacklist) IsBlacklisted(title string) (bool, string) {
	if b == nil {
		return false, ""
	}
	titleLower := strings.ToLower(title)
	for _, term := range b.terms {
		if strings.Contains(titleLower, term) {
			return true, term
		}
	}
	return false, ""
}
