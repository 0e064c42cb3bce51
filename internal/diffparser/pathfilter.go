package diffparser

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// PathFilter decides whether a file's new_path should be reviewed, based on
// an include/exclude glob pattern pair. `**` matches any number of path
// segments, `*` matches within one segment, `?` matches a single character.
type PathFilter struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewPathFilter compiles the given include/exclude glob pattern lists.
func NewPathFilter(include, exclude []string) (*PathFilter, error) {
	pf := &PathFilter{}

	for _, pattern := range zeroSegmentVariants(include) {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("compiling include pattern %q: %w", pattern, err)
		}
		pf.include = append(pf.include, g)
	}

	for _, pattern := range zeroSegmentVariants(exclude) {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("compiling exclude pattern %q: %w", pattern, err)
		}
		pf.exclude = append(pf.exclude, g)
	}

	return pf, nil
}

// zeroSegmentVariants expands every "**/" in each pattern into both itself
// and nothing, since the glob library's "**" still needs the following "/"
// to match; this lets "**/*.go" match "main.go" at the repository root.
func zeroSegmentVariants(patterns []string) []string {
	var out []string
	for _, pattern := range patterns {
		parts := strings.Split(pattern, "**/")
		variants := []string{parts[0]}
		for _, part := range parts[1:] {
			var next []string
			for _, v := range variants {
				next = append(next, v+"**/"+part, v+part)
			}
			variants = next
		}
		out = append(out, variants...)
	}
	return out
}

// Allows reports whether path passes the filter: (include is empty OR any
// include pattern matches) AND (no exclude pattern matches).
func (pf *PathFilter) Allows(path string) bool {
	if len(pf.include) > 0 {
		matched := false
		for _, g := range pf.include {
			if g.Match(path) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, g := range pf.exclude {
		if g.Match(path) {
			return false
		}
	}

	return true
}
