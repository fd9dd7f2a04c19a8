package source

import (
	"fmt"
	"path/filepath"
	"sort"
)

// ExpandGlobs expands incident file paths and glob patterns into a sorted,
// deduplicated list. A pattern that matches nothing is kept as a literal
// path so opening it reports a useful error.
func ExpandGlobs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}

		if len(matches) == 0 {
			add(pattern)
			continue
		}
		for _, m := range matches {
			add(m)
		}
	}

	sort.Strings(paths)
	return paths, nil
}
