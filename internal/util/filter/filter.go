// Package filter selects downloaded files by glob patterns and search terms.
// It backs `ncopds ls --include/--exclude/--search`.
package filter

import (
	"path/filepath"
	"strings"

	"github.com/ncopds/ncopds/internal/localfs"
)

// Config holds filter configuration. A zero Config matches everything.
type Config struct {
	// Include patterns match the base name, e.g. "*.epub". Empty means all.
	Include []string

	// Exclude patterns match the base name and win over Include.
	Exclude []string

	// Search terms must all appear in the name, ignoring case.
	Search []string

	// PathInclude patterns match the slash-separated path relative to the
	// listing root. "**" matches any number of directories.
	PathInclude []string
}

// Empty reports whether the config filters nothing.
func (c Config) Empty() bool {
	return len(c.Include) == 0 && len(c.Exclude) == 0 && len(c.Search) == 0 && len(c.PathInclude) == 0
}

// Apply returns the entries under root that match. Directories are kept only
// when no name-based filter is set.
func Apply(root string, entries []localfs.FileEntry, c Config) []localfs.FileEntry {
	if c.Empty() {
		return entries
	}
	out := make([]localfs.FileEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir {
			if len(c.Include) == 0 && len(c.Search) == 0 && len(c.PathInclude) == 0 && !excluded(e.Name, c.Exclude) {
				out = append(out, e)
			}
			continue
		}
		if len(c.PathInclude) > 0 && !matchesAnyPath(relative(root, e.Path), c.PathInclude) {
			continue
		}
		if Matches(e.Name, c) {
			out = append(out, e)
		}
	}
	return out
}

// Matches reports whether a file name passes the name-based filters.
func Matches(name string, c Config) bool {
	if excluded(name, c.Exclude) {
		return false
	}
	if len(c.Include) > 0 {
		included := false
		for _, pattern := range c.Include {
			if ok, _ := filepath.Match(pattern, name); ok {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}
	lower := strings.ToLower(name)
	for _, term := range c.Search {
		if !strings.Contains(lower, strings.ToLower(term)) {
			return false
		}
	}
	return true
}

func excluded(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func relative(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

func matchesAnyPath(path string, patterns []string) bool {
	parts := strings.Split(path, "/")
	for _, pattern := range patterns {
		if matchSegments(parts, strings.Split(filepath.ToSlash(pattern), "/")) {
			return true
		}
	}
	return false
}

// matchSegments matches path segments against pattern segments, where a
// "**" segment consumes zero or more path segments.
func matchSegments(path, pattern []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			for i := 0; i <= len(path); i++ {
				if matchSegments(path[i:], rest) {
					return true
				}
			}
			return false
		}
		if len(path) == 0 {
			return false
		}
		if ok, _ := filepath.Match(pattern[0], path[0]); !ok {
			return false
		}
		path, pattern = path[1:], pattern[1:]
	}
	return len(path) == 0
}

// ParsePatternList splits a comma-separated flag value.
// Example: "*.epub, *.pdf" -> []string{"*.epub", "*.pdf"}
func ParsePatternList(patternStr string) []string {
	if patternStr == "" {
		return nil
	}
	parts := strings.Split(patternStr, ",")
	patterns := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	return patterns
}
