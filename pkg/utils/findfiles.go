package utils

import (
	"fmt"
	"path/filepath"
)

// FindFiles enumerates directory entries matching a glob-style pattern. The
// iteration is finite and can only be restarted by constructing a new
// FindFiles. Names yielded are base names, without the directory prefix.
type FindFiles struct {
	names []string
	index int
}

// NewFindFiles starts a file search for the given pattern.
func NewFindFiles(pattern string) (*FindFiles, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to start file search: %w", err)
	}

	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = filepath.Base(m)
	}
	return &FindFiles{names: names}, nil
}

// Next returns the next matching entry name. The second return value is
// false when the search is exhausted.
func (f *FindFiles) Next() (string, bool) {
	if f.index >= len(f.names) {
		return "", false
	}
	name := f.names[f.index]
	f.index++
	return name, true
}
