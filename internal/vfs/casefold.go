package vfs

import (
	"os"
	"strings"

	"github.com/assetfs/assetfs/pkg/utils"
)

// FindCaseInsensitive finds an entry (file or subdirectory) under dir whose
// name matches name ignoring letter case. name may span several segments;
// case folding is applied independently to every component, because a single
// case-insensitive compare across the whole path would not find a directory
// whose own name differs only in case.
//
// The returned name carries the on-disk casing of every component. The
// boolean is false when no entry matches or the directory cannot be read; a
// miss is not an error.
func FindCaseInsensitive(dir, name string, wantFiles, wantDirs bool) (string, bool) {
	return findCaseInsensitive(dir, name, wantFiles, wantDirs, nil)
}

func findCaseInsensitive(dir, name string, wantFiles, wantDirs bool, log *utils.Logger) (string, bool) {
	head, rest := utils.SplitFirst(name)
	if rest == "" {
		return scanDir(dir, name, wantFiles, wantDirs, log)
	}

	// The leading component must resolve to a subdirectory before the
	// remainder can be resolved inside it.
	subdir, ok := scanDir(dir, head, false, true, log)
	if !ok {
		return "", false
	}
	resolved, ok := findCaseInsensitive(utils.JoinPaths(dir, subdir), rest, wantFiles, wantDirs, log)
	if !ok {
		return "", false
	}
	return utils.JoinPaths(subdir, resolved), true
}

// scanDir resolves a single segment against dir's immediate entries. The
// first match in directory-enumeration order wins; further matches under
// case folding are diagnosed but never change the result, since an
// ambiguous dataset must keep resolving to the same file.
func scanDir(dir, name string, wantFiles, wantDirs bool, log *utils.Logger) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	var found string
	for _, entry := range entries {
		if entry.IsDir() {
			if !wantDirs {
				continue
			}
		} else if !wantFiles {
			continue
		}
		if !strings.EqualFold(entry.Name(), name) {
			continue
		}
		if found == "" {
			found = entry.Name()
			continue
		}
		if log != nil {
			log.Warn("duplicate name under case folding in %s: keeping %q, ignoring %q",
				dir, found, entry.Name())
		}
	}
	return found, found != ""
}
