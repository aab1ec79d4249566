package vfs

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/assetfs/assetfs/pkg/errors"
	"github.com/assetfs/assetfs/pkg/utils"
)

// Attributes holds the queryable attributes of a filesystem entry.
type Attributes struct {
	IsDirectory bool
	IsReadOnly  bool
}

// GetAttributes queries the attributes of path. A missing path yields a
// NOT_FOUND error, distinguishable from "exists but plain file"; any other
// stat failure is an IO_FAILURE.
func GetAttributes(path string) (Attributes, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Attributes{}, errors.NotFound(path)
		}
		return Attributes{}, errors.IOFailure("stat", path, err)
	}
	return Attributes{
		IsDirectory: fi.IsDir(),
		IsReadOnly:  fi.Mode().Perm()&0200 == 0,
	}, nil
}

// CreateDir creates the directory at path. It succeeds when the directory
// already exists and fails with IO_FAILURE when path exists as a
// non-directory or creation fails for any other reason.
func CreateDir(path string) error {
	err := os.Mkdir(path, 0755)
	if err == nil {
		return nil
	}
	if os.IsExist(err) {
		if attr, aerr := GetAttributes(path); aerr == nil && attr.IsDirectory {
			return nil
		}
	}
	return errors.IOFailure("mkdir", path, err)
}

// Delete removes the file at path. A missing file is not an error. On
// Windows read-only files cannot be deleted, so the read-only attribute is
// cleared and the delete retried. Directories are refused; unlink does not
// apply to them.
func Delete(path string) error {
	if fi, err := os.Lstat(path); err == nil && fi.IsDir() {
		return errors.IOFailure("delete", path, fmt.Errorf("is a directory"))
	}

	err := os.Remove(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}

	if runtime.GOOS == "windows" && os.IsPermission(err) {
		if cerr := os.Chmod(path, 0600); cerr == nil {
			err2 := os.Remove(path)
			if err2 == nil || os.IsNotExist(err2) {
				return nil
			}
		}
	}

	return errors.IOFailure("delete", path, err)
}

// EraseDirectoryContents deletes every immediate entry of path that is a
// plain file. Entries that cannot be deleted because they are directories
// are skipped, not recursed into. Any other deletion failure aborts the
// erase and propagates.
func EraseDirectoryContents(path string) error {
	find, err := utils.NewFindFiles(filepath.Join(path, "*"))
	if err != nil {
		return errors.IOFailure("erase", path, err)
	}

	for {
		name, ok := find.Next()
		if !ok {
			return nil
		}
		full := filepath.Join(path, name)
		if err := Delete(full); err != nil {
			if attr, aerr := GetAttributes(full); aerr == nil && attr.IsDirectory {
				continue
			}
			return err
		}
	}
}
