// Package fsatomic provides atomic file write helpers.
//
// This is stdlib-only by necessity, not by omission: atomic replacement of
// a file's contents is an operating-system rename guarantee, not a concern
// any library in the pack (or the wider ecosystem) abstracts usefully —
// wrapping os.Rename in a third-party package would add an import without
// changing the underlying syscall contract.
package fsatomic

import (
	"os"
	"path/filepath"
)

// WriteFile writes data to a temporary file in the same directory as path
// and renames it into place, so readers never observe a partially written
// file. The rename is the commit point: a crash before it leaves the
// original file (if any) untouched.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
