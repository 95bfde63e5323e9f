package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

// EnsureDirectory ensures that the given directory exists and that is has the given permissions set.
// If path is a file, it is deleted and a directory created.
// If a directory is created, also all missing directories up to the required one are created with the given permissions.
func EnsureDirectory(path string, perm os.FileMode) error {
	isDir, mode, err := mayRemoveFile(path)
	if err != nil {
		return err
	}

	if !isDir {
		err = os.MkdirAll(path, perm)
		if err != nil {
			return fmt.Errorf("could not create dir %s: %w", path, err)
		}
		return nil
	}

	if mode.Perm() != perm {
		if runtime.GOOS == "windows" {
			return nil
		}
		return os.Chmod(path, perm)
	}

	return nil
}

func mayRemoveFile(path string) (isDir bool, mode os.FileMode, err error) {
	f, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, 0, nil
	case err != nil:
		return false, 0, fmt.Errorf("failed to access %s: %w", path, err)
	}

	if f.IsDir() {
		return true, f.Mode(), nil
	}

	// f is a file so we try to remove it
	if err := os.Remove(path); err != nil {
		return false, 0, fmt.Errorf("could not remove file %s to place dir: %w", path, err)
	}

	return false, 0, nil
}

// EnsureParentDirectory ensures that the directory holding the given file exists.
func EnsureParentDirectory(filename string, perm os.FileMode) error {
	return EnsureDirectory(filepath.Dir(filename), perm)
}

// FileExists returns whether a regular file exists at the given path.
func FileExists(path string) (bool, error) {
	fi, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, err
	}
	return fi.Mode().IsRegular(), nil
}
