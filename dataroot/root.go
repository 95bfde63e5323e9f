// Package dataroot manages the directory holding the random seed file.
package dataroot

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/safing/pwgen/utils"
)

// Common errors.
var (
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrNotSet             = errors.New("data root is not set")
)

// SeedFileName is the name of the random seed file within the data root.
const SeedFileName = "randseed.dat"

var (
	root     string
	rootLock sync.Mutex
)

// Initialize initializes the data root directory. An empty rootDir selects
// the default location.
func Initialize(rootDir string, perm os.FileMode) error {
	rootLock.Lock()
	defer rootLock.Unlock()

	if root != "" {
		return ErrAlreadyInitialized
	}
	if rootDir == "" {
		rootDir = Default()
	}
	if err := utils.EnsureDirectory(rootDir, perm); err != nil {
		return err
	}
	root = rootDir
	return nil
}

// Root returns the data root directory.
func Root() (string, error) {
	rootLock.Lock()
	defer rootLock.Unlock()

	if root == "" {
		return "", ErrNotSet
	}
	return root, nil
}

// SeedFile returns the path of the random seed file.
func SeedFile() (string, error) {
	r, err := Root()
	if err != nil {
		return "", err
	}
	return filepath.Join(r, SeedFileName), nil
}

// Default returns the default data root, following the XDG data home.
func Default() string {
	return filepath.Join(xdgDataHome(), "pwgen")
}

func xdgDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// reset is used by tests.
func reset() {
	rootLock.Lock()
	defer rootLock.Unlock()
	root = ""
}
