package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDirectory(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	dir := filepath.Join(base, "a", "b")
	require.NoError(t, EnsureDirectory(dir, 0o0700))

	fi, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
	assert.Equal(t, os.FileMode(0o0700), fi.Mode().Perm())

	// a file in the way is replaced
	file := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o0600))
	require.NoError(t, EnsureDirectory(file, 0o0700))
	fi, err = os.Stat(file)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func TestFileExists(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	file := filepath.Join(base, "sub", "seed")
	require.NoError(t, EnsureParentDirectory(file, 0o0700))

	exists, err := FileExists(file)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, os.WriteFile(file, []byte("x"), 0o0600))
	exists, err = FileExists(file)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = FileExists(base)
	require.NoError(t, err)
	assert.False(t, exists)
}
