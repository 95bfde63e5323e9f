package dataroot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	reset()
	defer reset()

	_, err := Root()
	assert.ErrorIs(t, err, ErrNotSet)

	dir := filepath.Join(t.TempDir(), "pwgen")
	require.NoError(t, Initialize(dir, 0o0700))
	assert.ErrorIs(t, Initialize(dir, 0o0700), ErrAlreadyInitialized)

	seedFile, err := SeedFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, SeedFileName), seedFile)
}

func TestDefault(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "pwgen"), Default())
}
