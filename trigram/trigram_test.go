package trigram

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safing/pwgen/rng"
)

func TestFromWords(t *testing.T) {
	t.Parallel()

	table, err := FromWords([]string{"abc", "ABCD", "x-ab", "ab"})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), table.Count('a', 'b', 'c'))
	assert.Equal(t, uint32(1), table.Count('b', 'c', 'd'))
	assert.Equal(t, uint64(3), table.Total())

	_, err = FromWords([]string{"ab", "c"})
	assert.ErrorIs(t, err, ErrEmptyTable)
}

func TestEntropy(t *testing.T) {
	t.Parallel()

	// a single successor per context carries no entropy
	table, err := FromWords([]string{"abc"})
	require.NoError(t, err)
	assert.InDelta(t, 0, table.Entropy(), 1e-9)

	// two equally likely successors carry one bit
	table, err = FromWords([]string{"abc", "abd"})
	require.NoError(t, err)
	assert.InDelta(t, 1, table.Entropy(), 1e-9)

	def := Default()
	assert.Greater(t, def.Entropy(), 1.0)
	assert.Less(t, def.Entropy(), 4.7)
}

func TestFileRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	words := filepath.Join(dir, "words.txt")
	require.NoError(t, os.WriteFile(words, []byte("alphabet\nbetamax\ngamma\n"), 0o600))

	out := filepath.Join(dir, "table.tgm")
	total, err := Create(words, out)
	require.NoError(t, err)
	assert.Positive(t, total)

	loaded, err := Load(out)
	require.NoError(t, err)
	assert.Equal(t, total, loaded.Total())
	assert.Equal(t, out, loaded.Source())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, data, loaded.Bytes())
}

func TestReadInvalid(t *testing.T) {
	t.Parallel()

	_, err := Read(bytes.NewReader(make([]byte, 100)))
	assert.ErrorIs(t, err, ErrInvalidFile)

	_, err = Read(bytes.NewReader(make([]byte, FileSize+4)))
	assert.ErrorIs(t, err, ErrInvalidFile)

	_, err = Read(bytes.NewReader(make([]byte, FileSize)))
	assert.ErrorIs(t, err, ErrEmptyTable)

	_, err = Load(filepath.Join(t.TempDir(), "missing.tgm"))
	assert.ErrorIs(t, err, ErrCannotOpen)
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	pool, err := rng.New(rng.Options{})
	require.NoError(t, err)

	for _, length := range []int{1, 2, 3, 16, 100} {
		out, err := Default().Generate(pool, length)
		require.NoError(t, err)
		assert.Len(t, out, length)
		for _, r := range out {
			assert.True(t, r >= 'a' && r <= 'z', string(r))
		}
	}

	// a table with a dead end restarts the walk
	table, err := FromWords([]string{"xyz"})
	require.NoError(t, err)
	out, err := table.Generate(pool, 7)
	require.NoError(t, err)
	assert.Equal(t, "xyzxyzx", string(out))
}
