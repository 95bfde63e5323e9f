package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"
	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safing/pwgen/entropy"
	"github.com/safing/pwgen/passwgen"
	"github.com/safing/pwgen/rng"
)

func testPool(t *testing.T) *rng.Pool {
	t.Helper()

	p, err := rng.New(rng.Options{})
	require.NoError(t, err)
	return p
}

func TestRequestFlags(t *testing.T) {
	t.Parallel()

	yes, no := true, false
	o := &generateOptions{
		count:  3,
		chars:  12,
		words:  2,
		format: "P-2d",
		length: "16-24",
		flags: map[passwgen.Flags]*bool{
			passwgen.ExcludeRepeats:    &yes,
			passwgen.CombineWordsChars: &yes,
			passwgen.CheckEachPassword: &no,
		},
	}
	req := o.request()
	assert.Equal(t, uint64(3), req.Count)
	assert.Equal(t, 12, req.Chars)
	assert.Equal(t, 2, req.Words)
	assert.Equal(t, "P-2d", req.Format)
	assert.Equal(t, "16-24", req.Length)
	assert.True(t, req.Flags.Has(passwgen.ExcludeRepeats|passwgen.CombineWordsChars))
	assert.False(t, req.Flags.Has(passwgen.CheckEachPassword))
}

func TestGenerateFlagNames(t *testing.T) {
	t.Parallel()

	cmd, _, err := RootCmd.Find([]string{"generate"})
	require.NoError(t, err)
	for _, fl := range generateFlagNames {
		assert.NotNil(t, cmd.Flags().Lookup(fl.name), fl.name)
	}
	assert.Len(t, genFlags.flags, len(generateFlagNames))
}

func TestLengthUsage(t *testing.T) {
	t.Parallel()

	cmd, _, err := RootCmd.Find([]string{"generate"})
	require.NoError(t, err)
	usage := cmd.Flags().Lookup("length").Usage
	for _, example := range lengthExamples {
		assert.Contains(t, usage, example)
		spec, err := passwgen.ParseLengthSpec(example)
		require.NoError(t, err, example)
		assert.Equal(t, strings.Contains(example, "*"), spec.AllChars, example)
	}

	// the all characters switch is the asterisk only
	_, err = passwgen.ParseLengthSpec("16-24a")
	require.ErrorIs(t, err, passwgen.ErrInvalidLengthSpec)
}

func TestReadInput(t *testing.T) {
	t.Parallel()

	text, err := readInput([]string{"a", "b"}, "", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, "a b", string(text))

	path := filepath.Join(t.TempDir(), "in.txt")
	require.NoError(t, os.WriteFile(path, []byte("from file"), 0o600))
	text, err = readInput(nil, path, nil, 100)
	require.NoError(t, err)
	assert.Equal(t, "from file", string(text))

	text, err = readInput(nil, "", strings.NewReader("0123456789abc"), 4)
	require.NoError(t, err)
	assert.Equal(t, "01234", string(text), "one byte more than the limit")

	_, err = readInput(nil, filepath.Join(t.TempDir(), "missing"), nil, 1)
	assert.Error(t, err)
}

func TestReadPasswordLine(t *testing.T) {
	t.Parallel()

	pw, err := readPasswordLine(strings.NewReader("secret\r\nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "secret", pw.String())
	pw.Destroy()

	pw, err = readPasswordLine(strings.NewReader("no newline"))
	require.NoError(t, err)
	assert.Equal(t, "no newline", pw.String())
	pw.Destroy()

	_, err = readPasswordLine(strings.NewReader("\n"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "pw")
	require.NoError(t, os.WriteFile(path, []byte("from file\n"), 0o600))
	pw, err = readPassword(path, "", true)
	require.NoError(t, err)
	assert.Equal(t, "from file", pw.String())
	pw.Destroy()
}

func TestLoadSources(t *testing.T) {
	t.Parallel()

	g, err := passwgen.New(testPool(t), passwgen.Options{})
	require.NoError(t, err)

	dir := t.TempDir()
	words := filepath.Join(dir, "words.txt")
	require.NoError(t, os.WriteFile(words, []byte("alpha\nbravo\ncharlie\ndelta\n"), 0o600))

	require.NoError(t, loadSources(g, &generateOptions{charset: "<09>", wordList: words}))
	assert.Equal(t, 10, g.Charset().UniqueSize())
	assert.Equal(t, 4, g.WordList().Size())

	assert.Error(t, loadSources(g, &generateOptions{wordList: filepath.Join(dir, "missing")}))
}

func TestGenerateWithProgress(t *testing.T) {
	t.Parallel()

	g, err := passwgen.New(testPool(t), passwgen.Options{})
	require.NoError(t, err)

	res, err := generateWithProgress(context.Background(), g, &passwgen.Request{Count: 50, Chars: 8}, true)
	require.NoError(t, err)
	assert.Len(t, res.Passwords, 50)
	assert.Equal(t, uint64(50), g.Progress())
}

func TestWriteList(t *testing.T) {
	t.Parallel()

	g, err := passwgen.New(testPool(t), passwgen.Options{})
	require.NoError(t, err)
	res, err := g.Generate(context.Background(), &passwgen.Request{Count: 3, Chars: 10})
	require.NoError(t, err)
	list := res.String()

	dir := t.TempDir()
	plain := filepath.Join(dir, "list.txt")
	require.NoError(t, writeList(res, plain, false, ""))
	data, err := os.ReadFile(plain)
	require.NoError(t, err)
	assert.Equal(t, list, string(data))

	passFile := filepath.Join(dir, "pass")
	require.NoError(t, os.WriteFile(passFile, []byte("correct horse\n"), 0o600))
	encrypted := filepath.Join(dir, "list.age")
	require.NoError(t, writeList(res, encrypted, true, passFile))

	f, err := os.Open(encrypted)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	identity, err := age.NewScryptIdentity("correct horse")
	require.NoError(t, err)
	r, err := age.Decrypt(f, identity)
	require.NoError(t, err)
	data, err = io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, list, string(data))
}

func TestCollector(t *testing.T) {
	t.Parallel()

	pool := testPool(t)
	c := &collector{mgr: entropy.NewManager(pool, pool, entropy.DefaultCaps())}

	assert.True(t, c.handle(tcell.NewEventMouse(3, 4, tcell.Button1, tcell.ModNone)))
	assert.Equal(t, 1, c.events)
	assert.Positive(t, c.bits)
	assert.Equal(t, 3, c.lastX)
	assert.Equal(t, 4, c.lastY)

	// Same position and buttons carry nothing new.
	assert.True(t, c.handle(tcell.NewEventMouse(3, 4, tcell.Button1, tcell.ModNone)))
	assert.Equal(t, 1, c.events)

	assert.True(t, c.handle(tcell.NewEventMouse(5, 6, tcell.ButtonNone, tcell.ModNone)))
	assert.True(t, c.handle(tcell.NewEventMouse(5, 6, tcell.WheelUp, tcell.ModNone)))
	assert.True(t, c.handle(tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)))
	assert.Equal(t, 4, c.events)

	assert.True(t, c.handle(tcell.NewEventResize(80, 24)))
	assert.False(t, c.handle(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)))
	assert.False(t, c.handle(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)))
}

func TestDeterministicGenerator(t *testing.T) { //nolint:paralleltest // Registers config options.
	generate := func(salt string) string {
		seeded, err := rng.NewKeySeeded([]byte("master"), []byte(salt))
		require.NoError(t, err)
		g, err := newGenerator(seeded)
		require.NoError(t, err)
		res, err := g.Generate(context.Background(), &passwgen.Request{Count: 5, Chars: 16})
		require.NoError(t, err)
		return res.String()
	}

	assert.Equal(t, generate("example.com"), generate("example.com"))
	assert.NotEqual(t, generate("example.com"), generate("example.org"))
}
