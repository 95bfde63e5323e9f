package script

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safing/pwgen/passwgen"
	"github.com/safing/pwgen/rng"
)

func testPool(t *testing.T) *rng.Pool {
	t.Helper()

	pool, err := rng.New(rng.Options{})
	require.NoError(t, err)
	return pool
}

func await(t *testing.T, s *Lua) passwgen.ScriptResult {
	t.Helper()

	select {
	case res := <-s.Results():
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("script did not respond")
		return passwgen.ScriptResult{}
	}
}

func start(t *testing.T, s *Lua, init passwgen.ScriptInit) {
	t.Helper()

	require.NoError(t, s.Start(init))
	require.NoError(t, await(t, s).Err)
}

const upperScript = `
calls = 0
function pw_init(count, gen, flags, chars, words, format)
  total = count
end
function pw_generate(num, passw, bits)
  calls = calls + 1
  return string.upper(passw) .. "/" .. num .. "/" .. total, bits + 1
end
`

func TestGenerate(t *testing.T) {
	t.Parallel()

	s, err := New(context.Background(), "upper", upperScript, testPool(t))
	require.NoError(t, err)
	assert.False(t, s.Standalone())

	require.ErrorIs(t, s.Generate(1, "abc", 10), ErrNotStarted)

	start(t, s, passwgen.ScriptInit{Count: 7})
	require.NoError(t, s.Generate(1, "abc", 10))
	res := await(t, s)
	require.NoError(t, res.Err)
	assert.Equal(t, "ABC/1/7", res.Password)
	assert.InDelta(t, 11, res.Entropy, 1e-9)

	require.NoError(t, s.Generate(2, "xyz", 5))
	res = await(t, s)
	assert.Equal(t, "XYZ/2/7", res.Password)

	s.Terminate()
	require.ErrorIs(t, s.Generate(3, "abc", 10), ErrNotStarted)
}

func TestNilResult(t *testing.T) {
	t.Parallel()

	s, err := New(context.Background(), "nil", `function pw_generate(num, passw, bits) return nil end`, testPool(t))
	require.NoError(t, err)
	start(t, s, passwgen.ScriptInit{Count: 1})
	defer s.Terminate()

	require.NoError(t, s.Generate(1, "keep", 42))
	res := await(t, s)
	require.NoError(t, res.Err)
	assert.Empty(t, res.Password)
	assert.InDelta(t, 42, res.Entropy, 1e-9)
}

func TestErrors(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), "empty", `x = 1`, testPool(t))
	require.ErrorIs(t, err, ErrNoGenerate)

	_, err = New(context.Background(), "syntax", `function pw_generate(`, testPool(t))
	require.Error(t, err)

	_, err = Load(context.Background(), filepath.Join(t.TempDir(), "missing.lua"), testPool(t))
	require.Error(t, err)

	s, err := New(context.Background(), "failing", `function pw_generate(num, passw, bits) error("boom") end`, testPool(t))
	require.NoError(t, err)
	start(t, s, passwgen.ScriptInit{})
	defer s.Terminate()
	require.NoError(t, s.Generate(1, "abc", 1))
	res := await(t, s)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "boom")

	// A failing pw_init is reported as the outcome of Start.
	s, err = New(context.Background(), "failing init", `
function pw_init() error("bad init") end
function pw_generate(num, passw, bits) return passw end`, testPool(t))
	require.NoError(t, err)
	require.NoError(t, s.Start(passwgen.ScriptInit{}))
	defer s.Terminate()
	res = await(t, s)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "bad init")
}

func TestStandaloneRandom(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dice.lua")
	require.NoError(t, os.WriteFile(path, []byte(`
pw_standalone = true
function pw_generate(num, passw, bits)
  local out = ""
  for i = 1, 10 do
    out = out .. pw_random(1, 6)
  end
  return out, 10 * math.log(6, 2)
end
`), 0o600))

	s, err := Load(context.Background(), path, testPool(t))
	require.NoError(t, err)
	assert.True(t, s.Standalone())
	assert.Equal(t, path, s.Name())

	start(t, s, passwgen.ScriptInit{Count: 1})
	defer s.Terminate()
	require.NoError(t, s.Generate(1, "", 0))
	res := await(t, s)
	require.NoError(t, res.Err)
	assert.Len(t, res.Password, 10)
	assert.Empty(t, strings.Trim(res.Password, "123456"))
}

func TestTerminateInfiniteLoop(t *testing.T) {
	t.Parallel()

	s, err := New(context.Background(), "loop", `function pw_generate(num, passw, bits) while true do end end`, testPool(t))
	require.NoError(t, err)
	start(t, s, passwgen.ScriptInit{})
	require.NoError(t, s.Generate(1, "abc", 1))

	time.Sleep(50 * time.Millisecond)
	s.Terminate()

	// The script can be started again after termination.
	start(t, s, passwgen.ScriptInit{})
	s.Terminate()
}

func TestTerminateEndlessInit(t *testing.T) {
	t.Parallel()

	s, err := New(context.Background(), "loop", `
function pw_init() while true do end end
function pw_generate(num, passw, bits) return passw end`, testPool(t))
	require.NoError(t, err)

	// Start returns at once, the endless pw_init never reports.
	require.NoError(t, s.Start(passwgen.ScriptInit{}))
	select {
	case <-s.Results():
		t.Fatal("pw_init returned")
	case <-time.After(50 * time.Millisecond):
	}
	s.Terminate()
}

func TestEndlessTopLevel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(ctx, "loop", `
while true do end
function pw_generate(num, passw, bits) return passw end`, testPool(t))
	require.ErrorIs(t, err, ErrTerminated)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithGenerator(t *testing.T) {
	t.Parallel()

	pool := testPool(t)
	s, err := New(context.Background(), "suffix", `function pw_generate(num, passw, bits) return passw .. "-" .. num, bits end`, pool)
	require.NoError(t, err)

	g, err := passwgen.New(pool, passwgen.Options{ScriptPoll: 10 * time.Millisecond})
	require.NoError(t, err)
	g.SetScript(s)

	res, err := g.Generate(context.Background(), &passwgen.Request{Count: 3, Chars: 8})
	require.NoError(t, err)
	require.Len(t, res.Passwords, 3)
	for i, pw := range res.Passwords {
		assert.True(t, strings.HasSuffix(string(pw.Text), "-"+string(rune('1'+i))), string(pw.Text))
	}

	// An endless pw_init is terminated after the poll limit.
	hanging, err := New(context.Background(), "init loop", `
function pw_init() while true do end end
function pw_generate(num, passw, bits) return passw end`, pool)
	require.NoError(t, err)
	limited, err := passwgen.New(pool, passwgen.Options{ScriptPoll: 10 * time.Millisecond, ScriptMaxTimeouts: 3})
	require.NoError(t, err)
	limited.SetScript(hanging)
	_, err = limited.Generate(context.Background(), &passwgen.Request{Count: 3, Chars: 8})
	require.ErrorIs(t, err, passwgen.ErrScriptUnresponsive)

	// An endless script is terminated when the batch is canceled.
	loop, err := New(context.Background(), "loop", `function pw_generate(num, passw, bits) while true do end end`, pool)
	require.NoError(t, err)
	g.SetScript(loop)

	ctx, cancel := context.WithCancelCause(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel(passwgen.ErrUserCancel)
	}()
	res, err = g.Generate(ctx, &passwgen.Request{Count: 3, Chars: 8})
	require.NoError(t, err)
	assert.True(t, res.Canceled)
	assert.ErrorIs(t, res.CancelReason, passwgen.ErrUserCancel)
}
