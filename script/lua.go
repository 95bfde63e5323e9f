// Package script runs Lua scripts that post-process or generate passwords.
//
// A script must define
//
//	function pw_generate(num, passw, bits) return passw, bits end
//
// which is called for every password with its 1-based index, the generated
// password and its entropy. Returning nil keeps the password. A script may
// define pw_init(count, gen_flags, flags, chars, words, format), which is
// called once per batch, and may set the global pw_standalone to true to
// generate passwords on its own. The function pw_random(a, b) returns a
// random integer in [a, b] from the random pool.
package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/Shopify/go-lua"

	"github.com/safing/pwgen/log"
	"github.com/safing/pwgen/passwgen"
	"github.com/safing/pwgen/rng"
)

// Script function and variable names.
const (
	FuncGenerate   = "pw_generate"
	FuncInit       = "pw_init"
	FuncRandom     = "pw_random"
	VarStandalone  = "pw_standalone"
	hookCountLimit = 1000
)

// Errors.
var (
	ErrNoGenerate = errors.New("script does not define " + FuncGenerate)
	ErrNotStarted = errors.New("script is not running")
	ErrTerminated = errors.New("script terminated")
	ErrBusy       = errors.New("script is still busy")
)

type call struct {
	index    uint64
	password string
	entropy  float64
}

// Lua is a loaded Lua script. It implements passwgen.Script.
type Lua struct {
	name   string
	source string
	rand   io.Reader

	standalone bool

	lock       sync.Mutex
	calls      chan call
	results    chan passwgen.ScriptResult
	stop       chan struct{}
	terminated *atomic.Bool
}

var _ passwgen.Script = &Lua{}

// Load loads a script from a file. The random source backs pw_random.
func Load(ctx context.Context, path string, r io.Reader) (*Lua, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return New(ctx, path, string(data), r)
}

// New compiles a script from source and verifies that it defines
// pw_generate. The top level of the script is interrupted when ctx is done.
func New(ctx context.Context, name, source string, r io.Reader) (*Lua, error) {
	s := &Lua{
		name:   name,
		source: source,
		rand:   r,
	}

	terminated := &atomic.Bool{}
	done := make(chan error, 1)
	go func() {
		l, err := s.newState(terminated)
		if err == nil {
			l.Global(VarStandalone)
			s.standalone = l.ToBoolean(-1)
			l.Pop(1)
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		// The interpreter raises an error at its next hook and is dropped.
		terminated.Store(true)
		return nil, fmt.Errorf("failed to run %s: %w: %w", name, ErrTerminated, context.Cause(ctx))
	}

	log.Debugf("script: loaded %s (standalone: %v)", name, s.standalone)
	return s, nil
}

// Name returns the name of the script.
func (s *Lua) Name() string {
	return s.name
}

// Standalone reports whether the script sets pw_standalone.
func (s *Lua) Standalone() bool {
	return s.standalone
}

// newState runs the script in a fresh interpreter. The interpreter raises an
// error as soon as terminated is set.
func (s *Lua) newState(terminated *atomic.Bool) (*lua.State, error) {
	l := lua.NewState()
	lua.OpenLibraries(l)
	l.PushGoFunction(s.random)
	l.SetGlobal(FuncRandom)
	lua.SetDebugHook(l, func(l *lua.State, _ lua.Debug) {
		if terminated.Load() {
			lua.Errorf(l, "%s", ErrTerminated.Error())
		}
	}, lua.MaskCount, hookCountLimit)

	if err := lua.LoadString(l, s.source); err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", s.name, err)
	}
	if err := l.ProtectedCall(0, 0, 0); err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", s.name, err)
	}

	l.Global(FuncGenerate)
	defined := l.IsFunction(-1)
	l.Pop(1)
	if !defined {
		return nil, ErrNoGenerate
	}
	return l, nil
}

func (s *Lua) random(l *lua.State) int {
	a := lua.CheckInteger(l, 1)
	b := lua.CheckInteger(l, 2)
	if b < a {
		a, b = b, a
	}
	n, err := rng.Uint64n(s.rand, uint64(b-a)+1)
	if err != nil {
		lua.Errorf(l, "%s", err.Error())
	}
	l.PushInteger(a + int(n))
	return 1
}

// Start prepares a fresh interpreter for a batch and calls pw_init. A
// running batch is terminated first. The interpreter is prepared in the
// background, its outcome is the first value on the Results channel.
func (s *Lua) Start(init passwgen.ScriptInit) error {
	s.Terminate()

	s.lock.Lock()
	defer s.lock.Unlock()
	s.calls = make(chan call, 1)
	s.stop = make(chan struct{})
	s.results = make(chan passwgen.ScriptResult, 1)
	s.terminated = &atomic.Bool{}

	go s.loop(init, s.terminated, s.calls, s.results, s.stop)
	return nil
}

func (s *Lua) loop(init passwgen.ScriptInit, terminated *atomic.Bool, calls <-chan call, results chan<- passwgen.ScriptResult, stop <-chan struct{}) {
	l, err := s.prepare(init, terminated)
	select {
	case results <- passwgen.ScriptResult{Err: err}:
	case <-stop:
		return
	}
	if err != nil {
		return
	}

	for {
		select {
		case <-stop:
			return
		case c := <-calls:
			res := s.generate(l, c)
			select {
			case results <- res:
			case <-stop:
				return
			}
		}
	}
}

// prepare runs the script in a fresh interpreter and calls pw_init.
func (s *Lua) prepare(init passwgen.ScriptInit, terminated *atomic.Bool) (l *lua.State, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", FuncInit, r)
		}
	}()

	l, err = s.newState(terminated)
	if err != nil {
		return nil, err
	}

	l.Global(FuncInit)
	if !l.IsFunction(-1) {
		l.Pop(1)
		return l, nil
	}
	l.PushInteger(int(init.Count))
	l.PushInteger(init.Gen)
	l.PushInteger(int(init.Flags))
	l.PushInteger(init.Chars)
	l.PushInteger(init.Words)
	l.PushString(init.Format)
	if err := l.ProtectedCall(6, 0, 0); err != nil {
		return nil, fmt.Errorf("%s failed: %w", FuncInit, err)
	}
	return l, nil
}

func (s *Lua) generate(l *lua.State, c call) (res passwgen.ScriptResult) {
	defer func() {
		if r := recover(); r != nil {
			res = passwgen.ScriptResult{Err: fmt.Errorf("%s panicked: %v", FuncGenerate, r)}
		}
	}()

	l.SetTop(0)
	l.Global(FuncGenerate)
	l.PushInteger(int(c.index))
	l.PushString(c.password)
	l.PushNumber(c.entropy)
	if err := l.ProtectedCall(3, 2, 0); err != nil {
		return passwgen.ScriptResult{Err: fmt.Errorf("%s failed: %w", FuncGenerate, err)}
	}

	if pw, ok := l.ToString(-2); ok {
		res.Password = pw
	}
	if bits, ok := l.ToNumber(-1); ok {
		res.Entropy = bits
	} else {
		res.Entropy = c.entropy
	}
	l.Pop(2)
	return res
}

// Generate queues a call to pw_generate.
func (s *Lua) Generate(index uint64, password string, entropy float64) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.calls == nil {
		return ErrNotStarted
	}
	select {
	case s.calls <- call{index: index, password: password, entropy: entropy}:
		return nil
	default:
		return ErrBusy
	}
}

// Results returns the channel on which results of the running batch are
// delivered.
func (s *Lua) Results() <-chan passwgen.ScriptResult {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.results
}

// Terminate stops the running batch, interrupting the script if it is busy.
func (s *Lua) Terminate() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.calls == nil {
		return
	}
	s.terminated.Store(true)
	close(s.stop)
	s.calls, s.stop = nil, nil
}
