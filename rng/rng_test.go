package rng

import (
	"bytes"
	"context"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/seehuhn/fortuna"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, kind CipherKind) *Pool {
	t.Helper()

	p, err := New(Options{Cipher: kind})
	require.NoError(t, err)
	return p
}

func TestSelfTest(t *testing.T) {
	t.Parallel()

	require.NoError(t, SelfTest())
}

func TestFailingSelfTest(t *testing.T) {
	t.Parallel()

	broken := append([]primitiveTest{}, primitiveTests...)
	broken = append(broken, primitiveTest{"broken", func() error { return errMismatch }})

	p, err := newPool(Options{}, broken)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSelfTestFailed)
	assert.Nil(t, p)
}

// xorBlock is a bijective cipher that ignores the rounds of a real one.
type xorBlock struct{ key []byte }

func (b xorBlock) BlockSize() int { return 16 }

func (b xorBlock) Encrypt(dst, src []byte) {
	for i := 0; i < 16; i++ {
		dst[i] = src[i] ^ b.key[i]
	}
}

func (b xorBlock) Decrypt(dst, src []byte) { b.Encrypt(dst, src) }

func newXORBlock(key []byte) (cipher.Block, error) { return xorBlock{key: key}, nil }

// counterOnly returns its counter blocks without encrypting them.
type counterOnly struct {
	counter uint64
}

func (g *counterOnly) Reseed(seed []byte) { g.counter++ }

func (g *counterOnly) PseudoRandomData(n uint) []byte {
	out := make([]byte, 0, n)
	for uint(len(out)) < n {
		out = binary.LittleEndian.AppendUint64(out, g.counter)
		out = append(out, make([]byte, 8)...)
		g.counter++
	}
	return out[:n]
}

func TestKnownAnswers(t *testing.T) {
	t.Parallel()

	// A bijective but wrong cipher passes a round trip, not a known answer.
	assert.ErrorIs(t, checkBlockCipher(newXORBlock,
		mustHex("8000000000000000000000000000000000000000000000000000000000000000"),
		make([]byte, 16),
		mustHex("a223aa1288463c0e2be38ebd825616c0")), errMismatch)

	// ChaCha with the wrong number of rounds.
	assert.ErrorIs(t, checkChaCha(12, 0, mustHex("3e00ef2f895f40d67f5bb8e81f09a5a12c840ec3ce9a7f3b181be188ef711a1e"+
		"984ce172b9216f419f445367456d5619314a42a3da86b001387bfdb80e0cfe42")), errMismatch)

	// A generator that does not encrypt its counter.
	assert.ErrorIs(t, checkBlockCounter(func(newBlockCipher) blockGenerator {
		return &counterOnly{}
	}), errMismatch)
	// A generator using a different cipher than it was given.
	assert.ErrorIs(t, checkBlockCounter(func(newBlockCipher) blockGenerator {
		return fortuna.NewGenerator(newXORBlock)
	}), errMismatch)
}

func TestChaCha8Stream(t *testing.T) {
	t.Parallel()

	s := &chacha8Stream{}
	assert.ErrorIs(t, s.fill(make([]byte, 8)), errNotKeyed)
	assert.ErrorIs(t, s.rekey(make([]byte, 16)), errShortKey)
	require.NoError(t, s.rekey(make([]byte, 32)))

	// block 0 becomes the next key, output starts at block 1
	out := make([]byte, 64)
	require.NoError(t, s.fill(out))
	assert.Equal(t, mustHex("d2aefa0deaa5c151bf0adb6c01f2a5adc0fd581259f9a2aadcf20f8fd566a26b"+
		"5032ec38bbc5da98ee0c6f568b872a65a08abf251deb21bb4b56e5d8821e68aa"), out)
	assert.Equal(t, mustHex("3e00ef2f895f40d67f5bb8e81f09a5a12c840ec3ce9a7f3b181be188ef711a1e"), s.key[:])

	out = make([]byte, 32)
	require.NoError(t, s.fill(out))
	assert.Equal(t, mustHex("7e977730ae450b0c9a857c0ebeb12b447b518649c46f5dd39f4354be0052b075"), out)
}

func TestZeroPool(t *testing.T) {
	t.Parallel()

	var p Pool
	_, err := p.Read(make([]byte, 8))
	assert.ErrorIs(t, err, ErrNotSelfTested)
	assert.ErrorIs(t, p.AddEntropy([]byte{1}), ErrNotSelfTested)
	assert.ErrorIs(t, p.TouchPool(), ErrNotSelfTested)
	assert.ErrorIs(t, p.MovePool(), ErrNotSelfTested)
	assert.ErrorIs(t, p.Flush(), ErrNotSelfTested)
	assert.ErrorIs(t, p.WriteSeedFile(filepath.Join(t.TempDir(), "seed")), ErrNotSelfTested)
}

func TestStates(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, ChaCha20)
	assert.Equal(t, StateSeeded, p.State())
	assert.Equal(t, uint64(0), p.Flushes())

	_, err := p.Bytes(32)
	require.NoError(t, err)
	assert.Equal(t, StateActive, p.State())
	assert.Equal(t, uint64(1), p.Flushes())

	// reading again does not flush
	_, err = p.Bytes(32)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.Flushes())

	// maintenance does not release output or change the state
	require.NoError(t, p.TouchPool())
	require.NoError(t, p.MovePool())
	assert.Equal(t, StateActive, p.State())

	require.NoError(t, p.AddEntropy([]byte("more entropy")))
	assert.Equal(t, StateSeeded, p.State())
	_, err = p.Bytes(32)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), p.Flushes())
}

func TestCiphers(t *testing.T) {
	t.Parallel()

	for kind := range cipherNames {
		kind := kind
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			p := newTestPool(t, kind)
			assert.Equal(t, kind, p.Cipher())

			a, err := p.Bytes(64)
			require.NoError(t, err)
			b, err := p.Bytes(64)
			require.NoError(t, err)
			assert.NotEqual(t, a, b)
			assert.NotEqual(t, make([]byte, 64), a)

			// larger than a single chunk
			big, err := p.Bytes(maxChunk + 100)
			require.NoError(t, err)
			assert.False(t, bytes.Equal(big[:64], big[maxChunk:maxChunk+64]))
		})
	}
}

func TestParseCipherKind(t *testing.T) {
	t.Parallel()

	kind, err := ParseCipherKind("serpent-ctr")
	require.NoError(t, err)
	assert.Equal(t, SerpentCounter, kind)

	_, err = ParseCipherKind("rot13")
	assert.ErrorIs(t, err, ErrUnknownCipher)
	assert.Equal(t, "unknown(99)", CipherKind(99).String())
}

func TestChangeCipher(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, ChaCha20)
	_, err := p.Bytes(16)
	require.NoError(t, err)

	require.NoError(t, p.ChangeCipher(AESCounter))
	assert.Equal(t, AESCounter, p.Cipher())
	assert.Equal(t, StateSeeded, p.State())

	_, err = p.Bytes(16)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), p.Flushes())

	// same cipher is a no-op
	require.NoError(t, p.ChangeCipher(AESCounter))
	assert.Equal(t, StateActive, p.State())

	assert.ErrorIs(t, p.ChangeCipher(CipherKind(42)), ErrUnknownCipher)
}

// Two pools with identical fresh entropy and state diverge only through
// their flush history: the pool after a flush must not be able to reproduce
// output released before it.
func TestFlushForwardSecrecy(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, ChaCha20)
	before, err := p.Bytes(64)
	require.NoError(t, err)

	p.lock.Lock()
	snapshot := p.pool
	p.lock.Unlock()

	// rekeying the stream from the current pool yields different output
	stream, err := newKeystream(ChaCha20)
	require.NoError(t, err)
	p.lock.Lock()
	extract := p.derive(tagExtract)
	p.lock.Unlock()
	require.NoError(t, stream.rekey(extract[:keySize]))
	after := make([]byte, 64)
	require.NoError(t, stream.fill(after))
	assert.NotEqual(t, before, after)

	require.NoError(t, p.Flush())
	p.lock.Lock()
	assert.NotEqual(t, snapshot, p.pool)
	p.lock.Unlock()
}

func TestSeedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "randseed.dat")
	p := newTestPool(t, ChaCha20)
	require.NoError(t, p.WriteSeedFile(path))

	q := newTestPool(t, ChaCha8)
	require.NoError(t, q.ReadSeedFile(path))
	assert.Equal(t, StateSeeded, q.State())

	// a corrupted file is rejected and leaves the pool unchanged
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)/2] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err = q.Bytes(8)
	require.NoError(t, err)
	err = q.ReadSeedFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSeedFile)
	assert.Equal(t, StateActive, q.State())

	// a missing file is reported
	err = q.ReadSeedFile(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestUniform(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, ChaCha20)

	_, err := p.Intn(0)
	require.Error(t, err)

	v, err := p.Uint64n(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)

	seen := make(map[int]int)
	for _rangeIter := 0; _rangeIter < 1000; _rangeIter++ {
		n, err := p.Intn(6)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 0)
		require.Less(t, n, 6)
		seen[n]++
	}
	assert.Len(t, seen, 6)

	for _rangeIter := 0; _rangeIter < 100; _rangeIter++ {
		n, err := p.Uint64n(8)
		require.NoError(t, err)
		require.Less(t, n, uint64(8))
	}
}

func TestKeySeeded(t *testing.T) {
	t.Parallel()

	a, err := NewKeySeeded([]byte("master password"), []byte("example.com"))
	require.NoError(t, err)
	b, err := NewKeySeeded([]byte("master password"), []byte("example.com"))
	require.NoError(t, err)
	c, err := NewKeySeeded([]byte("master password"), []byte("example.org"))
	require.NoError(t, err)

	outA := make([]byte, 48)
	outB := make([]byte, 48)
	outC := make([]byte, 48)
	_, _ = a.Read(outA)
	_, _ = b.Read(outB)
	_, _ = c.Read(outC)
	assert.Equal(t, outA, outB)
	assert.NotEqual(t, outA, outC)
}

func TestSplitMix64(t *testing.T) {
	t.Parallel()

	var s SplitMix64
	s.Seed(0)
	assert.Equal(t, uint64(0xe220a8397b1dcdaf), s.Uint64())
	assert.Equal(t, 0, s.Intn(0))

	p := newTestPool(t, ChaCha20)
	for _rangeIter := 0; _rangeIter < 100; _rangeIter++ {
		j := p.Jitter(50)
		require.GreaterOrEqual(t, j, 0)
		require.Less(t, j, 50)
	}
}

func TestMaintain(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, ChaCha20)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	sampled := make(chan struct{}, 100)
	seeded := make(chan struct{}, 100)
	err := p.Maintain(ctx, Schedule{
		Touch:         5 * time.Millisecond,
		SystemEntropy: 10 * time.Millisecond,
		Move:          15 * time.Millisecond,
		SeedFile:      20 * time.Millisecond,
	}, MaintenanceHooks{
		SampleSystem: func() { sampled <- struct{}{} },
		WriteSeed: func() error {
			seeded <- struct{}{}
			return errors.New("disk full")
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sampled)
	assert.NotEmpty(t, seeded)
}

func TestConfig(t *testing.T) {
	t.Parallel()

	opts, err := OptionsFromConfig()
	require.NoError(t, err)
	assert.Equal(t, ChaCha20, opts.Cipher)

	schedule, err := ScheduleFromConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultSchedule, schedule)
}
