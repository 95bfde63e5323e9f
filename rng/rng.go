package rng

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/safing/pwgen/crypto/hash"
	"github.com/safing/pwgen/log"
	"github.com/safing/pwgen/metrics"
)

const (
	// PoolSize is the size of the mixing buffer in bytes.
	PoolSize = 64
	// MaxEntropy is the maximum entropy, in bits, that output of the pool can carry.
	MaxEntropy = 256

	keySize   = 32
	freshSize = 32
)

// Domain separation tags for the mixing hash.
const (
	tagAdd byte = iota + 1
	tagTouch
	tagMove
	tagExtract
	tagRemix
	tagFast
	tagSeedOut
	tagSeedSeparate
)

// State describes the lifecycle of a Pool.
type State uint8

// Pool states.
const (
	StateUninitialized State = iota
	StateSelfTested
	StateSeeded
	StateActive
	StateFlushing
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSelfTested:
		return "self-tested"
	case StateSeeded:
		return "seeded"
	case StateActive:
		return "active"
	case StateFlushing:
		return "flushing"
	default:
		return "unknown"
	}
}

// Errors.
var (
	ErrSelfTestFailed = errors.New("rng: self-test of cryptographic primitives failed")
	ErrNotSelfTested  = errors.New("rng: pool was not self-tested")
	ErrUnknownCipher  = errors.New("rng: unknown cipher")

	errShortKey = errors.New("rng: key too short")
	errNotKeyed = errors.New("rng: keystream not keyed")
)

// Options configures a new Pool.
type Options struct {
	// Cipher selects the keystream generator. Defaults to ChaCha20.
	Cipher CipherKind
	// FreshEntropy is read on every flush. Defaults to crypto/rand.Reader.
	FreshEntropy io.Reader
}

// Pool is an entropy pool with a selectable keystream generator. Output is
// only released from a keystream that was keyed by a flush. All operations
// are serialized.
type Pool struct {
	lock sync.Mutex

	state      State
	pool       [PoolSize]byte
	mixCounter uint64

	cipher CipherKind
	stream keystream
	fresh  io.Reader
	fast   SplitMix64

	flushes   uint64
	bytesRead uint64
}

// New self-tests all primitives and returns a seeded pool. A self-test
// failure is fatal: no pool is returned.
func New(opts Options) (*Pool, error) {
	return newPool(opts, primitiveTests)
}

func newPool(opts Options, tests []primitiveTest) (*Pool, error) {
	if err := runSelfTests(tests); err != nil {
		log.Criticalf("rng: %s", err)
		return nil, fmt.Errorf("%w: %w", ErrSelfTestFailed, err)
	}

	if opts.Cipher == 0 {
		opts.Cipher = ChaCha20
	}
	if opts.FreshEntropy == nil {
		opts.FreshEntropy = rand.Reader
	}
	stream, err := newKeystream(opts.Cipher)
	if err != nil {
		return nil, err
	}

	p := &Pool{
		state:  StateSelfTested,
		cipher: opts.Cipher,
		stream: stream,
		fresh:  opts.FreshEntropy,
	}

	// initial seed: fresh entropy and time
	seed := make([]byte, freshSize)
	if _, err := io.ReadFull(p.fresh, seed); err != nil {
		log.Warningf("rng: failed to read initial entropy: %s", err)
	}
	p.lock.Lock()
	p.mix(tagAdd, seed, timestamp())
	p.reseedFast()
	p.state = StateSeeded
	p.lock.Unlock()
	clear(seed)

	return p, nil
}

func timestamp() []byte {
	return binary.LittleEndian.AppendUint64(nil, uint64(time.Now().UnixNano()))
}

// mix replaces the pool with a hash over the pool, the mix counter and the
// given data. Callers must hold the lock.
func (p *Pool) mix(tag byte, data ...[]byte) {
	sum := p.derive(tag, data...)
	copy(p.pool[:], sum)
	clear(sum)
	p.mixCounter++
}

// derive returns a hash over the pool and the given data without modifying
// the pool. Callers must hold the lock.
func (p *Pool) derive(tag byte, data ...[]byte) []byte {
	h := hash.BLAKE2B_512.New()
	_, _ = h.Write([]byte{tag})
	_, _ = h.Write(p.pool[:])
	_, _ = h.Write(binary.LittleEndian.AppendUint64(nil, p.mixCounter))
	for _, d := range data {
		_, _ = h.Write(binary.LittleEndian.AppendUint64(nil, uint64(len(d))))
		_, _ = h.Write(d)
	}
	return h.Sum(nil)
}

func (p *Pool) reseedFast() {
	sum := p.derive(tagFast)
	p.fast.Seed(binary.LittleEndian.Uint64(sum))
	clear(sum)
}

// State returns the current state of the pool.
func (p *Pool) State() State {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.state
}

// Cipher returns the active keystream generator.
func (p *Pool) Cipher() CipherKind {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.cipher
}

// Flushes returns the number of flushes since creation.
func (p *Pool) Flushes() uint64 {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.flushes
}

// AddEntropy mixes already whitened data into the pool. The next read
// flushes the pool first.
func (p *Pool) AddEntropy(data []byte) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.state == StateUninitialized {
		return ErrNotSelfTested
	}
	p.mix(tagAdd, data)
	p.state = StateSeeded
	return nil
}

// TouchPool remixes the pool with timing data. It does not release output.
func (p *Pool) TouchPool() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.state == StateUninitialized {
		return ErrNotSelfTested
	}
	p.mix(tagTouch, timestamp())
	return nil
}

// MovePool rotates and remixes the pool and reseeds the fast auxiliary
// generator.
func (p *Pool) MovePool() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.state == StateUninitialized {
		return ErrNotSelfTested
	}

	var rotated [PoolSize]byte
	shift := int(p.pool[0])%(PoolSize-1) + 1
	copy(rotated[:], p.pool[shift:])
	copy(rotated[PoolSize-shift:], p.pool[:shift])
	p.pool = rotated
	clear(rotated[:])

	p.mix(tagMove, timestamp())
	p.reseedFast()
	log.Tracef("rng: moved pool")
	return nil
}

// Flush extracts a new key for the keystream and immediately remixes the
// pool from the extraction residue and fresh entropy.
func (p *Pool) Flush() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.flush()
}

func (p *Pool) flush() error {
	if p.state == StateUninitialized {
		return ErrNotSelfTested
	}
	p.state = StateFlushing

	extract := p.derive(tagExtract)
	defer clear(extract)

	fresh := make([]byte, freshSize)
	defer clear(fresh)
	if _, err := io.ReadFull(p.fresh, fresh); err != nil {
		log.Warningf("rng: failed to read fresh entropy for flush: %s", err)
	}

	if err := p.stream.rekey(extract[:keySize]); err != nil {
		p.state = StateSeeded
		return err
	}
	p.mix(tagRemix, extract[keySize:], fresh, timestamp())

	p.flushes++
	metrics.PoolFlushes.Inc()
	p.state = StateActive
	return nil
}

// Read fills b with random bytes. The pool is flushed first if entropy was
// added or the cipher changed since the last flush.
func (p *Pool) Read(b []byte) (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	switch p.state {
	case StateUninitialized:
		return 0, ErrNotSelfTested
	case StateActive:
	default:
		if err := p.flush(); err != nil {
			return 0, err
		}
	}

	if err := p.stream.fill(b); err != nil {
		return 0, err
	}
	p.bytesRead += uint64(len(b))
	metrics.PoolBytesRead.Add(len(b))
	return len(b), nil
}

// Bytes allocates a new byte slice of given length and fills it with random data.
func (p *Pool) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := p.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// ChangeCipher switches the keystream generator. Accumulated entropy is kept;
// the new keystream is keyed by the next flush.
func (p *Pool) ChangeCipher(kind CipherKind) error {
	stream, err := newKeystream(kind)
	if err != nil {
		return err
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	if p.state == StateUninitialized {
		return ErrNotSelfTested
	}
	if kind == p.cipher {
		return nil
	}
	p.cipher = kind
	p.stream = stream
	if p.state != StateSelfTested {
		p.state = StateSeeded
	}
	log.Infof("rng: switched keystream to %s", kind)
	return nil
}

// Jitter returns a non-secret value in [0, n) from the fast auxiliary
// generator. It must only be used for scheduling.
func (p *Pool) Jitter(n int) int {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.fast.Intn(n)
}
