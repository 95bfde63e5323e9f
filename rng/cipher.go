package rng

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/aead/serpent"
	"github.com/seehuhn/fortuna"
	"golang.org/x/crypto/chacha20"
)

// CipherKind selects the keystream generator of the pool.
type CipherKind uint8

// Available keystream generators.
const (
	ChaCha20 CipherKind = iota + 1
	ChaCha8
	AESCounter
	SerpentCounter
)

// maxChunk bounds the output of a single key.
const maxChunk = 1 << 20

var cipherNames = map[CipherKind]string{
	ChaCha20:       "chacha20",
	ChaCha8:        "chacha8",
	AESCounter:     "aes-ctr",
	SerpentCounter: "serpent-ctr",
}

func (k CipherKind) String() string {
	name, ok := cipherNames[k]
	if !ok {
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
	return name
}

// ParseCipherKind returns the cipher kind with the given name.
func ParseCipherKind(name string) (CipherKind, error) {
	for kind, kindName := range cipherNames {
		if kindName == name {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownCipher, name)
}

// keystream is a key-erasing stream generator. rekey must be called before
// the first fill. The key slice is owned by the caller.
type keystream interface {
	rekey(key []byte) error
	fill(p []byte) error
}

func newKeystream(kind CipherKind) (keystream, error) {
	switch kind {
	case ChaCha20:
		return &chacha20Stream{}, nil
	case ChaCha8:
		return &chacha8Stream{}, nil
	case AESCounter:
		return &blockCounterStream{newCipher: aes.NewCipher}, nil
	case SerpentCounter:
		return &blockCounterStream{newCipher: serpent.NewCipher}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCipher, kind)
	}
}

type chacha20Stream struct {
	key   [chacha20.KeySize]byte
	keyed bool
}

func (s *chacha20Stream) rekey(key []byte) error {
	if len(key) < chacha20.KeySize {
		return errShortKey
	}
	copy(s.key[:], key)
	s.keyed = true
	return nil
}

func (s *chacha20Stream) fill(p []byte) error {
	if !s.keyed {
		return errNotKeyed
	}
	for len(p) > 0 {
		n := min(len(p), maxChunk)
		c, err := chacha20.NewUnauthenticatedCipher(s.key[:], make([]byte, chacha20.NonceSize))
		if err != nil {
			return err
		}
		// The first block replaces the key before any output is released.
		var next [chacha20.KeySize]byte
		c.XORKeyStream(next[:], next[:])
		clear(p[:n])
		c.XORKeyStream(p[:n], p[:n])
		s.key = next
		clear(next[:])
		p = p[n:]
	}
	return nil
}

// newBlockCipher returns a block cipher for the key.
type newBlockCipher = func(key []byte) (cipher.Block, error)

type blockCounterStream struct {
	newCipher newBlockCipher
	gen       *fortuna.Generator
}

func (s *blockCounterStream) rekey(key []byte) error {
	if len(key) < 32 {
		return errShortKey
	}
	s.gen = fortuna.NewGenerator(s.newCipher)
	s.gen.Reseed(key[:32])
	return nil
}

func (s *blockCounterStream) fill(p []byte) error {
	if s.gen == nil {
		return errNotKeyed
	}
	// the fortuna generator rekeys itself after every request
	for len(p) > 0 {
		n := min(len(p), maxChunk)
		data := s.gen.PseudoRandomData(uint(n))
		copy(p, data)
		clear(data)
		p = p[n:]
	}
	return nil
}
