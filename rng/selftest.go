package rng

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/aead/serpent"
	"github.com/seehuhn/fortuna"
	"golang.org/x/crypto/chacha20"

	"github.com/safing/pwgen/crypto/hash"
)

type primitiveTest struct {
	name string
	test func() error
}

var primitiveTests = []primitiveTest{
	{"hash functions", hash.SelfTest},
	{"AES-256", testAES},
	{"Serpent", testSerpent},
	{"ChaCha20", testChaCha20},
	{"ChaCha8", testChaCha8},
	{"block counter generator", testBlockCounter},
	{"Base64", testBase64},
}

// SelfTest runs the self-tests of all cryptographic primitives used by the pool.
func SelfTest() error {
	return runSelfTests(primitiveTests)
}

func runSelfTests(tests []primitiveTest) error {
	for _, t := range tests {
		if err := t.test(); err != nil {
			return fmt.Errorf("%s: %w", t.name, err)
		}
	}
	return nil
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

var errMismatch = errors.New("output does not match known answer")

// FIPS-197, appendix C.3.
func testAES() error {
	return checkBlockCipher(aes.NewCipher,
		mustHex("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"),
		mustHex("00112233445566778899aabbccddeeff"),
		mustHex("8ea2b7ca516745bfeafc49904b496089"))
}

// NESSIE, Serpent-256-128 set 1, vector 0.
func testSerpent() error {
	return checkBlockCipher(serpent.NewCipher,
		mustHex("8000000000000000000000000000000000000000000000000000000000000000"),
		make([]byte, 16),
		mustHex("a223aa1288463c0e2be38ebd825616c0"))
}

func checkBlockCipher(newCipher newBlockCipher, key, plain, expected []byte) error {
	block, err := newCipher(key)
	if err != nil {
		return err
	}
	out := make([]byte, block.BlockSize())
	block.Encrypt(out, plain)
	if !bytes.Equal(out, expected) {
		return errMismatch
	}
	block.Decrypt(out, out)
	if !bytes.Equal(out, plain) {
		return errMismatch
	}
	return nil
}

// RFC 7539, appendix A.1, test vector 1.
func testChaCha20() error {
	expected := mustHex("76b8e0ada0f13d90405d6ae55386bd28bdd219b8a08ded1aa836efcc8b770dc7" +
		"da41597c5157488d7724e03fb8d84a376a43b8f41518a11cc387b669b2ee6586")

	c, err := chacha20.NewUnauthenticatedCipher(make([]byte, chacha20.KeySize), make([]byte, chacha20.NonceSize))
	if err != nil {
		return err
	}
	out := make([]byte, len(expected))
	c.XORKeyStream(out, out)
	if !bytes.Equal(out, expected) {
		return errMismatch
	}
	// the reduced round core must agree at full strength
	return checkChaCha(20, 0, expected)
}

// ChaCha8 with an all zero 256 bit key and IV, the first two blocks.
func testChaCha8() error {
	if err := checkChaCha(8, 0, mustHex("3e00ef2f895f40d67f5bb8e81f09a5a12c840ec3ce9a7f3b181be188ef711a1e"+
		"984ce172b9216f419f445367456d5619314a42a3da86b001387bfdb80e0cfe42")); err != nil {
		return err
	}
	return checkChaCha(8, 1, mustHex("d2aefa0deaa5c151bf0adb6c01f2a5adc0fd581259f9a2aadcf20f8fd566a26b"+
		"5032ec38bbc5da98ee0c6f568b872a65a08abf251deb21bb4b56e5d8821e68aa"))
}

func checkChaCha(rounds int, counter uint64, expected []byte) error {
	var key [chachaKeySize]byte
	var out [chachaBlockSize]byte
	chachaBlock(&out, &key, counter, rounds)
	if !bytes.Equal(out[:], expected) {
		return errMismatch
	}
	return nil
}

func testBlockCounter() error {
	return checkBlockCounter(func(newCipher newBlockCipher) blockGenerator {
		return fortuna.NewGenerator(newCipher)
	})
}

// blockGenerator is the part of the fortuna generator used by the pool.
type blockGenerator interface {
	Reseed(seed []byte)
	PseudoRandomData(n uint) []byte
}

// recordingBlock records the keys and inputs the generator hands to AES.
type recordingBlock struct {
	cipher.Block
	key    []byte
	inputs [][]byte
}

func (b *recordingBlock) Encrypt(dst, src []byte) {
	b.inputs = append(b.inputs, bytes.Clone(src))
	b.Block.Encrypt(dst, src)
}

// checkBlockCounter verifies that every output block of the generator is
// the AES encryption of a distinct counter block, and that the generator
// rekeys with the two blocks following the output.
func checkBlockCounter(newGenerator func(newBlockCipher) blockGenerator) error {
	var instances []*recordingBlock
	gen := newGenerator(func(key []byte) (cipher.Block, error) {
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		r := &recordingBlock{Block: block, key: bytes.Clone(key)}
		instances = append(instances, r)
		return r, nil
	})
	gen.Reseed([]byte("block counter self-test seed"))
	before := len(instances)
	out := gen.PseudoRandomData(4 * aes.BlockSize)
	if before == 0 || len(instances) <= before {
		return errMismatch
	}
	used, next := instances[before-1], instances[len(instances)-1]
	if len(used.inputs) < 6 || len(out) != 4*aes.BlockSize {
		return errMismatch
	}

	ref, err := aes.NewCipher(used.key)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(used.inputs))
	expected := make([]byte, 0, 6*aes.BlockSize)
	for _, in := range used.inputs[:6] {
		if _, ok := seen[string(in)]; ok {
			return errMismatch
		}
		seen[string(in)] = struct{}{}
		block := make([]byte, aes.BlockSize)
		ref.Encrypt(block, in)
		expected = append(expected, block...)
	}
	if !bytes.Equal(out, expected[:4*aes.BlockSize]) || !bytes.Equal(next.key, expected[4*aes.BlockSize:]) {
		return errMismatch
	}
	return nil
}

func testBase64() error {
	if base64.StdEncoding.EncodeToString([]byte("Man")) != "TWFu" {
		return errMismatch
	}
	decoded, err := base64.StdEncoding.DecodeString("TWE=")
	if err != nil {
		return err
	}
	if string(decoded) != "Ma" {
		return errMismatch
	}
	return nil
}
