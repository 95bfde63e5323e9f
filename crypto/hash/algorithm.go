// Copyright Safing ICS Technologies GmbH. Use of this source code is governed by the AGPL license that can be found in the LICENSE file.

package hash

import (
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"
)

// Algorithm identifies a hash function.
type Algorithm uint8

// Supported hash algorithms.
const (
	SHA2_256 Algorithm = 1 + iota //nolint:revive,stylecheck
	SHA2_512                      //nolint:revive,stylecheck
	SHA3_256                      //nolint:revive,stylecheck
	SHA3_512                      //nolint:revive,stylecheck
	BLAKE2S_256                   //nolint:revive,stylecheck
	BLAKE2B_512                   //nolint:revive,stylecheck
)

var (
	attributes = map[Algorithm][]uint8{
		// block size, output size, security strength - in bytes
		SHA2_256:    {64, 32, 16},
		SHA2_512:    {128, 64, 32},
		SHA3_256:    {136, 32, 16},
		SHA3_512:    {72, 64, 32},
		BLAKE2S_256: {64, 32, 16},
		BLAKE2B_512: {128, 64, 32},
	}

	functions = map[Algorithm]func() hash.Hash{
		SHA2_256:    sha256.New,
		SHA2_512:    sha512.New,
		SHA3_256:    sha3.New256,
		SHA3_512:    sha3.New512,
		BLAKE2S_256: newBlake2s256,
		BLAKE2B_512: newBlake2b512,
	}

	names = map[Algorithm]string{
		SHA2_256:    "SHA2-256",
		SHA2_512:    "SHA2-512",
		SHA3_256:    "SHA3-256",
		SHA3_512:    "SHA3-512",
		BLAKE2S_256: "Blake2s-256",
		BLAKE2B_512: "Blake2b-512",
	}
)

func newBlake2s256() hash.Hash {
	h, _ := blake2s.New256(nil)
	return h
}

func newBlake2b512() hash.Hash {
	h, _ := blake2b.New512(nil)
	return h
}

// All returns all supported algorithms.
func All() []Algorithm {
	return []Algorithm{SHA2_256, SHA2_512, SHA3_256, SHA3_512, BLAKE2S_256, BLAKE2B_512}
}

// BlockSize returns the block size of the algorithm in bytes.
func (a Algorithm) BlockSize() uint8 {
	att, ok := attributes[a]
	if !ok {
		return 0
	}
	return att[0]
}

// Size returns the output size of the algorithm in bytes.
func (a Algorithm) Size() uint8 {
	att, ok := attributes[a]
	if !ok {
		return 0
	}
	return att[1]
}

// SecurityStrength returns the security strength of the algorithm in bytes.
func (a Algorithm) SecurityStrength() uint8 {
	att, ok := attributes[a]
	if !ok {
		return 0
	}
	return att[2]
}

func (a Algorithm) String() string {
	return a.Name()
}

// Name returns the name of the algorithm.
func (a Algorithm) Name() string {
	name, ok := names[a]
	if !ok {
		return ""
	}
	return name
}

// New returns a new hash.Hash of the algorithm, or nil if unknown.
func (a Algorithm) New() hash.Hash {
	fn, ok := functions[a]
	if !ok {
		return nil
	}
	return fn()
}
