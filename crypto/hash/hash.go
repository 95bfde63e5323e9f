// Copyright Safing ICS Technologies GmbH. Use of this source code is governed by the AGPL license that can be found in the LICENSE file.

package hash

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/safing/pwgen/formats/varint"
)

// Hash is a digest tagged with its algorithm.
type Hash struct {
	Algorithm Algorithm
	Sum       []byte
}

// ErrInvalidHash is returned when a serialized hash cannot be parsed.
var ErrInvalidHash = errors.New("hash: invalid hash")

// FromBytes parses a hash created by Bytes.
func FromBytes(data []byte) (*Hash, error) {
	alg, read, err := varint.Unpack8(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHash, err)
	}
	h := &Hash{
		Algorithm: Algorithm(alg),
		Sum:       data[read:],
	}
	if h.Algorithm.Size() == 0 || len(h.Sum) != int(h.Algorithm.Size()) {
		return nil, ErrInvalidHash
	}
	return h, nil
}

// Bytes returns the algorithm tag followed by the digest.
func (h *Hash) Bytes() []byte {
	return append(varint.Pack8(uint8(h.Algorithm)), h.Sum...)
}

// Hex returns the hex representation of Bytes.
func (h *Hash) Hex() string {
	return hex.EncodeToString(h.Bytes())
}

// Equal returns whether both hashes are equal.
func (h *Hash) Equal(other *Hash) bool {
	if other == nil {
		return false
	}
	return h.Algorithm == other.Algorithm && bytes.Equal(h.Sum, other.Sum)
}

// Matches returns whether the hash matches the given data.
func (h *Hash) Matches(data []byte) bool {
	return h.Equal(Sum(data, h.Algorithm))
}

// Sum hashes data with the given algorithm.
func Sum(data []byte, alg Algorithm) *Hash {
	hasher := alg.New()
	if hasher == nil {
		return &Hash{Algorithm: alg}
	}
	_, _ = hasher.Write(data)
	return &Hash{
		Algorithm: alg,
		Sum:       hasher.Sum(nil),
	}
}

// SumString hashes a string with the given algorithm.
func SumString(data string, alg Algorithm) *Hash {
	return Sum([]byte(data), alg)
}

// SumReader hashes everything read from the reader.
func SumReader(reader io.Reader, alg Algorithm) (*Hash, error) {
	hasher := alg.New()
	if hasher == nil {
		return nil, fmt.Errorf("hash: unknown algorithm %d", alg)
	}
	if _, err := io.Copy(hasher, reader); err != nil {
		return nil, err
	}
	return &Hash{
		Algorithm: alg,
		Sum:       hasher.Sum(nil),
	}, nil
}
