package rng

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

var errZeroRange = errors.New("rng: empty range")

// Uint64n returns a uniformly distributed number in [0, n) read from r.
func Uint64n(r io.Reader, n uint64) (uint64, error) {
	if n == 0 {
		return 0, errZeroRange
	}
	if n == 1 {
		return 0, nil
	}

	var buf [8]byte
	// power of two: mask
	if n&(n-1) == 0 {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint64(buf[:]) & (n - 1), nil
	}

	secureLimit := math.MaxUint64 - (math.MaxUint64 % n)
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		candidate := binary.LittleEndian.Uint64(buf[:])
		if candidate < secureLimit {
			return candidate % n, nil
		}
	}
}

// Intn returns a uniformly distributed number in [0, n) read from r.
func Intn(r io.Reader, n int) (int, error) {
	if n <= 0 {
		return 0, errZeroRange
	}
	v, err := Uint64n(r, uint64(n))
	return int(v), err
}

// Uint64n returns a uniformly distributed number in [0, n).
func (p *Pool) Uint64n(n uint64) (uint64, error) {
	return Uint64n(p, n)
}

// Intn returns a uniformly distributed number in [0, n).
func (p *Pool) Intn(n int) (int, error) {
	return Intn(p, n)
}
