package rng

import (
	"encoding/binary"
	"math/bits"
)

const (
	chachaKeySize   = 32
	chachaBlockSize = 64
)

// chachaBlock computes the ChaCha block with the given number of rounds, a
// 64 bit block counter and a zero nonce.
func chachaBlock(out *[chachaBlockSize]byte, key *[chachaKeySize]byte, counter uint64, rounds int) {
	var in [16]uint32
	in[0], in[1], in[2], in[3] = 0x61707865, 0x3320646e, 0x79622d32, 0x6b206574
	for i := 0; i < 8; i++ {
		in[4+i] = binary.LittleEndian.Uint32(key[4*i:])
	}
	in[12] = uint32(counter)
	in[13] = uint32(counter >> 32)

	x := in
	for _rangeIter := 0; _rangeIter < rounds/2; _rangeIter++ {
		quarterRound(&x, 0, 4, 8, 12)
		quarterRound(&x, 1, 5, 9, 13)
		quarterRound(&x, 2, 6, 10, 14)
		quarterRound(&x, 3, 7, 11, 15)
		quarterRound(&x, 0, 5, 10, 15)
		quarterRound(&x, 1, 6, 11, 12)
		quarterRound(&x, 2, 7, 8, 13)
		quarterRound(&x, 3, 4, 9, 14)
	}
	for i := range x {
		binary.LittleEndian.PutUint32(out[4*i:], x[i]+in[i])
	}
	clear(x[:])
	clear(in[4:12])
}

func quarterRound(x *[16]uint32, a, b, c, d int) {
	x[a] += x[b]
	x[d] = bits.RotateLeft32(x[d]^x[a], 16)
	x[c] += x[d]
	x[b] = bits.RotateLeft32(x[b]^x[c], 12)
	x[a] += x[b]
	x[d] = bits.RotateLeft32(x[d]^x[a], 8)
	x[c] += x[d]
	x[b] = bits.RotateLeft32(x[b]^x[c], 7)
}

// chacha8Stream is the reduced round keystream. Like chacha20Stream, it
// erases its key after every request.
type chacha8Stream struct {
	key   [chachaKeySize]byte
	keyed bool
}

func (s *chacha8Stream) rekey(key []byte) error {
	if len(key) < chachaKeySize {
		return errShortKey
	}
	copy(s.key[:], key)
	s.keyed = true
	return nil
}

func (s *chacha8Stream) fill(p []byte) error {
	if !s.keyed {
		return errNotKeyed
	}

	var next, block [chachaBlockSize]byte
	defer clear(next[:])
	defer clear(block[:])

	// The first block replaces the key once the request is served.
	chachaBlock(&next, &s.key, 0, 8)
	for counter := uint64(1); len(p) > 0; counter++ {
		chachaBlock(&block, &s.key, counter, 8)
		n := copy(p, block[:])
		p = p[n:]
	}
	copy(s.key[:], next[:chachaKeySize])
	return nil
}
