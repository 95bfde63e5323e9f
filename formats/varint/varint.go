package varint

import (
	"encoding/binary"
)

// Pack8 packs a uint8 into a VarInt.
func Pack8(n uint8) []byte {
	if n < 128 {
		return []byte{n}
	}
	return []byte{n, 0x01}
}

// Pack16 packs a uint16 into a VarInt.
func Pack16(n uint16) []byte {
	buf := make([]byte, 3)
	w := binary.PutUvarint(buf, uint64(n))
	return buf[:w]
}

// Pack64 packs a uint64 into a VarInt.
func Pack64(n uint64) []byte {
	buf := make([]byte, binary.MaxVarintLen64)
	w := binary.PutUvarint(buf, n)
	return buf[:w]
}

// Unpack8 unpacks a VarInt into a uint8. It returns the extracted int, how many bytes were used and an error.
func Unpack8(blob []byte) (uint8, int, error) {
	n, r, err := unpack(blob, 2)
	if err != nil {
		return 0, 0, err
	}
	if n > 0xFF {
		return 0, 0, &valueExceededError{max: "uint8"}
	}
	return uint8(n), r, nil
}

// Unpack16 unpacks a VarInt into a uint16. It returns the extracted int, how many bytes were used and an error.
func Unpack16(blob []byte) (uint16, int, error) {
	n, r, err := unpack(blob, 3)
	if err != nil {
		return 0, 0, err
	}
	if n > 0xFFFF {
		return 0, 0, &valueExceededError{max: "uint16"}
	}
	return uint16(n), r, nil
}

// Unpack64 unpacks a VarInt into a uint64. It returns the extracted int, how many bytes were used and an error.
func Unpack64(blob []byte) (uint64, int, error) {
	return unpack(blob, binary.MaxVarintLen64)
}

func unpack(blob []byte, maxLen int) (uint64, int, error) {
	if len(blob) == 0 {
		return 0, 0, errEmptyBuf
	}
	if len(blob) > maxLen {
		blob = blob[:maxLen]
	}
	n, r := binary.Uvarint(blob)
	switch {
	case r == 0:
		return 0, 0, errTooSmall
	case r < 0:
		return 0, 0, &valueExceededError{max: "uint64"}
	}
	return n, r, nil
}
