package varint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackUnpack(t *testing.T) {
	t.Parallel()

	for _, n := range []uint64{0, 1, 127, 128, 255, 300, 65535, 1 << 40} {
		packed := Pack64(n)
		unpacked, r, err := Unpack64(packed)
		require.NoError(t, err)
		assert.Equal(t, n, unpacked)
		assert.Equal(t, len(packed), r)
	}

	assert.Equal(t, []byte{0x02}, Pack8(2))
	assert.Equal(t, []byte{0xAC, 0x02}, Pack16(300))

	n8, r, err := Unpack8([]byte{0xFF, 0x01})
	require.NoError(t, err)
	assert.Equal(t, uint8(255), n8)
	assert.Equal(t, 2, r)

	_, _, err = Unpack8(Pack16(300))
	assert.Error(t, err)
	_, _, err = Unpack64(nil)
	assert.Error(t, err)
	_, _, err = Unpack64([]byte{0x80})
	assert.Error(t, err)
}

func TestBlocks(t *testing.T) {
	t.Parallel()

	buf := AppendBlocks([]byte{0x02}, []byte("salt"), nil, []byte("ciphertext"))
	blocks, err := SplitBlocks(buf[1:], 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("salt"), blocks[0])
	assert.Empty(t, blocks[1])
	assert.Equal(t, []byte("ciphertext"), blocks[2])

	_, err = SplitBlocks(buf[1:], 2)
	assert.Error(t, err)
	_, err = SplitBlocks(buf[1:len(buf)-1], 3)
	assert.Error(t, err)

	block, consumed, err := GetNextBlock(PrependLength([]byte("abc")))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), block)
	assert.Equal(t, 4, consumed)
}
