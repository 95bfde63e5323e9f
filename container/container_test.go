package container

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testData         = []byte("The quick brown fox jumps over the lazy dog")
	testDataSplitted = [][]byte{
		[]byte("T"),
		[]byte("he"),
		[]byte(" qu"),
		[]byte("ick "),
		[]byte("brown"),
		[]byte(" fox j"),
		[]byte("umps ov"),
		[]byte("er the l"),
		[]byte("azy dog"),
	}
)

func TestContainerDataHandling(t *testing.T) {
	t.Parallel()

	c := New(testDataSplitted...)
	assert.Equal(t, len(testData), c.Length())

	first, err := c.Get(10)
	require.NoError(t, err)
	assert.Equal(t, testData[:10], first)

	_, err = c.Get(1000)
	assert.ErrorIs(t, err, ErrNotEnoughData)

	rest := c.GetAll()
	assert.Equal(t, testData[10:], rest)
	assert.Equal(t, 0, c.Length())

	c2 := New()
	for _, part := range testDataSplitted {
		c2.Append(bytes.Clone(part))
	}
	assert.Equal(t, testData, c2.CompileData())
	c2.Wipe()
	assert.Equal(t, 0, c2.Length())
}

func TestContainerBlockHandling(t *testing.T) {
	t.Parallel()

	c := New()
	c.AppendNumber(2)
	c.AppendAsBlock([]byte("salt"))
	c.AppendAsBlock(nil)
	c.AppendAsBlock(testData)
	c.Append([]byte("tail"))

	c2 := New(c.CompileData())
	version, err := c2.GetNextN8()
	require.NoError(t, err)
	assert.Equal(t, uint8(2), version)

	block, err := c2.GetNextBlock()
	require.NoError(t, err)
	assert.Equal(t, []byte("salt"), block)

	block, err = c2.GetNextBlock()
	require.NoError(t, err)
	assert.Empty(t, block)

	block, err = c2.GetNextBlock()
	require.NoError(t, err)
	assert.Equal(t, testData, block)
	assert.Equal(t, []byte("tail"), c2.GetAll())

	_, err = New([]byte{0x05, 'a'}).GetNextBlock()
	assert.ErrorIs(t, err, ErrNotEnoughData)
	_, err = New().GetNextN64()
	assert.Error(t, err)
}
