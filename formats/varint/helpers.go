package varint

// PrependLength prepends the varint encoded length of the byte slice to itself.
func PrependLength(data []byte) []byte {
	return append(Pack64(uint64(len(data))), data...)
}

// GetNextBlock extract the integer from the beginning of the given byte slice and returns the block, the total length consumed, and whether there was an error.
func GetNextBlock(data []byte) ([]byte, int, error) {
	l, n, err := Unpack64(data)
	if err != nil {
		return nil, 0, err
	}
	if l > uint64(len(data)-n) {
		return nil, 0, errTooSmall
	}
	totalLength := int(l) + n
	return data[n:totalLength], totalLength, nil
}

// AppendBlocks appends all given blocks to buf, each prefixed with its length.
func AppendBlocks(buf []byte, blocks ...[]byte) []byte {
	for _, block := range blocks {
		buf = append(buf, Pack64(uint64(len(block)))...)
		buf = append(buf, block...)
	}
	return buf
}

// SplitBlocks reads exactly n length prefixed blocks from data. Trailing data is an error.
func SplitBlocks(data []byte, n int) ([][]byte, error) {
	blocks := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		block, consumed, err := GetNextBlock(data)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
		data = data[consumed:]
	}
	if len(data) > 0 {
		return nil, errTrailingData
	}
	return blocks, nil
}
