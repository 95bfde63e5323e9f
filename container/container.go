package container

import (
	"errors"

	"github.com/safing/pwgen/formats/varint"
)

// ErrNotEnoughData is returned when reading past the end of a container.
var ErrNotEnoughData = errors.New("container: not enough data to return")

// Container is a []byte slice on steroids, allowing for quick data appending and fetching of varint framed blocks.
type Container struct {
	compartments [][]byte
	offset       int
}

// New creates a new container with optional initial []byte slices. Data will NOT be copied.
func New(data ...[]byte) *Container {
	return &Container{
		compartments: data,
	}
}

// Append appends the given data. Data will NOT be copied.
func (c *Container) Append(data []byte) {
	c.compartments = append(c.compartments, data)
}

// AppendNumber appends a number (varint encoded).
func (c *Container) AppendNumber(n uint64) {
	c.compartments = append(c.compartments, varint.Pack64(n))
}

// AppendAsBlock appends the length of the data and the data itself. Data will NOT be copied.
func (c *Container) AppendAsBlock(data []byte) {
	c.AppendNumber(uint64(len(data)))
	c.Append(data)
}

// Length returns the full length of all bytes held by the container.
func (c *Container) Length() (length int) {
	for i := c.offset; i < len(c.compartments); i++ {
		length += len(c.compartments[i])
	}
	return
}

// CompileData concatenates all bytes held by the container and returns it as one single []byte slice. Data will NOT be copied and is NOT consumed.
func (c *Container) CompileData() []byte {
	if len(c.compartments)-c.offset != 1 {
		newBuf := make([]byte, 0, c.Length())
		for i := c.offset; i < len(c.compartments); i++ {
			newBuf = append(newBuf, c.compartments[i]...)
		}
		c.compartments = [][]byte{newBuf}
		c.offset = 0
	}
	return c.compartments[c.offset]
}

// Get returns the given amount of bytes. Data MAY be copied and IS consumed.
func (c *Container) Get(n int) ([]byte, error) {
	if n < 0 || n > c.Length() {
		return nil, ErrNotEnoughData
	}
	buf := c.gather(n)
	c.skip(n)
	return buf, nil
}

// GetAll returns all remaining bytes. Data MAY be copied and IS consumed.
func (c *Container) GetAll() []byte {
	data := c.CompileData()
	c.compartments = nil
	c.offset = 0
	return data
}

// Wipe overwrites all held data with zeros and empties the container.
func (c *Container) Wipe() {
	for _, compartment := range c.compartments {
		for i := range compartment {
			compartment[i] = 0
		}
	}
	c.compartments = nil
	c.offset = 0
}

func (c *Container) gather(n int) []byte {
	if n == 0 {
		return []byte{}
	}
	// check if first slice holds enough data
	if c.offset < len(c.compartments) && len(c.compartments[c.offset]) >= n {
		return c.compartments[c.offset][:n]
	}
	// start gathering data
	slice := make([]byte, 0, n)
	for i := c.offset; i < len(c.compartments) && len(slice) < n; i++ {
		missing := n - len(slice)
		if len(c.compartments[i]) > missing {
			slice = append(slice, c.compartments[i][:missing]...)
		} else {
			slice = append(slice, c.compartments[i]...)
		}
	}
	return slice
}

func (c *Container) skip(n int) {
	for i := c.offset; i < len(c.compartments) && n > 0; i++ {
		if len(c.compartments[i]) <= n {
			n -= len(c.compartments[i])
			c.compartments[i] = nil
			c.offset = i + 1
		} else {
			c.compartments[i] = c.compartments[i][n:]
			n = 0
		}
	}
}

// GetNextBlock returns the next block of data defined by a varint (note: data MAY be copied and IS consumed).
func (c *Container) GetNextBlock() ([]byte, error) {
	blockSize, err := c.GetNextN64()
	if err != nil {
		return nil, err
	}
	if blockSize > uint64(c.Length()) {
		return nil, ErrNotEnoughData
	}
	return c.Get(int(blockSize))
}

// GetNextN8 parses and returns a varint of type uint8.
func (c *Container) GetNextN8() (uint8, error) {
	buf := c.gather(min(2, c.Length()))
	num, n, err := varint.Unpack8(buf)
	if err != nil {
		return 0, err
	}
	c.skip(n)
	return num, nil
}

// GetNextN64 parses and returns a varint of type uint64.
func (c *Container) GetNextN64() (uint64, error) {
	buf := c.gather(min(10, c.Length()))
	num, n, err := varint.Unpack64(buf)
	if err != nil {
		return 0, err
	}
	c.skip(n)
	return num, nil
}
