package entropy

import (
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	fileChunkSize = 64 * 1024
	// DataBitsPerByte is credited for every byte of bulk data. File contents
	// are often compressed or structured, so the estimate stays low.
	DataBitsPerByte = 1
)

// AddFile adds the contents of the file in chunks and returns the credited
// bits.
func (m *Manager) AddFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("entropy: failed to open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	return m.AddReader(f)
}

// AddReader adds all data read from r in chunks and returns the credited bits.
func (m *Manager) AddReader(r io.Reader) (int, error) {
	buf := make([]byte, fileChunkSize)
	defer clear(buf)

	var total int
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			total += m.AddData(buf[:n], DataBitsPerByte, m.Cap(Data))
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return total, nil
		default:
			return total, fmt.Errorf("entropy: failed to read data: %w", err)
		}
	}
}
