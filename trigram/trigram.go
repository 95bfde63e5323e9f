// Package trigram holds letter trigram frequencies for phonetic password
// generation.
package trigram

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/safing/pwgen/rng"
	"github.com/safing/pwgen/utils/renameio"
	"github.com/safing/pwgen/wordlist"
)

const (
	letters = 26
	// Entries is the number of counts in a table.
	Entries = letters * letters * letters
	// FileSize is the size of a binary table file.
	FileSize = Entries * 4
)

// Errors.
var (
	ErrCannotOpen   = errors.New("cannot open trigram file")
	ErrInvalidFile  = errors.New("invalid trigram file")
	ErrEmptyTable   = errors.New("trigram table is empty")
	ErrInvalidCount = errors.New("trigram count overflow")
)

// Table maps a two letter context to the frequency of the next letter.
type Table struct {
	counts [letters][letters][letters]uint32
	// context sums and the total, derived from counts
	sums   [letters][letters]uint64
	total  uint64
	source string
}

var (
	defaultTable     *Table
	defaultTableOnce sync.Once
)

// Default returns the table derived from the default word list.
func Default() *Table {
	defaultTableOnce.Do(func() {
		t, err := FromWords(wordlist.Default().Words)
		if err != nil {
			panic(fmt.Sprintf("trigram: invalid default table: %s", err))
		}
		t.source = wordlist.DefaultSource
		defaultTable = t
	})
	return defaultTable
}

// FromWords counts the trigrams of the given words. Only the letters a-z
// are considered, case-insensitively; other characters split words.
func FromWords(words []string) (*Table, error) {
	t := &Table{}
	for _, word := range words {
		var run []int
		for _, r := range strings.ToLower(word) {
			if r < 'a' || r > 'z' {
				t.countRun(run)
				run = run[:0]
				continue
			}
			run = append(run, int(r-'a'))
		}
		t.countRun(run)
	}
	if err := t.finalize(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) countRun(run []int) {
	for i := 2; i < len(run); i++ {
		if t.counts[run[i-2]][run[i-1]][run[i]] < math.MaxUint32 {
			t.counts[run[i-2]][run[i-1]][run[i]]++
		}
	}
}

func (t *Table) finalize() error {
	t.total = 0
	for a := 0; a < letters; a++ {
		for b := 0; b < letters; b++ {
			var sum uint64
			for c := 0; c < letters; c++ {
				sum += uint64(t.counts[a][b][c])
			}
			t.sums[a][b] = sum
			t.total += sum
		}
	}
	if t.total == 0 {
		return ErrEmptyTable
	}
	return nil
}

// Load reads a binary table: 17576 little-endian 32 bit counts, ordered by
// first, second and third letter.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotOpen, err)
	}
	defer func() {
		_ = f.Close()
	}()

	t, err := Read(f)
	if err != nil {
		return nil, err
	}
	t.source = path
	return t, nil
}

// Read reads a binary table from r.
func Read(r io.Reader) (*Table, error) {
	buf := make([]byte, FileSize+1)
	n, err := io.ReadFull(r, buf)
	switch {
	case n > FileSize:
		return nil, fmt.Errorf("%w: file too large", ErrInvalidFile)
	case n == FileSize:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidFile, FileSize, n)
	default:
		return nil, fmt.Errorf("%w: %w", ErrCannotOpen, err)
	}

	t := &Table{}
	for i := 0; i < Entries; i++ {
		t.counts[i/(letters*letters)][i/letters%letters][i%letters] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	if err := t.finalize(); err != nil {
		return nil, err
	}
	return t, nil
}

// Bytes returns the binary representation of the table.
func (t *Table) Bytes() []byte {
	buf := make([]byte, 0, FileSize)
	for a := 0; a < letters; a++ {
		for b := 0; b < letters; b++ {
			for c := 0; c < letters; c++ {
				buf = binary.LittleEndian.AppendUint32(buf, t.counts[a][b][c])
			}
		}
	}
	return buf
}

// Save writes the binary table to a file.
func (t *Table) Save(path string) error {
	return renameio.WriteFile(path, t.Bytes(), 0o0644)
}

// Create builds a table from a word list file and writes it to out. It
// returns the number of trigrams counted.
func Create(wordListPath, out string) (uint64, error) {
	list, err := wordlist.Load(wordListPath, wordlist.MaxWordLen, true)
	if err != nil {
		return 0, err
	}
	t, err := FromWords(list.Words)
	if err != nil {
		return 0, err
	}
	if err := t.Save(out); err != nil {
		return 0, err
	}
	return t.total, nil
}

// Source returns where the table was loaded from.
func (t *Table) Source() string {
	return t.source
}

// Total returns the number of counted trigrams.
func (t *Table) Total() uint64 {
	return t.total
}

// Count returns the count of the trigram abc. All letters must be in a-z.
func (t *Table) Count(a, b, c rune) uint32 {
	return t.counts[a-'a'][b-'a'][c-'a']
}

// Entropy returns the average entropy per letter in bits: the conditional
// entropy of the next letter given the previous two, weighted by the
// frequency of each context.
func (t *Table) Entropy() float64 {
	var entropy float64
	for a := 0; a < letters; a++ {
		for b := 0; b < letters; b++ {
			sum := t.sums[a][b]
			if sum == 0 {
				continue
			}
			var h float64
			for c := 0; c < letters; c++ {
				if n := t.counts[a][b][c]; n > 0 {
					p := float64(n) / float64(sum)
					h -= p * math.Log2(p)
				}
			}
			entropy += float64(sum) / float64(t.total) * h
		}
	}
	return entropy
}

// Generate walks the table and returns length lower-case letters. The first
// two letters are drawn by the frequency of their context, every following
// letter by its frequency after the previous two. A context without
// successors restarts the walk with a new context.
func (t *Table) Generate(r io.Reader, length int) ([]rune, error) {
	out := make([]rune, 0, length)
	for len(out) < length {
		a, b, err := t.randomContext(r)
		if err != nil {
			return nil, err
		}
		out = append(out, rune('a'+a))
		if len(out) < length {
			out = append(out, rune('a'+b))
		}
		for len(out) < length && t.sums[a][b] > 0 {
			v, err := rng.Uint64n(r, t.sums[a][b])
			if err != nil {
				return nil, err
			}
			c := pick(t.counts[a][b][:], v)
			out = append(out, rune('a'+c))
			a, b = b, c
		}
	}
	return out, nil
}

func (t *Table) randomContext(r io.Reader) (int, int, error) {
	v, err := rng.Uint64n(r, t.total)
	if err != nil {
		return 0, 0, err
	}
	for a := 0; a < letters; a++ {
		for b := 0; b < letters; b++ {
			if v < t.sums[a][b] {
				return a, b, nil
			}
			v -= t.sums[a][b]
		}
	}
	// not reached, the sums add up to the total
	return 0, 0, ErrInvalidCount
}

func pick(counts []uint32, v uint64) int {
	for c, n := range counts {
		if v < uint64(n) {
			return c
		}
		v -= uint64(n)
	}
	return len(counts) - 1
}
