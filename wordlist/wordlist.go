// Package wordlist loads the word lists used for passphrases.
package wordlist

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/safing/pwgen/log"
)

const (
	// MaxWordLen is the upper bound of the maximum word length.
	MaxWordLen = 30
	// MaxSize is the maximum number of words loaded from a list.
	MaxSize = 1000000

	// DefaultSource names the embedded list.
	DefaultSource = "<default>"
)

// Errors.
var (
	ErrCannotOpen      = errors.New("cannot open word list")
	ErrNotEnoughWords  = errors.New("word list must contain at least 2 words")
	ErrInvalidWordLen  = errors.New("invalid maximum word length")
	errListNotComplete = errors.New("word list exceeds the maximum size")
)

//go:embed default.txt
var defaultWords string

// List is an ordered, de-duplicated list of words.
type List struct {
	Words      []string
	Source     string
	MaxWordLen int
	Lowercase  bool
}

var (
	defaultList     *List
	defaultListOnce sync.Once
)

// Default returns the embedded default list.
func Default() *List {
	defaultListOnce.Do(func() {
		list, err := Parse(strings.NewReader(defaultWords), MaxWordLen, false)
		if err != nil {
			panic(fmt.Sprintf("wordlist: invalid embedded list: %s", err))
		}
		list.Source = DefaultSource
		defaultList = list
	})
	return defaultList
}

// Load reads a list from a file with one word per line. Words longer than
// maxWordLen characters are skipped. If lowercase is set, words are
// converted to lower case before de-duplication.
func Load(path string, maxWordLen int, lowercase bool) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotOpen, err)
	}
	defer func() {
		_ = f.Close()
	}()

	list, err := Parse(f, maxWordLen, lowercase)
	if err != nil {
		return nil, err
	}
	list.Source = path
	return list, nil
}

// Parse reads a list with one word per line.
func Parse(r io.Reader, maxWordLen int, lowercase bool) (*List, error) {
	if maxWordLen < 1 || maxWordLen > MaxWordLen {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWordLen, maxWordLen)
	}

	lower := cases.Lower(language.Und)
	seen := make(map[string]struct{})
	list := &List{
		MaxWordLen: maxWordLen,
		Lowercase:  lowercase,
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		word = strings.TrimPrefix(word, "\ufeff")
		if word == "" || strings.IndexFunc(word, unicode.IsSpace) >= 0 {
			continue
		}
		word = norm.NFC.String(word)
		if lowercase {
			word = lower.String(word)
		}
		if utf8.RuneCountInString(word) > maxWordLen {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		if len(list.Words) == MaxSize {
			log.Warningf("wordlist: %s, ignoring remaining words", errListNotComplete)
			break
		}
		seen[word] = struct{}{}
		list.Words = append(list.Words, word)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotOpen, err)
	}
	if len(list.Words) < 2 {
		return nil, ErrNotEnoughWords
	}
	return list, nil
}

// Size returns the number of words.
func (l *List) Size() int {
	return len(l.Words)
}

// Entropy returns the entropy of a single word in bits.
func (l *List) Entropy() float64 {
	return math.Log2(float64(len(l.Words)))
}

// Word returns the word at the given index.
func (l *List) Word(i int) string {
	return l.Words[i]
}
