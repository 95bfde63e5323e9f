package passwgen

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Flags modify password generation.
type Flags uint32

// Generation flags.
const (
	// ExcludeRepeats forbids the same character twice in a row.
	ExcludeRepeats Flags = 1 << iota
	// EachCharOnce forbids any character more than once.
	EachCharOnce
	// IncludeSubset includes at least one character of every class.
	IncludeSubset
	// FirstCharNotLowercase capitalizes the first character.
	FirstCharNotLowercase
	// CombineWordsChars appends the character password to the passphrase.
	CombineWordsChars
	// CapitalizeWords capitalizes the first letter of every word.
	CapitalizeWords
	// DontSeparateWords joins words without spaces.
	DontSeparateWords
	// DontSeparateWordsChars joins words and characters without a space.
	DontSeparateWordsChars
	// ReverseOrder puts the characters before the words.
	ReverseOrder
	// EachWordOnce forbids any word more than once.
	EachWordOnce
	// ExcludeDuplicates forbids the same password twice in a batch.
	ExcludeDuplicates
	// CheckEachPassword calculates entropy and commonness for every
	// password instead of the first one only.
	CheckEachPassword
)

// Has reports whether all flags in f2 are set.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// Limits.
const (
	MaxChars     = 10000
	MaxWords     = 100
	MaxPasswords = 1000000000000
	// MaxScriptChars bounds the length of scripted passwords.
	MaxScriptChars = 16000
	// DefaultMaxListBytes is the memory budget of a password list.
	DefaultMaxListBytes = 500 * 1024 * 1024
)

// Request describes one generation run. It is copied when the run starts.
type Request struct {
	// Count is the number of passwords to generate.
	Count uint64
	// Chars is the length of the character password; 0 disables it.
	Chars int
	// Words is the number of passphrase words; 0 disables the passphrase.
	Words int
	// Format is a format specification; empty disables formatting.
	Format string
	// Length constrains the length of the passphrase, see ParseLengthSpec.
	Length string
	Flags  Flags
}

// Errors.
var (
	ErrNothingToGenerate   = errors.New("no password source is active")
	ErrInvalidLengthSpec   = errors.New("invalid length range")
	ErrLengthUnsatisfiable = errors.New("passphrase length constraint could not be satisfied")
	ErrTooManyPasswords    = errors.New("too many passwords requested")
	ErrInvalidLength       = errors.New("invalid password length")
	ErrNoCharset           = errors.New("no valid character set")
)

// LengthSpec bounds the length of a passphrase.
type LengthSpec struct {
	Min, Max int
	// AllChars counts all characters instead of the word characters only.
	AllChars bool
}

// Contains reports whether n satisfies the spec.
func (s *LengthSpec) Contains(n int) bool {
	return n >= s.Min && n <= s.Max
}

// ParseLengthSpec parses "N", "M-N", ">N", ">=N", "<N" or "<=N". An asterisk
// anywhere counts all characters. An empty spec returns nil.
func ParseLengthSpec(s string) (*LengthSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	spec := &LengthSpec{Min: -1, Max: -1}
	if i := strings.IndexByte(s, '*'); i >= 0 {
		spec.AllChars = true
		s = s[:i] + s[i+1:]
	}

	atoi := func(v string, fallback int) int {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fallback
		}
		return n
	}

	switch {
	case strings.HasPrefix(s, ">="):
		spec.Min = atoi(s[2:], -1)
		spec.Max = math.MaxInt
	case strings.HasPrefix(s, ">"):
		spec.Min = atoi(s[1:], -2) + 1
		spec.Max = math.MaxInt
	case strings.HasPrefix(s, "<="):
		spec.Max = atoi(s[2:], -1)
		spec.Min = 0
	case strings.HasPrefix(s, "<"):
		spec.Max = atoi(s[1:], -1) - 1
		spec.Min = 0
	case strings.Index(s, "-") >= 1:
		sep := strings.Index(s, "-")
		spec.Min = atoi(s[:sep], -1)
		spec.Max = atoi(s[sep+1:], -1)
	default:
		spec.Min = atoi(s, -1)
		spec.Max = spec.Min
	}

	if spec.Max < spec.Min {
		spec.Min, spec.Max = spec.Max, spec.Min
	}
	if spec.Min < 0 || spec.Max < 1 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLengthSpec, s)
	}
	return spec, nil
}
