package pwformat

import (
	"errors"
	"fmt"
)

// Errors.
var (
	// ErrSyntax is returned for unbalanced brackets or quotes.
	ErrSyntax = errors.New("format syntax error")
	// ErrOutputTooLong is reported when the output was truncated.
	ErrOutputTooLong = errors.New("formatted password too long")
	// ErrNoCustomSet is reported when "x" is used without a character set.
	ErrNoCustomSet = errors.New("custom character set not available")
	// ErrNoWordList is reported when "w" or "W" is used without a word list.
	ErrNoWordList = errors.New("word list not available")
	// ErrCountClamped is reported when a unique selection was larger than
	// its set.
	ErrCountClamped = errors.New("count exceeds number of unique elements")
)

// SyntaxError is a fatal parse error.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s at position %d", ErrSyntax, e.Msg, e.Pos)
}

// Unwrap returns ErrSyntax.
func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

// SpecifierError reports an unknown format specifier. It is not fatal.
type SpecifierError struct {
	Char rune
	Pos  int
}

func (e *SpecifierError) Error() string {
	return fmt.Sprintf("invalid format specifier %q at position %d", e.Char, e.Pos)
}
