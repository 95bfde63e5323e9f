// Package charset parses character set specifications such as
// "<AZ><az><09>:2+" into resolved character sets.
package charset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrInvalid is returned for every specification that cannot be resolved
// into a usable character set.
var ErrInvalid = errors.New("invalid character set")

// ParseError describes why a specification is invalid.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	if e.Pos < 0 {
		return fmt.Sprintf("%s: %s", ErrInvalid, e.Msg)
	}
	return fmt.Sprintf("%s: %s at position %d", ErrInvalid, e.Msg, e.Pos)
}

// Unwrap returns ErrInvalid.
func (e *ParseError) Unwrap() error {
	return ErrInvalid
}

func newParseError(pos int, format string, a ...interface{}) *ParseError {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, a...)}
}

// Options modify how placeholders are resolved.
type Options struct {
	// Ambiguous lists the characters removed by ExcludeAmbiguous and by
	// the <easytoread> placeholder. Defaults to DefaultAmbiguous.
	Ambiguous string
	// Symbols replaces the characters of the <symbols> placeholder.
	// Defaults to DefaultSymbols.
	Symbols string
	// ExcludeAmbiguous removes ambiguous characters from all classes.
	ExcludeAmbiguous bool
}

func (o *Options) ambiguous() string {
	if o.Ambiguous == "" {
		return DefaultAmbiguous
	}
	return o.Ambiguous
}

func (o *Options) symbols() string {
	if o.Symbols == "" {
		return DefaultSymbols
	}
	return o.Symbols
}

// Class is one component of a set, with an optional count constraint.
type Class struct {
	Name  string
	Chars []rune
	// Count is the required number of characters from this class. Zero
	// means no constraint.
	Count int
	// AtLeast turns Count into a minimum instead of an exact number.
	AtLeast bool
}

// Constrained reports whether the class carries a count constraint.
func (c *Class) Constrained() bool {
	return c.Count > 0
}

// Exact reports whether the class requires an exact number of characters.
func (c *Class) Exact() bool {
	return c.Count > 0 && !c.AtLeast
}

func (c *Class) constraint() string {
	switch {
	case c.Count == 0:
		return ""
	case c.AtLeast:
		return fmt.Sprintf(":%d+", c.Count)
	default:
		return fmt.Sprintf(":%d", c.Count)
	}
}

// Set is a resolved character set.
type Set struct {
	// Spec is the specification without its comment.
	Spec string
	// Chars holds the distinct characters in order of first appearance.
	Chars   []rune
	Classes []Class
	Type    Type
	// Entropy is the entropy per character in bits.
	Entropy float64
}

// UniqueSize returns the number of distinct characters.
func (s *Set) UniqueSize() int {
	return len(s.Chars)
}

// Constrained reports whether any class carries a count constraint.
func (s *Set) Constrained() bool {
	for i := range s.Classes {
		if s.Classes[i].Constrained() {
			return true
		}
	}
	return false
}

// MinLength returns the sum of all required counts.
func (s *Set) MinLength() int {
	var n int
	for i := range s.Classes {
		n += s.Classes[i].Count
	}
	return n
}

// CheckLength verifies that a password of the given length can satisfy all
// class constraints.
func (s *Set) CheckLength(length int) error {
	if required := s.MinLength(); required > length {
		return newParseError(-1, "classes require at least %d characters, but the length is %d", required, length)
	}
	return nil
}

// Filler returns the characters that may be used beyond the required
// counts: all characters that are not part of a class with an exact count.
func (s *Set) Filler() []rune {
	if !s.hasExact() {
		return s.Chars
	}

	excluded := make(map[rune]struct{})
	for i := range s.Classes {
		if s.Classes[i].Exact() {
			for _, r := range s.Classes[i].Chars {
				excluded[r] = struct{}{}
			}
		}
	}
	filler := make([]rune, 0, len(s.Chars))
	for _, r := range s.Chars {
		if _, ok := excluded[r]; !ok {
			filler = append(filler, r)
		}
	}
	return filler
}

func (s *Set) hasExact() bool {
	for i := range s.Classes {
		if s.Classes[i].Exact() {
			return true
		}
	}
	return false
}

// EntropyFor returns the entropy of a password of the given length drawn
// from the set. Classes with an exact count contribute only their own size.
func (s *Set) EntropyFor(length int) float64 {
	if !s.hasExact() {
		return s.Entropy * float64(length)
	}

	var bits float64
	remaining := length
	for i := range s.Classes {
		if c := &s.Classes[i]; c.Exact() {
			bits += float64(c.Count) * math.Log2(float64(len(c.Chars)))
			remaining -= c.Count
		}
	}
	if filler := s.Filler(); remaining > 0 && len(filler) > 1 {
		bits += float64(remaining) * math.Log2(float64(len(filler)))
	}
	return bits
}

// Contains reports whether r is part of the set.
func (s *Set) Contains(r rune) bool {
	for _, c := range s.Chars {
		if c == r {
			return true
		}
	}
	return false
}

// String returns a canonical specification of the set.
func (s *Set) String() string {
	var b strings.Builder
	for i := range s.Classes {
		c := &s.Classes[i]
		if strings.HasPrefix(c.Name, "<") {
			b.WriteString(c.Name)
		} else {
			b.WriteString(string(c.Chars))
		}
		b.WriteString(c.constraint())
	}
	return b.String()
}

// StripComment removes a leading comment in square brackets.
func StripComment(spec string) string {
	if !strings.HasPrefix(spec, "[") {
		return spec
	}
	end := strings.IndexByte(spec, ']')
	if end < 0 {
		return spec
	}
	return strings.TrimLeft(spec[end+1:], " \t")
}

// Parse parses a character set specification. It either returns a complete
// set or an error wrapping ErrInvalid; never a partial set.
func Parse(spec string, opts Options) (*Set, error) {
	spec = StripComment(spec)
	if spec == "" {
		return nil, newParseError(-1, "empty specification")
	}

	var (
		classes []Class
		setType = Standard
		literal strings.Builder
		pos     int
	)
	seen := make(map[string]int)

	addClass := func(name string, chars string, t Type, at int) error {
		count, atLeast, n, err := parseConstraint(spec[pos:], pos)
		if err != nil {
			return err
		}
		pos += n

		if t.IsPhonetic() {
			if setType.IsPhonetic() || len(classes) > 0 {
				return newParseError(at, "phonetic placeholders cannot be combined")
			}
			if count > 0 {
				return newParseError(at, "phonetic placeholders do not take a count")
			}
			setType = t
		} else if setType.IsPhonetic() {
			return newParseError(at, "phonetic placeholders cannot be combined")
		}

		if opts.ExcludeAmbiguous {
			chars = removeChars(chars, opts.ambiguous())
		}
		class := Class{
			Name:    name,
			Chars:   dedupe([]rune(chars)),
			Count:   count,
			AtLeast: atLeast,
		}
		if len(class.Chars) == 0 {
			return newParseError(at, "class %s is empty", name)
		}

		if idx, ok := seen[name]; ok {
			prev := &classes[idx]
			if prev.Count != class.Count || prev.AtLeast != class.AtLeast {
				return newParseError(at, "contradictory constraints for %s", name)
			}
			return nil
		}
		seen[name] = len(classes)
		classes = append(classes, class)
		return nil
	}

	flushLiteral := func(at int) error {
		if literal.Len() == 0 {
			return nil
		}
		chars := literal.String()
		literal.Reset()
		return addClass(chars, chars, Standard, at)
	}

	literalStart := 0
	for pos < len(spec) {
		r, size := utf8.DecodeRuneInString(spec[pos:])
		switch {
		case r == utf8.RuneError && size == 1:
			return nil, newParseError(pos, "invalid UTF-8")

		case r == '<':
			p, n, ok := lookupPlaceholder(spec[pos+1:])
			if !ok {
				if name, isName := placeholderName(spec[pos+1:]); isName {
					return nil, newParseError(pos, "unknown placeholder <%s>", name)
				}
				// a lone bracket is a literal character
				if literal.Len() == 0 {
					literalStart = pos
				}
				literal.WriteRune(r)
				pos += size
				continue
			}
			if err := flushLiteral(literalStart); err != nil {
				return nil, err
			}
			at := pos
			pos += 1 + n
			if err := addClass("<"+p.name+">", p.chars(&opts), p.setType, at); err != nil {
				return nil, err
			}

		case r == ':' && literal.Len() > 0 && startsConstraint(spec[pos:]):
			chars := literal.String()
			literal.Reset()
			if err := addClass(chars, chars, Standard, literalStart); err != nil {
				return nil, err
			}

		default:
			if literal.Len() == 0 {
				literalStart = pos
			}
			literal.WriteRune(r)
			pos += size
		}
	}
	if err := flushLiteral(literalStart); err != nil {
		return nil, err
	}

	set := &Set{
		Spec:    spec,
		Classes: classes,
		Type:    setType,
	}
	for i := range classes {
		set.Chars = append(set.Chars, classes[i].Chars...)
	}
	set.Chars = dedupe(set.Chars)

	if setType.IsPhonetic() {
		// entropy is given by the trigram table
		return set, nil
	}
	if len(set.Chars) < 2 {
		return nil, newParseError(-1, "at least 2 distinct characters are required")
	}
	set.Entropy = math.Log2(float64(len(set.Chars)))
	return set, nil
}

// placeholderName returns the name if s starts with a name made of letters
// and digits followed by a closing bracket.
func placeholderName(s string) (string, bool) {
	end := strings.IndexByte(s, '>')
	if end <= 0 {
		return "", false
	}
	for _, r := range s[:end] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return "", false
		}
	}
	return s[:end], true
}

func startsConstraint(s string) bool {
	return len(s) > 1 && s[0] == ':' && s[1] >= '0' && s[1] <= '9'
}

// parseConstraint parses an optional ":N" or ":N+" suffix at the start of s.
func parseConstraint(s string, at int) (count int, atLeast bool, n int, err error) {
	if !startsConstraint(s) {
		return 0, false, 0, nil
	}
	end := 1
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	count, err = strconv.Atoi(s[1:end])
	if err != nil || count < 1 || count > maxCount {
		return 0, false, 0, newParseError(at, "invalid count %q", s[1:end])
	}
	if end < len(s) && s[end] == '+' {
		atLeast = true
		end++
	}
	return count, atLeast, end, nil
}

const maxCount = 10000

func dedupe(runes []rune) []rune {
	seen := make(map[rune]struct{}, len(runes))
	out := runes[:0:0]
	for _, r := range runes {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

func removeChars(s, remove string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(remove, r) {
			return -1
		}
		return r
	}, s)
}

// PermEntropy returns the entropy of an ordered selection of k distinct
// elements out of n: log2(n!/(n-k)!).
func PermEntropy(n, k int) float64 {
	if k > n {
		k = n
	}
	var bits float64
	for i := n - k + 1; i <= n; i++ {
		bits += math.Log2(float64(i))
	}
	return bits
}
