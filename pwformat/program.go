// Package pwformat parses and expands password format specifications such
// as `3[8q " "]` or `*2-4d<<abc>>`.
package pwformat

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// MaxCount is the maximum repeat count of a specifier.
	MaxCount = 99999
	// MaxOutput is the maximum length of a formatted password.
	MaxOutput = 16000
)

// Kind is the type of a token.
type Kind uint8

// Token kinds.
const (
	Literal Kind = iota
	Placeholder
	RepeatGroup
	PermuteGroup
	CharsetGroup
)

// Token is one element of a compiled format.
type Token struct {
	Kind Kind
	// Text holds the literal text.
	Text []rune
	// Spec holds the placeholder letter.
	Spec rune
	// Min and Max are the repeat count range; both are zero if no count was
	// given.
	Min, Max int
	// Unique forbids repeated symbols within the expansion.
	Unique bool
	// Children holds the content of groups.
	Children []*Token
	// Pos is the position in the format string.
	Pos int
}

// HasCount reports whether a count was given.
func (t *Token) HasCount() bool {
	return t.Max > 0
}

// Program is a compiled format specification.
type Program struct {
	Source string
	Tokens []*Token
	// Problems holds non-fatal problems found while parsing.
	Problems []*SpecifierError
}

// InvalidSpecifier returns the first unknown specifier or 0.
func (p *Program) InvalidSpecifier() rune {
	if len(p.Problems) == 0 {
		return 0
	}
	return p.Problems[0].Char
}

// UsesPassword reports whether the program contains the "P" specifier.
func (p *Program) UsesPassword() bool {
	return usesSpec(p.Tokens, 'P')
}

func usesSpec(tokens []*Token, spec rune) bool {
	for _, t := range tokens {
		if t.Kind == Placeholder && t.Spec == spec {
			return true
		}
		if usesSpec(t.Children, spec) {
			return true
		}
	}
	return false
}

// StripComment removes a leading comment in square brackets.
func StripComment(format string) (string, int) {
	if !strings.HasPrefix(format, "[") {
		return format, 0
	}
	end := strings.IndexByte(format, ']')
	if end < 0 {
		return format, 0
	}
	return format[end+1:], end + 1
}

type parser struct {
	src      string
	pos      int
	offset   int
	problems []*SpecifierError
}

// Parse compiles a format specification. Unbalanced brackets and quotes are
// fatal; unknown specifiers are recorded in Program.Problems and expand to
// nothing.
func Parse(format string) (*Program, error) {
	src, offset := StripComment(format)
	p := &parser{src: src, offset: offset}

	tokens, err := p.parseSequence("")
	if err != nil {
		return nil, err
	}
	return &Program{
		Source:   format,
		Tokens:   tokens,
		Problems: p.problems,
	}, nil
}

func (p *parser) errorf(pos int, msg string) error {
	return &SyntaxError{Pos: pos + p.offset, Msg: msg}
}

// parseSequence parses tokens until the closing delimiter is found. An empty
// delimiter parses until the end of the input.
func (p *parser) parseSequence(closing string) ([]*Token, error) {
	var tokens []*Token
	var literal []rune
	literalPos := 0

	flush := func() {
		if len(literal) > 0 {
			tokens = append(tokens, &Token{Kind: Literal, Text: literal, Pos: literalPos + p.offset})
			literal = nil
		}
	}
	addLiteral := func(pos int, runes ...rune) {
		if len(literal) == 0 {
			literalPos = pos
		}
		literal = append(literal, runes...)
	}

	for p.pos < len(p.src) {
		if closing != "" && strings.HasPrefix(p.src[p.pos:], closing) {
			p.pos += len(closing)
			flush()
			return tokens, nil
		}

		start := p.pos
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		switch {
		case r == '"':
			end := strings.IndexByte(p.src[p.pos+1:], '"')
			if end < 0 {
				return nil, p.errorf(start, "unterminated quote")
			}
			addLiteral(start, []rune(p.src[p.pos+1:p.pos+1+end])...)
			p.pos += end + 2
			continue

		case r == ']' || r == '}' || strings.HasPrefix(p.src[p.pos:], ">>"):
			return nil, p.errorf(start, "unbalanced closing bracket")
		}

		tok, ok, err := p.parseSpecifier()
		if err != nil {
			return nil, err
		}
		if ok {
			flush()
			if tok != nil {
				tokens = append(tokens, tok)
			}
			continue
		}

		// not a specifier: copy verbatim
		p.pos = start + size
		addLiteral(start, r)
	}

	if closing != "" {
		return nil, p.errorf(p.pos, "missing "+strconv.Quote(closing))
	}
	flush()
	return tokens, nil
}

// parseSpecifier parses "[*][N|M-N]x" or a group at the current position.
// It returns ok=false and leaves the position unchanged if there is no
// specifier. A nil token with ok=true is an unknown specifier.
func (p *parser) parseSpecifier() (tok *Token, ok bool, err error) {
	start := p.pos
	unique := false
	if p.peek() == '*' {
		unique = true
		p.pos++
	}
	minCount, maxCount, hasCount := p.parseCount()

	r, size := utf8.DecodeRuneInString(p.src[p.pos:])
	var kind Kind
	var closing string
	switch {
	case r == '[':
		kind, closing = RepeatGroup, "]"
	case r == '{':
		kind, closing = PermuteGroup, "}"
	case strings.HasPrefix(p.src[p.pos:], "<<"):
		kind, closing, size = CharsetGroup, ">>", 2
	case isLetter(r):
		kind = Placeholder
	default:
		p.pos = start
		return nil, false, nil
	}
	if hasCount && (minCount < 1 || maxCount > MaxCount) {
		p.pos = start
		return nil, false, nil
	}

	tok = &Token{
		Kind:   kind,
		Min:    minCount,
		Max:    maxCount,
		Unique: unique,
		Pos:    start + p.offset,
	}
	p.pos += size

	if kind == Placeholder {
		if !isSpecifier(r) {
			p.problems = append(p.problems, &SpecifierError{Char: r, Pos: start + p.offset})
			return nil, true, nil
		}
		tok.Spec = r
		return tok, true, nil
	}

	tok.Children, err = p.parseSequence(closing)
	if err != nil {
		return nil, false, err
	}
	return tok, true, nil
}

func (p *parser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

// parseCount parses "N" or "M-N".
func (p *parser) parseCount() (minCount, maxCount int, ok bool) {
	start := p.pos
	minCount, ok = p.parseNumber()
	if !ok {
		return 0, 0, false
	}
	maxCount = minCount
	if p.peek() == '-' {
		p.pos++
		var hasMax bool
		maxCount, hasMax = p.parseNumber()
		if !hasMax {
			p.pos = start
			return 0, 0, false
		}
	}
	if maxCount < minCount {
		minCount, maxCount = maxCount, minCount
	}
	return minCount, maxCount, true
}

func (p *parser) parseNumber() (int, bool) {
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
		if p.pos-start > 5 {
			p.pos = start
			return 0, false
		}
	}
	if p.pos == start {
		return 0, false
	}
	n, err := strconv.Atoi(p.src[start:p.pos])
	if err != nil {
		p.pos = start
		return 0, false
	}
	return n, true
}

func isLetter(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}
