package pwformat

import (
	"io"
	"math"
	"unicode"

	"github.com/hashicorp/go-multierror"

	"github.com/safing/pwgen/charset"
	"github.com/safing/pwgen/rng"
	"github.com/safing/pwgen/trigram"
	"github.com/safing/pwgen/wordlist"
)

// Usage describes how the "P" specifier used the base password.
type Usage uint8

// Password usage states.
const (
	PasswordNotUsed Usage = iota
	PasswordUsed
	PasswordEmpty
	PasswordTooLong
)

func (u Usage) String() string {
	switch u {
	case PasswordNotUsed:
		return `"P" is not specified`
	case PasswordUsed:
		return "password used"
	case PasswordEmpty:
		return `"P": password not available`
	case PasswordTooLong:
		return `"P": password too long`
	default:
		return "unknown"
	}
}

// Env holds everything a program may draw from.
type Env struct {
	Rand io.Reader

	// CustomSet backs the "x" specifier.
	CustomSet *charset.Set
	// Symbols backs "s" and "S". Defaults to charset.DefaultSymbols.
	Symbols string
	// Ambiguous is removed by "E". Defaults to charset.DefaultAmbiguous.
	Ambiguous string
	// Words backs "w" and "W".
	Words *wordlist.List
	// Trigrams backs "q", "Q" and "r". Defaults to trigram.Default().
	Trigrams *trigram.Table
	// Password is inserted by "P".
	Password []rune

	// ExcludeRepeats forbids the same symbol twice in a row within the
	// expansion of a single specifier.
	ExcludeRepeats bool
}

// Expansion is the result of expanding a program.
type Expansion struct {
	Text    []rune
	Entropy float64
	Usage   Usage
	// Problems holds all non-fatal problems, including unknown specifiers.
	Problems error
}

type expander struct {
	env      *Env
	pwPos    int
	pwUsed   bool
	limited  bool
	problems *multierror.Error
}

// Expand evaluates the program. Output beyond maxLen, at most MaxOutput, is
// cut off and reported as a problem. Only failures of the random source are
// returned as errors; everything else is best effort.
func (p *Program) Expand(env *Env, maxLen int) (*Expansion, error) {
	if maxLen <= 0 || maxLen > MaxOutput {
		maxLen = MaxOutput
	}

	e := &expander{env: env}
	for _, problem := range p.Problems {
		e.problems = multierror.Append(e.problems, problem)
	}

	text, entropy, err := e.expand(p.Tokens, maxLen)
	if err != nil {
		return nil, err
	}
	if e.limited {
		e.problems = multierror.Append(e.problems, ErrOutputTooLong)
	}

	result := &Expansion{
		Text:     text,
		Entropy:  entropy,
		Problems: e.problems.ErrorOrNil(),
	}
	switch {
	case !e.pwUsed:
		result.Usage = PasswordNotUsed
	case len(env.Password) == 0:
		result.Usage = PasswordEmpty
	case e.pwPos < len(env.Password):
		result.Usage = PasswordTooLong
	default:
		result.Usage = PasswordUsed
	}
	return result, nil
}

func (e *expander) count(t *Token, fallback int) (int, error) {
	if !t.HasCount() {
		return fallback, nil
	}
	if t.Min == t.Max {
		return t.Min, nil
	}
	n, err := rng.Intn(e.env.Rand, t.Max-t.Min+1)
	if err != nil {
		return 0, err
	}
	return t.Min + n, nil
}

// expand expands a token sequence, producing at most limit runes.
func (e *expander) expand(tokens []*Token, limit int) ([]rune, float64, error) {
	var out []rune
	var entropy float64

	for _, t := range tokens {
		remaining := limit - len(out)
		if remaining <= 0 {
			e.limited = true
			break
		}

		var part []rune
		var bits float64
		var err error
		switch t.Kind {
		case Literal:
			part = t.Text
		case Placeholder:
			part, bits, err = e.placeholder(t, remaining)
		case RepeatGroup:
			part, bits, err = e.repeat(t, remaining)
		case PermuteGroup:
			part, bits, err = e.permute(t, remaining)
		case CharsetGroup:
			part, bits, err = e.charsetGroup(t, remaining)
		}
		if err != nil {
			return nil, 0, err
		}

		if len(part) > remaining {
			part = part[:remaining]
			e.limited = true
		}
		out = append(out, part...)
		entropy += bits
	}
	return out, entropy, nil
}

func (e *expander) placeholder(t *Token, limit int) ([]rune, float64, error) {
	n, err := e.count(t, 1)
	if err != nil {
		return nil, 0, err
	}
	if n > limit {
		n = limit
		e.limited = true
	}

	switch t.Spec {
	case 'P':
		return e.password(t, n), 0, nil
	case 'w', 'W':
		return e.words(t, n, limit)
	case 'q', 'Q', 'r':
		return e.phonetic(t.Spec, n)
	}

	set := e.env.setFor(t.Spec)
	if len(set) == 0 {
		e.problems = multierror.Append(e.problems, ErrNoCustomSet)
		return nil, 0, nil
	}
	return e.draw(set, n, t.Unique)
}

func (e *expander) password(t *Token, n int) []rune {
	e.pwUsed = true
	rest := e.env.Password[e.pwPos:]
	if t.HasCount() && n < len(rest) {
		rest = rest[:n]
	}
	e.pwPos += len(rest)
	return rest
}

func (e *expander) words(t *Token, n, limit int) ([]rune, float64, error) {
	list := e.env.Words
	if list == nil || list.Size() == 0 {
		e.problems = multierror.Append(e.problems, ErrNoWordList)
		return nil, 0, nil
	}

	var indices []int
	var entropy float64
	var err error
	if t.Unique {
		if n > list.Size() {
			n = list.Size()
			e.problems = multierror.Append(e.problems, ErrCountClamped)
		}
		indices, err = sample(e.env.Rand, list.Size(), n)
		entropy = charset.PermEntropy(list.Size(), n)
	} else {
		indices = make([]int, n)
		for i := range indices {
			if indices[i], err = rng.Intn(e.env.Rand, list.Size()); err != nil {
				break
			}
		}
		entropy = float64(n) * list.Entropy()
	}
	if err != nil {
		return nil, 0, err
	}

	var out []rune
	for i, idx := range indices {
		if i > 0 && t.Spec == 'w' {
			out = append(out, ' ')
		}
		out = append(out, []rune(list.Word(idx))...)
		if len(out) >= limit {
			// the caller cuts the output
			entropy = entropy * float64(i+1) / float64(len(indices))
			break
		}
	}
	return out, entropy, nil
}

func (e *expander) phonetic(spec rune, n int) ([]rune, float64, error) {
	table := e.env.Trigrams
	if table == nil {
		table = trigram.Default()
	}
	out, err := table.Generate(e.env.Rand, n)
	if err != nil {
		return nil, 0, err
	}
	entropy := table.Entropy() * float64(n)

	switch spec {
	case 'Q':
		for i, r := range out {
			out[i] = unicode.ToUpper(r)
		}
	case 'r':
		caseBits := make([]byte, (n+7)/8)
		if _, err := io.ReadFull(e.env.Rand, caseBits); err != nil {
			return nil, 0, err
		}
		for i, r := range out {
			if caseBits[i/8]&(1<<(i%8)) != 0 {
				out[i] = unicode.ToUpper(r)
			}
		}
		entropy += float64(n)
	}
	return out, entropy, nil
}

// draw selects n symbols from set. Unique selections never repeat a symbol;
// otherwise, with ExcludeRepeats set, no symbol follows itself.
func (e *expander) draw(set []rune, n int, unique bool) ([]rune, float64, error) {
	set = dedupe(set)
	size := len(set)
	if n <= 0 || size == 0 {
		return nil, 0, nil
	}

	out := make([]rune, 0, n)
	switch {
	case unique:
		if n > size {
			n = size
			e.problems = multierror.Append(e.problems, ErrCountClamped)
		}
		indices, err := sample(e.env.Rand, size, n)
		if err != nil {
			return nil, 0, err
		}
		for _, idx := range indices {
			out = append(out, set[idx])
		}
		return out, charset.PermEntropy(size, n), nil

	case e.env.ExcludeRepeats && size > 1:
		prev := -1
		for _rangeIter := 0; _rangeIter < n; _rangeIter++ {
			idx, err := rng.Intn(e.env.Rand, size-boolToInt(prev >= 0))
			if err != nil {
				return nil, 0, err
			}
			if prev >= 0 && idx >= prev {
				idx++
			}
			out = append(out, set[idx])
			prev = idx
		}
		return out, math.Log2(float64(size)) + float64(n-1)*math.Log2(float64(size-1)), nil

	default:
		for _rangeIter := 0; _rangeIter < n; _rangeIter++ {
			idx, err := rng.Intn(e.env.Rand, size)
			if err != nil {
				return nil, 0, err
			}
			out = append(out, set[idx])
		}
		return out, float64(n) * math.Log2(float64(size)), nil
	}
}

func (e *expander) repeat(t *Token, limit int) ([]rune, float64, error) {
	n, err := e.count(t, 1)
	if err != nil {
		return nil, 0, err
	}

	var out []rune
	var entropy float64
	for i := 0; i < n; i++ {
		if len(out) >= limit {
			e.limited = true
			break
		}
		part, bits, err := e.expand(t.Children, limit-len(out))
		if err != nil {
			return nil, 0, err
		}
		out = append(out, part...)
		entropy += bits
	}
	return out, entropy, nil
}

func (e *expander) permute(t *Token, limit int) ([]rune, float64, error) {
	content, contentBits, err := e.expand(t.Children, MaxOutput)
	if err != nil {
		return nil, 0, err
	}
	size := len(content)
	if size == 0 {
		return nil, 0, nil
	}

	k, err := e.count(t, size)
	if err != nil {
		return nil, 0, err
	}
	k = min(k, size, limit)

	indices, err := sample(e.env.Rand, size, k)
	if err != nil {
		return nil, 0, err
	}
	out := make([]rune, k)
	for i, idx := range indices {
		out[i] = content[idx]
	}

	entropy := contentBits*float64(k)/float64(size) + arrangementEntropy(content, k)
	return out, entropy, nil
}

func (e *expander) charsetGroup(t *Token, limit int) ([]rune, float64, error) {
	content, _, err := e.expand(t.Children, MaxOutput)
	if err != nil {
		return nil, 0, err
	}
	n, err := e.count(t, 1)
	if err != nil {
		return nil, 0, err
	}
	if n > limit {
		n = limit
		e.limited = true
	}

	// The content only defines the set, its own randomness is not counted.
	out, entropy, err := e.draw(content, n, t.Unique)
	if err != nil {
		return nil, 0, err
	}
	if len(dedupe(content)) < 2 {
		entropy = 0
	}
	return out, entropy, nil
}

// arrangementEntropy returns a lower bound of the entropy of an ordered
// selection of k symbols out of the multiset s.
func arrangementEntropy(s []rune, k int) float64 {
	bits := charset.PermEntropy(len(s), k)
	counts := make(map[rune]int)
	for _, r := range s {
		counts[r]++
	}
	for _, m := range counts {
		bits -= logFactorial(m)
	}
	return math.Max(0, bits)
}

func logFactorial(n int) float64 {
	var bits float64
	for i := 2; i <= n; i++ {
		bits += math.Log2(float64(i))
	}
	return bits
}

// sample returns k distinct indices in [0, n) in random order.
func sample(r io.Reader, n, k int) ([]int, error) {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < k; i++ {
		j, err := rng.Intn(r, n-i)
		if err != nil {
			return nil, err
		}
		perm[i], perm[i+j] = perm[i+j], perm[i]
	}
	return perm[:k], nil
}

func dedupe(runes []rune) []rune {
	seen := make(map[rune]struct{}, len(runes))
	out := make([]rune, 0, len(runes))
	for _, r := range runes {
		if _, ok := seen[r]; !ok {
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
