// Package passwgen generates passwords and passphrases from character
// sets, word lists, trigram tables and format programs.
package passwgen

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/bluele/gcache"

	"github.com/safing/pwgen/charset"
	"github.com/safing/pwgen/log"
	"github.com/safing/pwgen/pwformat"
	"github.com/safing/pwgen/rng"
	"github.com/safing/pwgen/trigram"
	"github.com/safing/pwgen/utils"
	"github.com/safing/pwgen/wordlist"
)

const (
	// RecentEntries is the size of the recently used lists.
	RecentEntries = 50

	programCacheSize    = 64
	maxLengthAttempts   = 100000
	maxDuplicateRetries = 10000
	maxRepeatShuffles   = 64
	maxRepeatRedraws    = 256
)

// Options configure a Generator.
type Options struct {
	// Charset configures how character sets are parsed.
	Charset charset.Options
	// MaxListBytes bounds the memory of a password list.
	MaxListBytes int64
	// ScriptPoll is the interval at which a script result is awaited.
	ScriptPoll time.Duration
	// ScriptMaxTimeouts is the number of polls after which an unresponsive
	// script is terminated. Zero waits forever.
	ScriptMaxTimeouts int
}

// Generator holds the sources of password generation. All sources are
// replaced as a whole, so passwords of a running batch always come from a
// consistent set of sources.
type Generator struct {
	rand io.Reader
	opts Options

	sourcesLock   sync.RWMutex
	charset       *charset.Set
	words         *wordlist.List
	trigrams      *trigram.Table
	common        map[string]struct{}
	commonEntropy int
	script        Script

	// serializes batches
	runLock  sync.Mutex
	progress atomic.Uint64

	programs gcache.Cache

	// RecentCharsets holds recently used character set specifications.
	RecentCharsets *utils.MRU
	// RecentFormats holds recently used format specifications.
	RecentFormats *utils.MRU
}

// New returns a generator that draws all randomness from r, using the
// default word list and trigram table and the default character set.
func New(r io.Reader, opts Options) (*Generator, error) {
	if opts.MaxListBytes <= 0 {
		opts.MaxListBytes = DefaultMaxListBytes
	}
	if opts.ScriptPoll <= 0 {
		opts.ScriptPoll = time.Second
	}

	g := &Generator{
		rand:           r,
		opts:           opts,
		words:          wordlist.Default(),
		trigrams:       trigram.Default(),
		RecentCharsets: utils.NewMRU(RecentEntries),
		RecentFormats:  utils.NewMRU(RecentEntries),
	}
	g.programs = gcache.New(programCacheSize).
		LRU().
		LoaderFunc(func(key interface{}) (interface{}, error) {
			return pwformat.Parse(key.(string)) //nolint:forcetypeassert
		}).
		Build()

	if err := g.SetCharset(DefaultCharset); err != nil {
		return nil, err
	}
	return g, nil
}

// DefaultCharset is the character set of a new generator.
const DefaultCharset = "<AZ><az><09>"

// SetCharset parses and activates a character set.
func (g *Generator) SetCharset(spec string) error {
	set, err := charset.Parse(spec, g.opts.Charset)
	if err != nil {
		return err
	}

	g.sourcesLock.Lock()
	g.charset = set
	g.sourcesLock.Unlock()

	g.RecentCharsets.Add(spec)
	log.Debugf("passwgen: character set %q active with %d characters", set.Spec, set.UniqueSize())
	return nil
}

// Charset returns the active character set.
func (g *Generator) Charset() *charset.Set {
	g.sourcesLock.RLock()
	defer g.sourcesLock.RUnlock()
	return g.charset
}

// LoadWordList loads a word list and returns its size. An empty path or
// wordlist.DefaultSource restores the default list. A maxWordLen of 0 uses
// wordlist.MaxWordLen. On error the previous list stays active.
func (g *Generator) LoadWordList(path string, maxWordLen int, lowercase bool) (int, error) {
	if maxWordLen == 0 {
		maxWordLen = wordlist.MaxWordLen
	}
	list := wordlist.Default()
	if path != "" && path != wordlist.DefaultSource {
		var err error
		list, err = wordlist.Load(path, maxWordLen, lowercase)
		if err != nil {
			return 0, err
		}
	}

	g.sourcesLock.Lock()
	g.words = list
	g.sourcesLock.Unlock()

	log.Infof("passwgen: word list %s active with %d words (%.2f bits per word)", list.Source, list.Size(), list.Entropy())
	return list.Size(), nil
}

// WordList returns the active word list.
func (g *Generator) WordList() *wordlist.List {
	g.sourcesLock.RLock()
	defer g.sourcesLock.RUnlock()
	return g.words
}

// LoadTrigramFile loads a trigram table and returns its total count. An
// empty path restores the default table. On error the previous table stays
// active.
func (g *Generator) LoadTrigramFile(path string) (uint64, error) {
	table := trigram.Default()
	if path != "" {
		var err error
		table, err = trigram.Load(path)
		if err != nil {
			return 0, err
		}
	}

	g.sourcesLock.Lock()
	g.trigrams = table
	g.sourcesLock.Unlock()

	log.Infof("passwgen: trigram table %s active (%.2f bits per letter)", table.Source(), table.Entropy())
	return table.Total(), nil
}

// Trigrams returns the active trigram table.
func (g *Generator) Trigrams() *trigram.Table {
	g.sourcesLock.RLock()
	defer g.sourcesLock.RUnlock()
	return g.trigrams
}

// SetScript activates a script that post-processes or replaces generated
// passwords. A nil script disables scripting.
func (g *Generator) SetScript(s Script) {
	g.sourcesLock.Lock()
	defer g.sourcesLock.Unlock()
	g.script = s
}

// Progress returns the number of passwords generated by the running batch.
func (g *Generator) Progress() uint64 {
	return g.progress.Load()
}

// Program returns the compiled format program, compiling it on first use.
func (g *Generator) Program(format string) (*pwformat.Program, error) {
	v, err := g.programs.Get(format)
	if err != nil {
		return nil, err
	}
	g.RecentFormats.Add(format)
	return v.(*pwformat.Program), nil //nolint:forcetypeassert
}

// sources is a consistent snapshot of all sources for a batch.
type sources struct {
	charset       *charset.Set
	words         *wordlist.List
	trigrams      *trigram.Table
	common        map[string]struct{}
	commonEntropy int
	script        Script
}

func (g *Generator) snapshot() *sources {
	g.sourcesLock.RLock()
	defer g.sourcesLock.RUnlock()
	return &sources{
		charset:       g.charset,
		words:         g.words,
		trigrams:      g.trigrams,
		common:        g.common,
		commonEntropy: g.commonEntropy,
		script:        g.script,
	}
}

// ErrCharsetExhausted is returned if a character set has too few distinct
// characters for the requested constraints.
var ErrCharsetExhausted = errors.New("character set exhausted")

// Password returns a password of length characters from the active set and
// its entropy.
func (g *Generator) Password(length int, flags Flags) ([]rune, float64, error) {
	src := g.snapshot()
	return src.password(g.rand, length, flags)
}

func (src *sources) password(r io.Reader, length int, flags Flags) ([]rune, float64, error) {
	set := src.charset
	if set == nil {
		return nil, 0, ErrNoCharset
	}
	if length < 1 || length > MaxChars {
		return nil, 0, fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}
	if set.Type.IsPhonetic() {
		return src.phonetic(r, length, set.Type)
	}

	if flags.Has(EachCharOnce) {
		if err := set.CheckLength(length); err != nil {
			return nil, 0, err
		}
		pw, err := drawUnique(r, set, length, flags.Has(IncludeSubset))
		if err != nil {
			return nil, 0, err
		}
		return pw, charset.PermEntropy(set.UniqueSize(), length), nil
	}

	if set.Constrained() || flags.Has(IncludeSubset) {
		if err := set.CheckLength(length); err != nil {
			return nil, 0, err
		}
		pw, err := drawConstrained(r, set, length, flags)
		if err != nil {
			return nil, 0, err
		}
		if flags.Has(ExcludeRepeats) {
			return pw, withoutRepeats(set.EntropyFor(length), set.UniqueSize(), length), nil
		}
		return pw, set.EntropyFor(length), nil
	}

	pw := make([]rune, 0, length)
	n := len(set.Chars)
	for _rangeIter := 0; _rangeIter < length; _rangeIter++ {
		if flags.Has(ExcludeRepeats) && len(pw) > 0 && n > 1 {
			// Draw from all characters but the previous one.
			prev := pw[len(pw)-1]
			i, err := rng.Intn(r, n-1)
			if err != nil {
				return nil, 0, err
			}
			if set.Chars[i] == prev {
				i = n - 1
			}
			pw = append(pw, set.Chars[i])
			continue
		}
		i, err := rng.Intn(r, n)
		if err != nil {
			return nil, 0, err
		}
		pw = append(pw, set.Chars[i])
	}

	if flags.Has(ExcludeRepeats) && n > 1 {
		return pw, math.Log2(float64(n)) + float64(length-1)*math.Log2(float64(n-1)), nil
	}
	return pw, set.EntropyFor(length), nil
}

// required returns the minimum count of every class, raising unconstrained
// classes to one if subset is set.
func required(set *charset.Set, length int, subset bool) []int {
	counts := make([]int, len(set.Classes))
	total := 0
	for i := range set.Classes {
		counts[i] = set.Classes[i].Count
		total += counts[i]
	}
	if subset {
		for i := range set.Classes {
			if counts[i] == 0 && total < length {
				counts[i] = 1
				total++
			}
		}
	}
	return counts
}

// drawConstrained draws a password satisfying the class counts. With
// ExcludeRepeats, draws that cannot be arranged without adjacent repeats are
// discarded.
func drawConstrained(r io.Reader, set *charset.Set, length int, flags Flags) ([]rune, error) {
	subset := flags.Has(IncludeSubset)
	if !flags.Has(ExcludeRepeats) {
		pw, err := drawRequired(r, set, length, subset)
		if err != nil {
			return nil, err
		}
		if err := shuffle(r, pw); err != nil {
			return nil, err
		}
		return pw, nil
	}

	for _rangeIter := 0; _rangeIter < maxRepeatRedraws; _rangeIter++ {
		pw, err := drawRequired(r, set, length, subset)
		if err != nil {
			return nil, err
		}
		if arrangeable(pw) {
			for _rangeIter := 0; _rangeIter < maxRepeatShuffles; _rangeIter++ {
				if err := shuffle(r, pw); err != nil {
					return nil, err
				}
				if !hasRepeats(pw) {
					return pw, nil
				}
			}
		}
		clear(pw)
	}
	return nil, fmt.Errorf("%w: no arrangement without repeated characters found", ErrCharsetExhausted)
}

func drawRequired(r io.Reader, set *charset.Set, length int, subset bool) ([]rune, error) {
	pw := make([]rune, 0, length)
	for i, count := range required(set, length, subset) {
		class := set.Classes[i].Chars
		for _rangeIter := 0; _rangeIter < count; _rangeIter++ {
			j, err := rng.Intn(r, len(class))
			if err != nil {
				return nil, err
			}
			pw = append(pw, class[j])
		}
	}

	filler := set.Filler()
	if len(pw) < length && len(filler) == 0 {
		return nil, ErrCharsetExhausted
	}
	for len(pw) < length {
		j, err := rng.Intn(r, len(filler))
		if err != nil {
			return nil, err
		}
		pw = append(pw, filler[j])
	}
	return pw, nil
}

// arrangeable reports whether the characters can be ordered without
// adjacent repeats: no character may fill more than every other position.
func arrangeable(pw []rune) bool {
	counts := make(map[rune]int, len(pw))
	for _, c := range pw {
		counts[c]++
		if counts[c] > (len(pw)+1)/2 {
			return false
		}
	}
	return true
}

// withoutRepeats lowers the entropy of a password of length characters from
// n distinct characters by the choices a ban on adjacent repeats removes.
func withoutRepeats(sec float64, n, length int) float64 {
	if n < 2 || length < 2 {
		return sec
	}
	return max(0, sec-float64(length-1)*math.Log2(float64(n)/float64(n-1)))
}

func drawUnique(r io.Reader, set *charset.Set, length int, subset bool) ([]rune, error) {
	if length > set.UniqueSize() {
		return nil, fmt.Errorf("%w: %d distinct characters for a length of %d", ErrCharsetExhausted, set.UniqueSize(), length)
	}

	used := make(map[rune]struct{}, length)
	pw := make([]rune, 0, length)
	pick := func(from []rune) error {
		avail := make([]rune, 0, len(from))
		for _, c := range from {
			if _, ok := used[c]; !ok {
				avail = append(avail, c)
			}
		}
		if len(avail) == 0 {
			return ErrCharsetExhausted
		}
		j, err := rng.Intn(r, len(avail))
		if err != nil {
			return err
		}
		used[avail[j]] = struct{}{}
		pw = append(pw, avail[j])
		return nil
	}

	for i, count := range required(set, length, subset) {
		for _rangeIter := 0; _rangeIter < count; _rangeIter++ {
			if err := pick(set.Classes[i].Chars); err != nil {
				return nil, err
			}
		}
	}
	filler := set.Filler()
	for len(pw) < length {
		if err := pick(filler); err != nil {
			return nil, err
		}
	}
	if err := shuffle(r, pw); err != nil {
		return nil, err
	}
	return pw, nil
}

func (src *sources) phonetic(r io.Reader, length int, typ charset.Type) ([]rune, float64, error) {
	pw, err := src.trigrams.Generate(r, length)
	if err != nil {
		return nil, 0, err
	}
	entropy := src.trigrams.Entropy() * float64(length)

	switch typ { //nolint:exhaustive
	case charset.PhoneticUpper:
		for i := range pw {
			pw[i] = unicode.ToUpper(pw[i])
		}
	case charset.PhoneticMixed:
		for i := range pw {
			bit, err := rng.Intn(r, 2)
			if err != nil {
				return nil, 0, err
			}
			if bit == 1 {
				pw[i] = unicode.ToUpper(pw[i])
			}
		}
		entropy += float64(length)
	}
	return pw, entropy, nil
}

// Passphrase returns a passphrase of the given number of words, the number
// of word characters and its entropy.
func (g *Generator) Passphrase(words int, flags Flags) (phrase []rune, wordChars int, entropy float64, err error) {
	src := g.snapshot()
	return src.passphrase(g.rand, words, flags)
}

func (src *sources) passphrase(r io.Reader, words int, flags Flags) (phrase []rune, wordChars int, entropy float64, err error) {
	list := src.words
	if words < 1 || words > MaxWords {
		return nil, 0, 0, fmt.Errorf("%w: %d words", ErrInvalidLength, words)
	}
	if flags.Has(EachWordOnce) && words > list.Size() {
		return nil, 0, 0, fmt.Errorf("%w: %d words requested from a list of %d", ErrInvalidLength, words, list.Size())
	}

	var used map[int]struct{}
	if flags.Has(EachWordOnce) {
		used = make(map[int]struct{}, words)
	}

	for i := 0; i < words; {
		idx, err := rng.Intn(r, list.Size())
		if err != nil {
			return nil, 0, 0, err
		}
		if used != nil {
			if _, ok := used[idx]; ok {
				continue
			}
			used[idx] = struct{}{}
		}

		word := []rune(list.Word(idx))
		if flags.Has(CapitalizeWords) && len(word) > 0 {
			word[0] = unicode.ToUpper(word[0])
		}
		if i > 0 && !flags.Has(DontSeparateWords) {
			phrase = append(phrase, ' ')
		}
		phrase = append(phrase, word...)
		wordChars += len(word)
		i++
	}

	if flags.Has(EachWordOnce) {
		entropy = charset.PermEntropy(list.Size(), words)
	} else {
		entropy = list.Entropy() * float64(words)
	}
	return phrase, wordChars, entropy, nil
}

// combine joins a passphrase with a character password.
func combine(phrase, chars []rune, flags Flags) []rune {
	first, second := phrase, chars
	if flags.Has(ReverseOrder) {
		first, second = chars, phrase
	}
	out := make([]rune, 0, len(phrase)+len(chars)+1)
	out = append(out, first...)
	if !flags.Has(DontSeparateWordsChars) {
		out = append(out, ' ')
	}
	return append(out, second...)
}

func shuffle(r io.Reader, s []rune) error {
	for i := len(s) - 1; i > 0; i-- {
		j, err := rng.Intn(r, i+1)
		if err != nil {
			return err
		}
		s[i], s[j] = s[j], s[i]
	}
	return nil
}

func hasRepeats(s []rune) bool {
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1] {
			return true
		}
	}
	return false
}
