package passwgen

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/mitchellh/copystructure"

	"github.com/safing/pwgen/log"
	"github.com/safing/pwgen/metrics"
	"github.com/safing/pwgen/pwformat"
	"github.com/safing/pwgen/rng"
)

// Password is a generated password.
type Password struct {
	Text []rune
	// Entropy in bits, or -1 if it was not calculated.
	Entropy int
	// Common is set if the password was found in the common password list.
	Common bool
}

// Result holds a generated batch. It is valid even if generation stopped
// early, in which case it holds the passwords generated so far.
type Result struct {
	Passwords []Password
	Requested uint64

	// FirstEntropy is the entropy of the first password.
	FirstEntropy int
	// TotalEntropy is the maximum entropy of the entire list.
	TotalEntropy int

	// FormatUsage reports how the format used the base password.
	FormatUsage pwformat.Usage
	// FormatProblems holds non-fatal format problems.
	FormatProblems error

	// CheckEach is set if every password carries its own entropy.
	CheckEach bool
	// Truncated is set if the batch exceeded the memory budget.
	Truncated bool
	// Canceled is set if the batch was canceled, with the cause in
	// CancelReason.
	Canceled     bool
	CancelReason error
	// Warnings holds notices for the user.
	Warnings []string

	firstSec float64
}

// Header returns the list header.
func (res *Result) Header() string {
	return fmt.Sprintf("%d passwords generated.\nEntropy of the first password: %d bits.\nMaximum entropy of the entire list: %d bits.",
		len(res.Passwords), res.FirstEntropy, res.TotalEntropy)
}

// Line returns the i-th password as a list line.
func (res *Result) Line(i int) string {
	pw := &res.Passwords[i]
	if !res.CheckEach {
		return string(pw.Text)
	}
	var b strings.Builder
	b.WriteString(string(pw.Text))
	b.WriteString("  [")
	if pw.Common {
		b.WriteByte('*')
	}
	b.WriteString(strconv.Itoa(pw.Entropy))
	b.WriteByte(']')
	return b.String()
}

// String returns the list: the header followed by all passwords if there is
// more than one, the only password otherwise.
func (res *Result) String() string {
	var b strings.Builder
	if len(res.Passwords) > 1 {
		b.WriteString(res.Header())
		b.WriteString("\n\n")
	}
	for i := range res.Passwords {
		b.WriteString(res.Line(i))
		b.WriteByte('\n')
	}
	return b.String()
}

// Wipe overwrites all passwords.
func (res *Result) Wipe() {
	for i := range res.Passwords {
		clear(res.Passwords[i].Text)
	}
	res.Passwords = nil
}

func (res *Result) warn(format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	res.Warnings = append(res.Warnings, msg)
	log.Warningf("passwgen: %s", msg)
}

// batch holds the state of a single Generate call.
type batch struct {
	g      *Generator
	src    *sources
	req    *Request
	res    *Result
	length *LengthSpec
	prog   *pwformat.Program

	chars, words int
	checkEach    bool

	charPw  []rune
	charSec float64
}

// Generate generates a batch of passwords. The request is copied, so it may
// be modified while the batch runs. On cancellation the result holds all
// passwords generated so far and a nil error. On other errors the partial
// result is returned along with the error.
func (g *Generator) Generate(ctx context.Context, req *Request) (*Result, error) {
	copied, err := copystructure.Copy(req)
	if err != nil {
		return nil, fmt.Errorf("failed to copy request: %w", err)
	}
	b := &batch{
		g:   g,
		src: g.snapshot(),
		req: copied.(*Request), //nolint:forcetypeassert
	}
	if err := b.prepare(); err != nil {
		return nil, err
	}

	g.runLock.Lock()
	defer g.runLock.Unlock()
	g.progress.Store(0)

	if b.src.script != nil {
		init := ScriptInit{
			Count:  b.req.Count,
			Flags:  b.req.Flags,
			Chars:  b.chars,
			Words:  b.words,
			Format: b.req.Format,
		}
		if b.chars > 0 {
			init.Gen |= GenChars
		}
		if b.words > 0 {
			init.Gen |= GenWords
		}
		if b.prog != nil {
			init.Gen |= GenFormat
		}
		if err := b.src.script.Start(init); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScript, err)
		}
		if _, err := g.awaitScript(ctx, b.src.script); err != nil {
			if ctx.Err() != nil {
				b.cancel(ctx)
				b.finish()
				return b.res, nil
			}
			return nil, err
		}
		if b.src.script.Standalone() {
			b.chars, b.words, b.prog = 0, 0, nil
		}
	}

	err = b.run(ctx)
	b.finish()
	return b.res, err
}

func (b *batch) prepare() error {
	req := b.req
	if req.Count == 0 {
		req.Count = 1
	}
	if req.Count > MaxPasswords {
		return fmt.Errorf("%w: %d", ErrTooManyPasswords, req.Count)
	}
	if req.Chars < 0 || req.Chars > MaxChars {
		return fmt.Errorf("%w: %d characters", ErrInvalidLength, req.Chars)
	}
	if req.Words < 0 || req.Words > MaxWords {
		return fmt.Errorf("%w: %d words", ErrInvalidLength, req.Words)
	}
	b.chars, b.words = req.Chars, req.Words
	b.checkEach = req.Count > 1 && req.Flags.Has(CheckEachPassword)

	b.res = &Result{
		Requested: req.Count,
		CheckEach: b.checkEach,
	}

	if b.chars > 0 && req.Flags.Has(EachCharOnce) && !b.src.charset.Type.IsPhonetic() {
		if size := b.src.charset.UniqueSize(); b.chars > size {
			b.res.warn("each character can only be used once: length reduced from %d to %d", b.chars, size)
			b.chars = size
		}
	}
	if b.words > 0 && req.Flags.Has(EachWordOnce) {
		if size := b.src.words.Size(); b.words > size {
			b.res.warn("each word can only be used once: number of words reduced from %d to %d", b.words, size)
			b.words = size
		}
	}

	if b.words > 0 {
		length, err := ParseLengthSpec(req.Length)
		if err != nil {
			return err
		}
		b.length = length
	}

	if req.Format != "" {
		prog, err := b.g.Program(req.Format)
		if err != nil {
			return err
		}
		b.prog = prog
	}

	if b.chars == 0 && b.words == 0 && b.prog == nil && b.src.script == nil {
		return ErrNothingToGenerate
	}
	return nil
}

func (b *batch) budget() int64 {
	budget := b.g.opts.MaxListBytes
	if b.req.Flags.Has(ExcludeDuplicates) {
		budget /= 2
	}
	return budget
}

func (b *batch) run(ctx context.Context) error {
	var (
		seen       map[string]struct{}
		size       int64
		keepChars  bool
		attempts   int
		duplicates int
		budget     = b.budget()
		flags      = b.req.Flags
	)
	if b.req.Count > 1 && flags.Has(ExcludeDuplicates) {
		seen = make(map[string]struct{})
	}
	firstCharNotLC := flags.Has(FirstCharNotLowercase) &&
		!(b.words > 0 && flags.Has(CombineWordsChars))

	for uint64(len(b.res.Passwords)) < b.req.Count {
		if ctx.Err() != nil {
			b.cancel(ctx)
			return nil
		}
		first := len(b.res.Passwords) == 0

		var (
			pw  []rune
			sec float64
		)

		if b.chars > 0 && !keepChars {
			var err error
			b.charPw, b.charSec, err = b.src.password(b.g.rand, b.chars, flags)
			if err != nil {
				return err
			}
		}
		keepChars = false
		if b.chars > 0 {
			pw, sec = b.charPw, b.charSec
		}

		if b.words > 0 {
			phrase, wordChars, wordsSec, err := b.src.passphrase(b.g.rand, b.words, flags)
			if err != nil {
				return err
			}
			if b.chars > 0 && flags.Has(CombineWordsChars) {
				pw, sec = combine(phrase, b.charPw, flags), b.charSec+wordsSec
			} else {
				pw, sec = phrase, wordsSec
			}

			if b.length != nil {
				n := wordChars
				if b.length.AllChars {
					n = len(pw)
				}
				if !b.length.Contains(n) {
					attempts++
					if attempts >= maxLengthAttempts {
						return fmt.Errorf("%w: %d-%d characters", ErrLengthUnsatisfiable, b.length.Min, b.length.Max)
					}
					keepChars = true
					continue
				}
			}
			attempts = 0
		}

		if b.prog != nil {
			exp, err := b.prog.Expand(&pwformat.Env{
				Rand:           b.g.rand,
				CustomSet:      b.src.charset,
				Ambiguous:      b.g.opts.Charset.Ambiguous,
				Symbols:        b.g.opts.Charset.Symbols,
				Words:          b.src.words,
				Trigrams:       b.src.trigrams,
				Password:       pw,
				ExcludeRepeats: flags.Has(ExcludeRepeats),
			}, pwformat.MaxOutput)
			if err != nil {
				return err
			}
			tooLong := errors.Is(exp.Problems, pwformat.ErrOutputTooLong)

			base := b.chars > 0 || b.words > 0
			if exp.Usage == pwformat.PasswordNotUsed && base {
				sec = exp.Entropy
			} else {
				sec += exp.Entropy
			}

			if first {
				b.res.FormatUsage = exp.Usage
				b.res.FormatProblems = exp.Problems
				if exp.Usage == pwformat.PasswordNotUsed && base {
					// The base password is never used, so stop generating it.
					b.chars, b.words = 0, 0
					b.res.warn("%s", exp.Usage)
				}
				if tooLong {
					b.res.warn("formatted password truncated to %d characters", pwformat.MaxOutput)
				}
			}
			pw = exp.Text
		}

		if firstCharNotLC && len(pw) > 0 {
			pw[0] = unicode.ToUpper(pw[0])
		}

		if b.src.script != nil {
			var err error
			pw, sec, err = b.g.callScript(ctx, b.src.script, uint64(len(b.res.Passwords))+1, pw, sec)
			if err != nil {
				if ctx.Err() != nil {
					b.cancel(ctx)
					return nil
				}
				return err
			}
		}

		text := string(pw)
		if seen != nil && len(pw) > 0 {
			if _, dup := seen[text]; dup {
				duplicates++
				if duplicates >= maxDuplicateRetries {
					b.res.warn("no more unique passwords found after %d attempts", duplicates)
					return nil
				}
				continue
			}
			duplicates = 0
		}

		entry := Password{Text: pw, Entropy: -1}
		if first || b.checkEach {
			sec = math.Min(sec, rng.MaxEntropy)
			entry.Entropy = int(math.Floor(sec))
			if (b.req.Count == 1 || b.checkEach) && b.src.isCommon(text) {
				entry.Common = true
				entry.Entropy = min(entry.Entropy, b.src.commonEntropy)
			}
			metrics.PasswordEntropy.Update(float64(entry.Entropy))
		}
		if first {
			b.res.firstSec = sec
		}

		// Each password is held once in the list and once in the seen set.
		need := int64(len(text)) + 1
		if b.checkEach {
			need += 10
		}
		if size+need > budget {
			b.res.Truncated = true
			b.res.warn("password list exceeds the memory limit of %d bytes, list truncated", budget)
			return nil
		}
		size += need

		if seen != nil && len(pw) > 0 {
			seen[text] = struct{}{}
		}
		b.res.Passwords = append(b.res.Passwords, entry)
		b.g.progress.Add(1)
		metrics.PasswordsGenerated.Inc()
	}
	return nil
}

func (b *batch) cancel(ctx context.Context) {
	b.res.Canceled = true
	b.res.CancelReason = context.Cause(ctx)
	log.Infof("passwgen: generation canceled after %d passwords: %s", len(b.res.Passwords), b.res.CancelReason)
}

func (b *batch) finish() {
	res := b.res
	if len(res.Passwords) == 0 {
		return
	}
	res.FirstEntropy = res.Passwords[0].Entropy
	res.TotalEntropy = int(math.Floor(math.Min(b.res.firstSec*float64(len(res.Passwords)), rng.MaxEntropy)))
}
