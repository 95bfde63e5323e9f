package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"filippo.io/age"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/safing/pwgen/passwgen"
	"github.com/safing/pwgen/rng"
	"github.com/safing/pwgen/script"
	"github.com/safing/pwgen/utils"
	"github.com/safing/pwgen/utils/renameio"
)

const (
	progressInterval  = 500 * time.Millisecond
	scriptLoadTimeout = 10 * time.Second
)

type generateOptions struct {
	count   uint64
	chars   int
	words   int
	format  string
	length  string
	charset string

	wordList      string
	maxWordLen    int
	lowercase     bool
	trigrams      string
	common        string
	scriptPath    string
	output        string
	force         bool
	agePassFile   string
	encryptOutput bool

	deterministic bool
	keyFile       string
	salt          string

	excludeAmbiguous bool
	flags            map[passwgen.Flags]*bool
}

// lengthUsage documents --length. All examples must parse.
var (
	lengthExamples = []string{"16-24", ">=20", "<=30", "20-30*"}
	lengthUsage    = fmt.Sprintf("Allowed passphrase length, e.g. %s, %s or %s (an asterisk as in %s counts all characters, not only the words)",
		lengthExamples[0], lengthExamples[1], lengthExamples[2], lengthExamples[3])
)

var genFlags = generateOptions{
	flags: make(map[passwgen.Flags]*bool),
}

var generateFlagNames = []struct {
	name  string
	flag  passwgen.Flags
	usage string
}{
	{"exclude-repeats", passwgen.ExcludeRepeats, "Never repeat a character directly"},
	{"each-char-once", passwgen.EachCharOnce, "Use every character at most once"},
	{"include-subset", passwgen.IncludeSubset, "Include at least one character of every class"},
	{"first-char-not-lowercase", passwgen.FirstCharNotLowercase, "Capitalize the first character"},
	{"combine", passwgen.CombineWordsChars, "Combine words and characters into one password"},
	{"capitalize-words", passwgen.CapitalizeWords, "Capitalize every word"},
	{"no-word-separator", passwgen.DontSeparateWords, "Join words without spaces"},
	{"no-chars-separator", passwgen.DontSeparateWordsChars, "Join words and characters without a space"},
	{"reverse", passwgen.ReverseOrder, "Put the characters before the words"},
	{"each-word-once", passwgen.EachWordOnce, "Use every word at most once"},
	{"exclude-duplicates", passwgen.ExcludeDuplicates, "Never output the same password twice"},
	{"check-each", passwgen.CheckEachPassword, "Show the entropy of every password"},
}

func init() {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate passwords",
		Long: "Generates passwords from a character set, passphrases from a word list, or both. " +
			"A format string or a script may transform or replace the result.",
		Args: cobra.NoArgs,
		Run:  lifecycle(runGenerate),
	}

	f := cmd.Flags()
	f.Uint64VarP(&genFlags.count, "count", "n", 1, "Number of passwords")
	f.IntVarP(&genFlags.chars, "chars", "c", 0, "Number of characters")
	f.IntVarP(&genFlags.words, "words", "w", 0, "Number of words")
	f.StringVarP(&genFlags.format, "format", "f", "", "Format string")
	f.StringVarP(&genFlags.length, "length", "l", "", lengthUsage)
	f.StringVarP(&genFlags.charset, "charset", "s", "", "Character set specification")
	f.StringVar(&genFlags.wordList, "wordlist", "", "Word list file")
	f.IntVar(&genFlags.maxWordLen, "max-word-len", 0, "Skip longer words of the word list")
	f.BoolVar(&genFlags.lowercase, "lowercase", false, "Convert the word list to lower case")
	f.StringVar(&genFlags.trigrams, "trigrams", "", "Trigram file for phonetic passwords")
	f.StringVar(&genFlags.common, "common", "", "Common password list to check against")
	f.StringVar(&genFlags.scriptPath, "script", "", "Lua script processing or generating passwords")
	f.StringVarP(&genFlags.output, "output", "o", "", "Write the list to a file")
	f.BoolVar(&genFlags.force, "force", false, "Overwrite an existing output file")
	f.BoolVar(&genFlags.encryptOutput, "age", false, "Encrypt the output file with an age passphrase")
	f.StringVar(&genFlags.agePassFile, "password-file", "", "Read the age passphrase from a file")
	f.BoolVar(&genFlags.deterministic, "deterministic", false, "Derive the passwords from a master password instead of the random pool")
	f.StringVar(&genFlags.keyFile, "key-file", "", "Read the master password from a file")
	f.StringVar(&genFlags.salt, "salt", "pwgen", "Salt for deterministic generation, e.g. a site name")
	f.BoolVar(&genFlags.excludeAmbiguous, "exclude-ambiguous", false, "Remove ambiguous characters from the character set")
	for _, fl := range generateFlagNames {
		genFlags.flags[fl.flag] = f.Bool(fl.name, false, fl.usage)
	}

	RootCmd.AddCommand(cmd)
}

func (o *generateOptions) request() *passwgen.Request {
	req := &passwgen.Request{
		Count:  o.count,
		Chars:  o.chars,
		Words:  o.words,
		Format: o.format,
		Length: o.length,
	}
	for flag, set := range o.flags {
		if *set {
			req.Flags |= flag
		}
	}
	return req
}

func runGenerate(ctx context.Context, cmd *cobra.Command, args []string) error {
	if genFlags.encryptOutput && genFlags.output == "" {
		return errors.New("--age requires --output")
	}
	if genFlags.output != "" && !genFlags.force {
		exists, err := utils.FileExists(genFlags.output)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%s already exists, use --force to overwrite it", genFlags.output)
		}
	}

	g, r := generator, io.Reader(pool)
	if genFlags.deterministic {
		key, err := readPassword(genFlags.keyFile, "Master password: ", true)
		if err != nil {
			return err
		}
		seeded, err := rng.NewKeySeeded(key.Bytes(), []byte(genFlags.salt))
		key.Destroy()
		if err != nil {
			return err
		}
		if g, err = newGenerator(seeded); err != nil {
			return err
		}
		r = seeded
	}

	if err := loadSources(g, &genFlags); err != nil {
		return err
	}
	if genFlags.scriptPath != "" {
		loadCtx, cancel := context.WithTimeout(ctx, scriptLoadTimeout)
		s, err := script.Load(loadCtx, genFlags.scriptPath, r)
		cancel()
		if err != nil {
			return err
		}
		defer s.Terminate()
		g.SetScript(s)
	}

	req := genFlags.request()
	res, err := generateWithProgress(ctx, g, req, term.IsTerminal(int(os.Stderr.Fd()))) //nolint:gosec
	if res == nil {
		return err
	}
	defer res.Wipe()

	for _, warning := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warning)
	}
	if res.FormatProblems != nil {
		fmt.Fprintf(os.Stderr, "warning: %s\n", res.FormatProblems)
	}
	if res.Canceled {
		fmt.Fprintf(os.Stderr, "canceled after %d of %d passwords: %s\n", len(res.Passwords), res.Requested, res.CancelReason)
	}

	if len(res.Passwords) > 0 {
		if outErr := writeList(res, genFlags.output, genFlags.encryptOutput, genFlags.agePassFile); outErr != nil {
			return errors.Join(err, outErr)
		}
		if len(res.Passwords) == 1 && res.Passwords[0].Entropy >= 0 {
			fmt.Fprintf(os.Stderr, "entropy: %d bits\n", res.Passwords[0].Entropy)
		}
	}
	return err
}

// loadSources applies the character set and loads the files of the options.
func loadSources(g *passwgen.Generator, o *generateOptions) error {
	if o.charset != "" {
		if err := g.SetCharset(o.charset); err != nil {
			return err
		}
	}
	if o.wordList != "" {
		if _, err := g.LoadWordList(o.wordList, o.maxWordLen, o.lowercase); err != nil {
			return err
		}
	}
	if o.trigrams != "" {
		if _, err := g.LoadTrigramFile(o.trigrams); err != nil {
			return err
		}
	}
	if o.common != "" {
		if _, err := g.LoadCommonPasswords(o.common); err != nil {
			return err
		}
	}
	return nil
}

// generateWithProgress runs the batch and reports the progress on stderr
// while it runs.
func generateWithProgress(ctx context.Context, g *passwgen.Generator, req *passwgen.Request, showProgress bool) (*passwgen.Result, error) {
	if !showProgress || req.Count <= 1 {
		return g.Generate(ctx, req)
	}

	var res *passwgen.Result
	done := make(chan struct{})
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		defer close(done)
		var err error
		res, err = g.Generate(groupCtx, req)
		return err
	})
	group.Go(func() error {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				fmt.Fprint(os.Stderr, "\r\033[K")
				return nil
			case <-ticker.C:
				fmt.Fprintf(os.Stderr, "\r%d/%d passwords", g.Progress(), req.Count)
			}
		}
	})
	err := group.Wait()
	return res, err
}

// writeList writes the list to stdout or to a file, optionally encrypted
// with an age passphrase.
func writeList(res *passwgen.Result, path string, encrypt bool, passFile string) error {
	list := []byte(res.String())
	defer clear(list)

	if path == "" {
		_, err := os.Stdout.Write(list)
		return err
	}
	if err := utils.EnsureParentDirectory(path, 0o700); err != nil {
		return err
	}
	if !encrypt {
		return renameio.WriteFile(path, list, 0o600)
	}

	pass, err := readPassword(passFile, "Passphrase for the output file: ", true)
	if err != nil {
		return err
	}
	defer pass.Destroy()

	recipient, err := age.NewScryptRecipient(pass.String())
	if err != nil {
		return fmt.Errorf("failed to create recipient: %w", err)
	}
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) //nolint:gosec
	if err != nil {
		return err
	}
	if err := encryptTo(out, recipient, list); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func encryptTo(out io.Writer, recipient age.Recipient, data []byte) error {
	w, err := age.Encrypt(out, recipient)
	if err != nil {
		return fmt.Errorf("failed to create encrypted writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write encrypted data: %w", err)
	}
	return w.Close()
}
