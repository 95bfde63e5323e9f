package cli

import (
	"bufio"
	"bytes"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/awnumar/memguard"
	"golang.org/x/term"
)

// ErrPasswordMismatch is returned if the confirmation differs from the password.
var ErrPasswordMismatch = errors.New("passwords do not match")

var errNoTerminal = errors.New("no terminal to read a password from, use --password-file")

// readPassword reads a password from the file at path, or prompts for it on
// the terminal if path is empty. The returned buffer must be destroyed by
// the caller.
func readPassword(path, prompt string, confirm bool) (*memguard.LockedBuffer, error) {
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close() //nolint:errcheck
		return readPasswordLine(f)
	}

	fd := int(os.Stdin.Fd()) //nolint:gosec
	if !term.IsTerminal(fd) {
		return nil, errNoTerminal
	}

	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	if len(pw) == 0 {
		return nil, errors.New("empty password")
	}
	if confirm {
		fmt.Fprint(os.Stderr, "Confirm: ")
		again, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			memguard.WipeBytes(pw)
			return nil, err
		}
		match := subtle.ConstantTimeCompare(pw, again) == 1
		memguard.WipeBytes(again)
		if !match {
			memguard.WipeBytes(pw)
			return nil, ErrPasswordMismatch
		}
	}
	// NewBufferFromBytes wipes pw.
	return memguard.NewBufferFromBytes(pw), nil
}

// readPasswordArg returns the password given as arguments, prompted for on
// the terminal, or read from the first line of stdin.
func readPasswordArg(args []string) (*memguard.LockedBuffer, error) {
	if len(args) > 0 {
		return memguard.NewBufferFromBytes([]byte(strings.Join(args, " "))), nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec
		return readPasswordLine(os.Stdin)
	}
	return readPassword("", "Password: ", false)
}

// readPasswordLine reads the first line of r as password.
func readPasswordLine(r io.Reader) (*memguard.LockedBuffer, error) {
	line, err := bufio.NewReader(r).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		memguard.WipeBytes(line)
		return nil, err
	}
	pw := bytes.TrimRight(line, "\r\n")
	if len(pw) == 0 {
		memguard.WipeBytes(line)
		return nil, errors.New("empty password")
	}
	buf := memguard.NewBufferFromBytes(pw)
	memguard.WipeBytes(line)
	return buf, nil
}
