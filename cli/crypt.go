package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/safing/pwgen/crypttext"
	"github.com/safing/pwgen/log"
)

// maxBlobBytes bounds encrypted input, which is base64 encoded.
const maxBlobBytes = crypttext.MaxTextBytes * 2

var (
	cryptIn       string
	cryptPassFile string
	cryptVersion  uint8
)

func init() {
	encryptCmd := &cobra.Command{
		Use:   "encrypt [text]",
		Short: "Encrypt text with a password",
		Long:  "Encrypts the text given as argument, read from --in or from stdin, and prints it base64 encoded.",
		Run:   lifecycle(runEncrypt),
	}
	encryptCmd.Flags().Uint8Var(&cryptVersion, "version", crypttext.CurrentVersion, "Format version to write")

	decryptCmd := &cobra.Command{
		Use:   "decrypt [text]",
		Short: "Decrypt text encrypted with a password",
		Long:  "Decrypts the base64 text given as argument, read from --in or from stdin. Line breaks are ignored.",
		Run:   lifecycle(runDecrypt),
	}

	for _, cmd := range []*cobra.Command{encryptCmd, decryptCmd} {
		cmd.Flags().StringVarP(&cryptIn, "in", "i", "", "Read the text from a file")
		cmd.Flags().StringVar(&cryptPassFile, "password-file", "", "Read the password from a file")
		RootCmd.AddCommand(cmd)
	}
}

// readInput returns the text from the arguments, the input file or stdin.
// At most limit+1 bytes are read, so that oversized input is still detected.
func readInput(args []string, path string, stdin io.Reader, limit int64) ([]byte, error) {
	switch {
	case len(args) > 0:
		return []byte(strings.Join(args, " ")), nil
	case path != "":
		f, err := os.Open(path) //nolint:gosec
		if err != nil {
			return nil, err
		}
		defer f.Close() //nolint:errcheck
		return io.ReadAll(io.LimitReader(f, limit+1))
	default:
		return io.ReadAll(io.LimitReader(stdin, limit+1))
	}
}

func newCodec() (*crypttext.Codec, error) {
	params, err := crypttext.ParamsFromConfig()
	if err != nil {
		return nil, err
	}
	return crypttext.New(pool, params), nil
}

func runEncrypt(ctx context.Context, cmd *cobra.Command, args []string) error {
	text, err := readInput(args, cryptIn, os.Stdin, crypttext.MaxTextBytes)
	if err != nil {
		return err
	}
	defer clear(text)

	codec, err := newCodec()
	if err != nil {
		return err
	}
	pw, err := readPassword(cryptPassFile, "Password: ", true)
	if err != nil {
		return err
	}
	defer pw.Destroy()

	blob, err := codec.EncryptVersion(text, pw.Bytes(), cryptVersion)
	if err != nil {
		return err
	}
	fmt.Println(blob)
	return nil
}

func runDecrypt(ctx context.Context, cmd *cobra.Command, args []string) error {
	blob, err := readInput(args, cryptIn, os.Stdin, maxBlobBytes)
	if err != nil {
		return err
	}

	codec, err := newCodec()
	if err != nil {
		return err
	}
	pw, err := readPassword(cryptPassFile, "Password: ", false)
	if err != nil {
		return err
	}
	defer pw.Destroy()

	text, version, err := codec.Decrypt(string(blob), pw.Bytes())
	if err != nil {
		return err
	}
	defer clear(text)
	log.Debugf("crypttext: decrypted version %d text", version)

	_, err = os.Stdout.Write(text)
	return err
}
