// Package cli implements the pwgen commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/safing/pwgen/config"
	"github.com/safing/pwgen/crypttext"
	"github.com/safing/pwgen/dataroot"
	"github.com/safing/pwgen/entropy"
	"github.com/safing/pwgen/log"
	"github.com/safing/pwgen/passwgen"
	"github.com/safing/pwgen/rng"
	"github.com/safing/pwgen/run"
)

var (
	dataDirFlag  string
	logLevelFlag string
	cipherFlag   string

	settings config.Settings
	exitCode = run.ExitOK
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "pwgen",
	Short: "Generate passwords from a seeded random pool",
	Long: "Generates passwords and passphrases from character sets, word lists and format strings. " +
		"Output is drawn from an entropy pool that is persisted in a seed file.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: prepare,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Directory holding the seed file (default: $PWGEN_DATA_DIR or XDG data home)")
	RootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: trace, debug, info, warning, error or critical")
	RootCmd.PersistentFlags().StringVar(&cipherFlag, "cipher", "", "Pool cipher: chacha20, chacha8, aes-ctr or serpent-ctr")
	RootCmd.PersistentFlags().BoolVar(&run.PrintStackOnExit, "print-stack", false, "Print goroutine stacks on exit")
}

// Execute runs the command line and returns the exit code.
func Execute() int {
	defer log.Shutdown()

	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		return run.ExitError
	}
	return exitCode
}

// prepare applies the environment and flags before any command runs.
func prepare(cmd *cobra.Command, args []string) error {
	if err := config.ParseEnv(&settings); err != nil {
		return err
	}
	if dataDirFlag != "" {
		settings.DataDir = dataDirFlag
	}
	if logLevelFlag != "" {
		settings.LogLevel = logLevelFlag
	}
	if cipherFlag != "" {
		settings.Cipher = cipherFlag
	}

	level := log.ParseLevel(settings.LogLevel)
	if level == 0 {
		return fmt.Errorf("invalid log level %q", settings.LogLevel)
	}
	log.SetLogLevel(level)
	if settings.PkgLogLevels != "" {
		levels, err := log.ParsePkgLevels(settings.PkgLogLevels)
		if err != nil {
			return err
		}
		log.SetPkgLevels(levels)
	}
	if err := log.Start(); err != nil {
		return err
	}

	for _, register := range []func() error{
		rng.RegisterConfig,
		entropy.RegisterConfig,
		passwgen.RegisterConfig,
		crypttext.RegisterConfig,
	} {
		if err := register(); err != nil {
			return err
		}
	}
	if err := settings.Apply(); err != nil {
		return err
	}
	if settings.Cipher != "" {
		if err := config.SetConfigOption(rng.CfgOptionCipherKey, settings.Cipher); err != nil {
			return fmt.Errorf("invalid cipher %q: %w", settings.Cipher, err)
		}
	}
	if len(settings.CommonPasswords) > 0 {
		if err := config.SetConfigOption(passwgen.CfgOptionCommonPasswordsKey, settings.CommonPasswords); err != nil {
			return err
		}
	}

	return dataroot.Initialize(settings.DataDir, 0o700)
}

// lifecycle runs fn with all modules started. The error of fn is reported
// through the exit code.
func lifecycle(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		exitCode = run.Run(func(ctx context.Context) error {
			return fn(ctx, cmd, args)
		})
	}
}
