package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/safing/pwgen/crypto/hash"
	"github.com/safing/pwgen/crypttext"
	"github.com/safing/pwgen/info"
	"github.com/safing/pwgen/metrics"
	"github.com/safing/pwgen/rng"
	"github.com/safing/pwgen/trigram"
)

var (
	estimateCommon string
	metricsProcess bool
)

func init() {
	trigramCmd := &cobra.Command{
		Use:   "trigram",
		Short: "Manage trigram files",
	}
	trigramCmd.AddCommand(&cobra.Command{
		Use:   "create <wordlist> <output>",
		Short: "Create a trigram file from a word list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := trigram.Create(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("%d trigrams counted\n", total)
			return nil
		},
	})
	RootCmd.AddCommand(trigramCmd)

	RootCmd.AddCommand(&cobra.Command{
		Use:   "selftest",
		Short: "Run the self-tests of the random pool and the hash functions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rng.SelfTest(); err != nil {
				return err
			}
			if err := hash.SelfTest(); err != nil {
				return err
			}
			fmt.Println("all self-tests passed")
			return nil
		},
	})

	estimateCmd := &cobra.Command{
		Use:   "estimate [password]",
		Short: "Estimate the security of a password",
		Long:  "Estimates the security of the password given as argument or read from stdin, based on the character classes it uses.",
		Run:   lifecycle(runEstimate),
	}
	estimateCmd.Flags().StringVar(&estimateCommon, "common", "", "Common password list to check against")
	RootCmd.AddCommand(estimateCmd)

	RootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := rng.OptionsFromConfig()
			if err != nil {
				return err
			}
			fmt.Println(info.FullVersion(
				fmt.Sprintf("pool cipher: %s", opts.Cipher),
				fmt.Sprintf("crypttext versions: %d-%d", crypttext.Version0, crypttext.CurrentVersion),
			))
			return nil
		},
	})

	metricsCmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print metrics in the Prometheus text format",
		Long:  "Starts the random pool and prints the metrics gathered during startup.",
		Args:  cobra.NoArgs,
		Run: lifecycle(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			metrics.WritePrometheus(os.Stdout, metricsProcess)
			return nil
		}),
	}
	metricsCmd.Flags().BoolVar(&metricsProcess, "process", false, "Include process metrics")
	RootCmd.AddCommand(metricsCmd)
}

func runEstimate(ctx context.Context, cmd *cobra.Command, args []string) error {
	if estimateCommon != "" {
		if _, err := generator.LoadCommonPasswords(estimateCommon); err != nil {
			return err
		}
	}

	pw, err := readPasswordArg(args)
	if err != nil {
		return err
	}
	defer pw.Destroy()

	bits, common := generator.EstimateSecurity(pw.String())
	if common {
		fmt.Printf("%d bits (common password)\n", bits)
	} else {
		fmt.Printf("%d bits\n", bits)
	}
	return nil
}
