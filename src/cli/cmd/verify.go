package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sofmeright/setupenv/src/fetch"
)

var verifyAlgorithm string

var verifyCmd = &cobra.Command{
	Use:   "verify FILE [DIGEST]",
	Short: "Check a file against a digest",
	Long: `Hash FILE and compare it with DIGEST.

DIGEST is a bare 40-character hex SHA-1, or algorithm-prefixed
(sha1:, sha256:, blake3:). Without DIGEST the file's digest is printed
using --algorithm.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		w := cmd.OutOrStdout()

		if len(args) == 1 {
			sum, err := fetch.Sum(path, verifyAlgorithm)
			if err != nil {
				return &ExitError{Code: exitFailure, Err: err}
			}
			fmt.Fprintf(w, "%s:%s  %s\n", verifyAlgorithm, sum, path)
			return nil
		}

		if err := fetch.Verify(path, args[1]); err != nil {
			return classify(err)
		}
		fmt.Fprintf(w, "%s: OK\n", path)
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyAlgorithm, "algorithm", fetch.AlgorithmSHA1, "digest algorithm when printing (sha1, sha256, blake3)")
	rootCmd.AddCommand(verifyCmd)
}
