// Package cmd implements the setupenv command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sofmeright/setupenv/src/config"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "setupenv",
	Short: "Developer environment provisioner",
	Long:  "setupenv: builds GASNet, CMake, LLVM and Terra under one root and runs the installer.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that don't need it.
		if cmd.Name() == "version" || cmd.Name() == "verify" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return &ExitError{Code: exitConfig, Err: fmt.Errorf("loading config: %w", err)}
		}
		if err := config.Validate(cfg); err != nil {
			return &ExitError{Code: exitConfig, Err: err}
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .setupenv.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "setupenv:", err)
		return err
	}
	return nil
}
