package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sofmeright/setupenv/src/gitrepo"
	"github.com/sofmeright/setupenv/src/output"
	"github.com/sofmeright/setupenv/src/provision"
)

var updateRoot string

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fast-forward the cloned dependencies",
	Long: `Pull the GASNet and Terra checkouts with fast-forward only.

Checkouts pinned to a tag are left alone. Diverged history is reported and
never merged. Rebuilding after an update is up to the caller.`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().StringVar(&updateRoot, "root", "", "root directory for dependencies (default: config root_dir or working directory)")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, err := resolveRoot(updateRoot)
	if err != nil {
		return &ExitError{Code: exitFailure, Err: err}
	}
	layout, err := provision.NewLayout(root, cfg)
	if err != nil {
		return &ExitError{Code: exitConfig, Err: err}
	}

	w := os.Stdout
	color := output.UseColor()
	client := &gitrepo.Client{Verbose: verbose, Stderr: os.Stderr}
	if verbose {
		client.Progress = os.Stderr
	}

	start := time.Now()
	output.SectionStart(w, "setupenv_update", "update")
	sec := output.NewSection(w, "Update", 0, color)

	var failed []error
	for _, d := range layout.Dependencies() {
		if !d.Cloned {
			continue
		}

		state, err := provision.Inspect(d.Dir)
		if err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", d.Name, err))
			output.SummaryRow(w, d.Name, "failed", err.Error(), color)
			continue
		}
		if state != provision.StateComplete {
			output.SummaryRow(w, d.Name, "skipped", state.String()+", run setupenv run first", color)
			continue
		}

		err = client.Update(ctx, d.Dir)
		switch {
		case err == nil:
			output.SummaryRow(w, d.Name, "success", d.Dir, color)
		case errors.Is(err, gitrepo.ErrDetachedHead):
			output.SummaryRow(w, d.Name, "skipped", "pinned, not updated", color)
		default:
			failed = append(failed, fmt.Errorf("%s: %w", d.Name, err))
			output.SummaryRow(w, d.Name, "failed", err.Error(), color)
		}
	}

	status := "success"
	if len(failed) > 0 {
		status = "failed"
	}
	sec.Separator()
	output.SummaryTotal(w, time.Since(start), status, color)
	sec.Close()
	output.SectionEnd(w, "setupenv_update")

	if len(failed) > 0 {
		return &ExitError{Code: exitFailure, Err: errors.Join(failed...)}
	}
	return nil
}
