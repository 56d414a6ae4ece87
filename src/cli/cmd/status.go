package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sofmeright/setupenv/src/output"
	"github.com/sofmeright/setupenv/src/provision"
)

var statusRoot string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which dependencies are provisioned",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusRoot, "root", "", "root directory for dependencies (default: config root_dir or working directory)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(statusRoot)
	if err != nil {
		return &ExitError{Code: exitFailure, Err: err}
	}
	layout, err := provision.NewLayout(root, cfg)
	if err != nil {
		return &ExitError{Code: exitConfig, Err: err}
	}

	w := cmd.OutOrStdout()
	color := output.UseColor()

	sec := output.NewSection(w, "Status", 0, color)
	sec.Row("%-12s%s", "root", layout.Root)
	sec.Separator()
	incomplete := 0
	for _, d := range layout.Dependencies() {
		state, err := provision.Inspect(d.Dir)
		if err != nil {
			return &ExitError{Code: exitFailure, Err: fmt.Errorf("%s: %w", d.Name, err)}
		}

		detail := d.Dir
		switch state {
		case provision.StateComplete:
			if m, err := provision.ReadMarker(d.Dir); err == nil {
				detail = d.Dir + "  " + output.Dimmed(describeMarker(m), color)
			}
		case provision.StateIncomplete:
			incomplete++
		}
		output.SummaryRow(w, d.Name, state.String(), detail, color)
	}
	sec.Close()

	if incomplete > 0 {
		return &ExitError{
			Code: exitIncomplete,
			Err:  fmt.Errorf("%d dependencies incomplete: %w", incomplete, provision.ErrIncomplete),
		}
	}
	return nil
}

func describeMarker(m provision.Marker) string {
	var s string
	switch {
	case m.Version != "":
		s = m.Version
	case m.Ref != "":
		s = m.Ref
	default:
		s = "default branch"
	}
	return s + ", built " + m.Completed.Local().Format(time.DateTime)
}
