package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sofmeright/setupenv/src/env"
	"github.com/sofmeright/setupenv/src/output"
	"github.com/sofmeright/setupenv/src/provision"
)

var (
	runRoot        string
	runForce       bool
	runSkipInstall bool
	runThreads     int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Provision the toolchain and run the installer",
	Long: `Validate the environment, pick the GASNet conduit, then make sure
GASNet, CMake, LLVM and Terra are built under the root directory before
invoking the installer.

Dependencies already marked complete are reused. A directory left behind by
an interrupted run is refused unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runRoot, "root", "", "root directory for dependencies (default: config root_dir or working directory)")
	runCmd.Flags().BoolVar(&runForce, "force", false, "discard and rebuild incomplete dependency directories")
	runCmd.Flags().BoolVar(&runSkipInstall, "skip-install", false, "provision dependencies without running the installer")
	runCmd.Flags().IntVarP(&runThreads, "jobs", "j", 0, "parallel make jobs (default: number of CPUs)")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, err := resolveRoot(runRoot)
	if err != nil {
		return &ExitError{Code: exitFailure, Err: err}
	}

	w := os.Stdout
	color := output.UseColor()

	p := provision.New(cfg, env.FromOS(), root, verbose)
	p.Force = runForce
	p.SkipInstall = runSkipInstall
	if runThreads > 0 {
		p.Threads = runThreads
	}

	res, runErr := p.Run(ctx)
	renderSummary(w, res, color)

	if runErr != nil {
		if ctx.Err() != nil {
			runErr = fmt.Errorf("interrupted: %w", runErr)
		}
		return classify(runErr)
	}
	return nil
}

func renderSummary(w *os.File, res *provision.Result, color bool) {
	if res == nil || (res.Conduit.Name == "" && len(res.Steps) == 0) {
		return
	}

	output.ContextBlock(w, []output.KV{
		{Key: "Root", Value: res.Layout.Root},
		{Key: "Conduit", Value: string(res.Conduit.Source) + ":" + res.Conduit.Name},
	})

	sec := output.NewSection(w, "Summary", res.Duration, color)
	overall := "success"
	for _, s := range res.Steps {
		detail := s.Dir
		if s.Error != nil {
			overall = "failed"
			detail = s.Error.Error()
		}
		output.SummaryRow(w, s.Name, s.Status, detail, color)
	}
	sec.Separator()
	output.SummaryTotal(w, res.Duration, overall, color)
	sec.Close()
}

// resolveRoot picks the --root flag, then the config root_dir, then the
// working directory, and makes the result absolute.
func resolveRoot(flag string) (string, error) {
	root := flag
	if root == "" {
		root = cfg.RootDir
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting working directory: %w", err)
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving root %s: %w", root, err)
	}
	return abs, nil
}
