package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sofmeright/setupenv/src/env"
	"github.com/sofmeright/setupenv/src/output"
)

var conduitCmd = &cobra.Command{
	Use:   "conduit",
	Short: "Print the GASNet conduit for this machine",
	Long: `Print the conduit setupenv would build GASNet for.

CONDUIT in the environment wins; otherwise the hostname is matched against
the configured prefix table.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := env.NewConduitDiscoverer(cfg.Conduits).Discover(env.FromOS())
		if err != nil {
			return classify(err)
		}

		w := cmd.OutOrStdout()
		if !verbose {
			fmt.Fprintln(w, c.Name)
			return nil
		}
		color := output.UseColor()
		switch c.Source {
		case env.SourceHostname:
			fmt.Fprintf(w, "%s (hostname %s matches %q)\n", output.Bold(c.Name, color), c.Hostname, c.Prefix)
		default:
			fmt.Fprintf(w, "%s (from %s)\n", output.Bold(c.Name, color), env.VarConduit)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(conduitCmd)
}
