package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newFeedsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "feeds",
		Short: "List registered feeds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-20s %-12s %s\n", "Feed", "Cadence", "URL")
			fmt.Fprintln(out, strings.Repeat("-", 75))

			for _, d := range a.registry.All() {
				cadence := d.DefaultInterval.String()
				if d.Schedule != "" {
					cadence = d.Schedule
				}
				url, err := d.URL(nil)
				if err != nil {
					url = "error: " + err.Error()
				}
				fmt.Fprintf(out, "%-20s %-12s %s\n", d.Name, cadence, url)
			}

			fmt.Fprintf(out, "\nTotal: %d feeds\n", len(a.registry.All()))
			return nil
		},
	}
}
