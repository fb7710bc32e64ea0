package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"market-pulse/internal/marketintel"
	"market-pulse/internal/provider"
	"market-pulse/internal/service"
	"market-pulse/pkg/logger"

	"github.com/spf13/cobra"
)

func newScoreCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute the composite fear & greed index",
		Long:  "Compute the composite fear & greed index from live market data, without going through the server.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			yahoo := provider.NewYahooProvider(a.tracer, a.fetcher, a.cfg.YahooBaseURL)
			quotes := service.NewQuoteService(a.tracer, yahoo, nil, a.cfg.QuoteCacheTTL, logger.WithComponent(a.log, "quotes"))
			intel := marketintel.NewService(a.tracer, quotes, marketintel.DefaultSymbols)

			result, err := intel.FearGreed(cmd.Context())
			if err != nil {
				return fmt.Errorf("compute fear & greed: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			fmt.Fprintf(out, "Fear & Greed: %d (%s)\n", result.Index, result.Label)
			fmt.Fprintln(out, strings.Repeat("-", 40))
			for _, c := range result.Components {
				fmt.Fprintf(out, "%-22s %4d  %5.1f%%\n", c.Name, c.Value, c.WeightPercent)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
