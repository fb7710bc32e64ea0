package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"market-pulse/internal/fetch"

	"github.com/spf13/cobra"
)

func newFetchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <feed>",
		Short: "Fetch a feed once and print the JSON",
		Long:  "Fetch a feed once through the retrying client. Failures report the error kind and attempt count.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, url, err := a.feed(args[0])
			if err != nil {
				return err
			}

			var body json.RawMessage
			if err := a.fetcher.GetJSON(cmd.Context(), url, &body); err != nil {
				var ferr *fetch.Error
				if errors.As(err, &ferr) {
					return fmt.Errorf("%s failed (%s, %d attempts): %w", args[0], ferr.Kind, ferr.Attempts, err)
				}
				return err
			}

			pretty, err := json.MarshalIndent(body, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(pretty))
			return nil
		},
	}
}
