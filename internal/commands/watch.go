package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"market-pulse/internal/poller"
	"market-pulse/pkg/logger"

	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "watch <feed>",
		Short: "Poll a feed and print every state change",
		Long:  "Poll a feed on its registered cadence and print each state snapshot as one JSON line until interrupted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, url, err := a.feed(args[0])
			if err != nil {
				return err
			}
			sched, err := d.Cron()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := []poller.Option{
				poller.WithInterval(d.DefaultInterval),
				poller.WithLogger(logger.WithComponent(a.log, "poller")),
				poller.WithTracer(a.tracer),
			}
			if sched != nil {
				opts = append(opts, poller.WithSchedule(sched))
			}
			sub := poller.Start[json.RawMessage](ctx, d.Name, url, a.fetcher, opts...)
			defer sub.Stop()

			return printStates(ctx, cmd, sub, count)
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "exit after printing this many settled states (0 = until interrupted)")
	return cmd
}

func printStates(ctx context.Context, cmd *cobra.Command, sub *poller.Subscription[json.RawMessage], count int) error {
	states, cancel := sub.Watch()
	defer cancel()

	enc := json.NewEncoder(cmd.OutOrStdout())
	settled := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case state, ok := <-states:
			if !ok {
				return nil
			}
			if err := enc.Encode(state); err != nil {
				return fmt.Errorf("write state: %w", err)
			}
			if state.Loading || (state.Data == nil && state.Error == "") {
				continue
			}
			settled++
			if count > 0 && settled >= count {
				return nil
			}
		}
	}
}
