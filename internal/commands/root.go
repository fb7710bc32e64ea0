package commands

import (
	"fmt"
	"strings"

	"market-pulse/internal/config"
	"market-pulse/internal/feed"
	"market-pulse/internal/fetch"
	"market-pulse/pkg/logger"
	"market-pulse/pkg/tracing"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
)

// app carries what every subcommand needs. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	tracer   trace.Tracer
	fetcher  *fetch.Client
	registry *feed.Registry
}

func (a *app) init(cmd *cobra.Command, verbose bool, apiBase string) error {
	_ = godotenv.Load()
	a.cfg = config.Load()
	if apiBase = strings.TrimSpace(apiBase); apiBase != "" {
		a.cfg.APIBaseURL = strings.TrimRight(apiBase, "/")
	}

	level := a.cfg.LogLevel
	if level == "" {
		level = "warn"
	}
	if verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Options{Level: level, Format: a.cfg.LogFormat, Output: "stderr"})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log.SetOutput(cmd.ErrOrStderr())
	a.log = log

	_, tracer, err := tracing.Init(cmd.Context(), "pulsectl", tracing.Options{Enabled: false})
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	a.tracer = tracer

	a.fetcher = fetch.New(tracer,
		fetch.WithTimeout(a.cfg.FetchTimeout),
		fetch.WithMaxRetries(a.cfg.FetchMaxRetries),
		fetch.WithBackoff(a.cfg.FetchBackoffBase, a.cfg.FetchBackoffMax),
		fetch.WithUserAgent(a.cfg.UserAgent),
		fetch.WithLogger(logger.WithComponent(log, "fetch")),
	)

	registry, err := feed.NewRegistry(feed.Defaults(a.cfg.APIBaseURL, a.cfg.DefaultSymbols, a.cfg.DefaultSubreddit, a.cfg.NewsFeedURL)...)
	if err != nil {
		return fmt.Errorf("failed to build feed registry: %w", err)
	}
	if a.cfg.FeedsFile != "" {
		if err := registry.Overlay(a.cfg.FeedsFile); err != nil {
			return fmt.Errorf("failed to load feeds file: %w", err)
		}
	}
	a.registry = registry
	return nil
}

func (a *app) feed(name string) (feed.Descriptor, string, error) {
	d, ok := a.registry.Get(name)
	if !ok {
		return feed.Descriptor{}, "", fmt.Errorf("unknown feed %q (see pulsectl feeds)", name)
	}
	url, err := d.URL(nil)
	if err != nil {
		return feed.Descriptor{}, "", err
	}
	return d, url, nil
}

// NewRootCmd builds the pulsectl command tree.
func NewRootCmd() *cobra.Command {
	var (
		verbose bool
		apiBase string
	)
	a := &app{}

	root := &cobra.Command{
		Use:   "pulsectl",
		Short: "Market pulse operator CLI",
		Long: `pulsectl inspects the market-pulse feeds from a terminal.

It uses the same registry, fetch client and scheduler as the server, so a
feed that works here works on the dashboard.`,
		Version:      "1.0.0",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd, verbose, apiBase)
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().StringVar(&apiBase, "api", "", "market-pulse API base URL (defaults to API_BASE_URL)")

	root.AddCommand(
		newFeedsCmd(a),
		newFetchCmd(a),
		newWatchCmd(a),
		newScoreCmd(a),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
