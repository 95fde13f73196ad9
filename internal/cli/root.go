// Package cli implements the dash command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rickgao/streamcommerce-dash/internal/api"
	"github.com/rickgao/streamcommerce-dash/internal/config"
	"github.com/rickgao/streamcommerce-dash/internal/dashboard"
	"github.com/rickgao/streamcommerce-dash/internal/version"
)

// Options holds the persistent flags shared by every command.
type Options struct {
	ConfigPath string
	Server     string
	Token      string
	LogLevel   string
	LogFile    string
}

// NewRootCommand builds the dash command tree. Running dash with no
// subcommand starts the live dashboard.
func NewRootCommand() *cobra.Command {
	opts := &Options{}

	rootCmd := &cobra.Command{
		Use:   "dash",
		Short: "Live dashboard for the StreamCommerce analytics server",
		Long: `dash connects to a StreamCommerce analytics server, keeps a push
channel open, and renders counters, recent events, charts, the
conversion funnel and user segments as they change.

Without a subcommand it starts the full-screen dashboard.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	flags.StringVarP(&opts.Server, "server", "s", "", "analytics server origin (overrides server.url)")
	flags.StringVar(&opts.Token, "token", "", "bearer token (overrides server.token)")
	flags.StringVar(&opts.LogLevel, "log-level", "", "debug, info, warn or error (overrides log.level)")
	flags.StringVar(&opts.LogFile, "log-file", "", "write logs to this file")

	rootCmd.AddCommand(
		newWatchCommand(opts),
		newTailCommand(opts),
		newStatsCommand(opts),
		newEventsCommand(opts),
		newTrackCommand(opts),
		newDemoCommand(opts),
		newClearCommand(opts),
		newHealthCommand(opts),
		newAnomaliesCommand(opts),
		newJourneysCommand(opts),
		newVersionCommand(),
	)

	return rootCmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// loadConfig reads the config file, applies flag overrides and validates.
func loadConfig(opts *Options) (*config.Config, error) {
	cfg, err := config.LoadWithDefaults(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if opts.Server != "" {
		cfg.Server.URL = opts.Server
	}
	if opts.Token != "" {
		cfg.Server.Token = opts.Token
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// setup loads configuration and opens the logger. The returned close
// function releases the log file, if any.
func setup(opts *Options, interactive bool) (*config.Config, *slog.Logger, func(), error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, nil, err
	}

	var out io.Writer = os.Stderr
	closeLog := func() {}
	switch {
	case opts.LogFile != "":
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeLog = func() { f.Close() }
	case interactive:
		out = io.Discard
	}

	logger := NewLogger(cfg.Log, out)
	slog.SetDefault(logger)
	return cfg, logger, closeLog, nil
}

// newClient builds a REST client for one-shot commands.
func newClient(opts *Options) (*api.Client, func(), error) {
	cfg, logger, closeLog, err := setup(opts, false)
	if err != nil {
		return nil, nil, err
	}
	return dashboard.NewAPIClient(cfg, dashboard.NewClientID(), logger), closeLog, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Product, version.String())
		},
	}
}
