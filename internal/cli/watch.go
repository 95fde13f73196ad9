package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/streamcommerce-dash/internal/dashboard"
	"github.com/rickgao/streamcommerce-dash/internal/tui"
)

const shutdownTimeout = 10 * time.Second

func newWatchCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Show the live dashboard (default)",
		Long: `Open the full-screen dashboard. Keys:

  t      send a page_view test event
  1-5    send a test event for a funnel stage
  g      generate demo traffic
  r      refresh from the REST API
  c      delete all events on the server
  q      quit

Logs are discarded unless --log-file is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}
}

func runWatch(cmd *cobra.Command, opts *Options) error {
	cfg, logger, closeLog, err := setup(opts, true)
	if err != nil {
		return err
	}
	defer closeLog()

	d, _, err := dashboard.FromConfig(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start dashboard: %w", err)
	}
	defer stopDashboard(d, logger)

	return tui.Run(ctx, d)
}

func stopDashboard(d *dashboard.Dashboard, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		logger.Warn("dashboard shutdown incomplete", "error", err)
	}
}
