package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/streamcommerce-dash/internal/connection"
	"github.com/rickgao/streamcommerce-dash/internal/dashboard"
	"github.com/rickgao/streamcommerce-dash/internal/view"
)

func newTailCommand(opts *Options) *cobra.Command {
	var statsInterval time.Duration

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Log live updates without the full-screen view",
		Long: `Run the same pipeline as the dashboard and log every change to the
view: connection transitions, new table rows and counter updates.
Pipeline statistics are logged every --stats-interval.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := setup(opts, false)
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

			t := newTailer(logger.With("component", "tail", "client_id", d.ClientID()))
			d.Subscribe(t.observe)

			if err := d.Start(ctx); err != nil {
				return fmt.Errorf("start dashboard: %w", err)
			}
			defer stopDashboard(d, logger)

			logger.Info("tailing updates - press Ctrl+C to stop",
				"server", cfg.Server.URL,
				"client_id", d.ClientID(),
			)
			logStats(ctx, d, statsInterval, logger)
			return nil
		},
	}

	cmd.Flags().DurationVar(&statsInterval, "stats-interval", 10*time.Second, "how often to log pipeline statistics (0 disables)")
	return cmd
}

// tailer logs the difference between successive view models. Its
// observe method runs on the dashboard loop goroutine only.
type tailer struct {
	logger *slog.Logger

	state   connection.State
	lastSeq uint64
	stats   view.StatsPanel
	notes   map[uint64]bool
}

func newTailer(logger *slog.Logger) *tailer {
	return &tailer{
		logger: logger,
		state:  connection.StateDisconnected,
		notes:  make(map[uint64]bool),
	}
}

func (t *tailer) observe(m view.Model) {
	if m.Connection.State != t.state {
		t.logger.Info("connection", "status", connectionLabel(m.Connection), "attempt", m.Connection.Attempt)
		t.state = m.Connection.State
	}

	loc := m.Config().Location

	// Rows are newest first; log unseen ones oldest first.
	var maxSeq uint64
	for i := len(m.Events) - 1; i >= 0; i-- {
		r := m.Events[i]
		if r.Seq > maxSeq {
			maxSeq = r.Seq
		}
		if r.Seq <= t.lastSeq {
			continue
		}
		t.logger.Info("event",
			"id", r.Event.ID,
			"type", r.Event.EventType,
			"user", r.User(),
			"when", r.When(loc),
			"data", r.Preview(),
		)
	}
	if maxSeq > t.lastSeq {
		t.lastSeq = maxSeq
	}

	if m.Stats != t.stats {
		t.logger.Info("stats",
			"total_events", m.Stats.TotalEvents,
			"unique_users", m.Stats.UniqueUsers,
			"events_last_hour", m.Stats.EventsLastHour,
			"event_types", m.Stats.EventTypes,
		)
		t.stats = m.Stats
	}

	live := make(map[uint64]bool, len(m.Notifications))
	for _, n := range m.Notifications {
		live[n.ID] = true
		if !t.notes[n.ID] {
			t.logger.Debug("notification", "text", n.Text)
		}
	}
	t.notes = live
}

func connectionLabel(c view.ConnectionStatus) string {
	if c.State == connection.StateConnected {
		return "Live Updates Active"
	}
	return "Connecting..."
}

// logStats logs pipeline statistics until ctx is done.
func logStats(ctx context.Context, d *dashboard.Dashboard, every time.Duration, logger *slog.Logger) {
	if every <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := d.Stats()
			logger.Info("pipeline stats",
				"state", s.Connection.State,
				"connects", s.Connection.Connects,
				"drops", s.Connection.Drops,
				"received", s.Router.MessagesReceived,
				"routed", s.Router.MessagesRouted,
				"parse_errors", s.Router.ParseErrors,
				"unknown", s.Router.UnknownMessages,
				"loop_pending", s.Loop.Pending,
				"chart_refetches", s.Refetches,
				"fallback_fetches", s.Poller.Fetches,
			)
		}
	}
}
