package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rickgao/streamcommerce-dash/internal/api"
	"github.com/rickgao/streamcommerce-dash/internal/dashboard"
	"github.com/rickgao/streamcommerce-dash/internal/model"
	"github.com/rickgao/streamcommerce-dash/internal/poller"
	"github.com/rickgao/streamcommerce-dash/internal/view"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}

func newStatsCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print counters, the conversion funnel and user segments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeLog, err := newClient(opts)
			if err != nil {
				return err
			}
			defer closeLog()

			p := poller.New(poller.DefaultConfig(), client, nil, nil, nil)
			snap, err := p.Fetch(cmd.Context())
			if err != nil {
				return err
			}
			printSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func printSnapshot(w io.Writer, s *poller.Snapshot) {
	fmt.Fprintf(w, "Total events:      %s\n", humanize.Comma(s.Stats.TotalEvents))
	fmt.Fprintf(w, "Unique users:      %s\n", humanize.Comma(s.Stats.UniqueUsers))
	fmt.Fprintf(w, "Events last hour:  %s\n", humanize.Comma(s.Stats.EventsLastHour))

	types := newTable("EVENT TYPE", "COUNT")
	for _, tc := range s.Stats.OrderedEventTypes() {
		types.Row(tc.Type, humanize.Comma(tc.Count))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, types.String())

	if s.Funnel != nil {
		funnel := newTable("STAGE", "USERS", "RATE")
		for _, st := range view.BuildFunnel(*s.Funnel) {
			funnel.Row(st.Name, humanize.Comma(st.Count), strconv.FormatFloat(st.Rate, 'f', -1, 64)+"%")
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Conversion funnel (%s users)\n", humanize.Comma(s.Funnel.TotalUsers))
		fmt.Fprintln(w, funnel.String())
	}

	if s.Segmentation != nil {
		segments := newTable("SEGMENT", "USERS")
		for _, sc := range view.BuildSegments(s.Segmentation) {
			segments.Row(sc.Name, strconv.Itoa(sc.Users))
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, segments.String())
	}
}

func newEventsCommand(opts *Options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the most recent events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeLog, err := newClient(opts)
			if err != nil {
				return err
			}
			defer closeLog()

			resp, err := client.GetEvents(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printEvents(cmd.OutOrStdout(), resp, time.Local)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", api.DefaultEventLimit, "number of events to fetch")
	return cmd
}

func printEvents(w io.Writer, resp *model.EventsResponse, loc *time.Location) {
	t := newTable("ID", "TYPE", "USER", "DATA", "TIME")
	for _, ev := range resp.Events {
		r := view.EventRow{Event: ev}
		t.Row("#"+strconv.FormatInt(ev.ID, 10), ev.EventType, r.User(), r.Preview(), r.When(loc))
	}
	fmt.Fprintln(w, t.String())
	fmt.Fprintf(w, "%d of %s events\n", len(resp.Events), humanize.Comma(resp.Total))
}

func newTrackCommand(opts *Options) *cobra.Command {
	var (
		data      []string
		user      string
		anonymous bool
	)

	cmd := &cobra.Command{
		Use:   "track <event-type>",
		Short: "Send one event to the server",
		Long: `Send one event. Without --user the event is attributed to a random
test_user_<n>. Data values that parse as JSON keep their type:

  dash track purchase --data amount=49.99 --data sku=ABC-1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := ParseData(data)
			if err != nil {
				return err
			}

			client, closeLog, err := newClient(opts)
			if err != nil {
				return err
			}
			defer closeLog()

			req := model.TrackRequest{EventType: args[0], Data: payload}
			if !anonymous {
				if user == "" {
					user = dashboard.TestUserID()
				}
				req.UserID = &user
			}

			resp, err := client.Track(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tracked %s event #%d (%s total)\n",
				args[0], resp.EventID, humanize.Comma(resp.TotalEvents))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&data, "data", "d", nil, "payload field as key=value (repeatable)")
	cmd.Flags().StringVarP(&user, "user", "u", "", "user id (default random test user)")
	cmd.Flags().BoolVar(&anonymous, "anonymous", false, "send without a user id")
	return cmd
}

// ParseData turns key=value pairs into an event payload. Values that are
// valid JSON are decoded; anything else is kept as a string.
func ParseData(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid data %q: want key=value", pair)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		out[key] = v
	}
	return out, nil
}

func newDemoCommand(opts *Options) *cobra.Command {
	var anomalies bool

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Ask the server to generate demo traffic",
		Long: `Ask the server to generate a few realistic user journeys. With
--anomalies it instead sends a traffic spike, outsized purchases and a
hyperactive user, which takes several seconds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeLog, err := newClient(opts)
			if err != nil {
				return err
			}
			defer closeLog()

			if anomalies {
				resp, err := client.GenerateAnomalies(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s. Run \"dash anomalies\" to inspect.\n", resp.Status)
				return nil
			}

			resp, err := client.GenerateDemoTraffic(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Demo traffic generated for %d users\n", resp.UsersCreated)
			return nil
		},
	}

	cmd.Flags().BoolVar(&anomalies, "anomalies", false, "generate anomalous traffic instead")
	return cmd
}

func newClearCommand(opts *Options) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every event on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete all events without --yes")
			}

			client, closeLog, err := newClient(opts)
			if err != nil {
				return err
			}
			defer closeLog()

			resp, err := client.ClearEvents(cmd.Context())
			if err != nil {
				return err
			}
			msg := resp.Message
			if msg == "" {
				msg = "All events cleared"
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deletion")
	return cmd
}

func newHealthCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the server is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeLog, err := newClient(opts)
			if err != nil {
				return err
			}
			defer closeLog()

			h, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s %s: %s\n", h.Service, h.Version, h.Status)
			if len(h.Features) > 0 {
				fmt.Fprintf(w, "features: %s\n", strings.Join(h.Features, ", "))
			}
			return nil
		},
	}
}
