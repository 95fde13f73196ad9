package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/streamcommerce-dash/internal/model"
	"github.com/rickgao/streamcommerce-dash/internal/view"
)

// pathWidth caps the PATH column of the journeys table.
const pathWidth = 60

func newAnomaliesCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "anomalies",
		Short: "Print the server's anomaly detection results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeLog, err := newClient(opts)
			if err != nil {
				return err
			}
			defer closeLog()

			report, err := client.GetAnomalies(cmd.Context())
			if err != nil {
				return err
			}
			return printAnomalies(cmd.OutOrStdout(), report)
		},
	}
}

func printAnomalies(w io.Writer, report model.AnomalyReport) error {
	if len(report) == 0 {
		fmt.Fprintln(w, "No anomalies detected")
		return nil
	}
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode anomalies: %w", err)
	}
	fmt.Fprintln(w, string(b))
	return nil
}

func newJourneysCommand(opts *Options) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "journeys",
		Short: "Summarize recent per-user behaviour",
		Long: `Without --user, print one row per recent user with their event path
and whether they reached the cart or purchased. With --user, print that
user's recent events oldest first. Use --user anonymous for events sent
without a user id.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeLog, err := newClient(opts)
			if err != nil {
				return err
			}
			defer closeLog()

			if user == "" {
				patterns, err := client.GetUserPatterns(cmd.Context())
				if err != nil {
					return err
				}
				printPatterns(cmd.OutOrStdout(), patterns)
				return nil
			}

			activity, err := client.GetUserActivity(cmd.Context())
			if err != nil {
				return err
			}
			key := user
			if strings.EqualFold(user, "anonymous") {
				key = model.AnonymousKey
			}
			journey, ok := activity.Journeys[key]
			if !ok {
				return fmt.Errorf("no recent activity for user %q", user)
			}
			printJourney(cmd.OutOrStdout(), journey, time.Local)
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "show one user's recent events")
	return cmd
}

func displayUser(key string) string {
	if key == model.AnonymousKey || key == "" {
		return "Anonymous"
	}
	return key
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

func printPatterns(w io.Writer, p *model.UserPatterns) {
	if len(p.Patterns) == 0 {
		fmt.Fprintln(w, "No recent user activity")
		return
	}

	t := newTable("USER", "EVENTS", "PATH", "CART", "CONVERTED")
	converted := 0
	for _, u := range p.Users() {
		up := p.Patterns[u]
		if up.Converted {
			converted++
		}
		path := strings.Join(up.EventSequence, " > ")
		if r := []rune(path); len(r) > pathWidth {
			path = string(r[:pathWidth-3]) + "..."
		}
		t.Row(displayUser(u), strconv.FormatInt(up.TotalEvents, 10), path,
			yesNo(up.AddedToCart), yesNo(up.Converted))
	}
	fmt.Fprintln(w, t.String())
	fmt.Fprintf(w, "%d users, %d converted\n", len(p.Patterns), converted)
}

func printJourney(w io.Writer, events []model.Event, loc *time.Location) {
	t := newTable("ID", "TYPE", "DATA", "TIME")
	for _, ev := range events {
		r := view.EventRow{Event: ev}
		t.Row("#"+strconv.FormatInt(ev.ID, 10), ev.EventType, r.Preview(), r.When(loc))
	}
	fmt.Fprintln(w, t.String())
}
