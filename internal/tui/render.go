package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/rickgao/streamcommerce-dash/internal/connection"
	"github.com/rickgao/streamcommerce-dash/internal/model"
	"github.com/rickgao/streamcommerce-dash/internal/view"
)

const (
	minWidth     = 60
	defaultWidth = 100
	barWidth     = 30
)

// Render draws the whole dashboard for a terminal of the given width.
func Render(m view.Model, width int, now time.Time) string {
	if width <= 0 {
		width = defaultWidth
	}
	if width < minWidth {
		width = minWidth
	}

	sections := []string{
		renderHeader(m, now),
	}
	if toasts := renderNotifications(m); toasts != "" {
		sections = append(sections, toasts)
	}
	sections = append(sections,
		renderCounters(m.Stats),
		renderEvents(m, width),
		renderEventTypes(m.Charts.EventTypes),
		renderActivity(m.Charts.Activity),
		renderFunnel(m.Funnel, m.FunnelUsers),
		renderSegments(m.Segments),
	)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// StatusText is the connection indicator label.
func StatusText(c view.ConnectionStatus) string {
	if c.State == connection.StateConnected {
		return "● Live Updates Active"
	}
	return "● Connecting..."
}

func renderHeader(m view.Model, now time.Time) string {
	title := titleStyle.Render("StreamCommerce Analytics")

	status := downStyle.Render(StatusText(m.Connection))
	if m.Connection.State == connection.StateConnected {
		status = liveStyle.Render(StatusText(m.Connection))
	} else if m.Connection.Attempt > 0 {
		status += dimStyle.Render(fmt.Sprintf(" (retry %d)", m.Connection.Attempt))
	}

	updated := "never updated"
	if !m.LastUpdate.IsZero() {
		updated = "updated " + humanize.RelTime(m.LastUpdate, now, "ago", "from now")
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		title, "  ", status, "  ", dimStyle.Render(updated),
	)
}

func renderNotifications(m view.Model) string {
	if len(m.Notifications) == 0 {
		return ""
	}
	toasts := make([]string, 0, len(m.Notifications))
	for _, n := range m.Notifications {
		toasts = append(toasts, toastStyle.Render(n.Text))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, toasts...)
}

func renderCounters(s view.StatsPanel) string {
	counter := func(label string, v int64) string {
		return counterStyle.Render(
			lipgloss.JoinVertical(lipgloss.Left,
				counterValueStyle.Render(humanize.Comma(v)),
				dimStyle.Render(label),
			),
		)
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		counter("Total Events", s.TotalEvents),
		counter("Unique Users", s.UniqueUsers),
		counter("Last Hour", s.EventsLastHour),
		counter("Event Types", int64(s.EventTypes)),
	)
}

func renderEvents(m view.Model, width int) string {
	title := sectionStyle.Render("Recent Events")
	if len(m.Events) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title,
			dimStyle.Render("  No events yet. Waiting for activity..."))
	}

	loc := m.Config().Location

	// ID, type, user and time columns are fixed; data gets the rest.
	const fixed = 8 + 3 + 16 + 3 + 16 + 3 + 10 + 3
	dataWidth := width - fixed
	if dataWidth < 10 {
		dataWidth = 10
	}

	format := "%-8s │ %-16s │ %-16s │ %-" + strconv.Itoa(dataWidth) + "s │ %s"
	rows := []string{
		title,
		headerStyle.Render(fmt.Sprintf(format, "ID", "TYPE", "USER", "DATA", "TIME")),
	}
	for _, r := range m.Events {
		line := fmt.Sprintf(format,
			"#"+strconv.FormatInt(r.Event.ID, 10),
			truncate(r.Event.EventType, 16),
			truncate(r.User(), 16),
			truncate(r.Preview(), dataWidth),
			r.When(loc),
		)
		if r.Highlight {
			line = highlightStyle.Render(line)
		}
		rows = append(rows, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderEventTypes(types []model.TypeCount) string {
	title := sectionStyle.Render("Event Types")
	if len(types) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, dimStyle.Render("  no data"))
	}

	var total, max int64
	for _, t := range types {
		total += t.Count
		if t.Count > max {
			max = t.Count
		}
	}

	rows := []string{title}
	for _, t := range types {
		pct := 0.0
		if total > 0 {
			pct = float64(t.Count) / float64(total) * 100
		}
		rows = append(rows, fmt.Sprintf("  %-16s %s %s (%.1f%%)",
			truncate(t.Type, 16),
			barStyle.Render(bar(t.Count, max, barWidth)),
			humanize.Comma(t.Count),
			pct,
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderActivity(hours []view.HourCount) string {
	title := sectionStyle.Render("Events per Hour")
	if len(hours) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, dimStyle.Render("  no data"))
	}

	var max int64
	for _, h := range hours {
		if int64(h.Count) > max {
			max = int64(h.Count)
		}
	}

	rows := []string{title}
	for _, h := range hours {
		rows = append(rows, fmt.Sprintf("  %02d:00 %s %d",
			h.Hour,
			barStyle.Render(bar(int64(h.Count), max, barWidth)),
			h.Count,
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderFunnel(stages []view.FunnelStage, users int64) string {
	title := sectionStyle.Render(fmt.Sprintf("Conversion Funnel (%s users)", humanize.Comma(users)))

	rows := []string{title}
	for _, s := range stages {
		rows = append(rows, fmt.Sprintf("  %-14s %8s  %6s",
			stageLabel(s.Name),
			humanize.Comma(s.Count),
			strconv.FormatFloat(s.Rate, 'f', -1, 64)+"%",
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderSegments(segments []view.SegmentCount) string {
	cells := make([]string, 0, len(segments))
	for _, s := range segments {
		cells = append(cells, fmt.Sprintf("%s %s", stageLabel(s.Name), counterValueStyle.Render(strconv.Itoa(s.Users))))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		sectionStyle.Render("User Segments"),
		"  "+strings.Join(cells, "  │  "),
	)
}

// RenderFooter draws the key help and the last action's result.
func RenderFooter(status string) string {
	keys := footerStyle.Render("[t] test event  [1-5] funnel event  [g] demo traffic  [r] refresh  [c] clear  [q] quit")
	if status == "" {
		return keys
	}
	return lipgloss.JoinVertical(lipgloss.Left, keys, dimStyle.Render(status))
}

// bar returns a bar of up to width cells proportional to v/max. Non-zero
// values always get at least one cell.
func bar(v, max int64, width int) string {
	if v <= 0 || max <= 0 {
		return ""
	}
	n := int(v * int64(width) / max)
	if n < 1 {
		n = 1
	}
	return strings.Repeat("█", n)
}

// stageLabel turns "add_to_cart" into "Add To Cart".
func stageLabel(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// truncate shortens s to n runes, marking the cut with "…".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
