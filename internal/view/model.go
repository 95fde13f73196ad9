package view

import (
	"sort"
	"time"

	"github.com/rickgao/streamcommerce-dash/internal/connection"
	"github.com/rickgao/streamcommerce-dash/internal/model"
)

// Defaults
const (
	DefaultMaxEvents       = 20
	DefaultNotificationTTL = 3 * time.Second
)

// Config configures a Model.
type Config struct {
	MaxEvents       int            // Event table cap (default 20)
	NotificationTTL time.Duration  // Lifetime of new-event notifications (default 3s)
	Location        *time.Location // Zone for displayed times and hour buckets (default time.Local)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxEvents:       DefaultMaxEvents,
		NotificationTTL: DefaultNotificationTTL,
		Location:        time.Local,
	}
}

// ConnectionStatus is the status indicator.
type ConnectionStatus struct {
	State   connection.State
	Attempt int
	Since   time.Time
}

// StatsPanel holds the four counters.
type StatsPanel struct {
	TotalEvents    int64
	UniqueUsers    int64
	EventsLastHour int64
	EventTypes     int // number of distinct event types
}

// EventRow is one row of the recent-events table.
type EventRow struct {
	Seq       uint64 // Local row identity, unique per Model
	Event     model.Event
	Highlight bool // Set on pushed rows until ClearHighlight
}

// FunnelStage is one funnel panel entry.
type FunnelStage struct {
	Name  string
	Count int64
	Rate  float64 // percent of the first stage
}

// SegmentCount is one segmentation panel entry.
type SegmentCount struct {
	Name  string
	Users int
}

// Notification is a transient "New <type> event" toast.
type Notification struct {
	ID        uint64
	Text      string
	ExpiresAt time.Time
}

// Snapshot is a full replacement of the view's data, either from an
// initial_data message or from a fallback fetch. Nil Funnel or
// Segmentation leaves the corresponding panel unchanged.
type Snapshot struct {
	Stats        model.StatsSnapshot
	Events       []model.Event
	Funnel       *model.FunnelSnapshot
	Segmentation model.SegmentationSnapshot
}

// Model is the complete visible state of the dashboard.
type Model struct {
	Connection    ConnectionStatus
	Stats         StatsPanel
	Events        []EventRow // Most recent first, at most MaxEvents
	Charts        Charts
	Funnel        []FunnelStage
	FunnelUsers   int64
	Segments      []SegmentCount
	Notifications []Notification
	LastUpdate    time.Time

	cfg     Config
	nextSeq uint64
	nextID  uint64
}

// New creates an empty Model. Zero config fields take their defaults.
func New(cfg Config) *Model {
	if cfg.MaxEvents < 1 {
		cfg.MaxEvents = DefaultMaxEvents
	}
	if cfg.NotificationTTL <= 0 {
		cfg.NotificationTTL = DefaultNotificationTTL
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	m := &Model{cfg: cfg}
	m.Funnel = BuildFunnel(model.FunnelSnapshot{})
	m.Segments = BuildSegments(nil)
	return m
}

// Config returns the model's configuration.
func (m *Model) Config() Config {
	return m.cfg
}

// ApplyInitial replaces counters, the event table, both charts, and the
// funnel and segmentation panels.
func (m *Model) ApplyInitial(s Snapshot, now time.Time) {
	m.ApplyStats(s.Stats, now)

	n := len(s.Events)
	if n > m.cfg.MaxEvents {
		n = m.cfg.MaxEvents
	}
	rows := make([]EventRow, 0, n)
	for _, ev := range s.Events[:n] {
		m.nextSeq++
		rows = append(rows, EventRow{Seq: m.nextSeq, Event: ev})
	}
	m.Events = rows

	m.ApplyCharts(s.Stats.EventTypes, s.Events, now)

	if s.Funnel != nil {
		m.ApplyFunnel(*s.Funnel, now)
	}
	if s.Segmentation != nil {
		m.ApplySegmentation(s.Segmentation, now)
	}
}

// ApplyNewEvent prepends ev to the table, drops rows beyond the cap, and
// raises a notification. It returns the new row's Seq and the
// notification's ID, for ClearHighlight and Dismiss once the
// notification TTL has elapsed.
func (m *Model) ApplyNewEvent(ev model.Event, now time.Time) (rowSeq, noteID uint64) {
	m.nextSeq++
	rowSeq = m.nextSeq

	rows := make([]EventRow, 0, m.cfg.MaxEvents)
	rows = append(rows, EventRow{Seq: rowSeq, Event: ev, Highlight: true})
	for _, r := range m.Events {
		if len(rows) == m.cfg.MaxEvents {
			break
		}
		rows = append(rows, r)
	}
	m.Events = rows

	m.nextID++
	noteID = m.nextID
	m.Notifications = append(m.Notifications, Notification{
		ID:        noteID,
		Text:      "New " + ev.EventType + " event",
		ExpiresAt: now.Add(m.cfg.NotificationTTL),
	})

	m.LastUpdate = now
	return rowSeq, noteID
}

// ApplyStats replaces every counter with the values in s.
func (m *Model) ApplyStats(s model.StatsSnapshot, now time.Time) {
	m.Stats = StatsPanel{
		TotalEvents:    s.TotalEvents,
		UniqueUsers:    s.UniqueUsers,
		EventsLastHour: s.EventsLastHour,
		EventTypes:     len(s.EventTypes),
	}
	m.LastUpdate = now
}

// ApplyCharts rebuilds both charts.
func (m *Model) ApplyCharts(eventTypes map[string]int64, events []model.Event, now time.Time) {
	m.Charts = BuildCharts(eventTypes, events, m.cfg.Location)
	m.LastUpdate = now
}

// ApplyFunnel replaces the funnel panel.
func (m *Model) ApplyFunnel(f model.FunnelSnapshot, now time.Time) {
	m.Funnel = BuildFunnel(f)
	m.FunnelUsers = f.TotalUsers
	m.LastUpdate = now
}

// ApplySegmentation replaces the segmentation panel.
func (m *Model) ApplySegmentation(s model.SegmentationSnapshot, now time.Time) {
	m.Segments = BuildSegments(s)
	m.LastUpdate = now
}

// SetConnection updates the status indicator.
func (m *Model) SetConnection(state connection.State, attempt int, now time.Time) {
	if m.Connection.State != state {
		m.Connection.Since = now
	}
	m.Connection.State = state
	m.Connection.Attempt = attempt
}

// Dismiss removes a notification. Unknown IDs are ignored.
func (m *Model) Dismiss(noteID uint64) {
	for i, n := range m.Notifications {
		if n.ID == noteID {
			m.Notifications = append(m.Notifications[:i:i], m.Notifications[i+1:]...)
			return
		}
	}
}

// ClearHighlight un-highlights a row if it is still in the table.
func (m *Model) ClearHighlight(rowSeq uint64) {
	for i := range m.Events {
		if m.Events[i].Seq == rowSeq {
			m.Events[i].Highlight = false
			return
		}
	}
}

// Clone returns a deep copy safe to hand to another goroutine. Event
// payloads are shared; they are never mutated.
func (m *Model) Clone() Model {
	c := *m
	c.Events = append([]EventRow(nil), m.Events...)
	c.Charts = Charts{
		EventTypes: append([]model.TypeCount(nil), m.Charts.EventTypes...),
		Activity:   append([]HourCount(nil), m.Charts.Activity...),
	}
	c.Funnel = append([]FunnelStage(nil), m.Funnel...)
	c.Segments = append([]SegmentCount(nil), m.Segments...)
	c.Notifications = append([]Notification(nil), m.Notifications...)
	return c
}

// BuildFunnel lays out the funnel in stage order. Server-provided rates
// are used as is; missing rates are derived from the first stage.
func BuildFunnel(f model.FunnelSnapshot) []FunnelStage {
	stages := make([]FunnelStage, 0, len(model.FunnelStages))
	var first int64
	for i, name := range model.FunnelStages {
		count := f.Counts[name]
		if i == 0 {
			first = count
		}

		rate, ok := f.Rates[name]
		if !ok {
			rate = conversionRate(count, first)
		}
		stages = append(stages, FunnelStage{Name: name, Count: count, Rate: rate})
	}
	return stages
}

// conversionRate returns count as a percentage of first, rounded to one decimal.
func conversionRate(count, first int64) float64 {
	if first == 0 {
		return 0
	}
	pct := float64(count) / float64(first) * 100
	return float64(int64(pct*10+0.5)) / 10
}

// BuildSegments lays out segment sizes in canonical order, followed by
// any segments the server added, by name.
func BuildSegments(s model.SegmentationSnapshot) []SegmentCount {
	out := make([]SegmentCount, 0, len(model.Segments))
	known := make(map[string]bool, len(model.Segments))
	for _, name := range model.Segments {
		known[name] = true
		out = append(out, SegmentCount{Name: name, Users: len(s[name])})
	}

	var extra []string
	for name := range s {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		out = append(out, SegmentCount{Name: name, Users: len(s[name])})
	}
	return out
}
