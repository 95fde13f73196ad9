package model

import (
	"encoding/json"
	"sort"
	"time"
)

// -----------------------------------------------------------------------------
// Events
// -----------------------------------------------------------------------------

// Event is a single tracked analytics event.
type Event struct {
	ID        int64          `json:"id"`
	EventType string         `json:"event_type"`
	UserID    *string        `json:"user_id"`              // nil for anonymous events
	Data      map[string]any `json:"data"`                 // Opaque payload
	Timestamp string         `json:"timestamp,omitempty"`  // Insert time, or "just now" on pushed events
	CreatedAt string         `json:"created_at,omitempty"` // SQLite CURRENT_TIMESTAMP (UTC)
}

// timeLayouts are tried in order when parsing server timestamps.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Time returns the event's creation time. created_at is preferred over
// timestamp; ok is false when neither parses.
func (e Event) Time() (t time.Time, ok bool) {
	for _, raw := range []string{e.CreatedAt, e.Timestamp} {
		if raw == "" {
			continue
		}
		if t, ok := ParseTime(raw); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseTime parses a server timestamp. Values without a zone are UTC.
func ParseTime(raw string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// EventsResponse from GET /events
type EventsResponse struct {
	Events  []Event `json:"events"`
	Total   int64   `json:"total"`
	Showing string  `json:"showing,omitempty"`
}

// -----------------------------------------------------------------------------
// Aggregates
// -----------------------------------------------------------------------------

// StatsSnapshot holds the dashboard counters (GET /stats, stats_update).
type StatsSnapshot struct {
	TotalEvents    int64            `json:"total_events"`
	UniqueUsers    int64            `json:"unique_users"`
	EventsLastHour int64            `json:"events_last_hour"`
	EventTypes     map[string]int64 `json:"event_types"`
}

// UnmarshalJSON accepts the server's "event_last_hour" spelling when the
// documented "events_last_hour" key is absent.
func (s *StatsSnapshot) UnmarshalJSON(data []byte) error {
	var wire struct {
		TotalEvents    int64            `json:"total_events"`
		UniqueUsers    int64            `json:"unique_users"`
		EventsLastHour *int64           `json:"events_last_hour"`
		EventLastHour  *int64           `json:"event_last_hour"`
		EventTypes     map[string]int64 `json:"event_types"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*s = StatsSnapshot{
		TotalEvents: wire.TotalEvents,
		UniqueUsers: wire.UniqueUsers,
		EventTypes:  wire.EventTypes,
	}
	switch {
	case wire.EventsLastHour != nil:
		s.EventsLastHour = *wire.EventsLastHour
	case wire.EventLastHour != nil:
		s.EventsLastHour = *wire.EventLastHour
	}
	if s.EventTypes == nil {
		s.EventTypes = map[string]int64{}
	}
	return nil
}

// TypeCount is one entry of the event-type distribution.
type TypeCount struct {
	Type  string
	Count int64
}

// OrderedEventTypes returns the event-type counts ordered by count
// descending, then by name.
func (s StatsSnapshot) OrderedEventTypes() []TypeCount {
	return OrderEventTypes(s.EventTypes)
}

// OrderEventTypes orders a type→count mapping by count descending, then name.
func OrderEventTypes(types map[string]int64) []TypeCount {
	out := make([]TypeCount, 0, len(types))
	for name, count := range types {
		out = append(out, TypeCount{Type: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// FunnelStages is the canonical order of the conversion funnel.
var FunnelStages = []string{
	"page_view",
	"product_view",
	"add_to_cart",
	"user_signup",
	"purchase",
}

// FunnelSnapshot holds per-stage user counts and conversion percentages.
type FunnelSnapshot struct {
	Counts     map[string]int64   `json:"funnel_counts"`
	Rates      map[string]float64 `json:"conversion_rates"` // Empty when no user reached the first stage
	TotalUsers int64              `json:"total_users"`
}

// Segments is the canonical display order of intent segments.
var Segments = []string{
	"converted",
	"high_intent",
	"medium_intent",
	"low_intent",
}

// SegmentMember is a user classified into a segment.
type SegmentMember struct {
	UserID      *string `json:"user_id"`
	TotalEvents int64   `json:"total_events"`
	LastEvent   *string `json:"last_event"`
}

// SegmentationSnapshot maps a segment name to its members.
type SegmentationSnapshot map[string][]SegmentMember

// -----------------------------------------------------------------------------
// Journeys
// -----------------------------------------------------------------------------

// AnonymousKey is the journey key the server uses for events without a user.
const AnonymousKey = "null"

// UserActivity from GET /user-activity. Each journey is oldest first.
type UserActivity struct {
	Journeys map[string][]Event `json:"user_journeys"`
}

// UserPattern summarizes one user's recent behaviour.
type UserPattern struct {
	TotalEvents    int64    `json:"total_events"`
	EventSequence  []string `json:"event_sequence"`
	Converted      bool     `json:"converted"`
	AddedToCart    bool     `json:"added_to_cart"`
	ViewedProducts bool     `json:"viewed_products"`
	Signup         bool     `json:"signup"`
}

// UserPatterns from GET /user-patterns
type UserPatterns struct {
	Patterns map[string]UserPattern `json:"user_patterns"`
}

// Users returns the pattern keys, busiest first, ties by name.
func (p UserPatterns) Users() []string {
	users := make([]string, 0, len(p.Patterns))
	for u := range p.Patterns {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		a, b := p.Patterns[users[i]], p.Patterns[users[j]]
		if a.TotalEvents != b.TotalEvents {
			return a.TotalEvents > b.TotalEvents
		}
		return users[i] < users[j]
	})
	return users
}

// AnomalyReport from GET /anomalies. The server does not fix its shape,
// so it is kept as decoded JSON.
type AnomalyReport map[string]any

// -----------------------------------------------------------------------------
// Commands
// -----------------------------------------------------------------------------

// TrackRequest is the body of POST /track.
type TrackRequest struct {
	EventType string         `json:"event_type"`
	UserID    *string        `json:"user_id"`
	Data      map[string]any `json:"data"`
}

// TrackResponse from POST /track
type TrackResponse struct {
	Status      string `json:"status"`
	EventID     int64  `json:"event_id"`
	TotalEvents int64  `json:"total_events"`
}

// DemoTrafficResponse from POST /demo/generate-traffic
type DemoTrafficResponse struct {
	Status       string `json:"status"`
	UsersCreated int    `json:"users_created"`
}

// ClearResponse from DELETE /events
type ClearResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Health from GET /health
type Health struct {
	Status   string   `json:"status"`
	Service  string   `json:"service"`
	Version  string   `json:"version"`
	Features []string `json:"features"`
}

// AnomalyGenerationResponse from POST /demo/generate-anomalies
type AnomalyGenerationResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
