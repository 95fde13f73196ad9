package router

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/streamcommerce-dash/internal/connection"
)

// recorder is a Handler that records every call.
type recorder struct {
	mu       sync.Mutex
	initial  []InitialData
	events   []NewEvent
	stats    []StatsUpdate
	funnels  []FunnelUpdate
	segments []SegmentationUpdate
	order    []string
}

func (r *recorder) OnInitialData(msg InitialData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initial = append(r.initial, msg)
	r.order = append(r.order, TypeInitialData)
}

func (r *recorder) OnNewEvent(msg NewEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, msg)
	r.order = append(r.order, TypeNewEvent)
}

func (r *recorder) OnStatsUpdate(msg StatsUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = append(r.stats, msg)
	r.order = append(r.order, TypeStatsUpdate)
}

func (r *recorder) OnFunnelUpdate(msg FunnelUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funnels = append(r.funnels, msg)
	r.order = append(r.order, TypeFunnelUpdate)
}

func (r *recorder) OnSegmentationUpdate(msg SegmentationUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments = append(r.segments, msg)
	r.order = append(r.order, TypeSegmentationUpdate)
}

func (r *recorder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func raw(s string) connection.RawMessage {
	return connection.RawMessage{Data: []byte(s), Session: 1, ReceivedAt: time.Now()}
}

func TestRouter_StartStop(t *testing.T) {
	input := make(chan connection.RawMessage, 10)
	r := NewRouter(input, &recorder{}, slog.Default())

	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := r.Stop(stopCtx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestDispatch_InitialData(t *testing.T) {
	rec := &recorder{}
	msgType, err := Dispatch(raw(`{
		"type": "initial_data",
		"stats": {"total_events": 10, "unique_users": 3, "event_last_hour": 4, "event_types": {"page_view": 7, "purchase": 3}},
		"events": [{"id": 2, "event_type": "purchase", "user_id": "u1", "data": {"amount": 9.5}, "created_at": "2024-01-15 12:00:00"},
		           {"id": 1, "event_type": "page_view", "user_id": null, "data": {}, "created_at": "2024-01-15 11:00:00"}],
		"funnel": {"funnel_counts": {"page_view": 3, "purchase": 1}, "conversion_rates": {"page_view": 100, "purchase": 33.3}, "total_users": 3},
		"segmentation": {"converted": [{"user_id": "u1", "total_events": 5, "last_event": "2024-01-15 12:00:00"}], "high_intent": [], "medium_intent": [], "low_intent": []},
		"anomalies": []
	}`), rec)
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if msgType != TypeInitialData {
		t.Errorf("type = %q, want %q", msgType, TypeInitialData)
	}
	if len(rec.initial) != 1 {
		t.Fatalf("OnInitialData called %d times, want 1", len(rec.initial))
	}

	msg := rec.initial[0]
	if msg.Stats.TotalEvents != 10 || msg.Stats.UniqueUsers != 3 || msg.Stats.EventsLastHour != 4 {
		t.Errorf("Stats = %+v", msg.Stats)
	}
	if len(msg.Events) != 2 || msg.Events[0].ID != 2 {
		t.Errorf("Events = %+v", msg.Events)
	}
	if msg.Events[1].UserID != nil {
		t.Errorf("Events[1].UserID = %v, want nil", *msg.Events[1].UserID)
	}
	if msg.Funnel == nil || msg.Funnel.Counts["page_view"] != 3 || msg.Funnel.Rates["purchase"] != 33.3 {
		t.Errorf("Funnel = %+v", msg.Funnel)
	}
	if len(msg.Segmentation["converted"]) != 1 {
		t.Errorf("Segmentation = %+v", msg.Segmentation)
	}
	if msg.Session != 1 {
		t.Errorf("Session = %d, want 1", msg.Session)
	}
}

func TestDispatch_InitialDataWithoutPanels(t *testing.T) {
	rec := &recorder{}
	_, err := Dispatch(raw(`{"type":"initial_data","stats":{"total_events":0,"unique_users":0,"events_last_hour":0,"event_types":{}},"events":[]}`), rec)
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	msg := rec.initial[0]
	if msg.Funnel != nil {
		t.Errorf("Funnel = %+v, want nil", msg.Funnel)
	}
	if msg.Segmentation != nil {
		t.Errorf("Segmentation = %+v, want nil", msg.Segmentation)
	}
}

func TestDispatch_NewEvent(t *testing.T) {
	rec := &recorder{}
	_, err := Dispatch(raw(`{"type":"new_event","data":{"id":42,"event_type":"purchase","user_id":"u9","data":{},"timestamp":"12:00:00"}}`), rec)
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if len(rec.events) != 1 {
		t.Fatalf("OnNewEvent called %d times, want 1", len(rec.events))
	}

	ev := rec.events[0].Event
	if ev.ID != 42 {
		t.Errorf("ID = %d, want 42", ev.ID)
	}
	if ev.EventType != "purchase" {
		t.Errorf("EventType = %s, want purchase", ev.EventType)
	}
	if ev.UserID == nil || *ev.UserID != "u9" {
		t.Errorf("UserID = %v, want u9", ev.UserID)
	}
	if ev.Timestamp != "12:00:00" {
		t.Errorf("Timestamp = %s, want 12:00:00", ev.Timestamp)
	}
}

func TestDispatch_Deltas(t *testing.T) {
	rec := &recorder{}

	msgs := []string{
		`{"type":"stats_update","data":{"total_events":5,"unique_users":2,"events_last_hour":1,"event_types":{"click":5}}}`,
		`{"type":"funnel_update","data":{"funnel_counts":{"page_view":0},"conversion_rates":{},"total_users":0}}`,
		`{"type":"segmentation_update","data":{"converted":[],"high_intent":[{"user_id":"a","total_events":12,"last_event":null}],"medium_intent":[],"low_intent":[]}}`,
	}
	for _, m := range msgs {
		if _, err := Dispatch(raw(m), rec); err != nil {
			t.Fatalf("Dispatch(%s) error: %v", m, err)
		}
	}

	if got := rec.stats[0].Stats; got.TotalEvents != 5 || got.EventTypes["click"] != 5 {
		t.Errorf("Stats = %+v", got)
	}
	if got := rec.funnels[0].Funnel; got.Counts["page_view"] != 0 || len(got.Rates) != 0 {
		t.Errorf("Funnel = %+v", got)
	}
	if got := rec.segments[0].Segmentation; len(got["high_intent"]) != 1 {
		t.Errorf("Segmentation = %+v", got)
	}
}

func TestDispatch_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantType string
	}{
		{"invalid json", `{not json`, ""},
		{"not an object", `[1,2,3]`, ""},
		{"unknown type", `{"type":"anomaly_update","data":[]}`, "anomaly_update"},
		{"missing type", `{"data":{}}`, ""},
		{"new_event without data", `{"type":"new_event"}`, TypeNewEvent},
		{"null stats", `{"type":"stats_update","data":null}`, TypeStatsUpdate},
		{"wrong payload shape", `{"type":"funnel_update","data":[1]}`, TypeFunnelUpdate},
		{"initial without stats", `{"type":"initial_data","events":[]}`, TypeInitialData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			msgType, err := Dispatch(raw(tt.data), rec)
			if err == nil {
				t.Fatal("expected error")
			}
			if msgType != tt.wantType {
				t.Errorf("type = %q, want %q", msgType, tt.wantType)
			}
			if calls := rec.calls(); len(calls) != 0 {
				t.Errorf("handler called: %v", calls)
			}
		})
	}
}

func TestRouter_PreservesArrivalOrder(t *testing.T) {
	input := make(chan connection.RawMessage, 10)
	rec := &recorder{}
	r := NewRouter(input, rec, slog.Default())

	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer r.Stop(ctx)

	input <- raw(`{"type":"stats_update","data":{"total_events":1,"unique_users":1,"events_last_hour":1,"event_types":{}}}`)
	input <- raw(`{"type":"new_event","data":{"id":1,"event_type":"click","data":{}}}`)
	input <- raw(`{"type":"anomaly_update","data":{}}`)
	input <- raw(`garbage`)
	input <- raw(`{"type":"funnel_update","data":{"funnel_counts":{},"conversion_rates":{},"total_users":0}}`)

	deadline := time.Now().Add(time.Second)
	for {
		s := r.Stats()
		if s.MessagesRouted+s.UnknownMessages+s.ParseErrors == 5 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	want := []string{TypeStatsUpdate, TypeNewEvent, TypeFunnelUpdate}
	got := rec.calls()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, got[i], want[i])
		}
	}

	stats := r.Stats()
	if stats.MessagesReceived != 5 {
		t.Errorf("MessagesReceived = %d, want 5", stats.MessagesReceived)
	}
	if stats.MessagesRouted != 3 {
		t.Errorf("MessagesRouted = %d, want 3", stats.MessagesRouted)
	}
	if stats.UnknownMessages != 1 {
		t.Errorf("UnknownMessages = %d, want 1", stats.UnknownMessages)
	}
	if stats.ParseErrors != 1 {
		t.Errorf("ParseErrors = %d, want 1", stats.ParseErrors)
	}
	if stats.ByType[TypeNewEvent] != 1 {
		t.Errorf("ByType[new_event] = %d, want 1", stats.ByType[TypeNewEvent])
	}
}

func TestRouter_InputClosed(t *testing.T) {
	input := make(chan connection.RawMessage)
	r := NewRouter(input, &recorder{}, nil)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	close(input)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Stop(stopCtx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestHandlerFuncs_NilFieldsIgnored(t *testing.T) {
	var got int64
	h := HandlerFuncs{
		NewEvent: func(msg NewEvent) { got = msg.Event.ID },
	}

	if _, err := Dispatch(raw(`{"type":"stats_update","data":{"total_events":1}}`), h); err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if _, err := Dispatch(raw(`{"type":"new_event","data":{"id":7,"event_type":"x"}}`), h); err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if got != 7 {
		t.Errorf("got id %d, want 7", got)
	}
}
