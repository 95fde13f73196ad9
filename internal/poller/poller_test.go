package poller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/streamcommerce-dash/internal/api"
	"github.com/rickgao/streamcommerce-dash/internal/model"
)

// staticStatus reports a fixed connection state.
type staticStatus struct {
	connected atomic.Bool
}

func (s *staticStatus) IsConnected() bool {
	return s.connected.Load()
}

// newAnalyticsServer serves the four read endpoints and counts hits.
func newAnalyticsServer(t *testing.T, failPath string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == failPath {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		switch r.URL.Path {
		case "/stats":
			w.Write([]byte(`{"total_events": 2, "unique_users": 1, "events_last_hour": 2, "event_types": {"click": 2}}`))
		case "/events":
			w.Write([]byte(`{"events": [{"id": 2, "event_type": "click", "data": {}}, {"id": 1, "event_type": "click", "data": {}}]}`))
		case "/funnel-analysis":
			w.Write([]byte(`{"funnel_counts": {"page_view": 1}, "conversion_rates": {"page_view": 100}, "total_users": 1}`))
		case "/user-segmentation":
			w.Write([]byte(`{"converted": [], "high_intent": [], "medium_intent": [], "low_intent": [{"user_id": "u1", "total_events": 2}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return server, &hits
}

func TestPoller_FetchesOnceWhenNeverConnected(t *testing.T) {
	server, _ := newAnalyticsServer(t, "")
	defer server.Close()

	client := api.NewClient(server.URL, "", api.WithTimeout(5*time.Second))
	status := &staticStatus{}

	var calls atomic.Int32
	var got Snapshot
	done := make(chan struct{})
	handler := SnapshotHandlerFunc(func(s Snapshot) {
		if calls.Add(1) == 1 {
			got = s
			close(done)
		}
	})

	cfg := Config{Delay: 30 * time.Millisecond, EventLimit: 20}
	p := New(cfg, client, status, handler, nil)

	start := time.Now()
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was never called")
	}
	if elapsed := time.Since(start); elapsed < cfg.Delay {
		t.Errorf("fetch ran after %v, before the %v delay", elapsed, cfg.Delay)
	}

	// Nothing else may happen afterwards.
	time.Sleep(100 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if n := calls.Load(); n != 1 {
		t.Errorf("handler called %d times, want 1", n)
	}
	if got.Stats.TotalEvents != 2 || len(got.Events) != 2 {
		t.Errorf("snapshot = %+v", got)
	}
	if got.Funnel == nil || got.Funnel.Counts["page_view"] != 1 {
		t.Errorf("Funnel = %+v", got.Funnel)
	}
	if len(got.Segmentation["low_intent"]) != 1 {
		t.Errorf("Segmentation = %+v", got.Segmentation)
	}

	stats := p.Stats()
	if !stats.Checked || stats.Skipped || stats.Fetches != 1 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestPoller_SkipsWhenConnected(t *testing.T) {
	server, hits := newAnalyticsServer(t, "")
	defer server.Close()

	client := api.NewClient(server.URL, "")
	status := &staticStatus{}
	status.connected.Store(true)

	var called atomic.Bool
	handler := SnapshotHandlerFunc(func(Snapshot) { called.Store(true) })

	p := New(Config{Delay: 10 * time.Millisecond}, client, status, handler, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(80 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if called.Load() {
		t.Error("handler called while connected")
	}
	if n := hits.Load(); n != 0 {
		t.Errorf("server hit %d times, want 0", n)
	}
	if stats := p.Stats(); !stats.Checked || !stats.Skipped {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestPoller_StopBeforeDelay(t *testing.T) {
	server, hits := newAnalyticsServer(t, "")
	defer server.Close()

	p := New(Config{Delay: time.Hour}, api.NewClient(server.URL, ""), &staticStatus{},
		SnapshotHandlerFunc(func(Snapshot) {}), nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if p.Stats().Checked {
		t.Error("check ran before delay elapsed")
	}
	if hits.Load() != 0 {
		t.Error("server was hit")
	}
}

func TestPoller_Fetch(t *testing.T) {
	tests := []struct {
		name       string
		failPath   string
		wantErr    bool
		wantFunnel bool
		wantSeg    bool
	}{
		{"all succeed", "", false, true, true},
		{"stats required", "/stats", true, false, false},
		{"events required", "/events", true, false, false},
		{"funnel optional", "/funnel-analysis", false, false, true},
		{"segmentation optional", "/user-segmentation", false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newAnalyticsServer(t, tt.failPath)
			defer server.Close()

			p := New(DefaultConfig(), api.NewClient(server.URL, ""), &staticStatus{}, nil, nil)
			snap, err := p.Fetch(context.Background())

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var apiErr *api.APIError
				if !errors.As(err, &apiErr) {
					t.Errorf("expected *api.APIError in chain, got %v", err)
				}
				if p.Stats().Failures != 1 {
					t.Errorf("Failures = %d, want 1", p.Stats().Failures)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (snap.Funnel != nil) != tt.wantFunnel {
				t.Errorf("Funnel present = %v, want %v", snap.Funnel != nil, tt.wantFunnel)
			}
			if (snap.Segmentation != nil) != tt.wantSeg {
				t.Errorf("Segmentation present = %v, want %v", snap.Segmentation != nil, tt.wantSeg)
			}
			if snap.FetchedAt.IsZero() {
				t.Error("FetchedAt not set")
			}
		})
	}
}

// fakeFetcher lets the stats call block until released.
type fakeFetcher struct {
	release chan struct{}
}

func (f *fakeFetcher) GetStats(ctx context.Context) (*model.StatsSnapshot, error) {
	select {
	case <-f.release:
		return &model.StatsSnapshot{EventTypes: map[string]int64{}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeFetcher) GetEvents(ctx context.Context, limit int) (*model.EventsResponse, error) {
	return &model.EventsResponse{}, nil
}

func (f *fakeFetcher) GetFunnel(ctx context.Context) (*model.FunnelSnapshot, error) {
	return &model.FunnelSnapshot{}, nil
}

func (f *fakeFetcher) GetSegmentation(ctx context.Context) (model.SegmentationSnapshot, error) {
	return model.SegmentationSnapshot{}, nil
}

func TestPoller_FetchTimeout(t *testing.T) {
	f := &fakeFetcher{release: make(chan struct{})}
	p := New(Config{Timeout: 20 * time.Millisecond}, f, &staticStatus{}, nil, nil)

	_, err := p.Fetch(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}
