package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/rickgao/streamcommerce-dash/internal/api"
	"github.com/rickgao/streamcommerce-dash/internal/connection"
	"github.com/rickgao/streamcommerce-dash/internal/loop"
	"github.com/rickgao/streamcommerce-dash/internal/model"
	"github.com/rickgao/streamcommerce-dash/internal/poller"
	"github.com/rickgao/streamcommerce-dash/internal/router"
	"github.com/rickgao/streamcommerce-dash/internal/view"
)

// Backend is the REST surface the dashboard uses. *api.Client satisfies it.
type Backend interface {
	poller.Fetcher
	FetchChartData(ctx context.Context, limit int) (*api.ChartData, error)
	Track(ctx context.Context, req model.TrackRequest) (*model.TrackResponse, error)
	GenerateDemoTraffic(ctx context.Context) (*model.DemoTrafficResponse, error)
	ClearEvents(ctx context.Context) (*model.ClearResponse, error)
}

// Config configures a Dashboard.
type Config struct {
	View            view.Config
	FallbackDelay   time.Duration // Wait before the fallback fetch (default: 2s)
	ChartEventLimit int           // Events fetched to rebuild charts (default: 20)
	ClientID        string        // X-Client-ID of this process, also tagged on log lines
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		View:            view.DefaultConfig(),
		FallbackDelay:   2 * time.Second,
		ChartEventLimit: api.DefaultEventLimit,
	}
}

// Stats contains runtime statistics of every stage.
type Stats struct {
	Connection connection.ManagerStats
	Router     router.RouterStats
	Loop       loop.Stats
	Poller     poller.Stats
	Refetches  int64
}

// Dashboard owns the view model and everything that feeds it.
type Dashboard struct {
	cfg     Config
	backend Backend
	conn    connection.Manager
	logger  *slog.Logger
	clock   func() time.Time

	loop   *loop.Loop
	router router.Router
	poller *poller.Poller

	// Only touched on the loop goroutine.
	model *view.Model

	subMu   sync.Mutex
	subs    []func(view.Model)
	current view.Model

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	statsMu   sync.Mutex
	refetches int64
}

// New creates a Dashboard. The connection manager must not be started.
func New(cfg Config, backend Backend, conn connection.Manager, logger *slog.Logger) *Dashboard {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FallbackDelay <= 0 {
		cfg.FallbackDelay = DefaultConfig().FallbackDelay
	}
	if cfg.ChartEventLimit < 1 {
		cfg.ChartEventLimit = DefaultConfig().ChartEventLimit
	}

	d := &Dashboard{
		cfg:     cfg,
		backend: backend,
		conn:    conn,
		logger:  logger,
		clock:   time.Now,
		loop:    loop.New(logger.With("component", "loop")),
		model:   view.New(cfg.View),
	}
	d.current = d.model.Clone()
	d.router = router.NewRouter(conn.Messages(), d, logger.With("component", "router"))
	d.poller = poller.New(
		poller.Config{Delay: cfg.FallbackDelay, EventLimit: cfg.ChartEventLimit},
		backend,
		conn,
		poller.SnapshotHandlerFunc(d.applySnapshot),
		logger.With("component", "poller"),
	)
	return d
}

// Subscribe registers fn to receive a copy of the view model after every
// change. fn runs on the loop goroutine and must not block.
func (d *Dashboard) Subscribe(fn func(view.Model)) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	d.subs = append(d.subs, fn)
}

// ClientID returns the identifier sent as X-Client-ID on every request and
// handshake, or "" when none was configured.
func (d *Dashboard) ClientID() string {
	return d.cfg.ClientID
}

// Current returns the most recently published view model.
func (d *Dashboard) Current() view.Model {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	return d.current
}

// Start starts every stage. It returns immediately.
func (d *Dashboard) Start(ctx context.Context) error {
	d.ctx, d.cancel = context.WithCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop.Run(d.ctx)
	}()

	if err := d.router.Start(d.ctx); err != nil {
		return fmt.Errorf("start router: %w", err)
	}
	if err := d.conn.Start(d.ctx); err != nil {
		return fmt.Errorf("start connection manager: %w", err)
	}

	d.wg.Add(1)
	go d.watchStates()

	if err := d.poller.Start(d.ctx); err != nil {
		return fmt.Errorf("start poller: %w", err)
	}

	d.logger.Info("dashboard started")
	return nil
}

// Stop shuts every stage down in reverse order.
func (d *Dashboard) Stop(ctx context.Context) error {
	d.logger.Info("stopping dashboard")

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(d.poller.Stop(ctx))
	record(d.conn.Stop(ctx))
	record(d.router.Stop(ctx))

	if d.cancel != nil {
		d.cancel()
	}
	d.loop.Close()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		record(ctx.Err())
	}

	d.logger.Info("dashboard stopped")
	return firstErr
}

// Stats returns runtime statistics.
func (d *Dashboard) Stats() Stats {
	d.statsMu.Lock()
	refetches := d.refetches
	d.statsMu.Unlock()

	return Stats{
		Connection: d.conn.Stats(),
		Router:     d.router.Stats(),
		Loop:       d.loop.Stats(),
		Poller:     d.poller.Stats(),
		Refetches:  refetches,
	}
}

// watchStates mirrors connection state into the view.
func (d *Dashboard) watchStates() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case sc, ok := <-d.conn.States():
			if !ok {
				return
			}
			d.update(func(m *view.Model, now time.Time) {
				m.SetConnection(sc.To, sc.Attempt, now)
			})
		}
	}
}

// update posts a mutation to the loop and publishes the result.
func (d *Dashboard) update(fn func(m *view.Model, now time.Time)) {
	d.loop.Post(func() {
		fn(d.model, d.clock())
		d.publish()
	})
}

// publish hands a copy of the model to every subscriber. Loop goroutine only.
func (d *Dashboard) publish() {
	snap := d.model.Clone()

	d.subMu.Lock()
	d.current = snap
	subs := append([]func(view.Model){}, d.subs...)
	d.subMu.Unlock()

	for _, fn := range subs {
		fn(snap.Clone())
	}
}

// OnInitialData replaces the whole view.
func (d *Dashboard) OnInitialData(msg router.InitialData) {
	d.update(func(m *view.Model, now time.Time) {
		m.ApplyInitial(view.Snapshot{
			Stats:        msg.Stats,
			Events:       msg.Events,
			Funnel:       msg.Funnel,
			Segmentation: msg.Segmentation,
		}, now)
	})
}

// OnNewEvent prepends the event and schedules the notification and
// highlight to clear.
func (d *Dashboard) OnNewEvent(msg router.NewEvent) {
	d.update(func(m *view.Model, now time.Time) {
		rowSeq, noteID := m.ApplyNewEvent(msg.Event, now)

		d.loop.AfterFunc(m.Config().NotificationTTL, func() {
			d.model.Dismiss(noteID)
			d.model.ClearHighlight(rowSeq)
			d.publish()
		})
	})
}

// OnStatsUpdate replaces the counters, then refetches chart data since the
// push payload does not carry recent events.
func (d *Dashboard) OnStatsUpdate(msg router.StatsUpdate) {
	d.update(func(m *view.Model, now time.Time) {
		m.ApplyStats(msg.Stats, now)
	})
	d.refreshCharts()
}

// OnFunnelUpdate replaces the funnel panel.
func (d *Dashboard) OnFunnelUpdate(msg router.FunnelUpdate) {
	d.update(func(m *view.Model, now time.Time) {
		m.ApplyFunnel(msg.Funnel, now)
	})
}

// OnSegmentationUpdate replaces the segmentation panel.
func (d *Dashboard) OnSegmentationUpdate(msg router.SegmentationUpdate) {
	d.update(func(m *view.Model, now time.Time) {
		m.ApplySegmentation(msg.Segmentation, now)
	})
}

// refreshCharts fetches stats and events in the background and applies
// them to the charts. Failures are logged only.
func (d *Dashboard) refreshCharts() {
	d.statsMu.Lock()
	d.refetches++
	d.statsMu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		data, err := d.backend.FetchChartData(d.ctx, d.cfg.ChartEventLimit)
		if err != nil {
			if d.ctx.Err() == nil {
				d.logger.Error("error loading chart data", "error", err)
			}
			return
		}

		d.update(func(m *view.Model, now time.Time) {
			m.ApplyCharts(data.Stats.EventTypes, data.Events, now)
		})
	}()
}

// applySnapshot renders a fallback or manual fetch.
func (d *Dashboard) applySnapshot(s poller.Snapshot) {
	d.update(func(m *view.Model, now time.Time) {
		m.ApplyInitial(view.Snapshot{
			Stats:        s.Stats,
			Events:       s.Events,
			Funnel:       s.Funnel,
			Segmentation: s.Segmentation,
		}, now)
	})
}

// Refresh reloads everything over REST and renders it.
func (d *Dashboard) Refresh(ctx context.Context) error {
	snap, err := d.poller.Fetch(ctx)
	if err != nil {
		d.logger.Error("manual refresh failed", "error", err)
		return fmt.Errorf("refresh: %w", err)
	}
	d.applySnapshot(*snap)
	return nil
}

// SendTestEvent tracks an event for a random test user. The resulting
// update arrives over the push channel.
func (d *Dashboard) SendTestEvent(ctx context.Context, eventType string, data map[string]any) (*model.TrackResponse, error) {
	user := TestUserID()
	resp, err := d.backend.Track(ctx, model.TrackRequest{
		EventType: eventType,
		UserID:    &user,
		Data:      data,
	})
	if err != nil {
		d.logger.Error("error sending test event", "event_type", eventType, "error", err)
		return nil, err
	}

	d.logger.Info("event sent successfully", "event_type", eventType, "event_id", resp.EventID, "user_id", user)
	return resp, nil
}

// GenerateDemoTraffic asks the server for synthetic user journeys.
func (d *Dashboard) GenerateDemoTraffic(ctx context.Context) (*model.DemoTrafficResponse, error) {
	resp, err := d.backend.GenerateDemoTraffic(ctx)
	if err != nil {
		d.logger.Error("error generating demo traffic", "error", err)
		return nil, err
	}

	d.logger.Info("demo traffic generated", "users_created", resp.UsersCreated)
	return resp, nil
}

// ClearEvents deletes every event on the server and reloads the view.
func (d *Dashboard) ClearEvents(ctx context.Context) error {
	if _, err := d.backend.ClearEvents(ctx); err != nil {
		d.logger.Error("error clearing events", "error", err)
		return err
	}

	d.logger.Info("events cleared")
	return d.Refresh(ctx)
}

// TestUserID returns a random "test_user_<0..99>" identifier.
func TestUserID() string {
	return "test_user_" + strconv.Itoa(rand.Intn(100))
}
