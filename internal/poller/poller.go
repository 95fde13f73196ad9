package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/streamcommerce-dash/internal/model"
)

// Fetcher is the subset of the REST client the poller needs.
// *api.Client satisfies it.
type Fetcher interface {
	GetStats(ctx context.Context) (*model.StatsSnapshot, error)
	GetEvents(ctx context.Context, limit int) (*model.EventsResponse, error)
	GetFunnel(ctx context.Context) (*model.FunnelSnapshot, error)
	GetSegmentation(ctx context.Context) (model.SegmentationSnapshot, error)
}

// StatusSource reports whether the push channel is open.
type StatusSource interface {
	IsConnected() bool
}

// Snapshot is the result of one fallback fetch. Funnel and Segmentation
// are nil when their endpoints failed.
type Snapshot struct {
	Stats        model.StatsSnapshot
	Events       []model.Event
	Funnel       *model.FunnelSnapshot
	Segmentation model.SegmentationSnapshot
	FetchedAt    time.Time
}

// SnapshotHandler receives fetched snapshots.
type SnapshotHandler interface {
	HandleSnapshot(snapshot Snapshot)
}

// SnapshotHandlerFunc is a function adapter for SnapshotHandler.
type SnapshotHandlerFunc func(Snapshot)

func (f SnapshotHandlerFunc) HandleSnapshot(s Snapshot) {
	f(s)
}

// Config holds poller configuration.
type Config struct {
	Delay      time.Duration // Wait before checking the channel (default: 2s)
	Timeout    time.Duration // Bound on one fetch (default: 0, none)
	EventLimit int           // Events requested (default: 20)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Delay:      2 * time.Second,
		EventLimit: 20,
	}
}

// Stats contains poller statistics.
type Stats struct {
	Checked  bool  // The startup check has run
	Skipped  bool  // The channel was connected at the check
	Fetches  int64 // Fetches attempted, including manual ones
	Failures int64
}

// Poller performs the one-shot fallback fetch.
type Poller struct {
	cfg     Config
	fetcher Fetcher
	status  StatusSource
	handler SnapshotHandler
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	checked  atomic.Bool
	skipped  atomic.Bool
	fetches  atomic.Int64
	failures atomic.Int64
}

// New creates a new Poller.
func New(cfg Config, fetcher Fetcher, status StatusSource, handler SnapshotHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.EventLimit < 1 {
		cfg.EventLimit = DefaultConfig().EventLimit
	}
	return &Poller{
		cfg:     cfg,
		fetcher: fetcher,
		status:  status,
		handler: handler,
		logger:  logger,
	}
}

// Start schedules the fallback check.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("fallback poller started", "delay", p.cfg.Delay)
	return nil
}

// Stop cancels a pending check or an in-flight fetch.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("fallback poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current statistics.
func (p *Poller) Stats() Stats {
	return Stats{
		Checked:  p.checked.Load(),
		Skipped:  p.skipped.Load(),
		Fetches:  p.fetches.Load(),
		Failures: p.failures.Load(),
	}
}

// run waits for the delay and performs at most one fetch.
func (p *Poller) run() {
	defer p.wg.Done()

	timer := time.NewTimer(p.cfg.Delay)
	defer timer.Stop()

	select {
	case <-p.ctx.Done():
		return
	case <-timer.C:
	}

	p.checked.Store(true)
	if p.status.IsConnected() {
		p.skipped.Store(true)
		p.logger.Debug("push channel connected, fallback fetch skipped")
		return
	}

	p.logger.Info("push channel not connected, loading data over REST")

	snap, err := p.Fetch(p.ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.logger.Error("fallback fetch failed", "error", err)
		}
		return
	}
	p.handler.HandleSnapshot(*snap)
}

// Fetch loads a full snapshot. Stats and events are required; funnel
// and segmentation failures are logged and leave those fields nil.
func (p *Poller) Fetch(ctx context.Context) (*Snapshot, error) {
	p.fetches.Add(1)
	start := time.Now()

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	var (
		snap   Snapshot
		stats  *model.StatsSnapshot
		events *model.EventsResponse
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = p.fetcher.GetStats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		events, err = p.fetcher.GetEvents(gctx, p.cfg.EventLimit)
		return err
	})
	g.Go(func() error {
		funnel, err := p.fetcher.GetFunnel(gctx)
		if err != nil {
			p.logger.Warn("funnel unavailable", "error", err)
			return nil
		}
		snap.Funnel = funnel
		return nil
	})
	g.Go(func() error {
		seg, err := p.fetcher.GetSegmentation(gctx)
		if err != nil {
			p.logger.Warn("segmentation unavailable", "error", err)
			return nil
		}
		snap.Segmentation = seg
		return nil
	})

	if err := g.Wait(); err != nil {
		p.failures.Add(1)
		return nil, err
	}

	snap.Stats = *stats
	snap.Events = events.Events
	snap.FetchedAt = time.Now()

	p.logger.Debug("snapshot fetched",
		"events", len(snap.Events),
		"funnel", snap.Funnel != nil,
		"segmentation", snap.Segmentation != nil,
		"duration", time.Since(start),
	)

	return &snap, nil
}
