package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/streamcommerce-dash/internal/model"
)

// DefaultEventLimit is the number of events the dashboard requests.
const DefaultEventLimit = 20

// GetStats fetches the dashboard counters.
func (c *Client) GetStats(ctx context.Context) (*model.StatsSnapshot, error) {
	var resp model.StatsSnapshot
	if err := c.get(ctx, "/stats", nil, &resp); err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return &resp, nil
}

// GetEvents fetches the most recent events, newest first. A limit of 0
// uses the server default.
func (c *Client) GetEvents(ctx context.Context, limit int) (*model.EventsResponse, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp model.EventsResponse
	if err := c.get(ctx, "/events", query, &resp); err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	return &resp, nil
}

// GetFunnel fetches the conversion funnel.
func (c *Client) GetFunnel(ctx context.Context) (*model.FunnelSnapshot, error) {
	var resp model.FunnelSnapshot
	if err := c.get(ctx, "/funnel-analysis", nil, &resp); err != nil {
		return nil, fmt.Errorf("get funnel: %w", err)
	}
	return &resp, nil
}

// GetSegmentation fetches the intent segments.
func (c *Client) GetSegmentation(ctx context.Context) (model.SegmentationSnapshot, error) {
	var resp model.SegmentationSnapshot
	if err := c.get(ctx, "/user-segmentation", nil, &resp); err != nil {
		return nil, fmt.Errorf("get segmentation: %w", err)
	}
	if resp == nil {
		resp = model.SegmentationSnapshot{}
	}
	return resp, nil
}

// Health fetches the service health.
func (c *Client) Health(ctx context.Context) (*model.Health, error) {
	var resp model.Health
	if err := c.get(ctx, "/health", nil, &resp); err != nil {
		return nil, fmt.Errorf("get health: %w", err)
	}
	return &resp, nil
}

// Track records one event.
func (c *Client) Track(ctx context.Context, req model.TrackRequest) (*model.TrackResponse, error) {
	if req.Data == nil {
		req.Data = map[string]any{}
	}

	var resp model.TrackResponse
	if err := c.send(ctx, http.MethodPost, "/track", req, &resp); err != nil {
		return nil, fmt.Errorf("track %s: %w", req.EventType, err)
	}
	return &resp, nil
}

// GenerateDemoTraffic asks the server to synthesize a few user journeys.
func (c *Client) GenerateDemoTraffic(ctx context.Context) (*model.DemoTrafficResponse, error) {
	var resp model.DemoTrafficResponse
	if err := c.send(ctx, http.MethodPost, "/demo/generate-traffic", nil, &resp); err != nil {
		return nil, fmt.Errorf("generate demo traffic: %w", err)
	}
	return &resp, nil
}

// ClearEvents deletes every stored event.
func (c *Client) ClearEvents(ctx context.Context) (*model.ClearResponse, error) {
	var resp model.ClearResponse
	if err := c.send(ctx, http.MethodDelete, "/events", nil, &resp); err != nil {
		return nil, fmt.Errorf("clear events: %w", err)
	}
	return &resp, nil
}

// ChartData is the input needed to rebuild both charts.
type ChartData struct {
	Stats  model.StatsSnapshot
	Events []model.Event
}

// FetchChartData fetches stats and the most recent events in parallel.
// Either failure fails the whole fetch.
func (c *Client) FetchChartData(ctx context.Context, limit int) (*ChartData, error) {
	var (
		stats  *model.StatsSnapshot
		events *model.EventsResponse
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = c.GetStats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		events, err = c.GetEvents(gctx, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &ChartData{Stats: *stats, Events: events.Events}, nil
}
