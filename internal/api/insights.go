package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rickgao/streamcommerce-dash/internal/model"
)

// GetUserActivity fetches recent events grouped per user, each journey
// oldest first.
func (c *Client) GetUserActivity(ctx context.Context) (*model.UserActivity, error) {
	var resp model.UserActivity
	if err := c.get(ctx, "/user-activity", nil, &resp); err != nil {
		return nil, fmt.Errorf("get user activity: %w", err)
	}
	if resp.Journeys == nil {
		resp.Journeys = map[string][]model.Event{}
	}
	return &resp, nil
}

// GetUserPatterns fetches the per-user behaviour summary.
func (c *Client) GetUserPatterns(ctx context.Context) (*model.UserPatterns, error) {
	var resp model.UserPatterns
	if err := c.get(ctx, "/user-patterns", nil, &resp); err != nil {
		return nil, fmt.Errorf("get user patterns: %w", err)
	}
	if resp.Patterns == nil {
		resp.Patterns = map[string]model.UserPattern{}
	}
	return &resp, nil
}

// GetAnomalies fetches the server's anomaly detection results.
func (c *Client) GetAnomalies(ctx context.Context) (model.AnomalyReport, error) {
	var resp model.AnomalyReport
	if err := c.get(ctx, "/anomalies", nil, &resp); err != nil {
		return nil, fmt.Errorf("get anomalies: %w", err)
	}
	if resp == nil {
		resp = model.AnomalyReport{}
	}
	return resp, nil
}

// GenerateAnomalies asks the server to synthesize a traffic spike, outsized
// purchases and a hyperactive user. The call takes a few seconds server side.
func (c *Client) GenerateAnomalies(ctx context.Context) (*model.AnomalyGenerationResponse, error) {
	var resp model.AnomalyGenerationResponse
	if err := c.send(ctx, http.MethodPost, "/demo/generate-anomalies", nil, &resp); err != nil {
		return nil, fmt.Errorf("generate anomalies: %w", err)
	}
	return &resp, nil
}
