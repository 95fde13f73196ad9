package dashboard

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rickgao/streamcommerce-dash/internal/api"
	"github.com/rickgao/streamcommerce-dash/internal/config"
	"github.com/rickgao/streamcommerce-dash/internal/connection"
	"github.com/rickgao/streamcommerce-dash/internal/view"
)

// NewClientID returns a fresh correlation id. It is sent as X-Client-ID and
// tagged on every log line of the process so server and client logs can be
// joined.
func NewClientID() string {
	return uuid.NewString()
}

// NewAPIClient builds the REST client described by cfg.
func NewAPIClient(cfg *config.Config, clientID string, logger *slog.Logger) *api.Client {
	if logger == nil {
		logger = slog.Default()
	}
	return api.NewClient(cfg.Server.URL, cfg.Server.Token,
		api.WithTimeout(cfg.Server.Timeout),
		api.WithRetries(cfg.Server.MaxRetries, api.DefaultRetryBackoff),
		api.WithClientID(clientID),
		api.WithLogger(logger.With("component", "api")),
	)
}

// NewManagerConfig translates cfg into connection manager settings.
func NewManagerConfig(cfg *config.Config, clientID string) (connection.ManagerConfig, error) {
	endpoint, err := connection.EndpointURL(cfg.Server.URL)
	if err != nil {
		return connection.ManagerConfig{}, fmt.Errorf("derive push endpoint: %w", err)
	}

	mc := connection.DefaultManagerConfig()
	mc.URL = endpoint
	mc.Token = cfg.Server.Token
	mc.ClientID = clientID
	mc.Policy = connection.RetryPolicy{
		Delay:       cfg.Connection.ReconnectDelay,
		MaxDelay:    cfg.Connection.ReconnectMaxDelay,
		Multiplier:  cfg.Connection.ReconnectMultiplier,
		MaxAttempts: cfg.Connection.MaxAttempts,
	}
	mc.Client.PingInterval = cfg.Connection.PingInterval
	mc.Client.PingTimeout = cfg.Connection.PingTimeout
	mc.Client.WriteTimeout = cfg.Connection.WriteTimeout
	mc.Client.BufferSize = cfg.Connection.BufferSize
	mc.MessageBufferSize = cfg.Connection.BufferSize
	return mc, nil
}

// NewConfig translates cfg into dashboard settings.
func NewConfig(cfg *config.Config) Config {
	vc := view.DefaultConfig()
	vc.MaxEvents = cfg.View.MaxEvents
	vc.NotificationTTL = cfg.View.NotificationTTL

	return Config{
		View:            vc,
		FallbackDelay:   cfg.View.FallbackDelay,
		ChartEventLimit: cfg.View.ChartEventLimit,
	}
}

// FromConfig builds a ready-to-start Dashboard and the REST client it uses.
func FromConfig(cfg *config.Config, logger *slog.Logger) (*Dashboard, *api.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	clientID := NewClientID()
	logger = logger.With("client_id", clientID)
	client := NewAPIClient(cfg, clientID, logger)

	mc, err := NewManagerConfig(cfg, clientID)
	if err != nil {
		return nil, nil, err
	}
	manager := connection.NewManager(mc, logger.With("component", "connection"))

	logger.Debug("dashboard configured",
		"server", cfg.Server.URL,
		"push_endpoint", mc.URL,
	)

	dc := NewConfig(cfg)
	dc.ClientID = clientID
	return New(dc, client, manager, logger), client, nil
}
