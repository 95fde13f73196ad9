package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return errors.New("server.url is required")
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("server.url is invalid: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("server.url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("server.url must include a host")
	}
	if c.Server.MaxRetries < 0 {
		return errors.New("server.max_retries must be >= 0")
	}

	if err := c.Connection.validate(); err != nil {
		return err
	}

	if c.View.MaxEvents < 1 {
		return errors.New("view.max_events must be >= 1")
	}
	if c.View.NotificationTTL <= 0 {
		return errors.New("view.notification_ttl must be > 0")
	}
	if c.View.FallbackDelay <= 0 {
		return errors.New("view.fallback_delay must be > 0")
	}
	if c.View.ChartEventLimit < 1 {
		return errors.New("view.chart_event_limit must be >= 1")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (cc *ConnectionConfig) validate() error {
	if cc.ReconnectDelay <= 0 {
		return errors.New("connection.reconnect_delay must be > 0")
	}
	if cc.ReconnectMultiplier < 1 {
		return fmt.Errorf("connection.reconnect_multiplier must be >= 1, got %g", cc.ReconnectMultiplier)
	}
	if cc.ReconnectMaxDelay < cc.ReconnectDelay {
		return fmt.Errorf("connection.reconnect_max_delay (%s) cannot be below reconnect_delay (%s)",
			cc.ReconnectMaxDelay, cc.ReconnectDelay)
	}
	if cc.MaxAttempts < 0 {
		return errors.New("connection.max_attempts must be >= 0")
	}
	if cc.BufferSize < 1 {
		return errors.New("connection.buffer_size must be >= 1")
	}
	return nil
}
