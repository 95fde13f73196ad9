package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultServerURL           = "http://localhost:8000"
	DefaultServerTimeout       = 30 * time.Second
	DefaultReconnectDelay      = 3 * time.Second
	DefaultReconnectMaxDelay   = 60 * time.Second
	DefaultReconnectMultiplier = 1.0
	DefaultPingInterval        = 30 * time.Second
	DefaultPingTimeout         = 90 * time.Second
	DefaultWriteTimeout        = 5 * time.Second
	DefaultBufferSize          = 1000
	DefaultMaxEvents           = 20
	DefaultNotificationTTL     = 3 * time.Second
	DefaultFallbackDelay       = 2 * time.Second
	DefaultChartEventLimit     = 20
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.URL == "" {
		c.Server.URL = DefaultServerURL
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = DefaultServerTimeout
	}

	// Connection defaults
	if c.Connection.ReconnectDelay == 0 {
		c.Connection.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Connection.ReconnectMaxDelay == 0 {
		c.Connection.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Connection.ReconnectMultiplier == 0 {
		c.Connection.ReconnectMultiplier = DefaultReconnectMultiplier
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.PingTimeout == 0 {
		c.Connection.PingTimeout = DefaultPingTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultBufferSize
	}

	// View defaults
	if c.View.MaxEvents == 0 {
		c.View.MaxEvents = DefaultMaxEvents
	}
	if c.View.NotificationTTL == 0 {
		c.View.NotificationTTL = DefaultNotificationTTL
	}
	if c.View.FallbackDelay == 0 {
		c.View.FallbackDelay = DefaultFallbackDelay
	}
	if c.View.ChartEventLimit == 0 {
		c.View.ChartEventLimit = DefaultChartEventLimit
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
