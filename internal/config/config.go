package config

import "time"

// Config is the root configuration for a dashboard client.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Connection ConnectionConfig `yaml:"connection"`
	View       ViewConfig       `yaml:"view"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds analytics server settings.
type ServerConfig struct {
	URL        string        `yaml:"url"`   // Server origin, e.g. http://localhost:8000
	Token      string        `yaml:"token"` // Optional bearer token for REST and push channel
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"` // REST retries on 5xx/429 (0 = none)
}

// ConnectionConfig holds push-channel settings.
type ConnectionConfig struct {
	ReconnectDelay      time.Duration `yaml:"reconnect_delay"`
	ReconnectMaxDelay   time.Duration `yaml:"reconnect_max_delay"`
	ReconnectMultiplier float64       `yaml:"reconnect_multiplier"` // 1 = fixed delay
	MaxAttempts         int           `yaml:"max_attempts"`         // 0 = retry forever
	PingInterval        time.Duration `yaml:"ping_interval"`
	PingTimeout         time.Duration `yaml:"ping_timeout"`
	WriteTimeout        time.Duration `yaml:"write_timeout"`
	BufferSize          int           `yaml:"buffer_size"`
}

// ViewConfig holds view model settings.
type ViewConfig struct {
	MaxEvents       int           `yaml:"max_events"`
	NotificationTTL time.Duration `yaml:"notification_ttl"`
	FallbackDelay   time.Duration `yaml:"fallback_delay"`
	ChartEventLimit int           `yaml:"chart_event_limit"` // limit for GET /events when rebuilding charts
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
