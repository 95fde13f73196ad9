// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Every field is optional: defaults reproduce the dashboard's built-in constants
// (3s reconnect delay, 20-row event table, 3s notifications, 2s fallback poll).
package config
