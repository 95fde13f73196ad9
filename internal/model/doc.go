// Package model defines the analytics types shared by the REST client, the
// push-channel router, and the view model.
//
// All types mirror the JSON contract of the StreamCommerce analytics server.
//
// Conventions:
//   - Counts: int64
//   - Conversion rates: float64 percentages rounded to one decimal (0-100)
//   - Timestamps: kept as the server's raw strings; use Event.Time to parse
package model
