// Package api provides the REST client for the StreamCommerce analytics
// server.
//
// Endpoints:
//   - GET    /stats               counters and event-type distribution
//   - GET    /events?limit=N      most recent events first
//   - GET    /funnel-analysis     conversion funnel
//   - GET    /user-segmentation   intent segments
//   - GET    /health              service health
//   - POST   /track               record one event
//   - POST   /demo/generate-traffic
//   - DELETE /events              clear all events
//
// The live push channel is handled by the connection package.
package api
