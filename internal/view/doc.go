// Package view holds the dashboard's view model and the pure functions
// that apply push messages and fetch results to it.
//
// Nothing in this package performs I/O, starts goroutines, or sets timers.
// Callers own a *Model and must serialize access to it; the dashboard
// package does so by mutating it only from its callback loop. Timed
// effects (notification dismissal, row highlight) are expressed as IDs
// returned from ApplyNewEvent that the caller later passes to Dismiss and
// ClearHighlight.
package view
