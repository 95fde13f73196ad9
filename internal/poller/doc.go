// Package poller implements the fallback fetch used when the push
// channel is unavailable.
//
// The Poller:
//   - Waits a short delay after startup (default 2s)
//   - If the push channel is still not connected, fetches stats, recent
//     events, funnel and segmentation over REST, concurrently
//   - Hands the result to its handler once and then exits
//
// Fetch is also used directly for manual refreshes.
package poller
