// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns a single push channel (WebSocket) to the analytics server's /ws endpoint
//   - Derives the endpoint from the server origin (https => wss, http => ws)
//   - Reports Disconnected/Connecting/Connected transitions to the view
//   - Reconnects after every drop or failed dial according to a RetryPolicy
//     (default: fixed 3s delay, unlimited attempts)
//   - Forwards every inbound frame, in order, to the Message Router
package connection
