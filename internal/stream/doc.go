// Package stream implements the plain-WebSocket prediction market
// feed connector.
//
// The connector:
//   - Maintains one push connection with a 10s connect timeout and a
//     10s ping heartbeat
//   - Subscribes on open (auth token included when configured)
//   - Normalizes orderbook messages into two-sided ticks and forwards
//     terminal event_status messages to the status tracker
//   - Rotates to the next endpoint on connect-time failures
//   - Polls a rotating REST endpoint list every 5s while disconnected
//   - Reconnects with exponential backoff, then a 30s periodic retry
package stream
