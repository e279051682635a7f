// Package bus publishes normalized feed messages onto the internal
// event bus (Kafka).
//
// Topic layout:
//   - crypto.ticks.{btc,eth,sol} for the high-volume crypto assets
//   - crypto.ticks for everything else on the poll feed
//   - kalshi.ticks / polymarket.ticks for the push feeds
//   - events.cancelled shared by all sources
package bus
