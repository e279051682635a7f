// Package gqlstream implements the GraphQL-subscription prediction
// market feed connector.
//
// The protocol is handshake-gated: after connecting, the connector
// sends connection_init and may not start the subscription until the
// server's connection_ack arrives. If the ack does not arrive within
// 5s the socket is closed and standard reconnection handling runs.
//
// A low-frequency REST status poll runs continuously, independent of
// connection state, to catch terminal status transitions the push
// channel might miss. There is no tick fallback for this feed.
package gqlstream
