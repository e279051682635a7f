// Package rest provides the shared HTTP GET client used by the feed
// connectors for polling and fallback endpoints.
//
// The client performs no retries: transient failures are counted by
// each connector's circuit breaker, and endpoint rotation decides
// where the next call goes.
package rest
