package stream

import "errors"

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// wireEnvelope carries the type discriminator of an inbound frame.
type wireEnvelope struct {
	Type string `json:"type"`
}

// quoteWire is an orderbook_snapshot or orderbook_delta frame.
type quoteWire struct {
	Type     string  `json:"type"`
	MarketID string  `json:"market_id"`
	Yes      float64 `json:"yes"`
	No       float64 `json:"no"`
	Ts       int64   `json:"ts,omitempty"` // exchange timestamp (seconds)
}

// statusWire is an event_status frame.
type statusWire struct {
	Type    string `json:"type"`
	EventID string `json:"event_id"`
	Status  string `json:"status"`
}

// subscribeCmd is the subscription command sent after connect.
type subscribeCmd struct {
	Type     string   `json:"type"` // "subscribe"
	Channels []string `json:"channels"`
	Markets  []string `json:"markets,omitempty"`
	Token    string   `json:"token,omitempty"`
}

// marketsResponse is the REST fallback response shape.
type marketsResponse struct {
	Markets []marketQuote `json:"markets"`
}

type marketQuote struct {
	ID     string  `json:"id"`
	Yes    float64 `json:"yes"`
	No     float64 `json:"no"`
	Status string  `json:"status,omitempty"`
}
