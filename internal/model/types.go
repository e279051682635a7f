package model

import "time"

// Tick is one normalized price observation for a market. Crypto ticks
// carry Price; prediction-market ticks carry the two-sided Yes/No
// prices. A tick is created on every inbound update, published to the
// event bus, written to the cache, and discarded.
type Tick struct {
	Market    string  `json:"market"`
	Price     float64 `json:"price,omitempty"`
	Yes       float64 `json:"yes,omitempty"`
	No        float64 `json:"no,omitempty"`
	Timestamp int64   `json:"timestamp"` // ms since epoch
}

// NewPriceTick builds a single-price tick stamped with the current time.
func NewPriceTick(market string, price float64) Tick {
	return Tick{
		Market:    market,
		Price:     price,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewQuoteTick builds a two-sided tick stamped with the current time.
func NewQuoteTick(market string, yes, no float64) Tick {
	return Tick{
		Market:    market,
		Yes:       yes,
		No:        no,
		Timestamp: time.Now().UnixMilli(),
	}
}

// EventStatusRecord is the persisted lifecycle status of one external
// event. One row per event ID; created on first observation, updated
// on every subsequent observation, never deleted.
type EventStatusRecord struct {
	EventID   string    `json:"event_id"`
	Source    string    `json:"source"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event lifecycle status values observed on the push feeds.
const (
	StatusActive    = "active"
	StatusClosed    = "closed"
	StatusCancelled = "cancelled"
	StatusDisputed  = "disputed"
)

// IsTerminalStatus reports whether no further meaningful transition is
// expected after this status.
func IsTerminalStatus(status string) bool {
	return status == StatusCancelled || status == StatusDisputed
}
