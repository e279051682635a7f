package gqlstream

import "encoding/json"

// GraphQL-over-WebSocket frame types.
const (
	frameConnectionInit = "connection_init"
	frameConnectionAck  = "connection_ack"
	frameStart          = "start"
	frameData           = "data"
	frameError          = "error"
	frameComplete       = "complete"
)

// frame is the protocol envelope for both directions.
type frame struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// startPayload carries the subscription query.
type startPayload struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// marketUpdatesQuery is the subscription started after the ack.
const marketUpdatesQuery = `subscription MarketUpdates($markets: [String!]) {
  marketUpdates(markets: $markets) {
    market
    yesPrice
    noPrice
    status
  }
}`

// dataPayload is the payload of a data frame.
type dataPayload struct {
	Data struct {
		MarketUpdate marketUpdate `json:"marketUpdates"`
	} `json:"data"`
}

// marketUpdate is one push update; Status is empty unless the market's
// lifecycle changed.
type marketUpdate struct {
	Market   string  `json:"market"`
	YesPrice float64 `json:"yesPrice"`
	NoPrice  float64 `json:"noPrice"`
	Status   string  `json:"status,omitempty"`
}

// statusPollResponse is the REST status safety-poll response shape.
type statusPollResponse struct {
	Markets []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"markets"`
}
