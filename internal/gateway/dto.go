package gateway

import (
	"encoding/json"
	"time"
)

// forecastRequest is the JSON body accepted by the POST forecast routes.
type forecastRequest struct {
	Symbol string `json:"symbol"`
}

// PriceResponse is the body of /api/price.
type PriceResponse struct {
	Symbol       string  `json:"symbol"`
	CurrentPrice float64 `json:"currentPrice"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StreamMessage is one websocket frame of /ws/forecast.
type StreamMessage struct {
	Type   string          `json:"type"` // forecast | error | pong
	Symbol string          `json:"symbol,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
	Ping   int64           `json:"ping,omitempty"`
	TS     time.Time       `json:"ts"`
}

// clientMessage is what a stream client may send.
type clientMessage struct {
	Type   string `json:"type"` // SUBSCRIBE
	Symbol string `json:"symbol"`
	Ping   int64  `json:"ping"`
}
