package model

import "encoding/json"

// Delivery is one message received from a broadcast channel.
type Delivery struct {
	Channel string
	Payload []byte
}

// Envelope is the body published on room broadcast channels. Data is the
// consumed bus event with its roomId rewritten to the normalized form.
type Envelope struct {
	Type   string          `json:"type"`
	RoomID string          `json:"roomId"`
	Data   json.RawMessage `json:"data"`
}
