package model

import "encoding/json"

// ChangeEvent is the envelope published on telemetry pub/sub channels when a
// row lands in one of the live categories. Payload holds the inserted row,
// decoded per category at the subscriber boundary.
type ChangeEvent struct {
	Category Category        `json:"category"`
	DeviceID string          `json:"deviceId"`
	Payload  json.RawMessage `json:"payload"`
}
