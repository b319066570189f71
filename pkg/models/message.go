package models

import (
	"encoding/json"
	"time"
)

// MessageEnvelope is the broker wire format. Payload carries one of the
// typed records below, selected by Type.
type MessageEnvelope struct {
	ID        string          `json:"id"`
	Source    string          `json:"source"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Metadata  Metadata        `json:"metadata"`
}

type Metadata struct {
	TraceID string `json:"trace_id,omitempty"`
}

const (
	EnvelopeTypeRoutingOutcome = "routing_outcome"
	EnvelopeTypeConfigUpdate   = "config_update"
)

// DecodePayload unmarshals the envelope payload into v.
func (msg *MessageEnvelope) DecodePayload(v interface{}) error {
	return json.Unmarshal(msg.Payload, v)
}
