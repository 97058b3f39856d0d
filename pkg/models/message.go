package models

import "time"

// MessageEnvelope is the wire shape carried on internal Kafka topics:
// the config-update topic (ConfigUpdateEvent as Payload) and the DLQ
// topic for any message the broker package fails to process.
type MessageEnvelope struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
	Metadata  Metadata               `json:"metadata"`
}

type Metadata struct {
	TraceID string                 `json:"trace_id,omitempty"`
	Extra   map[string]interface{} `json:"extra,omitempty"`
}
