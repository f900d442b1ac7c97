package models

import "time"

// Model lifecycle event types published to Kafka for downstream consumers
// (alerting, audit). Events are advisory: publish failures never abort the
// operation that produced them.
const (
	EventModelRegistered = "model_registered"
	EventModelActivated  = "model_activated"
	EventModelPruned     = "model_pruned"
)

// ModelEvent is the wire shape of a lifecycle event.
type ModelEvent struct {
	Type      string             `json:"type"`
	Currency  string             `json:"currency"`
	ModelID   string             `json:"model_id"`
	Family    ModelFamily        `json:"family,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}
