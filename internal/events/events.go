// Package events defines the normalized transition event emitted by the
// evaluation engine and ships it to the platform over a websocket.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is one policy state transition. SampledValue and Threshold are the
// observation and configured threshold at the moment of transition, rendered
// in the threshold's own unit family.
type Event struct {
	PolicyID      uuid.UUID `json:"policyId"`
	PolicyName    string    `json:"policyName"`
	EndpointID    string    `json:"endpointId"`
	ConditionKind string    `json:"conditionKind"`
	PreviousState string    `json:"previousState"`
	NewState      string    `json:"newState"`
	Timestamp     time.Time `json:"timestamp"`
	SampledValue  float64   `json:"sampledValue"`
	Threshold     string    `json:"threshold,omitempty"`
}

// Sink receives transition events. Publish must not block the evaluation
// loop.
type Sink interface {
	Publish(ev Event)
}

// Discard is a Sink that drops every event. Used when no server is
// configured.
type Discard struct{}

func (Discard) Publish(Event) {}
