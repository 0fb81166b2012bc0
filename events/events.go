// Package events publishes domain events about filed disputes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// TypeDisputeSubmitted is emitted once per completed intake.
const TypeDisputeSubmitted = "dispute.submitted"

// Publisher delivers a serialised event. key groups events of one aggregate.
type Publisher interface {
	Publish(ctx context.Context, eventType string, key string, payload []byte) error
}

// DisputeSubmitted is the payload of TypeDisputeSubmitted.
type DisputeSubmitted struct {
	DisputeID     string    `json:"dispute_id"`
	UserID        string    `json:"user_id"`
	ProblemType   string    `json:"problem_type"`
	ProofAttached bool      `json:"proof_attached"`
	EvidenceCount int       `json:"evidence_count"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// PublishDisputeSubmitted encodes and publishes ev keyed by dispute id.
func PublishDisputeSubmitted(ctx context.Context, p Publisher, ev DisputeSubmitted) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", TypeDisputeSubmitted, err)
	}
	if err := p.Publish(ctx, TypeDisputeSubmitted, ev.DisputeID, payload); err != nil {
		return fmt.Errorf("events: publish %s: %w", TypeDisputeSubmitted, err)
	}
	return nil
}

// Noop discards events. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, string, []byte) error { return nil }
