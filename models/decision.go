package models

import (
	"time"

	"github.com/google/uuid"
)

// RoutingOutcome classifies how a dispatched request ended
type RoutingOutcome string

const (
	OutcomeSuccess          RoutingOutcome = "success"
	OutcomeUnsupportedModel RoutingOutcome = "unsupported_model"
	OutcomeAllUnhealthy     RoutingOutcome = "all_unhealthy"
	OutcomeUpstreamError    RoutingOutcome = "upstream_error"
	OutcomeMalformedBody    RoutingOutcome = "malformed_body"
	OutcomeCanceled         RoutingOutcome = "canceled"
	OutcomeInternalError    RoutingOutcome = "internal_error"
)

// RoutingDecision is the audit record for one dispatched request: what the
// client asked for, what it resolved to, which provider served it and how
// the attempt(s) ended.
type RoutingDecision struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	RequestID      string         `json:"request_id" db:"request_id"`
	RequestedModel string         `json:"requested_model" db:"requested_model"`
	ResolvedModel  string         `json:"resolved_model" db:"resolved_model"`
	Source         string         `json:"source" db:"source"` // override, direct, rename, passthrough
	Provider       string         `json:"provider,omitempty" db:"provider"`
	Outcome        RoutingOutcome `json:"outcome" db:"outcome"`
	Attempts       int            `json:"attempts" db:"attempts"`
	Degraded       bool           `json:"degraded" db:"degraded"`
	LatencyMs      int64          `json:"latency_ms" db:"latency_ms"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the RoutingDecision model
func (RoutingDecision) TableName() string {
	return "routing_decisions"
}

// NewRoutingDecision creates a decision record with its identity and
// timestamp set
func NewRoutingDecision(requestID string) *RoutingDecision {
	return &RoutingDecision{
		ID:        uuid.New(),
		RequestID: requestID,
		CreatedAt: time.Now().UTC(),
	}
}
