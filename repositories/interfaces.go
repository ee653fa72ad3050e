package repositories

import (
	"context"

	"github.com/modelgate/modelgate/models"
)

// DecisionRepository handles routing decision persistence
type DecisionRepository interface {
	// Insert stores one routing decision
	Insert(ctx context.Context, decision *models.RoutingDecision) error

	// ListRecent retrieves the most recent decisions, newest first
	ListRecent(ctx context.Context, limit int) ([]*models.RoutingDecision, error)

	// GetByRequestID retrieves every decision recorded for a request ID,
	// newest first
	GetByRequestID(ctx context.Context, requestID string) ([]*models.RoutingDecision, error)
}
