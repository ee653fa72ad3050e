package postgres

import (
	"context"
	"fmt"

	"github.com/modelgate/modelgate/models"
	"github.com/modelgate/modelgate/repositories"
	"go.uber.org/zap"
)

// DecisionRepository implements the repositories.DecisionRepository interface
type DecisionRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewDecisionRepository creates a new routing decision repository
func NewDecisionRepository(db *DB, logger *zap.Logger) repositories.DecisionRepository {
	return &DecisionRepository{
		db:     db,
		logger: logger,
	}
}

// Insert stores one routing decision
func (r *DecisionRepository) Insert(ctx context.Context, decision *models.RoutingDecision) error {
	query := `
		INSERT INTO routing_decisions (
			id, request_id, requested_model, resolved_model, source,
			provider, outcome, attempts, degraded, latency_ms, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		decision.ID,
		decision.RequestID,
		decision.RequestedModel,
		decision.ResolvedModel,
		decision.Source,
		decision.Provider,
		decision.Outcome,
		decision.Attempts,
		decision.Degraded,
		decision.LatencyMs,
		decision.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert routing decision: %w", err)
	}

	r.logger.Debug("routing decision inserted",
		zap.String("id", decision.ID.String()),
		zap.String("request_id", decision.RequestID),
		zap.String("outcome", string(decision.Outcome)))
	return nil
}

// ListRecent retrieves the most recent decisions, newest first
func (r *DecisionRepository) ListRecent(ctx context.Context, limit int) ([]*models.RoutingDecision, error) {
	query := `
		SELECT id, request_id, requested_model, resolved_model, source,
		       provider, outcome, attempts, degraded, latency_ms, created_at
		FROM routing_decisions
		ORDER BY created_at DESC
		LIMIT $1
	`

	return r.queryDecisions(ctx, query, limit)
}

// GetByRequestID retrieves every decision recorded for a request ID
func (r *DecisionRepository) GetByRequestID(ctx context.Context, requestID string) ([]*models.RoutingDecision, error) {
	query := `
		SELECT id, request_id, requested_model, resolved_model, source,
		       provider, outcome, attempts, degraded, latency_ms, created_at
		FROM routing_decisions
		WHERE request_id = $1
		ORDER BY created_at DESC
	`

	return r.queryDecisions(ctx, query, requestID)
}

// queryDecisions is a helper method to query multiple routing decisions
func (r *DecisionRepository) queryDecisions(ctx context.Context, query string, args ...interface{}) ([]*models.RoutingDecision, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query routing decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*models.RoutingDecision
	for rows.Next() {
		decision := &models.RoutingDecision{}
		err := rows.Scan(
			&decision.ID,
			&decision.RequestID,
			&decision.RequestedModel,
			&decision.ResolvedModel,
			&decision.Source,
			&decision.Provider,
			&decision.Outcome,
			&decision.Attempts,
			&decision.Degraded,
			&decision.LatencyMs,
			&decision.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan routing decision: %w", err)
		}
		decisions = append(decisions, decision)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating routing decision rows: %w", err)
	}

	return decisions, nil
}
