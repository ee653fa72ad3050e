package routing

import (
	"errors"
	"fmt"

	"github.com/modelgate/modelgate/models"
)

var (
	// ErrNoProvidersConfigured indicates the active snapshot has no providers
	ErrNoProvidersConfigured = errors.New("routing: no providers configured")

	// ErrCandidatesExhausted indicates every supporting provider has already
	// been attempted for the current request
	ErrCandidatesExhausted = errors.New("routing: all candidate providers already attempted")

	// ErrUnknownStrategy indicates an unrecognized strategy identifier
	ErrUnknownStrategy = errors.New("routing: unknown strategy")
)

// UnsupportedModelError reports that no configured provider declares support
// for the resolved model. This is a request-rejection outcome, never retried.
type UnsupportedModelError struct {
	Model string
}

// Error implements the error interface
func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("no provider supports model %q", e.Model)
}

// AllProvidersUnhealthyError reports that at least one provider supports the
// model but every one of them is currently ineligible. Candidates preserves
// the strategy ordering so the caller may pick a degraded last resort instead
// of failing the request outright.
type AllProvidersUnhealthyError struct {
	Model      string
	Candidates []models.ProviderConfig
}

// Error implements the error interface
func (e *AllProvidersUnhealthyError) Error() string {
	return fmt.Sprintf("all %d providers supporting model %q are unhealthy", len(e.Candidates), e.Model)
}
