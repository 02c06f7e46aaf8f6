package escalation

import (
	"context"

	"github.com/agentgov/governor/internal/models"
)

// Engine is the escalation lifecycle: Create raises a pending request and
// best-effort notifies its approvers; GetByID reports current status,
// expiring it in place if its timeout has passed; Submit idempotently
// records an approve/reject decision.
type Engine interface {
	// Create persists a new EscalationRequest and returns it with an
	// assigned ID.
	Create(ctx context.Context, in *CreateInput) (*models.EscalationRequest, error)
	// GetByID returns the current state of a request, marking it expired
	// in place if its deadline has passed.
	GetByID(ctx context.Context, id string) (*models.EscalationRequest, error)
	// Submit records an approve/reject decision. approverID identifies
	// who decided; required only when the approval policy is "all".
	// Returns ErrAlreadyProcessed or ErrExpired on a terminal request.
	Submit(ctx context.Context, id string, approved bool, approverID string) error
}
