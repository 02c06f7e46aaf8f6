package delivery

import "context"

// Provider delivers a pending escalation request to its approvers over an
// external channel (IM, email, ...). Best-effort: engine callers log and
// continue on error rather than blocking the evaluation on delivery.
type Provider interface {
	Deliver(ctx context.Context, in *DeliverInput) error
}
