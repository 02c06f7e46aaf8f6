// Package ownership resolves an escalation's named target to the set of
// approver ids that must confirm it, by tool name and risk level.
package ownership

import (
	"context"

	"github.com/agentgov/governor/internal/models"
)

// Resolver resolves an escalation target to approver ids.
type Resolver interface {
	// Resolve returns the approver ids for the given named escalation
	// target, tool name and risk level. An empty result with a nil error
	// means "no approvers configured"; callers fall back to their own
	// default confirmer set.
	Resolve(ctx context.Context, target, toolName string, riskLevel models.RiskLevel) (approverIDs []string, err error)
}

// StubResolver always returns an empty set; wired when no ownership rules
// are configured.
type StubResolver struct{}

func (StubResolver) Resolve(ctx context.Context, target, toolName string, riskLevel models.RiskLevel) ([]string, error) {
	return nil, nil
}
