// Package escalation implements the escalate effect's pending-confirmation
// lifecycle: create a request, resolve its approvers, and record the
// eventual approve/reject/expire outcome that lets a stalled evaluation
// resume as an allow or deny.
package escalation

import (
	"errors"
	"time"

	"github.com/agentgov/governor/internal/models"
)

// CreateInput is the input to Engine.Create.
type CreateInput struct {
	TraceID  string
	Target   string // named escalation target from the rule effect
	Fallback models.Action

	AgentID  string
	ToolName string
	Reason   string
	Summary  string

	ExpiresAt      time.Time
	ApproverIDs    []string
	ApprovalPolicy string // "any" or "all"; empty defers to the engine default
}

// ErrAlreadyProcessed is returned by Submit on a terminal request.
var ErrAlreadyProcessed = errors.New("escalation: request already processed")

// ErrNotFound is returned when the request id is unknown.
var ErrNotFound = errors.New("escalation: request not found")

// ErrExpired is returned by Submit once a request's timeout has passed.
var ErrExpired = errors.New("escalation: request expired")
