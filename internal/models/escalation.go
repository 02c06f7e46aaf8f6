package models

import "time"

// EscalationStatus is the lifecycle state of an EscalationRequest.
type EscalationStatus string

const (
	EscalationPending   EscalationStatus = "pending"
	EscalationDelivered EscalationStatus = "delivered"
	EscalationApproved  EscalationStatus = "approved"
	EscalationRejected  EscalationStatus = "rejected"
	EscalationExpired   EscalationStatus = "expired"
)

// EscalationRequest is a pending human/LLM confirmation raised by an
// escalate effect. Delivery (who receives it) is an optional extension;
// the engine only needs Create/GetByID/Submit semantics to produce a
// verdict.
type EscalationRequest struct {
	ID         string
	TraceID    string
	Status     EscalationStatus
	CreatedAt  time.Time
	ExpiresAt  time.Time

	Target   string // named escalation target from the rule effect
	Fallback Action // allow|deny applied on timeout

	AgentID  string
	ToolName string
	Reason   string
	Summary  string

	ApproverIDs    []string
	ApprovedBy     []string
	ApprovalPolicy string // "any" or "all"
}

// IsTerminal reports whether the request no longer accepts Submit.
func (r *EscalationRequest) IsTerminal() bool {
	return r.Status == EscalationApproved ||
		r.Status == EscalationRejected ||
		r.Status == EscalationExpired
}
