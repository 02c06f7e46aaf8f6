package escalation

import (
	"context"
	"sync"
	"time"

	"github.com/agentgov/governor/internal/models"
	"github.com/google/uuid"
)

// InMemoryEngine is a non-persisted Engine: useful for tests and for
// engines run without a workspace directory. No approver resolution or
// delivery is performed.
type InMemoryEngine struct {
	mu   sync.RWMutex
	reqs map[string]*models.EscalationRequest
}

// NewInMemoryEngine returns a ready InMemoryEngine.
func NewInMemoryEngine() *InMemoryEngine {
	return &InMemoryEngine{reqs: make(map[string]*models.EscalationRequest)}
}

func (e *InMemoryEngine) Create(ctx context.Context, in *CreateInput) (*models.EscalationRequest, error) {
	expiresAt := in.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(5 * time.Minute)
	}
	req := &models.EscalationRequest{
		ID:             uuid.New().String(),
		TraceID:        in.TraceID,
		Status:         models.EscalationPending,
		CreatedAt:      time.Now(),
		ExpiresAt:      expiresAt,
		Target:         in.Target,
		Fallback:       in.Fallback,
		AgentID:        in.AgentID,
		ToolName:       in.ToolName,
		Reason:         in.Reason,
		Summary:        in.Summary,
		ApproverIDs:    in.ApproverIDs,
		ApprovalPolicy: in.ApprovalPolicy,
	}
	e.mu.Lock()
	e.reqs[req.ID] = req
	e.mu.Unlock()
	return req, nil
}

func (e *InMemoryEngine) GetByID(ctx context.Context, id string) (*models.EscalationRequest, error) {
	e.mu.RLock()
	req := e.reqs[id]
	e.mu.RUnlock()
	if req == nil {
		return nil, ErrNotFound
	}
	if !req.IsTerminal() && time.Now().After(req.ExpiresAt) {
		req.Status = models.EscalationExpired
	}
	return req, nil
}

func (e *InMemoryEngine) Submit(ctx context.Context, id string, approved bool, approverID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	req := e.reqs[id]
	if req == nil {
		return ErrNotFound
	}
	if req.IsTerminal() {
		return ErrAlreadyProcessed
	}
	if time.Now().After(req.ExpiresAt) {
		req.Status = models.EscalationExpired
		return ErrExpired
	}
	if approved {
		req.Status = models.EscalationApproved
	} else {
		req.Status = models.EscalationRejected
	}
	return nil
}

var _ Engine = (*InMemoryEngine)(nil)
var _ Engine = (*EngineImpl)(nil)
