package escalation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/agentgov/governor/internal/delivery"
	"github.com/agentgov/governor/internal/models"
	"github.com/agentgov/governor/internal/ownership"
	"github.com/google/uuid"
)

// EngineImpl is the persisted, notifier-backed Engine: Create resolves
// approvers and best-effort delivers, GetByID/Submit read and write
// through the JSONStore.
type EngineImpl struct {
	store          *JSONStore
	timeout        time.Duration
	resolve        ownership.Resolver
	notify         delivery.Provider
	approvalPolicy string // "any" or "all", the engine-wide default
}

// NewEngineImpl builds an escalation engine. resolve and notify may be
// nil (no approver resolution / no delivery). approvalPolicy is the
// engine-wide default used when a CreateInput doesn't specify one; only
// "all" opts into all-must-approve, anything else is "any".
func NewEngineImpl(store *JSONStore, timeoutSeconds int, resolve ownership.Resolver, notify delivery.Provider, approvalPolicy string) *EngineImpl {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 300
	}
	if approvalPolicy != "all" {
		approvalPolicy = "any"
	}
	return &EngineImpl{
		store:          store,
		timeout:        time.Duration(timeoutSeconds) * time.Second,
		resolve:        resolve,
		notify:         notify,
		approvalPolicy: approvalPolicy,
	}
}

// Create assigns an ID, resolves approvers via the ownership resolver
// when the caller didn't supply an explicit list, persists the request,
// and best-effort delivers it.
func (e *EngineImpl) Create(ctx context.Context, in *CreateInput) (*models.EscalationRequest, error) {
	if in == nil {
		return nil, fmt.Errorf("escalation: nil create input")
	}
	expiresAt := in.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(e.timeout)
	}
	approverIDs := in.ApproverIDs
	if e.resolve != nil && len(approverIDs) == 0 {
		ids, _ := e.resolve.Resolve(ctx, in.Target, in.ToolName, "")
		if len(ids) > 0 {
			approverIDs = ids
		}
	}
	policy := e.approvalPolicy
	if in.ApprovalPolicy == "all" {
		policy = "all"
	} else if in.ApprovalPolicy != "" {
		policy = "any"
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
		ApproverIDs:    approverIDs,
		ApprovalPolicy: policy,
	}
	if err := e.store.Put(ctx, req); err != nil {
		return nil, err
	}
	if e.notify != nil {
		opts := &delivery.DeliverOptions{ApproverIDs: approverIDs, Summary: in.Summary}
		deliverIn := &delivery.DeliverInput{Request: req, Options: opts}
		go func() {
			if err := e.notify.Deliver(context.WithoutCancel(ctx), deliverIn); err != nil {
				log.Printf("[governor] escalation delivery failed, request still pending: %v", err)
			}
		}()
	}
	return req, nil
}

// GetByID reads the request, flipping it to expired in place (and
// persisting that transition) if its deadline has passed.
func (e *EngineImpl) GetByID(ctx context.Context, id string) (*models.EscalationRequest, error) {
	req, err := e.store.Get(ctx, id)
	if err != nil || req == nil {
		return nil, err
	}
	if !req.IsTerminal() && time.Now().After(req.ExpiresAt) {
		req.Status = models.EscalationExpired
		_ = e.store.Put(ctx, req)
	}
	return req, nil
}

// Submit idempotently records an approve/reject decision.
func (e *EngineImpl) Submit(ctx context.Context, id string, approved bool, approverID string) error {
	req, err := e.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if req == nil {
		return ErrNotFound
	}
	if req.IsTerminal() {
		return ErrAlreadyProcessed
	}
	if time.Now().After(req.ExpiresAt) {
		req.Status = models.EscalationExpired
		_ = e.store.Put(ctx, req)
		return ErrExpired
	}
	if !approved {
		req.Status = models.EscalationRejected
		return e.store.Put(ctx, req)
	}

	policy := req.ApprovalPolicy
	if policy == "" {
		policy = e.approvalPolicy
	}
	if policy == "all" {
		already := false
		for _, x := range req.ApprovedBy {
			if x == approverID {
				already = true
				break
			}
		}
		if !already && approverID != "" {
			req.ApprovedBy = append(req.ApprovedBy, approverID)
		}
		if len(req.ApprovedBy) >= len(req.ApproverIDs) {
			req.Status = models.EscalationApproved
		}
		return e.store.Put(ctx, req)
	}

	req.Status = models.EscalationApproved
	return e.store.Put(ctx, req)
}
