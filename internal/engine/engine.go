// Package engine owns the whole governance pipeline: config-driven
// construction of every subsystem, the start/stop lifecycle, and the
// evaluate path that turns a host's EvaluationContext into a Verdict.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/agentgov/governor/internal/audit"
	"github.com/agentgov/governor/internal/chain"
	"github.com/agentgov/governor/internal/condition"
	"github.com/agentgov/governor/internal/config"
	"github.com/agentgov/governor/internal/delivery"
	"github.com/agentgov/governor/internal/delivery/feishu"
	"github.com/agentgov/governor/internal/escalation"
	"github.com/agentgov/governor/internal/frequency"
	"github.com/agentgov/governor/internal/models"
	"github.com/agentgov/governor/internal/ownership"
	"github.com/agentgov/governor/internal/policy"
	"github.com/agentgov/governor/internal/risk"
	"github.com/agentgov/governor/internal/trust"
	"github.com/agentgov/governor/internal/util"
)

// ErrDisabled is returned by Evaluate when the engine is configured off;
// callers should treat it the same as an allow with no side effects.
var ErrDisabled = errors.New("engine: disabled")

// Stats are the running counters the status surface exposes.
type Stats struct {
	Total          int64
	Allowed        int64
	Denied         int64
	Escalated      int64
	Errors         int64
	MeanEvalUs     float64
}

// Status is the get_status response shape.
type Status struct {
	Enabled      bool
	PolicyCount  int
	TrustEnabled bool
	AuditEnabled bool
	FailMode     string
	Stats        Stats
}

// Engine owns every subsystem and is safe for concurrent use.
type Engine struct {
	cfg   config.Config
	clock util.Clock

	mu  sync.RWMutex
	idx *policy.Index

	trustManager *trust.Manager
	trustSched   *trust.Scheduler

	auditStore *audit.Store
	auditSched *audit.Scheduler
	redactor   *audit.Redactor
	ledger     *audit.LedgerBridge

	freq *frequency.Counter
	risk *risk.Assessor

	resolver    ownership.Resolver
	escalations escalation.Engine

	statsMu sync.Mutex
	stats   Stats

	subAgentsMu sync.RWMutex
	subAgents   map[string]string // child session key -> parent session key
}

// New constructs an Engine from cfg but does not start any background
// goroutine or touch disk; call Start for that.
func New(cfg config.Config) (*Engine, error) {
	toggles := policy.BuiltinToggles{
		NightMode:           cfg.BuiltinPolicies.NightMode,
		CredentialGuard:     cfg.BuiltinPolicies.CredentialGuard,
		ProductionSafeguard: cfg.BuiltinPolicies.ProductionSafeguard,
		RateLimiter:         cfg.BuiltinPolicies.RateLimiter,
	}
	params := policy.BuiltinParams{
		NightModeAfter:        cfg.BuiltinPolicies.NightModeAfter,
		NightModeBefore:       cfg.BuiltinPolicies.NightModeBefore,
		RateLimiterThreshold:  cfg.BuiltinPolicies.RateLimiterThreshold,
		RateLimiterWindowSecs: cfg.BuiltinPolicies.RateLimiterWindowSecs,
	}
	idx, err := policy.BuildIndex(cfg.Policies, toggles, params)
	if err != nil {
		return nil, fmt.Errorf("engine: build policy index: %w", err)
	}

	bufSize := cfg.Performance.FrequencyBufferSize
	freq := frequency.New(bufSize)

	e := &Engine{
		cfg:       cfg,
		clock:     util.NewSystemClock(),
		idx:       idx,
		freq:      freq,
		risk:      risk.New(cfg.ToolRiskOverrides, freq),
		subAgents: make(map[string]string),
	}

	e.redactor = audit.NewRedactor(cfg.Audit.RedactPatterns)
	e.resolver = buildResolver(cfg.Ownership)
	e.escalations = escalation.NewInMemoryEngine()

	return e, nil
}

func buildResolver(oc config.OwnershipConfig) ownership.Resolver {
	rules := make([]ownership.Rule, 0, len(oc.Rules))
	for _, r := range oc.Rules {
		rules = append(rules, ownership.Rule{
			Target:          r.Target,
			ToolName:        r.ToolName,
			RiskLevel:       models.RiskLevel(r.RiskLevel),
			TimeoutSeconds:  r.TimeoutSeconds,
			ApprovalUserIDs: r.ApprovalUserIDs,
			ApprovalPolicy:  r.ApprovalPolicy,
		})
	}
	def := ownership.ApprovalRuleMatch{
		TimeoutSeconds:  oc.Default.TimeoutSeconds,
		ApprovalUserIDs: oc.Default.ApprovalUserIDs,
		ApprovalPolicy:  oc.Default.ApprovalPolicy,
	}
	return ownership.NewRuleMatcher(rules, def)
}

// Start loads trust and audit state from disk, begins the periodic
// persistence/flush timers, and wires the escalation delivery path. It is
// a no-op (returns nil) when the engine is disabled.
func (e *Engine) Start() error {
	if !e.cfg.Enabled {
		return nil
	}

	if e.cfg.Trust.Enabled {
		trustPath := filepath.Join(e.cfg.Workspace, "trust-store.json")
		store, err := trust.Load(trustPath)
		if err != nil {
			return fmt.Errorf("engine: load trust store: %w", err)
		}
		weights := resolveWeights(e.cfg.Trust.Weights)
		defaults := make(map[string]int, len(e.cfg.Trust.Defaults))
		for k, v := range e.cfg.Trust.Defaults {
			defaults[k] = int(v)
		}
		e.trustManager = trust.New(store, trust.Options{
			Defaults:   defaults,
			Weights:    weights,
			MaxHistory: e.cfg.Trust.MaxHistoryPerAgent,
			Decay: trust.DecayConfig{
				Enabled:        e.cfg.Trust.Decay.Enabled,
				InactivityDays: e.cfg.Trust.Decay.InactivityDays,
				Rate:           e.cfg.Trust.Decay.Rate,
			},
		})
		e.trustManager.ApplyDecay()
		interval := time.Duration(e.cfg.Trust.PersistIntervalSecs) * time.Second
		e.trustSched = trust.NewScheduler(e.trustManager, trustPath, interval)
		e.trustSched.Start()
	}

	if e.cfg.Audit.Enabled {
		auditDir := filepath.Join(e.cfg.Workspace, "audit")
		store, err := audit.NewStore(audit.Options{
			Dir:             auditDir,
			Redactor:        e.redactor,
			RetentionDays:   e.cfg.Audit.RetentionDays,
			VerifyOnStartup: e.cfg.Audit.VerifyOnStartup,
		})
		if err != nil {
			return fmt.Errorf("engine: open audit store: %w", err)
		}
		e.auditStore = store
		e.auditSched = audit.NewScheduler(store, time.Second)
		e.auditSched.Start()

		if e.cfg.Audit.Ledger.Enabled {
			backend := chain.NewLocalStoreWithPath(e.cfg.Audit.Ledger.Dir)
			ledger := chain.NewLedger(backend)
			bridge := audit.NewLedgerBridge(ledger,
				e.cfg.Audit.Ledger.BatchSize,
				time.Duration(e.cfg.Audit.Ledger.IntervalSecs)*time.Second)
			bridge.Start()
			e.ledger = bridge
		}
	}

	if e.cfg.Workspace != "" {
		escDir := e.cfg.Escalation.PersistencePath
		if escDir == "" {
			escDir = filepath.Join(e.cfg.Workspace, "pending-approvals")
		}
		store, err := escalation.NewJSONStore(escDir)
		if err != nil {
			return fmt.Errorf("engine: open escalation store: %w", err)
		}
		var notifier delivery.Provider = delivery.StubProvider{}
		if e.cfg.Delivery.Feishu.Enabled {
			notifier = feishu.NewProvider(e.cfg.Delivery.Feishu)
		}
		e.escalations = escalation.NewEngineImpl(store, e.cfg.Escalation.TimeoutSeconds, e.resolver, notifier, e.cfg.Escalation.ApprovalPolicy)
	}

	e.freq.Clear()
	return nil
}

// Stop halts background timers, flushing audit and persisting trust one
// last time before returning.
func (e *Engine) Stop() error {
	var firstErr error
	if e.trustSched != nil {
		if err := e.trustSched.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.ledger != nil {
		e.ledger.Stop()
	}
	if e.auditSched != nil {
		if err := e.auditSched.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func resolveWeights(wc config.WeightsConfig) trust.Weights {
	w := trust.DefaultWeights()
	if wc.AgePerDay != nil {
		w.AgePerDay = *wc.AgePerDay
	}
	if wc.AgeMax != nil {
		w.AgeMax = *wc.AgeMax
	}
	if wc.SuccessPerAction != nil {
		w.SuccessPerAction = *wc.SuccessPerAction
	}
	if wc.SuccessMax != nil {
		w.SuccessMax = *wc.SuccessMax
	}
	if wc.ViolationPenalty != nil {
		w.ViolationPenalty = *wc.ViolationPenalty
	}
	if wc.ApprovedEscalationBonus != nil {
		w.ApprovedEscalationBonus = *wc.ApprovedEscalationBonus
	}
	if wc.DeniedEscalationPenalty != nil {
		w.DeniedEscalationPenalty = *wc.DeniedEscalationPenalty
	}
	if wc.CleanStreakPerDay != nil {
		w.CleanStreakPerDay = *wc.CleanStreakPerDay
	}
	if wc.CleanStreakMax != nil {
		w.CleanStreakMax = *wc.CleanStreakMax
	}
	return w
}

// Evaluate runs the full governance pipeline for one hook call: frequency
// recording, risk assessment, policy evaluation, audit emission. Any
// internal panic-free error is converted into the configured fail-mode
// verdict rather than propagated, matching the broad error guard described
// for the orchestrator.
func (e *Engine) Evaluate(ctx *models.EvaluationContext) (models.Verdict, error) {
	if !e.cfg.Enabled {
		return models.Verdict{Action: models.ActionAllow, Reason: "governance disabled"}, nil
	}
	startUs := e.clock.NowUs()
	verdict, err := e.evaluateInner(ctx, startUs)
	if err != nil {
		log.Printf("[governor] evaluate error, falling back to fail_mode=%s: %v", e.cfg.FailMode, err)
		verdict = e.fallbackVerdict(startUs)
		e.recordStats(verdict)
		e.emitAudit(ctx, verdict, true)
		return verdict, nil
	}
	e.recordStats(verdict)
	e.emitAudit(ctx, verdict, false)
	return verdict, nil
}

func (e *Engine) evaluateInner(ctx *models.EvaluationContext, startUs int64) (verdict models.Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered: %v", r)
		}
	}()
	if ctx == nil {
		return models.Verdict{}, fmt.Errorf("nil evaluation context")
	}

	e.enrichSubAgent(ctx)

	nowMs := e.clock.Now().UnixMilli()
	e.freq.Record(nowMs, ctx.AgentID, ctx.SessionKey, ctx.ToolName)

	assessment := e.risk.Assess(ctx, nowMs)

	e.mu.RLock()
	idx := e.idx
	e.mu.RUnlock()

	deps := condition.Deps{
		Regex:       idx.Regex,
		TimeWindows: e.cfg.TimeWindows,
		Frequency:   e.freq,
		Risk:        assessment,
	}
	v := policy.Evaluate(idx, ctx, deps)
	v.Risk = assessment
	v.Trust = models.TrustSnapshot{Score: ctx.Trust.Score, Tier: ctx.Trust.EffectiveTier()}
	v.EvaluationUs = e.clock.NowUs() - startUs

	if budget := e.cfg.Performance.MaxEvalUs; budget > 0 && v.EvaluationUs > budget {
		v.BudgetExceeded = true
		log.Printf("[governor] evaluate exceeded budget: took=%dus budget=%dus agent=%s tool=%s",
			v.EvaluationUs, budget, ctx.AgentID, ctx.ToolName)
	}

	if v.Action == models.ActionEscalate {
		e.raiseEscalation(ctx, v)
	}

	return v, nil
}

func (e *Engine) raiseEscalation(ctx *models.EvaluationContext, v models.Verdict) {
	timeout := e.cfg.Escalation.TimeoutSeconds
	if timeout <= 0 {
		timeout = 300
	}
	approvalPolicy := e.cfg.Escalation.ApprovalPolicy
	if approvalPolicy == "" {
		approvalPolicy = "any"
	}
	in := &escalation.CreateInput{
		TraceID:        ctx.SessionKey,
		Target:         v.EscalateTarget,
		Fallback:       v.EscalateFallback,
		AgentID:        ctx.AgentID,
		ToolName:       ctx.ToolName,
		Reason:         v.Reason,
		ExpiresAt:      e.clock.Now().Add(time.Duration(timeout) * time.Second),
		ApprovalPolicy: approvalPolicy,
	}
	if _, err := e.escalations.Create(context.Background(), in); err != nil {
		log.Printf("[governor] escalation create failed: %v", err)
	}
}

// enrichSubAgent looks up a registered parent session's agent id and, when
// the parent's trust tier is higher than the sub-agent's, copies the
// parent's trust record onto the sub-agent's context. ctx.AgentID is left
// unchanged.
func (e *Engine) enrichSubAgent(ctx *models.EvaluationContext) {
	e.subAgentsMu.RLock()
	parentKey, ok := e.subAgents[ctx.SessionKey]
	e.subAgentsMu.RUnlock()
	if !ok || e.trustManager == nil {
		return
	}
	parentAgentID := util.ExtractAgentID(parentKey, ctx.AgentID)
	if parentAgentID == "" || parentAgentID == ctx.AgentID {
		return
	}
	parentTrust := e.trustManager.GetAgentTrust(parentAgentID)
	if models.TierIndex(parentTrust.EffectiveTier()) > models.TierIndex(ctx.Trust.EffectiveTier()) {
		ctx.Trust = parentTrust
	}
}

func (e *Engine) fallbackVerdict(startUs int64) models.Verdict {
	action := models.ActionAllow
	reason := "fail-open fallback"
	if e.cfg.FailMode == "closed" {
		action = models.ActionDeny
		reason = "fail-closed fallback"
	}
	return models.Verdict{
		Action:       action,
		Reason:       reason,
		EvaluationUs: e.clock.NowUs() - startUs,
	}
}

func (e *Engine) recordStats(v models.Verdict) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	e.stats.Total++
	switch v.Action {
	case models.ActionAllow:
		e.stats.Allowed++
	case models.ActionDeny:
		e.stats.Denied++
	case models.ActionEscalate:
		e.stats.Escalated++
	}
	if v.Reason == "fail-open fallback" || v.Reason == "fail-closed fallback" {
		e.stats.Errors++
	}
	n := float64(e.stats.Total)
	e.stats.MeanEvalUs += (float64(v.EvaluationUs) - e.stats.MeanEvalUs) / n
}

func (e *Engine) emitAudit(ctx *models.EvaluationContext, v models.Verdict, isFallback bool) {
	if e.auditStore == nil {
		return
	}
	agentID, hook, tool := "", models.HookKind(""), ""
	if ctx != nil {
		agentID, hook, tool = ctx.AgentID, ctx.Hook, ctx.ToolName
	}
	verdictAction := v.Action
	if isFallback {
		verdictAction = models.Action("error_fallback")
	}
	var controls []string
	if v.BudgetExceeded {
		controls = append(controls, "budget_exceeded")
	}
	rec, err := e.auditStore.Append(audit.AppendInput{
		AgentID:            agentID,
		Hook:               hook,
		ToolName:           tool,
		Context:            ctx,
		Verdict:            verdictAction,
		Trust:              v.Trust,
		Risk:               v.Risk,
		Matched:            v.MatchedPolicies,
		EvaluationUs:       v.EvaluationUs,
		ComplianceControls: controls,
	})
	if err != nil {
		log.Printf("[governor] audit append failed: %v", err)
		return
	}
	if e.ledger != nil && rec.ID != "" {
		e.ledger.Notify(rec)
	}
}

// RecordOutcome reports a completed tool call's success or failure to the
// trust manager, if trust tracking is enabled.
func (e *Engine) RecordOutcome(agentID, toolName string, success bool) {
	if e.trustManager == nil {
		return
	}
	if success {
		e.trustManager.RecordSuccess(agentID)
	} else {
		e.trustManager.RecordViolation(agentID, fmt.Sprintf("tool %s failed", toolName))
	}
}

// RegisterSubAgent records a parent/child session relationship used by
// cross-agent context enrichment.
func (e *Engine) RegisterSubAgent(parentSessionKey, childSessionKey string) {
	e.subAgentsMu.Lock()
	defer e.subAgentsMu.Unlock()
	e.subAgents[childSessionKey] = parentSessionKey
}

// GetStatus returns the current status surface.
func (e *Engine) GetStatus() Status {
	e.mu.RLock()
	seen := make(map[string]struct{})
	for _, policies := range e.idx.ByAgent {
		for _, p := range policies {
			seen[p.ID] = struct{}{}
		}
	}
	policyCount := len(seen)
	e.mu.RUnlock()
	e.statsMu.Lock()
	stats := e.stats
	e.statsMu.Unlock()
	return Status{
		Enabled:      e.cfg.Enabled,
		PolicyCount:  policyCount,
		TrustEnabled: e.trustManager != nil,
		AuditEnabled: e.auditStore != nil,
		FailMode:     e.cfg.FailMode,
		Stats:        stats,
	}
}

// GetTrust returns a single agent's trust record, or the zero value and
// false if trust tracking is disabled.
func (e *Engine) GetTrust(agentID string) (models.AgentTrust, bool) {
	if e.trustManager == nil {
		return models.AgentTrust{}, false
	}
	return e.trustManager.GetAgentTrust(agentID), true
}

// SetTrust performs a clamped manual override of an agent's trust score.
func (e *Engine) SetTrust(agentID string, score int) (models.AgentTrust, bool) {
	if e.trustManager == nil {
		return models.AgentTrust{}, false
	}
	return e.trustManager.SetScore(agentID, score), true
}
