package engine

import (
	"testing"

	"github.com/agentgov/governor/internal/condition"
	"github.com/agentgov/governor/internal/config"
	"github.com/agentgov/governor/internal/models"
	"github.com/agentgov/governor/internal/policy"
)

func newTestEngine(t *testing.T, cfg config.Config) *Engine {
	t.Helper()
	if cfg.Workspace == "" {
		cfg.Workspace = t.TempDir()
	}
	if cfg.FailMode == "" {
		cfg.FailMode = "open"
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { e.Stop() })
	return e
}

func TestEvaluateAllowsByDefaultWithNoPolicies(t *testing.T) {
	e := newTestEngine(t, config.Config{Enabled: true})
	v, err := e.EvaluateToolCall(ToolCallInput{AgentID: "a1", SessionKey: "agent:a1:session:1", ToolName: "read"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Action != models.ActionAllow {
		t.Errorf("action = %v, want allow", v.Action)
	}
}

func TestEvaluateDisabledEngineAlwaysAllows(t *testing.T) {
	e := newTestEngine(t, config.Config{Enabled: false})
	v, err := e.EvaluateToolCall(ToolCallInput{AgentID: "a1", ToolName: "exec"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Action != models.ActionAllow {
		t.Errorf("action = %v, want allow", v.Action)
	}
}

func TestEvaluateDenyWinsAcrossPolicies(t *testing.T) {
	cfg := config.Config{
		Enabled: true,
		Policies: []policy.Policy{
			{
				ID:       "allow-all",
				Priority: 10,
				Rules: []policy.Rule{
					{ID: "r1", EffectSpec: policy.EffectSpec{Kind: models.EffectAllow}},
				},
			},
			{
				ID:       "deny-exec",
				Priority: 5,
				Rules: []policy.Rule{
					{
						ID: "r1",
						Conditions: []condition.Condition{
							{Kind: condition.KindTool, Tool: &condition.ToolCondition{Name: "exec"}},
						},
						EffectSpec: policy.EffectSpec{Kind: models.EffectDeny, DenyReason: "exec blocked"},
					},
				},
			},
		},
	}
	e := newTestEngine(t, cfg)
	v, err := e.EvaluateToolCall(ToolCallInput{AgentID: "a1", ToolName: "exec"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Action != models.ActionDeny {
		t.Errorf("action = %v, want deny", v.Action)
	}
	if v.Reason != "exec blocked" {
		t.Errorf("reason = %q", v.Reason)
	}
}

func TestEvaluateCredentialGuardBuiltin(t *testing.T) {
	cfg := config.Config{
		Enabled: true,
		BuiltinPolicies: config.BuiltinPoliciesConfig{
			CredentialGuard: true,
		},
	}
	e := newTestEngine(t, cfg)
	v, err := e.EvaluateToolCall(ToolCallInput{
		AgentID:    "a1",
		ToolName:   "write",
		ToolParams: map[string]interface{}{"api_key": "sk-12345"},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Action != models.ActionDeny {
		t.Errorf("action = %v, want deny (credential guard)", v.Action)
	}
}

func TestEvaluateCredentialGuardBuiltinDeniesEnvFilePath(t *testing.T) {
	cfg := config.Config{
		Enabled: true,
		BuiltinPolicies: config.BuiltinPoliciesConfig{
			CredentialGuard: true,
		},
	}
	e := newTestEngine(t, cfg)
	v, err := e.EvaluateToolCall(ToolCallInput{
		AgentID:    "a1",
		ToolName:   "read",
		ToolParams: map[string]interface{}{"path": "/srv/app/.env"},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Action != models.ActionDeny {
		t.Errorf("action = %v, want deny (credential guard on .env path)", v.Action)
	}
}

func TestEvaluateTrustTierGateBlocksUntrustedAgent(t *testing.T) {
	cfg := config.Config{
		Enabled: true,
		Trust: config.TrustConfig{
			Enabled:  true,
			Defaults: map[string]float64{"*": 10},
		},
		Policies: []policy.Policy{
			{
				ID: "elevated-trusted-only",
				Rules: []policy.Rule{
					{
						ID:       "r1",
						MinTrust: models.TierTrusted,
						Conditions: []condition.Condition{
							{Kind: condition.KindTool, Tool: &condition.ToolCondition{Name: "exec"}},
						},
						EffectSpec: policy.EffectSpec{Kind: models.EffectAllow},
					},
					{
						ID:         "r2",
						Conditions: []condition.Condition{{Kind: condition.KindTool, Tool: &condition.ToolCondition{Name: "exec"}}},
						EffectSpec: policy.EffectSpec{Kind: models.EffectDeny, DenyReason: "insufficient trust"},
					},
				},
			},
		},
	}
	e := newTestEngine(t, cfg)
	v, err := e.EvaluateToolCall(ToolCallInput{AgentID: "low-trust-agent", ToolName: "exec"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Action != models.ActionDeny {
		t.Errorf("action = %v, want deny (trust gate)", v.Action)
	}
}

func TestEvaluateEscalateCreatesEscalationRequest(t *testing.T) {
	cfg := config.Config{
		Enabled: true,
		Policies: []policy.Policy{
			{
				ID: "escalate-exec",
				Rules: []policy.Rule{
					{
						ID:         "r1",
						Conditions: []condition.Condition{{Kind: condition.KindTool, Tool: &condition.ToolCondition{Name: "exec"}}},
						EffectSpec: policy.EffectSpec{Kind: models.EffectEscalate, EscalateTarget: "ops-team", EscalateFallback: models.ActionDeny},
					},
				},
			},
		},
		Escalation: config.EscalationConfig{TimeoutSeconds: 60, ApprovalPolicy: "any"},
	}
	e := newTestEngine(t, cfg)
	v, err := e.EvaluateToolCall(ToolCallInput{AgentID: "a1", ToolName: "exec"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Action != models.ActionEscalate {
		t.Errorf("action = %v, want escalate", v.Action)
	}
	if v.EscalateTarget != "ops-team" {
		t.Errorf("escalate target = %q", v.EscalateTarget)
	}
}

func TestRecordOutcomeUpdatesTrust(t *testing.T) {
	cfg := config.Config{Enabled: true, Trust: config.TrustConfig{Enabled: true}}
	e := newTestEngine(t, cfg)
	before, _ := e.GetTrust("a1")
	e.RecordOutcome("a1", "read", true)
	after, _ := e.GetTrust("a1")
	if after.SuccessCount != before.SuccessCount+1 {
		t.Errorf("success count not incremented: before=%d after=%d", before.SuccessCount, after.SuccessCount)
	}
}

func TestSetTrustClampsAndOverrides(t *testing.T) {
	cfg := config.Config{Enabled: true, Trust: config.TrustConfig{Enabled: true}}
	e := newTestEngine(t, cfg)
	got, ok := e.SetTrust("a1", 200)
	if !ok {
		t.Fatal("SetTrust: trust disabled unexpectedly")
	}
	if got.Score != 100 {
		t.Errorf("score = %d, want clamped to 100", got.Score)
	}
}

func TestRegisterSubAgentEnrichesContext(t *testing.T) {
	cfg := config.Config{Enabled: true, Trust: config.TrustConfig{Enabled: true}}
	e := newTestEngine(t, cfg)
	e.SetTrust("parent-agent", 95)
	e.RegisterSubAgent("agent:parent-agent:session:1", "agent:child-agent:session:2")

	v, err := e.EvaluateToolCall(ToolCallInput{AgentID: "child-agent", SessionKey: "agent:child-agent:session:2", ToolName: "read"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Trust.Tier != models.TierPrivileged {
		t.Errorf("expected enriched trust tier from parent, got %v", v.Trust.Tier)
	}
}

func TestGetStatusReportsStats(t *testing.T) {
	cfg := config.Config{Enabled: true}
	e := newTestEngine(t, cfg)
	e.EvaluateToolCall(ToolCallInput{AgentID: "a1", ToolName: "read"})
	e.EvaluateToolCall(ToolCallInput{AgentID: "a1", ToolName: "read"})
	s := e.GetStatus()
	if s.Stats.Total != 2 {
		t.Errorf("total = %d, want 2", s.Stats.Total)
	}
	if s.Stats.Allowed != 2 {
		t.Errorf("allowed = %d, want 2", s.Stats.Allowed)
	}
}

func TestEvaluateFailModeClosedOnNilContextPath(t *testing.T) {
	cfg := config.Config{Enabled: true, FailMode: "closed"}
	e := newTestEngine(t, cfg)
	v, err := e.Evaluate(nil)
	if err != nil {
		t.Fatalf("Evaluate(nil): unexpected error %v", err)
	}
	if v.Action != models.ActionDeny {
		t.Errorf("action = %v, want deny (fail-closed fallback)", v.Action)
	}
}

func TestEvaluateFailModeOpenOnNilContextPath(t *testing.T) {
	cfg := config.Config{Enabled: true, FailMode: "open"}
	e := newTestEngine(t, cfg)
	v, err := e.Evaluate(nil)
	if err != nil {
		t.Fatalf("Evaluate(nil): unexpected error %v", err)
	}
	if v.Action != models.ActionAllow {
		t.Errorf("action = %v, want allow (fail-open fallback)", v.Action)
	}
}
