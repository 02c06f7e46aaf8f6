package policy

import (
	"testing"
	"time"

	"github.com/agentgov/governor/internal/condition"
	"github.com/agentgov/governor/internal/models"
)

func newCtx() *models.EvaluationContext {
	return &models.EvaluationContext{
		Hook:     models.HookBeforeToolCall,
		AgentID:  "alice",
		Channel:  "cli",
		ToolName: "exec",
		ToolParams: map[string]interface{}{
			"command": "ls",
		},
		Time:  models.TimeContext{Hour: 3, Minute: 15, MinuteOfDay: 195, DayOfWeek: time.Tuesday},
		Trust: models.AgentTrust{Score: 60, Tier: models.TierStandard},
	}
}

func newDeps(idx *Index) condition.Deps {
	return condition.Deps{Regex: idx.Regex, TimeWindows: map[string]TimeWindow(nil)}
}

// TimeWindow alias so newDeps compiles without importing condition's type
// directly in the test; kept local to avoid widening the test's import set.
type TimeWindow = condition.TimeWindow

func TestNightModeDeniesDuringWindow(t *testing.T) {
	idx, err := BuildIndex(nil, BuiltinToggles{NightMode: true}, BuiltinParams{})
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}
	verdict := Evaluate(idx, newCtx(), newDeps(idx))
	if verdict.Action != models.ActionDeny {
		t.Fatalf("expected deny during night-mode window, got %s: %s", verdict.Action, verdict.Reason)
	}
	found := false
	for _, m := range verdict.MatchedPolicies {
		if m.PolicyID == "builtin-night-mode" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected builtin-night-mode in matched policies")
	}
}

func TestCredentialGuardDeniesCredentialParam(t *testing.T) {
	idx, err := BuildIndex(nil, BuiltinToggles{CredentialGuard: true}, BuiltinParams{})
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}
	ctx := newCtx()
	ctx.Time.Hour = 12 // MinuteOfDay still reads 03:15; irrelevant here since only credential-guard toggled
	ctx.ToolParams["password"] = "hunter2"
	verdict := Evaluate(idx, ctx, newDeps(idx))
	if verdict.Action != models.ActionDeny {
		t.Fatalf("expected deny for credential param, got %s", verdict.Action)
	}
}

func TestCredentialGuardDeniesCredentialFilePath(t *testing.T) {
	idx, err := BuildIndex(nil, BuiltinToggles{CredentialGuard: true}, BuiltinParams{})
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}
	ctx := newCtx()
	ctx.Time.Hour = 12
	ctx.ToolName = "read"
	ctx.ToolParams = map[string]interface{}{"path": "/srv/app/.env"}
	verdict := Evaluate(idx, ctx, newDeps(idx))
	if verdict.Action != models.ActionDeny {
		t.Fatalf("expected deny for credential file path, got %s", verdict.Action)
	}
}

func TestDenyWinsOverEscalateAndAllow(t *testing.T) {
	declared := []Policy{
		{
			ID:       "allow-all",
			Priority: 10,
			Rules: []Rule{
				{ID: "r1", EffectSpec: EffectSpec{Kind: models.EffectAllow}},
			},
		},
		{
			ID:       "escalate-some",
			Priority: 20,
			Rules: []Rule{
				{ID: "r1", EffectSpec: EffectSpec{Kind: models.EffectEscalate, EscalateTarget: "ops"}},
			},
		},
		{
			ID:       "deny-low-priority",
			Priority: 5,
			Rules: []Rule{
				{ID: "r1", EffectSpec: EffectSpec{Kind: models.EffectDeny, DenyReason: "nope"}},
			},
		},
	}
	idx, err := BuildIndex(declared, BuiltinToggles{}, BuiltinParams{})
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}
	ctx := newCtx()
	ctx.Time.Hour = 12
	verdict := Evaluate(idx, ctx, newDeps(idx))
	if verdict.Action != models.ActionDeny || verdict.Reason != "nope" {
		t.Fatalf("expected deny-wins aggregation, got action=%s reason=%s", verdict.Action, verdict.Reason)
	}
}

func TestEscalateWinsOverAllowWhenNoDeny(t *testing.T) {
	declared := []Policy{
		{
			ID:       "allow-all",
			Priority: 10,
			Rules:    []Rule{{ID: "r1", EffectSpec: EffectSpec{Kind: models.EffectAllow}}},
		},
		{
			ID:       "escalate-some",
			Priority: 20,
			Rules:    []Rule{{ID: "r1", EffectSpec: EffectSpec{Kind: models.EffectEscalate, EscalateTarget: "ops", EscalateFallback: models.ActionDeny}}},
		},
	}
	idx, err := BuildIndex(declared, BuiltinToggles{}, BuiltinParams{})
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}
	ctx := newCtx()
	ctx.Time.Hour = 12
	verdict := Evaluate(idx, ctx, newDeps(idx))
	if verdict.Action != models.ActionEscalate || verdict.EscalateTarget != "ops" {
		t.Fatalf("expected escalate to win over allow, got %+v", verdict)
	}
}

func TestNoMatchingPoliciesReasonWhenEmpty(t *testing.T) {
	idx, err := BuildIndex(nil, BuiltinToggles{}, BuiltinParams{})
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}
	verdict := Evaluate(idx, newCtx(), newDeps(idx))
	if verdict.Action != models.ActionAllow || verdict.Reason != reasonNoMatch {
		t.Fatalf("expected default allow with no-match reason, got %+v", verdict)
	}
}

func TestTrustTierGateExcludesRule(t *testing.T) {
	declared := []Policy{
		{
			ID: "privileged-only-deny",
			Rules: []Rule{
				{ID: "r1", MinTrust: models.TierPrivileged, EffectSpec: EffectSpec{Kind: models.EffectDeny, DenyReason: "blocked"}},
			},
		},
	}
	idx, err := BuildIndex(declared, BuiltinToggles{}, BuiltinParams{})
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}
	ctx := newCtx() // tier=standard, below minTrust=privileged
	verdict := Evaluate(idx, ctx, newDeps(idx))
	if verdict.Action == models.ActionDeny {
		t.Fatalf("expected trust gate to exclude the rule, got deny")
	}
}

func TestCompileDegradesNestedQuantifierRegexToNonMatching(t *testing.T) {
	declared := []Policy{
		{
			ID: "bad-regex",
			Rules: []Rule{
				{ID: "r1", Conditions: []condition.Condition{
					{Kind: condition.KindContext, Context: &condition.ContextCondition{MessageMatches: "(a+)+"}},
				}, EffectSpec: EffectSpec{Kind: models.EffectDeny}},
			},
		},
	}
	idx, err := BuildIndex(declared, BuiltinToggles{}, BuiltinParams{})
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}
	ctx := newCtx()
	ctx.MessageContent = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaa!"
	verdict := Evaluate(idx, ctx, newDeps(idx))
	if verdict.Action == models.ActionDeny {
		t.Fatal("expected unsafe regex condition to never match, got deny")
	}
}

func TestCompileDegradesOverlongRegexToNonMatching(t *testing.T) {
	long := make([]byte, 501)
	for i := range long {
		long[i] = 'a'
	}
	declared := []Policy{
		{
			ID: "too-long",
			Rules: []Rule{
				{ID: "r1", Conditions: []condition.Condition{
					{Kind: condition.KindContext, Context: &condition.ContextCondition{MessageMatches: string(long)}},
				}, EffectSpec: EffectSpec{Kind: models.EffectDeny}},
			},
		},
	}
	idx, err := BuildIndex(declared, BuiltinToggles{}, BuiltinParams{})
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}
	verdict := Evaluate(idx, newCtx(), newDeps(idx))
	if verdict.Action == models.ActionDeny {
		t.Fatal("expected overlong regex condition to never match, got deny")
	}
}

func TestDeclaredPolicyWinsOverBuiltinOnIDCollision(t *testing.T) {
	declared := []Policy{
		{
			ID: "builtin-night-mode",
			Rules: []Rule{
				{ID: "r1", EffectSpec: EffectSpec{Kind: models.EffectAllow}},
			},
		},
	}
	idx, err := BuildIndex(declared, BuiltinToggles{NightMode: true}, BuiltinParams{})
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}
	verdict := Evaluate(idx, newCtx(), newDeps(idx))
	if verdict.Action != models.ActionAllow {
		t.Fatalf("expected declared policy to win over builtin with same id, got %s", verdict.Action)
	}
}
