package risk

import (
	"testing"

	"github.com/agentgov/governor/internal/frequency"
	"github.com/agentgov/governor/internal/models"
)

func TestAssessUnknownToolDefaultsTo30(t *testing.T) {
	a := New(nil, frequency.New(10))
	ctx := &models.EvaluationContext{
		ToolName: "totally_unknown_tool",
		Time:     models.TimeContext{Hour: 12},
		Trust:    models.AgentTrust{Score: 100},
	}
	got := a.Assess(ctx, 0)
	if got.Factors.ToolSensitivity != float64(unknownToolScore)/100*30 {
		t.Fatalf("unexpected tool sensitivity factor: %v", got.Factors.ToolSensitivity)
	}
}

func TestAssessNightHoursAddTimeFactor(t *testing.T) {
	a := New(nil, frequency.New(10))
	ctx := &models.EvaluationContext{
		ToolName: "read",
		Time:     models.TimeContext{Hour: 2},
		Trust:    models.AgentTrust{Score: 100},
	}
	got := a.Assess(ctx, 0)
	if got.Factors.TimeOfDay != 15 {
		t.Fatalf("expected night-hours time factor of 15, got %v", got.Factors.TimeOfDay)
	}
}

func TestAssessTargetScopeDetectsElevatedAndHost(t *testing.T) {
	a := New(nil, frequency.New(10))
	ctx := &models.EvaluationContext{
		ToolName:   "exec",
		Time:       models.TimeContext{Hour: 12},
		Trust:      models.AgentTrust{Score: 100},
		ToolParams: map[string]interface{}{"host": "prod-db"},
	}
	got := a.Assess(ctx, 0)
	if got.Factors.TargetScope != 20 {
		t.Fatalf("expected target scope factor of 20 for non-sandbox host, got %v", got.Factors.TargetScope)
	}

	ctx.ToolParams = map[string]interface{}{"host": "sandbox"}
	got = a.Assess(ctx, 0)
	if got.Factors.TargetScope != 0 {
		t.Fatalf("expected target scope factor of 0 for sandbox host, got %v", got.Factors.TargetScope)
	}
}

func TestAssessBandingThresholds(t *testing.T) {
	cases := []struct {
		score int
		want  models.RiskLevel
	}{
		{0, models.RiskLow},
		{25, models.RiskLow},
		{26, models.RiskMedium},
		{50, models.RiskMedium},
		{51, models.RiskHigh},
		{75, models.RiskHigh},
		{76, models.RiskCritical},
		{100, models.RiskCritical},
	}
	for _, c := range cases {
		if got := band(c.score); got != c.want {
			t.Errorf("band(%d) = %q, want %q", c.score, got, c.want)
		}
	}
}

func TestAssessScoreClampedAndFrequencyFactorCaps(t *testing.T) {
	freq := frequency.New(100)
	for i := 0; i < 30; i++ {
		freq.Record(int64(i*1000), "alice", "sess", "exec")
	}
	a := New(nil, freq)
	ctx := &models.EvaluationContext{
		AgentID:  "alice",
		ToolName: "gateway", // 95 -> 28.5
		Time:     models.TimeContext{Hour: 2}, // +15
		Trust:    models.AgentTrust{Score: 0}, // +20
	}
	got := a.Assess(ctx, 40000)
	if got.Factors.Frequency != 15 {
		t.Fatalf("expected frequency factor capped at 15, got %v", got.Factors.Frequency)
	}
	if got.Score < 0 || got.Score > 100 {
		t.Fatalf("score out of [0,100] bounds: %d", got.Score)
	}
}
