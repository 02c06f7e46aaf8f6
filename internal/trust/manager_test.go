package trust

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentgov/governor/internal/models"
)

func newManager(t *testing.T, now time.Time) *Manager {
	t.Helper()
	store := &models.TrustStore{Agents: make(map[string]*models.AgentTrust)}
	return New(store, Options{
		Defaults: map[string]int{"*": 50, "trusted-bot": 70},
		Weights:  DefaultWeights(),
		Now:      func() time.Time { return now },
	})
}

func TestGetAgentTrustUsesDefaults(t *testing.T) {
	m := newManager(t, time.Now())
	a := m.GetAgentTrust("unknown-agent")
	if a.Score != 50 {
		t.Fatalf("expected wildcard default score 50, got %d", a.Score)
	}
	b := m.GetAgentTrust("trusted-bot")
	if b.Score != 70 {
		t.Fatalf("expected exact-match default score 70, got %d", b.Score)
	}
}

func TestRecomputeDerivesAgeDaysFromCreatedAt(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cur := start
	store := &models.TrustStore{Agents: make(map[string]*models.AgentTrust)}
	m := New(store, Options{
		Defaults: map[string]int{"*": 50},
		Weights:  DefaultWeights(),
		Now:      func() time.Time { return cur },
	})
	before := m.GetAgentTrust("agent-a")
	if before.AgeDays != 0 {
		t.Fatalf("expected age 0 at creation, got %d", before.AgeDays)
	}
	cur = start.AddDate(0, 0, 10)
	after := m.RecordSuccess("agent-a")
	if after.AgeDays != 10 {
		t.Fatalf("expected age 10 days after time advances, got %d", after.AgeDays)
	}
}

func TestRecordSuccessIncrementsCountersAndStreak(t *testing.T) {
	m := newManager(t, time.Now())
	var a models.AgentTrust
	for i := 0; i < 5; i++ {
		a = m.RecordSuccess("alice")
	}
	if a.SuccessCount != 5 {
		t.Fatalf("expected success_count=5, got %d", a.SuccessCount)
	}
	if a.CleanStreakDays != 5 {
		t.Fatalf("expected clean_streak_days=5, got %d", a.CleanStreakDays)
	}
}

func TestRecordViolationResetsStreakAndLowersScore(t *testing.T) {
	m := newManager(t, time.Now())
	m.RecordSuccess("bob")
	m.RecordSuccess("bob")
	before := m.GetAgentTrust("bob")
	after := m.RecordViolation("bob", "used banned tool")
	if after.CleanStreakDays != 0 {
		t.Fatalf("expected clean streak reset to 0, got %d", after.CleanStreakDays)
	}
	if after.Score >= before.Score {
		t.Fatalf("expected violation to lower score: before=%d after=%d", before.Score, after.Score)
	}
}

func TestSetScoreClampsToFloor(t *testing.T) {
	m := newManager(t, time.Now())
	m.SetFloor("alice", 30)
	got := m.SetScore("alice", 10)
	if got.Score != 30 {
		t.Fatalf("expected score clamped to floor 30, got %d", got.Score)
	}
}

func TestLockTierOverridesDerivedTier(t *testing.T) {
	m := newManager(t, time.Now())
	m.LockTier("alice", models.TierPrivileged)
	m.SetScore("alice", 5) // would derive to untrusted
	a := m.GetAgentTrust("alice")
	if a.EffectiveTier() != models.TierPrivileged {
		t.Fatalf("expected locked tier to override derived tier, got %s", a.EffectiveTier())
	}
	m.UnlockTier("alice")
	a = m.GetAgentTrust("alice")
	if a.EffectiveTier() == models.TierPrivileged {
		t.Fatalf("expected tier to fall back to derived after unlock")
	}
}

func TestResetHistoryPreservesCounters(t *testing.T) {
	m := newManager(t, time.Now())
	m.RecordSuccess("alice")
	m.RecordViolation("alice", "x")
	m.ResetHistory("alice")
	a := m.GetAgentTrust("alice")
	if len(a.History) != 0 {
		t.Fatalf("expected history cleared, got %d entries", len(a.History))
	}
	if a.SuccessCount != 1 || a.ViolationCount != 1 {
		t.Fatalf("expected cumulative counters preserved, got success=%d violation=%d", a.SuccessCount, a.ViolationCount)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trust.json")
	m := newManager(t, time.Now())
	m.RecordSuccess("alice")
	if err := Save(path, m.Snapshot()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if store.Agents["alice"].SuccessCount != 1 {
		t.Fatalf("expected round-tripped success_count=1, got %d", store.Agents["alice"].SuccessCount)
	}
}

func TestLoadMissingFileReturnsEmptyStore(t *testing.T) {
	store, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if len(store.Agents) != 0 {
		t.Fatalf("expected empty store, got %d agents", len(store.Agents))
	}
}

func TestLoadCorruptFilePreservesAndReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trust.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0o644); err != nil {
		t.Fatalf("setup write failed: %v", err)
	}
	store, err := Load(path)
	if err != nil {
		t.Fatalf("expected corrupt file to be handled without error, got %v", err)
	}
	if len(store.Agents) != 0 {
		t.Fatalf("expected empty store after corrupt load, got %d agents", len(store.Agents))
	}
	matches, _ := filepath.Glob(path + ".corrupt-*")
	if len(matches) != 1 {
		t.Fatalf("expected exactly one preserved corrupt file, got %d", len(matches))
	}
}

func TestApplyDecayReducesInactiveAgentScore(t *testing.T) {
	now := time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC)
	store := &models.TrustStore{Agents: map[string]*models.AgentTrust{
		"idle": {AgentID: "idle", Score: 80, Tier: models.TierPrivileged, LastEvaluatedAt: now.AddDate(0, 0, -40)},
	}}
	m := New(store, Options{
		Weights: DefaultWeights(),
		Decay:   DecayConfig{Enabled: true, InactivityDays: 30, Rate: 0.5},
		Now:     func() time.Time { return now },
	})
	m.ApplyDecay()
	a := m.GetAgentTrust("idle")
	if a.Score != 40 {
		t.Fatalf("expected decayed score 40, got %d", a.Score)
	}
	if a.Tier != models.TierStandard {
		t.Fatalf("expected re-derived tier standard, got %s", a.Tier)
	}
}
