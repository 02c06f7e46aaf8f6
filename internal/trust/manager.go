// Package trust maintains the per-agent trust store: score derivation from
// weighted signals, tier bands, decay-on-load, and atomic persistence.
package trust

import (
	"sync"
	"time"

	"github.com/agentgov/governor/internal/models"
)

// Weights configures the score formula's per-signal coefficients and caps.
type Weights struct {
	AgePerDay               float64
	AgeMax                  float64
	SuccessPerAction        float64
	SuccessMax              float64
	ViolationPenalty        float64
	ApprovedEscalationBonus float64
	DeniedEscalationPenalty float64
	CleanStreakPerDay       float64
	CleanStreakMax          float64
}

// DefaultWeights returns the built-in coefficients from the reference
// score formula.
func DefaultWeights() Weights {
	return Weights{
		AgePerDay:               0.5,
		AgeMax:                  20,
		SuccessPerAction:        0.1,
		SuccessMax:              30,
		ViolationPenalty:        -2,
		ApprovedEscalationBonus: 0.5,
		DeniedEscalationPenalty: -3,
		CleanStreakPerDay:       0.3,
		CleanStreakMax:          20,
	}
}

// DecayConfig controls score decay for inactive agents, applied at load.
type DecayConfig struct {
	Enabled        bool
	InactivityDays int
	Rate           float64 // multiplier applied to score, e.g. 0.9
}

// Manager owns the trust store: the single exclusive writer described by
// the concurrency model. All mutation methods take the internal mutex;
// reads return copies of the small per-agent record.
type Manager struct {
	mu             sync.Mutex
	store          *models.TrustStore
	dirty          bool
	weights        Weights
	defaults       map[string]int
	maxHistory     int
	decay          DecayConfig
	now            func() time.Time
}

// Options configures a new Manager.
type Options struct {
	Defaults   map[string]int
	Weights    Weights
	MaxHistory int
	Decay      DecayConfig
	Now        func() time.Time
}

// New constructs a Manager around an existing (possibly freshly loaded)
// store. Decay, if configured, is applied by the caller via ApplyDecay
// before agents are served, matching the "at load time" contract.
func New(store *models.TrustStore, opts Options) *Manager {
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 100
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if store.Agents == nil {
		store.Agents = make(map[string]*models.AgentTrust)
	}
	return &Manager{
		store:      store,
		weights:    opts.Weights,
		defaults:   opts.Defaults,
		maxHistory: opts.MaxHistory,
		decay:      opts.Decay,
		now:        opts.Now,
	}
}

// ApplyDecay walks the store once (intended to run right after load) and
// multiplies by Rate the score of any agent inactive for at least
// InactivityDays, clamped to that agent's floor.
func (m *Manager) ApplyDecay() {
	if !m.decay.Enabled {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for _, a := range m.store.Agents {
		if a.LastEvaluatedAt.IsZero() {
			continue
		}
		inactiveDays := int(now.Sub(a.LastEvaluatedAt).Hours() / 24)
		if inactiveDays < m.decay.InactivityDays {
			continue
		}
		floor := 0
		if a.Floor != nil {
			floor = *a.Floor
		}
		a.Score = clamp(int(round(float64(a.Score)*m.decay.Rate)), floor, 100)
		a.Tier = deriveTier(a.Score)
		m.dirty = true
	}
}

// GetAgentTrust returns the stored record for id, initialising one from the
// configured defaults (exact match, then "*", then 50) if absent.
func (m *Manager) GetAgentTrust(id string) models.AgentTrust {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.getOrInit(id)
	return *a
}

func (m *Manager) getOrInit(id string) *models.AgentTrust {
	if a, ok := m.store.Agents[id]; ok {
		return a
	}
	score := m.defaultScoreFor(id)
	a := &models.AgentTrust{
		AgentID:   id,
		Score:     score,
		Tier:      deriveTier(score),
		CreatedAt: m.now(),
	}
	m.store.Agents[id] = a
	m.dirty = true
	return a
}

func (m *Manager) defaultScoreFor(id string) int {
	if m.defaults != nil {
		if s, ok := m.defaults[id]; ok {
			return s
		}
		if s, ok := m.defaults["*"]; ok {
			return s
		}
	}
	return 50
}

// RecordSuccess increments success_count and clean_streak_days, appends a
// positive-delta history event, and recomputes score/tier.
func (m *Manager) RecordSuccess(id string) models.AgentTrust {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.getOrInit(id)
	a.SuccessCount++
	a.CleanStreakDays++
	m.appendHistory(a, "success", m.weights.SuccessPerAction, "")
	m.recompute(a)
	m.dirty = true
	return *a
}

// RecordViolation increments violation_count, resets the clean streak, and
// recomputes score/tier.
func (m *Manager) RecordViolation(id, note string) models.AgentTrust {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.getOrInit(id)
	a.ViolationCount++
	a.CleanStreakDays = 0
	m.appendHistory(a, "violation", m.weights.ViolationPenalty, note)
	m.recompute(a)
	m.dirty = true
	return *a
}

// RecordEscalation adjusts the approved/denied escalation counters.
func (m *Manager) RecordEscalation(id string, approved bool) models.AgentTrust {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.getOrInit(id)
	if approved {
		a.ApprovedEscalations++
		m.appendHistory(a, "escalation_approved", m.weights.ApprovedEscalationBonus, "")
	} else {
		a.DeniedEscalations++
		m.appendHistory(a, "escalation_denied", m.weights.DeniedEscalationPenalty, "")
	}
	m.recompute(a)
	m.dirty = true
	return *a
}

// SetScore clamps s to [max(floor,0),100] and records the difference as a
// manual adjustment rather than overwriting derived signal counters.
func (m *Manager) SetScore(id string, s int) models.AgentTrust {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.getOrInit(id)
	floor := 0
	if a.Floor != nil {
		floor = *a.Floor
	}
	target := clamp(s, max(floor, 0), 100)
	diff := float64(target - a.Score)
	a.ManualAdjustment += diff
	a.Score = target
	if a.LockedTier == nil {
		a.Tier = deriveTier(a.Score)
	}
	m.dirty = true
	return *a
}

// LockTier overrides the derived tier with t until UnlockTier is called.
func (m *Manager) LockTier(id string, t models.Tier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.getOrInit(id)
	a.LockedTier = &t
	m.dirty = true
}

// UnlockTier removes a tier lock, if any.
func (m *Manager) UnlockTier(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.getOrInit(id)
	a.LockedTier = nil
	m.dirty = true
}

// SetFloor sets the score's lower clamp bound.
func (m *Manager) SetFloor(id string, floor int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.getOrInit(id)
	a.Floor = &floor
	m.dirty = true
}

// ResetHistory empties history while preserving cumulative counters.
func (m *Manager) ResetHistory(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.getOrInit(id)
	a.History = nil
	m.dirty = true
}

// Dirty reports whether the store has unpersisted changes.
func (m *Manager) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty
}

// Snapshot returns a shallow copy of the store suitable for serialisation,
// clearing the dirty flag under the lock as described by the concurrency
// model (snapshot under mutex, serialise outside it).
func (m *Manager) Snapshot() models.TrustStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	agents := make(map[string]*models.AgentTrust, len(m.store.Agents))
	for k, v := range m.store.Agents {
		cp := *v
		agents[k] = &cp
	}
	m.dirty = false
	return models.TrustStore{
		Version: 1,
		Updated: m.now(),
		Agents:  agents,
	}
}

func (m *Manager) appendHistory(a *models.AgentTrust, kind string, delta float64, note string) {
	a.History = append(a.History, models.TrustEvent{
		Timestamp: m.now(),
		Kind:      kind,
		Delta:     delta,
		Note:      note,
	})
	if len(a.History) > m.maxHistory {
		a.History = a.History[len(a.History)-m.maxHistory:]
	}
}

func (m *Manager) recompute(a *models.AgentTrust) {
	w := m.weights
	if !a.CreatedAt.IsZero() {
		a.AgeDays = int(m.now().Sub(a.CreatedAt).Hours() / 24)
	}
	raw := min(float64(a.AgeDays)*w.AgePerDay, w.AgeMax) +
		min(float64(a.SuccessCount)*w.SuccessPerAction, w.SuccessMax) +
		float64(a.ViolationCount)*w.ViolationPenalty +
		float64(a.ApprovedEscalations)*w.ApprovedEscalationBonus +
		float64(a.DeniedEscalations)*w.DeniedEscalationPenalty +
		min(float64(a.CleanStreakDays)*w.CleanStreakPerDay, w.CleanStreakMax) +
		a.ManualAdjustment

	floor := 0
	if a.Floor != nil {
		floor = *a.Floor
	}
	a.Score = clamp(int(round(raw)), max(floor, 0), 100)
	if a.LockedTier == nil {
		a.Tier = deriveTier(a.Score)
	}
	a.LastEvaluatedAt = m.now()
}

func deriveTier(score int) models.Tier {
	switch {
	case score >= 80:
		return models.TierPrivileged
	case score >= 60:
		return models.TierTrusted
	case score >= 40:
		return models.TierStandard
	case score >= 20:
		return models.TierRestricted
	default:
		return models.TierUntrusted
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func round(f float64) float64 {
	if f >= 0 {
		return float64(int(f + 0.5))
	}
	return float64(int(f - 0.5))
}
