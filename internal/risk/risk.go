// Package risk computes a bounded 0-100 risk score from five weighted
// factors and bands it into a discrete level.
package risk

import (
	"math"

	"github.com/agentgov/governor/internal/frequency"
	"github.com/agentgov/governor/internal/models"
)

// defaultToolScores is the built-in tool-sensitivity table, out of 100.
// Unknown tools default to 30.
var defaultToolScores = map[string]float64{
	"gateway":        95,
	"elevated":       95,
	"cron":           90,
	"exec":           70,
	"write":          65,
	"edit":           60,
	"sessions_send":  50,
	"sessions_spawn": 45,
	"browser":        40,
	"message":        40,
	"web_fetch":      20,
	"web_search":     15,
	"canvas":         15,
	"read":           10,
	"memory_read":    5,
	"memory_write":   5,
	"image":          10,
}

const unknownToolScore = 30

// Assessor computes RiskAssessment values from an evaluation context.
type Assessor struct {
	toolScores map[string]float64
	frequency  *frequency.Counter
}

// New builds an Assessor. overrides supersede the built-in table entry for
// the same key; freq may be nil only in tests that don't exercise the
// frequency factor.
func New(overrides map[string]float64, freq *frequency.Counter) *Assessor {
	scores := make(map[string]float64, len(defaultToolScores)+len(overrides))
	for k, v := range defaultToolScores {
		scores[k] = v
	}
	for k, v := range overrides {
		scores[k] = v
	}
	return &Assessor{toolScores: scores, frequency: freq}
}

// Assess computes the weighted RiskAssessment for ctx at evaluation time
// nowMs (milliseconds, same clock domain as the frequency counter).
func (a *Assessor) Assess(ctx *models.EvaluationContext, nowMs int64) models.RiskAssessment {
	toolSensitivity := a.toolSensitivity(ctx.ToolName) / 100 * 30
	timeOfDay := a.timeOfDay(ctx.Time.Hour)
	trustDeficit := float64(100-ctx.Trust.Score) / 100 * 20
	freq := a.frequencyFactor(ctx, nowMs)
	scope := a.targetScope(ctx)

	total := toolSensitivity + timeOfDay + trustDeficit + freq + scope
	score := int(math.Round(total))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return models.RiskAssessment{
		Score: score,
		Level: band(score),
		Factors: models.RiskFactors{
			ToolSensitivity: toolSensitivity,
			TimeOfDay:       timeOfDay,
			TrustDeficit:    trustDeficit,
			Frequency:       freq,
			TargetScope:     scope,
		},
	}
}

func (a *Assessor) toolSensitivity(tool string) float64 {
	if tool == "" {
		return 0
	}
	if s, ok := a.toolScores[tool]; ok {
		return s
	}
	return unknownToolScore
}

func (a *Assessor) timeOfDay(hour int) float64 {
	if hour < 8 || hour >= 23 {
		return 15
	}
	return 0
}

func (a *Assessor) frequencyFactor(ctx *models.EvaluationContext, nowMs int64) float64 {
	if a.frequency == nil {
		return 0
	}
	count := a.frequency.Count(nowMs, 60, frequency.ScopeAgent, ctx.AgentID, ctx.SessionKey)
	ratio := float64(count) / 20
	if ratio > 1 {
		ratio = 1
	}
	return ratio * 15
}

func (a *Assessor) targetScope(ctx *models.EvaluationContext) float64 {
	if ctx.MessageAddressee != "" {
		return 20
	}
	if host, ok := ctx.ToolParams["host"]; ok {
		if s, ok := host.(string); ok && s != "sandbox" {
			return 20
		}
	}
	if elevated, ok := ctx.ToolParams["elevated"]; ok {
		if b, ok := elevated.(bool); ok && b {
			return 20
		}
	}
	return 0
}

func band(score int) models.RiskLevel {
	switch {
	case score <= 25:
		return models.RiskLow
	case score <= 50:
		return models.RiskMedium
	case score <= 75:
		return models.RiskHigh
	default:
		return models.RiskCritical
	}
}
