package condition

import (
	"fmt"
	"strings"

	"github.com/agentgov/governor/internal/frequency"
	"github.com/agentgov/governor/internal/models"
	"github.com/agentgov/governor/internal/util"
)

func mapScope(s frequencyScope) frequency.Scope {
	switch s {
	case ScopeAgent:
		return frequency.ScopeAgent
	case ScopeSession:
		return frequency.ScopeSession
	default:
		return frequency.ScopeGlobal
	}
}

// EvaluateAll AND-combines conditions, short-circuiting on the first false.
func EvaluateAll(conds []Condition, ctx *models.EvaluationContext, deps Deps) bool {
	for _, c := range conds {
		if !Evaluate(&c, ctx, deps) {
			return false
		}
	}
	return true
}

// Evaluate dispatches a single condition to its kind-specific matcher. An
// unrecognised kind never matches.
func Evaluate(c *Condition, ctx *models.EvaluationContext, deps Deps) bool {
	switch c.Kind {
	case KindTool:
		return evalTool(c.Tool, ctx, deps)
	case KindTime:
		return evalTime(c.Time, ctx, deps)
	case KindAgent:
		return evalAgent(c.Agent, ctx)
	case KindContext:
		return evalContext(c.Context, ctx, deps)
	case KindRisk:
		return evalRisk(c.Risk, deps)
	case KindFrequency:
		return evalFrequency(c.Frequency, ctx, deps)
	case KindAny:
		for _, sub := range c.Any {
			if Evaluate(&sub, ctx, deps) {
				return true
			}
		}
		return false
	case KindNot:
		if c.Not == nil {
			return false
		}
		return !Evaluate(c.Not, ctx, deps)
	default:
		return false
	}
}

func evalTool(t *ToolCondition, ctx *models.EvaluationContext, deps Deps) bool {
	if t == nil || ctx.ToolName == "" {
		return false
	}
	if !matchToolName(t, ctx.ToolName, deps) {
		return false
	}
	for _, m := range t.Params {
		v, ok := ctx.ToolParams[m.Key]
		if !ok {
			return false
		}
		if !matchParam(m, v, deps) {
			return false
		}
	}
	return true
}

func matchToolName(t *ToolCondition, name string, deps Deps) bool {
	if len(t.NameAny) > 0 {
		for _, n := range t.NameAny {
			if matchGlobOrExact(n, name, deps) {
				return true
			}
		}
		return t.Name != "" && matchGlobOrExact(t.Name, name, deps)
	}
	if t.Name == "" {
		return true
	}
	return matchGlobOrExact(t.Name, name, deps)
}

func matchGlobOrExact(pattern, value string, deps Deps) bool {
	if !strings.ContainsAny(pattern, "*?") {
		return pattern == value
	}
	re := deps.Regex.Get(util.GlobToRegexPattern(pattern))
	return re.MatchString(value)
}

func matchParam(m ParamMatcher, actual interface{}, deps Deps) bool {
	switch m.Op {
	case OpEquals:
		return actual == m.Value
	case OpContains:
		return strings.Contains(coerceString(actual), coerceString(m.Value))
	case OpMatches:
		pattern := coerceString(m.Value)
		return deps.Regex.Get(pattern).MatchString(coerceString(actual))
	case OpStartsWith:
		return strings.HasPrefix(coerceString(actual), coerceString(m.Value))
	case OpIn:
		set, ok := m.Value.([]interface{})
		if !ok {
			return false
		}
		for _, item := range set {
			if item == actual {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func coerceString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func evalTime(t *TimeCondition, ctx *models.EvaluationContext, deps Deps) bool {
	if t == nil {
		return false
	}
	win := t.Window
	if win == nil {
		if t.WindowRef == "" {
			return false
		}
		w, ok := deps.TimeWindows[t.WindowRef]
		if !ok {
			return false
		}
		win = &w
	}
	if len(win.DaysOfWeek) > 0 {
		matched := false
		for _, d := range win.DaysOfWeek {
			if d == int(ctx.Time.DayOfWeek) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	after := util.ParseTimeMinutes(win.After)
	before := util.ParseTimeMinutes(win.Before)
	if after == util.InvalidMinutes || before == util.InvalidMinutes {
		return false
	}
	return util.InTimeRange(ctx.Time.MinuteOfDay, after, before)
}

func evalAgent(a *AgentCondition, ctx *models.EvaluationContext) bool {
	if a == nil {
		return false
	}
	if len(a.IDAny) > 0 {
		found := false
		for _, id := range a.IDAny {
			if id == ctx.AgentID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	} else if a.ID != "" && a.ID != ctx.AgentID {
		return false
	}
	if len(a.Tiers) > 0 {
		found := false
		for _, tier := range a.Tiers {
			if tier == ctx.Trust.EffectiveTier() {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if a.ScoreMin != nil && ctx.Trust.Score < *a.ScoreMin {
		return false
	}
	if a.ScoreMax != nil && ctx.Trust.Score > *a.ScoreMax {
		return false
	}
	return true
}

func evalContext(c *ContextCondition, ctx *models.EvaluationContext, deps Deps) bool {
	if c == nil {
		return false
	}
	if c.HistoryContains != "" {
		if !anyContains(ctx.ConversationHistory, c.HistoryContains) {
			return false
		}
	}
	if c.HistoryMatches != "" {
		re := deps.Regex.Get(c.HistoryMatches)
		if !anyMatches(ctx.ConversationHistory, re) {
			return false
		}
	}
	if c.MessageContains != "" && !strings.Contains(ctx.MessageContent, c.MessageContains) {
		return false
	}
	if c.MessageMatches != "" && !deps.Regex.Get(c.MessageMatches).MatchString(ctx.MessageContent) {
		return false
	}
	if c.MetadataHasKey != "" {
		if _, ok := ctx.Metadata[c.MetadataHasKey]; !ok {
			return false
		}
	}
	if len(c.ChannelAny) > 0 {
		found := false
		for _, ch := range c.ChannelAny {
			if ch == ctx.Channel {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if c.SessionKeyGlob != "" && !matchGlobOrExact(c.SessionKeyGlob, ctx.SessionKey, deps) {
		return false
	}
	return true
}

func anyContains(history []string, needle string) bool {
	for _, h := range history {
		if strings.Contains(h, needle) {
			return true
		}
	}
	return false
}

func anyMatches(history []string, re interface{ MatchString(string) bool }) bool {
	for _, h := range history {
		if re.MatchString(h) {
			return true
		}
	}
	return false
}

func evalRisk(r *RiskCondition, deps Deps) bool {
	if r == nil {
		return false
	}
	level := models.RiskLevelIndex(deps.Risk.Level)
	min := models.RiskLevelIndex(r.Min)
	max := models.RiskLevelIndex(r.Max)
	if level < 0 || min < 0 || max < 0 {
		return false
	}
	return level >= min && level <= max
}

func evalFrequency(f *FrequencyCondition, ctx *models.EvaluationContext, deps Deps) bool {
	if f == nil || deps.Frequency == nil {
		return false
	}
	nowMs := ctx.MonotonicUs / 1000
	var scope = mapScope(f.Scope)
	count := deps.Frequency.Count(nowMs, f.WindowSeconds, scope, ctx.AgentID, ctx.SessionKey)
	return count >= f.Threshold
}
