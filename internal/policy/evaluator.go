package policy

import (
	"sort"

	"github.com/agentgov/governor/internal/condition"
	"github.com/agentgov/governor/internal/models"
)

const (
	reasonAllowed        = "Allowed by governance policy"
	reasonNoMatch        = "No matching policies"
	reasonDenyFallback   = "Denied by governance policy"
)

// Evaluate computes the effective policy set for ctx, evaluates each one's
// rules, and aggregates the contributions under deny-wins.
func Evaluate(idx *Index, ctx *models.EvaluationContext, deps condition.Deps) models.Verdict {
	effective := effectivePolicySet(idx, ctx)

	type contribution struct {
		policy Policy
		rule   Rule
		effect models.EffectResult
	}
	var contributions []contribution
	var matched []models.MatchedPolicy

	for _, p := range effective {
		rule, effect, ok := firstSatisfiedRule(p, ctx, deps)
		if !ok {
			continue
		}
		contributions = append(contributions, contribution{policy: p, rule: rule, effect: effect})
		matched = append(matched, models.MatchedPolicy{PolicyID: p.ID, RuleID: rule.ID, Effect: effect.Kind})
	}

	verdict := models.Verdict{MatchedPolicies: matched}

	for _, c := range contributions {
		if c.effect.Kind == models.EffectDeny {
			reason := c.effect.DenyReason
			if reason == "" {
				reason = reasonDenyFallback
			}
			verdict.Action = models.ActionDeny
			verdict.Reason = reason
			return verdict
		}
	}
	for _, c := range contributions {
		if c.effect.Kind == models.EffectEscalate {
			verdict.Action = models.ActionEscalate
			verdict.Reason = "Escalated by governance policy"
			verdict.EscalateTarget = c.effect.EscalateTarget
			verdict.EscalateFallback = c.effect.EscalateFallback
			return verdict
		}
	}
	if len(contributions) > 0 {
		verdict.Action = models.ActionAllow
		verdict.Reason = reasonAllowed
		return verdict
	}
	verdict.Action = models.ActionAllow
	verdict.Reason = reasonNoMatch
	return verdict
}

// effectivePolicySet unions the hook and agent buckets, de-duplicates by
// id, applies scope filters, and orders by priority/specificity/declaration.
func effectivePolicySet(idx *Index, ctx *models.EvaluationContext) []Policy {
	seen := make(map[string]bool)
	var out []Policy

	add := func(list []Policy) {
		for _, p := range list {
			if seen[p.ID] {
				continue
			}
			if !inScope(p, ctx) {
				continue
			}
			seen[p.ID] = true
			out = append(out, p)
		}
	}

	add(idx.ByHook[string(ctx.Hook)])
	add(idx.ByAgent[ctx.AgentID])
	add(idx.ByAgent["*"])

	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i], out[j]
		if pi.Priority != pj.Priority {
			return pi.Priority > pj.Priority
		}
		si, sj := specificity(pi), specificity(pj)
		if si != sj {
			return si > sj
		}
		return pi.declOrder < pj.declOrder
	})
	return out
}

func specificity(p Policy) int {
	s := 0
	if len(p.Scope.AgentIDs) > 0 {
		s += 10
	}
	if len(p.Scope.Channels) > 0 {
		s += 5
	}
	if len(p.Scope.Hooks) > 0 {
		s += 3
	}
	return s
}

func inScope(p Policy, ctx *models.EvaluationContext) bool {
	if !p.IsEnabled() {
		return false
	}
	for _, excluded := range p.Scope.ExcludeAgentIDs {
		if excluded == ctx.AgentID {
			return false
		}
	}
	if len(p.Scope.Channels) > 0 {
		found := false
		for _, ch := range p.Scope.Channels {
			if ch == ctx.Channel {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// firstSatisfiedRule iterates rules in declared order, applies trust-tier
// gates, then AND-evaluates conditions. A policy contributes at most one
// effect: that of the first satisfied rule.
func firstSatisfiedRule(p Policy, ctx *models.EvaluationContext, deps condition.Deps) (Rule, models.EffectResult, bool) {
	for _, r := range p.Rules {
		if !trustGatePasses(r, ctx.Trust.EffectiveTier()) {
			continue
		}
		if condition.EvaluateAll(r.Conditions, ctx, deps) {
			return r, r.effect, true
		}
	}
	return Rule{}, models.EffectResult{}, false
}

func trustGatePasses(r Rule, tier models.Tier) bool {
	if r.MinTrust != "" && !models.TierAtLeast(tier, r.MinTrust) {
		return false
	}
	if r.MaxTrust != "" && !models.TierAtLeast(r.MaxTrust, tier) {
		return false
	}
	return true
}
