package ownership

import (
	"context"
	"strings"

	"github.com/agentgov/governor/internal/models"
)

// ApprovalRuleMatch is one rule's resolved timeout, approver set and
// approval policy.
type ApprovalRuleMatch struct {
	TimeoutSeconds  int
	ApprovalUserIDs []string
	ApprovalPolicy  string // "any" or "all"
}

// Rule is one declared approval-routing rule: Target is an exact match
// against the escalation's target name, ToolName a prefix match against the
// tool name, and RiskLevel an exact match against the assessed risk band.
// Any empty field matches everything.
type Rule struct {
	Target          string
	ToolName        string
	RiskLevel       models.RiskLevel
	TimeoutSeconds  int
	ApprovalUserIDs []string
	ApprovalPolicy  string
}

// RuleMatcher resolves an escalation target + tool name + risk level to
// an approver set by matching declared rules in order, falling back to a
// default when nothing matches.
type RuleMatcher struct {
	rules []Rule
	def   ApprovalRuleMatch
}

// NewRuleMatcher builds a RuleMatcher from rules (first match wins) and a
// default used when no rule matches or a matched rule leaves a field
// unset.
func NewRuleMatcher(rules []Rule, def ApprovalRuleMatch) *RuleMatcher {
	entries := make([]Rule, len(rules))
	for i, r := range rules {
		if r.ApprovalPolicy != "all" {
			r.ApprovalPolicy = "any"
		}
		r.ApprovalUserIDs = append([]string(nil), r.ApprovalUserIDs...)
		entries[i] = r
	}
	if def.ApprovalPolicy != "all" {
		def.ApprovalPolicy = "any"
	}
	return &RuleMatcher{rules: entries, def: def}
}

// Match returns the first rule whose Target/ToolName/RiskLevel all match,
// filling any zero field from the default.
func (m *RuleMatcher) Match(target, toolName string, riskLevel models.RiskLevel) ApprovalRuleMatch {
	for _, r := range m.rules {
		if r.Target != "" && r.Target != target {
			continue
		}
		if r.ToolName != "" && !strings.HasPrefix(toolName, r.ToolName) {
			continue
		}
		if r.RiskLevel != "" && r.RiskLevel != riskLevel {
			continue
		}
		out := ApprovalRuleMatch{
			TimeoutSeconds:  r.TimeoutSeconds,
			ApprovalUserIDs: append([]string(nil), r.ApprovalUserIDs...),
			ApprovalPolicy:  r.ApprovalPolicy,
		}
		if out.TimeoutSeconds <= 0 {
			out.TimeoutSeconds = m.def.TimeoutSeconds
		}
		if len(out.ApprovalUserIDs) == 0 {
			out.ApprovalUserIDs = append([]string(nil), m.def.ApprovalUserIDs...)
		}
		return out
	}
	return m.def
}

// Resolve implements Resolver by delegating to Match and returning only
// the approver ids.
func (m *RuleMatcher) Resolve(ctx context.Context, target, toolName string, riskLevel models.RiskLevel) ([]string, error) {
	return m.Match(target, toolName, riskLevel).ApprovalUserIDs, nil
}
