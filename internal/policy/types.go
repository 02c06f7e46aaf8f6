// Package policy compiles declared and built-in policies into an immutable
// index and evaluates them against an evaluation context under deny-wins
// aggregation.
package policy

import (
	"github.com/agentgov/governor/internal/condition"
	"github.com/agentgov/governor/internal/models"
)

// Scope restricts a Policy's applicability. An empty or absent set means
// "any" for that dimension.
type Scope struct {
	AgentIDs        []string          `yaml:"agentIds,omitempty"`
	ExcludeAgentIDs []string          `yaml:"excludeAgentIds,omitempty"`
	Channels        []string          `yaml:"channels,omitempty"`
	Hooks           []models.HookKind `yaml:"hooks,omitempty"`
}

// EffectSpec is the YAML-facing shape of a rule's effect; Compile resolves
// it into a models.EffectResult.
type EffectSpec struct {
	Kind             models.EffectKind `yaml:"kind"`
	DenyReason       string            `yaml:"denyReason,omitempty"`
	EscalateTarget   string            `yaml:"escalateTarget,omitempty"`
	EscalateFallback models.Action     `yaml:"escalateFallback,omitempty"`
	AuditLevel       string            `yaml:"auditLevel,omitempty"`
}

// Rule is an ordered sequence of AND-combined conditions with an effect and
// optional trust-tier gates. The first rule in a policy whose conditions
// all hold and whose trust gates permit produces the policy's contribution.
type Rule struct {
	ID         string                `yaml:"id"`
	Conditions []condition.Condition `yaml:"conditions,omitempty"`
	EffectSpec EffectSpec            `yaml:"effect"`
	MinTrust   models.Tier           `yaml:"minTrust,omitempty"`
	MaxTrust   models.Tier           `yaml:"maxTrust,omitempty"`

	effect models.EffectResult // resolved by Compile
}

// Policy is identified by a stable string id and carries an ordered
// sequence of rules evaluated in declared order.
type Policy struct {
	ID       string `yaml:"id"`
	Version  string `yaml:"version,omitempty"`
	Name     string `yaml:"name,omitempty"`
	Priority int    `yaml:"priority,omitempty"`
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Scope    Scope  `yaml:"scope,omitempty"`
	Rules    []Rule `yaml:"rules,omitempty"`

	declOrder int
}

// IsEnabled reports whether the policy is active, defaulting to true when
// unset.
func (p *Policy) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}
