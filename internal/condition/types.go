// Package condition implements the policy rule condition kernel: a closed
// set of condition kinds, each a pure function of (condition, context, deps),
// combined by AND within a rule and by composite any/not.
package condition

import "github.com/agentgov/governor/internal/models"

// Kind is the closed set of condition variants a Rule may contain.
type Kind string

const (
	KindTool      Kind = "tool"
	KindTime      Kind = "time"
	KindAgent     Kind = "agent"
	KindContext   Kind = "context"
	KindRisk      Kind = "risk"
	KindFrequency Kind = "frequency"
	KindAny       Kind = "any"
	KindNot       Kind = "not"
)

// MatchOp is one of the parameter matcher operators for a ToolCondition.
type MatchOp string

const (
	OpEquals     MatchOp = "equals"
	OpContains   MatchOp = "contains"
	OpMatches    MatchOp = "matches"
	OpStartsWith MatchOp = "startsWith"
	OpIn         MatchOp = "in"
)

// ParamMatcher pairs a tool-parameter key with a matcher operator and value.
type ParamMatcher struct {
	Key   string      `yaml:"key"`
	Op    MatchOp     `yaml:"op"`
	Value interface{} `yaml:"value"`
}

// ToolCondition matches on tool name (exact, glob, or array-any) and an
// optional set of parameter matchers, all of which must hold.
type ToolCondition struct {
	Name    string         `yaml:"name,omitempty"`
	NameAny []string       `yaml:"nameAny,omitempty"`
	Params  []ParamMatcher `yaml:"params,omitempty"`
}

// TimeWindow is an inline or named after/before/day-of-week window.
// after>before denotes midnight wrap; after==before denotes exact match.
type TimeWindow struct {
	After      string `yaml:"after,omitempty"`
	Before     string `yaml:"before,omitempty"`
	DaysOfWeek []int  `yaml:"daysOfWeek,omitempty"` // 0=Sunday .. 6=Saturday
}

// TimeCondition references a named window or embeds one inline.
type TimeCondition struct {
	WindowRef string      `yaml:"windowRef,omitempty"`
	Window    *TimeWindow `yaml:"window,omitempty"`
}

// AgentCondition matches on agent id, trust tier membership, and/or an
// inclusive trust-score range.
type AgentCondition struct {
	ID        string       `yaml:"id,omitempty"`
	IDAny     []string     `yaml:"idAny,omitempty"`
	Tiers     []models.Tier `yaml:"tiers,omitempty"`
	ScoreMin  *int         `yaml:"scoreMin,omitempty"`
	ScoreMax  *int         `yaml:"scoreMax,omitempty"`
}

// ContextCondition matches miscellaneous evaluation-context fields.
type ContextCondition struct {
	HistoryContains   string   `yaml:"historyContains,omitempty"`
	HistoryMatches    string   `yaml:"historyMatches,omitempty"`
	MessageContains   string   `yaml:"messageContains,omitempty"`
	MessageMatches    string   `yaml:"messageMatches,omitempty"`
	MetadataHasKey    string   `yaml:"metadataHasKey,omitempty"`
	ChannelAny        []string `yaml:"channelAny,omitempty"`
	SessionKeyGlob    string   `yaml:"sessionKeyGlob,omitempty"`
}

// RiskCondition matches when the current risk level falls within an
// inclusive band range.
type RiskCondition struct {
	Min models.RiskLevel `yaml:"min"`
	Max models.RiskLevel `yaml:"max"`
}

// FrequencyCondition matches when the recent-action count meets or exceeds
// Threshold within WindowSeconds, counted at the given Scope.
type FrequencyCondition struct {
	Threshold     int             `yaml:"threshold"`
	WindowSeconds int             `yaml:"windowSeconds"`
	Scope         frequencyScope  `yaml:"scope"`
}

// frequencyScope mirrors frequency.Scope without importing the frequency
// package's concrete type into the YAML surface.
type frequencyScope string

const (
	ScopeAgent   frequencyScope = "agent"
	ScopeSession frequencyScope = "session"
	ScopeGlobal  frequencyScope = "global"
)

// Condition is a tagged union over the closed set of condition kinds. Only
// the field matching Kind is populated; Any holds sub-conditions for
// KindAny, Not holds exactly one for KindNot.
type Condition struct {
	Kind Kind `yaml:"kind"`

	Tool      *ToolCondition      `yaml:"tool,omitempty"`
	Time      *TimeCondition      `yaml:"time,omitempty"`
	Agent     *AgentCondition     `yaml:"agent,omitempty"`
	Context   *ContextCondition   `yaml:"context,omitempty"`
	Risk      *RiskCondition      `yaml:"risk,omitempty"`
	Frequency *FrequencyCondition `yaml:"frequency,omitempty"`

	Any []Condition `yaml:"any,omitempty"`
	Not *Condition  `yaml:"not,omitempty"`
}
