// Package models provides the shared request, decision and audit types used
// across the policy, risk, trust and audit packages.
package models

import "time"

// HookKind identifies the synchronous extension point the host called on.
type HookKind string

const (
	HookBeforeToolCall   HookKind = "before_tool_call"
	HookMessageSending   HookKind = "message_sending"
	HookBeforeAgentStart HookKind = "before_agent_start"
	HookSessionStart     HookKind = "session_start"
)

// TimeContext carries the wall-clock components in the engine's configured
// timezone at the moment an EvaluationContext was assembled.
type TimeContext struct {
	Hour       int
	Minute     int
	DayOfWeek  time.Weekday
	Date       string // YYYY-MM-DD
	Zone       string
	MinuteOfDay int
}

// EvaluationContext is immutable per call.
type EvaluationContext struct {
	Hook       HookKind
	AgentID    string
	SessionKey string
	Channel    string

	// Tool hooks.
	ToolName   string
	ToolParams map[string]interface{}

	// Message hooks.
	MessageContent   string
	MessageAddressee string

	Time         TimeContext
	MonotonicUs  int64

	Trust AgentTrust

	// ConversationHistory is a bounded slice of recent message strings.
	ConversationHistory []string

	Metadata map[string]string
}

// Clone returns a deep-enough copy for redaction purposes: maps and slices
// are copied so mutating the clone never touches the original context.
func (c *EvaluationContext) Clone() *EvaluationContext {
	if c == nil {
		return nil
	}
	out := *c
	if c.ToolParams != nil {
		out.ToolParams = make(map[string]interface{}, len(c.ToolParams))
		for k, v := range c.ToolParams {
			out.ToolParams[k] = v
		}
	}
	if c.ConversationHistory != nil {
		out.ConversationHistory = append([]string(nil), c.ConversationHistory...)
	}
	if c.Metadata != nil {
		out.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
