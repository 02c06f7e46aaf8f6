package engine

import (
	"time"

	"github.com/agentgov/governor/internal/models"
	"github.com/agentgov/governor/internal/util"
)

// ToolCallInput is the host-supplied payload for a before_tool_call hook.
type ToolCallInput struct {
	AgentID             string
	SessionKey          string
	Channel             string
	ToolName            string
	ToolParams          map[string]interface{}
	ConversationHistory []string
	Metadata            map[string]string
}

// MessageInput is the host-supplied payload for a message_sending hook.
type MessageInput struct {
	AgentID             string
	SessionKey          string
	Channel             string
	Content             string
	Addressee           string
	ConversationHistory []string
	Metadata            map[string]string
}

// AgentStartInput is the host-supplied payload for a before_agent_start hook.
type AgentStartInput struct {
	AgentID    string
	SessionKey string
	Channel    string
	Metadata   map[string]string
}

// SessionStartInput is the host-supplied payload for a session_start hook.
type SessionStartInput struct {
	AgentID    string
	SessionKey string
	Channel    string
	Metadata   map[string]string
}

// EvaluateToolCall adapts a ToolCallInput into an EvaluationContext and
// evaluates it under HookBeforeToolCall.
func (e *Engine) EvaluateToolCall(in ToolCallInput) (models.Verdict, error) {
	ctx := e.newContext(models.HookBeforeToolCall, in.AgentID, in.SessionKey, in.Channel, in.ConversationHistory, in.Metadata)
	ctx.ToolName = in.ToolName
	ctx.ToolParams = in.ToolParams
	return e.Evaluate(ctx)
}

// EvaluateMessage adapts a MessageInput into an EvaluationContext and
// evaluates it under HookMessageSending.
func (e *Engine) EvaluateMessage(in MessageInput) (models.Verdict, error) {
	ctx := e.newContext(models.HookMessageSending, in.AgentID, in.SessionKey, in.Channel, in.ConversationHistory, in.Metadata)
	ctx.MessageContent = in.Content
	ctx.MessageAddressee = in.Addressee
	return e.Evaluate(ctx)
}

// EvaluateAgentStart adapts an AgentStartInput into an EvaluationContext and
// evaluates it under HookBeforeAgentStart.
func (e *Engine) EvaluateAgentStart(in AgentStartInput) (models.Verdict, error) {
	ctx := e.newContext(models.HookBeforeAgentStart, in.AgentID, in.SessionKey, in.Channel, nil, in.Metadata)
	return e.Evaluate(ctx)
}

// EvaluateSessionStart adapts a SessionStartInput into an EvaluationContext
// and evaluates it under HookSessionStart.
func (e *Engine) EvaluateSessionStart(in SessionStartInput) (models.Verdict, error) {
	ctx := e.newContext(models.HookSessionStart, in.AgentID, in.SessionKey, in.Channel, nil, in.Metadata)
	return e.Evaluate(ctx)
}

func (e *Engine) newContext(hook models.HookKind, agentID, sessionKey, channel string, history []string, metadata map[string]string) *models.EvaluationContext {
	trustSnapshot := models.AgentTrust{AgentID: agentID, Score: 50, Tier: models.TierStandard}
	if e.trustManager != nil {
		trustSnapshot = e.trustManager.GetAgentTrust(agentID)
	}
	maxHistory := e.cfg.Performance.MaxContextMessages
	if maxHistory > 0 && len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	return &models.EvaluationContext{
		Hook:                hook,
		AgentID:             agentID,
		SessionKey:          sessionKey,
		Channel:             channel,
		Time:                util.CurrentTime(e.cfg.Timezone, time.Now()),
		MonotonicUs:         e.clock.NowUs(),
		Trust:               trustSnapshot,
		ConversationHistory: history,
		Metadata:            metadata,
	}
}
