package audit

import (
	"regexp"

	"github.com/agentgov/governor/internal/models"
)

const truncationSuffix = "[TRUNCATED at 500 chars]"
const redactedValue = "[REDACTED]"
const maxMessageLen = 500

var credentialKeyPattern = regexp.MustCompile(`(?i)^(password|secret|token|apiKey|api_key|credential|auth|authorization)$`)

// Redactor deep-copies an evaluation context and strips sensitive content
// before it is written to the audit log.
type Redactor struct {
	userPatterns []*regexp.Regexp
}

// NewRedactor builds a Redactor that additionally applies each of
// userPatternSources (compiled once) to every string leaf.
func NewRedactor(userPatternSources []string) *Redactor {
	r := &Redactor{}
	for _, src := range userPatternSources {
		if re, err := regexp.Compile(src); err == nil {
			r.userPatterns = append(r.userPatterns, re)
		}
	}
	return r
}

// Redact returns a sanitized copy of ctx: known-sensitive toolParams keys
// are replaced wholesale, an overlong message is truncated, and every
// remaining string field is passed through the configured user patterns.
func (r *Redactor) Redact(ctx *models.EvaluationContext) models.EvaluationContext {
	out := ctx.Clone()

	if out.ToolParams != nil {
		redacted := make(map[string]interface{}, len(out.ToolParams))
		for k, v := range out.ToolParams {
			if credentialKeyPattern.MatchString(k) {
				redacted[k] = redactedValue
				continue
			}
			if s, ok := v.(string); ok {
				redacted[k] = r.applyUserPatterns(s)
				continue
			}
			redacted[k] = v
		}
		out.ToolParams = redacted
	}

	out.MessageContent = r.truncateAndScrub(out.MessageContent)
	out.MessageAddressee = r.applyUserPatterns(out.MessageAddressee)
	out.Channel = r.applyUserPatterns(out.Channel)

	for i, h := range out.ConversationHistory {
		out.ConversationHistory[i] = r.applyUserPatterns(h)
	}
	for k, v := range out.Metadata {
		out.Metadata[k] = r.applyUserPatterns(v)
	}

	return *out
}

func (r *Redactor) truncateAndScrub(s string) string {
	if len(s) > maxMessageLen {
		s = s[:maxMessageLen] + truncationSuffix
	}
	return r.applyUserPatterns(s)
}

func (r *Redactor) applyUserPatterns(s string) string {
	if s == "" {
		return s
	}
	for _, re := range r.userPatterns {
		if re.MatchString(s) {
			s = re.ReplaceAllString(s, redactedValue)
		}
	}
	return s
}
