package policy

import (
	"github.com/agentgov/governor/internal/condition"
	"github.com/agentgov/governor/internal/models"
)

// BuiltinToggles enables/disables each parameterised built-in policy
// template independently.
type BuiltinToggles struct {
	NightMode           bool
	CredentialGuard     bool
	ProductionSafeguard bool
	RateLimiter         bool
}

// BuiltinParams parameterises the built-in templates; zero values fall back
// to the documented defaults.
type BuiltinParams struct {
	NightModeAfter        string // default "23:00"
	NightModeBefore       string // default "08:00"
	RateLimiterThreshold  int    // default 20
	RateLimiterWindowSecs int    // default 60
}

func withDefaults(p BuiltinParams) BuiltinParams {
	if p.NightModeAfter == "" {
		p.NightModeAfter = "23:00"
	}
	if p.NightModeBefore == "" {
		p.NightModeBefore = "08:00"
	}
	if p.RateLimiterThreshold == 0 {
		p.RateLimiterThreshold = 20
	}
	if p.RateLimiterWindowSecs == 0 {
		p.RateLimiterWindowSecs = 60
	}
	return p
}

// BuildBuiltins generates the toggled built-in policies from parameterised
// templates. Declared policies with a colliding id win at merge time.
func BuildBuiltins(toggles BuiltinToggles, params BuiltinParams) []Policy {
	params = withDefaults(params)
	var out []Policy
	if toggles.NightMode {
		out = append(out, nightModePolicy(params))
	}
	if toggles.CredentialGuard {
		out = append(out, credentialGuardPolicy(params))
	}
	if toggles.ProductionSafeguard {
		out = append(out, productionSafeguardPolicy())
	}
	if toggles.RateLimiter {
		out = append(out, rateLimiterPolicy(params))
	}
	return out
}

func nightModePolicy(p BuiltinParams) Policy {
	return Policy{
		ID:       "builtin-night-mode",
		Name:     "Night Mode",
		Priority: 100,
		Rules: []Rule{
			{
				ID: "deny-outside-business-hours",
				Conditions: []condition.Condition{
					{Kind: condition.KindTime, Time: &condition.TimeCondition{
						Window: &condition.TimeWindow{After: p.NightModeAfter, Before: p.NightModeBefore},
					}},
				},
				EffectSpec: EffectSpec{
					Kind:       models.EffectDeny,
					DenyReason: "Action blocked by night-mode policy",
				},
				MaxTrust: models.TierTrusted,
			},
		},
	}
}

// credentialParamKeys are the parameter names the credential-guard builtin
// treats as sensitive outright, mirroring the audit redactor's key pattern.
var credentialParamKeys = []string{
	"password", "secret", "token", "apiKey", "api_key", "credential", "auth", "authorization",
}

// credentialPathKeys are parameter names likely to carry a file path, so
// their value (not just their key) needs inspecting for a credential-file
// shape, e.g. {"path": "/srv/app/.env"}.
var credentialPathKeys = []string{
	"path", "file", "filepath", "src", "dest", "target", "filename", "uri", "url",
}

// credentialFilePattern matches common credential/secret file shapes by
// value: dotenv files, SSH private keys, TLS key bundles, and the usual
// cloud/tool credential file names.
const credentialFilePattern = `(^|/)(\.env(\.[^/]*)?|id_rsa(\.pub)?|[^/]*\.(pem|key|p12|pfx)|\.pgpass|\.htpasswd|\.netrc|\.npmrc|credentials(\.json)?|\.aws/credentials|\.ssh/.*)$`

func credentialGuardPolicy(_ BuiltinParams) Policy {
	any := make([]condition.Condition, 0, len(credentialParamKeys)+len(credentialPathKeys))
	for _, key := range credentialParamKeys {
		any = append(any, condition.Condition{
			Kind: condition.KindTool,
			Tool: &condition.ToolCondition{
				Params: []condition.ParamMatcher{{Key: key, Op: condition.OpMatches, Value: ".*"}},
			},
		})
	}
	for _, key := range credentialPathKeys {
		any = append(any, condition.Condition{
			Kind: condition.KindTool,
			Tool: &condition.ToolCondition{
				Params: []condition.ParamMatcher{{Key: key, Op: condition.OpMatches, Value: credentialFilePattern}},
			},
		})
	}
	return Policy{
		ID:       "builtin-credential-guard",
		Name:     "Credential Guard",
		Priority: 200,
		Rules: []Rule{
			{
				ID: "deny-credential-parameter-access",
				Conditions: []condition.Condition{
					{Kind: condition.KindAny, Any: any},
				},
				EffectSpec: EffectSpec{
					Kind:       models.EffectDeny,
					DenyReason: "Action blocked by credential-guard policy",
				},
			},
		},
	}
}

func productionSafeguardPolicy() Policy {
	return Policy{
		ID:       "builtin-production-safeguard",
		Name:     "Production Safeguard",
		Priority: 150,
		Rules: []Rule{
			{
				ID: "escalate-elevated-production-access",
				Conditions: []condition.Condition{
					{Kind: condition.KindTool, Tool: &condition.ToolCondition{
						Params: []condition.ParamMatcher{
							{Key: "elevated", Op: condition.OpEquals, Value: true},
						},
					}},
				},
				EffectSpec: EffectSpec{
					Kind:             models.EffectEscalate,
					EscalateTarget:   "production-approvers",
					EscalateFallback: models.ActionDeny,
				},
			},
		},
	}
}

func rateLimiterPolicy(p BuiltinParams) Policy {
	return Policy{
		ID:       "builtin-rate-limiter",
		Name:     "Rate Limiter",
		Priority: 50,
		Rules: []Rule{
			{
				ID: "deny-excessive-frequency",
				Conditions: []condition.Condition{
					{Kind: condition.KindFrequency, Frequency: &condition.FrequencyCondition{
						Threshold:     p.RateLimiterThreshold,
						WindowSeconds: p.RateLimiterWindowSecs,
						Scope:         condition.ScopeAgent,
					}},
				},
				EffectSpec: EffectSpec{
					Kind:       models.EffectDeny,
					DenyReason: "Action blocked by rate-limiter policy",
				},
			},
		},
	}
}
