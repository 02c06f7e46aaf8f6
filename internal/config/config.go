// Package config provides the engine's configuration model and loader
// (YAML + env override), following the teacher's config/load split.
package config

import (
	"github.com/agentgov/governor/internal/condition"
	"github.com/agentgov/governor/internal/policy"
)

// Config is the engine's root configuration (spec.md §6's configuration
// surface). Sensitive fields are overridable via GOVERNOR_-prefixed
// environment variables; see Load.
type Config struct {
	Enabled     bool                             `yaml:"enabled"`
	Timezone    string                           `yaml:"timezone"`
	FailMode    string                           `yaml:"failMode"` // open|closed
	Workspace   string                           `yaml:"workspace"`
	Policies    []policy.Policy                  `yaml:"policies"`
	TimeWindows map[string]condition.TimeWindow   `yaml:"timeWindows"`

	Trust             TrustConfig           `yaml:"trust"`
	Audit             AuditConfig           `yaml:"audit"`
	ToolRiskOverrides map[string]float64    `yaml:"toolRiskOverrides"`
	BuiltinPolicies   BuiltinPoliciesConfig `yaml:"builtinPolicies"`
	Performance       PerformanceConfig     `yaml:"performance"`
	Ownership         OwnershipConfig       `yaml:"ownership"`
	Delivery          DeliveryConfig        `yaml:"delivery"`
	Escalation        EscalationConfig      `yaml:"escalation"`
}

// TrustConfig is the trust.* configuration section.
type TrustConfig struct {
	Enabled              bool               `yaml:"enabled"`
	Defaults             map[string]float64 `yaml:"defaults"`
	PersistIntervalSecs  int                `yaml:"persistIntervalSeconds"`
	Decay                DecayConfig        `yaml:"decay"`
	Weights              WeightsConfig      `yaml:"weights"`
	MaxHistoryPerAgent   int                `yaml:"maxHistoryPerAgent"`
}

// DecayConfig is the trust.decay.* subsection.
type DecayConfig struct {
	Enabled        bool    `yaml:"enabled"`
	InactivityDays int     `yaml:"inactivityDays"`
	Rate           float64 `yaml:"rate"`
}

// WeightsConfig holds partial overrides of trust.DefaultWeights; nil
// (unset) fields fall back to the built-in defaults.
type WeightsConfig struct {
	AgePerDay               *float64 `yaml:"agePerDay,omitempty"`
	AgeMax                  *float64 `yaml:"ageMax,omitempty"`
	SuccessPerAction        *float64 `yaml:"successPerAction,omitempty"`
	SuccessMax              *float64 `yaml:"successMax,omitempty"`
	ViolationPenalty        *float64 `yaml:"violationPenalty,omitempty"`
	ApprovedEscalationBonus *float64 `yaml:"approvedEscalationBonus,omitempty"`
	DeniedEscalationPenalty *float64 `yaml:"deniedEscalationPenalty,omitempty"`
	CleanStreakPerDay       *float64 `yaml:"cleanStreakPerDay,omitempty"`
	CleanStreakMax          *float64 `yaml:"cleanStreakMax,omitempty"`
}

// AuditConfig is the audit.* configuration section.
type AuditConfig struct {
	Enabled         bool     `yaml:"enabled"`
	RetentionDays   int      `yaml:"retentionDays"`
	VerifyOnStartup bool     `yaml:"verifyOnStartup"`
	RedactPatterns  []string `yaml:"redactPatterns"`
	Level           string   `yaml:"level"` // minimal|standard|verbose

	Ledger LedgerConfig `yaml:"ledger"`
}

// LedgerConfig configures the optional compliance-ledger bridge.
type LedgerConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	BatchSize     int    `yaml:"batchSize"`
	IntervalSecs  int    `yaml:"intervalSeconds"`
}

// BuiltinPoliciesConfig toggles each built-in policy.
type BuiltinPoliciesConfig struct {
	NightMode           bool `yaml:"nightMode"`
	CredentialGuard     bool `yaml:"credentialGuard"`
	ProductionSafeguard bool `yaml:"productionSafeguard"`
	RateLimiter         bool `yaml:"rateLimiter"`

	NightModeAfter        string `yaml:"nightModeAfter,omitempty"`
	NightModeBefore       string `yaml:"nightModeBefore,omitempty"`
	RateLimiterThreshold  int    `yaml:"rateLimiterThreshold,omitempty"`
	RateLimiterWindowSecs int    `yaml:"rateLimiterWindowSeconds,omitempty"`
}

// PerformanceConfig is the performance.* configuration section.
type PerformanceConfig struct {
	MaxEvalUs          int64 `yaml:"maxEvalUs"`
	MaxContextMessages int   `yaml:"maxContextMessages"`
	FrequencyBufferSize int  `yaml:"frequencyBufferSize"`
}

// OwnershipConfig configures escalation-target approver resolution.
type OwnershipConfig struct {
	Rules   []ApprovalRuleDoc `yaml:"rules,omitempty"`
	Default ApprovalRuleDoc   `yaml:"default,omitempty"`
}

// ApprovalRuleDoc is one declared approval-routing rule.
type ApprovalRuleDoc struct {
	Target          string   `yaml:"target,omitempty"`
	ToolName        string   `yaml:"toolName,omitempty"`
	RiskLevel       string   `yaml:"riskLevel,omitempty"`
	TimeoutSeconds  int      `yaml:"timeoutSeconds,omitempty"`
	ApprovalUserIDs []string `yaml:"approvalUserIds,omitempty"`
	ApprovalPolicy  string   `yaml:"approvalPolicy,omitempty"` // any|all
}

// DeliveryConfig selects and configures the optional escalation notifier.
type DeliveryConfig struct {
	Feishu FeishuConfig `yaml:"feishu"`
}

// FeishuConfig is the Feishu (Lark) delivery provider's configuration;
// AppSecret is expected to be supplied via GOVERNOR_FEISHU_APP_SECRET
// rather than committed to the YAML file.
type FeishuConfig struct {
	Enabled                bool   `yaml:"enabled"`
	AppID                  string `yaml:"appId"`
	AppSecret              string `yaml:"appSecret"`
	ApprovalUserID         string `yaml:"approvalUserId"`
	ReceiveIDType          string `yaml:"receiveIdType"`
	ChatID                 string `yaml:"chatId"`
	GatewayBaseURL         string `yaml:"gatewayBaseUrl"`
	UseCardDelivery        bool   `yaml:"useCardDelivery"`
	UseLongConnection      bool   `yaml:"useLongConnection"`
	RetryMaxAttempts       int    `yaml:"retryMaxAttempts"`
	RetryInitialBackoffSecs int   `yaml:"retryInitialBackoffSeconds"`
}

// EscalationConfig configures the escalation request store and defaults.
type EscalationConfig struct {
	TimeoutSeconds  int    `yaml:"timeoutSeconds"`
	ApprovalPolicy  string `yaml:"approvalPolicy"` // any|all
	PersistencePath string `yaml:"persistencePath"`
}

// Default returns a Config with spec.md §6's stated defaults.
func Default() Config {
	return Config{
		Enabled:   true,
		Timezone:  "UTC",
		FailMode:  "open",
		Workspace: "./governance",
	}
}
