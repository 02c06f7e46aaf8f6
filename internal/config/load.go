package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadEnvFile reads a .env-style file (KEY=VALUE per line, '#' comments,
// blank lines ignored) and sets each key in the process environment.
// Existing environment variables are not overwritten unless override is
// true. Call before Load so YAML env overrides see the loaded values.
// A missing file is not an error.
func LoadEnvFile(path string, override bool) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if strings.HasPrefix(val, `"`) && strings.HasSuffix(val, `"`) && len(val) >= 2 {
			val = strings.Trim(val, `"`)
		}
		if key == "" {
			continue
		}
		if override || os.Getenv(key) == "" {
			_ = os.Setenv(key, val)
		}
	}
	return sc.Err()
}

// Load reads a YAML config file at path, applies GOVERNOR_-prefixed
// environment overrides, and fills in spec.md §6's stated defaults for
// any field the file left zero-valued.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	c := Default()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyEnvOverrides(&c)
	applyDefaults(&c)
	return &c, nil
}

func applyDefaults(c *Config) {
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.FailMode != "closed" {
		c.FailMode = "open"
	}
	if c.Workspace == "" {
		c.Workspace = "./governance"
	}
	if c.Trust.MaxHistoryPerAgent <= 0 {
		c.Trust.MaxHistoryPerAgent = 100
	}
	if c.Escalation.ApprovalPolicy != "all" {
		c.Escalation.ApprovalPolicy = "any"
	}
	if c.Escalation.TimeoutSeconds <= 0 {
		c.Escalation.TimeoutSeconds = 300
	}
	if c.Escalation.PersistencePath == "" {
		c.Escalation.PersistencePath = c.Workspace + "/pending-approvals"
	}
	if c.Audit.Level == "" {
		c.Audit.Level = "standard"
	}
}

// applyEnvOverrides rewrites sensitive or frequently-tuned fields from
// GOVERNOR_-prefixed environment variables, mirroring the teacher's
// applyEnvOverrides(DITING_*) pattern.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("GOVERNOR_ENABLED"); v != "" {
		c.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("GOVERNOR_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("GOVERNOR_FAIL_MODE"); v != "" {
		c.FailMode = v
	}
	if v := os.Getenv("GOVERNOR_WORKSPACE"); v != "" {
		c.Workspace = v
	}
	if v := os.Getenv("GOVERNOR_FEISHU_APP_ID"); v != "" {
		c.Delivery.Feishu.AppID = v
	}
	if v := os.Getenv("GOVERNOR_FEISHU_APP_SECRET"); v != "" {
		c.Delivery.Feishu.AppSecret = v
	}
	if v := os.Getenv("GOVERNOR_FEISHU_APPROVAL_USER_ID"); v != "" {
		c.Delivery.Feishu.ApprovalUserID = v
	}
	if v := os.Getenv("GOVERNOR_FEISHU_CHAT_ID"); v != "" {
		c.Delivery.Feishu.ChatID = v
	}
	if v := os.Getenv("GOVERNOR_FEISHU_GATEWAY_BASE_URL"); v != "" {
		c.Delivery.Feishu.GatewayBaseURL = v
	}
	if v := os.Getenv("GOVERNOR_FEISHU_USE_CARD_DELIVERY"); v != "" {
		c.Delivery.Feishu.UseCardDelivery = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("GOVERNOR_FEISHU_USE_LONG_CONNECTION"); v != "" {
		c.Delivery.Feishu.UseLongConnection = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("GOVERNOR_ESCALATION_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Escalation.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("GOVERNOR_TRUST_PERSIST_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Trust.PersistIntervalSecs = n
		}
	}
	if v := os.Getenv("GOVERNOR_AUDIT_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Audit.RetentionDays = n
		}
	}
}
