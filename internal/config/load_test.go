package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, "enabled: true\n")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Timezone != "UTC" {
		t.Errorf("expected default timezone UTC, got %s", c.Timezone)
	}
	if c.FailMode != "open" {
		t.Errorf("expected default failMode open, got %s", c.FailMode)
	}
	if c.Trust.MaxHistoryPerAgent != 100 {
		t.Errorf("expected default maxHistoryPerAgent 100, got %d", c.Trust.MaxHistoryPerAgent)
	}
}

func TestLoadFailModeClosedPreserved(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, "failMode: closed\n")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.FailMode != "closed" {
		t.Errorf("expected failMode closed preserved, got %s", c.FailMode)
	}
}

func TestLoadEnvOverridesFeishuSecret(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, "delivery:\n  feishu:\n    appId: from-yaml\n")

	t.Setenv("GOVERNOR_FEISHU_APP_SECRET", "from-env")
	t.Setenv("GOVERNOR_FEISHU_APP_ID", "override-id")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Delivery.Feishu.AppSecret != "from-env" {
		t.Errorf("expected app secret from env, got %s", c.Delivery.Feishu.AppSecret)
	}
	if c.Delivery.Feishu.AppID != "override-id" {
		t.Errorf("expected app id overridden by env, got %s", c.Delivery.Feishu.AppID)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error loading missing config file")
	}
}

func TestLoadEnvFileSetsUnsetVars(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	os.WriteFile(envPath, []byte("GOVERNOR_TEST_KEY=value1\n# comment\n\nGOVERNOR_TEST_KEY2=\"quoted\"\n"), 0o644)
	os.Unsetenv("GOVERNOR_TEST_KEY")
	os.Unsetenv("GOVERNOR_TEST_KEY2")

	if err := LoadEnvFile(envPath, false); err != nil {
		t.Fatalf("LoadEnvFile failed: %v", err)
	}
	if os.Getenv("GOVERNOR_TEST_KEY") != "value1" {
		t.Errorf("expected GOVERNOR_TEST_KEY=value1, got %s", os.Getenv("GOVERNOR_TEST_KEY"))
	}
	if os.Getenv("GOVERNOR_TEST_KEY2") != "quoted" {
		t.Errorf("expected unquoted value, got %s", os.Getenv("GOVERNOR_TEST_KEY2"))
	}
}

func TestLoadEnvFileMissingIsNotError(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"), false); err != nil {
		t.Fatalf("expected missing .env to be a no-op, got %v", err)
	}
}
