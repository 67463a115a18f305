//go:build !integration

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"TELEGRAM_BOT_TOKEN", "OTOMATO_TOKEN", "AUTH_TOKEN", "API_URL", "API_AUTH_SCHEME",
		"DATABASE_URL", "REDIS_URL", "LOG_LEVEL", "LOG_FORMAT", "LOG_FILE", "ADMIN_PORT",
	} {
		t.Setenv(k, "")
	}
	// keep godotenv from picking up a developer's .env
	chdir(t, t.TempDir())
}

// chdir is the Go 1.21 equivalent of t.Chdir: it restores the previous
// working directory when the test finishes.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("env only with defaults", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
		t.Setenv("OTOMATO_TOKEN", "tok")

		cfg, err := LoadConfig("does-not-exist.yaml", false)
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if cfg.Automation.BaseURL != DefaultAutomationBaseURL {
			t.Errorf("base url = %q", cfg.Automation.BaseURL)
		}
		if cfg.Automation.Timeout != 15*time.Second {
			t.Errorf("timeout = %v", cfg.Automation.Timeout)
		}
		if cfg.Automation.TriggerBlockID != 103 || cfg.Automation.ActionBlockID != 100001 {
			t.Errorf("block ids = %d/%d", cfg.Automation.TriggerBlockID, cfg.Automation.ActionBlockID)
		}
		if cfg.Bot.Workers != 8 {
			t.Errorf("workers = %d", cfg.Bot.Workers)
		}
		if cfg.Database.URL != "" {
			t.Errorf("database url should be empty, got %q", cfg.Database.URL)
		}
	})

	t.Run("AUTH_TOKEN fallback and OTOMATO_TOKEN precedence", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
		t.Setenv("AUTH_TOKEN", "legacy")
		cfg, err := LoadConfig("", false)
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if cfg.Automation.Token != "legacy" {
			t.Errorf("token = %q, want legacy", cfg.Automation.Token)
		}

		t.Setenv("OTOMATO_TOKEN", "primary")
		cfg, err = LoadConfig("", false)
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if cfg.Automation.Token != "primary" {
			t.Errorf("token = %q, want primary", cfg.Automation.Token)
		}
	})

	t.Run("yaml file overridden by env", func(t *testing.T) {
		clearEnv(t)
		dir := t.TempDir()
		p := filepath.Join(dir, "config.yaml")
		body := "bot:\n  token: from-file\n  workers: 3\nautomation:\n  token: file-tok\n  base_url: https://example.test/api/\n"
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")

		cfg, err := LoadConfig(p, false)
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if cfg.Bot.Token != "from-env" {
			t.Errorf("bot token = %q", cfg.Bot.Token)
		}
		if cfg.Bot.Workers != 3 {
			t.Errorf("workers = %d", cfg.Bot.Workers)
		}
		if cfg.Automation.BaseURL != "https://example.test/api" {
			t.Errorf("base url not trimmed: %q", cfg.Automation.BaseURL)
		}
	})

	t.Run("missing tokens", func(t *testing.T) {
		clearEnv(t)
		if _, err := LoadConfig("", false); err == nil {
			t.Fatal("expected error without bot token")
		}
		t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
		if _, err := LoadConfig("", false); err == nil {
			t.Fatal("expected error without automation token")
		}
		if _, err := LoadConfig("", true); err != nil {
			t.Fatalf("dev mode should not require automation token: %v", err)
		}
	})
}
