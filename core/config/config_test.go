package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNormalizeDefaults(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "x", RunMode: " Polling "}}
	cfg.RateLimit.ExcludeUpdates = []string{" Callback", ""}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q", cfg.Telegram.RunMode)
	}
	if len(cfg.RateLimit.ExcludeUpdates) != 1 || cfg.RateLimit.ExcludeUpdates[0] != UpdateCallback {
		t.Fatalf("exclude = %q", cfg.RateLimit.ExcludeUpdates)
	}
	if cfg.Telemetry.ServiceName != defaultServiceName {
		t.Fatalf("service name = %q", cfg.Telemetry.ServiceName)
	}
}

func TestNormalizeReportsEveryProblem(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{RunMode: RunModeWebhook}}
	cfg.Sender.Workers = -1
	err := Normalize(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"token is required", "webhook.url", "webhook.listen", "webhook.port", "sender.workers"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q lacks %q", err, want)
		}
	}
}

func TestNormalizeRejects(t *testing.T) {
	tests := map[string]func(*Config){
		"run mode":      func(c *Config) { c.Telegram.RunMode = "push" },
		"exclude kind":  func(c *Config) { c.RateLimit.ExcludeUpdates = []string{"inline"} },
		"negative rate": func(c *Config) { c.RateLimit.IntervalMS = -5 },
		"retries":       func(c *Config) { c.Sender.MaxRetries = -1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := &Config{Telegram: TelegramConfig{Token: "x"}}
			mutate(cfg)
			if err := Normalize(cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadAppliesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "telegram:\n  token: file\nsender:\n  workers: 2\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("SENDER_WORKERS", "6")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "file" || cfg.Sender.Workers != 6 {
		t.Fatalf("cfg = %+v", cfg)
	}
}
