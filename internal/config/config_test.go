package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadParsesAllSections(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
redis:
  addr: localhost:6379
  ttl: 15m
  checkpoint_ttl: 24h
postgres:
  url: postgres://u:p@localhost:5432/empathy
items:
  ttl: 1h
assessment:
  mode: self-report
  input: likert
  retries: 3
  retry_backoff: 250ms
  subject_timeout: 45s
  personality: You are a patient listener.
  seed: 7
subject:
  kind: exec
  command: python agent.py --persona "calm"
  env: ["MODEL=small"]
  timeout: 1m
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("unexpected server/redis %+v %+v", cfg.Server, cfg.Redis)
	}
	if cfg.Assessment.Mode != "self-report" || cfg.Assessment.Input != "likert" || cfg.Assessment.Retries != 3 || cfg.Assessment.Seed != 7 {
		t.Fatalf("unexpected assessment %+v", cfg.Assessment)
	}
	if cfg.Subject.Kind != "exec" || !strings.Contains(cfg.Subject.Command, `"calm"`) || len(cfg.Subject.Env) != 1 {
		t.Fatalf("unexpected subject %+v", cfg.Subject)
	}
	if got := TTLDuration(cfg.Redis.CheckpointTTL, time.Hour); got != 24*time.Hour {
		t.Fatalf("expected 24h, got %v", got)
	}
	if got := TTLDuration(cfg.Assessment.RetryBackoff, time.Second); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", got)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"mode":    "assessment:\n  mode: clinical\n",
		"input":   "assessment:\n  input: voice\n",
		"retries": "assessment:\n  retries: -1\n",
		"exec":    "subject:\n  kind: exec\n",
		"http":    "subject:\n  kind: http\n",
		"kind":    "subject:\n  kind: grpc\n",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestTTLDurationFallsBack(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for empty, got %v", got)
	}
	if got := TTLDuration("soon", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for garbage, got %v", got)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
