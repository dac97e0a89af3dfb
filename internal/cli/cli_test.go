package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"empathy-assessment-service/internal/config"
	"empathy-assessment-service/internal/domain"
	"empathy-assessment-service/internal/itembank"
	"empathy-assessment-service/internal/subject"
)

func TestNewSubjectKinds(t *testing.T) {
	s, err := newSubject(config.Subject{})
	if err != nil {
		t.Fatalf("echo: %v", err)
	}
	if _, ok := s.(subject.Echo); !ok {
		t.Fatalf("expected echo subject, got %T", s)
	}

	s, err = newSubject(config.Subject{Kind: "exec", Command: `python3 agent.py --persona "calm listener"`})
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	e, ok := s.(*subject.Exec)
	if !ok || len(e.Args()) != 4 || e.Args()[3] != "calm listener" {
		t.Fatalf("unexpected exec subject %#v", s)
	}

	if _, err := newSubject(config.Subject{Kind: "http", URL: "http://localhost:9000/respond"}); err != nil {
		t.Fatalf("http: %v", err)
	}
	if _, err := newSubject(config.Subject{Kind: "carrier-pigeon"}); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestBuildRuntimeDefaultsToMemory(t *testing.T) {
	ctx := context.Background()
	rt, err := buildRuntime(ctx, config.Config{})
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}
	defer rt.Close()

	items, err := rt.items.LoadItems(ctx)
	if err != nil {
		t.Fatalf("load items: %v", err)
	}
	if len(items) != len(itembank.Default()) {
		t.Fatalf("expected default bank, got %d items", len(items))
	}

	session, err := rt.service.Start(ctx, "agent-cli")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	report, err := rt.service.Run(ctx, session.ID())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !report.Complete || report.Scale != "likert-5" {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestRunCommandPrintsTables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "assessment:\n  seed: 7\nsubject:\n  kind: echo\n  reply: \"I feel for them and understand why they are upset.\"\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"run", "--config", path, "--agent", "agent-table"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := strings.ToLower(out.String())
	for _, want := range []string{"subscale", strings.ToLower(string(domain.NegCognitive)), "total", "complete"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in output:\n%s", want, text)
		}
	}
}

func TestResolvePortPrefersFlagThenConfig(t *testing.T) {
	var cfg config.Config
	if got := resolvePort("", cfg); got != "8080" {
		t.Fatalf("expected fallback 8080, got %q", got)
	}
	cfg.Server.Port = "9090"
	if got := resolvePort("", cfg); got != "9090" {
		t.Fatalf("expected config port, got %q", got)
	}
	if got := resolvePort("7070", cfg); got != "7070" {
		t.Fatalf("expected flag port, got %q", got)
	}

	cmd := newRootCmd()
	if def := cmd.PersistentFlags().Lookup("port").DefValue; def != "" {
		t.Fatalf("port flag default must not mask server.port, got %q", def)
	}
}
