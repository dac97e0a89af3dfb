package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"empathy-assessment-service/internal/app"
	"empathy-assessment-service/internal/domain"
	"empathy-assessment-service/internal/infra/memory"
	"empathy-assessment-service/internal/itembank"
	"empathy-assessment-service/internal/subject"
)

func TestStartRunsAssessmentInBackground(t *testing.T) {
	service, _ := newTestService(subject.Echo{Reply: richAnswer})
	server := httptest.NewServer(NewRouter(context.Background(), service))
	defer server.Close()

	resp := do(t, http.MethodPost, server.URL+"/assessments", `{"agentId":"agent-1"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var started assessmentResponse
	decode(t, resp, &started)
	if started.Session.SessionID == "" || started.Session.AgentID != "agent-1" {
		t.Fatalf("unexpected start response %+v", started.Session)
	}

	final := waitForStatus(t, server.URL, started.Session.SessionID, domain.StatusCompleted)
	if !final.Report.Complete || final.Report.TotalScore != 1.6 {
		t.Fatalf("unexpected final report %+v", final.Report)
	}

	resp = do(t, http.MethodDelete, server.URL+"/assessments/"+started.Session.SessionID, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 canceling a completed assessment, got %d", resp.StatusCode)
	}
}

func TestStartValidatesRequest(t *testing.T) {
	service, _ := newTestService(subject.Echo{})
	server := httptest.NewServer(NewRouter(context.Background(), service))
	defer server.Close()

	for _, body := range []string{`{`, `{}`} {
		resp := do(t, http.MethodPost, server.URL+"/assessments", body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, resp.StatusCode)
		}
	}

	resp := do(t, http.MethodGet, server.URL+"/assessments/unknown", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, server.URL+"/healthz", "")
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Fatalf("unexpected health body %q", body)
	}
}

func TestCancelOverHTTP(t *testing.T) {
	blocking := subject.Func(func(ctx context.Context, _ subject.Prompt) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	service, _ := newTestService(blocking)
	server := httptest.NewServer(NewRouter(context.Background(), service))
	defer server.Close()

	resp := do(t, http.MethodPost, server.URL+"/assessments", `{"agentId":"agent-1"}`)
	var started assessmentResponse
	decode(t, resp, &started)

	resp = do(t, http.MethodDelete, server.URL+"/assessments/"+started.Session.SessionID+"?reason=timeout", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var report domain.ScoreReport
	decode(t, resp, &report)
	if report.Complete || report.StopReason != "timeout" || report.TotalItems != 4 {
		t.Fatalf("unexpected cancel report %+v", report)
	}
}

func TestResumeFromCheckpointOverHTTP(t *testing.T) {
	ctx := context.Background()
	first, checkpoints := newTestService(subject.Echo{Reply: richAnswer})
	session, _ := first.Start(ctx, "agent-1")
	_, _ = first.Step(ctx, session.ID())

	items := []domain.AssessmentItem{
		{ID: 1, Subscale: domain.NegCognitive, PromptText: "a"},
		{ID: 2, Subscale: domain.PosCognitive, PromptText: "b"},
		{ID: 3, Subscale: domain.NegAffective, PromptText: "c"},
		{ID: 4, Subscale: domain.PosAffective, PromptText: "d"},
	}
	second := app.NewAssessmentService(memory.NewSessionStore(), memory.NewStaticItemLoader(items), subject.Echo{Reply: richAnswer}, app.Config{
		Renderer:    itembank.NewRenderer(),
		Checkpoints: checkpoints,
	})
	server := httptest.NewServer(NewRouter(ctx, second))
	defer server.Close()

	resp := do(t, http.MethodPost, server.URL+"/assessments/"+session.ID()+"/resume", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	final := waitForStatus(t, server.URL, session.ID(), domain.StatusCompleted)
	if len(final.Session.Transcript) != 9 {
		t.Fatalf("expected full transcript, got %d entries", len(final.Session.Transcript))
	}

	resp = do(t, http.MethodPost, server.URL+"/assessments/"+session.ID()+"/resume", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for registered session, got %d", resp.StatusCode)
	}
}

func TestGetFallsBackToArchiveAfterForget(t *testing.T) {
	ctx := context.Background()
	sessions := memory.NewSessionStore()
	items := []domain.AssessmentItem{
		{ID: 1, Subscale: domain.NegCognitive, PromptText: "a"},
		{ID: 2, Subscale: domain.PosCognitive, PromptText: "b"},
		{ID: 3, Subscale: domain.NegAffective, PromptText: "c"},
		{ID: 4, Subscale: domain.PosAffective, PromptText: "d"},
	}
	service := app.NewAssessmentService(sessions, memory.NewStaticItemLoader(items), subject.Echo{Reply: richAnswer}, app.Config{
		Checkpoints:    memory.NewCheckpointStore(),
		Reports:        memory.NewReportStore(),
		RetainTerminal: time.Millisecond,
	})
	session, _ := service.Start(ctx, "agent-1")
	if _, err := service.Run(ctx, session.ID()); err != nil {
		t.Fatalf("run: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for sessions.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session was never forgotten")
		}
		time.Sleep(5 * time.Millisecond)
	}

	server := httptest.NewServer(NewRouter(ctx, service))
	defer server.Close()
	resp := do(t, http.MethodGet, server.URL+"/assessments/"+session.ID(), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from archive, got %d", resp.StatusCode)
	}
	var got assessmentResponse
	decode(t, resp, &got)
	if got.Session.Status != domain.StatusCompleted || !got.Report.Complete || got.Report.TotalScore != 1.6 {
		t.Fatalf("unexpected archived response %+v", got)
	}
}

func waitForStatus(t *testing.T, base, id string, want domain.Status) assessmentResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp := do(t, http.MethodGet, base+"/assessments/"+id, "")
		var got assessmentResponse
		decode(t, resp, &got)
		if got.Session.Status == want {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("assessment %s never reached %s", id, want)
	return assessmentResponse{}
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}
