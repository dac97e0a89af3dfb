package subject

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxErrorBody = 4096

// HTTP posts prompts as JSON to an agent endpoint.
//
// Request:  {"scenario": "...", "personality": "..."}
// Response: {"response": "..."}
type HTTP struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// StatusError is returned for non-2xx replies.
type StatusError struct {
	StatusCode  int
	BodyPreview string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http subject: status %d: %s", e.StatusCode, e.BodyPreview)
}

func NewHTTP(url string, headers map[string]string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTP{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: timeout},
	}
}

func (h *HTTP) Respond(ctx context.Context, prompt Prompt) (string, error) {
	payload, err := json.Marshal(prompt)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("http subject: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http subject: call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		preview := string(body)
		if len(preview) > 512 {
			preview = preview[:512] + "..."
		}
		return "", &StatusError{StatusCode: resp.StatusCode, BodyPreview: preview}
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("http subject: decode: %w", err)
	}
	return out.Response, nil
}
