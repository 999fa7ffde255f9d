package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/user/docpilot/internal/docctx"
	"github.com/user/docpilot/internal/orchestrator"
	"github.com/user/docpilot/internal/toolset"
	"github.com/user/docpilot/internal/types"
	"github.com/user/docpilot/pkg/llm"
)

type mockProvider struct {
	chunks []llm.Chunk
}

func (p *mockProvider) Name() string { return "openai" }

func (p *mockProvider) Stream(ctx context.Context, _ *llm.Request) (<-chan llm.Chunk, error) {
	out := make(chan llm.Chunk, len(p.chunks))
	for _, c := range p.chunks {
		out <- c
	}
	close(out)
	return out, nil
}

type mockCreds map[string]string

func (c mockCreds) Resolve(_ context.Context, provider string) (string, bool) {
	key, ok := c[provider]
	return key, ok && key != ""
}

type mockSource struct {
	pages []types.Page
	err   error
}

func (s *mockSource) LoadPages(_ context.Context, _ string) ([]types.Page, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.pages, nil
}

type mockBackend struct{}

func (mockBackend) Apply(_ context.Context, _, _ string, _ json.RawMessage) (string, error) {
	return `{"ok":true}`, nil
}

func setupServer(t *testing.T, provider *mockProvider, source *mockSource) *Server {
	t.Helper()
	prompts, err := orchestrator.NewPromptBuilder("gpt-4", 128000, 4096)
	if err != nil {
		t.Fatal(err)
	}
	orch := orchestrator.New(provider, mockCreds{"openai": "sk-test"}, docctx.NewCache(), source, toolset.NewRegistry(mockBackend{}), prompts, 10)
	t.Cleanup(orch.Close)
	return NewServer(orch)
}

func TestHealthEndpoint(t *testing.T) {
	srv := setupServer(t, &mockProvider{}, &mockSource{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %s", resp["status"])
	}
}

func TestStreamEndpointSSE(t *testing.T) {
	provider := &mockProvider{chunks: []llm.Chunk{
		{Text: "hello "},
		{Text: "world"},
		{Done: true, Usage: &llm.Usage{InputTokens: 5, OutputTokens: 2, TotalTokens: 7}},
	}}
	srv := setupServer(t, provider, &mockSource{})

	body := `{"session_id":"s1","document_type":"document","prompt":"say hi"}`
	req := httptest.NewRequest(http.MethodPost, "/api/stream", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}

	out := w.Body.String()
	for _, want := range []string{"event: text-delta", "event: text-done", "event: finish"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in SSE output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "event: error") {
		t.Errorf("unexpected error event:\n%s", out)
	}
}

// blockingProvider emits one delta, signals started, then holds the stream
// open until its context is cancelled.
type blockingProvider struct {
	started chan struct{}
}

func (p *blockingProvider) Name() string { return "openai" }

func (p *blockingProvider) Stream(ctx context.Context, _ *llm.Request) (<-chan llm.Chunk, error) {
	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		select {
		case out <- llm.Chunk{Text: "partial "}:
		case <-ctx.Done():
			return
		}
		close(p.started)
		<-ctx.Done()
	}()
	return out, nil
}

func TestStreamEndpointClientDisconnectCancels(t *testing.T) {
	provider := &blockingProvider{started: make(chan struct{})}
	prompts, err := orchestrator.NewPromptBuilder("gpt-4", 128000, 4096)
	if err != nil {
		t.Fatal(err)
	}
	orch := orchestrator.New(provider, mockCreds{"openai": "sk-test"}, docctx.NewCache(), &mockSource{}, toolset.NewRegistry(mockBackend{}), prompts, 10)
	t.Cleanup(orch.Close)
	srv := NewServer(orch)

	ctx, cancel := context.WithCancel(context.Background())
	body := `{"session_id":"s1","document_type":"document","prompt":"write something long"}`
	req := httptest.NewRequest(http.MethodPost, "/api/stream", strings.NewReader(body)).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.ServeHTTP(w, req)
		close(done)
	}()

	// Wait until the provider stream is demonstrably in flight, then drop
	// the client.
	select {
	case <-provider.started:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for the stream to start")
	}
	cancel()

	// The handler must cancel the session and return; without that, the
	// blocked provider stream would hold it open indefinitely.
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not return after client disconnect")
	}
}

func TestStreamEndpointMissingFields(t *testing.T) {
	srv := setupServer(t, &mockProvider{}, &mockSource{})

	for _, body := range []string{
		`{"document_type":"document","prompt":"hi"}`,     // missing session_id
		`{"session_id":"s1","document_type":"document"}`, // missing prompt
		`not json`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/stream", strings.NewReader(body))
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, w.Code)
		}
	}
}

func TestStreamEndpointUnknownDocumentType(t *testing.T) {
	srv := setupServer(t, &mockProvider{}, &mockSource{})

	body := `{"session_id":"s1","document_type":"presentation","prompt":"hi"}`
	req := httptest.NewRequest(http.MethodPost, "/api/stream", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCancelEndpoint(t *testing.T) {
	srv := setupServer(t, &mockProvider{}, &mockSource{})

	// Idle session: still acknowledged.
	body := `{"session_id":"s1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/stream/cancel", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "cancelled" {
		t.Errorf("expected cancelled, got %q", resp["status"])
	}
}

func TestLoadContextEndpoint(t *testing.T) {
	source := &mockSource{pages: []types.Page{
		{Number: 1, Text: "Page one.", WordCount: 2},
		{Number: 2, Text: "Page two here.", WordCount: 3},
	}}
	srv := setupServer(t, &mockProvider{}, source)

	body := `{"session_id":"s1","source_path":"/tmp/report.txt"}`
	req := httptest.NewRequest(http.MethodPost, "/api/context/load", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var stats docctx.Stats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.PageCount != 2 || stats.TotalWords != 5 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestLoadContextEndpointFailure(t *testing.T) {
	srv := setupServer(t, &mockProvider{}, &mockSource{err: errors.New("unreadable")})

	body := `{"session_id":"s1","source_path":"/tmp/missing.txt"}`
	req := httptest.NewRequest(http.MethodPost, "/api/context/load", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
}

func TestClearContextEndpoint(t *testing.T) {
	srv := setupServer(t, &mockProvider{}, &mockSource{})

	req := httptest.NewRequest(http.MethodDelete, "/api/context/s1", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "cleared" {
		t.Errorf("expected cleared, got %q", resp["status"])
	}
}
