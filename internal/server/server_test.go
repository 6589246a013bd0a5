package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kubewise-ai/kubewise/agent"
	"github.com/kubewise-ai/kubewise/initialquestions"
	"github.com/kubewise-ai/kubewise/k8s"
	"github.com/kubewise-ai/kubewise/llm"
	"github.com/kubewise-ai/kubewise/state/memory"
	"github.com/kubewise-ai/kubewise/types"
)

type staticProvider struct {
	reply string
}

func (p *staticProvider) Name() string                      { return "static" }
func (p *staticProvider) Capabilities() llm.Capabilities    { return llm.Capabilities{} }
func (p *staticProvider) Generate(_ context.Context, _ types.Request) (types.Response, error) {
	return types.Response{Message: types.Message{Role: types.RoleAssistant, Content: p.reply}}, nil
}

type fakeCluster struct{}

func (fakeCluster) ListNotRunningPods(_ context.Context, _ string) ([]k8s.Resource, error) {
	return []k8s.Resource{{"kind": "Pod", "metadata": map[string]any{"name": "broken"}}}, nil
}

func (fakeCluster) ListNodeMetrics(_ context.Context) ([]k8s.Resource, error) {
	return nil, nil
}

func (fakeCluster) ListWarningEvents(_ context.Context, _ string) ([]k8s.Resource, error) {
	return nil, nil
}

func (fakeCluster) DescribeResource(_ context.Context, _, kind, name, _ string) (k8s.Resource, error) {
	return k8s.Resource{"kind": kind, "metadata": map[string]any{"name": name}}, nil
}

func (fakeCluster) ListEventsForResource(_ context.Context, _, _, _ string) ([]k8s.Resource, error) {
	return nil, nil
}

func newTestServer(t *testing.T, reply string) *Server {
	t.Helper()
	saver := memory.NewSaver()
	provider := &staticProvider{reply: reply}

	sup, err := agent.NewSupervisor(provider, saver, saver)
	if err != nil {
		t.Fatalf("NewSupervisor failed: %v", err)
	}
	questions, err := initialquestions.NewHandler(provider, saver)
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	srv, err := NewServer(Config{
		Supervisor: sup,
		History:    saver,
		Questions:  questions,
		Cluster:    fakeCluster{},
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return srv
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestChatEndpoint(t *testing.T) {
	srv := newTestServer(t, "Kyma is a runtime.")

	rec := postJSON(t, srv.Handler(), "/chat", map[string]string{
		"conversationId": "conv-1",
		"message":        "What is Kyma?",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Answer != "Kyma is a runtime." || resp.ConversationID != "conv-1" {
		t.Fatalf("unexpected response %#v", resp)
	}

	// The turn must be visible through the history endpoint.
	req := httptest.NewRequest(http.MethodGet, "/conversations/conv-1/messages", nil)
	historyRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(historyRec, req)
	if historyRec.Code != http.StatusOK {
		t.Fatalf("history status %d: %s", historyRec.Code, historyRec.Body.String())
	}
	var history messagesResponse
	if err := json.Unmarshal(historyRec.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(history.Messages) != 1 || history.Messages[0].Query != "What is Kyma?" {
		t.Fatalf("unexpected history %#v", history.Messages)
	}
}

func TestChatEndpointValidation(t *testing.T) {
	srv := newTestServer(t, "ok")

	cases := []struct {
		name string
		body map[string]string
	}{
		{"missing conversation id", map[string]string{"message": "hi"}},
		{"missing message", map[string]string{"conversationId": "conv-1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, srv.Handler(), "/chat", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", rec.Code)
	}
}

func TestInitialQuestionsEndpoint(t *testing.T) {
	srv := newTestServer(t, "- What pods are failing?\n- Why is the node pressure high?")

	rec := postJSON(t, srv.Handler(), "/initial-questions", map[string]string{
		"conversationId": "conv-2",
		"kind":           "cluster",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var resp initialQuestionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(resp.Questions) != 2 || resp.Questions[0] != "What pods are failing?" {
		t.Fatalf("unexpected questions %#v", resp.Questions)
	}
}

func TestInitialQuestionsRejectsInvalidSelector(t *testing.T) {
	srv := newTestServer(t, "ok")

	rec := postJSON(t, srv.Handler(), "/initial-questions", map[string]string{
		"conversationId": "conv-3",
		"kind":           "Pod", // resource kind without apiVersion
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "invalid resource selector") {
		t.Fatalf("unexpected error body %s", rec.Body.String())
	}
}

func TestInitialQuestionsUnavailableWithoutCluster(t *testing.T) {
	saver := memory.NewSaver()
	provider := &staticProvider{reply: "ok"}
	sup, err := agent.NewSupervisor(provider, saver, saver)
	if err != nil {
		t.Fatalf("NewSupervisor failed: %v", err)
	}
	srv, err := NewServer(Config{Supervisor: sup, History: saver})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	rec := postJSON(t, srv.Handler(), "/initial-questions", map[string]string{
		"conversationId": "conv-4",
		"kind":           "cluster",
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestMessagesEndpointEmptyConversation(t *testing.T) {
	srv := newTestServer(t, "ok")

	req := httptest.NewRequest(http.MethodGet, "/conversations/unknown/messages", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"messages":[]`) {
		t.Fatalf("expected empty messages array, got %s", rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, "ok")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestNewServerValidatesConfig(t *testing.T) {
	if _, err := NewServer(Config{}); err == nil {
		t.Fatal("expected error for missing supervisor")
	}
	saver := memory.NewSaver()
	sup, err := agent.NewSupervisor(&staticProvider{reply: "ok"}, saver, saver)
	if err != nil {
		t.Fatalf("NewSupervisor failed: %v", err)
	}
	if _, err := NewServer(Config{Supervisor: sup}); err == nil {
		t.Fatal("expected error for missing history")
	}
}
