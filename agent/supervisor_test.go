package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kubewise-ai/kubewise/llm"
	"github.com/kubewise-ai/kubewise/state"
	"github.com/kubewise-ai/kubewise/state/memory"
	"github.com/kubewise-ai/kubewise/types"
)

type scriptedProvider struct {
	requests []types.Request
	replies  []string
	err      error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Capabilities() llm.Capabilities { return llm.Capabilities{} }

func (p *scriptedProvider) Generate(_ context.Context, req types.Request) (types.Response, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return types.Response{}, p.err
	}
	reply := fmt.Sprintf("reply-%d", len(p.requests))
	if len(p.replies) >= len(p.requests) {
		reply = p.replies[len(p.requests)-1]
	}
	return types.Response{Message: types.Message{Role: types.RoleAssistant, Content: reply}}, nil
}

func newTestSupervisor(t *testing.T, provider llm.Provider, opts ...Option) (*Supervisor, *memory.Saver) {
	t.Helper()
	saver := memory.NewSaver()
	sup, err := NewSupervisor(provider, saver, saver, opts...)
	if err != nil {
		t.Fatalf("NewSupervisor failed: %v", err)
	}
	return sup, saver
}

func TestSupervisorChatPersistsTurn(t *testing.T) {
	provider := &scriptedProvider{replies: []string{"Kyma is a runtime."}}
	sup, saver := newTestSupervisor(t, provider)
	ctx := context.Background()

	answer, err := sup.Chat(ctx, "conv-1", "What is Kyma?")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if answer != "Kyma is a runtime." {
		t.Fatalf("unexpected answer %q", answer)
	}

	if len(provider.requests) != 1 {
		t.Fatalf("expected 1 provider call, got %d", len(provider.requests))
	}
	req := provider.requests[0]
	if !strings.Contains(req.SystemPrompt, "Kyma expert") {
		t.Errorf("system prompt not applied: %q", req.SystemPrompt)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "What is Kyma?" {
		t.Errorf("unexpected messages %#v", req.Messages)
	}

	tuple, err := saver.Get(ctx, "conv-1", "")
	if err != nil {
		t.Fatalf("head checkpoint missing: %v", err)
	}
	if tuple.Metadata.Step < 1 {
		t.Errorf("expected at least one step recorded, got %d", tuple.Metadata.Step)
	}

	messages, err := saver.ListMessages(ctx, "conv-1")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 history message, got %d", len(messages))
	}
	got := messages[0]
	if got.Type != state.QueryTypeUserQuery || got.Query != "What is Kyma?" || got.Response != "Kyma is a runtime." {
		t.Errorf("unexpected history entry %#v", got)
	}
	if got.Timestamp.IsZero() {
		t.Error("history timestamp not set")
	}
}

func TestSupervisorSecondTurnReplaysHistory(t *testing.T) {
	provider := &scriptedProvider{replies: []string{"It is a runtime.", "Install via the CLI."}}
	sup, saver := newTestSupervisor(t, provider)
	ctx := context.Background()

	if _, err := sup.Chat(ctx, "conv-2", "What is Kyma?"); err != nil {
		t.Fatalf("first Chat failed: %v", err)
	}
	answer, err := sup.Chat(ctx, "conv-2", "How do I install it?")
	if err != nil {
		t.Fatalf("second Chat failed: %v", err)
	}
	if answer != "Install via the CLI." {
		t.Fatalf("unexpected answer %q", answer)
	}

	if len(provider.requests) != 2 {
		t.Fatalf("expected 2 provider calls, got %d", len(provider.requests))
	}
	second := provider.requests[1].Messages
	want := []types.Message{
		{Role: types.RoleUser, Content: "What is Kyma?"},
		{Role: types.RoleAssistant, Content: "It is a runtime."},
		{Role: types.RoleUser, Content: "How do I install it?"},
	}
	if len(second) != len(want) {
		t.Fatalf("expected %d messages, got %#v", len(want), second)
	}
	for i := range want {
		if second[i].Role != want[i].Role || second[i].Content != want[i].Content {
			t.Errorf("message %d: got %#v want %#v", i, second[i], want[i])
		}
	}

	// Both turns must chain onto a single head.
	first, err := saver.Get(ctx, "conv-2", "")
	if err != nil {
		t.Fatalf("head lookup failed: %v", err)
	}
	if first.Parent == nil {
		t.Error("expected second turn's head to reference a parent checkpoint")
	}
}

func TestSupervisorHistoryWindowBoundsReplay(t *testing.T) {
	provider := &scriptedProvider{}
	sup, _ := newTestSupervisor(t, provider, WithHistoryWindow(1))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := sup.Chat(ctx, "conv-3", fmt.Sprintf("question %d", i)); err != nil {
			t.Fatalf("Chat %d failed: %v", i, err)
		}
	}

	last := provider.requests[2].Messages
	// window=1 replays one prior turn (query + response) plus the new input.
	if len(last) != 3 {
		t.Fatalf("expected 3 messages with window 1, got %#v", last)
	}
	if last[0].Content != "question 1" {
		t.Errorf("expected oldest turn trimmed, got %q first", last[0].Content)
	}
}

func TestSupervisorChatProviderError(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("upstream unavailable")}
	sup, saver := newTestSupervisor(t, provider)
	ctx := context.Background()

	if _, err := sup.Chat(ctx, "conv-4", "hello"); err == nil {
		t.Fatal("expected provider error to surface")
	}
	// A failed turn must not record a history entry.
	messages, err := saver.ListMessages(ctx, "conv-4")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected empty history after failure, got %d entries", len(messages))
	}
}

func TestSupervisorChatRequiresConversationID(t *testing.T) {
	sup, _ := newTestSupervisor(t, &scriptedProvider{})
	if _, err := sup.Chat(context.Background(), "", "hi"); !errors.Is(err, state.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestNewSupervisorValidatesDependencies(t *testing.T) {
	saver := memory.NewSaver()
	if _, err := NewSupervisor(nil, saver, saver); err == nil {
		t.Error("expected error for nil provider")
	}
	if _, err := NewSupervisor(&scriptedProvider{}, nil, saver); err == nil {
		t.Error("expected error for nil saver")
	}
	if _, err := NewSupervisor(&scriptedProvider{}, saver, nil); err == nil {
		t.Error("expected error for nil history")
	}
}
