// Package initialquestions suggests opening questions for a conversation by
// combining live cluster context with the chat model.
package initialquestions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/kubewise-ai/kubewise/k8s"
	"github.com/kubewise-ai/kubewise/llm"
	"github.com/kubewise-ai/kubewise/observe"
	"github.com/kubewise-ai/kubewise/prompt"
	"github.com/kubewise-ai/kubewise/state"
	"github.com/kubewise-ai/kubewise/types"
)

type Handler struct {
	provider llm.Provider
	history  state.ConversationHistory
	observer observe.Sink
}

type Option func(*Handler)

func WithObserver(sink observe.Sink) Option {
	return func(h *Handler) {
		if sink != nil {
			h.observer = sink
		}
	}
}

func NewHandler(provider llm.Provider, history state.ConversationHistory, opts ...Option) (*Handler, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if history == nil {
		return nil, fmt.Errorf("conversation history is required")
	}
	h := &Handler{
		provider: provider,
		history:  history,
		observer: observe.NoopSink{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// ClusterContext fetches the cluster data relevant to the selector and dumps
// it as YAML documents. Cluster scope collects not-running pods, node metrics,
// and warning events; namespace scope collects warning events; resource scope
// describes the resource and its events.
func (h *Handler) ClusterContext(ctx context.Context, client k8s.Client, sel k8s.Selector) (string, error) {
	if client == nil {
		return "", fmt.Errorf("k8s client is required")
	}
	scope, err := sel.Classify()
	if err != nil {
		return "", err
	}

	switch scope {
	case k8s.ScopeCluster:
		pods, err := client.ListNotRunningPods(ctx, sel.Namespace)
		if err != nil {
			return "", fmt.Errorf("failed to list not-running pods: %w", err)
		}
		metrics, err := client.ListNodeMetrics(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to list node metrics: %w", err)
		}
		events, err := client.ListWarningEvents(ctx, sel.Namespace)
		if err != nil {
			return "", fmt.Errorf("failed to list warning events: %w", err)
		}
		return joinSections(dumpAll(pods), dumpAll(metrics), dumpAll(events))
	case k8s.ScopeNamespace:
		events, err := client.ListWarningEvents(ctx, sel.Namespace)
		if err != nil {
			return "", fmt.Errorf("failed to list warning events: %w", err)
		}
		return joinSections(dumpAll(events))
	case k8s.ScopeResource:
		resource, err := client.DescribeResource(ctx, sel.APIVersion, sel.Kind, sel.Name, sel.Namespace)
		if err != nil {
			return "", fmt.Errorf("failed to describe %s/%s: %w", sel.Kind, sel.Name, err)
		}
		events, err := client.ListEventsForResource(ctx, sel.Kind, sel.Name, sel.Namespace)
		if err != nil {
			return "", fmt.Errorf("failed to list events for %s/%s: %w", sel.Kind, sel.Name, err)
		}
		return joinSections(dumpAll([]k8s.Resource{resource}), dumpAll(events))
	default:
		return "", fmt.Errorf("invalid resource selector")
	}
}

// Generate renders the questions prompt over the cluster context, asks the
// model, and records the suggestions in the conversation history.
func (h *Handler) Generate(ctx context.Context, conversationID, clusterContext string) ([]string, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, fmt.Errorf("%w: conversation id is required", state.ErrInvalidArgument)
	}
	rendered, err := prompt.Render(initialQuestionsTemplate, map[string]string{
		"context": clusterContext,
	})
	if err != nil {
		return nil, err
	}

	started := time.Now()
	response, err := h.provider.Generate(ctx, types.Request{
		Messages: []types.Message{{Role: types.RoleUser, Content: rendered}},
	})
	if err != nil {
		h.emit(ctx, observe.Event{
			Kind:           observe.KindProvider,
			Status:         observe.StatusFailed,
			Provider:       h.provider.Name(),
			ConversationID: conversationID,
			Error:          err.Error(),
		})
		return nil, fmt.Errorf("failed to generate initial questions: %w", err)
	}
	h.emit(ctx, observe.Event{
		Kind:           observe.KindProvider,
		Status:         observe.StatusCompleted,
		Provider:       h.provider.Name(),
		ConversationID: conversationID,
		DurationMs:     time.Since(started).Milliseconds(),
	})

	questions := parseQuestions(response.Message.Content)
	if len(questions) == 0 {
		return nil, fmt.Errorf("model returned no questions")
	}

	err = h.history.AppendMessage(ctx, conversationID, state.ConversationMessage{
		Type:      state.QueryTypeInitialQuestions,
		Query:     "",
		Response:  strings.Join(questions, "\n"),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return questions, nil
}

func (h *Handler) emit(ctx context.Context, event observe.Event) {
	_ = h.observer.Emit(ctx, event)
}

func dumpAll(resources []k8s.Resource) string {
	docs := make([]string, 0, len(resources))
	for _, resource := range resources {
		raw, err := yaml.Marshal(resource)
		if err != nil {
			continue
		}
		docs = append(docs, strings.TrimSpace(string(raw)))
	}
	return strings.Join(docs, "\n---\n")
}

func joinSections(sections ...string) (string, error) {
	nonEmpty := make([]string, 0, len(sections))
	for _, section := range sections {
		if strings.TrimSpace(section) != "" {
			nonEmpty = append(nonEmpty, section)
		}
	}
	if len(nonEmpty) == 0 {
		return "", fmt.Errorf("no cluster context available for selector")
	}
	return strings.Join(nonEmpty, "\n\n"), nil
}
