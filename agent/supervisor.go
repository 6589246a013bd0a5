// Package agent wires the chat model, the graph engine, and the stores into
// the conversational supervisor. One conversation id maps to one checkpoint
// thread; the supervisor assumes a single logical writer per conversation.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/kubewise-ai/kubewise/graph"
	"github.com/kubewise-ai/kubewise/llm"
	"github.com/kubewise-ai/kubewise/observe"
	"github.com/kubewise-ai/kubewise/prompt"
	"github.com/kubewise-ai/kubewise/state"
	"github.com/kubewise-ai/kubewise/types"
)

const (
	expertNodeID  = "kyma-agent"
	expertPrompt  = "kyma-expert"
	defaultWindow = 10
)

type Supervisor struct {
	provider llm.Provider
	saver    state.CheckpointSaver
	history  state.ConversationHistory
	observer observe.Sink
	prompts  *prompt.Registry
	window   int
	executor *graph.Executor
}

type Option func(*Supervisor)

func WithObserver(sink observe.Sink) Option {
	return func(s *Supervisor) {
		if sink != nil {
			s.observer = sink
		}
	}
}

// WithPromptRegistry overrides the default builtin registry.
func WithPromptRegistry(registry *prompt.Registry) Option {
	return func(s *Supervisor) {
		if registry != nil {
			s.prompts = registry
		}
	}
}

// WithHistoryWindow bounds how many prior turns are replayed to the model.
func WithHistoryWindow(window int) Option {
	return func(s *Supervisor) {
		if window > 0 {
			s.window = window
		}
	}
}

func NewSupervisor(provider llm.Provider, saver state.CheckpointSaver, history state.ConversationHistory, opts ...Option) (*Supervisor, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if saver == nil {
		return nil, fmt.Errorf("checkpoint saver is required")
	}
	if history == nil {
		return nil, fmt.Errorf("conversation history is required")
	}

	s := &Supervisor{
		provider: provider,
		saver:    saver,
		history:  history,
		observer: observe.NoopSink{},
		window:   defaultWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.prompts == nil {
		s.prompts = prompt.NewRegistry()
		prompt.RegisterBuiltins(s.prompts)
	}

	spec, ok := s.prompts.Resolve(expertPrompt)
	if !ok {
		return nil, fmt.Errorf("prompt %q is not registered", expertPrompt)
	}

	runner := &expertRunner{
		provider: provider,
		history:  history,
		system:   spec.System,
		window:   s.window,
	}
	g := graph.New("supervisor").
		AddNode(expertNodeID, graph.NewAgentNode(runner, nil)).
		SetStart(expertNodeID)

	executor, err := graph.NewExecutor(g,
		graph.WithSaver(saver),
		graph.WithObserver(s.observer),
	)
	if err != nil {
		return nil, err
	}
	s.executor = executor
	return s, nil
}

// Chat runs one conversational turn: the graph executes (checkpointing each
// step against the conversation's thread), and the exchange is appended to
// the conversation history.
func (s *Supervisor) Chat(ctx context.Context, conversationID, input string) (string, error) {
	if conversationID == "" {
		return "", fmt.Errorf("%w: conversation id is required", state.ErrInvalidArgument)
	}

	result, err := s.executor.Run(ctx, conversationID, input)
	if err != nil {
		return "", err
	}

	err = s.history.AppendMessage(ctx, conversationID, state.ConversationMessage{
		Type:      state.QueryTypeUserQuery,
		Query:     input,
		Response:  result.Output,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	return result.Output, nil
}

// Resume continues an interrupted turn from the thread's head checkpoint.
func (s *Supervisor) Resume(ctx context.Context, conversationID string) (string, error) {
	result, err := s.executor.Resume(ctx, conversationID)
	if err != nil {
		return "", err
	}
	return result.Output, nil
}

// expertRunner adapts the llm.Provider into the graph's agent-node contract,
// replaying a bounded window of prior turns.
type expertRunner struct {
	provider llm.Provider
	history  state.ConversationHistory
	system   string
	window   int
}

func (r *expertRunner) Respond(ctx context.Context, threadID, input string) (string, error) {
	previous, err := r.history.ListMessages(ctx, threadID)
	if err != nil {
		return "", err
	}
	if len(previous) > r.window {
		previous = previous[len(previous)-r.window:]
	}

	messages := make([]types.Message, 0, 2*len(previous)+1)
	for _, turn := range previous {
		if turn.Type != state.QueryTypeUserQuery {
			continue
		}
		if turn.Query != "" {
			messages = append(messages, types.Message{Role: types.RoleUser, Content: turn.Query})
		}
		if turn.Response != "" {
			messages = append(messages, types.Message{Role: types.RoleAssistant, Content: turn.Response})
		}
	}
	messages = append(messages, types.Message{Role: types.RoleUser, Content: input})

	response, err := r.provider.Generate(ctx, types.Request{
		SystemPrompt: r.system,
		Messages:     messages,
	})
	if err != nil {
		return "", err
	}
	return response.Message.Content, nil
}
