package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kubewise-ai/kubewise/observe"
	"github.com/kubewise-ai/kubewise/state"
)

const defaultMaxSteps = 50

// Executor runs a compiled graph for one thread at a time. When a saver is
// configured, it writes a checkpoint after every node with the previous
// checkpoint as parent; the thread can then be resumed from its head.
// Concurrent runs on the same thread id are the caller's responsibility to
// prevent.
type Executor struct {
	graph    *Graph
	saver    state.CheckpointSaver
	observer observe.Sink
	maxSteps int
}

type ExecutorOption func(*Executor)

func WithSaver(saver state.CheckpointSaver) ExecutorOption {
	return func(e *Executor) { e.saver = saver }
}

func WithObserver(observer observe.Sink) ExecutorOption {
	return func(e *Executor) {
		if observer != nil {
			e.observer = observer
		}
	}
}

func WithMaxSteps(max int) ExecutorOption {
	return func(e *Executor) {
		if max > 0 {
			e.maxSteps = max
		}
	}
}

func NewExecutor(graph *Graph, opts ...ExecutorOption) (*Executor, error) {
	if graph == nil {
		return nil, fmt.Errorf("graph is required")
	}
	if err := graph.Compile(); err != nil {
		return nil, err
	}
	executor := &Executor{
		graph:    graph,
		observer: observe.NoopSink{},
		maxSteps: defaultMaxSteps,
	}
	for _, opt := range opts {
		opt(executor)
	}
	return executor, nil
}

// Result summarizes one run or resume of a thread.
type Result struct {
	ThreadID    string
	Output      string
	Steps       int
	NodeTrace   []string
	StartedAt   time.Time
	CompletedAt time.Time
}

// Run starts the graph from its start node for the given thread. When the
// thread already has checkpoints (a prior turn), the new chain links onto the
// current head so the thread keeps exactly one head.
func (e *Executor) Run(ctx context.Context, threadID, input string) (Result, error) {
	if e == nil || e.graph == nil {
		return Result{}, fmt.Errorf("executor is not initialized")
	}
	if threadID == "" {
		return Result{}, fmt.Errorf("%w: thread id is required", state.ErrInvalidArgument)
	}

	parentCheckpointID := ""
	step := 1
	if e.saver != nil {
		tuple, err := e.saver.Get(ctx, threadID, "")
		switch {
		case err == nil:
			parentCheckpointID = tuple.Checkpoint.ID
			step = tuple.Metadata.Step + 1
		case errors.Is(err, state.ErrNotFound):
		default:
			return Result{}, err
		}
	}

	now := time.Now().UTC()
	return e.execute(ctx, newState(threadID, input, now), e.graph.startNodeID, parentCheckpointID, step)
}

// Resume continues a thread from its most recent checkpoint. A thread whose
// head checkpoint carries no next node is already finished; its recorded
// output is returned as-is.
func (e *Executor) Resume(ctx context.Context, threadID string) (Result, error) {
	if e == nil || e.graph == nil {
		return Result{}, fmt.Errorf("executor is not initialized")
	}
	if threadID == "" {
		return Result{}, fmt.Errorf("%w: thread id is required", state.ErrInvalidArgument)
	}
	if e.saver == nil {
		return Result{}, fmt.Errorf("checkpoint saver is required for resume")
	}

	tuple, err := e.saver.Get(ctx, threadID, "")
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return Result{}, fmt.Errorf("no checkpoints found for thread %q: %w", threadID, err)
		}
		return Result{}, err
	}

	runtimeState, nextNodeID, err := restore(tuple.Checkpoint)
	if err != nil {
		return Result{}, err
	}
	if runtimeState.ThreadID == "" {
		runtimeState.ThreadID = threadID
	}
	if runtimeState.StartedAt.IsZero() {
		runtimeState.StartedAt = time.Now().UTC()
	}

	if nextNodeID == "" {
		completedAt := time.Now().UTC()
		return Result{
			ThreadID:    threadID,
			Output:      runtimeState.Output,
			Steps:       tuple.Metadata.Step,
			StartedAt:   runtimeState.StartedAt,
			CompletedAt: completedAt,
		}, nil
	}

	return e.execute(ctx, runtimeState, nextNodeID, tuple.Checkpoint.ID, tuple.Metadata.Step+1)
}

func (e *Executor) execute(ctx context.Context, runtimeState State, nodeID, parentCheckpointID string, step int) (Result, error) {
	if nodeID == "" {
		return Result{}, fmt.Errorf("start node is empty")
	}

	trace := []string{}
	ran := 0
	for nodeID != "" {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if ran >= e.maxSteps {
			return Result{}, fmt.Errorf("thread %q exceeded %d steps", runtimeState.ThreadID, e.maxSteps)
		}
		ran++

		node, ok := e.graph.nodes[nodeID]
		if !ok {
			return Result{}, fmt.Errorf("node %q does not exist", nodeID)
		}

		started := time.Now()
		if err := node.Execute(ctx, &runtimeState); err != nil {
			e.emit(ctx, observe.Event{
				Kind:     observe.KindGraph,
				Status:   observe.StatusFailed,
				Name:     e.graph.name,
				ThreadID: runtimeState.ThreadID,
				Message:  fmt.Sprintf("node %s failed", nodeID),
				Error:    err.Error(),
			})
			return Result{}, fmt.Errorf("node %q failed: %w", nodeID, err)
		}
		runtimeState.LastNodeID = nodeID
		runtimeState.UpdatedAt = time.Now().UTC()
		trace = append(trace, nodeID)

		e.emit(ctx, observe.Event{
			Kind:       observe.KindGraph,
			Status:     observe.StatusCompleted,
			Name:       e.graph.name,
			ThreadID:   runtimeState.ThreadID,
			Message:    fmt.Sprintf("node %s completed", nodeID),
			DurationMs: time.Since(started).Milliseconds(),
			Attributes: map[string]any{"nodeId": nodeID, "step": step},
		})

		nextNodeID, err := e.selectNextNode(ctx, nodeID, &runtimeState)
		if err != nil {
			return Result{}, err
		}

		if e.saver != nil {
			checkpointID := uuid.NewString()
			checkpoint, err := snapshot(checkpointID, runtimeState, nextNodeID, runtimeState.UpdatedAt)
			if err != nil {
				return Result{}, err
			}
			metadata := state.CheckpointMetadata{
				Source: "loop",
				Step:   step,
				Writes: map[string]any{nodeID: runtimeState.Output},
			}
			if err := e.saver.Put(ctx, runtimeState.ThreadID, checkpointID, parentCheckpointID, checkpoint, metadata); err != nil {
				return Result{}, err
			}
			parentCheckpointID = checkpointID
		}

		nodeID = nextNodeID
		step++
	}

	return Result{
		ThreadID:    runtimeState.ThreadID,
		Output:      runtimeState.Output,
		Steps:       step - 1,
		NodeTrace:   trace,
		StartedAt:   runtimeState.StartedAt,
		CompletedAt: runtimeState.UpdatedAt,
	}, nil
}

func (e *Executor) selectNextNode(ctx context.Context, nodeID string, runtimeState *State) (string, error) {
	for _, edge := range e.graph.edges[nodeID] {
		if edge.Condition == nil {
			return edge.To, nil
		}
		ok, err := edge.Condition(ctx, runtimeState)
		if err != nil {
			return "", fmt.Errorf("edge %s->%s condition failed: %w", edge.From, edge.To, err)
		}
		if ok {
			return edge.To, nil
		}
	}
	return "", nil
}

func (e *Executor) emit(ctx context.Context, event observe.Event) {
	if e.observer == nil {
		return
	}
	_ = e.observer.Emit(ctx, event)
}
