// Package redis persists agent checkpoints and conversation history in a
// remote Redis store. Each checkpoint is one hash at
// checkpoint:{threadID}:{checkpointID}; each conversation is one list at
// history:{conversationID}. The thread head is never indexed eagerly: it is
// resolved at read time as the one checkpoint id no other record names as
// its parent.
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kubewise-ai/kubewise/observe"
	"github.com/kubewise-ai/kubewise/state"
	"github.com/kubewise-ai/kubewise/state/codec"
)

const (
	fieldCheckpoint = "checkpoint"
	fieldMetadata   = "metadata"
	fieldParent     = "parentCheckpointId"

	scanBatch = 100
)

// Saver implements state.CheckpointSaver and state.ConversationHistory
// against Redis. The source is either a *goredis.Client (pool) or a
// *goredis.Conn (pre-established connection); every operation acquires a
// scoped connection and releases it on all exit paths.
type Saver struct {
	source   any
	observer observe.Sink
}

type SaverOption func(*Saver)

// WithObserver injects the event sink. Defaults to a no-op sink.
func WithObserver(sink observe.Sink) SaverOption {
	return func(s *Saver) {
		if sink != nil {
			s.observer = sink
		}
	}
}

func NewSaver(source any, opts ...SaverOption) (*Saver, error) {
	switch source.(type) {
	case *goredis.Client, *goredis.Conn:
	default:
		return nil, fmt.Errorf("%w: unsupported connection source %T", state.ErrInvalidArgument, source)
	}
	s := &Saver{
		source:   source,
		observer: observe.NoopSink{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Put writes one checkpoint record. The write is an idempotent overwrite of
// the single hash key; no index is maintained alongside it. An empty
// parentCheckpointID marks the thread root.
func (s *Saver) Put(ctx context.Context, threadID, checkpointID, parentCheckpointID string, checkpoint state.Checkpoint, metadata state.CheckpointMetadata) error {
	if strings.TrimSpace(threadID) == "" {
		return fmt.Errorf("%w: thread id is required", state.ErrInvalidArgument)
	}
	if strings.TrimSpace(checkpointID) == "" {
		return fmt.Errorf("%w: checkpoint id is required", state.ErrInvalidArgument)
	}

	encodedCheckpoint, _, err := codec.Dumps(checkpoint)
	if err != nil {
		return err
	}
	encodedMetadata, _, err := codec.Dumps(metadata)
	if err != nil {
		return err
	}

	conn, err := Acquire(s.source)
	if err != nil {
		return err
	}
	defer conn.Release()

	started := time.Now()
	err = conn.Cmd().HSet(ctx, checkpointKey(threadID, checkpointID), map[string]any{
		fieldCheckpoint: encodedCheckpoint,
		fieldMetadata:   encodedMetadata,
		fieldParent:     parentCheckpointID,
	}).Err()
	if err != nil {
		s.emit(ctx, observe.Event{
			Kind:     observe.KindCheckpoint,
			Status:   observe.StatusFailed,
			Name:     "checkpoint.put",
			ThreadID: threadID,
			Error:    err.Error(),
		})
		return fmt.Errorf("failed to save checkpoint in redis: %w", err)
	}

	s.emit(ctx, observe.Event{
		Kind:       observe.KindCheckpoint,
		Status:     observe.StatusCompleted,
		Name:       "checkpoint.put",
		ThreadID:   threadID,
		DurationMs: time.Since(started).Milliseconds(),
		Attributes: map[string]any{"checkpointId": checkpointID},
	})
	return nil
}

// Get fetches one checkpoint record. With an explicit checkpointID it is a
// point read; with an empty one the thread head is resolved by scanning the
// thread's records. A thread with no records is state.ErrNotFound; a
// non-empty thread with zero or several head candidates is
// state.ErrCorruptChain.
func (s *Saver) Get(ctx context.Context, threadID, checkpointID string) (state.CheckpointTuple, error) {
	if strings.TrimSpace(threadID) == "" {
		return state.CheckpointTuple{}, fmt.Errorf("%w: thread id is required", state.ErrInvalidArgument)
	}

	conn, err := Acquire(s.source)
	if err != nil {
		return state.CheckpointTuple{}, err
	}
	defer conn.Release()

	cmd := conn.Cmd()
	if checkpointID == "" {
		checkpointID, err = resolveHead(ctx, cmd, threadID)
		if err != nil {
			return state.CheckpointTuple{}, err
		}
	}

	fields, err := cmd.HGetAll(ctx, checkpointKey(threadID, checkpointID)).Result()
	if err != nil {
		return state.CheckpointTuple{}, fmt.Errorf("failed to load checkpoint from redis: %w", err)
	}
	if len(fields) == 0 {
		return state.CheckpointTuple{}, fmt.Errorf("%w: checkpoint %s/%s", state.ErrNotFound, threadID, checkpointID)
	}

	tuple := state.CheckpointTuple{ThreadID: threadID}
	if err := codec.Unmarshal(fields[fieldCheckpoint], &tuple.Checkpoint); err != nil {
		return state.CheckpointTuple{}, fmt.Errorf("%w: checkpoint %s/%s: %v", state.ErrCorruptRecord, threadID, checkpointID, err)
	}
	if err := codec.Unmarshal(fields[fieldMetadata], &tuple.Metadata); err != nil {
		return state.CheckpointTuple{}, fmt.Errorf("%w: metadata %s/%s: %v", state.ErrCorruptRecord, threadID, checkpointID, err)
	}
	if parent := fields[fieldParent]; parent != "" {
		tuple.Parent = &state.CheckpointRef{ThreadID: threadID, CheckpointID: parent}
	}

	s.emit(ctx, observe.Event{
		Kind:       observe.KindCheckpoint,
		Status:     observe.StatusCompleted,
		Name:       "checkpoint.get",
		ThreadID:   threadID,
		Attributes: map[string]any{"checkpointId": checkpointID},
	})
	return tuple, nil
}

// AppendMessage appends one turn to the conversation log. Prior entries are
// never rewritten or reordered.
func (s *Saver) AppendMessage(ctx context.Context, conversationID string, message state.ConversationMessage) error {
	if strings.TrimSpace(conversationID) == "" {
		return fmt.Errorf("%w: conversation id is required", state.ErrInvalidArgument)
	}

	payload, _, err := codec.Dumps(message)
	if err != nil {
		return err
	}

	conn, err := Acquire(s.source)
	if err != nil {
		return err
	}
	defer conn.Release()

	if err := conn.Cmd().RPush(ctx, historyKey(conversationID), payload).Err(); err != nil {
		return fmt.Errorf("failed to append conversation message: %w", err)
	}

	s.emit(ctx, observe.Event{
		Kind:           observe.KindHistory,
		Status:         observe.StatusCompleted,
		Name:           "history.append",
		ConversationID: conversationID,
		Attributes:     map[string]any{"queryType": string(message.Type)},
	})
	return nil
}

// ListMessages returns every turn for the conversation in insertion order.
// An unknown conversation id yields an empty slice, not an error.
func (s *Saver) ListMessages(ctx context.Context, conversationID string) ([]state.ConversationMessage, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, fmt.Errorf("%w: conversation id is required", state.ErrInvalidArgument)
	}

	conn, err := Acquire(s.source)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	entries, err := conn.Cmd().LRange(ctx, historyKey(conversationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation messages: %w", err)
	}

	out := make([]state.ConversationMessage, 0, len(entries))
	for i, entry := range entries {
		var message state.ConversationMessage
		if err := codec.Unmarshal(entry, &message); err != nil {
			return nil, fmt.Errorf("%w: history %s entry %d: %v", state.ErrCorruptRecord, conversationID, i, err)
		}
		out = append(out, message)
	}
	return out, nil
}

// resolveHead derives the thread head without a separate latest pointer: it
// collects the thread's checkpoint ids and the ids referenced as parents, and
// the head is the single id in the first set but not the second. The scan is
// not atomic against a concurrent writer on the same thread; the single
// logical writer per thread is a documented caller responsibility.
func resolveHead(ctx context.Context, cmd goredis.Cmdable, threadID string) (string, error) {
	pattern := checkpointKey(threadID, "*")
	prefix := checkpointKey(threadID, "")

	var (
		keys   []string
		cursor uint64
	)
	for {
		found, next, err := cmd.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return "", fmt.Errorf("failed to scan checkpoints: %w", err)
		}
		keys = append(keys, found...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return "", fmt.Errorf("%w: thread %q has no checkpoints", state.ErrNotFound, threadID)
	}

	ids := make(map[string]struct{}, len(keys))
	parents := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		ids[strings.TrimPrefix(key, prefix)] = struct{}{}
		parent, err := cmd.HGet(ctx, key, fieldParent).Result()
		if err == goredis.Nil {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to read checkpoint parent: %w", err)
		}
		if parent != "" {
			parents[parent] = struct{}{}
		}
	}

	var candidates []string
	for id := range ids {
		if _, referenced := parents[id]; !referenced {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) != 1 {
		return "", fmt.Errorf("%w: thread %q has %d head candidates", state.ErrCorruptChain, threadID, len(candidates))
	}
	return candidates[0], nil
}

func (s *Saver) emit(ctx context.Context, event observe.Event) {
	if s.observer == nil {
		return
	}
	_ = s.observer.Emit(ctx, event)
}

func checkpointKey(threadID, checkpointID string) string {
	return fmt.Sprintf("checkpoint:%s:%s", threadID, checkpointID)
}

func historyKey(conversationID string) string {
	return fmt.Sprintf("history:%s", conversationID)
}
