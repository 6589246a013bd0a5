// Package memory is an in-process implementation of the checkpoint and
// conversation-history contracts, interchangeable with the redis backend for
// engine tests and local development. It mirrors the redis backend's
// semantics, including lazy head resolution and the corrupt-chain policy.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kubewise-ai/kubewise/state"
	"github.com/kubewise-ai/kubewise/state/codec"
)

type record struct {
	checkpoint string
	metadata   string
	parent     string
}

type Saver struct {
	mu      sync.Mutex
	threads map[string]map[string]record
	history map[string][]string
}

func NewSaver() *Saver {
	return &Saver{
		threads: map[string]map[string]record{},
		history: map[string][]string{},
	}
}

func (s *Saver) Put(ctx context.Context, threadID, checkpointID, parentCheckpointID string, checkpoint state.Checkpoint, metadata state.CheckpointMetadata) error {
	_ = ctx
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

	s.mu.Lock()
	defer s.mu.Unlock()
	thread, ok := s.threads[threadID]
	if !ok {
		thread = map[string]record{}
		s.threads[threadID] = thread
	}
	thread[checkpointID] = record{
		checkpoint: encodedCheckpoint,
		metadata:   encodedMetadata,
		parent:     parentCheckpointID,
	}
	return nil
}

func (s *Saver) Get(ctx context.Context, threadID, checkpointID string) (state.CheckpointTuple, error) {
	_ = ctx
	if strings.TrimSpace(threadID) == "" {
		return state.CheckpointTuple{}, fmt.Errorf("%w: thread id is required", state.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	thread := s.threads[threadID]
	if checkpointID == "" {
		var err error
		checkpointID, err = resolveHead(threadID, thread)
		if err != nil {
			return state.CheckpointTuple{}, err
		}
	}

	rec, ok := thread[checkpointID]
	if !ok {
		return state.CheckpointTuple{}, fmt.Errorf("%w: checkpoint %s/%s", state.ErrNotFound, threadID, checkpointID)
	}

	tuple := state.CheckpointTuple{ThreadID: threadID}
	if err := codec.Unmarshal(rec.checkpoint, &tuple.Checkpoint); err != nil {
		return state.CheckpointTuple{}, fmt.Errorf("%w: checkpoint %s/%s: %v", state.ErrCorruptRecord, threadID, checkpointID, err)
	}
	if err := codec.Unmarshal(rec.metadata, &tuple.Metadata); err != nil {
		return state.CheckpointTuple{}, fmt.Errorf("%w: metadata %s/%s: %v", state.ErrCorruptRecord, threadID, checkpointID, err)
	}
	if rec.parent != "" {
		tuple.Parent = &state.CheckpointRef{ThreadID: threadID, CheckpointID: rec.parent}
	}
	return tuple, nil
}

func (s *Saver) AppendMessage(ctx context.Context, conversationID string, message state.ConversationMessage) error {
	_ = ctx
	if strings.TrimSpace(conversationID) == "" {
		return fmt.Errorf("%w: conversation id is required", state.ErrInvalidArgument)
	}
	payload, _, err := codec.Dumps(message)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[conversationID] = append(s.history[conversationID], payload)
	return nil
}

func (s *Saver) ListMessages(ctx context.Context, conversationID string) ([]state.ConversationMessage, error) {
	_ = ctx
	if strings.TrimSpace(conversationID) == "" {
		return nil, fmt.Errorf("%w: conversation id is required", state.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.history[conversationID]
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

func resolveHead(threadID string, thread map[string]record) (string, error) {
	if len(thread) == 0 {
		return "", fmt.Errorf("%w: thread %q has no checkpoints", state.ErrNotFound, threadID)
	}
	parents := make(map[string]struct{}, len(thread))
	for _, rec := range thread {
		if rec.parent != "" {
			parents[rec.parent] = struct{}{}
		}
	}
	var candidates []string
	for id := range thread {
		if _, referenced := parents[id]; !referenced {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) != 1 {
		return "", fmt.Errorf("%w: thread %q has %d head candidates", state.ErrCorruptChain, threadID, len(candidates))
	}
	return candidates[0], nil
}
