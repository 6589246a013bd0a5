package state

import (
	"context"
	"errors"
)

var (
	// ErrNotFound reports that a thread or checkpoint has no record in the store.
	ErrNotFound = errors.New("state: not found")
	// ErrInvalidArgument reports a caller bug: an empty id or an unusable
	// connection handle.
	ErrInvalidArgument = errors.New("state: invalid argument")
	// ErrInvalidAddress reports a store address that could not be parsed.
	ErrInvalidAddress = errors.New("state: invalid address")
	// ErrCorruptRecord reports a persisted record that failed to decode.
	ErrCorruptRecord = errors.New("state: corrupt record")
	// ErrCorruptChain reports a thread whose parent chain has zero or more
	// than one head candidate.
	ErrCorruptChain = errors.New("state: corrupt checkpoint chain")
)

// CheckpointSaver is the save/load contract the graph engine requires of any
// checkpoint backend. Put persists one snapshot keyed by (threadID,
// checkpointID); an existing record under the same key is overwritten. Get
// fetches a specific checkpoint, or resolves the thread head when checkpointID
// is empty, returning ErrNotFound when the thread has no records.
type CheckpointSaver interface {
	Put(ctx context.Context, threadID, checkpointID, parentCheckpointID string, checkpoint Checkpoint, metadata CheckpointMetadata) error
	Get(ctx context.Context, threadID, checkpointID string) (CheckpointTuple, error)
}

// ConversationHistory is the append-only per-conversation message log used by
// response-generation code, independent of checkpoint chains.
type ConversationHistory interface {
	AppendMessage(ctx context.Context, conversationID string, message ConversationMessage) error
	ListMessages(ctx context.Context, conversationID string) ([]ConversationMessage, error)
}
