package state

import "time"

// Checkpoint is a snapshot of agent execution state after one step. The store
// treats it as an opaque payload: it round-trips the structure without
// inspecting or validating it.
type Checkpoint struct {
	V               int                         `json:"v"`
	ID              string                      `json:"id"`
	TS              string                      `json:"ts"`
	ChannelValues   map[string]any              `json:"channel_values"`
	ChannelVersions map[string]int64            `json:"channel_versions"`
	VersionsSeen    map[string]map[string]int64 `json:"versions_seen"`
	PendingSends    []any                       `json:"pending_sends"`
}

// CheckpointMetadata accompanies a Checkpoint one-to-one. Opaque to the store.
type CheckpointMetadata struct {
	Source string         `json:"source"`
	Step   int            `json:"step"`
	Writes map[string]any `json:"writes"`
	Score  float64        `json:"score,omitempty"`
}

// CheckpointRef identifies a checkpoint within a thread, used to walk a
// parent chain backward.
type CheckpointRef struct {
	ThreadID     string `json:"threadId"`
	CheckpointID string `json:"checkpointId"`
}

// CheckpointTuple is the result of a Get: the decoded snapshot plus a
// reference to its parent, nil when the checkpoint is the thread root.
type CheckpointTuple struct {
	ThreadID   string
	Checkpoint Checkpoint
	Metadata   CheckpointMetadata
	Parent     *CheckpointRef
}

// QueryType classifies a conversation turn.
type QueryType string

const (
	QueryTypeInitialQuestions QueryType = "Initial Questions"
	QueryTypeUserQuery        QueryType = "User Query"
)

// ConversationMessage is one immutable turn in a conversation log.
type ConversationMessage struct {
	Type      QueryType `json:"type"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}
