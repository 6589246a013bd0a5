package graph

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kubewise-ai/kubewise/state"
)

// State is the mutable execution state a thread carries between nodes.
type State struct {
	ThreadID   string         `json:"threadId"`
	Input      string         `json:"input,omitempty"`
	Output     string         `json:"output,omitempty"`
	LastNodeID string         `json:"lastNodeId,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	StartedAt  time.Time      `json:"startedAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func newState(threadID, input string, now time.Time) State {
	return State{
		ThreadID:  threadID,
		Input:     input,
		Data:      map[string]any{},
		StartedAt: now,
		UpdatedAt: now,
	}
}

func (s *State) ensureData() {
	if s.Data == nil {
		s.Data = map[string]any{}
	}
}

// snapshot packs the execution state and the next node to run into the
// channel-values map of an opaque checkpoint.
func snapshot(checkpointID string, s State, nextNodeID string, now time.Time) (state.Checkpoint, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return state.Checkpoint{}, fmt.Errorf("failed to encode graph state: %w", err)
	}
	var packed map[string]any
	if err := json.Unmarshal(raw, &packed); err != nil {
		return state.Checkpoint{}, fmt.Errorf("failed to encode graph state: %w", err)
	}
	return state.Checkpoint{
		V:  1,
		ID: checkpointID,
		TS: now.Format(time.RFC3339Nano),
		ChannelValues: map[string]any{
			"state":      packed,
			"nextNodeId": nextNodeID,
		},
		ChannelVersions: map[string]int64{},
		VersionsSeen:    map[string]map[string]int64{},
		PendingSends:    []any{},
	}, nil
}

// restore is the inverse of snapshot.
func restore(checkpoint state.Checkpoint) (State, string, error) {
	packed, ok := checkpoint.ChannelValues["state"]
	if !ok {
		return State{}, "", fmt.Errorf("checkpoint %q carries no graph state", checkpoint.ID)
	}
	raw, err := json.Marshal(packed)
	if err != nil {
		return State{}, "", fmt.Errorf("failed to decode graph state: %w", err)
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return State{}, "", fmt.Errorf("failed to decode graph state: %w", err)
	}
	nextNodeID, _ := checkpoint.ChannelValues["nextNodeId"].(string)
	return s, nextNodeID, nil
}
