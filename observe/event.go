package observe

import "time"

type Kind string

type Status string

const (
	KindCheckpoint Kind = "checkpoint"
	KindHistory    Kind = "history"
	KindGraph      Kind = "graph"
	KindProvider   Kind = "provider"
	KindCustom     Kind = "custom"
)

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Event struct {
	Timestamp      time.Time      `json:"timestamp"`
	ThreadID       string         `json:"threadId,omitempty"`
	ConversationID string         `json:"conversationId,omitempty"`
	Kind           Kind           `json:"kind"`
	Status         Status         `json:"status,omitempty"`
	Name           string         `json:"name,omitempty"`
	Provider       string         `json:"provider,omitempty"`
	Message        string         `json:"message,omitempty"`
	Error          string         `json:"error,omitempty"`
	DurationMs     int64          `json:"durationMs,omitempty"`
	Attributes     map[string]any `json:"attributes,omitempty"`
}

func (e *Event) Normalize() {
	if e == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Kind == "" {
		e.Kind = KindCustom
	}
	if e.Attributes == nil {
		e.Attributes = map[string]any{}
	}
}
