// Package event models the append-only per-user event log (C3): one
// record per successful flush that produced a non-empty profile delta.
package event

import (
	"context"
	"time"
)

// Tag is one (tag, value) pair drawn from the project's declared taxonomy.
type Tag struct {
	Tag   string
	Value string
}

// DeltaAction names the kind of profile change an event's delta entry
// records.
type DeltaAction string

const (
	ActionAdd    DeltaAction = "add"
	ActionUpdate DeltaAction = "update"
	ActionDelete DeltaAction = "delete"
)

// DeltaEntry is one line of an event's recorded profile_delta.
type DeltaEntry struct {
	SlotID   string
	Topic    string
	SubTopic string
	Action   DeltaAction
}

// Event is one entry of the append-only event log.
type Event struct {
	ID           string
	ProjectID    string
	UserID       string
	EventTip     string
	EventTags    []Tag
	ProfileDelta []DeltaEntry
	Embedding    []float32
	CreatedAt    time.Time
}

// Patch is an operator-initiated edit; fields left nil are unchanged.
type Patch struct {
	EventTip  *string
	EventTags []Tag
}

// Store persists the event log.
type Store interface {
	Append(ctx context.Context, projectID, userID string, e *Event) (string, error)
	List(ctx context.Context, projectID, userID string, topK, tokenBudget int, requireSummary bool) ([]*Event, error)
	Update(ctx context.Context, projectID, userID, eventID string, patch Patch) error
	Delete(ctx context.Context, projectID, userID, eventID string) error
	SearchByText(ctx context.Context, projectID, userID string, queryEmbedding []float32, k int, threshold float64) ([]*Event, error)
	DeleteUser(ctx context.Context, projectID, userID string) error
}
