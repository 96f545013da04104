// Package buffer models the per-(user, blob_type) queue of blob
// references awaiting consolidation (C4).
package buffer

import (
	"context"
	"time"

	"github.com/memobase-dev/memobase-go/blob"
)

// Status is a buffer entry's position in the idle -> processing ->
// {done, failed} lattice. Terminal states never return to idle.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// CanTransition reports whether moving an entry from `from` to `to` is a
// legal transition in the status lattice (§3).
func CanTransition(from, to Status) bool {
	switch from {
	case StatusIdle:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusDone || to == StatusFailed
	case StatusFailed:
		// An operator or a later flush may re-drive a failed entry back
		// to processing; it may never silently become idle again.
		return to == StatusProcessing
	default:
		return false
	}
}

// Entry links one blob to one pending processing slot.
type Entry struct {
	ID        string
	ProjectID string
	UserID    string
	Type      blob.Type
	BlobID    string
	TokenSize int
	Status    Status
	CreatedAt time.Time
}

// Store persists buffer entries. The scheduler, not the store, decides
// when to flush — Store only tracks state.
type Store interface {
	Enqueue(ctx context.Context, projectID, userID string, t blob.Type, blobID string, tokenSize int) (*Entry, error)
	PendingIDs(ctx context.Context, projectID, userID string, t blob.Type, status Status) ([]*Entry, error)
	Get(ctx context.Context, projectID, userID string, ids []string) ([]*Entry, error)
	Mark(ctx context.Context, projectID, userID string, ids []string, newStatus Status) error
	TokenSum(ctx context.Context, projectID, userID string, t blob.Type, status Status) (int, error)
	DeleteDone(ctx context.Context, projectID, userID string, t blob.Type) error
	DeleteUser(ctx context.Context, projectID, userID string) error
}
