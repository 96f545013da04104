// Package userstatus is the optional secondary log named in §3's "User
// status": typed records attached to a user (e.g. roleplay plot state),
// sharing the event log's append-only write discipline but namespaced by
// an application-defined kind rather than being part of the event
// timeline itself.
package userstatus

import (
	"context"
	"time"
)

// Record is one typed, attributed status record.
type Record struct {
	ID        string
	ProjectID string
	UserID    string
	Kind      string
	Attrs     map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists user status records.
type Store interface {
	Append(ctx context.Context, projectID, userID, kind string, attrs map[string]any) (string, error)
	List(ctx context.Context, projectID, userID, kind string) ([]*Record, error)
	Update(ctx context.Context, projectID, userID, id string, attrs map[string]any) error
	Delete(ctx context.Context, projectID, userID, id string) error
	DeleteUser(ctx context.Context, projectID, userID string) error
}
