package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/memobase-dev/memobase-go/blob"
	"github.com/memobase-dev/memobase-go/errs"
)

type blobPayload struct {
	Chat *blob.Chat `json:"chat,omitempty"`
	Doc  *blob.Doc  `json:"doc,omitempty"`
}

// PutBlob inserts a new immutable blob record, assigning it an ID if b.ID
// is empty.
func (s *BlobStore) PutBlob(ctx context.Context, projectID, userID string, b *blob.Blob) (string, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	payload, err := json.Marshal(blobPayload{Chat: b.Chat, Doc: b.Doc})
	if err != nil {
		return "", errs.Wrap(errs.InternalError, err, "failed to marshal blob payload")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO blobs (id, project_id, user_id, type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, b.ID, projectID, userID, string(b.Type), payload, b.CreatedAt)
	if err != nil {
		return "", errs.Wrap(errs.InternalError, err, "failed to insert blob")
	}
	return b.ID, nil
}

// GetBlob retrieves one blob by ID.
func (s *BlobStore) GetBlob(ctx context.Context, projectID, userID, blobID string) (*blob.Blob, error) {
	var (
		t         string
		payload   []byte
		createdAt time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT type, payload, created_at FROM blobs
		WHERE project_id = $1 AND user_id = $2 AND id = $3
	`, projectID, userID, blobID).Scan(&t, &payload, &createdAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errs.New(errs.NotFound, "blob %s not found", blobID)
		}
		return nil, errs.Wrap(errs.InternalError, err, "failed to load blob")
	}

	var p blobPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "failed to unmarshal blob payload")
	}
	return &blob.Blob{
		ID: blobID, ProjectID: projectID, UserID: userID,
		Type: blob.Type(t), Chat: p.Chat, Doc: p.Doc, CreatedAt: createdAt,
	}, nil
}

// DeleteBlob removes one blob.
func (s *BlobStore) DeleteBlob(ctx context.Context, projectID, userID, blobID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM blobs WHERE project_id = $1 AND user_id = $2 AND id = $3
	`, projectID, userID, blobID)
	if err != nil {
		return errs.Wrap(errs.InternalError, err, "failed to delete blob")
	}
	return nil
}

// ListBlobs paginates a user's blob IDs of one type, newest first.
func (s *BlobStore) ListBlobs(ctx context.Context, projectID, userID string, t blob.Type, page, pageSize int) ([]string, error) {
	if pageSize <= 0 {
		pageSize = 50
	}
	if page < 0 {
		page = 0
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM blobs
		WHERE project_id = $1 AND user_id = $2 AND type = $3
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`, projectID, userID, string(t), pageSize, page*pageSize)
	if err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "failed to list blobs")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errs.Wrap(errs.InternalError, err, "failed to scan blob row")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "error iterating blob rows")
	}
	return ids, nil
}

// DeleteUserBlobs removes every blob belonging to a user.
func (s *BlobStore) DeleteUserBlobs(ctx context.Context, projectID, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM blobs WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return errs.Wrap(errs.InternalError, err, "failed to delete user blobs")
	}
	return nil
}
