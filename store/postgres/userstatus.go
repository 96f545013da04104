package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/memobase-dev/memobase-go/errs"
	"github.com/memobase-dev/memobase-go/userstatus"
)

// Append inserts one typed status record.
func (s *UserStatusStore) Append(ctx context.Context, projectID, userID, kind string, attrs map[string]any) (string, error) {
	id := uuid.NewString()
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return "", errs.Wrap(errs.InternalError, err, "failed to marshal status attrs")
	}
	now := time.Now()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO user_status (id, project_id, user_id, kind, attrs, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, id, projectID, userID, kind, attrsJSON, now)
	if err != nil {
		return "", errs.Wrap(errs.InternalError, err, "failed to insert status record")
	}
	return id, nil
}

// List returns status records of one kind for a user, newest first.
func (s *UserStatusStore) List(ctx context.Context, projectID, userID, kind string) ([]*userstatus.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, attrs, created_at, updated_at FROM user_status
		WHERE project_id = $1 AND user_id = $2 AND kind = $3
		ORDER BY created_at DESC
	`, projectID, userID, kind)
	if err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "failed to list status records")
	}
	defer rows.Close()

	var records []*userstatus.Record
	for rows.Next() {
		r := &userstatus.Record{ProjectID: projectID, UserID: userID, Kind: kind}
		var attrsJSON []byte
		if err := rows.Scan(&r.ID, &attrsJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, errs.Wrap(errs.InternalError, err, "failed to scan status record row")
		}
		if len(attrsJSON) > 0 {
			if err := json.Unmarshal(attrsJSON, &r.Attrs); err != nil {
				return nil, errs.Wrap(errs.InternalError, err, "failed to unmarshal status attrs")
			}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "error iterating status record rows")
	}
	return records, nil
}

// Update replaces attrs on an existing status record.
func (s *UserStatusStore) Update(ctx context.Context, projectID, userID, id string, attrs map[string]any) error {
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return errs.Wrap(errs.InternalError, err, "failed to marshal status attrs")
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE user_status SET attrs = $1, updated_at = $2
		WHERE project_id = $3 AND user_id = $4 AND id = $5
	`, attrsJSON, time.Now(), projectID, userID, id)
	if err != nil {
		return errs.Wrap(errs.InternalError, err, "failed to update status record")
	}
	return nil
}

// Delete removes one status record.
func (s *UserStatusStore) Delete(ctx context.Context, projectID, userID, id string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM user_status WHERE project_id = $1 AND user_id = $2 AND id = $3
	`, projectID, userID, id)
	if err != nil {
		return errs.Wrap(errs.InternalError, err, "failed to delete status record")
	}
	return nil
}

// DeleteUser removes every status record belonging to a user.
func (s *UserStatusStore) DeleteUser(ctx context.Context, projectID, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM user_status WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return errs.Wrap(errs.InternalError, err, "failed to delete user status records")
	}
	return nil
}
