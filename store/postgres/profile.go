package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/memobase-dev/memobase-go/errs"
	"github.com/memobase-dev/memobase-go/profile"
)

// List returns every profile slot for a user.
func (s *ProfileStore) List(ctx context.Context, projectID, userID string) ([]*profile.Slot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, topic, sub_topic, content, update_hits, created_at, updated_at
		FROM profile_slots
		WHERE project_id = $1 AND user_id = $2
		ORDER BY updated_at DESC
	`, projectID, userID)
	if err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "failed to list profile slots")
	}
	defer rows.Close()

	var slots []*profile.Slot
	for rows.Next() {
		sl := &profile.Slot{ProjectID: projectID, UserID: userID}
		if err := rows.Scan(&sl.ID, &sl.Attrs.Topic, &sl.Attrs.SubTopic, &sl.Content, &sl.Attrs.UpdateHits, &sl.CreatedAt, &sl.UpdatedAt); err != nil {
			return nil, errs.Wrap(errs.InternalError, err, "failed to scan profile slot row")
		}
		slots = append(slots, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "error iterating profile slot rows")
	}
	return slots, nil
}

// AddMany inserts new slots and returns their assigned IDs, in order.
func (s *ProfileStore) AddMany(ctx context.Context, projectID, userID string, news []profile.NewSlot) ([]string, error) {
	ids := make([]string, len(news))
	now := time.Now()
	for i, n := range news {
		id := uuid.NewString()
		_, err := s.pool.Exec(ctx, `
			INSERT INTO profile_slots (id, project_id, user_id, topic, sub_topic, content, update_hits, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		`, id, projectID, userID, n.Attrs.Topic, n.Attrs.SubTopic, n.Content, n.Attrs.UpdateHits, now)
		if err != nil {
			return nil, errs.Wrap(errs.InternalError, err, "failed to insert profile slot")
		}
		ids[i] = id
	}
	return ids, nil
}

// UpdateMany applies content/attrs updates to existing slots.
func (s *ProfileStore) UpdateMany(ctx context.Context, projectID, userID string, updates []profile.UpdateSlot) error {
	now := time.Now()
	for _, u := range updates {
		if u.Attrs != nil {
			_, err := s.pool.Exec(ctx, `
				UPDATE profile_slots SET content = $1, topic = $2, sub_topic = $3, update_hits = $4, updated_at = $5
				WHERE project_id = $6 AND user_id = $7 AND id = $8
			`, u.Content, u.Attrs.Topic, u.Attrs.SubTopic, u.Attrs.UpdateHits, now, projectID, userID, u.ID)
			if err != nil {
				return errs.Wrap(errs.InternalError, err, "failed to update profile slot %s", u.ID)
			}
			continue
		}
		_, err := s.pool.Exec(ctx, `
			UPDATE profile_slots SET content = $1, updated_at = $2
			WHERE project_id = $3 AND user_id = $4 AND id = $5
		`, u.Content, now, projectID, userID, u.ID)
		if err != nil {
			return errs.Wrap(errs.InternalError, err, "failed to update profile slot %s", u.ID)
		}
	}
	return nil
}

// DeleteMany removes slots by ID.
func (s *ProfileStore) DeleteMany(ctx context.Context, projectID, userID string, ids []string) error {
	for _, id := range ids {
		_, err := s.pool.Exec(ctx, `
			DELETE FROM profile_slots WHERE project_id = $1 AND user_id = $2 AND id = $3
		`, projectID, userID, id)
		if err != nil {
			return errs.Wrap(errs.InternalError, err, "failed to delete profile slot %s", id)
		}
	}
	return nil
}

// CommitDelta applies an add/update/delete set atomically inside one
// transaction: either all of it lands, or none of it does. Pools that
// don't expose Begin fall back to commitDeltaNoTx.
func (s *ProfileStore) CommitDelta(ctx context.Context, projectID, userID string, delta profile.Delta) (*profile.CommitResult, error) {
	tx, ok := s.pool.(interface {
		Begin(ctx context.Context) (pgx.Tx, error)
	})
	if !ok {
		return s.commitDeltaNoTx(ctx, projectID, userID, delta)
	}

	pgtx, err := tx.Begin(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "failed to begin commit transaction")
	}
	defer pgtx.Rollback(ctx) //nolint:errcheck

	result, err := s.commitDeltaTx(ctx, pgtx, projectID, userID, delta)
	if err != nil {
		return nil, err
	}
	if err := pgtx.Commit(ctx); err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "failed to commit delta transaction")
	}
	return result, nil
}

func (s *ProfileStore) commitDeltaTx(ctx context.Context, tx pgx.Tx, projectID, userID string, delta profile.Delta) (*profile.CommitResult, error) {
	result := &profile.CommitResult{}
	now := time.Now()

	for _, n := range delta.Adds {
		id := uuid.NewString()
		_, err := tx.Exec(ctx, `
			INSERT INTO profile_slots (id, project_id, user_id, topic, sub_topic, content, update_hits, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		`, id, projectID, userID, n.Attrs.Topic, n.Attrs.SubTopic, n.Content, n.Attrs.UpdateHits, now)
		if err != nil {
			return nil, errs.Wrap(errs.InternalError, err, "failed to insert profile slot in commit")
		}
		result.AddedIDs = append(result.AddedIDs, id)
	}

	for _, u := range delta.Updates {
		if u.Attrs != nil {
			_, err := tx.Exec(ctx, `
				UPDATE profile_slots SET content = $1, topic = $2, sub_topic = $3, update_hits = $4, updated_at = $5
				WHERE project_id = $6 AND user_id = $7 AND id = $8
			`, u.Content, u.Attrs.Topic, u.Attrs.SubTopic, u.Attrs.UpdateHits, now, projectID, userID, u.ID)
			if err != nil {
				return nil, errs.Wrap(errs.InternalError, err, "failed to update profile slot in commit")
			}
		} else {
			_, err := tx.Exec(ctx, `
				UPDATE profile_slots SET content = $1, updated_at = $2
				WHERE project_id = $3 AND user_id = $4 AND id = $5
			`, u.Content, now, projectID, userID, u.ID)
			if err != nil {
				return nil, errs.Wrap(errs.InternalError, err, "failed to update profile slot in commit")
			}
		}
		result.UpdatedIDs = append(result.UpdatedIDs, u.ID)
	}

	for _, id := range delta.Deletes {
		_, err := tx.Exec(ctx, `DELETE FROM profile_slots WHERE project_id = $1 AND user_id = $2 AND id = $3`, projectID, userID, id)
		if err != nil {
			return nil, errs.Wrap(errs.InternalError, err, "failed to delete profile slot in commit")
		}
		result.DeletedIDs = append(result.DeletedIDs, id)
	}

	return result, nil
}

// commitDeltaNoTx is the fallback path for a DBPool without a Begin
// method; it applies the same statements without a surrounding
// transaction. A pgxmock pool has Begin and takes the transactional path.
func (s *ProfileStore) commitDeltaNoTx(ctx context.Context, projectID, userID string, delta profile.Delta) (*profile.CommitResult, error) {
	result := &profile.CommitResult{}
	ids, err := s.AddMany(ctx, projectID, userID, delta.Adds)
	if err != nil {
		return nil, err
	}
	result.AddedIDs = ids

	if err := s.UpdateMany(ctx, projectID, userID, delta.Updates); err != nil {
		return nil, err
	}
	for _, u := range delta.Updates {
		result.UpdatedIDs = append(result.UpdatedIDs, u.ID)
	}

	if err := s.DeleteMany(ctx, projectID, userID, delta.Deletes); err != nil {
		return nil, err
	}
	result.DeletedIDs = delta.Deletes

	return result, nil
}

// DeleteUser removes every profile slot belonging to a user.
func (s *ProfileStore) DeleteUser(ctx context.Context, projectID, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM profile_slots WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return errs.Wrap(errs.InternalError, err, "failed to delete user profile")
	}
	return nil
}
