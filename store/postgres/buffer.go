package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/memobase-dev/memobase-go/blob"
	"github.com/memobase-dev/memobase-go/buffer"
	"github.com/memobase-dev/memobase-go/errs"
)

// Enqueue inserts a new idle buffer entry for one blob.
func (s *BufferStore) Enqueue(ctx context.Context, projectID, userID string, t blob.Type, blobID string, tokenSize int) (*buffer.Entry, error) {
	e := &buffer.Entry{
		ID: uuid.NewString(), ProjectID: projectID, UserID: userID,
		Type: t, BlobID: blobID, TokenSize: tokenSize,
		Status: buffer.StatusIdle, CreatedAt: time.Now(),
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO buffer_entries (id, project_id, user_id, type, blob_id, token_size, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.ProjectID, e.UserID, string(e.Type), e.BlobID, e.TokenSize, string(e.Status), e.CreatedAt)
	if err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "failed to enqueue buffer entry")
	}
	return e, nil
}

func scanBufferRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}, projectID, userID string, t blob.Type) ([]*buffer.Entry, error) {
	var entries []*buffer.Entry
	for rows.Next() {
		e := &buffer.Entry{ProjectID: projectID, UserID: userID, Type: t}
		var status string
		if err := rows.Scan(&e.ID, &e.BlobID, &e.TokenSize, &status, &e.CreatedAt); err != nil {
			return nil, errs.Wrap(errs.InternalError, err, "failed to scan buffer entry row")
		}
		e.Status = buffer.Status(status)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "error iterating buffer entry rows")
	}
	return entries, nil
}

// PendingIDs returns every entry of one status, oldest first (FIFO order
// for the scheduler's batch selection).
func (s *BufferStore) PendingIDs(ctx context.Context, projectID, userID string, t blob.Type, status buffer.Status) ([]*buffer.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, blob_id, token_size, status, created_at
		FROM buffer_entries
		WHERE project_id = $1 AND user_id = $2 AND type = $3 AND status = $4
		ORDER BY created_at ASC
	`, projectID, userID, string(t), string(status))
	if err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "failed to query pending buffer entries")
	}
	defer rows.Close()
	return scanBufferRows(rows, projectID, userID, t)
}

// Get loads specific entries by ID, in no particular order.
func (s *BufferStore) Get(ctx context.Context, projectID, userID string, ids []string) ([]*buffer.Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, blob_id, token_size, status, created_at, type
		FROM buffer_entries
		WHERE project_id = $1 AND user_id = $2 AND id = ANY($3)
	`, projectID, userID, ids)
	if err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "failed to load buffer entries")
	}
	defer rows.Close()

	var entries []*buffer.Entry
	for rows.Next() {
		e := &buffer.Entry{ProjectID: projectID, UserID: userID}
		var status, t string
		if err := rows.Scan(&e.ID, &e.BlobID, &e.TokenSize, &status, &e.CreatedAt, &t); err != nil {
			return nil, errs.Wrap(errs.InternalError, err, "failed to scan buffer entry row")
		}
		e.Status = buffer.Status(status)
		e.Type = blob.Type(t)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "error iterating buffer entry rows")
	}
	return entries, nil
}

// legalFromStatuses lists every status the lattice (buffer.CanTransition)
// permits moving out of into to.
func legalFromStatuses(to buffer.Status) []string {
	var from []string
	for _, s := range []buffer.Status{buffer.StatusIdle, buffer.StatusProcessing, buffer.StatusFailed} {
		if buffer.CanTransition(s, to) {
			from = append(from, string(s))
		}
	}
	return from
}

// Mark transitions a batch of entries to newState, one entry at a time in
// ids order, and returns a Conflict at the first entry whose current state
// can't legally reach it; entries before that one stay transitioned. Each row's
// check-and-set runs as one statement (UPDATE ... WHERE status = ANY(legal
// predecessors)) rather than a separate SELECT followed by an UPDATE, so two
// concurrent callers racing to claim the same entries can never both
// observe it as eligible and both win the transition (E6).
func (s *BufferStore) Mark(ctx context.Context, projectID, userID string, ids []string, newStatus buffer.Status) error {
	from := legalFromStatuses(newStatus)
	for _, id := range ids {
		tag, err := s.pool.Exec(ctx, `
			UPDATE buffer_entries SET status = $1
			WHERE project_id = $2 AND user_id = $3 AND id = $4 AND status = ANY($5)
		`, string(newStatus), projectID, userID, id, from)
		if err != nil {
			return errs.Wrap(errs.InternalError, err, "failed to mark buffer entry %s", id)
		}
		if tag.RowsAffected() == 0 {
			return errs.New(errs.Conflict, "illegal or contended buffer transition -> %s for entry %s", newStatus, id)
		}
	}
	return nil
}

// TokenSum sums token_size across every entry of one status, the size
// trigger the scheduler checks after each insert (§4.8).
func (s *BufferStore) TokenSum(ctx context.Context, projectID, userID string, t blob.Type, status buffer.Status) (int, error) {
	var sum *int
	err := s.pool.QueryRow(ctx, `
		SELECT SUM(token_size) FROM buffer_entries
		WHERE project_id = $1 AND user_id = $2 AND type = $3 AND status = $4
	`, projectID, userID, string(t), string(status)).Scan(&sum)
	if err != nil {
		return 0, errs.Wrap(errs.InternalError, err, "failed to sum buffer tokens")
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

// DeleteDone removes every entry marked done, a periodic housekeeping
// operation distinct from the commit path itself.
func (s *BufferStore) DeleteDone(ctx context.Context, projectID, userID string, t blob.Type) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM buffer_entries WHERE project_id = $1 AND user_id = $2 AND type = $3 AND status = $4
	`, projectID, userID, string(t), string(buffer.StatusDone))
	if err != nil {
		return errs.Wrap(errs.InternalError, err, "failed to delete done buffer entries")
	}
	return nil
}

// DeleteUser removes every buffer entry belonging to a user.
func (s *BufferStore) DeleteUser(ctx context.Context, projectID, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM buffer_entries WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return errs.Wrap(errs.InternalError, err, "failed to delete user buffer entries")
	}
	return nil
}
