package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/memobase-dev/memobase-go/errs"
	"github.com/memobase-dev/memobase-go/event"
)

// Append inserts one event record and returns its assigned ID.
func (s *EventStore) Append(ctx context.Context, projectID, userID string, e *event.Event) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	tagsJSON, err := json.Marshal(e.EventTags)
	if err != nil {
		return "", errs.Wrap(errs.InternalError, err, "failed to marshal event tags")
	}
	deltaJSON, err := json.Marshal(e.ProfileDelta)
	if err != nil {
		return "", errs.Wrap(errs.InternalError, err, "failed to marshal profile delta")
	}
	var embeddingJSON []byte
	if len(e.Embedding) > 0 {
		embeddingJSON, err = json.Marshal(e.Embedding)
		if err != nil {
			return "", errs.Wrap(errs.InternalError, err, "failed to marshal event embedding")
		}
	}

	now := time.Now()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO events (id, project_id, user_id, event_tip, event_tags, profile_delta, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, projectID, userID, e.EventTip, tagsJSON, deltaJSON, embeddingJSON, now)
	if err != nil {
		return "", errs.Wrap(errs.InternalError, err, "failed to insert event")
	}
	return e.ID, nil
}

func scanEvent(id, projectID, userID, tip string, tagsJSON, deltaJSON, embeddingJSON []byte, createdAt time.Time) (*event.Event, error) {
	ev := &event.Event{ID: id, ProjectID: projectID, UserID: userID, EventTip: tip, CreatedAt: createdAt}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &ev.EventTags); err != nil {
			return nil, errs.Wrap(errs.InternalError, err, "failed to unmarshal event tags")
		}
	}
	if len(deltaJSON) > 0 {
		if err := json.Unmarshal(deltaJSON, &ev.ProfileDelta); err != nil {
			return nil, errs.Wrap(errs.InternalError, err, "failed to unmarshal profile delta")
		}
	}
	if len(embeddingJSON) > 0 {
		if err := json.Unmarshal(embeddingJSON, &ev.Embedding); err != nil {
			return nil, errs.Wrap(errs.InternalError, err, "failed to unmarshal event embedding")
		}
	}
	return ev, nil
}

// List returns up to topK most recent events, optionally filtered to
// events that carry a non-empty event_tip, truncated to fit tokenBudget
// at the caller's discretion (this layer just returns candidates newest
// first; the composer applies the token cut).
func (s *EventStore) List(ctx context.Context, projectID, userID string, topK, tokenBudget int, requireSummary bool) ([]*event.Event, error) {
	if topK <= 0 {
		topK = 40
	}
	query := `
		SELECT id, event_tip, event_tags, profile_delta, embedding, created_at
		FROM events
		WHERE project_id = $1 AND user_id = $2
	`
	if requireSummary {
		query += " AND event_tip <> ''"
	}
	query += " ORDER BY created_at DESC LIMIT $3"

	rows, err := s.pool.Query(ctx, query, projectID, userID, topK)
	if err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "failed to list events")
	}
	defer rows.Close()

	var events []*event.Event
	for rows.Next() {
		var (
			id, tip                          string
			tagsJSON, deltaJSON, embeddingJSON []byte
			createdAt                         time.Time
		)
		if err := rows.Scan(&id, &tip, &tagsJSON, &deltaJSON, &embeddingJSON, &createdAt); err != nil {
			return nil, errs.Wrap(errs.InternalError, err, "failed to scan event row")
		}
		ev, err := scanEvent(id, projectID, userID, tip, tagsJSON, deltaJSON, embeddingJSON, createdAt)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "error iterating event rows")
	}
	return events, nil
}

// Update applies an operator edit to an event's tip and/or tags (§C.2
// "Operator edit/delete on events").
func (s *EventStore) Update(ctx context.Context, projectID, userID, eventID string, patch event.Patch) error {
	if patch.EventTip != nil {
		if _, err := s.pool.Exec(ctx, `
			UPDATE events SET event_tip = $1 WHERE project_id = $2 AND user_id = $3 AND id = $4
		`, *patch.EventTip, projectID, userID, eventID); err != nil {
			return errs.Wrap(errs.InternalError, err, "failed to update event tip")
		}
	}
	if patch.EventTags != nil {
		tagsJSON, err := json.Marshal(patch.EventTags)
		if err != nil {
			return errs.Wrap(errs.InternalError, err, "failed to marshal event tags")
		}
		if _, err := s.pool.Exec(ctx, `
			UPDATE events SET event_tags = $1 WHERE project_id = $2 AND user_id = $3 AND id = $4
		`, tagsJSON, projectID, userID, eventID); err != nil {
			return errs.Wrap(errs.InternalError, err, "failed to update event tags")
		}
	}
	return nil
}

// Delete removes one event (operator-initiated, §C.2).
func (s *EventStore) Delete(ctx context.Context, projectID, userID, eventID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM events WHERE project_id = $1 AND user_id = $2 AND id = $3
	`, projectID, userID, eventID)
	if err != nil {
		return errs.Wrap(errs.InternalError, err, "failed to delete event")
	}
	return nil
}

// SearchByText loads candidate events and ranks them by cosine similarity
// against queryEmbedding in-process (§4.9), mirroring the in-memory
// vector store's scan-then-rank shape rather than pushing the ranking
// into SQL.
func (s *EventStore) SearchByText(ctx context.Context, projectID, userID string, queryEmbedding []float32, k int, threshold float64) ([]*event.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_tip, event_tags, profile_delta, embedding, created_at
		FROM events
		WHERE project_id = $1 AND user_id = $2 AND embedding IS NOT NULL
		ORDER BY created_at DESC
		LIMIT 500
	`, projectID, userID)
	if err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "failed to load candidate events")
	}
	defer rows.Close()

	var candidates []*event.Event
	for rows.Next() {
		var (
			id, tip                          string
			tagsJSON, deltaJSON, embeddingJSON []byte
			createdAt                         time.Time
		)
		if err := rows.Scan(&id, &tip, &tagsJSON, &deltaJSON, &embeddingJSON, &createdAt); err != nil {
			return nil, errs.Wrap(errs.InternalError, err, "failed to scan event row")
		}
		ev, err := scanEvent(id, projectID, userID, tip, tagsJSON, deltaJSON, embeddingJSON, createdAt)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "error iterating event rows")
	}

	return event.RankByCosine(candidates, queryEmbedding, k, threshold), nil
}

// DeleteUser removes every event belonging to a user.
func (s *EventStore) DeleteUser(ctx context.Context, projectID, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM events WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return errs.Wrap(errs.InternalError, err, "failed to delete user events")
	}
	return nil
}
