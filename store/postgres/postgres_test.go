package postgres

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memobase-dev/memobase-go/blob"
	"github.com/memobase-dev/memobase-go/buffer"
	"github.com/memobase-dev/memobase-go/errs"
	"github.com/memobase-dev/memobase-go/event"
	"github.com/memobase-dev/memobase-go/profile"
)

func TestInitSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	for i := 0; i < 11; i++ {
		mock.ExpectExec(".*").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	store := NewWithPool(mock)
	assert.NoError(t, store.InitSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlobStore_PutAndGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	blobs := NewWithPool(mock).Blobs()

	b := &blob.Blob{
		Type:      blob.TypeChat,
		Chat:      &blob.Chat{Messages: []blob.Message{{Role: "user", Content: "hi"}}},
		CreatedAt: time.Now(),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO blobs")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := blobs.PutBlob(context.Background(), "proj-1", "user-1", b)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	payload, _ := json.Marshal(blobPayload{Chat: b.Chat})
	rows := pgxmock.NewRows([]string{"type", "payload", "created_at"}).
		AddRow(string(blob.TypeChat), payload, b.CreatedAt)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT type, payload, created_at FROM blobs")).
		WithArgs("proj-1", "user-1", id).
		WillReturnRows(rows)

	got, err := blobs.GetBlob(context.Background(), "proj-1", "user-1", id)
	require.NoError(t, err)
	assert.Equal(t, blob.TypeChat, got.Type)
	assert.Equal(t, "hi", got.Chat.Messages[0].Content)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlobStore_GetBlob_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	blobs := NewWithPool(mock).Blobs()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT type, payload, created_at FROM blobs")).
		WithArgs("proj-1", "user-1", "missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = blobs.GetBlob(context.Background(), "proj-1", "user-1", "missing")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileStore_CommitDelta_Transactional(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	profiles := NewWithPool(mock).Profiles()

	delta := profile.Delta{
		Adds: []profile.NewSlot{
			{Content: "likes coffee", Attrs: profile.Attrs{Topic: "preference", SubTopic: "drink"}},
		},
		Updates: []profile.UpdateSlot{
			{ID: "slot-1", Content: "likes tea now"},
		},
		Deletes: []string{"slot-2"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO profile_slots")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE profile_slots SET content = $1, updated_at = $2")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM profile_slots")).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	result, err := profiles.CommitDelta(context.Background(), "proj-1", "user-1", delta)
	require.NoError(t, err)
	assert.Len(t, result.AddedIDs, 1)
	assert.Equal(t, []string{"slot-1"}, result.UpdatedIDs)
	assert.Equal(t, []string{"slot-2"}, result.DeletedIDs)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileStore_CommitDelta_RollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	profiles := NewWithPool(mock).Profiles()

	delta := profile.Delta{
		Adds: []profile.NewSlot{{Content: "x", Attrs: profile.Attrs{Topic: "t", SubTopic: "s"}}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO profile_slots")).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err = profiles.CommitDelta(context.Background(), "proj-1", "user-1", delta)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBufferStore_Mark_RejectsIllegalTransition(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	buffers := NewWithPool(mock).Buffers()

	// entry-1 is not in {idle, failed} (the legal predecessors of
	// "processing"), so the atomic check-and-set's WHERE clause matches
	// zero rows and the call is rejected as a conflict.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE buffer_entries SET status")).
		WithArgs(string(buffer.StatusProcessing), "proj-1", "user-1", "entry-1", []string{string(buffer.StatusIdle), string(buffer.StatusFailed)}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = buffers.Mark(context.Background(), "proj-1", "user-1", []string{"entry-1"}, buffer.StatusProcessing)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Conflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBufferStore_TokenSum_NoRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	buffers := NewWithPool(mock).Buffers()

	rows := pgxmock.NewRows([]string{"sum"}).AddRow(nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT SUM(token_size) FROM buffer_entries")).
		WithArgs("proj-1", "user-1", string(blob.TypeChat), string(buffer.StatusIdle)).
		WillReturnRows(rows)

	sum, err := buffers.TokenSum(context.Background(), "proj-1", "user-1", blob.TypeChat, buffer.StatusIdle)
	require.NoError(t, err)
	assert.Equal(t, 0, sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStore_SearchByText_RanksByCosine(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	events := NewWithPool(mock).Events()

	closeEmbedding, _ := json.Marshal([]float32{1, 0, 0})
	farEmbedding, _ := json.Marshal([]float32{0, 1, 0})

	rows := pgxmock.NewRows([]string{"id", "event_tip", "event_tags", "profile_delta", "embedding", "created_at"}).
		AddRow("ev-close", "close match", nil, nil, closeEmbedding, time.Now()).
		AddRow("ev-far", "far match", nil, nil, farEmbedding, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, event_tip, event_tags, profile_delta, embedding, created_at")).
		WithArgs("proj-1", "user-1").
		WillReturnRows(rows)

	results, err := events.SearchByText(context.Background(), "proj-1", "user-1", []float32{1, 0, 0}, 5, 0.0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "ev-close", results[0].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStore_Append(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	events := NewWithPool(mock).Events()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := events.Append(context.Background(), "proj-1", "user-1", &event.Event{
		EventTip:  "chatted about coffee",
		EventTags: []event.Tag{{Tag: "mood", Value: "positive"}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectStore_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	projects := NewWithPool(mock).Projects()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT config, created_at FROM projects")).
		WithArgs("missing-project").
		WillReturnError(pgx.ErrNoRows)

	_, err = projects.Get(context.Background(), "missing-project")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
