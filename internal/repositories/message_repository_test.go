package repositories

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkDeliveredOnlyFromSent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	mock.ExpectExec(`UPDATE messages SET status='delivered', delivered_at=NOW\(\) WHERE id=\$1 AND status='sent'`).
		WithArgs(int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	transitioned, err := repo.MarkDelivered(context.Background(), 10)
	require.NoError(t, err)
	assert.True(t, transitioned)

	// Already delivered or read: the guard matches no rows.
	mock.ExpectExec(`UPDATE messages SET status='delivered'`).
		WithArgs(int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	transitioned, err = repo.MarkDelivered(context.Background(), 10)
	require.NoError(t, err)
	assert.False(t, transitioned)
}

func TestMarkReadReturnsTransitionedIDs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	mock.ExpectQuery(`UPDATE messages SET status='read'`).
		WithArgs(int64(5), int64(2), pq.Array([]int64{10, 11, 12})).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10).AddRow(11))

	updated, err := repo.MarkRead(context.Background(), 5, 2, []int64{10, 11, 12})
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, updated, "already-read ids are not returned")
}

func TestMarkReadEmptyBatchSkipsQuery(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	updated, err := repo.MarkRead(context.Background(), 5, 2, nil)
	require.NoError(t, err)
	assert.Empty(t, updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDeleteScopedToSender(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	mock.ExpectExec(`UPDATE messages SET deleted=TRUE`).
		WithArgs(int64(10), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.SoftDelete(context.Background(), 10, 9)
	require.NoError(t, err)
	assert.False(t, deleted, "someone else's message stays")
}

func TestGetByIDNotFoundMessage(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	mock.ExpectQuery(`SELECT .+ FROM messages WHERE id=\$1`).
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestListForConversationExcludesDeletedByDefault(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	mock.ExpectQuery(`SELECT .+ FROM messages WHERE conversation_id=\$1 AND deleted = FALSE ORDER BY id DESC LIMIT \$2`).
		WithArgs(int64(5), 50).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.ListForConversation(context.Background(), 5, false, 0, 0)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
