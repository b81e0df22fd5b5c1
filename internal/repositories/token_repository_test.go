package repositories

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRemoveReturnsEndpointARN(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepo(db)

	mock.ExpectQuery(`DELETE FROM device_tokens WHERE user_id=\$1 AND token=\$2 RETURNING endpoint_arn`).
		WithArgs(int64(7), "device-token").
		WillReturnRows(sqlmock.NewRows([]string{"endpoint_arn"}).AddRow("arn:endpoint:1"))

	arn, err := repo.Remove(context.Background(), 7, "device-token")
	require.NoError(t, err)
	assert.Equal(t, "arn:endpoint:1", arn)
}

func TestTokenRemoveUnknownTokenIsSentinel(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepo(db)

	mock.ExpectQuery(`DELETE FROM device_tokens WHERE user_id=\$1 AND token=\$2 RETURNING endpoint_arn`).
		WithArgs(int64(7), "gone").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Remove(context.Background(), 7, "gone")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}
