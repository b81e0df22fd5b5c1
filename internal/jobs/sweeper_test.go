package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"messaging-service/internal/mocks"
)

func TestSweepDrainsExpiredInBatches(t *testing.T) {
	notifRepo := new(mocks.NotificationRepositoryMock)
	tokenRepo := new(mocks.TokenRepositoryMock)
	sweeper := NewSweeper(notifRepo, tokenRepo, time.Hour, 90*24*time.Hour, 2, zap.NewNop())

	// Two full batches then a final short one.
	notifRepo.On("DeleteExpired", mock.Anything, mock.Anything, 2).Return(int64(2), nil).Twice()
	notifRepo.On("DeleteExpired", mock.Anything, mock.Anything, 2).Return(int64(1), nil).Once()
	tokenRepo.On("DeactivateStale", mock.Anything, mock.Anything, 2).Return(int64(0), nil).Once()

	sweeper.Sweep(context.Background())

	notifRepo.AssertExpectations(t)
	tokenRepo.AssertExpectations(t)
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	notifRepo := new(mocks.NotificationRepositoryMock)
	tokenRepo := new(mocks.TokenRepositoryMock)
	sweeper := NewSweeper(notifRepo, tokenRepo, time.Hour, 90*24*time.Hour, 2, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sweeper.Sweep(ctx)

	notifRepo.AssertNotCalled(t, "DeleteExpired", mock.Anything, mock.Anything, mock.Anything)
	tokenRepo.AssertNotCalled(t, "DeactivateStale", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweepUsesIdleCutoff(t *testing.T) {
	notifRepo := new(mocks.NotificationRepositoryMock)
	tokenRepo := new(mocks.TokenRepositoryMock)
	sweeper := NewSweeper(notifRepo, tokenRepo, time.Hour, 48*time.Hour, 10, zap.NewNop())

	base := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
	sweeper.now = func() time.Time { return base }

	notifRepo.On("DeleteExpired", mock.Anything, base, 10).Return(int64(0), nil).Once()
	tokenRepo.On("DeactivateStale", mock.Anything, base.Add(-48*time.Hour), 10).Return(int64(3), nil).Once()

	sweeper.Sweep(context.Background())
	notifRepo.AssertExpectations(t)
	tokenRepo.AssertExpectations(t)
}
