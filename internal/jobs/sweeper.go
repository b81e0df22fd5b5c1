package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"messaging-service/internal/repositories"
)

// Sweeper removes expired notifications and deactivates idle device
// tokens on a fixed interval, in bounded batches so a large backlog
// cannot hold locks for long.
type Sweeper struct {
	notifications repositories.NotificationRepository
	tokens        repositories.TokenRepository
	interval      time.Duration
	tokenMaxIdle  time.Duration
	batchSize     int
	logger        *zap.Logger
	now           func() time.Time
}

// NewSweeper constructs a Sweeper.
func NewSweeper(notifications repositories.NotificationRepository, tokens repositories.TokenRepository, interval, tokenMaxIdle time.Duration, batchSize int, logger *zap.Logger) *Sweeper {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Sweeper{
		notifications: notifications,
		tokens:        tokens,
		interval:      interval,
		tokenMaxIdle:  tokenMaxIdle,
		batchSize:     batchSize,
		logger:        logger,
		now:           time.Now,
	}
}

// Run sweeps until the context is cancelled. The first sweep happens
// after one interval, not at startup, so deploys do not stampede the
// database.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one full pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	removed := s.sweepNotifications(ctx)
	stale := s.sweepTokens(ctx)
	if removed > 0 || stale > 0 {
		s.logger.Info("retention sweep finished",
			zap.Int64("notifications_removed", removed),
			zap.Int64("tokens_deactivated", stale))
	}
}

func (s *Sweeper) sweepNotifications(ctx context.Context) int64 {
	var total int64
	for {
		if ctx.Err() != nil {
			return total
		}
		n, err := s.notifications.DeleteExpired(ctx, s.now(), s.batchSize)
		if err != nil {
			s.logger.Error("notification sweep failed", zap.Error(err))
			return total
		}
		total += n
		if n < int64(s.batchSize) {
			return total
		}
	}
}

func (s *Sweeper) sweepTokens(ctx context.Context) int64 {
	var total int64
	cutoff := s.now().Add(-s.tokenMaxIdle)
	for {
		if ctx.Err() != nil {
			return total
		}
		n, err := s.tokens.DeactivateStale(ctx, cutoff, s.batchSize)
		if err != nil {
			s.logger.Error("token sweep failed", zap.Error(err))
			return total
		}
		total += n
		if n < int64(s.batchSize) {
			return total
		}
	}
}
