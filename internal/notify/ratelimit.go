package notify

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"messaging-service/internal/models"
)

// CooldownStore suppresses repeat notifications: Allow reports whether
// the key is outside its cooldown window and, when it is, opens a new
// window atomically.
type CooldownStore interface {
	Allow(ctx context.Context, key string, window time.Duration) (bool, error)
}

// cooldownFor maps a notification category to its suppression window.
func cooldownFor(t models.NotificationType) time.Duration {
	switch t {
	case models.NotifNewMessage:
		return 30 * time.Second
	case models.NotifNewInquiry:
		return time.Minute
	case models.NotifListingLiked:
		return time.Hour
	case models.NotifListingViewed:
		return 24 * time.Hour
	default:
		return 5 * time.Minute
	}
}

// RedisCooldowns backs cooldown windows with SET NX + TTL so multiple
// service instances share them.
type RedisCooldowns struct {
	client *redis.Client
	prefix string
}

// NewRedisCooldowns constructs a RedisCooldowns.
func NewRedisCooldowns(client *redis.Client) *RedisCooldowns {
	return &RedisCooldowns{client: client, prefix: "notify:cooldown:"}
}

func (s *RedisCooldowns) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+key, 1, window).Result()
}

// MemoryCooldowns is the single-instance fallback when Redis is not
// configured.
type MemoryCooldowns struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryCooldowns constructs a MemoryCooldowns.
func NewMemoryCooldowns() *MemoryCooldowns {
	return &MemoryCooldowns{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryCooldowns) Allow(_ context.Context, key string, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if until, ok := s.expires[key]; ok && now.Before(until) {
		return false, nil
	}
	s.expires[key] = now.Add(window)

	// Occasional inline sweep keeps the map bounded without a ticker.
	if rand.Intn(100) == 0 {
		for k, until := range s.expires {
			if now.After(until) {
				delete(s.expires, k)
			}
		}
	}
	return true, nil
}
