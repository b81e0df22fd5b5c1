package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
)

func TestMemoryCooldownsWindow(t *testing.T) {
	store := NewMemoryCooldowns()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	ok, err := store.Allow(context.Background(), "1:2:new_message", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = store.Allow(context.Background(), "1:2:new_message", 30*time.Second)
	assert.False(t, ok, "second call inside the window")

	ok, _ = store.Allow(context.Background(), "1:3:new_message", 30*time.Second)
	assert.True(t, ok, "different recipient has its own window")

	store.now = func() time.Time { return base.Add(31 * time.Second) }
	ok, _ = store.Allow(context.Background(), "1:2:new_message", 30*time.Second)
	assert.True(t, ok, "window expired")
}

func TestRedisCooldownsWindow(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	store := NewRedisCooldowns(client)

	ok, err := store.Allow(context.Background(), "1:2:listing_liked", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Allow(context.Background(), "1:2:listing_liked", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	srv.FastForward(time.Hour + time.Second)
	ok, err = store.Allow(context.Background(), "1:2:listing_liked", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCooldownDurations(t *testing.T) {
	assert.Equal(t, 30*time.Second, cooldownFor(models.NotifNewMessage))
	assert.Equal(t, time.Minute, cooldownFor(models.NotifNewInquiry))
	assert.Equal(t, time.Hour, cooldownFor(models.NotifListingLiked))
	assert.Equal(t, 24*time.Hour, cooldownFor(models.NotifListingViewed))
	assert.Equal(t, 5*time.Minute, cooldownFor(models.NotifNewOffer))
}
