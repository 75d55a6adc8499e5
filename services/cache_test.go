package services

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/VALX-GALAXY/SportsInn-sub001/models"
)

func TestListingKey(t *testing.T) {
	assert.Equal(t, "tournaments:page=1:limit=10", ListingKey(1, 10))
	assert.Equal(t, "tournaments:page=3:limit=25", ListingKey(3, 25))
}

// A dead backend must degrade to miss/no-op, never to an error or panic.
func TestRedisCacheDegradesOnBackendErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewRedisListingCache(client, time.Second)
	ctx := context.Background()

	var out models.TournamentPage
	assert.False(t, c.Get(ctx, ListingKey(1, 10), &out))

	c.Set(ctx, ListingKey(1, 10), &models.TournamentPage{Page: 1, Limit: 10})
	c.InvalidatePrefix(ctx, ListingKeyPrefix)
}

func TestRedisCacheDefaultTTL(t *testing.T) {
	c := NewRedisListingCache(nil, 0)
	assert.Equal(t, 60*time.Second, c.ttl)
}
