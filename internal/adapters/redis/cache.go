package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache stores advisory journey availability counts. Stale or missing
// entries are harmless: the booking transaction is the authority.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

func availabilityKey(journeyID uuid.UUID) string {
	return "journey:" + journeyID.String() + ":available"
}

func (c *Cache) GetCount(ctx context.Context, journeyID uuid.UUID) (int, bool, error) {
	val, err := c.client.Get(ctx, availabilityKey(journeyID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, err
	}
	return count, true, nil
}

func (c *Cache) SetCount(ctx context.Context, journeyID uuid.UUID, count int) error {
	return c.client.Set(ctx, availabilityKey(journeyID), count, c.ttl).Err()
}

func (c *Cache) Invalidate(ctx context.Context, journeyID uuid.UUID) error {
	return c.client.Del(ctx, availabilityKey(journeyID)).Err()
}
