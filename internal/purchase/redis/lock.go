package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"sharecrop/internal/logger"
)

const KeyPrefix = "purchase_lock:"

// Redis is a purchase guard shared by every service instance. The lock
// expires after TTL so a crashed holder cannot block a listing forever.
type Redis struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, log *logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{Client: client, TTL: ttl, Logger: log}
}

// IsLocked reports whether a purchase currently holds listingID.
func (r *Redis) IsLocked(ctx context.Context, listingID string) (bool, error) {
	_, err := r.Client.Get(ctx, KeyPrefix+listingID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Acquire locks a single listing for owner
func (r *Redis) Acquire(ctx context.Context, listingID, owner string) (bool, error) {
	ok, err := r.Client.SetNX(ctx, KeyPrefix+listingID, owner, r.TTL).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		r.Logger.Debug("REDIS", fmt.Sprintf("listing %s already locked", listingID))
	}
	return ok, nil
}

// Release unlocks the listing if owner still holds it
func (r *Redis) Release(ctx context.Context, listingID, owner string) error {
	key := KeyPrefix + listingID
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already expired
	}
	if err != nil {
		return err
	}
	if val == owner {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}
