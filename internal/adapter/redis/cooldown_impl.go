package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const cooldownPrefix = "cooldown:"

// CooldownRepoImpl provides a concrete implementation for the CooldownRepository interface using Redis.
type CooldownRepoImpl struct {
	client *redis.Client
}

// NewCooldownRepo creates a new instance of CooldownRepoImpl.
func NewCooldownRepo(client *redis.Client) *CooldownRepoImpl {
	return &CooldownRepoImpl{client: client}
}

// Mark sets a key with a TTL so the target is not verified again inside the
// window.
func (r *CooldownRepoImpl) Mark(ctx context.Context, key string, window time.Duration) error {
	return r.client.SetEx(ctx, cooldownPrefix+key, "1", window).Err()
}

// MarkIfAbsent sets the key only if it does not exist yet.
func (r *CooldownRepoImpl) MarkIfAbsent(ctx context.Context, key string, window time.Duration) (bool, error) {
	return r.client.SetNX(ctx, cooldownPrefix+key, "1", window).Result()
}

// Active checks if the key is still inside its window.
func (r *CooldownRepoImpl) Active(ctx context.Context, key string) (bool, error) {
	val, err := r.client.Exists(ctx, cooldownPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return val == 1, nil
}

func (r *CooldownRepoImpl) Clear(ctx context.Context, key string) error {
	return r.client.Del(ctx, cooldownPrefix+key).Err()
}
