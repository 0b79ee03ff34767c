package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/pagecheck-service/internal/repository"
)

const runQueueKey = "pagecheck:runs"

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// QueueRepoImpl provides a concrete implementation for the QueueRepository interface using Redis Lists.
type QueueRepoImpl struct {
	client *redis.Client
}

// NewQueueRepo creates a new instance of QueueRepoImpl.
func NewQueueRepo(client *redis.Client) *QueueRepoImpl {
	return &QueueRepoImpl{client: client}
}

// Push adds a run id to the left side of the Redis list (acting as a queue).
func (r *QueueRepoImpl) Push(ctx context.Context, runID string) error {
	return r.client.LPush(ctx, runQueueKey, runID).Err()
}

// Pop removes and returns a run id from the right side of the list. It
// blocks up to wait; a non-positive wait does not block.
func (r *QueueRepoImpl) Pop(ctx context.Context, wait time.Duration) (string, error) {
	if wait <= 0 {
		id, err := r.client.RPop(ctx, runQueueKey).Result()
		if errors.Is(err, redis.Nil) {
			return "", repository.ErrQueueEmpty
		}
		return id, err
	}

	res, err := r.client.BRPop(ctx, wait, runQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", repository.ErrQueueEmpty
	}
	if err != nil {
		return "", err
	}
	// BRPOP replies with [key, value].
	return res[1], nil
}

// Size returns the current number of items in the queue.
func (r *QueueRepoImpl) Size(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, runQueueKey).Result()
}

func (r *QueueRepoImpl) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
