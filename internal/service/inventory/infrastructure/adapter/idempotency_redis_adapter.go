// internal/service/inventory/infrastructure/adapter/idempotency_redis_adapter.go
package adapter

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const idempotencyKeyPrefix = "idempotency:request:"

// IdempotencyRedisAdapter 是幂等守卫的快路径：
// 带 TTL 的 SETNX。TTL 必须不小于最大可能的重投递窗口。
type IdempotencyRedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyRedisAdapter(client *redis.Client, ttl time.Duration) *IdempotencyRedisAdapter {
	return &IdempotencyRedisAdapter{client: client, ttl: ttl}
}

func (a *IdempotencyRedisAdapter) SetIfAbsent(ctx context.Context, requestID string) (bool, error) {
	ok, err := a.client.SetNX(ctx, idempotencyKeyPrefix+requestID, "PROCESSED", a.ttl).Result()
	if err != nil {
		return false, errors.Wrapf(err, "setnx idempotency marker for %s", requestID)
	}
	return ok, nil
}
