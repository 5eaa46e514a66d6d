// internal/service/inventory/infrastructure/adapter/stock_redis_adapter.go
package adapter

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"swiftcart/internal/service/inventory/domain/port"
)

const (
	stockKeyPrefix     = "stock:productId:"
	productCachePrefix = "cache:productId:"
)

// reserveStockScript 是缓存侧的原子预留原语：检查和扣减在服务端
// 作为一个不可分割的操作执行。
// 返回 {1, 余量} 表示预留成功；{-1} 表示计数器不存在；
// {0, 当前库存} 表示库存不足。
var reserveStockScript = redis.NewScript(`
local stock = redis.call('GET', KEYS[1])
if not stock then
	return {-1}
end

stock = tonumber(stock)
local quantity = tonumber(ARGV[1])
if stock >= quantity then
	local remaining = redis.call('DECRBY', KEYS[1], quantity)
	return {1, remaining}
end

return {0, stock}
`)

// StockRedisAdapter 是 port.StockStore 的 Redis 实现。
type StockRedisAdapter struct {
	client *redis.Client
}

func NewStockRedisAdapter(client *redis.Client) *StockRedisAdapter {
	return &StockRedisAdapter{client: client}
}

func (a *StockRedisAdapter) Reserve(ctx context.Context, productID int64, quantity int) (port.ReserveResult, error) {
	key := stockKey(productID)

	result, err := reserveStockScript.Run(ctx, a.client, []string{key}, quantity).Int64Slice()
	if err != nil {
		return 0, errors.Wrapf(err, "run reserve script for %s", key)
	}
	if len(result) == 0 {
		return 0, errors.Errorf("reserve script returned empty result for %s", key)
	}

	switch result[0] {
	case 1:
		return port.ReserveOK, nil
	case -1:
		return port.ReserveNotFound, nil
	default:
		return port.ReserveInsufficient, nil
	}
}

func (a *StockRedisAdapter) Release(ctx context.Context, productID int64, quantity int) error {
	err := a.client.IncrBy(ctx, stockKey(productID), int64(quantity)).Err()
	return errors.Wrapf(err, "release stock for productId %d", productID)
}

func (a *StockRedisAdapter) SetStock(ctx context.Context, productID int64, quantity int) error {
	err := a.client.Set(ctx, stockKey(productID), quantity, 0).Err()
	return errors.Wrapf(err, "set stock for productId %d", productID)
}

func (a *StockRedisAdapter) InvalidateProductCache(ctx context.Context, productID int64) error {
	err := a.client.Del(ctx, fmt.Sprintf("%s%d", productCachePrefix, productID)).Err()
	return errors.Wrapf(err, "invalidate product cache for productId %d", productID)
}

func stockKey(productID int64) string {
	return fmt.Sprintf("%s%d", stockKeyPrefix, productID)
}
