// internal/service/inventory/application/idempotency.go
package application

import (
	"context"

	"swiftcart/internal/pkg/logger"
	"swiftcart/internal/service/inventory/domain"
	"swiftcart/internal/service/inventory/domain/port"
)

// AdmitResult 是幂等检查的结果。
type AdmitResult int

const (
	Admitted AdmitResult = iota
	Duplicate
)

// IdempotencyGuard 回答"这个 requestId 是否已经被完整处理过"。
// 快路径是 Redis 上带 TTL 的 set-if-absent；Redis 故障时降级到
// 持久化标记表。DUPLICATE 是正常结果，永远不会以错误的形式返回。
type IdempotencyGuard struct {
	marker port.IdempotencyMarker
	store  domain.InventoryStore
}

func NewIdempotencyGuard(marker port.IdempotencyMarker, store domain.InventoryStore) *IdempotencyGuard {
	return &IdempotencyGuard{marker: marker, store: store}
}

// Admit 尝试接纳一个请求。
//
// 降级路径只做存在性检查：持久化标记在终态提交时才写入，所以
// 在"Redis 故障 + 同一请求并发重放"的窗口里可能出现一次重复接纳。
// 这是文档化的取舍，由账本的行锁保证即便如此库存也不会超扣。
func (g *IdempotencyGuard) Admit(ctx context.Context, requestID string) (AdmitResult, error) {
	fresh, err := g.marker.SetIfAbsent(ctx, requestID)
	if err == nil {
		if fresh {
			return Admitted, nil
		}
		return Duplicate, nil
	}

	logger.Ctx(ctx).Warn().Err(err).Str("request_id", requestID).
		Msg("Idempotency fast path unavailable, falling back to durable marker")

	processed, dbErr := g.store.HasProcessedRequest(ctx, requestID)
	if dbErr != nil {
		return Admitted, dbErr
	}
	if processed {
		return Duplicate, nil
	}
	return Admitted, nil
}
