// internal/service/inventory/domain/port/idempotency.go
package port

import "context"

// IdempotencyMarker 是幂等守卫的易失侧端口（Redis SETNX 实现）。
// SetIfAbsent 返回 true 表示标记是新写入的（请求可被接纳）。
// 返回 error 时守卫降级到持久化标记表。
type IdempotencyMarker interface {
	SetIfAbsent(ctx context.Context, requestID string) (bool, error)
}
