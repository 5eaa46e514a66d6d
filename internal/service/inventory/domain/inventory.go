// internal/service/inventory/domain/inventory.go
package domain

import "time"

// InventoryRecord 是权威的库存记录，一行一个商品。
// 数量只允许在行级排他锁下被扣减，永远不为负。
type InventoryRecord struct {
	ProductID int64
	Quantity  int
	UpdatedAt time.Time
}

// ProcessedRequest 是已处理请求的持久化标记。
// 某个 requestId 的行存在 ⇒ 该请求已经有了持久化的终态，绝不能被重放。
// Redis 上带 TTL 的快速标记只是对同一不变量的优化，不是替代。
type ProcessedRequest struct {
	RequestID string
	OrderID   int64
	EventType string
	CreatedAt time.Time
}
