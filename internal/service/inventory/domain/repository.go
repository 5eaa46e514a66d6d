// internal/service/inventory/domain/repository.go
package domain

import "context"

// InventoryStore 是持久层（账本）的出站端口。
//
// Transact 打开一个事务并在其中执行 fn：fn 返回错误则整体回滚。
// 库存扣减、已处理标记、outbox 行的配对写入全部发生在同一个事务里，
// 这是整条流水线的核心正确性保证。
type InventoryStore interface {
	Transact(ctx context.Context, fn func(tx InventoryTx) error) error

	// HasProcessedRequest 查询某个 requestId 是否已有持久化终态。
	// 幂等守卫在 Redis 不可用时降级到这里。
	HasProcessedRequest(ctx context.Context, requestID string) (bool, error)

	// FetchUnpublished 按创建时间取出未发布的 outbox 行。
	FetchUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)

	// MarkPublished 在 bus 确认后把行标记为已发布。
	MarkPublished(ctx context.Context, id string) error

	// ListInventory 读取全部权威库存，启动时用来预热缓存计数器。
	ListInventory(ctx context.Context) ([]*InventoryRecord, error)
}

// InventoryTx 是一个进行中的账本事务。
type InventoryTx interface {
	// ReserveStock 对商品行加排他锁、比较并扣减，返回扣减后的余量。
	// 返回 ErrProductNotFound / ErrInsufficientStock 表示业务性失败，
	// 其他错误表示存储故障。
	ReserveStock(ctx context.Context, productID int64, quantity int) (remaining int, err error)

	// SaveProcessedRequest 写入已处理标记；requestId 主键冲突视为存储错误，
	// 因为幂等守卫应该早已拦下重复请求。
	SaveProcessedRequest(ctx context.Context, marker *ProcessedRequest) error

	// SaveOutboxEvent 写入 outbox 行。
	SaveOutboxEvent(ctx context.Context, event *OutboxEvent) error
}
