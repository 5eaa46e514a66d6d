// internal/service/inventory/domain/port/stock.go
package port

import "context"

// ReserveResult 是缓存侧原子预留脚本的业务结果。
type ReserveResult int

const (
	ReserveOK ReserveResult = iota
	ReserveNotFound
	ReserveInsufficient
)

// StockStore 是低延迟库存计数器的出站端口（Redis 实现）。
//
// Reserve 的检查和扣减是单个不可分割的服务端操作：
// 两个并发请求绝不会同时看到扣减前的库存。
// 返回 error 表示存储不可达（连接、超时），而不是库存不足；
// 调用方据此降级到账本。
type StockStore interface {
	Reserve(ctx context.Context, productID int64, quantity int) (ReserveResult, error)

	// Release 把已扣减的数量加回去，用于失败后的显式补偿。
	Release(ctx context.Context, productID int64, quantity int) error

	// SetStock 覆盖写计数器，用于启动预热和账本兜底后的再同步。
	SetStock(ctx context.Context, productID int64, quantity int) error

	// InvalidateProductCache 删除商品缓存，账本路径成功后尽力而为地调用。
	InvalidateProductCache(ctx context.Context, productID int64) error
}
