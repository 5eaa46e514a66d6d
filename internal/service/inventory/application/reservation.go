// internal/service/inventory/application/reservation.go
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"swiftcart/internal/pkg/logger"
	"swiftcart/internal/pkg/metrics"
	"swiftcart/internal/service/inventory/domain"
	"swiftcart/internal/service/inventory/domain/port"
)

// CacheReservation 记录一次已生效的缓存扣减，失败时按它补偿。
type CacheReservation struct {
	ProductID int64
	Quantity  int
}

// LedgerReservation 记录一次走账本兜底路径的扣减及扣减后的余量，
// 提交后用它把缓存计数器同步回来。
type LedgerReservation struct {
	ProductID int64
	Quantity  int
	Remaining int
}

// ReservationOutcome 是一次订单预留的完整结果。
type ReservationOutcome struct {
	AllReserved   bool
	ReservedItems []domain.OrderItem
	FailureReason string

	CacheReservations  []CacheReservation
	LedgerReservations []LedgerReservation
}

// ReservationEngine 逐项预留订单里的商品。
//
// 每个商品先尝试缓存计数器的原子扣减；缓存不可达或计数器缺失时，
// 降级到账本在行锁下扣减（账本扣减发生在调用方传入的事务里，
// 与标记行、outbox 行一起提交）。严格按给定顺序处理，第一个
// 预留不了的商品即终止（fail-fast）。
type ReservationEngine struct {
	stock     port.StockStore
	opTimeout time.Duration
}

func NewReservationEngine(stock port.StockStore, opTimeout time.Duration) *ReservationEngine {
	return &ReservationEngine{stock: stock, opTimeout: opTimeout}
}

// ReserveAll 预留全部商品行。
// 返回的 error 表示存储故障（调用方回滚并路由到死信）；
// 业务性失败通过 outcome.AllReserved=false 表达。
// 两种情况下 outcome 都会带上已生效的缓存扣减，供调用方补偿。
func (e *ReservationEngine) ReserveAll(ctx context.Context, tx domain.InventoryTx, items []domain.OrderItem) (*ReservationOutcome, error) {
	outcome := &ReservationOutcome{ReservedItems: make([]domain.OrderItem, 0, len(items))}

	for _, item := range items {
		reserved, err := e.reserveOne(ctx, tx, outcome, item)
		if err != nil {
			return outcome, err
		}
		if !reserved {
			return outcome, nil
		}
		outcome.ReservedItems = append(outcome.ReservedItems, item)
	}

	outcome.AllReserved = true
	return outcome, nil
}

// reserveOne 返回 (是否预留成功, 存储故障)。
func (e *ReservationEngine) reserveOne(ctx context.Context, tx domain.InventoryTx, outcome *ReservationOutcome, item domain.OrderItem) (bool, error) {
	cacheCtx, cancel := context.WithTimeout(ctx, e.opTimeout)
	res, err := e.stock.Reserve(cacheCtx, item.ProductID, item.Quantity)
	cancel()

	if err == nil {
		switch res {
		case port.ReserveOK:
			outcome.CacheReservations = append(outcome.CacheReservations, CacheReservation{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			})
			return true, nil
		case port.ReserveInsufficient:
			outcome.FailureReason = fmt.Sprintf("Insufficient stock for productId: %d", item.ProductID)
			return false, nil
		case port.ReserveNotFound:
			// 计数器未初始化，账本才是事实，走兜底
		}
	} else {
		// 连接或超时故障，而不是业务拒绝
		metrics.CacheFallbacks.Inc()
		logger.Ctx(ctx).Warn().Err(err).Int64("product_id", item.ProductID).
			Msg("Stock cache unavailable, falling back to ledger")
	}

	remaining, err := tx.ReserveStock(ctx, item.ProductID, item.Quantity)
	switch {
	case err == nil:
		outcome.LedgerReservations = append(outcome.LedgerReservations, LedgerReservation{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Remaining: remaining,
		})
		return true, nil
	case isBusinessRejection(err):
		outcome.FailureReason = rejectionReason(err, item.ProductID)
		return false, nil
	default:
		// 账本没有进一步的兜底，交给死信
		return false, err
	}
}

// ReleaseCacheReservations 补偿已生效的缓存扣减（显式 release-on-failure 策略）。
// 触发补偿的故障往往正是处理超时本身，所以补偿脱离处理单元的
// deadline 执行，只受每次操作自己的超时约束。
// 补偿失败只记录日志：计数器会在下一次账本兜底或预热时被纠正。
func (e *ReservationEngine) ReleaseCacheReservations(ctx context.Context, outcome *ReservationOutcome) {
	ctx = context.WithoutCancel(ctx)
	for _, r := range outcome.CacheReservations {
		releaseCtx, cancel := context.WithTimeout(ctx, e.opTimeout)
		err := e.stock.Release(releaseCtx, r.ProductID, r.Quantity)
		cancel()
		if err != nil {
			logger.Ctx(ctx).Error().Err(err).Int64("product_id", r.ProductID).Int("quantity", r.Quantity).
				Msg("Failed to release cache reservation, counter left stale until resync")
		}
	}
}

// ResyncCache 在账本路径提交之后，尽力而为地把缓存同步回权威状态。
// 同 ReleaseCacheReservations，脱离处理单元的 deadline 执行。
func (e *ReservationEngine) ResyncCache(ctx context.Context, outcome *ReservationOutcome) {
	ctx = context.WithoutCancel(ctx)
	for _, r := range outcome.LedgerReservations {
		syncCtx, cancel := context.WithTimeout(ctx, e.opTimeout)
		if err := e.stock.SetStock(syncCtx, r.ProductID, r.Remaining); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Int64("product_id", r.ProductID).
				Msg("Failed to resync stock counter after ledger fallback")
		}
		if err := e.stock.InvalidateProductCache(syncCtx, r.ProductID); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Int64("product_id", r.ProductID).
				Msg("Failed to invalidate product cache")
		}
		cancel()
	}
}

func isBusinessRejection(err error) bool {
	return errors.Is(err, domain.ErrProductNotFound) || errors.Is(err, domain.ErrInsufficientStock)
}

func rejectionReason(err error, productID int64) string {
	if errors.Is(err, domain.ErrProductNotFound) {
		return fmt.Sprintf("Product not found: productId: %d", productID)
	}
	return fmt.Sprintf("Insufficient stock for productId: %d", productID)
}
