// internal/service/inventory/application/service.go
package application

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"swiftcart/internal/pkg/logger"
	"swiftcart/internal/pkg/metrics"
	"swiftcart/internal/service/inventory/domain"
)

// InventoryApplicationService 编排一条订单创建事件的完整处理单元：
// 幂等检查 → 逐项预留 → 在同一事务里写标记行和 outbox 行。
//
// 返回 nil 表示消息可以被确认（处理成功或重复）；
// 返回 error 表示处理故障，由调用方路由到死信后再确认。
type InventoryApplicationService struct {
	store  domain.InventoryStore
	guard  *IdempotencyGuard
	engine *ReservationEngine

	tracer            trace.Tracer
	processingTimeout time.Duration
}

func NewInventoryApplicationService(store domain.InventoryStore, guard *IdempotencyGuard, engine *ReservationEngine, tracer trace.Tracer, processingTimeout time.Duration) *InventoryApplicationService {
	return &InventoryApplicationService{
		store:             store,
		guard:             guard,
		engine:            engine,
		tracer:            tracer,
		processingTimeout: processingTimeout,
	}
}

// reservationRejected 在事务内部标记"业务性失败"：
// 它让本次尝试的账本扣减随事务回滚，同时把结果带出来，
// 再用第二个事务持久化取消事件。
type reservationRejected struct {
	outcome *ReservationOutcome
}

func (e *reservationRejected) Error() string { return "reservation rejected: " + e.outcome.FailureReason }

// HandleOrderCreatedEvent 处理一条已通过反序列化和字段校验的订单创建事件。
func (s *InventoryApplicationService) HandleOrderCreatedEvent(ctx context.Context, event *domain.OrderCreatedEvent) error {
	ctx, span := s.tracer.Start(ctx, "inventory.HandleOrderCreatedEvent",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("order.request_id", event.RequestID),
			attribute.Int64("order.id", event.OrderID),
		))
	defer span.End()

	result, err := s.guard.Admit(ctx, event.RequestID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "idempotency check failed")
		return err
	}
	if result == Duplicate {
		metrics.DuplicateEvents.Inc()
		span.AddEvent("Duplicate request skipped")
		logger.Ctx(ctx).Info().Str("request_id", event.RequestID).Int64("order_id", event.OrderID).
			Msg("Duplicate ORDER_CREATED event skipped")
		return nil
	}

	processingCtx, cancel := context.WithTimeout(ctx, s.processingTimeout)
	defer cancel()

	var outcome *ReservationOutcome
	err = s.store.Transact(processingCtx, func(tx domain.InventoryTx) error {
		var txErr error
		outcome, txErr = s.engine.ReserveAll(processingCtx, tx, event.OrderItems)
		if txErr != nil {
			return txErr
		}
		if !outcome.AllReserved {
			return &reservationRejected{outcome: outcome}
		}

		reserved := domain.NewStockReservedEvent(event.RequestID, event.OrderID, outcome.ReservedItems)
		return s.recordOutcome(processingCtx, tx, event, reserved)
	})

	if err == nil {
		s.engine.ResyncCache(processingCtx, outcome)
		metrics.ReservationOutcomes.WithLabelValues(domain.EventTypeStockReserved).Inc()
		span.AddEvent("Stock reserved and outbox row committed")
		logger.Ctx(ctx).Info().Str("request_id", event.RequestID).Int64("order_id", event.OrderID).
			Int("items", len(outcome.ReservedItems)).Msg("Stock reserved")
		return nil
	}

	var rejected *reservationRejected
	if !errors.As(err, &rejected) {
		// 存储故障：回滚账本扣减，补偿缓存扣减，交给死信
		if outcome != nil {
			s.engine.ReleaseCacheReservations(processingCtx, outcome)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "reservation unit failed")
		return err
	}

	// 业务性失败：先补偿缓存扣减，再把取消事件和标记行一起落库
	s.engine.ReleaseCacheReservations(processingCtx, rejected.outcome)

	cancelled := domain.NewOrderCancelledEvent(event.RequestID, event.OrderID, rejected.outcome.FailureReason)
	err = s.store.Transact(processingCtx, func(tx domain.InventoryTx) error {
		return s.recordOutcome(processingCtx, tx, event, cancelled)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to record cancellation")
		return err
	}

	metrics.ReservationOutcomes.WithLabelValues(domain.EventTypeOrderCancelled).Inc()
	span.AddEvent("Reservation rejected, cancellation committed")
	logger.Ctx(ctx).Warn().Str("request_id", event.RequestID).Int64("order_id", event.OrderID).
		Str("reason", rejected.outcome.FailureReason).Msg("Reservation rejected, order cancelled")
	return nil
}

// recordOutcome 在当前事务里写入已处理标记和 outbox 行。
// 无论成功还是取消都会写标记：被拒绝的订单的重放同样不允许二次处理。
func (s *InventoryApplicationService) recordOutcome(ctx context.Context, tx domain.InventoryTx, event *domain.OrderCreatedEvent, result *domain.InventoryEvent) error {
	marker := &domain.ProcessedRequest{
		RequestID: event.RequestID,
		OrderID:   event.OrderID,
		EventType: domain.EventTypeOrderCreated,
	}
	if err := tx.SaveProcessedRequest(ctx, marker); err != nil {
		return err
	}

	outbox, err := domain.NewOutboxEvent(result)
	if err != nil {
		return err
	}
	return tx.SaveOutboxEvent(ctx, outbox)
}
