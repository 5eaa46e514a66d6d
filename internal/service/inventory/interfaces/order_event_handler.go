// internal/service/inventory/interfaces/order_event_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"swiftcart/internal/pkg/logger"
	"swiftcart/internal/pkg/metrics"
	"swiftcart/internal/pkg/mq"
	"swiftcart/internal/service/inventory/application"
	"swiftcart/internal/service/inventory/domain"
)

// OrderConsumerAdapter 是驱动适配器：监听订单创建主题并驱动应用服务。
//
// 每条消息的终态只有四种：畸形（确认并丢弃）、重复（确认）、
// 处理成功（确认）、处理故障（转发死信后确认）。
// 任何情况下都不向 broker 退回消息——死信主题是唯一的重试/升级通道。
type OrderConsumerAdapter struct {
	reader  *kafka.Reader
	appSvc  *application.InventoryApplicationService
	wg      sync.WaitGroup
	stopped atomic.Bool

	failureHandler *mq.FailureHandler
}

func NewOrderConsumerAdapter(reader *kafka.Reader, appSvc *application.InventoryApplicationService, failureHandler *mq.FailureHandler) *OrderConsumerAdapter {
	return &OrderConsumerAdapter{
		reader:         reader,
		appSvc:         appSvc,
		failureHandler: failureHandler,
	}
}

// Start 开始监听。这是一个长期运行的方法。
func (a *OrderConsumerAdapter) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Ctx(ctx).Info().Str("topic", a.reader.Config().Topic).
			Msg("✅ Order Consumer Adapter started.")
		for {
			if a.stopped.Load() {
				return
			}
			// FetchMessage 而不是 ReadMessage：位点在处理单元完成后才提交
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Ctx(ctx).Info().Msg("🛑 Order Consumer Adapter shutting down.")
					return
				}
				logger.Ctx(ctx).Error().Err(err).Msg("Could not fetch message, retrying")
				time.Sleep(1 * time.Second)
				continue
			}
			metrics.EventsConsumed.Inc()

			propagator := otel.GetTextMapPropagator()
			carrier := mq.KafkaHeaderCarrier(msg.Headers)
			msgCtx := propagator.Extract(ctx, &carrier)

			if err := a.processMessage(msgCtx, msg); err != nil {
				metrics.DeadLettered.Inc()
				a.failureHandler.Handle(msgCtx, msg, err)
			}

			// 成功、重复、畸形、已移交死信：都提交位点
			if err := a.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("Failed to commit messages")
			}
		}
	}()
}

// Stop 优雅地停止消费者。
func (a *OrderConsumerAdapter) Stop(ctx context.Context) {
	a.stopped.Store(true)
	a.reader.Close()
	a.wg.Wait()
	logger.Ctx(ctx).Info().Msg("✅ Order Consumer Adapter stopped.")
}

// processMessage 返回 error 表示处理故障，消息需要转发到死信。
// 畸形消息没有重试价值，记录后返回 nil 直接丢弃。
func (a *OrderConsumerAdapter) processMessage(ctx context.Context, msg kafka.Message) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		metrics.MalformedEvents.Inc()
		logger.Ctx(ctx).Error().Err(err).Str("value", string(msg.Value)).
			Msg("Malformed order event dropped")
		return nil
	}
	if err := event.Validate(); err != nil {
		metrics.MalformedEvents.Inc()
		logger.Ctx(ctx).Error().Err(err).Str("request_id", event.RequestID).
			Msg("Invalid order event dropped")
		return nil
	}

	logger.Ctx(ctx).Info().Str("request_id", event.RequestID).Int64("order_id", event.OrderID).
		Msg("Received ORDER_CREATED event")

	return a.appSvc.HandleOrderCreatedEvent(ctx, &event)
}
