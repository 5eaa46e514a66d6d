// internal/service/inventory/infrastructure/outbox_publisher.go
package infrastructure

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"swiftcart/internal/pkg/logger"
	"swiftcart/internal/pkg/metrics"
	"swiftcart/internal/service/inventory/domain"
)

// BusPublisher 把一条事件负载发到消息总线。Publish 返回 nil
// 即认为总线已确认接收。
type BusPublisher interface {
	Publish(ctx context.Context, key, payload []byte) error
}

// OutboxPublisher 是后台排空循环：定时把未发布的 outbox 行
// 发往消息总线，确认后标记为已发布。
//
// 发送失败的行保持原样，下一个 tick 重试；行与行互相独立，
// 一行失败不影响同一批次的其他行。"总线已确认"和"行已标记"
// 之间崩溃会导致重复发布，下游靠 payload 里的 requestId 去重。
type OutboxPublisher struct {
	store    domain.InventoryStore
	bus      BusPublisher
	interval time.Duration
	batch    int

	wg      sync.WaitGroup
	stopped atomic.Bool
}

func NewOutboxPublisher(store domain.InventoryStore, bus BusPublisher, interval time.Duration, batch int) *OutboxPublisher {
	return &OutboxPublisher{
		store:    store,
		bus:      bus,
		interval: interval,
		batch:    batch,
	}
}

// Start 启动排空循环。这是一个长期运行的方法。
func (p *OutboxPublisher) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		logger.Ctx(ctx).Info().Dur("interval", p.interval).Msg("✅ Outbox publisher started.")

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Ctx(ctx).Info().Msg("🛑 Outbox publisher shutting down.")
				return
			case <-ticker.C:
				if p.stopped.Load() {
					return
				}
				p.DrainAndPublish(ctx)
			}
		}
	}()
}

func (p *OutboxPublisher) Stop() {
	p.stopped.Store(true)
	p.wg.Wait()
}

// DrainAndPublish 执行一个 tick：取出未发布的行并逐行发布。
func (p *OutboxPublisher) DrainAndPublish(ctx context.Context) {
	events, err := p.store.FetchUnpublished(ctx, p.batch)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("Failed to fetch unpublished outbox events")
		return
	}
	metrics.OutboxPending.Set(float64(len(events)))

	for _, event := range events {
		key := []byte(strconv.FormatInt(event.AggregateID, 10))
		if err := p.bus.Publish(ctx, key, event.Payload); err != nil {
			metrics.OutboxPublishFailures.Inc()
			logger.Ctx(ctx).Error().Err(err).
				Str("outbox_id", event.ID).
				Str("event_type", event.EventType).
				Msg("Failed to publish outbox event, will retry next tick")
			continue
		}

		if err := p.store.MarkPublished(ctx, event.ID); err != nil {
			// 行留在未发布状态，下个 tick 会造成一次重复发布，可接受
			logger.Ctx(ctx).Error().Err(err).
				Str("outbox_id", event.ID).
				Msg("Published but failed to mark outbox event, duplicate publish expected")
			continue
		}

		metrics.OutboxPublished.Inc()
		logger.Ctx(ctx).Info().
			Str("outbox_id", event.ID).
			Str("event_type", event.EventType).
			Int64("aggregate_id", event.AggregateID).
			Msg("Published outbox event")
	}
}
