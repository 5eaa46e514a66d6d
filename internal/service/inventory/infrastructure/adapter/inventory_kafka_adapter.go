// internal/service/inventory/infrastructure/adapter/inventory_kafka_adapter.go
package adapter

import (
	"context"

	"github.com/segmentio/kafka-go"

	"swiftcart/internal/pkg/mq"
)

// InventoryKafkaAdapter 把 outbox 负载发布到库存事件主题，
// 实现 infrastructure.BusPublisher。
type InventoryKafkaAdapter struct {
	writer *kafka.Writer
}

func NewInventoryKafkaAdapter(writer *kafka.Writer) *InventoryKafkaAdapter {
	return &InventoryKafkaAdapter{writer: writer}
}

func (a *InventoryKafkaAdapter) Publish(ctx context.Context, key, payload []byte) error {
	return mq.ProduceMessage(ctx, a.writer, key, payload)
}

func (a *InventoryKafkaAdapter) Close() error {
	return a.writer.Close()
}
