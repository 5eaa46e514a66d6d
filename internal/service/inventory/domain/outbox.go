// internal/service/inventory/domain/outbox.go
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const aggregateTypeInventory = "Inventory"

// OutboxEvent 是事务性发件箱里的一行。
// 它必须和它所描述的库存变更在同一个事务里创建；
// published 只会由后台发布器在 bus 确认后置为 true，此外不被修改。
type OutboxEvent struct {
	ID            string
	AggregateType string
	AggregateID   int64
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	Published     bool
	Version       int
}

// NewOutboxEvent 把一个库存结果事件封装成待发布的 outbox 行。
// aggregateId 使用 orderId，保证同一订单的事件落在同一分区。
func NewOutboxEvent(event *InventoryEvent) (*OutboxEvent, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, errors.Wrap(err, "marshal inventory event")
	}

	return &OutboxEvent{
		ID:            uuid.New().String(),
		AggregateType: aggregateTypeInventory,
		AggregateID:   event.OrderID,
		EventType:     event.EventType,
		Payload:       payload,
		CreatedAt:     time.Now(),
		Published:     false,
	}, nil
}
