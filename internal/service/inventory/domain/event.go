// internal/service/inventory/domain/event.go
package domain

import "time"

// 入站/出站事件类型
const (
	EventTypeOrderCreated   = "ORDER_CREATED"
	EventTypeStockReserved  = "STOCK_RESERVED"
	EventTypeOrderCancelled = "ORDER_CANCELLED"
)

const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

const inventoryEventVersion = 1

// OrderItem 是订单里的一个商品行。
type OrderItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// OrderCreatedEvent 是订单服务发布的订单创建事件，本服务消费它。
// 未知字段直接忽略。
type OrderCreatedEvent struct {
	RequestID  string      `json:"requestId"`
	OrderID    int64       `json:"orderId"`
	OrderItems []OrderItem `json:"orderItems"`
}

// Validate 检查事件是否携带了处理所必需的字段。
// 校验失败的消息没有重试价值，调用方应确认并丢弃。
func (e *OrderCreatedEvent) Validate() error {
	if e.RequestID == "" {
		return ErrMissingRequestID
	}
	if e.OrderID == 0 {
		return ErrMissingOrderID
	}
	for _, item := range e.OrderItems {
		if item.ProductID == 0 || item.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	}
	return nil
}

// InventoryEvent 是本服务发布的库存处理结果事件，
// 序列化后作为 outbox 行的 payload。构造后不可变。
type InventoryEvent struct {
	Version    int         `json:"version"`
	EventType  string      `json:"eventType"`
	RequestID  string      `json:"requestId"`
	OrderID    int64       `json:"orderId"`
	OrderItems []OrderItem `json:"orderItems"`
	Ts         time.Time   `json:"ts"`
	Status     string      `json:"status"`
	Reason     string      `json:"reason,omitempty"`
}

// NewStockReservedEvent 构造预留成功事件。
func NewStockReservedEvent(requestID string, orderID int64, items []OrderItem) *InventoryEvent {
	return &InventoryEvent{
		Version:    inventoryEventVersion,
		EventType:  EventTypeStockReserved,
		RequestID:  requestID,
		OrderID:    orderID,
		OrderItems: items,
		Ts:         time.Now(),
		Status:     StatusSuccess,
	}
}

// NewOrderCancelledEvent 构造预留失败（取消订单）事件。
// 失败事件不携带商品行，只带失败原因。
func NewOrderCancelledEvent(requestID string, orderID int64, reason string) *InventoryEvent {
	return &InventoryEvent{
		Version:    inventoryEventVersion,
		EventType:  EventTypeOrderCancelled,
		RequestID:  requestID,
		OrderID:    orderID,
		OrderItems: []OrderItem{},
		Ts:         time.Now(),
		Status:     StatusFailed,
		Reason:     reason,
	}
}
