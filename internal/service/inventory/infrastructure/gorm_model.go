// internal/service/inventory/infrastructure/gorm_model.go
package infrastructure

import "time"

// InventoryModel 对应数据库中的 inventory 表，一行一个商品的权威库存。
type InventoryModel struct {
	ProductID int64 `gorm:"primaryKey;autoIncrement:false"`
	Quantity  int   `gorm:"not null"`
	UpdatedAt time.Time
}

func (InventoryModel) TableName() string {
	return "inventory"
}

// OrderEventLogModel 对应 order_event_log 表，即已处理请求的持久化标记。
// request_id 是主键：对同一请求的重复写入会直接失败。
type OrderEventLogModel struct {
	RequestID string `gorm:"primaryKey;size:64"`
	OrderID   int64  `gorm:"not null;index"`
	EventType string `gorm:"size:32;not null"`
	CreatedAt time.Time
}

func (OrderEventLogModel) TableName() string {
	return "order_event_log"
}

// OutboxEventModel 对应 outbox_event 表。
type OutboxEventModel struct {
	ID            string `gorm:"primaryKey;size:36"`
	AggregateType string `gorm:"size:64;not null"`
	AggregateID   int64  `gorm:"not null"`
	EventType     string `gorm:"size:64;not null"`
	Payload       []byte `gorm:"type:json;not null"`
	CreatedAt     time.Time
	Published     bool `gorm:"not null;default:false;index"`
	Version       int  `gorm:"not null;default:0"`
}

func (OutboxEventModel) TableName() string {
	return "outbox_event"
}
