// internal/service/inventory/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"swiftcart/internal/service/inventory/domain"
)

// GormInventoryStore 是 domain.InventoryStore 的 GORM/MySQL 实现。
type GormInventoryStore struct {
	db *gorm.DB
}

func NewGormInventoryStore(db *gorm.DB) *GormInventoryStore {
	return &GormInventoryStore{db: db}
}

// AutoMigrate 建表。只在启动时调用。
func (s *GormInventoryStore) AutoMigrate() error {
	return s.db.AutoMigrate(&InventoryModel{}, &OrderEventLogModel{}, &OutboxEventModel{})
}

func (s *GormInventoryStore) Transact(ctx context.Context, fn func(tx domain.InventoryTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormInventoryTx{db: tx})
	})
}

func (s *GormInventoryStore) HasProcessedRequest(ctx context.Context, requestID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&OrderEventLogModel{}).
		Where("request_id = ?", requestID).Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "query order_event_log")
	}
	return count > 0, nil
}

func (s *GormInventoryStore) FetchUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	var models []OutboxEventModel
	err := s.db.WithContext(ctx).
		Where("published = ?", false).
		Order("created_at").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "fetch unpublished outbox events")
	}

	events := make([]*domain.OutboxEvent, 0, len(models))
	for i := range models {
		events = append(events, toDomainOutboxEvent(&models[i]))
	}
	return events, nil
}

func (s *GormInventoryStore) MarkPublished(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Model(&OutboxEventModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"published": true,
			"version":   gorm.Expr("version + 1"),
		}).Error
	return errors.Wrap(err, "mark outbox event published")
}

func (s *GormInventoryStore) ListInventory(ctx context.Context) ([]*domain.InventoryRecord, error) {
	var models []InventoryModel
	if err := s.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list inventory")
	}

	records := make([]*domain.InventoryRecord, 0, len(models))
	for i := range models {
		records = append(records, &domain.InventoryRecord{
			ProductID: models[i].ProductID,
			Quantity:  models[i].Quantity,
			UpdatedAt: models[i].UpdatedAt,
		})
	}
	return records, nil
}

type gormInventoryTx struct {
	db *gorm.DB
}

// ReserveStock 在行级排他锁下比较并扣减，返回扣减后的余量。
// 锁从 SELECT ... FOR UPDATE 持有到事务提交，同一商品的并发预留被串行化。
func (t *gormInventoryTx) ReserveStock(ctx context.Context, productID int64, quantity int) (int, error) {
	var m InventoryModel
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&m, "product_id = ?", productID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, domain.ErrProductNotFound
		}
		return 0, errors.Wrap(err, "lock inventory row")
	}

	if m.Quantity < quantity {
		return 0, domain.ErrInsufficientStock
	}

	remaining := m.Quantity - quantity
	err = t.db.WithContext(ctx).Model(&InventoryModel{}).
		Where("product_id = ?", productID).
		Updates(map[string]interface{}{
			"quantity":   remaining,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return 0, errors.Wrap(err, "decrement inventory")
	}
	return remaining, nil
}

func (t *gormInventoryTx) SaveProcessedRequest(ctx context.Context, marker *domain.ProcessedRequest) error {
	m := OrderEventLogModel{
		RequestID: marker.RequestID,
		OrderID:   marker.OrderID,
		EventType: marker.EventType,
		CreatedAt: time.Now(),
	}
	return errors.Wrap(t.db.WithContext(ctx).Create(&m).Error, "insert order_event_log")
}

func (t *gormInventoryTx) SaveOutboxEvent(ctx context.Context, event *domain.OutboxEvent) error {
	m := OutboxEventModel{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       event.Payload,
		CreatedAt:     event.CreatedAt,
		Published:     event.Published,
		Version:       event.Version,
	}
	return errors.Wrap(t.db.WithContext(ctx).Create(&m).Error, "insert outbox_event")
}

func toDomainOutboxEvent(m *OutboxEventModel) *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:            m.ID,
		AggregateType: m.AggregateType,
		AggregateID:   m.AggregateID,
		EventType:     m.EventType,
		Payload:       m.Payload,
		CreatedAt:     m.CreatedAt,
		Published:     m.Published,
		Version:       m.Version,
	}
}
