package infrastructure

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"swiftcart/internal/service/inventory/domain"
)

func getTestStore(t *testing.T) *GormInventoryStore {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/swiftcart_test?parseTime=true"
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	store := NewGormInventoryStore(db)
	if err := store.AutoMigrate(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	return store
}

func seedProduct(t *testing.T, store *GormInventoryStore, productID int64, qty int) {
	t.Helper()
	require.NoError(t, store.db.Exec(
		"REPLACE INTO inventory (product_id, quantity, updated_at) VALUES (?, ?, ?)",
		productID, qty, time.Now()).Error)
}

func TestReserveStock_DecrementsUnderLock(t *testing.T) {
	store := getTestStore(t)
	ctx := context.Background()
	seedProduct(t, store, 9001, 10)

	err := store.Transact(ctx, func(tx domain.InventoryTx) error {
		remaining, err := tx.ReserveStock(ctx, 9001, 4)
		require.NoError(t, err)
		assert.Equal(t, 6, remaining)
		return nil
	})
	require.NoError(t, err)

	var qty int
	require.NoError(t, store.db.Raw("SELECT quantity FROM inventory WHERE product_id = ?", 9001).Scan(&qty).Error)
	assert.Equal(t, 6, qty)
}

func TestReserveStock_BusinessRejections(t *testing.T) {
	store := getTestStore(t)
	ctx := context.Background()
	seedProduct(t, store, 9002, 1)

	err := store.Transact(ctx, func(tx domain.InventoryTx) error {
		_, err := tx.ReserveStock(ctx, 9002, 5)
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)

		_, err = tx.ReserveStock(ctx, 999999999, 1)
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestTransact_RollsBackAllWrites(t *testing.T) {
	store := getTestStore(t)
	ctx := context.Background()
	seedProduct(t, store, 9003, 10)
	requestID := uuid.New().String()

	err := store.Transact(ctx, func(tx domain.InventoryTx) error {
		if _, err := tx.ReserveStock(ctx, 9003, 3); err != nil {
			return err
		}
		if err := tx.SaveProcessedRequest(ctx, &domain.ProcessedRequest{
			RequestID: requestID, OrderID: 1, EventType: domain.EventTypeOrderCreated,
		}); err != nil {
			return err
		}
		return fmt.Errorf("induced failure")
	})
	require.Error(t, err)

	var qty int
	require.NoError(t, store.db.Raw("SELECT quantity FROM inventory WHERE product_id = ?", 9003).Scan(&qty).Error)
	assert.Equal(t, 10, qty)

	processed, err := store.HasProcessedRequest(ctx, requestID)
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestOutboxLifecycle(t *testing.T) {
	store := getTestStore(t)
	ctx := context.Background()

	event := domain.NewStockReservedEvent(uuid.New().String(), 777001, []domain.OrderItem{{ProductID: 1, Quantity: 1}})
	outbox, err := domain.NewOutboxEvent(event)
	require.NoError(t, err)

	require.NoError(t, store.Transact(ctx, func(tx domain.InventoryTx) error {
		return tx.SaveOutboxEvent(ctx, outbox)
	}))

	rows, err := store.FetchUnpublished(ctx, 1000)
	require.NoError(t, err)
	var found *domain.OutboxEvent
	for _, r := range rows {
		if r.ID == outbox.ID {
			found = r
		}
	}
	require.NotNil(t, found, "unpublished row should be fetched")
	assert.Equal(t, domain.EventTypeStockReserved, found.EventType)

	require.NoError(t, store.MarkPublished(ctx, outbox.ID))

	rows, err = store.FetchUnpublished(ctx, 1000)
	require.NoError(t, err)
	for _, r := range rows {
		assert.NotEqual(t, outbox.ID, r.ID, "published row must not be fetched again")
	}
}
