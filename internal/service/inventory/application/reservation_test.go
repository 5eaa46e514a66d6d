package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swiftcart/internal/service/inventory/domain"
	"swiftcart/internal/service/inventory/domain/port"
)

// mockStockStore 模拟缓存计数器。unavailable 时每次调用返回连接错误；
// respectCtx 时行为和真实客户端一致：ctx 已到期的请求立即失败。
type mockStockStore struct {
	mu          sync.Mutex
	stock       map[int64]int // 不存在的 key 表示计数器未初始化
	unavailable bool
	respectCtx  bool

	released    []CacheReservation
	synced      map[int64]int
	invalidated []int64
}

func newMockStockStore(stock map[int64]int) *mockStockStore {
	if stock == nil {
		stock = make(map[int64]int)
	}
	return &mockStockStore{stock: stock, synced: make(map[int64]int)}
}

func (m *mockStockStore) ctxErr(ctx context.Context) error {
	if m.respectCtx {
		return ctx.Err()
	}
	return nil
}

func (m *mockStockStore) Reserve(ctx context.Context, productID int64, quantity int) (port.ReserveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ctxErr(ctx); err != nil {
		return 0, err
	}
	if m.unavailable {
		return 0, errors.New("redis: connection refused")
	}
	current, ok := m.stock[productID]
	if !ok {
		return port.ReserveNotFound, nil
	}
	if current < quantity {
		return port.ReserveInsufficient, nil
	}
	m.stock[productID] = current - quantity
	return port.ReserveOK, nil
}

func (m *mockStockStore) Release(ctx context.Context, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ctxErr(ctx); err != nil {
		return err
	}
	m.stock[productID] += quantity
	m.released = append(m.released, CacheReservation{ProductID: productID, Quantity: quantity})
	return nil
}

func (m *mockStockStore) SetStock(ctx context.Context, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ctxErr(ctx); err != nil {
		return err
	}
	m.stock[productID] = quantity
	m.synced[productID] = quantity
	return nil
}

func (m *mockStockStore) InvalidateProductCache(ctx context.Context, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ctxErr(ctx); err != nil {
		return err
	}
	m.invalidated = append(m.invalidated, productID)
	return nil
}

// mockLedgerTx 模拟账本事务：记录扣减，支持回滚断言。
type mockLedgerTx struct {
	stock    map[int64]int
	markers  []*domain.ProcessedRequest
	outbox   []*domain.OutboxEvent
	failWith error // ReserveStock 的注入故障
}

func newMockLedgerTx(stock map[int64]int) *mockLedgerTx {
	if stock == nil {
		stock = make(map[int64]int)
	}
	return &mockLedgerTx{stock: stock}
}

func (t *mockLedgerTx) ReserveStock(ctx context.Context, productID int64, quantity int) (int, error) {
	if t.failWith != nil {
		return 0, t.failWith
	}
	current, ok := t.stock[productID]
	if !ok {
		return 0, domain.ErrProductNotFound
	}
	if current < quantity {
		return 0, domain.ErrInsufficientStock
	}
	t.stock[productID] = current - quantity
	return current - quantity, nil
}

func (t *mockLedgerTx) SaveProcessedRequest(ctx context.Context, marker *domain.ProcessedRequest) error {
	t.markers = append(t.markers, marker)
	return nil
}

func (t *mockLedgerTx) SaveOutboxEvent(ctx context.Context, event *domain.OutboxEvent) error {
	t.outbox = append(t.outbox, event)
	return nil
}

const testOpTimeout = 100 * time.Millisecond

func TestReserveAll_AllViaCache(t *testing.T) {
	stock := newMockStockStore(map[int64]int{7: 5, 8: 3})
	engine := NewReservationEngine(stock, testOpTimeout)
	tx := newMockLedgerTx(nil)

	outcome, err := engine.ReserveAll(context.Background(), tx, []domain.OrderItem{
		{ProductID: 7, Quantity: 2},
		{ProductID: 8, Quantity: 1},
	})

	require.NoError(t, err)
	assert.True(t, outcome.AllReserved)
	assert.Len(t, outcome.ReservedItems, 2)
	assert.Len(t, outcome.CacheReservations, 2)
	assert.Empty(t, outcome.LedgerReservations)
	assert.Equal(t, 3, stock.stock[7])
	assert.Equal(t, 2, stock.stock[8])
}

func TestReserveAll_InsufficientStockFailsFast(t *testing.T) {
	stock := newMockStockStore(map[int64]int{1: 10, 2: 3, 3: 100})
	engine := NewReservationEngine(stock, testOpTimeout)
	tx := newMockLedgerTx(nil)

	outcome, err := engine.ReserveAll(context.Background(), tx, []domain.OrderItem{
		{ProductID: 1, Quantity: 5},
		{ProductID: 2, Quantity: 999999},
		{ProductID: 3, Quantity: 1},
	})

	require.NoError(t, err)
	assert.False(t, outcome.AllReserved)
	assert.Contains(t, outcome.FailureReason, "productId: 2")
	// fail-fast：第三项根本没被尝试
	assert.Equal(t, 100, stock.stock[3])
	// 第一项的缓存扣减已生效，等待补偿
	require.Len(t, outcome.CacheReservations, 1)
	assert.Equal(t, int64(1), outcome.CacheReservations[0].ProductID)

	engine.ReleaseCacheReservations(context.Background(), outcome)
	assert.Equal(t, 10, stock.stock[1])
}

func TestReserveAll_CacheUnavailableFallsBackToLedger(t *testing.T) {
	stock := newMockStockStore(nil)
	stock.unavailable = true
	engine := NewReservationEngine(stock, testOpTimeout)
	tx := newMockLedgerTx(map[int64]int{7: 5})

	outcome, err := engine.ReserveAll(context.Background(), tx, []domain.OrderItem{
		{ProductID: 7, Quantity: 2},
	})

	require.NoError(t, err)
	assert.True(t, outcome.AllReserved)
	require.Len(t, outcome.LedgerReservations, 1)
	assert.Equal(t, 3, outcome.LedgerReservations[0].Remaining)
	assert.Equal(t, 3, tx.stock[7])
}

func TestReserveAll_CounterMissingFallsBackToLedger(t *testing.T) {
	stock := newMockStockStore(map[int64]int{}) // 计数器未初始化
	engine := NewReservationEngine(stock, testOpTimeout)
	tx := newMockLedgerTx(map[int64]int{7: 5})

	outcome, err := engine.ReserveAll(context.Background(), tx, []domain.OrderItem{
		{ProductID: 7, Quantity: 2},
	})

	require.NoError(t, err)
	assert.True(t, outcome.AllReserved)
	assert.Equal(t, 3, tx.stock[7])

	// 提交后的再同步把计数器恢复成权威值
	engine.ResyncCache(context.Background(), outcome)
	assert.Equal(t, 3, stock.synced[7])
	assert.Contains(t, stock.invalidated, int64(7))
}

func TestReserveAll_ProductNotFoundInBothStores(t *testing.T) {
	stock := newMockStockStore(map[int64]int{})
	engine := NewReservationEngine(stock, testOpTimeout)
	tx := newMockLedgerTx(map[int64]int{})

	outcome, err := engine.ReserveAll(context.Background(), tx, []domain.OrderItem{
		{ProductID: 42, Quantity: 1},
	})

	require.NoError(t, err)
	assert.False(t, outcome.AllReserved)
	assert.Contains(t, outcome.FailureReason, "Product not found")
	assert.Contains(t, outcome.FailureReason, "42")
}

func TestReserveAll_LedgerFaultPropagates(t *testing.T) {
	stock := newMockStockStore(nil)
	stock.unavailable = true
	engine := NewReservationEngine(stock, testOpTimeout)
	tx := newMockLedgerTx(map[int64]int{7: 5})
	tx.failWith = errors.New("mysql: lock wait timeout")

	_, err := engine.ReserveAll(context.Background(), tx, []domain.OrderItem{
		{ProductID: 7, Quantity: 2},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock wait timeout")
}

// 触发补偿的故障经常就是处理超时本身：补偿必须在处理单元的
// deadline 过期后依然能执行，否则计数器会被卡在偏低的值上。
func TestReleaseCacheReservations_AfterProcessingDeadlineExpired(t *testing.T) {
	stock := newMockStockStore(map[int64]int{1: 10, 2: 5})
	stock.respectCtx = true
	engine := NewReservationEngine(stock, testOpTimeout)

	outcome, err := engine.ReserveAll(context.Background(), newMockLedgerTx(nil), []domain.OrderItem{
		{ProductID: 1, Quantity: 4},
		{ProductID: 2, Quantity: 1},
	})
	require.NoError(t, err)
	require.True(t, outcome.AllReserved)
	require.Equal(t, 6, stock.stock[1])
	require.Equal(t, 4, stock.stock[2])

	expiredCtx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-expiredCtx.Done()

	engine.ReleaseCacheReservations(expiredCtx, outcome)
	assert.Equal(t, 10, stock.stock[1])
	assert.Equal(t, 5, stock.stock[2])
}

func TestResyncCache_AfterProcessingDeadlineExpired(t *testing.T) {
	stock := newMockStockStore(map[int64]int{})
	stock.respectCtx = true
	engine := NewReservationEngine(stock, testOpTimeout)
	tx := newMockLedgerTx(map[int64]int{7: 5})

	outcome, err := engine.ReserveAll(context.Background(), tx, []domain.OrderItem{
		{ProductID: 7, Quantity: 2},
	})
	require.NoError(t, err)
	require.True(t, outcome.AllReserved)

	expiredCtx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-expiredCtx.Done()

	engine.ResyncCache(expiredCtx, outcome)
	assert.Equal(t, 3, stock.synced[7])
	assert.Contains(t, stock.invalidated, int64(7))
}
