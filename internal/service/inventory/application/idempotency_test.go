package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swiftcart/internal/service/inventory/domain"
)

// mockIdempotencyMarker 模拟 Redis SETNX 快路径。
type mockIdempotencyMarker struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func newMockIdempotencyMarker() *mockIdempotencyMarker {
	return &mockIdempotencyMarker{seen: make(map[string]bool)}
}

func (m *mockIdempotencyMarker) SetIfAbsent(ctx context.Context, requestID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.seen[requestID] {
		return false, nil
	}
	m.seen[requestID] = true
	return true, nil
}

// markerStoreStub 只实现守卫降级需要的持久化查询，其余方法不会被调用。
type markerStoreStub struct {
	domain.InventoryStore
	processed map[string]bool
	err       error
}

func (s *markerStoreStub) HasProcessedRequest(ctx context.Context, requestID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.processed[requestID], nil
}

func TestAdmit_ExactlyOnceAdmitted(t *testing.T) {
	guard := NewIdempotencyGuard(newMockIdempotencyMarker(), &markerStoreStub{})

	admitted := 0
	for i := 0; i < 5; i++ {
		result, err := guard.Admit(context.Background(), "r1")
		require.NoError(t, err)
		if result == Admitted {
			admitted++
		}
	}
	assert.Equal(t, 1, admitted)
}

func TestAdmit_FallsBackToDurableMarker(t *testing.T) {
	marker := newMockIdempotencyMarker()
	marker.err = errors.New("redis down")

	guard := NewIdempotencyGuard(marker, &markerStoreStub{processed: map[string]bool{"r-done": true}})

	result, err := guard.Admit(context.Background(), "r-done")
	require.NoError(t, err)
	assert.Equal(t, Duplicate, result)

	result, err = guard.Admit(context.Background(), "r-new")
	require.NoError(t, err)
	assert.Equal(t, Admitted, result)
}

func TestAdmit_BothPathsDownIsAFault(t *testing.T) {
	marker := newMockIdempotencyMarker()
	marker.err = errors.New("redis down")

	guard := NewIdempotencyGuard(marker, &markerStoreStub{err: errors.New("mysql down")})

	_, err := guard.Admit(context.Background(), "r1")
	require.Error(t, err)
}
