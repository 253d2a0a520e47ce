package gateway

import (
	"context"
	"sync"

	"cartsync/internal/model"
)

// Mock implements Gateway for testing.
// Each method can be configured via function fields; calls are counted.
type Mock struct {
	FetchCartFunc   func(ctx context.Context, cartID string) ([]model.CartItem, error)
	ReplaceCartFunc func(ctx context.Context, items []model.CartItem) (string, error)
	DeleteItemFunc  func(ctx context.Context, productID string) error
	DeleteCartFunc  func(ctx context.Context, cartID string) error

	mu    sync.Mutex
	calls map[string]int
}

// Calls returns how many times op was invoked ("FetchCart", "ReplaceCart", ...).
func (m *Mock) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *Mock) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[op]++
}

// FetchCart calls the configured FetchCartFunc or returns a 404.
func (m *Mock) FetchCart(ctx context.Context, cartID string) ([]model.CartItem, error) {
	m.record("FetchCart")
	if m.FetchCartFunc != nil {
		return m.FetchCartFunc(ctx, cartID)
	}
	return nil, &model.HTTPError{Op: "fetch cart", Status: 404}
}

// ReplaceCart calls the configured ReplaceCartFunc or returns a fixed identity.
func (m *Mock) ReplaceCart(ctx context.Context, items []model.CartItem) (string, error) {
	m.record("ReplaceCart")
	if m.ReplaceCartFunc != nil {
		return m.ReplaceCartFunc(ctx, items)
	}
	return "mock-cart", nil
}

// DeleteItem calls the configured DeleteItemFunc or succeeds.
func (m *Mock) DeleteItem(ctx context.Context, productID string) error {
	m.record("DeleteItem")
	if m.DeleteItemFunc != nil {
		return m.DeleteItemFunc(ctx, productID)
	}
	return nil
}

// DeleteCart calls the configured DeleteCartFunc or succeeds.
func (m *Mock) DeleteCart(ctx context.Context, cartID string) error {
	m.record("DeleteCart")
	if m.DeleteCartFunc != nil {
		return m.DeleteCartFunc(ctx, cartID)
	}
	return nil
}

// Verify Mock implements Gateway interface at compile time.
var _ Gateway = (*Mock)(nil)
