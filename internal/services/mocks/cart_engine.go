package mocks

import (
	"context"

	"github.com/aaravmahajanofficial/dual-tier-cart/internal/models"
	service "github.com/aaravmahajanofficial/dual-tier-cart/internal/services"
	"github.com/stretchr/testify/mock"
)

// CartEngine is a testify mock of service.CartEngine.
type CartEngine struct {
	mock.Mock
}

var _ service.CartEngine = (*CartEngine)(nil)

func result(args mock.Arguments) (*service.CartResult, error) {
	if r, ok := args.Get(0).(*service.CartResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CartEngine) Get(ctx context.Context, userID string) (*service.CartResult, error) {
	return result(m.Called(ctx, userID))
}

func (m *CartEngine) Add(ctx context.Context, userID string, product models.Product, quantity int, details *models.UserDetails) (*service.CartResult, error) {
	return result(m.Called(ctx, userID, product, quantity, details))
}

func (m *CartEngine) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*service.CartResult, error) {
	return result(m.Called(ctx, userID, productID, quantity))
}

func (m *CartEngine) RemoveItem(ctx context.Context, userID, productID string) (*service.CartResult, error) {
	return result(m.Called(ctx, userID, productID))
}

func (m *CartEngine) Clear(ctx context.Context, userID string) (*service.CartResult, error) {
	return result(m.Called(ctx, userID))
}
