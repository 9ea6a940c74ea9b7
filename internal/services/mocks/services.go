// Package mocks holds testify mocks of the service interfaces.
package mocks

import (
	"context"
	"testing"

	"github.com/aaravmahajanofficial/storefront-checkout/internal/models"
	service "github.com/aaravmahajanofficial/storefront-checkout/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

var (
	_ service.CartService  = (*CartService)(nil)
	_ service.OrderService = (*OrderService)(nil)
)

type CartService struct {
	mock.Mock
}

func NewCartService(t *testing.T) *CartService {
	m := &CartService{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *CartService) AddItem(ctx context.Context, owner models.OwnerKey, req *models.AddItemRequest) (*models.CartLine, error) {
	args := m.Called(ctx, owner, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.CartLine), args.Error(1)
}

func (m *CartService) UpdateQuantity(ctx context.Context, owner models.OwnerKey, lineID uuid.UUID, quantity int) (*models.CartLine, error) {
	args := m.Called(ctx, owner, lineID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.CartLine), args.Error(1)
}

func (m *CartService) RemoveItem(ctx context.Context, owner models.OwnerKey, lineID uuid.UUID) error {
	return m.Called(ctx, owner, lineID).Error(0)
}

func (m *CartService) ClearCart(ctx context.Context, owner models.OwnerKey) error {
	return m.Called(ctx, owner).Error(0)
}

func (m *CartService) ListCart(ctx context.Context, owner models.OwnerKey) ([]models.CartLine, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.CartLine), args.Error(1)
}

func (m *CartService) Summary(ctx context.Context, owner models.OwnerKey) (*models.CartSummary, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.CartSummary), args.Error(1)
}

func (m *CartService) MergeCarts(ctx context.Context, from, to models.OwnerKey) ([]models.CartLine, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.CartLine), args.Error(1)
}

type OrderService struct {
	mock.Mock
}

func NewOrderService(t *testing.T) *OrderService {
	m := &OrderService{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *OrderService) CreateOrder(ctx context.Context, owner models.OwnerKey, req *models.CreateOrderRequest) (*models.Order, error) {
	args := m.Called(ctx, owner, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *OrderService) GetOrder(ctx context.Context, owner models.OwnerKey, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, owner, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *OrderService) ListOrders(ctx context.Context, owner models.OwnerKey, page, size int) (*models.PaginatedResponse, error) {
	args := m.Called(ctx, owner, page, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.PaginatedResponse), args.Error(1)
}

func (m *OrderService) ListAllOrders(ctx context.Context, page, size int) (*models.PaginatedResponse, error) {
	args := m.Called(ctx, page, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.PaginatedResponse), args.Error(1)
}

func (m *OrderService) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Order), args.Error(1)
}
