// Package mocks holds testify mocks of the repository interfaces.
package mocks

import (
	"context"
	"testing"

	"github.com/aaravmahajanofficial/storefront-checkout/internal/models"
	repository "github.com/aaravmahajanofficial/storefront-checkout/internal/repositories"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

var (
	_ repository.CartRepository      = (*CartRepository)(nil)
	_ repository.OrderRepository     = (*OrderRepository)(nil)
	_ repository.ProductRepository   = (*ProductRepository)(nil)
	_ repository.OutboxRepository    = (*OutboxRepository)(nil)
	_ repository.RateLimitRepository = (*RateLimitRepository)(nil)
)

type CartRepository struct {
	mock.Mock
}

func NewCartRepository(t *testing.T) *CartRepository {
	m := &CartRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *CartRepository) AddItem(ctx context.Context, owner models.OwnerKey, line *models.CartLine) (*models.CartLine, error) {
	args := m.Called(ctx, owner, line)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.CartLine), args.Error(1)
}

func (m *CartRepository) UpdateQuantity(ctx context.Context, owner models.OwnerKey, lineID uuid.UUID, quantity int) (*models.CartLine, error) {
	args := m.Called(ctx, owner, lineID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.CartLine), args.Error(1)
}

func (m *CartRepository) RemoveItem(ctx context.Context, owner models.OwnerKey, lineID uuid.UUID) error {
	return m.Called(ctx, owner, lineID).Error(0)
}

func (m *CartRepository) Clear(ctx context.Context, owner models.OwnerKey) error {
	return m.Called(ctx, owner).Error(0)
}

func (m *CartRepository) RemoveLines(ctx context.Context, owner models.OwnerKey, snapshot []models.CartLine) error {
	return m.Called(ctx, owner, snapshot).Error(0)
}

func (m *CartRepository) List(ctx context.Context, owner models.OwnerKey) ([]models.CartLine, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.CartLine), args.Error(1)
}

func (m *CartRepository) Merge(ctx context.Context, from, to models.OwnerKey) error {
	return m.Called(ctx, from, to).Error(0)
}

type OrderRepository struct {
	mock.Mock
}

func NewOrderRepository(t *testing.T) *OrderRepository {
	m := &OrderRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *OrderRepository) CreateOrder(ctx context.Context, order *models.Order, event *models.OutboxEvent) error {
	return m.Called(ctx, order, event).Error(0)
}

func (m *OrderRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *OrderRepository) ListOrdersByOwner(ctx context.Context, owner models.OwnerKey, page, size int) ([]*models.Order, int, error) {
	args := m.Called(ctx, owner, page, size)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}

	return args.Get(0).([]*models.Order), args.Int(1), args.Error(2)
}

func (m *OrderRepository) ListOrders(ctx context.Context, page, size int) ([]*models.Order, int, error) {
	args := m.Called(ctx, page, size)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}

	return args.Get(0).([]*models.Order), args.Int(1), args.Error(2)
}

func (m *OrderRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

type ProductRepository struct {
	mock.Mock
}

func NewProductRepository(t *testing.T) *ProductRepository {
	m := &ProductRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *ProductRepository) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Product), args.Error(1)
}

type OutboxRepository struct {
	mock.Mock
}

func NewOutboxRepository(t *testing.T) *OutboxRepository {
	m := &OutboxRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *OutboxRepository) FetchUnpublished(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.OutboxEvent), args.Error(1)
}

func (m *OutboxRepository) MarkPublished(ctx context.Context, ids []int64) error {
	return m.Called(ctx, ids).Error(0)
}

type RateLimitRepository struct {
	mock.Mock
}

func NewRateLimitRepository(t *testing.T) *RateLimitRepository {
	m := &RateLimitRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *RateLimitRepository) CheckCheckoutRateLimit(ctx context.Context, ownerKey string) (bool, int, int, error) {
	args := m.Called(ctx, ownerKey)

	return args.Bool(0), args.Int(1), args.Int(2), args.Error(3)
}
