package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aaravmahajanofficial/storefront-checkout/internal/catalog"
	appErrors "github.com/aaravmahajanofficial/storefront-checkout/internal/errors"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/lock"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/models"
	repository "github.com/aaravmahajanofficial/storefront-checkout/internal/repositories"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/repositories/mocks"
	service "github.com/aaravmahajanofficial/storefront-checkout/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	sent chan *models.Order
	err  error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: make(chan *models.Order, 4)}
}

func (f *fakeNotifier) NotifyOrderCreated(_ context.Context, order *models.Order) error {
	f.sent <- order
	return f.err
}

type orderServiceDeps struct {
	orders   *mocks.OrderRepository
	carts    *mocks.CartRepository
	limiter  *mocks.RateLimitRepository
	locker   lock.Locker
	notifier *fakeNotifier
}

func setupOrderServiceTest(t *testing.T, gw catalog.Gateway) (service.OrderService, orderServiceDeps) {
	t.Helper()

	deps := orderServiceDeps{
		orders:   mocks.NewOrderRepository(t),
		carts:    mocks.NewCartRepository(t),
		limiter:  mocks.NewRateLimitRepository(t),
		locker:   lock.NewLocalLocker(),
		notifier: newFakeNotifier(),
	}

	svc := service.NewOrderService(deps.orders, deps.carts, deps.limiter, deps.locker, gw, deps.notifier, testCheckoutConfig())

	return svc, deps
}

func validOrderRequest() *models.CreateOrderRequest {
	return &models.CreateOrderRequest{
		BillingInfo: models.BillingInfo{
			Email:     "ada@example.com",
			FirstName: "Ada",
			LastName:  "Lovelace",
			Phone:     "+44 20 7946 0000",
			Address:   "12 St James's Square",
			City:      "London",
			State:     "London",
			ZipCode:   "SW1Y 4JH",
		},
		PaymentMethod: models.PaymentMethodCredit,
	}
}

func allowCheckout(deps orderServiceDeps, owner models.OwnerKey) {
	deps.limiter.On("CheckCheckoutRateLimit", mock.Anything, owner.String()).Return(true, 9, 0, nil).Once()
}

func TestOrderService_CreateOrder(t *testing.T) {
	owner := models.UserOwner(uuid.New())
	mug := activeProduct(1, "Mug", "30.00", 10)
	tee := activeProduct(2, "Tee", "20.00", 10)
	size := "L"

	cart := []models.CartLine{
		{ID: uuid.New(), ProductID: 1, Quantity: 2},
		{ID: uuid.New(), ProductID: 2, Quantity: 1, Size: &size},
	}

	t.Run("Success consolidates the cart", func(t *testing.T) {
		// Arrange
		svc, deps := setupOrderServiceTest(t, catalogOf(mug, tee))
		allowCheckout(deps, owner)
		deps.carts.On("List", mock.Anything, owner).Return(cart, nil).Once()

		var persisted *models.Order

		deps.orders.On("CreateOrder", mock.Anything, mock.AnythingOfType("*models.Order"), mock.AnythingOfType("*models.OutboxEvent")).
			Run(func(args mock.Arguments) {
				persisted = args.Get(1).(*models.Order)
				event := args.Get(2).(*models.OutboxEvent)

				assert.Equal(t, persisted.ID.String(), event.AggregateID)
				assert.Equal(t, models.EventTypeOrderCreated, event.EventType)

				var payload map[string]any
				require.NoError(t, json.Unmarshal(event.Payload, &payload))
				assert.Equal(t, "86.40", payload["total"])
			}).Return(nil).Once()
		deps.carts.On("RemoveLines", mock.Anything, owner, cart).Return(nil).Once()

		// Act
		order, err := svc.CreateOrder(t.Context(), owner, validOrderRequest())

		// Assert
		require.NoError(t, err)
		assert.Same(t, persisted, order)
		assert.Equal(t, models.OrderStatusPending, order.Status)
		assert.Equal(t, owner, order.Owner())
		assert.Equal(t, "80.00", order.Subtotal.StringFixed(2))
		assert.Equal(t, "0.00", order.Shipping.StringFixed(2))
		assert.Equal(t, "6.40", order.Tax.StringFixed(2))
		assert.Equal(t, "86.40", order.Total.StringFixed(2))

		require.Len(t, order.Items, 2)
		assert.Equal(t, "Mug", order.Items[0].ProductName)
		assert.Equal(t, "30.00", order.Items[0].ProductPrice.StringFixed(2))
		assert.Equal(t, 2, order.Items[0].Quantity)
		assert.Equal(t, order.ID, order.Items[0].OrderID)
		assert.Equal(t, "Tee", order.Items[1].ProductName)
		assert.Equal(t, "L", models.Variant(order.Items[1].Size))

		select {
		case notified := <-deps.notifier.sent:
			assert.Equal(t, order.ID, notified.ID)
		case <-time.After(time.Second):
			t.Fatal("confirmation was not sent")
		}
	})

	t.Run("Missing identity", func(t *testing.T) {
		// Arrange
		svc, _ := setupOrderServiceTest(t, catalogOf())

		// Act
		order, err := svc.CreateOrder(t.Context(), models.OwnerKey{}, validOrderRequest())

		// Assert
		assert.Nil(t, order)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeIdentityMissing))
	})

	t.Run("Invalid billing", func(t *testing.T) {
		// Arrange
		svc, _ := setupOrderServiceTest(t, catalogOf())
		req := validOrderRequest()
		req.BillingInfo.Email = "not-an-email"

		// Act
		_, err := svc.CreateOrder(t.Context(), owner, req)

		// Assert
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeValidation))
	})

	t.Run("Billing that sanitizes to empty", func(t *testing.T) {
		// Arrange
		svc, _ := setupOrderServiceTest(t, catalogOf())
		req := validOrderRequest()
		req.BillingInfo.City = "<script>alert(1)</script>"

		// Act
		_, err := svc.CreateOrder(t.Context(), owner, req)

		// Assert
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeValidation))
	})

	t.Run("Unknown payment method", func(t *testing.T) {
		// Arrange
		svc, _ := setupOrderServiceTest(t, catalogOf())
		req := validOrderRequest()
		req.PaymentMethod = "barter"

		// Act
		_, err := svc.CreateOrder(t.Context(), owner, req)

		// Assert
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeValidation))
	})

	t.Run("Rate limited", func(t *testing.T) {
		// Arrange
		svc, deps := setupOrderServiceTest(t, catalogOf(mug))
		deps.limiter.On("CheckCheckoutRateLimit", mock.Anything, owner.String()).Return(false, 0, 12, nil).Once()

		// Act
		_, err := svc.CreateOrder(t.Context(), owner, validOrderRequest())

		// Assert
		require.True(t, appErrors.HasCode(err, appErrors.ErrCodeTooManyRequests))
		appErr, _ := appErrors.IsAppError(err)
		assert.Equal(t, "retry_after=12", appErr.Detail)
	})

	t.Run("Rate limiter failure fails open", func(t *testing.T) {
		// Arrange
		svc, deps := setupOrderServiceTest(t, catalogOf(mug))
		deps.limiter.On("CheckCheckoutRateLimit", mock.Anything, owner.String()).Return(false, 0, 0, errors.New("redis down")).Once()
		deps.carts.On("List", mock.Anything, owner).Return([]models.CartLine{}, nil).Once()

		// Act
		_, err := svc.CreateOrder(t.Context(), owner, validOrderRequest())

		// Assert
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeEmptyCart))
	})

	t.Run("Empty cart", func(t *testing.T) {
		// Arrange
		svc, deps := setupOrderServiceTest(t, catalogOf(mug))
		allowCheckout(deps, owner)
		deps.carts.On("List", mock.Anything, owner).Return([]models.CartLine{}, nil).Once()

		// Act
		order, err := svc.CreateOrder(t.Context(), owner, validOrderRequest())

		// Assert
		assert.Nil(t, order)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeEmptyCart))
		deps.orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Cart read failure", func(t *testing.T) {
		// Arrange
		svc, deps := setupOrderServiceTest(t, catalogOf(mug))
		allowCheckout(deps, owner)
		deps.carts.On("List", mock.Anything, owner).Return(nil, errors.New("conn reset")).Once()

		// Act
		_, err := svc.CreateOrder(t.Context(), owner, validOrderRequest())

		// Assert
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodePersistence))
	})

	t.Run("Product missing from catalog", func(t *testing.T) {
		// Arrange
		svc, deps := setupOrderServiceTest(t, catalogOf(mug))
		allowCheckout(deps, owner)
		deps.carts.On("List", mock.Anything, owner).Return(cart, nil).Once()

		// Act
		_, err := svc.CreateOrder(t.Context(), owner, validOrderRequest())

		// Assert
		require.True(t, appErrors.HasCode(err, appErrors.ErrCodeProductUnavailable))
		appErr, _ := appErrors.IsAppError(err)
		assert.Equal(t, "product_id=2", appErr.Detail)
		deps.carts.AssertNotCalled(t, "RemoveLines", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Inactive product", func(t *testing.T) {
		// Arrange
		retired := activeProduct(2, "Tee", "20.00", 10)
		retired.Active = false
		svc, deps := setupOrderServiceTest(t, catalogOf(mug, retired))
		allowCheckout(deps, owner)
		deps.carts.On("List", mock.Anything, owner).Return(cart, nil).Once()

		// Act
		_, err := svc.CreateOrder(t.Context(), owner, validOrderRequest())

		// Assert
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeProductUnavailable))
	})

	t.Run("Stock checked against summed quantity", func(t *testing.T) {
		// Arrange
		scarce := activeProduct(1, "Mug", "30.00", 5)
		svc, deps := setupOrderServiceTest(t, catalogOf(scarce))
		allowCheckout(deps, owner)
		deps.carts.On("List", mock.Anything, owner).Return([]models.CartLine{
			{ID: uuid.New(), ProductID: 1, Quantity: 3},
			{ID: uuid.New(), ProductID: 1, Quantity: 3, Size: &size},
		}, nil).Once()

		// Act
		_, err := svc.CreateOrder(t.Context(), owner, validOrderRequest())

		// Assert
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeProductUnavailable))
	})

	t.Run("Catalog unavailable", func(t *testing.T) {
		// Arrange
		gw := catalog.GatewayFunc(func(context.Context, int64) (*models.Product, error) {
			return nil, catalog.ErrCatalogUnavailable
		})
		svc, deps := setupOrderServiceTest(t, gw)
		allowCheckout(deps, owner)
		deps.carts.On("List", mock.Anything, owner).Return(cart, nil).Once()

		// Act
		_, err := svc.CreateOrder(t.Context(), owner, validOrderRequest())

		// Assert
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeThirdPartyError))
	})

	t.Run("Work outlasting the lock hold budget", func(t *testing.T) {
		// Arrange
		gw := catalog.GatewayFunc(func(ctx context.Context, _ int64) (*models.Product, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
		cfg := testCheckoutConfig()
		cfg.LockTTL = 500 * time.Millisecond
		cfg.ClearTimeout = 50 * time.Millisecond
		cfg.PersistTimeout = 100 * time.Millisecond

		deps := orderServiceDeps{
			orders:   mocks.NewOrderRepository(t),
			carts:    mocks.NewCartRepository(t),
			limiter:  mocks.NewRateLimitRepository(t),
			locker:   lock.NewLocalLocker(),
			notifier: newFakeNotifier(),
		}
		svc := service.NewOrderService(deps.orders, deps.carts, deps.limiter, deps.locker, gw, deps.notifier, cfg)
		allowCheckout(deps, owner)
		deps.carts.On("List", mock.Anything, owner).Return(cart, nil).Once()

		// Act
		start := time.Now()
		_, err := svc.CreateOrder(t.Context(), owner, validOrderRequest())

		// Assert
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeTimeout))
		assert.Less(t, time.Since(start), cfg.LockTTL)
		deps.orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
		deps.carts.AssertNotCalled(t, "RemoveLines", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Persist deadline exceeded", func(t *testing.T) {
		// Arrange
		svc, deps := setupOrderServiceTest(t, catalogOf(mug, tee))
		allowCheckout(deps, owner)
		deps.carts.On("List", mock.Anything, owner).Return(cart, nil).Once()
		deps.orders.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything).
			Return(context.DeadlineExceeded).Once()
		deps.orders.On("GetOrderByID", mock.Anything, mock.AnythingOfType("uuid.UUID")).
			Return(nil, repository.ErrOrderNotFound).Once()

		// Act
		order, err := svc.CreateOrder(t.Context(), owner, validOrderRequest())

		// Assert
		assert.Nil(t, order)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeTimeout))
		deps.carts.AssertNotCalled(t, "RemoveLines", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Commit that landed after its deadline is reported as created", func(t *testing.T) {
		// Arrange
		svc, deps := setupOrderServiceTest(t, catalogOf(mug, tee))
		allowCheckout(deps, owner)
		deps.carts.On("List", mock.Anything, owner).Return(cart, nil).Once()

		var persisted *models.Order

		stored := &models.Order{}

		deps.orders.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				persisted = args.Get(1).(*models.Order)
				stored.ID = persisted.ID
			}).
			Return(context.DeadlineExceeded).Once()
		deps.orders.On("GetOrderByID", mock.Anything, mock.AnythingOfType("uuid.UUID")).
			Return(stored, nil).Once()
		deps.carts.On("RemoveLines", mock.Anything, owner, cart).Return(nil).Once()

		// Act
		order, err := svc.CreateOrder(t.Context(), owner, validOrderRequest())

		// Assert
		require.NoError(t, err)
		assert.Same(t, persisted, order)
		<-deps.notifier.sent
	})

	t.Run("Commit check failure reports a timeout", func(t *testing.T) {
		// Arrange
		svc, deps := setupOrderServiceTest(t, catalogOf(mug, tee))
		allowCheckout(deps, owner)
		deps.carts.On("List", mock.Anything, owner).Return(cart, nil).Once()
		deps.orders.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything).
			Return(context.DeadlineExceeded).Once()
		deps.orders.On("GetOrderByID", mock.Anything, mock.AnythingOfType("uuid.UUID")).
			Return(nil, errors.New("conn refused")).Once()

		// Act
		_, err := svc.CreateOrder(t.Context(), owner, validOrderRequest())

		// Assert
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeTimeout))
	})

	t.Run("Persist failure", func(t *testing.T) {
		// Arrange
		svc, deps := setupOrderServiceTest(t, catalogOf(mug, tee))
		allowCheckout(deps, owner)
		deps.carts.On("List", mock.Anything, owner).Return(cart, nil).Once()
		deps.orders.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("unique violation")).Once()

		// Act
		_, err := svc.CreateOrder(t.Context(), owner, validOrderRequest())

		// Assert
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodePersistence))
	})

	t.Run("Clear failure keeps the order", func(t *testing.T) {
		// Arrange
		svc, deps := setupOrderServiceTest(t, catalogOf(mug, tee))
		allowCheckout(deps, owner)
		deps.carts.On("List", mock.Anything, owner).Return(cart, nil).Once()
		deps.orders.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		deps.carts.On("RemoveLines", mock.Anything, owner, cart).Return(errors.New("conn reset")).Once()

		// Act
		order, err := svc.CreateOrder(t.Context(), owner, validOrderRequest())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "86.40", order.Total.StringFixed(2))
	})

	t.Run("Cart busy", func(t *testing.T) {
		// Arrange
		svc, deps := setupOrderServiceTest(t, catalogOf(mug, tee))
		allowCheckout(deps, owner)

		release, err := deps.locker.Lock(t.Context(), service.OwnerLockKey(owner))
		require.NoError(t, err)
		defer release()

		// Act
		_, err = svc.CreateOrder(t.Context(), owner, validOrderRequest())

		// Assert
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeTimeout))
	})
}

func TestOrderService_GetOrder(t *testing.T) {
	owner := models.UserOwner(uuid.New())
	orderID := uuid.New()

	t.Run("Own order", func(t *testing.T) {
		// Arrange
		svc, deps := setupOrderServiceTest(t, catalogOf())
		stored := &models.Order{ID: orderID, OwnerKind: owner.Kind(), OwnerID: owner.ID()}
		deps.orders.On("GetOrderByID", mock.Anything, orderID).Return(stored, nil).Once()

		// Act
		order, err := svc.GetOrder(t.Context(), owner, orderID)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, orderID, order.ID)
	})

	t.Run("Another owner's order", func(t *testing.T) {
		// Arrange
		svc, deps := setupOrderServiceTest(t, catalogOf())
		stored := &models.Order{ID: orderID, OwnerKind: models.OwnerKindUser, OwnerID: uuid.New()}
		deps.orders.On("GetOrderByID", mock.Anything, orderID).Return(stored, nil).Once()

		// Act
		order, err := svc.GetOrder(t.Context(), owner, orderID)

		// Assert
		assert.Nil(t, order)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeNotFound))
	})

	t.Run("Not found", func(t *testing.T) {
		// Arrange
		svc, deps := setupOrderServiceTest(t, catalogOf())
		deps.orders.On("GetOrderByID", mock.Anything, orderID).Return(nil, repository.ErrOrderNotFound).Once()

		// Act
		_, err := svc.GetOrder(t.Context(), owner, orderID)

		// Assert
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeNotFound))
	})
}

func TestOrderService_ListOrders(t *testing.T) {
	owner := models.SessionOwner(uuid.New())

	t.Run("Defaults out of range paging", func(t *testing.T) {
		// Arrange
		svc, deps := setupOrderServiceTest(t, catalogOf())
		orders := []*models.Order{{ID: uuid.New()}}
		deps.orders.On("ListOrdersByOwner", mock.Anything, owner, 1, 10).Return(orders, 1, nil).Once()

		// Act
		resp, err := svc.ListOrders(t.Context(), owner, 0, 500)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 1, resp.Page)
		assert.Equal(t, 10, resp.PageSize)
		assert.Equal(t, 1, resp.Total)
		assert.Equal(t, orders, resp.Data)
	})

	t.Run("All orders database error", func(t *testing.T) {
		// Arrange
		svc, deps := setupOrderServiceTest(t, catalogOf())
		deps.orders.On("ListOrders", mock.Anything, 2, 20).Return(nil, 0, errors.New("timeout")).Once()

		// Act
		_, err := svc.ListAllOrders(t.Context(), 2, 20)

		// Assert
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeDatabaseError))
	})
}

func TestOrderService_UpdateOrderStatus(t *testing.T) {
	orderID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		// Arrange
		svc, deps := setupOrderServiceTest(t, catalogOf())
		deps.orders.On("UpdateOrderStatus", mock.Anything, orderID, models.OrderStatusShipping).Return(nil).Once()
		deps.orders.On("GetOrderByID", mock.Anything, orderID).
			Return(&models.Order{ID: orderID, Status: models.OrderStatusShipping}, nil).Once()

		// Act
		order, err := svc.UpdateOrderStatus(t.Context(), orderID, models.OrderStatusShipping)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusShipping, order.Status)
	})

	t.Run("Unknown status", func(t *testing.T) {
		// Arrange
		svc, _ := setupOrderServiceTest(t, catalogOf())

		// Act
		_, err := svc.UpdateOrderStatus(t.Context(), orderID, "lost")

		// Assert
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeValidation))
	})

	t.Run("Not found", func(t *testing.T) {
		// Arrange
		svc, deps := setupOrderServiceTest(t, catalogOf())
		deps.orders.On("UpdateOrderStatus", mock.Anything, orderID, models.OrderStatusCancelled).Return(repository.ErrOrderNotFound).Once()

		// Act
		_, err := svc.UpdateOrderStatus(t.Context(), orderID, models.OrderStatusCancelled)

		// Assert
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeNotFound))
	})
}
