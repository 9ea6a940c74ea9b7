package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aaravmahajanofficial/storefront-checkout/internal/api/middleware"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/catalog"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/config"
	appErrors "github.com/aaravmahajanofficial/storefront-checkout/internal/errors"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/lock"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/metrics"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/models"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/pricing"
	repository "github.com/aaravmahajanofficial/storefront-checkout/internal/repositories"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/utils"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const notifyTimeout = 10 * time.Second

// OrderNotifier is told about every committed order. Failures are logged.
type OrderNotifier interface {
	NotifyOrderCreated(ctx context.Context, order *models.Order) error
}

type OrderService interface {
	// CreateOrder consolidates the owner's cart into an order. Either the
	// order and all of its items are committed, or nothing is.
	CreateOrder(ctx context.Context, owner models.OwnerKey, req *models.CreateOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, owner models.OwnerKey, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, owner models.OwnerKey, page, size int) (*models.PaginatedResponse, error)
	ListAllOrders(ctx context.Context, page, size int) (*models.PaginatedResponse, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (*models.Order, error)
}

type orderService struct {
	orders      repository.OrderRepository
	carts       repository.CartRepository
	rateLimiter repository.RateLimitRepository
	locker      lock.Locker
	catalog     catalog.Gateway
	notifier    OrderNotifier
	validate    *validator.Validate
	cfg         config.Checkout
}

// NewOrderService wires the consolidator. gateway must not be cached:
// order prices are read live. rateLimiter and notifier may be nil.
func NewOrderService(
	orders repository.OrderRepository,
	carts repository.CartRepository,
	rateLimiter repository.RateLimitRepository,
	locker lock.Locker,
	gateway catalog.Gateway,
	notifier OrderNotifier,
	cfg config.Checkout,
) OrderService {
	return &orderService{
		orders:      orders,
		carts:       carts,
		rateLimiter: rateLimiter,
		locker:      locker,
		catalog:     gateway,
		notifier:    notifier,
		validate:    validator.New(),
		cfg:         cfg,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, owner models.OwnerKey, req *models.CreateOrderRequest) (*models.Order, error) {
	logger := middleware.LoggerFromContext(ctx)

	order, err := s.consolidate(ctx, owner, req)
	if err != nil {
		code := appErrors.ErrCodeInternal
		if appErr, ok := appErrors.IsAppError(err); ok {
			code = appErr.Code
		}

		metrics.CheckoutFailures.WithLabelValues(code).Inc()
		logger.Warn("Checkout aborted", slog.String("code", code), slog.String("error", err.Error()))

		return nil, err
	}

	metrics.OrdersCreated.Inc()
	logger.Info("Order created",
		slog.String("orderId", order.ID.String()),
		slog.String("total", order.Total.StringFixed(2)),
		slog.Int("items", len(order.Items)))

	s.notify(ctx, order)

	return order, nil
}

func (s *orderService) consolidate(ctx context.Context, owner models.OwnerKey, req *models.CreateOrderRequest) (*models.Order, error) {
	if owner.IsZero() {
		return nil, appErrors.IdentityMissingError("Cart owner is required")
	}

	billing := sanitizeBilling(req.BillingInfo)
	if err := s.validate.Struct(billing); err != nil {
		return nil, appErrors.ValidationError("Invalid billing information").WithDetail(err.Error()).WithError(err)
	}

	if err := s.validate.Var(req.PaymentMethod, "required,oneof=credit paypal cash"); err != nil {
		return nil, appErrors.AddValidationError("payment_method", "must be one of credit, paypal, cash")
	}

	if err := s.checkRateLimit(ctx, owner); err != nil {
		return nil, err
	}

	// Everything from here to the commit must finish while the owner lock is
	// certainly still held, whatever the lock backend's expiry.
	holdCtx, cancelHold := context.WithTimeout(ctx, s.cfg.HoldBudget())
	defer cancelHold()

	release, err := lockOwners(holdCtx, s.locker, s.cfg.LockWait, owner)
	if err != nil {
		return nil, err
	}
	defer release()

	lines, err := s.carts.List(holdCtx, owner)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, appErrors.TimeoutError("Reading the cart timed out, please retry").WithError(err)
		}

		return nil, appErrors.PersistenceError("Failed to read cart").WithError(err)
	}

	if len(lines) == 0 {
		return nil, appErrors.EmptyCartError("Cannot create an order from an empty cart")
	}

	products, err := s.resolveProducts(holdCtx, lines)
	if err != nil {
		return nil, err
	}

	order := buildOrder(owner, billing, req.PaymentMethod, lines, products)

	payload, err := json.Marshal(order)
	if err != nil {
		return nil, appErrors.InternalError("Failed to encode order event").WithError(err)
	}

	event := &models.OutboxEvent{
		AggregateID: order.ID.String(),
		EventType:   models.EventTypeOrderCreated,
		Payload:     payload,
	}

	persistCtx, cancel := context.WithTimeout(holdCtx, s.cfg.PersistTimeout)
	defer cancel()

	persistErr := s.orders.CreateOrder(persistCtx, order, event)

	// the commit check and the clear share one budget that fits inside the lock TTL
	afterCtx, cancelAfter := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ClearTimeout)
	defer cancelAfter()

	if err := persistErr; err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return nil, appErrors.PersistenceError("Failed to save the order, please retry").WithError(err)
		}

		if !s.committed(afterCtx, order.ID) {
			return nil, appErrors.TimeoutError("Saving the order timed out, please retry").WithError(err)
		}

		middleware.LoggerFromContext(ctx).Warn("Order commit outlived its deadline but landed",
			slog.String("orderId", order.ID.String()))
	}

	s.clearCart(afterCtx, owner, order.ID, lines)

	return order, nil
}

// committed reports whether an order whose commit timed out is stored
// anyway. A lookup failure counts as not committed.
func (s *orderService) committed(ctx context.Context, orderID uuid.UUID) bool {
	stored, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		if !errors.Is(err, repository.ErrOrderNotFound) {
			middleware.LoggerFromContext(ctx).Error("Failed to check order after commit timeout",
				slog.String("orderId", orderID.String()),
				slog.String("error", err.Error()))
		}

		return false
	}

	return stored.ID == orderID
}

func (s *orderService) checkRateLimit(ctx context.Context, owner models.OwnerKey) error {
	if s.rateLimiter == nil {
		return nil
	}

	allowed, _, retryAfter, err := s.rateLimiter.CheckCheckoutRateLimit(ctx, owner.String())
	if err != nil {
		// the limiter is advisory; checkout proceeds without it
		middleware.LoggerFromContext(ctx).Error("Checkout rate limit check failed", slog.String("error", err.Error()))
		return nil
	}

	if !allowed {
		return appErrors.TooManyRequestsError("Too many checkout attempts").
			WithDetail(fmt.Sprintf("retry_after=%d", retryAfter))
	}

	return nil
}

// resolveProducts fetches every distinct product once and checks that each
// can cover the summed quantity of its lines.
func (s *orderService) resolveProducts(ctx context.Context, lines []models.CartLine) (map[int64]*models.Product, error) {
	ids := make([]int64, 0, len(lines))
	wanted := make(map[int64]int, len(lines))

	for _, line := range lines {
		if _, seen := wanted[line.ProductID]; !seen {
			ids = append(ids, line.ProductID)
		}

		wanted[line.ProductID] += line.Quantity
	}

	products, _, err := catalog.FetchAll(ctx, s.catalog, ids, s.cfg.CatalogConcurrency)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, appErrors.TimeoutError("Catalog lookup timed out, please retry").WithError(err)
		}

		return nil, appErrors.ThirdPartyError("Catalog is unavailable, please retry").WithError(err)
	}

	for _, id := range ids {
		product, ok := products[id]
		if !ok || !product.Active || product.Stock < wanted[id] {
			return nil, appErrors.ProductUnavailableError(id)
		}
	}

	return products, nil
}

// buildOrder snapshots each line at the fetched price, in cart order, and
// totals the order from the same prices.
func buildOrder(owner models.OwnerKey, billing models.BillingInfo, method models.PaymentMethod,
	lines []models.CartLine, products map[int64]*models.Product,
) *models.Order {
	orderID := uuid.New()
	prices := make(map[int64]decimal.Decimal, len(products))
	items := make([]models.OrderItem, 0, len(lines))

	for _, line := range lines {
		product := products[line.ProductID]
		price := models.NewMoney(product.Price)
		prices[line.ProductID] = price.Decimal

		items = append(items, models.OrderItem{
			ID:           uuid.New(),
			OrderID:      orderID,
			ProductID:    line.ProductID,
			ProductName:  product.Name,
			ProductPrice: price,
			Quantity:     line.Quantity,
			Size:         line.Size,
			Color:        line.Color,
		})
	}

	subtotal, shipping, tax, total := pricing.Price(lines, prices).Rounded()

	return &models.Order{
		ID:            orderID,
		OwnerKind:     owner.Kind(),
		OwnerID:       owner.ID(),
		BillingInfo:   billing,
		PaymentMethod: method,
		Subtotal:      subtotal,
		Shipping:      shipping,
		Tax:           tax,
		Total:         total,
		Status:        models.OrderStatusPending,
		Items:         items,
	}
}

// clearCart takes the ordered lines out of the cart. Lines added or grown
// since the snapshot keep the difference. A failure leaves stale lines behind
// but never undoes the order.
func (s *orderService) clearCart(ctx context.Context, owner models.OwnerKey, orderID uuid.UUID, snapshot []models.CartLine) {
	if err := s.carts.RemoveLines(ctx, owner, snapshot); err != nil {
		metrics.CartClearFailures.Inc()
		middleware.LoggerFromContext(ctx).Error("Failed to clear cart after order commit",
			slog.String("orderId", orderID.String()),
			slog.String("error", err.Error()))
	}
}

func (s *orderService) notify(ctx context.Context, order *models.Order) {
	if s.notifier == nil {
		return
	}

	logger := middleware.LoggerFromContext(ctx)
	notifyCtx := context.WithoutCancel(ctx)

	go func() {
		ctx, cancel := context.WithTimeout(notifyCtx, notifyTimeout)
		defer cancel()

		if err := s.notifier.NotifyOrderCreated(ctx, order); err != nil {
			logger.Error("Failed to send order confirmation",
				slog.String("orderId", order.ID.String()),
				slog.String("error", err.Error()))
		}
	}()
}

func sanitizeBilling(b models.BillingInfo) models.BillingInfo {
	return models.BillingInfo{
		Email:     utils.SanitizeText(b.Email),
		FirstName: utils.SanitizeText(b.FirstName),
		LastName:  utils.SanitizeText(b.LastName),
		Phone:     utils.SanitizeText(b.Phone),
		Address:   utils.SanitizeText(b.Address),
		City:      utils.SanitizeText(b.City),
		State:     utils.SanitizeText(b.State),
		ZipCode:   utils.SanitizeText(b.ZipCode),
	}
}

func (s *orderService) GetOrder(ctx context.Context, owner models.OwnerKey, id uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, appErrors.NotFoundError("Order not found").WithError(err)
		}

		return nil, appErrors.DatabaseError("Failed to fetch order").WithError(err)
	}

	// another owner's order is indistinguishable from a missing one
	if order.Owner() != owner {
		return nil, appErrors.NotFoundError("Order not found")
	}

	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, owner models.OwnerKey, page, size int) (*models.PaginatedResponse, error) {
	page, size = normalizePage(page, size)

	orders, total, err := s.orders.ListOrdersByOwner(ctx, owner, page, size)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to fetch orders").WithError(err)
	}

	return &models.PaginatedResponse{Data: orders, Total: total, Page: page, PageSize: size}, nil
}

func (s *orderService) ListAllOrders(ctx context.Context, page, size int) (*models.PaginatedResponse, error) {
	page, size = normalizePage(page, size)

	orders, total, err := s.orders.ListOrders(ctx, page, size)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to fetch orders").WithError(err)
	}

	return &models.PaginatedResponse{Data: orders, Total: total, Page: page, PageSize: size}, nil
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	if err := s.validate.Var(status, "required,oneof=pending confirmed shipping delivered cancelled"); err != nil {
		return nil, appErrors.AddValidationError("status", "unknown order status")
	}

	if err := s.orders.UpdateOrderStatus(ctx, id, status); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, appErrors.NotFoundError("Order not found").WithError(err)
		}

		return nil, appErrors.DatabaseError("Failed to update order status").WithError(err)
	}

	order, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to fetch order").WithError(err)
	}

	middleware.LoggerFromContext(ctx).Info("Order status updated",
		slog.String("orderId", id.String()),
		slog.String("status", string(status)))

	return order, nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}

	if size < 1 || size > 100 {
		size = 10
	}

	return page, size
}
