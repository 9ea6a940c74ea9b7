package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aaravmahajanofficial/storefront-checkout/internal/api/middleware"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/catalog"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/config"
	appErrors "github.com/aaravmahajanofficial/storefront-checkout/internal/errors"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/lock"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/models"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/pricing"
	repository "github.com/aaravmahajanofficial/storefront-checkout/internal/repositories"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CartService interface {
	AddItem(ctx context.Context, owner models.OwnerKey, req *models.AddItemRequest) (*models.CartLine, error)
	UpdateQuantity(ctx context.Context, owner models.OwnerKey, lineID uuid.UUID, quantity int) (*models.CartLine, error)
	RemoveItem(ctx context.Context, owner models.OwnerKey, lineID uuid.UUID) error
	ClearCart(ctx context.Context, owner models.OwnerKey) error
	ListCart(ctx context.Context, owner models.OwnerKey) ([]models.CartLine, error)
	// Summary prices the cart for display. Prices may be cached and are
	// not the ones an order will be charged at.
	Summary(ctx context.Context, owner models.OwnerKey) (*models.CartSummary, error)
	// MergeCarts folds a session cart into a user cart additively and
	// returns the resulting user cart.
	MergeCarts(ctx context.Context, from, to models.OwnerKey) ([]models.CartLine, error)
}

type cartService struct {
	repo     repository.CartRepository
	locker   lock.Locker
	catalog  catalog.Gateway
	lockWait time.Duration
	fetchMax int
}

func NewCartService(repo repository.CartRepository, locker lock.Locker, gateway catalog.Gateway, cfg config.Checkout) CartService {
	return &cartService{
		repo:     repo,
		locker:   locker,
		catalog:  gateway,
		lockWait: cfg.LockWait,
		fetchMax: cfg.CatalogConcurrency,
	}
}

func validateQuantity(quantity int) error {
	if quantity < 1 || quantity > models.MaxLineQuantity {
		return appErrors.InvalidQuantityError(fmt.Sprintf("Quantity must be between 1 and %d", models.MaxLineQuantity))
	}

	return nil
}

func cleanVariant(v *string) *string {
	if v == nil {
		return nil
	}

	return models.OptionalVariant(utils.SanitizeText(*v))
}

func (s *cartService) AddItem(ctx context.Context, owner models.OwnerKey, req *models.AddItemRequest) (*models.CartLine, error) {
	if owner.IsZero() {
		return nil, appErrors.IdentityMissingError("Cart owner is required")
	}

	if err := validateQuantity(req.Quantity); err != nil {
		return nil, err
	}

	if req.ProductID <= 0 {
		return nil, appErrors.AddValidationError("product_id", "must be a positive id")
	}

	release, err := lockOwners(ctx, s.locker, s.lockWait, owner)
	if err != nil {
		return nil, err
	}
	defer release()

	line, err := s.repo.AddItem(ctx, owner, &models.CartLine{
		ID:        uuid.New(),
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Size:      cleanVariant(req.Size),
		Color:     cleanVariant(req.Color),
	})
	if err != nil {
		if errors.Is(err, repository.ErrQuantityLimit) {
			return nil, appErrors.InvalidQuantityError(fmt.Sprintf("Line quantity cannot exceed %d", models.MaxLineQuantity)).WithError(err)
		}

		return nil, appErrors.DatabaseError("Failed to add item to cart").WithError(err)
	}

	middleware.LoggerFromContext(ctx).Info("Cart line added",
		slog.String("lineId", line.ID.String()),
		slog.Int64("productId", line.ProductID),
		slog.Int("quantity", line.Quantity))

	return line, nil
}

func (s *cartService) UpdateQuantity(ctx context.Context, owner models.OwnerKey, lineID uuid.UUID, quantity int) (*models.CartLine, error) {
	if owner.IsZero() {
		return nil, appErrors.IdentityMissingError("Cart owner is required")
	}

	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	release, err := lockOwners(ctx, s.locker, s.lockWait, owner)
	if err != nil {
		return nil, err
	}
	defer release()

	line, err := s.repo.UpdateQuantity(ctx, owner, lineID, quantity)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLineNotFound):
			return nil, appErrors.LineNotFoundError("Cart line not found").WithError(err)
		case errors.Is(err, repository.ErrQuantityLimit):
			return nil, appErrors.InvalidQuantityError(fmt.Sprintf("Line quantity cannot exceed %d", models.MaxLineQuantity)).WithError(err)
		default:
			return nil, appErrors.DatabaseError("Failed to update cart line").WithError(err)
		}
	}

	return line, nil
}

func (s *cartService) RemoveItem(ctx context.Context, owner models.OwnerKey, lineID uuid.UUID) error {
	if owner.IsZero() {
		return appErrors.IdentityMissingError("Cart owner is required")
	}

	release, err := lockOwners(ctx, s.locker, s.lockWait, owner)
	if err != nil {
		return err
	}
	defer release()

	if err := s.repo.RemoveItem(ctx, owner, lineID); err != nil {
		return appErrors.DatabaseError("Failed to remove cart line").WithError(err)
	}

	return nil
}

func (s *cartService) ClearCart(ctx context.Context, owner models.OwnerKey) error {
	if owner.IsZero() {
		return appErrors.IdentityMissingError("Cart owner is required")
	}

	release, err := lockOwners(ctx, s.locker, s.lockWait, owner)
	if err != nil {
		return err
	}
	defer release()

	if err := s.repo.Clear(ctx, owner); err != nil {
		return appErrors.DatabaseError("Failed to clear cart").WithError(err)
	}

	return nil
}

func (s *cartService) ListCart(ctx context.Context, owner models.OwnerKey) ([]models.CartLine, error) {
	if owner.IsZero() {
		return nil, appErrors.IdentityMissingError("Cart owner is required")
	}

	lines, err := s.repo.List(ctx, owner)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to fetch cart").WithError(err)
	}

	return lines, nil
}

func (s *cartService) Summary(ctx context.Context, owner models.OwnerKey) (*models.CartSummary, error) {
	lines, err := s.ListCart(ctx, owner)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(lines))
	itemCount := 0

	for _, line := range lines {
		ids = append(ids, line.ProductID)
		itemCount += line.Quantity
	}

	products, _, err := catalog.FetchAll(ctx, s.catalog, ids, s.fetchMax)
	if err != nil {
		return nil, appErrors.ThirdPartyError("Catalog is unavailable").WithError(err)
	}

	prices := make(map[int64]decimal.Decimal, len(products))
	for id, product := range products {
		if product.Active {
			prices[id] = models.NewMoney(product.Price).Decimal
		}
	}

	totals := pricing.Price(lines, prices)
	subtotal, shipping, tax, total := totals.Rounded()

	return &models.CartSummary{
		Lines:                 lines,
		ItemCount:             itemCount,
		Subtotal:              subtotal,
		Shipping:              shipping,
		Tax:                   tax,
		Total:                 total,
		UnavailableProductIDs: totals.Unpriced,
	}, nil
}

func (s *cartService) MergeCarts(ctx context.Context, from, to models.OwnerKey) ([]models.CartLine, error) {
	if from.IsZero() || to.IsZero() {
		return nil, appErrors.IdentityMissingError("Both a session and a signed in user are required to merge carts")
	}

	if from.IsUser() || !to.IsUser() {
		return nil, appErrors.BadRequestError("Only a session cart can be merged into a user cart")
	}

	release, err := lockOwners(ctx, s.locker, s.lockWait, from, to)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.repo.Merge(ctx, from, to); err != nil {
		if errors.Is(err, repository.ErrQuantityLimit) {
			return nil, appErrors.InvalidQuantityError(fmt.Sprintf("Merged line quantity cannot exceed %d", models.MaxLineQuantity)).WithError(err)
		}

		return nil, appErrors.DatabaseError("Failed to merge carts").WithError(err)
	}

	lines, err := s.repo.List(ctx, to)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to fetch cart").WithError(err)
	}

	middleware.LoggerFromContext(ctx).Info("Session cart merged",
		slog.String("from", from.String()),
		slog.Int("lines", len(lines)))

	return lines, nil
}
