package handlers

import (
	"log/slog"
	"net/http"

	"github.com/aaravmahajanofficial/storefront-checkout/internal/api/middleware"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/errors"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/models"
	service "github.com/aaravmahajanofficial/storefront-checkout/internal/services"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/utils"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/utils/response"
	"github.com/go-playground/validator/v10"
)

type CartHandler struct {
	cartService service.CartService
	validator   *validator.Validate
}

func NewCartHandler(cartService service.CartService) *CartHandler {
	return &CartHandler{cartService: cartService, validator: validator.New()}
}

// requireOwner reads the owner placed in the context by identity
// resolution, writing the error response when there is none.
func requireOwner(w http.ResponseWriter, r *http.Request) (models.OwnerKey, bool) {
	owner, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		middleware.LoggerFromContext(r.Context()).Warn("Request reached handler without an owner")
		response.Error(w, errors.IdentityMissingError("A bearer token or session id is required"))

		return models.OwnerKey{}, false
	}

	return owner, true
}

// AddItem godoc
//	@Summary		Add an item to the cart
//	@Description	Adds a product line to the caller's cart. A line with the same product and variant has its quantity increased.
//	@Tags			Cart
//	@Accept			json
//	@Produce		json
//	@Param			item	body		models.AddItemRequest	true	"Product, quantity and optional variant"
//	@Success		201		{object}	models.CartLine			"Resulting cart line"
//	@Failure		400		{object}	response.ErrorResponse	"Invalid quantity or request body"
//	@Failure		401		{object}	response.ErrorResponse	"No bearer token or session id"
//	@Failure		504		{object}	response.ErrorResponse	"Cart is busy"
//	@Security		BearerAuth
//	@Security		SessionID
//	@Router			/cart [post]
func (h *CartHandler) AddItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		owner, ok := requireOwner(w, r)
		if !ok {
			return
		}

		var req models.AddItemRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid add item input")
			return
		}

		line, err := h.cartService.AddItem(r.Context(), owner, &req)
		if err != nil {
			logger.Error("Failed to add cart item", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusCreated, line)
	}
}

// UpdateQuantity godoc
//	@Summary		Set a cart line quantity
//	@Tags			Cart
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string							true	"Cart line ID"	Format(uuid)
//	@Param			quantity	body		models.UpdateQuantityRequest	true	"New quantity"
//	@Success		200			{object}	models.CartLine
//	@Failure		400			{object}	response.ErrorResponse	"Invalid quantity or line id"
//	@Failure		404			{object}	response.ErrorResponse	"Line not in the caller's cart"
//	@Security		BearerAuth
//	@Security		SessionID
//	@Router			/cart/{id} [put]
func (h *CartHandler) UpdateQuantity() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		owner, ok := requireOwner(w, r)
		if !ok {
			return
		}

		lineID, err := utils.ParseID(r, "id")
		if err != nil {
			logger.Warn("Invalid cart line id", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		var req models.UpdateQuantityRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			return
		}

		line, err := h.cartService.UpdateQuantity(r.Context(), owner, lineID, req.Quantity)
		if err != nil {
			logger.Error("Failed to update cart line", slog.String("lineId", lineID.String()), slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, line)
	}
}

// RemoveItem godoc
//	@Summary		Remove a cart line
//	@Description	Removing a line that is not in the cart succeeds.
//	@Tags			Cart
//	@Param			id	path	string	true	"Cart line ID"	Format(uuid)
//	@Success		204
//	@Failure		400	{object}	response.ErrorResponse	"Invalid line id"
//	@Security		BearerAuth
//	@Security		SessionID
//	@Router			/cart/{id} [delete]
func (h *CartHandler) RemoveItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		owner, ok := requireOwner(w, r)
		if !ok {
			return
		}

		lineID, err := utils.ParseID(r, "id")
		if err != nil {
			response.Error(w, err)
			return
		}

		if err := h.cartService.RemoveItem(r.Context(), owner, lineID); err != nil {
			logger.Error("Failed to remove cart line", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.NoContent(w)
	}
}

// ClearCart godoc
//	@Summary	Empty the cart
//	@Tags		Cart
//	@Success	204
//	@Security	BearerAuth
//	@Security	SessionID
//	@Router		/cart [delete]
func (h *CartHandler) ClearCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := requireOwner(w, r)
		if !ok {
			return
		}

		if err := h.cartService.ClearCart(r.Context(), owner); err != nil {
			middleware.LoggerFromContext(r.Context()).Error("Failed to clear cart", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.NoContent(w)
	}
}

// ListCart godoc
//	@Summary	List cart lines in insertion order
//	@Tags		Cart
//	@Produce	json
//	@Success	200	{array}	models.CartLine
//	@Security	BearerAuth
//	@Security	SessionID
//	@Router		/cart [get]
func (h *CartHandler) ListCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := requireOwner(w, r)
		if !ok {
			return
		}

		lines, err := h.cartService.ListCart(r.Context(), owner)
		if err != nil {
			middleware.LoggerFromContext(r.Context()).Error("Failed to list cart", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, lines)
	}
}

// Summary godoc
//	@Summary		Price the cart
//	@Description	Totals the cart at current catalog prices. Unavailable products are listed and contribute nothing.
//	@Tags			Cart
//	@Produce		json
//	@Success		200	{object}	models.CartSummary
//	@Failure		502	{object}	response.ErrorResponse	"Catalog unavailable"
//	@Security		BearerAuth
//	@Security		SessionID
//	@Router			/cart/summary [get]
func (h *CartHandler) Summary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := requireOwner(w, r)
		if !ok {
			return
		}

		summary, err := h.cartService.Summary(r.Context(), owner)
		if err != nil {
			middleware.LoggerFromContext(r.Context()).Error("Failed to price cart", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, summary)
	}
}

// MergeCarts godoc
//	@Summary		Merge the session cart into the signed in user's cart
//	@Description	Requires both a bearer token and a session id. Quantities of matching lines are added.
//	@Tags			Cart
//	@Produce		json
//	@Success		200	{array}		models.CartLine			"Resulting user cart"
//	@Failure		400	{object}	response.ErrorResponse	"Invalid session id or quantity limit exceeded"
//	@Failure		401	{object}	response.ErrorResponse	"Missing bearer token or session id"
//	@Security		BearerAuth
//	@Security		SessionID
//	@Router			/cart/merge [post]
func (h *CartHandler) MergeCarts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		owner, ok := requireOwner(w, r)
		if !ok {
			return
		}

		if !owner.IsUser() {
			response.Error(w, errors.UnauthorizedError("Sign in to merge a session cart"))
			return
		}

		sessionID, present, err := middleware.SessionFromRequest(r)
		if err != nil {
			response.Error(w, err)
			return
		}

		if !present {
			response.Error(w, errors.IdentityMissingError("A session id is required to merge carts"))
			return
		}

		lines, err := h.cartService.MergeCarts(r.Context(), models.SessionOwner(sessionID), owner)
		if err != nil {
			logger.Error("Failed to merge carts", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, lines)
	}
}
