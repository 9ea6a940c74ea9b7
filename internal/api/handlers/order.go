package handlers

import (
	"log/slog"
	"net/http"

	"github.com/aaravmahajanofficial/storefront-checkout/internal/api/middleware"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/models"
	service "github.com/aaravmahajanofficial/storefront-checkout/internal/services"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/utils"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/utils/response"
	"github.com/go-playground/validator/v10"
)

type OrderHandler struct {
	orderService service.OrderService
	validator    *validator.Validate
}

func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService, validator: validator.New()}
}

// CreateOrder godoc
//	@Summary		Place an order from the cart
//	@Description	Prices every cart line at the live catalog price, saves the order with its items and empties the cart. Nothing is saved when any step fails.
//	@Tags			Orders
//	@Accept			json
//	@Produce		json
//	@Param			order	body		models.CreateOrderRequest	true	"Billing details and payment method"
//	@Success		201		{object}	models.Order				"Created order"
//	@Failure		400		{object}	response.ErrorResponse		"Invalid billing information or payment method"
//	@Failure		401		{object}	response.ErrorResponse		"No bearer token or session id"
//	@Failure		409		{object}	response.ErrorResponse		"Empty cart or unavailable product"
//	@Failure		429		{object}	response.ErrorResponse		"Too many checkout attempts"
//	@Failure		503		{object}	response.ErrorResponse		"Order could not be saved, retry"
//	@Failure		504		{object}	response.ErrorResponse		"Cart busy or save timed out"
//	@Security		BearerAuth
//	@Security		SessionID
//	@Router			/orders [post]
func (h *OrderHandler) CreateOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		owner, ok := requireOwner(w, r)
		if !ok {
			return
		}

		var req models.CreateOrderRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid create order input")
			return
		}

		order, err := h.orderService.CreateOrder(r.Context(), owner, &req)
		if err != nil {
			logger.Error("Failed to create order", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusCreated, order)
	}
}

// GetOrder godoc
//	@Summary	Get one of the caller's orders
//	@Tags		Orders
//	@Produce	json
//	@Param		id	path		string	true	"Order ID"	Format(uuid)
//	@Success	200	{object}	models.Order
//	@Failure	400	{object}	response.ErrorResponse	"Invalid order id"
//	@Failure	404	{object}	response.ErrorResponse	"Order not found"
//	@Security	BearerAuth
//	@Security	SessionID
//	@Router		/orders/{id} [get]
func (h *OrderHandler) GetOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		owner, ok := requireOwner(w, r)
		if !ok {
			return
		}

		id, err := utils.ParseID(r, "id")
		if err != nil {
			logger.Warn("Invalid order id", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		order, err := h.orderService.GetOrder(r.Context(), owner, id)
		if err != nil {
			logger.Warn("Failed to get order", slog.String("orderId", id.String()), slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, order)
	}
}

// ListOrders godoc
//	@Summary	List the caller's orders, newest first
//	@Tags		Orders
//	@Produce	json
//	@Param		page		query		int	false	"Page number (default: 1)"				minimum(1)
//	@Param		pageSize	query		int	false	"Items per page (default: 10, max: 100)"	minimum(1)	maximum(100)
//	@Success	200			{object}	models.PaginatedResponse{Data=[]models.Order}
//	@Security	BearerAuth
//	@Security	SessionID
//	@Router		/orders [get]
func (h *OrderHandler) ListOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		owner, ok := requireOwner(w, r)
		if !ok {
			return
		}

		page, pageSize := utils.ParsePagination(r)

		orders, err := h.orderService.ListOrders(r.Context(), owner, page, pageSize)
		if err != nil {
			logger.Error("Failed to list orders", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, orders)
	}
}

// ListAllOrders godoc
//	@Summary	List every order (admin)
//	@Tags		Admin
//	@Produce	json
//	@Param		page		query		int	false	"Page number (default: 1)"				minimum(1)
//	@Param		pageSize	query		int	false	"Items per page (default: 10, max: 100)"	minimum(1)	maximum(100)
//	@Success	200			{object}	models.PaginatedResponse{Data=[]models.Order}
//	@Failure	401			{object}	response.ErrorResponse	"Authentication required"
//	@Failure	403			{object}	response.ErrorResponse	"Admin access required"
//	@Security	BearerAuth
//	@Router		/admin/orders [get]
func (h *OrderHandler) ListAllOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, pageSize := utils.ParsePagination(r)

		orders, err := h.orderService.ListAllOrders(r.Context(), page, pageSize)
		if err != nil {
			middleware.LoggerFromContext(r.Context()).Error("Failed to list all orders", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, orders)
	}
}

// UpdateOrderStatus godoc
//	@Summary	Update an order's status (admin)
//	@Tags		Admin
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string							true	"Order ID"	Format(uuid)
//	@Param		status	body		models.UpdateOrderStatusRequest	true	"New status"
//	@Success	200		{object}	models.Order
//	@Failure	400		{object}	response.ErrorResponse	"Invalid order id or status"
//	@Failure	403		{object}	response.ErrorResponse	"Admin access required"
//	@Failure	404		{object}	response.ErrorResponse	"Order not found"
//	@Security	BearerAuth
//	@Router		/admin/orders/{id}/status [patch]
func (h *OrderHandler) UpdateOrderStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		id, err := utils.ParseID(r, "id")
		if err != nil {
			logger.Warn("Invalid order id", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		var req models.UpdateOrderStatusRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid update order status input")
			return
		}

		order, err := h.orderService.UpdateOrderStatus(r.Context(), id, req.Status)
		if err != nil {
			logger.Error("Failed to update order status", slog.String("orderId", id.String()), slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, order)
	}
}
