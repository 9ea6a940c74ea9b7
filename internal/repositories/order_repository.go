package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aaravmahajanofficial/storefront-checkout/internal/models"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var ErrOrderNotFound = errors.New("order not found")

type OrderRepository interface {
	// CreateOrder writes the header, its items and the outbox event in one
	// transaction. Nothing is visible unless all of it is.
	CreateOrder(ctx context.Context, order *models.Order, event *models.OutboxEvent) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrdersByOwner(ctx context.Context, owner models.OwnerKey, page, size int) ([]*models.Order, int, error)
	ListOrders(ctx context.Context, page, size int) ([]*models.Order, int, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) error
}

type orderRepository struct {
	DB *sql.DB
}

func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{DB: db}
}

const orderColumns = `id, owner_kind, owner_id, email, first_name, last_name, phone, address, city, state, zip_code,
	payment_method, subtotal, shipping, tax, total, status, created_at, updated_at`

func (r *orderRepository) CreateOrder(ctx context.Context, order *models.Order, event *models.OutboxEvent) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin order transaction: %w", err)
	}
	defer tx.Rollback()

	orderQuery := `
		INSERT INTO orders (id, owner_kind, owner_id, email, first_name, last_name, phone, address, city, state, zip_code,
			payment_method, subtotal, shipping, tax, total, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	b := order.BillingInfo

	err = tx.QueryRowContext(ctx, orderQuery,
		order.ID, order.OwnerKind, order.OwnerID,
		b.Email, b.FirstName, b.LastName, b.Phone, b.Address, b.City, b.State, b.ZipCode,
		order.PaymentMethod, order.Subtotal, order.Shipping, order.Tax, order.Total, order.Status,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, position, product_id, product_name, product_price, quantity, size, color)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID

		_, err := tx.ExecContext(ctx, itemQuery,
			item.ID, order.ID, i, item.ProductID, item.ProductName, item.ProductPrice, item.Quantity,
			models.Variant(item.Size), models.Variant(item.Color))
		if err != nil {
			return fmt.Errorf("failed to insert an order item: %w", err)
		}
	}

	if event != nil {
		eventQuery := `
			INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
			VALUES ($1, $2, $3, NOW())
			RETURNING id, created_at
		`

		// JSONB takes the text form; pq would send []byte as bytea.
		err := tx.QueryRowContext(ctx, eventQuery, event.AggregateID, event.EventType, string(event.Payload)).
			Scan(&event.ID, &event.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert outbox event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}

	return nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.DB.QueryRowContext(dbCtx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		return nil, fmt.Errorf("failed to get the order: %w", err)
	}

	if err := r.attachItems(dbCtx, []*models.Order{order}); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *orderRepository) ListOrdersByOwner(ctx context.Context, owner models.OwnerKey, page, size int) ([]*models.Order, int, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	var total int

	countQuery := `SELECT COUNT(*) FROM orders WHERE owner_kind = $1 AND owner_id = $2`
	if err := r.DB.QueryRowContext(dbCtx, countQuery, owner.Kind(), owner.ID()).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE owner_kind = $1 AND owner_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	orders, err := r.queryOrders(dbCtx, query, owner.Kind(), owner.ID(), size, (page-1)*size)
	if err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *orderRepository) ListOrders(ctx context.Context, page, size int) ([]*models.Order, int, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	var total int
	if err := r.DB.QueryRowContext(dbCtx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := `SELECT ` + orderColumns + `
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	orders, err := r.queryOrders(dbCtx, query, size, (page-1)*size)
	if err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *orderRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.DB.ExecContext(dbCtx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

func (r *orderRepository) queryOrders(ctx context.Context, query string, args ...any) ([]*models.Order, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*models.Order{}

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan the orders: %w", err)
		}

		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

// attachItems loads the items of every order in one query, in line order.
func (r *orderRepository) attachItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, 0, len(orders))
	byID := make(map[uuid.UUID]*models.Order, len(orders))

	for _, o := range orders {
		ids = append(ids, o.ID.String())
		byID[o.ID] = o
		o.Items = []models.OrderItem{}
	}

	query := `
		SELECT id, order_id, product_id, product_name, product_price, quantity, size, color
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position
	`

	rows, err := r.DB.QueryContext(ctx, query, pq.StringArray(ids))
	if err != nil {
		return fmt.Errorf("failed to get the order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item        models.OrderItem
			size, color string
		)

		err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.ProductPrice.Decimal, &item.Quantity, &size, &color)
		if err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}

		item.Size = models.OptionalVariant(size)
		item.Color = models.OptionalVariant(color)

		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate order items: %w", err)
	}

	return nil
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		o models.Order
		b = &o.BillingInfo
	)

	err := row.Scan(&o.ID, &o.OwnerKind, &o.OwnerID,
		&b.Email, &b.FirstName, &b.LastName, &b.Phone, &b.Address, &b.City, &b.State, &b.ZipCode,
		&o.PaymentMethod, &o.Subtotal.Decimal, &o.Shipping.Decimal, &o.Tax.Decimal, &o.Total.Decimal,
		&o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &o, nil
}
