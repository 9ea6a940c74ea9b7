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

var (
	ErrLineNotFound  = errors.New("cart line not found")
	ErrQuantityLimit = errors.New("cart line quantity out of range")
)

// pq check_violation
const checkViolation = "23514"

type CartRepository interface {
	// AddItem inserts the line or adds its quantity to the existing line
	// with the same product, size and color, in one statement.
	AddItem(ctx context.Context, owner models.OwnerKey, line *models.CartLine) (*models.CartLine, error)
	UpdateQuantity(ctx context.Context, owner models.OwnerKey, lineID uuid.UUID, quantity int) (*models.CartLine, error)
	RemoveItem(ctx context.Context, owner models.OwnerKey, lineID uuid.UUID) error
	Clear(ctx context.Context, owner models.OwnerKey) error
	// RemoveLines takes each snapshot line's quantity off the stored line
	// with the same id, deleting lines that reach zero. Lines added or grown
	// after the snapshot keep whatever the snapshot did not account for.
	RemoveLines(ctx context.Context, owner models.OwnerKey, snapshot []models.CartLine) error
	// List returns the owner's lines in insertion order.
	List(ctx context.Context, owner models.OwnerKey) ([]models.CartLine, error)
	// Merge folds every line of from into to with AddItem semantics and
	// empties from, atomically.
	Merge(ctx context.Context, from, to models.OwnerKey) error
}

type cartRepository struct {
	DB *sql.DB
}

func NewCartRepo(db *sql.DB) CartRepository {
	return &cartRepository{DB: db}
}

func (r *cartRepository) AddItem(ctx context.Context, owner models.OwnerKey, line *models.CartLine) (*models.CartLine, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO cart_items (id, owner_kind, owner_id, product_id, quantity, size, color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (owner_kind, owner_id, product_id, size, color)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING id, product_id, quantity, size, color, created_at
	`

	row := r.DB.QueryRowContext(dbCtx, query,
		line.ID, owner.Kind(), owner.ID(), line.ProductID, line.Quantity,
		models.Variant(line.Size), models.Variant(line.Color))

	saved, err := scanCartLine(row)
	if err != nil {
		if isCheckViolation(err) {
			return nil, ErrQuantityLimit
		}

		return nil, fmt.Errorf("failed to upsert cart line: %w", err)
	}

	return saved, nil
}

func (r *cartRepository) UpdateQuantity(ctx context.Context, owner models.OwnerKey, lineID uuid.UUID, quantity int) (*models.CartLine, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE cart_items
		SET quantity = $1, updated_at = NOW()
		WHERE id = $2 AND owner_kind = $3 AND owner_id = $4
		RETURNING id, product_id, quantity, size, color, created_at
	`

	saved, err := scanCartLine(r.DB.QueryRowContext(dbCtx, query, quantity, lineID, owner.Kind(), owner.ID()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLineNotFound
		}

		if isCheckViolation(err) {
			return nil, ErrQuantityLimit
		}

		return nil, fmt.Errorf("failed to update cart line: %w", err)
	}

	return saved, nil
}

func (r *cartRepository) RemoveItem(ctx context.Context, owner models.OwnerKey, lineID uuid.UUID) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `DELETE FROM cart_items WHERE id = $1 AND owner_kind = $2 AND owner_id = $3`

	if _, err := r.DB.ExecContext(dbCtx, query, lineID, owner.Kind(), owner.ID()); err != nil {
		return fmt.Errorf("failed to remove cart line: %w", err)
	}

	return nil
}

func (r *cartRepository) Clear(ctx context.Context, owner models.OwnerKey) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `DELETE FROM cart_items WHERE owner_kind = $1 AND owner_id = $2`

	if _, err := r.DB.ExecContext(dbCtx, query, owner.Kind(), owner.ID()); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	return nil
}

func (r *cartRepository) RemoveLines(ctx context.Context, owner models.OwnerKey, snapshot []models.CartLine) error {
	if len(snapshot) == 0 {
		return nil
	}

	ids := make(pq.StringArray, 0, len(snapshot))
	quantities := make(pq.Int64Array, 0, len(snapshot))

	for _, line := range snapshot {
		ids = append(ids, line.ID.String())
		quantities = append(quantities, int64(line.Quantity))
	}

	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	tx, err := r.DB.BeginTx(dbCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin remove transaction: %w", err)
	}
	defer tx.Rollback()

	deleteQuery := `
		DELETE FROM cart_items c
		USING unnest($3::uuid[], $4::int[]) AS s(id, qty)
		WHERE c.id = s.id AND c.owner_kind = $1 AND c.owner_id = $2 AND c.quantity <= s.qty
	`

	if _, err := tx.ExecContext(dbCtx, deleteQuery, owner.Kind(), owner.ID(), ids, quantities); err != nil {
		return fmt.Errorf("failed to delete ordered cart lines: %w", err)
	}

	reduceQuery := `
		UPDATE cart_items c
		SET quantity = c.quantity - s.qty, updated_at = NOW()
		FROM unnest($3::uuid[], $4::int[]) AS s(id, qty)
		WHERE c.id = s.id AND c.owner_kind = $1 AND c.owner_id = $2 AND c.quantity > s.qty
	`

	if _, err := tx.ExecContext(dbCtx, reduceQuery, owner.Kind(), owner.ID(), ids, quantities); err != nil {
		return fmt.Errorf("failed to reduce grown cart lines: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cart line removal: %w", err)
	}

	return nil
}

func (r *cartRepository) List(ctx context.Context, owner models.OwnerKey) ([]models.CartLine, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, product_id, quantity, size, color, created_at
		FROM cart_items
		WHERE owner_kind = $1 AND owner_id = $2
		ORDER BY created_at, seq
	`

	rows, err := r.DB.QueryContext(dbCtx, query, owner.Kind(), owner.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to list cart lines: %w", err)
	}
	defer rows.Close()

	lines := []models.CartLine{}

	for rows.Next() {
		line, err := scanCartLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}

		lines = append(lines, *line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cart lines: %w", err)
	}

	return lines, nil
}

func (r *cartRepository) Merge(ctx context.Context, from, to models.OwnerKey) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	tx, err := r.DB.BeginTx(dbCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin merge transaction: %w", err)
	}
	defer tx.Rollback()

	mergeQuery := `
		INSERT INTO cart_items (id, owner_kind, owner_id, product_id, quantity, size, color, created_at, updated_at)
		SELECT gen_random_uuid(), $1, $2, product_id, quantity, size, color, created_at, NOW()
		FROM cart_items
		WHERE owner_kind = $3 AND owner_id = $4
		ON CONFLICT (owner_kind, owner_id, product_id, size, color)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
	`

	if _, err := tx.ExecContext(dbCtx, mergeQuery, to.Kind(), to.ID(), from.Kind(), from.ID()); err != nil {
		if isCheckViolation(err) {
			return ErrQuantityLimit
		}

		return fmt.Errorf("failed to merge cart lines: %w", err)
	}

	deleteQuery := `DELETE FROM cart_items WHERE owner_kind = $1 AND owner_id = $2`

	if _, err := tx.ExecContext(dbCtx, deleteQuery, from.Kind(), from.ID()); err != nil {
		return fmt.Errorf("failed to delete merged cart lines: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cart merge: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCartLine(row rowScanner) (*models.CartLine, error) {
	var (
		line        models.CartLine
		size, color string
	)

	if err := row.Scan(&line.ID, &line.ProductID, &line.Quantity, &size, &color, &line.CreatedAt); err != nil {
		return nil, err
	}

	line.Size = models.OptionalVariant(size)
	line.Color = models.OptionalVariant(color)

	return &line, nil
}

func isCheckViolation(err error) bool {
	var pqErr *pq.Error

	return errors.As(err, &pqErr) && pqErr.Code == checkViolation
}
