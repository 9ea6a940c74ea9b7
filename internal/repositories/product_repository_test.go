package repository_test

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/catalog"
	repository "github.com/aaravmahajanofficial/storefront-checkout/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductRepository_GetProduct(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := repository.NewProductRepo(db)
	ctx := t.Context()
	query := regexp.QuoteMeta(`SELECT id, name, price, stock, active FROM products WHERE id = $1`)
	columns := []string{"id", "name", "price", "stock", "active"}

	var _ catalog.Gateway = repo

	t.Run("Success", func(t *testing.T) {
		// Arrange
		mock.ExpectQuery(query).WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(int64(7), "Linen Shirt", "30.00", 12, true))

		// Act
		product, err := repo.GetProduct(ctx, 7)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "Linen Shirt", product.Name)
		assert.Equal(t, "30.00", product.Price.StringFixed(2))
		assert.Equal(t, 12, product.Stock)
		assert.True(t, product.Active)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failure - Not Found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(int64(8)).WillReturnRows(sqlmock.NewRows(columns))

		_, err := repo.GetProduct(ctx, 8)

		assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	})

	t.Run("Failure - Database Error", func(t *testing.T) {
		dbErr := errors.New("connection refused")
		mock.ExpectQuery(query).WithArgs(int64(9)).WillReturnError(dbErr)

		_, err := repo.GetProduct(ctx, 9)

		require.ErrorIs(t, err, dbErr)
		assert.NotErrorIs(t, err, catalog.ErrProductNotFound)
	})
}
