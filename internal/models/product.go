package models

import "github.com/shopspring/decimal"

// Product is the catalog's read-only view of a sellable item.
type Product struct {
	ID     int64           `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Stock  int             `json:"stock"`
	Active bool            `json:"active"`
}
