// Package pricing computes cart and order totals from line quantities and
// catalog unit prices. It is pure: no I/O and no clock.
package pricing

import (
	"github.com/aaravmahajanofficial/storefront-checkout/internal/models"
	"github.com/shopspring/decimal"
)

var (
	FreeShippingThreshold = decimal.RequireFromString("75.00")
	FlatShipping          = decimal.RequireFromString("9.99")
	TaxRate               = decimal.RequireFromString("0.08")
)

// Totals are unrounded until Rounded is called.
type Totals struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal

	// Unpriced lists product ids that had no price and contributed zero.
	Unpriced []int64
}

// Price totals the lines using prices keyed by product id.
func Price(lines []models.CartLine, prices map[int64]decimal.Decimal) Totals {
	subtotal := decimal.Zero

	var unpriced []int64

	seen := make(map[int64]bool)

	for _, line := range lines {
		price, ok := prices[line.ProductID]
		if !ok {
			if !seen[line.ProductID] {
				seen[line.ProductID] = true
				unpriced = append(unpriced, line.ProductID)
			}

			continue
		}

		subtotal = subtotal.Add(LineTotal(price, line.Quantity))
	}

	return FromSubtotal(subtotal, unpriced)
}

func LineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// FromSubtotal applies the shipping and tax rules to a subtotal.
func FromSubtotal(subtotal decimal.Decimal, unpriced []int64) Totals {
	shipping := FlatShipping
	if subtotal.GreaterThan(FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	tax := subtotal.Mul(TaxRate)

	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax),
		Unpriced: unpriced,
	}
}

// Rounded returns the totals rounded half away from zero to cents. Total is
// the sum of the rounded parts.
func (t Totals) Rounded() (subtotal, shipping, tax, total models.Money) {
	subtotal = models.NewMoney(t.Subtotal)
	shipping = models.NewMoney(t.Shipping)
	tax = models.NewMoney(t.Tax)
	total = models.NewMoney(subtotal.Add(shipping.Decimal).Add(tax.Decimal))

	return subtotal, shipping, tax, total
}
