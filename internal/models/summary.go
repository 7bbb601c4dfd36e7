package models

import "github.com/shopspring/decimal"

// Charges are the policy-computed amounts added on top of the item subtotal.
type Charges struct {
	Tax      decimal.Decimal
	Shipping decimal.Decimal
}

// ChargesFunc computes tax and shipping from a cart subtotal. It must be pure.
type ChargesFunc func(subtotal decimal.Decimal) Charges

func RecomputeItemSubtotal(item *CartItem) {
	item.Subtotal = item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
}

// RecomputeSummary rebuilds every derived field of the cart from its items.
// Applying it more than once yields the same result.
func RecomputeSummary(cart *Cart, charges ChargesFunc) {
	summary := OrderSummary{
		Subtotal: decimal.Zero,
		Tax:      decimal.Zero,
		Shipping: decimal.Zero,
	}

	for i := range cart.Items {
		RecomputeItemSubtotal(&cart.Items[i])
		summary.TotalItems++
		summary.TotalQuantity += cart.Items[i].Quantity
		summary.Subtotal = summary.Subtotal.Add(cart.Items[i].Subtotal)
	}

	if charges != nil {
		c := charges(summary.Subtotal)
		summary.Tax = c.Tax
		summary.Shipping = c.Shipping
	}

	summary.Total = summary.Subtotal.Add(summary.Tax).Add(summary.Shipping)
	cart.OrderSummary = summary
}
