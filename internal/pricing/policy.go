package pricing

import (
	"github.com/aaravmahajanofficial/dual-tier-cart/internal/config"
	"github.com/aaravmahajanofficial/dual-tier-cart/internal/models"
	"github.com/shopspring/decimal"
)

// None charges neither tax nor shipping.
func None(decimal.Decimal) models.Charges {
	return models.Charges{Tax: decimal.Zero, Shipping: decimal.Zero}
}

// FlatRate applies a proportional tax rate and a flat shipping fee that is
// waived at or above freeShippingOver. An empty cart is never charged.
func FlatRate(taxRate, shippingFee, freeShippingOver decimal.Decimal) models.ChargesFunc {
	return func(subtotal decimal.Decimal) models.Charges {
		if !subtotal.IsPositive() {
			return None(subtotal)
		}

		shipping := shippingFee
		if freeShippingOver.IsPositive() && subtotal.GreaterThanOrEqual(freeShippingOver) {
			shipping = decimal.Zero
		}

		return models.Charges{
			Tax:      subtotal.Mul(taxRate).Round(2),
			Shipping: shipping,
		}
	}
}

func FromConfig(cfg config.Pricing) models.ChargesFunc {
	return FlatRate(
		decimal.NewFromFloat(cfg.TaxRate),
		decimal.NewFromFloat(cfg.ShippingFee),
		decimal.NewFromFloat(cfg.FreeShippingThreshold),
	)
}
