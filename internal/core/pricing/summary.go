package pricing

import (
	"github.com/artpar/storefront/internal/core/cart"
	"github.com/shopspring/decimal"
)

// Summary is the derived checkout breakdown. It is never stored.
type Summary struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Taxes    decimal.Decimal
	Total    decimal.Decimal
	Option   Shipping
	Items    int // total units
}

// FreeShipping reports whether the standard-shipping waiver applied.
func (s Summary) FreeShipping() bool {
	return s.Option == ShippingStandard && s.Shipping.IsZero()
}

// Calculate derives the summary for items shipped with option under cfg.
// Any option other than express is priced as standard.
//
//	total = subtotal + shipping + taxes
func Calculate(items []cart.LineItem, option Shipping, cfg Config) Summary {
	if option != ShippingExpress {
		option = ShippingStandard
	}

	subtotal := Subtotal(items)
	shipping := ShippingCost(subtotal, option, cfg)
	taxes := Taxes(subtotal, len(items) == 0, cfg)

	units := 0
	for _, item := range items {
		units += item.Quantity
	}

	return Summary{
		Subtotal: subtotal,
		Shipping: shipping,
		Taxes:    taxes,
		Total:    subtotal.Add(shipping).Add(taxes),
		Option:   option,
		Items:    units,
	}
}

// Subtotal is the sum of unitPrice × quantity over items.
func Subtotal(items []cart.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Total())
	}
	return sum
}

// ShippingCost prices option for a cart with the given subtotal.
// Express never qualifies for the free-shipping waiver.
func ShippingCost(subtotal decimal.Decimal, option Shipping, cfg Config) decimal.Decimal {
	if option == ShippingExpress {
		return cfg.ExpressCost
	}
	if subtotal.GreaterThanOrEqual(cfg.FreeShippingThreshold) {
		return decimal.Zero
	}
	return cfg.StandardCost
}

// Taxes applies the configured tax mode. An empty cart is never taxed.
func Taxes(subtotal decimal.Decimal, empty bool, cfg Config) decimal.Decimal {
	if empty {
		return decimal.Zero
	}
	switch cfg.TaxMode {
	case TaxModeFlat:
		return cfg.FlatTax
	default:
		return subtotal.Mul(cfg.TaxRate).Round(cfg.MinorUnits)
	}
}
