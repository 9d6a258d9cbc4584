// Package checkout prepares the review step shown before payment.
//
// Review never blocks on missing data: an absent shipping option or address
// is rendered as a "not specified" placeholder with a warning, and the pay
// action is disabled until the data is there.
package checkout

import (
	"strings"

	"github.com/artpar/storefront/internal/core/cart"
	"github.com/artpar/storefront/internal/core/pricing"
)

// NotSpecified is the placeholder for missing checkout data.
const NotSpecified = "not specified"

// Warning messages surfaced with a Review.
const (
	WarnEmptyCart         = "cart is empty"
	WarnNoShipping        = "shipping option not specified"
	WarnNoAddress         = "shipping address not specified"
	WarnAddressIncomplete = "shipping address is incomplete"
)

// =============================================================================
// Address
// =============================================================================

// Address is a shipping destination. Line2 is optional.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Complete reports whether every required field is non-blank.
func (a Address) Complete() bool {
	for _, f := range []string{a.Name, a.Line1, a.City, a.PostalCode, a.Country} {
		if strings.TrimSpace(f) == "" {
			return false
		}
	}
	return true
}

// String renders the address on one line, skipping blank fields.
func (a Address) String() string {
	parts := make([]string, 0, 6)
	for _, f := range []string{a.Name, a.Line1, a.Line2, a.City, a.PostalCode, a.Country} {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, ", ")
}

// =============================================================================
// Review
// =============================================================================

// Review is what the checkout page displays.
type Review struct {
	Items         []cart.LineItem
	Summary       pricing.Summary
	ShippingLabel string
	AddressLabel  string
	Warnings      []string
	CanPay        bool
}

// Prepare builds the review for items. A nil shipping option is priced as
// standard and labelled NotSpecified; a nil or incomplete address is
// labelled NotSpecified. The items slice is not modified.
func Prepare(items []cart.LineItem, shipping *pricing.Shipping, address *Address, cfg pricing.Config) Review {
	option := pricing.ShippingStandard
	shippingLabel := NotSpecified
	if shipping != nil && shipping.IsValid() {
		option = *shipping
		shippingLabel = string(*shipping)
	}

	var warnings []string
	if len(items) == 0 {
		warnings = append(warnings, WarnEmptyCart)
	}
	if shippingLabel == NotSpecified {
		warnings = append(warnings, WarnNoShipping)
	}

	addressLabel := NotSpecified
	switch {
	case address == nil:
		warnings = append(warnings, WarnNoAddress)
	case !address.Complete():
		warnings = append(warnings, WarnAddressIncomplete)
	default:
		addressLabel = address.String()
	}

	snapshot := make([]cart.LineItem, len(items))
	copy(snapshot, items)

	return Review{
		Items:         snapshot,
		Summary:       pricing.Calculate(items, option, cfg),
		ShippingLabel: shippingLabel,
		AddressLabel:  addressLabel,
		Warnings:      warnings,
		CanPay:        len(warnings) == 0,
	}
}
