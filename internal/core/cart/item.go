// Package cart holds the shopping cart state container.
//
// A Store keeps an ordered list of line items in memory and mirrors it to a
// single durable slot after every change. Storage is injected; a Store built
// without storage works purely in memory.
package cart

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// KeyNamespace prefixes every persisted cart slot.
const KeyNamespace = "storefront.cart"

// Key returns the slot key for the cart identified by token.
func Key(token string) string {
	return KeyNamespace + "/" + token
}

// =============================================================================
// Types
// =============================================================================

// Product is the catalog data a line item is built from.
type Product struct {
	ID          string
	Name        string
	Description string
	ImageRef    string
	UnitPrice   decimal.Decimal
}

// LineItem is one distinct product in the cart.
type LineItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	ImageRef    string          `json:"imageRef,omitempty"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
}

// Total is UnitPrice × Quantity.
func (l LineItem) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// =============================================================================
// Quantity Clamping
// =============================================================================

const (
	// MinQuantity is the quantity floor for every line item.
	MinQuantity = 1
	// MaxQuantity is the quantity ceiling for every line item.
	MaxQuantity = 9999
)

// ClampQuantity limits n to [MinQuantity, MaxQuantity].
func ClampQuantity(n int) int {
	switch {
	case n < MinQuantity:
		return MinQuantity
	case n > MaxQuantity:
		return MaxQuantity
	}
	return n
}

// addQuantity returns q + delta saturated at MaxQuantity.
// Both arguments must already lie in [MinQuantity, MaxQuantity].
func addQuantity(q, delta int) int {
	if delta > MaxQuantity-q {
		return MaxQuantity
	}
	return q + delta
}

// ParseQuantity converts raw user input to a quantity.
// Non-numeric, zero and negative input clamp to MinQuantity; numbers past
// MaxQuantity, including ones too large for an int, clamp to MaxQuantity.
func ParseQuantity(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return MinQuantity
	}
	return ClampQuantity(n)
}

// =============================================================================
// Snapshot Validation
// =============================================================================

var errBadSnapshot = errors.New("incompatible cart snapshot")

// validateSnapshot checks a decoded payload against the line item invariants.
func validateSnapshot(items []LineItem) error {
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		if item.ID == "" {
			return fmt.Errorf("%w: item %d has no id", errBadSnapshot, i)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", errBadSnapshot, item.ID)
		}
		seen[item.ID] = struct{}{}
		if item.Quantity < MinQuantity {
			return fmt.Errorf("%w: item %q has quantity %d", errBadSnapshot, item.ID, item.Quantity)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %q has negative price", errBadSnapshot, item.ID)
		}
	}
	return nil
}
