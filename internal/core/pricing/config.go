// Package pricing computes checkout summaries.
//
// Everything here is pure: Calculate takes the cart lines, the chosen
// shipping option and a Config, and returns a fresh Summary. There is no
// hidden state, so identical inputs always produce identical output.
package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// Shipping Options
// =============================================================================

// Shipping is the closed set of shipping options.
type Shipping string

const (
	// ShippingStandard is free when the subtotal reaches the threshold.
	ShippingStandard Shipping = "standard"
	// ShippingExpress always costs ExpressCost.
	ShippingExpress Shipping = "express"
)

// ErrUnknownShipping is returned when parsing an unknown shipping option.
var ErrUnknownShipping = errors.New("unknown shipping option")

// ParseShipping converts a string to a Shipping option.
func ParseShipping(s string) (Shipping, error) {
	opt := Shipping(strings.ToLower(strings.TrimSpace(s)))
	if !opt.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownShipping, s)
	}
	return opt, nil
}

// IsValid checks if the option is a known shipping option.
func (s Shipping) IsValid() bool {
	return s == ShippingStandard || s == ShippingExpress
}

// =============================================================================
// Tax Modes
// =============================================================================

// TaxMode selects how taxes are derived from the subtotal.
type TaxMode string

const (
	// TaxModeRate charges subtotal × TaxRate.
	TaxModeRate TaxMode = "rate"
	// TaxModeFlat charges FlatTax on any non-empty cart.
	TaxModeFlat TaxMode = "flat"
)

// =============================================================================
// Config
// =============================================================================

// ErrInvalidConfig wraps every Config validation failure.
var ErrInvalidConfig = errors.New("invalid pricing config")

// Config parameterizes the summary calculation for one deployment.
type Config struct {
	FreeShippingThreshold decimal.Decimal
	StandardCost          decimal.Decimal
	ExpressCost           decimal.Decimal
	TaxMode               TaxMode
	TaxRate               decimal.Decimal // used when TaxMode is rate
	FlatTax               decimal.Decimal // used when TaxMode is flat
	MinorUnits            int32           // decimal places taxes are rounded to
}

// DefaultConfig returns the storefront's standard pricing.
func DefaultConfig() Config {
	return Config{
		FreeShippingThreshold: decimal.RequireFromString("200.00"),
		StandardCost:          decimal.RequireFromString("20.00"),
		ExpressCost:           decimal.RequireFromString("15.00"),
		TaxMode:               TaxModeRate,
		TaxRate:               decimal.RequireFromString("0.10"),
		FlatTax:               decimal.Zero,
		MinorUnits:            2,
	}
}

// Validate checks the config for negative amounts and an unknown tax mode.
func (c Config) Validate() error {
	amounts := []struct {
		name  string
		value decimal.Decimal
	}{
		{"free_shipping_threshold", c.FreeShippingThreshold},
		{"standard_cost", c.StandardCost},
		{"express_cost", c.ExpressCost},
		{"tax_rate", c.TaxRate},
		{"flat_tax", c.FlatTax},
	}
	for _, a := range amounts {
		if a.value.IsNegative() {
			return fmt.Errorf("%w: %s cannot be negative", ErrInvalidConfig, a.name)
		}
	}

	switch c.TaxMode {
	case TaxModeRate:
		if c.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("%w: tax_rate must be a fraction between 0 and 1", ErrInvalidConfig)
		}
	case TaxModeFlat:
	default:
		return fmt.Errorf("%w: tax_mode must be %q or %q, got %q", ErrInvalidConfig, TaxModeRate, TaxModeFlat, c.TaxMode)
	}

	if c.MinorUnits < 0 || c.MinorUnits > 8 {
		return fmt.Errorf("%w: minor_units must be between 0 and 8", ErrInvalidConfig)
	}
	return nil
}
