package validation

import (
	"strings"

	"github.com/artpar/storefront/internal/core/domain"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Product Validation Functions
// =============================================================================

// ValidateProductFields validates the fields a seller submits for a product.
// price is the raw decimal string from the request.
//
// Example:
//
//	field, msg := ValidateProductFields("Linen Shirt", "49.90")
//	if field != "" {
//	    // Handle validation error
//	}
func ValidateProductFields(name, price string) (field, message string) {
	if err := domain.ValidateProductName(strings.TrimSpace(name)); err != nil {
		return "name", err.Error()
	}
	if domain.Slugify(name) == "" {
		return "name", domain.ErrSlugEmpty.Error()
	}
	if field, message := ValidatePrice(price); field != "" {
		return field, message
	}
	return "", ""
}

// ValidatePrice checks that price parses as a non-negative decimal with at
// most two decimal places.
func ValidatePrice(price string) (field, message string) {
	if strings.TrimSpace(price) == "" {
		return "price", "price is required"
	}
	d, err := decimal.NewFromString(strings.TrimSpace(price))
	if err != nil {
		return "price", "price must be a decimal number"
	}
	if err := domain.ValidatePrice(d); err != nil {
		return "price", err.Error()
	}
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return "price", "price must have at most two decimal places"
	}
	return "", ""
}

// =============================================================================
// Account Validation Functions
// =============================================================================

// ValidateSignupFields validates a new account request.
func ValidateSignupFields(email, password, name string) (field, message string) {
	if _, err := domain.NormalizeEmail(email); err != nil {
		return "email", err.Error()
	}
	if err := domain.ValidatePassword(password); err != nil {
		return "password", err.Error()
	}
	if strings.TrimSpace(name) == "" {
		return "name", "name is required"
	}
	return "", ""
}

// ValidateLoginFields checks that both credentials are present.
func ValidateLoginFields(email, password string) (field, message string) {
	if strings.TrimSpace(email) == "" {
		return "email", "email is required"
	}
	if password == "" {
		return "password", "password is required"
	}
	return "", ""
}
