// Package domain contains the core domain types and validation logic.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// Name validation errors
	ErrNameRequired = errors.New("name is required")
	ErrNameTooShort = errors.New("name must be at least 2 characters")
	ErrNameTooLong  = errors.New("name must be at most 120 characters")

	// Price validation errors
	ErrPriceNegative = errors.New("price cannot be negative")

	// Ownership errors
	ErrSellerRequired = errors.New("seller is required")

	// Slug errors
	ErrSlugEmpty = errors.New("name does not produce a usable slug")
)

// =============================================================================
// Product
// =============================================================================

// Product is a catalog entry a seller offers in the storefront.
// ImageRef is opaque to the service; it is whatever the seller stored.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description,omitempty"`
	ImageRef    string          `json:"image_ref,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category,omitempty"`
	SellerID    string          `json:"seller_id"`
	Published   bool            `json:"published"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewProduct creates a validated, unpublished product owned by sellerID.
func NewProduct(name string, price decimal.Decimal, sellerID string) (*Product, error) {
	name = strings.TrimSpace(name)
	if err := ValidateProductName(name); err != nil {
		return nil, err
	}
	if err := ValidatePrice(price); err != nil {
		return nil, err
	}
	if sellerID == "" {
		return nil, ErrSellerRequired
	}

	slug := Slugify(name)
	if slug == "" {
		return nil, ErrSlugEmpty
	}

	now := time.Now().UTC()
	return &Product{
		ID:        uuid.NewString(),
		Name:      name,
		Slug:      slug,
		Price:     price,
		SellerID:  sellerID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Rename changes the product name and re-derives its slug.
func (p *Product) Rename(name string) error {
	name = strings.TrimSpace(name)
	if err := ValidateProductName(name); err != nil {
		return err
	}
	slug := Slugify(name)
	if slug == "" {
		return ErrSlugEmpty
	}
	p.Name = name
	p.Slug = slug
	return nil
}

// CategorySlug is the URL key of the product's category page.
func (p Product) CategorySlug() string {
	return Slugify(p.Category)
}

// =============================================================================
// Validation
// =============================================================================

// ValidateProductName checks length bounds on a trimmed product name.
func ValidateProductName(name string) error {
	if name == "" {
		return ErrNameRequired
	}
	n := len([]rune(name))
	if n < 2 {
		return ErrNameTooShort
	}
	if n > 120 {
		return ErrNameTooLong
	}
	return nil
}

// ValidatePrice rejects negative amounts. Zero is allowed (free items).
func ValidatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrPriceNegative
	}
	return nil
}

// =============================================================================
// Category
// =============================================================================

// Category is a derived grouping of published products.
type Category struct {
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Count int    `json:"count"`
}
