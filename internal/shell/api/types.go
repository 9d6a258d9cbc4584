package api

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/artpar/storefront/internal/core/cart"
	"github.com/artpar/storefront/internal/core/checkout"
	"github.com/artpar/storefront/internal/core/domain"
	"github.com/artpar/storefront/internal/core/pricing"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Request Types
// =============================================================================

// Quantity accepts a JSON number or a numeric string. Anything that is not
// a positive integer decodes as 1.
type Quantity int

// UnmarshalJSON implements json.Unmarshaler.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	*q = Quantity(cart.ParseQuantity(raw))
	return nil
}

// AddCartItemRequest is the request body for adding a product to the cart.
type AddCartItemRequest struct {
	ProductID string    `json:"product_id"`
	Quantity  *Quantity `json:"quantity,omitempty"`
}

// UpdateCartItemRequest is the request body for setting a line quantity.
type UpdateCartItemRequest struct {
	Quantity *Quantity `json:"quantity"`
}

// CheckoutReviewRequest is the request body for the checkout review.
type CheckoutReviewRequest struct {
	Shipping *string           `json:"shipping,omitempty"`
	Address  *checkout.Address `json:"address,omitempty"`
}

// SignupRequest is the request body for creating an account.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
}

// LoginRequest is the request body for logging in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// =============================================================================
// Response Types
// =============================================================================

// ProductResponse is the public view of a catalog product.
type ProductResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	ImageRef    string          `json:"image_ref"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ListProductsResponse is the response for listing catalog products.
type ListProductsResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// ListCategoriesResponse is the response for listing categories.
type ListCategoriesResponse struct {
	Categories []domain.Category `json:"categories"`
}

// SummaryResponse is the price breakdown of a cart.
type SummaryResponse struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Shipping     decimal.Decimal `json:"shipping"`
	Taxes        decimal.Decimal `json:"taxes"`
	Total        decimal.Decimal `json:"total"`
	Option       string          `json:"shipping_option"`
	FreeShipping bool            `json:"free_shipping"`
	Units        int             `json:"units"`
}

// CartResponse is the response for every cart operation.
type CartResponse struct {
	Items   []cart.LineItem `json:"items"`
	Count   int             `json:"count"`
	Summary SummaryResponse `json:"summary"`
	// Warning is set when the cart changed but could not be saved.
	Warning string `json:"warning,omitempty"`
}

// CheckoutReviewResponse is the checkout review page.
type CheckoutReviewResponse struct {
	Items    []cart.LineItem `json:"items"`
	Summary  SummaryResponse `json:"summary"`
	Shipping string          `json:"shipping"`
	Address  string          `json:"address"`
	Warnings []string        `json:"warnings"`
	CanPay   bool            `json:"can_pay"`
}

// UserResponse is the account view returned by the auth endpoints.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// =============================================================================
// Conversions
// =============================================================================

func productToResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		ImageRef:    p.ImageRef,
		Price:       p.Price,
		Category:    p.Category,
		CreatedAt:   p.CreatedAt,
	}
}

func summaryToResponse(s pricing.Summary) SummaryResponse {
	return SummaryResponse{
		Subtotal:     s.Subtotal,
		Shipping:     s.Shipping,
		Taxes:        s.Taxes,
		Total:        s.Total,
		Option:       string(s.Option),
		FreeShipping: s.FreeShipping(),
		Units:        s.Items,
	}
}

func reviewToResponse(r checkout.Review) CheckoutReviewResponse {
	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return CheckoutReviewResponse{
		Items:    nonNilItems(r.Items),
		Summary:  summaryToResponse(r.Summary),
		Shipping: r.ShippingLabel,
		Address:  r.AddressLabel,
		Warnings: warnings,
		CanPay:   r.CanPay,
	}
}

func userToResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

func nonNilItems(items []cart.LineItem) []cart.LineItem {
	if items == nil {
		return []cart.LineItem{}
	}
	return items
}

var _ json.Unmarshaler = (*Quantity)(nil)
