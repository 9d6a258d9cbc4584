// Package resources provides JSON:API resource implementations for the
// storefront seller API.
package resources

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/storefront/internal/core/auth"
	"github.com/artpar/storefront/internal/core/domain"
	"github.com/artpar/storefront/internal/core/validation"
	"github.com/artpar/storefront/internal/shell/store"
	"github.com/manyminds/api2go"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Product JSON:API Model
// =============================================================================

// Product wraps domain.Product to implement JSON:API interfaces.
type Product struct {
	ID          string          `json:"-"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description,omitempty"`
	ImageRef    string          `json:"image_ref,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category,omitempty"`
	Published   bool            `json:"published"`
	SellerID    string          `json:"seller_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// GetID returns the product ID for JSON:API.
func (p Product) GetID() string {
	return p.ID
}

// SetID sets the product ID for JSON:API.
func (p *Product) SetID(id string) error {
	p.ID = id
	return nil
}

// GetName returns the JSON:API resource type name.
func (p Product) GetName() string {
	return "products"
}

// =============================================================================
// Conversion Functions
// =============================================================================

// ProductFromDomain converts a domain.Product to a JSON:API Product.
func ProductFromDomain(p *domain.Product) Product {
	return Product{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		ImageRef:    p.ImageRef,
		Price:       p.Price,
		Category:    p.Category,
		Published:   p.Published,
		SellerID:    p.SellerID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// =============================================================================
// ProductResource - CRUD Operations
// =============================================================================

// ProductResource implements the api2go resource interface for products.
type ProductResource struct {
	Store  store.Store
	Logger *slog.Logger
}

// NewProductResource creates a new product resource handler.
func NewProductResource(s store.Store, logger *slog.Logger) *ProductResource {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProductResource{Store: s, Logger: logger}
}

// FindAll lists products.
// GET /api/v1/products
// Auth: admins see every product, sellers their own, everyone else the
// published catalog.
func (r ProductResource) FindAll(req api2go.Request) (api2go.Responder, error) {
	opts := store.DefaultListOptions()

	if limit, ok := req.QueryParams["page[size]"]; ok && len(limit) > 0 {
		if l, err := strconv.Atoi(limit[0]); err == nil {
			opts.Limit = l
		}
	}
	if offset, ok := req.QueryParams["page[offset]"]; ok && len(offset) > 0 {
		if o, err := strconv.Atoi(offset[0]); err == nil {
			opts.Offset = o
		}
	}
	if pageNum, ok := req.QueryParams["page[number]"]; ok && len(pageNum) > 0 {
		if pn, err := strconv.Atoi(pageNum[0]); err == nil && pn > 0 {
			opts.Offset = (pn - 1) * opts.Normalize().Limit
		}
	}

	ctx := req.PlainRequest.Context()
	authCtx := auth.FromContext(ctx)

	filter := store.ProductFilter{}
	switch {
	case auth.IsAdmin(authCtx):
	case auth.CanCreateProduct(authCtx):
		filter.SellerID = authCtx.UserID
	default:
		filter.PublishedOnly = true
	}
	if category, ok := req.QueryParams["filter[category]"]; ok && len(category) > 0 {
		filter.CategorySlug = domain.Slugify(category[0])
	}

	products, err := r.Store.ListProducts(ctx, filter, opts)
	if err != nil {
		return &Response{Code: http.StatusInternalServerError}, err
	}
	total, err := r.Store.CountProducts(ctx, filter)
	if err != nil {
		return &Response{Code: http.StatusInternalServerError}, err
	}

	result := make([]Product, 0, len(products))
	for i := range products {
		result = append(result, ProductFromDomain(&products[i]))
	}

	opts = opts.Normalize()
	return &Response{
		Code: http.StatusOK,
		Res:  result,
		Meta: map[string]interface{}{
			"total":  total,
			"limit":  opts.Limit,
			"offset": opts.Offset,
		},
	}, nil
}

// FindOne returns a single product by ID.
// GET /api/v1/products/{id}
// Auth: unpublished products are visible only to their seller and admins.
func (r ProductResource) FindOne(id string, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	authCtx := auth.FromContext(ctx)

	product, err := r.Store.GetProduct(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return &Response{Code: http.StatusNotFound}, notFound()
		}
		return &Response{Code: http.StatusInternalServerError}, err
	}

	if !auth.CanViewProduct(authCtx, *product) {
		return &Response{Code: http.StatusNotFound}, notFound()
	}

	return &Response{
		Code: http.StatusOK,
		Res:  ProductFromDomain(product),
	}, nil
}

// Create creates a new product owned by the caller.
// POST /api/v1/products
// Auth: sellers and admins.
func (r ProductResource) Create(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	authCtx := auth.FromContext(ctx)

	if !authCtx.Authenticated {
		return &Response{Code: http.StatusUnauthorized}, api2go.NewHTTPError(
			fmt.Errorf("authentication required"),
			"Authentication required",
			http.StatusUnauthorized,
		)
	}
	if !auth.CanCreateProduct(authCtx) {
		return &Response{Code: http.StatusForbidden}, forbidden("create products")
	}

	product, ok := obj.(Product)
	if !ok {
		return &Response{Code: http.StatusBadRequest}, badRequest("Invalid request body")
	}

	if field, msg := validation.ValidateProductFields(product.Name, product.Price.String()); field != "" {
		return &Response{Code: http.StatusBadRequest}, badRequest(msg)
	}

	// SellerID always comes from the session.
	domainProduct, err := domain.NewProduct(product.Name, product.Price, authCtx.UserID)
	if err != nil {
		return &Response{Code: http.StatusBadRequest}, badRequest(err.Error())
	}
	domainProduct.Description = strings.TrimSpace(product.Description)
	domainProduct.ImageRef = strings.TrimSpace(product.ImageRef)
	domainProduct.Category = strings.TrimSpace(product.Category)
	domainProduct.Published = product.Published

	if err := r.Store.CreateProduct(ctx, domainProduct); err != nil {
		if errors.Is(err, store.ErrDuplicateSlug) {
			return &Response{Code: http.StatusConflict}, conflict("A product with this name already exists")
		}
		return &Response{Code: http.StatusInternalServerError}, err
	}

	r.Logger.Info("product created", "product_id", domainProduct.ID, "user_id", authCtx.UserID)
	return &Response{
		Code: http.StatusCreated,
		Res:  ProductFromDomain(domainProduct),
	}, nil
}

// Update updates an existing product.
// PATCH /api/v1/products/{id}
// Auth: only the owning seller or an admin.
func (r ProductResource) Update(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	authCtx := auth.FromContext(ctx)

	product, ok := obj.(Product)
	if !ok {
		return &Response{Code: http.StatusBadRequest}, badRequest("Invalid request body")
	}

	existing, err := r.Store.GetProduct(ctx, product.ID)
	if err != nil {
		if store.IsNotFound(err) {
			return &Response{Code: http.StatusNotFound}, notFound()
		}
		return &Response{Code: http.StatusInternalServerError}, err
	}

	if !auth.CanManageProduct(authCtx, *existing) {
		return &Response{Code: http.StatusForbidden}, forbidden("modify this product")
	}

	if field, msg := validation.ValidateProductFields(product.Name, product.Price.String()); field != "" {
		return &Response{Code: http.StatusBadRequest}, badRequest(msg)
	}
	if err := existing.Rename(product.Name); err != nil {
		return &Response{Code: http.StatusBadRequest}, badRequest(err.Error())
	}
	existing.Price = product.Price
	existing.Description = strings.TrimSpace(product.Description)
	existing.ImageRef = strings.TrimSpace(product.ImageRef)
	existing.Category = strings.TrimSpace(product.Category)
	existing.Published = product.Published
	existing.UpdatedAt = time.Now().UTC()

	if err := r.Store.UpdateProduct(ctx, existing); err != nil {
		if errors.Is(err, store.ErrDuplicateSlug) {
			return &Response{Code: http.StatusConflict}, conflict("A product with this name already exists")
		}
		return &Response{Code: http.StatusInternalServerError}, err
	}

	return &Response{
		Code: http.StatusOK,
		Res:  ProductFromDomain(existing),
	}, nil
}

// Delete removes a product by ID.
// DELETE /api/v1/products/{id}
// Auth: only the owning seller or an admin.
func (r ProductResource) Delete(id string, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	authCtx := auth.FromContext(ctx)

	product, err := r.Store.GetProduct(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return &Response{Code: http.StatusNotFound}, notFound()
		}
		return &Response{Code: http.StatusInternalServerError}, err
	}

	if !auth.CanManageProduct(authCtx, *product) {
		return &Response{Code: http.StatusForbidden}, forbidden("delete this product")
	}

	if err := r.Store.DeleteProduct(ctx, id); err != nil {
		return &Response{Code: http.StatusInternalServerError}, err
	}

	r.Logger.Info("product deleted", "product_id", id, "user_id", authCtx.UserID)
	return &Response{Code: http.StatusNoContent}, nil
}

// =============================================================================
// Response Helper
// =============================================================================

// Response implements api2go.Responder for custom responses.
type Response struct {
	Code int
	Res  interface{}
	Meta map[string]interface{}
}

// Metadata returns additional metadata for the response.
func (r *Response) Metadata() map[string]interface{} {
	return r.Meta
}

// Result returns the response data.
func (r *Response) Result() interface{} {
	return r.Res
}

// StatusCode returns the HTTP status code.
func (r *Response) StatusCode() int {
	return r.Code
}

// =============================================================================
// Helper Functions
// =============================================================================

func notFound() api2go.HTTPError {
	return api2go.NewHTTPError(fmt.Errorf("product not found"), "Product not found", http.StatusNotFound)
}

func forbidden(action string) api2go.HTTPError {
	msg := "Not authorized to " + action
	return api2go.NewHTTPError(errors.New(strings.ToLower(msg)), msg, http.StatusForbidden)
}

func badRequest(msg string) api2go.HTTPError {
	return api2go.NewHTTPError(errors.New(msg), msg, http.StatusBadRequest)
}

func conflict(msg string) api2go.HTTPError {
	return api2go.NewHTTPError(errors.New(msg), msg, http.StatusConflict)
}
