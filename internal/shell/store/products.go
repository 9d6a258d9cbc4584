package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/artpar/storefront/internal/core/domain"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Product Rows
// =============================================================================

// productRow represents a product row in the database.
// Prices are stored as decimal strings so no precision is lost.
type productRow struct {
	ID           string `db:"id"`
	Name         string `db:"name"`
	Slug         string `db:"slug"`
	Description  string `db:"description"`
	ImageRef     string `db:"image_ref"`
	Price        string `db:"price"`
	Category     string `db:"category"`
	CategorySlug string `db:"category_slug"`
	SellerID     string `db:"seller_id"`
	Published    bool   `db:"published"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

func productToRow(p *domain.Product) map[string]any {
	return map[string]any{
		"id":            p.ID,
		"name":          p.Name,
		"slug":          p.Slug,
		"description":   p.Description,
		"image_ref":     p.ImageRef,
		"price":         p.Price.String(),
		"category":      p.Category,
		"category_slug": p.CategorySlug(),
		"seller_id":     p.SellerID,
		"published":     p.Published,
		"created_at":    formatTime(p.CreatedAt),
		"updated_at":    formatTime(p.UpdatedAt),
	}
}

func rowToProduct(row *productRow) (*domain.Product, error) {
	price, err := decimal.NewFromString(row.Price)
	if err != nil {
		return nil, NewStoreError("rowToProduct", "product", row.ID, "failed to parse price", ErrInvalidData)
	}
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return nil, NewStoreError("rowToProduct", "product", row.ID, "failed to parse created_at", ErrInvalidData)
	}
	updatedAt, err := parseTime(row.UpdatedAt)
	if err != nil {
		return nil, NewStoreError("rowToProduct", "product", row.ID, "failed to parse updated_at", ErrInvalidData)
	}

	return &domain.Product{
		ID:          row.ID,
		Name:        row.Name,
		Slug:        row.Slug,
		Description: row.Description,
		ImageRef:    row.ImageRef,
		Price:       price,
		Category:    row.Category,
		SellerID:    row.SellerID,
		Published:   row.Published,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func createProduct(ctx context.Context, exec executor, product *domain.Product) error {
	query := `
		INSERT INTO products (
			id, name, slug, description, image_ref, price, category,
			category_slug, seller_id, published, created_at, updated_at
		) VALUES (
			:id, :name, :slug, :description, :image_ref, :price, :category,
			:category_slug, :seller_id, :published, :created_at, :updated_at
		)`

	_, err := exec.NamedExecContext(ctx, query, productToRow(product))
	if err != nil {
		return productWriteError("CreateProduct", product.ID, err)
	}
	return nil
}

func getProduct(ctx context.Context, exec executor, id string) (*domain.Product, error) {
	var row productRow
	err := exec.GetContext(ctx, &row, `SELECT * FROM products WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetProduct", "product", id, "product not found", ErrNotFound)
		}
		return nil, NewStoreError("GetProduct", "product", id, err.Error(), err)
	}
	return rowToProduct(&row)
}

func getProductBySlug(ctx context.Context, exec executor, slug string) (*domain.Product, error) {
	var row productRow
	err := exec.GetContext(ctx, &row, `SELECT * FROM products WHERE slug = ?`, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetProductBySlug", "product", slug, "product not found", ErrNotFound)
		}
		return nil, NewStoreError("GetProductBySlug", "product", slug, err.Error(), err)
	}
	return rowToProduct(&row)
}

func updateProduct(ctx context.Context, exec executor, product *domain.Product) error {
	query := `
		UPDATE products SET
			name = :name,
			slug = :slug,
			description = :description,
			image_ref = :image_ref,
			price = :price,
			category = :category,
			category_slug = :category_slug,
			seller_id = :seller_id,
			published = :published,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := exec.NamedExecContext(ctx, query, productToRow(product))
	if err != nil {
		return productWriteError("UpdateProduct", product.ID, err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateProduct", "product", product.ID, "product not found", ErrNotFound)
	}
	return nil
}

func deleteProduct(ctx context.Context, exec executor, id string) error {
	result, err := exec.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return NewStoreError("DeleteProduct", "product", id, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteProduct", "product", id, "product not found", ErrNotFound)
	}
	return nil
}

func listProducts(ctx context.Context, exec executor, filter ProductFilter, opts ListOptions) ([]domain.Product, error) {
	opts = opts.Normalize()
	where, args := filter.whereClause()
	query := `SELECT * FROM products` + where + ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	var rows []productRow
	if err := exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, NewStoreError("ListProducts", "product", "", err.Error(), err)
	}

	products := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		product, err := rowToProduct(&row)
		if err != nil {
			return nil, err
		}
		products = append(products, *product)
	}
	return products, nil
}

func countProducts(ctx context.Context, exec executor, filter ProductFilter) (int, error) {
	where, args := filter.whereClause()

	var count int
	if err := exec.GetContext(ctx, &count, `SELECT COUNT(*) FROM products`+where, args...); err != nil {
		return 0, NewStoreError("CountProducts", "product", "", err.Error(), err)
	}
	return count, nil
}

// categoryRow is one aggregated category.
type categoryRow struct {
	Name  string `db:"name"`
	Slug  string `db:"slug"`
	Count int    `db:"count"`
}

func listCategories(ctx context.Context, exec executor) ([]domain.Category, error) {
	query := `
		SELECT MIN(category) AS name, category_slug AS slug, COUNT(*) AS count
		FROM products
		WHERE published = 1 AND category_slug != ''
		GROUP BY category_slug
		ORDER BY category_slug`

	var rows []categoryRow
	if err := exec.SelectContext(ctx, &rows, query); err != nil {
		return nil, NewStoreError("ListCategories", "category", "", err.Error(), err)
	}

	categories := make([]domain.Category, 0, len(rows))
	for _, row := range rows {
		categories = append(categories, domain.Category{Name: row.Name, Slug: row.Slug, Count: row.Count})
	}
	return categories, nil
}

// =============================================================================
// Helpers
// =============================================================================

// whereClause renders the filter as a SQL WHERE clause with positional args.
func (f ProductFilter) whereClause() (string, []any) {
	var conds []string
	var args []any

	if f.CategorySlug != "" {
		conds = append(conds, "category_slug = ?")
		args = append(args, f.CategorySlug)
	}
	if f.SellerID != "" {
		conds = append(conds, "seller_id = ?")
		args = append(args, f.SellerID)
	}
	if f.PublishedOnly {
		conds = append(conds, "published = 1")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func productWriteError(op, id string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed: products.id"):
		return NewStoreError(op, "product", id, "product with this ID already exists", ErrDuplicateID)
	case strings.Contains(msg, "UNIQUE constraint failed: products.slug"):
		return NewStoreError(op, "product", id, "product with this slug already exists", ErrDuplicateSlug)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return NewStoreError(op, "product", id, "seller not found", ErrForeignKey)
	}
	return NewStoreError(op, "product", id, msg, err)
}
