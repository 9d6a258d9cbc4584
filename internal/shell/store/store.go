package store

import (
	"context"
	"time"

	"github.com/artpar/storefront/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for storefront entities.
type Store interface {
	// Product operations
	CreateProduct(ctx context.Context, product *domain.Product) error
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product *domain.Product) error
	DeleteProduct(ctx context.Context, id string) error
	ListProducts(ctx context.Context, filter ProductFilter, opts ListOptions) ([]domain.Product, error)
	CountProducts(ctx context.Context, filter ProductFilter) (int, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)

	// User operations
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUserRole(ctx context.Context, id string, role domain.Role) error

	// Session operations
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, token string) (*domain.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// Cart slot operations (durable key-value slots for carts)
	GetCartSlot(ctx context.Context, key string) ([]byte, error)
	PutCartSlot(ctx context.Context, key string, payload []byte) error
	DeleteCartSlot(ctx context.Context, key string) error
	DeleteCartSlotsBefore(ctx context.Context, before time.Time) (int64, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  50,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.Limit > 500 {
		o.Limit = 500
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// ProductFilter narrows product listings. Zero values mean "any".
type ProductFilter struct {
	CategorySlug  string
	SellerID      string
	PublishedOnly bool
}
