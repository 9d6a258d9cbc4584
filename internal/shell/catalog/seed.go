// Package catalog loads a YAML catalog file into the store at start-up.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/artpar/storefront/internal/core/auth"
	"github.com/artpar/storefront/internal/core/domain"
	"github.com/artpar/storefront/internal/shell/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// File Format
// =============================================================================

// File is the decoded seed file.
type File struct {
	Seller   SellerEntry    `yaml:"seller"`
	Products []ProductEntry `yaml:"products"`
}

// SellerEntry is the account that owns every seeded product.
type SellerEntry struct {
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
}

// ProductEntry is one catalog product. Price is a decimal string.
type ProductEntry struct {
	Name        string `yaml:"name"`
	Price       string `yaml:"price"`
	Category    string `yaml:"category"`
	Description string `yaml:"description"`
	Image       string `yaml:"image"`
	Published   bool   `yaml:"published"`
}

// ErrInvalidSeed is wrapped by every validation error in a seed file.
var ErrInvalidSeed = errors.New("invalid catalog seed")

// Parse decodes and validates a seed file. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}

	email, err := domain.NormalizeEmail(f.Seller.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: seller: %v", ErrInvalidSeed, err)
	}
	f.Seller.Email = email
	if err := domain.ValidatePassword(f.Seller.Password); err != nil {
		return nil, fmt.Errorf("%w: seller: %v", ErrInvalidSeed, err)
	}

	for i, p := range f.Products {
		if _, err := p.price(); err != nil {
			return nil, fmt.Errorf("%w: products[%d]: %v", ErrInvalidSeed, i, err)
		}
		if err := domain.ValidateProductName(strings.TrimSpace(p.Name)); err != nil {
			return nil, fmt.Errorf("%w: products[%d]: %v", ErrInvalidSeed, i, err)
		}
	}

	return &f, nil
}

// LoadFile reads and parses the seed file at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog seed: %w", err)
	}
	return Parse(data)
}

func (p ProductEntry) price() (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(p.Price))
	if err != nil {
		return decimal.Zero, fmt.Errorf("price %q is not a decimal", p.Price)
	}
	if err := domain.ValidatePrice(price); err != nil {
		return decimal.Zero, err
	}
	return price, nil
}

// =============================================================================
// Seeder
// =============================================================================

// Result reports what a seed run changed.
type Result struct {
	SellerCreated bool
	Created       int
	Skipped       int
}

// Seeder writes a seed file into the store.
type Seeder struct {
	store      store.Store
	bcryptCost int
	logger     *slog.Logger
}

// NewSeeder creates a seeder. bcryptCost is passed to auth.HashPassword.
func NewSeeder(s store.Store, bcryptCost int, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		store:      s,
		bcryptCost: bcryptCost,
		logger:     logger.With("component", "catalog_seed"),
	}
}

// Seed inserts products whose slug is not yet taken. Running it twice with
// the same file changes nothing the second time.
func (s *Seeder) Seed(ctx context.Context, f *File) (Result, error) {
	var result Result

	err := s.store.WithTx(ctx, func(tx store.Store) error {
		seller, created, err := s.ensureSeller(ctx, tx, f.Seller)
		if err != nil {
			return err
		}
		result.SellerCreated = created

		for i, entry := range f.Products {
			price, err := entry.price()
			if err != nil {
				return fmt.Errorf("%w: products[%d]: %v", ErrInvalidSeed, i, err)
			}
			product, err := domain.NewProduct(entry.Name, price, seller.ID)
			if err != nil {
				return fmt.Errorf("%w: products[%d]: %v", ErrInvalidSeed, i, err)
			}

			if _, err := tx.GetProductBySlug(ctx, product.Slug); err == nil {
				result.Skipped++
				continue
			} else if !store.IsNotFound(err) {
				return err
			}

			product.Category = strings.TrimSpace(entry.Category)
			product.Description = strings.TrimSpace(entry.Description)
			product.ImageRef = strings.TrimSpace(entry.Image)
			product.Published = entry.Published

			if err := tx.CreateProduct(ctx, product); err != nil {
				return fmt.Errorf("seed products[%d]: %w", i, err)
			}
			result.Created++
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.logger.Info("catalog seeded",
		"created", result.Created, "skipped", result.Skipped, "seller_created", result.SellerCreated)
	return result, nil
}

// SeedFile loads path and seeds it.
func (s *Seeder) SeedFile(ctx context.Context, path string) (Result, error) {
	f, err := LoadFile(path)
	if err != nil {
		return Result{}, err
	}
	return s.Seed(ctx, f)
}

func (s *Seeder) ensureSeller(ctx context.Context, tx store.Store, entry SellerEntry) (*domain.User, bool, error) {
	existing, err := tx.GetUserByEmail(ctx, entry.Email)
	if err == nil {
		if !existing.Role.CanSell() {
			return nil, false, fmt.Errorf("%w: seller %s has role %s", ErrInvalidSeed, entry.Email, existing.Role)
		}
		return existing, false, nil
	}
	if !store.IsNotFound(err) {
		return nil, false, err
	}

	hash, err := auth.HashPassword(entry.Password, s.bcryptCost)
	if err != nil {
		return nil, false, fmt.Errorf("hash seller password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        entry.Email,
		Name:         strings.TrimSpace(entry.Name),
		PasswordHash: hash,
		Role:         domain.RoleSeller,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.CreateUser(ctx, user); err != nil {
		return nil, false, err
	}
	return user, true, nil
}
