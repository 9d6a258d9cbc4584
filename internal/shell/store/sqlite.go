package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/storefront/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is used for every timestamp column. Values are stored in UTC so
// lexical comparison in SQL matches chronological order.
const timeLayout = time.RFC3339

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	// An in-memory database exists per connection.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStoreError("Ping", "", "", err.Error(), ErrConnectionFailed)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Product Operations
// =============================================================================

func (s *SQLiteStore) CreateProduct(ctx context.Context, product *domain.Product) error {
	return createProduct(ctx, s.db, product)
}

func (s *SQLiteStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return getProduct(ctx, s.db, id)
}

func (s *SQLiteStore) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return getProductBySlug(ctx, s.db, slug)
}

func (s *SQLiteStore) UpdateProduct(ctx context.Context, product *domain.Product) error {
	return updateProduct(ctx, s.db, product)
}

func (s *SQLiteStore) DeleteProduct(ctx context.Context, id string) error {
	return deleteProduct(ctx, s.db, id)
}

func (s *SQLiteStore) ListProducts(ctx context.Context, filter ProductFilter, opts ListOptions) ([]domain.Product, error) {
	return listProducts(ctx, s.db, filter, opts)
}

func (s *SQLiteStore) CountProducts(ctx context.Context, filter ProductFilter) (int, error) {
	return countProducts(ctx, s.db, filter)
}

func (s *SQLiteStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return listCategories(ctx, s.db)
}

// =============================================================================
// User & Session Operations
// =============================================================================

func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	return createUser(ctx, s.db, user)
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return getUser(ctx, s.db, id)
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return getUserByEmail(ctx, s.db, email)
}

func (s *SQLiteStore) UpdateUserRole(ctx context.Context, id string, role domain.Role) error {
	return updateUserRole(ctx, s.db, id, role)
}

func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	return createSession(ctx, s.db, session)
}

func (s *SQLiteStore) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	return getSession(ctx, s.db, token)
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, token string) error {
	return deleteSession(ctx, s.db, token)
}

func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return deleteExpiredSessions(ctx, s.db, now)
}

// =============================================================================
// Cart Slot Operations
// =============================================================================

func (s *SQLiteStore) GetCartSlot(ctx context.Context, key string) ([]byte, error) {
	return getCartSlot(ctx, s.db, key)
}

func (s *SQLiteStore) PutCartSlot(ctx context.Context, key string, payload []byte) error {
	return putCartSlot(ctx, s.db, key, payload)
}

func (s *SQLiteStore) DeleteCartSlot(ctx context.Context, key string) error {
	return deleteCartSlot(ctx, s.db, key)
}

func (s *SQLiteStore) DeleteCartSlotsBefore(ctx context.Context, before time.Time) (int64, error) {
	return deleteCartSlotsBefore(ctx, s.db, before)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateProduct(ctx context.Context, product *domain.Product) error {
	return createProduct(ctx, s.tx, product)
}

func (s *txSQLiteStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return getProduct(ctx, s.tx, id)
}

func (s *txSQLiteStore) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return getProductBySlug(ctx, s.tx, slug)
}

func (s *txSQLiteStore) UpdateProduct(ctx context.Context, product *domain.Product) error {
	return updateProduct(ctx, s.tx, product)
}

func (s *txSQLiteStore) DeleteProduct(ctx context.Context, id string) error {
	return deleteProduct(ctx, s.tx, id)
}

func (s *txSQLiteStore) ListProducts(ctx context.Context, filter ProductFilter, opts ListOptions) ([]domain.Product, error) {
	return listProducts(ctx, s.tx, filter, opts)
}

func (s *txSQLiteStore) CountProducts(ctx context.Context, filter ProductFilter) (int, error) {
	return countProducts(ctx, s.tx, filter)
}

func (s *txSQLiteStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return listCategories(ctx, s.tx)
}

func (s *txSQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	return createUser(ctx, s.tx, user)
}

func (s *txSQLiteStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return getUser(ctx, s.tx, id)
}

func (s *txSQLiteStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return getUserByEmail(ctx, s.tx, email)
}

func (s *txSQLiteStore) UpdateUserRole(ctx context.Context, id string, role domain.Role) error {
	return updateUserRole(ctx, s.tx, id, role)
}

func (s *txSQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	return createSession(ctx, s.tx, session)
}

func (s *txSQLiteStore) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	return getSession(ctx, s.tx, token)
}

func (s *txSQLiteStore) DeleteSession(ctx context.Context, token string) error {
	return deleteSession(ctx, s.tx, token)
}

func (s *txSQLiteStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return deleteExpiredSessions(ctx, s.tx, now)
}

func (s *txSQLiteStore) GetCartSlot(ctx context.Context, key string) ([]byte, error) {
	return getCartSlot(ctx, s.tx, key)
}

func (s *txSQLiteStore) PutCartSlot(ctx context.Context, key string, payload []byte) error {
	return putCartSlot(ctx, s.tx, key, payload)
}

func (s *txSQLiteStore) DeleteCartSlot(ctx context.Context, key string) error {
	return deleteCartSlot(ctx, s.tx, key)
}

func (s *txSQLiteStore) DeleteCartSlotsBefore(ctx context.Context, before time.Time) (int64, error) {
	return deleteCartSlotsBefore(ctx, s.tx, before)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Ping(ctx context.Context) error {
	return nil
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
