package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/artpar/storefront/internal/core/domain"
)

// =============================================================================
// User Rows
// =============================================================================

// userRow represents a user row in the database.
type userRow struct {
	ID           string `db:"id"`
	Email        string `db:"email"`
	Name         string `db:"name"`
	PasswordHash string `db:"password_hash"`
	Role         string `db:"role"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

func rowToUser(row *userRow) (*domain.User, error) {
	role, err := domain.ParseRole(row.Role)
	if err != nil {
		return nil, NewStoreError("rowToUser", "user", row.ID, "unknown role "+row.Role, ErrInvalidData)
	}
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return nil, NewStoreError("rowToUser", "user", row.ID, "failed to parse created_at", ErrInvalidData)
	}
	updatedAt, err := parseTime(row.UpdatedAt)
	if err != nil {
		return nil, NewStoreError("rowToUser", "user", row.ID, "failed to parse updated_at", ErrInvalidData)
	}

	return &domain.User{
		ID:           row.ID,
		Email:        row.Email,
		Name:         row.Name,
		PasswordHash: row.PasswordHash,
		Role:         role,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

// sessionRow represents a session row in the database.
type sessionRow struct {
	Token     string `db:"token"`
	UserID    string `db:"user_id"`
	ExpiresAt string `db:"expires_at"`
	CreatedAt string `db:"created_at"`
}

// =============================================================================
// User Functions
// =============================================================================

func createUser(ctx context.Context, exec executor, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, name, password_hash, role, created_at, updated_at)
		VALUES (:id, :email, :name, :password_hash, :role, :created_at, :updated_at)`

	row := map[string]any{
		"id":            user.ID,
		"email":         user.Email,
		"name":          user.Name,
		"password_hash": user.PasswordHash,
		"role":          string(user.Role),
		"created_at":    formatTime(user.CreatedAt),
		"updated_at":    formatTime(user.UpdatedAt),
	}

	_, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "UNIQUE constraint failed: users.id") {
			return NewStoreError("CreateUser", "user", user.ID, "user with this ID already exists", ErrDuplicateID)
		}
		if strings.Contains(msg, "UNIQUE constraint failed: users.email") {
			return NewStoreError("CreateUser", "user", user.ID, "user with this email already exists", ErrDuplicateEmail)
		}
		return NewStoreError("CreateUser", "user", user.ID, msg, err)
	}
	return nil
}

func getUser(ctx context.Context, exec executor, id string) (*domain.User, error) {
	var row userRow
	err := exec.GetContext(ctx, &row, `SELECT * FROM users WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetUser", "user", id, "user not found", ErrNotFound)
		}
		return nil, NewStoreError("GetUser", "user", id, err.Error(), err)
	}
	return rowToUser(&row)
}

func getUserByEmail(ctx context.Context, exec executor, email string) (*domain.User, error) {
	var row userRow
	err := exec.GetContext(ctx, &row, `SELECT * FROM users WHERE email = ?`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetUserByEmail", "user", email, "user not found", ErrNotFound)
		}
		return nil, NewStoreError("GetUserByEmail", "user", email, err.Error(), err)
	}
	return rowToUser(&row)
}

func updateUserRole(ctx context.Context, exec executor, id string, role domain.Role) error {
	if !role.IsValid() {
		return NewStoreError("UpdateUserRole", "user", id, "invalid role", ErrInvalidData)
	}

	result, err := exec.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`,
		string(role), formatTime(time.Now()), id)
	if err != nil {
		return NewStoreError("UpdateUserRole", "user", id, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateUserRole", "user", id, "user not found", ErrNotFound)
	}
	return nil
}

// =============================================================================
// Session Functions
// =============================================================================

func createSession(ctx context.Context, exec executor, session *domain.Session) error {
	query := `
		INSERT INTO sessions (token, user_id, expires_at, created_at)
		VALUES (:token, :user_id, :expires_at, :created_at)`

	row := map[string]any{
		"token":      session.Token,
		"user_id":    session.UserID,
		"expires_at": formatTime(session.ExpiresAt),
		"created_at": formatTime(session.CreatedAt),
	}

	_, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("CreateSession", "session", "", "user not found", ErrForeignKey)
		}
		return NewStoreError("CreateSession", "session", "", err.Error(), err)
	}
	return nil
}

// getSession returns the session for token. Tokens are never echoed in errors.
func getSession(ctx context.Context, exec executor, token string) (*domain.Session, error) {
	var row sessionRow
	err := exec.GetContext(ctx, &row, `SELECT * FROM sessions WHERE token = ?`, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetSession", "session", "", "session not found", ErrNotFound)
		}
		return nil, NewStoreError("GetSession", "session", "", err.Error(), err)
	}

	expiresAt, err := parseTime(row.ExpiresAt)
	if err != nil {
		return nil, NewStoreError("GetSession", "session", "", "failed to parse expires_at", ErrInvalidData)
	}
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return nil, NewStoreError("GetSession", "session", "", "failed to parse created_at", ErrInvalidData)
	}

	return &domain.Session{
		Token:     row.Token,
		UserID:    row.UserID,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

func deleteSession(ctx context.Context, exec executor, token string) error {
	result, err := exec.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return NewStoreError("DeleteSession", "session", "", err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteSession", "session", "", "session not found", ErrNotFound)
	}
	return nil
}

func deleteExpiredSessions(ctx context.Context, exec executor, now time.Time) (int64, error) {
	result, err := exec.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, NewStoreError("DeleteExpiredSessions", "session", "", err.Error(), err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
