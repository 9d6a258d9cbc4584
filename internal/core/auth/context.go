// Package auth provides authentication context and authorization functions.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/artpar/storefront/internal/core/domain"
)

// =============================================================================
// Context Key
// =============================================================================

type contextKey string

const authContextKey contextKey = "auth"

// =============================================================================
// Types
// =============================================================================

// Context represents the authentication and authorization context for a request.
// It is resolved from the session token by the middleware and stored in the
// request context.
type Context struct {
	// UserID is the users table primary key.
	UserID string

	// Email is the normalized account email.
	Email string

	// Role is the account role. Unauthenticated requests have no role.
	Role domain.Role

	// SessionToken is the token the request authenticated with.
	SessionToken string

	// Authenticated indicates whether the request is authenticated
	Authenticated bool
}

// ForUser builds an authenticated context for user.
func ForUser(user domain.User, token string) Context {
	return Context{
		UserID:        user.ID,
		Email:         user.Email,
		Role:          user.Role,
		SessionToken:  token,
		Authenticated: true,
	}
}

// =============================================================================
// Token Extraction
// =============================================================================

const (
	// SessionCookie carries the session token for browser clients.
	SessionCookie = "storefront_session"

	bearerPrefix = "Bearer "
)

// TokenFromRequest returns the session token carried by r.
// The session cookie wins over an Authorization bearer token.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return TokenFromHeader(r.Header.Get("Authorization"))
}

// TokenFromHeader extracts the token from an "Authorization: Bearer" value.
func TokenFromHeader(header string) string {
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

// =============================================================================
// Context Storage
// =============================================================================

// WithContext stores the auth context in the request context.
func WithContext(ctx context.Context, authCtx Context) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

// FromContext retrieves the auth context from the request context.
// If no auth context is found, returns an unauthenticated context.
func FromContext(ctx context.Context) Context {
	if authCtx, ok := ctx.Value(authContextKey).(Context); ok {
		return authCtx
	}
	return Context{Authenticated: false}
}
