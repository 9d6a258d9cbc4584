package middleware

import (
	"context"
	"time"

	"github.com/artpar/storefront/internal/core/domain"
	"github.com/artpar/storefront/internal/shell/store"
)

// StoreResolver resolves session tokens against the sessions table.
type StoreResolver struct {
	store store.Store
	now   func() time.Time
}

// NewStoreResolver creates a resolver backed by s.
func NewStoreResolver(s store.Store) *StoreResolver {
	return &StoreResolver{store: s, now: time.Now}
}

// ResolveSession returns the user for token. Unknown and expired sessions,
// and sessions whose user is gone, yield ErrSessionInvalid.
func (r *StoreResolver) ResolveSession(ctx context.Context, token string) (*domain.User, error) {
	session, err := r.store.GetSession(ctx, token)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, ErrSessionInvalid
		}
		return nil, err
	}
	if session.Expired(r.now()) {
		return nil, ErrSessionInvalid
	}

	user, err := r.store.GetUser(ctx, session.UserID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, ErrSessionInvalid
		}
		return nil, err
	}
	return user, nil
}
