package resources

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/artpar/storefront/internal/core/auth"
	"github.com/artpar/storefront/internal/core/domain"
	"github.com/artpar/storefront/internal/shell/store"
	"github.com/manyminds/api2go"
)

// User is the JSON:API view of an account. The password hash never leaves
// the store.
type User struct {
	ID        string    `json:"-"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetID returns the user ID for JSON:API.
func (u User) GetID() string {
	return u.ID
}

// SetID sets the user ID for JSON:API.
func (u *User) SetID(id string) error {
	u.ID = id
	return nil
}

// GetName returns the JSON:API resource type name.
func (u User) GetName() string {
	return "users"
}

// UserFromDomain converts a domain.User to a JSON:API User.
func UserFromDomain(u *domain.User) User {
	return User{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// AssignRoleRequest is the body of the role assignment action.
type AssignRoleRequest struct {
	Role string `json:"role"`
}

// RoleResource handles account role changes.
type RoleResource struct {
	Store  store.Store
	Logger *slog.Logger
}

// NewRoleResource creates a new role resource handler.
func NewRoleResource(s store.Store, logger *slog.Logger) *RoleResource {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleResource{Store: s, Logger: logger}
}

// AssignRole changes the role of user id.
// POST /api/v1/users/{id}/role
// Auth: admins may assign any role to anyone; other users may only step
// their own account down to buyer.
func (r RoleResource) AssignRole(id string, req *http.Request) (api2go.Responder, error) {
	ctx := req.Context()
	authCtx := auth.FromContext(ctx)

	if !authCtx.Authenticated {
		return &Response{Code: http.StatusUnauthorized}, api2go.NewHTTPError(
			fmt.Errorf("authentication required"),
			"Authentication required",
			http.StatusUnauthorized,
		)
	}

	var body AssignRoleRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return &Response{Code: http.StatusBadRequest}, badRequest("Invalid request body")
	}
	role, err := domain.ParseRole(body.Role)
	if err != nil {
		return &Response{Code: http.StatusBadRequest}, badRequest(err.Error())
	}

	if id != authCtx.UserID && !auth.IsAdmin(authCtx) {
		return &Response{Code: http.StatusForbidden}, forbidden("change this account")
	}
	if !auth.CanAssignRole(authCtx, role) {
		return &Response{Code: http.StatusForbidden}, forbidden("assign the "+string(role)+" role")
	}

	if err := r.Store.UpdateUserRole(ctx, id, role); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &Response{Code: http.StatusNotFound}, api2go.NewHTTPError(err, "User not found", http.StatusNotFound)
		}
		return &Response{Code: http.StatusInternalServerError}, err
	}

	user, err := r.Store.GetUser(ctx, id)
	if err != nil {
		return &Response{Code: http.StatusInternalServerError}, err
	}

	r.Logger.Info("role assigned", "user_id", id, "role", role, "by", authCtx.UserID)
	return &Response{
		Code: http.StatusOK,
		Res:  UserFromDomain(user),
	}, nil
}
