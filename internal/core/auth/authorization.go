package auth

import (
	"github.com/artpar/storefront/internal/core/domain"
)

// =============================================================================
// Role Checks
// =============================================================================

// IsAdmin reports whether the request comes from an admin.
func IsAdmin(ctx Context) bool {
	return HasRole(ctx, domain.RoleAdmin)
}

// HasRole reports whether the request is authenticated with one of roles.
func HasRole(ctx Context, roles ...domain.Role) bool {
	if !ctx.Authenticated {
		return false
	}
	for _, r := range roles {
		if ctx.Role == r {
			return true
		}
	}
	return false
}

// =============================================================================
// Product Authorization
// =============================================================================

// CanCreateProduct checks if the user may list new products.
// Sellers and admins can; buyers cannot.
func CanCreateProduct(ctx Context) bool {
	return ctx.Authenticated && ctx.Role.CanSell()
}

// CanManageProduct checks if the user may update, publish or delete product.
// The owning seller and admins can.
func CanManageProduct(ctx Context, product domain.Product) bool {
	if IsAdmin(ctx) {
		return true
	}
	return HasRole(ctx, domain.RoleSeller) && ctx.UserID == product.SellerID
}

// CanViewProduct checks if the user can see product.
// Published products are visible to everyone, unpublished ones only to
// those who can manage them.
func CanViewProduct(ctx Context, product domain.Product) bool {
	if product.Published {
		return true
	}
	return CanManageProduct(ctx, product)
}

// CanAssignRole checks if the user may give another account role.
// Only admins hand out seller and admin roles.
func CanAssignRole(ctx Context, role domain.Role) bool {
	if role == domain.RoleBuyer {
		return ctx.Authenticated
	}
	return IsAdmin(ctx)
}
