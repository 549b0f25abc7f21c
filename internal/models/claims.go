package models

import "github.com/golang-jwt/jwt/v5"

// Application permissions
const (
	PermissionClaimRead   = "claim:read"
	PermissionClaimWrite  = "claim:write"
	PermissionClaimAdmin  = "claim:admin"
	PermissionRefundWrite = "refund:write"
)

// UserClaims are the JWT claims issued by the marketplace identity service.
type UserClaims struct {
	jwt.RegisteredClaims
	UserID      string   `json:"user_id"`
	TenantID    string   `json:"tenant_id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// HasPermission checks if the claims include a specific permission
func (c *UserClaims) HasPermission(permission string) bool {
	for _, p := range c.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// Tenant returns the normalized tenant the token is scoped to.
func (c *UserClaims) Tenant() TenantID {
	return ParseTenantID(c.TenantID)
}

func (c *UserClaims) IsAdmin() bool {
	return c.Role == string(RoleAdmin)
}

// GetDefaultPermissions returns default permissions based on role
func GetDefaultPermissions(role string) []string {
	switch Role(role) {
	case RoleAdmin:
		return []string{
			PermissionClaimRead,
			PermissionClaimWrite,
			PermissionClaimAdmin,
			PermissionRefundWrite,
		}
	case "user", RoleBuyer, RoleSeller:
		return []string{
			PermissionClaimRead,
			PermissionClaimWrite,
		}
	default:
		return []string{}
	}
}
