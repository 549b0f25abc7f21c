// Package middleware provides HTTP middleware components for the application.
// It includes authentication and authorization middleware for the fiber web
// framework.
package middleware

import (
	"strings"

	"disputehub/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Locals keys set by AuthMiddleware.
const (
	LocalClaims = "claims"
	LocalTenant = "tenant"
)

// AuthMiddleware validates the bearer token issued by the marketplace
// identity service and scopes the request to the token's tenant.
type AuthMiddleware struct {
	secret []byte
	log    *zap.Logger
}

func NewAuthMiddleware(secret string, log *zap.Logger) *AuthMiddleware {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthMiddleware{secret: []byte(secret), log: log}
}

// Handler checks for:
// - Presence of Authorization header with Bearer token
// - Valid HS256 signature and expiry
// - A tenant and a user id in the claims
func (m *AuthMiddleware) Handler(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	token, err := jwt.ParseWithClaims(tokenString, &models.UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		m.log.Debug("token rejected", zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
	}

	claims, ok := token.Claims.(*models.UserClaims)
	if !ok || claims.UserID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid claims"})
	}
	tenant := claims.Tenant()
	if tenant.IsZero() {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "token has no tenant"})
	}

	c.Locals(LocalClaims, claims)
	c.Locals(LocalTenant, tenant)
	return c.Next()
}

// AdminAuthMiddleware admits admin tokens that grant claim administration,
// either explicitly or through the admin role defaults. An admin token issued
// with a narrower permission list is refused.
func AdminAuthMiddleware(c *fiber.Ctx) error {
	claims, ok := c.Locals(LocalClaims).(*models.UserClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid claims"})
	}
	if !claims.IsAdmin() || !grants(claims, models.PermissionClaimAdmin) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
	}
	return c.Next()
}

// HasPermission returns a middleware that checks for a specific permission.
func HasPermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals(LocalClaims).(*models.UserClaims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}

		// If user is admin, allow all permissions
		if claims.IsAdmin() || grants(claims, permission) {
			return c.Next()
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
	}
}

// grants reports whether the token carries permission. Tokens without
// explicit permissions get the defaults of their role.
func grants(claims *models.UserClaims, permission string) bool {
	if len(claims.Permissions) > 0 {
		return claims.HasPermission(permission)
	}
	for _, p := range models.GetDefaultPermissions(claims.Role) {
		if p == permission {
			return true
		}
	}
	return false
}
