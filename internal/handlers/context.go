package handlers

import (
	"disputehub/internal/middleware"
	"disputehub/internal/models"
	"disputehub/internal/services/claim"

	"github.com/gofiber/fiber/v2"
)

// extractUserClaims is a helper function to reduce duplication
func extractUserClaims(c *fiber.Ctx) (*models.UserClaims, error) {
	claims, ok := c.Locals(middleware.LocalClaims).(*models.UserClaims)
	if !ok || claims == nil {
		return nil, fiber.ErrUnauthorized
	}
	return claims, nil
}

// caller returns the tenant the auth middleware scoped the request to and
// the actor it runs as.
func caller(c *fiber.Ctx) (models.TenantID, claim.Actor, error) {
	claims, err := extractUserClaims(c)
	if err != nil {
		return "", claim.Actor{}, err
	}
	tenant, ok := c.Locals(middleware.LocalTenant).(models.TenantID)
	if !ok || tenant.IsZero() {
		return "", claim.Actor{}, fiber.ErrUnauthorized
	}
	return tenant, claim.Actor{ID: claims.UserID, Role: models.Role(claims.Role)}, nil
}
