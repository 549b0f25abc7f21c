package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"disputehub/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, claims *models.UserClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func claimsFor(tenant, role string, expires time.Time) *models.UserClaims {
	return &models.UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(expires)},
		UserID:           "user-1",
		TenantID:         tenant,
		Role:             role,
	}
}

func withPermissions(claims *models.UserClaims, permissions ...string) *models.UserClaims {
	claims.Permissions = permissions
	return claims
}

func TestAuthMiddleware(t *testing.T) {
	m := NewAuthMiddleware("secret", nil)
	app := fiber.New()
	app.Get("/", m.Handler, func(c *fiber.Ctx) error {
		return c.SendString(string(c.Locals(LocalTenant).(models.TenantID)))
	})
	app.Get("/admin", m.Handler, AdminAuthMiddleware, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	hour := time.Now().Add(time.Hour)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing header", "/", "", fiber.StatusUnauthorized},
		{"not bearer", "/", "Basic abc", fiber.StatusUnauthorized},
		{"wrong secret", "/", "Bearer " + sign(t, "other", claimsFor("acme", "buyer", hour)), fiber.StatusUnauthorized},
		{"expired", "/", "Bearer " + sign(t, "secret", claimsFor("acme", "buyer", time.Now().Add(-time.Minute))), fiber.StatusUnauthorized},
		{"no tenant", "/", "Bearer " + sign(t, "secret", claimsFor("  ", "buyer", hour)), fiber.StatusUnauthorized},
		{"valid", "/", "Bearer " + sign(t, "secret", claimsFor("Acme", "buyer", hour)), fiber.StatusOK},
		{"buyer on admin route", "/admin", "Bearer " + sign(t, "secret", claimsFor("acme", "buyer", hour)), fiber.StatusForbidden},
		{"admin on admin route", "/admin", "Bearer " + sign(t, "secret", claimsFor("acme", "admin", hour)), fiber.StatusNoContent},
		{"admin with claim admin granted", "/admin", "Bearer " + sign(t, "secret", withPermissions(claimsFor("acme", "admin", hour), models.PermissionClaimAdmin)), fiber.StatusNoContent},
		{"admin scoped to reads", "/admin", "Bearer " + sign(t, "secret", withPermissions(claimsFor("acme", "admin", hour), models.PermissionClaimRead)), fiber.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestHasPermission_FallsBackToRoleDefaults(t *testing.T) {
	app := fiber.New()
	set := func(claims *models.UserClaims) fiber.Handler {
		return func(c *fiber.Ctx) error {
			c.Locals(LocalClaims, claims)
			return c.Next()
		}
	}
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) }

	seller := &models.UserClaims{UserID: "s", Role: "seller"}
	scoped := &models.UserClaims{UserID: "s", Role: "seller", Permissions: []string{models.PermissionClaimRead}}
	app.Get("/seller-write", set(seller), HasPermission(models.PermissionClaimWrite), ok)
	app.Get("/seller-refund", set(seller), HasPermission(models.PermissionRefundWrite), ok)
	app.Get("/scoped-write", set(scoped), HasPermission(models.PermissionClaimWrite), ok)

	for path, want := range map[string]int{
		"/seller-write":  fiber.StatusNoContent,
		"/seller-refund": fiber.StatusForbidden,
		"/scoped-write":  fiber.StatusForbidden,
	} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, path)
	}
}
