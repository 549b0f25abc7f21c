// Package routes defines the API routing configuration.
// It sets up all HTTP routes and their corresponding handlers,
// including middleware and authentication requirements.
package routes

import (
	"disputehub/internal/handlers"
	"disputehub/internal/middleware"
	"disputehub/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Handlers are the route targets, built by the server bootstrap.
type Handlers struct {
	Auth   *middleware.AuthMiddleware
	Health *handlers.HealthHandler
	Claims *handlers.ClaimHandler
	Refund *handlers.RefundHandler
}

// SetupRoutes configures all application routes.
// It groups routes by functionality and applies appropriate middleware.
func SetupRoutes(app *fiber.App, h Handlers) {
	app.Get("/health", h.Health.HealthCheck)

	api := app.Group("/api", h.Auth.Handler)

	claims := api.Group("/claims")
	read := middleware.HasPermission(models.PermissionClaimRead)
	write := middleware.HasPermission(models.PermissionClaimWrite)

	claims.Post("/", write, h.Claims.FileClaim)
	claims.Get("/", read, h.Claims.ListClaims)
	claims.Get("/:id", read, h.Claims.GetClaim)
	claims.Post("/:id/evidence", write, h.Claims.AddEvidence)
	claims.Post("/:id/seller-response", write, h.Claims.RespondAsSeller)
	claims.Post("/:id/withdraw", write, h.Claims.Withdraw)
	claims.Post("/:id/appeal", write, h.Claims.FileAppeal)

	// Admin routes
	admin := middleware.AdminAuthMiddleware
	claims.Post("/:id/request-response", admin, h.Claims.RequestSellerResponse)
	claims.Post("/:id/decision", admin, h.Claims.Decide)
	claims.Post("/:id/notes", admin, h.Claims.AddAdminNote)
	claims.Post("/:id/fraud", admin, h.Claims.FlagFraud)
	claims.Post("/:id/appeal/review", admin, h.Claims.StartAppealReview)
	claims.Post("/:id/appeal/resolve", admin, h.Claims.ResolveAppeal)
	claims.Post("/:id/close", admin, h.Claims.Close)
	claims.Get("/:id/investigation", admin, h.Claims.Investigate)

	refunds := api.Group("/refunds", middleware.HasPermission(models.PermissionRefundWrite))
	refunds.Post("/", h.Refund.ProcessRefund)
	refunds.Get("/:claimId", h.Refund.GetRefund)
}
