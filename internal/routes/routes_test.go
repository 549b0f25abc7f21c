package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domainErrors "disputehub/internal/errors"
	"disputehub/internal/handlers"
	"disputehub/internal/middleware"
	"disputehub/internal/models"
	"disputehub/internal/repositories"
	"disputehub/internal/services/claim"
	"disputehub/internal/services/refund"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

// mockClaims implements only the claim operations the tests call.
type mockClaims struct {
	mock.Mock
	claim.Service
}

func (m *mockClaims) GetClaim(ctx context.Context, tenant models.TenantID, actor claim.Actor, id string) (*models.Claim, error) {
	args := m.Called(tenant, actor, id)
	c, _ := args.Get(0).(*models.Claim)
	return c, args.Error(1)
}

func (m *mockClaims) FileClaim(ctx context.Context, tenant models.TenantID, actor claim.Actor, req claim.FileRequest) (*models.Claim, error) {
	args := m.Called(tenant, actor, req.BuyerID)
	c, _ := args.Get(0).(*models.Claim)
	return c, args.Error(1)
}

func (m *mockClaims) Decide(ctx context.Context, tenant models.TenantID, actor claim.Actor, id string, req claim.DecisionRequest) (*models.Claim, error) {
	args := m.Called(tenant, actor, id, req.Outcome)
	c, _ := args.Get(0).(*models.Claim)
	return c, args.Error(1)
}

func (m *mockClaims) ListClaims(ctx context.Context, tenant models.TenantID, actor claim.Actor, filter repositories.ClaimFilter) ([]models.Claim, int64, error) {
	args := m.Called(tenant, filter)
	return args.Get(0).([]models.Claim), args.Get(1).(int64), args.Error(2)
}

type mockRefunds struct {
	mock.Mock
	refund.Service
}

func (m *mockRefunds) ProcessRefund(ctx context.Context, tenant models.TenantID, req refund.Request) (*models.Refund, error) {
	args := m.Called(tenant, req.ClaimID)
	r, _ := args.Get(0).(*models.Refund)
	return r, args.Error(1)
}

func newApp(claims *mockClaims, refunds *mockRefunds) *fiber.App {
	app := fiber.New()
	SetupRoutes(app, Handlers{
		Auth:   middleware.NewAuthMiddleware(secret, nil),
		Health: handlers.NewHealthHandler("test", nil),
		Claims: handlers.NewClaimHandler(claims),
		Refund: handlers.NewRefundHandler(refunds),
	})
	return app
}

func token(t *testing.T, userID, role string, permissions ...string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		UserID:           userID,
		TenantID:         " ACME ",
		Role:             role,
		Permissions:      permissions,
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func do(t *testing.T, app *fiber.App, method, path, bearer, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestHealthIsPublic(t *testing.T) {
	app := newApp(&mockClaims{}, &mockRefunds{})
	status, body := do(t, app, "GET", "/health", "", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestAPIRequiresToken(t *testing.T) {
	app := newApp(&mockClaims{}, &mockRefunds{})

	status, _ := do(t, app, "GET", "/api/claims/CLM-1", "", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = do(t, app, "GET", "/api/claims/CLM-1", "not-a-jwt", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestGetClaim_ScopesToTokenTenant(t *testing.T) {
	claims := &mockClaims{}
	buyer := claim.Actor{ID: "buyer-1", Role: models.RoleBuyer}
	claims.On("GetClaim", models.TenantID("acme"), buyer, "CLM-1").
		Return(&models.Claim{ClaimID: "CLM-1"}, nil)
	claims.On("GetClaim", models.TenantID("acme"), buyer, "CLM-2").
		Return(nil, domainErrors.ErrClaimNotFound)
	app := newApp(claims, &mockRefunds{})
	bearer := token(t, "buyer-1", "buyer")

	status, body := do(t, app, "GET", "/api/claims/CLM-1", bearer, "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "CLM-1", body["data"].(map[string]interface{})["claim_id"])

	status, body = do(t, app, "GET", "/api/claims/CLM-2", bearer, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "CLAIM_NOT_FOUND", body["code"])
	claims.AssertExpectations(t)
}

func TestFileClaim_DefaultsBuyerToCaller(t *testing.T) {
	claims := &mockClaims{}
	buyer := claim.Actor{ID: "buyer-1", Role: models.RoleBuyer}
	claims.On("FileClaim", models.TenantID("acme"), buyer, "buyer-1").
		Return(&models.Claim{ClaimID: "CLM-9"}, nil)
	app := newApp(claims, &mockRefunds{})

	status, _ := do(t, app, "POST", "/api/claims", token(t, "buyer-1", "buyer"),
		`{"order_id":"ORD-1","type":"item_not_received","requested_amount":"40"}`)
	assert.Equal(t, fiber.StatusCreated, status)
	claims.AssertExpectations(t)
}

func TestDecision_AdminOnly(t *testing.T) {
	claims := &mockClaims{}
	admin := claim.Actor{ID: "admin-1", Role: models.RoleAdmin}
	claims.On("Decide", models.TenantID("acme"), admin, "CLM-1", models.OutcomeReject).
		Return(nil, domainErrors.ErrInvalidTransition.WithMessage("cannot move closed to rejected"))
	app := newApp(claims, &mockRefunds{})
	body := `{"outcome":"reject","reason":"tracking shows delivered"}`

	status, _ := do(t, app, "POST", "/api/claims/CLM-1/decision", token(t, "seller-1", "seller"), body)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = do(t, app, "POST", "/api/claims/CLM-1/decision", token(t, "admin-1", "admin", models.PermissionClaimRead), body)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, resp := do(t, app, "POST", "/api/claims/CLM-1/decision", token(t, "admin-1", "admin"), body)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "cannot move closed to rejected", resp["error"])
	claims.AssertExpectations(t)
}

func TestListClaims_Paginates(t *testing.T) {
	claims := &mockClaims{}
	claims.On("ListClaims", models.TenantID("acme"), repositories.ClaimFilter{
		Status: models.ClaimStatusUnderReview,
		Limit:  10,
		Offset: 10,
	}).Return([]models.Claim{{ClaimID: "CLM-1"}}, int64(11), nil)
	app := newApp(claims, &mockRefunds{})

	status, body := do(t, app, "GET", "/api/claims?status=under_review&page=2&limit=10", token(t, "admin-1", "admin"), "")
	assert.Equal(t, fiber.StatusOK, status)
	meta := body["meta"].(map[string]interface{})
	assert.EqualValues(t, 2, meta["total_pages"])
}

func TestRefunds_RequirePermission(t *testing.T) {
	refunds := &mockRefunds{}
	refunds.On("ProcessRefund", models.TenantID("acme"), "CLM-1").
		Return(&models.Refund{RefundID: "RFD-1", Status: models.RefundStatusProcessing, Amount: decimal.NewFromInt(40)}, nil)
	app := newApp(&mockClaims{}, refunds)
	body := `{"claim_id":"CLM-1","amount":"40"}`

	status, _ := do(t, app, "POST", "/api/refunds", token(t, "buyer-1", "buyer"), body)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, resp := do(t, app, "POST", "/api/refunds", token(t, "ops-1", "service", models.PermissionRefundWrite), body)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Refund processing", resp["message"])
	refunds.AssertExpectations(t)
}
