package repositories

import (
	"context"
	"os"
	"testing"
	"time"

	domainErrors "disputehub/internal/errors"
	"disputehub/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// testDSNEnv names a disposable postgres database the repositories are run
// against. Each test works in its own tenant, so runs do not collide.
const testDSNEnv = "DISPUTEHUB_TEST_DATABASE_DSN"

func openTestDB(t *testing.T) (*gorm.DB, models.TenantID) {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() { Close(db) })
	return db, models.TenantID("t-" + uuid.NewString())
}

func testClaim(tenant models.TenantID, claimID string, status models.ClaimStatus) *models.Claim {
	now := time.Now().UTC()
	return &models.Claim{
		TenantID:         tenant,
		ClaimID:          claimID,
		OrderID:          "O-" + claimID,
		BuyerID:          "B-1",
		SellerID:         "S-1",
		Type:             models.ClaimTypeItemNotReceived,
		Status:           status,
		FiledAt:          now.Add(-72 * time.Hour),
		ResponseDeadline: now.Add(-24 * time.Hour),
		OrderAmount:      decimal.NewFromInt(40),
		RequestedAmount:  decimal.NewFromInt(40),
		Priority:         models.PriorityLow,
	}
}

func TestClaimRepository_Postgres_Escalate(t *testing.T) {
	db, tenant := openTestDB(t)
	repo := NewClaimRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, testClaim(tenant, "C-STALE", models.ClaimStatusPendingSellerResponse)))
	urgent := testClaim(tenant, "C-URGENT", models.ClaimStatusPendingReview)
	urgent.Priority = models.PriorityUrgent
	require.NoError(t, repo.Create(ctx, urgent))
	fresh := testClaim(tenant, "C-FRESH", models.ClaimStatusPendingSellerResponse)
	fresh.ResponseDeadline = now.Add(time.Hour)
	require.NoError(t, repo.Create(ctx, fresh))
	require.NoError(t, repo.Create(ctx, testClaim(tenant, "C-DONE", models.ClaimStatusClosed)))

	ok, err := repo.Escalate(ctx, tenant, "C-STALE", now)
	require.NoError(t, err)
	assert.True(t, ok)
	got, err := repo.Get(ctx, tenant, "C-STALE")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusEscalated, got.Status)
	assert.Equal(t, models.PriorityHigh, got.Priority)
	assert.Equal(t, 2, got.Version)
	assert.NotNil(t, got.EscalatedAt)

	ok, err = repo.Escalate(ctx, tenant, "C-STALE", now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Escalate(ctx, tenant, "C-URGENT", now)
	require.NoError(t, err)
	assert.True(t, ok)
	got, err = repo.Get(ctx, tenant, "C-URGENT")
	require.NoError(t, err)
	assert.Equal(t, models.PriorityUrgent, got.Priority)

	for _, id := range []string{"C-FRESH", "C-DONE"} {
		ok, err = repo.Escalate(ctx, tenant, id, now)
		require.NoError(t, err)
		assert.False(t, ok, id)
	}
	ok, err = repo.Escalate(ctx, "other-tenant", "C-FRESH", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRefundRepository_Postgres_AcquireLock(t *testing.T) {
	db, tenant := openTestDB(t)
	repo := NewRefundRepository(db)
	ctx := context.Background()
	refundID := "RFD-" + uuid.NewString()

	refund := &models.Refund{
		RefundID: refundID,
		TenantID: tenant,
		ClaimID:  "C-1",
		OrderID:  "O-1",
		BuyerID:  "B-1",
		SellerID: "S-1",
		Amount:   decimal.NewFromInt(40),
		Status:   models.RefundStatusInitiated,
	}
	_, created, err := repo.FindOrCreate(ctx, refund)
	require.NoError(t, err)
	require.True(t, created)

	lockedAt := time.Now().UTC().Truncate(time.Microsecond)
	ok, err := repo.AcquireLock(ctx, tenant, refundID, lockedAt, 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AcquireLock(ctx, tenant, refundID, lockedAt.Add(time.Minute), 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "live lock must not be taken")

	later := lockedAt.Add(6 * time.Minute)
	ok, err = repo.AcquireLock(ctx, tenant, refundID, later, 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired lock is taken over")

	require.NoError(t, repo.ReleaseLock(ctx, tenant, refundID, lockedAt))
	got, err := repo.Get(ctx, tenant, refundID)
	require.NoError(t, err)
	require.NotNil(t, got.ProcessingLockedAt, "a stale release leaves the newer lock")
	assert.True(t, got.ProcessingLockedAt.Equal(later))
	assert.Equal(t, models.RefundStatusProcessing, got.Status)

	require.NoError(t, repo.ReleaseLock(ctx, tenant, refundID, later))
	got, err = repo.Get(ctx, tenant, refundID)
	require.NoError(t, err)
	assert.Nil(t, got.ProcessingLockedAt)

	ok, err = repo.Transition(ctx, tenant, refundID, []models.RefundStatus{models.RefundStatusProcessing},
		RefundUpdate{Status: models.RefundStatusCompleted})
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.AcquireLock(ctx, tenant, refundID, later.Add(time.Hour), 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "terminal refunds are never locked")
}

func TestClaimRepository_Postgres_AddRefunded(t *testing.T) {
	db, tenant := openTestDB(t)
	repo := NewClaimRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, testClaim(tenant, "C-1", models.ClaimStatusResolvedRefundPartial)))

	require.NoError(t, repo.AddRefunded(ctx, tenant, "C-1", decimal.NewFromInt(30)))
	err := repo.AddRefunded(ctx, tenant, "C-1", decimal.NewFromInt(20))
	assert.ErrorIs(t, err, domainErrors.ErrRefundLimitExceeded)
	assert.ErrorIs(t, repo.AddRefunded(ctx, tenant, "C-404", decimal.NewFromInt(1)), domainErrors.ErrClaimNotFound)

	got, err := repo.Get(ctx, tenant, "C-1")
	require.NoError(t, err)
	assert.True(t, got.RefundedAmount.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, 2, got.Version)
}

func TestClaimRepository_Postgres_DecisionFilters(t *testing.T) {
	db, tenant := openTestDB(t)
	claims := NewClaimRepository(db)
	refunds := NewRefundRepository(db)
	ctx := context.Background()
	resolvedAt := time.Now().UTC().Add(-time.Hour)

	for id, decision := range map[string]*models.Decision{
		"C-NONE":   nil,
		"C-MORE":   {Outcome: models.OutcomeNeedsMoreInfo},
		"C-REJECT": {Outcome: models.OutcomeReject},
	} {
		c := testClaim(tenant, id, models.ClaimStatusUnderReview)
		c.IsAutoResolvable = true
		c.SellerProposal = models.ProposalRefundFull
		c.Decision = decision
		require.NoError(t, claims.Create(ctx, c))
	}
	for _, id := range []string{"C-QUEUED", "C-LOST"} {
		c := testClaim(tenant, id, models.ClaimStatusResolvedRefundFull)
		c.Decision = &models.Decision{Outcome: models.OutcomeRefundFull}
		c.ResolvedAt = &resolvedAt
		require.NoError(t, claims.Create(ctx, c))
	}
	_, _, err := refunds.FindOrCreate(ctx, &models.Refund{
		RefundID: "RFD-" + uuid.NewString(),
		TenantID: tenant,
		ClaimID:  "C-QUEUED",
		OrderID:  "O-C-QUEUED",
		BuyerID:  "B-1",
		SellerID: "S-1",
		Amount:   decimal.NewFromInt(40),
		Status:   models.RefundStatusInitiated,
	})
	require.NoError(t, err)

	resolvable, err := claims.ListAutoResolvable(ctx, 10000)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"C-NONE", "C-MORE"}, idsIn(tenant, resolvable))

	awaiting, err := claims.ListAwaitingRefund(ctx, time.Now().UTC(), 10000)
	require.NoError(t, err)
	assert.Equal(t, []string{"C-LOST"}, idsIn(tenant, awaiting))
}

func TestLedgerRepository_Postgres_DeductRefundOnce(t *testing.T) {
	db, tenant := openTestDB(t)
	ledger := NewLedgerRepository(db)
	ctx := context.Background()
	refund := &models.Refund{
		RefundID: "RFD-" + uuid.NewString(),
		TenantID: tenant,
		ClaimID:  "C-1",
		SellerID: "S-1",
		Amount:   decimal.NewFromInt(40),
		Currency: "USD",
	}

	applied, err := ledger.DeductRefund(ctx, refund)
	require.NoError(t, err)
	assert.True(t, applied)
	applied, err = ledger.DeductRefund(ctx, refund)
	require.NoError(t, err)
	assert.False(t, applied)

	var balance models.SellerBalance
	require.NoError(t, db.Where("tenant_id = ? AND seller_id = ?", tenant, "S-1").First(&balance).Error)
	assert.True(t, balance.Balance.Equal(decimal.NewFromInt(-40)))
}

func idsIn(tenant models.TenantID, claims []models.Claim) []string {
	var out []string
	for _, c := range claims {
		if c.TenantID == tenant {
			out = append(out, c.ClaimID)
		}
	}
	return out
}
