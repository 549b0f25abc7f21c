package repositories

import (
	"context"
	"errors"
	"time"

	domainErrors "disputehub/internal/errors"
	"disputehub/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ClaimFilter narrows ListClaims. Zero values are ignored.
type ClaimFilter struct {
	Status   models.ClaimStatus
	BuyerID  string
	SellerID string
	Limit    int
	Offset   int
}

// ClaimRepository is the claim store. Every lookup is tenant scoped; a claim
// in another tenant is reported as not found.
type ClaimRepository interface {
	Create(ctx context.Context, claim *models.Claim) error
	Get(ctx context.Context, tenant models.TenantID, claimID string) (*models.Claim, error)
	// Update writes the claim if its version is unchanged and bumps the version.
	Update(ctx context.Context, claim *models.Claim) error
	List(ctx context.Context, tenant models.TenantID, filter ClaimFilter) ([]models.Claim, int64, error)
	HasActiveForOrder(ctx context.Context, tenant models.TenantID, orderID string) (bool, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Claim, error)
	// Escalate moves a claim to escalated only while it is still waiting on the seller.
	Escalate(ctx context.Context, tenant models.TenantID, claimID string, now time.Time) (bool, error)
	ListAutoResolvable(ctx context.Context, limit int) ([]models.Claim, error)
	AddRefunded(ctx context.Context, tenant models.TenantID, claimID string, amount decimal.Decimal) error
	// ListAwaitingRefund returns claims resolved with a refund before the given
	// time that still have no refund row.
	ListAwaitingRefund(ctx context.Context, before time.Time, limit int) ([]models.Claim, error)
}

// StaleStatuses are the statuses the escalation sweep acts on.
var StaleStatuses = []models.ClaimStatus{
	models.ClaimStatusPendingReview,
	models.ClaimStatusPendingSellerResponse,
}

// RefundedStatuses are the statuses a refund decision resolves a claim to.
var RefundedStatuses = []models.ClaimStatus{
	models.ClaimStatusResolvedRefundFull,
	models.ClaimStatusResolvedRefundPartial,
}

type claimRepository struct {
	db *gorm.DB
}

func NewClaimRepository(db *gorm.DB) ClaimRepository {
	return &claimRepository{db: db}
}

func (r *claimRepository) Create(ctx context.Context, claim *models.Claim) error {
	if claim.Version == 0 {
		claim.Version = 1
	}
	err := r.db.WithContext(ctx).Create(claim).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domainErrors.ErrDuplicateClaim.WithMessage("claim %s already exists", claim.ClaimID)
	}
	return err
}

func (r *claimRepository) Get(ctx context.Context, tenant models.TenantID, claimID string) (*models.Claim, error) {
	var claim models.Claim
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND claim_id = ?", tenant, claimID).
		First(&claim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainErrors.ErrClaimNotFound
	}
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *claimRepository) Update(ctx context.Context, claim *models.Claim) error {
	updated := *claim
	updated.Version = claim.Version + 1

	res := r.db.WithContext(ctx).Model(&updated).
		Where("tenant_id = ? AND version = ?", claim.TenantID, claim.Version).
		Select("*").
		Omit("ID", "TenantID", "ClaimID", "CreatedAt").
		Updates(&updated)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainErrors.ErrStaleClaim
	}
	*claim = updated
	return nil
}

func (r *claimRepository) List(ctx context.Context, tenant models.TenantID, filter ClaimFilter) ([]models.Claim, int64, error) {
	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Claim{}).Where("tenant_id = ?", tenant)
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.BuyerID != "" {
			q = q.Where("buyer_id = ?", filter.BuyerID)
		}
		if filter.SellerID != "" {
			q = q.Where("seller_id = ?", filter.SellerID)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	var claims []models.Claim
	err := scoped().
		Order("filed_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&claims).Error
	return claims, total, err
}

func (r *claimRepository) HasActiveForOrder(ctx context.Context, tenant models.TenantID, orderID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Claim{}).
		Where("tenant_id = ? AND order_id = ? AND status <> ?", tenant, orderID, models.ClaimStatusWithdrawn).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *claimRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Claim, error) {
	var claims []models.Claim
	err := r.db.WithContext(ctx).
		Where("status IN ? AND response_deadline < ?", StaleStatuses, now).
		Order("response_deadline ASC").
		Limit(limit).
		Find(&claims).Error
	return claims, err
}

func (r *claimRepository) Escalate(ctx context.Context, tenant models.TenantID, claimID string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Claim{}).
		Where("tenant_id = ? AND claim_id = ? AND status IN ? AND response_deadline < ?",
			tenant, claimID, StaleStatuses, now).
		Updates(map[string]interface{}{
			"status":       models.ClaimStatusEscalated,
			"priority":     gorm.Expr("CASE WHEN priority = ? THEN priority ELSE ? END", models.PriorityUrgent, models.PriorityHigh),
			"escalated_at": now,
			"version":      gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *claimRepository) ListAutoResolvable(ctx context.Context, limit int) ([]models.Claim, error) {
	var claims []models.Claim
	err := r.db.WithContext(ctx).
		Where("status = ? AND is_auto_resolvable = ? AND seller_proposal = ?",
			models.ClaimStatusUnderReview, true, models.ProposalRefundFull).
		Where("decision IS NULL OR decision->>'outcome' = ?", models.OutcomeNeedsMoreInfo).
		Order("filed_at ASC").
		Limit(limit).
		Find(&claims).Error
	return claims, err
}

func (r *claimRepository) AddRefunded(ctx context.Context, tenant models.TenantID, claimID string, amount decimal.Decimal) error {
	res := r.db.WithContext(ctx).Model(&models.Claim{}).
		Where("tenant_id = ? AND claim_id = ?", tenant, claimID).
		Where("refunded_amount + ? <= order_amount AND refunded_amount + ? <= requested_amount", amount, amount).
		Updates(map[string]interface{}{
			"refunded_amount": gorm.Expr("refunded_amount + ?", amount),
			"version":         gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if _, err := r.Get(ctx, tenant, claimID); err != nil {
		return err
	}
	return domainErrors.ErrRefundLimitExceeded
}

func (r *claimRepository) ListAwaitingRefund(ctx context.Context, before time.Time, limit int) ([]models.Claim, error) {
	var claims []models.Claim
	err := r.db.WithContext(ctx).
		Where("status IN ? AND resolved_at < ?", RefundedStatuses, before).
		Where("decision->>'outcome' IN ?", []models.Outcome{models.OutcomeRefundFull, models.OutcomeRefundPartial}).
		Where("NOT EXISTS (SELECT 1 FROM refunds WHERE refunds.tenant_id = claims.tenant_id AND refunds.claim_id = claims.claim_id)").
		Order("resolved_at ASC").
		Limit(limit).
		Find(&claims).Error
	return claims, err
}
