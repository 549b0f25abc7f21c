package repositories

import (
	"context"
	"errors"
	"time"

	domainErrors "disputehub/internal/errors"
	"disputehub/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RefundUpdate is a partial write of refund bookkeeping fields. Nil pointers
// are left untouched; the Clear flags null or blank the matching column.
type RefundUpdate struct {
	Status               models.RefundStatus
	GatewayTransactionID *string
	ClearGatewayTx       bool
	RetryCount           *int
	DeclineCount         *int
	PollCount            *int
	NextRetryAt          *time.Time
	ClearNextRetry       bool
	NextPollAt           *time.Time
	ClearNextPoll        bool
	FailureReason        *string
	CompletedAt          *time.Time
	FailedAt             *time.Time
	GatewayPayload       []byte
}

func (u RefundUpdate) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if u.Status != "" {
		cols["status"] = u.Status
	}
	if u.ClearGatewayTx {
		cols["gateway_transaction_id"] = ""
	} else if u.GatewayTransactionID != nil {
		cols["gateway_transaction_id"] = *u.GatewayTransactionID
	}
	if u.RetryCount != nil {
		cols["retry_count"] = *u.RetryCount
	}
	if u.DeclineCount != nil {
		cols["decline_count"] = *u.DeclineCount
	}
	if u.PollCount != nil {
		cols["poll_count"] = *u.PollCount
	}
	if u.ClearNextRetry {
		cols["next_retry_at"] = nil
	} else if u.NextRetryAt != nil {
		cols["next_retry_at"] = *u.NextRetryAt
	}
	if u.ClearNextPoll {
		cols["next_poll_at"] = nil
	} else if u.NextPollAt != nil {
		cols["next_poll_at"] = *u.NextPollAt
	}
	if u.FailureReason != nil {
		cols["failure_reason"] = *u.FailureReason
	}
	if u.CompletedAt != nil {
		cols["completed_at"] = *u.CompletedAt
	}
	if u.FailedAt != nil {
		cols["failed_at"] = *u.FailedAt
	}
	if u.GatewayPayload != nil {
		cols["gateway_payload"] = datatypes.JSON(u.GatewayPayload)
	}
	return cols
}

// Apply mirrors the update onto an in-memory refund.
func (u RefundUpdate) Apply(r *models.Refund) {
	if u.Status != "" {
		r.Status = u.Status
	}
	if u.ClearGatewayTx {
		r.GatewayTransactionID = ""
	} else if u.GatewayTransactionID != nil {
		r.GatewayTransactionID = *u.GatewayTransactionID
	}
	if u.RetryCount != nil {
		r.RetryCount = *u.RetryCount
	}
	if u.DeclineCount != nil {
		r.DeclineCount = *u.DeclineCount
	}
	if u.PollCount != nil {
		r.PollCount = *u.PollCount
	}
	if u.ClearNextRetry {
		r.NextRetryAt = nil
	} else if u.NextRetryAt != nil {
		t := *u.NextRetryAt
		r.NextRetryAt = &t
	}
	if u.ClearNextPoll {
		r.NextPollAt = nil
	} else if u.NextPollAt != nil {
		t := *u.NextPollAt
		r.NextPollAt = &t
	}
	if u.FailureReason != nil {
		r.FailureReason = *u.FailureReason
	}
	if u.CompletedAt != nil {
		t := *u.CompletedAt
		r.CompletedAt = &t
	}
	if u.FailedAt != nil {
		t := *u.FailedAt
		r.FailedAt = &t
	}
	if u.GatewayPayload != nil {
		r.GatewayPayload = datatypes.JSON(u.GatewayPayload)
	}
}

// RefundRepository is the refund store. A refund is unique per (tenant, claim).
type RefundRepository interface {
	// FindOrCreate inserts refund unless one exists for its claim, and returns
	// the stored row and whether this call created it.
	FindOrCreate(ctx context.Context, refund *models.Refund) (*models.Refund, bool, error)
	Get(ctx context.Context, tenant models.TenantID, refundID string) (*models.Refund, error)
	GetByClaim(ctx context.Context, tenant models.TenantID, claimID string) (*models.Refund, error)
	// AcquireLock moves an initiated or processing refund with no live lock to
	// processing and stamps the lock.
	AcquireLock(ctx context.Context, tenant models.TenantID, refundID string, now time.Time, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, tenant models.TenantID, refundID string, lockedAt time.Time) error
	// Transition applies update only while the refund is in one of from.
	Transition(ctx context.Context, tenant models.TenantID, refundID string, from []models.RefundStatus, update RefundUpdate) (bool, error)
	ListStalled(ctx context.Context, before time.Time, limit int) ([]models.Refund, error)
}

type refundRepository struct {
	db *gorm.DB
}

func NewRefundRepository(db *gorm.DB) RefundRepository {
	return &refundRepository{db: db}
}

func (r *refundRepository) FindOrCreate(ctx context.Context, refund *models.Refund) (*models.Refund, bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "claim_id"}},
			DoNothing: true,
		}).
		Create(refund)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return refund, true, nil
	}
	existing, err := r.GetByClaim(ctx, refund.TenantID, refund.ClaimID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *refundRepository) Get(ctx context.Context, tenant models.TenantID, refundID string) (*models.Refund, error) {
	return r.first(ctx, "tenant_id = ? AND refund_id = ?", tenant, refundID)
}

func (r *refundRepository) GetByClaim(ctx context.Context, tenant models.TenantID, claimID string) (*models.Refund, error) {
	return r.first(ctx, "tenant_id = ? AND claim_id = ?", tenant, claimID)
}

func (r *refundRepository) first(ctx context.Context, query string, args ...interface{}) (*models.Refund, error) {
	var refund models.Refund
	err := r.db.WithContext(ctx).Where(query, args...).First(&refund).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainErrors.ErrRefundNotFound
	}
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *refundRepository) AcquireLock(ctx context.Context, tenant models.TenantID, refundID string, now time.Time, ttl time.Duration) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Refund{}).
		Where("tenant_id = ? AND refund_id = ? AND status IN ?", tenant, refundID,
			[]models.RefundStatus{models.RefundStatusInitiated, models.RefundStatusProcessing}).
		Where("processing_locked_at IS NULL OR processing_locked_at < ?", now.Add(-ttl)).
		Updates(map[string]interface{}{
			"status":               models.RefundStatusProcessing,
			"processing_locked_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *refundRepository) ReleaseLock(ctx context.Context, tenant models.TenantID, refundID string, lockedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Refund{}).
		Where("tenant_id = ? AND refund_id = ? AND processing_locked_at = ?", tenant, refundID, lockedAt).
		Update("processing_locked_at", nil).Error
}

func (r *refundRepository) Transition(ctx context.Context, tenant models.TenantID, refundID string, from []models.RefundStatus, update RefundUpdate) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Refund{}).
		Where("tenant_id = ? AND refund_id = ? AND status IN ?", tenant, refundID, from).
		Updates(update.columns())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListStalled returns unfinished refunds with no live lock whose last
// activity is older than before.
func (r *refundRepository) ListStalled(ctx context.Context, before time.Time, limit int) ([]models.Refund, error) {
	var refunds []models.Refund
	err := r.db.WithContext(ctx).
		Where("status IN ?", []models.RefundStatus{models.RefundStatusInitiated, models.RefundStatusProcessing}).
		Where("processing_locked_at IS NULL OR processing_locked_at < ?", before).
		Where("updated_at < ?", before).
		Where("COALESCE(LEAST(next_retry_at, next_poll_at), updated_at) < ?", before).
		Order("updated_at ASC").
		Limit(limit).
		Find(&refunds).Error
	return refunds, err
}
