package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type RefundStatus string

const (
	RefundStatusInitiated  RefundStatus = "initiated"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusCompleted  RefundStatus = "completed"
	RefundStatusFailed     RefundStatus = "failed"
)

// Refund is the single money-movement record for a claim. Amount and claim
// linkage never change after creation; only status bookkeeping does.
type Refund struct {
	ID                   uint            `gorm:"primarykey" json:"-"`
	RefundID             string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"refund_id"`
	TenantID             TenantID        `gorm:"type:varchar(64);not null;uniqueIndex:idx_refunds_tenant_claim;index:idx_refunds_tenant_status_created,priority:1" json:"tenant_id"`
	ClaimID              string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_refunds_tenant_claim" json:"claim_id"`
	OrderID              string          `gorm:"type:varchar(64);not null" json:"order_id"`
	BuyerID              string          `gorm:"type:varchar(64);not null" json:"buyer_id"`
	SellerID             string          `gorm:"type:varchar(64);not null" json:"seller_id"`
	Amount               decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Currency             string          `gorm:"type:varchar(3);default:'USD'" json:"currency"`
	Reason               string          `json:"reason"`
	PaymentMethod        string          `json:"payment_method"`
	PaymentTransactionID string          `json:"payment_transaction_id"`
	Status               RefundStatus    `gorm:"type:varchar(16);not null;index:idx_refunds_tenant_status_created,priority:2" json:"status"`
	GatewayTransactionID string          `json:"gateway_transaction_id,omitempty"`
	RetryCount           int             `gorm:"not null;default:0" json:"retry_count"`
	DeclineCount         int             `gorm:"not null;default:0" json:"decline_count"`
	NextRetryAt          *time.Time      `json:"next_retry_at,omitempty"`
	PollCount            int             `gorm:"not null;default:0" json:"poll_count"`
	NextPollAt           *time.Time      `json:"next_poll_at,omitempty"`
	FailureReason        string          `json:"failure_reason,omitempty"`
	ProcessingLockedAt   *time.Time      `json:"-"`
	CompletedAt          *time.Time      `json:"completed_at,omitempty"`
	FailedAt             *time.Time      `json:"failed_at,omitempty"`
	GatewayPayload       datatypes.JSON  `gorm:"type:jsonb" json:"-"`
	CreatedAt            time.Time       `gorm:"index:idx_refunds_tenant_status_created,priority:3" json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func (r *Refund) IsTerminal() bool {
	return r.Status == RefundStatusCompleted || r.Status == RefundStatusFailed
}

// NextWakeUp returns the earliest scheduled retry or poll, if any.
func (r *Refund) NextWakeUp() *time.Time {
	switch {
	case r.NextRetryAt == nil:
		return r.NextPollAt
	case r.NextPollAt == nil:
		return r.NextRetryAt
	case r.NextPollAt.Before(*r.NextRetryAt):
		return r.NextPollAt
	}
	return r.NextRetryAt
}
