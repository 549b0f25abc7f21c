package refund

import (
	"context"

	"disputehub/internal/models"
)

// Service defines the refund execution operations
type Service interface {
	// ProcessRefund validates req against the stored claim and order and
	// executes the claim's refund at most once.
	ProcessRefund(ctx context.Context, tenant models.TenantID, req Request) (*models.Refund, error)
	GetRefund(ctx context.Context, tenant models.TenantID, claimID string) (*models.Refund, error)

	// Scheduled work
	RetryRefund(ctx context.Context, tenant models.TenantID, refundID string, attempt int) (*models.Refund, error)
	PollStatus(ctx context.Context, tenant models.TenantID, refundID string, poll int) (*models.Refund, error)
	HandleJob(ctx context.Context, payload []byte) error
	RecoverStalled(ctx context.Context) (RecoveryResult, error)
}
