package claim

import (
	"context"

	"disputehub/internal/models"
	"disputehub/internal/repositories"
	"disputehub/internal/services/investigation"

	"github.com/shopspring/decimal"
)

// Service defines the claim lifecycle operations
type Service interface {
	// Filing and reads
	FileClaim(ctx context.Context, tenant models.TenantID, actor Actor, req FileRequest) (*models.Claim, error)
	GetClaim(ctx context.Context, tenant models.TenantID, actor Actor, claimID string) (*models.Claim, error)
	ListClaims(ctx context.Context, tenant models.TenantID, actor Actor, filter repositories.ClaimFilter) ([]models.Claim, int64, error)

	// Parties
	RequestSellerResponse(ctx context.Context, tenant models.TenantID, actor Actor, claimID string) (*models.Claim, error)
	RespondAsSeller(ctx context.Context, tenant models.TenantID, actor Actor, claimID string, req SellerResponseRequest) (*models.Claim, error)
	AddEvidence(ctx context.Context, tenant models.TenantID, actor Actor, claimID string, input EvidenceInput) (*models.Claim, error)
	Withdraw(ctx context.Context, tenant models.TenantID, actor Actor, claimID string) (*models.Claim, error)

	// Adjudication
	AddAdminNote(ctx context.Context, tenant models.TenantID, actor Actor, claimID, note string) (*models.Claim, error)
	FlagFraud(ctx context.Context, tenant models.TenantID, actor Actor, claimID, note string) (*models.Claim, error)
	Investigate(ctx context.Context, tenant models.TenantID, actor Actor, claimID string) (*investigation.Result, error)
	Decide(ctx context.Context, tenant models.TenantID, actor Actor, claimID string, req DecisionRequest) (*models.Claim, error)
	Close(ctx context.Context, tenant models.TenantID, actor Actor, claimID string) (*models.Claim, error)

	// Appeals
	FileAppeal(ctx context.Context, tenant models.TenantID, actor Actor, claimID string, req AppealRequest) (*models.Claim, error)
	StartAppealReview(ctx context.Context, tenant models.TenantID, actor Actor, claimID string) (*models.Claim, error)
	ResolveAppeal(ctx context.Context, tenant models.TenantID, actor Actor, claimID string, res AppealResolution) (*models.Claim, error)

	// Background work
	EscalateOverdue(ctx context.Context) (BatchResult, error)
	AutoResolvePending(ctx context.Context) (BatchResult, error)

	// RecordRefund adds a completed refund to the claim's refunded total.
	RecordRefund(ctx context.Context, tenant models.TenantID, claimID string, amount decimal.Decimal) error
}
