package refund

import (
	"context"
	"strings"
	"time"

	domainErrors "disputehub/internal/errors"
	"disputehub/internal/models"
	"disputehub/internal/repositories"
	"disputehub/internal/scheduler"
	"disputehub/internal/services/gateway"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Deps are the collaborators of the refund service. Events is optional.
type Deps struct {
	Refunds   repositories.RefundRepository
	Orders    repositories.OrderRepository
	Ledger    repositories.LedgerRepository
	Claims    ClaimReader
	Recorder  ClaimRecorder
	Gateway   gateway.Gateway
	Scheduler scheduler.Scheduler
	Events    EventPublisher
}

type service struct {
	refunds   repositories.RefundRepository
	orders    repositories.OrderRepository
	ledger    repositories.LedgerRepository
	claims    ClaimReader
	recorder  ClaimRecorder
	gateway   gateway.Gateway
	scheduler scheduler.Scheduler
	events    EventPublisher
	config    Config
	metrics   MetricsCollector
	log       *zap.Logger
	now       func() time.Time
	newID     func() string
}

// NewService creates a new refund service
func NewService(deps Deps, config Config, metrics MetricsCollector, log *zap.Logger) Service {
	return newService(deps, config, metrics, log)
}

func newService(deps Deps, config Config, metrics MetricsCollector, log *zap.Logger) *service {
	if deps.Refunds == nil {
		panic("refund repository is required")
	}
	if deps.Orders == nil {
		panic("order repository is required")
	}
	if deps.Ledger == nil {
		panic("ledger repository is required")
	}
	if deps.Claims == nil || deps.Recorder == nil {
		panic("claim reader and recorder are required")
	}
	if deps.Gateway == nil {
		panic("gateway is required")
	}
	if deps.Scheduler == nil {
		panic("scheduler is required")
	}

	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.MaxPolls <= 0 {
		config.MaxPolls = 5
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = time.Minute
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Minute
	}
	if config.GatewayTimeout <= 0 {
		config.GatewayTimeout = 30 * time.Second
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 5 * time.Minute
	}
	if config.StalledAfter <= 0 {
		config.StalledAfter = 30 * time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}

	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &service{
		refunds:   deps.Refunds,
		orders:    deps.Orders,
		ledger:    deps.Ledger,
		claims:    deps.Claims,
		recorder:  deps.Recorder,
		gateway:   deps.Gateway,
		scheduler: deps.Scheduler,
		events:    deps.Events,
		config:    config,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
		newID: func() string {
			return "RFD-" + strings.ToUpper(uuid.NewString())
		},
	}
}

// eligibleStatuses are the claim statuses a refund may be executed from.
var eligibleStatuses = map[models.ClaimStatus]bool{
	models.ClaimStatusApproved:              true,
	models.ClaimStatusResolvedRefundFull:    true,
	models.ClaimStatusResolvedRefundPartial: true,
	models.ClaimStatusResolvedReplacement:   true,
}

func (s *service) ProcessRefund(ctx context.Context, tenant models.TenantID, req Request) (*models.Refund, error) {
	refund, err := s.prepare(ctx, tenant, req)
	if err != nil {
		s.metrics.RecordError("process", string(domainErrors.KindOf(err)))
		return nil, err
	}

	stored, created, err := s.refunds.FindOrCreate(ctx, refund)
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Info("refund created",
			zap.String("tenant_id", tenant.String()),
			zap.String("refund_id", stored.RefundID),
			zap.String("claim_id", stored.ClaimID),
			zap.String("amount", stored.Amount.String()))
		return s.execute(ctx, stored)
	}
	return s.resume(ctx, stored, req)
}

// prepare checks req against the stored claim and order and builds the
// refund row to insert.
func (s *service) prepare(ctx context.Context, tenant models.TenantID, req Request) (*models.Refund, error) {
	if tenant.IsZero() {
		return nil, ErrTenantRequired
	}
	if !req.Amount.IsPositive() {
		return nil, domainErrors.ErrInvalidAmount
	}

	claim, err := s.claims.Get(ctx, tenant, req.ClaimID)
	if err != nil {
		return nil, err
	}
	if !eligibleStatuses[claim.Status] {
		return nil, domainErrors.ErrClaimNotEligible.WithMessage("claim %s is %s", claim.ClaimID, claim.Status)
	}
	if mismatch(req.OrderID, claim.OrderID) || mismatch(req.BuyerID, claim.BuyerID) || mismatch(req.SellerID, claim.SellerID) {
		return nil, domainErrors.ErrClaimMismatch
	}

	order, err := s.orders.GetOrder(ctx, tenant, claim.OrderID)
	if err != nil {
		return nil, err
	}
	if req.Amount.GreaterThan(order.Total) || req.Amount.GreaterThan(claim.RequestedAmount) {
		return nil, domainErrors.ErrAmountExceedsLimit
	}
	if order.PaymentTransactionID == "" || order.PaymentMethod == "" {
		return nil, domainErrors.ErrPaymentInfoMissing
	}
	if mismatch(req.PaymentTransactionID, order.PaymentTransactionID) || mismatch(req.PaymentMethod, order.PaymentMethod) {
		return nil, domainErrors.ErrPaymentMismatch
	}

	currency := claim.Currency
	if currency == "" {
		currency = order.Currency
	}
	return &models.Refund{
		RefundID:             s.newID(),
		TenantID:             tenant,
		ClaimID:              claim.ClaimID,
		OrderID:              claim.OrderID,
		BuyerID:              claim.BuyerID,
		SellerID:             claim.SellerID,
		Amount:               req.Amount,
		Currency:             currency,
		Reason:               req.Reason,
		PaymentMethod:        order.PaymentMethod,
		PaymentTransactionID: order.PaymentTransactionID,
		Status:               models.RefundStatusInitiated,
	}, nil
}

func mismatch(supplied, stored string) bool {
	return supplied != "" && supplied != stored
}

// resume handles a request for a claim that already has a refund.
func (s *service) resume(ctx context.Context, existing *models.Refund, req Request) (*models.Refund, error) {
	if !existing.Amount.Equal(req.Amount) {
		return nil, domainErrors.ErrRefundConflict.WithMessage(
			"refund %s already exists for %s", existing.RefundID, existing.Amount.String())
	}
	if existing.Status != models.RefundStatusFailed {
		return existing, nil
	}

	// A failed refund the gateway had accepted is only ever polled again.
	if existing.GatewayTransactionID != "" {
		ok, err := s.awaitGateway(ctx, existing, []models.RefundStatus{models.RefundStatusFailed})
		if err != nil {
			return nil, err
		}
		if !ok {
			return s.refunds.Get(ctx, existing.TenantID, existing.RefundID)
		}
		return existing, nil
	}
	if existing.RetryCount >= s.config.MaxRetries {
		return existing, nil
	}

	// Otherwise it is queued for another attempt, which spends one retry.
	now := s.now()
	attempt := existing.RetryCount + 1
	update := repositories.RefundUpdate{
		Status:        models.RefundStatusProcessing,
		RetryCount:    &attempt,
		NextRetryAt:   &now,
		ClearNextPoll: true,
	}
	ok, err := s.refunds.Transition(ctx, existing.TenantID, existing.RefundID,
		[]models.RefundStatus{models.RefundStatusFailed}, update)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.refunds.Get(ctx, existing.TenantID, existing.RefundID)
	}
	update.Apply(existing)

	s.log.Info("requeueing failed refund",
		zap.String("refund_id", existing.RefundID),
		zap.Int("retry_count", existing.RetryCount))
	job := Job{Kind: JobRetry, TenantID: existing.TenantID, RefundID: existing.RefundID, Attempt: existing.RetryCount}
	if err := s.enqueue(ctx, 0, job); err != nil {
		s.failClosed(ctx, existing, err)
	}
	return existing, nil
}

func (s *service) GetRefund(ctx context.Context, tenant models.TenantID, claimID string) (*models.Refund, error) {
	if tenant.IsZero() {
		return nil, ErrTenantRequired
	}
	return s.refunds.GetByClaim(ctx, tenant, claimID)
}

func (s *service) publish(ctx context.Context, topic string, refund *models.Refund) {
	if s.events == nil {
		return
	}
	event := Event{
		TenantID:             refund.TenantID,
		RefundID:             refund.RefundID,
		ClaimID:              refund.ClaimID,
		OrderID:              refund.OrderID,
		BuyerID:              refund.BuyerID,
		SellerID:             refund.SellerID,
		Amount:               refund.Amount,
		Currency:             refund.Currency,
		Status:               refund.Status,
		GatewayTransactionID: refund.GatewayTransactionID,
		FailureReason:        refund.FailureReason,
		At:                   s.now(),
	}
	if err := s.events.Publish(ctx, topic, event); err != nil {
		s.log.Warn("failed to publish refund event",
			zap.String("topic", topic),
			zap.String("refund_id", refund.RefundID),
			zap.Error(err))
	}
}
