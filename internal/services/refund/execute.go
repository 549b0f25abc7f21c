package refund

import (
	"context"
	"fmt"
	"time"

	"disputehub/internal/models"
	"disputehub/internal/repositories"
	"disputehub/internal/services/gateway"

	"go.uber.org/zap"
)

var active = []models.RefundStatus{models.RefundStatusProcessing}

// execute runs one gateway attempt under the processing lock. A caller that
// cannot take the lock gets the refund as stored and makes no gateway call.
func (s *service) execute(ctx context.Context, refund *models.Refund) (*models.Refund, error) {
	locked, release, err := s.lock(ctx, refund)
	if err != nil {
		return nil, err
	}
	if !locked {
		return s.refunds.Get(ctx, refund.TenantID, refund.RefundID)
	}
	defer release()

	// The gateway already holds a refund for this row; only a status query
	// may follow until it is declined.
	if refund.GatewayTransactionID != "" {
		if _, err := s.awaitGateway(ctx, refund, active); err != nil {
			return nil, err
		}
		return refund, nil
	}

	result, err := s.callRefund(ctx, refund)
	switch {
	case err != nil:
		err = s.handleFailure(ctx, refund, err.Error(), false)
	case result.Status == gateway.StatusApproved:
		err = s.complete(ctx, refund, result, nil)
	case result.Status == gateway.StatusPending && result.TransactionID != "":
		err = s.markPending(ctx, refund, result)
	case result.Status == gateway.StatusPending:
		err = s.handleFailure(ctx, refund, "pending without a gateway transaction", false)
	default:
		err = s.handleFailure(ctx, refund, declineReason(result), true)
	}
	if err != nil {
		return nil, err
	}
	return refund, nil
}

// lock takes the processing lock. The lock time is truncated to what the
// database stores so the release matches it exactly.
func (s *service) lock(ctx context.Context, refund *models.Refund) (bool, func(), error) {
	lockedAt := s.now().UTC().Truncate(time.Microsecond)
	ok, err := s.refunds.AcquireLock(ctx, refund.TenantID, refund.RefundID, lockedAt, s.config.LockTTL)
	if err != nil || !ok {
		return false, nil, err
	}
	refund.Status = models.RefundStatusProcessing
	refund.ProcessingLockedAt = &lockedAt

	release := func() {
		if err := s.refunds.ReleaseLock(context.WithoutCancel(ctx), refund.TenantID, refund.RefundID, lockedAt); err != nil {
			s.log.Warn("failed to release refund lock",
				zap.String("refund_id", refund.RefundID),
				zap.Error(err))
		}
		refund.ProcessingLockedAt = nil
	}
	return true, release, nil
}

// idempotencyKey changes only after a definitive decline. A retry after an
// error or timeout reuses the key, so the gateway answers with the refund it
// may already have made instead of making another.
func idempotencyKey(refund *models.Refund) string {
	return fmt.Sprintf("%s-%d", refund.RefundID, refund.DeclineCount)
}

func (s *service) callRefund(ctx context.Context, refund *models.Refund) (*gateway.Result, error) {
	gctx, cancel := context.WithTimeout(ctx, s.config.GatewayTimeout)
	defer cancel()

	started := time.Now()
	result, err := s.gateway.Refund(gctx, gateway.RefundRequest{
		IdempotencyKey:       idempotencyKey(refund),
		PaymentTransactionID: refund.PaymentTransactionID,
		PaymentMethod:        refund.PaymentMethod,
		Amount:               refund.Amount,
		Currency:             refund.Currency,
		Reason:               refund.Reason,
		Metadata: map[string]string{
			"tenant_id": refund.TenantID.String(),
			"refund_id": refund.RefundID,
			"claim_id":  refund.ClaimID,
		},
	})
	s.metrics.RecordGatewayCall("refund", time.Since(started), callStatus(result, err))
	if err != nil {
		s.log.Warn("gateway refund failed",
			zap.String("refund_id", refund.RefundID),
			zap.Int("retry_count", refund.RetryCount),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

func (s *service) queryStatus(ctx context.Context, refund *models.Refund) (*gateway.Result, error) {
	gctx, cancel := context.WithTimeout(ctx, s.config.GatewayTimeout)
	defer cancel()

	started := time.Now()
	result, err := s.gateway.QueryRefundStatus(gctx, refund.GatewayTransactionID)
	s.metrics.RecordGatewayCall("query", time.Since(started), callStatus(result, err))
	return result, err
}

func callStatus(result *gateway.Result, err error) string {
	if err != nil {
		return "error"
	}
	return string(result.Status)
}

func declineReason(result *gateway.Result) string {
	if result.Message == "" {
		return "declined"
	}
	return "declined: " + result.Message
}

// complete settles an approved refund. The side effects run only for the
// caller whose transition matched, so they happen once per refund.
func (s *service) complete(ctx context.Context, refund *models.Refund, result *gateway.Result, polls *int) error {
	now := s.now()
	update := repositories.RefundUpdate{
		Status:         models.RefundStatusCompleted,
		PollCount:      polls,
		CompletedAt:    &now,
		ClearNextRetry: true,
		ClearNextPoll:  true,
		GatewayPayload: result.Raw,
	}
	if result.TransactionID != "" {
		update.GatewayTransactionID = &result.TransactionID
	}
	ok, err := s.refunds.Transition(ctx, refund.TenantID, refund.RefundID, active, update)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Warn("refund left processing before completion", zap.String("refund_id", refund.RefundID))
		return nil
	}
	update.Apply(refund)
	s.metrics.RecordOutcome(models.RefundStatusCompleted)

	s.log.Info("refund completed",
		zap.String("tenant_id", refund.TenantID.String()),
		zap.String("refund_id", refund.RefundID),
		zap.String("claim_id", refund.ClaimID),
		zap.String("gateway_transaction_id", refund.GatewayTransactionID))

	s.settle(ctx, refund)
	s.publish(ctx, TopicRefundCompleted, refund)
	return nil
}

// settle applies the bookkeeping of a completed refund. The money has already
// moved, so failures are logged for reconciliation rather than returned.
func (s *service) settle(ctx context.Context, refund *models.Refund) {
	ctx = context.WithoutCancel(ctx)
	fields := []zap.Field{
		zap.String("tenant_id", refund.TenantID.String()),
		zap.String("refund_id", refund.RefundID),
		zap.String("claim_id", refund.ClaimID),
	}

	if err := s.orders.MarkRefunded(ctx, refund.TenantID, refund.OrderID, *refund.CompletedAt); err != nil {
		s.metrics.RecordError("mark_order", "settle")
		s.log.Error("failed to mark order refunded", append(fields, zap.Error(err))...)
	}
	if err := s.recorder.RecordRefund(ctx, refund.TenantID, refund.ClaimID, refund.Amount); err != nil {
		s.metrics.RecordError("record_claim", "settle")
		s.log.Error("failed to record refund on claim", append(fields, zap.Error(err))...)
	}
	applied, err := s.ledger.DeductRefund(ctx, refund)
	if err != nil {
		s.metrics.RecordError("ledger", "settle")
		s.log.Error("failed to deduct seller balance", append(fields, zap.Error(err))...)
	} else if !applied {
		s.log.Info("seller deduction already applied", fields...)
	}
}

func (s *service) markPending(ctx context.Context, refund *models.Refund, result *gateway.Result) error {
	next := s.now().Add(s.config.PollInterval)
	polls := 0
	update := repositories.RefundUpdate{
		Status:               models.RefundStatusProcessing,
		GatewayTransactionID: &result.TransactionID,
		PollCount:            &polls,
		NextPollAt:           &next,
		ClearNextRetry:       true,
		GatewayPayload:       result.Raw,
	}
	ok, err := s.refunds.Transition(ctx, refund.TenantID, refund.RefundID, active, update)
	if err != nil || !ok {
		return err
	}
	update.Apply(refund)

	s.log.Info("refund pending at gateway",
		zap.String("refund_id", refund.RefundID),
		zap.String("gateway_transaction_id", result.TransactionID))
	job := Job{Kind: JobPoll, TenantID: refund.TenantID, RefundID: refund.RefundID, Attempt: 1}
	if err := s.enqueue(ctx, s.config.PollInterval, job); err != nil {
		s.failClosed(ctx, refund, err)
	}
	return nil
}

// awaitGateway puts a refund the gateway already accepted back on status
// polling with a fresh poll budget. It reports whether the refund was in one
// of from.
func (s *service) awaitGateway(ctx context.Context, refund *models.Refund, from []models.RefundStatus) (bool, error) {
	now := s.now()
	polls := 0
	update := repositories.RefundUpdate{
		Status:         models.RefundStatusProcessing,
		PollCount:      &polls,
		NextPollAt:     &now,
		ClearNextRetry: true,
	}
	ok, err := s.refunds.Transition(ctx, refund.TenantID, refund.RefundID, from, update)
	if err != nil || !ok {
		return ok, err
	}
	update.Apply(refund)

	s.log.Info("polling refund already accepted by gateway",
		zap.String("refund_id", refund.RefundID),
		zap.String("gateway_transaction_id", refund.GatewayTransactionID))
	job := Job{Kind: JobPoll, TenantID: refund.TenantID, RefundID: refund.RefundID, Attempt: 1}
	if err := s.enqueue(ctx, 0, job); err != nil {
		s.failClosed(ctx, refund, err)
	}
	return true, nil
}

// stillPending records an inconclusive poll and schedules the next one, or
// fails the refund once the poll budget is spent.
func (s *service) stillPending(ctx context.Context, refund *models.Refund, poll int) error {
	if poll >= s.config.MaxPolls {
		return s.fail(ctx, refund, ReasonRemainedPending, false)
	}
	next := s.now().Add(s.config.PollInterval)
	update := repositories.RefundUpdate{
		Status:     models.RefundStatusProcessing,
		PollCount:  &poll,
		NextPollAt: &next,
	}
	ok, err := s.refunds.Transition(ctx, refund.TenantID, refund.RefundID, active, update)
	if err != nil || !ok {
		return err
	}
	update.Apply(refund)

	job := Job{Kind: JobPoll, TenantID: refund.TenantID, RefundID: refund.RefundID, Attempt: poll + 1}
	if err := s.enqueue(ctx, s.config.PollInterval, job); err != nil {
		s.failClosed(ctx, refund, err)
	}
	return nil
}

// handleFailure schedules the next attempt with a linear backoff, or fails
// the refund when the retries are spent. declined marks a definitive gateway
// decline: the held transaction is dropped and the next attempt gets a new
// idempotency key.
func (s *service) handleFailure(ctx context.Context, refund *models.Refund, reason string, declined bool) error {
	if refund.RetryCount >= s.config.MaxRetries {
		return s.fail(ctx, refund, reason, declined)
	}
	attempt := refund.RetryCount + 1
	delay := s.config.RetryBaseDelay * time.Duration(attempt)
	next := s.now().Add(delay)
	update := repositories.RefundUpdate{
		Status:        models.RefundStatusProcessing,
		RetryCount:    &attempt,
		NextRetryAt:   &next,
		ClearNextPoll: true,
		FailureReason: &reason,
	}
	if declined {
		declines := refund.DeclineCount + 1
		update.DeclineCount = &declines
		update.ClearGatewayTx = true
	}
	ok, err := s.refunds.Transition(ctx, refund.TenantID, refund.RefundID, active, update)
	if err != nil || !ok {
		return err
	}
	update.Apply(refund)

	s.log.Warn("refund attempt failed, retrying",
		zap.String("refund_id", refund.RefundID),
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
		zap.String("reason", reason))
	job := Job{Kind: JobRetry, TenantID: refund.TenantID, RefundID: refund.RefundID, Attempt: attempt}
	if err := s.enqueue(ctx, delay, job); err != nil {
		s.failClosed(ctx, refund, err)
	}
	return nil
}

func (s *service) fail(ctx context.Context, refund *models.Refund, reason string, declined bool) error {
	now := s.now()
	update := repositories.RefundUpdate{
		Status:         models.RefundStatusFailed,
		FailureReason:  &reason,
		FailedAt:       &now,
		ClearNextRetry: true,
		ClearNextPoll:  true,
	}
	if declined {
		declines := refund.DeclineCount + 1
		update.DeclineCount = &declines
		update.ClearGatewayTx = true
	}
	ok, err := s.refunds.Transition(ctx, refund.TenantID, refund.RefundID,
		[]models.RefundStatus{models.RefundStatusInitiated, models.RefundStatusProcessing}, update)
	if err != nil || !ok {
		return err
	}
	update.Apply(refund)
	s.metrics.RecordOutcome(models.RefundStatusFailed)

	s.log.Error("refund failed",
		zap.String("tenant_id", refund.TenantID.String()),
		zap.String("refund_id", refund.RefundID),
		zap.String("claim_id", refund.ClaimID),
		zap.Int("retry_count", refund.RetryCount),
		zap.String("reason", reason))
	s.publish(ctx, TopicRefundFailed, refund)
	return nil
}

// failClosed fails a refund whose wake-up could not be scheduled, so no
// processing refund is left without one.
func (s *service) failClosed(ctx context.Context, refund *models.Refund, cause error) {
	s.log.Error("could not schedule refund job",
		zap.String("refund_id", refund.RefundID),
		zap.Error(cause))
	if err := s.fail(context.WithoutCancel(ctx), refund, ReasonSchedulingUnavailable, false); err != nil {
		s.log.Error("failed to fail refund after scheduling error",
			zap.String("refund_id", refund.RefundID),
			zap.Error(err))
	}
}
