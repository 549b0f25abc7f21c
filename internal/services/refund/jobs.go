package refund

import (
	"context"
	"encoding/json"
	"time"

	domainErrors "disputehub/internal/errors"
	"disputehub/internal/models"
	"disputehub/internal/scheduler"
	"disputehub/internal/services/gateway"

	"go.uber.org/zap"
)

func schedule(ctx context.Context, sch scheduler.Scheduler, delay time.Duration, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return sch.Schedule(ctx, delay, job.ID(), payload)
}

func (s *service) enqueue(ctx context.Context, delay time.Duration, job Job) error {
	return schedule(ctx, s.scheduler, delay, job)
}

// HandleJob runs a scheduled job. Errors that another delivery cannot fix are
// logged and swallowed so the queue drops the job.
func (s *service) HandleJob(ctx context.Context, payload []byte) error {
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		s.log.Error("dropping unreadable refund job", zap.Error(ErrInvalidJob.Wrap(err)))
		return nil
	}

	var err error
	switch job.Kind {
	case JobProcess:
		if job.Request == nil {
			s.log.Error("dropping process job without a request", zap.String("job_id", job.ID()))
			return nil
		}
		_, err = s.ProcessRefund(ctx, job.TenantID, *job.Request)
	case JobRetry:
		_, err = s.RetryRefund(ctx, job.TenantID, job.RefundID, job.Attempt)
	case JobPoll:
		_, err = s.PollStatus(ctx, job.TenantID, job.RefundID, job.Attempt)
	default:
		s.log.Error("dropping unknown refund job", zap.String("kind", string(job.Kind)))
		return nil
	}

	if err != nil && !domainErrors.Retryable(err) && domainErrors.KindOf(err) != domainErrors.KindInternal {
		s.log.Warn("dropping refund job",
			zap.String("job_id", job.ID()),
			zap.String("code", domainErrors.Code(err)),
			zap.Error(err))
		return nil
	}
	return err
}

// RetryRefund makes the retry attempt a job was scheduled for. A job that no
// longer matches the refund is ignored.
func (s *service) RetryRefund(ctx context.Context, tenant models.TenantID, refundID string, attempt int) (*models.Refund, error) {
	refund, err := s.refunds.Get(ctx, tenant, refundID)
	if err != nil {
		return nil, err
	}
	if refund.Status != models.RefundStatusProcessing || refund.NextRetryAt == nil || refund.RetryCount != attempt {
		s.log.Debug("ignoring stale retry job",
			zap.String("refund_id", refundID),
			zap.Int("attempt", attempt),
			zap.String("status", string(refund.Status)))
		return refund, nil
	}
	return s.execute(ctx, refund)
}

// PollStatus asks the gateway about a pending refund. Only an approved status
// completes it; an inconclusive answer counts against the poll budget.
func (s *service) PollStatus(ctx context.Context, tenant models.TenantID, refundID string, poll int) (*models.Refund, error) {
	refund, err := s.refunds.Get(ctx, tenant, refundID)
	if err != nil {
		return nil, err
	}
	if refund.Status != models.RefundStatusProcessing || refund.NextPollAt == nil || refund.PollCount+1 != poll {
		s.log.Debug("ignoring stale poll job",
			zap.String("refund_id", refundID),
			zap.Int("poll", poll),
			zap.String("status", string(refund.Status)))
		return refund, nil
	}

	locked, release, err := s.lock(ctx, refund)
	if err != nil {
		return nil, err
	}
	if !locked {
		return s.refunds.Get(ctx, tenant, refundID)
	}
	defer release()

	result, err := s.queryStatus(ctx, refund)
	switch {
	case err != nil:
		s.log.Warn("refund status query failed",
			zap.String("refund_id", refundID),
			zap.Int("poll", poll),
			zap.Error(err))
		err = s.stillPending(ctx, refund, poll)
	case result.Status == gateway.StatusApproved:
		err = s.complete(ctx, refund, result, &poll)
	case result.Status == gateway.StatusDeclined:
		err = s.handleFailure(ctx, refund, declineReason(result), true)
	default:
		err = s.stillPending(ctx, refund, poll)
	}
	if err != nil {
		return nil, err
	}
	return refund, nil
}

// RecoverStalled reschedules processing refunds whose wake-up is long past,
// re-drives refunds left without one and starts refunds for claims whose
// refund job was never queued.
func (s *service) RecoverStalled(ctx context.Context) (RecoveryResult, error) {
	var res RecoveryResult
	before := s.now().Add(-s.config.StalledAfter)
	stalled, err := s.refunds.ListStalled(ctx, before, s.config.BatchSize)
	if err != nil {
		return res, err
	}
	res.Scanned = len(stalled)

	for i := range stalled {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		refund := &stalled[i]
		if refund.Status == models.RefundStatusProcessing && refund.NextWakeUp() != nil {
			if err := s.reschedule(ctx, refund); err != nil {
				res.Failed++
				s.failClosed(ctx, refund, err)
				continue
			}
			res.Rescheduled++
			continue
		}
		if _, err := s.execute(ctx, refund); err != nil {
			res.Failed++
			s.log.Error("failed to re-drive refund",
				zap.String("refund_id", refund.RefundID),
				zap.Error(err))
			continue
		}
		res.Redriven++
	}

	awaiting, err := s.claims.ListAwaitingRefund(ctx, before, s.config.BatchSize)
	if err != nil {
		return res, err
	}
	res.Scanned += len(awaiting)
	for i := range awaiting {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		claim := &awaiting[i]
		req, err := requestFor(claim)
		if err == nil {
			_, err = s.ProcessRefund(ctx, claim.TenantID, *req)
		}
		if err != nil {
			res.Failed++
			s.log.Error("failed to start refund for decided claim",
				zap.String("tenant_id", claim.TenantID.String()),
				zap.String("claim_id", claim.ClaimID),
				zap.Error(err))
			continue
		}
		res.Started++
	}

	s.log.Info("stalled refund recovery finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("rescheduled", res.Rescheduled),
		zap.Int("redriven", res.Redriven),
		zap.Int("started", res.Started),
		zap.Int("failed", res.Failed))
	return res, nil
}

func (s *service) reschedule(ctx context.Context, refund *models.Refund) error {
	job := Job{Kind: JobRetry, TenantID: refund.TenantID, RefundID: refund.RefundID, Attempt: refund.RetryCount}
	if refund.NextPollAt != nil && refund.NextWakeUp() == refund.NextPollAt {
		job = Job{Kind: JobPoll, TenantID: refund.TenantID, RefundID: refund.RefundID, Attempt: refund.PollCount + 1}
	}
	return s.enqueue(ctx, 0, job)
}

// Enqueuer queues refund execution for claims decided with a refund outcome.
// It needs only the scheduler, so the claim service can hold one without
// depending on the refund service.
type Enqueuer struct {
	scheduler scheduler.Scheduler
	log       *zap.Logger
}

func NewEnqueuer(sch scheduler.Scheduler, log *zap.Logger) *Enqueuer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Enqueuer{scheduler: sch, log: log}
}

func (e *Enqueuer) EnqueueRefund(ctx context.Context, claim *models.Claim) error {
	req, err := requestFor(claim)
	if err != nil {
		return err
	}
	job := Job{Kind: JobProcess, TenantID: claim.TenantID, Request: req}
	if err := schedule(ctx, e.scheduler, 0, job); err != nil {
		return err
	}
	e.log.Info("refund queued",
		zap.String("tenant_id", claim.TenantID.String()),
		zap.String("claim_id", claim.ClaimID),
		zap.String("amount", req.Amount.String()))
	return nil
}

// requestFor builds the refund request a claim's decision calls for. The
// amount defaults to the claim's refund cap.
func requestFor(claim *models.Claim) (*Request, error) {
	if claim.Decision == nil || !claim.Decision.Outcome.IsRefund() {
		return nil, domainErrors.ErrClaimNotEligible.WithMessage("claim %s has no refund decision", claim.ClaimID)
	}
	amount := claim.RefundCap()
	if claim.Decision.RefundAmount != nil {
		amount = *claim.Decision.RefundAmount
	}
	return &Request{
		ClaimID:  claim.ClaimID,
		OrderID:  claim.OrderID,
		BuyerID:  claim.BuyerID,
		SellerID: claim.SellerID,
		Amount:   amount,
		Reason:   claim.Decision.Reason,
	}, nil
}
