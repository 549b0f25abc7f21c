package claim

import (
	"context"
	"strings"

	"disputehub/internal/models"

	"go.uber.org/zap"
)

// EscalateOverdue escalates claims whose seller response window has passed.
// Each claim is moved by a conditional write, so a claim resolved in the
// meantime is left alone and running the sweep twice changes nothing.
func (s *service) EscalateOverdue(ctx context.Context) (BatchResult, error) {
	var result BatchResult
	now := s.now().UTC()

	claims, err := s.claims.ListOverdue(ctx, now, s.config.BatchSize)
	if err != nil {
		return result, err
	}

	for i := range claims {
		claim := &claims[i]
		result.Scanned++
		if !claim.IsOverdue(now) {
			result.Skipped++
			continue
		}

		ok, err := s.claims.Escalate(ctx, claim.TenantID, claim.ClaimID, now)
		if err != nil {
			result.Failed++
			s.log.Error("failed to escalate claim",
				zap.String("tenant_id", claim.TenantID.String()),
				zap.String("claim_id", claim.ClaimID),
				zap.Error(err))
			continue
		}
		if !ok {
			result.Skipped++
			continue
		}

		result.Resolved++
		claim.Status = models.ClaimStatusEscalated
		if claim.Priority.Rank() < models.PriorityHigh.Rank() {
			claim.Priority = models.PriorityHigh
		}
		s.publish(ctx, TopicClaimEscalated, claim, SystemActor, map[string]interface{}{
			"response_deadline": claim.ResponseDeadline,
		})
	}

	s.log.Info("escalation sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("escalated", result.Resolved),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, nil
}

// AutoResolvePending investigates low-value claims the seller offered to
// refund in full and decides those the gate accepts. A failing claim is
// logged and left for the next run.
func (s *service) AutoResolvePending(ctx context.Context) (BatchResult, error) {
	var result BatchResult

	claims, err := s.claims.ListAutoResolvable(ctx, s.config.BatchSize)
	if err != nil {
		return result, err
	}

	for i := range claims {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		claim := &claims[i]
		result.Scanned++

		decided, err := s.tryAutoResolve(ctx, claim)
		switch {
		case err != nil:
			result.Failed++
			s.log.Error("auto-resolution failed",
				zap.String("tenant_id", claim.TenantID.String()),
				zap.String("claim_id", claim.ClaimID),
				zap.Error(err))
		case decided:
			result.Resolved++
		default:
			result.Skipped++
		}
	}

	s.log.Info("auto-resolution batch finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("resolved", result.Resolved),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, nil
}

// tryAutoResolve investigates claim and applies the recommendation when the
// gate allows it. It reports whether a decision was made.
func (s *service) tryAutoResolve(ctx context.Context, claim *models.Claim) (bool, error) {
	result, err := s.investigator.Investigate(ctx, claim)
	if err != nil {
		return false, err
	}
	if !CanAutoResolve(result, claim.SellerProposal) {
		s.log.Debug("claim left for manual review",
			zap.String("tenant_id", claim.TenantID.String()),
			zap.String("claim_id", claim.ClaimID),
			zap.Int("fraud_score", result.FraudScore),
			zap.String("confidence", string(result.Confidence)),
			zap.Bool("manual_review", result.RequiresManualReview),
			zap.String("recommended", string(result.RecommendedOutcome)))
		return false, nil
	}

	decision, err := s.buildDecision(claim, SystemActor, DecisionRequest{
		Outcome: result.RecommendedOutcome,
		Reason:  strings.Join(result.Reasoning, "; "),
	})
	if err != nil {
		return false, err
	}
	claim.FraudIndicators = result.IndicatorNames()
	if err := s.applyDecision(ctx, claim, SystemActor, decision); err != nil {
		return false, err
	}
	return true, nil
}
