package claim

import (
	"context"
	"strings"

	domainErrors "disputehub/internal/errors"
	"disputehub/internal/models"

	"go.uber.org/zap"
)

func (s *service) FileAppeal(ctx context.Context, tenant models.TenantID, actor Actor, claimID string, req AppealRequest) (*models.Claim, error) {
	claim, err := s.claims.Get(ctx, tenant, claimID)
	if err != nil {
		return nil, err
	}
	if !isParty(claim, actor) {
		return nil, domainErrors.ErrNotClaimParty
	}
	if claim.Decision == nil || !claim.Status.IsResolved() {
		return nil, domainErrors.ErrAppealNotAllowed.WithMessage("claim %s has no final decision to appeal", claim.ClaimID)
	}
	if claim.PendingAppeal() {
		return nil, domainErrors.ErrAppealNotAllowed.WithMessage("claim %s already has a pending appeal", claim.ClaimID)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, domainErrors.ErrInvalidClaim.WithMessage("appeal reason is required")
	}
	if err := validateEvidence(req.Evidence); err != nil {
		return nil, err
	}
	for _, id := range req.EvidenceIDs {
		if !claim.HasEvidence(id) {
			return nil, domainErrors.ErrInvalidClaim.WithMessage("evidence %s is not on claim %s", id, claim.ClaimID)
		}
	}
	if err := moveTo(claim, models.ClaimStatusAppealed); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	original := *claim.Decision
	claim.Appeal = &models.Appeal{
		AppealedBy:       actor.Role,
		AppellantID:      actor.ID,
		Reason:           req.Reason,
		EvidenceIDs:      append(append([]string(nil), req.EvidenceIDs...), s.appendEvidence(claim, actor.Role, actor.ID, req.Evidence, now)...),
		Status:           models.AppealPending,
		FiledAt:          now,
		OriginalDecision: &original,
	}

	if err := s.claims.Update(ctx, claim); err != nil {
		return nil, err
	}
	s.log.Info("appeal filed",
		zap.String("tenant_id", tenant.String()),
		zap.String("claim_id", claim.ClaimID),
		zap.String("appealed_by", string(actor.Role)))
	s.publish(ctx, TopicAppealFiled, claim, actor, map[string]interface{}{
		"reason":           req.Reason,
		"original_outcome": original.Outcome,
	})
	return claim, nil
}

func (s *service) StartAppealReview(ctx context.Context, tenant models.TenantID, actor Actor, claimID string) (*models.Claim, error) {
	if actor.Role != models.RoleAdmin {
		return nil, ErrAdminRequired
	}
	claim, err := s.claims.Get(ctx, tenant, claimID)
	if err != nil {
		return nil, err
	}
	if !claim.PendingAppeal() {
		return nil, ErrNoPendingAppeal
	}
	if err := moveTo(claim, models.ClaimStatusUnderAppeal); err != nil {
		return nil, err
	}
	claim.Appeal.ReviewerID = actor.ID
	if err := s.claims.Update(ctx, claim); err != nil {
		return nil, err
	}
	return claim, nil
}

func (s *service) ResolveAppeal(ctx context.Context, tenant models.TenantID, actor Actor, claimID string, res AppealResolution) (*models.Claim, error) {
	if actor.Role != models.RoleAdmin {
		return nil, ErrAdminRequired
	}
	claim, err := s.claims.Get(ctx, tenant, claimID)
	if err != nil {
		return nil, err
	}
	if claim.Status != models.ClaimStatusAppealed && claim.Status != models.ClaimStatusUnderAppeal {
		return nil, domainErrors.ErrInvalidTransition.WithMessage("claim %s is %s and has no appeal under review", claim.ClaimID, claim.Status)
	}
	if !claim.PendingAppeal() {
		return nil, ErrNoPendingAppeal
	}
	// Resolution always passes through review.
	if claim.Status == models.ClaimStatusAppealed {
		if err := moveTo(claim, models.ClaimStatusUnderAppeal); err != nil {
			return nil, err
		}
	}

	if !res.Approve {
		if err := moveTo(claim, models.ClaimStatusClosed); err != nil {
			return nil, err
		}
		s.finishAppeal(claim, actor, models.AppealRejected, res.Note)
		if err := s.claims.Update(ctx, claim); err != nil {
			return nil, err
		}
		s.publish(ctx, TopicAppealResolved, claim, actor, map[string]interface{}{
			"approved": false,
			"note":     res.Note,
		})
		return claim, nil
	}

	if res.Decision == nil {
		return nil, domainErrors.ErrInvalidClaim.WithMessage("an approved appeal needs a new decision")
	}
	if res.Decision.Outcome == models.OutcomeNeedsMoreInfo {
		return nil, domainErrors.ErrInvalidClaim.WithMessage("an appeal cannot be resolved with %s", models.OutcomeNeedsMoreInfo)
	}
	decision, err := s.buildDecision(claim, actor, *res.Decision)
	if err != nil {
		return nil, err
	}
	s.finishAppeal(claim, actor, models.AppealApproved, res.Note)
	if err := s.applyDecision(ctx, claim, actor, decision); err != nil {
		return nil, err
	}
	s.publish(ctx, TopicAppealResolved, claim, actor, map[string]interface{}{
		"approved": true,
		"outcome":  decision.Outcome,
		"note":     res.Note,
	})
	return claim, nil
}

func (s *service) finishAppeal(claim *models.Claim, actor Actor, status models.AppealStatus, note string) {
	now := s.now().UTC()
	claim.Appeal.Status = status
	claim.Appeal.ReviewedAt = &now
	claim.Appeal.ReviewerID = actor.ID
	claim.Appeal.Resolution = note
}
