package claim

import (
	domainErrors "disputehub/internal/errors"
	"disputehub/internal/models"
)

var resolved = []models.ClaimStatus{
	models.ClaimStatusResolvedRefundFull,
	models.ClaimStatusResolvedRefundPartial,
	models.ClaimStatusResolvedReplacement,
	models.ClaimStatusRejected,
}

func with(statuses ...models.ClaimStatus) []models.ClaimStatus {
	return append(statuses, resolved...)
}

// transitions lists the statuses reachable from each status. Anything not
// listed is refused.
var transitions = map[models.ClaimStatus][]models.ClaimStatus{
	models.ClaimStatusPendingReview: with(
		models.ClaimStatusPendingSellerResponse, models.ClaimStatusUnderReview, models.ClaimStatusUnderInvestigation,
		models.ClaimStatusApproved, models.ClaimStatusEscalated, models.ClaimStatusPendingEvidence, models.ClaimStatusWithdrawn,
	),
	models.ClaimStatusPendingSellerResponse: with(
		models.ClaimStatusUnderReview, models.ClaimStatusUnderInvestigation, models.ClaimStatusApproved,
		models.ClaimStatusEscalated, models.ClaimStatusPendingEvidence, models.ClaimStatusWithdrawn,
	),
	models.ClaimStatusUnderReview: with(
		models.ClaimStatusUnderInvestigation, models.ClaimStatusApproved, models.ClaimStatusEscalated,
		models.ClaimStatusPendingEvidence, models.ClaimStatusWithdrawn,
	),
	models.ClaimStatusUnderInvestigation: with(
		models.ClaimStatusUnderReview, models.ClaimStatusApproved, models.ClaimStatusEscalated,
		models.ClaimStatusPendingEvidence, models.ClaimStatusWithdrawn,
	),
	models.ClaimStatusApproved: with(models.ClaimStatusWithdrawn),
	models.ClaimStatusEscalated: with(
		models.ClaimStatusUnderReview, models.ClaimStatusUnderInvestigation, models.ClaimStatusApproved,
		models.ClaimStatusPendingEvidence, models.ClaimStatusWithdrawn,
	),
	models.ClaimStatusPendingEvidence: with(
		models.ClaimStatusPendingSellerResponse, models.ClaimStatusUnderReview, models.ClaimStatusUnderInvestigation,
		models.ClaimStatusApproved, models.ClaimStatusEscalated, models.ClaimStatusWithdrawn,
	),
	models.ClaimStatusResolvedRefundFull:    {models.ClaimStatusAppealed, models.ClaimStatusClosed},
	models.ClaimStatusResolvedRefundPartial: {models.ClaimStatusAppealed, models.ClaimStatusClosed},
	models.ClaimStatusResolvedReplacement:   {models.ClaimStatusAppealed, models.ClaimStatusClosed},
	models.ClaimStatusRejected:              {models.ClaimStatusAppealed, models.ClaimStatusClosed},
	models.ClaimStatusAppealed:              {models.ClaimStatusUnderAppeal, models.ClaimStatusWithdrawn},
	models.ClaimStatusUnderAppeal:           with(models.ClaimStatusClosed, models.ClaimStatusWithdrawn),
	models.ClaimStatusWithdrawn:             nil,
	models.ClaimStatusClosed:                nil,
}

// CanTransition reports whether a claim in status from may move to status to.
func CanTransition(from, to models.ClaimStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// moveTo changes the claim status or reports why it cannot.
func moveTo(claim *models.Claim, to models.ClaimStatus) error {
	if !CanTransition(claim.Status, to) {
		return domainErrors.ErrInvalidTransition.WithMessage("claim %s cannot move from %s to %s", claim.ClaimID, claim.Status, to)
	}
	claim.Status = to
	return nil
}
