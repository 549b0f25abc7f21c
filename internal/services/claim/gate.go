package claim

import (
	"disputehub/internal/models"
	"disputehub/internal/services/investigation"
)

// CanAutoResolve reports whether the system may decide a claim on its own.
// Every condition must hold: high confidence, no manual review, a fraud score
// below AutoResolveMaxFraudScore, and a recommendation equal to what the
// seller already offered.
func CanAutoResolve(result *investigation.Result, proposal models.Proposal) bool {
	if result == nil {
		return false
	}
	return result.Confidence == investigation.ConfidenceHigh &&
		!result.RequiresManualReview &&
		result.FraudScore < AutoResolveMaxFraudScore &&
		result.RecommendedOutcome.MatchesProposal(proposal)
}
