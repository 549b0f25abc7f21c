package claim

import domainErrors "disputehub/internal/errors"

var (
	ErrAdminRequired   = domainErrors.Forbidden("ADMIN_REQUIRED", "operation requires an admin")
	ErrBuyerRequired   = domainErrors.Forbidden("BUYER_REQUIRED", "only the buyer can perform this action")
	ErrDecisionExists  = domainErrors.Conflict("DECISION_EXISTS", "claim already has a decision")
	ErrNoPendingAppeal = domainErrors.Conflict("NO_PENDING_APPEAL", "claim has no pending appeal")
)
