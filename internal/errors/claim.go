package errors

var (
	ErrClaimNotFound = &DomainError{
		Kind:    KindNotFound,
		Code:    "CLAIM_NOT_FOUND",
		Message: "claim not found",
	}
	ErrInvalidClaim = &DomainError{
		Kind:    KindValidation,
		Code:    "INVALID_CLAIM",
		Message: "invalid claim",
	}
	ErrInvalidTransition = &DomainError{
		Kind:    KindConflict,
		Code:    "INVALID_TRANSITION",
		Message: "claim status does not allow this action",
	}
	ErrStaleClaim = &DomainError{
		Kind:    KindConflict,
		Code:    "STALE_CLAIM",
		Message: "claim was modified concurrently",
	}
	ErrDuplicateClaim = &DomainError{
		Kind:    KindConflict,
		Code:    "DUPLICATE_CLAIM",
		Message: "an open claim already exists for this order",
	}
	ErrNotClaimParty = &DomainError{
		Kind:    KindForbidden,
		Code:    "NOT_CLAIM_PARTY",
		Message: "requester is not a party to this claim",
	}
	ErrAppealNotAllowed = &DomainError{
		Kind:    KindConflict,
		Code:    "APPEAL_NOT_ALLOWED",
		Message: "claim cannot be appealed",
	}
	ErrRefundLimitExceeded = &DomainError{
		Kind:    KindConflict,
		Code:    "REFUND_LIMIT_EXCEEDED",
		Message: "refunded amount would exceed the claim limits",
	}
)
