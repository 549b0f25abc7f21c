package errors

var (
	ErrInvalidAmount = &DomainError{
		Kind:    KindValidation,
		Code:    "INVALID_AMOUNT",
		Message: "invalid amount",
	}
	ErrAmountExceedsLimit = &DomainError{
		Kind:    KindValidation,
		Code:    "AMOUNT_EXCEEDS_LIMIT",
		Message: "refund amount exceeds the order total or the requested amount",
	}
	ErrClaimNotEligible = &DomainError{
		Kind:    KindConflict,
		Code:    "CLAIM_NOT_ELIGIBLE",
		Message: "claim is not in a refundable state",
	}
	ErrClaimMismatch = &DomainError{
		Kind:    KindValidation,
		Code:    "CLAIM_MISMATCH",
		Message: "request does not match the stored claim",
	}
	ErrPaymentInfoMissing = &DomainError{
		Kind:    KindValidation,
		Code:    "PAYMENT_INFO_MISSING",
		Message: "order has no recorded payment transaction",
	}
	ErrPaymentMismatch = &DomainError{
		Kind:    KindValidation,
		Code:    "PAYMENT_MISMATCH",
		Message: "payment details do not match the order",
	}
	ErrRefundConflict = &DomainError{
		Kind:    KindConflict,
		Code:    "REFUND_CONFLICT",
		Message: "a refund with a different amount already exists for this claim",
	}
	ErrRefundNotFound = &DomainError{
		Kind:    KindNotFound,
		Code:    "REFUND_NOT_FOUND",
		Message: "refund not found",
	}
	ErrOrderNotFound = &DomainError{
		Kind:    KindNotFound,
		Code:    "ORDER_NOT_FOUND",
		Message: "order not found",
	}
	ErrGatewayUnavailable = &DomainError{
		Kind:    KindTransient,
		Code:    "GATEWAY_UNAVAILABLE",
		Message: "payment gateway unavailable",
	}
	ErrSchedulingUnavailable = &DomainError{
		Kind:    KindInfrastructure,
		Code:    "SCHEDULING_UNAVAILABLE",
		Message: "scheduling unavailable",
	}
)
