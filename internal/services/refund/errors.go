package refund

import domainErrors "disputehub/internal/errors"

var (
	ErrTenantRequired = domainErrors.Validation("TENANT_REQUIRED", "tenant is required")
	ErrInvalidJob     = domainErrors.Validation("INVALID_JOB", "unreadable refund job")
)

// Failure reasons stored on failed refunds.
const (
	ReasonSchedulingUnavailable = "scheduling unavailable"
	ReasonRemainedPending       = "remained pending"
)
