package handlers

import domainErrors "disputehub/internal/errors"

var errBadBody = domainErrors.Validation("INVALID_BODY", "Invalid request format")
