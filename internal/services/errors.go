package services

import "github.com/mkarlsen/knotscore/internal/errors"

// Service errors, one per distinct ledger failure. Each carries the kind
// the HTTP layer maps to a status code.
var (
	ErrCategoryNotPermitted      = errors.Forbidden("category not permitted")
	ErrNodeNotAssigned           = errors.Forbidden("node not assigned")
	ErrAmendNotPermitted         = errors.Forbidden("role cannot amend attempts")
	ErrAuditNotPermitted         = errors.Forbidden("audit trail requires admin role")
	ErrTokenIssueNotPermitted    = errors.Forbidden("token issuance requires admin role")
	ErrEventNotPermitted         = errors.Forbidden("event not permitted")
	ErrAttemptOneExists          = errors.Conflict("attempt 1 already exists")
	ErrAttemptOneMissingUnlocked = errors.Conflict("attempt 1 missing or unlocked")
	ErrAttemptTwoExists          = errors.Conflict("attempt 2 already exists")
	ErrAttemptExists             = errors.Conflict("attempt already exists")
	ErrInvalidAttemptNumber      = errors.InvalidInput("attempt number must be 1 or 2")
	ErrResultRequired            = errors.InvalidInput("result must be a time or a fault")
	ErrTimeOutOfRange            = errors.InvalidInput("time out of range")
	ErrTimeExceedsNodeLimit      = errors.InvalidInput("time exceeds the node's maximum")
)
