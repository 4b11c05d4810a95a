package apperrors

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ErrClaimLost signals that another tick (or a manual run) claimed the target
// first. It is an expected outcome of the conditional-update claim, callers
// skip and count it, they never surface it as a failure.
var ErrClaimLost = errors.New("monitoring target claim lost")

// ValidationError indicates a malformed or unsafe input. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return e.Reason
}

// AuthError indicates a missing or invalid credential.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string { return e.Reason }

// EntitlementError indicates the account is not allowed to perform the
// operation (no credits, free scan spent, monitoring prerequisite missing,
// domain limit reached). Carries a stable machine code for clients.
type EntitlementError struct {
	Code   string
	Reason string
}

func (e *EntitlementError) Error() string { return e.Reason }

// Entitlement error codes.
const (
	EntitlementNoCredits           = "no_credits"
	EntitlementFreeScanUsed        = "free_scan_used"
	EntitlementPrerequisiteMissing = "prerequisite_missing"
	EntitlementMonitoringInactive  = "monitoring_inactive"
	EntitlementDomainLimitReached  = "domain_limit_reached"
)

// RateLimitError indicates the trailing-window scan ceiling was hit.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("scan rate limit reached, retry after %s", e.RetryAfter)
}

// Execution failure kinds. Navigation and rule-evaluation timeouts are
// distinct failure modes with different retry semantics upstream.
const (
	ExecNavigationTimeout = "navigation_timeout"
	ExecEvaluationTimeout = "evaluation_timeout"
	ExecGeneric           = "execution"
)

// ExecutionError indicates the scan itself failed (navigation exhausted its
// retries, or rule evaluation timed out).
type ExecutionError struct {
	Kind string
	Err  error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// PersistenceError indicates a storage write failed after compensating
// cleanup already ran.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// StatusCode maps a typed error to the HTTP status controllers respond with.
func StatusCode(err error) int {
	var (
		ve *ValidationError
		ae *AuthError
		ee *EntitlementError
		re *RateLimitError
		xe *ExecutionError
	)
	switch {
	case errors.As(err, &ve):
		return fiber.StatusBadRequest
	case errors.As(err, &ae):
		return fiber.StatusUnauthorized
	case errors.As(err, &ee):
		return fiber.StatusForbidden
	case errors.As(err, &re):
		return fiber.StatusTooManyRequests
	case errors.As(err, &xe):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
