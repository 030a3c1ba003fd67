package models

import "errors"

// Closed set of domain failures returned by the transaction core. The web
// layer discriminates with errors.Is and maps each to a status code; nothing
// else about a failure is load-bearing.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrForbidden           = errors.New("operation not permitted")
	ErrInvalidOperation    = errors.New("invalid operation")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrIdempotencyConflict = errors.New("idempotency key reused with different parameters")
	ErrTransient           = errors.New("temporary contention, retry the request")

	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Failure reasons stored on failed transaction records, so a replayed key
// deterministically reproduces the original error.
const (
	ReasonInsufficientFunds = "insufficient_funds"
	ReasonAccountNotFound   = "account_not_found"
)

// FailureReason returns the stored reason code for a deterministic domain
// failure, or empty if the error is not recordable.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return ReasonInsufficientFunds
	case errors.Is(err, ErrAccountNotFound):
		return ReasonAccountNotFound
	}
	return ""
}

// FailureError is the inverse of FailureReason, used when replaying a stored
// failed outcome.
func FailureError(reason string) error {
	switch reason {
	case ReasonInsufficientFunds:
		return ErrInsufficientFunds
	case ReasonAccountNotFound:
		return ErrAccountNotFound
	}
	return ErrInvalidOperation
}
