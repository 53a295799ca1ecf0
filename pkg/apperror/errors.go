package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Trade Lifecycle (TRD) ----

// ErrRoleViolation is returned when the wrong party attempts a transition.
func ErrRoleViolation() *AppError {
	return New("TRD_001", "Action not permitted for this party", http.StatusForbidden)
}

// ErrInvalidState is returned when a transition is attempted from an
// incompatible current state.
func ErrInvalidState(current string) *AppError {
	return New("TRD_002", fmt.Sprintf("Action not allowed while trade is %s", current), http.StatusConflict)
}

// ErrWindowExpired is returned when a fiat confirmation arrives after the
// payment window deadline. The trade is auto-cancelled as a side effect.
func ErrWindowExpired() *AppError {
	return New("TRD_003", "Payment window has expired; trade cancelled", http.StatusGone)
}

func ErrTradeNotFound() *AppError {
	return New("TRD_004", "Trade not found", http.StatusNotFound)
}

// ErrConcurrentUpdate is returned when the optimistic version check keeps
// failing after retries.
func ErrConcurrentUpdate(err error) *AppError {
	return Wrap("TRD_005", "Trade was modified concurrently, please retry", http.StatusConflict, err)
}

// ---- Release Authorization (REL) ----

func ErrChallengeExpired() *AppError {
	return New("REL_001", "Release code expired, request a new one", http.StatusGone)
}

func ErrChallengeExhausted() *AppError {
	return New("REL_002", "Too many invalid codes, request a new one", http.StatusGone)
}

// ErrChallengeInvalid carries the remaining attempt count for the client.
func ErrChallengeInvalid(remaining int64) *AppError {
	return New("REL_003", fmt.Sprintf("Invalid release code, %d attempts remaining", remaining), http.StatusBadRequest)
}

// ---- Trade Creation (ADV) ----

func ErrAmountOutOfRange(min, max string) *AppError {
	return New("ADV_001", fmt.Sprintf("Amount outside advertisement limits (%s - %s)", min, max), http.StatusUnprocessableEntity)
}

func ErrAdUnavailable() *AppError {
	return New("ADV_002", "Advertisement is no longer available", http.StatusConflict)
}

func ErrKYCRequired() *AppError {
	return New("ADV_003", "Identity verification required before trading", http.StatusForbidden)
}

// ---- Dispute Escalation (DSP) ----

// ErrDisputeTooEarly is the guard failure for escalation before the dispute
// threshold has elapsed since payment.
func ErrDisputeTooEarly() *AppError {
	return New("DSP_001", "Dispute threshold not yet reached", http.StatusUnprocessableEntity)
}

func ErrDisputeAlreadyOpen() *AppError {
	return New("DSP_002", "A dispute is already open for this trade", http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrModeratorOnly() *AppError {
	return New("AUTH_002", "Moderator access required", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}
