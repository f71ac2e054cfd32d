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

// ---- Validation (caller mistakes, never retried) ----

func ErrInvalidAmount() *AppError {
	return New("LED_001", "Amount must be a positive decimal with at most two fractional digits", http.StatusBadRequest)
}

func ErrUnsupportedCurrency(currency string) *AppError {
	return New("LED_002", fmt.Sprintf("Unsupported currency %q", currency), http.StatusBadRequest)
}

// Validation returns a generic request-validation error.
func Validation(message string) *AppError {
	return New("LED_001", message, http.StatusBadRequest)
}

// ---- Not found ----

func ErrSourceAccountNotFound() *AppError {
	return New("LED_003", "Source account not found", http.StatusNotFound)
}

func ErrRecipientNotFound() *AppError {
	return New("LED_004", "Recipient not found", http.StatusNotFound)
}

func ErrRecipientAccountNotFound() *AppError {
	return New("LED_005", "Recipient account not found", http.StatusNotFound)
}

func ErrNotFound(entity string) *AppError {
	return New("LED_006", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Business rules ----

func ErrInsufficientFunds() *AppError {
	return New("LED_007", "Insufficient funds in source account", http.StatusUnprocessableEntity)
}

// ---- Idempotency ----

// ErrDuplicateInFlight signals that the same (user, key) operation is still
// in flight or crashed before finalizing. The caller should wait and retry
// rather than treat it as a hard failure.
func ErrDuplicateInFlight() *AppError {
	return New("LED_008", "Duplicate request with this idempotency key is in flight", http.StatusConflict)
}

// ---- Concurrency ----

// ErrContention is surfaced after the bounded internal retry of serialization
// conflicts is exhausted.
func ErrContention(err error) *AppError {
	return Wrap("LED_009", "Operation aborted due to contention, retry later", http.StatusServiceUnavailable, err)
}

// ErrTimeout is surfaced when the caller's deadline expires before the
// atomic unit commits. Commit state is unknown; a retry with the same
// idempotency key re-checks the register instead of re-executing blindly.
func ErrTimeout(err error) *AppError {
	return Wrap("LED_010", "Operation timed out before commit", http.StatusGatewayTimeout, err)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
