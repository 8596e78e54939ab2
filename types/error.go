package types

import "fmt"

// ErrorCode represents a unified error code across the orchestration core.
type ErrorCode string

// Structural errors: never retried, always terminal for a chain.
const (
	ErrUnknownHandler      ErrorCode = "UNKNOWN_HANDLER"
	ErrCycleDetected       ErrorCode = "CYCLE_DETECTED"
	ErrMaxHandoffsExceeded ErrorCode = "MAX_HANDOFFS_EXCEEDED"
	ErrClassification      ErrorCode = "CLASSIFICATION_FAILED"
)

// Transient errors: retried with backoff, then fallback, then terminal.
const (
	ErrHandlerInvocation ErrorCode = "HANDLER_INVOCATION"
	ErrHandlerTimeout    ErrorCode = "HANDLER_TIMEOUT"
	ErrDispatch          ErrorCode = "DISPATCH_FAILED"
	ErrModelInvocation   ErrorCode = "MODEL_INVOCATION"
)

// Integrity and policy errors.
const (
	// ErrContextLoss indicates a handoff dropped or mutated retained context
	// keys; triggers rollback to the pre-handoff snapshot.
	ErrContextLoss ErrorCode = "CONTEXT_LOSS"
	// ErrSubtaskFailed aborts a prompt chain at the failing step.
	ErrSubtaskFailed ErrorCode = "SUBTASK_FAILED"
	// ErrBudgetExceeded is a non-fatal policy warning, never a terminal error.
	ErrBudgetExceeded ErrorCode = "BUDGET_EXCEEDED"
	// ErrCancelled marks a chain stopped by external cancellation.
	ErrCancelled ErrorCode = "CANCELLED"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Handler   string    `json:"handler,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithHandler records the handler the error originated from.
func (e *Error) WithHandler(handler string) *Error {
	e.Handler = handler
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// IsStructural reports whether the code belongs to the structural error
// class, which is never retried and immediately terminal.
func IsStructural(code ErrorCode) bool {
	switch code {
	case ErrUnknownHandler, ErrCycleDetected, ErrMaxHandoffsExceeded:
		return true
	}
	return false
}
