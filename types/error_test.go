package types

import (
	"errors"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrHandlerInvocation, "handler failed").
		WithCause(root).
		WithRetryable(true).
		WithHandler("network")

	if GetErrorCode(err) != ErrHandlerInvocation {
		t.Fatalf("expected code %s, got %s", ErrHandlerInvocation, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestIsStructural(t *testing.T) {
	t.Parallel()

	for _, code := range []ErrorCode{ErrUnknownHandler, ErrCycleDetected, ErrMaxHandoffsExceeded} {
		if !IsStructural(code) {
			t.Fatalf("expected %s to be structural", code)
		}
	}
	for _, code := range []ErrorCode{ErrHandlerInvocation, ErrContextLoss, ErrBudgetExceeded, ErrCancelled} {
		if IsStructural(code) {
			t.Fatalf("expected %s not to be structural", code)
		}
	}
}

func TestHelpers_NonStructuredError(t *testing.T) {
	t.Parallel()

	plain := errors.New("plain")
	if IsRetryable(plain) {
		t.Fatalf("plain errors are not retryable")
	}
	if GetErrorCode(plain) != "" {
		t.Fatalf("plain errors carry no code")
	}
}
