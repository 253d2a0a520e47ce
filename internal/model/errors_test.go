package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			name: "without wrapped error",
			err: &APIError{
				Code:    "TEST_ERROR",
				Message: "something went wrong",
			},
			want: "TEST_ERROR: something went wrong",
		},
		{
			name: "with wrapped error",
			err: &APIError{
				Code:    "TEST_ERROR",
				Message: "something went wrong",
				Err:     errors.New("underlying cause"),
			},
			want: "TEST_ERROR: something went wrong (underlying cause)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := &APIError{
		Code:    "TEST",
		Message: "test",
		Err:     underlying,
	}

	unwrapped := err.Unwrap()
	if unwrapped != underlying {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, underlying)
	}

	// Test nil case
	errNoWrap := &APIError{Code: "TEST", Message: "test"}
	if errNoWrap.Unwrap() != nil {
		t.Error("Unwrap() should return nil when no wrapped error")
	}
}

func TestConstructors(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name       string
		err        *APIError
		wantCode   string
		wantMsg    string
		wantStatus int
		sentinel   error
	}{
		{"not found", NewNotFoundError("cart"), "NOT_FOUND", "cart not found", 404, ErrNotFound},
		{"validation", NewValidationError("quantity", "must be at least 1"), "VALIDATION_ERROR", "invalid quantity: must be at least 1", 400, ErrInvalidRequest},
		{"unauthorized", NewUnauthorizedError("not signed in"), "UNAUTHORIZED", "not signed in", 401, ErrUnauthorized},
		{"upstream", NewUpstreamError("cart backend", cause), "UPSTREAM_ERROR", "cart backend request failed", 502, ErrUpstreamError},
		{"internal", NewInternalError(cause), "INTERNAL_ERROR", "an internal error occurred", 500, cause},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.wantCode)
			}
			if tt.err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", tt.err.Message, tt.wantMsg)
			}
			if tt.err.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", tt.err.StatusCode, tt.wantStatus)
			}
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v) = false, want true", tt.sentinel)
			}
		})
	}

	// Upstream keeps the cause reachable for logs.
	if !errors.Is(NewUpstreamError("cart backend", cause), cause) {
		t.Error("upstream error should wrap its cause")
	}
}

// TestErrorsIs verifies that errors.Is() works correctly with all sentinel errors.
// This is critical for handler code that uses errors.Is() to determine response codes.
func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"NotFound", NewNotFoundError("x"), ErrNotFound},
		{"Validation", NewValidationError("x", "y"), ErrInvalidRequest},
		{"Unauthorized", NewUnauthorizedError("x"), ErrUnauthorized},
		{"Upstream", NewUpstreamError("x", nil), ErrUpstreamError},
		{"HTTP404", &HTTPError{Op: "fetch cart", Status: 404}, ErrNotFound},
		{"HTTP401", &HTTPError{Op: "fetch cart", Status: 401}, ErrUnauthorized},
		{"HTTP500", &HTTPError{Op: "fetch cart", Status: 500}, ErrUpstreamError},
		{"Network", &NetworkError{Op: "fetch cart", Err: errors.New("refused")}, ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%T, %v) = false, want true", tt.err, tt.sentinel)
			}
		})
	}
}

// TestAPIErrorImplementsError verifies the error interface is properly implemented.
func TestAPIErrorImplementsError(t *testing.T) {
	var err error = &APIError{Code: "TEST", Message: "test"}
	_ = err.Error() // Should compile and not panic

	// Verify it works with fmt.Errorf wrapping
	wrapped := fmt.Errorf("outer: %w", err)
	var apiErr *APIError
	if !errors.As(wrapped, &apiErr) {
		t.Error("errors.As should find *APIError in wrapped error")
	}
}

func TestHTTPErrorIsOnlyMatchesItsStatus(t *testing.T) {
	err := fmt.Errorf("fetching cart: %w", &HTTPError{Op: "fetch cart", Status: 500})

	if IsNotFound(err) {
		t.Error("IsNotFound(500) = true, want false")
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Error("errors.Is(500, ErrUnauthorized) = true, want false")
	}
	if got := HTTPStatus(err); got != 500 {
		t.Errorf("HTTPStatus() = %d, want 500", got)
	}
}

func TestNetworkErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("pushing cart: %w", &NetworkError{Op: "replace cart", Err: cause})

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the transport cause")
	}
	if !errors.Is(err, ErrNetwork) {
		t.Error("errors.Is should match ErrNetwork")
	}
	if IsNotFound(err) {
		t.Error("network failure must not look like a stale identity")
	}
	if got := HTTPStatus(err); got != 0 {
		t.Errorf("HTTPStatus() = %d, want 0", got)
	}
}
