package errors

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
)

func TestAppError(t *testing.T) {
	cause := errors.New("underlying error")
	appErr := NewAppError(ErrorTypeConnection, "connection failed", cause)

	if appErr.Type != ErrorTypeConnection {
		t.Errorf("Expected type %v, got %v", ErrorTypeConnection, appErr.Type)
	}

	if appErr.IsRecoverable() {
		t.Error("Expected non-recoverable error")
	}

	if !errors.Is(appErr, cause) {
		t.Error("Expected cause to be reachable through Unwrap")
	}

	expectedError := "connection: connection failed (caused by: underlying error)"
	if appErr.Error() != expectedError {
		t.Errorf("Expected error string %v, got %v", expectedError, appErr.Error())
	}
}

func TestAppErrorWithContext(t *testing.T) {
	appErr := NewAppError(ErrorTypeQuery, "query failed", nil).
		WithContext("replica", "node1").
		WithContext("database", "Sales")

	if appErr.Context["replica"] != "node1" {
		t.Errorf("Expected context replica=node1, got %v", appErr.Context["replica"])
	}

	if appErr.GetUserMessage() != "query failed" {
		t.Errorf("Expected user message to default to message, got %v", appErr.GetUserMessage())
	}

	appErr.WithUserMessage("Could not read backup history")
	if FormatUserError(appErr) != "Could not read backup history" {
		t.Errorf("Unexpected user message %v", FormatUserError(appErr))
	}
}

func TestErrorClassifier_ClassifySQLServerError(t *testing.T) {
	classifier := NewErrorClassifier()

	tests := []struct {
		name         string
		number       int32
		expectedType ErrorType
		recoverable  bool
	}{
		{"login failed", 18456, ErrorTypePermission, false},
		{"select permission denied", 229, ErrorTypePermission, false},
		{"cannot open database", 4060, ErrorTypeValidation, false},
		{"invalid object name", 208, ErrorTypeQuery, false},
		{"deadlock victim", 1205, ErrorTypeQuery, true},
		{"transport error", 10054, ErrorTypeConnection, true},
		{"database unavailable", 40613, ErrorTypeConnection, true},
		{"other", 50000, ErrorTypeQuery, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msErr := mssql.Error{Number: tt.number, Message: tt.name}
			appErr := classifier.ClassifyError(msErr)

			if appErr.Type != tt.expectedType {
				t.Errorf("Expected type %v, got %v", tt.expectedType, appErr.Type)
			}

			if appErr.IsRecoverable() != tt.recoverable {
				t.Errorf("Expected recoverable=%v, got %v", tt.recoverable, appErr.IsRecoverable())
			}

			if appErr.Context["sqlserver_error_code"] != tt.number {
				t.Errorf("Expected sqlserver_error_code=%v, got %v", tt.number, appErr.Context["sqlserver_error_code"])
			}
		})
	}
}

func TestErrorClassifier_ClassifyOtherErrors(t *testing.T) {
	classifier := NewErrorClassifier()

	tests := []struct {
		name         string
		err          error
		expectedType ErrorType
		recoverable  bool
	}{
		{"no rows", sql.ErrNoRows, ErrorTypeValidation, false},
		{"connection done", sql.ErrConnDone, ErrorTypeConnection, true},
		{"deadline exceeded", context.DeadlineExceeded, ErrorTypeTimeout, true},
		{"context canceled", context.Canceled, ErrorTypeInterruption, false},
		{"network timeout", &mockNetError{timeout: true}, ErrorTypeTimeout, true},
		{"dial failure", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, ErrorTypeConnection, true},
		{"unknown host", &net.DNSError{Name: "replica-9", Err: "no such host"}, ErrorTypeConnection, false},
		{"file not found", &os.PathError{Op: "open", Path: "/nonexistent", Err: syscall.ENOENT}, ErrorTypeValidation, false},
		{"permission denied", &os.PathError{Op: "open", Path: "/restricted", Err: syscall.EACCES}, ErrorTypePermission, false},
		{"no space left", &os.PathError{Op: "write", Path: "/full", Err: syscall.ENOSPC}, ErrorTypeStorage, false},
		{"unknown", errors.New("boom"), ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := classifier.ClassifyError(tt.err)

			if appErr.Type != tt.expectedType {
				t.Errorf("Expected type %v, got %v", tt.expectedType, appErr.Type)
			}

			if appErr.IsRecoverable() != tt.recoverable {
				t.Errorf("Expected recoverable=%v, got %v", tt.recoverable, appErr.IsRecoverable())
			}
		})
	}

	if classifier.ClassifyError(nil) != nil {
		t.Error("Expected nil for nil error")
	}
}

type mockNetError struct {
	timeout bool
}

func (e *mockNetError) Error() string   { return "mock network error" }
func (e *mockNetError) Timeout() bool   { return e.timeout }
func (e *mockNetError) Temporary() bool { return false }

func TestRetryHandler_Retry(t *testing.T) {
	config := RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    100 * time.Millisecond,
		Multiplier:  2.0,
	}

	t.Run("success on first attempt", func(t *testing.T) {
		attempts := 0
		err := NewRetryHandler(config).Retry(context.Background(), func() error {
			attempts++
			return nil
		})

		if err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("success after retries", func(t *testing.T) {
		attempts := 0
		var retried []int
		handler := NewRetryHandler(config).OnRetry(func(attempt int, delay time.Duration, err *AppError) {
			retried = append(retried, attempt)
		})

		err := handler.Retry(context.Background(), func() error {
			attempts++
			if attempts < 3 {
				return mssql.Error{Number: 1205, Message: "deadlock"}
			}
			return nil
		})

		if err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
		if attempts != 3 {
			t.Errorf("Expected 3 attempts, got %d", attempts)
		}
		if len(retried) != 2 {
			t.Errorf("Expected 2 retry callbacks, got %d", len(retried))
		}
	})

	t.Run("non-recoverable error", func(t *testing.T) {
		attempts := 0
		err := NewRetryHandler(config).Retry(context.Background(), func() error {
			attempts++
			return mssql.Error{Number: 18456, Message: "Login failed"}
		})

		if attempts != 1 {
			t.Errorf("Expected 1 attempt, got %d", attempts)
		}
		if GetErrorType(err) != ErrorTypePermission {
			t.Errorf("Expected permission error, got %v", err)
		}
	})

	t.Run("max attempts exceeded", func(t *testing.T) {
		attempts := 0
		err := NewRetryHandler(config).Retry(context.Background(), func() error {
			attempts++
			return NewRecoverableError(ErrorTypeConnection, "always fails", nil)
		})

		if err == nil {
			t.Fatal("Expected error, got nil")
		}
		if attempts != config.MaxAttempts {
			t.Errorf("Expected %d attempts, got %d", config.MaxAttempts, attempts)
		}
		if !IsRecoverableError(err) {
			t.Error("Expected the final error to stay recoverable")
		}
	})

	t.Run("context canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := NewRetryHandler(config).Retry(ctx, func() error {
			return NewRecoverableError(ErrorTypeConnection, "temporary failure", nil)
		})

		if GetErrorType(err) != ErrorTypeInterruption {
			t.Errorf("Expected interruption error, got %v", err)
		}
	})
}

func TestRetryHandler_CalculateDelay(t *testing.T) {
	handler := NewRetryHandler(RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    1 * time.Second,
		Multiplier:  2.0,
	})

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
	}

	for _, tt := range tests {
		if got := handler.calculateDelay(tt.attempt); got != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, got)
		}
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil, "ignored") != nil {
		t.Error("Expected nil for nil error")
	}

	wrapped := WrapError(context.DeadlineExceeded, "catalog query on node1 timed out")
	if GetErrorType(wrapped) != ErrorTypeTimeout {
		t.Errorf("Expected timeout type, got %v", GetErrorType(wrapped))
	}
	if !IsRecoverableError(wrapped) {
		t.Error("Expected wrapped timeout to stay recoverable")
	}
	if !errors.Is(wrapped, context.DeadlineExceeded) {
		t.Error("Expected cause to be preserved")
	}

	rewrapped := WrapError(wrapped, "resolve failed")
	if GetErrorType(rewrapped) != ErrorTypeTimeout {
		t.Errorf("Expected type to be preserved, got %v", GetErrorType(rewrapped))
	}
}

func TestCreateContextWithTimeout(t *testing.T) {
	ctx, cancel := CreateContextWithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, ok := ctx.Deadline(); !ok {
		t.Error("Expected deadline to be set")
	}

	ctx2, cancel2 := CreateContextWithTimeout(context.Background(), 0)
	defer cancel2()
	if _, ok := ctx2.Deadline(); ok {
		t.Error("Expected no deadline for zero timeout")
	}
}
