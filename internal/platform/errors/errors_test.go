package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "error with cause",
			err: Wrap(KindConfig, "load", "failed to load config",
				errors.New("file not found")),
			contains: []string{"[config:load]", "failed to load config", "file not found"},
		},
		{
			name:     "error without cause",
			err:      New(KindNoDocument, "read", "no document on scanner"),
			contains: []string{"[no_document:read]", "no document on scanner"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				if !strings.Contains(errStr, substr) {
					t.Errorf("error string %q does not contain %q", errStr, substr)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := Wrap(KindEngine, "scan", "wrapped", originalErr)

	if !errors.Is(wrappedErr, originalErr) {
		t.Error("Unwrap should return the original error")
	}
}

func TestWrap_PreservesTypedError(t *testing.T) {
	inner := New(KindTimeout, "await", "read deadline expired")
	outer := Wrap(KindReadFailed, "read", "lifecycle failed", fmt.Errorf("step: %w", inner))

	if outer.Kind != KindTimeout {
		t.Errorf("Wrap should keep the inner kind, got %s", outer.Kind)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{
			name:     "direct typed error",
			err:      New(KindReadInProgress, "admit", "read already running"),
			expected: KindReadInProgress,
		},
		{
			name:     "wrapped typed error",
			err:      fmt.Errorf("handler: %w", New(KindDeviceNotFound, "open", "no such device")),
			expected: KindDeviceNotFound,
		},
		{
			name:     "plain error",
			err:      errors.New("plain error"),
			expected: KindUnknown,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.expected {
				t.Errorf("KindOf() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestIsKind(t *testing.T) {
	err := New(KindChipReadFailed, "chip", "terminal group failed")
	if !IsKind(err, KindChipReadFailed) {
		t.Error("IsKind should match the error's own kind")
	}
	if IsKind(err, KindTimeout) {
		t.Error("IsKind should not match a different kind")
	}
}
