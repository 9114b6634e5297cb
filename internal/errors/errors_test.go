package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil error", nil, ""},
		{"simple error", stderrors.New("boom"), "Error: boom"},
		{"wrapped error", fmt.Errorf("saving goal: %w", ErrValidation), "Error: saving goal: validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.err); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatf(t *testing.T) {
	got := Formatf("goal %q not found", "Tennis")
	want := `Error: goal "Tennis" not found`
	if got != want {
		t.Errorf("Formatf() = %q, want %q", got, want)
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrNetworkUnavailable, "network_unavailable"},
		{fmt.Errorf("sync: %w", ErrTimeout), "timeout"},
		{fmt.Errorf("%w: %w", ErrUnauthorized, ErrTokenExpired), "token_expired"},
		{ErrUnauthorized, "unauthorized"},
		{fmt.Errorf("%w: 500", ErrServerRejected), "server_rejected"},
		{ErrStorageUnavailable, "storage_unavailable"},
		{ErrValidation, "validation"},
		{stderrors.New("other"), "unknown"},
	}

	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(fmt.Errorf("call: %w", ErrTimeout)) {
		t.Error("timeout should be transient")
	}
	if !IsTransient(context.DeadlineExceeded) {
		t.Error("deadline exceeded should be transient")
	}
	if IsTransient(ErrValidation) {
		t.Error("validation errors are not transient")
	}
}
