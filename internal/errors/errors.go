package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"

	"github.com/julianstephens/progressquest/internal/logger"
)

// Error taxonomy shared by the store, vault, API client and sync engine.
var (
	// ErrNetworkUnavailable means the device has no connectivity; the call was skipped.
	ErrNetworkUnavailable = stderrors.New("network unavailable")
	// ErrTimeout means an outbound call hit its deadline. Treated as a transient network failure.
	ErrTimeout = stderrors.New("request timed out")
	// ErrUnauthorized means the token is missing or invalid and the user must sign in again.
	ErrUnauthorized = stderrors.New("unauthorized")
	// ErrTokenExpired is the 401 sub-case that triggers one refresh-and-retry.
	ErrTokenExpired = stderrors.New("token expired")
	// ErrServerRejected wraps any other non-2xx answer from the goal service.
	ErrServerRejected = stderrors.New("server rejected request")
	// ErrStorageUnavailable means the durable store is absent or denied.
	ErrStorageUnavailable = stderrors.New("storage unavailable")
	// ErrValidation means user input was rejected before any persistence attempt.
	ErrValidation = stderrors.New("validation failed")
)

// Kind names the taxonomy bucket of err, or "unknown".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, ErrNetworkUnavailable):
		return "network_unavailable"
	case stderrors.Is(err, ErrTimeout):
		return "timeout"
	case stderrors.Is(err, ErrTokenExpired):
		return "token_expired"
	case stderrors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case stderrors.Is(err, ErrServerRejected):
		return "server_rejected"
	case stderrors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	case stderrors.Is(err, ErrValidation):
		return "validation"
	default:
		return "unknown"
	}
}

// IsTransient reports whether err is a network-level failure worth retrying later.
func IsTransient(err error) bool {
	if stderrors.Is(err, ErrNetworkUnavailable) || stderrors.Is(err, ErrTimeout) {
		return true
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr)
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err, "kind", Kind(err))
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(1)
}
