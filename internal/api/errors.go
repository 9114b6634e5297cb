package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	pqerrors "github.com/julianstephens/progressquest/internal/errors"
)

// ErrUsernameTaken is returned by Register for a duplicate username.
var ErrUsernameTaken = fmt.Errorf("%w: username already exists", pqerrors.ErrServerRejected)

const (
	codeTokenExpired   = "token_expired"
	legacyExpiredError = "Token has expired"
)

// Error is a non-2xx answer from the goal service.
type Error struct {
	Status  int
	Code    string
	Message string
	kind    error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s (HTTP %d, %s)", msg, e.Status, e.Code)
	}
	return fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
}

// Unwrap exposes the taxonomy sentinel so callers can use errors.Is.
func (e *Error) Unwrap() error {
	return e.kind
}

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newError(status int, body errorBody) *Error {
	msg := body.Error
	if msg == "" {
		msg = body.Message
	}
	e := &Error{Status: status, Code: body.Code, Message: msg}

	switch {
	case status == http.StatusUnauthorized && (body.Code == codeTokenExpired || strings.EqualFold(msg, legacyExpiredError)):
		e.kind = pqerrors.ErrTokenExpired
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.kind = pqerrors.ErrUnauthorized
	case status == http.StatusBadRequest:
		e.kind = fmt.Errorf("%w: %w", pqerrors.ErrServerRejected, pqerrors.ErrValidation)
	default:
		e.kind = pqerrors.ErrServerRejected
	}
	return e
}

// asUsernameTaken reclassifies a duplicate answer from the register endpoint: a 409, or the
// legacy 400 whose message says the user already exists.
func asUsernameTaken(err error) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	if e.Status == http.StatusConflict ||
		e.Status == http.StatusBadRequest && strings.Contains(strings.ToLower(e.Message), "already exists") {
		e.kind = ErrUsernameTaken
	}
	return err
}
