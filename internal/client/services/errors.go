package services

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bizkeeper/internal/client/client"
)

// Error kinds returned by SessionManager. Match them with errors.Is.
var (
	ErrInvalidOfflineCredentials = errors.New("invalid credentials for offline login")
	ErrOfflineUnsupported        = errors.New("no network connection")
	ErrLoginFailed               = errors.New("login failed")
	ErrRegistrationFailed        = errors.New("registration failed")
	ErrResetFailed               = errors.New("password reset failed")
	ErrInvalidVerificationCode   = errors.New("invalid verification code")
	ErrProfileUpdateFailed       = errors.New("profile update failed")
	ErrSessionExpired            = errors.New("session expired, please log in again")
	ErrNotAuthenticated          = errors.New("not authenticated")
	ErrInvalidInput              = errors.New("invalid input")
)

// Error is what every failing SessionManager operation returns. Kind is one
// of the Err* values above; Cause is the last underlying error and is only
// meant for diagnostics.
type Error struct {
	Kind  error
	Op    string
	Cause error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrOfflineUnsupported:
		return fmt.Sprintf("%v: %s requires connectivity", e.Kind, e.Op)
	case ErrInvalidOfflineCredentials, ErrSessionExpired, ErrNotAuthenticated:
		return e.Kind.Error()
	}
	if e.Cause == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %s", e.Kind, reason(e.Cause))
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Cause }

// reason turns a transport error into the text shown to the user.
func reason(err error) string {
	switch {
	case errors.Is(err, client.ErrUnavailable):
		return "identity service unreachable"
	case errors.Is(err, client.ErrUnauthorized), errors.Is(err, client.ErrRejected):
		return "server rejected the request"
	default:
		return err.Error()
	}
}

func newError(kind error, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}
