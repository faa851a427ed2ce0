package widget

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// ErrorKind categorizes failures for logging. Every kind ends up as an
// assistant bubble, never as an error returned to the host page.
type ErrorKind string

const (
	ErrConfig        ErrorKind = "config_error"    // no endpoint configured
	ErrTransport     ErrorKind = "transport_error" // network failure, non-2xx, malformed body
	ErrTimeout       ErrorKind = "timeout"         // context deadline exceeded
	ErrNormalization ErrorKind = "normalization"   // unrecognized reply shape
)

const (
	MsgNotConfigured = "Error: Chat service is not configured correctly."
	MsgSendFailed    = "Sorry, something went wrong. Please try again."
)

var (
	ErrNotConfigured    = errors.New("widget: apiUrl is not configured")
	ErrAlreadyMounted   = errors.New("widget: a chat widget is already mounted in this document")
	ErrContainerMissing = errors.New("widget: container not found")
	ErrDestroyed        = errors.New("widget: destroyed")
)

// Error wraps a failure with its classification and the text shown to the
// user.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Classify maps an error from the send path onto its kind and user-facing
// message.
func Classify(err error) *Error {
	var we *Error
	if errors.As(err, &we) {
		return we
	}

	raw := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, ErrNotConfigured):
		return &Error{Kind: ErrConfig, Message: MsgNotConfigured, Err: err}
	case errors.Is(err, context.DeadlineExceeded), strings.Contains(raw, "timeout"):
		return &Error{Kind: ErrTimeout, Message: MsgSendFailed, Err: err}
	default:
		return &Error{Kind: ErrTransport, Message: MsgSendFailed, Err: err}
	}
}
