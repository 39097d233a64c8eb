package core

import (
	"errors"

	"github.com/vovakirdan/wirechat-tcp/internal/proto"
)

// Error codes sent to clients in error replies.
const (
	ErrCodeDuplicateUsername = "duplicate_username"
	ErrCodeInvalidUsername   = "invalid_username"
	ErrCodeUnknownRecipient  = "unknown_recipient"
	ErrCodeRecipientGone     = "recipient_unavailable"
	ErrCodeBadRequest        = "bad_request"
	ErrCodeMessageTooLarge   = "message_too_large"
	ErrCodeFraming           = "framing_error"
	ErrCodeRateLimited       = "rate_limited"
	ErrCodeInternal          = "internal"
)

var (
	ErrDuplicateUsername = errors.New("username already taken")
	ErrInvalidUsername   = errors.New("invalid username")
	ErrUnknownRecipient  = errors.New("unknown recipient")
	// ErrRecipientUnavailable means the recipient is registered but its session
	// is closing. The sender stays connected.
	ErrRecipientUnavailable = errors.New("recipient unavailable")
	ErrBadCommand           = errors.New("bad command")
	ErrSessionClosed        = errors.New("session closed")
	ErrSlowConsumer         = errors.New("outbound queue full")
	ErrAlreadyRegistered    = errors.New("session already registered")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// ToCoreError maps a session-local failure onto the reply sent to the client.
func ToCoreError(err error) *CoreError {
	var ce *CoreError
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, ErrDuplicateUsername):
		return coreError(ErrCodeDuplicateUsername, err.Error())
	case errors.Is(err, ErrInvalidUsername):
		return coreError(ErrCodeInvalidUsername, err.Error())
	case errors.Is(err, ErrUnknownRecipient):
		return coreError(ErrCodeUnknownRecipient, err.Error())
	case errors.Is(err, ErrRecipientUnavailable):
		return coreError(ErrCodeRecipientGone, err.Error())
	case errors.Is(err, ErrBadCommand):
		return coreError(ErrCodeBadRequest, err.Error())
	case errors.Is(err, proto.ErrMessageTooLarge):
		return coreError(ErrCodeMessageTooLarge, err.Error())
	case errors.Is(err, proto.ErrFraming):
		return coreError(ErrCodeFraming, err.Error())
	default:
		return coreError(ErrCodeInternal, "internal error")
	}
}
