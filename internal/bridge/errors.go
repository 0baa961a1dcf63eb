package bridge

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes bridge errors.
type ErrorCode string

const (
	// ErrCodeConfiguration indicates missing account/credentials. Raised
	// before any network call.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"

	// ErrCodeValidation indicates malformed input (empty title, invalid
	// split, missing identifiers). Raised before any network call.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeTransport indicates a network failure or timeout talking to
	// the chain node or reply index.
	ErrCodeTransport ErrorCode = "TRANSPORT"

	// ErrCodeRemoteRejection indicates the node answered with a
	// protocol-level error.
	ErrCodeRemoteRejection ErrorCode = "REMOTE_REJECTION"

	// ErrCodeNotPublished indicates reconciliation was requested for a post
	// without a successful publish record.
	ErrCodeNotPublished ErrorCode = "NOT_PUBLISHED"
)

// transportMessage is what users see for transport failures.
const transportMessage = "remote node unavailable, try again later"

// Error is the structured error returned by bridge operations.
type Error struct {
	Code    ErrorCode
	Message string

	// PostID identifies the affected post, 0 when not applicable.
	PostID int64

	// Err is the underlying cause (optional).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.PostID != 0 {
		msg = fmt.Sprintf("%s (post=%d)", msg, e.PostID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a CONFIGURATION error.
func NewConfigurationError(format string, args ...any) *Error {
	return &Error{Code: ErrCodeConfiguration, Message: fmt.Sprintf(format, args...)}
}

// NewValidationError creates a VALIDATION error.
func NewValidationError(format string, args ...any) *Error {
	return &Error{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NewTransportError wraps a network failure.
func NewTransportError(op string, err error) *Error {
	return &Error{Code: ErrCodeTransport, Message: op + " failed", Err: err}
}

// NewRemoteRejection wraps a protocol-level error reported by the node.
func NewRemoteRejection(op string, err error) *Error {
	msg := op + " rejected"
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &Error{Code: ErrCodeRemoteRejection, Message: msg}
}

// NewNotPublishedError creates a NOT_PUBLISHED error for postID.
func NewNotPublishedError(postID int64) *Error {
	return &Error{Code: ErrCodeNotPublished, Message: "not published", PostID: postID}
}

// CodeOf returns the error code of err, or "" if err is not a bridge error.
func CodeOf(err error) ErrorCode {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// IsConfigurationError reports whether err is a CONFIGURATION error.
func IsConfigurationError(err error) bool { return CodeOf(err) == ErrCodeConfiguration }

// IsValidationError reports whether err is a VALIDATION error.
func IsValidationError(err error) bool { return CodeOf(err) == ErrCodeValidation }

// IsTransportError reports whether err is a TRANSPORT error.
func IsTransportError(err error) bool { return CodeOf(err) == ErrCodeTransport }

// IsRemoteRejection reports whether err is a REMOTE_REJECTION error.
func IsRemoteRejection(err error) bool { return CodeOf(err) == ErrCodeRemoteRejection }

// IsNotPublishedError reports whether err is a NOT_PUBLISHED error.
func IsNotPublishedError(err error) bool { return CodeOf(err) == ErrCodeNotPublished }

// UserMessage returns the message to show to a user for err.
// Configuration, validation, rejection and not-published messages are
// returned verbatim; transport failures get a generic message so that
// infrastructure detail stays in the logs.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *Error
	if !errors.As(err, &be) {
		return err.Error()
	}
	if be.Code == ErrCodeTransport {
		return transportMessage
	}
	return be.Message
}
