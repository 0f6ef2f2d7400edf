package wire

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/toftlabs/toft/grid"
)

// Error codes carried by ErrorResponse.
const (
	ErrCodeBadRequest           = "bad_request"
	ErrCodeNotFound             = "not_found"
	ErrCodeUnauthorized         = "unauthorized"
	ErrCodeConflict             = "conflict"
	ErrCodeTooLarge             = "too_large"
	ErrCodeServerTooBusy        = "server_too_busy"
	ErrCodeInternalServerError  = "internal_server_error"
	ErrCodeSessionNotJoined     = "session_not_joined"
	ErrCodeSessionAlreadyJoined = "session_already_joined"
)

// Error types used to classify handler failures.
const (
	// ErrTypeMsgSkip marks a message a module chose not to handle.
	ErrTypeMsgSkip = "wire_msg_skip"

	// ErrTypeSessionNotJoined marks requests that need a joined session.
	ErrTypeSessionNotJoined = "wire_session_not_joined"
)

// ErrModuleMsgSkip is returned by modules for messages they do not handle.
var ErrModuleMsgSkip = errors.New("message skipped").WithType(ErrTypeMsgSkip)

// CodeForError maps an engine error to a protocol error code. The engine
// error kind itself travels in ErrorResponse.Detail.
func CodeForError(err error) string {
	switch errors.Type(err) {
	case grid.ErrTypeNotFound:
		return ErrCodeNotFound
	case grid.ErrTypeCollisionDetected:
		return ErrCodeConflict
	case grid.ErrTypeInvalidRequest,
		grid.ErrTypeOutOfBounds,
		grid.ErrTypeParentChildViolation:
		return ErrCodeBadRequest
	default:
		return ErrCodeInternalServerError
	}
}

// ErrorResponseFrom builds the error response for a failed engine operation.
func ErrorResponseFrom(requestID uint32, err error) ErrorResponse {
	return ErrorResponse{
		Type:      MsgTypeErrorResponse,
		Timestamp: Now(),
		RequestID: requestID,
		Code:      CodeForError(err),
		Detail:    errors.Type(err),
	}
}
