package coordinator

import (
	"errors"

	"github.com/mcoot/lobbysync/internal/model"
)

// Error codes sent to clients
const (
	CodeMissingFields  = "MISSING_FIELDS"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeHostNotFound   = "HOST_NOT_FOUND"
	CodeUserNotFound   = "USER_NOT_FOUND"
	CodeRoomNotFound   = "ROOM_NOT_FOUND"
	CodeRoomFull       = "ROOM_FULL"
	CodeRoomInGame     = "ROOM_IN_GAME"
	CodeInternalError  = "INTERNAL_ERROR"
)

// wireError is the client-visible form of a failure
type wireError struct {
	code    string
	message string
}

// toWireError maps an error to the code and message reported to the
// client. Wrapped details are never exposed.
func toWireError(err error) wireError {
	switch {
	case errors.Is(err, model.ErrMissingFields):
		return wireError{CodeMissingFields, model.ErrMissingFields.Error()}
	case errors.Is(err, model.ErrMalformedEvent):
		return wireError{CodeInvalidRequest, model.ErrMalformedEvent.Error()}
	case errors.Is(err, model.ErrUnknownEvent):
		return wireError{CodeInvalidRequest, model.ErrUnknownEvent.Error()}

	case errors.Is(err, model.ErrHostNotFound):
		return wireError{CodeHostNotFound, model.ErrHostNotFound.Error()}
	case errors.Is(err, model.ErrUserNotFound):
		return wireError{CodeUserNotFound, model.ErrUserNotFound.Error()}
	case errors.Is(err, model.ErrRoomNotFound):
		return wireError{CodeRoomNotFound, model.ErrRoomNotFound.Error()}

	case errors.Is(err, model.ErrRoomFull):
		return wireError{CodeRoomFull, model.ErrRoomFull.Error()}
	case errors.Is(err, model.ErrRoomInGame):
		return wireError{CodeRoomInGame, model.ErrRoomInGame.Error()}

	default:
		return wireError{CodeInternalError, "internal server error"}
	}
}

// ErrorCode returns the wire code an error maps to
func ErrorCode(err error) string {
	return toWireError(err).code
}
