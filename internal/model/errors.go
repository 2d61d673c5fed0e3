package model

import "errors"

// Common errors used across the application
var (
	// Validation errors
	ErrMissingFields  = errors.New("user id and username are required")
	ErrMalformedEvent = errors.New("malformed event payload")
	ErrUnknownEvent   = errors.New("unknown event")

	// Lookup errors
	ErrUserNotFound = errors.New("user not found")
	ErrHostNotFound = errors.New("host user not found")
	ErrRoomNotFound = errors.New("room not found")

	// State conflict errors
	ErrRoomFull   = errors.New("room is full")
	ErrRoomInGame = errors.New("room is already in game")
)
