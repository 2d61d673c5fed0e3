// Package protocol defines the JSON messages exchanged with clients.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/mcoot/lobbysync/internal/model"
)

// Envelope is the frame every inbound message arrives in
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// LoginRequest is the payload of user:login
type LoginRequest struct {
	UserID   string `json:"userId"   validate:"required"`
	Username string `json:"username" validate:"required"`
}

// CreateRoomRequest is the payload of room:create
type CreateRoomRequest struct {
	Name       string `json:"name"`
	HostID     string `json:"hostId"`
	MaxPlayers int    `json:"maxPlayers,omitempty"`
}

// RoomMembershipRequest is the payload of room:join and room:leave
type RoomMembershipRequest struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// Decoder turns raw frames into model events
type Decoder struct {
	validate *validator.Validate
}

// NewDecoder creates a Decoder
func NewDecoder() *Decoder {
	return &Decoder{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Decode parses one inbound frame. A missing data object decodes as empty.
func (d *Decoder) Decode(frame []byte) (model.Event, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedEvent, err)
	}

	switch env.Event {
	case model.EventLogin:
		var req LoginRequest
		if err := unmarshalData(env.Data, &req); err != nil {
			return nil, err
		}
		if err := d.validate.Struct(req); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				return nil, model.ErrMissingFields
			}
			return nil, fmt.Errorf("%w: %v", model.ErrMalformedEvent, err)
		}
		return model.Login{UserID: model.UserID(req.UserID), DisplayName: req.Username}, nil

	case model.EventLogout:
		return model.Logout{}, nil

	case model.EventCreateRoom:
		var req CreateRoomRequest
		if err := unmarshalData(env.Data, &req); err != nil {
			return nil, err
		}
		return model.CreateRoom{
			RoomName:   req.Name,
			HostID:     model.UserID(req.HostID),
			MaxPlayers: req.MaxPlayers,
		}, nil

	case model.EventJoinRoom:
		var req RoomMembershipRequest
		if err := unmarshalData(env.Data, &req); err != nil {
			return nil, err
		}
		return model.JoinRoom{RoomID: model.RoomID(req.RoomID), UserID: model.UserID(req.UserID)}, nil

	case model.EventLeaveRoom:
		var req RoomMembershipRequest
		if err := unmarshalData(env.Data, &req); err != nil {
			return nil, err
		}
		return model.LeaveRoom{RoomID: model.RoomID(req.RoomID), UserID: model.UserID(req.UserID)}, nil

	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownEvent, env.Event)
	}
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", model.ErrMalformedEvent, err)
	}
	return nil
}
