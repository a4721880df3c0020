package dto

import (
	"time"

	"github.com/fiacomm/chat-api/internal/models"
)

// RoomCreateRequest is the payload to create a chat room.
type RoomCreateRequest struct {
	Name            string `form:"name" json:"name" validate:"required,min=1,max=128"`
	Description     string `form:"description" json:"description" validate:"max=500"`
	Visibility      string `form:"visibility" json:"visibility" validate:"omitempty,oneof=public private"`
	MaxParticipants *int   `form:"max_participants" json:"max_participants" validate:"omitempty,min=2,max=1000"`
}

// RoomResponse is the serialized representation of a room.
type RoomResponse struct {
	ID              uint      `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Visibility      string    `json:"visibility"`
	MaxParticipants *int      `json:"max_participants,omitempty"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

// RoomSummary is a room listing entry. Participant count and last message
// timestamp are computed at read time, never stored.
type RoomSummary struct {
	ID               uint       `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	Visibility       string     `json:"visibility"`
	MaxParticipants  *int       `json:"max_participants,omitempty"`
	CreatedBy        string     `json:"created_by"`
	ParticipantCount int64      `json:"participant_count"`
	LastMessageAt    *time.Time `json:"last_message_at,omitempty"`
	RoleInRoom       string     `json:"role_in_room,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// NewRoomResponse converts a room model into a DTO.
func NewRoomResponse(room models.Room) RoomResponse {
	return RoomResponse{
		ID:              room.ID,
		Name:            room.Name,
		Description:     room.Description,
		Visibility:      room.Visibility,
		MaxParticipants: room.MaxParticipants,
		CreatedBy:       room.CreatedBy,
		CreatedAt:       room.CreatedAt,
	}
}
