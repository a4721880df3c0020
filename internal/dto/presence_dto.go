package dto

import (
	"time"

	"github.com/fiacomm/chat-api/internal/models"
)

// PresenceUpdateRequest declares the caller's status.
type PresenceUpdateRequest struct {
	Status string `form:"status" json:"status" validate:"required,oneof=online away busy invisible"`
}

// PresenceView is one live principal as returned by get_online_users.
type PresenceView struct {
	UserID         string    `json:"user_id"`
	Username       string    `json:"username"`
	FullName       string    `json:"fullname"`
	Avatar         string    `json:"avatar,omitempty"`
	RoleLabel      string    `json:"role_label,omitempty"`
	RoleColor      string    `json:"role_color,omitempty"`
	Status         string    `json:"status"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// NewPresenceView converts a presence record into a DTO.
func NewPresenceView(record models.PresenceRecord) PresenceView {
	return PresenceView{
		UserID:         record.UserID,
		Username:       record.Username,
		FullName:       record.FullName,
		Avatar:         record.Avatar,
		RoleLabel:      record.RoleLabel,
		RoleColor:      record.RoleColor,
		Status:         record.Status,
		LastActivityAt: record.LastActivityAt,
	}
}

// NewPresenceViewSlice converts a slice of presence records into DTOs.
func NewPresenceViewSlice(records []models.PresenceRecord) []PresenceView {
	out := make([]PresenceView, 0, len(records))
	for _, record := range records {
		out = append(out, NewPresenceView(record))
	}
	return out
}
