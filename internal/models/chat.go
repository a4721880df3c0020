package models

import (
	"time"

	"gorm.io/datatypes"
)

// Room visibility values.
const (
	RoomVisibilityPublic  = "public"
	RoomVisibilityPrivate = "private"
)

// Participant roles within a room.
const (
	ParticipantRoleOwner  = "owner"
	ParticipantRoleMember = "member"
)

// Message kinds.
const (
	MessageKindText  = "text"
	MessageKindFile  = "file"
	MessageKindImage = "image"
)

// Room represents a chat room. Rooms are never physically deleted; the
// unique index on name therefore also guarantees name uniqueness among
// active rooms.
type Room struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	Name            string            `gorm:"size:128;uniqueIndex;not null" json:"name"`
	Description     string            `gorm:"type:text" json:"description"`
	Visibility      string            `gorm:"size:16;not null;default:public" json:"visibility"`
	MaxParticipants *int              `json:"max_participants,omitempty"`
	CreatedBy       string            `gorm:"size:64;index" json:"created_by"`
	Metadata        datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	IsActive        *bool             `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// RoomParticipant links a principal to a room. At most one row may exist
// per (room, principal); re-joining refreshes LastSeenAt only.
type RoomParticipant struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RoomID     uint      `gorm:"uniqueIndex:idx_room_user;not null" json:"room_id"`
	UserID     string    `gorm:"size:64;uniqueIndex:idx_room_user;not null" json:"user_id"`
	Role       string    `gorm:"size:16;not null;default:member" json:"role"`
	JoinedAt   time.Time `json:"joined_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// ChatMessage is one entry in a room's ordered log. The auto-incrementing
// primary key is the single total order for retrieval: ids are assigned by
// the storage sequence, strictly increasing and never reused. Deleted
// messages keep their row and id.
//
// Author display fields are snapshotted from the authenticated principal at
// append time because identity resolution lives outside this service.
type ChatMessage struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	RoomID    uint   `gorm:"index;not null" json:"room_id"`
	UserID    string `gorm:"size:64;index;not null" json:"user_id"`
	Username  string `gorm:"size:64" json:"username"`
	FullName  string `gorm:"size:128" json:"fullname"`
	Avatar    string `gorm:"size:255" json:"avatar"`
	RoleLabel string `gorm:"size:64" json:"role_label"`
	RoleColor string `gorm:"size:16" json:"role_color"`
	Body      string `gorm:"type:text" json:"body"`
	Kind      string `gorm:"size:16;not null;default:text" json:"kind"`
	ReplyToID *uint  `gorm:"index" json:"reply_to_id,omitempty"`
	IsDeleted bool   `gorm:"not null;default:false" json:"is_deleted"`

	Attachment *Attachment `gorm:"foreignKey:MessageID" json:"attachment,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Attachment stores the file metadata for a message of kind file or image.
// The row is created in the same transaction as its message, after the
// bytes have been durably stored.
type Attachment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	MessageID   uint      `gorm:"uniqueIndex;not null" json:"message_id"`
	FileName    string    `gorm:"size:255;not null" json:"file_name"`
	StoredRef   string    `gorm:"size:512;not null" json:"stored_ref"`
	FileSize    int64     `gorm:"not null" json:"file_size"`
	ContentType string    `gorm:"size:128" json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// MessageReaction records that a principal reacted to a message with one
// emoji. Existence is the whole state; counts are derived by aggregation.
// The composite unique index makes a lost toggle race a constraint
// violation instead of a double insert.
type MessageReaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID uint      `gorm:"uniqueIndex:idx_msg_user_emoji;not null" json:"message_id"`
	UserID    string    `gorm:"size:64;uniqueIndex:idx_msg_user_emoji;not null" json:"user_id"`
	Emoji     string    `gorm:"size:32;uniqueIndex:idx_msg_user_emoji;not null" json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// Presence status values.
const (
	PresenceStatusOnline    = "online"
	PresenceStatusAway      = "away"
	PresenceStatusBusy      = "busy"
	PresenceStatusInvisible = "invisible"
)

// PresenceRecord tracks a principal's declared status globally. Records are
// overwritten by heartbeats and never deleted; staleness is decided at read
// time against the liveness window.
type PresenceRecord struct {
	UserID         string    `gorm:"size:64;primaryKey" json:"user_id"`
	Username       string    `gorm:"size:64" json:"username"`
	FullName       string    `gorm:"size:128" json:"fullname"`
	Avatar         string    `gorm:"size:255" json:"avatar"`
	RoleLabel      string    `gorm:"size:64" json:"role_label"`
	RoleColor      string    `gorm:"size:16" json:"role_color"`
	Status         string    `gorm:"size:16;not null;default:online" json:"status"`
	LastActivityAt time.Time `gorm:"index" json:"last_activity_at"`
}
