package dto

import (
	"time"

	"github.com/fiacomm/chat-api/internal/models"
)

// MessageSendRequest is the payload to append a text message to a room.
type MessageSendRequest struct {
	RoomID  uint   `form:"room_id" json:"room_id" validate:"required"`
	Body    string `form:"message" json:"message" validate:"required,max=1000"`
	ReplyTo *uint  `form:"reply_to" json:"reply_to" validate:"omitempty,min=1"`
}

// MessageFetchQuery asks for all messages in a room newer than the cursor.
type MessageFetchQuery struct {
	RoomID uint `form:"room_id" json:"room_id" validate:"required"`
	LastID uint `form:"last_id" json:"last_id"`
}

// ReactionCount is an aggregated reaction bucket for one emoji.
type ReactionCount struct {
	Emoji string `json:"emoji"`
	Count int64  `json:"count"`
}

// ReplyPreview summarizes the message a reply points at.
type ReplyPreview struct {
	MessageID uint   `json:"message_id"`
	Author    string `json:"author"`
	Body      string `json:"body"`
}

// AttachmentInfo describes the file carried by a file/image message.
type AttachmentInfo struct {
	FileName    string `json:"file_name"`
	StoredRef   string `json:"stored_ref"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type"`
}

// MessageView is one retrieved message, annotated with the author display
// snapshot, the reply preview when present, and aggregated reactions.
type MessageView struct {
	ID           uint            `json:"id"`
	RoomID       uint            `json:"room_id"`
	UserID       string          `json:"user_id"`
	Username     string          `json:"username"`
	FullName     string          `json:"fullname"`
	Avatar       string          `json:"avatar,omitempty"`
	RoleLabel    string          `json:"role_label,omitempty"`
	RoleColor    string          `json:"role_color,omitempty"`
	Body         string          `json:"body"`
	RenderedBody string          `json:"rendered_body,omitempty"`
	Kind         string          `json:"kind"`
	Reply        *ReplyPreview   `json:"reply,omitempty"`
	Reactions    []ReactionCount `json:"reactions"`
	Attachment   *AttachmentInfo `json:"attachment,omitempty"`
	PreviewURL   string          `json:"preview_url,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewMessageView converts a message model into a view without annotations.
func NewMessageView(message models.ChatMessage) MessageView {
	view := MessageView{
		ID:        message.ID,
		RoomID:    message.RoomID,
		UserID:    message.UserID,
		Username:  message.Username,
		FullName:  message.FullName,
		Avatar:    message.Avatar,
		RoleLabel: message.RoleLabel,
		RoleColor: message.RoleColor,
		Body:      message.Body,
		Kind:      message.Kind,
		Reactions: []ReactionCount{},
		CreatedAt: message.CreatedAt,
	}
	if message.Attachment != nil {
		view.Attachment = &AttachmentInfo{
			FileName:    message.Attachment.FileName,
			StoredRef:   message.Attachment.StoredRef,
			FileSize:    message.Attachment.FileSize,
			ContentType: message.Attachment.ContentType,
		}
	}
	return view
}

// ReactionToggleRequest flips one (message, principal, emoji) reaction.
type ReactionToggleRequest struct {
	MessageID uint   `form:"message_id" json:"message_id" validate:"required"`
	Emoji     string `form:"reaction" json:"reaction" validate:"required,max=32"`
}

// Reaction toggle outcomes.
const (
	ReactionAdded   = "added"
	ReactionRemoved = "removed"
)

// ReactionToggleResponse reports which branch of the toggle executed.
type ReactionToggleResponse struct {
	Action string `json:"action"`
}
