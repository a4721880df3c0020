package service

import "errors"

// Sentinel errors shared across the chat services. Handlers translate
// these into structured HTTP failures; none of them crosses the boundary
// unwrapped.
var (
	// ErrForbidden indicates the principal lacks the required capability.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrRoomNotFound indicates the room does not exist or is inactive.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomFull indicates the room reached its participant capacity.
	ErrRoomFull = errors.New("room is full")
	// ErrDuplicateName indicates a room with the same name already exists.
	ErrDuplicateName = errors.New("room name already exists")
	// ErrEmptyName indicates a room name was blank after sanitization.
	ErrEmptyName = errors.New("room name is empty")
	// ErrNotMember indicates a write was attempted without membership.
	ErrNotMember = errors.New("you are not a participant in this room")
	// ErrEmptyBody indicates a text message was blank after sanitization.
	ErrEmptyBody = errors.New("message body is empty")
	// ErrInvalidReply indicates the reply target is missing or in another room.
	ErrInvalidReply = errors.New("reply target is not a message in this room")
	// ErrMessageNotFound indicates the referenced message does not exist.
	ErrMessageNotFound = errors.New("message not found")
	// ErrFileTooLarge indicates the upload exceeded the size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrFileTypeNotAllowed indicates the file extension is not permitted.
	ErrFileTypeNotAllowed = errors.New("file type not allowed")
	// ErrStorageFailure indicates the durable write failed after cleanup.
	ErrStorageFailure = errors.New("failed to store file")
)
