package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/fiacomm/chat-api/internal/models"
)

// MessageRepository persists the ordered per-room message log. Ordering is
// defined by primary-key assignment at the storage layer; no application
// locking is involved.
type MessageRepository interface {
	Create(ctx context.Context, message *models.ChatMessage) error
	CreateWithAttachment(ctx context.Context, message *models.ChatMessage, attachment *models.Attachment) error
	Get(ctx context.Context, id uint) (models.ChatMessage, error)
	FindByIDs(ctx context.Context, ids []uint) (map[uint]models.ChatMessage, error)
	ListSince(ctx context.Context, roomID, sinceID uint) ([]models.ChatMessage, error)
	LastCreatedAt(ctx context.Context, roomID uint) (*time.Time, error)
	LastCreatedAtByRooms(ctx context.Context, roomIDs []uint) (map[uint]time.Time, error)
	SoftDelete(ctx context.Context, id uint) error
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a message repository backed by GORM.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.ChatMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// CreateWithAttachment writes the message and its attachment row in one
// transaction so the pair is both-or-neither.
func (r *messageRepository) CreateWithAttachment(ctx context.Context, message *models.ChatMessage, attachment *models.Attachment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		attachment.MessageID = message.ID
		return tx.Create(attachment).Error
	})
}

// Get returns a message that has not been soft-deleted.
func (r *messageRepository) Get(ctx context.Context, id uint) (models.ChatMessage, error) {
	var message models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", id, false).
		First(&message).Error
	if err != nil {
		return models.ChatMessage{}, err
	}
	return message, nil
}

// FindByIDs returns the messages keyed by id. Soft-deleted rows are
// included so reply previews stay resolvable after the target is removed.
func (r *messageRepository) FindByIDs(ctx context.Context, ids []uint) (map[uint]models.ChatMessage, error) {
	found := make(map[uint]models.ChatMessage, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	var messages []models.ChatMessage
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&messages).Error; err != nil {
		return nil, err
	}

	for _, message := range messages {
		found[message.ID] = message
	}
	return found, nil
}

// ListSince returns all non-deleted messages with id > sinceID for the
// room, ascending by id. This is the sole read path for new content.
func (r *messageRepository) ListSince(ctx context.Context, roomID, sinceID uint) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := r.db.WithContext(ctx).
		Preload("Attachment").
		Where("room_id = ? AND id > ? AND is_deleted = ?", roomID, sinceID, false).
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) LastCreatedAt(ctx context.Context, roomID uint) (*time.Time, error) {
	var message models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND is_deleted = ?", roomID, false).
		Order("id DESC").
		First(&message).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	created := message.CreatedAt
	return &created, nil
}

func (r *messageRepository) LastCreatedAtByRooms(ctx context.Context, roomIDs []uint) (map[uint]time.Time, error) {
	latest := make(map[uint]time.Time, len(roomIDs))
	if len(roomIDs) == 0 {
		return latest, nil
	}

	// Ids are assigned in creation order, so the newest message per room
	// is the one with the highest id. Loading whole rows keeps timestamp
	// decoding with the driver instead of a raw aggregate scan.
	newestIDs := r.db.Model(&models.ChatMessage{}).
		Select("MAX(id)").
		Where("room_id IN ? AND is_deleted = ?", roomIDs, false).
		Group("room_id")

	var messages []models.ChatMessage
	if err := r.db.WithContext(ctx).Where("id IN (?)", newestIDs).Find(&messages).Error; err != nil {
		return nil, err
	}

	for _, message := range messages {
		latest[message.RoomID] = message.CreatedAt
	}
	return latest, nil
}

// SoftDelete marks the message deleted while keeping its row and id, so
// the sequence handed to clients never reuses identifiers.
func (r *messageRepository) SoftDelete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("id = ?", id).
		Update("is_deleted", true).Error
}
