package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/fiacomm/chat-api/internal/models"
)

// ReactionAggregate is one (message, emoji) bucket with its derived count.
type ReactionAggregate struct {
	MessageID uint
	Emoji     string
	Count     int64
}

// ReactionRepository persists reaction set membership. Uniqueness of
// (message, user, emoji) is guaranteed by a composite index so a lost
// toggle race fails on insert instead of double-counting.
type ReactionRepository interface {
	Exists(ctx context.Context, messageID uint, userID, emoji string) (bool, error)
	Create(ctx context.Context, reaction *models.MessageReaction) error
	Delete(ctx context.Context, messageID uint, userID, emoji string) error
	AggregateByMessages(ctx context.Context, messageIDs []uint) ([]ReactionAggregate, error)
}

type reactionRepository struct {
	db *gorm.DB
}

// NewReactionRepository constructs a reaction repository backed by GORM.
func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepository{db: db}
}

func (r *reactionRepository) Exists(ctx context.Context, messageID uint, userID, emoji string) (bool, error) {
	var reaction models.MessageReaction
	err := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		First(&reaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *reactionRepository) Create(ctx context.Context, reaction *models.MessageReaction) error {
	return r.db.WithContext(ctx).Create(reaction).Error
}

func (r *reactionRepository) Delete(ctx context.Context, messageID uint, userID, emoji string) error {
	return r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		Delete(&models.MessageReaction{}).Error
}

// AggregateByMessages groups reactions by emoji for the given message ids.
// Counts are always derived here; no counter column exists.
func (r *reactionRepository) AggregateByMessages(ctx context.Context, messageIDs []uint) ([]ReactionAggregate, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	var aggregates []ReactionAggregate
	err := r.db.WithContext(ctx).Model(&models.MessageReaction{}).
		Select("message_id, emoji, COUNT(*) as count").
		Where("message_id IN ?", messageIDs).
		Group("message_id, emoji").
		Scan(&aggregates).Error
	if err != nil {
		return nil, err
	}
	return aggregates, nil
}
