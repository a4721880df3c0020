package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/fiacomm/chat-api/internal/models"
)

// RoomRepository persists chat rooms.
type RoomRepository interface {
	Create(ctx context.Context, room *models.Room) error
	GetActive(ctx context.Context, id uint) (models.Room, error)
	ListVisible(ctx context.Context, userID string) ([]models.Room, error)
	Count(ctx context.Context) (int64, error)
}

type roomRepository struct {
	db *gorm.DB
}

// NewRoomRepository constructs a room repository backed by GORM.
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

// Create inserts the room. A name collision surfaces as
// gorm.ErrDuplicatedKey through the driver's error translation; callers
// rely on the constraint rather than a check-then-insert.
func (r *roomRepository) Create(ctx context.Context, room *models.Room) error {
	return r.db.WithContext(ctx).Create(room).Error
}

func (r *roomRepository) GetActive(ctx context.Context, id uint) (models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&room).Error
	if err != nil {
		return models.Room{}, err
	}
	return room, nil
}

// ListVisible returns active rooms that are public or that the given
// principal already participates in, newest first.
func (r *roomRepository) ListVisible(ctx context.Context, userID string) ([]models.Room, error) {
	membership := r.db.Model(&models.RoomParticipant{}).
		Select("room_id").
		Where("user_id = ?", userID)

	var rooms []models.Room
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("visibility = ? OR id IN (?)", models.RoomVisibilityPublic, membership).
		Order("created_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *roomRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Room{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
