package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fiacomm/chat-api/internal/models"
)

// ParticipantRepository persists room membership rows.
type ParticipantRepository interface {
	Upsert(ctx context.Context, participant *models.RoomParticipant) error
	IsMember(ctx context.Context, roomID uint, userID string) (bool, error)
	CountByRoom(ctx context.Context, roomID uint) (int64, error)
	CountByRooms(ctx context.Context, roomIDs []uint) (map[uint]int64, error)
	TouchLastSeen(ctx context.Context, roomID uint, userID string, at time.Time) error
	RolesByUser(ctx context.Context, userID string) (map[uint]string, error)
}

type participantRepository struct {
	db *gorm.DB
}

// NewParticipantRepository constructs a participant repository backed by GORM.
func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

// Upsert inserts the membership row or, when the (room, user) pair already
// exists, refreshes last_seen_at only. Concurrent joins from the same
// principal degrade to idempotent no-ops under the composite unique index.
func (r *participantRepository) Upsert(ctx context.Context, participant *models.RoomParticipant) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"last_seen_at": participant.LastSeenAt}),
	}).Create(participant).Error
}

func (r *participantRepository) IsMember(ctx context.Context, roomID uint, userID string) (bool, error) {
	var participant models.RoomParticipant
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&participant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *participantRepository) CountByRoom(ctx context.Context, roomID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RoomParticipant{}).
		Where("room_id = ?", roomID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *participantRepository) CountByRooms(ctx context.Context, roomIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(roomIDs))
	if len(roomIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		RoomID uint
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&models.RoomParticipant{}).
		Select("room_id, COUNT(*) as total").
		Where("room_id IN ?", roomIDs).
		Group("room_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.RoomID] = row.Total
	}
	return counts, nil
}

func (r *participantRepository) TouchLastSeen(ctx context.Context, roomID uint, userID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.RoomParticipant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("last_seen_at", at).Error
}

func (r *participantRepository) RolesByUser(ctx context.Context, userID string) (map[uint]string, error) {
	var participants []models.RoomParticipant
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&participants).Error
	if err != nil {
		return nil, err
	}

	roles := make(map[uint]string, len(participants))
	for _, participant := range participants {
		roles[participant.RoomID] = participant.Role
	}
	return roles, nil
}
