package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fiacomm/chat-api/internal/models"
)

// PresenceRepository persists the global presence records. Records are only
// ever overwritten; staleness is a read-time decision.
type PresenceRepository interface {
	Upsert(ctx context.Context, record *models.PresenceRecord) error
	Touch(ctx context.Context, record *models.PresenceRecord) error
	ListActiveSince(ctx context.Context, cutoff time.Time) ([]models.PresenceRecord, error)
}

type presenceRepository struct {
	db *gorm.DB
}

// NewPresenceRepository constructs a presence repository backed by GORM.
func NewPresenceRepository(db *gorm.DB) PresenceRepository {
	return &presenceRepository{db: db}
}

// Upsert overwrites the principal's record, refreshing the display
// snapshot, declared status and activity timestamp in one statement.
func (r *presenceRepository) Upsert(ctx context.Context, record *models.PresenceRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"username", "full_name", "avatar", "role_label", "role_color",
			"status", "last_activity_at",
		}),
	}).Create(record).Error
}

// Touch refreshes the activity timestamp and display snapshot while leaving
// the declared status alone. An insert still lands with the record's status,
// so first contact creates a normal record.
func (r *presenceRepository) Touch(ctx context.Context, record *models.PresenceRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"username", "full_name", "avatar", "role_label", "role_color",
			"last_activity_at",
		}),
	}).Create(record).Error
}

// ListActiveSince returns records with activity inside the liveness window,
// any declared status included. Ordering mirrors the roster presentation:
// status first, then display name.
func (r *presenceRepository) ListActiveSince(ctx context.Context, cutoff time.Time) ([]models.PresenceRecord, error) {
	var records []models.PresenceRecord
	err := r.db.WithContext(ctx).
		Where("last_activity_at > ?", cutoff).
		Order("status ASC, full_name ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
