package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/fiacomm/chat-api/internal/dto"
	"github.com/fiacomm/chat-api/internal/models"
	"github.com/fiacomm/chat-api/internal/observability"
	"github.com/fiacomm/chat-api/internal/repository"
)

// DefaultPresenceWindow is the liveness window after which a record is
// treated as absent regardless of its stored status.
const DefaultPresenceWindow = 5 * time.Minute

// PresenceService tracks per-principal online/away/busy/invisible state.
// No sweeper expires stale records; every read applies the liveness window.
type PresenceService interface {
	Heartbeat(ctx context.Context, principal Principal, status string) error
	Ping(ctx context.Context, principal Principal)
	ListOnline(ctx context.Context) ([]dto.PresenceView, error)
}

type presenceService struct {
	records   repository.PresenceRepository
	window    time.Duration
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewPresenceService constructs a presence service.
func NewPresenceService(records repository.PresenceRepository, window time.Duration, validate *validator.Validate, logger zerolog.Logger) PresenceService {
	if window <= 0 {
		window = DefaultPresenceWindow
	}
	return &presenceService{
		records:   records,
		window:    window,
		validator: validate,
		logger:    logger.With().Str("component", "presence_service").Logger(),
		now:       time.Now,
	}
}

// Heartbeat upserts the caller's presence record with a fresh activity
// timestamp and display snapshot.
func (s *presenceService) Heartbeat(ctx context.Context, principal Principal, status string) error {
	if status == "" {
		status = models.PresenceStatusOnline
	}
	if err := s.validator.Struct(dto.PresenceUpdateRequest{Status: status}); err != nil {
		return err
	}

	record := models.PresenceRecord{
		UserID:         principal.ID,
		Username:       principal.Username,
		FullName:       principal.FullName,
		Avatar:         principal.Avatar,
		RoleLabel:      principal.RoleLabel,
		RoleColor:      principal.RoleColor,
		Status:         status,
		LastActivityAt: s.now(),
	}
	if err := s.records.Upsert(ctx, &record); err != nil {
		return err
	}

	observability.PresenceHeartbeats().WithLabelValues(status).Inc()
	return nil
}

// Ping is the heartbeat piggybacked on write actions. It refreshes the
// activity timestamp without disturbing a declared status, and must never
// block or fail the action it rides on.
func (s *presenceService) Ping(ctx context.Context, principal Principal) {
	record := models.PresenceRecord{
		UserID:         principal.ID,
		Username:       principal.Username,
		FullName:       principal.FullName,
		Avatar:         principal.Avatar,
		RoleLabel:      principal.RoleLabel,
		RoleColor:      principal.RoleColor,
		Status:         models.PresenceStatusOnline,
		LastActivityAt: s.now(),
	}
	if err := s.records.Touch(ctx, &record); err != nil {
		s.logger.Debug().Err(err).Str("user_id", principal.ID).Msg("best-effort presence ping failed")
	}
}

// ListOnline returns every record inside the liveness window. Declared
// status is carried through untouched; hiding "invisible" entries is a
// presentation decision left to callers.
func (s *presenceService) ListOnline(ctx context.Context) ([]dto.PresenceView, error) {
	cutoff := s.now().Add(-s.window)
	records, err := s.records.ListActiveSince(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	return dto.NewPresenceViewSlice(records), nil
}
