package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fiacomm/chat-api/internal/models"
	"github.com/fiacomm/chat-api/internal/repository"
)

// MembershipService manages the participant roster per room. Membership is
// permanent once granted; re-joining only refreshes last_seen_at.
type MembershipService interface {
	Join(ctx context.Context, principal Principal, roomID uint) error
	Enroll(ctx context.Context, principal Principal, roomID uint, role string) error
	IsMember(ctx context.Context, userID string, roomID uint) (bool, error)
	TouchLastSeen(ctx context.Context, roomID uint, userID string)
}

type membershipService struct {
	rooms        repository.RoomRepository
	participants repository.ParticipantRepository
	logger       zerolog.Logger
	now          func() time.Time
}

// NewMembershipService constructs a membership service.
func NewMembershipService(rooms repository.RoomRepository, participants repository.ParticipantRepository, logger zerolog.Logger) MembershipService {
	return &membershipService{
		rooms:        rooms,
		participants: participants,
		logger:       logger.With().Str("component", "membership_service").Logger(),
		now:          time.Now,
	}
}

// Join upserts the caller into the room. Capacity, when set, bounds the
// live membership count but never blocks a re-join by an existing member.
func (s *membershipService) Join(ctx context.Context, principal Principal, roomID uint) error {
	room, err := s.rooms.GetActive(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoomNotFound
		}
		return err
	}

	if room.MaxParticipants != nil {
		already, err := s.participants.IsMember(ctx, roomID, principal.ID)
		if err != nil {
			return err
		}
		if !already {
			count, err := s.participants.CountByRoom(ctx, roomID)
			if err != nil {
				return err
			}
			if count >= int64(*room.MaxParticipants) {
				return ErrRoomFull
			}
		}
	}

	return s.Enroll(ctx, principal, roomID, models.ParticipantRoleMember)
}

// Enroll writes the membership row with the given role-within-room. The
// upsert refreshes last_seen_at when the row already exists, so duplicate
// joins collapse onto the single (room, principal) row.
func (s *membershipService) Enroll(ctx context.Context, principal Principal, roomID uint, role string) error {
	now := s.now()
	participant := models.RoomParticipant{
		RoomID:     roomID,
		UserID:     principal.ID,
		Role:       role,
		JoinedAt:   now,
		LastSeenAt: now,
	}
	if err := s.participants.Upsert(ctx, &participant); err != nil {
		return err
	}

	s.logger.Debug().Uint("room_id", roomID).Str("user_id", principal.ID).Str("role", role).Msg("participant upserted")
	return nil
}

func (s *membershipService) IsMember(ctx context.Context, userID string, roomID uint) (bool, error) {
	return s.participants.IsMember(ctx, roomID, userID)
}

// TouchLastSeen refreshes the caller's last_seen_at. Write observations
// double as presence pings, so failures are logged and swallowed.
func (s *membershipService) TouchLastSeen(ctx context.Context, roomID uint, userID string) {
	if err := s.participants.TouchLastSeen(ctx, roomID, userID, s.now()); err != nil {
		s.logger.Debug().Err(err).Uint("room_id", roomID).Str("user_id", userID).Msg("failed to refresh last_seen_at")
	}
}
