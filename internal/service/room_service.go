package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fiacomm/chat-api/internal/dto"
	"github.com/fiacomm/chat-api/internal/models"
	"github.com/fiacomm/chat-api/internal/repository"
)

// Rooms seeded for the first principal that opens the chat before any room
// exists.
var defaultRooms = []struct {
	name, description string
}{
	{"General Chat", "Main chat room for all users"},
	{"Tech Discussion", "Discuss technology and programming"},
	{"Random", "Off-topic conversations"},
}

// RoomService manages room lifecycle and the room directory listing.
type RoomService interface {
	Create(ctx context.Context, principal Principal, payload dto.RoomCreateRequest) (dto.RoomResponse, error)
	List(ctx context.Context, principal Principal) ([]dto.RoomSummary, error)
	EnsureDefaults(ctx context.Context, principal Principal) error
}

type roomService struct {
	rooms        repository.RoomRepository
	participants repository.ParticipantRepository
	messages     repository.MessageRepository
	membership   MembershipService
	redis        *redis.Client
	cacheTTL     time.Duration
	validator    *validator.Validate
	sanitizer    *bluemonday.Policy
	logger       zerolog.Logger
	tracer       trace.Tracer
}

// NewRoomService constructs a room service. The Redis client may be nil;
// listing then always computes summaries from the store.
func NewRoomService(rooms repository.RoomRepository, participants repository.ParticipantRepository, messages repository.MessageRepository, membership MembershipService, redisClient *redis.Client, cacheTTL time.Duration, validate *validator.Validate, logger zerolog.Logger) RoomService {
	return &roomService{
		rooms:        rooms,
		participants: participants,
		messages:     messages,
		membership:   membership,
		redis:        redisClient,
		cacheTTL:     cacheTTL,
		validator:    validate,
		sanitizer:    bluemonday.StrictPolicy(),
		logger:       logger.With().Str("component", "room_service").Logger(),
		tracer:       otel.Tracer("github.com/fiacomm/chat-api/internal/service/room"),
	}
}

func (s *roomService) Create(ctx context.Context, principal Principal, payload dto.RoomCreateRequest) (dto.RoomResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RoomResponse{}, err
	}

	if !principal.Can(CapabilityCreateRoom) {
		return dto.RoomResponse{}, ErrForbidden
	}

	name := strings.TrimSpace(s.sanitizer.Sanitize(payload.Name))
	if name == "" {
		return dto.RoomResponse{}, ErrEmptyName
	}

	visibility := payload.Visibility
	if visibility == "" {
		visibility = models.RoomVisibilityPublic
	}

	spanCtx, span := s.tracer.Start(ctx, "room.create", trace.WithAttributes(
		attribute.String("room.name", name),
		attribute.String("room.visibility", visibility),
		attribute.String("room.creator_id", principal.ID),
	))
	defer span.End()

	room := models.Room{
		Name:            name,
		Description:     strings.TrimSpace(s.sanitizer.Sanitize(payload.Description)),
		Visibility:      visibility,
		MaxParticipants: payload.MaxParticipants,
		CreatedBy:       principal.ID,
		Metadata: datatypes.JSONMap{
			"creator_name":     principal.FullName,
			"creator_username": principal.Username,
		},
		IsActive: boolRef(true),
	}

	if err := s.rooms.Create(spanCtx, &room); err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.RoomResponse{}, ErrDuplicateName
		}
		return dto.RoomResponse{}, err
	}

	if err := s.membership.Enroll(spanCtx, principal, room.ID, models.ParticipantRoleOwner); err != nil {
		span.RecordError(err)
		return dto.RoomResponse{}, err
	}

	s.invalidateListing(spanCtx, principal.ID)
	s.logger.Info().Uint("room_id", room.ID).Str("creator_id", principal.ID).Msg("room created")

	return dto.NewRoomResponse(room), nil
}

func (s *roomService) List(ctx context.Context, principal Principal) ([]dto.RoomSummary, error) {
	if cached := s.fetchCachedListing(ctx, principal.ID); cached != nil {
		return cached, nil
	}

	rooms, err := s.rooms.ListVisible(ctx, principal.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(rooms))
	for _, room := range rooms {
		ids = append(ids, room.ID)
	}

	counts, err := s.participants.CountByRooms(ctx, ids)
	if err != nil {
		return nil, err
	}
	latest, err := s.messages.LastCreatedAtByRooms(ctx, ids)
	if err != nil {
		return nil, err
	}
	roles, err := s.participants.RolesByUser(ctx, principal.ID)
	if err != nil {
		return nil, err
	}

	summaries := make([]dto.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summary := dto.RoomSummary{
			ID:               room.ID,
			Name:             room.Name,
			Description:      room.Description,
			Visibility:       room.Visibility,
			MaxParticipants:  room.MaxParticipants,
			CreatedBy:        room.CreatedBy,
			ParticipantCount: counts[room.ID],
			RoleInRoom:       roles[room.ID],
			CreatedAt:        room.CreatedAt,
		}
		if at, ok := latest[room.ID]; ok {
			last := at
			summary.LastMessageAt = &last
		}
		summaries = append(summaries, summary)
	}

	s.cacheListing(ctx, principal.ID, summaries)
	return summaries, nil
}

// EnsureDefaults seeds the default rooms when none exist yet, crediting
// the first caller as creator and owner.
func (s *roomService) EnsureDefaults(ctx context.Context, principal Principal) error {
	count, err := s.rooms.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, seed := range defaultRooms {
		room := models.Room{
			Name:        seed.name,
			Description: seed.description,
			Visibility:  models.RoomVisibilityPublic,
			CreatedBy:   principal.ID,
			IsActive:    boolRef(true),
		}
		if err := s.rooms.Create(ctx, &room); err != nil {
			// Another first visitor may have raced us; their seed wins.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			return err
		}
		if err := s.membership.Enroll(ctx, principal, room.ID, models.ParticipantRoleOwner); err != nil {
			return err
		}
	}

	s.logger.Info().Str("creator_id", principal.ID).Msg("default rooms seeded")
	return nil
}

func boolRef(v bool) *bool { return &v }

func (s *roomService) listingKey(userID string) string {
	return fmt.Sprintf("chat:rooms:%s", userID)
}

func (s *roomService) fetchCachedListing(ctx context.Context, userID string) []dto.RoomSummary {
	if s.redis == nil || s.cacheTTL <= 0 {
		return nil
	}

	raw, err := s.redis.Get(ctx, s.listingKey(userID)).Result()
	if err != nil {
		return nil
	}

	var summaries []dto.RoomSummary
	if err := json.Unmarshal([]byte(raw), &summaries); err != nil {
		s.logger.Warn().Err(err).Msg("failed to decode cached room listing")
		return nil
	}
	return summaries
}

func (s *roomService) cacheListing(ctx context.Context, userID string, summaries []dto.RoomSummary) {
	if s.redis == nil || s.cacheTTL <= 0 {
		return
	}

	payload, err := json.Marshal(summaries)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode room listing for cache")
		return
	}
	if err := s.redis.Set(ctx, s.listingKey(userID), payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache room listing")
	}
}

func (s *roomService) invalidateListing(ctx context.Context, userID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, s.listingKey(userID)).Err(); err != nil {
		s.logger.Debug().Err(err).Msg("failed to invalidate room listing cache")
	}
}
