package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fiacomm/chat-api/internal/dto"
	"github.com/fiacomm/chat-api/internal/models"
	"github.com/fiacomm/chat-api/internal/observability"
	"github.com/fiacomm/chat-api/internal/repository"
)

// ReactionService flips emoji reaction set membership per message and
// principal.
type ReactionService interface {
	Toggle(ctx context.Context, principal Principal, payload dto.ReactionToggleRequest) (dto.ReactionToggleResponse, error)
}

type reactionService struct {
	reactions repository.ReactionRepository
	messages  repository.MessageRepository
	presence  PresenceService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewReactionService constructs a reaction service.
func NewReactionService(reactions repository.ReactionRepository, messages repository.MessageRepository, presence PresenceService, validate *validator.Validate, logger zerolog.Logger) ReactionService {
	return &reactionService{
		reactions: reactions,
		messages:  messages,
		presence:  presence,
		validator: validate,
		logger:    logger.With().Str("component", "reaction_service").Logger(),
	}
}

// Toggle is a check-then-flip: remove when present, insert when absent.
// Two concurrent identical toggles can both observe "absent"; the unique
// index turns the loser's insert into a duplicate-key error, which is
// reported as added rather than surfaced.
func (s *reactionService) Toggle(ctx context.Context, principal Principal, payload dto.ReactionToggleRequest) (dto.ReactionToggleResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ReactionToggleResponse{}, err
	}

	if _, err := s.messages.Get(ctx, payload.MessageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ReactionToggleResponse{}, ErrMessageNotFound
		}
		return dto.ReactionToggleResponse{}, err
	}

	exists, err := s.reactions.Exists(ctx, payload.MessageID, principal.ID, payload.Emoji)
	if err != nil {
		return dto.ReactionToggleResponse{}, err
	}

	action := dto.ReactionAdded
	if exists {
		if err := s.reactions.Delete(ctx, payload.MessageID, principal.ID, payload.Emoji); err != nil {
			return dto.ReactionToggleResponse{}, err
		}
		action = dto.ReactionRemoved
	} else {
		reaction := models.MessageReaction{
			MessageID: payload.MessageID,
			UserID:    principal.ID,
			Emoji:     payload.Emoji,
		}
		if err := s.reactions.Create(ctx, &reaction); err != nil {
			if !errors.Is(err, gorm.ErrDuplicatedKey) {
				return dto.ReactionToggleResponse{}, err
			}
			s.logger.Debug().Uint("message_id", payload.MessageID).Str("user_id", principal.ID).Msg("concurrent reaction insert collapsed")
		}
	}

	s.presence.Ping(ctx, principal)
	observability.ReactionsToggled().WithLabelValues(action).Inc()

	return dto.ReactionToggleResponse{Action: action}, nil
}
