package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/fiacomm/chat-api/internal/dto"
	"github.com/fiacomm/chat-api/internal/models"
	"github.com/fiacomm/chat-api/internal/observability"
	"github.com/fiacomm/chat-api/internal/render"
	"github.com/fiacomm/chat-api/internal/repository"
)

const replyPreviewRunes = 80

// MessageService appends to and reads from the per-room ordered log.
type MessageService interface {
	Append(ctx context.Context, principal Principal, payload dto.MessageSendRequest) (uint, error)
	FetchSince(ctx context.Context, principal Principal, query dto.MessageFetchQuery) ([]dto.MessageView, error)
}

type messageService struct {
	messages    repository.MessageRepository
	reactions   repository.ReactionRepository
	membership  MembershipService
	presence    PresenceService
	renderer    render.MessageRenderer
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	nodeID      string
}

// messageEvent is the payload published for cross-node consumers whenever
// a message is appended.
type messageEvent struct {
	Source  string          `json:"source"`
	Message dto.MessageView `json:"message"`
	SentAt  time.Time       `json:"sent_at"`
}

// NewMessageService constructs a message service. Redis and NATS are both
// optional; event publication is best-effort and never blocks an append.
func NewMessageService(messages repository.MessageRepository, reactions repository.ReactionRepository, membership MembershipService, presence PresenceService, renderer render.MessageRenderer, redisClient *redis.Client, natsConn *nats.Conn, channelBase string, validate *validator.Validate, logger zerolog.Logger) MessageService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":messages"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".messages"
	}

	return &messageService{
		messages:    messages,
		reactions:   reactions,
		membership:  membership,
		presence:    presence,
		renderer:    renderer,
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		validator:   validate,
		sanitizer:   sanitizer,
		logger:      logger.With().Str("component", "message_service").Logger(),
		tracer:      otel.Tracer("github.com/fiacomm/chat-api/internal/service/message"),
		nodeID:      uuid.NewString(),
	}
}

// Append assigns the next id in the room's total order. Ordering comes
// from the storage sequence, not wall-clock time, so concurrent senders
// cannot reorder each other through clock skew.
func (s *messageService) Append(ctx context.Context, principal Principal, payload dto.MessageSendRequest) (uint, error) {
	if err := s.validator.Struct(payload); err != nil {
		return 0, err
	}

	body := strings.TrimSpace(s.sanitizer.Sanitize(payload.Body))
	if body == "" {
		return 0, ErrEmptyBody
	}

	member, err := s.membership.IsMember(ctx, principal.ID, payload.RoomID)
	if err != nil {
		return 0, err
	}
	if !member {
		return 0, ErrNotMember
	}

	spanCtx, span := s.tracer.Start(ctx, "message.append", trace.WithAttributes(
		attribute.Int64("chat.room_id", int64(payload.RoomID)),
		attribute.String("chat.sender_id", principal.ID),
	))
	defer span.End()

	if payload.ReplyTo != nil {
		target, err := s.messages.Get(spanCtx, *payload.ReplyTo)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, ErrInvalidReply
			}
			span.RecordError(err)
			return 0, err
		}
		if target.RoomID != payload.RoomID {
			return 0, ErrInvalidReply
		}
	}

	message := models.ChatMessage{
		RoomID:    payload.RoomID,
		UserID:    principal.ID,
		Username:  principal.Username,
		FullName:  principal.FullName,
		Avatar:    principal.Avatar,
		RoleLabel: principal.RoleLabel,
		RoleColor: principal.RoleColor,
		Body:      body,
		Kind:      models.MessageKindText,
		ReplyToID: payload.ReplyTo,
	}

	if err := s.messages.Create(spanCtx, &message); err != nil {
		span.RecordError(err)
		return 0, err
	}

	s.membership.TouchLastSeen(spanCtx, payload.RoomID, principal.ID)
	s.presence.Ping(spanCtx, principal)
	s.publish(spanCtx, dto.NewMessageView(message))

	observability.MessagesSent().WithLabelValues(message.Kind).Inc()
	return message.ID, nil
}

// FetchSince is the sole read path for new content: every non-deleted
// message with id > cursor, ascending, annotated with reply previews and
// aggregated reactions. A client that only moves its cursor forward sees
// each message exactly once, however often it retries.
func (s *messageService) FetchSince(ctx context.Context, principal Principal, query dto.MessageFetchQuery) ([]dto.MessageView, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	messages, err := s.messages.ListSince(ctx, query.RoomID, query.LastID)
	if err != nil {
		return nil, err
	}

	observability.PollsTotal().Inc()
	if len(messages) == 0 {
		return []dto.MessageView{}, nil
	}

	ids := make([]uint, 0, len(messages))
	replyIDs := make([]uint, 0)
	for _, message := range messages {
		ids = append(ids, message.ID)
		if message.ReplyToID != nil {
			replyIDs = append(replyIDs, *message.ReplyToID)
		}
	}

	aggregates, err := s.reactions.AggregateByMessages(ctx, ids)
	if err != nil {
		return nil, err
	}
	reactionsByMessage := make(map[uint][]dto.ReactionCount)
	for _, aggregate := range aggregates {
		reactionsByMessage[aggregate.MessageID] = append(reactionsByMessage[aggregate.MessageID], dto.ReactionCount{
			Emoji: aggregate.Emoji,
			Count: aggregate.Count,
		})
	}

	replyTargets, err := s.messages.FindByIDs(ctx, replyIDs)
	if err != nil {
		return nil, err
	}

	views := make([]dto.MessageView, 0, len(messages))
	for _, message := range messages {
		view := dto.NewMessageView(message)
		if counts, ok := reactionsByMessage[message.ID]; ok {
			view.Reactions = counts
		}
		if message.ReplyToID != nil {
			if target, ok := replyTargets[*message.ReplyToID]; ok {
				view.Reply = &dto.ReplyPreview{
					MessageID: target.ID,
					Author:    target.FullName,
					Body:      truncateRunes(target.Body, replyPreviewRunes),
				}
			}
		}
		s.renderer.Render(&view)
		views = append(views, view)
	}

	observability.PollMessagesReturned().Add(float64(len(views)))
	return views, nil
}

// publish fans the new message out to other nodes. Failures are logged and
// swallowed; the append already succeeded.
func (s *messageService) publish(ctx context.Context, view dto.MessageView) {
	if (s.redis == nil || s.redisStream == "") && (s.nats == nil || s.natsSubject == "") {
		return
	}

	payload, err := json.Marshal(messageEvent{
		Source:  s.nodeID,
		Message: view,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode message event")
		return
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish message event to redis")
		}
	}
	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish message event to nats")
		}
	}
}

func truncateRunes(input string, limit int) string {
	runes := []rune(input)
	if len(runes) <= limit {
		return input
	}
	return string(runes[:limit]) + "…"
}
