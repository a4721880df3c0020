package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/fiacomm/chat-api/internal/dto"
	"github.com/fiacomm/chat-api/internal/service"
	"github.com/fiacomm/chat-api/internal/utils"
)

// Chat actions accepted by the dispatcher.
const (
	ActionCreateRoom     = "create_room"
	ActionJoinRoom       = "join_room"
	ActionListRooms      = "list_rooms"
	ActionSendMessage    = "send_message"
	ActionGetMessages    = "get_messages"
	ActionGetOnlineUsers = "get_online_users"
	ActionReactToMessage = "react_to_message"
	ActionUpdateStatus   = "update_status"
)

// ChatHandler exposes the chat engine through a single action-discriminated
// endpoint. Every request is a form post carrying an "action" field plus the
// parameters that action needs.
type ChatHandler struct {
	rooms      service.RoomService
	membership service.MembershipService
	messages   service.MessageService
	presence   service.PresenceService
	reactions  service.ReactionService
	logger     zerolog.Logger
}

// NewChatHandler constructs a handler instance.
func NewChatHandler(
	rooms service.RoomService,
	membership service.MembershipService,
	messages service.MessageService,
	presence service.PresenceService,
	reactions service.ReactionService,
	logger zerolog.Logger,
) *ChatHandler {
	return &ChatHandler{
		rooms:      rooms,
		membership: membership,
		messages:   messages,
		presence:   presence,
		reactions:  reactions,
		logger:     logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register binds the chat dispatch route.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Post("/", h.dispatch)
}

func (h *ChatHandler) dispatch(c *fiber.Ctx) error {
	action := strings.TrimSpace(c.FormValue("action"))
	if action == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "action is required")
	}

	principal := principalFromContext(c)
	if principal.ID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	switch action {
	case ActionCreateRoom:
		return h.createRoom(c, principal)
	case ActionJoinRoom:
		return h.joinRoom(c, principal)
	case ActionListRooms:
		return h.listRooms(c, principal)
	case ActionSendMessage:
		return h.sendMessage(c, principal)
	case ActionGetMessages:
		return h.getMessages(c, principal)
	case ActionGetOnlineUsers:
		return h.getOnlineUsers(c, principal)
	case ActionReactToMessage:
		return h.reactToMessage(c, principal)
	case ActionUpdateStatus:
		return h.updateStatus(c, principal)
	default:
		return utils.SendError(c, fiber.StatusBadRequest, "unknown action")
	}
}

func (h *ChatHandler) createRoom(c *fiber.Ctx, principal service.Principal) error {
	var payload dto.RoomCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	room, err := h.rooms.Create(requestContext(c), principal, payload)
	if err != nil {
		return h.mapServiceError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "room created", room)
}

func (h *ChatHandler) joinRoom(c *fiber.Ctx, principal service.Principal) error {
	roomID, err := parseFormUint(c, "room_id")
	if err != nil || roomID == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid room_id")
	}

	if err := h.membership.Join(requestContext(c), principal, roomID); err != nil {
		return h.mapServiceError(c, err)
	}

	return utils.SendSuccess(c, "joined room", fiber.Map{"room_id": roomID})
}

func (h *ChatHandler) listRooms(c *fiber.Ctx, principal service.Principal) error {
	rooms, err := h.rooms.List(requestContext(c), principal)
	if err != nil {
		return h.mapServiceError(c, err)
	}

	return utils.SendSuccess(c, "rooms", rooms)
}

func (h *ChatHandler) sendMessage(c *fiber.Ctx, principal service.Principal) error {
	var payload dto.MessageSendRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	messageID, err := h.messages.Append(requestContext(c), principal, payload)
	if err != nil {
		return h.mapServiceError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", fiber.Map{"message_id": messageID})
}

func (h *ChatHandler) getMessages(c *fiber.Ctx, principal service.Principal) error {
	roomID, err := parseFormUint(c, "room_id")
	if err != nil || roomID == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid room_id")
	}
	lastID, err := parseFormUint(c, "last_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid last_id")
	}

	views, err := h.messages.FetchSince(requestContext(c), principal, dto.MessageFetchQuery{
		RoomID: roomID,
		LastID: lastID,
	})
	if err != nil {
		return h.mapServiceError(c, err)
	}

	return utils.SendSuccess(c, "messages", views)
}

func (h *ChatHandler) getOnlineUsers(c *fiber.Ctx, _ service.Principal) error {
	users, err := h.presence.ListOnline(requestContext(c))
	if err != nil {
		return h.mapServiceError(c, err)
	}

	return utils.SendSuccess(c, "online users", users)
}

func (h *ChatHandler) reactToMessage(c *fiber.Ctx, principal service.Principal) error {
	var payload dto.ReactionToggleRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.reactions.Toggle(requestContext(c), principal, payload)
	if err != nil {
		return h.mapServiceError(c, err)
	}

	return utils.SendSuccess(c, "reaction "+result.Action, result)
}

func (h *ChatHandler) updateStatus(c *fiber.Ctx, principal service.Principal) error {
	status := strings.TrimSpace(c.FormValue("status"))

	if err := h.presence.Heartbeat(requestContext(c), principal, status); err != nil {
		return h.mapServiceError(c, err)
	}

	return utils.SendSuccess(c, "status updated", fiber.Map{"status": status})
}

func (h *ChatHandler) mapServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrRoomNotFound), errors.Is(err, service.ErrMessageNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrDuplicateName):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrRoomFull):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNotMember):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrEmptyBody), errors.Is(err, service.ErrInvalidReply), errors.Is(err, service.ErrEmptyName):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case isValidationError(err):
		var validationErrors validator.ValidationErrors
		errors.As(err, &validationErrors)
		return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "validation failed", validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("chat action failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
