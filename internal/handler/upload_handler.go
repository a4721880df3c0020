package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/fiacomm/chat-api/internal/service"
	"github.com/fiacomm/chat-api/internal/utils"
)

// UploadHandler accepts multipart file uploads and turns them into
// attachment-carrying chat messages.
type UploadHandler struct {
	attachments service.AttachmentService
	logger      zerolog.Logger
}

// NewUploadHandler constructs a handler instance.
func NewUploadHandler(attachments service.AttachmentService, logger zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		attachments: attachments,
		logger:      logger.With().Str("component", "upload_handler").Logger(),
	}
}

// Register binds the upload route.
func (h *UploadHandler) Register(router fiber.Router) {
	router.Post("/upload", h.upload)
}

func (h *UploadHandler) upload(c *fiber.Ctx) error {
	principal := principalFromContext(c)
	if principal.ID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	roomID, err := parseFormUint(c, "room_id")
	if err != nil || roomID == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid room_id")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	result, err := h.attachments.Ingest(requestContext(c), principal, roomID, file)
	if err != nil {
		return h.mapUploadError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "file uploaded", result)
}

func (h *UploadHandler) mapUploadError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotMember):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrRoomNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrFileTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrFileTypeNotAllowed):
		return utils.SendError(c, fiber.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, service.ErrStorageFailure):
		requestLogger(h.logger, c).Error().Err(err).Msg("attachment ingestion failed")
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("upload failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
