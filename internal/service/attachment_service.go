package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fiacomm/chat-api/internal/dto"
	"github.com/fiacomm/chat-api/internal/models"
	"github.com/fiacomm/chat-api/internal/observability"
	"github.com/fiacomm/chat-api/internal/repository"
)

// FileStorage abstracts the durable attachment byte store.
type FileStorage interface {
	Save(ctx context.Context, name string, reader io.Reader) (string, error)
	Remove(ctx context.Context, ref string) error
}

// DefaultAllowedExtensions is the attachment extension allow-list used when
// configuration does not override it.
var DefaultAllowedExtensions = []string{
	"jpg", "jpeg", "png", "gif", "webp",
	"pdf", "txt", "doc", "docx", "xls", "xlsx", "zip",
}

// AttachmentService validates uploads and turns them into file/image
// messages.
type AttachmentService interface {
	Ingest(ctx context.Context, principal Principal, roomID uint, file *multipart.FileHeader) (dto.UploadResponse, error)
}

type attachmentService struct {
	storage    FileStorage
	messages   repository.MessageRepository
	membership MembershipService
	presence   PresenceService
	allowed    map[string]struct{}
	maxSize    int64
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// NewAttachmentService constructs an attachment ingestion service.
func NewAttachmentService(storage FileStorage, messages repository.MessageRepository, membership MembershipService, presence PresenceService, maxSizeMB int, allowedExtensions []string, logger zerolog.Logger) AttachmentService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if len(allowedExtensions) == 0 {
		allowedExtensions = DefaultAllowedExtensions
	}

	allowed := make(map[string]struct{}, len(allowedExtensions))
	for _, extension := range allowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(extension, "."))] = struct{}{}
	}

	return &attachmentService{
		storage:    storage,
		messages:   messages,
		membership: membership,
		presence:   presence,
		allowed:    allowed,
		maxSize:    int64(maxSizeMB) * 1024 * 1024,
		logger:     logger.With().Str("component", "attachment_service").Logger(),
		tracer:     otel.Tracer("github.com/fiacomm/chat-api/internal/service/attachment"),
	}
}

// Ingest stores the bytes first and creates the message/attachment pair
// second. When the row write fails the stored bytes are removed again, so
// the outcome is both-or-neither.
func (s *attachmentService) Ingest(ctx context.Context, principal Principal, roomID uint, file *multipart.FileHeader) (dto.UploadResponse, error) {
	ctx, span := s.tracer.Start(ctx, "attachment.ingest", trace.WithAttributes(
		attribute.Int64("upload.max_bytes", s.maxSize),
		attribute.Int64("chat.room_id", int64(roomID)),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	if file == nil {
		err := errors.New("file is required")
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.UploadResponse{}, err
	}

	member, err := s.membership.IsMember(ctx, principal.ID, roomID)
	if err != nil {
		span.RecordError(err)
		return dto.UploadResponse{}, err
	}
	if !member {
		return dto.UploadResponse{}, ErrNotMember
	}

	if file.Size > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		span.SetStatus(codes.Error, "payload too large")
		return dto.UploadResponse{}, ErrFileTooLarge
	}

	extension := strings.ToLower(strings.TrimPrefix(filepath.Ext(file.Filename), "."))
	if _, ok := s.allowed[extension]; !ok {
		observability.UploadRejected().WithLabelValues("type").Inc()
		span.SetStatus(codes.Error, "type not allowed")
		return dto.UploadResponse{}, ErrFileTypeNotAllowed
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		return dto.UploadResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		return dto.UploadResponse{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		span.SetStatus(codes.Error, "payload too large")
		return dto.UploadResponse{}, ErrFileTooLarge
	}

	declaredType := file.Header.Get("Content-Type")
	kind := classifyKind(declaredType, buf.Bytes())
	span.SetAttributes(attribute.String("upload.kind", kind))

	storedName := uuid.NewString()
	if extension != "" {
		storedName += "." + extension
	}

	ref, err := s.storage.Save(ctx, storedName, bytes.NewReader(buf.Bytes()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return dto.UploadResponse{}, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	message := models.ChatMessage{
		RoomID:    roomID,
		UserID:    principal.ID,
		Username:  principal.Username,
		FullName:  principal.FullName,
		Avatar:    principal.Avatar,
		RoleLabel: principal.RoleLabel,
		RoleColor: principal.RoleColor,
		Body:      "Shared a file: " + file.Filename,
		Kind:      kind,
	}
	attachment := models.Attachment{
		FileName:    file.Filename,
		StoredRef:   ref,
		FileSize:    int64(buf.Len()),
		ContentType: declaredType,
	}

	if err := s.messages.CreateWithAttachment(ctx, &message, &attachment); err != nil {
		span.RecordError(err)
		if removeErr := s.storage.Remove(ctx, ref); removeErr != nil {
			s.logger.Error().Err(removeErr).Str("stored_ref", ref).Msg("failed to remove orphaned upload")
		}
		return dto.UploadResponse{}, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	s.membership.TouchLastSeen(ctx, roomID, principal.ID)
	s.presence.Ping(ctx, principal)
	observability.MessagesSent().WithLabelValues(kind).Inc()

	return dto.UploadResponse{
		MessageID: message.ID,
		FileName:  file.Filename,
		FileSize:  attachment.FileSize,
		Kind:      kind,
		StoredRef: ref,
	}, nil
}

// classifyKind maps the declared media type onto the message kind, falling
// back to content sniffing when the client declared nothing useful.
func classifyKind(declaredType string, content []byte) string {
	if strings.HasPrefix(declaredType, "image/") {
		return models.MessageKindImage
	}
	if declaredType == "" || declaredType == "application/octet-stream" {
		if strings.HasPrefix(mimetype.Detect(content).String(), "image/") {
			return models.MessageKindImage
		}
	}
	return models.MessageKindFile
}
