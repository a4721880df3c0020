package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fiacomm/chat-api/internal/dto"
	"github.com/fiacomm/chat-api/internal/models"
	"github.com/fiacomm/chat-api/internal/render"
	"github.com/fiacomm/chat-api/internal/repository"
)

type chatFixture struct {
	db          *gorm.DB
	rooms       RoomService
	membership  MembershipService
	messages    MessageService
	presence    PresenceService
	reactions   ReactionService
	attachments AttachmentService
	storage     *stubStorage
}

func newChatFixture(t *testing.T, redisClient *redis.Client) *chatFixture {
	t.Helper()

	// One database per test keeps fixtures independent of execution order.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Room{},
		&models.RoomParticipant{},
		&models.ChatMessage{},
		&models.Attachment{},
		&models.MessageReaction{},
		&models.PresenceRecord{},
	))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.Nop()

	roomRepo := repository.NewRoomRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	reactionRepo := repository.NewReactionRepository(db)
	presenceRepo := repository.NewPresenceRepository(db)

	membership := NewMembershipService(roomRepo, participantRepo, logger)
	presence := NewPresenceService(presenceRepo, DefaultPresenceWindow, validate, logger)
	rooms := NewRoomService(roomRepo, participantRepo, messageRepo, membership, redisClient, 30*time.Second, validate, logger)
	messages := NewMessageService(messageRepo, reactionRepo, membership, presence, render.New("enhanced"), nil, nil, "", validate, logger)
	reactions := NewReactionService(reactionRepo, messageRepo, presence, validate, logger)
	storage := &stubStorage{refs: map[string][]byte{}}
	attachments := NewAttachmentService(storage, messageRepo, membership, presence, 10, nil, logger)

	return &chatFixture{
		db:          db,
		rooms:       rooms,
		membership:  membership,
		messages:    messages,
		presence:    presence,
		reactions:   reactions,
		attachments: attachments,
		storage:     storage,
	}
}

type stubStorage struct {
	refs     map[string][]byte
	failSave bool
	removed  []string
}

func (s *stubStorage) Save(_ context.Context, name string, reader io.Reader) (string, error) {
	if s.failSave {
		return "", fmt.Errorf("disk full")
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	s.refs[name] = content
	return name, nil
}

func (s *stubStorage) Remove(_ context.Context, ref string) error {
	delete(s.refs, ref)
	s.removed = append(s.removed, ref)
	return nil
}

func creatorPrincipal(id string) Principal {
	return Principal{
		ID:          id,
		Username:    "user-" + id,
		FullName:    "User " + id,
		RoleLabel:   "Member",
		Permissions: []string{CapabilityCreateRoom},
	}
}

func TestRoomServiceCreateRequiresCapability(t *testing.T) {
	fixture := newChatFixture(t, nil)

	unprivileged := Principal{ID: "p1", Username: "p1", FullName: "Plain User"}
	_, err := fixture.rooms.Create(context.Background(), unprivileged, dto.RoomCreateRequest{Name: "svc-denied"})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestRoomServiceCreateEnrollsOwnerAndRejectsDuplicates(t *testing.T) {
	fixture := newChatFixture(t, nil)
	creator := creatorPrincipal("c1")

	room, err := fixture.rooms.Create(context.Background(), creator, dto.RoomCreateRequest{
		Name:        "svc-launch",
		Description: "Launch coordination",
	})
	require.NoError(t, err)
	require.NotZero(t, room.ID)
	require.Equal(t, models.RoomVisibilityPublic, room.Visibility)

	member, err := fixture.membership.IsMember(context.Background(), creator.ID, room.ID)
	require.NoError(t, err)
	require.True(t, member)

	_, err = fixture.rooms.Create(context.Background(), creatorPrincipal("c2"), dto.RoomCreateRequest{Name: "svc-launch"})
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestRoomServiceListUsesCache(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	fixture := newChatFixture(t, redisClient)
	creator := creatorPrincipal("cache-user")

	_, err = fixture.rooms.Create(context.Background(), creator, dto.RoomCreateRequest{Name: "svc-cached"})
	require.NoError(t, err)

	first, err := fixture.rooms.List(context.Background(), creator)
	require.NoError(t, err)
	require.NotEmpty(t, first)
	require.True(t, mini.Exists("chat:rooms:cache-user"))

	// Bypass the repositories; a cached listing must come back verbatim.
	require.NoError(t, fixture.db.Create(&models.Room{Name: "svc-uncached", Visibility: models.RoomVisibilityPublic, IsActive: boolRef(true)}).Error)

	second, err := fixture.rooms.List(context.Background(), creator)
	require.NoError(t, err)
	require.Equal(t, len(first), len(second))
}

func TestRoomServiceListReportsLastMessageAt(t *testing.T) {
	fixture := newChatFixture(t, nil)
	creator := creatorPrincipal("list-activity")

	busy, err := fixture.rooms.Create(context.Background(), creator, dto.RoomCreateRequest{Name: "svc-busy"})
	require.NoError(t, err)
	_, err = fixture.rooms.Create(context.Background(), creator, dto.RoomCreateRequest{Name: "svc-quiet"})
	require.NoError(t, err)

	_, err = fixture.messages.Append(context.Background(), creator, dto.MessageSendRequest{RoomID: busy.ID, Body: "first"})
	require.NoError(t, err)
	_, err = fixture.messages.Append(context.Background(), creator, dto.MessageSendRequest{RoomID: busy.ID, Body: "second"})
	require.NoError(t, err)

	summaries, err := fixture.rooms.List(context.Background(), creator)
	require.NoError(t, err)

	byName := make(map[string]dto.RoomSummary, len(summaries))
	for _, summary := range summaries {
		byName[summary.Name] = summary
	}
	require.NotNil(t, byName["svc-busy"].LastMessageAt)
	require.WithinDuration(t, time.Now(), *byName["svc-busy"].LastMessageAt, time.Minute)
	require.Nil(t, byName["svc-quiet"].LastMessageAt)
}

func TestRoomServiceCreateRejectsNameSanitizedToNothing(t *testing.T) {
	fixture := newChatFixture(t, nil)

	_, err := fixture.rooms.Create(context.Background(), creatorPrincipal("empty-name"), dto.RoomCreateRequest{
		Name: "<script>alert(1)</script>",
	})
	require.ErrorIs(t, err, ErrEmptyName)
}

func TestRoomServiceEnsureDefaultsSeedsOnce(t *testing.T) {
	fixture := newChatFixture(t, nil)
	system := creatorPrincipal("system")

	require.NoError(t, fixture.rooms.EnsureDefaults(context.Background(), system))
	seeded, err := fixture.rooms.List(context.Background(), system)
	require.NoError(t, err)
	require.Len(t, seeded, 3)

	require.NoError(t, fixture.rooms.EnsureDefaults(context.Background(), system))
	again, err := fixture.rooms.List(context.Background(), system)
	require.NoError(t, err)
	require.Len(t, again, 3)
}

func TestMembershipServiceJoinCapacityAndRejoin(t *testing.T) {
	fixture := newChatFixture(t, nil)
	creator := creatorPrincipal("cap-owner")

	capacity := 2
	room, err := fixture.rooms.Create(context.Background(), creator, dto.RoomCreateRequest{
		Name:            "svc-capped",
		MaxParticipants: &capacity,
	})
	require.NoError(t, err)

	// Owner occupies one seat; one remains.
	require.NoError(t, fixture.membership.Join(context.Background(), creatorPrincipal("cap-second"), room.ID))
	require.ErrorIs(t, fixture.membership.Join(context.Background(), creatorPrincipal("cap-third"), room.ID), ErrRoomFull)

	// A full room still accepts a re-join from an existing member.
	require.NoError(t, fixture.membership.Join(context.Background(), creatorPrincipal("cap-second"), room.ID))

	require.ErrorIs(t, fixture.membership.Join(context.Background(), creator, 999999), ErrRoomNotFound)
}

func TestMessageServiceAppendGatesAndValidates(t *testing.T) {
	fixture := newChatFixture(t, nil)
	creator := creatorPrincipal("send-owner")

	room, err := fixture.rooms.Create(context.Background(), creator, dto.RoomCreateRequest{Name: "svc-send"})
	require.NoError(t, err)

	_, err = fixture.messages.Append(context.Background(), creatorPrincipal("send-outsider"), dto.MessageSendRequest{
		RoomID: room.ID,
		Body:   "hello from outside",
	})
	require.ErrorIs(t, err, ErrNotMember)

	_, err = fixture.messages.Append(context.Background(), creator, dto.MessageSendRequest{
		RoomID: room.ID,
		Body:   "<script>alert(1)</script>",
	})
	require.ErrorIs(t, err, ErrEmptyBody)

	id, err := fixture.messages.Append(context.Background(), creator, dto.MessageSendRequest{
		RoomID: room.ID,
		Body:   "first post",
	})
	require.NoError(t, err)
	require.NotZero(t, id)
}

func TestMessageServiceReplyValidation(t *testing.T) {
	fixture := newChatFixture(t, nil)
	creator := creatorPrincipal("reply-owner")

	roomA, err := fixture.rooms.Create(context.Background(), creator, dto.RoomCreateRequest{Name: "svc-reply-a"})
	require.NoError(t, err)
	roomB, err := fixture.rooms.Create(context.Background(), creator, dto.RoomCreateRequest{Name: "svc-reply-b"})
	require.NoError(t, err)

	original, err := fixture.messages.Append(context.Background(), creator, dto.MessageSendRequest{RoomID: roomA.ID, Body: "original"})
	require.NoError(t, err)

	missing := original + 10000
	_, err = fixture.messages.Append(context.Background(), creator, dto.MessageSendRequest{RoomID: roomA.ID, Body: "reply", ReplyTo: &missing})
	require.ErrorIs(t, err, ErrInvalidReply)

	_, err = fixture.messages.Append(context.Background(), creator, dto.MessageSendRequest{RoomID: roomB.ID, Body: "cross-room reply", ReplyTo: &original})
	require.ErrorIs(t, err, ErrInvalidReply)

	replyID, err := fixture.messages.Append(context.Background(), creator, dto.MessageSendRequest{RoomID: roomA.ID, Body: "valid reply", ReplyTo: &original})
	require.NoError(t, err)
	require.Greater(t, replyID, original)
}

func TestMessageServiceFetchSinceAnnotates(t *testing.T) {
	fixture := newChatFixture(t, nil)
	creator := creatorPrincipal("fetch-owner")

	room, err := fixture.rooms.Create(context.Background(), creator, dto.RoomCreateRequest{Name: "svc-fetch"})
	require.NoError(t, err)

	first, err := fixture.messages.Append(context.Background(), creator, dto.MessageSendRequest{
		RoomID: room.ID,
		Body:   "check https://example.com for details",
	})
	require.NoError(t, err)

	second, err := fixture.messages.Append(context.Background(), creator, dto.MessageSendRequest{RoomID: room.ID, Body: "a reply", ReplyTo: &first})
	require.NoError(t, err)

	_, err = fixture.reactions.Toggle(context.Background(), creatorPrincipal("fetch-friend"), dto.ReactionToggleRequest{MessageID: first, Emoji: "🔥"})
	require.NoError(t, err)

	views, err := fixture.messages.FetchSince(context.Background(), creator, dto.MessageFetchQuery{RoomID: room.ID})
	require.NoError(t, err)
	require.Len(t, views, 2)

	require.Equal(t, first, views[0].ID)
	require.Contains(t, views[0].RenderedBody, `<a href="https://example.com"`)
	require.Len(t, views[0].Reactions, 1)
	require.Equal(t, "🔥", views[0].Reactions[0].Emoji)
	require.Equal(t, int64(1), views[0].Reactions[0].Count)

	require.Equal(t, second, views[1].ID)
	require.NotNil(t, views[1].Reply)
	require.Equal(t, first, views[1].Reply.MessageID)
	require.Equal(t, creator.FullName, views[1].Reply.Author)

	// Cursor advance: only the second message is newer than the first id.
	newer, err := fixture.messages.FetchSince(context.Background(), creator, dto.MessageFetchQuery{RoomID: room.ID, LastID: first})
	require.NoError(t, err)
	require.Len(t, newer, 1)
	require.Equal(t, second, newer[0].ID)

	// An unchanged cursor keeps returning the same suffix, never duplicates
	// within one poll.
	repeat, err := fixture.messages.FetchSince(context.Background(), creator, dto.MessageFetchQuery{RoomID: room.ID, LastID: first})
	require.NoError(t, err)
	require.Equal(t, newer, repeat)
}

func TestMessageServiceReplyPreviewTruncates(t *testing.T) {
	fixture := newChatFixture(t, nil)
	creator := creatorPrincipal("trunc-owner")

	room, err := fixture.rooms.Create(context.Background(), creator, dto.RoomCreateRequest{Name: "svc-trunc"})
	require.NoError(t, err)

	long := ""
	for i := 0; i < 30; i++ {
		long += "abcdefghij"
	}
	original, err := fixture.messages.Append(context.Background(), creator, dto.MessageSendRequest{RoomID: room.ID, Body: long})
	require.NoError(t, err)
	_, err = fixture.messages.Append(context.Background(), creator, dto.MessageSendRequest{RoomID: room.ID, Body: "short reply", ReplyTo: &original})
	require.NoError(t, err)

	views, err := fixture.messages.FetchSince(context.Background(), creator, dto.MessageFetchQuery{RoomID: room.ID, LastID: original})
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.NotNil(t, views[0].Reply)
	require.Len(t, []rune(views[0].Reply.Body), 81, "80 runes plus the ellipsis")
}

func TestReactionServiceToggleFlips(t *testing.T) {
	fixture := newChatFixture(t, nil)
	creator := creatorPrincipal("react-owner")

	room, err := fixture.rooms.Create(context.Background(), creator, dto.RoomCreateRequest{Name: "svc-react"})
	require.NoError(t, err)
	messageID, err := fixture.messages.Append(context.Background(), creator, dto.MessageSendRequest{RoomID: room.ID, Body: "react to me"})
	require.NoError(t, err)

	added, err := fixture.reactions.Toggle(context.Background(), creator, dto.ReactionToggleRequest{MessageID: messageID, Emoji: "👍"})
	require.NoError(t, err)
	require.Equal(t, dto.ReactionAdded, added.Action)

	removed, err := fixture.reactions.Toggle(context.Background(), creator, dto.ReactionToggleRequest{MessageID: messageID, Emoji: "👍"})
	require.NoError(t, err)
	require.Equal(t, dto.ReactionRemoved, removed.Action)

	_, err = fixture.reactions.Toggle(context.Background(), creator, dto.ReactionToggleRequest{MessageID: 424242, Emoji: "👍"})
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestPresenceServiceHeartbeatAndWindow(t *testing.T) {
	fixture := newChatFixture(t, nil)

	active := creatorPrincipal("presence-active")
	require.NoError(t, fixture.presence.Heartbeat(context.Background(), active, models.PresenceStatusBusy))

	require.Error(t, fixture.presence.Heartbeat(context.Background(), creatorPrincipal("presence-bad"), "sleeping"))

	// Defaults to online when the caller does not declare a status.
	idle := creatorPrincipal("presence-idle")
	require.NoError(t, fixture.presence.Heartbeat(context.Background(), idle, ""))

	stale := models.PresenceRecord{
		UserID:         "presence-stale",
		Username:       "presence-stale",
		Status:         models.PresenceStatusOnline,
		LastActivityAt: time.Now().Add(-DefaultPresenceWindow - time.Minute),
	}
	require.NoError(t, fixture.db.Create(&stale).Error)

	online, err := fixture.presence.ListOnline(context.Background())
	require.NoError(t, err)

	ids := make([]string, 0, len(online))
	for _, record := range online {
		ids = append(ids, record.UserID)
	}
	require.Contains(t, ids, "presence-active")
	require.Contains(t, ids, "presence-idle")
	require.NotContains(t, ids, "presence-stale")

	for _, record := range online {
		if record.UserID == "presence-active" {
			require.Equal(t, models.PresenceStatusBusy, record.Status)
		}
	}
}

func TestPresenceServicePingKeepsDeclaredStatus(t *testing.T) {
	fixture := newChatFixture(t, nil)
	creator := creatorPrincipal("ping-busy")

	room, err := fixture.rooms.Create(context.Background(), creator, dto.RoomCreateRequest{Name: "svc-ping"})
	require.NoError(t, err)

	require.NoError(t, fixture.presence.Heartbeat(context.Background(), creator, models.PresenceStatusBusy))

	// Sending a message refreshes activity through the piggybacked ping
	// but must not flip the declared status back to online.
	_, err = fixture.messages.Append(context.Background(), creator, dto.MessageSendRequest{RoomID: room.ID, Body: "still busy"})
	require.NoError(t, err)

	online, err := fixture.presence.ListOnline(context.Background())
	require.NoError(t, err)
	var found bool
	for _, record := range online {
		if record.UserID == creator.ID {
			found = true
			require.Equal(t, models.PresenceStatusBusy, record.Status)
		}
	}
	require.True(t, found)

	// A principal with no record yet gets a fresh online one from a ping.
	newcomer := creatorPrincipal("ping-fresh")
	fixture.presence.Ping(context.Background(), newcomer)
	online, err = fixture.presence.ListOnline(context.Background())
	require.NoError(t, err)
	statuses := make(map[string]string, len(online))
	for _, record := range online {
		statuses[record.UserID] = record.Status
	}
	require.Equal(t, models.PresenceStatusOnline, statuses[newcomer.ID])
}

func multipartFile(t *testing.T, field, filename, contentType string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(&buf, writer.Boundary())
	form, err := reader.ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	files := form.File[field]
	require.Len(t, files, 1)
	return files[0]
}

func TestAttachmentServiceIngestHappyPath(t *testing.T) {
	fixture := newChatFixture(t, nil)
	creator := creatorPrincipal("upload-owner")

	room, err := fixture.rooms.Create(context.Background(), creator, dto.RoomCreateRequest{Name: "svc-upload"})
	require.NoError(t, err)

	file := multipartFile(t, "file", "notes.txt", "text/plain", []byte("meeting notes"))
	result, err := fixture.attachments.Ingest(context.Background(), creator, room.ID, file)
	require.NoError(t, err)
	require.NotZero(t, result.MessageID)
	require.Equal(t, "notes.txt", result.FileName)
	require.Equal(t, int64(len("meeting notes")), result.FileSize)
	require.Equal(t, models.MessageKindFile, result.Kind)
	require.Contains(t, fixture.storage.refs, result.StoredRef)

	views, err := fixture.messages.FetchSince(context.Background(), creator, dto.MessageFetchQuery{RoomID: room.ID})
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, "Shared a file: notes.txt", views[0].Body)
	require.NotNil(t, views[0].Attachment)
}

func TestAttachmentServiceClassifiesImages(t *testing.T) {
	fixture := newChatFixture(t, nil)
	creator := creatorPrincipal("image-owner")

	room, err := fixture.rooms.Create(context.Background(), creator, dto.RoomCreateRequest{Name: "svc-images"})
	require.NoError(t, err)

	file := multipartFile(t, "file", "shot.png", "image/png", []byte{0x89, 0x50, 0x4E, 0x47})
	result, err := fixture.attachments.Ingest(context.Background(), creator, room.ID, file)
	require.NoError(t, err)
	require.Equal(t, models.MessageKindImage, result.Kind)

	views, err := fixture.messages.FetchSince(context.Background(), creator, dto.MessageFetchQuery{RoomID: room.ID})
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, result.StoredRef, views[0].PreviewURL, "enhanced rendering exposes the stored image")
}

func TestAttachmentServiceRejections(t *testing.T) {
	fixture := newChatFixture(t, nil)
	creator := creatorPrincipal("reject-owner")

	room, err := fixture.rooms.Create(context.Background(), creator, dto.RoomCreateRequest{Name: "svc-reject"})
	require.NoError(t, err)

	outsiderFile := multipartFile(t, "file", "notes.txt", "text/plain", []byte("hi"))
	_, err = fixture.attachments.Ingest(context.Background(), creatorPrincipal("reject-outsider"), room.ID, outsiderFile)
	require.ErrorIs(t, err, ErrNotMember)

	badType := multipartFile(t, "file", "payload.exe", "application/octet-stream", []byte("MZ"))
	_, err = fixture.attachments.Ingest(context.Background(), creator, room.ID, badType)
	require.ErrorIs(t, err, ErrFileTypeNotAllowed)

	huge := multipartFile(t, "file", "big.txt", "text/plain", bytes.Repeat([]byte("x"), 1024))
	huge.Size = 11 * 1024 * 1024
	_, err = fixture.attachments.Ingest(context.Background(), creator, room.ID, huge)
	require.ErrorIs(t, err, ErrFileTooLarge)
}

func TestAttachmentServiceRemovesBytesWhenRowWriteFails(t *testing.T) {
	fixture := newChatFixture(t, nil)
	creator := creatorPrincipal("atomic-owner")

	room, err := fixture.rooms.Create(context.Background(), creator, dto.RoomCreateRequest{Name: "svc-atomic"})
	require.NoError(t, err)

	failing := &failingMessageRepo{}
	attachments := NewAttachmentService(fixture.storage, failing, fixture.membership, fixture.presence, 10, nil, zerolog.Nop())

	file := multipartFile(t, "file", "doomed.txt", "text/plain", []byte("vanishes"))
	_, err = attachments.Ingest(context.Background(), creator, room.ID, file)
	require.ErrorIs(t, err, ErrStorageFailure)
	require.NotEmpty(t, fixture.storage.removed, "stored bytes must be removed when the row write fails")
	require.Empty(t, fixture.storage.refs)
}

type failingMessageRepo struct {
	repository.MessageRepository
}

func (f *failingMessageRepo) CreateWithAttachment(context.Context, *models.ChatMessage, *models.Attachment) error {
	return fmt.Errorf("constraint violated")
}
