package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fiacomm/chat-api/internal/config"
	"github.com/fiacomm/chat-api/internal/database"
	"github.com/fiacomm/chat-api/internal/handler"
	"github.com/fiacomm/chat-api/internal/middleware"
	"github.com/fiacomm/chat-api/internal/models"
	"github.com/fiacomm/chat-api/internal/observability"
	"github.com/fiacomm/chat-api/internal/render"
	"github.com/fiacomm/chat-api/internal/repository"
	"github.com/fiacomm/chat-api/internal/router"
	"github.com/fiacomm/chat-api/internal/service"
	"github.com/fiacomm/chat-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Room{},
		&models.RoomParticipant{},
		&models.ChatMessage{},
		&models.Attachment{},
		&models.MessageReaction{},
		&models.PresenceRecord{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, continuing without cache")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, continuing without event fan-out")
			natsConn = nil
		} else {
			defer natsConn.Close()
		}
	}

	fileStore, err := buildFileStorage(cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialise file storage: %v", err)
	}

	observability.RegisterMetrics()

	validate := validator.New(validator.WithRequiredStructEnabled())
	renderer := render.New(cfg.RenderMode)

	roomRepo := repository.NewRoomRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	reactionRepo := repository.NewReactionRepository(db)
	presenceRepo := repository.NewPresenceRepository(db)

	membershipService := service.NewMembershipService(roomRepo, participantRepo, logger)
	presenceService := service.NewPresenceService(presenceRepo, cfg.PresenceWindow, validate, logger)
	roomService := service.NewRoomService(roomRepo, participantRepo, messageRepo, membershipService, redisClient, cfg.RoomCacheTTL, validate, logger)
	messageService := service.NewMessageService(messageRepo, reactionRepo, membershipService, presenceService, renderer, redisClient, natsConn, cfg.ChannelBase, validate, logger)
	reactionService := service.NewReactionService(reactionRepo, messageRepo, presenceService, validate, logger)
	attachmentService := service.NewAttachmentService(fileStore, messageRepo, membershipService, presenceService, cfg.MaxUploadMB, cfg.AllowedExtensions, logger)

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 10*time.Second)
	if err := roomService.EnsureDefaults(seedCtx, service.Principal{
		ID:       "system",
		Username: "system",
		FullName: "System",
	}); err != nil {
		logger.Warn().Err(err).Msg("default room seeding failed")
	}
	cancelSeed()

	chatHandler := handler.NewChatHandler(roomService, membershipService, messageService, presenceService, reactionService, logger)
	uploadHandler := handler.NewUploadHandler(attachmentService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.MaxUploadMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
	})
	router.Register(app, cfg, router.Dependencies{
		ChatHandler:   chatHandler,
		UploadHandler: uploadHandler,
		JWTMiddleware: middleware.JWTProtected(cfg.JWTSecret),
		Health: handler.HealthDependencies{
			StorageBackend: cfg.StorageBackend,
			CacheEnabled:   redisClient != nil,
			EventsEnabled:  natsConn != nil,
		},
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func buildFileStorage(cfg config.Config, logger zerolog.Logger) (service.FileStorage, error) {
	if cfg.StorageBackend == config.StorageBackendCloudinary {
		return storage.NewCloudinary(storage.CloudinaryConfig{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
	}
	return storage.NewLocal(cfg.UploadDir, logger)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
