package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage backend names accepted by the configuration.
const (
	StorageBackendLocal      = "local"
	StorageBackendCloudinary = "cloudinary"
)

// Config holds runtime configuration values for the chat API service.
type Config struct {
	AppName string
	AppEnv  string
	AppPort string

	CORSAllowOrigins string

	DatabaseURL string
	RedisURL    string
	NATSURL     string
	ChannelBase string

	JWTSecret string

	RoomCacheTTL   time.Duration
	PresenceWindow time.Duration

	StorageBackend         string
	UploadDir              string
	MaxUploadMB            int
	AllowedExtensions      []string
	UploadRateLimit        int
	UploadRateWindow       time.Duration
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string

	RenderMode string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}
	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and an
// optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CHAT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Fiacomm Chat API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("channel_base", "fiacomm")
	v.SetDefault("room.cache_ttl", "30s")
	v.SetDefault("presence.window", "5m")
	v.SetDefault("storage.backend", StorageBackendLocal)
	v.SetDefault("upload.dir", "uploads/chat_files")
	v.SetDefault("upload.max_mb", 10)
	v.SetDefault("upload.rate_limit", 10)
	v.SetDefault("upload.rate_window", "1m")
	v.SetDefault("render.mode", "enhanced")

	roomTTL, err := time.ParseDuration(v.GetString("room.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid room cache ttl: %w", err)
	}
	presenceWindow, err := time.ParseDuration(v.GetString("presence.window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid presence window: %w", err)
	}
	rateWindow, err := time.ParseDuration(v.GetString("upload.rate_window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid upload rate window: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		CORSAllowOrigins:       v.GetString("cors.allow_origins"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		ChannelBase:            v.GetString("channel_base"),
		JWTSecret:              v.GetString("jwt.secret"),
		RoomCacheTTL:           roomTTL,
		PresenceWindow:         presenceWindow,
		StorageBackend:         strings.ToLower(v.GetString("storage.backend")),
		UploadDir:              v.GetString("upload.dir"),
		MaxUploadMB:            v.GetInt("upload.max_mb"),
		AllowedExtensions:      splitTrimmed(v.GetString("upload.allowed_extensions")),
		UploadRateLimit:        v.GetInt("upload.rate_limit"),
		UploadRateWindow:       rateWindow,
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		RenderMode:             strings.ToLower(v.GetString("render.mode")),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 10
	}

	return cfg, nil
}

func splitTrimmed(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
