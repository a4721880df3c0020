package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("CHAT_JWT_SECRET", "")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("CHAT_JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "Fiacomm Chat API", cfg.AppName)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, "fiacomm", cfg.ChannelBase)
	require.Equal(t, 30*time.Second, cfg.RoomCacheTTL)
	require.Equal(t, 5*time.Minute, cfg.PresenceWindow)
	require.Equal(t, StorageBackendLocal, cfg.StorageBackend)
	require.Equal(t, 10, cfg.MaxUploadMB)
	require.Equal(t, "enhanced", cfg.RenderMode)
	require.Equal(t, "*", cfg.CORSAllowOrigins)
	require.Nil(t, cfg.AllowedExtensions)
}

func TestLoadReadsEnvironmentOverrides(t *testing.T) {
	t.Setenv("CHAT_JWT_SECRET", "s3cret")
	t.Setenv("CHAT_APP_PORT", "9999")
	t.Setenv("CHAT_PRESENCE_WINDOW", "90s")
	t.Setenv("CHAT_STORAGE_BACKEND", "CLOUDINARY")
	t.Setenv("CHAT_UPLOAD_ALLOWED_EXTENSIONS", "png, jpg ,pdf")
	t.Setenv("CHAT_UPLOAD_MAX_MB", "25")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.HTTPAddress())
	require.Equal(t, 90*time.Second, cfg.PresenceWindow)
	require.Equal(t, StorageBackendCloudinary, cfg.StorageBackend)
	require.Equal(t, []string{"png", "jpg", "pdf"}, cfg.AllowedExtensions)
	require.Equal(t, 25, cfg.MaxUploadMB)
}

func TestLoadRejectsMalformedDurations(t *testing.T) {
	t.Setenv("CHAT_JWT_SECRET", "s3cret")
	t.Setenv("CHAT_ROOM_CACHE_TTL", "soon")

	_, err := Load()
	require.Error(t, err)
}
