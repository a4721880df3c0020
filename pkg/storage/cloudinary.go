package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// CloudinaryConfig contains the credentials required to talk to Cloudinary.
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Cloudinary stores attachment bytes in a Cloudinary folder. The returned
// reference is the asset's secure URL.
type Cloudinary struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// NewCloudinary constructs a Cloudinary-backed store.
func NewCloudinary(cfg CloudinaryConfig, logger zerolog.Logger) (*Cloudinary, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	client, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Cloudinary{
		client: client,
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "cloudinary_storage").Logger(),
	}, nil
}

// Save uploads the bytes under a public id derived from name.
func (s *Cloudinary) Save(ctx context.Context, name string, reader io.Reader) (string, error) {
	publicID := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	result, err := s.client.Upload.Upload(ctx, reader, uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     publicID,
		ResourceType: "auto",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}

	s.logger.Info().Str("public_id", result.PublicID).Msg("attachment uploaded to cloudinary")
	return result.SecureURL, nil
}

// Remove destroys the asset so a failed message write leaves no orphaned
// bytes behind.
func (s *Cloudinary) Remove(ctx context.Context, ref string) error {
	publicID := publicIDFromURL(ref, s.folder)
	if publicID == "" {
		return fmt.Errorf("cannot derive public id from reference: %s", ref)
	}

	_, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("failed to destroy asset: %w", err)
	}
	return nil
}

func publicIDFromURL(ref, folder string) string {
	base := filepath.Base(ref)
	publicID := strings.TrimSuffix(base, filepath.Ext(base))
	if publicID == "" {
		return ""
	}
	if folder != "" {
		return folder + "/" + publicID
	}
	return publicID
}
