// Package storage provides the durable byte stores used for chat
// attachments: a local-disk default and a Cloudinary-backed alternative.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Local stores attachment bytes on the local filesystem under a base
// directory. Returned references are paths relative to the working
// directory, suitable for serving as static assets.
type Local struct {
	dir    string
	logger zerolog.Logger
}

// NewLocal constructs a local-disk store rooted at dir.
func NewLocal(dir string, logger zerolog.Logger) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory must be provided")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &Local{
		dir:    dir,
		logger: logger.With().Str("component", "local_storage").Logger(),
	}, nil
}

// Save writes the reader's bytes to a new file named name. The write goes
// to a temporary file first and is renamed into place, so a partially
// written file never becomes visible under the final reference.
func (s *Local) Save(ctx context.Context, name string, reader io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name = filepath.Base(name)
	final := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to finalize file: %w", err)
	}

	s.logger.Debug().Str("path", final).Msg("attachment stored")
	return final, nil
}

// Remove deletes a previously stored file. References outside the base
// directory are rejected.
func (s *Local) Remove(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cleaned := filepath.Clean(ref)
	if !strings.HasPrefix(cleaned, filepath.Clean(s.dir)+string(os.PathSeparator)) {
		return fmt.Errorf("reference outside storage directory: %s", ref)
	}
	return os.Remove(cleaned)
}
