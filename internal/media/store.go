package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/nexusmsg/campaign-engine/internal/domain"
	"github.com/nexusmsg/campaign-engine/internal/repository"
)

// Store keeps attachment bytes on the local filesystem with metadata rows in
// postgres. The engine only ever reads bytes back by media id.
type Store struct {
	dir    string
	repo   repository.MediaRepository
	logger *slog.Logger
}

func NewStore(dir string, repo repository.MediaRepository, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Store{dir: dir, repo: repo, logger: logger.With("component", "media_store")}, nil
}

// Save writes the bytes under a generated filename and records the metadata.
func (s *Store) Save(ctx context.Context, userID, originalName string, data []byte) (*domain.Media, error) {
	filename := uuid.NewString() + filepath.Ext(originalName)
	path := filepath.Join(s.dir, filename)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write media file: %w", err)
	}

	m, err := s.repo.Create(ctx, &domain.Media{
		UserID:       userID,
		Filename:     filename,
		OriginalName: originalName,
	})
	if err != nil {
		_ = os.Remove(path) // don't leave orphaned bytes behind
		return nil, err
	}
	return m, nil
}

// Resolve returns the stored bytes for a media id.
func (s *Store) Resolve(ctx context.Context, mediaID string) ([]byte, error) {
	m, err := s.repo.GetByID(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, m.Filename))
	if err != nil {
		return nil, fmt.Errorf("read media %s: %w", mediaID, err)
	}
	return data, nil
}

func (s *Store) List(ctx context.Context, userID string) ([]*domain.Media, error) {
	return s.repo.List(ctx, userID)
}

// Delete removes the metadata row and then the file. A missing file is only
// logged: the row is the source of truth.
func (s *Store) Delete(ctx context.Context, id, userID string) error {
	m, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, m.Filename)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("remove media file", "media_id", id, "error", err)
	}
	return nil
}
