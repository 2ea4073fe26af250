package repository

import (
	"context"

	"github.com/nexusmsg/campaign-engine/internal/domain"
)

type MediaRepository interface {
	Create(ctx context.Context, m *domain.Media) (*domain.Media, error)
	GetByID(ctx context.Context, id string) (*domain.Media, error)
	List(ctx context.Context, userID string) ([]*domain.Media, error)
	Delete(ctx context.Context, id, userID string) (*domain.Media, error)
}
