package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nexusmsg/campaign-engine/internal/domain"
)

type MediaRepository struct {
	pool *pgxpool.Pool
}

func NewMediaRepository(pool *pgxpool.Pool) *MediaRepository {
	return &MediaRepository{pool: pool}
}

func (r *MediaRepository) Create(ctx context.Context, m *domain.Media) (*domain.Media, error) {
	query := `
		INSERT INTO media (user_id, filename, original_name)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, filename, original_name, created_at`

	return scanMedia(r.pool.QueryRow(ctx, query, m.UserID, m.Filename, m.OriginalName))
}

func (r *MediaRepository) GetByID(ctx context.Context, id string) (*domain.Media, error) {
	query := `SELECT id, user_id, filename, original_name, created_at FROM media WHERE id = $1`
	return scanMedia(r.pool.QueryRow(ctx, query, id))
}

func (r *MediaRepository) List(ctx context.Context, userID string) ([]*domain.Media, error) {
	query := `
		SELECT id, user_id, filename, original_name, created_at
		FROM media WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	var out []*domain.Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MediaRepository) Delete(ctx context.Context, id, userID string) (*domain.Media, error) {
	query := `
		DELETE FROM media WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, filename, original_name, created_at`
	return scanMedia(r.pool.QueryRow(ctx, query, id, userID))
}

func scanMedia(row rowScanner) (*domain.Media, error) {
	var m domain.Media
	err := row.Scan(&m.ID, &m.UserID, &m.Filename, &m.OriginalName, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMediaNotFound
		}
		return nil, fmt.Errorf("scan media: %w", err)
	}
	return &m, nil
}
