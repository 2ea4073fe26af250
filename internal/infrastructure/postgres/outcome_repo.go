package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nexusmsg/campaign-engine/internal/domain"
)

type OutcomeRepository struct {
	pool *pgxpool.Pool
}

func NewOutcomeRepository(pool *pgxpool.Pool) *OutcomeRepository {
	return &OutcomeRepository{pool: pool}
}

func (r *OutcomeRepository) Create(ctx context.Context, rec *domain.OutcomeRecord) (*domain.OutcomeRecord, error) {
	query := `
		INSERT INTO outcome_records (campaign_id, user_id, group_id, result, detail)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, campaign_id, user_id, group_id, result, detail, sent_at`

	row := r.pool.QueryRow(ctx, query,
		rec.CampaignID, rec.UserID, rec.GroupID, rec.Result, rec.Detail)

	var out domain.OutcomeRecord
	if err := row.Scan(&out.ID, &out.CampaignID, &out.UserID, &out.GroupID,
		&out.Result, &out.Detail, &out.SentAt); err != nil {
		return nil, fmt.Errorf("create outcome record: %w", err)
	}
	return &out, nil
}

func (r *OutcomeRepository) ListByCampaign(ctx context.Context, campaignID string) ([]*domain.OutcomeRecord, error) {
	query := `
		SELECT id, campaign_id, user_id, group_id, result, detail, sent_at
		FROM outcome_records
		WHERE campaign_id = $1
		ORDER BY sent_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list outcome records: %w", err)
	}
	defer rows.Close()

	var out []*domain.OutcomeRecord
	for rows.Next() {
		var rec domain.OutcomeRecord
		if err := rows.Scan(&rec.ID, &rec.CampaignID, &rec.UserID, &rec.GroupID,
			&rec.Result, &rec.Detail, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("scan outcome record: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
