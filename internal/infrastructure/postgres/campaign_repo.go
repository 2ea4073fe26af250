package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nexusmsg/campaign-engine/internal/domain"
	"github.com/nexusmsg/campaign-engine/internal/repository"
)

type CampaignRepository struct {
	pool *pgxpool.Pool
}

func NewCampaignRepository(pool *pgxpool.Pool) *CampaignRepository {
	return &CampaignRepository{pool: pool}
}

const campaignColumns = `id, user_id, title, connection_id, group_ids, variants,
	       schedule_type, scheduled_at, interval_hours, specific_times,
	       window_start, window_end, delay_seconds,
	       status, sent_count, total_count, cursor,
	       started_at, last_run_at, next_run_at, paused_at,
	       remaining_seconds, last_error, created_at, updated_at`

func (r *CampaignRepository) Create(ctx context.Context, c *domain.Campaign) (*domain.Campaign, error) {
	query := `
		INSERT INTO campaigns (
			user_id, title, connection_id, group_ids, variants,
			schedule_type, scheduled_at, interval_hours, specific_times,
			window_start, window_end, delay_seconds, status, total_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING ` + campaignColumns

	row := r.pool.QueryRow(ctx, query,
		c.UserID, c.Title, c.ConnectionID, c.GroupIDs, c.Variants,
		c.Schedule.Type, c.Schedule.At, nilIfZero(c.Schedule.IntervalHours), c.Schedule.Times,
		c.Schedule.StartAt, c.Schedule.EndAt, c.DelaySeconds, c.Status, c.TotalCount,
	)
	return scanCampaign(row)
}

func (r *CampaignRepository) GetByID(ctx context.Context, id, userID string) (*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1 AND user_id = $2`
	return scanCampaign(r.pool.QueryRow(ctx, query, id, userID))
}

func (r *CampaignRepository) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	return scanCampaign(r.pool.QueryRow(ctx, query, id))
}

func (r *CampaignRepository) List(ctx context.Context, userID string) ([]*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()
	return collectCampaigns(rows)
}

func (r *CampaignRepository) ListByStatus(ctx context.Context, statuses ...domain.Status) ([]*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE status = ANY($1) ORDER BY created_at ASC`
	ss := make([]string, len(statuses))
	for i, s := range statuses {
		ss[i] = string(s)
	}
	rows, err := r.pool.Query(ctx, query, ss)
	if err != nil {
		return nil, fmt.Errorf("list campaigns by status: %w", err)
	}
	defer rows.Close()
	return collectCampaigns(rows)
}

func (r *CampaignRepository) Update(ctx context.Context, c *domain.Campaign) (*domain.Campaign, error) {
	query := `
		UPDATE campaigns
		SET    title          = $3,
		       connection_id  = $4,
		       group_ids      = $5,
		       variants       = $6,
		       schedule_type  = $7,
		       scheduled_at   = $8,
		       interval_hours = $9,
		       specific_times = $10,
		       window_start   = $11,
		       window_end     = $12,
		       delay_seconds  = $13,
		       total_count    = $14,
		       updated_at     = NOW()
		WHERE id = $1 AND user_id = $2 AND status <> 'running'
		RETURNING ` + campaignColumns

	row := r.pool.QueryRow(ctx, query,
		c.ID, c.UserID, c.Title, c.ConnectionID, c.GroupIDs, c.Variants,
		c.Schedule.Type, c.Schedule.At, nilIfZero(c.Schedule.IntervalHours), c.Schedule.Times,
		c.Schedule.StartAt, c.Schedule.EndAt, c.DelaySeconds, c.TotalCount,
	)
	updated, err := scanCampaign(row)
	if errors.Is(err, domain.ErrCampaignNotFound) {
		// Distinguish "missing" from "running" for the caller.
		if _, getErr := r.GetByID(ctx, c.ID, c.UserID); getErr == nil {
			return nil, domain.ErrCampaignRunning
		}
	}
	return updated, err
}

func (r *CampaignRepository) Delete(ctx context.Context, id, userID string) error {
	// Outcome records are owned by the campaign and go with it.
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM outcome_records WHERE campaign_id = $1`, id); err != nil {
		return fmt.Errorf("delete outcomes: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM campaigns WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCampaignNotFound
	}
	return tx.Commit(ctx)
}

func (r *CampaignRepository) Stats(ctx context.Context, userID string) (repository.CampaignStats, error) {
	var s repository.CampaignStats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status IN ('paused', 'active')),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COALESCE(SUM(sent_count), 0)
		FROM campaigns
		WHERE user_id = $1`, userID,
	).Scan(&s.Total, &s.Pending, &s.Completed, &s.Sent)
	if err != nil {
		return repository.CampaignStats{}, fmt.Errorf("campaign stats: %w", err)
	}
	return s, nil
}

func (r *CampaignRepository) BeginRun(ctx context.Context, id string, fresh bool, nextRun *time.Time) (*domain.Campaign, error) {
	// The status guard keeps two runners from holding "running" for the same
	// campaign simultaneously.
	query := `
		UPDATE campaigns
		SET    status            = 'running',
		       started_at        = NOW(),
		       last_run_at       = NOW(),
		       next_run_at       = $3,
		       paused_at         = NULL,
		       remaining_seconds = NULL,
		       last_error        = NULL,
		       cursor            = CASE WHEN $2 THEN 0 ELSE cursor END,
		       sent_count        = CASE WHEN $2 THEN 0 ELSE sent_count END,
		       updated_at        = NOW()
		WHERE id = $1 AND status IN ('paused', 'active', 'failed')
		RETURNING ` + campaignColumns

	c, err := scanCampaign(r.pool.QueryRow(ctx, query, id, fresh, nextRun))
	if errors.Is(err, domain.ErrCampaignNotFound) {
		if _, getErr := r.Get(ctx, id); getErr == nil {
			return nil, domain.ErrCampaignRunning
		}
	}
	return c, err
}

func (r *CampaignRepository) AdvanceCursor(ctx context.Context, id string, cursor, sentCount int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaigns
		SET cursor = $2, sent_count = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'running'`, id, cursor, sentCount)
	return err
}

func (r *CampaignRepository) CompleteRun(ctx context.Context, id string, status domain.Status, nextRun *time.Time) (*domain.Campaign, error) {
	query := `
		UPDATE campaigns
		SET    status      = $2,
		       cursor      = 0,
		       sent_count  = CASE WHEN $2 = 'active' THEN 0 ELSE sent_count END,
		       next_run_at = $3,
		       updated_at  = NOW()
		WHERE id = $1 AND status = 'running'
		RETURNING ` + campaignColumns

	return scanCampaign(r.pool.QueryRow(ctx, query, id, status, nextRun))
}

func (r *CampaignRepository) FailRun(ctx context.Context, id string, detail string) error {
	// Cursor is intentionally preserved so the run can resume mid-list.
	_, err := r.pool.Exec(ctx, `
		UPDATE campaigns
		SET status = 'failed', last_error = $2, next_run_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'running'`, id, detail)
	return err
}

func (r *CampaignRepository) MarkPaused(ctx context.Context, id string, pausedAt time.Time, remaining *int64) (*domain.Campaign, error) {
	query := `
		UPDATE campaigns
		SET    status            = 'paused',
		       paused_at         = $2,
		       remaining_seconds = $3,
		       next_run_at       = NULL,
		       updated_at        = NOW()
		WHERE id = $1 AND status IN ('running', 'active')
		RETURNING ` + campaignColumns

	return scanCampaign(r.pool.QueryRow(ctx, query, id, pausedAt, remaining))
}

func (r *CampaignRepository) MarkResumed(ctx context.Context, id string, nextRun *time.Time) (*domain.Campaign, error) {
	query := `
		UPDATE campaigns
		SET    status            = 'active',
		       paused_at         = NULL,
		       remaining_seconds = NULL,
		       next_run_at       = $2,
		       last_error        = NULL,
		       updated_at        = NOW()
		WHERE id = $1 AND status IN ('paused', 'failed')
		RETURNING ` + campaignColumns

	c, err := scanCampaign(r.pool.QueryRow(ctx, query, id, nextRun))
	if errors.Is(err, domain.ErrCampaignNotFound) {
		if _, getErr := r.Get(ctx, id); getErr == nil {
			return nil, domain.ErrCampaignNotPaused
		}
	}
	return c, err
}

func (r *CampaignRepository) SetNextRun(ctx context.Context, id string, nextRun *time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE campaigns SET next_run_at = $2, updated_at = NOW() WHERE id = $1`, id, nextRun)
	return err
}

// pgx.Row and pgx.Rows both implement this.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*domain.Campaign, error) {
	var (
		c             domain.Campaign
		intervalHours *int
	)
	err := row.Scan(
		&c.ID, &c.UserID, &c.Title, &c.ConnectionID, &c.GroupIDs, &c.Variants,
		&c.Schedule.Type, &c.Schedule.At, &intervalHours, &c.Schedule.Times,
		&c.Schedule.StartAt, &c.Schedule.EndAt, &c.DelaySeconds,
		&c.Status, &c.SentCount, &c.TotalCount, &c.Cursor,
		&c.StartedAt, &c.LastRunAt, &c.NextRunAt, &c.PausedAt,
		&c.RemainingSeconds, &c.LastError, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, fmt.Errorf("scan campaign: %w", err)
	}
	if intervalHours != nil {
		c.Schedule.IntervalHours = *intervalHours
	}
	return &c, nil
}

func collectCampaigns(rows pgx.Rows) ([]*domain.Campaign, error) {
	var out []*domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func nilIfZero(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
