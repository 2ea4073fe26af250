package repository

import (
	"context"
	"time"

	"github.com/nexusmsg/campaign-engine/internal/domain"
)

// CampaignStats backs the dashboard endpoint.
type CampaignStats struct {
	Total     int
	Pending   int // paused + active
	Completed int
	Sent      int64 // messages sent across all campaigns
}

// UseCase and engine depend on the interface, not the concrete implementation.
// This way we get: 1) can swap DB later without touching usecase 2) we can pass
// a fake implementation in tests.
//
// Every mutation below is a single atomic update keyed by campaign id, so
// concurrent readers never observe a torn record and the engine's status
// guards hold under concurrency.
type CampaignRepository interface {
	Create(ctx context.Context, c *domain.Campaign) (*domain.Campaign, error)
	GetByID(ctx context.Context, id, userID string) (*domain.Campaign, error)
	// Get fetches without tenant scoping — engine internals only.
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	List(ctx context.Context, userID string) ([]*domain.Campaign, error)
	ListByStatus(ctx context.Context, statuses ...domain.Status) ([]*domain.Campaign, error)
	// Update replaces the definition fields. Callers must reject updates
	// while the campaign is running; the progress fields are untouched.
	Update(ctx context.Context, c *domain.Campaign) (*domain.Campaign, error)
	// Delete removes the campaign and its outcome records together.
	Delete(ctx context.Context, id, userID string) error
	Stats(ctx context.Context, userID string) (CampaignStats, error)

	// BeginRun flips paused|active|failed → running. fresh resets cursor and sent
	// count (start-now); a timer fire keeps them so a paused mid-run campaign
	// resumes from where it stopped. nextRun is written up front for the
	// recurring types so pause-during-run still has a target to resume
	// toward. Returns ErrCampaignRunning when the guard rejects.
	BeginRun(ctx context.Context, id string, fresh bool, nextRun *time.Time) (*domain.Campaign, error)
	// AdvanceCursor persists per-target progress after every attempt.
	AdvanceCursor(ctx context.Context, id string, cursor, sentCount int) error
	// CompleteRun closes a full pass: running → completed (once) or
	// running → active with cursor and sent count back at zero. A no-op if
	// the run was paused underneath us.
	CompleteRun(ctx context.Context, id string, status domain.Status, nextRun *time.Time) (*domain.Campaign, error)
	// FailRun aborts a run on an unrecoverable error, preserving the cursor
	// for manual resume.
	FailRun(ctx context.Context, id string, detail string) error
	// MarkPaused captures the remaining countdown and clears next_run.
	MarkPaused(ctx context.Context, id string, pausedAt time.Time, remaining *int64) (*domain.Campaign, error)
	// MarkResumed flips paused|failed → active and arms next_run. A failed
	// campaign keeps its cursor, so the next firing resumes mid-list.
	MarkResumed(ctx context.Context, id string, nextRun *time.Time) (*domain.Campaign, error)
	SetNextRun(ctx context.Context, id string, nextRun *time.Time) error
}
