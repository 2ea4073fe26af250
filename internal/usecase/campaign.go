package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nexusmsg/campaign-engine/internal/domain"
	"github.com/nexusmsg/campaign-engine/internal/engine"
	"github.com/nexusmsg/campaign-engine/internal/gateway"
	"github.com/nexusmsg/campaign-engine/internal/repository"
)

// Dispatcher is the slice of the engine runner the control surface needs.
type Dispatcher interface {
	Begin(ctx context.Context, c *domain.Campaign, fresh bool) (*domain.Campaign, error)
	Dispatch(ctx context.Context, c *domain.Campaign) error
}

// TimerRegistry is the scheduler seen from the control surface.
type TimerRegistry interface {
	Arm(c *domain.Campaign)
	Cancel(campaignID string)
	Location() *time.Location
}

// ConnectionChecker verifies a gateway connection is usable before a
// campaign is allowed to reference it.
type ConnectionChecker interface {
	Status(ctx context.Context, connectionID string) (gateway.ConnectionStatus, error)
}

type CampaignUsecase struct {
	repo     repository.CampaignRepository
	outcomes repository.OutcomeRepository
	runner   Dispatcher
	timers   TimerRegistry
	gw       ConnectionChecker
	logger   *slog.Logger
}

func NewCampaignUsecase(
	repo repository.CampaignRepository,
	outcomes repository.OutcomeRepository,
	runner Dispatcher,
	timers TimerRegistry,
	gw ConnectionChecker,
	logger *slog.Logger,
) *CampaignUsecase {
	return &CampaignUsecase{
		repo:     repo,
		outcomes: outcomes,
		runner:   runner,
		timers:   timers,
		gw:       gw,
		logger:   logger.With("component", "campaign_usecase"),
	}
}

type CampaignInput struct {
	UserID       string
	Title        string
	ConnectionID string
	GroupIDs     []string
	Variants     []domain.MessageVariant
	Schedule     domain.ScheduleRule
	DelaySeconds int
}

func (in CampaignInput) validate() error {
	if err := in.Schedule.Validate(); err != nil {
		return err
	}
	if len(in.GroupIDs) == 0 {
		return domain.ErrNoRecipients
	}
	if len(in.Variants) == 0 {
		return domain.ErrNoContent
	}
	for _, v := range in.Variants {
		if strings.TrimSpace(v.Text) == "" && v.MediaID == nil {
			return domain.ErrNoContent
		}
	}
	return nil
}

// CreateCampaign validates the definition and persists it in paused status —
// dispatching is an explicit opt-in via StartNow or Resume.
func (u *CampaignUsecase) CreateCampaign(ctx context.Context, in CampaignInput) (*domain.Campaign, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := u.checkConnection(ctx, in.ConnectionID); err != nil {
		return nil, err
	}

	c := &domain.Campaign{
		UserID:       in.UserID,
		Title:        in.Title,
		ConnectionID: in.ConnectionID,
		GroupIDs:     in.GroupIDs,
		Variants:     in.Variants,
		Schedule:     in.Schedule,
		DelaySeconds: in.DelaySeconds,
		Status:       domain.StatusPaused,
		TotalCount:   len(in.GroupIDs),
	}
	created, err := u.repo.Create(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	return created, nil
}

// EngineState is what the callers need to reflect the engine without polling
// internals: the resulting status plus the countdown target, if any.
type EngineState struct {
	Status           domain.Status
	NextRunAt        *time.Time
	RemainingSeconds *int64
}

// StartNow runs the campaign immediately from target zero. Specific-times
// campaigns are only activated — they fire at their configured daily times.
func (u *CampaignUsecase) StartNow(ctx context.Context, id, userID string) (EngineState, error) {
	c, err := u.repo.GetByID(ctx, id, userID)
	if err != nil {
		return EngineState{}, err
	}
	if err := u.checkConnection(ctx, c.ConnectionID); err != nil {
		return EngineState{}, err
	}

	if c.Schedule.Type == domain.ScheduleSpecificTimes {
		return u.activate(ctx, c)
	}

	started, err := u.runner.Begin(ctx, c, true)
	if err != nil {
		return EngineState{}, err
	}
	go func() {
		if err := u.runner.Dispatch(context.Background(), started); err != nil {
			u.logger.Error("dispatch", "campaign_id", started.ID, "error", err)
		}
	}()
	if started.Recurring() {
		// Arm the following interval fire as well; the runner re-arms after
		// each completed pass.
		u.timers.Arm(started)
	}
	return EngineState{Status: domain.StatusRunning, NextRunAt: started.NextRunAt}, nil
}

// Pause stops future firings and asks an in-flight run to stop at the next
// target boundary. The countdown to next_run is captured so Resume can
// reproduce it.
func (u *CampaignUsecase) Pause(ctx context.Context, id, userID string) (EngineState, error) {
	c, err := u.repo.GetByID(ctx, id, userID)
	if err != nil {
		return EngineState{}, err
	}

	var remaining *int64
	if c.NextRunAt != nil {
		if secs := int64(time.Until(*c.NextRunAt).Seconds()); secs > 0 {
			remaining = &secs
		}
	}

	paused, err := u.repo.MarkPaused(ctx, id, time.Now(), remaining)
	if err != nil {
		if c.Status == domain.StatusPaused {
			return EngineState{Status: c.Status, RemainingSeconds: c.RemainingSeconds}, nil // already paused
		}
		return EngineState{}, err
	}
	u.timers.Cancel(id)

	return EngineState{Status: paused.Status, RemainingSeconds: paused.RemainingSeconds}, nil
}

// Resume re-arms a paused (or failed) campaign. A countdown captured at pause
// time is preserved: next_run becomes now + remaining. Without one, the next
// firing is recomputed from the schedule rule.
func (u *CampaignUsecase) Resume(ctx context.Context, id, userID string) (EngineState, error) {
	c, err := u.repo.GetByID(ctx, id, userID)
	if err != nil {
		return EngineState{}, err
	}

	var next *time.Time
	if c.RemainingSeconds != nil && *c.RemainingSeconds > 0 {
		t := time.Now().Add(time.Duration(*c.RemainingSeconds) * time.Second)
		next = &t
	} else {
		next = engine.NextRun(c.Schedule, time.Now(), u.timers.Location())
	}

	if next == nil && !c.Recurring() {
		// The one-shot time has already passed: dispatch immediately instead
		// of scheduling.
		resumed, err := u.repo.MarkResumed(ctx, id, nil)
		if err != nil {
			return EngineState{}, err
		}
		started, err := u.runner.Begin(ctx, resumed, false)
		if err != nil {
			return EngineState{}, err
		}
		go func() {
			if err := u.runner.Dispatch(context.Background(), started); err != nil {
				u.logger.Error("dispatch", "campaign_id", started.ID, "error", err)
			}
		}()
		return EngineState{Status: domain.StatusRunning}, nil
	}

	resumed, err := u.repo.MarkResumed(ctx, id, next)
	if err != nil {
		return EngineState{}, err
	}
	u.timers.Arm(resumed)

	return EngineState{Status: resumed.Status, NextRunAt: resumed.NextRunAt}, nil
}

// UpdateCampaign replaces the definition. Rejected while running; an active
// campaign is re-armed under the new rule.
func (u *CampaignUsecase) UpdateCampaign(ctx context.Context, id string, in CampaignInput) (*domain.Campaign, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	c, err := u.repo.GetByID(ctx, id, in.UserID)
	if err != nil {
		return nil, err
	}
	if c.Status == domain.StatusRunning {
		return nil, domain.ErrCampaignRunning
	}

	c.Title = in.Title
	c.ConnectionID = in.ConnectionID
	c.GroupIDs = in.GroupIDs
	c.Variants = in.Variants
	c.Schedule = in.Schedule
	c.DelaySeconds = in.DelaySeconds
	c.TotalCount = len(in.GroupIDs)

	updated, err := u.repo.Update(ctx, c)
	if err != nil {
		return nil, err
	}

	if updated.Status == domain.StatusActive {
		next := engine.NextRun(updated.Schedule, time.Now(), u.timers.Location())
		if err := u.repo.SetNextRun(ctx, id, next); err != nil {
			return nil, err
		}
		updated.NextRunAt = next
		u.timers.Arm(updated)
	}
	return updated, nil
}

// DeleteCampaign cancels timers and removes the campaign together with its
// outcome records.
func (u *CampaignUsecase) DeleteCampaign(ctx context.Context, id, userID string) error {
	u.timers.Cancel(id)
	return u.repo.Delete(ctx, id, userID)
}

func (u *CampaignUsecase) GetCampaign(ctx context.Context, id, userID string) (*domain.Campaign, error) {
	return u.repo.GetByID(ctx, id, userID)
}

func (u *CampaignUsecase) ListCampaigns(ctx context.Context, userID string) ([]*domain.Campaign, error) {
	return u.repo.List(ctx, userID)
}

// DuplicateCampaign copies the definition into a fresh paused campaign with
// zeroed progress.
func (u *CampaignUsecase) DuplicateCampaign(ctx context.Context, id, userID string) (*domain.Campaign, error) {
	c, err := u.repo.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	copyOf := &domain.Campaign{
		UserID:       c.UserID,
		Title:        c.Title + " (copy)",
		ConnectionID: c.ConnectionID,
		GroupIDs:     c.GroupIDs,
		Variants:     c.Variants,
		Schedule:     c.Schedule,
		DelaySeconds: c.DelaySeconds,
		Status:       domain.StatusPaused,
		TotalCount:   len(c.GroupIDs),
	}
	created, err := u.repo.Create(ctx, copyOf)
	if err != nil {
		return nil, fmt.Errorf("duplicate campaign: %w", err)
	}
	return created, nil
}

// ListOutcomes returns the audit trail for one campaign, oldest first.
func (u *CampaignUsecase) ListOutcomes(ctx context.Context, campaignID, userID string) ([]*domain.OutcomeRecord, error) {
	// Ownership check before touching the records.
	if _, err := u.repo.GetByID(ctx, campaignID, userID); err != nil {
		return nil, err
	}
	return u.outcomes.ListByCampaign(ctx, campaignID)
}

func (u *CampaignUsecase) Stats(ctx context.Context, userID string) (repository.CampaignStats, error) {
	return u.repo.Stats(ctx, userID)
}

// activate arms a specific-times campaign without dispatching: it will send
// at its configured daily times.
func (u *CampaignUsecase) activate(ctx context.Context, c *domain.Campaign) (EngineState, error) {
	next := engine.NextRun(c.Schedule, time.Now(), u.timers.Location())

	switch c.Status {
	case domain.StatusActive:
		if err := u.repo.SetNextRun(ctx, c.ID, next); err != nil {
			return EngineState{}, err
		}
		c.NextRunAt = next
		u.timers.Arm(c)
		return EngineState{Status: c.Status, NextRunAt: next}, nil
	case domain.StatusRunning:
		return EngineState{}, domain.ErrCampaignRunning
	default:
		resumed, err := u.repo.MarkResumed(ctx, c.ID, next)
		if err != nil {
			return EngineState{}, err
		}
		u.timers.Arm(resumed)
		return EngineState{Status: resumed.Status, NextRunAt: resumed.NextRunAt}, nil
	}
}

func (u *CampaignUsecase) checkConnection(ctx context.Context, connectionID string) error {
	st, err := u.gw.Status(ctx, connectionID)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConnectionNotReady, err)
	}
	if !st.Connected() {
		return domain.ErrConnectionNotReady
	}
	return nil
}
