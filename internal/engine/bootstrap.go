package engine

import (
	"context"
	"log/slog"

	"github.com/nexusmsg/campaign-engine/internal/domain"
	"github.com/nexusmsg/campaign-engine/internal/repository"
)

// Bootstrapper rebuilds engine state from the campaign store once at process
// start: the timer registry is a cache, so every armed timer is re-derived,
// and campaigns the previous process left mid-dispatch are resumed from
// their stored cursor.
type Bootstrapper struct {
	campaigns repository.CampaignRepository
	runner    *Runner
	sched     *Scheduler
	logger    *slog.Logger
}

func NewBootstrapper(campaigns repository.CampaignRepository, runner *Runner, sched *Scheduler, logger *slog.Logger) *Bootstrapper {
	return &Bootstrapper{
		campaigns: campaigns,
		runner:    runner,
		sched:     sched,
		logger:    logger.With("component", "bootstrapper"),
	}
}

// Restore re-arms active campaigns and resumes interrupted runs. Paused
// campaigns stay paused — resuming them is an explicit user action.
func (b *Bootstrapper) Restore(ctx context.Context) error {
	campaigns, err := b.campaigns.ListByStatus(ctx, domain.StatusActive, domain.StatusRunning)
	if err != nil {
		return err
	}

	var armed, resumed int
	for _, c := range campaigns {
		switch c.Status {
		case domain.StatusActive:
			b.sched.Arm(c)
			armed++

		case domain.StatusRunning:
			// The previous process died mid-dispatch.
			if c.Cursor >= len(c.GroupIDs) {
				// Every target was attempted but the completion transition
				// never landed — apply it now instead of re-dispatching an
				// empty suffix.
				b.logger.Info("applying missed completion", "campaign_id", c.ID)
				if _, err := b.runner.finishRun(ctx, c); err != nil {
					b.logger.Error("missed completion", "campaign_id", c.ID, "error", err)
				}
				continue
			}
			b.logger.Info("resuming interrupted run",
				"campaign_id", c.ID, "cursor", c.Cursor, "targets", len(c.GroupIDs))
			resumed++
			go func(c *domain.Campaign) {
				if err := b.runner.Dispatch(context.Background(), c); err != nil {
					b.logger.Error("resume dispatch", "campaign_id", c.ID, "error", err)
				}
			}(c)
		}
	}

	b.logger.Info("bootstrap complete", "armed", armed, "resumed", resumed)
	return nil
}
