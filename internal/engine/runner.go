package engine

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/nexusmsg/campaign-engine/internal/domain"
	"github.com/nexusmsg/campaign-engine/internal/gateway"
	"github.com/nexusmsg/campaign-engine/internal/metrics"
	"github.com/nexusmsg/campaign-engine/internal/repository"
)

// Sender is the slice of the gateway client the runner needs.
type Sender interface {
	Send(ctx context.Context, connectionID, groupID, text string, media []byte) error
}

// MediaResolver supplies attachment bytes for a media id.
type MediaResolver interface {
	Resolve(ctx context.Context, mediaID string) ([]byte, error)
}

// Runner executes one campaign run to completion or interruption. Within a
// campaign, dispatch is strictly sequential; separate campaigns run on
// independent goroutines.
type Runner struct {
	campaigns repository.CampaignRepository
	outcomes  repository.OutcomeRepository
	media     MediaResolver
	gw        Sender
	sched     *Scheduler
	logger    *slog.Logger
}

func NewRunner(
	campaigns repository.CampaignRepository,
	outcomes repository.OutcomeRepository,
	media MediaResolver,
	gw Sender,
	sched *Scheduler,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		campaigns: campaigns,
		outcomes:  outcomes,
		media:     media,
		gw:        gw,
		sched:     sched,
		logger:    logger.With("component", "runner"),
	}
}

// Fire is the scheduler's timer callback: load the campaign and run it.
// Timer fires keep the stored cursor, so a campaign paused mid-run and
// resumed continues from where it stopped.
func (r *Runner) Fire(campaignID string) {
	ctx := context.Background()

	c, err := r.campaigns.Get(ctx, campaignID)
	if err != nil {
		r.logger.Error("fire: load campaign", "campaign_id", campaignID, "error", err)
		return
	}
	if c.Status != domain.StatusActive && c.Status != domain.StatusRunning {
		// Paused stays paused; failed and completed campaigns only restart
		// through an explicit resume or start.
		r.logger.Info("fire: campaign not active, skipping run",
			"campaign_id", campaignID, "status", c.Status)
		return
	}

	if err := r.Run(ctx, c, false); err != nil {
		if errors.Is(err, domain.ErrCampaignRunning) {
			// Previous run still in flight; put the timer back so the
			// schedule keeps ticking.
			if c.Recurring() {
				c.NextRunAt = nil
				r.sched.Arm(c)
			}
			return
		}
		r.logger.Error("fire: run", "campaign_id", campaignID, "error", err)
	}
}

// Begin performs the guarded paused|active → running transition and returns
// the refreshed record. fresh resets the cursor for a start-now; timer fires
// pass false. next_run for recurring types is computed up front so that a
// pause during the run still has a countdown target.
func (r *Runner) Begin(ctx context.Context, c *domain.Campaign, fresh bool) (*domain.Campaign, error) {
	var nextRun *time.Time
	if c.Recurring() {
		nextRun = NextRun(c.Schedule, time.Now(), r.sched.Location())
	}
	started, err := r.campaigns.BeginRun(ctx, c.ID, fresh, nextRun)
	if err != nil {
		return nil, err
	}
	r.logger.Info("run started",
		"campaign_id", c.ID, "cursor", started.Cursor, "targets", len(started.GroupIDs))
	return started, nil
}

// Run transitions the campaign into running and dispatches synchronously.
func (r *Runner) Run(ctx context.Context, c *domain.Campaign, fresh bool) error {
	started, err := r.Begin(ctx, c, fresh)
	if err != nil {
		return err
	}
	return r.Dispatch(ctx, started)
}

// Dispatch iterates the remaining suffix of the recipient list, recording an
// outcome and advancing the cursor after every attempt. The campaign must
// already be in running status (via Begin, or found running at boot by the
// bootstrapper).
func (r *Runner) Dispatch(ctx context.Context, c *domain.Campaign) error {
	start := time.Now()
	metrics.RunsInFlight.Inc()
	defer metrics.RunsInFlight.Dec()

	outcome, err := r.dispatch(ctx, c)
	metrics.DispatchDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return err
}

func (r *Runner) dispatch(ctx context.Context, c *domain.Campaign) (string, error) {
	delay := time.Duration(c.DelaySeconds) * time.Second

	// Media bytes are fetched once per run, not per target.
	mediaCache := make(map[string][]byte)

	for {
		// Re-read before each target: pause must be observable within one
		// iteration, and the stored cursor is authoritative, which makes
		// crash-resume and pause-resume the same code path as a fresh run.
		cur, err := r.campaigns.Get(ctx, c.ID)
		if err != nil {
			return "aborted", err
		}
		if cur.Status != domain.StatusRunning {
			r.logger.Info("run interrupted", "campaign_id", c.ID, "status", cur.Status, "cursor", cur.Cursor)
			return "interrupted", nil
		}
		if cur.Cursor >= len(c.GroupIDs) {
			break
		}

		groupID := c.GroupIDs[cur.Cursor]
		variant := c.Variants[rand.Intn(len(c.Variants))]

		var media []byte
		if variant.MediaID != nil {
			media = r.resolveMedia(ctx, c.ID, *variant.MediaID, mediaCache)
		}

		sendErr := r.gw.Send(ctx, c.ConnectionID, groupID, variant.Text, media)

		var gerr *gateway.Error
		if sendErr != nil && errors.As(sendErr, &gerr) && gerr.Fatal() {
			// The gateway is gone and the client's bounded recovery already
			// failed. Abort the run, keep the cursor so a later resume picks
			// up at this exact target.
			if err := r.campaigns.FailRun(ctx, c.ID, sendErr.Error()); err != nil {
				r.logger.Error("mark run failed", "campaign_id", c.ID, "error", err)
			}
			r.sched.Cancel(c.ID)
			r.logger.Error("run aborted: gateway unavailable",
				"campaign_id", c.ID, "cursor", cur.Cursor, "error", sendErr)
			return "failed", nil
		}

		sent := cur.SentCount
		rec := &domain.OutcomeRecord{
			CampaignID: c.ID,
			UserID:     c.UserID,
			GroupID:    groupID,
		}
		if sendErr != nil {
			// Target-level failure: record it and move on — one bad target
			// never blocks the rest of the list.
			detail := sendErr.Error()
			rec.Result = domain.OutcomeFailed
			rec.Detail = &detail
			metrics.MessagesTotal.WithLabelValues("failed").Inc()
			r.logger.Warn("send failed", "campaign_id", c.ID, "group_id", groupID, "error", sendErr)
		} else {
			rec.Result = domain.OutcomeSent
			sent++
			metrics.MessagesTotal.WithLabelValues("sent").Inc()
		}
		if _, err := r.outcomes.Create(ctx, rec); err != nil {
			// Audit only — never control flow.
			r.logger.Error("write outcome record", "campaign_id", c.ID, "error", err)
		}

		if err := r.campaigns.AdvanceCursor(ctx, c.ID, cur.Cursor+1, sent); err != nil {
			// Store unavailable: abort this run only; the bootstrapper will
			// resume from the last persisted cursor.
			return "aborted", err
		}

		if cur.Cursor+1 < len(c.GroupIDs) && delay > 0 {
			if !sleepCtx(ctx, delay) {
				return "interrupted", ctx.Err()
			}
		}
	}

	return r.finishRun(ctx, c)
}

// finishRun applies the completion transition after a full pass: once →
// completed; recurring → active with progress reset and the next firing
// armed.
func (r *Runner) finishRun(ctx context.Context, c *domain.Campaign) (string, error) {
	if !c.Recurring() {
		if _, err := r.campaigns.CompleteRun(ctx, c.ID, domain.StatusCompleted, nil); err != nil {
			if errors.Is(err, domain.ErrCampaignNotFound) {
				return "interrupted", nil // paused in the final instant
			}
			return "aborted", err
		}
		r.sched.Cancel(c.ID)
		r.logger.Info("campaign completed", "campaign_id", c.ID)
		return "completed", nil
	}

	next := NextRun(c.Schedule, time.Now(), r.sched.Location())
	updated, err := r.campaigns.CompleteRun(ctx, c.ID, domain.StatusActive, next)
	if err != nil {
		if errors.Is(err, domain.ErrCampaignNotFound) {
			return "interrupted", nil
		}
		return "aborted", err
	}
	if next != nil {
		r.sched.Arm(updated)
		r.logger.Info("run completed, next firing armed", "campaign_id", c.ID, "next_run", *next)
	} else {
		// Active window closed; nothing left to arm.
		r.sched.Cancel(c.ID)
		r.logger.Info("run completed, schedule window closed", "campaign_id", c.ID)
	}
	return "completed", nil
}

func (r *Runner) resolveMedia(ctx context.Context, campaignID, mediaID string, cache map[string][]byte) []byte {
	if b, ok := cache[mediaID]; ok {
		return b
	}
	b, err := r.media.Resolve(ctx, mediaID)
	if err != nil {
		r.logger.Warn("resolve media, sending text only",
			"campaign_id", campaignID, "media_id", mediaID, "error", err)
		b = nil
	}
	cache[mediaID] = b
	return b
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
