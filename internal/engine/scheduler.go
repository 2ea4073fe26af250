package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/nexusmsg/campaign-engine/internal/domain"
	"github.com/nexusmsg/campaign-engine/internal/metrics"
)

// FireFunc is invoked on an independent goroutine when a campaign's timer
// elapses.
type FireFunc func(campaignID string)

// Scheduler maps schedule rules to live timers, keeping exactly one timer set
// per campaign id. The registry is a disposable cache: it is never persisted
// and can be rebuilt from the campaign store at any time (the bootstrapper
// does exactly that at process start).
type Scheduler struct {
	loc    *time.Location
	logger *slog.Logger

	mu    sync.Mutex
	fire  FireFunc
	slots map[string][]*time.Timer
}

func NewScheduler(loc *time.Location, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		loc:    loc,
		logger: logger.With("component", "scheduler"),
		slots:  make(map[string][]*time.Timer),
	}
}

// SetHandler binds the dispatch callback. Must be called before Arm.
func (s *Scheduler) SetHandler(fire FireFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fire = fire
}

// Location returns the engine's reference timezone for civil-time rules.
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// Arm registers timers for the campaign, replacing any previous set for the
// same id — scheduling is idempotent. Rules with no future firing arm
// nothing.
func (s *Scheduler) Arm(c *domain.Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked(c.ID)

	now := time.Now()
	var fireAt []time.Time

	switch c.Schedule.Type {
	case domain.ScheduleOnce, domain.ScheduleInterval:
		at := c.NextRunAt
		if at == nil || !at.After(now) {
			at = NextRun(c.Schedule, now, s.loc)
		}
		if at != nil {
			fireAt = append(fireAt, *at)
		}
	case domain.ScheduleSpecificTimes:
		// One timer per configured daily time; each slot re-arms through the
		// runner after its run completes.
		ref := now
		if c.Schedule.StartAt != nil && c.Schedule.StartAt.After(now) {
			ref = *c.Schedule.StartAt
		}
		for _, t := range c.Schedule.Times {
			next, err := nextDayTime(t, ref, s.loc)
			if err != nil {
				s.logger.Error("skip invalid daily time", "campaign_id", c.ID, "error", err)
				continue
			}
			if c.Schedule.EndAt != nil && next.After(*c.Schedule.EndAt) {
				continue
			}
			fireAt = append(fireAt, next)
		}
	}

	id := c.ID
	for _, at := range fireAt {
		timer := time.AfterFunc(time.Until(at), func() {
			s.mu.Lock()
			fire := s.fire
			s.mu.Unlock()
			if fire != nil {
				fire(id)
			}
		})
		s.slots[id] = append(s.slots[id], timer)
	}

	if len(fireAt) > 0 {
		s.logger.Info("campaign armed", "campaign_id", id, "timers", len(fireAt), "first_fire", fireAt[0])
	}
	s.updateGaugeLocked()
}

// Cancel stops and removes every timer for the campaign id. Unknown ids are
// a no-op.
func (s *Scheduler) Cancel(campaignID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(campaignID)
	s.updateGaugeLocked()
}

// Armed returns the number of live timer slots for the campaign id.
func (s *Scheduler) Armed(campaignID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots[campaignID])
}

func (s *Scheduler) cancelLocked(campaignID string) {
	for _, t := range s.slots[campaignID] {
		t.Stop()
	}
	delete(s.slots, campaignID)
}

func (s *Scheduler) updateGaugeLocked() {
	total := 0
	for _, ts := range s.slots {
		total += len(ts)
	}
	metrics.TimersArmed.Set(float64(total))
}
