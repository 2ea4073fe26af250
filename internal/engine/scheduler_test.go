package engine_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/nexusmsg/campaign-engine/internal/domain"
	"github.com/nexusmsg/campaign-engine/internal/engine"
)

func TestScheduler_Arm_Idempotent(t *testing.T) {
	s := engine.NewScheduler(time.UTC, slog.Default())
	future := time.Now().Add(time.Hour)
	c := onceCampaign("c1", "g1")
	c.Schedule = domain.ScheduleRule{Type: domain.ScheduleOnce, At: &future}

	s.Arm(c)
	s.Arm(c)

	if got := s.Armed("c1"); got != 1 {
		t.Fatalf("armed timers = %d, want 1 after double arm", got)
	}
}

func TestScheduler_SpecificTimes_OneTimerPerSlot(t *testing.T) {
	s := engine.NewScheduler(time.UTC, slog.Default())
	c := onceCampaign("c1", "g1")
	c.Schedule = domain.ScheduleRule{
		Type:  domain.ScheduleSpecificTimes,
		Times: []domain.DayTime{{Hour: 9, Minute: 0}, {Hour: 14, Minute: 30}, {Hour: 20, Minute: 0}},
	}

	s.Arm(c)

	if got := s.Armed("c1"); got != 3 {
		t.Fatalf("armed timers = %d, want 3", got)
	}
}

func TestScheduler_Cancel_UnknownID_NoOp(t *testing.T) {
	s := engine.NewScheduler(time.UTC, slog.Default())
	s.Cancel("never-armed")

	if got := s.Armed("never-armed"); got != 0 {
		t.Fatalf("armed timers = %d, want 0", got)
	}
}

func TestScheduler_PastOnceRule_ArmsNothing(t *testing.T) {
	s := engine.NewScheduler(time.UTC, slog.Default())
	past := time.Now().Add(-time.Hour)
	c := onceCampaign("c1", "g1")
	c.Schedule = domain.ScheduleRule{Type: domain.ScheduleOnce, At: &past}
	c.NextRunAt = nil

	s.Arm(c)

	if got := s.Armed("c1"); got != 0 {
		t.Fatalf("armed timers = %d, want 0 for a past one-shot", got)
	}
}

func TestScheduler_FiresHandler(t *testing.T) {
	s := engine.NewScheduler(time.UTC, slog.Default())
	fired := make(chan string, 1)
	s.SetHandler(func(id string) { fired <- id })

	soon := time.Now().Add(20 * time.Millisecond)
	c := onceCampaign("c1", "g1")
	c.NextRunAt = &soon

	s.Arm(c)

	select {
	case id := <-fired:
		if id != "c1" {
			t.Fatalf("fired id = %s, want c1", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
}

func TestScheduler_Cancel_StopsPendingFire(t *testing.T) {
	s := engine.NewScheduler(time.UTC, slog.Default())
	fired := make(chan string, 1)
	s.SetHandler(func(id string) { fired <- id })

	soon := time.Now().Add(50 * time.Millisecond)
	c := onceCampaign("c1", "g1")
	c.NextRunAt = &soon

	s.Arm(c)
	s.Cancel("c1")

	select {
	case id := <-fired:
		t.Fatalf("cancelled timer fired for %s", id)
	case <-time.After(200 * time.Millisecond):
	}
}
