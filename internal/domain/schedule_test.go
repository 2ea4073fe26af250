package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/nexusmsg/campaign-engine/internal/domain"
)

func TestScheduleValidate_Once_RequiresAt(t *testing.T) {
	rule := domain.ScheduleRule{Type: domain.ScheduleOnce}
	if err := rule.Validate(); !errors.Is(err, domain.ErrInvalidSchedule) {
		t.Errorf("want ErrInvalidSchedule, got %v", err)
	}

	at := time.Now().Add(time.Hour)
	rule.At = &at
	if err := rule.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestScheduleValidate_Interval_RequiresPositiveHours(t *testing.T) {
	rule := domain.ScheduleRule{Type: domain.ScheduleInterval}
	if err := rule.Validate(); !errors.Is(err, domain.ErrInvalidSchedule) {
		t.Errorf("want ErrInvalidSchedule, got %v", err)
	}

	rule.IntervalHours = 6
	if err := rule.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestScheduleValidate_SpecificTimes_BoundsChecked(t *testing.T) {
	rule := domain.ScheduleRule{Type: domain.ScheduleSpecificTimes}
	if err := rule.Validate(); !errors.Is(err, domain.ErrInvalidSchedule) {
		t.Errorf("empty times: want ErrInvalidSchedule, got %v", err)
	}

	rule.Times = []domain.DayTime{{Hour: 24, Minute: 0}}
	if err := rule.Validate(); !errors.Is(err, domain.ErrInvalidSchedule) {
		t.Errorf("hour 24: want ErrInvalidSchedule, got %v", err)
	}

	rule.Times = []domain.DayTime{{Hour: 9, Minute: 30}, {Hour: 23, Minute: 59}}
	if err := rule.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestScheduleValidate_WindowEndBeforeStart(t *testing.T) {
	start := time.Now().Add(2 * time.Hour)
	end := start.Add(-time.Hour)
	rule := domain.ScheduleRule{
		Type:          domain.ScheduleInterval,
		IntervalHours: 1,
		StartAt:       &start,
		EndAt:         &end,
	}
	if err := rule.Validate(); !errors.Is(err, domain.ErrInvalidSchedule) {
		t.Errorf("want ErrInvalidSchedule, got %v", err)
	}
}

func TestScheduleValidate_UnknownType(t *testing.T) {
	rule := domain.ScheduleRule{Type: "weekly"}
	if err := rule.Validate(); !errors.Is(err, domain.ErrInvalidSchedule) {
		t.Errorf("want ErrInvalidSchedule, got %v", err)
	}
}
