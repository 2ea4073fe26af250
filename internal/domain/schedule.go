package domain

import (
	"errors"
	"time"
)

var (
	ErrInvalidSchedule = errors.New("invalid schedule rule")
	ErrScheduleInPast  = errors.New("scheduled time is in the past")
)

// ScheduleRule is the declarative timing policy for a campaign.
// Exactly one shape is populated depending on Type:
//   - once:           At
//   - interval:       IntervalHours (StartAt defaults to "now" when nil)
//   - specific_times: Times, repeating daily
//
// StartAt/EndAt bound the active window for the recurring types.
type ScheduleRule struct {
	Type          ScheduleType `json:"type"`
	At            *time.Time   `json:"at,omitempty"`
	IntervalHours int          `json:"interval_hours,omitempty"`
	Times         []DayTime    `json:"times,omitempty"`
	StartAt       *time.Time   `json:"start_at,omitempty"`
	EndAt         *time.Time   `json:"end_at,omitempty"`
}

func (r ScheduleRule) Validate() error {
	switch r.Type {
	case ScheduleOnce:
		if r.At == nil {
			return ErrInvalidSchedule
		}
	case ScheduleInterval:
		if r.IntervalHours <= 0 {
			return ErrInvalidSchedule
		}
	case ScheduleSpecificTimes:
		if len(r.Times) == 0 {
			return ErrInvalidSchedule
		}
		for _, t := range r.Times {
			if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
				return ErrInvalidSchedule
			}
		}
	default:
		return ErrInvalidSchedule
	}
	if r.StartAt != nil && r.EndAt != nil && r.EndAt.Before(*r.StartAt) {
		return ErrInvalidSchedule
	}
	return nil
}

// Interval returns the firing period for interval rules.
func (r ScheduleRule) Interval() time.Duration {
	return time.Duration(r.IntervalHours) * time.Hour
}
