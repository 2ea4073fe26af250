package engine

import (
	"fmt"
	"time"

	"github.com/nexusmsg/campaign-engine/internal/domain"
	"github.com/robfig/cron/v3"
)

// NextRun returns the first firing of the rule strictly after now, or nil
// when the rule has no future firing (a once time in the past, or a window
// that has closed). Specific-times rules are evaluated as civil time in loc,
// never in the server's local zone.
func NextRun(rule domain.ScheduleRule, now time.Time, loc *time.Location) *time.Time {
	switch rule.Type {
	case domain.ScheduleOnce:
		if rule.At != nil && rule.At.After(now) {
			t := *rule.At
			return &t
		}
		return nil

	case domain.ScheduleInterval:
		return nextInterval(rule, now)

	case domain.ScheduleSpecificTimes:
		return nextSpecific(rule, now, loc)
	}
	return nil
}

func nextInterval(rule domain.ScheduleRule, now time.Time) *time.Time {
	period := rule.Interval()
	if period <= 0 {
		return nil
	}

	base := now
	if rule.StartAt != nil {
		base = *rule.StartAt
	}

	next := base
	if !next.After(now) {
		// Skip missed firings; land on the first multiple after now.
		elapsed := now.Sub(base)
		steps := elapsed/period + 1
		next = base.Add(steps * period)
	}

	if rule.EndAt != nil && next.After(*rule.EndAt) {
		return nil
	}
	return &next
}

func nextSpecific(rule domain.ScheduleRule, now time.Time, loc *time.Location) *time.Time {
	ref := now
	if rule.StartAt != nil && rule.StartAt.After(now) {
		ref = *rule.StartAt
	}

	var earliest *time.Time
	for _, t := range rule.Times {
		next, err := nextDayTime(t, ref, loc)
		if err != nil {
			continue
		}
		if earliest == nil || next.Before(*earliest) {
			earliest = &next
		}
	}
	if earliest == nil {
		return nil
	}
	if rule.EndAt != nil && earliest.After(*rule.EndAt) {
		return nil
	}
	return earliest
}

// nextDayTime finds the next occurrence of a daily wall-clock point in loc.
// cron owns the calendar arithmetic, including DST transitions in loc.
func nextDayTime(t domain.DayTime, after time.Time, loc *time.Location) (time.Time, error) {
	expr := fmt.Sprintf("CRON_TZ=%s %d %d * * *", loc.String(), t.Minute, t.Hour)
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse daily time %02d:%02d: %w", t.Hour, t.Minute, err)
	}
	return sched.Next(after), nil
}
