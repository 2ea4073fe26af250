package domain

import (
	"errors"
	"time"
)

type Status string

const (
	StatusPaused    Status = "paused"
	StatusActive    Status = "active"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type ScheduleType string

const (
	ScheduleOnce          ScheduleType = "once"
	ScheduleInterval      ScheduleType = "interval"
	ScheduleSpecificTimes ScheduleType = "specific_times"
)

var (
	ErrCampaignNotFound   = errors.New("campaign not found")
	ErrCampaignRunning    = errors.New("campaign is currently running")
	ErrCampaignNotPaused  = errors.New("campaign is not paused")
	ErrNoRecipients       = errors.New("campaign has no recipient groups")
	ErrNoContent          = errors.New("campaign has no message content")
	ErrConnectionNotReady = errors.New("connection is not in a usable state")
)

// MessageVariant is one (text, optional media) content pair. A campaign with
// several variants picks one uniformly at random for each target.
type MessageVariant struct {
	Text    string  `json:"text"`
	MediaID *string `json:"media_id,omitempty"`
}

// DayTime is a civil wall-clock point, evaluated daily in the engine's
// reference timezone regardless of where the server runs.
type DayTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

type Campaign struct {
	ID           string
	UserID       string
	Title        string
	ConnectionID string
	GroupIDs     []string
	Variants     []MessageVariant
	Schedule     ScheduleRule
	DelaySeconds int

	// Progress — the crash-recovery state. Cursor is the zero-based index of
	// the next unattempted target; it resets to 0 only when a run completes
	// a full pass. SentCount counts successful sends in the current run.
	Status     Status
	SentCount  int
	TotalCount int
	Cursor     int

	StartedAt        *time.Time
	LastRunAt        *time.Time
	NextRunAt        *time.Time
	PausedAt         *time.Time
	RemainingSeconds *int64 // countdown to next_run captured at pause time
	LastError        *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Recurring reports whether the campaign fires more than once.
func (c *Campaign) Recurring() bool {
	return c.Schedule.Type != ScheduleOnce
}
