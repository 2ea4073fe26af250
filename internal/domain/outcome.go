package domain

import "time"

type OutcomeResult string

const (
	OutcomeSent   OutcomeResult = "sent"
	OutcomeFailed OutcomeResult = "failed"
)

// OutcomeRecord is an append-only audit entry for one attempted dispatch to
// one recipient group. Records are never mutated after creation and are not
// read back for control flow — the campaign cursor is the source of truth.
type OutcomeRecord struct {
	ID         string
	CampaignID string
	UserID     string
	GroupID    string
	Result     OutcomeResult
	Detail     *string // failure detail, nil on success
	SentAt     time.Time
}
