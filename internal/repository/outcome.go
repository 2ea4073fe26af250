package repository

import (
	"context"

	"github.com/nexusmsg/campaign-engine/internal/domain"
)

type OutcomeRepository interface {
	// Create appends one outcome record. Records are written in strict
	// cursor order for a given campaign and never mutated afterwards.
	Create(ctx context.Context, rec *domain.OutcomeRecord) (*domain.OutcomeRecord, error)

	// ListByCampaign returns all records for a campaign, oldest first.
	// Ownership is assumed to have been verified by the caller.
	ListByCampaign(ctx context.Context, campaignID string) ([]*domain.OutcomeRecord, error)
}
