package model

import (
	"time"
)

// CampaignStatus is the lifecycle state of a group-buy campaign.
// Campaign status is owned by campaign setup; the engine only reads it.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusEnded     CampaignStatus = "ended"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// Campaign represents a group-buy campaign and its running totals across all offers
type Campaign struct {
	ID                     string         `db:"id" json:"id"`
	Status                 CampaignStatus `db:"status" json:"status"`
	TotalOrderedQuantity   int64          `db:"total_ordered_quantity" json:"total_ordered_quantity"`
	TotalConfirmedQuantity int64          `db:"total_confirmed_quantity" json:"total_confirmed_quantity"`
	ParticipantCount       int64          `db:"participant_count" json:"participant_count"`
	CreatedAt              time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time      `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the campaign accepts orders
func (c Campaign) IsActive() bool {
	return c.Status == CampaignStatusActive
}
