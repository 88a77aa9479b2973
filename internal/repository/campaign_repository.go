package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kkkkikiki/groupbuy/internal/model"
)

// CampaignDeltas are the campaign totals moved by one engine operation
type CampaignDeltas struct {
	Ordered      int64
	Confirmed    int64
	Participants int64
}

// CampaignRepository handles campaign data operations
type CampaignRepository struct{}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository() *CampaignRepository {
	return &CampaignRepository{}
}

// GetCampaign retrieves a campaign by ID
func (r *CampaignRepository) GetCampaign(ctx context.Context, db DBExecutor, id string) (*model.Campaign, error) {
	query := `
		SELECT id, status, total_ordered_quantity, total_confirmed_quantity,
		       participant_count, created_at, updated_at
		FROM groupbuy_campaigns
		WHERE id = $1
	`

	var campaign model.Campaign
	if err := db.GetContext(ctx, &campaign, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	return &campaign, nil
}

// IncrementTotals applies the deltas to the campaign totals in one atomic statement
func (r *CampaignRepository) IncrementTotals(ctx context.Context, db DBExecutor, id string, d CampaignDeltas) error {
	deltas := nonZero(
		ColumnDelta{Column: "total_ordered_quantity", Delta: d.Ordered},
		ColumnDelta{Column: "total_confirmed_quantity", Delta: d.Confirmed},
		ColumnDelta{Column: "participant_count", Delta: d.Participants},
	)
	if len(deltas) == 0 {
		return nil
	}
	return IncrementColumns(ctx, db, campaignsTable, id, deltas...)
}
