package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kkkkikiki/groupbuy/internal/model"
)

const offerColumns = `id, campaign_id, product_id, supplier_id, min_total_quantity, max_total_quantity,
		ordered_quantity, confirmed_quantity, start_date, end_date, status, created_at, updated_at`

// capacityGuard keeps a positive ordered delta ($2) within max_total_quantity.
// It is evaluated against the row version the UPDATE locks, so two writers that
// both passed the pre-check cannot jointly overshoot the cap. The delta is
// compared with the headroom so the guard itself never overflows bigint.
const capacityGuard = `(max_total_quantity IS NULL OR $2 <= 0 OR $2 <= max_total_quantity - ordered_quantity)`

// OfferRepository handles campaign offer data operations
type OfferRepository struct{}

// NewOfferRepository creates a new offer repository
func NewOfferRepository() *OfferRepository {
	return &OfferRepository{}
}

// GetOffer retrieves an offer by ID
func (r *OfferRepository) GetOffer(ctx context.Context, db DBExecutor, id string) (*model.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM groupbuy_offers WHERE id = $1`

	var offer model.Offer
	if err := db.GetContext(ctx, &offer, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}

	return &offer, nil
}

// IncrementOrdered applies delta to ordered_quantity and returns the offer as written.
// ErrConditionFailed means the delta would exceed the offer's capacity;
// ErrNotFound means the offer row is gone.
func (r *OfferRepository) IncrementOrdered(ctx context.Context, db DBExecutor, id string, delta int64) (*model.Offer, error) {
	offer, err := r.increment(ctx, db, id, ColumnDelta{Column: "ordered_quantity", Delta: delta}, capacityGuard)
	if err != ErrConditionFailed {
		return offer, err
	}

	// The guard and a missing row look the same from the UPDATE
	if _, err := r.GetOffer(ctx, db, id); err != nil {
		return nil, err
	}
	return nil, ErrConditionFailed
}

// IncrementConfirmed applies delta to confirmed_quantity and returns the offer as written
func (r *OfferRepository) IncrementConfirmed(ctx context.Context, db DBExecutor, id string, delta int64) (*model.Offer, error) {
	offer, err := r.increment(ctx, db, id, ColumnDelta{Column: "confirmed_quantity", Delta: delta}, "")
	if err == ErrConditionFailed {
		return nil, ErrNotFound
	}
	return offer, err
}

func (r *OfferRepository) increment(ctx context.Context, db DBExecutor, id string, delta ColumnDelta, guard string) (*model.Offer, error) {
	query, args, err := incrementStatement(offersTable, []ColumnDelta{delta}, guard, offerColumns)
	if err != nil {
		return nil, err
	}

	var offer model.Offer
	if err := db.GetContext(ctx, &offer, query, append([]interface{}{id}, args...)...); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrConditionFailed
		}
		return nil, fmt.Errorf("failed to update offer %s: %w", delta.Column, err)
	}

	return &offer, nil
}

// TransitionStatus moves the offer from one status to another.
// ErrConditionFailed means the offer was no longer in the expected status.
func (r *OfferRepository) TransitionStatus(ctx context.Context, db DBExecutor, id string, from, to model.OfferStatus) error {
	query := `
		UPDATE groupbuy_offers
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := db.ExecContext(ctx, query, string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("failed to update offer status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrConditionFailed
	}

	return nil
}
