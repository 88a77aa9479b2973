package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx/types"

	"github.com/kkkkikiki/groupbuy/internal/model"
)

const orderColumns = `id, campaign_id, offer_id, participant_id, supplier_id, quantity, status,
		fulfillment_order_id, metadata, ordered_by, created_at, updated_at`

// OrderRepository handles group-buy order data operations
type OrderRepository struct{}

// NewOrderRepository creates a new order repository
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{}
}

// CreateOrder inserts a new order and fills in its timestamps.
// A second non-cancelled order for the same offer and participant yields ErrActiveOrderExists.
func (r *OrderRepository) CreateOrder(ctx context.Context, db DBExecutor, order *model.Order) error {
	query := `
		INSERT INTO groupbuy_orders (id, campaign_id, offer_id, participant_id, supplier_id,
		                             quantity, status, metadata, ordered_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	var stamps struct {
		CreatedAt sql.NullTime `db:"created_at"`
		UpdatedAt sql.NullTime `db:"updated_at"`
	}
	err := db.GetContext(ctx, &stamps, query,
		order.ID, order.CampaignID, order.OfferID, order.ParticipantID, order.SupplierID,
		order.Quantity, string(order.Status), order.Metadata, order.OrderedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrActiveOrderExists
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	order.CreatedAt = stamps.CreatedAt.Time
	order.UpdatedAt = stamps.UpdatedAt.Time
	return nil
}

// GetOrder retrieves an order by ID
func (r *OrderRepository) GetOrder(ctx context.Context, db DBExecutor, id string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM groupbuy_orders WHERE id = $1`

	var order model.Order
	if err := db.GetContext(ctx, &order, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return &order, nil
}

// FindActiveOrder returns the participant's non-cancelled order on an offer
func (r *OrderRepository) FindActiveOrder(ctx context.Context, db DBExecutor, offerID, participantID string) (*model.Order, error) {
	return r.findActive(ctx, db, offerID, participantID, "")
}

// LockActiveOrder is FindActiveOrder with the row locked until the unit of work ends
func (r *OrderRepository) LockActiveOrder(ctx context.Context, db DBExecutor, offerID, participantID string) (*model.Order, error) {
	return r.findActive(ctx, db, offerID, participantID, " FOR UPDATE")
}

func (r *OrderRepository) findActive(ctx context.Context, db DBExecutor, offerID, participantID, lock string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM groupbuy_orders
		WHERE offer_id = $1 AND participant_id = $2 AND status <> 'cancelled'` + lock

	var order model.Order
	if err := db.GetContext(ctx, &order, query, offerID, participantID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find active order: %w", err)
	}

	return &order, nil
}

// HasOtherCampaignOrder reports whether the participant has any order in the
// campaign besides excludeID, regardless of status
func (r *OrderRepository) HasOtherCampaignOrder(ctx context.Context, db DBExecutor, campaignID, participantID, excludeID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM groupbuy_orders
			WHERE campaign_id = $1 AND participant_id = $2 AND id <> $3
		)
	`

	var exists bool
	if err := db.GetContext(ctx, &exists, query, campaignID, participantID, excludeID); err != nil {
		return false, fmt.Errorf("failed to check participation: %w", err)
	}

	return exists, nil
}

// UpdateOrder sets a pending order's quantity and returns the order as written.
// A nil orderedBy or an invalid metadata value keeps what the order already has.
func (r *OrderRepository) UpdateOrder(ctx context.Context, db DBExecutor, id string, quantity int64, orderedBy *string, metadata types.NullJSONText) (*model.Order, error) {
	query := `
		UPDATE groupbuy_orders
		SET quantity = $1, ordered_by = COALESCE($2, ordered_by), metadata = COALESCE($3, metadata), updated_at = NOW()
		WHERE id = $4 AND status = 'pending'
		RETURNING ` + orderColumns

	var order model.Order
	if err := db.GetContext(ctx, &order, query, quantity, orderedBy, metadata, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrConditionFailed
		}
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	return &order, nil
}

// TransitionStatus moves an order from one status to another, optionally
// recording the fulfillment linkage, and returns the order as written.
// ErrConditionFailed means the order was no longer in the expected status.
func (r *OrderRepository) TransitionStatus(ctx context.Context, db DBExecutor, id string, from, to model.OrderStatus, fulfillmentOrderID *string) (*model.Order, error) {
	query := `
		UPDATE groupbuy_orders
		SET status = $1, fulfillment_order_id = COALESCE($2, fulfillment_order_id), updated_at = NOW()
		WHERE id = $3 AND status = $4
		RETURNING ` + orderColumns

	var order model.Order
	if err := db.GetContext(ctx, &order, query, string(to), fulfillmentOrderID, id, string(from)); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrConditionFailed
		}
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	return &order, nil
}

// ListOrdersByParticipant lists a participant's orders, most recent first
func (r *OrderRepository) ListOrdersByParticipant(ctx context.Context, db DBExecutor, participantID string, filter model.OrderFilter) ([]model.Order, error) {
	where, args := filterClause([]string{"participant_id = $1"}, []interface{}{participantID}, filter)
	return r.list(ctx, db, where, args)
}

// ListOrdersByCampaign lists a campaign's orders, most recent first
func (r *OrderRepository) ListOrdersByCampaign(ctx context.Context, db DBExecutor, campaignID string, filter model.OrderFilter) ([]model.Order, error) {
	filter.CampaignID = ""
	where, args := filterClause([]string{"campaign_id = $1"}, []interface{}{campaignID}, filter)
	return r.list(ctx, db, where, args)
}

func (r *OrderRepository) list(ctx context.Context, db DBExecutor, where string, args []interface{}) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM groupbuy_orders
		WHERE ` + where + `
		ORDER BY created_at DESC, id DESC`

	orders := make([]model.Order, 0)
	if err := db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return orders, nil
}

func filterClause(conds []string, args []interface{}, filter model.OrderFilter) (string, []interface{}) {
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("campaign_id", filter.CampaignID)
	add("status", string(filter.Status))
	add("supplier_id", filter.SupplierID)
	return strings.Join(conds, " AND "), args
}

// QuantitySummary totals a campaign's non-cancelled quantity overall, per supplier and per product
func (r *OrderRepository) QuantitySummary(ctx context.Context, db DBExecutor, campaignID string) (*model.QuantitySummary, error) {
	summary := &model.QuantitySummary{
		BySupplier: make([]model.SupplierQuantity, 0),
		ByProduct:  make([]model.ProductQuantity, 0),
	}

	totalQuery := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM groupbuy_orders
		WHERE campaign_id = $1 AND status <> 'cancelled'
	`
	if err := db.GetContext(ctx, &summary.TotalQuantity, totalQuery, campaignID); err != nil {
		return nil, fmt.Errorf("failed to sum campaign quantity: %w", err)
	}

	supplierQuery := `
		SELECT supplier_id, SUM(quantity) AS quantity
		FROM groupbuy_orders
		WHERE campaign_id = $1 AND status <> 'cancelled'
		GROUP BY supplier_id
		ORDER BY supplier_id
	`
	if err := db.SelectContext(ctx, &summary.BySupplier, supplierQuery, campaignID); err != nil {
		return nil, fmt.Errorf("failed to sum quantity by supplier: %w", err)
	}

	productQuery := `
		SELECT f.product_id, o.supplier_id, SUM(o.quantity) AS quantity
		FROM groupbuy_orders o
		JOIN groupbuy_offers f ON f.id = o.offer_id
		WHERE o.campaign_id = $1 AND o.status <> 'cancelled'
		GROUP BY f.product_id, o.supplier_id
		ORDER BY f.product_id, o.supplier_id
	`
	if err := db.SelectContext(ctx, &summary.ByProduct, productQuery, campaignID); err != nil {
		return nil, fmt.Errorf("failed to sum quantity by product: %w", err)
	}

	return summary, nil
}

// QuantityByParticipant totals a campaign's non-cancelled quantity per participant
func (r *OrderRepository) QuantityByParticipant(ctx context.Context, db DBExecutor, campaignID string) ([]model.ParticipantQuantity, error) {
	query := `
		SELECT participant_id, SUM(quantity) AS quantity
		FROM groupbuy_orders
		WHERE campaign_id = $1 AND status <> 'cancelled'
		GROUP BY participant_id
		ORDER BY participant_id
	`

	result := make([]model.ParticipantQuantity, 0)
	if err := db.SelectContext(ctx, &result, query, campaignID); err != nil {
		return nil, fmt.Errorf("failed to sum quantity by participant: %w", err)
	}

	return result, nil
}
