package model

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// OrderStatus is the lifecycle state of a participant's order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Order is one participant's pledge against one offer.
// At most one non-cancelled order exists per (offer, participant).
type Order struct {
	ID                 string             `db:"id" json:"id"`
	CampaignID         string             `db:"campaign_id" json:"campaign_id"`
	OfferID            string             `db:"offer_id" json:"offer_id"`
	ParticipantID      string             `db:"participant_id" json:"participant_id"`
	SupplierID         string             `db:"supplier_id" json:"supplier_id"` // copied from the offer at creation
	Quantity           int64              `db:"quantity" json:"quantity"`
	Status             OrderStatus        `db:"status" json:"status"`
	FulfillmentOrderID *string            `db:"fulfillment_order_id" json:"fulfillment_order_id,omitempty"`
	Metadata           types.NullJSONText `db:"metadata" json:"metadata,omitempty"`
	OrderedBy          *string            `db:"ordered_by" json:"ordered_by,omitempty"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

// OrderFilter narrows order listings; empty fields do not filter
type OrderFilter struct {
	CampaignID string
	Status     OrderStatus
	SupplierID string
}
