package groupbuyv1

import (
	"encoding/json"
	"time"
)

// Order is the wire form of a group-buy order
type Order struct {
	ID                 string          `json:"id"`
	CampaignID         string          `json:"campaign_id"`
	OfferID            string          `json:"offer_id"`
	ParticipantID      string          `json:"participant_id"`
	SupplierID         string          `json:"supplier_id"`
	Quantity           int64           `json:"quantity"`
	Status             string          `json:"status"`
	FulfillmentOrderID string          `json:"fulfillment_order_id,omitempty"`
	OrderedBy          string          `json:"ordered_by,omitempty"`
	Metadata           json.RawMessage `json:"metadata,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type CreateOrUpdateOrderRequest struct {
	CampaignID    string          `json:"campaign_id"`
	OfferID       string          `json:"offer_id"`
	ParticipantID string          `json:"participant_id"`
	Quantity      int64           `json:"quantity"`
	OrderedBy     string          `json:"ordered_by,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

type CreateOrUpdateOrderResponse struct {
	Order *Order `json:"order"`
}

type CancelOrderRequest struct {
	OrderID string `json:"order_id"`
}

type CancelOrderResponse struct {
	Order *Order `json:"order"`
}

type ConfirmOrderRequest struct {
	OrderID            string `json:"order_id"`
	FulfillmentOrderID string `json:"fulfillment_order_id"`
}

type ConfirmOrderResponse struct {
	Order *Order `json:"order"`
}

type CancelConfirmedOrderRequest struct {
	OrderID string `json:"order_id"`
}

type CancelConfirmedOrderResponse struct {
	Order *Order `json:"order"`
}

type GetOrderRequest struct {
	OrderID string `json:"order_id"`
}

type GetOrderResponse struct {
	Order *Order `json:"order"`
}

type ListParticipantOrdersRequest struct {
	ParticipantID string `json:"participant_id"`
	CampaignID    string `json:"campaign_id,omitempty"`
	Status        string `json:"status,omitempty"`
}

type ListParticipantOrdersResponse struct {
	Orders []*Order `json:"orders"`
}

type ListCampaignOrdersRequest struct {
	CampaignID string `json:"campaign_id"`
	Status     string `json:"status,omitempty"`
	SupplierID string `json:"supplier_id,omitempty"`
}

type ListCampaignOrdersResponse struct {
	Orders []*Order `json:"orders"`
}

type SupplierQuantity struct {
	SupplierID string `json:"supplier_id"`
	Quantity   int64  `json:"quantity"`
}

type ProductQuantity struct {
	ProductID  string `json:"product_id"`
	SupplierID string `json:"supplier_id"`
	Quantity   int64  `json:"quantity"`
}

type ParticipantQuantity struct {
	ParticipantID string `json:"participant_id"`
	Quantity      int64  `json:"quantity"`
}

type GetQuantitySummaryRequest struct {
	CampaignID string `json:"campaign_id"`
}

type GetQuantitySummaryResponse struct {
	TotalQuantity int64              `json:"total_quantity"`
	BySupplier    []SupplierQuantity `json:"by_supplier"`
	ByProduct     []ProductQuantity  `json:"by_product"`
}

type GetQuantityByParticipantRequest struct {
	CampaignID string `json:"campaign_id"`
}

type GetQuantityByParticipantResponse struct {
	Participants []ParticipantQuantity `json:"participants"`
}
