package model

// SupplierQuantity is the non-cancelled quantity routed to one supplier
type SupplierQuantity struct {
	SupplierID string `db:"supplier_id" json:"supplier_id"`
	Quantity   int64  `db:"quantity" json:"quantity"`
}

// ProductQuantity is the non-cancelled quantity of one product from one supplier
type ProductQuantity struct {
	ProductID  string `db:"product_id" json:"product_id"`
	SupplierID string `db:"supplier_id" json:"supplier_id"`
	Quantity   int64  `db:"quantity" json:"quantity"`
}

// ParticipantQuantity is the non-cancelled quantity pledged by one participant
type ParticipantQuantity struct {
	ParticipantID string `db:"participant_id" json:"participant_id"`
	Quantity      int64  `db:"quantity" json:"quantity"`
}

// QuantitySummary aggregates a campaign's non-cancelled orders
type QuantitySummary struct {
	TotalQuantity int64              `json:"total_quantity"`
	BySupplier    []SupplierQuantity `json:"by_supplier"`
	ByProduct     []ProductQuantity  `json:"by_product"`
}
