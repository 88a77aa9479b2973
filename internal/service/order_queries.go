package service

import (
	"context"
	"fmt"

	"github.com/kkkkikiki/groupbuy/internal/model"
)

// GetOrder returns one order by id
func (e *OrderEngine) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	return e.loadOrder(ctx, orderID)
}

// ListParticipantOrders lists a participant's orders, most recent first
func (e *OrderEngine) ListParticipantOrders(ctx context.Context, participantID string, filter model.OrderFilter) ([]model.Order, error) {
	orders, err := e.orders.ListOrdersByParticipant(ctx, e.uow.Reader(), participantID, filter)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list participant orders: %w", err)
	}
	return orders, nil
}

// ListCampaignOrders lists a campaign's orders, optionally narrowed by status and supplier
func (e *OrderEngine) ListCampaignOrders(ctx context.Context, campaignID string, filter model.OrderFilter) ([]model.Order, error) {
	orders, err := e.orders.ListOrdersByCampaign(ctx, e.uow.Reader(), campaignID, filter)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list campaign orders: %w", err)
	}
	return orders, nil
}

// QuantitySummary totals a campaign's non-cancelled quantity overall, per supplier and per product
func (e *OrderEngine) QuantitySummary(ctx context.Context, campaignID string) (*model.QuantitySummary, error) {
	summary, err := e.orders.QuantitySummary(ctx, e.uow.Reader(), campaignID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to summarize campaign quantity: %w", err)
	}
	return summary, nil
}

// QuantityByParticipant totals a campaign's non-cancelled quantity per participant
func (e *OrderEngine) QuantityByParticipant(ctx context.Context, campaignID string) ([]model.ParticipantQuantity, error) {
	quantities, err := e.orders.QuantityByParticipant(ctx, e.uow.Reader(), campaignID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to summarize participant quantity: %w", err)
	}
	return quantities, nil
}
