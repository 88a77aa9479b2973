package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kkkkikiki/groupbuy/internal/metrics"
	"github.com/kkkkikiki/groupbuy/internal/model"
	"github.com/kkkkikiki/groupbuy/internal/repository"
)

// offerTransition is a threshold-driven offer status change made inside a unit of work
type offerTransition struct {
	offerID  string
	from, to model.OfferStatus
}

// CancelOrder cancels a pending order and releases its quantity from the ordered counters.
// Confirmed orders must go through CancelConfirmedOrder.
func (e *OrderEngine) CancelOrder(ctx context.Context, orderID string) (order *model.Order, err error) {
	defer observe("cancel_order", time.Now(), &err)

	current, err := e.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.Status != model.OrderStatusPending {
		return nil, newError(CodeInvalidStateForCancel, "order %s is %s; only pending orders can be cancelled", current.ID, current.Status)
	}

	tx, err := e.uow.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	defer tx.Rollback()

	order, err = e.orders.TransitionStatus(ctx, tx, orderID, model.OrderStatusPending, model.OrderStatusCancelled, nil)
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, newError(CodeInvalidStateForCancel, "order %s is no longer pending", orderID)
		}
		return nil, fmt.Errorf("service: failed to cancel order: %w", err)
	}

	if _, err := e.offers.IncrementOrdered(ctx, tx, order.OfferID, -order.Quantity); err != nil {
		return nil, fmt.Errorf("service: failed to release offer quantity: %w", err)
	}
	if err := e.campaigns.IncrementTotals(ctx, tx, order.CampaignID, repository.CampaignDeltas{
		Ordered: -order.Quantity,
	}); err != nil {
		return nil, fmt.Errorf("service: failed to release campaign quantity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("service: failed to commit transaction: %w", err)
	}

	log.Info().Str("order_id", order.ID).Str("offer_id", order.OfferID).Int64("quantity", order.Quantity).Msg("service: pending order cancelled")
	return order, nil
}

// ConfirmOrder links a pending order to its fulfillment order and counts its
// quantity as confirmed. This is the only path by which an offer reaches threshold_met.
func (e *OrderEngine) ConfirmOrder(ctx context.Context, orderID, fulfillmentOrderID string) (order *model.Order, err error) {
	defer observe("confirm_order", time.Now(), &err)

	fulfillmentOrderID = strings.TrimSpace(fulfillmentOrderID)
	if fulfillmentOrderID == "" {
		return nil, ErrInvalidLinkage
	}

	current, err := e.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.Status != model.OrderStatusPending {
		return nil, newError(CodeInvalidStateForConfirm, "order %s is %s; only pending orders can be confirmed", current.ID, current.Status)
	}

	tx, err := e.uow.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	defer tx.Rollback()

	order, err = e.orders.TransitionStatus(ctx, tx, orderID, model.OrderStatusPending, model.OrderStatusConfirmed, &fulfillmentOrderID)
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, newError(CodeInvalidStateForConfirm, "order %s is no longer pending", orderID)
		}
		return nil, fmt.Errorf("service: failed to confirm order: %w", err)
	}

	offer, err := e.offers.IncrementConfirmed(ctx, tx, order.OfferID, order.Quantity)
	if err != nil {
		return nil, fmt.Errorf("service: failed to count confirmed quantity: %w", err)
	}
	if err := e.campaigns.IncrementTotals(ctx, tx, order.CampaignID, repository.CampaignDeltas{
		Confirmed: order.Quantity,
	}); err != nil {
		return nil, fmt.Errorf("service: failed to count campaign confirmed quantity: %w", err)
	}

	var transition *offerTransition
	if offer.CrossedThresholdUp() {
		if transition, err = e.transitionOffer(ctx, tx, offer.ID, model.OfferStatusActive, model.OfferStatusThresholdMet); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("service: failed to commit transaction: %w", err)
	}
	recordTransition(transition)

	log.Info().
		Str("order_id", order.ID).
		Str("offer_id", order.OfferID).
		Str("fulfillment_order_id", fulfillmentOrderID).
		Int64("confirmed_quantity", offer.ConfirmedQuantity).
		Int64("min_total_quantity", offer.MinTotalQuantity).
		Msg("service: order confirmed")
	return order, nil
}

// CancelConfirmedOrder cancels a confirmed order, rolling its quantity back out of
// both the confirmed and ordered counters. This is the only path by which an
// offer falls back from threshold_met to active.
func (e *OrderEngine) CancelConfirmedOrder(ctx context.Context, orderID string) (order *model.Order, err error) {
	defer observe("cancel_confirmed_order", time.Now(), &err)

	current, err := e.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.Status != model.OrderStatusConfirmed {
		return nil, newError(CodeInvalidStateForCancel, "order %s is %s; only confirmed orders can be rolled back", current.ID, current.Status)
	}

	tx, err := e.uow.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	defer tx.Rollback()

	order, err = e.orders.TransitionStatus(ctx, tx, orderID, model.OrderStatusConfirmed, model.OrderStatusCancelled, nil)
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, newError(CodeInvalidStateForCancel, "order %s is no longer confirmed", orderID)
		}
		return nil, fmt.Errorf("service: failed to cancel confirmed order: %w", err)
	}

	if _, err := e.offers.IncrementOrdered(ctx, tx, order.OfferID, -order.Quantity); err != nil {
		return nil, fmt.Errorf("service: failed to release offer quantity: %w", err)
	}
	offer, err := e.offers.IncrementConfirmed(ctx, tx, order.OfferID, -order.Quantity)
	if err != nil {
		return nil, fmt.Errorf("service: failed to roll back confirmed quantity: %w", err)
	}
	if err := e.campaigns.IncrementTotals(ctx, tx, order.CampaignID, repository.CampaignDeltas{
		Ordered:   -order.Quantity,
		Confirmed: -order.Quantity,
	}); err != nil {
		return nil, fmt.Errorf("service: failed to roll back campaign quantities: %w", err)
	}

	var transition *offerTransition
	if offer.CrossedThresholdDown() {
		if transition, err = e.transitionOffer(ctx, tx, offer.ID, model.OfferStatusThresholdMet, model.OfferStatusActive); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("service: failed to commit transaction: %w", err)
	}
	recordTransition(transition)

	log.Info().
		Str("order_id", order.ID).
		Str("offer_id", order.OfferID).
		Int64("confirmed_quantity", offer.ConfirmedQuantity).
		Msg("service: confirmed order cancelled")
	return order, nil
}

func (e *OrderEngine) loadOrder(ctx context.Context, orderID string) (*model.Order, error) {
	order, err := e.orders.GetOrder(ctx, e.uow.Reader(), orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(CodeNotFound, "order %s not found", orderID)
		}
		return nil, fmt.Errorf("service: failed to get order: %w", err)
	}
	return order, nil
}

// transitionOffer applies a guarded offer status change. The offer row is
// already locked by this unit of work's counter update, so a guard miss only
// means the status was changed outside the engine (e.g. closed) and is skipped.
func (e *OrderEngine) transitionOffer(ctx context.Context, tx repository.DBExecutor, offerID string, from, to model.OfferStatus) (*offerTransition, error) {
	err := e.offers.TransitionStatus(ctx, tx, offerID, from, to)
	if errors.Is(err, repository.ErrConditionFailed) {
		log.Debug().Str("offer_id", offerID).Str("from", string(from)).Str("to", string(to)).Msg("service: offer status already moved")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service: failed to update offer status: %w", err)
	}
	return &offerTransition{offerID: offerID, from: from, to: to}, nil
}

func recordTransition(t *offerTransition) {
	if t == nil {
		return
	}
	metrics.RecordOfferTransition(string(t.from), string(t.to))
	log.Info().Str("offer_id", t.offerID).Str("from", string(t.from)).Str("to", string(t.to)).Msg("service: offer status changed")
}
