package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/rs/zerolog/log"

	"github.com/kkkkikiki/groupbuy/internal/metrics"
	"github.com/kkkkikiki/groupbuy/internal/model"
	"github.com/kkkkikiki/groupbuy/internal/repository"
)

// CampaignStore is the campaign side of the ledger
type CampaignStore interface {
	GetCampaign(ctx context.Context, db repository.DBExecutor, id string) (*model.Campaign, error)
	IncrementTotals(ctx context.Context, db repository.DBExecutor, id string, d repository.CampaignDeltas) error
}

// OfferStore is the offer side of the ledger
type OfferStore interface {
	GetOffer(ctx context.Context, db repository.DBExecutor, id string) (*model.Offer, error)
	IncrementOrdered(ctx context.Context, db repository.DBExecutor, id string, delta int64) (*model.Offer, error)
	IncrementConfirmed(ctx context.Context, db repository.DBExecutor, id string, delta int64) (*model.Offer, error)
	TransitionStatus(ctx context.Context, db repository.DBExecutor, id string, from, to model.OfferStatus) error
}

// OrderStore is the order side of the ledger
type OrderStore interface {
	CreateOrder(ctx context.Context, db repository.DBExecutor, order *model.Order) error
	GetOrder(ctx context.Context, db repository.DBExecutor, id string) (*model.Order, error)
	FindActiveOrder(ctx context.Context, db repository.DBExecutor, offerID, participantID string) (*model.Order, error)
	LockActiveOrder(ctx context.Context, db repository.DBExecutor, offerID, participantID string) (*model.Order, error)
	HasOtherCampaignOrder(ctx context.Context, db repository.DBExecutor, campaignID, participantID, excludeID string) (bool, error)
	UpdateOrder(ctx context.Context, db repository.DBExecutor, id string, quantity int64, orderedBy *string, metadata types.NullJSONText) (*model.Order, error)
	TransitionStatus(ctx context.Context, db repository.DBExecutor, id string, from, to model.OrderStatus, fulfillmentOrderID *string) (*model.Order, error)
	ListOrdersByParticipant(ctx context.Context, db repository.DBExecutor, participantID string, filter model.OrderFilter) ([]model.Order, error)
	ListOrdersByCampaign(ctx context.Context, db repository.DBExecutor, campaignID string, filter model.OrderFilter) ([]model.Order, error)
	QuantitySummary(ctx context.Context, db repository.DBExecutor, campaignID string) (*model.QuantitySummary, error)
	QuantityByParticipant(ctx context.Context, db repository.DBExecutor, campaignID string) ([]model.ParticipantQuantity, error)
}

// UnitOfWorkFactory opens units of work and hands out the executor for plain reads
type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (repository.UnitOfWork, error)
	Reader() repository.DBExecutor
}

// OrderEngine accepts, counts, confirms and cancels group-buy order quantities.
//
// Every mutation runs in one unit of work. Counters are only ever moved with
// atomic delta updates, and threshold decisions read the offer row as written
// by that update, so concurrent writers need no in-process locking.
type OrderEngine struct {
	campaigns CampaignStore
	offers    OfferStore
	orders    OrderStore
	uow       UnitOfWorkFactory

	now           func() time.Time
	newID         func() string
	insertRetries int
}

// EngineOption configures an OrderEngine
type EngineOption func(*OrderEngine)

// WithClock overrides the time source used for order window checks
func WithClock(now func() time.Time) EngineOption {
	return func(e *OrderEngine) { e.now = now }
}

// WithIDGenerator overrides how new order ids are minted
func WithIDGenerator(newID func() string) EngineOption {
	return func(e *OrderEngine) { e.newID = newID }
}

// WithInsertRetries bounds how often a lost first-order insert race is retried as an update
func WithInsertRetries(n int) EngineOption {
	return func(e *OrderEngine) {
		if n >= 0 {
			e.insertRetries = n
		}
	}
}

// NewOrderEngine creates a new OrderEngine instance
func NewOrderEngine(campaigns CampaignStore, offers OfferStore, orders OrderStore, uow UnitOfWorkFactory, opts ...EngineOption) *OrderEngine {
	e := &OrderEngine{
		campaigns:     campaigns,
		offers:        offers,
		orders:        orders,
		uow:           uow,
		now:           time.Now,
		newID:         func() string { return uuid.NewString() },
		insertRetries: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateOrderInput is a participant's order request against an offer.
// On a re-order, a nil OrderedBy or empty Metadata keeps the stored value.
type CreateOrderInput struct {
	CampaignID    string
	OfferID       string
	ParticipantID string
	Quantity      int64
	OrderedBy     *string
	Metadata      json.RawMessage
}

// errRetryAsUpdate signals that a concurrent first-time order won the insert
var errRetryAsUpdate = errors.New("active order inserted concurrently")

// CreateOrUpdateOrder places the participant's order on the offer, or moves an
// existing pending order to the requested quantity. Only the net change is
// applied to the offer and campaign counters.
func (e *OrderEngine) CreateOrUpdateOrder(ctx context.Context, in CreateOrderInput) (order *model.Order, err error) {
	defer observe("create_or_update_order", time.Now(), &err)

	offer, err := e.validateOrder(ctx, in)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		order, err = e.placeOrder(ctx, offer, in)
		if !errors.Is(err, errRetryAsUpdate) {
			return order, err
		}
		metrics.RecordInsertConflict()
		if attempt >= e.insertRetries {
			return nil, fmt.Errorf("service: order for participant %s on offer %s: %w",
				in.ParticipantID, in.OfferID, repository.ErrActiveOrderExists)
		}
		log.Warn().
			Str("offer_id", in.OfferID).
			Str("participant_id", in.ParticipantID).
			Int("attempt", attempt+1).
			Msg("service: concurrent first order detected, retrying as update")
	}
}

// validateOrder checks the business rules against current state before any write
func (e *OrderEngine) validateOrder(ctx context.Context, in CreateOrderInput) (*model.Offer, error) {
	reader := e.uow.Reader()

	offer, err := e.offers.GetOffer(ctx, reader, in.OfferID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(CodeNotFound, "offer %s not found", in.OfferID)
		}
		return nil, fmt.Errorf("service: failed to get offer: %w", err)
	}
	if in.CampaignID != "" && offer.CampaignID != in.CampaignID {
		return nil, newError(CodeNotFound, "offer %s not found in campaign %s", in.OfferID, in.CampaignID)
	}

	campaign, err := e.campaigns.GetCampaign(ctx, reader, offer.CampaignID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(CodeNotFound, "campaign %s not found", offer.CampaignID)
		}
		return nil, fmt.Errorf("service: failed to get campaign: %w", err)
	}
	if !campaign.IsActive() {
		return nil, newError(CodeCampaignNotActive, "campaign %s is %s, not active", campaign.ID, campaign.Status)
	}

	if offer.Status == model.OfferStatusClosed {
		return nil, newError(CodeOfferClosed, "offer %s is closed", offer.ID)
	}

	switch offer.Window(e.now()) {
	case model.WindowNotStarted:
		return nil, newError(CodeBeforeWindow, "offer %s opens at %s", offer.ID, offer.StartDate.Format(time.RFC3339))
	case model.WindowEnded:
		return nil, newError(CodeAfterWindow, "offer %s closed at %s", offer.ID, offer.EndDate.Format(time.RFC3339))
	}

	existing, err := e.orders.FindActiveOrder(ctx, reader, offer.ID, in.ParticipantID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("service: failed to find active order: %w", err)
	}
	delta := in.Quantity
	if existing != nil {
		delta -= existing.Quantity
	}
	if !offer.MaxTotalQuantity.Admits(offer.OrderedQuantity, delta) {
		return nil, newError(CodeCapacityExceeded, "offer %s (%s, ordered %d) cannot take %d more",
			offer.ID, offer.MaxTotalQuantity, offer.OrderedQuantity, delta)
	}

	if in.Quantity < 1 {
		return nil, newError(CodeInvalidQuantity, "quantity must be at least 1, got %d", in.Quantity)
	}

	if existing != nil && existing.Status != model.OrderStatusPending {
		return nil, newError(CodeInvalidStateForUpdate, "order %s is %s and can no longer be changed", existing.ID, existing.Status)
	}

	return offer, nil
}

// placeOrder performs the order upsert and counter deltas in one unit of work
func (e *OrderEngine) placeOrder(ctx context.Context, offer *model.Offer, in CreateOrderInput) (*model.Order, error) {
	tx, err := e.uow.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	defer tx.Rollback()

	var (
		order        *model.Order
		delta        int64
		participants int64
	)

	existing, err := e.orders.LockActiveOrder(ctx, tx, offer.ID, in.ParticipantID)
	switch {
	case err == nil:
		if existing.Status != model.OrderStatusPending {
			return nil, newError(CodeInvalidStateForUpdate, "order %s is %s and can no longer be changed", existing.ID, existing.Status)
		}
		delta = in.Quantity - existing.Quantity
		order = existing
		if delta != 0 || in.OrderedBy != nil || len(in.Metadata) > 0 {
			if order, err = e.orders.UpdateOrder(ctx, tx, existing.ID, in.Quantity, in.OrderedBy, jsonMetadata(in.Metadata)); err != nil {
				return nil, fmt.Errorf("service: failed to update order: %w", err)
			}
		}

	case errors.Is(err, repository.ErrNotFound):
		order = &model.Order{
			ID:            e.newID(),
			CampaignID:    offer.CampaignID,
			OfferID:       offer.ID,
			ParticipantID: in.ParticipantID,
			SupplierID:    offer.SupplierID,
			Quantity:      in.Quantity,
			Status:        model.OrderStatusPending,
			OrderedBy:     in.OrderedBy,
			Metadata:      jsonMetadata(in.Metadata),
		}
		if err := e.orders.CreateOrder(ctx, tx, order); err != nil {
			if errors.Is(err, repository.ErrActiveOrderExists) {
				return nil, errRetryAsUpdate
			}
			return nil, fmt.Errorf("service: failed to create order: %w", err)
		}
		delta = in.Quantity

		seen, err := e.orders.HasOtherCampaignOrder(ctx, tx, offer.CampaignID, in.ParticipantID, order.ID)
		if err != nil {
			return nil, fmt.Errorf("service: %w", err)
		}
		if !seen {
			participants = 1
		}

	default:
		return nil, fmt.Errorf("service: failed to lock active order: %w", err)
	}

	if delta != 0 {
		if _, err := e.offers.IncrementOrdered(ctx, tx, offer.ID, delta); err != nil {
			if errors.Is(err, repository.ErrConditionFailed) {
				log.Warn().Str("offer_id", offer.ID).Int64("delta", delta).Msg("service: capacity guard rejected concurrent order")
				return nil, newError(CodeCapacityExceeded, "offer %s capacity exceeded by concurrent orders", offer.ID)
			}
			if errors.Is(err, repository.ErrNotFound) {
				return nil, newError(CodeNotFound, "offer %s not found", offer.ID)
			}
			return nil, fmt.Errorf("service: %w", err)
		}
	}
	if err := e.campaigns.IncrementTotals(ctx, tx, offer.CampaignID, repository.CampaignDeltas{
		Ordered:      delta,
		Participants: participants,
	}); err != nil {
		return nil, fmt.Errorf("service: failed to update campaign totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("service: failed to commit transaction: %w", err)
	}

	log.Info().
		Str("order_id", order.ID).
		Str("offer_id", offer.ID).
		Str("participant_id", in.ParticipantID).
		Int64("quantity", order.Quantity).
		Int64("delta", delta).
		Bool("new_participant", participants > 0).
		Msg("service: order placed")

	return order, nil
}

func jsonMetadata(raw json.RawMessage) types.NullJSONText {
	if len(raw) == 0 {
		return types.NullJSONText{}
	}
	return types.NullJSONText{JSONText: types.JSONText(raw), Valid: true}
}

// observe records the operation latency, classifying domain rejections apart from failures
func observe(operation string, start time.Time, err *error) {
	status := "success"
	if *err != nil {
		status = "failure"
		if _, ok := CodeOf(*err); ok {
			status = "rejected"
		}
	}
	metrics.RecordOperationDuration(operation, status, time.Since(start).Seconds())
}
