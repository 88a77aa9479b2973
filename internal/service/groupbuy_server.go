package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"

	groupbuyv1 "github.com/kkkkikiki/groupbuy/internal/api/groupbuyv1"
	"github.com/kkkkikiki/groupbuy/internal/model"
	"github.com/kkkkikiki/groupbuy/internal/repository"
)

// GroupbuyServer implements the group-buy RPC service on top of an OrderEngine
type GroupbuyServer struct {
	engine  *OrderEngine
	timeout time.Duration
}

var _ groupbuyv1.GroupbuyServiceHandler = (*GroupbuyServer)(nil)

// NewGroupbuyServer creates a new GroupbuyServer instance. A positive timeout
// bounds each call; zero leaves the caller's deadline alone.
func NewGroupbuyServer(engine *OrderEngine, timeout time.Duration) *GroupbuyServer {
	return &GroupbuyServer{
		engine:  engine,
		timeout: timeout,
	}
}

func (s *GroupbuyServer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// CreateOrUpdateOrder places or re-sizes a participant's order on an offer
func (s *GroupbuyServer) CreateOrUpdateOrder(
	ctx context.Context,
	req *connect.Request[groupbuyv1.CreateOrUpdateOrderRequest],
) (*connect.Response[groupbuyv1.CreateOrUpdateOrderResponse], error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if req.Msg.OfferID == "" || req.Msg.ParticipantID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("offer_id and participant_id are required"))
	}

	in := CreateOrderInput{
		CampaignID:    req.Msg.CampaignID,
		OfferID:       req.Msg.OfferID,
		ParticipantID: req.Msg.ParticipantID,
		Quantity:      req.Msg.Quantity,
		Metadata:      req.Msg.Metadata,
	}
	if req.Msg.OrderedBy != "" {
		orderedBy := req.Msg.OrderedBy
		in.OrderedBy = &orderedBy
	}

	order, err := s.engine.CreateOrUpdateOrder(ctx, in)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&groupbuyv1.CreateOrUpdateOrderResponse{
		Order: toWireOrder(order),
	}), nil
}

// CancelOrder cancels a pending order
func (s *GroupbuyServer) CancelOrder(
	ctx context.Context,
	req *connect.Request[groupbuyv1.CancelOrderRequest],
) (*connect.Response[groupbuyv1.CancelOrderResponse], error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	order, err := s.engine.CancelOrder(ctx, req.Msg.OrderID)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&groupbuyv1.CancelOrderResponse{
		Order: toWireOrder(order),
	}), nil
}

// ConfirmOrder links a pending order to its fulfillment order
func (s *GroupbuyServer) ConfirmOrder(
	ctx context.Context,
	req *connect.Request[groupbuyv1.ConfirmOrderRequest],
) (*connect.Response[groupbuyv1.ConfirmOrderResponse], error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	order, err := s.engine.ConfirmOrder(ctx, req.Msg.OrderID, req.Msg.FulfillmentOrderID)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&groupbuyv1.ConfirmOrderResponse{
		Order: toWireOrder(order),
	}), nil
}

// CancelConfirmedOrder rolls back a confirmed order
func (s *GroupbuyServer) CancelConfirmedOrder(
	ctx context.Context,
	req *connect.Request[groupbuyv1.CancelConfirmedOrderRequest],
) (*connect.Response[groupbuyv1.CancelConfirmedOrderResponse], error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	order, err := s.engine.CancelConfirmedOrder(ctx, req.Msg.OrderID)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&groupbuyv1.CancelConfirmedOrderResponse{
		Order: toWireOrder(order),
	}), nil
}

// GetOrder returns one order
func (s *GroupbuyServer) GetOrder(
	ctx context.Context,
	req *connect.Request[groupbuyv1.GetOrderRequest],
) (*connect.Response[groupbuyv1.GetOrderResponse], error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	order, err := s.engine.GetOrder(ctx, req.Msg.OrderID)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&groupbuyv1.GetOrderResponse{
		Order: toWireOrder(order),
	}), nil
}

// ListParticipantOrders lists a participant's orders
func (s *GroupbuyServer) ListParticipantOrders(
	ctx context.Context,
	req *connect.Request[groupbuyv1.ListParticipantOrdersRequest],
) (*connect.Response[groupbuyv1.ListParticipantOrdersResponse], error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if req.Msg.ParticipantID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("participant_id is required"))
	}
	status, err := parseStatusFilter(req.Msg.Status)
	if err != nil {
		return nil, err
	}

	orders, err := s.engine.ListParticipantOrders(ctx, req.Msg.ParticipantID, model.OrderFilter{
		CampaignID: req.Msg.CampaignID,
		Status:     status,
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&groupbuyv1.ListParticipantOrdersResponse{
		Orders: toWireOrders(orders),
	}), nil
}

// ListCampaignOrders lists a campaign's orders
func (s *GroupbuyServer) ListCampaignOrders(
	ctx context.Context,
	req *connect.Request[groupbuyv1.ListCampaignOrdersRequest],
) (*connect.Response[groupbuyv1.ListCampaignOrdersResponse], error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if req.Msg.CampaignID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("campaign_id is required"))
	}
	status, err := parseStatusFilter(req.Msg.Status)
	if err != nil {
		return nil, err
	}

	orders, err := s.engine.ListCampaignOrders(ctx, req.Msg.CampaignID, model.OrderFilter{
		Status:     status,
		SupplierID: req.Msg.SupplierID,
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&groupbuyv1.ListCampaignOrdersResponse{
		Orders: toWireOrders(orders),
	}), nil
}

// GetQuantitySummary totals a campaign's live quantity overall, per supplier and per product
func (s *GroupbuyServer) GetQuantitySummary(
	ctx context.Context,
	req *connect.Request[groupbuyv1.GetQuantitySummaryRequest],
) (*connect.Response[groupbuyv1.GetQuantitySummaryResponse], error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	summary, err := s.engine.QuantitySummary(ctx, req.Msg.CampaignID)
	if err != nil {
		return nil, toConnectError(err)
	}

	res := &groupbuyv1.GetQuantitySummaryResponse{
		TotalQuantity: summary.TotalQuantity,
		BySupplier:    make([]groupbuyv1.SupplierQuantity, 0, len(summary.BySupplier)),
		ByProduct:     make([]groupbuyv1.ProductQuantity, 0, len(summary.ByProduct)),
	}
	for _, q := range summary.BySupplier {
		res.BySupplier = append(res.BySupplier, groupbuyv1.SupplierQuantity{
			SupplierID: q.SupplierID,
			Quantity:   q.Quantity,
		})
	}
	for _, q := range summary.ByProduct {
		res.ByProduct = append(res.ByProduct, groupbuyv1.ProductQuantity{
			ProductID:  q.ProductID,
			SupplierID: q.SupplierID,
			Quantity:   q.Quantity,
		})
	}

	return connect.NewResponse(res), nil
}

// GetQuantityByParticipant totals a campaign's live quantity per participant
func (s *GroupbuyServer) GetQuantityByParticipant(
	ctx context.Context,
	req *connect.Request[groupbuyv1.GetQuantityByParticipantRequest],
) (*connect.Response[groupbuyv1.GetQuantityByParticipantResponse], error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	quantities, err := s.engine.QuantityByParticipant(ctx, req.Msg.CampaignID)
	if err != nil {
		return nil, toConnectError(err)
	}

	participants := make([]groupbuyv1.ParticipantQuantity, 0, len(quantities))
	for _, q := range quantities {
		participants = append(participants, groupbuyv1.ParticipantQuantity{
			ParticipantID: q.ParticipantID,
			Quantity:      q.Quantity,
		})
	}

	return connect.NewResponse(&groupbuyv1.GetQuantityByParticipantResponse{
		Participants: participants,
	}), nil
}

func parseStatusFilter(raw string) (model.OrderStatus, error) {
	if raw == "" {
		return "", nil
	}
	status := model.OrderStatus(raw)
	if !status.Valid() {
		return "", connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown order status %q", raw))
	}
	return status, nil
}

// toConnectError maps engine errors onto connect codes. Domain rejections keep
// their code in the response metadata so clients can branch on it.
func toConnectError(err error) error {
	code, ok := CodeOf(err)
	if !ok {
		if errors.Is(err, repository.ErrActiveOrderExists) {
			return connect.NewError(connect.CodeAborted, err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return connect.NewError(connect.CodeDeadlineExceeded, err)
		}
		if errors.Is(err, context.Canceled) {
			return connect.NewError(connect.CodeCanceled, err)
		}
		log.Error().Err(err).Msg("service: request failed")
		return connect.NewError(connect.CodeInternal, err)
	}

	var connectCode connect.Code
	switch code {
	case CodeNotFound:
		connectCode = connect.CodeNotFound
	case CodeCapacityExceeded:
		connectCode = connect.CodeResourceExhausted
	case CodeInvalidQuantity, CodeInvalidLinkage:
		connectCode = connect.CodeInvalidArgument
	default:
		connectCode = connect.CodeFailedPrecondition
	}

	connectErr := connect.NewError(connectCode, err)
	connectErr.Meta().Set(groupbuyv1.ErrorCodeHeader, string(code))
	return connectErr
}

func toWireOrder(order *model.Order) *groupbuyv1.Order {
	if order == nil {
		return nil
	}
	wire := &groupbuyv1.Order{
		ID:            order.ID,
		CampaignID:    order.CampaignID,
		OfferID:       order.OfferID,
		ParticipantID: order.ParticipantID,
		SupplierID:    order.SupplierID,
		Quantity:      order.Quantity,
		Status:        string(order.Status),
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
	if order.FulfillmentOrderID != nil {
		wire.FulfillmentOrderID = *order.FulfillmentOrderID
	}
	if order.OrderedBy != nil {
		wire.OrderedBy = *order.OrderedBy
	}
	if order.Metadata.Valid {
		wire.Metadata = []byte(order.Metadata.JSONText)
	}
	return wire
}

func toWireOrders(orders []model.Order) []*groupbuyv1.Order {
	wire := make([]*groupbuyv1.Order, 0, len(orders))
	for i := range orders {
		wire = append(wire, toWireOrder(&orders[i]))
	}
	return wire
}
