package groupbuyv1

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// ServiceName is the fully-qualified name of the group-buy service
const ServiceName = "groupbuy.v1.GroupbuyService"

// ErrorCodeHeader carries the engine's stable error code on failed responses
const ErrorCodeHeader = "Groupbuy-Error-Code"

const (
	CreateOrUpdateOrderProcedure      = "/" + ServiceName + "/CreateOrUpdateOrder"
	CancelOrderProcedure              = "/" + ServiceName + "/CancelOrder"
	ConfirmOrderProcedure             = "/" + ServiceName + "/ConfirmOrder"
	CancelConfirmedOrderProcedure     = "/" + ServiceName + "/CancelConfirmedOrder"
	GetOrderProcedure                 = "/" + ServiceName + "/GetOrder"
	ListParticipantOrdersProcedure    = "/" + ServiceName + "/ListParticipantOrders"
	ListCampaignOrdersProcedure       = "/" + ServiceName + "/ListCampaignOrders"
	GetQuantitySummaryProcedure       = "/" + ServiceName + "/GetQuantitySummary"
	GetQuantityByParticipantProcedure = "/" + ServiceName + "/GetQuantityByParticipant"
)

// GroupbuyServiceHandler is implemented by the server
type GroupbuyServiceHandler interface {
	CreateOrUpdateOrder(context.Context, *connect.Request[CreateOrUpdateOrderRequest]) (*connect.Response[CreateOrUpdateOrderResponse], error)
	CancelOrder(context.Context, *connect.Request[CancelOrderRequest]) (*connect.Response[CancelOrderResponse], error)
	ConfirmOrder(context.Context, *connect.Request[ConfirmOrderRequest]) (*connect.Response[ConfirmOrderResponse], error)
	CancelConfirmedOrder(context.Context, *connect.Request[CancelConfirmedOrderRequest]) (*connect.Response[CancelConfirmedOrderResponse], error)
	GetOrder(context.Context, *connect.Request[GetOrderRequest]) (*connect.Response[GetOrderResponse], error)
	ListParticipantOrders(context.Context, *connect.Request[ListParticipantOrdersRequest]) (*connect.Response[ListParticipantOrdersResponse], error)
	ListCampaignOrders(context.Context, *connect.Request[ListCampaignOrdersRequest]) (*connect.Response[ListCampaignOrdersResponse], error)
	GetQuantitySummary(context.Context, *connect.Request[GetQuantitySummaryRequest]) (*connect.Response[GetQuantitySummaryResponse], error)
	GetQuantityByParticipant(context.Context, *connect.Request[GetQuantityByParticipantRequest]) (*connect.Response[GetQuantityByParticipantResponse], error)
}

// NewGroupbuyServiceHandler builds an HTTP handler serving every procedure of
// the service. It returns the path to mount the handler on.
func NewGroupbuyServiceHandler(svc GroupbuyServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)

	mux := http.NewServeMux()
	mux.Handle(CreateOrUpdateOrderProcedure, connect.NewUnaryHandler(CreateOrUpdateOrderProcedure, svc.CreateOrUpdateOrder, opts...))
	mux.Handle(CancelOrderProcedure, connect.NewUnaryHandler(CancelOrderProcedure, svc.CancelOrder, opts...))
	mux.Handle(ConfirmOrderProcedure, connect.NewUnaryHandler(ConfirmOrderProcedure, svc.ConfirmOrder, opts...))
	mux.Handle(CancelConfirmedOrderProcedure, connect.NewUnaryHandler(CancelConfirmedOrderProcedure, svc.CancelConfirmedOrder, opts...))
	mux.Handle(GetOrderProcedure, connect.NewUnaryHandler(GetOrderProcedure, svc.GetOrder, opts...))
	mux.Handle(ListParticipantOrdersProcedure, connect.NewUnaryHandler(ListParticipantOrdersProcedure, svc.ListParticipantOrders, opts...))
	mux.Handle(ListCampaignOrdersProcedure, connect.NewUnaryHandler(ListCampaignOrdersProcedure, svc.ListCampaignOrders, opts...))
	mux.Handle(GetQuantitySummaryProcedure, connect.NewUnaryHandler(GetQuantitySummaryProcedure, svc.GetQuantitySummary, opts...))
	mux.Handle(GetQuantityByParticipantProcedure, connect.NewUnaryHandler(GetQuantityByParticipantProcedure, svc.GetQuantityByParticipant, opts...))

	return "/" + ServiceName + "/", mux
}

// GroupbuyServiceClient calls the service over connect with JSON bodies
type GroupbuyServiceClient struct {
	createOrUpdateOrder      *connect.Client[CreateOrUpdateOrderRequest, CreateOrUpdateOrderResponse]
	cancelOrder              *connect.Client[CancelOrderRequest, CancelOrderResponse]
	confirmOrder             *connect.Client[ConfirmOrderRequest, ConfirmOrderResponse]
	cancelConfirmedOrder     *connect.Client[CancelConfirmedOrderRequest, CancelConfirmedOrderResponse]
	getOrder                 *connect.Client[GetOrderRequest, GetOrderResponse]
	listParticipantOrders    *connect.Client[ListParticipantOrdersRequest, ListParticipantOrdersResponse]
	listCampaignOrders       *connect.Client[ListCampaignOrdersRequest, ListCampaignOrdersResponse]
	getQuantitySummary       *connect.Client[GetQuantitySummaryRequest, GetQuantitySummaryResponse]
	getQuantityByParticipant *connect.Client[GetQuantityByParticipantRequest, GetQuantityByParticipantResponse]
}

// NewGroupbuyServiceClient creates a client for the service at baseURL
func NewGroupbuyServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *GroupbuyServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)

	return &GroupbuyServiceClient{
		createOrUpdateOrder:      connect.NewClient[CreateOrUpdateOrderRequest, CreateOrUpdateOrderResponse](httpClient, baseURL+CreateOrUpdateOrderProcedure, opts...),
		cancelOrder:              connect.NewClient[CancelOrderRequest, CancelOrderResponse](httpClient, baseURL+CancelOrderProcedure, opts...),
		confirmOrder:             connect.NewClient[ConfirmOrderRequest, ConfirmOrderResponse](httpClient, baseURL+ConfirmOrderProcedure, opts...),
		cancelConfirmedOrder:     connect.NewClient[CancelConfirmedOrderRequest, CancelConfirmedOrderResponse](httpClient, baseURL+CancelConfirmedOrderProcedure, opts...),
		getOrder:                 connect.NewClient[GetOrderRequest, GetOrderResponse](httpClient, baseURL+GetOrderProcedure, opts...),
		listParticipantOrders:    connect.NewClient[ListParticipantOrdersRequest, ListParticipantOrdersResponse](httpClient, baseURL+ListParticipantOrdersProcedure, opts...),
		listCampaignOrders:       connect.NewClient[ListCampaignOrdersRequest, ListCampaignOrdersResponse](httpClient, baseURL+ListCampaignOrdersProcedure, opts...),
		getQuantitySummary:       connect.NewClient[GetQuantitySummaryRequest, GetQuantitySummaryResponse](httpClient, baseURL+GetQuantitySummaryProcedure, opts...),
		getQuantityByParticipant: connect.NewClient[GetQuantityByParticipantRequest, GetQuantityByParticipantResponse](httpClient, baseURL+GetQuantityByParticipantProcedure, opts...),
	}
}

func (c *GroupbuyServiceClient) CreateOrUpdateOrder(ctx context.Context, req *connect.Request[CreateOrUpdateOrderRequest]) (*connect.Response[CreateOrUpdateOrderResponse], error) {
	return c.createOrUpdateOrder.CallUnary(ctx, req)
}

func (c *GroupbuyServiceClient) CancelOrder(ctx context.Context, req *connect.Request[CancelOrderRequest]) (*connect.Response[CancelOrderResponse], error) {
	return c.cancelOrder.CallUnary(ctx, req)
}

func (c *GroupbuyServiceClient) ConfirmOrder(ctx context.Context, req *connect.Request[ConfirmOrderRequest]) (*connect.Response[ConfirmOrderResponse], error) {
	return c.confirmOrder.CallUnary(ctx, req)
}

func (c *GroupbuyServiceClient) CancelConfirmedOrder(ctx context.Context, req *connect.Request[CancelConfirmedOrderRequest]) (*connect.Response[CancelConfirmedOrderResponse], error) {
	return c.cancelConfirmedOrder.CallUnary(ctx, req)
}

func (c *GroupbuyServiceClient) GetOrder(ctx context.Context, req *connect.Request[GetOrderRequest]) (*connect.Response[GetOrderResponse], error) {
	return c.getOrder.CallUnary(ctx, req)
}

func (c *GroupbuyServiceClient) ListParticipantOrders(ctx context.Context, req *connect.Request[ListParticipantOrdersRequest]) (*connect.Response[ListParticipantOrdersResponse], error) {
	return c.listParticipantOrders.CallUnary(ctx, req)
}

func (c *GroupbuyServiceClient) ListCampaignOrders(ctx context.Context, req *connect.Request[ListCampaignOrdersRequest]) (*connect.Response[ListCampaignOrdersResponse], error) {
	return c.listCampaignOrders.CallUnary(ctx, req)
}

func (c *GroupbuyServiceClient) GetQuantitySummary(ctx context.Context, req *connect.Request[GetQuantitySummaryRequest]) (*connect.Response[GetQuantitySummaryResponse], error) {
	return c.getQuantitySummary.CallUnary(ctx, req)
}

func (c *GroupbuyServiceClient) GetQuantityByParticipant(ctx context.Context, req *connect.Request[GetQuantityByParticipantRequest]) (*connect.Response[GetQuantityByParticipantResponse], error) {
	return c.getQuantityByParticipant.CallUnary(ctx, req)
}

// ErrorCode returns the engine error code attached to a failed call, if any
func ErrorCode(err error) string {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr.Meta().Get(ErrorCodeHeader)
	}
	return ""
}
