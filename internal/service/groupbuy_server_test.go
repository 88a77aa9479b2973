package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	groupbuyv1 "github.com/kkkkikiki/groupbuy/internal/api/groupbuyv1"
	"github.com/kkkkikiki/groupbuy/internal/model"
	"github.com/kkkkikiki/groupbuy/internal/repository"
)

func newTestClient(t *testing.T, f *engineFixture) *groupbuyv1.GroupbuyServiceClient {
	t.Helper()

	path, handler := groupbuyv1.NewGroupbuyServiceHandler(NewGroupbuyServer(f.engine, 5*time.Second))
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return groupbuyv1.NewGroupbuyServiceClient(srv.Client(), srv.URL)
}

func TestGroupbuyServer_OrderLifecycle(t *testing.T) {
	f := newFixture(t)
	client := newTestClient(t, f)
	ctx := context.Background()

	created, err := client.CreateOrUpdateOrder(ctx, connect.NewRequest(&groupbuyv1.CreateOrUpdateOrderRequest{
		CampaignID:    "camp-1",
		OfferID:       "offer-1",
		ParticipantID: "P1",
		Quantity:      120,
		OrderedBy:     "operator-1",
		Metadata:      []byte(`{"note":"weekly restock"}`),
	}))
	require.NoError(t, err)
	order := created.Msg.Order
	require.NotNil(t, order)
	assert.Equal(t, "pending", order.Status)
	assert.Equal(t, int64(120), order.Quantity)
	assert.Equal(t, "sup-1", order.SupplierID)
	assert.Equal(t, "operator-1", order.OrderedBy)
	assert.JSONEq(t, `{"note":"weekly restock"}`, string(order.Metadata))

	confirmed, err := client.ConfirmOrder(ctx, connect.NewRequest(&groupbuyv1.ConfirmOrderRequest{
		OrderID:            order.ID,
		FulfillmentOrderID: "fo-77",
	}))
	require.NoError(t, err)
	assert.Equal(t, "confirmed", confirmed.Msg.Order.Status)
	assert.Equal(t, "fo-77", confirmed.Msg.Order.FulfillmentOrderID)
	assert.Equal(t, model.OfferStatusThresholdMet, f.ledger.offer("offer-1").Status)

	got, err := client.GetOrder(ctx, connect.NewRequest(&groupbuyv1.GetOrderRequest{OrderID: order.ID}))
	require.NoError(t, err)
	assert.Equal(t, "confirmed", got.Msg.Order.Status)

	rolledBack, err := client.CancelConfirmedOrder(ctx, connect.NewRequest(&groupbuyv1.CancelConfirmedOrderRequest{
		OrderID: order.ID,
	}))
	require.NoError(t, err)
	assert.Equal(t, "cancelled", rolledBack.Msg.Order.Status)
	assert.Equal(t, model.OfferStatusActive, f.ledger.offer("offer-1").Status)
	assertConsistent(t, f.ledger)
}

func TestGroupbuyServer_QueriesAndSummaries(t *testing.T) {
	f := newFixture(t)
	seedQueryOrders(t, f)
	client := newTestClient(t, f)
	ctx := context.Background()

	participantOrders, err := client.ListParticipantOrders(ctx, connect.NewRequest(&groupbuyv1.ListParticipantOrdersRequest{
		ParticipantID: "P1",
		Status:        "pending",
	}))
	require.NoError(t, err)
	require.Len(t, participantOrders.Msg.Orders, 1)
	assert.Equal(t, "offer-1", participantOrders.Msg.Orders[0].OfferID)

	campaignOrders, err := client.ListCampaignOrders(ctx, connect.NewRequest(&groupbuyv1.ListCampaignOrdersRequest{
		CampaignID: "camp-1",
		SupplierID: "sup-2",
	}))
	require.NoError(t, err)
	assert.Len(t, campaignOrders.Msg.Orders, 2)

	summary, err := client.GetQuantitySummary(ctx, connect.NewRequest(&groupbuyv1.GetQuantitySummaryRequest{
		CampaignID: "camp-1",
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(13), summary.Msg.TotalQuantity)
	assert.Equal(t, []groupbuyv1.SupplierQuantity{
		{SupplierID: "sup-1", Quantity: 7},
		{SupplierID: "sup-2", Quantity: 6},
	}, summary.Msg.BySupplier)
	assert.Equal(t, []groupbuyv1.ProductQuantity{
		{ProductID: "prod-1", SupplierID: "sup-1", Quantity: 7},
		{ProductID: "prod-2", SupplierID: "sup-2", Quantity: 6},
	}, summary.Msg.ByProduct)

	byParticipant, err := client.GetQuantityByParticipant(ctx, connect.NewRequest(&groupbuyv1.GetQuantityByParticipantRequest{
		CampaignID: "camp-1",
	}))
	require.NoError(t, err)
	assert.Equal(t, []groupbuyv1.ParticipantQuantity{
		{ParticipantID: "P1", Quantity: 10},
		{ParticipantID: "P2", Quantity: 3},
	}, byParticipant.Msg.Participants)
}

func TestGroupbuyServer_ErrorMapping(t *testing.T) {
	f := newFixture(t)
	f.updateOffer("offer-2", func(o *model.Offer) { o.MaxTotalQuantity = model.Bounded(5) })
	client := newTestClient(t, f)
	ctx := context.Background()

	pending := f.place(t, "offer-1", "P1", 1)

	tests := []struct {
		name       string
		call       func() error
		wantCode   connect.Code
		wantDomain string
	}{
		{
			name: "capacity",
			call: func() error {
				_, err := client.CreateOrUpdateOrder(ctx, connect.NewRequest(&groupbuyv1.CreateOrUpdateOrderRequest{
					CampaignID: "camp-1", OfferID: "offer-2", ParticipantID: "P1", Quantity: 6,
				}))
				return err
			},
			wantCode:   connect.CodeResourceExhausted,
			wantDomain: "capacity_exceeded",
		},
		{
			name: "invalid quantity",
			call: func() error {
				_, err := client.CreateOrUpdateOrder(ctx, connect.NewRequest(&groupbuyv1.CreateOrUpdateOrderRequest{
					CampaignID: "camp-1", OfferID: "offer-1", ParticipantID: "P2", Quantity: 0,
				}))
				return err
			},
			wantCode:   connect.CodeInvalidArgument,
			wantDomain: "invalid_quantity",
		},
		{
			name: "unknown offer",
			call: func() error {
				_, err := client.CreateOrUpdateOrder(ctx, connect.NewRequest(&groupbuyv1.CreateOrUpdateOrderRequest{
					CampaignID: "camp-1", OfferID: "offer-x", ParticipantID: "P2", Quantity: 1,
				}))
				return err
			},
			wantCode:   connect.CodeNotFound,
			wantDomain: "not_found",
		},
		{
			name: "missing linkage",
			call: func() error {
				_, err := client.ConfirmOrder(ctx, connect.NewRequest(&groupbuyv1.ConfirmOrderRequest{OrderID: pending.ID}))
				return err
			},
			wantCode:   connect.CodeInvalidArgument,
			wantDomain: "invalid_linkage",
		},
		{
			name: "wrong cancel path",
			call: func() error {
				_, err := client.CancelConfirmedOrder(ctx, connect.NewRequest(&groupbuyv1.CancelConfirmedOrderRequest{OrderID: pending.ID}))
				return err
			},
			wantCode:   connect.CodeFailedPrecondition,
			wantDomain: "invalid_state_for_cancel",
		},
		{
			name: "unknown status filter",
			call: func() error {
				_, err := client.ListCampaignOrders(ctx, connect.NewRequest(&groupbuyv1.ListCampaignOrdersRequest{
					CampaignID: "camp-1", Status: "shipped",
				}))
				return err
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "missing participant",
			call: func() error {
				_, err := client.CreateOrUpdateOrder(ctx, connect.NewRequest(&groupbuyv1.CreateOrUpdateOrderRequest{
					CampaignID: "camp-1", OfferID: "offer-1", Quantity: 1,
				}))
				return err
			},
			wantCode: connect.CodeInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, connect.CodeOf(err))
			assert.Equal(t, tt.wantDomain, groupbuyv1.ErrorCode(err))
		})
	}
}

func TestToConnectError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want connect.Code
	}{
		{"campaign not active", newError(CodeCampaignNotActive, "campaign c is draft"), connect.CodeFailedPrecondition},
		{"after window", ErrAfterWindow, connect.CodeFailedPrecondition},
		{"insert race exhausted", fmt.Errorf("service: %w", repository.ErrActiveOrderExists), connect.CodeAborted},
		{"deadline", fmt.Errorf("service: %w", context.DeadlineExceeded), connect.CodeDeadlineExceeded},
		{"store failure", errors.New("connection refused"), connect.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, connect.CodeOf(toConnectError(tt.err)))
		})
	}
}
