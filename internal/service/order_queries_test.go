package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkkkikiki/groupbuy/internal/model"
)

func seedQueryOrders(t *testing.T, f *engineFixture) (p1Offer1, p1Offer2, p2Offer1, p3Offer2 *model.Order) {
	t.Helper()
	ctx := context.Background()

	p1Offer1 = f.place(t, "offer-1", "P1", 4)
	p1Offer2 = f.place(t, "offer-2", "P1", 6)
	p2Offer1 = f.place(t, "offer-1", "P2", 3)
	p3Offer2 = f.place(t, "offer-2", "P3", 9)

	f.confirm(t, p1Offer2.ID)
	_, err := f.engine.CancelOrder(ctx, p3Offer2.ID)
	require.NoError(t, err)
	return
}

func orderIDs(orders []model.Order) []string {
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	return ids
}

func TestGetOrder(t *testing.T) {
	f := newFixture(t)
	placed := f.place(t, "offer-1", "P1", 2)

	got, err := f.engine.GetOrder(context.Background(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, placed.ID, got.ID)
	assert.Equal(t, int64(2), got.Quantity)

	_, err = f.engine.GetOrder(context.Background(), "order-x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListParticipantOrders(t *testing.T) {
	f := newFixture(t)
	p1Offer1, p1Offer2, _, _ := seedQueryOrders(t, f)
	ctx := context.Background()

	orders, err := f.engine.ListParticipantOrders(ctx, "P1", model.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{p1Offer2.ID, p1Offer1.ID}, orderIDs(orders), "most recent first")

	orders, err = f.engine.ListParticipantOrders(ctx, "P1", model.OrderFilter{Status: model.OrderStatusConfirmed})
	require.NoError(t, err)
	assert.Equal(t, []string{p1Offer2.ID}, orderIDs(orders))

	orders, err = f.engine.ListParticipantOrders(ctx, "P1", model.OrderFilter{CampaignID: "camp-other"})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestListCampaignOrders(t *testing.T) {
	f := newFixture(t)
	p1Offer1, p1Offer2, p2Offer1, p3Offer2 := seedQueryOrders(t, f)
	ctx := context.Background()

	orders, err := f.engine.ListCampaignOrders(ctx, "camp-1", model.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{p3Offer2.ID, p2Offer1.ID, p1Offer2.ID, p1Offer1.ID}, orderIDs(orders))

	orders, err = f.engine.ListCampaignOrders(ctx, "camp-1", model.OrderFilter{SupplierID: "sup-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{p2Offer1.ID, p1Offer1.ID}, orderIDs(orders))

	orders, err = f.engine.ListCampaignOrders(ctx, "camp-1", model.OrderFilter{
		SupplierID: "sup-2",
		Status:     model.OrderStatusCancelled,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{p3Offer2.ID}, orderIDs(orders))
}

func TestQuantitySummary_ExcludesCancelled(t *testing.T) {
	f := newFixture(t)
	seedQueryOrders(t, f)

	summary, err := f.engine.QuantitySummary(context.Background(), "camp-1")
	require.NoError(t, err)

	assert.Equal(t, int64(13), summary.TotalQuantity)
	assert.Equal(t, []model.SupplierQuantity{
		{SupplierID: "sup-1", Quantity: 7},
		{SupplierID: "sup-2", Quantity: 6},
	}, summary.BySupplier)
	assert.Equal(t, []model.ProductQuantity{
		{ProductID: "prod-1", SupplierID: "sup-1", Quantity: 7},
		{ProductID: "prod-2", SupplierID: "sup-2", Quantity: 6},
	}, summary.ByProduct)
}

func TestQuantityByParticipant(t *testing.T) {
	f := newFixture(t)
	seedQueryOrders(t, f)

	quantities, err := f.engine.QuantityByParticipant(context.Background(), "camp-1")
	require.NoError(t, err)
	assert.Equal(t, []model.ParticipantQuantity{
		{ParticipantID: "P1", Quantity: 10},
		{ParticipantID: "P2", Quantity: 3},
	}, quantities)
}
