package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-backoffice/cache"
	"github.com/yeremiapane/restaurant-backoffice/models"
)

func ids(orders []models.Order) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.ID
	}
	return out
}

func TestDeriveOrderListSortsByProgressWhenAllStatuses(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	orders := []models.Order{
		{ID: "c", OrderType: models.OrderTypeDelivery, Status: models.StatusCompleted, CreatedAt: base.Add(3 * time.Minute)},
		{ID: "p", OrderType: models.OrderTypeDelivery, Status: models.StatusPending, CreatedAt: base},
		{ID: "r", OrderType: models.OrderTypeDelivery, Status: models.StatusPreparing, CreatedAt: base.Add(time.Minute)},
	}

	got := DeriveOrderList(orders, ListFilter{Status: FilterAll})
	assert.Equal(t, []string{"p", "r", "c"}, ids(got))

	reversed := []models.Order{orders[2], orders[1], orders[0]}
	assert.Equal(t, []string{"p", "r", "c"}, ids(DeriveOrderList(reversed, ListFilter{})))

	// input untouched
	assert.Equal(t, "c", orders[0].ID)
}

func TestDeriveOrderListNewestFirstWithinStatus(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	orders := []models.Order{
		{ID: "old", Status: models.StatusPending, OrderType: models.OrderTypePickup, CreatedAt: base},
		{ID: "new", Status: models.StatusPending, OrderType: models.OrderTypeDelivery, CreatedAt: base.Add(time.Hour)},
		{ID: "done", Status: models.StatusCompleted, OrderType: models.OrderTypePickup, CreatedAt: base.Add(2 * time.Hour)},
	}

	assert.Equal(t, []string{"new", "old", "done"}, ids(DeriveOrderList(orders, ListFilter{})))
	assert.Equal(t, []string{"new", "old"}, ids(DeriveOrderList(orders, ListFilter{Status: "pending"})))
	assert.Equal(t, []string{"old", "done"}, ids(DeriveOrderList(orders, ListFilter{Type: "PICKUP"})))
	assert.Empty(t, DeriveOrderList(orders, ListFilter{Type: "delivery", Status: "completed"}))
}

func TestDeriveOrderListSearch(t *testing.T) {
	orders := []models.Order{
		{ID: "a1", CustomerName: "João Silva", Status: models.StatusPending},
		{ID: "b2", CustomerName: "Maria Souza", Status: models.StatusPending},
	}

	got := DeriveOrderList(orders, ListFilter{Search: "maria"})
	require.Len(t, got, 1)
	assert.Equal(t, "Maria Souza", got[0].CustomerName)

	assert.Equal(t, []string{"a1"}, ids(DeriveOrderList(orders, ListFilter{Search: " A1 "})))
	assert.Len(t, DeriveOrderList(orders, ListFilter{Search: ""}), 2)
}

func TestPaginate(t *testing.T) {
	orders := make([]models.Order, 45)
	for i := range orders {
		orders[i] = models.Order{ID: string(rune('a' + i%26))}
	}

	first := Paginate(orders, 1, 0)
	assert.Len(t, first.Orders, 20)
	assert.Equal(t, 3, first.TotalPages)
	assert.Equal(t, 45, first.Total)

	last := Paginate(orders, 3, 20)
	assert.Len(t, last.Orders, 5)

	beyond := Paginate(orders, 9, 20)
	assert.NotNil(t, beyond.Orders)
	assert.Empty(t, beyond.Orders)

	empty := Paginate(nil, -1, 10)
	assert.Equal(t, 1, empty.Page)
	assert.Equal(t, 0, empty.TotalPages)
}

func TestOrderListViewMemoizesUntilCacheChanges(t *testing.T) {
	server := &fakeServer{orders: threeOrders()}
	c := cache.New(testLogger())
	defer c.Close()
	c.Register(OrdersKey, server.fetch)

	view := NewOrderListView(c)
	ctx := context.Background()

	first, err := view.View(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"o1", "o2", "o3"}, ids(first))

	again, err := view.View(ctx, ListFilter{Type: " "})
	require.NoError(t, err)
	assert.Same(t, &first[0], &again[0])
	assert.Equal(t, int32(1), atomic.LoadInt32(&server.fetches))

	c.Update(OrdersKey, func(v any) any {
		return patchStatus(v.([]models.Order), "o3", models.StatusPending)
	})
	changed, err := view.View(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"o3", "o1", "o2"}, ids(changed))

	pickups, err := view.View(ctx, ListFilter{Type: "pickup"})
	require.NoError(t, err)
	assert.Equal(t, []string{"o3"}, ids(pickups))
}
