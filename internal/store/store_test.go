package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillsync/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testOrderPayload(orderID string, qty float64) model.CreateOrderPayload {
	now := time.Now().UTC()
	return model.CreateOrderPayload{
		Order: model.Order{
			ID:            orderID,
			TenantID:      "t1",
			BranchID:      "b1",
			WarehouseID:   "w1",
			InvoiceNo:     "INV-B1-20260830-120000",
			CustomerName:  "Walk In",
			CustomerID:    "t1:walk in",
			Subtotal:      30,
			Total:         30,
			Paid:          30,
			PaymentMethod: "CASH",
			SyncStatus:    model.SyncPending,
			CreatedAt:     now,
		},
		Items: []model.OrderItem{
			{ID: orderID + "-i1", OrderID: orderID, ProductID: "p1", ProductName: "Coffee", Quantity: qty, UnitPrice: 10, LineTotal: 10 * qty},
		},
		Deltas: []model.StockDelta{
			{WarehouseID: "w1", ProductID: "p1", Quantity: -qty},
		},
		Customer: &model.Customer{ID: "t1:walk in", TenantID: "t1", Name: "Walk In", CreatedAt: now},
	}
}

func TestCreateOrderCommitsEverythingTogether(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateOrder(ctx, testOrderPayload("o1", 3)))

	o, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, model.SyncPending, o.SyncStatus)
	assert.Nil(t, o.SyncedAt)

	items, err := s.ListOrderItems(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Coffee", items[0].ProductName)

	st, err := s.GetStock(ctx, "w1", "p1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, -3.0, st.Quantity)
	assert.True(t, st.Dirty, "stock touched by an unconfirmed sale must be dirty")
}

func TestStockDeltaAppliesOnTopOfPulledQuantity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.MergeStock(ctx, []model.StockLevel{
		{TenantID: "t1", WarehouseID: "w1", ProductID: "p1", Quantity: 10, UpdatedAt: time.Now().UTC()},
	})
	require.NoError(t, err)

	require.NoError(t, s.CreateOrder(ctx, testOrderPayload("o1", 3)))

	st, err := s.GetStock(ctx, "w1", "p1")
	require.NoError(t, err)
	assert.Equal(t, 7.0, st.Quantity)
}

func TestMergeDiscardsRemoteWhenLocalDirtyIsNewer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	local := model.Product{
		ID: "p1", TenantID: "t1", Name: "Local Edit", Price: 12,
		IsActive: true, LocalUpdatedAt: time.Now().UTC(), Dirty: true,
	}
	require.NoError(t, s.SaveProduct(ctx, &local))

	// Remote copy is older than the local edit.
	merged, err := s.MergeProducts(ctx, []model.Product{
		{ID: "p1", TenantID: "t1", Name: "Stale Remote", Price: 9, IsActive: true,
			UpdatedAt: time.Now().UTC().Add(-time.Hour)},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, merged)

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Local Edit", p.Name)
	assert.True(t, p.Dirty)
}

func TestMergeAppliesRemoteWhenNewerThanDirtyLocal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	local := model.Product{
		ID: "p1", TenantID: "t1", Name: "Local Edit", Price: 12,
		IsActive: true, LocalUpdatedAt: time.Now().UTC().Add(-time.Hour), Dirty: true,
	}
	require.NoError(t, s.SaveProduct(ctx, &local))

	merged, err := s.MergeProducts(ctx, []model.Product{
		{ID: "p1", TenantID: "t1", Name: "Fresh Remote", Price: 9, IsActive: true,
			UpdatedAt: time.Now().UTC()},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, merged)

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Fresh Remote", p.Name)
	assert.False(t, p.Dirty, "merge clears dirty")
}

func TestMergeCleanLocalAlwaysReplaced(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	local := model.Product{
		ID: "p1", TenantID: "t1", Name: "Old Mirror", Price: 5,
		IsActive: true, LocalUpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.SaveProduct(ctx, &local))

	merged, err := s.MergeProducts(ctx, []model.Product{
		{ID: "p1", TenantID: "t1", Name: "Remote", Price: 6, IsActive: true,
			UpdatedAt: time.Now().UTC().Add(-time.Hour)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, merged)

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Remote", p.Name)
}

func TestMergeOrdersSkipsLocallyPendingOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateOrder(ctx, testOrderPayload("o1", 1)))

	customerID := func(tenantID, name string) string { return tenantID + ":" + name }
	syncedAt := time.Now().UTC()
	merged, err := s.MergeOrders(ctx, []model.Order{
		{ID: "o1", TenantID: "t1", BranchID: "b1", WarehouseID: "w1", Total: 999,
			PaymentMethod: "CASH", SyncStatus: model.SyncSynced, SyncedAt: &syncedAt,
			CreatedAt: time.Now().UTC()},
	}, nil, customerID)
	require.NoError(t, err)
	assert.Equal(t, 0, merged)

	o, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, model.SyncPending, o.SyncStatus)
	assert.Equal(t, 30.0, o.Total)
}

func TestQueueDrainsInCreationOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"o1", "o2", "o3"} {
		_, err := s.Enqueue(ctx, "t1", model.MutationCreateOrder, testOrderPayload(id, 1))
		require.NoError(t, err)
	}

	items, err := s.PendingQueue(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Less(t, items[0].ID, items[1].ID)
	assert.Less(t, items[1].ID, items[2].ID)

	// A failed item stays queued and keeps its order on the next drain.
	require.NoError(t, s.MarkQueueSyncing(ctx, items[0].ID))
	require.NoError(t, s.MarkQueueFailed(ctx, items[0].ID, assert.AnError))

	items, err = s.PendingQueue(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, model.QueueFailed, items[0].Status)
	assert.Equal(t, 1, items[0].Attempts)
	assert.NotEmpty(t, items[0].Error)
}

func TestReopenRequeuesInFlightItems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	item, err := s.Enqueue(ctx, "t1", model.MutationCreateOrder, testOrderPayload("o1", 1))
	require.NoError(t, err)
	require.NoError(t, s.MarkQueueSyncing(ctx, item.ID))
	require.NoError(t, s.Close())

	// A crash between marking and the push outcome must not strand the
	// item: the next open puts it back in front of the drain.
	s, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	items, err := s.PendingQueue(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, item.ID, items[0].ID)
	assert.Equal(t, model.QueuePending, items[0].Status)
	assert.Equal(t, 1, items[0].Attempts)

	n, err := s.QueueCount(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCompleteCreateOrderConfirmsAndDequeuesAtomically(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	payload := testOrderPayload("o1", 2)
	require.NoError(t, s.CreateOrder(ctx, payload))
	item, err := s.Enqueue(ctx, "t1", model.MutationCreateOrder, payload)
	require.NoError(t, err)

	require.NoError(t, s.CompleteCreateOrder(ctx, item.ID, "o1", time.Now().UTC()))

	o, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, model.SyncSynced, o.SyncStatus)
	require.NotNil(t, o.SyncedAt)

	n, err := s.QueueCount(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestListProductsCarriesWarehouseStock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := model.Product{ID: "p1", TenantID: "t1", Name: "Coffee", Price: 10,
		IsActive: true, LocalUpdatedAt: time.Now().UTC()}
	require.NoError(t, s.SaveProduct(ctx, &p))
	_, err := s.MergeStock(ctx, []model.StockLevel{
		{TenantID: "t1", WarehouseID: "w1", ProductID: "p1", Quantity: 4, UpdatedAt: time.Now().UTC()},
	})
	require.NoError(t, err)

	products, err := s.ListProducts(ctx, "t1", "w1")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 4.0, products[0].Stock)

	// A different warehouse reads zero, not the other warehouse's cache.
	products, err = s.ListProducts(ctx, "t1", "w2")
	require.NoError(t, err)
	assert.Equal(t, 0.0, products[0].Stock)
}

func TestSyncLogNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := s.AppendSyncLog(ctx, model.SyncLogEntry{
			TenantID:  "t1",
			StartedAt: time.Now().UTC().Add(time.Duration(i) * time.Minute),
			Pulled:    i,
		})
		require.NoError(t, err)
	}

	entries, err := s.ListSyncLog(ctx, "t1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2, entries[0].Pulled)
	assert.Equal(t, 1, entries[1].Pulled)
}

func TestMetaRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.GetMeta(ctx, "schema_version")
	require.NoError(t, err)
	assert.Equal(t, schemaVersion, v)

	require.NoError(t, s.SetMeta(ctx, "last_tenant", "t1"))
	v, err = s.GetMeta(ctx, "last_tenant")
	require.NoError(t, err)
	assert.Equal(t, "t1", v)
}
