package sync

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillsync/internal/connectivity"
	"tillsync/internal/model"
	"tillsync/internal/remote"
	"tillsync/internal/store"
)

// fakeRemote is a scriptable in-memory remote store.
type fakeRemote struct {
	mu sync.Mutex

	categories []remote.Category
	products   []remote.Product
	inventory  []remote.InventoryRow
	sales      map[string]remote.Sale
	saleItems  map[string][]remote.SaleItem

	fetchErr     error
	insertErrFor map[string]error

	insertCalls int
	adjustments []float64
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		sales:        make(map[string]remote.Sale),
		saleItems:    make(map[string][]remote.SaleItem),
		insertErrFor: make(map[string]error),
	}
}

func (f *fakeRemote) FetchCategories(ctx context.Context, tenantID string) ([]remote.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.categories, nil
}

func (f *fakeRemote) FetchProducts(ctx context.Context, tenantID string) ([]remote.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.products, nil
}

func (f *fakeRemote) FetchInventory(ctx context.Context, tenantID, warehouseID string) ([]remote.InventoryRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.inventory, nil
}

func (f *fakeRemote) FetchRecentSales(ctx context.Context, tenantID, branchID string, limit int) ([]remote.Sale, []remote.SaleItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, nil, f.fetchErr
	}
	var sales []remote.Sale
	var items []remote.SaleItem
	for id, s := range f.sales {
		sales = append(sales, s)
		items = append(items, f.saleItems[id]...)
	}
	return sales, items, nil
}

func (f *fakeRemote) SaleExists(ctx context.Context, saleID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sales[saleID]
	return ok, nil
}

func (f *fakeRemote) InsertSale(ctx context.Context, sale remote.Sale, items []remote.SaleItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if err := f.insertErrFor[sale.ID]; err != nil {
		return err
	}
	f.sales[sale.ID] = sale
	f.saleItems[sale.ID] = items
	return nil
}

func (f *fakeRemote) UpsertProduct(ctx context.Context, p remote.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.products {
		if f.products[i].ID == p.ID {
			f.products[i] = p
			return nil
		}
	}
	f.products = append(f.products, p)
	return nil
}

func (f *fakeRemote) UpsertCategory(ctx context.Context, c remote.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.categories {
		if f.categories[i].ID == c.ID {
			f.categories[i] = c
			return nil
		}
	}
	f.categories = append(f.categories, c)
	return nil
}

func (f *fakeRemote) AdjustInventory(ctx context.Context, tenantID, warehouseID, productID string, delta float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adjustments = append(f.adjustments, delta)
	return nil
}

var _ remote.Store = (*fakeRemote)(nil)

func newTestEngine(t *testing.T) (*Engine, *store.Store, *fakeRemote, *connectivity.Tracker) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	rs := newFakeRemote()
	tracker := connectivity.NewTracker(true)
	engine := NewEngine(st, rs, tracker, Config{OrdersPullLimit: 50})
	engine.SetSession(model.Session{TenantID: "t1", BranchID: "b1", WarehouseID: "w1", UserID: "u1"})
	return engine, st, rs, tracker
}

func TestSyncNowWithoutSession(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	engine.SetSession(model.Session{})

	err := engine.SyncNow(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestPullPopulatesLocalMirror(t *testing.T) {
	engine, st, rs, tracker := newTestEngine(t)
	now := time.Now().UTC()

	rs.categories = []remote.Category{
		{ID: "c1", TenantID: "t1", Name: "Drinks", IsActive: true, UpdatedAt: now},
	}
	rs.products = []remote.Product{
		{ID: "p1", TenantID: "t1", CategoryID: "c1", CategoryName: "Drinks", Name: "Coffee", Price: 10, IsActive: true, UpdatedAt: now},
	}
	rs.inventory = []remote.InventoryRow{
		{ID: "i1", TenantID: "t1", WarehouseID: "w1", ProductID: "p1", Quantity: 6, UpdatedAt: now},
		{ID: "i2", TenantID: "t1", WarehouseID: "w1", ProductID: "p1", Quantity: 4, UpdatedAt: now.Add(-time.Hour)},
	}

	require.NoError(t, engine.SyncNow(context.Background()))

	cats, err := st.ListCategories(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Drinks", cats[0].Name)

	products, err := st.ListProducts(context.Background(), "t1", "w1")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Coffee", products[0].Name)
	assert.Equal(t, 10.0, products[0].Stock, "batch rows are summed per product")

	assert.Equal(t, model.StatusOnlineSynced, tracker.State().Status)
}

func TestPullKeepsDirtyLocalRow(t *testing.T) {
	engine, st, rs, _ := newTestEngine(t)
	ctx := context.Background()

	local := model.Product{ID: "p1", TenantID: "t1", Name: "Local Edit", Price: 12,
		IsActive: true, LocalUpdatedAt: time.Now().UTC(), Dirty: true}
	require.NoError(t, st.SaveProduct(ctx, &local))

	rs.products = []remote.Product{
		{ID: "p1", TenantID: "t1", Name: "Stale Remote", Price: 9, IsActive: true,
			UpdatedAt: time.Now().UTC().Add(-time.Hour)},
	}

	// The dirty product becomes a queued push on the next drain, so the
	// cycle ends clean here with an empty queue.
	require.NoError(t, engine.SyncNow(ctx))

	p, err := st.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Local Edit", p.Name)
}

func TestPullOrdersLandAsSynced(t *testing.T) {
	engine, st, rs, _ := newTestEngine(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rs.sales["r1"] = remote.Sale{ID: "r1", TenantID: "t1", BranchID: "b1", WarehouseID: "w1",
		InvoiceNo: "INV-B1-1", CustomerName: "Ana", Subtotal: 20, Total: 20, Paid: 20,
		PaymentMethod: "CASH", CreatedAt: now}
	rs.saleItems["r1"] = []remote.SaleItem{
		{ID: "ri1", SaleID: "r1", ProductID: "p1", ProductName: "Coffee", Quantity: 2, UnitPrice: 10, LineTotal: 20},
	}

	require.NoError(t, engine.SyncNow(ctx))

	o, err := st.GetOrder(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, model.SyncSynced, o.SyncStatus)
	assert.Equal(t, "t1:ana", o.CustomerID)

	items, err := st.ListOrderItems(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestQueueDrainPushesOrder(t *testing.T) {
	engine, st, rs, tracker := newTestEngine(t)
	ctx := context.Background()

	payload := queuedOrderPayload("o1")
	require.NoError(t, st.CreateOrder(ctx, payload))
	_, err := st.Enqueue(ctx, "t1", model.MutationCreateOrder, payload)
	require.NoError(t, err)

	require.NoError(t, engine.SyncNow(ctx))

	_, ok := rs.sales["o1"]
	assert.True(t, ok, "order reached the remote store")
	assert.Equal(t, []float64{-2}, rs.adjustments)

	o, err := st.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, model.SyncSynced, o.SyncStatus)

	n, err := st.QueueCount(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, model.StatusOnlineSynced, tracker.State().Status)
}

func TestQueueFailureIsIsolatedPerItem(t *testing.T) {
	engine, st, rs, tracker := newTestEngine(t)
	ctx := context.Background()

	for _, id := range []string{"o1", "o2", "o3"} {
		payload := queuedOrderPayload(id)
		require.NoError(t, st.CreateOrder(ctx, payload))
		_, err := st.Enqueue(ctx, "t1", model.MutationCreateOrder, payload)
		require.NoError(t, err)
	}
	rs.insertErrFor["o2"] = errors.New("remote rejected")

	require.NoError(t, engine.SyncNow(ctx))

	assert.Contains(t, rs.sales, "o1")
	assert.NotContains(t, rs.sales, "o2")
	assert.Contains(t, rs.sales, "o3", "item after the failed one is still pushed")

	items, err := st.PendingQueue(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.QueueFailed, items[0].Status)
	assert.Contains(t, items[0].Error, "remote rejected")

	state := tracker.State()
	assert.Equal(t, model.StatusSyncFailed, state.Status)
	assert.Equal(t, 1, state.QueueCount)

	// Next cycle retries the failed item and succeeds.
	delete(rs.insertErrFor, "o2")
	require.NoError(t, engine.SyncNow(ctx))
	assert.Contains(t, rs.sales, "o2")
	assert.Equal(t, model.StatusOnlineSynced, tracker.State().Status)
}

func TestRePushIsIdempotent(t *testing.T) {
	engine, st, rs, _ := newTestEngine(t)
	ctx := context.Background()

	payload := queuedOrderPayload("o1")
	require.NoError(t, st.CreateOrder(ctx, payload))
	_, err := st.Enqueue(ctx, "t1", model.MutationCreateOrder, payload)
	require.NoError(t, err)

	// Simulate a push whose confirmation was lost: the sale is already on
	// the remote but the queue item survived.
	require.NoError(t, rs.InsertSale(ctx, remote.Sale{ID: "o1", TenantID: "t1"}, nil))
	insertCallsBefore := rs.insertCalls

	require.NoError(t, engine.SyncNow(ctx))

	assert.Equal(t, insertCallsBefore, rs.insertCalls, "no duplicate insert")
	n, err := st.QueueCount(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "the stale queue item is confirmed and removed")
}

func TestPullErrorMarksCycleFailed(t *testing.T) {
	engine, _, rs, tracker := newTestEngine(t)
	rs.fetchErr = errors.New("connection refused")

	err := engine.SyncNow(context.Background())
	require.Error(t, err)

	state := tracker.State()
	assert.Equal(t, model.StatusSyncFailed, state.Status)
	assert.Contains(t, state.LastError, "connection refused")
}

func TestConcurrentTriggersRunOneCycle(t *testing.T) {
	engine, st, rs, _ := newTestEngine(t)
	ctx := context.Background()

	rs.products = []remote.Product{
		{ID: "p1", TenantID: "t1", Name: "Coffee", Price: 10, IsActive: true, UpdatedAt: time.Now().UTC()},
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = engine.SyncNow(ctx)
		}()
	}
	wg.Wait()

	entries, err := st.ListSyncLog(ctx, "t1", 50)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(entries), 8)
	assert.GreaterOrEqual(t, len(entries), 1)

	// Serial triggers each run: no trigger is lost once the cycle ends.
	before := len(entries)
	require.NoError(t, engine.SyncNow(ctx))
	entries, err = st.ListSyncLog(ctx, "t1", 50)
	require.NoError(t, err)
	assert.Equal(t, before+1, len(entries))
}

func TestSyncLogRecordsCycle(t *testing.T) {
	engine, st, rs, _ := newTestEngine(t)
	ctx := context.Background()

	rs.products = []remote.Product{
		{ID: "p1", TenantID: "t1", Name: "Coffee", Price: 10, IsActive: true, UpdatedAt: time.Now().UTC()},
	}
	require.NoError(t, engine.SyncNow(ctx))

	entries, err := st.ListSyncLog(ctx, "t1", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Pulled)
	assert.Empty(t, entries[0].Error)
}

func queuedOrderPayload(orderID string) model.CreateOrderPayload {
	now := time.Now().UTC()
	return model.CreateOrderPayload{
		Order: model.Order{
			ID: orderID, TenantID: "t1", BranchID: "b1", WarehouseID: "w1",
			InvoiceNo: "INV-B1-X", Subtotal: 20, Total: 20, Paid: 20,
			PaymentMethod: "CASH", SyncStatus: model.SyncPending, CreatedAt: now,
		},
		Items: []model.OrderItem{
			{ID: orderID + "-i1", OrderID: orderID, ProductID: "p1", ProductName: "Coffee",
				Quantity: 2, UnitPrice: 10, LineTotal: 20},
		},
		Deltas: []model.StockDelta{{WarehouseID: "w1", ProductID: "p1", Quantity: -2}},
	}
}
