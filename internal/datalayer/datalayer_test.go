package datalayer

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
	enginesync "tillsync/internal/sync"
	"tillsync/pkg/apierror"
)

// stubRemote answers the push paths; pulls return empty.
type stubRemote struct {
	mu        sync.Mutex
	sales     map[string]remote.Sale
	insertErr error
}

func newStubRemote() *stubRemote {
	return &stubRemote{sales: make(map[string]remote.Sale)}
}

func (s *stubRemote) FetchCategories(ctx context.Context, tenantID string) ([]remote.Category, error) {
	return nil, nil
}
func (s *stubRemote) FetchProducts(ctx context.Context, tenantID string) ([]remote.Product, error) {
	return nil, nil
}
func (s *stubRemote) FetchInventory(ctx context.Context, tenantID, warehouseID string) ([]remote.InventoryRow, error) {
	return nil, nil
}
func (s *stubRemote) FetchRecentSales(ctx context.Context, tenantID, branchID string, limit int) ([]remote.Sale, []remote.SaleItem, error) {
	return nil, nil, nil
}

func (s *stubRemote) SaleExists(ctx context.Context, saleID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sales[saleID]
	return ok, nil
}

func (s *stubRemote) InsertSale(ctx context.Context, sale remote.Sale, items []remote.SaleItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.sales[sale.ID] = sale
	return nil
}

func (s *stubRemote) UpsertProduct(ctx context.Context, p remote.Product) error   { return nil }
func (s *stubRemote) UpsertCategory(ctx context.Context, c remote.Category) error { return nil }
func (s *stubRemote) AdjustInventory(ctx context.Context, tenantID, warehouseID, productID string, delta float64) error {
	return nil
}

var _ remote.Store = (*stubRemote)(nil)

func newTestLayer(t *testing.T, online bool) (*DataLayer, *store.Store, *stubRemote, *connectivity.Tracker) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	rs := newStubRemote()
	tracker := connectivity.NewTracker(online)
	engine := enginesync.NewEngine(st, rs, tracker, enginesync.Config{})
	dl := New(st, engine, tracker, nil)
	engine.SetSession(model.Session{TenantID: "t1", BranchID: "b1", WarehouseID: "w1", UserID: "u1"})
	return dl, st, rs, tracker
}

func seedProduct(t *testing.T, st *store.Store, id string, price float64) {
	t.Helper()
	p := model.Product{ID: id, TenantID: "t1", Name: "Coffee " + id, Price: price,
		IsActive: true, LocalUpdatedAt: time.Now().UTC()}
	require.NoError(t, st.SaveProduct(context.Background(), &p))
}

func seedStock(t *testing.T, st *store.Store, productID string, qty float64) {
	t.Helper()
	_, err := st.MergeStock(context.Background(), []model.StockLevel{
		{TenantID: "t1", WarehouseID: "w1", ProductID: productID, Quantity: qty, UpdatedAt: time.Now().UTC()},
	})
	require.NoError(t, err)
}

func TestCreateOrderRequiresSession(t *testing.T) {
	dl, _, _, _ := newTestLayer(t, true)
	dl.engine.SetSession(model.Session{})

	_, err := dl.CreateOrder(context.Background(), model.CreateOrderInput{
		Items:         []model.OrderItemInput{{ProductID: "p1", Quantity: 1}},
		PaymentMethod: "CASH",
	})
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestCreateOrderValidatesInput(t *testing.T) {
	dl, _, _, _ := newTestLayer(t, true)

	_, err := dl.CreateOrder(context.Background(), model.CreateOrderInput{PaymentMethod: "CASH"})
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)

	_, err = dl.CreateOrder(context.Background(), model.CreateOrderInput{
		Items:         []model.OrderItemInput{{ProductID: "p1", Quantity: 1}},
		PaymentMethod: "BARTER",
	})
	require.ErrorAs(t, err, &apiErr)
}

func TestCreateOrderOfflineCommitsAndQueues(t *testing.T) {
	dl, st, _, tracker := newTestLayer(t, false)
	ctx := context.Background()
	seedProduct(t, st, "p1", 10)
	seedStock(t, st, "p1", 10)

	order, err := dl.CreateOrder(ctx, model.CreateOrderInput{
		Items:         []model.OrderItemInput{{ProductID: "p1", Quantity: 3}},
		CustomerName:  "Ana",
		Paid:          30,
		PaymentMethod: "CASH",
	})
	require.NoError(t, err)
	assert.Equal(t, model.SyncPending, order.SyncStatus)
	assert.Equal(t, 30.0, order.Total)
	assert.Equal(t, "t1:ana", order.CustomerID)
	assert.NotEmpty(t, order.InvoiceNo)

	// Immediately visible to local reads.
	got, err := st.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	stock, err := dl.GetStock(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 7.0, stock.Quantity)

	n, err := st.QueueCount(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, tracker.State().QueueCount)
}

func TestCreateOrderOnlineWritesThrough(t *testing.T) {
	dl, st, rs, _ := newTestLayer(t, true)
	ctx := context.Background()
	seedProduct(t, st, "p1", 10)

	order, err := dl.CreateOrder(ctx, model.CreateOrderInput{
		Items:         []model.OrderItemInput{{ProductID: "p1", Quantity: 1}},
		Paid:          10,
		PaymentMethod: "CARD",
	})
	require.NoError(t, err)
	assert.Equal(t, model.SyncSynced, order.SyncStatus)

	assert.Contains(t, rs.sales, order.ID)

	n, err := st.QueueCount(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCreateOrderQueuesWhenWriteThroughFails(t *testing.T) {
	dl, st, rs, _ := newTestLayer(t, true)
	ctx := context.Background()
	seedProduct(t, st, "p1", 10)
	rs.insertErr = errors.New("timeout")

	order, err := dl.CreateOrder(ctx, model.CreateOrderInput{
		Items:         []model.OrderItemInput{{ProductID: "p1", Quantity: 1}},
		Paid:          10,
		PaymentMethod: "CASH",
	})
	require.NoError(t, err, "a failed push never fails checkout")
	assert.Equal(t, model.SyncPending, order.SyncStatus)

	n, err := st.QueueCount(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	dl, _, _, _ := newTestLayer(t, false)

	_, err := dl.CreateOrder(context.Background(), model.CreateOrderInput{
		Items:         []model.OrderItemInput{{ProductID: "nope", Quantity: 1}},
		PaymentMethod: "CASH",
	})
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
}

func TestUpsertProductOfflineStaysDirty(t *testing.T) {
	dl, st, _, _ := newTestLayer(t, false)
	ctx := context.Background()

	saved, err := dl.UpsertProduct(ctx, model.Product{Name: "Tea", Price: 5, IsActive: true})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.True(t, saved.Dirty)

	got, err := st.GetProduct(ctx, saved.ID)
	require.NoError(t, err)
	assert.True(t, got.Dirty)

	n, err := st.QueueCount(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpsertProductOnlineClearsDirty(t *testing.T) {
	dl, st, _, _ := newTestLayer(t, true)
	ctx := context.Background()

	saved, err := dl.UpsertProduct(ctx, model.Product{Name: "Tea", Price: 5, IsActive: true})
	require.NoError(t, err)
	assert.False(t, saved.Dirty)

	got, err := st.GetProduct(ctx, saved.ID)
	require.NoError(t, err)
	assert.False(t, got.Dirty)

	n, err := st.QueueCount(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestGetStockMissingRowReadsZero(t *testing.T) {
	dl, _, _, _ := newTestLayer(t, false)

	st, err := dl.GetStock(context.Background(), "p-unknown")
	require.NoError(t, err)
	assert.Equal(t, 0.0, st.Quantity)
	assert.Equal(t, "w1", st.WarehouseID)
}

func TestSetSessionRejectsIncomplete(t *testing.T) {
	dl, _, _, _ := newTestLayer(t, false)

	err := dl.SetSession(context.Background(), model.Session{})
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "BAD_REQUEST", apiErr.Code)
}
