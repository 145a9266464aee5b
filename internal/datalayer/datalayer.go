// Package datalayer is the single public surface of the terminal's data
// engine. Every read is answered from the local store; every write
// commits locally first and reaches the remote store through the
// write-through push or the durable queue. Callers never see a network
// error from a write.
package datalayer

import (
	"context"
	"fmt"
	"log"
	"time"

	"tillsync/internal/connectivity"
	"tillsync/internal/model"
	"tillsync/internal/store"
	enginesync "tillsync/internal/sync"
	"tillsync/pkg/apierror"
	"tillsync/pkg/uid"
	"tillsync/pkg/validator"
)

// ErrNoSession is re-exported so callers depend on one package only.
var ErrNoSession = enginesync.ErrNoSession

// DataLayer composes the local store, the sync engine, and the
// connectivity tracker behind one facade.
type DataLayer struct {
	store   *store.Store
	engine  *enginesync.Engine
	tracker *connectivity.Tracker
	poller  *connectivity.Poller
}

// New creates the facade. poller may be nil when the caller owns probing
// itself, as tests do.
func New(st *store.Store, engine *enginesync.Engine, tracker *connectivity.Tracker, poller *connectivity.Poller) *DataLayer {
	return &DataLayer{
		store:   st,
		engine:  engine,
		tracker: tracker,
		poller:  poller,
	}
}

// Start begins connectivity probing. The session arrives separately via
// SetSession, typically once the UI knows its business context.
func (d *DataLayer) Start() {
	if d.poller != nil {
		d.poller.Start()
	}
}

// Stop halts connectivity probing. Pending queue items stay durable and
// drain on the next start.
func (d *DataLayer) Stop() {
	if d.poller != nil {
		d.poller.Stop()
	}
}

// SetSession establishes the business context all subsequent calls are
// scoped to, then triggers a background sync when the network is up so
// the new scope's data lands as soon as possible.
func (d *DataLayer) SetSession(ctx context.Context, s model.Session) error {
	if s.IsZero() {
		return apierror.BadRequest("session requires tenant, branch, and warehouse")
	}
	d.engine.SetSession(s)
	log.Printf("[DataLayer] Session set - tenant=%s branch=%s warehouse=%s", s.TenantID, s.BranchID, s.WarehouseID)

	n, err := d.store.QueueCount(ctx, s.TenantID)
	if err == nil {
		d.tracker.SetQueueCount(n)
	}

	if d.tracker.State().Online {
		go d.syncInBackground()
	}
	return nil
}

// Session returns the active business context.
func (d *DataLayer) Session() model.Session {
	return d.engine.Session()
}

// State returns a snapshot of the connectivity state for display.
func (d *DataLayer) State() model.ConnectivityState {
	return d.tracker.State()
}

// SyncNow triggers a sync cycle and waits for it. A cycle already in
// flight absorbs the trigger.
func (d *DataLayer) SyncNow(ctx context.Context) error {
	return d.engine.SyncNow(ctx)
}

func (d *DataLayer) syncInBackground() {
	if err := d.engine.SyncNow(context.Background()); err != nil {
		log.Printf("[DataLayer] Background sync failed: %v", err)
	}
}

// CreateOrder records a sale. The order, its items, the stock deltas,
// and the derived customer commit to the local store in one transaction
// before any network activity, so checkout succeeds identically online
// and offline. Online, the order is pushed through immediately; when the
// push fails or the network is down it is queued instead, and the method
// still returns the committed order.
func (d *DataLayer) CreateOrder(ctx context.Context, input model.CreateOrderInput) (*model.Order, error) {
	sess := d.engine.Session()
	if sess.IsZero() {
		return nil, ErrNoSession
	}

	if errs := validator.Struct(input); errs != nil {
		return nil, apierror.ValidationError("invalid order", errs)
	}

	now := time.Now().UTC()
	orderID := uid.New()

	items := make([]model.OrderItem, 0, len(input.Items))
	deltas := make([]model.StockDelta, 0, len(input.Items))
	subtotal := 0.0

	for _, in := range input.Items {
		product, err := d.store.GetProduct(ctx, in.ProductID)
		if err != nil {
			return nil, fmt.Errorf("load product %s: %w", in.ProductID, err)
		}
		if product == nil {
			return nil, apierror.NotFound(fmt.Sprintf("product %s not found", in.ProductID))
		}

		unitPrice := in.UnitPrice
		if unitPrice == 0 {
			unitPrice = product.Price
		}
		lineTotal := unitPrice * in.Quantity
		subtotal += lineTotal

		items = append(items, model.OrderItem{
			ID:          uid.New(),
			OrderID:     orderID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    in.Quantity,
			UnitPrice:   unitPrice,
			LineTotal:   lineTotal,
		})
		deltas = append(deltas, model.StockDelta{
			WarehouseID: sess.WarehouseID,
			ProductID:   product.ID,
			Quantity:    -in.Quantity,
		})
	}

	order := model.Order{
		ID:            orderID,
		TenantID:      sess.TenantID,
		BranchID:      sess.BranchID,
		WarehouseID:   sess.WarehouseID,
		InvoiceNo:     uid.InvoiceNo(sess.BranchID, now),
		CustomerName:  input.CustomerName,
		Subtotal:      subtotal,
		Discount:      input.Discount,
		Total:         subtotal - input.Discount,
		Paid:          input.Paid,
		PaymentMethod: input.PaymentMethod,
		SyncStatus:    model.SyncPending,
		CreatedBy:     sess.UserID,
		CreatedAt:     now,
	}

	payload := model.CreateOrderPayload{
		Order:  order,
		Items:  items,
		Deltas: deltas,
	}
	if input.CustomerName != "" {
		order.CustomerID = uid.CustomerID(sess.TenantID, input.CustomerName)
		payload.Order = order
		payload.Customer = &model.Customer{
			ID:        order.CustomerID,
			TenantID:  sess.TenantID,
			Name:      input.CustomerName,
			CreatedAt: now,
		}
	}

	// The durable local commit. From here on the sale exists no matter
	// what the network does.
	if err := d.store.CreateOrder(ctx, payload); err != nil {
		return nil, fmt.Errorf("commit order locally: %w", err)
	}

	if d.tracker.State().Online {
		if err := d.engine.PushOrder(ctx, payload); err != nil {
			log.Printf("[DataLayer] Write-through push failed for order %s, queueing: %v", order.ID, err)
			if err := d.enqueue(ctx, sess.TenantID, model.MutationCreateOrder, payload); err != nil {
				return nil, err
			}
		} else {
			if err := d.store.MarkOrderSynced(ctx, order.ID, time.Now().UTC()); err != nil {
				return nil, err
			}
			order.SyncStatus = model.SyncSynced
		}
	} else {
		if err := d.enqueue(ctx, sess.TenantID, model.MutationCreateOrder, payload); err != nil {
			return nil, err
		}
	}

	return &order, nil
}

// UpsertProduct writes a product locally, marked dirty, then pushes it
// through or queues it depending on connectivity.
func (d *DataLayer) UpsertProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	sess := d.engine.Session()
	if sess.IsZero() {
		return nil, ErrNoSession
	}
	if errs := validator.Struct(p); errs != nil {
		return nil, apierror.ValidationError("invalid product", errs)
	}

	if p.ID == "" {
		p.ID = uid.New()
	}
	p.TenantID = sess.TenantID
	p.LocalUpdatedAt = time.Now().UTC()
	p.Dirty = true

	if err := d.store.SaveProduct(ctx, &p); err != nil {
		return nil, err
	}

	if d.tracker.State().Online {
		if err := d.engine.PushProduct(ctx, p); err != nil {
			log.Printf("[DataLayer] Write-through push failed for product %s, queueing: %v", p.ID, err)
			if err := d.enqueue(ctx, sess.TenantID, model.MutationUpsertProduct, p); err != nil {
				return nil, err
			}
		} else {
			p.Dirty = false
			p.UpdatedAt = p.LocalUpdatedAt
			if err := d.store.SaveProduct(ctx, &p); err != nil {
				return nil, err
			}
		}
	} else {
		if err := d.enqueue(ctx, sess.TenantID, model.MutationUpsertProduct, p); err != nil {
			return nil, err
		}
	}

	return &p, nil
}

// UpsertCategory writes a category locally, marked dirty, then pushes it
// through or queues it depending on connectivity.
func (d *DataLayer) UpsertCategory(ctx context.Context, c model.Category) (*model.Category, error) {
	sess := d.engine.Session()
	if sess.IsZero() {
		return nil, ErrNoSession
	}
	if errs := validator.Struct(c); errs != nil {
		return nil, apierror.ValidationError("invalid category", errs)
	}

	if c.ID == "" {
		c.ID = uid.New()
	}
	c.TenantID = sess.TenantID
	c.LocalUpdatedAt = time.Now().UTC()
	c.Dirty = true

	if err := d.store.SaveCategory(ctx, &c); err != nil {
		return nil, err
	}

	if d.tracker.State().Online {
		if err := d.engine.PushCategory(ctx, c); err != nil {
			log.Printf("[DataLayer] Write-through push failed for category %s, queueing: %v", c.ID, err)
			if err := d.enqueue(ctx, sess.TenantID, model.MutationUpsertCategory, c); err != nil {
				return nil, err
			}
		} else {
			c.Dirty = false
			c.UpdatedAt = c.LocalUpdatedAt
			if err := d.store.SaveCategory(ctx, &c); err != nil {
				return nil, err
			}
		}
	} else {
		if err := d.enqueue(ctx, sess.TenantID, model.MutationUpsertCategory, c); err != nil {
			return nil, err
		}
	}

	return &c, nil
}

func (d *DataLayer) enqueue(ctx context.Context, tenantID string, kind model.MutationKind, payload interface{}) error {
	if _, err := d.store.Enqueue(ctx, tenantID, kind, payload); err != nil {
		return fmt.Errorf("enqueue %s: %w", kind, err)
	}
	n, err := d.store.QueueCount(ctx, tenantID)
	if err != nil {
		return err
	}
	d.tracker.SetQueueCount(n)
	return nil
}

// ListCategories returns the local category mirror for the session tenant.
func (d *DataLayer) ListCategories(ctx context.Context) ([]model.Category, error) {
	sess := d.engine.Session()
	if sess.IsZero() {
		return nil, ErrNoSession
	}
	return d.store.ListCategories(ctx, sess.TenantID)
}

// ListProducts returns the local product mirror with cached stock for the
// session warehouse.
func (d *DataLayer) ListProducts(ctx context.Context) ([]model.Product, error) {
	sess := d.engine.Session()
	if sess.IsZero() {
		return nil, ErrNoSession
	}
	return d.store.ListProducts(ctx, sess.TenantID, sess.WarehouseID)
}

// GetProduct returns one product by id.
func (d *DataLayer) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	if d.engine.Session().IsZero() {
		return nil, ErrNoSession
	}
	p, err := d.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apierror.NotFound(fmt.Sprintf("product %s not found", id))
	}
	return p, nil
}

// GetStock returns the cached stock level for one product in the session
// warehouse. A missing row reads as quantity zero.
func (d *DataLayer) GetStock(ctx context.Context, productID string) (*model.StockLevel, error) {
	sess := d.engine.Session()
	if sess.IsZero() {
		return nil, ErrNoSession
	}
	st, err := d.store.GetStock(ctx, sess.WarehouseID, productID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		st = &model.StockLevel{
			TenantID:    sess.TenantID,
			WarehouseID: sess.WarehouseID,
			ProductID:   productID,
		}
	}
	return st, nil
}

// ListOrders returns local orders, newest first, scoped to the session.
func (d *DataLayer) ListOrders(ctx context.Context, status model.SyncStatus, limit int) ([]model.Order, error) {
	sess := d.engine.Session()
	if sess.IsZero() {
		return nil, ErrNoSession
	}
	return d.store.ListOrders(ctx, model.OrderFilter{
		TenantID: sess.TenantID,
		BranchID: sess.BranchID,
		Status:   status,
		Limit:    limit,
	})
}

// GetOrder returns one order with its items.
func (d *DataLayer) GetOrder(ctx context.Context, id string) (*model.Order, []model.OrderItem, error) {
	if d.engine.Session().IsZero() {
		return nil, nil, ErrNoSession
	}
	o, err := d.store.GetOrder(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if o == nil {
		return nil, nil, apierror.NotFound(fmt.Sprintf("order %s not found", id))
	}
	items, err := d.store.ListOrderItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return o, items, nil
}

// ListOrderItems returns the items of one order.
func (d *DataLayer) ListOrderItems(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	if d.engine.Session().IsZero() {
		return nil, ErrNoSession
	}
	return d.store.ListOrderItems(ctx, orderID)
}

// SyncLog returns the most recent sync cycle records for the session tenant.
func (d *DataLayer) SyncLog(ctx context.Context, limit int) ([]model.SyncLogEntry, error) {
	sess := d.engine.Session()
	if sess.IsZero() {
		return nil, ErrNoSession
	}
	return d.store.ListSyncLog(ctx, sess.TenantID, limit)
}
