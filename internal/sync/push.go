package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"tillsync/internal/model"
	"tillsync/internal/remote"
)

// processQueue drains the durable queue in creation order. Failures are
// isolated per item: a failed push is recorded on that item and the
// drain moves on, so one poisoned mutation never blocks the rest. The
// returned error covers local store problems only.
func (e *Engine) processQueue(ctx context.Context, sess model.Session) (pushed, failed int, err error) {
	items, err := e.store.PendingQueue(ctx, sess.TenantID)
	if err != nil {
		return 0, 0, err
	}
	if len(items) == 0 {
		return 0, 0, nil
	}

	log.Printf("[SyncEngine] Draining queue - %d item(s)", len(items))

	for _, item := range items {
		if err := e.store.MarkQueueSyncing(ctx, item.ID); err != nil {
			return pushed, failed, err
		}

		if perr := e.pushQueueItem(ctx, item); perr != nil {
			log.Printf("[SyncEngine] Push failed for %s item %d (attempt %d): %v",
				item.Kind, item.ID, item.Attempts+1, perr)
			if err := e.store.MarkQueueFailed(ctx, item.ID, perr); err != nil {
				return pushed, failed, err
			}
			failed++
			continue
		}
		pushed++
	}
	return pushed, failed, nil
}

// pushQueueItem dispatches one queued mutation to the remote store and,
// on success, confirms the local source row and deletes the item in a
// single local transaction.
func (e *Engine) pushQueueItem(ctx context.Context, item model.SyncQueueItem) error {
	switch item.Kind {
	case model.MutationCreateOrder:
		var p model.CreateOrderPayload
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return fmt.Errorf("decode create_order payload: %w", err)
		}
		if err := e.PushOrder(ctx, p); err != nil {
			return err
		}
		return e.store.CompleteCreateOrder(ctx, item.ID, p.Order.ID, time.Now().UTC())

	case model.MutationUpsertProduct:
		var p model.Product
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return fmt.Errorf("decode upsert_product payload: %w", err)
		}
		if err := e.remote.UpsertProduct(ctx, toRemoteProduct(p)); err != nil {
			return err
		}
		return e.store.CompleteUpsertProduct(ctx, item.ID, p.ID)

	case model.MutationUpsertCategory:
		var c model.Category
		if err := json.Unmarshal(item.Payload, &c); err != nil {
			return fmt.Errorf("decode upsert_category payload: %w", err)
		}
		if err := e.remote.UpsertCategory(ctx, toRemoteCategory(c)); err != nil {
			return err
		}
		return e.store.CompleteUpsertCategory(ctx, item.ID, c.ID)

	default:
		return fmt.Errorf("unknown mutation kind %q", item.Kind)
	}
}

// PushOrder sends one order to the remote store. The client-generated
// order id doubles as the idempotency key: when the remote already has
// the sale, the push is treated as applied and returns clean, which
// makes retries after a lost confirmation safe. Inventory deltas are
// best effort; a failed delta is reconciled by the next master-data
// pull rather than failing the order.
func (e *Engine) PushOrder(ctx context.Context, p model.CreateOrderPayload) error {
	exists, err := e.remote.SaleExists(ctx, p.Order.ID)
	if err != nil {
		return fmt.Errorf("check sale existence: %w", err)
	}
	if exists {
		log.Printf("[SyncEngine] Order %s already on remote, skipping insert", p.Order.ID)
		return nil
	}

	if err := e.remote.InsertSale(ctx, toRemoteSale(p.Order), toRemoteSaleItems(p.Items)); err != nil {
		return err
	}

	for _, d := range p.Deltas {
		if err := e.remote.AdjustInventory(ctx, p.Order.TenantID, d.WarehouseID, d.ProductID, d.Quantity); err != nil {
			log.Printf("[SyncEngine] Inventory delta %s/%s failed, next pull reconciles: %v",
				d.WarehouseID, d.ProductID, err)
		}
	}
	return nil
}

// PushProduct writes a product through to the remote store.
func (e *Engine) PushProduct(ctx context.Context, p model.Product) error {
	return e.remote.UpsertProduct(ctx, toRemoteProduct(p))
}

// PushCategory writes a category through to the remote store.
func (e *Engine) PushCategory(ctx context.Context, c model.Category) error {
	return e.remote.UpsertCategory(ctx, toRemoteCategory(c))
}

func toRemoteSale(o model.Order) remote.Sale {
	return remote.Sale{
		ID:            o.ID,
		TenantID:      o.TenantID,
		BranchID:      o.BranchID,
		WarehouseID:   o.WarehouseID,
		InvoiceNo:     o.InvoiceNo,
		CustomerName:  o.CustomerName,
		Subtotal:      o.Subtotal,
		Discount:      o.Discount,
		Total:         o.Total,
		Paid:          o.Paid,
		PaymentMethod: o.PaymentMethod,
		CreatedBy:     o.CreatedBy,
		CreatedAt:     o.CreatedAt,
	}
}

func toRemoteSaleItems(items []model.OrderItem) []remote.SaleItem {
	out := make([]remote.SaleItem, 0, len(items))
	for _, it := range items {
		out = append(out, remote.SaleItem{
			ID:          it.ID,
			SaleID:      it.OrderID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
		})
	}
	return out
}

func toRemoteProduct(p model.Product) remote.Product {
	return remote.Product{
		ID:         p.ID,
		TenantID:   p.TenantID,
		CategoryID: p.CategoryID,
		SKU:        p.SKU,
		Name:       p.Name,
		Unit:       p.Unit,
		Price:      p.Price,
		Cost:       p.Cost,
		IsActive:   p.IsActive,
		UpdatedAt:  p.LocalUpdatedAt,
	}
}

func toRemoteCategory(c model.Category) remote.Category {
	return remote.Category{
		ID:          c.ID,
		TenantID:    c.TenantID,
		Name:        c.Name,
		Description: c.Description,
		IsActive:    c.IsActive,
		UpdatedAt:   c.LocalUpdatedAt,
	}
}
