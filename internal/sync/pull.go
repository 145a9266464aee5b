package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"tillsync/internal/model"
	"tillsync/internal/remote"
	"tillsync/pkg/uid"
)

// pullMasterData refreshes categories, products, and the stock cache for
// the session's scope. Each merge runs in its own local transaction; any
// remote fetch error aborts the whole pull so a partial snapshot is
// never presented as fresh.
func (e *Engine) pullMasterData(ctx context.Context, sess model.Session) (int, error) {
	total := 0

	cats, err := e.remote.FetchCategories(ctx, sess.TenantID)
	if err != nil {
		return total, err
	}
	incoming := make([]model.Category, 0, len(cats))
	for _, c := range cats {
		incoming = append(incoming, model.Category{
			ID:          c.ID,
			TenantID:    c.TenantID,
			Name:        c.Name,
			Description: c.Description,
			IsActive:    c.IsActive,
			UpdatedAt:   c.UpdatedAt,
		})
	}
	n, err := e.store.MergeCategories(ctx, incoming)
	if err != nil {
		return total, err
	}
	total += n

	prods, err := e.remote.FetchProducts(ctx, sess.TenantID)
	if err != nil {
		return total, err
	}
	incomingProds := make([]model.Product, 0, len(prods))
	for _, p := range prods {
		incomingProds = append(incomingProds, model.Product{
			ID:           p.ID,
			TenantID:     p.TenantID,
			CategoryID:   p.CategoryID,
			CategoryName: p.CategoryName,
			SKU:          p.SKU,
			Name:         p.Name,
			Unit:         p.Unit,
			Price:        p.Price,
			Cost:         p.Cost,
			IsActive:     p.IsActive,
			UpdatedAt:    p.UpdatedAt,
		})
	}
	n, err = e.store.MergeProducts(ctx, incomingProds)
	if err != nil {
		return total, err
	}
	total += n

	inv, err := e.remote.FetchInventory(ctx, sess.TenantID, sess.WarehouseID)
	if err != nil {
		return total, err
	}
	levels := aggregateInventory(inv)
	n, err = e.store.MergeStock(ctx, levels)
	if err != nil {
		return total, err
	}
	total += n

	log.Printf("[SyncEngine] Pulled master data - categories=%d products=%d stock=%d",
		len(cats), len(prods), len(levels))
	return total, nil
}

// aggregateInventory collapses the backend's per-batch inventory rows to
// one stock level per product, summing quantities and keeping the newest
// timestamp.
func aggregateInventory(rows []remote.InventoryRow) []model.StockLevel {
	byProduct := make(map[string]*model.StockLevel)
	order := make([]string, 0, len(rows))

	for _, r := range rows {
		st, ok := byProduct[r.ProductID]
		if !ok {
			st = &model.StockLevel{
				TenantID:    r.TenantID,
				WarehouseID: r.WarehouseID,
				ProductID:   r.ProductID,
			}
			byProduct[r.ProductID] = st
			order = append(order, r.ProductID)
		}
		st.Quantity += r.Quantity
		if r.UpdatedAt.After(st.UpdatedAt) {
			st.UpdatedAt = r.UpdatedAt
		}
	}

	out := make([]model.StockLevel, 0, len(order))
	for _, id := range order {
		out = append(out, *byProduct[id])
	}
	return out
}

// pullOrders merges the most recent remote orders into the local store.
// Remote orders are confirmed by definition, so they land as synced;
// locally pending orders are left untouched by the merge.
func (e *Engine) pullOrders(ctx context.Context, sess model.Session, limit int) (int, error) {
	sales, saleItems, err := e.remote.FetchRecentSales(ctx, sess.TenantID, sess.BranchID, limit)
	if err != nil {
		return 0, err
	}
	if len(sales) == 0 {
		return 0, nil
	}

	pulledAt := time.Now().UTC()
	orders := make([]model.Order, 0, len(sales))
	for _, s := range sales {
		syncedAt := pulledAt
		o := model.Order{
			ID:            s.ID,
			TenantID:      s.TenantID,
			BranchID:      s.BranchID,
			WarehouseID:   s.WarehouseID,
			InvoiceNo:     s.InvoiceNo,
			CustomerName:  s.CustomerName,
			Subtotal:      s.Subtotal,
			Discount:      s.Discount,
			Total:         s.Total,
			Paid:          s.Paid,
			PaymentMethod: s.PaymentMethod,
			SyncStatus:    model.SyncSynced,
			SyncedAt:      &syncedAt,
			CreatedBy:     s.CreatedBy,
			CreatedAt:     s.CreatedAt,
		}
		if s.CustomerName != "" {
			o.CustomerID = uid.CustomerID(s.TenantID, s.CustomerName)
		}
		orders = append(orders, o)
	}

	items := make(map[string][]model.OrderItem, len(sales))
	for _, it := range saleItems {
		items[it.SaleID] = append(items[it.SaleID], model.OrderItem{
			ID:          it.ID,
			OrderID:     it.SaleID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
		})
	}

	merged, err := e.store.MergeOrders(ctx, orders, items, uid.CustomerID)
	if err != nil {
		return 0, fmt.Errorf("merge orders: %w", err)
	}
	return merged, nil
}
