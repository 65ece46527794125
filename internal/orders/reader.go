package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/dinein-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/dinein-backend/pkg/errors"
)

// Reader serves the read side of orders: the current order of a table and
// menu-enriched item lists.
type Reader interface {
	ActiveOrderForTable(ctx context.Context, tableID uuid.UUID) (*models.Order, error)
	ActiveOrders(ctx context.Context) ([]models.Order, error)
	EnrichedItems(ctx context.Context, orderID uuid.UUID) ([]EnrichedItem, error)
	KitchenQueue(ctx context.Context) ([]KitchenEntry, error)
}

type reader struct {
	repo Repository
}

func NewReader(repo Repository) (Reader, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &reader{repo: repo}, nil
}

// ActiveOrderForTable returns nil without error when the table is free.
func (r *reader) ActiveOrderForTable(ctx context.Context, tableID uuid.UUID) (*models.Order, error) {
	order, err := r.repo.FindActiveOrderByTable(ctx, tableID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active order")
	}
	items, err := r.repo.ListItems(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	order.Items = items
	return order, nil
}

func (r *reader) ActiveOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := r.repo.ListActiveOrdersByTables(ctx, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active orders")
	}
	return orders, nil
}

func (r *reader) EnrichedItems(ctx context.Context, orderID uuid.UUID) ([]EnrichedItem, error) {
	if _, err := r.repo.FindOrder(ctx, orderID); err != nil {
		return nil, notFound(err, "order")
	}
	items, err := r.repo.ListItems(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	return r.enrich(ctx, items)
}

// KitchenQueue groups every in-kitchen item under its active order, oldest
// ticket first.
func (r *reader) KitchenQueue(ctx context.Context) ([]KitchenEntry, error) {
	items, err := r.repo.ListKitchenItems(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load kitchen items")
	}
	enriched, err := r.enrich(ctx, items)
	if err != nil {
		return nil, err
	}

	entries := []KitchenEntry{}
	index := map[uuid.UUID]int{}
	for _, item := range enriched {
		pos, ok := index[item.OrderID]
		if !ok {
			order, err := r.repo.FindOrder(ctx, item.OrderID)
			if err != nil {
				return nil, notFound(err, "order")
			}
			pos = len(entries)
			index[item.OrderID] = pos
			entries = append(entries, KitchenEntry{Order: *order})
		}
		entries[pos].Items = append(entries[pos].Items, item)
	}
	return entries, nil
}

// enrich fills display fields from the item itself, then its menu item. A
// missing menu item leaves the field empty.
func (r *reader) enrich(ctx context.Context, items []models.DineInOrderItem) ([]EnrichedItem, error) {
	menuIDs := []uuid.UUID{}
	for _, item := range items {
		if item.MenuItemID != nil {
			menuIDs = append(menuIDs, *item.MenuItemID)
		}
	}
	menuItems, err := r.repo.FindMenuItems(ctx, menuIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load menu items")
	}
	menu := make(map[uuid.UUID]models.MenuItem, len(menuItems))
	for _, m := range menuItems {
		menu[m.ID] = m
	}

	out := make([]EnrichedItem, 0, len(items))
	categoryIDs := []uuid.UUID{}
	for _, item := range items {
		if item.MenuItemID != nil {
			if m, ok := menu[*item.MenuItemID]; ok {
				backfill(&item, m)
			}
		}
		if !item.LineTotal.Valid {
			item.LineTotal = decimal.NewNullDecimal(item.EffectiveLineTotal())
		}
		if item.CategoryID != nil {
			categoryIDs = append(categoryIDs, *item.CategoryID)
		}
		out = append(out, EnrichedItem{DineInOrderItem: item})
	}

	categories, err := r.repo.FindCategories(ctx, categoryIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load categories")
	}
	names := make(map[uuid.UUID]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	for i := range out {
		if out[i].CategoryID == nil {
			continue
		}
		if name, ok := names[*out[i].CategoryID]; ok {
			out[i].CategoryName = &name
		}
	}
	return out, nil
}

func backfill(item *models.DineInOrderItem, m models.MenuItem) {
	if item.CategoryID == nil {
		item.CategoryID = m.CategoryID
	}
	if item.KitchenDisplayName == nil {
		item.KitchenDisplayName = m.KitchenDisplayName
	}
	if item.ImageURL == nil {
		item.ImageURL = m.ImageURL
	}
	if item.IsVegetarian == nil {
		item.IsVegetarian = m.IsVegetarian
	}
	if item.IsVegan == nil {
		item.IsVegan = m.IsVegan
	}
	if item.IsGlutenFree == nil {
		item.IsGlutenFree = m.IsGlutenFree
	}
	if item.SpiceLevel == nil {
		item.SpiceLevel = m.SpiceLevel
	}
}
