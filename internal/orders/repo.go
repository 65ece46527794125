package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/dinein-backend/internal/repo"
	"github.com/angelmondragon/dinein-backend/pkg/db/models"
	"github.com/angelmondragon/dinein-backend/pkg/enums"
)

type repository struct {
	repo.Base
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.DB(ctx).Omit(clause.Associations).Create(order).Error
}

func (r *repository) SaveOrder(ctx context.Context, order *models.Order) error {
	return r.DB(ctx).Omit(clause.Associations).Save(order).Error
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.ForUpdate(r.DB(ctx)).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindActiveOrderByTable returns the most recent open order of the table.
func (r *repository) FindActiveOrderByTable(ctx context.Context, tableID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.DB(ctx).
		Where("table_id = ?", tableID).
		Where("status IN ?", enums.ActiveOrderStatusStrings()).
		Order("created_at DESC").
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindActiveOrdersByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB(ctx).
		Where("table_group_id = ?", groupID).
		Where("status IN ?", enums.ActiveOrderStatusStrings()).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

func (r *repository) ListActiveOrdersByTables(ctx context.Context, tableIDs []uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	q := r.DB(ctx).Where("status IN ?", enums.ActiveOrderStatusStrings())
	if tableIDs != nil {
		if len(tableIDs) == 0 {
			return orders, nil
		}
		q = q.Where("table_id IN ?", tableIDs)
	}
	err := q.Order("created_at ASC").Find(&orders).Error
	return orders, err
}

// ListStaleEmptyOrders returns CREATED orders older than cutoff that never
// received an item.
func (r *repository) ListStaleEmptyOrders(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var orders []models.Order
	err := r.DB(ctx).
		Where("status = ?", enums.OrderStatusCreated).
		Where("created_at < ?", cutoff).
		Where("NOT EXISTS (SELECT 1 FROM dine_in_order_items i WHERE i.order_id = orders.id)").
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *repository) CreateItem(ctx context.Context, item *models.DineInOrderItem) error {
	return r.DB(ctx).Create(item).Error
}

func (r *repository) SaveItem(ctx context.Context, item *models.DineInOrderItem) error {
	return r.DB(ctx).Save(item).Error
}

func (r *repository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).Where("id = ?", id).Delete(&models.DineInOrderItem{}).Error
}

func (r *repository) FindItem(ctx context.Context, id uuid.UUID) (*models.DineInOrderItem, error) {
	var item models.DineInOrderItem
	if err := r.DB(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) ListItems(ctx context.Context, orderID uuid.UUID) ([]models.DineInOrderItem, error) {
	var items []models.DineInOrderItem
	err := r.DB(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error
	return items, err
}

// ListKitchenItems returns items the kitchen still has to finish, for every
// active order.
func (r *repository) ListKitchenItems(ctx context.Context) ([]models.DineInOrderItem, error) {
	var items []models.DineInOrderItem
	err := r.DB(ctx).
		Joins("JOIN orders o ON o.id = dine_in_order_items.order_id").
		Where("o.status IN ?", enums.ActiveOrderStatusStrings()).
		Where("dine_in_order_items.status IN ?", []string{
			string(enums.ItemStatusSent),
			string(enums.ItemStatusPreparing),
			string(enums.ItemStatusReady),
		}).
		Order("dine_in_order_items.sent_to_kitchen_at ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) FindTable(ctx context.Context, id uuid.UUID) (*models.POSTable, error) {
	var table models.POSTable
	if err := r.DB(ctx).Where("id = ?", id).First(&table).Error; err != nil {
		return nil, err
	}
	return &table, nil
}

func (r *repository) LockTable(ctx context.Context, id uuid.UUID) (*models.POSTable, error) {
	var table models.POSTable
	if err := r.ForUpdate(r.DB(ctx)).Where("id = ?", id).First(&table).Error; err != nil {
		return nil, err
	}
	return &table, nil
}

func (r *repository) FindTablesByID(ctx context.Context, ids []uuid.UUID) ([]models.POSTable, error) {
	var tables []models.POSTable
	if len(ids) == 0 {
		return tables, nil
	}
	err := r.DB(ctx).Where("id IN ?", ids).Find(&tables).Error
	return tables, err
}

func (r *repository) FindTablesByNumber(ctx context.Context, numbers []int) ([]models.POSTable, error) {
	var tables []models.POSTable
	if len(numbers) == 0 {
		return tables, nil
	}
	err := r.DB(ctx).Where("table_number IN ?", numbers).Order("table_number ASC").Find(&tables).Error
	return tables, err
}

func (r *repository) FindMenuItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error) {
	var item models.MenuItem
	if err := r.DB(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindMenuItems(ctx context.Context, ids []uuid.UUID) ([]models.MenuItem, error) {
	var items []models.MenuItem
	if len(ids) == 0 {
		return items, nil
	}
	err := r.DB(ctx).Where("id IN ?", ids).Find(&items).Error
	return items, err
}

func (r *repository) FindCategories(ctx context.Context, ids []uuid.UUID) ([]models.MenuCategory, error) {
	var categories []models.MenuCategory
	if len(ids) == 0 {
		return categories, nil
	}
	err := r.DB(ctx).Where("id IN ?", ids).Find(&categories).Error
	return categories, err
}
