package tabs

import (
	"context"

	"github.com/angelmondragon/dinein-backend/internal/repo"
	"github.com/angelmondragon/dinein-backend/pkg/db/models"
	"github.com/angelmondragon/dinein-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists customer tabs and the tab assignment of order items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, tab *models.CustomerTab) error
	Save(ctx context.Context, tab *models.CustomerTab) error
	Find(ctx context.Context, id uuid.UUID) (*models.CustomerTab, error)
	Lock(ctx context.Context, id uuid.UUID) (*models.CustomerTab, error)
	ListActiveByTable(ctx context.Context, tableNumber int) ([]models.CustomerTab, error)
	ListActiveByOrder(ctx context.Context, orderID uuid.UUID) ([]models.CustomerTab, error)

	FindItems(ctx context.Context, ids []uuid.UUID) ([]models.DineInOrderItem, error)
	SaveItem(ctx context.Context, item *models.DineInOrderItem) error

	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindActiveOrderByTableNumber(ctx context.Context, tableNumber int) (*models.Order, error)
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, tab *models.CustomerTab) error {
	return r.DB(ctx).Create(tab).Error
}

func (r *repository) Save(ctx context.Context, tab *models.CustomerTab) error {
	return r.DB(ctx).Save(tab).Error
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.CustomerTab, error) {
	var tab models.CustomerTab
	if err := r.DB(ctx).Where("id = ?", id).First(&tab).Error; err != nil {
		return nil, err
	}
	return &tab, nil
}

func (r *repository) Lock(ctx context.Context, id uuid.UUID) (*models.CustomerTab, error) {
	var tab models.CustomerTab
	if err := r.ForUpdate(r.DB(ctx)).Where("id = ?", id).First(&tab).Error; err != nil {
		return nil, err
	}
	return &tab, nil
}

func (r *repository) ListActiveByTable(ctx context.Context, tableNumber int) ([]models.CustomerTab, error) {
	var tabs []models.CustomerTab
	err := r.DB(ctx).
		Where("table_number = ?", tableNumber).
		Where("status = ?", enums.TabStatusActive).
		Order("created_at ASC").
		Order("id ASC").
		Find(&tabs).Error
	return tabs, err
}

func (r *repository) ListActiveByOrder(ctx context.Context, orderID uuid.UUID) ([]models.CustomerTab, error) {
	var tabs []models.CustomerTab
	err := r.ForUpdate(r.DB(ctx)).
		Where("order_id = ?", orderID).
		Where("status = ?", enums.TabStatusActive).
		Order("created_at ASC").
		Find(&tabs).Error
	return tabs, err
}

func (r *repository) FindItems(ctx context.Context, ids []uuid.UUID) ([]models.DineInOrderItem, error) {
	var items []models.DineInOrderItem
	if len(ids) == 0 {
		return items, nil
	}
	err := r.DB(ctx).Where("id IN ?", ids).Find(&items).Error
	return items, err
}

func (r *repository) SaveItem(ctx context.Context, item *models.DineInOrderItem) error {
	return r.DB(ctx).Save(item).Error
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindActiveOrderByTableNumber returns the newest open order seated at the
// table.
func (r *repository) FindActiveOrderByTableNumber(ctx context.Context, tableNumber int) (*models.Order, error) {
	var order models.Order
	err := r.DB(ctx).
		Where("table_number = ?", tableNumber).
		Where("status IN ?", enums.ActiveOrderStatusStrings()).
		Order("created_at DESC").
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}
