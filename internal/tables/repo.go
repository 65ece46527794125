package tables

import (
	"context"

	"github.com/angelmondragon/dinein-backend/internal/repo"
	"github.com/angelmondragon/dinein-backend/pkg/db/models"
	"github.com/angelmondragon/dinein-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists POS tables and their link groups.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListAll(ctx context.Context) ([]models.POSTable, error)
	LockByNumbers(ctx context.Context, numbers []int) ([]models.POSTable, error)
	FindByGroup(ctx context.Context, groupID uuid.UUID) ([]models.POSTable, error)
	FindByNumber(ctx context.Context, number int) (*models.POSTable, error)
	Save(ctx context.Context, table *models.POSTable) error
	ListActiveOrders(ctx context.Context) ([]models.Order, error)
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

func (r *repository) ListAll(ctx context.Context) ([]models.POSTable, error) {
	var tables []models.POSTable
	err := r.DB(ctx).Order("table_number ASC").Find(&tables).Error
	return tables, err
}

func (r *repository) LockByNumbers(ctx context.Context, numbers []int) ([]models.POSTable, error) {
	var tables []models.POSTable
	if len(numbers) == 0 {
		return tables, nil
	}
	err := r.ForUpdate(r.DB(ctx)).
		Where("table_number IN ?", numbers).
		Order("table_number ASC").
		Find(&tables).Error
	return tables, err
}

func (r *repository) FindByGroup(ctx context.Context, groupID uuid.UUID) ([]models.POSTable, error) {
	var tables []models.POSTable
	err := r.ForUpdate(r.DB(ctx)).
		Where("table_group_id = ?", groupID).
		Order("table_number ASC").
		Find(&tables).Error
	return tables, err
}

func (r *repository) FindByNumber(ctx context.Context, number int) (*models.POSTable, error) {
	var table models.POSTable
	if err := r.DB(ctx).Where("table_number = ?", number).First(&table).Error; err != nil {
		return nil, err
	}
	return &table, nil
}

func (r *repository) Save(ctx context.Context, table *models.POSTable) error {
	return r.DB(ctx).Save(table).Error
}

func (r *repository) ListActiveOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB(ctx).
		Where("status IN ?", enums.ActiveOrderStatusStrings()).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}
