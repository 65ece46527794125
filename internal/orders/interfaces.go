package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dinein-backend/pkg/db/models"
)

// Repository defines persistence operations for dine-in orders and items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, order *models.Order) error
	SaveOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindActiveOrderByTable(ctx context.Context, tableID uuid.UUID) (*models.Order, error)
	FindActiveOrdersByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Order, error)
	ListActiveOrdersByTables(ctx context.Context, tableIDs []uuid.UUID) ([]models.Order, error)
	ListStaleEmptyOrders(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)

	CreateItem(ctx context.Context, item *models.DineInOrderItem) error
	SaveItem(ctx context.Context, item *models.DineInOrderItem) error
	DeleteItem(ctx context.Context, id uuid.UUID) error
	FindItem(ctx context.Context, id uuid.UUID) (*models.DineInOrderItem, error)
	ListItems(ctx context.Context, orderID uuid.UUID) ([]models.DineInOrderItem, error)
	ListKitchenItems(ctx context.Context) ([]models.DineInOrderItem, error)

	FindTable(ctx context.Context, id uuid.UUID) (*models.POSTable, error)
	LockTable(ctx context.Context, id uuid.UUID) (*models.POSTable, error)
	FindTablesByID(ctx context.Context, ids []uuid.UUID) ([]models.POSTable, error)
	FindTablesByNumber(ctx context.Context, numbers []int) ([]models.POSTable, error)

	FindMenuItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error)
	FindMenuItems(ctx context.Context, ids []uuid.UUID) ([]models.MenuItem, error)
	FindCategories(ctx context.Context, ids []uuid.UUID) ([]models.MenuCategory, error)
}
