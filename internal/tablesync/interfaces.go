package tablesync

import (
	"context"

	"github.com/angelmondragon/dinein-backend/internal/orders"
	"github.com/angelmondragon/dinein-backend/pkg/db/models"
	"github.com/google/uuid"
)

// Store is the read side the cache is filled from.
type Store interface {
	ActiveOrderForTable(ctx context.Context, tableID uuid.UUID) (*models.Order, error)
	EnrichedItems(ctx context.Context, orderID uuid.UUID) ([]orders.EnrichedItem, error)
}

// Commands are the remote order operations. Results are observed through
// the change feed, never applied to the cache directly.
type Commands interface {
	CreateOrder(ctx context.Context, input orders.CreateOrderInput) (uuid.UUID, error)
	AddItem(ctx context.Context, input orders.AddItemInput) (uuid.UUID, error)
	RemoveItem(ctx context.Context, itemID uuid.UUID) error
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	UpdateGuestCount(ctx context.Context, orderID uuid.UUID, guests int) error
	SendToKitchen(ctx context.Context, orderID uuid.UUID) (int, error)
	RequestCheck(ctx context.Context, orderID uuid.UUID) error
	MarkPaid(ctx context.Context, input orders.MarkPaidInput) error
	UpdateLinkedTables(ctx context.Context, input orders.LinkTablesInput) (uuid.UUID, error)
}
