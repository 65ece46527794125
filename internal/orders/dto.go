package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dinein-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/dinein-backend/pkg/db/types"
	"github.com/angelmondragon/dinein-backend/pkg/enums"
)

// CreateOrderInput opens an order on a table, optionally linking other tables.
type CreateOrderInput struct {
	TableID        uuid.UUID   `json:"table_id"`
	GuestCount     int         `json:"guest_count"`
	LinkedTables   []int       `json:"linked_tables,omitempty"`
	LinkedTableIDs []uuid.UUID `json:"linked_table_ids,omitempty"`
	ServerID       *uuid.UUID  `json:"-"`
}

type AddItemInput struct {
	OrderID        uuid.UUID              `json:"order_id"`
	MenuItemID     *uuid.UUID             `json:"menu_item_id,omitempty"`
	VariantID      *uuid.UUID             `json:"variant_id,omitempty"`
	CategoryID     *uuid.UUID             `json:"category_id,omitempty"`
	Name           string                 `json:"name"`
	Quantity       int                    `json:"quantity"`
	Price          decimal.Decimal        `json:"price"`
	Customizations dbtypes.Customizations `json:"customizations,omitempty"`
	Notes          *string                `json:"notes,omitempty"`
	CustomerTabID  *uuid.UUID             `json:"customer_tab_id,omitempty"`
}

type MarkPaidInput struct {
	OrderID       uuid.UUID           `json:"order_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Amount        decimal.Decimal     `json:"amount"`
}

// LinkTablesInput replaces the set of tables linked to an order. Numbers and
// ids may be mixed; an empty set dissolves the current group.
type LinkTablesInput struct {
	OrderID      uuid.UUID   `json:"order_id"`
	TableNumbers []int       `json:"table_numbers,omitempty"`
	TableIDs     []uuid.UUID `json:"table_ids,omitempty"`
}

// EnrichedItem is an order item with display fields backfilled from its menu
// item and category.
type EnrichedItem struct {
	models.DineInOrderItem
	CategoryName *string `json:"category_name,omitempty"`
}

// KitchenEntry is an active order together with its items that reached the
// kitchen.
type KitchenEntry struct {
	Order models.Order   `json:"order"`
	Items []EnrichedItem `json:"items"`
}
