package tabs

import (
	"github.com/angelmondragon/dinein-backend/pkg/enums"
	"github.com/angelmondragon/dinein-backend/pkg/types"
	"github.com/google/uuid"
)

// CreateTabInput opens a tab on the order of a table. OrderID is optional;
// without it the table's active order is used.
type CreateTabInput struct {
	TableNumber int        `json:"table_number"`
	OrderID     *uuid.UUID `json:"order_id,omitempty"`
	Name        string     `json:"name"`
}

// UpdateTabInput changes only the fields present in the request. A null tip
// or discount resets it to zero.
type UpdateTabInput struct {
	TabID    uuid.UUID             `json:"tab_id"`
	Name     *string               `json:"name,omitempty"`
	Tip      types.NullableDecimal `json:"tip"`
	Discount types.NullableDecimal `json:"discount"`
}

type CloseTabInput struct {
	TabID         uuid.UUID            `json:"tab_id"`
	PaymentMethod *enums.PaymentMethod `json:"payment_method,omitempty"`
}

type SplitTabInput struct {
	SourceTabID uuid.UUID `json:"source_tab_id"`
	NewTabName  string    `json:"new_tab_name"`
	ItemIndices []int     `json:"item_indices"`
}

type MoveItemsInput struct {
	FromTabID uuid.UUID   `json:"from_tab_id"`
	ToTabID   uuid.UUID   `json:"to_tab_id"`
	ItemIDs   []uuid.UUID `json:"item_ids"`
}
