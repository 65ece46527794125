package brain

import (
	"github.com/angelmondragon/dinein-backend/pkg/enums"
	"github.com/google/uuid"
)

type OrderRef struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
}

type ItemRef struct {
	ItemID uuid.UUID `json:"item_id" validate:"required"`
}

type GroupRef struct {
	TableGroupID uuid.UUID `json:"table_group_id" validate:"required"`
}

type QuantityRequest struct {
	ItemID   uuid.UUID `json:"item_id" validate:"required"`
	Quantity int       `json:"quantity"`
}

type GuestCountRequest struct {
	OrderID    uuid.UUID `json:"order_id" validate:"required"`
	GuestCount int       `json:"guest_count" validate:"gte=1"`
}

type ItemStatusRequest struct {
	ItemID uuid.UUID        `json:"item_id" validate:"required"`
	Status enums.ItemStatus `json:"status" validate:"required"`
}

type TabItemsRequest struct {
	TabID   uuid.UUID   `json:"tab_id" validate:"required"`
	ItemIDs []uuid.UUID `json:"item_ids" validate:"required,min=1"`
}

type MergeTabsRequest struct {
	SourceTabID uuid.UUID `json:"source_tab_id" validate:"required"`
	TargetTabID uuid.UUID `json:"target_tab_id" validate:"required"`
}

type OrderCreated struct {
	OrderID uuid.UUID `json:"order_id"`
}

type ItemAdded struct {
	ItemID uuid.UUID `json:"item_id"`
}

type SentToKitchen struct {
	SentItems int `json:"sent_items"`
}

type TablesLinked struct {
	TableGroupID uuid.UUID `json:"table_group_id"`
}

type TabCreated struct {
	TabID uuid.UUID `json:"tab_id"`
}

type TabSplit struct {
	NewTabID uuid.UUID `json:"new_tab_id"`
}
