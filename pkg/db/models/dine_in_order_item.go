package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/dinein-backend/pkg/db/types"
	"github.com/angelmondragon/dinein-backend/pkg/enums"
)

// DineInOrderItem is one line on a dine-in order. TableID is denormalized so
// the change feed can be filtered per table.
type DineInOrderItem struct {
	ID                 uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID            uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	TableID            uuid.UUID              `gorm:"column:table_id;type:uuid;not null;index" json:"table_id"`
	CustomerTabID      *uuid.UUID             `gorm:"column:customer_tab_id;type:uuid" json:"customer_tab_id,omitempty"`
	MenuItemID         *uuid.UUID             `gorm:"column:menu_item_id;type:uuid" json:"menu_item_id,omitempty"`
	VariantID          *uuid.UUID             `gorm:"column:variant_id;type:uuid" json:"variant_id,omitempty"`
	CategoryID         *uuid.UUID             `gorm:"column:category_id;type:uuid" json:"category_id,omitempty"`
	Name               string                 `gorm:"column:name;not null" json:"name"`
	Quantity           int                    `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice          decimal.Decimal        `gorm:"column:unit_price;type:numeric(12,2);not null" json:"unit_price"`
	LineTotal          decimal.NullDecimal    `gorm:"column:line_total;type:numeric(12,2)" json:"line_total"`
	Customizations     dbtypes.Customizations `gorm:"column:customizations;type:jsonb" json:"customizations"`
	Notes              *string                `gorm:"column:notes" json:"notes,omitempty"`
	Status             enums.ItemStatus       `gorm:"column:status;type:text;not null;default:'PENDING'" json:"status"`
	SentToKitchenAt    *time.Time             `gorm:"column:sent_to_kitchen_at" json:"sent_to_kitchen_at,omitempty"`
	KitchenDisplayName *string                `gorm:"column:kitchen_display_name" json:"kitchen_display_name,omitempty"`
	ImageURL           *string                `gorm:"column:image_url" json:"image_url,omitempty"`
	IsVegetarian       *bool                  `gorm:"column:is_vegetarian" json:"is_vegetarian,omitempty"`
	IsVegan            *bool                  `gorm:"column:is_vegan" json:"is_vegan,omitempty"`
	IsGlutenFree       *bool                  `gorm:"column:is_gluten_free" json:"is_gluten_free,omitempty"`
	SpiceLevel         *int                   `gorm:"column:spice_level" json:"spice_level,omitempty"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time              `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (DineInOrderItem) TableName() string { return "dine_in_order_items" }

func (i *DineInOrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// ComputeLineTotal is unit price × quantity plus every customization
// adjustment, rounded to cents.
func (i DineInOrderItem) ComputeLineTotal() decimal.Decimal {
	base := i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
	return base.Add(i.Customizations.Total()).Round(2)
}

// EffectiveLineTotal is the stored line total, or unit price × quantity when
// the column is NULL.
func (i DineInOrderItem) EffectiveLineTotal() decimal.Decimal {
	if i.LineTotal.Valid {
		return i.LineTotal.Decimal
	}
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))).Round(2)
}
