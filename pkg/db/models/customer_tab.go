package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/dinein-backend/pkg/db/types"
	"github.com/angelmondragon/dinein-backend/pkg/enums"
)

// CustomerTab is a named split-billing sub-ledger of items within one order.
type CustomerTab struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID       uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	TableNumber   int                  `gorm:"column:table_number;not null;index" json:"table_number"`
	Name          string               `gorm:"column:name;not null" json:"name"`
	ItemIDs       dbtypes.UUIDArray    `gorm:"column:item_ids;type:uuid[]" json:"item_ids"`
	Subtotal      decimal.Decimal      `gorm:"column:subtotal;type:numeric(12,2);not null;default:0" json:"subtotal"`
	Tax           decimal.Decimal      `gorm:"column:tax;type:numeric(12,2);not null;default:0" json:"tax"`
	Tip           decimal.Decimal      `gorm:"column:tip;type:numeric(12,2);not null;default:0" json:"tip"`
	Discount      decimal.Decimal      `gorm:"column:discount;type:numeric(12,2);not null;default:0" json:"discount"`
	Total         decimal.Decimal      `gorm:"column:total;type:numeric(12,2);not null;default:0" json:"total"`
	Status        enums.TabStatus      `gorm:"column:status;type:text;not null;default:'active'" json:"status"`
	PaymentMethod *enums.PaymentMethod `gorm:"column:payment_method;type:text" json:"payment_method,omitempty"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	PaidAt        *time.Time           `gorm:"column:paid_at" json:"paid_at,omitempty"`
}

func (CustomerTab) TableName() string { return "customer_tabs" }

func (t *CustomerTab) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.ItemIDs == nil {
		t.ItemIDs = dbtypes.UUIDArray{}
	}
	return nil
}

func (t *CustomerTab) IsActive() bool {
	return t != nil && t.Status == enums.TabStatusActive
}
