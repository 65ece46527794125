package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/dinein-backend/pkg/db/types"
	"github.com/angelmondragon/dinein-backend/pkg/enums"
)

// Order is the single active dine-in order of a physical table.
type Order struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TableID       uuid.UUID            `gorm:"column:table_id;type:uuid;not null;index" json:"table_id"`
	TableNumber   int                  `gorm:"column:table_number;not null" json:"table_number"`
	Status        enums.OrderStatus    `gorm:"column:status;type:text;not null;default:'CREATED'" json:"status"`
	GuestCount    int                  `gorm:"column:guest_count;not null;default:1" json:"guest_count"`
	LinkedTables  dbtypes.IntArray     `gorm:"column:linked_tables;type:int[]" json:"linked_tables"`
	TableGroupID  *uuid.UUID           `gorm:"column:table_group_id;type:uuid" json:"table_group_id,omitempty"`
	ServerID      *uuid.UUID           `gorm:"column:server_id;type:uuid" json:"server_id,omitempty"`
	Subtotal      decimal.Decimal      `gorm:"column:subtotal;type:numeric(12,2);not null;default:0" json:"subtotal"`
	Tax           decimal.Decimal      `gorm:"column:tax;type:numeric(12,2);not null;default:0" json:"tax"`
	Total         decimal.Decimal      `gorm:"column:total;type:numeric(12,2);not null;default:0" json:"total"`
	PaymentMethod *enums.PaymentMethod `gorm:"column:payment_method;type:text" json:"payment_method,omitempty"`
	AmountPaid    decimal.NullDecimal  `gorm:"column:amount_paid;type:numeric(12,2)" json:"amount_paid"`
	Items         []DineInOrderItem    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	PaidAt        *time.Time           `gorm:"column:paid_at" json:"paid_at,omitempty"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// IsActive reports whether the order still holds its table.
func (o *Order) IsActive() bool {
	return o != nil && o.Status.IsActive()
}
