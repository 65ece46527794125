package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type MenuCategory struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	SortOrder int       `gorm:"column:sort_order;not null;default:0" json:"sort_order"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (MenuCategory) TableName() string { return "menu_categories" }

func (c *MenuCategory) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// MenuItem is the source of display fields for enriched order items.
type MenuItem struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CategoryID         *uuid.UUID      `gorm:"column:category_id;type:uuid" json:"category_id,omitempty"`
	Name               string          `gorm:"column:name;not null" json:"name"`
	KitchenDisplayName *string         `gorm:"column:kitchen_display_name" json:"kitchen_display_name,omitempty"`
	ImageURL           *string         `gorm:"column:image_url" json:"image_url,omitempty"`
	Price              decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null" json:"price"`
	IsVegetarian       *bool           `gorm:"column:is_vegetarian" json:"is_vegetarian,omitempty"`
	IsVegan            *bool           `gorm:"column:is_vegan" json:"is_vegan,omitempty"`
	IsGlutenFree       *bool           `gorm:"column:is_gluten_free" json:"is_gluten_free,omitempty"`
	SpiceLevel         *int            `gorm:"column:spice_level" json:"spice_level,omitempty"`
	IsActive           bool            `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (MenuItem) TableName() string { return "menu_items" }

func (m *MenuItem) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
