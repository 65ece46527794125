package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dinein-backend/pkg/db/types"
)

// POSTable is a physical table on the floor plan.
type POSTable struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TableNumber      int              `gorm:"column:table_number;not null;uniqueIndex" json:"table_number"`
	Capacity         int              `gorm:"column:capacity;not null;default:4" json:"capacity"`
	Section          *string          `gorm:"column:section" json:"section,omitempty"`
	IsLinkedTable    bool             `gorm:"column:is_linked_table;not null;default:false" json:"is_linked_table"`
	IsLinkedPrimary  bool             `gorm:"column:is_linked_primary;not null;default:false" json:"is_linked_primary"`
	TableGroupID     *uuid.UUID       `gorm:"column:table_group_id;type:uuid" json:"table_group_id,omitempty"`
	LinkedWithTables dbtypes.IntArray `gorm:"column:linked_with_tables;type:int[]" json:"linked_with_tables"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (POSTable) TableName() string { return "pos_tables" }

func (t *POSTable) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.LinkedWithTables == nil {
		t.LinkedWithTables = dbtypes.IntArray{}
	}
	return nil
}
