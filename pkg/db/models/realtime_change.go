package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dinein-backend/pkg/db/types"
	"github.com/angelmondragon/dinein-backend/pkg/enums"
)

// RealtimeChange is a row change captured in the writing transaction and
// relayed to subscribers afterwards.
type RealtimeChange struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	SourceTable  string           `gorm:"column:table_name;not null"`
	ChangeType   enums.ChangeType `gorm:"column:change_type;type:text;not null"`
	RowID        uuid.UUID        `gorm:"column:row_id;type:uuid;not null"`
	OldRow       dbtypes.JSON     `gorm:"column:old_row;type:jsonb"`
	NewRow       dbtypes.JSON     `gorm:"column:new_row;type:jsonb"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	PublishedAt  *time.Time       `gorm:"column:published_at"`
	AttemptCount int              `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string          `gorm:"column:last_error"`
	FailedAt     *time.Time       `gorm:"column:failed_at"`
}

func (RealtimeChange) TableName() string { return "realtime_changes" }

func (c *RealtimeChange) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
