package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dinein-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/dinein-backend/pkg/db/types"
	"github.com/angelmondragon/dinein-backend/pkg/enums"
	"github.com/angelmondragon/dinein-backend/pkg/logger"
)

// Change describes one row mutation made inside a command transaction.
type Change struct {
	Table string
	Type  enums.ChangeType
	RowID uuid.UUID
	Old   any
	New   any
}

// Recorder captures changes in the caller's transaction so they commit or
// roll back with the rows they describe.
type Recorder struct {
	repo *Repository
	logg *logger.Logger
}

func NewRecorder(repo *Repository, logg *logger.Logger) *Recorder {
	return &Recorder{repo: repo, logg: logg}
}

func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, changes ...Change) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for _, change := range changes {
		if !change.Type.IsValid() {
			return fmt.Errorf("invalid change type %q", change.Type)
		}
		if change.Table == "" {
			return errors.New("change table required")
		}
		oldRow, err := encodeRow(change.Old)
		if err != nil {
			return fmt.Errorf("encode old %s row: %w", change.Table, err)
		}
		newRow, err := encodeRow(change.New)
		if err != nil {
			return fmt.Errorf("encode new %s row: %w", change.Table, err)
		}
		row := &models.RealtimeChange{
			SourceTable: change.Table,
			ChangeType:  change.Type,
			RowID:       change.RowID,
			OldRow:      oldRow,
			NewRow:      newRow,
		}
		if err := r.repo.Insert(tx, row); err != nil {
			return err
		}
		if r.logg != nil {
			logCtx := r.logg.WithFields(ctx, map[string]any{
				"change_id":   row.ID.String(),
				"change_type": change.Type,
				"table":       change.Table,
				"row_id":      change.RowID.String(),
			})
			r.logg.Debug(logCtx, "realtime change queued")
		}
	}
	return nil
}

func encodeRow(v any) (dbtypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return nil, nil
	}
	return dbtypes.JSON(data), nil
}
