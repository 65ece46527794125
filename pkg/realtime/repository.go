package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/dinein-backend/pkg/db/models"
)

type Repository struct {
	db       *gorm.DB
	lockRows bool
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, lockRows: db != nil && db.Dialector.Name() == "postgres"}
}

func (r *Repository) DB() *gorm.DB {
	return r.db
}

func (r *Repository) Insert(tx *gorm.DB, change *models.RealtimeChange) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(change).Error
}

// FetchPendingForPublish returns unpublished, non-terminal changes in commit
// order. On postgres the rows stay locked for the caller's transaction.
func (r *Repository) FetchPendingForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.RealtimeChange, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if limit <= 0 {
		limit = 50
	}
	q := tx.Where("published_at IS NULL").
		Where("failed_at IS NULL")
	if maxAttempts > 0 {
		q = q.Where("attempt_count < ?", maxAttempts)
	}
	q = q.Order("created_at ASC").Order("id ASC").Limit(limit)
	if r.lockRows {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	var rows []models.RealtimeChange
	err := q.Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublishedTx(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return tx.Model(&models.RealtimeChange{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"published_at": at,
			"last_error":   nil,
		}).Error
}

func (r *Repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	return tx.Model(&models.RealtimeChange{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    errorText(err),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// MarkTerminalTx parks a change that exhausted its attempts.
func (r *Repository) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, at time.Time) error {
	return tx.Model(&models.RealtimeChange{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    errorText(err),
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"failed_at":     at,
		}).Error
}

// DeletePublishedBefore removes up to limit published changes older than cutoff.
func (r *Repository) DeletePublishedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 1000
	}
	ids := r.db.WithContext(ctx).
		Model(&models.RealtimeChange{}).
		Select("id").
		Where("published_at IS NOT NULL AND published_at < ?", cutoff).
		Order("published_at ASC").
		Limit(limit)
	res := r.db.WithContext(ctx).
		Where("id IN (?)", ids).
		Delete(&models.RealtimeChange{})
	return res.RowsAffected, res.Error
}

// CountPending reports the relay backlog.
func (r *Repository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.RealtimeChange{}).
		Where("published_at IS NULL AND failed_at IS NULL").
		Count(&n).Error
	return n, err
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > 1024 {
		msg = msg[:1024]
	}
	return msg
}

// EventFromRow converts a stored change into the delivered event.
func EventFromRow(row models.RealtimeChange) ChangeEvent {
	return ChangeEvent{
		ID:              row.ID,
		Table:           row.SourceTable,
		Type:            row.ChangeType,
		New:             row.NewRow.Raw(),
		Old:             row.OldRow.Raw(),
		CommitTimestamp: row.CreatedAt.UTC(),
	}
}
