package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/dinein-backend/pkg/logger"
)

const (
	defaultChangeRetention = 72 * time.Hour
	defaultRetentionBatch  = 1000
	maxRetentionBatches    = 50
)

type changePruner interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type RealtimeRetentionJobParams struct {
	Logger    *logger.Logger
	Changes   changePruner
	Retention time.Duration
	BatchSize int
	Clock     func() time.Time
}

// NewRealtimeRetentionJob prunes published realtime_changes rows. Unpublished
// rows are never touched.
func NewRealtimeRetentionJob(params RealtimeRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Changes == nil {
		return nil, fmt.Errorf("change repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultChangeRetention
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultRetentionBatch
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &realtimeRetentionJob{
		logg:      params.Logger,
		changes:   params.Changes,
		retention: retention,
		batch:     batch,
		now:       clock,
	}, nil
}

type realtimeRetentionJob struct {
	logg      *logger.Logger
	changes   changePruner
	retention time.Duration
	batch     int
	now       func() time.Time
}

func (j *realtimeRetentionJob) Name() string { return "realtime-retention" }

// Run deletes in batches until a short batch comes back.
func (j *realtimeRetentionJob) Run(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.retention)
	var total int64
	for i := 0; i < maxRetentionBatches; i++ {
		deleted, err := j.changes.DeletePublishedBefore(ctx, cutoff, j.batch)
		if err != nil {
			return total, fmt.Errorf("prune realtime changes: %w", err)
		}
		total += deleted
		if deleted < int64(j.batch) {
			break
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": total,
	}), "realtime retention complete")
	return total, nil
}
