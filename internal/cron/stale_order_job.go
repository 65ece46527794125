package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/dinein-backend/pkg/logger"
)

const (
	defaultStaleOrderAfter = 6 * time.Hour
	staleOrderBatch        = 200
)

type staleOrderCanceller interface {
	CancelStaleEmptyOrders(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type StaleOrderJobParams struct {
	Logger *logger.Logger
	Orders staleOrderCanceller
	After  time.Duration
	Clock  func() time.Time
}

// NewStaleOrderJob cancels orders that were opened but never received an
// item, which otherwise keep a table marked as seated.
func NewStaleOrderJob(params StaleOrderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	after := params.After
	if after <= 0 {
		after = defaultStaleOrderAfter
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &staleOrderJob{logg: params.Logger, orders: params.Orders, after: after, now: clock}, nil
}

type staleOrderJob struct {
	logg   *logger.Logger
	orders staleOrderCanceller
	after  time.Duration
	now    func() time.Time
}

func (j *staleOrderJob) Name() string { return "stale-empty-orders" }

func (j *staleOrderJob) Run(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.after)
	cancelled, err := j.orders.CancelStaleEmptyOrders(ctx, cutoff, staleOrderBatch)
	if err != nil {
		return int64(cancelled), fmt.Errorf("cancel stale orders: %w", err)
	}
	if cancelled > 0 {
		j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
			"cutoff":    cutoff,
			"cancelled": cancelled,
		}), "stale empty orders cancelled")
	}
	return int64(cancelled), nil
}
