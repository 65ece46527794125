package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/dinein-backend/pkg/logger"
)

type fakePruner struct {
	batches []int64
	cutoffs []time.Time
	err     error
}

func (f *fakePruner) DeletePublishedBefore(_ context.Context, cutoff time.Time, _ int) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	if f.err != nil {
		return 0, f.err
	}
	if len(f.batches) == 0 {
		return 0, nil
	}
	n := f.batches[0]
	f.batches = f.batches[1:]
	return n, nil
}

func TestRealtimeRetentionDeletesUntilShortBatch(t *testing.T) {
	now := time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC)
	pruner := &fakePruner{batches: []int64{10, 10, 3, 10}}
	job, err := NewRealtimeRetentionJob(RealtimeRetentionJobParams{
		Logger:    logger.Nop(),
		Changes:   pruner,
		Retention: 24 * time.Hour,
		BatchSize: 10,
		Clock:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}

	deleted, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if deleted != 23 {
		t.Fatalf("expected 23 deleted, got %d", deleted)
	}
	if len(pruner.cutoffs) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(pruner.cutoffs))
	}
	if want := now.Add(-24 * time.Hour); !pruner.cutoffs[0].Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, pruner.cutoffs[0])
	}
}

func TestRealtimeRetentionPropagatesError(t *testing.T) {
	job, _ := NewRealtimeRetentionJob(RealtimeRetentionJobParams{Logger: logger.Nop(), Changes: &fakePruner{err: errors.New("boom")}})
	if _, err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type fakeCanceller struct {
	cutoff time.Time
	limit  int
	n      int
	err    error
}

func (f *fakeCanceller) CancelStaleEmptyOrders(_ context.Context, cutoff time.Time, limit int) (int, error) {
	f.cutoff = cutoff
	f.limit = limit
	return f.n, f.err
}

func TestStaleOrderJobUsesConfiguredAge(t *testing.T) {
	now := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	orders := &fakeCanceller{n: 2}
	job, err := NewStaleOrderJob(StaleOrderJobParams{
		Logger: logger.Nop(),
		Orders: orders,
		After:  2 * time.Hour,
		Clock:  func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if job.Name() != "stale-empty-orders" {
		t.Fatalf("unexpected name %q", job.Name())
	}

	n, err := job.Run(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("expected 2 cancelled, got %d err=%v", n, err)
	}
	if want := now.Add(-2 * time.Hour); !orders.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, orders.cutoff)
	}
	if orders.limit != staleOrderBatch {
		t.Fatalf("expected limit %d, got %d", staleOrderBatch, orders.limit)
	}
}

func TestStaleOrderJobRequiresOrders(t *testing.T) {
	if _, err := NewStaleOrderJob(StaleOrderJobParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected error")
	}
}
