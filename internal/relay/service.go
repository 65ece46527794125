package relay

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/angelmondragon/dinein-backend/pkg/config"
	"github.com/angelmondragon/dinein-backend/pkg/db/models"
	"github.com/angelmondragon/dinein-backend/pkg/logger"
	"github.com/angelmondragon/dinein-backend/pkg/metrics"
	"github.com/angelmondragon/dinein-backend/pkg/realtime"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 250 * time.Millisecond
	defaultPublishTimeout = 10 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type changeQueue interface {
	FetchPendingForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.RealtimeChange, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID, at time.Time) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, at time.Time) error
	CountPending(ctx context.Context) (int64, error)
}

type ServiceParams struct {
	Config  config.RelayConfig
	Logger  *logger.Logger
	DB      txRunner
	Changes changeQueue
	Sinks   []Sink
	Metrics *metrics.RelayMetrics
	Clock   func() time.Time
}

// Service drains realtime_changes into the configured sinks. Delivery is at
// least once: a change is retried on every sink until all of them accept it.
type Service struct {
	logg         *logger.Logger
	db           txRunner
	changes      changeQueue
	sinks        []Sink
	metrics      *metrics.RelayMetrics
	now          func() time.Time
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Changes == nil {
		return nil, errors.New("change repository is required")
	}
	if len(params.Sinks) == 0 {
		return nil, errors.New("at least one sink is required")
	}
	batch := params.Config.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	poll := time.Duration(params.Config.PollIntervalMS) * time.Millisecond
	if poll <= 0 {
		poll = defaultPollInterval
	}
	maxAttempts := params.Config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		changes:      params.Changes,
		sinks:        params.Sinks,
		metrics:      params.Metrics,
		now:          clock,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: poll,
	}, nil
}

// Run polls until ctx is cancelled. Full batches are followed immediately by
// the next poll; batch errors back off exponentially.
func (s *Service) Run(ctx context.Context) error {
	backoff := s.pollInterval
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		processed, err := s.processBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "relay batch failed", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
			if err := sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}
		backoff = s.pollInterval

		if processed >= s.batchSize {
			continue
		}
		s.reportBacklog(ctx)
		if err := sleep(ctx, withJitter(s.pollInterval)); err != nil {
			return err
		}
	}
}

func (s *Service) processBatch(ctx context.Context) (int, error) {
	processed := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.changes.FetchPendingForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch changes: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		s.metrics.IncBatch()
		processed = len(rows)

		for _, row := range rows {
			if err := s.relayRow(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	return processed, err
}

// relayRow only returns errors from bookkeeping; sink failures are recorded
// on the row.
func (s *Service) relayRow(ctx context.Context, tx *gorm.DB, row models.RealtimeChange) error {
	event := realtime.EventFromRow(row)
	fields := map[string]any{
		"change_id":     row.ID.String(),
		"table":         row.SourceTable,
		"change_type":   row.ChangeType,
		"row_id":        row.RowID.String(),
		"attempt_count": row.AttemptCount,
	}

	pubErr := s.publish(ctx, event)
	if pubErr == nil {
		if err := s.changes.MarkPublishedTx(tx, row.ID, s.now().UTC()); err != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		s.logg.Debug(s.logg.WithFields(ctx, fields), "realtime change relayed")
		return nil
	}

	next := row.AttemptCount + 1
	fields["attempt_count"] = next
	logCtx := s.logg.WithFields(ctx, fields)
	if next >= s.maxAttempts {
		s.logg.Error(logCtx, "realtime change parked after max attempts", pubErr)
		s.metrics.IncTerminal()
		if err := s.changes.MarkTerminalTx(tx, row.ID, pubErr, s.now().UTC()); err != nil {
			return fmt.Errorf("mark terminal %s: %w", row.ID, err)
		}
		return nil
	}
	s.logg.Warn(s.logg.WithField(logCtx, "error", pubErr.Error()), "realtime change publish failed")
	if err := s.changes.MarkFailedTx(tx, row.ID, pubErr); err != nil {
		return fmt.Errorf("mark failure %s: %w", row.ID, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event realtime.ChangeEvent) error {
	var errs error
	for _, sink := range s.sinks {
		if !sink.Accepts(event) {
			continue
		}
		publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
		err := sink.Publish(publishCtx, event)
		cancel()
		if err != nil {
			s.metrics.IncFailed(sink.Name(), event.Table)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		s.metrics.IncPublished(sink.Name(), event.Table)
	}
	return errs
}

func (s *Service) reportBacklog(ctx context.Context) {
	n, err := s.changes.CountPending(ctx)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "relay backlog count failed")
		return
	}
	s.metrics.SetBacklog(n)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}
