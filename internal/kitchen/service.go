package kitchen

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/angelmondragon/dinein-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dinein-backend/pkg/errors"
	"github.com/angelmondragon/dinein-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Source produces tickets from one order channel.
type Source interface {
	Name() string
	Tickets(ctx context.Context) ([]Ticket, error)
}

type itemAdvancer interface {
	UpdateItemStatus(ctx context.Context, itemID uuid.UUID, status enums.ItemStatus) error
}

// Service builds the kitchen board. One instance is constructed per process
// and handed to whoever needs it.
type Service interface {
	Board(ctx context.Context) ([]Ticket, error)
	AdvanceItem(ctx context.Context, itemID uuid.UUID, status enums.ItemStatus) error
}

type ServiceParams struct {
	Sources      []Source
	Items        itemAdvancer
	WarningAfter time.Duration
	UrgentAfter  time.Duration
	Clock        func() time.Time
	Logger       *logger.Logger
}

type service struct {
	sources []Source
	items   itemAdvancer
	warning time.Duration
	urgent  time.Duration
	now     func() time.Time
	logg    *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if len(params.Sources) == 0 {
		return nil, fmt.Errorf("at least one ticket source required")
	}
	if params.Items == nil {
		return nil, fmt.Errorf("item advancer required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	warning, urgent := params.WarningAfter, params.UrgentAfter
	if warning <= 0 {
		warning = 10 * time.Minute
	}
	if urgent <= warning {
		urgent = 2 * warning
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		sources: params.Sources,
		items:   params.Items,
		warning: warning,
		urgent:  urgent,
		now:     clock,
		logg:    params.Logger,
	}, nil
}

// Board merges every source. A failing source is logged and skipped; the
// call fails only when no source answered.
func (s *service) Board(ctx context.Context) ([]Ticket, error) {
	now := s.now()
	seen := map[string]bool{}
	board := []Ticket{}
	var errs error
	answered := 0
	for _, src := range s.sources {
		tickets, err := src.Tickets(ctx)
		if err != nil {
			s.logg.Error(s.logg.WithField(ctx, "source", src.Name()), "kitchen source failed", err)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		answered++
		for _, ticket := range tickets {
			if seen[ticket.ID] {
				continue
			}
			seen[ticket.ID] = true
			waiting := now.Sub(ticket.SentAt)
			if waiting < 0 {
				waiting = 0
			}
			ticket.Status = ticketStatus(ticket.Items)
			ticket.Urgency = urgencyFor(waiting, s.warning, s.urgent)
			ticket.MinutesWaiting = int(waiting / time.Minute)
			board = append(board, ticket)
		}
	}
	if answered == 0 {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "kitchen board unavailable")
	}

	sort.SliceStable(board, func(i, j int) bool {
		ui, uj := urgencyRank[board[i].Urgency], urgencyRank[board[j].Urgency]
		if ui != uj {
			return ui > uj
		}
		return board[i].SentAt.Before(board[j].SentAt)
	})
	return board, nil
}

func (s *service) AdvanceItem(ctx context.Context, itemID uuid.UUID, status enums.ItemStatus) error {
	if err := s.items.UpdateItemStatus(ctx, itemID, status); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"item_id": itemID.String(),
		"status":  status,
	}), "kitchen item advanced")
	return nil
}
