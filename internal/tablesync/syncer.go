package tablesync

import (
	"context"
	"fmt"
	"sync"

	"github.com/angelmondragon/dinein-backend/internal/orders"
	"github.com/angelmondragon/dinein-backend/pkg/db/models"
	"github.com/angelmondragon/dinein-backend/pkg/enums"
	"github.com/angelmondragon/dinein-backend/pkg/logger"
	"github.com/angelmondragon/dinein-backend/pkg/realtime"
	"github.com/google/uuid"
)

type Params struct {
	Store    Store
	Commands Commands
	Feed     realtime.Feed
	Notifier Notifier
	Logger   *logger.Logger
}

// Snapshot is a point-in-time copy of the cache.
type Snapshot struct {
	TableID       uuid.UUID
	Order         *models.Order
	Items         []orders.EnrichedItem
	Loading       bool
	Err           error
	DisplayStatus enums.TableDisplayStatus
}

// Syncer keeps the active order of one table and its enriched items current
// from the change feed.
type Syncer struct {
	store    Store
	commands Commands
	feed     realtime.Feed
	notifier Notifier
	logg     *logger.Logger

	mu       sync.Mutex
	gen      uint64
	tableID  uuid.UUID
	order    *models.Order
	items    []orders.EnrichedItem
	loading  int
	lastErr  error
	subs     []realtime.Subscription
	listener func(Snapshot)
}

func New(params Params) (*Syncer, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if params.Commands == nil {
		return nil, fmt.Errorf("commands required")
	}
	if params.Feed == nil {
		return nil, fmt.Errorf("feed required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Syncer{
		store:    params.Store,
		commands: params.Commands,
		feed:     params.Feed,
		notifier: notifier,
		logg:     params.Logger,
	}, nil
}

// DeriveTableDisplayStatus maps the cached order to a floor-plan status.
func DeriveTableDisplayStatus(order *models.Order) enums.TableDisplayStatus {
	if order == nil {
		return enums.TableDisplayAvailable
	}
	return enums.DisplayStatusFor(order.Status)
}

// OnChange registers fn to run after every cache change. It replaces any
// previous listener.
func (s *Syncer) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.listener = fn
	s.mu.Unlock()
}

func (s *Syncer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Syncer) snapshotLocked() Snapshot {
	snap := Snapshot{
		TableID:       s.tableID,
		Loading:       s.loading > 0,
		Err:           s.lastErr,
		DisplayStatus: DeriveTableDisplayStatus(s.order),
	}
	if s.order != nil {
		order := *s.order
		order.Items = append([]models.DineInOrderItem(nil), s.order.Items...)
		snap.Order = &order
	}
	snap.Items = append([]orders.EnrichedItem(nil), s.items...)
	return snap
}

// SetTable switches the cache to tableID. The previous subscriptions are
// gone when it returns; uuid.Nil leaves the syncer idle.
func (s *Syncer) SetTable(ctx context.Context, tableID uuid.UUID) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	old := s.subs
	s.subs = nil
	s.tableID = tableID
	s.order = nil
	s.items = nil
	s.mu.Unlock()

	if err := realtime.UnsubscribeAll(old); err != nil {
		s.logg.Error(ctx, "table unsubscribe failed", err)
	}
	s.emit()
	if tableID == uuid.Nil {
		return nil
	}

	ctx = s.logg.WithTableID(ctx, tableID.String())
	filter := realtime.Eq("table_id", tableID)
	orderSub, err := s.feed.Subscribe(ctx, enums.TableOrders, filter, s.orderHandler(gen))
	if err != nil {
		return fmt.Errorf("subscribe orders: %w", err)
	}
	itemSub, err := s.feed.Subscribe(ctx, enums.TableOrderItems, filter, s.itemHandler(gen))
	if err != nil {
		_ = orderSub.Unsubscribe()
		return fmt.Errorf("subscribe items: %w", err)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return realtime.UnsubscribeAll([]realtime.Subscription{orderSub, itemSub})
	}
	s.subs = []realtime.Subscription{orderSub, itemSub}
	s.mu.Unlock()

	s.refresh(ctx, gen)
	return nil
}

// Close tears down the subscriptions; the cache keeps its last state.
func (s *Syncer) Close() error {
	s.mu.Lock()
	s.gen++
	old := s.subs
	s.subs = nil
	s.mu.Unlock()
	return realtime.UnsubscribeAll(old)
}

// Refresh re-reads the active order and its items.
func (s *Syncer) Refresh(ctx context.Context) {
	s.mu.Lock()
	gen := s.gen
	idle := s.tableID == uuid.Nil
	s.mu.Unlock()
	if !idle {
		s.refresh(ctx, gen)
	}
}

func (s *Syncer) refresh(ctx context.Context, gen uint64) {
	s.mu.Lock()
	tableID := s.tableID
	s.mu.Unlock()

	order, err := s.store.ActiveOrderForTable(ctx, tableID)
	if err != nil {
		s.logg.Error(ctx, "active order fetch failed", err)
		s.apply(gen, func() { s.lastErr = err })
		return
	}
	if order == nil {
		s.apply(gen, func() {
			s.order = nil
			s.items = nil
		})
		return
	}
	if !s.apply(gen, func() { s.order = order }) {
		return
	}
	s.fetchItems(ctx, gen, order.ID)
}

func (s *Syncer) fetchItems(ctx context.Context, gen uint64, orderID uuid.UUID) {
	items, err := s.store.EnrichedItems(ctx, orderID)
	if err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, orderID.String()), "order items fetch failed", err)
		return
	}
	s.apply(gen, func() {
		if s.order == nil || s.order.ID != orderID {
			return
		}
		s.items = items
	})
}

// apply runs fn under the lock when gen is still current and reports
// whether it ran.
func (s *Syncer) apply(gen uint64, fn func()) bool {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return false
	}
	fn()
	s.mu.Unlock()
	s.emit()
	return true
}

func (s *Syncer) emit() {
	s.mu.Lock()
	listener := s.listener
	snap := s.snapshotLocked()
	s.mu.Unlock()
	if listener != nil {
		listener(snap)
	}
}

func (s *Syncer) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

func (s *Syncer) orderHandler(gen uint64) realtime.Handler {
	return func(ctx context.Context, event realtime.ChangeEvent) {
		if !s.current(gen) {
			return
		}
		if event.Type == enums.ChangeDelete {
			var gone models.Order
			_ = event.DecodeOld(&gone)
			s.apply(gen, func() {
				if s.order == nil || gone.ID == uuid.Nil || s.order.ID == gone.ID {
					s.order = nil
					s.items = nil
				}
			})
			return
		}

		var order models.Order
		if err := event.DecodeNew(&order); err != nil {
			s.logg.Error(ctx, "order event decode failed", err)
			return
		}
		if !order.IsActive() {
			s.apply(gen, func() {
				if s.order == nil || s.order.ID == order.ID {
					s.order = nil
					s.items = nil
				}
			})
			return
		}
		if !s.apply(gen, func() {
			if s.order != nil && s.order.ID == order.ID && len(order.Items) == 0 {
				order.Items = s.order.Items
			}
			s.order = &order
		}) {
			return
		}
		s.fetchItems(ctx, gen, order.ID)
	}
}

func (s *Syncer) itemHandler(gen uint64) realtime.Handler {
	return func(ctx context.Context, _ realtime.ChangeEvent) {
		s.mu.Lock()
		if s.gen != gen || s.order == nil {
			s.mu.Unlock()
			return
		}
		orderID := s.order.ID
		s.mu.Unlock()
		s.fetchItems(ctx, gen, orderID)
	}
}
