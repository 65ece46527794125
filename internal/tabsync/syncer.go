package tabsync

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/angelmondragon/dinein-backend/internal/tabs"
	"github.com/angelmondragon/dinein-backend/pkg/db/models"
	"github.com/angelmondragon/dinein-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dinein-backend/pkg/errors"
	"github.com/angelmondragon/dinein-backend/pkg/logger"
	"github.com/angelmondragon/dinein-backend/pkg/realtime"
	"github.com/google/uuid"
)

type Store interface {
	ActiveTabsByTable(ctx context.Context, tableNumber int) ([]models.CustomerTab, error)
}

type Commands interface {
	CreateTab(ctx context.Context, input tabs.CreateTabInput) (uuid.UUID, error)
	AddItems(ctx context.Context, tabID uuid.UUID, itemIDs []uuid.UUID) error
	UpdateTab(ctx context.Context, input tabs.UpdateTabInput) error
	CloseTab(ctx context.Context, input tabs.CloseTabInput) error
	SplitTab(ctx context.Context, input tabs.SplitTabInput) (uuid.UUID, error)
	MergeTabs(ctx context.Context, sourceID, targetID uuid.UUID) error
	MoveItems(ctx context.Context, input tabs.MoveItemsInput) error
}

type Params struct {
	Store    Store
	Commands Commands
	Feed     realtime.Feed
	Logger   *logger.Logger
}

type Snapshot struct {
	TableNumber int
	Tabs        []models.CustomerTab
	Selected    uuid.UUID
	Loading     bool
	Err         error
}

// SelectedTab returns the selected tab, if it is still cached.
func (s Snapshot) SelectedTab() *models.CustomerTab {
	for i := range s.Tabs {
		if s.Tabs[i].ID == s.Selected {
			return &s.Tabs[i]
		}
	}
	return nil
}

// Syncer caches the active customer tabs of one table.
type Syncer struct {
	store    Store
	commands Commands
	feed     realtime.Feed
	logg     *logger.Logger

	mu          sync.Mutex
	gen         uint64
	tableNumber int
	tabs        []models.CustomerTab
	selected    uuid.UUID
	loading     int
	lastErr     error
	sub         realtime.Subscription
	listener    func(Snapshot)
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
	return &Syncer{
		store:    params.Store,
		commands: params.Commands,
		feed:     params.Feed,
		logg:     params.Logger,
	}, nil
}

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
		TableNumber: s.tableNumber,
		Selected:    s.selected,
		Loading:     s.loading > 0,
		Err:         s.lastErr,
	}
	snap.Tabs = make([]models.CustomerTab, len(s.tabs))
	for i, tab := range s.tabs {
		tab.ItemIDs = append(tab.ItemIDs[:0:0], tab.ItemIDs...)
		snap.Tabs[i] = tab
	}
	return snap
}

// Select marks tabID as the working tab. uuid.Nil clears the selection.
func (s *Syncer) Select(tabID uuid.UUID) {
	s.mu.Lock()
	s.selected = tabID
	s.mu.Unlock()
	s.emit()
}

// SetTable switches to tableNumber; a value <= 0 clears the cache.
func (s *Syncer) SetTable(ctx context.Context, tableNumber int) error {
	if tableNumber < 0 {
		tableNumber = 0
	}
	s.mu.Lock()
	s.gen++
	gen := s.gen
	old := s.sub
	s.sub = nil
	s.tableNumber = tableNumber
	s.tabs = nil
	s.selected = uuid.Nil
	s.mu.Unlock()

	if old != nil {
		if err := old.Unsubscribe(); err != nil {
			s.logg.Error(ctx, "tab unsubscribe failed", err)
		}
	}
	s.emit()
	if tableNumber == 0 {
		return nil
	}

	ctx = s.logg.WithField(ctx, "table_number", tableNumber)
	sub, err := s.feed.Subscribe(ctx, enums.TableCustomerTabs, realtime.Eq("table_number", tableNumber), s.handler(gen))
	if err != nil {
		return fmt.Errorf("subscribe tabs: %w", err)
	}
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return sub.Unsubscribe()
	}
	s.sub = sub
	s.mu.Unlock()

	s.fetch(ctx, gen)
	return nil
}

func (s *Syncer) Close() error {
	s.mu.Lock()
	s.gen++
	old := s.sub
	s.sub = nil
	s.mu.Unlock()
	if old == nil {
		return nil
	}
	return old.Unsubscribe()
}

func (s *Syncer) fetch(ctx context.Context, gen uint64) {
	s.mu.Lock()
	tableNumber := s.tableNumber
	s.mu.Unlock()

	list, err := s.store.ActiveTabsByTable(ctx, tableNumber)
	if err != nil {
		s.logg.Error(ctx, "tabs fetch failed", err)
		s.apply(gen, func() { s.lastErr = err })
		return
	}
	s.apply(gen, func() {
		s.tabs = list
		if s.selected == uuid.Nil && len(list) > 0 {
			s.selected = list[0].ID
		}
	})
}

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

func (s *Syncer) handler(gen uint64) realtime.Handler {
	return func(ctx context.Context, event realtime.ChangeEvent) {
		var tab models.CustomerTab
		var err error
		if event.Type == enums.ChangeDelete {
			err = event.DecodeOld(&tab)
		} else {
			err = event.DecodeNew(&tab)
		}
		if err != nil {
			s.logg.Error(ctx, "tab event decode failed", err)
			return
		}

		s.apply(gen, func() {
			idx := s.indexOf(tab.ID)
			switch {
			case event.Type == enums.ChangeDelete, !tab.IsActive():
				if idx >= 0 {
					s.removeAt(idx)
				}
			case idx >= 0:
				s.tabs[idx] = tab
			default:
				s.tabs = append(s.tabs, tab)
			}
		})
	}
}

func (s *Syncer) indexOf(id uuid.UUID) int {
	for i := range s.tabs {
		if s.tabs[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Syncer) removeAt(idx int) {
	if s.tabs[idx].ID == s.selected {
		s.selected = uuid.Nil
	}
	s.tabs = append(s.tabs[:idx], s.tabs[idx+1:]...)
}

// run tracks loading and the last error. Tab failures are diagnostics only;
// the caller decides what to show.
func (s *Syncer) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx = s.logg.WithOperation(ctx, op)
	s.mu.Lock()
	s.loading++
	s.lastErr = nil
	s.mu.Unlock()
	s.emit()
	defer func() {
		s.mu.Lock()
		s.loading--
		s.mu.Unlock()
		s.emit()
	}()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		s.logg.Error(ctx, "tab command failed", err)
		return err
	}
	return nil
}

// CreateTab opens a tab on the current table and selects it.
func (s *Syncer) CreateTab(ctx context.Context, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.run(ctx, "create_customer_tab", func(ctx context.Context) error {
		s.mu.Lock()
		tableNumber := s.tableNumber
		s.mu.Unlock()
		if tableNumber == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "no table selected")
		}
		if strings.TrimSpace(name) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "tab name is required")
		}
		var err error
		id, err = s.commands.CreateTab(ctx, tabs.CreateTabInput{TableNumber: tableNumber, Name: name})
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.Select(id)
	return id, nil
}

func (s *Syncer) AddItemsToTab(ctx context.Context, tabID uuid.UUID, itemIDs []uuid.UUID) error {
	return s.run(ctx, "add_items_to_customer_tab", func(ctx context.Context) error {
		return s.commands.AddItems(ctx, tabID, itemIDs)
	})
}

func (s *Syncer) RenameTab(ctx context.Context, tabID uuid.UUID, name string) error {
	return s.run(ctx, "update_customer_tab", func(ctx context.Context) error {
		return s.commands.UpdateTab(ctx, tabs.UpdateTabInput{TabID: tabID, Name: &name})
	})
}

func (s *Syncer) CloseTab(ctx context.Context, tabID uuid.UUID, method *enums.PaymentMethod) error {
	return s.run(ctx, "close_customer_tab", func(ctx context.Context) error {
		return s.commands.CloseTab(ctx, tabs.CloseTabInput{TabID: tabID, PaymentMethod: method})
	})
}

func (s *Syncer) SplitTab(ctx context.Context, sourceID uuid.UUID, newName string, indices []int) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.run(ctx, "split_customer_tab", func(ctx context.Context) error {
		var err error
		id, err = s.commands.SplitTab(ctx, tabs.SplitTabInput{SourceTabID: sourceID, NewTabName: newName, ItemIndices: indices})
		return err
	})
	return id, err
}

func (s *Syncer) MergeTabs(ctx context.Context, sourceID, targetID uuid.UUID) error {
	return s.run(ctx, "merge_customer_tabs", func(ctx context.Context) error {
		return s.commands.MergeTabs(ctx, sourceID, targetID)
	})
}

func (s *Syncer) MoveItemsBetweenTabs(ctx context.Context, fromID, toID uuid.UUID, itemIDs []uuid.UUID) error {
	return s.run(ctx, "move_items_between_customer_tabs", func(ctx context.Context) error {
		return s.commands.MoveItems(ctx, tabs.MoveItemsInput{FromTabID: fromID, ToTabID: toID, ItemIDs: itemIDs})
	})
}
