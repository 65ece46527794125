package tabsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/dinein-backend/internal/tabs"
	dbpkg "github.com/angelmondragon/dinein-backend/pkg/db"
	"github.com/angelmondragon/dinein-backend/pkg/db/dbtest"
	"github.com/angelmondragon/dinein-backend/pkg/db/models"
	"github.com/angelmondragon/dinein-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dinein-backend/pkg/errors"
	"github.com/angelmondragon/dinein-backend/pkg/logger"
	"github.com/angelmondragon/dinein-backend/pkg/realtime"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// relayedTabs runs the real tab service and pushes the queued changes into
// the hub once each command has committed.
type relayedTabs struct {
	tabs.Service
	t    *testing.T
	conn *gorm.DB
	repo *realtime.Repository
	hub  *realtime.Hub
}

func (r *relayedTabs) pump() {
	r.t.Helper()
	var rows []models.RealtimeChange
	require.NoError(r.t, r.conn.Transaction(func(tx *gorm.DB) error {
		var err error
		if rows, err = r.repo.FetchPendingForPublish(tx, 100, 5); err != nil {
			return err
		}
		for _, row := range rows {
			if err := r.repo.MarkPublishedTx(tx, row.ID, time.Now()); err != nil {
				return err
			}
		}
		return nil
	}))
	for _, row := range rows {
		require.NoError(r.t, r.hub.Publish(context.Background(), realtime.EventFromRow(row)))
	}
}

func (r *relayedTabs) CreateTab(ctx context.Context, input tabs.CreateTabInput) (uuid.UUID, error) {
	defer r.pump()
	return r.Service.CreateTab(ctx, input)
}

func (r *relayedTabs) AddItems(ctx context.Context, tabID uuid.UUID, itemIDs []uuid.UUID) error {
	defer r.pump()
	return r.Service.AddItems(ctx, tabID, itemIDs)
}

func (r *relayedTabs) UpdateTab(ctx context.Context, input tabs.UpdateTabInput) error {
	defer r.pump()
	return r.Service.UpdateTab(ctx, input)
}

func (r *relayedTabs) CloseTab(ctx context.Context, input tabs.CloseTabInput) error {
	defer r.pump()
	return r.Service.CloseTab(ctx, input)
}

func (r *relayedTabs) SplitTab(ctx context.Context, input tabs.SplitTabInput) (uuid.UUID, error) {
	defer r.pump()
	return r.Service.SplitTab(ctx, input)
}

func (r *relayedTabs) MergeTabs(ctx context.Context, sourceID, targetID uuid.UUID) error {
	defer r.pump()
	return r.Service.MergeTabs(ctx, sourceID, targetID)
}

func (r *relayedTabs) MoveItems(ctx context.Context, input tabs.MoveItemsInput) error {
	defer r.pump()
	return r.Service.MoveItems(ctx, input)
}

type tabEnv struct {
	syncer   *Syncer
	hub      *realtime.Hub
	commands *relayedTabs
	items    []uuid.UUID
}

// newTabEnv seeds table 4 with an active order holding items priced 8, 12 and 20.
func newTabEnv(t *testing.T) *tabEnv {
	t.Helper()
	conn := dbtest.Open(t)
	changes := realtime.NewRepository(conn)
	svc, err := tabs.NewService(tabs.ServiceParams{
		Repo:    tabs.NewRepository(conn),
		Tx:      dbpkg.Wrap(conn),
		Changes: realtime.NewRecorder(changes, logger.Nop()),
		TaxRate: decimal.Zero,
		Clock:   time.Now,
		Logger:  logger.Nop(),
	})
	require.NoError(t, err)

	table := models.POSTable{TableNumber: 4, Capacity: 4}
	require.NoError(t, conn.Create(&table).Error)
	order := models.Order{TableID: table.ID, TableNumber: 4, Status: enums.OrderStatusCreated, GuestCount: 2}
	require.NoError(t, conn.Create(&order).Error)

	env := &tabEnv{hub: realtime.NewHub()}
	for _, price := range []int64{8, 12, 20} {
		item := models.DineInOrderItem{
			OrderID:   order.ID,
			TableID:   table.ID,
			Name:      "Plate",
			Quantity:  1,
			UnitPrice: decimal.NewFromInt(price),
			LineTotal: decimal.NewNullDecimal(decimal.NewFromInt(price)),
			Status:    enums.ItemStatusPending,
		}
		require.NoError(t, conn.Create(&item).Error)
		env.items = append(env.items, item.ID)
	}

	env.commands = &relayedTabs{Service: svc, t: t, conn: conn, repo: changes, hub: env.hub}
	env.syncer, err = New(Params{Store: svc, Commands: env.commands, Feed: env.hub, Logger: logger.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.syncer.Close() })
	return env
}

func tabNames(snap Snapshot) []string {
	names := make([]string, 0, len(snap.Tabs))
	for _, tab := range snap.Tabs {
		names = append(names, tab.Name)
	}
	return names
}

func TestTabLifecycle(t *testing.T) {
	env := newTabEnv(t)
	ctx := context.Background()
	require.NoError(t, env.syncer.SetTable(ctx, 4))
	assert.Empty(t, env.syncer.Snapshot().Tabs)

	alice, err := env.syncer.CreateTab(ctx, "Alice")
	require.NoError(t, err)
	bob, err := env.syncer.CreateTab(ctx, "Bob")
	require.NoError(t, err)

	snap := env.syncer.Snapshot()
	assert.Equal(t, []string{"Alice", "Bob"}, tabNames(snap))
	assert.Equal(t, bob, snap.Selected)
	require.NotNil(t, snap.SelectedTab())
	assert.Equal(t, "Bob", snap.SelectedTab().Name)

	require.NoError(t, env.syncer.AddItemsToTab(ctx, alice, env.items))
	snap = env.syncer.Snapshot()
	assert.True(t, snap.Tabs[0].Total.Equal(decimal.NewFromInt(40)), snap.Tabs[0].Total.String())

	require.NoError(t, env.syncer.MoveItemsBetweenTabs(ctx, alice, bob, env.items[2:]))
	snap = env.syncer.Snapshot()
	assert.True(t, snap.Tabs[0].Total.Equal(decimal.NewFromInt(20)))
	assert.True(t, snap.Tabs[1].Total.Equal(decimal.NewFromInt(20)))

	require.NoError(t, env.syncer.RenameTab(ctx, bob, "Robert"))
	assert.Equal(t, []string{"Alice", "Robert"}, tabNames(env.syncer.Snapshot()))

	carol, err := env.syncer.SplitTab(ctx, alice, "Carol", []int{1})
	require.NoError(t, err)
	snap = env.syncer.Snapshot()
	require.Len(t, snap.Tabs, 3)
	assert.Equal(t, carol, snap.Tabs[2].ID)
	assert.Equal(t, []uuid.UUID{env.items[1]}, []uuid.UUID(snap.Tabs[2].ItemIDs))

	// merging cancels the source, which leaves the active set
	env.syncer.Select(carol)
	require.NoError(t, env.syncer.MergeTabs(ctx, carol, alice))
	snap = env.syncer.Snapshot()
	assert.Equal(t, []string{"Alice", "Robert"}, tabNames(snap))
	assert.Equal(t, uuid.Nil, snap.Selected)

	card := enums.PaymentMethodCard
	require.NoError(t, env.syncer.CloseTab(ctx, bob, &card))
	assert.Equal(t, []string{"Alice"}, tabNames(env.syncer.Snapshot()))
	assert.False(t, env.syncer.Snapshot().Loading)
}

func TestSetTableSelectsFirstTab(t *testing.T) {
	env := newTabEnv(t)
	ctx := context.Background()
	first, err := env.commands.Service.CreateTab(ctx, tabs.CreateTabInput{TableNumber: 4, Name: "First"})
	require.NoError(t, err)
	_, err = env.commands.Service.CreateTab(ctx, tabs.CreateTabInput{TableNumber: 4, Name: "Second"})
	require.NoError(t, err)

	require.NoError(t, env.syncer.SetTable(ctx, 4))
	snap := env.syncer.Snapshot()
	assert.Equal(t, []string{"First", "Second"}, tabNames(snap))
	assert.Equal(t, first, snap.Selected)
	assert.Equal(t, 1, env.hub.Len())

	require.NoError(t, env.syncer.SetTable(ctx, 0))
	snap = env.syncer.Snapshot()
	assert.Empty(t, snap.Tabs)
	assert.Equal(t, uuid.Nil, snap.Selected)
	assert.Equal(t, 0, env.hub.Len())
}

func TestTabEventsForOtherTablesAreFiltered(t *testing.T) {
	env := newTabEnv(t)
	ctx := context.Background()
	require.NoError(t, env.syncer.SetTable(ctx, 4))

	other := models.CustomerTab{ID: uuid.New(), TableNumber: 9, Name: "Elsewhere", Status: enums.TabStatusActive}
	require.NoError(t, env.hub.Publish(ctx, tabEvent(t, enums.ChangeInsert, other)))
	assert.Empty(t, env.syncer.Snapshot().Tabs)

	mine := models.CustomerTab{ID: uuid.New(), TableNumber: 4, Name: "Here", Status: enums.TabStatusActive}
	require.NoError(t, env.hub.Publish(ctx, tabEvent(t, enums.ChangeInsert, mine)))
	require.NoError(t, env.hub.Publish(ctx, tabEvent(t, enums.ChangeInsert, mine)))
	assert.Len(t, env.syncer.Snapshot().Tabs, 1)

	// an inactive insert is not added
	paid := models.CustomerTab{ID: uuid.New(), TableNumber: 4, Name: "Done", Status: enums.TabStatusPaid}
	require.NoError(t, env.hub.Publish(ctx, tabEvent(t, enums.ChangeInsert, paid)))
	assert.Len(t, env.syncer.Snapshot().Tabs, 1)

	env.syncer.Select(mine.ID)
	require.NoError(t, env.hub.Publish(ctx, tabEvent(t, enums.ChangeDelete, mine)))
	snap := env.syncer.Snapshot()
	assert.Empty(t, snap.Tabs)
	assert.Equal(t, uuid.Nil, snap.Selected)
}

func TestTabCommandFailuresAreReturned(t *testing.T) {
	env := newTabEnv(t)
	ctx := context.Background()

	_, err := env.syncer.CreateTab(ctx, "Nobody")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	require.NoError(t, env.syncer.SetTable(ctx, 4))
	_, err = env.syncer.CreateTab(ctx, "   ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	err = env.syncer.AddItemsToTab(ctx, uuid.New(), env.items[:1])
	require.Error(t, err)
	snap := env.syncer.Snapshot()
	assert.True(t, errors.Is(snap.Err, err))
	assert.False(t, snap.Loading)

	_, err = env.syncer.CreateTab(ctx, "Alice")
	require.NoError(t, err)
	assert.Nil(t, env.syncer.Snapshot().Err)
}

func TestStaleTabFetchIsDropped(t *testing.T) {
	store := &gatedStore{release: make(chan struct{}), entered: make(chan struct{})}
	s, err := New(Params{Store: store, Commands: &relayedTabs{}, Feed: realtime.NewHub(), Logger: logger.Nop()})
	require.NoError(t, err)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- s.SetTable(ctx, 1) }()
	<-store.entered

	require.NoError(t, s.SetTable(ctx, 2))
	close(store.release)
	require.NoError(t, <-done)

	snap := s.Snapshot()
	assert.Equal(t, 2, snap.TableNumber)
	require.Len(t, snap.Tabs, 1)
	assert.Equal(t, "table 2", snap.Tabs[0].Name)
}

// gatedStore blocks the fetch for table 1 until released.
type gatedStore struct {
	release chan struct{}
	entered chan struct{}
}

func (g *gatedStore) ActiveTabsByTable(_ context.Context, tableNumber int) ([]models.CustomerTab, error) {
	if tableNumber == 1 {
		close(g.entered)
		<-g.release
	}
	name := "table 1"
	if tableNumber == 2 {
		name = "table 2"
	}
	return []models.CustomerTab{{ID: uuid.New(), TableNumber: tableNumber, Name: name, Status: enums.TabStatusActive}}, nil
}
