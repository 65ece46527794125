package tablesync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/dinein-backend/internal/orders"
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

type recordingNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (n *recordingNotifier) Notify(_ context.Context, note Notification) {
	n.mu.Lock()
	n.notes = append(n.notes, note)
	n.mu.Unlock()
}

func (n *recordingNotifier) all() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.notes...)
}

type noopLinker struct{}

func (noopLinker) Link(context.Context, *gorm.DB, int, []int) (uuid.UUID, error) {
	return uuid.New(), nil
}
func (noopLinker) Unlink(context.Context, *gorm.DB, uuid.UUID) error { return nil }

type noopLedger struct{}

func (noopLedger) AttachItem(context.Context, *gorm.DB, uuid.UUID, uuid.UUID) error { return nil }
func (noopLedger) DetachItem(context.Context, *gorm.DB, uuid.UUID, uuid.UUID) error { return nil }
func (noopLedger) Recalculate(context.Context, *gorm.DB, uuid.UUID) error           { return nil }
func (noopLedger) CloseOrderTabs(context.Context, *gorm.DB, uuid.UUID, enums.TabStatus, *enums.PaymentMethod) error {
	return nil
}

// relayedCommands runs the real order service and then pushes the queued
// changes into the hub, the way the relay does in production.
type relayedCommands struct {
	orders.Service
	t    *testing.T
	conn *gorm.DB
	repo *realtime.Repository
	hub  *realtime.Hub
}

func (r *relayedCommands) pump() {
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

func (r *relayedCommands) CreateOrder(ctx context.Context, input orders.CreateOrderInput) (uuid.UUID, error) {
	defer r.pump()
	return r.Service.CreateOrder(ctx, input)
}

func (r *relayedCommands) AddItem(ctx context.Context, input orders.AddItemInput) (uuid.UUID, error) {
	defer r.pump()
	return r.Service.AddItem(ctx, input)
}

func (r *relayedCommands) RemoveItem(ctx context.Context, itemID uuid.UUID) error {
	defer r.pump()
	return r.Service.RemoveItem(ctx, itemID)
}

func (r *relayedCommands) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	defer r.pump()
	return r.Service.UpdateItemQuantity(ctx, itemID, quantity)
}

func (r *relayedCommands) SendToKitchen(ctx context.Context, orderID uuid.UUID) (int, error) {
	defer r.pump()
	return r.Service.SendToKitchen(ctx, orderID)
}

func (r *relayedCommands) RequestCheck(ctx context.Context, orderID uuid.UUID) error {
	defer r.pump()
	return r.Service.RequestCheck(ctx, orderID)
}

func (r *relayedCommands) MarkPaid(ctx context.Context, input orders.MarkPaidInput) error {
	defer r.pump()
	return r.Service.MarkPaid(ctx, input)
}

type e2e struct {
	syncer   *Syncer
	hub      *realtime.Hub
	notifier *recordingNotifier
	commands *relayedCommands
	tables   map[int]uuid.UUID
}

func newE2E(t *testing.T) *e2e {
	t.Helper()
	conn := dbtest.Open(t)
	repo := orders.NewRepository(conn)
	changes := realtime.NewRepository(conn)
	svc, err := orders.NewService(orders.ServiceParams{
		Repo:    repo,
		Tx:      dbpkg.Wrap(conn),
		Changes: realtime.NewRecorder(changes, logger.Nop()),
		Tables:  noopLinker{},
		Tabs:    noopLedger{},
		Logger:  logger.Nop(),
	})
	require.NoError(t, err)
	reader, err := orders.NewReader(repo)
	require.NoError(t, err)

	hub := realtime.NewHub()
	env := &e2e{
		hub:      hub,
		notifier: &recordingNotifier{},
		commands: &relayedCommands{Service: svc, t: t, conn: conn, repo: changes, hub: hub},
		tables:   map[int]uuid.UUID{},
	}
	for _, n := range []int{7, 8} {
		table := models.POSTable{TableNumber: n, Capacity: 4}
		require.NoError(t, conn.Create(&table).Error)
		env.tables[n] = table.ID
	}
	env.syncer, err = New(Params{
		Store:    reader,
		Commands: env.commands,
		Feed:     hub,
		Notifier: env.notifier,
		Logger:   logger.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.syncer.Close() })
	return env
}

func TestTableLifecycleThroughFeed(t *testing.T) {
	env := newE2E(t)
	ctx := context.Background()
	s := env.syncer

	require.NoError(t, s.SetTable(ctx, env.tables[7]))
	assert.Nil(t, s.Snapshot().Order)
	assert.Equal(t, enums.TableDisplayAvailable, s.Snapshot().DisplayStatus)

	orderID, err := s.CreateOrder(ctx, GuestCount(2))
	require.NoError(t, err)
	snap := s.Snapshot()
	require.NotNil(t, snap.Order)
	assert.Equal(t, orderID, snap.Order.ID)
	assert.Equal(t, enums.TableDisplaySeated, snap.DisplayStatus)

	_, err = s.AddItem(ctx, orders.AddItemInput{Name: "Chicken Tikka", Quantity: 2, Price: decimal.RequireFromString("12.95")})
	require.NoError(t, err)
	snap = s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "25.90", snap.Items[0].LineTotal.Decimal.StringFixed(2))

	sent, err := s.SendToKitchen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, enums.OrderStatusSentToKitchen, s.Snapshot().Order.Status)
	assert.Equal(t, enums.TableDisplayFoodSent, s.Snapshot().DisplayStatus)

	require.NoError(t, s.RequestCheck(ctx))
	assert.Equal(t, enums.TableDisplayRequestingCheck, s.Snapshot().DisplayStatus)

	require.NoError(t, s.MarkPaid(ctx, enums.PaymentMethodCash, decimal.RequireFromString("25.90")))
	snap = s.Snapshot()
	assert.Nil(t, snap.Order)
	assert.Empty(t, snap.Items)
	assert.Equal(t, enums.TableDisplayAvailable, snap.DisplayStatus)
	assert.Empty(t, env.notifier.all())
}

func TestUpdateItemQuantityRefetches(t *testing.T) {
	env := newE2E(t)
	ctx := context.Background()
	s := env.syncer
	require.NoError(t, s.SetTable(ctx, env.tables[7]))
	_, err := s.CreateOrder(ctx, CreateOrderParams{GuestCount: 3})
	require.NoError(t, err)
	itemID, err := s.AddItem(ctx, orders.AddItemInput{Name: "Lassi", Quantity: 1, Price: decimal.NewFromInt(4)})
	require.NoError(t, err)

	require.NoError(t, s.UpdateItemQuantity(ctx, itemID, 3))
	require.Len(t, s.Snapshot().Items, 1)
	assert.Equal(t, 3, s.Snapshot().Items[0].Quantity)

	require.NoError(t, s.UpdateItemQuantity(ctx, itemID, 0))
	assert.Empty(t, s.Snapshot().Items)
}

func TestCommandFailureNotifies(t *testing.T) {
	env := newE2E(t)
	ctx := context.Background()
	s := env.syncer
	require.NoError(t, s.SetTable(ctx, env.tables[7]))

	_, err := s.SendToKitchen(ctx)
	require.Error(t, err)

	_, err = s.CreateOrder(ctx, GuestCount(1))
	require.NoError(t, err)
	_, err = s.SendToKitchen(ctx)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	err = s.MarkPaid(ctx, "", decimal.NewFromInt(5))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = env.commands.Service.CreateOrder(ctx, orders.CreateOrderInput{TableID: env.tables[7]})
	require.Error(t, err)

	notes := env.notifier.all()
	require.Len(t, notes, 3)
	assert.Equal(t, "Add items before sending to the kitchen", notes[1].Message)
	assert.Equal(t, "Could not record payment", notes[2].Title)

	snap := s.Snapshot()
	assert.False(t, snap.Loading)
	require.Error(t, snap.Err)
}

func TestSetTableSwitchesSubscriptions(t *testing.T) {
	env := newE2E(t)
	ctx := context.Background()
	s := env.syncer

	require.NoError(t, s.SetTable(ctx, env.tables[7]))
	assert.Equal(t, 2, env.hub.Len())
	_, err := s.CreateOrder(ctx, GuestCount(2))
	require.NoError(t, err)

	require.NoError(t, s.SetTable(ctx, env.tables[8]))
	assert.Equal(t, 2, env.hub.Len())
	assert.Nil(t, s.Snapshot().Order)

	// activity on the old table no longer reaches the cache
	_, err = env.commands.CreateOrder(ctx, orders.CreateOrderInput{TableID: env.tables[7]})
	require.Error(t, err)
	other, err := env.commands.Service.CreateOrder(ctx, orders.CreateOrderInput{TableID: env.tables[8], GuestCount: 4})
	require.NoError(t, err)
	env.commands.pump()
	require.NotNil(t, s.Snapshot().Order)
	assert.Equal(t, other, s.Snapshot().Order.ID)

	require.NoError(t, s.SetTable(ctx, uuid.Nil))
	assert.Zero(t, env.hub.Len())
	assert.Nil(t, s.Snapshot().Order)
}

// blockingStore parks the fetch for one table until released.
type blockingStore struct {
	orders  map[uuid.UUID]*models.Order
	blockOn uuid.UUID
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) ActiveOrderForTable(_ context.Context, tableID uuid.UUID) (*models.Order, error) {
	if tableID == b.blockOn {
		close(b.entered)
		<-b.release
	}
	order := b.orders[tableID]
	if order == nil {
		return nil, nil
	}
	copied := *order
	return &copied, nil
}

func (b *blockingStore) EnrichedItems(context.Context, uuid.UUID) ([]orders.EnrichedItem, error) {
	return nil, nil
}

type failingCommands struct {
	Commands
}

func (failingCommands) RequestCheck(context.Context, uuid.UUID) error {
	return errors.New("network down")
}

func TestStaleFetchIsDropped(t *testing.T) {
	tableA, tableB := uuid.New(), uuid.New()
	store := &blockingStore{
		orders: map[uuid.UUID]*models.Order{
			tableA: {ID: uuid.New(), TableID: tableA, Status: enums.OrderStatusServed},
			tableB: {ID: uuid.New(), TableID: tableB, Status: enums.OrderStatusCreated},
		},
		blockOn: tableA,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	s, err := New(Params{Store: store, Commands: failingCommands{}, Feed: realtime.NewHub(), Logger: logger.Nop()})
	require.NoError(t, err)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- s.SetTable(ctx, tableA) }()
	<-store.entered

	require.NoError(t, s.SetTable(ctx, tableB))
	close(store.release)
	require.NoError(t, <-done)

	snap := s.Snapshot()
	assert.Equal(t, tableB, snap.TableID)
	require.NotNil(t, snap.Order)
	assert.Equal(t, store.orders[tableB].ID, snap.Order.ID)
}

func TestStaleHandlerIsIgnored(t *testing.T) {
	tableA := uuid.New()
	hub := realtime.NewHub()
	s, err := New(Params{Store: &blockingStore{orders: map[uuid.UUID]*models.Order{}}, Commands: failingCommands{}, Feed: hub, Logger: logger.Nop()})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.SetTable(ctx, tableA))

	handler := s.orderHandler(s.gen)
	require.NoError(t, s.SetTable(ctx, uuid.New()))

	order := models.Order{ID: uuid.New(), TableID: tableA, Status: enums.OrderStatusCreated}
	handler(ctx, orderEvent(t, enums.ChangeInsert, order))
	assert.Nil(t, s.Snapshot().Order)
}

func TestOrderEvents(t *testing.T) {
	tableID := uuid.New()
	hub := realtime.NewHub()
	s, err := New(Params{Store: &blockingStore{orders: map[uuid.UUID]*models.Order{}}, Commands: failingCommands{}, Feed: hub, Logger: logger.Nop()})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.SetTable(ctx, tableID))

	var changes int
	s.OnChange(func(Snapshot) { changes++ })

	order := models.Order{ID: uuid.New(), TableID: tableID, Status: enums.OrderStatusCreated}
	require.NoError(t, hub.Publish(ctx, orderEvent(t, enums.ChangeInsert, order)))
	require.NotNil(t, s.Snapshot().Order)

	// an unrelated closed order on the same table leaves the cache alone
	old := models.Order{ID: uuid.New(), TableID: tableID, Status: enums.OrderStatusClosed}
	require.NoError(t, hub.Publish(ctx, orderEvent(t, enums.ChangeUpdate, old)))
	require.NotNil(t, s.Snapshot().Order)

	order.Status = enums.OrderStatusCancelled
	require.NoError(t, hub.Publish(ctx, orderEvent(t, enums.ChangeUpdate, order)))
	assert.Nil(t, s.Snapshot().Order)

	order.Status = enums.OrderStatusCreated
	require.NoError(t, hub.Publish(ctx, orderEvent(t, enums.ChangeInsert, order)))
	require.NotNil(t, s.Snapshot().Order)
	require.NoError(t, hub.Publish(ctx, orderEvent(t, enums.ChangeDelete, order)))
	assert.Nil(t, s.Snapshot().Order)
	assert.Positive(t, changes)

	err = s.RequestCheck(ctx)
	assert.Error(t, err)
}

func TestDeriveTableDisplayStatus(t *testing.T) {
	cases := map[enums.OrderStatus]enums.TableDisplayStatus{
		enums.OrderStatusCreated:        enums.TableDisplaySeated,
		enums.OrderStatusSentToKitchen:  enums.TableDisplayFoodSent,
		enums.OrderStatusInPrep:         enums.TableDisplayFoodSent,
		enums.OrderStatusReady:          enums.TableDisplayFoodSent,
		enums.OrderStatusServed:         enums.TableDisplayFoodSent,
		enums.OrderStatusPendingPayment: enums.TableDisplayRequestingCheck,
		enums.OrderStatusClosed:         enums.TableDisplayAvailable,
		enums.OrderStatusPaid:           enums.TableDisplayAvailable,
		enums.OrderStatusCompleted:      enums.TableDisplayAvailable,
		enums.OrderStatusCancelled:      enums.TableDisplayAvailable,
		enums.OrderStatus("BOGUS"):      enums.TableDisplayAvailable,
	}
	for status, want := range cases {
		assert.Equal(t, want, DeriveTableDisplayStatus(&models.Order{Status: status}), "status=%s", status)
	}
	assert.Equal(t, enums.TableDisplayAvailable, DeriveTableDisplayStatus(nil))
}

func TestCreateOrderArgNormalization(t *testing.T) {
	tableID := uuid.New()
	input := GuestCount(4).orderInput(tableID)
	assert.Equal(t, orders.CreateOrderInput{TableID: tableID, GuestCount: 4}, input)

	linked := CreateOrderParams{GuestCount: 6, LinkedTables: []int{8, 9}}.orderInput(tableID)
	assert.Equal(t, tableID, linked.TableID)
	assert.Equal(t, 6, linked.GuestCount)
	assert.Equal(t, []int{8, 9}, linked.LinkedTables)
}
