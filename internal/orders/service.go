package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/dinein-backend/pkg/db"
	"github.com/angelmondragon/dinein-backend/pkg/db/models"
	"github.com/angelmondragon/dinein-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dinein-backend/pkg/errors"
	"github.com/angelmondragon/dinein-backend/pkg/logger"
	"github.com/angelmondragon/dinein-backend/pkg/realtime"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type changeRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, changes ...realtime.Change) error
}

// TableLinker maintains table link groups inside the caller's transaction.
type TableLinker interface {
	Link(ctx context.Context, tx *gorm.DB, primary int, secondaries []int) (uuid.UUID, error)
	Unlink(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) error
}

// TabLedger keeps customer tabs consistent with the items of their order.
type TabLedger interface {
	AttachItem(ctx context.Context, tx *gorm.DB, tabID, itemID uuid.UUID) error
	DetachItem(ctx context.Context, tx *gorm.DB, tabID, itemID uuid.UUID) error
	Recalculate(ctx context.Context, tx *gorm.DB, tabID uuid.UUID) error
	CloseOrderTabs(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, outcome enums.TabStatus, method *enums.PaymentMethod) error
}

// Service implements the dine-in order commands.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (uuid.UUID, error)
	AddItem(ctx context.Context, input AddItemInput) (uuid.UUID, error)
	RemoveItem(ctx context.Context, itemID uuid.UUID) error
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	UpdateGuestCount(ctx context.Context, orderID uuid.UUID, guests int) error
	SendToKitchen(ctx context.Context, orderID uuid.UUID) (int, error)
	RequestCheck(ctx context.Context, orderID uuid.UUID) error
	MarkPaid(ctx context.Context, input MarkPaidInput) error
	UpdateLinkedTables(ctx context.Context, input LinkTablesInput) (uuid.UUID, error)
	UnlinkTables(ctx context.Context, groupID uuid.UUID) error
	CancelOrder(ctx context.Context, orderID uuid.UUID) error
	UpdateItemStatus(ctx context.Context, itemID uuid.UUID, status enums.ItemStatus) error
	CancelStaleEmptyOrders(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	changes changeRecorder
	tables  TableLinker
	tabs    TabLedger
	taxRate decimal.Decimal
	now     func() time.Time
	logg    *logger.Logger
}

// ServiceParams bundles the dependencies required to build the order service.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Changes changeRecorder
	Tables  TableLinker
	Tabs    TabLedger
	TaxRate decimal.Decimal
	Clock   func() time.Time
	Logger  *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Changes == nil {
		return nil, fmt.Errorf("change recorder required")
	}
	if params.Tables == nil {
		return nil, fmt.Errorf("table linker required")
	}
	if params.Tabs == nil {
		return nil, fmt.Errorf("tab ledger required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		changes: params.Changes,
		tables:  params.Tables,
		tabs:    params.Tabs,
		taxRate: params.TaxRate,
		now:     clock,
		logg:    params.Logger,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (uuid.UUID, error) {
	if input.TableID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "table_id is required")
	}
	if input.GuestCount < 0 {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "guest_count must be positive")
	}
	if input.GuestCount == 0 {
		input.GuestCount = 1
	}

	var orderID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		table, err := repo.LockTable(ctx, input.TableID)
		if err != nil {
			return notFound(err, "table")
		}
		if _, err := repo.FindActiveOrderByTable(ctx, table.ID); err == nil {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "table %d already has an active order", table.TableNumber)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active order")
		}

		linked, err := s.resolveLinkedNumbers(ctx, repo, input.LinkedTables, input.LinkedTableIDs)
		if err != nil {
			return err
		}

		order := &models.Order{
			TableID:      table.ID,
			TableNumber:  table.TableNumber,
			Status:       enums.OrderStatusCreated,
			GuestCount:   input.GuestCount,
			LinkedTables: linked,
			ServerID:     input.ServerID,
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, fmt.Sprintf("table %d already has an active order", table.TableNumber))
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		if len(linked) > 0 {
			if err := s.ensureTablesFree(ctx, repo, linked, order.ID); err != nil {
				return err
			}
			groupID, err := s.tables.Link(ctx, tx, table.TableNumber, linked)
			if err != nil {
				return err
			}
			order.TableGroupID = &groupID
			if err := repo.SaveOrder(ctx, order); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store table group")
			}
		}

		if err := s.changes.Record(ctx, tx, orderChange(enums.ChangeInsert, nil, order)); err != nil {
			return err
		}
		orderID = order.ID
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, orderID.String()), map[string]any{
		"table_id":    input.TableID.String(),
		"guest_count": input.GuestCount,
	})
	s.logg.Info(logCtx, "order created")
	return orderID, nil
}

func (s *service) AddItem(ctx context.Context, input AddItemInput) (uuid.UUID, error) {
	name := strings.TrimSpace(input.Name)
	switch {
	case input.OrderID == uuid.Nil:
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order_id is required")
	case name == "":
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	case input.Quantity <= 0:
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	case input.Price.IsNegative():
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}

	var itemID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockActiveOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}

		item := &models.DineInOrderItem{
			OrderID:        order.ID,
			TableID:        order.TableID,
			MenuItemID:     input.MenuItemID,
			VariantID:      input.VariantID,
			CategoryID:     input.CategoryID,
			Name:           name,
			Quantity:       input.Quantity,
			UnitPrice:      input.Price.Round(2),
			Customizations: input.Customizations,
			Notes:          input.Notes,
			Status:         enums.ItemStatusPending,
		}
		if input.MenuItemID != nil {
			menuItem, err := repo.FindMenuItem(ctx, *input.MenuItemID)
			if err != nil {
				return notFound(err, "menu item")
			}
			if item.CategoryID == nil {
				item.CategoryID = menuItem.CategoryID
			}
		}
		item.LineTotal = decimal.NewNullDecimal(item.ComputeLineTotal())

		if err := repo.CreateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create item")
		}
		if err := s.changes.Record(ctx, tx, itemChange(enums.ChangeInsert, nil, item)); err != nil {
			return err
		}
		if input.CustomerTabID != nil {
			if err := s.tabs.AttachItem(ctx, tx, *input.CustomerTabID, item.ID); err != nil {
				return err
			}
		}
		if err := s.refreshTotals(ctx, tx, repo, order); err != nil {
			return err
		}
		itemID = item.ID
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.logg.Info(s.logg.WithField(s.logg.WithOrderID(ctx, input.OrderID.String()), "item_id", itemID.String()), "order item added")
	return itemID, nil
}

func (s *service) RemoveItem(ctx context.Context, itemID uuid.UUID) error {
	if itemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "item_id is required")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItem(ctx, itemID)
		if err != nil {
			return notFound(err, "item")
		}
		order, err := s.lockActiveOrder(ctx, repo, item.OrderID)
		if err != nil {
			return err
		}
		if item.CustomerTabID != nil {
			if err := s.tabs.DetachItem(ctx, tx, *item.CustomerTabID, item.ID); err != nil {
				return err
			}
			// detaching rewrote the row; reload so the delete event carries it
			if item, err = repo.FindItem(ctx, itemID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload item")
			}
		}
		if err := repo.DeleteItem(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete item")
		}
		if err := s.changes.Record(ctx, tx, itemChange(enums.ChangeDelete, item, nil)); err != nil {
			return err
		}
		return s.refreshTotals(ctx, tx, repo, order)
	})
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "item_id", itemID.String()), "order item removed")
	return nil
}

func (s *service) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, itemID)
	}
	if itemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "item_id is required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItem(ctx, itemID)
		if err != nil {
			return notFound(err, "item")
		}
		order, err := s.lockActiveOrder(ctx, repo, item.OrderID)
		if err != nil {
			return err
		}
		if item.Status != enums.ItemStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "item already sent to kitchen")
		}
		if item.Quantity == quantity {
			return nil
		}
		before := *item
		item.Quantity = quantity
		item.LineTotal = decimal.NewNullDecimal(item.ComputeLineTotal())
		if err := repo.SaveItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item")
		}
		if err := s.changes.Record(ctx, tx, itemChange(enums.ChangeUpdate, &before, item)); err != nil {
			return err
		}
		if item.CustomerTabID != nil {
			if err := s.tabs.Recalculate(ctx, tx, *item.CustomerTabID); err != nil {
				return err
			}
		}
		return s.refreshTotals(ctx, tx, repo, order)
	})
}

func (s *service) UpdateGuestCount(ctx context.Context, orderID uuid.UUID, guests int) error {
	if guests < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "guest_count must be positive")
	}
	return s.mutateOrder(ctx, orderID, func(_ *gorm.DB, _ Repository, order *models.Order) (bool, error) {
		if order.GuestCount == guests {
			return false, nil
		}
		order.GuestCount = guests
		return true, nil
	})
}

func (s *service) SendToKitchen(ctx context.Context, orderID uuid.UUID) (int, error) {
	sent := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockActiveOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusPendingPayment {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "check already requested")
		}
		items, err := repo.ListItems(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list items")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
		}

		now := s.now().UTC()
		changes := make([]realtime.Change, 0, len(items)+1)
		for i := range items {
			if items[i].Status != enums.ItemStatusPending {
				continue
			}
			before := items[i]
			items[i].Status = enums.ItemStatusSent
			items[i].SentToKitchenAt = &now
			if err := repo.SaveItem(ctx, &items[i]); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark item sent")
			}
			changes = append(changes, itemChange(enums.ChangeUpdate, &before, &items[i]))
			sent++
		}
		if sent > 0 {
			before := *order
			order.Status = foodStage(items, order.Status)
			if order.Status != before.Status {
				if err := repo.SaveOrder(ctx, order); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
				}
				changes = append(changes, orderChange(enums.ChangeUpdate, &before, order))
			}
		}
		return s.changes.Record(ctx, tx, changes...)
	})
	if err != nil {
		return 0, err
	}
	s.logg.Info(s.logg.WithField(s.logg.WithOrderID(ctx, orderID.String()), "sent_items", sent), "order sent to kitchen")
	return sent, nil
}

func (s *service) RequestCheck(ctx context.Context, orderID uuid.UUID) error {
	return s.mutateOrder(ctx, orderID, func(_ *gorm.DB, _ Repository, order *models.Order) (bool, error) {
		if order.Status == enums.OrderStatusPendingPayment {
			return false, nil
		}
		order.Status = enums.OrderStatusPendingPayment
		return true, nil
	})
}

func (s *service) MarkPaid(ctx context.Context, input MarkPaidInput) error {
	method, err := enums.ParsePaymentMethod(string(input.PaymentMethod))
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment_method is required")
	}
	if !input.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockOrder(ctx, input.OrderID)
		if err != nil {
			return notFound(err, "order")
		}
		if !order.IsActive() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order is already %s", strings.ToLower(string(order.Status)))
		}
		before := *order
		paidAt := s.now().UTC()
		order.Status = enums.OrderStatusClosed
		order.PaymentMethod = &method
		order.AmountPaid = decimal.NewNullDecimal(input.Amount.Round(2))
		order.PaidAt = &paidAt
		if err := repo.SaveOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close order")
		}
		if err := s.tabs.CloseOrderTabs(ctx, tx, order.ID, enums.TabStatusPaid, &method); err != nil {
			return err
		}
		if order.TableGroupID != nil {
			if err := s.tables.Unlink(ctx, tx, *order.TableGroupID); err != nil {
				return err
			}
		}
		if input.Amount.LessThan(order.Total) {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"order_id": order.ID.String(),
				"amount":   input.Amount.StringFixed(2),
				"total":    order.Total.StringFixed(2),
			}), "order paid below total")
		}
		return s.changes.Record(ctx, tx, orderChange(enums.ChangeUpdate, &before, order))
	})
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(s.logg.WithOrderID(ctx, input.OrderID.String()), "payment_method", method), "order paid")
	return nil
}

func (s *service) UpdateLinkedTables(ctx context.Context, input LinkTablesInput) (uuid.UUID, error) {
	groupID := uuid.Nil
	err := s.mutateOrder(ctx, input.OrderID, func(tx *gorm.DB, repo Repository, order *models.Order) (bool, error) {
		linked, err := s.resolveLinkedNumbers(ctx, repo, input.TableNumbers, input.TableIDs)
		if err != nil {
			return false, err
		}
		if order.TableGroupID != nil {
			if err := s.tables.Unlink(ctx, tx, *order.TableGroupID); err != nil {
				return false, err
			}
			order.TableGroupID = nil
		}
		if len(linked) > 0 {
			if err := s.ensureTablesFree(ctx, repo, linked, order.ID); err != nil {
				return false, err
			}
			groupID, err = s.tables.Link(ctx, tx, order.TableNumber, linked)
			if err != nil {
				return false, err
			}
			order.TableGroupID = &groupID
		}
		order.LinkedTables = linked
		return true, nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return groupID, nil
}

func (s *service) UnlinkTables(ctx context.Context, groupID uuid.UUID) error {
	if groupID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "table_group_id is required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.tables.Unlink(ctx, tx, groupID); err != nil {
			return err
		}
		orders, err := repo.FindActiveOrdersByGroup(ctx, groupID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find grouped orders")
		}
		for i := range orders {
			before := orders[i]
			orders[i].TableGroupID = nil
			orders[i].LinkedTables = nil
			if err := repo.SaveOrder(ctx, &orders[i]); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear table group")
			}
			if err := s.changes.Record(ctx, tx, orderChange(enums.ChangeUpdate, &before, &orders[i])); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *service) CancelOrder(ctx context.Context, orderID uuid.UUID) error {
	err := s.mutateOrder(ctx, orderID, func(tx *gorm.DB, _ Repository, order *models.Order) (bool, error) {
		return true, s.cancelLocked(ctx, tx, order)
	})
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order cancelled")
	return nil
}

func (s *service) cancelLocked(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	order.Status = enums.OrderStatusCancelled
	if err := s.tabs.CloseOrderTabs(ctx, tx, order.ID, enums.TabStatusCancelled, nil); err != nil {
		return err
	}
	if order.TableGroupID != nil {
		if err := s.tables.Unlink(ctx, tx, *order.TableGroupID); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) UpdateItemStatus(ctx context.Context, itemID uuid.UUID, status enums.ItemStatus) error {
	if !status.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid item status %q", status)
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItem(ctx, itemID)
		if err != nil {
			return notFound(err, "item")
		}
		order, err := s.lockActiveOrder(ctx, repo, item.OrderID)
		if err != nil {
			return err
		}
		if item.Status == status {
			return nil
		}
		if !item.Status.CanAdvanceTo(status) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "item cannot move from %s to %s", item.Status, status).
				WithDetails(map[string]any{"from": item.Status, "to": status})
		}

		before := *item
		item.Status = status
		if item.SentToKitchenAt == nil {
			now := s.now().UTC()
			item.SentToKitchenAt = &now
		}
		if err := repo.SaveItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item status")
		}
		changes := []realtime.Change{itemChange(enums.ChangeUpdate, &before, item)}

		if order.Status != enums.OrderStatusPendingPayment {
			items, err := repo.ListItems(ctx, order.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list items")
			}
			if next := foodStage(items, order.Status); next != order.Status {
				orderBefore := *order
				order.Status = next
				if err := repo.SaveOrder(ctx, order); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
				}
				changes = append(changes, orderChange(enums.ChangeUpdate, &orderBefore, order))
			}
		}
		return s.changes.Record(ctx, tx, changes...)
	})
}

func (s *service) CancelStaleEmptyOrders(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stale, err := s.repo.ListStaleEmptyOrders(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale orders")
	}
	cancelled := 0
	for _, candidate := range stale {
		err := s.mutateOrder(ctx, candidate.ID, func(tx *gorm.DB, repo Repository, order *models.Order) (bool, error) {
			if order.Status != enums.OrderStatusCreated {
				return false, nil
			}
			items, err := repo.ListItems(ctx, order.ID)
			if err != nil {
				return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list items")
			}
			if len(items) > 0 {
				return false, nil
			}
			cancelled++
			return true, s.cancelLocked(ctx, tx, order)
		})
		if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			return cancelled, err
		}
	}
	return cancelled, nil
}

// mutateOrder locks an active order, applies fn and records the update when
// fn reports a change.
func (s *service) mutateOrder(ctx context.Context, orderID uuid.UUID, fn func(tx *gorm.DB, repo Repository, order *models.Order) (bool, error)) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order_id is required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockActiveOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		before := *order
		changed, err := fn(tx, repo, order)
		if err != nil || !changed {
			return err
		}
		if err := repo.SaveOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		return s.changes.Record(ctx, tx, orderChange(enums.ChangeUpdate, &before, order))
	})
}

func (s *service) lockActiveOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.LockOrder(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order")
	}
	if !order.IsActive() {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "order is %s", strings.ToLower(string(order.Status)))
	}
	return order, nil
}

// refreshTotals recomputes subtotal, tax and total from the stored items.
func (s *service) refreshTotals(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) error {
	items, err := repo.ListItems(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list items")
	}
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.EffectiveLineTotal())
	}
	tax := subtotal.Mul(s.taxRate).Round(2)
	total := subtotal.Add(tax)
	if order.Subtotal.Equal(subtotal) && order.Tax.Equal(tax) && order.Total.Equal(total) {
		return nil
	}
	before := *order
	order.Subtotal, order.Tax, order.Total = subtotal, tax, total
	if err := repo.SaveOrder(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update totals")
	}
	return s.changes.Record(ctx, tx, orderChange(enums.ChangeUpdate, &before, order))
}

func (s *service) resolveLinkedNumbers(ctx context.Context, repo Repository, numbers []int, ids []uuid.UUID) ([]int, error) {
	seen := map[int]bool{}
	out := []int{}
	add := func(n int) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, n := range numbers {
		if n <= 0 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid table number %d", n)
		}
		add(n)
	}
	if len(ids) > 0 {
		tables, err := repo.FindTablesByID(ctx, ids)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve linked tables")
		}
		if len(tables) != len(uniqueIDs(ids)) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "linked table not found")
		}
		for _, t := range tables {
			add(t.TableNumber)
		}
	}
	sort.Ints(out)
	return out, nil
}

// ensureTablesFree rejects linking tables that carry an order of their own.
func (s *service) ensureTablesFree(ctx context.Context, repo Repository, numbers []int, orderID uuid.UUID) error {
	tables, err := repo.FindTablesByNumber(ctx, numbers)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load linked tables")
	}
	ids := make([]uuid.UUID, 0, len(tables))
	for _, t := range tables {
		ids = append(ids, t.ID)
	}
	busy, err := repo.ListActiveOrdersByTables(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check linked tables")
	}
	for _, o := range busy {
		if o.ID != orderID {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "table %d has its own active order", o.TableNumber)
		}
	}
	return nil
}

// foodStage derives the order status from the kitchen progress of its items.
func foodStage(items []models.DineInOrderItem, current enums.OrderStatus) enums.OrderStatus {
	var sent, preparing, ready, served int
	for _, item := range items {
		switch item.Status {
		case enums.ItemStatusSent:
			sent++
		case enums.ItemStatusPreparing:
			preparing++
		case enums.ItemStatusReady:
			ready++
		case enums.ItemStatusServed:
			served++
		}
	}
	switch {
	case preparing > 0:
		return enums.OrderStatusInPrep
	case sent > 0:
		return enums.OrderStatusSentToKitchen
	case ready > 0:
		return enums.OrderStatusReady
	case served > 0:
		return enums.OrderStatusServed
	default:
		return current
	}
}

func uniqueIDs(ids []uuid.UUID) map[uuid.UUID]struct{} {
	out := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "%s not found", what)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+what)
}

func orderChange(typ enums.ChangeType, before, after *models.Order) realtime.Change {
	change := realtime.Change{Table: enums.TableOrders, Type: typ}
	if before != nil {
		row := *before
		row.Items = nil
		change.Old, change.RowID = row, row.ID
	}
	if after != nil {
		row := *after
		row.Items = nil
		change.New, change.RowID = row, row.ID
	}
	return change
}

func itemChange(typ enums.ChangeType, before, after *models.DineInOrderItem) realtime.Change {
	change := realtime.Change{Table: enums.TableOrderItems, Type: typ}
	if before != nil {
		change.Old, change.RowID = *before, before.ID
	}
	if after != nil {
		change.New, change.RowID = *after, after.ID
	}
	return change
}
